package chat

import "sort"

// ResolveGroupThreads groups membership rows by thread and returns, per
// thread, the member ids other than me. Threads where I am the only member
// are dropped: with nobody else in them there is nothing to display.
func ResolveGroupThreads(me UserID, rows []Membership) map[ThreadID][]UserID {
	byThread := make(map[ThreadID][]UserID)
	seen := make(map[ThreadID]map[UserID]struct{})
	for _, row := range rows {
		if row.ThreadID == "" || row.UserID == "" || row.UserID == me {
			continue
		}
		if seen[row.ThreadID] == nil {
			seen[row.ThreadID] = make(map[UserID]struct{})
		}
		if _, dup := seen[row.ThreadID][row.UserID]; dup {
			continue
		}
		seen[row.ThreadID][row.UserID] = struct{}{}
		byThread[row.ThreadID] = append(byThread[row.ThreadID], row.UserID)
	}
	for id, members := range byThread {
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		byThread[id] = members
	}
	return byThread
}

// FindExistingThread returns the thread whose full member set equals
// participants (which must include the caller). Used when starting a new
// conversation so an identical group of people reuses their thread instead
// of getting a duplicate.
func FindExistingThread(participants []UserID, existing map[ThreadID][]UserID) (ThreadID, bool) {
	want := normalizeSet(participants)
	if len(want) == 0 {
		return "", false
	}
	for id, members := range existing {
		if setEqual(want, normalizeSet(members)) {
			return id, true
		}
	}
	return "", false
}

func normalizeSet(ids []UserID) []UserID {
	seen := make(map[UserID]struct{}, len(ids))
	out := make([]UserID, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func setEqual(a, b []UserID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
