package chat

// PairwiseUnread counts messages from counterparty to me that carry no read
// timestamp. Counts are always derived from message facts, never cached.
func PairwiseUnread(me, counterparty UserID, msgs []Message) int {
	n := 0
	for _, m := range msgs {
		if m.SenderID == counterparty && m.ReceiverID == me && m.ReadAt == nil {
			n++
		}
	}
	return n
}

// GroupUnread counts thread messages authored by someone else for which I
// hold no read marker.
func GroupUnread(me UserID, msgs []GroupMessage, markers []ReadMarker) int {
	read := make(map[string]struct{}, len(markers))
	for _, mk := range markers {
		if mk.UserID == me {
			read[mk.MessageID] = struct{}{}
		}
	}
	n := 0
	for _, m := range msgs {
		if m.SenderID == me {
			continue
		}
		if _, ok := read[m.ID]; ok {
			continue
		}
		n++
	}
	return n
}

// LatestGroupMessage returns the newest message per thread, preferring
// non-system messages only by recency (a rename is still activity).
func LatestGroupMessage(msgs []GroupMessage) map[ThreadID]GroupMessage {
	latest := make(map[ThreadID]GroupMessage)
	for _, m := range msgs {
		cur, ok := latest[m.ThreadID]
		if !ok || m.CreatedAt.After(cur.CreatedAt) {
			latest[m.ThreadID] = m
		}
	}
	return latest
}

// LatestThreadNames returns, per thread, the thread-name override carried by
// the most recent message that has one. Latest non-empty value wins.
func LatestThreadNames(msgs []GroupMessage) map[ThreadID]string {
	names := make(map[ThreadID]string)
	stamps := make(map[ThreadID]int64)
	for _, m := range msgs {
		if m.ThreadName == "" {
			continue
		}
		ts := m.CreatedAt.UnixNano()
		if prev, ok := stamps[m.ThreadID]; ok && prev >= ts {
			continue
		}
		stamps[m.ThreadID] = ts
		names[m.ThreadID] = m.ThreadName
	}
	return names
}
