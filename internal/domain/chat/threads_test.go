package chat

import (
	"testing"
	"time"
)

func member(thread ThreadID, user UserID) Membership {
	return Membership{ThreadID: thread, UserID: user, JoinedAt: time.Now()}
}

func TestResolveGroupThreads(t *testing.T) {
	t.Parallel()

	me := UserID("me")
	rows := []Membership{
		member("t1", "me"),
		member("t1", "alice"),
		member("t1", "bob"),
		member("t1", "bob"), // duplicate row
		member("t2", "me"),  // me only: not displayable
		member("t3", "carol"),
		member("t3", "me"),
	}

	got := ResolveGroupThreads(me, rows)

	if len(got) != 2 {
		t.Fatalf("threads=%d want=2 (%v)", len(got), got)
	}
	if _, ok := got["t2"]; ok {
		t.Fatalf("thread with no other participants must be dropped")
	}
	t1 := got["t1"]
	if len(t1) != 2 || t1[0] != "alice" || t1[1] != "bob" {
		t.Fatalf("t1 members=%v want=[alice bob]", t1)
	}
	if len(got["t3"]) != 1 || got["t3"][0] != "carol" {
		t.Fatalf("t3 members=%v want=[carol]", got["t3"])
	}
}

func TestFindExistingThread(t *testing.T) {
	t.Parallel()

	existing := map[ThreadID][]UserID{
		"t1": {"me", "alice", "bob"},
		"t2": {"me", "carol"},
	}

	cases := []struct {
		name         string
		participants []UserID
		wantThread   ThreadID
		wantFound    bool
	}{
		{name: "exact set different order", participants: []UserID{"bob", "me", "alice"}, wantThread: "t1", wantFound: true},
		{name: "with duplicates", participants: []UserID{"me", "carol", "carol"}, wantThread: "t2", wantFound: true},
		{name: "subset does not match", participants: []UserID{"me", "alice"}, wantFound: false},
		{name: "superset does not match", participants: []UserID{"me", "alice", "bob", "carol"}, wantFound: false},
		{name: "empty", participants: nil, wantFound: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, found := FindExistingThread(tc.participants, existing)
			if found != tc.wantFound {
				t.Fatalf("found=%v want=%v", found, tc.wantFound)
			}
			if found && got != tc.wantThread {
				t.Fatalf("thread=%q want=%q", got, tc.wantThread)
			}
		})
	}
}

func TestThreadIDOf(t *testing.T) {
	t.Parallel()

	if _, ok := ThreadIDOf("some-user-id"); ok {
		t.Fatalf("pairwise id must not parse as thread")
	}
	id, ok := ThreadIDOf(GroupConversationID("abc"))
	if !ok || id != "abc" {
		t.Fatalf("got (%q,%v) want (abc,true)", id, ok)
	}
}
