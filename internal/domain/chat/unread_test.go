package chat

import (
	"testing"
	"time"
)

func TestPairwiseUnread(t *testing.T) {
	t.Parallel()

	me, other := UserID("me"), UserID("other")
	now := time.Now()
	read := now.Add(-time.Minute)

	msgs := []Message{
		{ID: "1", SenderID: other, ReceiverID: me, CreatedAt: now},                // unread
		{ID: "2", SenderID: other, ReceiverID: me, CreatedAt: now, ReadAt: &read}, // read
		{ID: "3", SenderID: me, ReceiverID: other, CreatedAt: now},                // mine
		{ID: "4", SenderID: "stranger", ReceiverID: me, CreatedAt: now},           // other counterparty
		{ID: "5", SenderID: other, ReceiverID: "stranger", CreatedAt: now},        // not mine
	}

	if got := PairwiseUnread(me, other, msgs); got != 1 {
		t.Fatalf("unread=%d want=1", got)
	}
}

func TestPairwiseUnreadMonotonic(t *testing.T) {
	t.Parallel()

	me, other := UserID("me"), UserID("other")
	now := time.Now()
	msgs := []Message{
		{ID: "1", SenderID: other, ReceiverID: me, CreatedAt: now},
		{ID: "2", SenderID: other, ReceiverID: me, CreatedAt: now},
	}
	before := PairwiseUnread(me, other, msgs)

	// A new incoming message increases the count by exactly one.
	msgs = append(msgs, Message{ID: "3", SenderID: other, ReceiverID: me, CreatedAt: now})
	if got := PairwiseUnread(me, other, msgs); got != before+1 {
		t.Fatalf("after insert unread=%d want=%d", got, before+1)
	}

	// Marking read never increases the count.
	read := now
	msgs[0].ReadAt = &read
	if got := PairwiseUnread(me, other, msgs); got > before+1 {
		t.Fatalf("after read unread=%d must not exceed %d", got, before+1)
	}
}

func TestGroupUnread(t *testing.T) {
	t.Parallel()

	me := UserID("me")
	now := time.Now()
	msgs := []GroupMessage{
		{ID: "1", ThreadID: "t1", SenderID: "alice", CreatedAt: now},
		{ID: "2", ThreadID: "t1", SenderID: "bob", CreatedAt: now},
		{ID: "3", ThreadID: "t1", SenderID: me, CreatedAt: now}, // mine never counts
	}
	markers := []ReadMarker{
		{UserID: me, MessageID: "1"},
		{UserID: "alice", MessageID: "2"}, // someone else's marker
	}

	if got := GroupUnread(me, msgs, markers); got != 1 {
		t.Fatalf("unread=%d want=1", got)
	}
}

func TestLatestThreadNames(t *testing.T) {
	t.Parallel()

	base := time.Now()
	msgs := []GroupMessage{
		{ID: "1", ThreadID: "t1", CreatedAt: base, ThreadName: "Old Name"},
		{ID: "2", ThreadID: "t1", CreatedAt: base.Add(time.Hour), ThreadName: "New Name"},
		{ID: "3", ThreadID: "t1", CreatedAt: base.Add(2 * time.Hour)}, // no override
		{ID: "4", ThreadID: "t2", CreatedAt: base},
	}

	names := LatestThreadNames(msgs)
	if names["t1"] != "New Name" {
		t.Fatalf("t1 name=%q want=%q", names["t1"], "New Name")
	}
	if _, ok := names["t2"]; ok {
		t.Fatalf("t2 has no override, got %q", names["t2"])
	}
}

func TestLatestGroupMessage(t *testing.T) {
	t.Parallel()

	base := time.Now()
	msgs := []GroupMessage{
		{ID: "1", ThreadID: "t1", CreatedAt: base.Add(time.Minute)},
		{ID: "2", ThreadID: "t1", CreatedAt: base},
	}
	latest := LatestGroupMessage(msgs)
	if latest["t1"].ID != "1" {
		t.Fatalf("latest=%q want=1", latest["t1"].ID)
	}
}
