package conversations

import (
	"testing"
	"time"

	"linkup/internal/domain/chat"
)

func ts(t time.Time) *time.Time { return &t }

func TestListReplaceLastCompletedWins(t *testing.T) {
	t.Parallel()

	l := NewList()
	now := time.Now()

	if !l.Replace([]chat.Conversation{{ID: "a"}}, now) {
		t.Fatalf("first replace must apply")
	}
	// A load that completed earlier arrives late: discarded.
	if l.Replace([]chat.Conversation{{ID: "stale"}}, now.Add(-time.Second)) {
		t.Fatalf("earlier-completing load must be discarded")
	}
	if got := l.Snapshot(); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("snapshot=%+v", got)
	}
	if !l.Replace([]chat.Conversation{{ID: "b"}}, now.Add(time.Second)) {
		t.Fatalf("later-completing load must apply")
	}
}

func TestListSnapshotIsolation(t *testing.T) {
	t.Parallel()

	l := NewList()
	base := time.Now()
	l.Replace([]chat.Conversation{{ID: "a", LastMessageTimestamp: ts(base)}}, base)

	snap := l.Snapshot()
	l.ApplyMessageInsert("a", "m1", "hello", base.Add(time.Minute), false)

	if snap[0].UnreadCount != 0 || snap[0].LastMessagePreview != "" {
		t.Fatalf("snapshot mutated by later patch: %+v", snap[0])
	}
}

func TestListApplyMessageInsert(t *testing.T) {
	t.Parallel()

	l := NewList()
	base := time.Now()
	l.Replace([]chat.Conversation{
		{ID: "a", LastMessageTimestamp: ts(base.Add(time.Hour))},
		{ID: "b", LastMessageTimestamp: ts(base)},
	}, base)

	// b gets a newer message and moves to the top.
	if !l.ApplyMessageInsert("b", "m1", "new message", base.Add(2*time.Hour), false) {
		t.Fatalf("patch must apply to known conversation")
	}
	items := l.Snapshot()
	if items[0].ID != "b" {
		t.Fatalf("order after patch: %+v", items)
	}
	if items[0].UnreadCount != 1 {
		t.Fatalf("unread=%d want=1", items[0].UnreadCount)
	}

	// Same message again: no double count.
	l.ApplyMessageInsert("b", "m1", "new message", base.Add(2*time.Hour), false)
	if got := l.Snapshot()[0].UnreadCount; got != 1 {
		t.Fatalf("duplicate insert double-counted: %d", got)
	}

	// My own message updates preview but not unread.
	l.ApplyMessageInsert("b", "m2", "my reply", base.Add(3*time.Hour), true)
	top := l.Snapshot()[0]
	if top.UnreadCount != 1 || top.LastMessagePreview != "my reply" {
		t.Fatalf("own-message patch: %+v", top)
	}

	// m1 redelivered after m2 landed: still a duplicate, even though it is
	// no longer the conversation's last message.
	if !l.ApplyMessageInsert("b", "m1", "new message", base.Add(2*time.Hour), false) {
		t.Fatalf("redelivered duplicate must be absorbed, not reloaded")
	}
	top = l.Snapshot()[0]
	if top.UnreadCount != 1 || top.LastMessagePreview != "my reply" {
		t.Fatalf("interleaved duplicate re-applied: %+v", top)
	}

	if l.ApplyMessageInsert("missing", "m3", "x", base, false) {
		t.Fatalf("patch to unknown conversation must report false")
	}
}

func TestListSetThreadName(t *testing.T) {
	t.Parallel()

	l := NewList()
	l.Replace([]chat.Conversation{
		{ID: chat.GroupConversationID("t1"), IsGroup: true, ThreadID: "t1", DisplayName: "Old"},
	}, time.Now())

	prev, ok := l.SetThreadName("t1", "New")
	if !ok || prev != "Old" {
		t.Fatalf("prev=%q ok=%v", prev, ok)
	}
	if got, _ := l.Get(chat.GroupConversationID("t1")); got.DisplayName != "New" {
		t.Fatalf("name=%q", got.DisplayName)
	}
	if _, ok := l.SetThreadName("missing", "X"); ok {
		t.Fatalf("unknown thread must report false")
	}
}

func TestListRemove(t *testing.T) {
	t.Parallel()

	l := NewList()
	l.Replace([]chat.Conversation{{ID: "a"}, {ID: "b"}}, time.Now())
	if !l.Remove("a") {
		t.Fatalf("remove known id")
	}
	if l.Has("a") || !l.Has("b") {
		t.Fatalf("remove affected wrong entry")
	}
	if l.Remove("a") {
		t.Fatalf("second remove must report false")
	}
}
