package conversations_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"linkup/internal/app/conversations"
	"linkup/internal/domain/chat"
	"linkup/internal/infra/storage/memory"
)

const (
	meID    = chat.UserID("11111111-1111-4111-8111-111111111111")
	aliceID = chat.UserID("22222222-2222-4222-8222-222222222222")
	bobID   = chat.UserID("33333333-3333-4333-8333-333333333333")
	carolID = chat.UserID("44444444-4444-4444-8444-444444444444")
	daveID  = chat.UserID("55555555-5555-4555-8555-555555555555")

	threadID = chat.ThreadID("aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa")
)

var testBase = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func profile(id chat.UserID, first, last, role string) conversations.Identity {
	return conversations.Identity{
		ParticipantSummary: chat.ParticipantSummary{ID: id, FirstName: first, LastName: last},
		RoleLabel:          role,
	}
}

// seedFixture builds: alice (connection, one unread incoming message),
// bob (connection, no messages), and a group thread with carol and dave
// holding one unread message.
func seedFixture(store *memory.ChatStore) {
	store.SeedProfile(profile(meID, "Mia", "Holt", "member"))
	store.SeedProfile(profile(aliceID, "Alice", "Reyes", "mentor"))
	store.SeedProfile(profile(bobID, "Bob", "Nkemelu", "member"))
	store.SeedProfile(profile(carolID, "Carol", "Iwu", "member"))
	store.SeedProfile(profile(daveID, "Dave", "Lindqvist", "member"))

	store.Connect(meID, aliceID)
	store.Connect(meID, bobID)

	store.AddMessage(chat.Message{
		ID: "m1", SenderID: meID, ReceiverID: aliceID,
		Content: "hey, are you going to the meetup?", CreatedAt: testBase,
	})
	store.AddMessage(chat.Message{
		ID: "m2", SenderID: aliceID, ReceiverID: meID,
		Content: "yes! see you there", CreatedAt: testBase.Add(time.Hour),
	})

	store.AddMembership(chat.Membership{ThreadID: threadID, UserID: meID, JoinedAt: testBase})
	store.AddMembership(chat.Membership{ThreadID: threadID, UserID: carolID, JoinedAt: testBase})
	store.AddMembership(chat.Membership{ThreadID: threadID, UserID: daveID, JoinedAt: testBase})
	store.AddGroupMessage(chat.GroupMessage{
		ID: "g1", ThreadID: threadID, SenderID: carolID,
		Content: "standup moved to 10", CreatedAt: testBase.Add(2 * time.Hour),
	})
}

func newAggregator(store *memory.ChatStore) *conversations.Aggregator {
	log := testLogger()
	return conversations.NewAggregator(store, conversations.NewDirectory(store, nil, log), log)
}

func TestLoadFallbackAggregates(t *testing.T) {
	t.Parallel()

	store := memory.NewChatStore()
	seedFixture(store)
	agg := newAggregator(store)

	items, err := agg.Load(context.Background(), meID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len=%d want=3: %+v", len(items), items)
	}

	// Newest first: group (T+2h), alice (T+1h), bob (no messages, last).
	if items[0].ID != chat.GroupConversationID(threadID) {
		t.Fatalf("first=%q want group", items[0].ID)
	}
	if items[0].DisplayName != "Carol and Dave" {
		t.Fatalf("group name=%q", items[0].DisplayName)
	}
	if items[0].UnreadCount != 1 {
		t.Fatalf("group unread=%d want=1", items[0].UnreadCount)
	}
	if len(items[0].Participants) != 2 {
		t.Fatalf("group participants=%d want=2", len(items[0].Participants))
	}

	if items[1].ID != chat.PairwiseConversationID(aliceID) {
		t.Fatalf("second=%q want alice", items[1].ID)
	}
	if items[1].UnreadCount != 1 {
		t.Fatalf("alice unread=%d want=1", items[1].UnreadCount)
	}
	if items[1].RoleLabel != "mentor" {
		t.Fatalf("alice role=%q", items[1].RoleLabel)
	}
	if items[1].LastMessagePreview != "yes! see you there" {
		t.Fatalf("alice preview=%q", items[1].LastMessagePreview)
	}

	if items[2].ID != chat.PairwiseConversationID(bobID) {
		t.Fatalf("third=%q want bob", items[2].ID)
	}
	if items[2].LastMessagePreview != chat.NoMessagesPreview {
		t.Fatalf("bob preview=%q want=%q", items[2].LastMessagePreview, chat.NoMessagesPreview)
	}
	if items[2].UnreadCount != 0 || items[2].LastMessageTimestamp != nil {
		t.Fatalf("bob must have zero unread and no timestamp: %+v", items[2])
	}
}

func TestLoadSortInvariant(t *testing.T) {
	t.Parallel()

	store := memory.NewChatStore()
	seedFixture(store)
	agg := newAggregator(store)

	items, err := agg.Load(context.Background(), meID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	seenNil := false
	for i := 1; i < len(items); i++ {
		a, b := items[i-1].LastMessageTimestamp, items[i].LastMessageTimestamp
		if a == nil {
			seenNil = true
		}
		if seenNil && b != nil {
			t.Fatalf("timestamped entry after no-message entry at %d", i)
		}
		if a != nil && b != nil && a.Before(*b) {
			t.Fatalf("order violated at %d: %v < %v", i, a, b)
		}
	}
}

func TestLoadFastPath(t *testing.T) {
	t.Parallel()

	store := memory.NewChatStore()
	seedFixture(store)
	lastAt := testBase.Add(3 * time.Hour)
	store.SetSummaries(meID, []chat.ConversationSummary{
		{
			ID: string(aliceID), DisplayName: "Alice Reyes",
			LastMessageText: "summary preview", LastMessageAt: &lastAt, UnreadCount: 2,
		},
		{
			ID: "thread:" + string(threadID), IsGroup: true, ThreadID: threadID,
			LastMessageText: "standup moved to 10", UnreadCount: 1,
		},
	})
	agg := newAggregator(store)

	items, err := agg.Load(context.Background(), meID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Summaries cover alice and the thread; gap-fill appends bob.
	if len(items) != 3 {
		t.Fatalf("len=%d want=3: %+v", len(items), items)
	}

	byID := make(map[chat.ConversationID]chat.Conversation, len(items))
	for _, c := range items {
		byID[c.ID] = c
	}
	alice := byID[chat.PairwiseConversationID(aliceID)]
	if alice.UnreadCount != 2 || alice.LastMessagePreview != "summary preview" {
		t.Fatalf("alice from summary: %+v", alice)
	}
	if alice.RoleLabel != "mentor" {
		t.Fatalf("alice must be enriched with role, got %q", alice.RoleLabel)
	}
	group := byID[chat.GroupConversationID(threadID)]
	if group.DisplayName != "Carol and Dave" {
		t.Fatalf("group name=%q", group.DisplayName)
	}
	if len(group.Participants) != 2 {
		t.Fatalf("group participants=%d want=2", len(group.Participants))
	}
}

func TestLoadFastPathFailureFallsBack(t *testing.T) {
	t.Parallel()

	store := memory.NewChatStore()
	seedFixture(store)
	store.FailSummaries(errors.New("summary view offline"))
	agg := newAggregator(store)

	items, err := agg.Load(context.Background(), meID)
	if err != nil {
		t.Fatalf("fast-path failure must not fail the load: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("fallback produced %d conversations, want 3", len(items))
	}
	seen := make(map[chat.ConversationID]struct{}, len(items))
	for _, c := range items {
		if _, dup := seen[c.ID]; dup {
			t.Fatalf("duplicate id %q", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
}

func TestLoadDedupe(t *testing.T) {
	t.Parallel()

	store := memory.NewChatStore()
	seedFixture(store)
	// Two summary rows describe the same conversation; last write wins.
	store.SetSummaries(meID, []chat.ConversationSummary{
		{ID: string(aliceID), DisplayName: "stale", LastMessageText: "old"},
		{ID: string(aliceID), DisplayName: "fresh", LastMessageText: "new"},
	})
	agg := newAggregator(store)

	items, err := agg.Load(context.Background(), meID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	count := 0
	for _, c := range items {
		if c.ID == chat.PairwiseConversationID(aliceID) {
			count++
			if c.LastMessagePreview != "new" {
				t.Fatalf("last write must win, got %q", c.LastMessagePreview)
			}
		}
	}
	if count != 1 {
		t.Fatalf("alice appears %d times, want exactly 1", count)
	}
}

func TestLoadMalformedSummaryRowsDropped(t *testing.T) {
	t.Parallel()

	store := memory.NewChatStore()
	seedFixture(store)
	store.SetSummaries(meID, []chat.ConversationSummary{
		{ID: ""},                               // no id
		{ID: "thread:x", IsGroup: true},        // group without thread id
		{ID: string(aliceID), UnreadCount: -4}, // negative unread coerced
	})
	agg := newAggregator(store)

	items, err := agg.Load(context.Background(), meID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, c := range items {
		if c.UnreadCount < 0 {
			t.Fatalf("negative unread leaked: %+v", c)
		}
	}
}

func TestLoadInvalidID(t *testing.T) {
	t.Parallel()

	agg := newAggregator(memory.NewChatStore())
	if _, err := agg.Load(context.Background(), "not-a-uuid"); !errors.Is(err, chat.ErrInvalidID) {
		t.Fatalf("err=%v want ErrInvalidID", err)
	}
}

func TestLoadHiddenConversation(t *testing.T) {
	t.Parallel()

	store := memory.NewChatStore()
	seedFixture(store)
	agg := newAggregator(store)
	ctx := context.Background()

	hideAt := testBase.Add(90 * time.Minute) // after alice's last message
	if err := store.UpsertHiddenMarker(ctx, chat.HiddenMarker{UserID: meID, OtherUserID: aliceID, HiddenAt: hideAt}); err != nil {
		t.Fatalf("hide: %v", err)
	}

	items, err := agg.Load(ctx, meID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	alice, found := findConv(items, chat.PairwiseConversationID(aliceID))
	if !found {
		t.Fatalf("hidden connection must still gap-fill: %+v", items)
	}
	// Hidden history renders as a fresh connection, not the old messages.
	if alice.LastMessagePreview != chat.NoMessagesPreview {
		t.Fatalf("hidden history leaked: %+v", alice)
	}

	// New activity after hiding resurfaces the history.
	store.AddMessage(chat.Message{
		ID: "m3", SenderID: aliceID, ReceiverID: meID,
		Content: "one more thing", CreatedAt: testBase.Add(2 * time.Hour),
	})
	items, err = agg.Load(ctx, meID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	alice, _ = findConv(items, chat.PairwiseConversationID(aliceID))
	if alice.LastMessagePreview != "one more thing" {
		t.Fatalf("post-hide activity must resurface, got %+v", alice)
	}
}

func findConv(items []chat.Conversation, id chat.ConversationID) (chat.Conversation, bool) {
	for _, c := range items {
		if c.ID == id {
			return c, true
		}
	}
	return chat.Conversation{}, false
}
