package conversations_test

import (
	"context"
	"testing"
	"time"

	"linkup/internal/app/conversations"
	"linkup/internal/domain/chat"
	"linkup/internal/infra/storage/memory"
)

func newSearcher(store *memory.ChatStore, debounce time.Duration) *conversations.Searcher {
	s := conversations.NewSearcher(store, testLogger())
	s.SetDebounce(debounce)
	return s
}

func TestSearchMatchesBothMessageKinds(t *testing.T) {
	t.Parallel()

	store := memory.NewChatStore()
	seedFixture(store)
	s := newSearcher(store, time.Millisecond)

	// "meetup" appears in the pairwise history with alice; "standup" in the
	// group thread.
	res, ok := <-s.Submit(context.Background(), meID, "MEETUP")
	if !ok {
		t.Fatalf("result channel closed without a value")
	}
	if res.Err != nil {
		t.Fatalf("search: %v", res.Err)
	}
	if _, hit := res.IDs[chat.PairwiseConversationID(aliceID)]; !hit {
		t.Fatalf("case-insensitive pairwise match missing: %v", res.IDs)
	}

	res, _ = <-s.Submit(context.Background(), meID, "standup")
	if _, hit := res.IDs[chat.GroupConversationID(threadID)]; !hit {
		t.Fatalf("group match missing: %v", res.IDs)
	}
}

func TestSearchLastQueryWins(t *testing.T) {
	t.Parallel()

	store := memory.NewChatStore()
	seedFixture(store)
	s := newSearcher(store, 30*time.Millisecond)
	ctx := context.Background()

	first := s.Submit(ctx, meID, "meetup")
	second := s.Submit(ctx, meID, "standup")

	if _, delivered := <-first; delivered {
		t.Fatalf("superseded query must not deliver a result")
	}
	res, delivered := <-second
	if !delivered || res.Err != nil {
		t.Fatalf("latest query must deliver: %+v", res)
	}
	if res.Query != "standup" {
		t.Fatalf("query=%q want=standup", res.Query)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	t.Parallel()

	s := newSearcher(memory.NewChatStore(), time.Hour) // debounce must not matter
	res, ok := <-s.Submit(context.Background(), meID, "   ")
	if !ok || res.Err != nil {
		t.Fatalf("empty query must resolve immediately: %+v", res)
	}
	if len(res.IDs) != 0 {
		t.Fatalf("ids=%v want empty", res.IDs)
	}
}

func TestSearchLiteralLikeCharacters(t *testing.T) {
	t.Parallel()

	store := memory.NewChatStore()
	seedFixture(store)
	store.AddMessage(chat.Message{
		ID: "m20", SenderID: aliceID, ReceiverID: meID,
		Content: "we hit 100% coverage", CreatedAt: testBase,
	})
	s := newSearcher(store, time.Millisecond)

	res, _ := <-s.Submit(context.Background(), meID, "100%")
	if res.Err != nil {
		t.Fatalf("search: %v", res.Err)
	}
	if _, hit := res.IDs[chat.PairwiseConversationID(aliceID)]; !hit {
		t.Fatalf("literal %% must match: %v", res.IDs)
	}
	// The wildcard meaning is escaped away: "1002" must not match "100%".
	res, _ = <-s.Submit(context.Background(), meID, "100_")
	if _, hit := res.IDs[chat.PairwiseConversationID(aliceID)]; hit {
		t.Fatalf("escaped underscore acted as wildcard")
	}
}

func TestEscapeLike(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, want string }{
		{in: "plain", want: "plain"},
		{in: "100%", want: `100\%`},
		{in: "a_b", want: `a\_b`},
		{in: `back\slash`, want: `back\\slash`},
	}
	for _, tc := range cases {
		if got := conversations.EscapeLike(tc.in); got != tc.want {
			t.Fatalf("EscapeLike(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}
