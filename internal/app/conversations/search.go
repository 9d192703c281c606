package conversations

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"linkup/internal/domain/chat"
)

// DefaultSearchDebounce delays a query until typing pauses.
const DefaultSearchDebounce = 300 * time.Millisecond

// SearchResult is the outcome of one content search.
type SearchResult struct {
	Query string
	IDs   map[chat.ConversationID]struct{}
	Err   error
}

// Searcher runs debounced message-content searches. A new query supersedes
// any query in flight: the superseded result is discarded, never delivered.
type Searcher struct {
	store    Store
	log      *slog.Logger
	debounce time.Duration

	mu      sync.Mutex
	gen     uint64
	timer   *time.Timer
	pending chan SearchResult
}

func NewSearcher(store Store, log *slog.Logger) *Searcher {
	return &Searcher{store: store, log: log, debounce: DefaultSearchDebounce}
}

// SetDebounce overrides the debounce window.
func (s *Searcher) SetDebounce(d time.Duration) {
	if d >= 0 {
		s.debounce = d
	}
}

// Submit schedules query and delivers its result on the returned channel
// after the debounce window, unless a newer Submit supersedes it first, in
// which case the channel closes without a value. An empty query resolves
// immediately to an empty id set.
func (s *Searcher) Submit(ctx context.Context, me chat.UserID, query string) <-chan SearchResult {
	out := make(chan SearchResult, 1)

	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.timer != nil {
		// Superseded before its debounce fired: close its channel here,
		// since its timer func will never run. A query already running
		// closes its own channel through the staleness check below.
		if s.timer.Stop() && s.pending != nil {
			close(s.pending)
		}
		s.timer = nil
		s.pending = nil
	}

	query = strings.TrimSpace(query)
	if query == "" {
		s.mu.Unlock()
		out <- SearchResult{Query: "", IDs: map[chat.ConversationID]struct{}{}}
		close(out)
		return out
	}

	s.pending = out
	s.timer = time.AfterFunc(s.debounce, func() {
		s.mu.Lock()
		if gen != s.gen {
			s.mu.Unlock()
			close(out)
			return
		}
		s.pending = nil
		s.mu.Unlock()

		res := s.run(ctx, me, query)
		s.mu.Lock()
		stale := gen != s.gen
		s.mu.Unlock()
		if stale {
			close(out)
			return
		}
		out <- res
		close(out)
	})
	s.mu.Unlock()
	return out
}

func (s *Searcher) run(ctx context.Context, me chat.UserID, query string) SearchResult {
	pattern := EscapeLike(query)
	ids := make(map[chat.ConversationID]struct{})

	pair, err := s.store.SearchPairwiseMessages(ctx, me, pattern)
	if err != nil {
		s.log.Warn("pairwise search failed", "error", err)
		return SearchResult{Query: query, Err: err}
	}
	for _, m := range pair {
		if other, involved := m.Counterparty(me); involved {
			ids[chat.PairwiseConversationID(other)] = struct{}{}
		}
	}

	group, err := s.store.SearchGroupMessages(ctx, me, pattern)
	if err != nil {
		s.log.Warn("group search failed", "error", err)
		return SearchResult{Query: query, Err: err}
	}
	for _, m := range group {
		ids[chat.GroupConversationID(m.ThreadID)] = struct{}{}
	}

	return SearchResult{Query: query, IDs: ids}
}

// EscapeLike escapes LIKE-significant characters so user input is matched
// literally by pattern-based storage backends.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
