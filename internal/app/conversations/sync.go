package conversations

import (
	"context"
	"log/slog"
	"time"

	"linkup/internal/domain/chat"
)

// Action is the reducer's verdict for one realtime event.
type Action int

const (
	// ActionIgnore drops the event: it does not involve the caller.
	ActionIgnore Action = iota
	// ActionPatch applies the event as an in-place list patch.
	ActionPatch
	// ActionReload coalesces into a debounced full re-aggregation.
	ActionReload
)

// DefaultReloadDebounce coalesces bursts of non-patchable events.
const DefaultReloadDebounce = 250 * time.Millisecond

// Decide is the pure patch-vs-reload table for one event against the
// current state. has reports whether a conversation id is already present.
//
// Inserts for known conversations patch in place; everything that can move
// derived state in ways a delta cannot express (updates, deletes,
// membership changes, inserts for unknown conversations) reloads.
func Decide(me chat.UserID, ev Event, has func(chat.ConversationID) bool) (Action, chat.ConversationID) {
	switch ev.Source {
	case SourcePairwise:
		if ev.Message == nil {
			return ActionIgnore, ""
		}
		other, involved := ev.Message.Counterparty(me)
		if !involved {
			return ActionIgnore, ""
		}
		id := chat.PairwiseConversationID(other)
		if ev.Op != OpInsert {
			return ActionReload, id
		}
		if !has(id) {
			// A brand-new counterparty cannot be synthesized from one
			// event: display identity is unknown.
			return ActionReload, id
		}
		return ActionPatch, id

	case SourceGroup:
		if ev.GroupMessage == nil {
			return ActionIgnore, ""
		}
		id := chat.GroupConversationID(ev.GroupMessage.ThreadID)
		if ev.Op != OpInsert {
			return ActionReload, id
		}
		if ev.GroupMessage.ThreadName != "" || ev.GroupMessage.IsSystem {
			// Renames change a derived field a message patch cannot carry.
			return ActionReload, id
		}
		if !has(id) {
			return ActionReload, id
		}
		return ActionPatch, id

	case SourceMembership:
		if ev.Membership == nil || ev.Membership.UserID != me {
			return ActionIgnore, ""
		}
		return ActionReload, chat.GroupConversationID(ev.Membership.ThreadID)
	}
	return ActionIgnore, ""
}

// Engine keeps the conversation list live: it consumes the three realtime
// streams, applies patches or schedules re-aggregations, and publishes
// change notifications. All list writes happen on the Run goroutine or
// through the List's own locking, preserving the single-writer role.
type Engine struct {
	log  *slog.Logger
	agg  *Aggregator
	list *List
	me   chat.UserID

	events  chan Event
	refresh chan struct{}
	results chan loadResult
	updates chan struct{}

	debounce time.Duration
}

type loadResult struct {
	items       []chat.Conversation
	err         error
	completedAt time.Time
}

func NewEngine(me chat.UserID, agg *Aggregator, log *slog.Logger) *Engine {
	return &Engine{
		log:      log,
		agg:      agg,
		list:     NewList(),
		me:       me,
		events:   make(chan Event, 256),
		refresh:  make(chan struct{}, 1),
		results:  make(chan loadResult, 4),
		updates:  make(chan struct{}, 1),
		debounce: DefaultReloadDebounce,
	}
}

// SetReloadDebounce overrides the reload coalescing window.
func (e *Engine) SetReloadDebounce(d time.Duration) {
	if d > 0 {
		e.debounce = d
	}
}

// Submit hands one decoded realtime event to the engine. It never blocks
// the transport: under backpressure the event is converted into a reload
// request, which is always safe.
func (e *Engine) Submit(ev Event) {
	select {
	case e.events <- ev:
	default:
		e.RequestRefresh()
	}
}

// RequestRefresh schedules a full re-aggregation. Requests coalesce.
func (e *Engine) RequestRefresh() {
	select {
	case e.refresh <- struct{}{}:
	default:
	}
}

// Snapshot returns the current list copy for readers.
func (e *Engine) Snapshot() []chat.Conversation {
	return e.list.Snapshot()
}

// List exposes the underlying store for same-process collaborators
// (rename/hide patches). Readers must still use Snapshot.
func (e *Engine) List() *List {
	return e.list
}

// Updates signals (coalesced) that the list changed.
func (e *Engine) Updates() <-chan struct{} {
	return e.updates
}

// Run drives the engine for the session lifetime. The initial load is
// issued immediately; realtime events are applied in arrival order.
func (e *Engine) Run(ctx context.Context) error {
	e.startLoad(ctx)

	var timer *time.Timer
	var timerC <-chan time.Time
	schedule := func() {
		if timerC != nil {
			return
		}
		timer = time.NewTimer(e.debounce)
		timerC = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-e.events:
			if e.apply(ev) {
				schedule()
			}

		case <-e.refresh:
			schedule()

		case <-timerC:
			timerC = nil
			e.startLoad(ctx)

		case res := <-e.results:
			if res.err != nil {
				// A failed load never empties a populated list.
				e.log.Warn("conversation load failed", "error", res.err)
				continue
			}
			if e.list.Replace(res.items, res.completedAt) {
				e.notify()
			} else {
				e.log.Debug("discarding superseded load result")
			}
		}
	}
}

// apply handles one event; it returns true when a reload must be scheduled.
func (e *Engine) apply(ev Event) bool {
	action, id := Decide(e.me, ev, e.list.Has)
	switch action {
	case ActionIgnore:
		return false
	case ActionReload:
		return true
	}

	switch ev.Source {
	case SourcePairwise:
		m := ev.Message
		if !e.list.ApplyMessageInsert(id, m.ID, m.Content, m.CreatedAt, m.SenderID == e.me) {
			return true
		}
	case SourceGroup:
		m := ev.GroupMessage
		if !e.list.ApplyMessageInsert(id, m.ID, m.Content, m.CreatedAt, m.SenderID == e.me) {
			return true
		}
	}
	e.notify()
	return false
}

func (e *Engine) startLoad(ctx context.Context) {
	go func() {
		items, err := e.agg.Load(ctx, e.me)
		res := loadResult{items: items, err: err, completedAt: time.Now()}
		select {
		case e.results <- res:
		case <-ctx.Done():
		}
	}()
}

func (e *Engine) notify() {
	select {
	case e.updates <- struct{}{}:
	default:
	}
}
