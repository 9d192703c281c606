package conversations

import (
	"sync"
	"time"

	"linkup/internal/domain/chat"
)

// List owns the in-memory conversation list. There is exactly one writer
// role (the sync engine); readers only ever get value snapshots.
//
// Concurrent loads and patches resolve by completion time: Replace carries
// the load's completion stamp and is discarded when a later-completing load
// already landed. Patches always apply to whatever list is current.
// seenMessageCap bounds the applied-id memory used to absorb redelivery.
const seenMessageCap = 256

type List struct {
	mu         sync.RWMutex
	items      []chat.Conversation
	replacedAt time.Time

	// The broker delivers at least once; a rebalance can replay a whole
	// batch, so comparing against LastMessageID alone misses duplicates
	// that arrive interleaved with newer messages.
	seen      map[string]struct{}
	seenOrder []string
}

func NewList() *List {
	return &List{seen: make(map[string]struct{})}
}

// Snapshot returns a copy of the current list.
func (l *List) Snapshot() []chat.Conversation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]chat.Conversation, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the current list size.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Get returns the conversation with the given id.
func (l *List) Get(id chat.ConversationID) (chat.Conversation, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, c := range l.items {
		if c.ID == id {
			return c, true
		}
	}
	return chat.Conversation{}, false
}

// Has reports whether a conversation with the given id is present.
func (l *List) Has(id chat.ConversationID) bool {
	_, ok := l.Get(id)
	return ok
}

// Replace installs a freshly-loaded list. It returns false when a load that
// completed later has already been installed; the stale result is dropped.
func (l *List) Replace(items []chat.Conversation, completedAt time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !completedAt.After(l.replacedAt) {
		return false
	}
	l.items = items
	l.replacedAt = completedAt
	return true
}

// ApplyMessageInsert patches one conversation in place for an incoming
// message: preview and timestamp move forward, unread grows by one iff the
// message is from someone else, and the list is re-sorted by the message's
// own createdAt. Applying the same message twice is a no-op. Returns false
// when the conversation is unknown and a full reload is needed instead.
func (l *List) ApplyMessageInsert(id chat.ConversationID, msgID, content string, createdAt time.Time, fromMe bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.items[i].ID != id {
			continue
		}
		if _, dup := l.seen[msgID]; dup || l.items[i].LastMessageID == msgID {
			return true
		}
		l.remember(msgID)
		l.items[i].LastMessageID = msgID
		l.items[i].LastMessagePreview = chat.Truncate(content, PreviewLen)
		t := createdAt
		l.items[i].LastMessageTimestamp = &t
		if !fromMe {
			l.items[i].UnreadCount++
		}
		SortByRecency(l.items)
		return true
	}
	return false
}

// remember records an applied message id, evicting the oldest past the cap.
func (l *List) remember(msgID string) {
	l.seen[msgID] = struct{}{}
	l.seenOrder = append(l.seenOrder, msgID)
	if len(l.seenOrder) > seenMessageCap {
		delete(l.seen, l.seenOrder[0])
		l.seenOrder = l.seenOrder[1:]
	}
}

// SetThreadName renames a group conversation in place, returning the
// previous name for optimistic-revert. False when the thread is unknown.
func (l *List) SetThreadName(threadID chat.ThreadID, name string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := chat.GroupConversationID(threadID)
	for i := range l.items {
		if l.items[i].ID != id {
			continue
		}
		prev := l.items[i].DisplayName
		l.items[i].DisplayName = name
		l.items[i].AvatarInitials = chat.AvatarInitials(name)
		return prev, true
	}
	return "", false
}

// Remove drops a conversation from the list.
func (l *List) Remove(id chat.ConversationID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.items[i].ID == id {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}
