package memory

import (
	"context"
	"strings"
	"sync"

	"linkup/internal/app/conversations"
	"linkup/internal/domain/chat"
)

type hiddenKey struct {
	user  chat.UserID
	other chat.UserID
}

// ChatStore is an in-memory implementation of the storage collaborator,
// used by tests and the local demo mode.
type ChatStore struct {
	mu            sync.RWMutex
	profiles      map[chat.UserID]conversations.Identity
	connections   map[chat.UserID][]chat.UserID
	messages      []chat.Message
	groupMessages []chat.GroupMessage
	memberships   []chat.Membership
	readMarkers   []chat.ReadMarker
	hidden        map[hiddenKey]chat.HiddenMarker
	summaries     map[chat.UserID][]chat.ConversationSummary

	summariesEnabled bool
	summariesErr     error
	rawErr           error
}

// NewChatStore builds an empty store. The summary fast path starts
// disabled; seed it with SetSummaries.
func NewChatStore() *ChatStore {
	return &ChatStore{
		profiles:    make(map[chat.UserID]conversations.Identity),
		connections: make(map[chat.UserID][]chat.UserID),
		hidden:      make(map[hiddenKey]chat.HiddenMarker),
		summaries:   make(map[chat.UserID][]chat.ConversationSummary),
	}
}

// SeedProfile registers an identity.
func (s *ChatStore) SeedProfile(id conversations.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[id.ID] = id
}

// Connect records a mutual connection.
func (s *ChatStore) Connect(a, b chat.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[a] = append(s.connections[a], b)
	s.connections[b] = append(s.connections[b], a)
}

// AddMessage appends a pairwise message row.
func (s *ChatStore) AddMessage(m chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
}

// AddGroupMessage appends a group message row.
func (s *ChatStore) AddGroupMessage(m chat.GroupMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupMessages = append(s.groupMessages, m)
}

// AddMembership appends a membership row.
func (s *ChatStore) AddMembership(m chat.Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships = append(s.memberships, m)
}

// MarkRead records a read marker.
func (s *ChatStore) MarkRead(me chat.UserID, messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readMarkers = append(s.readMarkers, chat.ReadMarker{UserID: me, MessageID: messageID})
}

// SetSummaries enables the fast path with the given rows for me.
func (s *ChatStore) SetSummaries(me chat.UserID, rows []chat.ConversationSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[me] = rows
	s.summariesEnabled = true
	s.summariesErr = nil
}

// FailSummaries makes the fast path return err until re-seeded.
func (s *ChatStore) FailSummaries(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summariesEnabled = true
	s.summariesErr = err
}

// FailRawQueries makes the raw read queries return err until reset to nil.
func (s *ChatStore) FailRawQueries(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rawErr = err
}

func (s *ChatStore) ConversationSummaries(ctx context.Context, me chat.UserID) ([]chat.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.summariesEnabled {
		return nil, conversations.ErrSummariesUnavailable
	}
	if s.summariesErr != nil {
		return nil, s.summariesErr
	}
	rows := make([]chat.ConversationSummary, len(s.summaries[me]))
	copy(rows, s.summaries[me])
	return rows, nil
}

func (s *ChatStore) ProfilesByIDs(ctx context.Context, ids []chat.UserID) (map[chat.UserID]conversations.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[chat.UserID]conversations.Identity, len(ids))
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *ChatStore) ConnectionsOf(ctx context.Context, me chat.UserID) ([]chat.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rawErr != nil {
		return nil, s.rawErr
	}
	out := make([]chat.UserID, len(s.connections[me]))
	copy(out, s.connections[me])
	return out, nil
}

func (s *ChatStore) PairwiseMessages(ctx context.Context, me chat.UserID, others []chat.UserID) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[chat.UserID]struct{}, len(others))
	for _, id := range others {
		want[id] = struct{}{}
	}
	var out []chat.Message
	for _, m := range s.messages {
		other, involved := m.Counterparty(me)
		if !involved {
			continue
		}
		if _, ok := want[other]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *ChatStore) MembershipsByUser(ctx context.Context, me chat.UserID) ([]chat.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rawErr != nil {
		return nil, s.rawErr
	}
	var out []chat.Membership
	for _, m := range s.memberships {
		if m.UserID == me {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *ChatStore) MembershipsByThreads(ctx context.Context, ids []chat.ThreadID) ([]chat.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[chat.ThreadID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []chat.Membership
	for _, m := range s.memberships {
		if _, ok := want[m.ThreadID]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *ChatStore) GroupMessagesByThreads(ctx context.Context, ids []chat.ThreadID) ([]chat.GroupMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[chat.ThreadID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []chat.GroupMessage
	for _, m := range s.groupMessages {
		if _, ok := want[m.ThreadID]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *ChatStore) ReadMarkersFor(ctx context.Context, me chat.UserID, messageIDs []string) ([]chat.ReadMarker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[string]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		want[id] = struct{}{}
	}
	var out []chat.ReadMarker
	for _, m := range s.readMarkers {
		if m.UserID != me {
			continue
		}
		if _, ok := want[m.MessageID]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *ChatStore) HiddenMarkersOf(ctx context.Context, me chat.UserID) ([]chat.HiddenMarker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []chat.HiddenMarker
	for k, m := range s.hidden {
		if k.user == me {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *ChatStore) SearchPairwiseMessages(ctx context.Context, me chat.UserID, pattern string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(unescapeLike(pattern))
	var out []chat.Message
	for _, m := range s.messages {
		if _, involved := m.Counterparty(me); !involved {
			continue
		}
		if strings.Contains(strings.ToLower(m.Content), needle) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *ChatStore) SearchGroupMessages(ctx context.Context, me chat.UserID, pattern string) ([]chat.GroupMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mine := make(map[chat.ThreadID]struct{})
	for _, m := range s.memberships {
		if m.UserID == me {
			mine[m.ThreadID] = struct{}{}
		}
	}
	needle := strings.ToLower(unescapeLike(pattern))
	var out []chat.GroupMessage
	for _, m := range s.groupMessages {
		if _, ok := mine[m.ThreadID]; !ok {
			continue
		}
		if strings.Contains(strings.ToLower(m.Content), needle) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *ChatStore) InsertMemberships(ctx context.Context, rows []chat.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships = append(s.memberships, rows...)
	return nil
}

func (s *ChatStore) DeleteMembership(ctx context.Context, threadID chat.ThreadID, userID chat.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.memberships[:0]
	for _, m := range s.memberships {
		if m.ThreadID == threadID && m.UserID == userID {
			continue
		}
		out = append(out, m)
	}
	s.memberships = out
	return nil
}

func (s *ChatStore) InsertGroupMessage(ctx context.Context, msg chat.GroupMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupMessages = append(s.groupMessages, msg)
	return nil
}

func (s *ChatStore) BackfillThreadName(ctx context.Context, threadID chat.ThreadID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.groupMessages {
		if s.groupMessages[i].ThreadID == threadID {
			s.groupMessages[i].ThreadName = name
		}
	}
	return nil
}

func (s *ChatStore) UpsertHiddenMarker(ctx context.Context, marker chat.HiddenMarker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden[hiddenKey{user: marker.UserID, other: marker.OtherUserID}] = marker
	return nil
}

func (s *ChatStore) DeleteHiddenMarker(ctx context.Context, me, other chat.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hidden, hiddenKey{user: me, other: other})
	return nil
}

func (s *ChatStore) DeletePairwiseMessages(ctx context.Context, me, other chat.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.messages[:0]
	for _, m := range s.messages {
		if o, involved := m.Counterparty(me); involved && o == other {
			continue
		}
		out = append(out, m)
	}
	s.messages = out
	return nil
}

func unescapeLike(pattern string) string {
	var b strings.Builder
	escaped := false
	for _, r := range pattern {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
