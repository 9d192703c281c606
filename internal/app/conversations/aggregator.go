package conversations

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"linkup/internal/domain/chat"
)

// PreviewLen caps last-message previews in the aggregated list.
const PreviewLen = 120

// Aggregator builds the canonical conversation list: fast path first,
// raw-query fallback when that is unavailable, gap-fill for connections with
// no history, then dedup and sort.
type Aggregator struct {
	store     Store
	directory *Directory
	log       *slog.Logger
}

func NewAggregator(store Store, directory *Directory, log *slog.Logger) *Aggregator {
	return &Aggregator{store: store, directory: directory, log: log}
}

// Load returns the full, deduplicated, sorted conversation list for me.
// Fast-path failure is silent; only a fallback failure is an error, and the
// caller keeps its previous list in that case.
func (a *Aggregator) Load(ctx context.Context, me chat.UserID) ([]chat.Conversation, error) {
	if !chat.ValidUserID(me) {
		return nil, chat.ErrInvalidID
	}

	items, err := a.loadFromSummaries(ctx, me)
	if err != nil {
		a.log.Debug("summary fast path unavailable", "error", err)
		items, err = a.loadFromRaw(ctx, me)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", chat.ErrLoadFailed, err)
		}
	}

	items, err = a.gapFillConnections(ctx, me, items)
	if err != nil {
		// Partial success: the aggregate is still worth showing.
		a.log.Warn("connection gap-fill failed", "error", err)
	}

	items = Dedupe(items)
	SortByRecency(items)
	return items, nil
}

// loadFromSummaries maps pre-aggregated summary rows into conversations and
// enriches them with directory and membership data. Enrichment failures
// degrade the rows rather than discarding them.
func (a *Aggregator) loadFromSummaries(ctx context.Context, me chat.UserID) ([]chat.Conversation, error) {
	rows, err := a.store.ConversationSummaries(ctx, me)
	if err != nil {
		return nil, err
	}

	items := make([]chat.Conversation, 0, len(rows))
	var pairwiseIDs []chat.UserID
	var threadIDs []chat.ThreadID
	for _, row := range rows {
		conv, ok := summaryToConversation(row)
		if !ok {
			a.log.Warn("dropping malformed summary row", "id", row.ID)
			continue
		}
		if conv.IsGroup {
			threadIDs = append(threadIDs, conv.ThreadID)
		} else {
			pairwiseIDs = append(pairwiseIDs, chat.UserID(conv.ID))
		}
		items = append(items, conv)
	}

	if err := a.enrichPairwise(ctx, items, pairwiseIDs); err != nil {
		a.log.Warn("pairwise enrichment failed", "error", err)
	}
	if err := a.enrichGroups(ctx, me, items, threadIDs); err != nil {
		a.log.Warn("group enrichment failed", "error", err)
	}
	return items, nil
}

// summaryToConversation validates one summary row at the boundary. A row
// with a missing id, or a group row without a thread id, is rejected.
func summaryToConversation(row chat.ConversationSummary) (chat.Conversation, bool) {
	if row.ID == "" {
		return chat.Conversation{}, false
	}
	if row.IsGroup && row.ThreadID == "" {
		return chat.Conversation{}, false
	}
	unread := row.UnreadCount
	if unread < 0 {
		unread = 0
	}
	conv := chat.Conversation{
		ID:                 chat.ConversationID(row.ID),
		IsGroup:            row.IsGroup,
		ThreadID:           row.ThreadID,
		DisplayName:        row.DisplayName,
		AvatarURL:          row.AvatarURL,
		RoleLabel:          row.RoleLabel,
		LastMessagePreview: chat.Truncate(row.LastMessageText, PreviewLen),
		UnreadCount:        unread,
	}
	if row.IsGroup {
		conv.ID = chat.GroupConversationID(row.ThreadID)
	}
	if row.LastMessageAt != nil {
		t := *row.LastMessageAt
		conv.LastMessageTimestamp = &t
	}
	conv.AvatarInitials = chat.AvatarInitials(conv.DisplayName)
	return conv, true
}

func (a *Aggregator) enrichPairwise(ctx context.Context, items []chat.Conversation, ids []chat.UserID) error {
	if len(ids) == 0 {
		return nil
	}
	identities, err := a.directory.ResolveMany(ctx, ids)
	if err != nil {
		return err
	}
	for i := range items {
		if items[i].IsGroup {
			continue
		}
		id, ok := identities[chat.UserID(items[i].ID)]
		if !ok {
			continue
		}
		if items[i].DisplayName == "" {
			items[i].DisplayName = id.DisplayName()
		}
		if items[i].AvatarURL == "" {
			items[i].AvatarURL = id.AvatarURL
		}
		items[i].RoleLabel = id.RoleLabel
		items[i].IsAdmin = id.IsAdmin
		items[i].Badges = id.Badges
		items[i].AvatarInitials = chat.AvatarInitials(items[i].DisplayName)
	}
	return nil
}

// enrichGroups fills participants, name overrides and derived display names
// for group skeletons.
func (a *Aggregator) enrichGroups(ctx context.Context, me chat.UserID, items []chat.Conversation, threadIDs []chat.ThreadID) error {
	if len(threadIDs) == 0 {
		return nil
	}
	memberships, err := a.store.MembershipsByThreads(ctx, threadIDs)
	if err != nil {
		return err
	}
	others := chat.ResolveGroupThreads(me, memberships)

	var memberIDs []chat.UserID
	for _, ids := range others {
		memberIDs = append(memberIDs, ids...)
	}
	identities, err := a.directory.ResolveMany(ctx, memberIDs)
	if err != nil {
		return err
	}

	msgs, err := a.store.GroupMessagesByThreads(ctx, threadIDs)
	if err != nil {
		return err
	}
	overrides := chat.LatestThreadNames(msgs)

	for i := range items {
		if !items[i].IsGroup {
			continue
		}
		participants := make([]chat.ParticipantSummary, 0, len(others[items[i].ThreadID]))
		for _, uid := range others[items[i].ThreadID] {
			if id, ok := identities[uid]; ok {
				participants = append(participants, id.ParticipantSummary)
			}
		}
		items[i].Participants = participants
		items[i].DisplayName = chat.GroupDisplayName(overrides[items[i].ThreadID], participants)
		items[i].AvatarInitials = chat.AvatarInitials(items[i].DisplayName)
	}
	return nil
}

// loadFromRaw is the multi-source fallback: group threads with members,
// messages and read markers, then pairwise histories with connected users.
func (a *Aggregator) loadFromRaw(ctx context.Context, me chat.UserID) ([]chat.Conversation, error) {
	groups, err := a.buildGroupConversations(ctx, me)
	if err != nil {
		return nil, err
	}
	pairwise, err := a.buildPairwiseConversations(ctx, me)
	if err != nil {
		return nil, err
	}
	return append(groups, pairwise...), nil
}

func (a *Aggregator) buildGroupConversations(ctx context.Context, me chat.UserID) ([]chat.Conversation, error) {
	mine, err := a.store.MembershipsByUser(ctx, me)
	if err != nil {
		return nil, err
	}
	if len(mine) == 0 {
		return nil, nil
	}
	threadIDs := make([]chat.ThreadID, 0, len(mine))
	for _, m := range mine {
		threadIDs = append(threadIDs, m.ThreadID)
	}

	memberships, err := a.store.MembershipsByThreads(ctx, threadIDs)
	if err != nil {
		return nil, err
	}
	others := chat.ResolveGroupThreads(me, memberships)

	msgs, err := a.store.GroupMessagesByThreads(ctx, threadIDs)
	if err != nil {
		return nil, err
	}

	var unreadCandidates []string
	for _, m := range msgs {
		if m.SenderID != me {
			unreadCandidates = append(unreadCandidates, m.ID)
		}
	}
	markers, err := a.store.ReadMarkersFor(ctx, me, unreadCandidates)
	if err != nil {
		return nil, err
	}

	var memberIDs []chat.UserID
	for _, ids := range others {
		memberIDs = append(memberIDs, ids...)
	}
	identities, err := a.directory.ResolveMany(ctx, memberIDs)
	if err != nil {
		return nil, err
	}

	byThread := make(map[chat.ThreadID][]chat.GroupMessage)
	for _, m := range msgs {
		byThread[m.ThreadID] = append(byThread[m.ThreadID], m)
	}
	latest := chat.LatestGroupMessage(msgs)
	overrides := chat.LatestThreadNames(msgs)

	items := make([]chat.Conversation, 0, len(others))
	for threadID, memberIDs := range others {
		participants := make([]chat.ParticipantSummary, 0, len(memberIDs))
		for _, uid := range memberIDs {
			if id, ok := identities[uid]; ok {
				participants = append(participants, id.ParticipantSummary)
			}
		}
		name := chat.GroupDisplayName(overrides[threadID], participants)
		conv := chat.Conversation{
			ID:             chat.GroupConversationID(threadID),
			IsGroup:        true,
			ThreadID:       threadID,
			Participants:   participants,
			DisplayName:    name,
			AvatarInitials: chat.AvatarInitials(name),
			UnreadCount:    chat.GroupUnread(me, byThread[threadID], markers),
		}
		if last, ok := latest[threadID]; ok {
			t := last.CreatedAt
			conv.LastMessageTimestamp = &t
			conv.LastMessageID = last.ID
			conv.LastMessagePreview = chat.Truncate(last.Content, PreviewLen)
		}
		items = append(items, conv)
	}
	return items, nil
}

func (a *Aggregator) buildPairwiseConversations(ctx context.Context, me chat.UserID) ([]chat.Conversation, error) {
	connections, err := a.store.ConnectionsOf(ctx, me)
	if err != nil {
		return nil, err
	}
	if len(connections) == 0 {
		return nil, nil
	}

	msgs, err := a.store.PairwiseMessages(ctx, me, connections)
	if err != nil {
		return nil, err
	}
	hidden, err := a.store.HiddenMarkersOf(ctx, me)
	if err != nil {
		return nil, err
	}
	hiddenAt := make(map[chat.UserID]chat.HiddenMarker, len(hidden))
	for _, h := range hidden {
		hiddenAt[h.OtherUserID] = h
	}

	byOther := make(map[chat.UserID][]chat.Message)
	for _, m := range msgs {
		other, involved := m.Counterparty(me)
		if !involved {
			continue
		}
		byOther[other] = append(byOther[other], m)
	}

	otherIDs := make([]chat.UserID, 0, len(byOther))
	for id := range byOther {
		otherIDs = append(otherIDs, id)
	}
	identities, err := a.directory.ResolveMany(ctx, otherIDs)
	if err != nil {
		return nil, err
	}

	items := make([]chat.Conversation, 0, len(byOther))
	for other, history := range byOther {
		last := history[0]
		for _, m := range history[1:] {
			if m.CreatedAt.After(last.CreatedAt) {
				last = m
			}
		}
		// A hidden history stays hidden until the counterparty writes again.
		if h, ok := hiddenAt[other]; ok && !last.CreatedAt.After(h.HiddenAt) {
			continue
		}
		conv := pairwiseSkeleton(other, identities[other])
		t := last.CreatedAt
		conv.LastMessageTimestamp = &t
		conv.LastMessageID = last.ID
		conv.LastMessagePreview = chat.Truncate(last.Content, PreviewLen)
		conv.UnreadCount = chat.PairwiseUnread(me, other, history)
		items = append(items, conv)
	}
	return items, nil
}

// gapFillConnections appends a zero-history conversation for every connected
// user not yet present: connections are visible before any message is sent.
func (a *Aggregator) gapFillConnections(ctx context.Context, me chat.UserID, items []chat.Conversation) ([]chat.Conversation, error) {
	connections, err := a.store.ConnectionsOf(ctx, me)
	if err != nil {
		return items, err
	}
	have := make(map[chat.ConversationID]struct{}, len(items))
	for _, c := range items {
		have[c.ID] = struct{}{}
	}
	var missing []chat.UserID
	for _, other := range connections {
		if _, ok := have[chat.PairwiseConversationID(other)]; !ok {
			missing = append(missing, other)
		}
	}
	if len(missing) == 0 {
		return items, nil
	}
	identities, err := a.directory.ResolveMany(ctx, missing)
	if err != nil {
		return items, err
	}
	for _, other := range missing {
		conv := pairwiseSkeleton(other, identities[other])
		conv.LastMessagePreview = chat.NoMessagesPreview
		items = append(items, conv)
	}
	return items, nil
}

func pairwiseSkeleton(other chat.UserID, id Identity) chat.Conversation {
	name := id.DisplayName()
	if name == "" {
		name = string(other)
	}
	return chat.Conversation{
		ID:             chat.PairwiseConversationID(other),
		DisplayName:    name,
		AvatarInitials: chat.AvatarInitials(name),
		AvatarURL:      id.AvatarURL,
		RoleLabel:      id.RoleLabel,
		IsAdmin:        id.IsAdmin,
		Badges:         id.Badges,
	}
}

// Dedupe keeps exactly one conversation per id, last write wins.
func Dedupe(items []chat.Conversation) []chat.Conversation {
	index := make(map[chat.ConversationID]int, len(items))
	out := items[:0]
	for _, c := range items {
		if at, ok := index[c.ID]; ok {
			out[at] = c
			continue
		}
		index[c.ID] = len(out)
		out = append(out, c)
	}
	return out
}

// SortByRecency orders newest-first; conversations without messages sort
// after all timestamped ones, keeping their relative order.
func SortByRecency(items []chat.Conversation) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].LastMessageTimestamp, items[j].LastMessageTimestamp
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
