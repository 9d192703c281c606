package conversations

import (
	"context"
	"errors"

	"linkup/internal/domain/chat"
)

// ErrSummariesUnavailable signals that the pre-aggregated summary view is
// absent. It is not a failure: the aggregator silently falls back to the
// raw-query path.
var ErrSummariesUnavailable = errors.New("conversations: summaries unavailable")

// Identity is a participant profile together with its decorative fields.
// Role and badges degrade to empty values when unavailable.
type Identity struct {
	chat.ParticipantSummary
	RoleLabel string
	IsAdmin   bool
	Badges    []chat.Badge
}

// Store is the storage collaborator contract. Every query is batched: one
// round trip per id set. Authorization is enforced by the implementation.
type Store interface {
	// ConversationSummaries returns the optional pre-aggregated fast-path
	// rows for the caller, or ErrSummariesUnavailable.
	ConversationSummaries(ctx context.Context, me chat.UserID) ([]chat.ConversationSummary, error)

	ProfilesByIDs(ctx context.Context, ids []chat.UserID) (map[chat.UserID]Identity, error)
	ConnectionsOf(ctx context.Context, me chat.UserID) ([]chat.UserID, error)

	// PairwiseMessages returns all messages exchanged between me and any of
	// the given counterparties.
	PairwiseMessages(ctx context.Context, me chat.UserID, others []chat.UserID) ([]chat.Message, error)
	MembershipsByUser(ctx context.Context, me chat.UserID) ([]chat.Membership, error)
	MembershipsByThreads(ctx context.Context, ids []chat.ThreadID) ([]chat.Membership, error)
	GroupMessagesByThreads(ctx context.Context, ids []chat.ThreadID) ([]chat.GroupMessage, error)
	ReadMarkersFor(ctx context.Context, me chat.UserID, messageIDs []string) ([]chat.ReadMarker, error)
	HiddenMarkersOf(ctx context.Context, me chat.UserID) ([]chat.HiddenMarker, error)

	// SearchPairwiseMessages and SearchGroupMessages run a case-insensitive
	// substring match; the pattern arrives with LIKE metacharacters already
	// escaped. Group search is scoped to threads me belongs to.
	SearchPairwiseMessages(ctx context.Context, me chat.UserID, pattern string) ([]chat.Message, error)
	SearchGroupMessages(ctx context.Context, me chat.UserID, pattern string) ([]chat.GroupMessage, error)

	InsertMemberships(ctx context.Context, rows []chat.Membership) error
	DeleteMembership(ctx context.Context, threadID chat.ThreadID, userID chat.UserID) error
	InsertGroupMessage(ctx context.Context, msg chat.GroupMessage) error
	// BackfillThreadName rewrites thread_name on prior messages of the
	// thread so history always reflects the latest name.
	BackfillThreadName(ctx context.Context, threadID chat.ThreadID, name string) error
	UpsertHiddenMarker(ctx context.Context, marker chat.HiddenMarker) error
	DeleteHiddenMarker(ctx context.Context, me, other chat.UserID) error
	DeletePairwiseMessages(ctx context.Context, me, other chat.UserID) error
}

// AvatarResolver maps avatar object keys to fetchable URLs in batch.
// Failures degrade to initials-only rendering, never to an error upstream.
type AvatarResolver interface {
	ResolveAvatars(ctx context.Context, keys []string) (map[string]string, error)
}

// EventSource identifies which realtime stream produced an event.
type EventSource int

const (
	SourcePairwise EventSource = iota
	SourceGroup
	SourceMembership
)

// EventOp is the change kind carried by a realtime event.
type EventOp int

const (
	OpInsert EventOp = iota
	OpUpdate
	OpDelete
)

// Event is one decoded realtime change. Exactly one payload field is set,
// matching Source. Server-side filters are coarser than needed, so the
// engine re-checks involvement itself.
type Event struct {
	Source       EventSource
	Op           EventOp
	Message      *chat.Message
	GroupMessage *chat.GroupMessage
	Membership   *chat.Membership
}
