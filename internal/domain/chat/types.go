package chat

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidID         = errors.New("chat: invalid identifier")
	ErrInvalidThreadName = errors.New("chat: invalid thread name")
	ErrThreadNotFound    = errors.New("chat: thread not found")
	ErrNotAMember        = errors.New("chat: caller is not a thread member")
	ErrLoadFailed        = errors.New("chat: conversation load failed")
)

type UserID string

type ThreadID string

// ThreadIDPrefix marks synthetic conversation ids derived from group threads.
const ThreadIDPrefix = "thread:"

// ConversationID is either a counterparty UserID (pairwise) or
// "thread:<threadID>" (group).
type ConversationID string

func PairwiseConversationID(counterparty UserID) ConversationID {
	return ConversationID(counterparty)
}

func GroupConversationID(id ThreadID) ConversationID {
	return ConversationID(ThreadIDPrefix + string(id))
}

// ThreadIDOf extracts the thread id from a group conversation id.
// The second return is false for pairwise ids.
func ThreadIDOf(id ConversationID) (ThreadID, bool) {
	s := string(id)
	if !strings.HasPrefix(s, ThreadIDPrefix) {
		return "", false
	}
	return ThreadID(s[len(ThreadIDPrefix):]), true
}

type Role string

const (
	RoleMember    Role = "member"
	RoleMentor    Role = "mentor"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Badge is decorative identity information; all fields may be empty.
type Badge struct {
	Icon        string
	ImageURL    string
	Label       string
	Description string
}

// ParticipantSummary is an immutable identity snapshot fetched in batch.
type ParticipantSummary struct {
	ID          UserID
	FirstName   string
	LastName    string
	AvatarKey   string
	AvatarURL   string
	Affiliation string
}

func (p ParticipantSummary) DisplayName() string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return string(p.ID)
	}
	return name
}

// Conversation is the unit of display: one per counterparty or group thread.
// It is derived state, recomputed on load and patched on realtime events.
type Conversation struct {
	ID                   ConversationID
	IsGroup              bool
	ThreadID             ThreadID
	Participants         []ParticipantSummary
	DisplayName          string
	AvatarInitials       string
	AvatarURL            string
	LastMessagePreview   string
	LastMessageTimestamp *time.Time
	LastMessageID        string
	UnreadCount          int
	RoleLabel            string
	IsAdmin              bool
	Badges               []Badge
}

func (c Conversation) HasUnread() bool {
	return c.UnreadCount > 0
}

// NoMessagesPreview is shown for connections with no history yet.
const NoMessagesPreview = "No messages yet"

// Message is a raw pairwise message row. ReadAt == nil means the receiver
// has not seen it.
type Message struct {
	ID         string
	SenderID   UserID
	ReceiverID UserID
	Content    string
	CreatedAt  time.Time
	ReadAt     *time.Time
}

// Counterparty returns the other party of a pairwise message, and false if
// me is not involved at all.
func (m Message) Counterparty(me UserID) (UserID, bool) {
	switch me {
	case m.SenderID:
		return m.ReceiverID, true
	case m.ReceiverID:
		return m.SenderID, true
	}
	return "", false
}

// GroupMessage is a raw group-thread message row. ThreadName carries the
// display-name override current for the thread; the latest non-empty value
// wins. System messages (joins, renames) are flagged with a type.
type GroupMessage struct {
	ID         string
	ThreadID   ThreadID
	SenderID   UserID
	Content    string
	CreatedAt  time.Time
	ThreadName string
	IsSystem   bool
	SystemType string
}

const (
	SystemTypeRename = "rename"
	SystemTypeJoin   = "join"
	SystemTypeLeave  = "leave"
)

// Membership ties a user to a group thread. A thread's participant set is
// exactly its membership rows.
type Membership struct {
	ThreadID ThreadID
	UserID   UserID
	JoinedAt time.Time
}

// ReadMarker records that a user has seen a specific group message.
// Absence of a marker means unread.
type ReadMarker struct {
	UserID    UserID
	MessageID string
}

// Connection is an accepted relationship between two users.
type Connection struct {
	UserID      UserID
	OtherUserID UserID
}

// ConversationSummary is one pre-aggregated fast-path row. The engine
// validates the shape at the boundary and never trusts it blindly.
type ConversationSummary struct {
	ID              string
	DisplayName     string
	AvatarKey       string
	AvatarURL       string
	RoleLabel       string
	IsGroup         bool
	ThreadID        ThreadID
	LastMessageText string
	LastMessageAt   *time.Time
	UnreadCount     int
}

// HiddenMarker soft-hides one side of a pairwise history.
type HiddenMarker struct {
	UserID      UserID
	OtherUserID UserID
	HiddenAt    time.Time
}
