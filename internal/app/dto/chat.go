package dto

import "time"

// Conversation is the HTTP projection of one aggregated conversation.
type Conversation struct {
	ID             string        `json:"id"`
	IsGroup        bool          `json:"is_group"`
	ThreadID       string        `json:"thread_id,omitempty"`
	DisplayName    string        `json:"display_name"`
	AvatarInitials string        `json:"avatar_initials"`
	AvatarURL      string        `json:"avatar_url,omitempty"`
	Participants   []Participant `json:"participants,omitempty"`
	LastMessage    string        `json:"last_message"`
	LastMessageAt  *time.Time    `json:"last_message_at,omitempty"`
	UnreadCount    int           `json:"unread_count"`
	HasUnread      bool          `json:"has_unread"`
	RoleLabel      string        `json:"role_label,omitempty"`
	IsAdmin        bool          `json:"is_admin,omitempty"`
	Badges         []Badge       `json:"badges,omitempty"`
}

// Participant is a member identity snapshot.
type Participant struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Affiliation string `json:"affiliation,omitempty"`
}

// Badge decorates an identity.
type Badge struct {
	Icon        string `json:"icon,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// ConversationList is the list endpoint payload.
type ConversationList struct {
	Items []Conversation `json:"items"`
}

// SearchMatches carries the conversation ids whose message content matched.
type SearchMatches struct {
	Query string   `json:"query"`
	IDs   []string `json:"ids"`
}

// StartThreadRequest asks for a group thread with the given participants.
type StartThreadRequest struct {
	ParticipantIDs []string `json:"participant_ids"`
}

// StartThreadResponse returns the resolved thread.
type StartThreadResponse struct {
	ThreadID string `json:"thread_id"`
	Created  bool   `json:"created"`
}

// RenameThreadRequest carries a new thread name.
type RenameThreadRequest struct {
	Name string `json:"name"`
}
