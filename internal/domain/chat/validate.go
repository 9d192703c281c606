package chat

import (
	"strings"

	"github.com/google/uuid"
)

// ValidUserID reports whether id is a well-formed user identifier. Malformed
// ids are rejected before any storage query is issued.
func ValidUserID(id UserID) bool {
	return uuid.Validate(string(id)) == nil
}

// ValidThreadID reports whether id is a well-formed thread identifier.
func ValidThreadID(id ThreadID) bool {
	return uuid.Validate(string(id)) == nil
}

// ParseConversationID validates a conversation id and splits it into its
// pairwise or group form.
func ParseConversationID(raw string) (ConversationID, bool, error) {
	raw = strings.TrimSpace(raw)
	if tid, ok := ThreadIDOf(ConversationID(raw)); ok {
		if !ValidThreadID(tid) {
			return "", false, ErrInvalidID
		}
		return ConversationID(raw), true, nil
	}
	if !ValidUserID(UserID(raw)) {
		return "", false, ErrInvalidID
	}
	return ConversationID(raw), false, nil
}
