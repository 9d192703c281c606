package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"linkup/internal/app/conversations"
	"linkup/internal/domain/chat"
	"linkup/internal/infra/config"
)

// changeEnvelope is the wire shape of one change event. Row carries the
// affected record; for deletes only its identifying fields are guaranteed.
type changeEnvelope struct {
	Op  string          `json:"op"`
	Row json.RawMessage `json:"row"`
}

type messageRow struct {
	ID         string `json:"id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
	CreatedAt  int64  `json:"created_at"`
	ReadAt     *int64 `json:"read_at"`
}

type groupMessageRow struct {
	ID         string `json:"id"`
	ThreadID   string `json:"thread_id"`
	SenderID   string `json:"sender_id"`
	Content    string `json:"content"`
	CreatedAt  int64  `json:"created_at"`
	ThreadName string `json:"thread_name"`
	IsSystem   bool   `json:"is_system"`
	SystemType string `json:"system_type"`
}

type membershipRow struct {
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id"`
	JoinedAt int64  `json:"joined_at"`
}

// EventBridge decodes change events off the chat topics and feeds them into
// the sync engine. Topic-level filtering is coarse; fine-grained involvement
// checks stay in the engine.
type EventBridge struct {
	engine *conversations.Engine
	topics config.TopicConfig
	log    *slog.Logger
}

func NewEventBridge(engine *conversations.Engine, topics config.TopicConfig, log *slog.Logger) *EventBridge {
	return &EventBridge{engine: engine, topics: topics, log: log}
}

// Topics lists the subscriptions this bridge consumes.
func (b *EventBridge) Topics() []string {
	return []string{b.topics.Messages, b.topics.GroupMessages, b.topics.Memberships}
}

// Handle decodes one kafka record into an engine event. Undecodable records
// are logged and skipped; the next reload reconverges state.
func (b *EventBridge) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var env changeEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		b.log.Warn("undecodable change event", "topic", msg.Topic, "error", err)
		return nil
	}
	op, ok := parseOp(env.Op)
	if !ok {
		b.log.Warn("unknown change op", "topic", msg.Topic, "op", env.Op)
		return nil
	}

	switch msg.Topic {
	case b.topics.Messages:
		var row messageRow
		if err := json.Unmarshal(env.Row, &row); err != nil {
			return fmt.Errorf("kafka: decode message row: %w", err)
		}
		m := chat.Message{
			ID:         row.ID,
			SenderID:   chat.UserID(row.SenderID),
			ReceiverID: chat.UserID(row.ReceiverID),
			Content:    row.Content,
			CreatedAt:  time.UnixMilli(row.CreatedAt).UTC(),
		}
		if row.ReadAt != nil {
			t := time.UnixMilli(*row.ReadAt).UTC()
			m.ReadAt = &t
		}
		b.engine.Submit(conversations.Event{Source: conversations.SourcePairwise, Op: op, Message: &m})

	case b.topics.GroupMessages:
		var row groupMessageRow
		if err := json.Unmarshal(env.Row, &row); err != nil {
			return fmt.Errorf("kafka: decode group message row: %w", err)
		}
		m := chat.GroupMessage{
			ID:         row.ID,
			ThreadID:   chat.ThreadID(row.ThreadID),
			SenderID:   chat.UserID(row.SenderID),
			Content:    row.Content,
			CreatedAt:  time.UnixMilli(row.CreatedAt).UTC(),
			ThreadName: row.ThreadName,
			IsSystem:   row.IsSystem,
			SystemType: row.SystemType,
		}
		b.engine.Submit(conversations.Event{Source: conversations.SourceGroup, Op: op, GroupMessage: &m})

	case b.topics.Memberships:
		var row membershipRow
		if err := json.Unmarshal(env.Row, &row); err != nil {
			return fmt.Errorf("kafka: decode membership row: %w", err)
		}
		m := chat.Membership{
			ThreadID: chat.ThreadID(row.ThreadID),
			UserID:   chat.UserID(row.UserID),
			JoinedAt: time.UnixMilli(row.JoinedAt).UTC(),
		}
		b.engine.Submit(conversations.Event{Source: conversations.SourceMembership, Op: op, Membership: &m})

	default:
		b.log.Warn("event from unexpected topic", "topic", msg.Topic)
	}
	return nil
}

func parseOp(op string) (conversations.EventOp, bool) {
	switch op {
	case "insert":
		return conversations.OpInsert, true
	case "update":
		return conversations.OpUpdate, true
	case "delete":
		return conversations.OpDelete, true
	}
	return 0, false
}
