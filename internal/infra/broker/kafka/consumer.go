package kafka

import (
	"context"

	"github.com/IBM/sarama"
)

// MessageHandler processes one change record. A non-nil error leaves the
// offset unmarked, so the record is redelivered; handlers must tolerate
// replays.
type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// Consumer drives a consumer group over the chat change topics.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
}

// NewConsumer joins the consumer group. A nil cfg gets defaults suited to
// the sync engine: the initial load covers all history, so consumption
// starts at the newest offsets instead of replaying the topic.
func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, handler MessageHandler) (*Consumer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
		cfg.Version = sarama.V2_5_0_0
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	g, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	return &Consumer{group: g, handler: handler}, nil
}

// Run consumes until ctx is cancelled, rejoining the group after each
// rebalance.
func (c *Consumer) Run(ctx context.Context, topics []string) error {
	for {
		if err := c.group.Consume(ctx, topics, changeClaimHandler{handler: c.handler}); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type changeClaimHandler struct {
	handler MessageHandler
}

func (h changeClaimHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h changeClaimHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h changeClaimHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := h.handler.Handle(sess.Context(), message); err != nil {
			// unmarked: the record comes back on the next rebalance
			continue
		}
		sess.MarkMessage(message, "")
	}
	return nil
}
