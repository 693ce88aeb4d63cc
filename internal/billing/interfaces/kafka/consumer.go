package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"

	"energy-billing/internal/observability/logging"
	"energy-billing/internal/observability/metrics"
)

// Config selects the upstream billing topic.
type Config struct {
	Brokers []string
	GroupID string
	Topic   string
}

// Consumer feeds a consumer group's messages to a Dispatcher.
type Consumer struct {
	cfg        Config
	group      sarama.ConsumerGroup
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewConsumer joins the consumer group.
func NewConsumer(cfg Config, dispatcher *Dispatcher, logger *zap.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 || cfg.GroupID == "" || cfg.Topic == "" {
		return nil, errors.New("billing consumer: brokers, group and topic are required")
	}
	if dispatcher == nil {
		return nil, errors.New("billing consumer: nil dispatcher")
	}
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Return.Errors = true
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}
	return &Consumer{cfg: cfg, group: group, dispatcher: dispatcher, logger: logging.OrNop(logger).Named("billing-consumer")}, nil
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("consumer group error", zap.Error(err))
		}
	}()

	handler := &groupHandler{ctx: ctx, dispatcher: c.dispatcher, logger: c.logger}
	for {
		if err := c.group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	ctx        context.Context
	dispatcher *Dispatcher
	logger     *zap.Logger
}

func (h *groupHandler) Setup(_ sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(_ sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks every message, including ones that failed; upstream
// edits are not retried by the consumer.
func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if h.ctx.Err() != nil {
			return h.ctx.Err()
		}
		if !message.Timestamp.IsZero() {
			metrics.ObserveConsumerLag("billing", time.Since(message.Timestamp))
		}
		report, err := h.dispatcher.Dispatch(session.Context(), message.Value)
		switch {
		case err != nil:
			h.logger.Warn("billing message failed",
				zap.String("topic", message.Topic),
				zap.Int32("partition", message.Partition),
				zap.Int64("offset", message.Offset),
				zap.Error(err),
			)
		case len(report.Failed) > 0:
			h.logger.Warn("billing message partially applied",
				zap.Int64("offset", message.Offset),
				zap.Strings("failed", report.FailedIDs()),
			)
		default:
			h.logger.Debug("billing message applied",
				zap.Int64("offset", message.Offset),
				zap.Int("updated", len(report.Updated)),
			)
		}
		session.MarkMessage(message, "")
	}
	return nil
}
