package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultConsumerGroup = "enrichment-workers"
	defaultBlockTimeout  = 5 * time.Second
	defaultBatchSize     = 10
	defaultClaimMinIdle  = 5 * time.Minute
	maxPendingCheck      = 100
)

// Consumer reads job messages from the priority streams via a consumer
// group. Messages stay pending until acknowledged, and stale pending
// messages from dead consumers are reclaimed.
type Consumer struct {
	client        *StreamsClient
	consumerGroup string
	consumerID    string
	blockTimeout  time.Duration
	batchSize     int64
	claimMinIdle  time.Duration
}

// ConsumerConfig holds consumer settings; zero values fall back to
// defaults except ConsumerID, which is required.
type ConsumerConfig struct {
	ConsumerGroup string
	ConsumerID    string
	BlockTimeout  time.Duration
	BatchSize     int64
	ClaimMinIdle  time.Duration
}

// ConsumedMessage is a job message read from a stream, paired with what
// is needed to acknowledge it.
type ConsumedMessage struct {
	MessageID string
	Priority  Priority
	Message   *JobMessage
}

// NewConsumer creates a consumer.
func NewConsumer(client *StreamsClient, cfg ConsumerConfig) (*Consumer, error) {
	if cfg.ConsumerID == "" {
		return nil, errors.New("consumer ID is required")
	}

	c := &Consumer{
		client:        client,
		consumerGroup: cfg.ConsumerGroup,
		consumerID:    cfg.ConsumerID,
		blockTimeout:  cfg.BlockTimeout,
		batchSize:     cfg.BatchSize,
		claimMinIdle:  cfg.ClaimMinIdle,
	}
	if c.consumerGroup == "" {
		c.consumerGroup = defaultConsumerGroup
	}
	if c.blockTimeout <= 0 {
		c.blockTimeout = defaultBlockTimeout
	}
	if c.batchSize <= 0 {
		c.batchSize = defaultBatchSize
	}
	if c.claimMinIdle <= 0 {
		c.claimMinIdle = defaultClaimMinIdle
	}
	return c, nil
}

// Initialize creates the consumer group on every priority stream.
func (c *Consumer) Initialize(ctx context.Context) error {
	for _, priority := range AllPriorities() {
		stream := c.client.StreamName(priority)
		if err := c.client.CreateConsumerGroup(ctx, stream, c.consumerGroup); err != nil {
			return fmt.Errorf("create consumer group for %s: %w", stream, err)
		}
	}
	return nil
}

// Read returns the next batch of messages. Reclaimed stale messages take
// precedence over new ones; otherwise streams are read in priority order.
func (c *Consumer) Read(ctx context.Context) ([]*ConsumedMessage, error) {
	if reclaimed := c.reclaimPending(ctx); len(reclaimed) > 0 {
		return reclaimed, nil
	}
	return c.readNew(ctx)
}

// Acknowledge marks a message as processed so it is not redelivered.
func (c *Consumer) Acknowledge(ctx context.Context, msg *ConsumedMessage) error {
	if msg == nil {
		return errors.New("message cannot be nil")
	}
	stream := c.client.StreamName(msg.Priority)
	return c.client.xAck(ctx, stream, c.consumerGroup, msg.MessageID)
}

func (c *Consumer) readNew(ctx context.Context) ([]*ConsumedMessage, error) {
	priorities := AllPriorities()
	streams := make([]string, 0, len(priorities)*2)
	byStream := make(map[string]Priority, len(priorities))
	for _, priority := range priorities {
		name := c.client.StreamName(priority)
		streams = append(streams, name)
		byStream[name] = priority
	}
	for range priorities {
		streams = append(streams, ">")
	}

	results, err := c.client.xReadGroup(ctx, c.consumerGroup, c.consumerID, streams, c.batchSize, c.blockTimeout)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read from streams: %w", err)
	}

	// Empty streams are omitted from the reply, so map back by name.
	var out []*ConsumedMessage
	for _, stream := range results {
		priority, ok := byStream[stream.Stream]
		if !ok {
			continue
		}
		for _, raw := range stream.Messages {
			msg, parseErr := parseMessage(raw, priority)
			if parseErr != nil {
				continue
			}
			out = append(out, msg)
		}
	}
	return out, nil
}

// reclaimPending claims messages left pending by dead consumers past the
// idle threshold. Errors are swallowed per priority so one broken stream
// does not stall the others.
func (c *Consumer) reclaimPending(ctx context.Context) []*ConsumedMessage {
	var reclaimed []*ConsumedMessage

	for _, priority := range AllPriorities() {
		stream := c.client.StreamName(priority)

		pending, err := c.client.xPendingExt(ctx, stream, c.consumerGroup, maxPendingCheck)
		if err != nil {
			continue
		}

		var ids []string
		for _, entry := range pending {
			if entry.Idle >= c.claimMinIdle {
				ids = append(ids, entry.ID)
			}
		}
		if len(ids) == 0 {
			continue
		}

		claimed, err := c.client.xClaim(ctx, stream, c.consumerGroup, c.consumerID, c.claimMinIdle, ids...)
		if err != nil {
			continue
		}

		for _, raw := range claimed {
			msg, parseErr := parseMessage(raw, priority)
			if parseErr != nil {
				continue
			}
			reclaimed = append(reclaimed, msg)
		}
	}
	return reclaimed
}

func parseMessage(raw redis.XMessage, priority Priority) (*ConsumedMessage, error) {
	payload, ok := raw.Values[messageField].(string)
	if !ok {
		return nil, errors.New("missing or invalid message payload")
	}

	var msg JobMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return nil, fmt.Errorf("unmarshal job message: %w", err)
	}

	return &ConsumedMessage{
		MessageID: raw.ID,
		Priority:  priority,
		Message:   &msg,
	}, nil
}

// ConsumerGroup returns the group name.
func (c *Consumer) ConsumerGroup() string { return c.consumerGroup }

// ConsumerID returns this consumer's identifier.
func (c *Consumer) ConsumerID() string { return c.consumerID }
