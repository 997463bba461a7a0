package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	messageField    = "message"
	enqueuedAtField = "enqueued_at"

	defaultMaxStreamLen = 10000
)

// JobMessage is the queue payload. It references the durable job row
// rather than carrying the records; workers load input data from the
// store so the stream stays small.
type JobMessage struct {
	JobID      string    `json:"job_id"`
	UserID     string    `json:"user_id"`
	ProviderID string    `json:"provider_id"`
	Operation  string    `json:"operation"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Producer enqueues job messages onto priority streams.
type Producer struct {
	client       *StreamsClient
	maxStreamLen int64
}

// NewProducer creates a producer. maxStreamLen caps stream growth;
// zero means the default cap.
func NewProducer(client *StreamsClient, maxStreamLen int64) *Producer {
	if maxStreamLen <= 0 {
		maxStreamLen = defaultMaxStreamLen
	}
	return &Producer{client: client, maxStreamLen: maxStreamLen}
}

// Enqueue adds a job message to the stream for its priority and returns
// the stream message id.
func (p *Producer) Enqueue(ctx context.Context, msg *JobMessage, priority Priority) (string, error) {
	if msg == nil || msg.JobID == "" {
		return "", errors.New("job message requires a job id")
	}
	if !priority.IsValid() {
		priority = PriorityNormal
	}
	if msg.EnqueuedAt.IsZero() {
		msg.EnqueuedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("serialize job message: %w", err)
	}

	stream := p.client.StreamName(priority)
	id, err := p.client.xAdd(ctx, stream, map[string]any{
		messageField:    string(payload),
		enqueuedAtField: msg.EnqueuedAt.Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("enqueue to stream %s: %w", stream, err)
	}
	return id, nil
}

// QueueDepth returns the current length of a priority stream.
func (p *Producer) QueueDepth(ctx context.Context, priority Priority) (int64, error) {
	return p.client.XLen(ctx, priority)
}

// TrimAll caps every priority stream at the configured maximum length.
func (p *Producer) TrimAll(ctx context.Context) error {
	for _, priority := range AllPriorities() {
		if err := p.client.XTrimMaxLen(ctx, priority, p.maxStreamLen); err != nil {
			return fmt.Errorf("trim stream %s: %w", priority.String(), err)
		}
	}
	return nil
}
