package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*Producer, *Consumer) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	streams := NewStreamsClientFromRedis(client, "enrichment")
	producer := NewProducer(streams, 0)

	consumer, err := NewConsumer(streams, ConsumerConfig{
		ConsumerID:   "worker-test",
		BlockTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, consumer.Initialize(context.Background()))

	return producer, consumer
}

func TestEnqueueAndConsumeRoundTrip(t *testing.T) {
	producer, consumer := newTestQueue(t)
	ctx := context.Background()

	id, err := producer.Enqueue(ctx, &JobMessage{
		JobID:      "job-1",
		UserID:     "user-1",
		ProviderID: "hunter",
		Operation:  "find_email",
	}, PriorityNormal)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	messages, err := consumer.Read(ctx)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	msg := messages[0]
	assert.Equal(t, "job-1", msg.Message.JobID)
	assert.Equal(t, "hunter", msg.Message.ProviderID)
	assert.Equal(t, PriorityNormal, msg.Priority)
	assert.False(t, msg.Message.EnqueuedAt.IsZero())

	require.NoError(t, consumer.Acknowledge(ctx, msg))
}

func TestEnqueueRequiresJobID(t *testing.T) {
	producer, _ := newTestQueue(t)

	_, err := producer.Enqueue(context.Background(), &JobMessage{}, PriorityNormal)
	assert.Error(t, err)

	_, err = producer.Enqueue(context.Background(), nil, PriorityNormal)
	assert.Error(t, err)
}

func TestHighPriorityReadFirst(t *testing.T) {
	producer, consumer := newTestQueue(t)
	ctx := context.Background()

	_, err := producer.Enqueue(ctx, &JobMessage{JobID: "job-low"}, PriorityLow)
	require.NoError(t, err)
	_, err = producer.Enqueue(ctx, &JobMessage{JobID: "job-high"}, PriorityHigh)
	require.NoError(t, err)

	messages, err := consumer.Read(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, messages)
	assert.Equal(t, "job-high", messages[0].Message.JobID)
}

func TestInvalidPriorityFallsBackToNormal(t *testing.T) {
	producer, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := producer.Enqueue(ctx, &JobMessage{JobID: "job-1"}, Priority(99))
	require.NoError(t, err)

	depth, err := producer.QueueDepth(ctx, PriorityNormal)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
}

func TestQueueDepth(t *testing.T) {
	producer, _ := newTestQueue(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := producer.Enqueue(ctx, &JobMessage{JobID: "job"}, PriorityNormal)
		require.NoError(t, err)
	}

	depth, err := producer.QueueDepth(ctx, PriorityNormal)
	require.NoError(t, err)
	assert.Equal(t, int64(3), depth)
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in      string
		want    Priority
		wantErr bool
	}{
		{"high", PriorityHigh, false},
		{"normal", PriorityNormal, false},
		{"", PriorityNormal, false},
		{"low", PriorityLow, false},
		{"urgent", PriorityNormal, true},
	}

	for _, tt := range tests {
		got, err := ParsePriority(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
		} else {
			assert.NoError(t, err, tt.in)
		}
		assert.Equal(t, tt.want, got, tt.in)
	}
}
