// Package sse streams job lifecycle events to connected clients over
// Server-Sent Events.
package sse

import (
	"context"
	"time"

	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
)

// Event is one Server-Sent Event.
// Format on the wire: event: <Type>\ndata: <JSON payload>\n\n
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
	ID   string `json:"id,omitempty"`
}

// Broker manages SSE connections and event distribution.
type Broker interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context, opts ...ClientOption) (<-chan Event, func())
	Start(ctx context.Context) error
	Stop() error
	ClientCount() int
}

// EventFilter decides whether an event reaches a given client.
type EventFilter func(event Event) bool

// ClientOptions configures a single subscription.
type ClientOptions struct {
	Filter     EventFilter
	BufferSize int
}

// Event types emitted by the job pipeline.
const (
	EventTypeJobStatus    = "job:status"
	EventTypeJobProgress  = "job:progress"
	EventTypeJobCompleted = "job:completed"
)

// JobStatusData is the payload for job:status events.
type JobStatusData struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// JobProgressData is the payload for job:progress events.
type JobProgressData struct {
	JobID             string  `json:"job_id"`
	TotalRecords      int     `json:"total_records"`
	ProcessedRecords  int     `json:"processed_records"`
	SuccessfulRecords int     `json:"successful_records"`
	FailedRecords     int     `json:"failed_records"`
	Percentage        float64 `json:"percentage"`
	Timestamp         string  `json:"timestamp"`
}

// JobCompletedData is the payload for job:completed events.
type JobCompletedData struct {
	JobID             string  `json:"job_id"`
	Status            string  `json:"status"`
	ProcessedRecords  int     `json:"processed_records"`
	SuccessfulRecords int     `json:"successful_records"`
	FailedRecords     int     `json:"failed_records"`
	DurationMs        int64   `json:"duration_ms"`
	ErrorMessage      *string `json:"error_message,omitempty"`
	Timestamp         string  `json:"timestamp"`
}

// NewJobStatusEvent creates a job:status event.
func NewJobStatusEvent(jobID string, status domain.JobStatus) Event {
	return Event{
		Type: EventTypeJobStatus,
		Data: JobStatusData{
			JobID:     jobID,
			Status:    string(status),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// NewJobProgressEvent creates a job:progress event from a progress snapshot.
func NewJobProgressEvent(jobID string, p domain.Progress) Event {
	percentage := 0.0
	if p.Total > 0 {
		percentage = float64(p.Processed) / float64(p.Total) * 100
	}
	return Event{
		Type: EventTypeJobProgress,
		Data: JobProgressData{
			JobID:             jobID,
			TotalRecords:      p.Total,
			ProcessedRecords:  p.Processed,
			SuccessfulRecords: p.Successful,
			FailedRecords:     p.Failed,
			Percentage:        percentage,
			Timestamp:         time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// NewJobCompletedEvent creates a job:completed event.
func NewJobCompletedEvent(jobID string, status domain.JobStatus, p domain.Progress, durationMs int64, errorMessage *string) Event {
	return Event{
		Type: EventTypeJobCompleted,
		Data: JobCompletedData{
			JobID:             jobID,
			Status:            string(status),
			ProcessedRecords:  p.Processed,
			SuccessfulRecords: p.Successful,
			FailedRecords:     p.Failed,
			DurationMs:        durationMs,
			ErrorMessage:      errorMessage,
			Timestamp:         time.Now().UTC().Format(time.RFC3339),
		},
	}
}
