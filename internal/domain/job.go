// Package domain provides domain models used across the enrichment service.
package domain

import (
	"errors"
	"time"
)

// Common errors shared by repositories and services.
var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrTerminalState is returned when mutating a job that already
	// reached completed or failed.
	ErrTerminalState = errors.New("job is in a terminal state")
)

// JobStatus represents the lifecycle state of an enrichment job.
// Transitions: queued -> processing -> {completed | failed}. Terminal
// states are immutable; re-running requires a new job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the status is completed or failed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Record is a single contact/company record flowing through the pipeline.
type Record map[string]any

// GetString returns a trimmed string field, or "" if absent or not a string.
func (r Record) GetString(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Job is one durable unit of work enriching a bounded batch of records
// via one provider/operation. Mutated only by the worker that owns it.
type Job struct {
	ID                string         `db:"id"                 json:"id"`
	UserID            string         `db:"user_id"            json:"user_id"`
	ProviderID        string         `db:"provider_id"        json:"provider_id"`
	Operation         Operation      `db:"operation"          json:"operation"`
	Status            JobStatus      `db:"status"             json:"status"`
	TotalRecords      int            `db:"total_records"      json:"total_records"`
	ProcessedRecords  int            `db:"processed_records"  json:"processed_records"`
	SuccessfulRecords int            `db:"successful_records" json:"successful_records"`
	FailedRecords     int            `db:"failed_records"     json:"failed_records"`
	InputData         []Record       `db:"-"                  json:"input_data,omitempty"`
	OutputData        []Record       `db:"-"                  json:"output_data,omitempty"`
	Configuration     map[string]any `db:"-"                  json:"configuration,omitempty"`
	ErrorDetails      *string        `db:"error_details"      json:"error_details,omitempty"`
	CreatedAt         time.Time      `db:"created_at"         json:"created_at"`
	StartedAt         *time.Time     `db:"started_at"         json:"started_at,omitempty"`
	CompletedAt       *time.Time     `db:"completed_at"       json:"completed_at,omitempty"`
}

// Progress is a point-in-time view of job counters. The invariant
// successful+failed == processed holds at every observation point.
type Progress struct {
	Total      int `json:"total"`
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// Progress returns the job's current progress counters.
func (j *Job) Progress() Progress {
	return Progress{
		Total:      j.TotalRecords,
		Processed:  j.ProcessedRecords,
		Successful: j.SuccessfulRecords,
		Failed:     j.FailedRecords,
	}
}

// LogLevel is the severity of a job log entry.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// JobLogEntry is an append-only record of a per-record failure or other
// noteworthy event during job processing. Never deleted by the pipeline.
type JobLogEntry struct {
	ID        int64     `db:"id"         json:"id"`
	JobID     string    `db:"job_id"     json:"job_id"`
	Level     LogLevel  `db:"level"      json:"level"`
	Message   string    `db:"message"    json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
