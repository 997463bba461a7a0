// Package worker consumes job messages from the queue and drives record
// enrichment against providers.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
	"github.com/jonesrussell/north-cloud/enrichment/internal/logger"
	"github.com/jonesrussell/north-cloud/enrichment/internal/metrics"
	"github.com/jonesrussell/north-cloud/enrichment/internal/provider"
	"github.com/jonesrussell/north-cloud/enrichment/internal/queue"
	"github.com/jonesrussell/north-cloud/enrichment/internal/sse"
)

// defaultPersistEvery is how many records are processed between
// intermediate counter flushes.
const defaultPersistEvery = 10

// JobStore is the job persistence surface the processor needs.
type JobStore interface {
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	MarkProcessing(ctx context.Context, id string) error
	UpdateProgress(ctx context.Context, id string, processed, successful, failed int) error
	Complete(ctx context.Context, id string, output []domain.Record, processed, successful, failed int) error
	Fail(ctx context.Context, id, errorDetails string) error
	AppendLog(ctx context.Context, jobID string, level domain.LogLevel, message string) error
}

// ProviderResolver resolves provider ids into authenticated clients.
type ProviderResolver interface {
	GetProvider(ctx context.Context, providerID, userID string) (provider.Client, error)
}

// EventPublisher pushes job lifecycle events to SSE subscribers.
// Publish failures are non-fatal; events are best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, event sse.Event) error
}

// Processor executes one job end to end: records are enriched
// sequentially, per-record failures are tallied and logged, and only an
// authentication failure aborts the whole job.
type Processor struct {
	jobs         JobStore
	resolver     ProviderResolver
	events       EventPublisher
	metrics      *metrics.Metrics
	logger       logger.Logger
	persistEvery int
}

// NewProcessor creates a processor. persistEvery <= 0 uses the default.
func NewProcessor(
	jobs JobStore,
	resolver ProviderResolver,
	events EventPublisher,
	m *metrics.Metrics,
	log logger.Logger,
	persistEvery int,
) *Processor {
	if persistEvery <= 0 {
		persistEvery = defaultPersistEvery
	}
	return &Processor{
		jobs:         jobs,
		resolver:     resolver,
		events:       events,
		metrics:      m,
		logger:       log,
		persistEvery: persistEvery,
	}
}

// Process handles one consumed message. A nil return means the message
// can be acknowledged; redeliveries of already-terminal jobs are
// acknowledged without reprocessing.
func (p *Processor) Process(ctx context.Context, msg *queue.ConsumedMessage) error {
	jobID := msg.Message.JobID

	job, err := p.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			p.logger.Warn("job message references unknown job, dropping",
				logger.String("job_id", jobID))
			return nil
		}
		return fmt.Errorf("load job %s: %w", jobID, err)
	}

	if job.Status.IsTerminal() {
		p.logger.Debug("job already terminal, acknowledging redelivery",
			logger.String("job_id", jobID),
			logger.String("status", string(job.Status)))
		return nil
	}

	if job.Status == domain.JobStatusProcessing {
		// Reclaimed delivery from a crashed worker. Results from the first
		// delivery were never persisted, so the record loop restarts from
		// the top; the response cache absorbs the repeated lookups.
		p.logger.Warn("resuming reclaimed job",
			logger.String("job_id", jobID),
			logger.Int("previously_processed", job.ProcessedRecords))
	} else if err := p.jobs.MarkProcessing(ctx, jobID); err != nil {
		if errors.Is(err, domain.ErrTerminalState) {
			// Another worker won the transition; its delivery owns the job.
			return nil
		}
		return fmt.Errorf("mark job %s processing: %w", jobID, err)
	}
	p.publish(ctx, sse.NewJobStatusEvent(jobID, domain.JobStatusProcessing))

	start := time.Now()
	client, err := p.resolver.GetProvider(ctx, job.ProviderID, job.UserID)
	if err != nil {
		// Provider resolution covers credential lookup and the
		// authentication probe; failure here dooms every record.
		return p.failJob(ctx, job, start, fmt.Sprintf("provider unavailable: %v", err))
	}

	return p.runRecords(ctx, job, client, start)
}

func (p *Processor) runRecords(ctx context.Context, job *domain.Job, client provider.Client, start time.Time) error {
	var (
		processed  int
		successful int
		failed     int
		output     = make([]domain.Record, 0, len(job.InputData))
	)

	for i, record := range job.InputData {
		params := normalizeRecord(record)

		resp, err := client.Execute(ctx, job.Operation, params, provider.ExecuteOptions{})
		processed++

		switch {
		case err != nil:
			// Transport-level failure for this record only.
			failed++
			output = append(output, failedRecord(record, err.Error()))
			p.logRecordFailure(ctx, job.ID, i, err.Error())
		case !resp.Success:
			failed++
			msg := "provider error"
			if resp.Error != nil {
				msg = resp.Error.Error()
			}
			output = append(output, failedRecord(record, msg))
			p.logRecordFailure(ctx, job.ID, i, msg)
		default:
			successful++
			output = append(output, enrichedRecord(record, resp.Data))
		}

		if p.metrics != nil {
			p.metrics.RecordRecord(job.ProviderID, job.Operation.String(), err == nil && resp != nil && resp.Success)
		}

		p.publish(ctx, sse.NewJobProgressEvent(job.ID, domain.Progress{
			Total:      job.TotalRecords,
			Processed:  processed,
			Successful: successful,
			Failed:     failed,
		}))

		if processed%p.persistEvery == 0 && processed < len(job.InputData) {
			if err := p.jobs.UpdateProgress(ctx, job.ID, processed, successful, failed); err != nil {
				p.logger.Warn("intermediate progress persist failed",
					logger.String("job_id", job.ID),
					logger.Error(err))
			}
		}
	}

	if err := p.jobs.Complete(ctx, job.ID, output, processed, successful, failed); err != nil {
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}

	progress := domain.Progress{Total: job.TotalRecords, Processed: processed, Successful: successful, Failed: failed}
	duration := time.Since(start)
	p.publish(ctx, sse.NewJobCompletedEvent(job.ID, domain.JobStatusCompleted, progress, duration.Milliseconds(), nil))
	if p.metrics != nil {
		p.metrics.RecordJobCompletion(job.ProviderID, string(domain.JobStatusCompleted), duration)
	}

	p.logger.Info("job completed",
		logger.String("job_id", job.ID),
		logger.Int("processed", processed),
		logger.Int("successful", successful),
		logger.Int("failed", failed),
		logger.Duration("duration", duration))
	return nil
}

// failJob marks the whole job failed with zero records processed.
func (p *Processor) failJob(ctx context.Context, job *domain.Job, start time.Time, details string) error {
	if err := p.jobs.Fail(ctx, job.ID, details); err != nil {
		return fmt.Errorf("fail job %s: %w", job.ID, err)
	}

	duration := time.Since(start)
	p.publish(ctx, sse.NewJobCompletedEvent(job.ID, domain.JobStatusFailed,
		domain.Progress{Total: job.TotalRecords}, duration.Milliseconds(), &details))
	if p.metrics != nil {
		p.metrics.RecordJobCompletion(job.ProviderID, string(domain.JobStatusFailed), duration)
	}

	p.logger.Error("job failed",
		logger.String("job_id", job.ID),
		logger.String("details", details))
	return nil
}

func (p *Processor) logRecordFailure(ctx context.Context, jobID string, index int, msg string) {
	entry := fmt.Sprintf("record %d: %s", index, msg)
	if err := p.jobs.AppendLog(ctx, jobID, domain.LogLevelError, entry); err != nil {
		p.logger.Warn("append job log failed",
			logger.String("job_id", jobID),
			logger.Error(err))
	}
}

func (p *Processor) publish(ctx context.Context, event sse.Event) {
	if p.events == nil {
		return
	}
	if err := p.events.Publish(ctx, event); err != nil {
		p.logger.Debug("event publish dropped", logger.Error(err))
	}
}

// normalizeRecord fills in derivable fields before the provider call:
// a missing domain is derived from the email or website when possible.
func normalizeRecord(record domain.Record) domain.Record {
	params := make(domain.Record, len(record))
	for k, v := range record {
		params[k] = v
	}

	if params.GetString("domain") != "" {
		return params
	}
	if email := params.GetString("email"); email != "" {
		if at := strings.LastIndex(email, "@"); at >= 0 && at < len(email)-1 {
			params["domain"] = email[at+1:]
			return params
		}
	}
	if website := params.GetString("website"); website != "" {
		host := website
		host = strings.TrimPrefix(host, "https://")
		host = strings.TrimPrefix(host, "http://")
		host = strings.TrimPrefix(host, "www.")
		if slash := strings.Index(host, "/"); slash >= 0 {
			host = host[:slash]
		}
		if host != "" {
			params["domain"] = host
		}
	}
	return params
}

func enrichedRecord(input domain.Record, data map[string]any) domain.Record {
	out := make(domain.Record, len(input)+len(data)+1)
	for k, v := range input {
		out[k] = v
	}
	for k, v := range data {
		out[k] = v
	}
	out["enrichment_status"] = "success"
	return out
}

func failedRecord(input domain.Record, msg string) domain.Record {
	out := make(domain.Record, len(input)+2)
	for k, v := range input {
		out[k] = v
	}
	out["enrichment_status"] = "failed"
	out["enrichment_error"] = msg
	return out
}
