// Package service implements the enrichment use cases behind the HTTP
// API: job intake, status reads, direct execution, and waterfall runs.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/north-cloud/enrichment/internal/catalog"
	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
	"github.com/jonesrussell/north-cloud/enrichment/internal/logger"
	"github.com/jonesrussell/north-cloud/enrichment/internal/metrics"
	"github.com/jonesrussell/north-cloud/enrichment/internal/provider"
	"github.com/jonesrussell/north-cloud/enrichment/internal/queue"
	"github.com/jonesrussell/north-cloud/enrichment/internal/retry"
	"github.com/jonesrussell/north-cloud/enrichment/internal/waterfall"
)

const (
	// defaultMaxBatch caps records per job.
	defaultMaxBatch = 10000

	// normalPriorityCutoff is the record count above which a job is
	// queued at low priority.
	normalPriorityCutoff = 100
)

// JobStore is the subset of the job repository the service needs.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	Fail(ctx context.Context, id, errorDetails string) error
	GetLogs(ctx context.Context, jobID string, limit int) ([]domain.JobLogEntry, error)
}

// Enqueuer publishes job messages to the queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg *queue.JobMessage, priority queue.Priority) (string, error)
}

// ProviderResolver resolves provider ids into authenticated clients.
type ProviderResolver interface {
	GetProvider(ctx context.Context, providerID, userID string) (provider.Client, error)
}

// Service wires job intake to the queue and direct execution to the
// provider factory.
type Service struct {
	jobs         JobStore
	producer     Enqueuer
	resolver     ProviderResolver
	orchestrator *waterfall.Orchestrator
	catalog      *catalog.Catalog
	logger       logger.Logger
	metrics      *metrics.Metrics
	maxBatch     int
}

// Config holds service construction parameters. Metrics may be nil.
type Config struct {
	MaxBatch int
	Metrics  *metrics.Metrics
}

// New creates the service.
func New(
	jobs JobStore,
	producer Enqueuer,
	resolver ProviderResolver,
	orchestrator *waterfall.Orchestrator,
	cat *catalog.Catalog,
	log logger.Logger,
	cfg Config,
) *Service {
	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = defaultMaxBatch
	}
	return &Service{
		jobs:         jobs,
		producer:     producer,
		resolver:     resolver,
		orchestrator: orchestrator,
		catalog:      cat,
		logger:       log,
		metrics:      cfg.Metrics,
		maxBatch:     maxBatch,
	}
}

// EnqueueRequest is a job submission.
type EnqueueRequest struct {
	UserID        string
	ProviderID    string
	Operation     domain.Operation
	Records       []domain.Record
	Configuration map[string]any
	Priority      string
}

// EnqueueJob validates a submission, persists the job in state queued,
// and publishes it to the stream. Queue publication is retried; if it
// still fails the job row is marked failed so it cannot dangle in queued.
func (s *Service) EnqueueJob(ctx context.Context, req EnqueueRequest) (*domain.Job, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	job := &domain.Job{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		ProviderID:    req.ProviderID,
		Operation:     req.Operation,
		Status:        domain.JobStatusQueued,
		TotalRecords:  len(req.Records),
		InputData:     req.Records,
		Configuration: req.Configuration,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("persist job: %w", err)
	}

	msg := &queue.JobMessage{
		JobID:      job.ID,
		UserID:     job.UserID,
		ProviderID: job.ProviderID,
		Operation:  job.Operation.String(),
	}
	priority := s.priorityFor(req)

	err := retry.Do(ctx, retry.TransportConfig(), func() error {
		_, enqueueErr := s.producer.Enqueue(ctx, msg, priority)
		return enqueueErr
	})
	if err != nil {
		s.logger.Error("enqueue failed after retries",
			logger.String("job_id", job.ID),
			logger.Error(err))
		if failErr := s.jobs.Fail(ctx, job.ID, "queue unavailable: "+err.Error()); failErr != nil {
			s.logger.Error("failed to mark job failed",
				logger.String("job_id", job.ID),
				logger.Error(failErr))
		}
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	if s.metrics != nil {
		s.metrics.JobsEnqueued.WithLabelValues(job.ProviderID, job.Operation.String()).Inc()
	}
	s.logger.Info("job enqueued",
		logger.String("job_id", job.ID),
		logger.String("provider", job.ProviderID),
		logger.String("operation", job.Operation.String()),
		logger.Int("records", job.TotalRecords))
	return job, nil
}

// GetJob returns a job with its current counters and payloads.
func (s *Service) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	return s.jobs.GetByID(ctx, id)
}

// GetJobLogs returns a job's per-record failure log.
func (s *Service) GetJobLogs(ctx context.Context, jobID string, limit int) ([]domain.JobLogEntry, error) {
	return s.jobs.GetLogs(ctx, jobID, limit)
}

// ExecuteSingle runs one operation against one provider synchronously,
// bypassing the queue. Used for interactive single-record enrichment.
func (s *Service) ExecuteSingle(
	ctx context.Context, userID, providerID string, op domain.Operation, params domain.Record,
) (*provider.Response, error) {
	cfg, err := s.catalog.Get(providerID)
	if err != nil {
		return nil, err
	}
	if !cfg.Supports(op) {
		return nil, domain.NewErrorf(domain.CodeValidation,
			"provider %s does not support operation %s", providerID, op)
	}

	client, err := s.resolver.GetProvider(ctx, providerID, userID)
	if err != nil {
		return nil, err
	}
	return client.Execute(ctx, op, params, provider.ExecuteOptions{})
}

// RunWaterfall executes the preset fallback chain for an operation.
func (s *Service) RunWaterfall(
	ctx context.Context, userID string, op domain.Operation, params domain.Record,
) (*waterfall.Result, error) {
	cfg, ok := waterfall.PresetFor(op)
	if !ok {
		return nil, domain.NewErrorf(domain.CodeValidation,
			"no waterfall configured for operation %s", op)
	}
	return s.orchestrator.Run(ctx, cfg, userID, params)
}

func (s *Service) validateRequest(req EnqueueRequest) error {
	if req.UserID == "" {
		return domain.NewError(domain.CodeValidation, "user id is required")
	}
	if !req.Operation.IsValid() {
		return domain.NewErrorf(domain.CodeValidation, "unknown operation %q", req.Operation)
	}
	if len(req.Records) == 0 {
		return domain.NewError(domain.CodeValidation, "at least one record is required")
	}
	if len(req.Records) > s.maxBatch {
		return domain.NewErrorf(domain.CodeValidation,
			"batch size %d exceeds maximum %d", len(req.Records), s.maxBatch)
	}

	cfg, err := s.catalog.Get(req.ProviderID)
	if err != nil {
		return err
	}
	if !cfg.Supports(req.Operation) {
		return domain.NewErrorf(domain.CodeValidation,
			"provider %s does not support operation %s", req.ProviderID, req.Operation)
	}
	return nil
}

// priorityFor picks a stream priority: explicit request wins, otherwise
// single records go high and large batches low.
func (s *Service) priorityFor(req EnqueueRequest) queue.Priority {
	if req.Priority != "" {
		if p, err := queue.ParsePriority(req.Priority); err == nil {
			return p
		}
	}
	switch {
	case len(req.Records) == 1:
		return queue.PriorityHigh
	case len(req.Records) <= normalPriorityCutoff:
		return queue.PriorityNormal
	default:
		return queue.PriorityLow
	}
}
