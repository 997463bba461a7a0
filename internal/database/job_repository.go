package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
)

// jobSelectList is the column list for job reads (single source for schema changes).
const jobSelectList = `id, user_id, provider_id, operation, status,
		total_records, processed_records, successful_records, failed_records,
		input_data, output_data, configuration, error_details,
		created_at, started_at, completed_at`

// JobRepository is the durable job record store. Job rows are mutated only
// by the worker that owns the job; terminal states are immutable.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a job repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// jobRow mirrors the jobs table; JSONB payloads stay raw until decoded.
type jobRow struct {
	domain.Job
	InputRaw  []byte `db:"input_data"`
	OutputRaw []byte `db:"output_data"`
	ConfigRaw []byte `db:"configuration"`
}

// Create persists a new job in state queued.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	inputRaw, err := json.Marshal(job.InputData)
	if err != nil {
		return fmt.Errorf("marshal input data: %w", err)
	}
	configRaw, err := json.Marshal(job.Configuration)
	if err != nil {
		return fmt.Errorf("marshal configuration: %w", err)
	}

	query := `
		INSERT INTO jobs (id, user_id, provider_id, operation, status,
			total_records, processed_records, successful_records, failed_records,
			input_data, configuration, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0, $7, $8, NOW())`

	_, err = r.db.ExecContext(ctx, query,
		job.ID, job.UserID, job.ProviderID, job.Operation, domain.JobStatusQueued,
		job.TotalRecords, inputRaw, configRaw)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// GetByID loads a job including its JSONB payloads.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	query := `SELECT ` + jobSelectList + ` FROM jobs WHERE id = $1`

	var row jobRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}

	job := row.Job
	if len(row.InputRaw) > 0 {
		if err := json.Unmarshal(row.InputRaw, &job.InputData); err != nil {
			return nil, fmt.Errorf("decode input data: %w", err)
		}
	}
	if len(row.OutputRaw) > 0 {
		if err := json.Unmarshal(row.OutputRaw, &job.OutputData); err != nil {
			return nil, fmt.Errorf("decode output data: %w", err)
		}
	}
	if len(row.ConfigRaw) > 0 {
		if err := json.Unmarshal(row.ConfigRaw, &job.Configuration); err != nil {
			return nil, fmt.Errorf("decode configuration: %w", err)
		}
	}
	return &job, nil
}

// MarkProcessing transitions queued -> processing and records the start
// time. Returns ErrTerminalState when the job already left the queue.
func (r *JobRepository) MarkProcessing(ctx context.Context, id string) error {
	query := `
		UPDATE jobs
		SET status = $2, started_at = NOW()
		WHERE id = $1 AND status = $3`
	return r.execExpectOneRow(ctx, "mark processing", query, id, domain.JobStatusProcessing, domain.JobStatusQueued)
}

// UpdateProgress persists the running counters of an in-flight job.
func (r *JobRepository) UpdateProgress(ctx context.Context, id string, processed, successful, failed int) error {
	query := `
		UPDATE jobs
		SET processed_records = $2, successful_records = $3, failed_records = $4
		WHERE id = $1 AND status = $5`
	return r.execExpectOneRow(ctx, "update progress", query, id, processed, successful, failed, domain.JobStatusProcessing)
}

// Complete transitions processing -> completed, persisting output data
// atomically together with the final counters.
func (r *JobRepository) Complete(ctx context.Context, id string, output []domain.Record, processed, successful, failed int) error {
	outputRaw, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("marshal output data: %w", err)
	}

	query := `
		UPDATE jobs
		SET status = $2, output_data = $3,
		    processed_records = $4, successful_records = $5, failed_records = $6,
		    completed_at = NOW()
		WHERE id = $1 AND status = $7`
	return r.execExpectOneRow(ctx, "complete job", query,
		id, domain.JobStatusCompleted, outputRaw, processed, successful, failed, domain.JobStatusProcessing)
}

// Fail transitions a non-terminal job to failed with captured error
// details. Counters keep whatever was last persisted.
func (r *JobRepository) Fail(ctx context.Context, id, errorDetails string) error {
	query := `
		UPDATE jobs
		SET status = $2, error_details = $3, completed_at = NOW()
		WHERE id = $1 AND status IN ($4, $5)`
	return r.execExpectOneRow(ctx, "fail job", query,
		id, domain.JobStatusFailed, errorDetails, domain.JobStatusQueued, domain.JobStatusProcessing)
}

// AppendLog writes one append-only job log entry.
func (r *JobRepository) AppendLog(ctx context.Context, jobID string, level domain.LogLevel, message string) error {
	query := `INSERT INTO job_logs (job_id, level, message, created_at) VALUES ($1, $2, $3, NOW())`
	if _, err := r.db.ExecContext(ctx, query, jobID, level, message); err != nil {
		return fmt.Errorf("append job log: %w", err)
	}
	return nil
}

// GetLogs returns a job's log entries in append order.
func (r *JobRepository) GetLogs(ctx context.Context, jobID string, limit int) ([]domain.JobLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, job_id, level, message, created_at
		FROM job_logs
		WHERE job_id = $1
		ORDER BY id ASC
		LIMIT $2`

	entries := make([]domain.JobLogEntry, 0, limit)
	if err := r.db.SelectContext(ctx, &entries, query, jobID, limit); err != nil {
		return nil, fmt.Errorf("get job logs: %w", err)
	}
	return entries, nil
}

// execExpectOneRow runs an update and maps zero affected rows to
// ErrTerminalState: the guard clauses above only miss when the job is
// absent or already terminal.
func (r *JobRepository) execExpectOneRow(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: get affected rows: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrTerminalState)
	}
	return nil
}
