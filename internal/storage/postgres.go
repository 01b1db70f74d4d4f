package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"roomDesignAi/internal/design"
)

// PostgresStore persists job records in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const selectColumns = `job_id, COALESCE(user_id, ''), status, progress, request_data, result_data,
	COALESCE(current_stage, ''), COALESCE(estimated_time_remaining_ms, 0), stage_details,
	COALESCE(error_message, ''), cancelled_at, completed_at, COALESCE(last_checkpoint, ''),
	created_at, updated_at`

// Insert stores a new job row.
func (s *PostgresStore) Insert(ctx context.Context, rec Record) error {
	request, err := marshalJSON(rec.RequestData)
	if err != nil {
		return err
	}
	details, err := marshalJSON(rec.StageDetails)
	if err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO ai_processing_jobs (job_id, user_id, status, progress, request_data, current_stage,
			estimated_time_remaining_ms, stage_details, last_checkpoint, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.JobID, rec.UserID, string(rec.Status), rec.Progress, request, rec.CurrentStage,
		rec.EstimatedTimeRemainingMs, details, rec.LastCheckpoint, rec.CreatedAt, rec.UpdatedAt); err != nil {
		return fmt.Errorf("storage: insert job: %w", err)
	}
	return nil
}

// Update changes only the columns set on u.
func (s *PostgresStore) Update(ctx context.Context, jobID string, u Update) error {
	columns, err := updateColumns(u)
	if err != nil {
		return err
	}

	sets := make([]string, 0, len(columns)+1)
	args := make([]any, 0, len(columns)+1)
	for _, col := range columns {
		args = append(args, col.value)
		sets = append(sets, fmt.Sprintf("%s = $%d", col.name, len(args)))
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, jobID)

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE ai_processing_jobs SET %s WHERE job_id = $%d`, strings.Join(sets, ", "), len(args)),
		args...)
	if err != nil {
		return fmt.Errorf("storage: update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads a job row.
func (s *PostgresStore) Get(ctx context.Context, jobID string) (Record, error) {
	var (
		rec             Record
		status          string
		request, result []byte
		details         []byte
	)
	err := s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM ai_processing_jobs WHERE job_id = $1`, jobID).Scan(
		&rec.JobID, &rec.UserID, &status, &rec.Progress, &request, &result,
		&rec.CurrentStage, &rec.EstimatedTimeRemainingMs, &details,
		&rec.ErrorMessage, &rec.CancelledAt, &rec.CompletedAt, &rec.LastCheckpoint,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("storage: get job: %w", err)
	}
	rec.Status = design.Status(status)

	if len(request) > 0 {
		rec.RequestData = &design.DesignGenerationRequest{}
		if err := json.Unmarshal(request, rec.RequestData); err != nil {
			return Record{}, fmt.Errorf("storage: decode request_data: %w", err)
		}
	}
	if len(result) > 0 {
		rec.ResultData = &design.EnhancedDesignResult{}
		if err := json.Unmarshal(result, rec.ResultData); err != nil {
			return Record{}, fmt.Errorf("storage: decode result_data: %w", err)
		}
	}
	if len(details) > 0 {
		rec.StageDetails = &design.StageDetails{}
		if err := json.Unmarshal(details, rec.StageDetails); err != nil {
			return Record{}, fmt.Errorf("storage: decode stage_details: %w", err)
		}
	}
	return rec, nil
}

// Close releases database resources.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

type column struct {
	name  string
	value any
}

// updateColumns lists the set fields of u in a fixed column order.
// JSON columns are passed as strings so that pgx encodes them as jsonb text.
func updateColumns(u Update) ([]column, error) {
	var cols []column
	if u.Status != nil {
		cols = append(cols, column{"status", string(*u.Status)})
	}
	if u.Progress != nil {
		cols = append(cols, column{"progress", *u.Progress})
	}
	if u.RequestData != nil {
		raw, err := marshalJSON(u.RequestData)
		if err != nil {
			return nil, err
		}
		cols = append(cols, column{"request_data", raw})
	}
	if u.ResultData != nil {
		raw, err := marshalJSON(u.ResultData)
		if err != nil {
			return nil, err
		}
		cols = append(cols, column{"result_data", raw})
	}
	if u.CurrentStage != nil {
		cols = append(cols, column{"current_stage", *u.CurrentStage})
	}
	if u.EstimatedTimeRemainingMs != nil {
		cols = append(cols, column{"estimated_time_remaining_ms", *u.EstimatedTimeRemainingMs})
	}
	if u.StageDetails != nil {
		raw, err := marshalJSON(u.StageDetails)
		if err != nil {
			return nil, err
		}
		cols = append(cols, column{"stage_details", raw})
	} else if u.ClearStageDetails {
		cols = append(cols, column{"stage_details", (*string)(nil)})
	}
	if u.ErrorMessage != nil {
		cols = append(cols, column{"error_message", *u.ErrorMessage})
	}
	if u.CancelledAt != nil {
		cols = append(cols, column{"cancelled_at", *u.CancelledAt})
	}
	if u.CompletedAt != nil {
		cols = append(cols, column{"completed_at", *u.CompletedAt})
	}
	if u.LastCheckpoint != nil {
		cols = append(cols, column{"last_checkpoint", *u.LastCheckpoint})
	}
	return cols, nil
}

// marshalJSON returns nil for nil pointers so the column stays NULL.
func marshalJSON[T any](v *T) (*string, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("storage: encode json column: %w", err)
	}
	s := string(raw)
	return &s, nil
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS ai_processing_jobs (
		job_id TEXT PRIMARY KEY,
		user_id TEXT,
		status TEXT NOT NULL,
		progress DOUBLE PRECISION NOT NULL DEFAULT 0,
		request_data JSONB,
		result_data JSONB,
		current_stage TEXT,
		estimated_time_remaining_ms BIGINT,
		stage_details JSONB,
		error_message TEXT,
		cancelled_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		last_checkpoint TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("storage: create ai_processing_jobs table: %w", err)
	}

	var schemaAlters = []string{
		`CREATE INDEX IF NOT EXISTS ai_processing_jobs_user_idx ON ai_processing_jobs (user_id, created_at DESC)`,
		`ALTER TABLE ai_processing_jobs ADD COLUMN IF NOT EXISTS last_checkpoint TEXT`,
		`ALTER TABLE ai_processing_jobs ADD COLUMN IF NOT EXISTS cancelled_at TIMESTAMPTZ`,
	}
	for _, stmt := range schemaAlters {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("storage: alter ai_processing_jobs table: %w", err)
		}
	}
	return nil
}
