package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/supabase-community/supabase-go"

	"roomDesignAi/internal/design"
)

// ErrNotFound indicates that a job could not be located in the backing store.
var ErrNotFound = errors.New("storage: job not found")

// DefaultTable is the job table shared by the Postgres and Supabase backends.
const DefaultTable = "ai_processing_jobs"

// Record mirrors one row of the job table.
type Record struct {
	JobID                    string                          `json:"job_id"`
	UserID                   string                          `json:"user_id"`
	Status                   design.Status                   `json:"status"`
	Progress                 float64                         `json:"progress"`
	RequestData              *design.DesignGenerationRequest `json:"request_data,omitempty"`
	ResultData               *design.EnhancedDesignResult    `json:"result_data,omitempty"`
	CurrentStage             string                          `json:"current_stage"`
	EstimatedTimeRemainingMs int64                           `json:"estimated_time_remaining_ms"`
	StageDetails             *design.StageDetails            `json:"stage_details,omitempty"`
	ErrorMessage             string                          `json:"error_message,omitempty"`
	CancelledAt              *time.Time                      `json:"cancelled_at,omitempty"`
	CompletedAt              *time.Time                      `json:"completed_at,omitempty"`
	LastCheckpoint           string                          `json:"last_checkpoint,omitempty"`
	CreatedAt                time.Time                       `json:"created_at"`
	UpdatedAt                time.Time                       `json:"updated_at"`
}

// Update lists the columns to change. Nil fields are left untouched.
// ClearStageDetails resets stage_details to NULL when StageDetails is nil.
type Update struct {
	Status                   *design.Status
	Progress                 *float64
	RequestData              *design.DesignGenerationRequest
	ResultData               *design.EnhancedDesignResult
	CurrentStage             *string
	EstimatedTimeRemainingMs *int64
	StageDetails             *design.StageDetails
	ErrorMessage             *string
	CancelledAt              *time.Time
	CompletedAt              *time.Time
	LastCheckpoint           *string
	ClearStageDetails        bool
}

// Store persists job records. Implementations must be safe for concurrent use.
type Store interface {
	Insert(ctx context.Context, rec Record) error
	Update(ctx context.Context, jobID string, u Update) error
	Get(ctx context.Context, jobID string) (Record, error)
	Close()
}

// Apply copies the set fields of u onto rec.
func (u Update) Apply(rec *Record, now time.Time) {
	if u.Status != nil {
		rec.Status = *u.Status
	}
	if u.Progress != nil {
		rec.Progress = *u.Progress
	}
	if u.RequestData != nil {
		req := *u.RequestData
		rec.RequestData = &req
	}
	if u.ResultData != nil {
		res := *u.ResultData
		rec.ResultData = &res
	}
	if u.CurrentStage != nil {
		rec.CurrentStage = *u.CurrentStage
	}
	if u.EstimatedTimeRemainingMs != nil {
		rec.EstimatedTimeRemainingMs = *u.EstimatedTimeRemainingMs
	}
	if u.StageDetails != nil {
		details := *u.StageDetails
		rec.StageDetails = &details
	} else if u.ClearStageDetails {
		rec.StageDetails = nil
	}
	if u.ErrorMessage != nil {
		rec.ErrorMessage = *u.ErrorMessage
	}
	if u.CancelledAt != nil {
		at := *u.CancelledAt
		rec.CancelledAt = &at
	}
	if u.CompletedAt != nil {
		at := *u.CompletedAt
		rec.CompletedAt = &at
	}
	if u.LastCheckpoint != nil {
		rec.LastCheckpoint = *u.LastCheckpoint
	}
	rec.UpdatedAt = now
}

// FromJob builds a record from a live job and its request snapshot.
func FromJob(job design.ProcessingJob, req design.DesignGenerationRequest) Record {
	return Record{
		JobID:                    job.JobID,
		UserID:                   job.UserID,
		Status:                   job.Status,
		Progress:                 job.Progress,
		RequestData:              &req,
		CurrentStage:             job.CurrentStage,
		EstimatedTimeRemainingMs: job.EstimatedTimeRemainingMs,
		StageDetails:             job.StageDetails,
		ErrorMessage:             job.Error,
		CancelledAt:              job.CancelledAt,
		CompletedAt:              job.CompletedAt,
		LastCheckpoint:           job.LastCheckpoint,
		CreatedAt:                job.CreatedAt,
		UpdatedAt:                job.UpdatedAt,
	}
}

// Job converts the record back into the client-facing job view.
func (r Record) Job() design.ProcessingJob {
	return design.ProcessingJob{
		JobID:                    r.JobID,
		UserID:                   r.UserID,
		Status:                   r.Status,
		CurrentStage:             r.CurrentStage,
		Progress:                 r.Progress,
		EstimatedTimeRemainingMs: r.EstimatedTimeRemainingMs,
		StageDetails:             r.StageDetails,
		Error:                    r.ErrorMessage,
		LastCheckpoint:           r.LastCheckpoint,
		CreatedAt:                r.CreatedAt,
		UpdatedAt:                r.UpdatedAt,
		CompletedAt:              r.CompletedAt,
		CancelledAt:              r.CancelledAt,
	}
}

// Options selects and configures a backend.
type Options struct {
	Backend       string
	DatabaseURL   string
	SupabaseURL   string
	SupabaseKey   string
	SupabaseTable string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
}

// ResolveBackend applies the auto-selection order when no backend is named.
func (o Options) ResolveBackend() string {
	if b := strings.ToLower(strings.TrimSpace(o.Backend)); b != "" && b != "auto" {
		return b
	}
	switch {
	case o.DatabaseURL != "":
		return "postgres"
	case o.SupabaseURL != "":
		return "supabase"
	case o.RedisAddr != "":
		return "redis"
	default:
		return "memory"
	}
}

// NewStore selects a backing store based on the configured backend.
func NewStore(ctx context.Context, opts Options, logger zerolog.Logger) (Store, error) {
	backend := opts.ResolveBackend()
	logger.Info().Str("backend", backend).Msg("job store selected")

	switch backend {
	case "memory":
		return NewInMemoryStore(), nil
	case "postgres":
		return newPostgres(ctx, opts.DatabaseURL)
	case "supabase":
		client, err := supabase.NewClient(opts.SupabaseURL, opts.SupabaseKey, &supabase.ClientOptions{})
		if err != nil {
			return nil, fmt.Errorf("storage: supabase client: %w", err)
		}
		return NewSupabaseStore(client, opts.SupabaseTable), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:         opts.RedisAddr,
			Password:     opts.RedisPassword,
			DB:           opts.RedisDB,
			DialTimeout:  10 * time.Second,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("storage: ping redis: %w", err)
		}
		return NewRedisStore(rdb, opts.RedisTTL), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}

func newPostgres(ctx context.Context, databaseURL string) (Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping database: %w", err)
	}

	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}
