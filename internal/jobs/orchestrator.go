package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"roomDesignAi/internal/auth"
	"roomDesignAi/internal/design"
	"roomDesignAi/internal/events"
	"roomDesignAi/internal/furnish"
	"roomDesignAi/internal/render"
	"roomDesignAi/internal/storage"
	"roomDesignAi/internal/vision"
)

var (
	// ErrJobNotFound is returned for ids unknown to both the live table and the store.
	ErrJobNotFound = errors.New("jobs: job not found")
	// ErrJobTerminal is returned when a job has already completed, failed or been cancelled.
	ErrJobTerminal = errors.New("jobs: job already finished")
	// ErrJobActive is returned when resuming a job whose pipeline is still running here.
	ErrJobActive = errors.New("jobs: job is still running")
	// ErrNoSnapshot is returned when no request snapshot exists to resume from.
	ErrNoSnapshot = errors.New("jobs: no request snapshot to resume")
)

const queuedStage = "Queued for processing"

// Metrics receives pipeline measurements.
type Metrics interface {
	JobFinished(result string, elapsed time.Duration)
	StageCompleted(stage string, elapsed time.Duration)
	ReferenceFailed()
}

// Publisher receives every job state change.
type Publisher interface {
	Publish(evt events.Event)
}

// Deps are the collaborators of an Orchestrator. Registry, Store, Events,
// Metrics, Furnisher and Clock are optional.
type Deps struct {
	Registry      *Registry
	Store         storage.Store
	Analyzer      vision.Analyzer
	Generator     render.Generator
	Furnisher     furnish.Suggester
	Events        Publisher
	Metrics       Metrics
	Logger        zerolog.Logger
	Clock         func() time.Time
	MaxConcurrent int
}

// Orchestrator owns the lifecycle of design generation jobs.
type Orchestrator struct {
	registry  *Registry
	store     storage.Store
	analyzer  vision.Analyzer
	generator render.Generator
	furnisher furnish.Suggester
	events    Publisher
	metrics   Metrics
	logger    zerolog.Logger
	now       func() time.Time
	tracer    trace.Tracer
	sem       chan struct{}

	baseCtx   context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup

	mu      sync.Mutex
	running map[string]struct{}
}

// New wires an Orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Analyzer == nil {
		return nil, fmt.Errorf("jobs: analyzer is required")
	}
	if deps.Generator == nil {
		return nil, fmt.Errorf("jobs: generator is required")
	}
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}
	if deps.Store == nil {
		deps.Store = storage.NewInMemoryStore()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		registry:  deps.Registry,
		store:     deps.Store,
		analyzer:  deps.Analyzer,
		generator: deps.Generator,
		furnisher: deps.Furnisher,
		events:    deps.Events,
		metrics:   deps.Metrics,
		logger:    deps.Logger.With().Str("component", "jobs").Logger(),
		now:       deps.Clock,
		tracer:    otel.Tracer("roomDesignAi/jobs"),
		baseCtx:   baseCtx,
		cancelAll: cancel,
		running:   make(map[string]struct{}),
	}
	if deps.MaxConcurrent > 0 {
		o.sem = make(chan struct{}, deps.MaxConcurrent)
	}
	return o, nil
}

// Start registers a queued job and runs its pipeline in the background.
func (o *Orchestrator) Start(ctx context.Context, userID string, req design.DesignGenerationRequest) (string, error) {
	now := o.now()
	jobID, err := newJobID(now)
	if err != nil {
		return "", err
	}
	req = req.WithDefaults()

	job := design.ProcessingJob{
		JobID:                    jobID,
		UserID:                   userID,
		Status:                   design.StatusQueued,
		CurrentStage:             queuedStage,
		EstimatedTimeRemainingMs: EstimateTime(req),
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	o.registry.Put(job, req)
	if err := o.store.Insert(ctx, storage.FromJob(job, req)); err != nil {
		o.logger.Warn().Err(err).Str("job_id", jobID).Str("op", "insert").Msg("persist job failed")
	}
	o.publish(job)

	o.logger.Info().
		Str("job_id", jobID).
		Str("user_id", userID).
		Int("references", len(req.ReferenceInfluences)).
		Str("quality", string(req.QualityLevel)).
		Msg("design job queued")

	o.launch(jobID, req)
	return jobID, nil
}

// Status returns the live job record. It performs no I/O.
func (o *Orchestrator) Status(jobID string) (design.ProcessingJob, bool) {
	return o.registry.Get(jobID)
}

// Request returns the request snapshot of a live job.
func (o *Orchestrator) Request(jobID string) (design.DesignGenerationRequest, bool) {
	return o.registry.Request(jobID)
}

// Visible reports whether callerID may see a job owned by ownerID. Jobs
// started without an identified user are visible to everyone.
func Visible(ownerID, callerID string) bool {
	return ownerID == "" || ownerID == auth.Anonymous || ownerID == callerID
}

// Result returns the final result from the cache, falling back to the store.
// Results owned by someone other than callerID are reported as missing.
func (o *Orchestrator) Result(ctx context.Context, callerID, jobID string) (design.EnhancedDesignResult, bool) {
	if res, owner, ok := o.registry.Result(jobID); ok {
		if !Visible(owner, callerID) {
			return design.EnhancedDesignResult{}, false
		}
		return res, true
	}
	rec, err := o.store.Get(ctx, jobID)
	if err != nil || rec.ResultData == nil || rec.Status != design.StatusCompleted {
		return design.EnhancedDesignResult{}, false
	}
	o.registry.PutResult(jobID, rec.UserID, *rec.ResultData)
	if !Visible(rec.UserID, callerID) {
		return design.EnhancedDesignResult{}, false
	}
	return *rec.ResultData, true
}

// Cancel moves a non-terminal job to cancelled. In-flight calls are not
// interrupted; the pipeline stops at its next stage boundary.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	now := o.now()
	job, ok := o.registry.Advance(jobID, func(j *design.ProcessingJob) {
		j.Status = design.StatusCancelled
		j.Error = design.CancelledByUser
		j.Progress = 0
		j.EstimatedTimeRemainingMs = 0
		j.CancelledAt = &now
		j.UpdatedAt = now
	})
	if !ok {
		if _, exists := o.registry.Get(jobID); exists {
			return ErrJobTerminal
		}
		return ErrJobNotFound
	}

	status, progress, message := design.StatusCancelled, 0.0, design.CancelledByUser
	o.persist(ctx, jobID, storage.Update{
		Status:       &status,
		Progress:     &progress,
		ErrorMessage: &message,
		CancelledAt:  &now,
	})
	o.publish(job)
	o.finished("cancelled", job)
	o.logger.Info().Str("job_id", jobID).Msg("design job cancelled")
	return nil
}

// Resume restarts a non-terminal job from the first stage under the same id.
// Completed stages are not skipped. A job owned by someone other than callerID
// is reported as ErrJobNotFound.
func (o *Orchestrator) Resume(ctx context.Context, callerID, jobID string) error {
	var (
		status  design.Status
		userID  string
		created time.Time
		req     *design.DesignGenerationRequest
	)
	if live, ok := o.registry.Get(jobID); ok {
		snapshot, _ := o.registry.Request(jobID)
		status, userID, created, req = live.Status, live.UserID, live.CreatedAt, &snapshot
	} else if rec, err := o.store.Get(ctx, jobID); err == nil {
		status, userID, created, req = rec.Status, rec.UserID, rec.CreatedAt, rec.RequestData
	} else {
		return ErrJobNotFound
	}
	if !Visible(userID, callerID) {
		return ErrJobNotFound
	}

	o.mu.Lock()
	_, active := o.running[jobID]
	o.mu.Unlock()
	if active {
		return ErrJobActive
	}
	if status.IsTerminal() {
		return ErrJobTerminal
	}
	if req == nil {
		return ErrNoSnapshot
	}

	now := o.now()
	snapshot := req.WithDefaults()
	job := design.ProcessingJob{
		JobID:                    jobID,
		UserID:                   userID,
		Status:                   design.StatusQueued,
		CurrentStage:             queuedStage,
		EstimatedTimeRemainingMs: EstimateTime(snapshot),
		CreatedAt:                created,
		UpdatedAt:                now,
	}
	o.registry.Put(job, snapshot)

	queued, progress, stage, empty := design.StatusQueued, 0.0, queuedStage, ""
	estimate := job.EstimatedTimeRemainingMs
	o.persist(ctx, jobID, storage.Update{
		Status:                   &queued,
		Progress:                 &progress,
		RequestData:              &snapshot,
		CurrentStage:             &stage,
		EstimatedTimeRemainingMs: &estimate,
		ErrorMessage:             &empty,
		LastCheckpoint:           &empty,
	})
	o.publish(job)
	o.logger.Info().Str("job_id", jobID).Msg("design job resumed from the first stage")

	o.launch(jobID, snapshot)
	return nil
}

// ListByUser returns the live jobs of a user, newest first.
func (o *Orchestrator) ListByUser(userID string) []design.ProcessingJob {
	return o.registry.List(userID)
}

// Sweep evicts terminal jobs older than retention from the live table.
func (o *Orchestrator) Sweep(retention time.Duration) int {
	n := o.registry.Sweep(o.now().Add(-retention))
	if n > 0 {
		o.logger.Debug().Int("evicted", n).Msg("swept finished jobs")
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (o *Orchestrator) RunSweeper(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 || retention <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Sweep(retention)
		}
	}
}

// Shutdown waits for running pipelines. When ctx expires first, in-flight
// calls are cancelled and ctx.Err is returned.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		o.cancelAll()
		return nil
	case <-ctx.Done():
		o.cancelAll()
		return ctx.Err()
	}
}

func (o *Orchestrator) launch(jobID string, req design.DesignGenerationRequest) {
	o.mu.Lock()
	o.running[jobID] = struct{}{}
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			o.mu.Lock()
			delete(o.running, jobID)
			o.mu.Unlock()
		}()

		if o.sem != nil {
			select {
			case o.sem <- struct{}{}:
				defer func() { <-o.sem }()
			case <-o.baseCtx.Done():
				o.fail(context.Background(), jobID, o.baseCtx.Err())
				return
			}
		}
		o.run(o.baseCtx, jobID, req)
	}()
}

// persist writes to the store; failures are logged and never surface.
func (o *Orchestrator) persist(ctx context.Context, jobID string, u storage.Update) {
	if err := o.store.Update(ctx, jobID, u); err != nil {
		o.logger.Warn().Err(err).Str("job_id", jobID).Str("op", "update").Msg("persist job failed")
	}
}

func (o *Orchestrator) publish(job design.ProcessingJob) {
	if o.events != nil {
		o.events.Publish(events.FromJob(job))
	}
}

func (o *Orchestrator) finished(result string, job design.ProcessingJob) {
	if o.metrics != nil {
		o.metrics.JobFinished(result, o.now().Sub(job.CreatedAt))
	}
}
