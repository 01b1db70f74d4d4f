package jobs

import (
	"sort"
	"sync"
	"time"

	"roomDesignAi/internal/design"
)

type entry struct {
	job design.ProcessingJob
	req design.DesignGenerationRequest
}

// cachedResult keeps the owner next to the result so ownership can be checked
// after the job has left the live table.
type cachedResult struct {
	ownerID string
	result  design.EnhancedDesignResult
}

// Registry is the live job table plus the result cache. Every write replaces
// a whole record and every read returns a copy.
type Registry struct {
	mu      sync.RWMutex
	jobs    map[string]entry
	results map[string]cachedResult
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs:    make(map[string]entry),
		results: make(map[string]cachedResult),
	}
}

// Put stores a job and its request snapshot, replacing any previous record.
func (r *Registry) Put(job design.ProcessingJob, req design.DesignGenerationRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.JobID] = entry{job: cloneJob(job), req: req}
}

// Get returns a copy of the job.
func (r *Registry) Get(jobID string) (design.ProcessingJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobs[jobID]
	if !ok {
		return design.ProcessingJob{}, false
	}
	return cloneJob(e.job), true
}

// Request returns the request snapshot the job was started with.
func (r *Registry) Request(jobID string) (design.DesignGenerationRequest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobs[jobID]
	return e.req, ok
}

// Advance applies fn to a copy of a non-terminal job and stores the copy.
// It reports false, leaving the record untouched, when the job is missing or
// already terminal.
func (r *Registry) Advance(jobID string, fn func(*design.ProcessingJob)) (design.ProcessingJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[jobID]
	if !ok || e.job.Status.IsTerminal() {
		return design.ProcessingJob{}, false
	}
	next := cloneJob(e.job)
	fn(&next)
	e.job = next
	r.jobs[jobID] = e
	return cloneJob(next), true
}

// Complete marks a non-terminal job completed and caches its result in one
// step, so readers never see a completed job without a result.
func (r *Registry) Complete(jobID string, res design.EnhancedDesignResult, fn func(*design.ProcessingJob)) (design.ProcessingJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.jobs[jobID]
	if !ok || e.job.Status.IsTerminal() {
		return design.ProcessingJob{}, false
	}
	next := cloneJob(e.job)
	fn(&next)
	e.job = next
	r.jobs[jobID] = e
	r.results[jobID] = cachedResult{ownerID: next.UserID, result: res}
	return cloneJob(next), true
}

// PutResult caches a result owned by ownerID, typically one hydrated from the
// job store.
func (r *Registry) PutResult(jobID, ownerID string, res design.EnhancedDesignResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[jobID] = cachedResult{ownerID: ownerID, result: res}
}

// Result returns the cached result for a job and the id of its owner.
func (r *Registry) Result(jobID string) (design.EnhancedDesignResult, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.results[jobID]
	return c.result, c.ownerID, ok
}

// List returns the jobs of userID, newest first. An empty userID lists all jobs.
func (r *Registry) List(userID string) []design.ProcessingJob {
	r.mu.RLock()
	out := make([]design.ProcessingJob, 0, len(r.jobs))
	for _, e := range r.jobs {
		if userID != "" && e.job.UserID != userID {
			continue
		}
		out = append(out, cloneJob(e.job))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].JobID > out[j].JobID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Sweep evicts terminal jobs last updated before cutoff. Cached results stay.
func (r *Registry) Sweep(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, e := range r.jobs {
		if e.job.Status.IsTerminal() && e.job.UpdatedAt.Before(cutoff) {
			delete(r.jobs, id)
			evicted++
		}
	}
	return evicted
}

func cloneJob(job design.ProcessingJob) design.ProcessingJob {
	if job.StageDetails != nil {
		details := *job.StageDetails
		job.StageDetails = &details
	}
	if job.CompletedAt != nil {
		at := *job.CompletedAt
		job.CompletedAt = &at
	}
	if job.CancelledAt != nil {
		at := *job.CancelledAt
		job.CancelledAt = &at
	}
	return job
}
