package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"roomDesignAi/internal/auth"
	"roomDesignAi/internal/design"
	"roomDesignAi/internal/events"
	"roomDesignAi/internal/jobs"
)

type jobHandler struct {
	jobs   *jobs.Orchestrator
	events *events.Broker
	logger zerolog.Logger
}

type createResponse struct {
	JobID           string `json:"jobId"`
	EstimatedTimeMs int64  `json:"estimatedTimeMs"`
}

// Create handles POST /api/design-jobs.
func (h jobHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req design.DesignGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.OriginalPhotoURL) == "" {
		http.Error(w, "originalPhotoUrl is required", http.StatusBadRequest)
		return
	}
	if len(req.SelectedRooms) == 0 {
		http.Error(w, "selectedRooms must not be empty", http.StatusBadRequest)
		return
	}
	req = req.WithDefaults()

	jobID, err := h.jobs.Start(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		h.logger.Error().Err(err).Msg("start design job")
		http.Error(w, "could not start job", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, createResponse{JobID: jobID, EstimatedTimeMs: jobs.EstimateTime(req)})
}

// List handles GET /api/design-jobs.
func (h jobHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	writeJSON(w, http.StatusOK, h.jobs.ListByUser(auth.UserID(r.Context())))
}

// Get handles GET /api/design-jobs/{id}.
func (h jobHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	job, ok := h.visibleJob(r)
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Result handles GET /api/design-jobs/{id}/result.
func (h jobHandler) Result(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	jobID := chi.URLParam(r, "id")
	caller := auth.UserID(r.Context())
	job, live := h.jobs.Status(jobID)
	if live && !jobs.Visible(job.UserID, caller) {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if res, ok := h.jobs.Result(r.Context(), caller, jobID); ok {
		writeJSON(w, http.StatusOK, res)
		return
	}
	if live {
		http.Error(w, "job has not completed (status "+string(job.Status)+")", http.StatusConflict)
		return
	}
	http.Error(w, "result not found", http.StatusNotFound)
}

// Cancel handles POST /api/design-jobs/{id}/cancel.
func (h jobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if _, ok := h.visibleJob(r); !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if err := h.jobs.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeJobError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Resume handles POST /api/design-jobs/{id}/resume.
func (h jobHandler) Resume(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	jobID := chi.URLParam(r, "id")
	if err := h.jobs.Resume(r.Context(), auth.UserID(r.Context()), jobID); err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

func (h jobHandler) ready(w http.ResponseWriter) bool {
	if h.jobs == nil {
		http.Error(w, "design jobs unavailable", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (h jobHandler) visibleJob(r *http.Request) (design.ProcessingJob, bool) {
	job, ok := h.jobs.Status(chi.URLParam(r, "id"))
	if !ok || !jobs.Visible(job.UserID, auth.UserID(r.Context())) {
		return design.ProcessingJob{}, false
	}
	return job, true
}

func writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		http.Error(w, "job not found", http.StatusNotFound)
	case errors.Is(err, jobs.ErrJobTerminal), errors.Is(err, jobs.ErrJobActive), errors.Is(err, jobs.ErrNoSnapshot):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
