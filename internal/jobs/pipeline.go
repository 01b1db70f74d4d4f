package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"roomDesignAi/internal/design"
	"roomDesignAi/internal/influence"
	"roomDesignAi/internal/prompts"
	"roomDesignAi/internal/render"
	"roomDesignAi/internal/storage"
	"roomDesignAi/internal/vision"
)

// errStopped ends a pipeline whose job became terminal elsewhere.
var errStopped = errors.New("jobs: job no longer active")

const completedStage = "Design generation complete!"

type stage struct {
	status   design.Status
	label    string
	progress float64
}

var (
	stageAnalyzingPhoto      = stage{design.StatusAnalyzingPhoto, "Analyzing your original photo", 10}
	stageAnalyzingReferences = stage{design.StatusAnalyzingReferences, "Analyzing your reference images", 25}
	stageGeneratingConcepts  = stage{design.StatusGeneratingConcepts, "Creating design concepts based on your preferences", 50}
	stageApplyingInfluences  = stage{design.StatusApplyingInfluences, "Applying your style and color influences", 70}
	stageRendering           = stage{design.StatusRendering, "Creating final high-quality visualization", 90}
)

const (
	referenceProgressStart = 25
	referenceProgressSpan  = 15
)

// pipelineState carries stage outputs forward.
type pipelineState struct {
	jobID      string
	req        design.DesignGenerationRequest
	estimate   int64
	photo      design.ImageAnalysisResult
	references []design.ReferenceAnalysis
	prompt     string
	imageURL   string
}

func (o *Orchestrator) run(ctx context.Context, jobID string, req design.DesignGenerationRequest) {
	started := o.now()
	st := &pipelineState{jobID: jobID, req: req, estimate: EstimateTime(req)}

	steps := []struct {
		stage stage
		run   func(context.Context, *pipelineState) error
	}{
		{stageAnalyzingPhoto, o.analyzePhoto},
		{stageAnalyzingReferences, o.analyzeReferences},
		{stageGeneratingConcepts, o.synthesizePrompt},
		{stageApplyingInfluences, o.generateImage},
	}
	for _, step := range steps {
		if err := o.runStage(ctx, st, step.stage, step.run); err != nil {
			o.stop(ctx, jobID, err)
			return
		}
	}

	var result design.EnhancedDesignResult
	err := o.runStage(ctx, st, stageRendering, func(ctx context.Context, st *pipelineState) error {
		result = o.assemble(ctx, st, started)
		return nil
	})
	if err != nil {
		o.stop(ctx, jobID, err)
		return
	}
	o.complete(ctx, jobID, result)
}

// runStage checks that the job is still active, records the stage entry and
// runs fn inside a span.
func (o *Orchestrator) runStage(ctx context.Context, st *pipelineState, s stage, fn func(context.Context, *pipelineState) error) error {
	var details *design.StageDetails
	if s.status == design.StatusAnalyzingReferences {
		details = &design.StageDetails{TotalReferences: len(st.req.ReferenceInfluences), CurrentOperation: "Loading references"}
	}
	if err := o.advance(ctx, st, s.status, s.label, s.progress, details); err != nil {
		return err
	}

	ctx, span := o.tracer.Start(ctx, "stage."+string(s.status),
		trace.WithAttributes(attribute.String("job.id", st.jobID)))
	defer span.End()

	start := o.now()
	err := fn(ctx, st)
	if o.metrics != nil {
		o.metrics.StageCompleted(string(s.status), o.now().Sub(start))
	}
	if err != nil && !errors.Is(err, errStopped) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// advance moves an active job forward. It returns errStopped if the job has
// reached a terminal state in the meantime.
func (o *Orchestrator) advance(ctx context.Context, st *pipelineState, status design.Status, label string, progress float64, details *design.StageDetails) error {
	now := o.now()
	estimate := remaining(st.estimate, progress)
	job, ok := o.registry.Advance(st.jobID, func(j *design.ProcessingJob) {
		j.Status = status
		j.CurrentStage = label
		j.Progress = progress
		j.EstimatedTimeRemainingMs = estimate
		j.StageDetails = details
		j.LastCheckpoint = string(status)
		j.UpdatedAt = now
	})
	if !ok {
		return errStopped
	}

	checkpoint := string(status)
	o.persist(ctx, st.jobID, storage.Update{
		Status:                   &status,
		Progress:                 &progress,
		CurrentStage:             &label,
		EstimatedTimeRemainingMs: &estimate,
		StageDetails:             details,
		ClearStageDetails:        details == nil,
		LastCheckpoint:           &checkpoint,
	})
	o.publish(job)
	o.logger.Debug().
		Str("job_id", st.jobID).
		Str("stage", string(status)).
		Float64("progress", progress).
		Msg("stage entered")
	return nil
}

func (o *Orchestrator) analyzePhoto(ctx context.Context, st *pipelineState) error {
	photo, err := o.analyzer.Analyze(ctx, st.req.OriginalPhotoURL, vision.PhotoOptions())
	if err != nil {
		return fmt.Errorf("original photo analysis failed: %w", err)
	}
	st.photo = photo
	return nil
}

// analyzeReferences runs sequentially. A failed reference gets a stub analysis
// and zero influence so the job can continue.
func (o *Orchestrator) analyzeReferences(ctx context.Context, st *pipelineState) error {
	refs := st.req.ReferenceInfluences
	n := len(refs)
	st.references = make([]design.ReferenceAnalysis, 0, n)

	for i, ref := range refs {
		progress := referenceProgressStart + float64(i)/float64(n)*referenceProgressSpan
		details := &design.StageDetails{
			ProcessedReferences: i,
			TotalReferences:     n,
			CurrentOperation:    fmt.Sprintf("Analyzing reference %d", i+1),
		}
		if err := o.advance(ctx, st, design.StatusAnalyzingReferences, stageAnalyzingReferences.label, progress, details); err != nil {
			return err
		}

		analysis, err := o.analyzer.Analyze(ctx, ref.ImageURL, vision.ReferenceOptions())
		applied := 0.0
		if err != nil {
			o.logger.Warn().Err(err).
				Str("job_id", st.jobID).
				Str("reference_id", ref.ReferenceID).
				Msg("reference analysis failed, continuing without it")
			if o.metrics != nil {
				o.metrics.ReferenceFailed()
			}
			analysis = design.FailedAnalysis()
		} else {
			applied = influence.Actual(ref, analysis)
		}
		st.references = append(st.references, design.ReferenceAnalysis{
			Reference:        ref,
			ReferenceID:      ref.ReferenceID,
			Analysis:         analysis,
			InfluenceApplied: applied,
		})
	}

	if n == 0 {
		return nil
	}
	return o.advance(ctx, st, design.StatusAnalyzingReferences, stageAnalyzingReferences.label,
		referenceProgressStart+referenceProgressSpan,
		&design.StageDetails{ProcessedReferences: n, TotalReferences: n, CurrentOperation: "References analyzed"})
}

func (o *Orchestrator) synthesizePrompt(_ context.Context, st *pipelineState) error {
	st.prompt = prompts.Build(st.photo, st.references, st.req)
	return nil
}

// generateImage falls back to a tagged copy of the original photo URL when the
// generator fails. Only an unusable original fails the stage.
func (o *Orchestrator) generateImage(ctx context.Context, st *pipelineState) error {
	res, err := o.generator.Generate(ctx, render.GenerateRequest{
		JobID:          st.jobID,
		Prompt:         st.prompt,
		SourceImageURL: st.req.OriginalPhotoURL,
		Quality:        st.req.QualityLevel,
		AspectRatio:    render.DefaultAspectRatio,
	})
	if err == nil && res.Success && res.ImageURL != "" {
		st.imageURL = res.ImageURL
		return nil
	}

	if err == nil {
		err = errors.New("generator reported no image")
	}
	o.logger.Warn().Err(err).Str("job_id", st.jobID).Msg("image generation failed, using original photo")
	fallback, ferr := render.FallbackURL(st.req.OriginalPhotoURL, st.req.QualityLevel, o.now())
	if ferr != nil {
		return fmt.Errorf("image generation failed and no fallback is available: %w", errors.Join(err, ferr))
	}
	st.imageURL = fallback
	return nil
}

func (o *Orchestrator) assemble(ctx context.Context, st *pipelineState, started time.Time) design.EnhancedDesignResult {
	result := design.EnhancedDesignResult{
		JobID:                 st.jobID,
		OriginalPhotoAnalysis: st.photo,
		ReferenceAnalyses:     st.references,
		GeneratedDesignURL:    st.imageURL,
		DesignDescription:     prompts.Description(st.req, st.references),
		AppliedInfluences:     influence.Applied(st.references, st.req.ColorPaletteInfluences),
		ConfidenceScore:       influence.OverallConfidence(st.photo, st.references),
		EstimatedCost:         EstimateCost(st.photo, st.req),
	}

	if o.furnisher != nil {
		items, err := o.furnisher.Suggest(ctx, st.photo, st.req.StyleName, st.req.SelectedRooms)
		if err != nil {
			o.logger.Warn().Err(err).Str("job_id", st.jobID).Msg("furniture suggestions unavailable")
		} else {
			result.SuggestedFurniture = items
		}
	}

	result.ProcessingTimeMs = o.now().Sub(started).Milliseconds()
	return result
}

// complete stores the result and marks the job completed unless it was
// cancelled or failed while the last stage ran.
func (o *Orchestrator) complete(ctx context.Context, jobID string, result design.EnhancedDesignResult) {
	now := o.now()
	job, ok := o.registry.Complete(jobID, result, func(j *design.ProcessingJob) {
		j.Status = design.StatusCompleted
		j.CurrentStage = completedStage
		j.Progress = 100
		j.EstimatedTimeRemainingMs = 0
		j.StageDetails = nil
		j.CompletedAt = &now
		j.UpdatedAt = now
	})
	if !ok {
		o.logger.Info().Str("job_id", jobID).Msg("job finished elsewhere, result discarded")
		return
	}

	status, progress, stageLabel, zero := design.StatusCompleted, 100.0, completedStage, int64(0)
	o.persist(ctx, jobID, storage.Update{
		Status:                   &status,
		Progress:                 &progress,
		ResultData:               &result,
		CurrentStage:             &stageLabel,
		EstimatedTimeRemainingMs: &zero,
		ClearStageDetails:        true,
		CompletedAt:              &now,
	})
	o.publish(job)
	o.finished("completed", job)
	o.logger.Info().
		Str("job_id", jobID).
		Str("status", string(job.Status)).
		Int64("processing_ms", result.ProcessingTimeMs).
		Msg("design job completed")
}

// stop ends a pipeline. A stopped job keeps the state that stopped it.
func (o *Orchestrator) stop(ctx context.Context, jobID string, err error) {
	if errors.Is(err, errStopped) {
		o.logger.Info().Str("job_id", jobID).Msg("pipeline stopped, job no longer active")
		return
	}
	o.fail(ctx, jobID, err)
}

func (o *Orchestrator) fail(ctx context.Context, jobID string, err error) {
	now := o.now()
	message := err.Error()
	job, ok := o.registry.Advance(jobID, func(j *design.ProcessingJob) {
		j.Status = design.StatusFailed
		j.Error = message
		j.Progress = 0
		j.EstimatedTimeRemainingMs = 0
		j.UpdatedAt = now
	})
	if !ok {
		return
	}

	status, progress := design.StatusFailed, 0.0
	o.persist(ctx, jobID, storage.Update{
		Status:       &status,
		Progress:     &progress,
		ErrorMessage: &message,
	})
	o.publish(job)
	o.finished("failed", job)
	o.logger.Error().Err(err).
		Str("job_id", jobID).
		Str("stage", job.LastCheckpoint).
		Msg("design job failed")
}
