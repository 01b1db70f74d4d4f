package design

import "time"

// Status represents where a generation job is in its lifecycle.
type Status string

const (
	StatusQueued              Status = "queued"
	StatusAnalyzingPhoto      Status = "analyzing_photo"
	StatusAnalyzingReferences Status = "analyzing_references"
	StatusGeneratingConcepts  Status = "generating_concepts"
	StatusApplyingInfluences  Status = "applying_influences"
	StatusRendering           Status = "rendering"
	StatusCompleted           Status = "completed"
	StatusFailed              Status = "failed"
	StatusCancelled           Status = "cancelled"
)

// CancelledByUser is the error text recorded on cancelled jobs.
const CancelledByUser = "Cancelled by user"

// IsTerminal reports whether no further stage transitions may happen.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// ProcessingMode controls how aggressively the redesign departs from the original.
type ProcessingMode string

const (
	ModeConservative ProcessingMode = "conservative"
	ModeBalanced     ProcessingMode = "balanced"
	ModeCreative     ProcessingMode = "creative"
)

// QualityLevel is the requested rendering fidelity tier.
type QualityLevel string

const (
	QualityDraft    QualityLevel = "draft"
	QualityStandard QualityLevel = "standard"
	QualityPremium  QualityLevel = "premium"
)

// PaletteType classifies a user-selected color palette.
type PaletteType string

const (
	PalettePrimary   PaletteType = "primary"
	PaletteSecondary PaletteType = "secondary"
	PaletteAccent    PaletteType = "accent"
)

// BudgetRange bounds the suggested solutions.
type BudgetRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// DesignGenerationRequest is the immutable input snapshot for one job.
type DesignGenerationRequest struct {
	OriginalPhotoURL       string                  `json:"originalPhotoUrl"`
	CategoryType           string                  `json:"categoryType"`
	SelectedRooms          []string                `json:"selectedRooms"`
	StyleID                string                  `json:"styleId"`
	StyleName              string                  `json:"styleName"`
	ReferenceInfluences    []ReferenceInfluence    `json:"referenceInfluences"`
	ColorPaletteInfluences []ColorPaletteInfluence `json:"colorPaletteInfluences"`
	ProcessingMode         ProcessingMode          `json:"processingMode"`
	QualityLevel           QualityLevel            `json:"qualityLevel"`
	BudgetRange            *BudgetRange            `json:"budgetRange,omitempty"`
	PriorityFeatures       []string                `json:"priorityFeatures,omitempty"`
}

// ReferenceInfluence is one inspiration image and its requested weights.
type ReferenceInfluence struct {
	ReferenceID    string               `json:"referenceId"`
	ImageURL       string               `json:"imageUrl"`
	StyleInfluence float64              `json:"styleInfluence"`
	ColorInfluence float64              `json:"colorInfluence"`
	MoodInfluence  float64              `json:"moodInfluence"`
	AnalysisResult *ImageAnalysisResult `json:"analysisResult,omitempty"`
}

// ColorPaletteInfluence is a user-selected palette and its weight.
type ColorPaletteInfluence struct {
	PaletteID   string      `json:"paletteId"`
	Colors      []string    `json:"colors"`
	Influence   float64     `json:"influence"`
	PaletteType PaletteType `json:"paletteType"`
}

// ColorAnalysis describes the dominant colors of an image.
type ColorAnalysis struct {
	DominantColors   []string `json:"dominant_colors"`
	ColorTemperature string   `json:"color_temperature"`
	Brightness       string   `json:"brightness"`
}

// ImageAnalysisResult is the structured output of the image analysis model.
type ImageAnalysisResult struct {
	StyleTags         []string      `json:"style_tags"`
	MoodTags          []string      `json:"mood_tags"`
	DetectedObjects   []string      `json:"detected_objects"`
	SpaceType         []string      `json:"space_type"`
	ColorAnalysis     ColorAnalysis `json:"color_analysis"`
	DesignSuggestions []string      `json:"design_suggestions"`
	ConfidenceScore   float64       `json:"confidence_score"`
	Description       string        `json:"description"`
}

// FailedAnalysis is substituted for a reference whose analysis call failed.
func FailedAnalysis() ImageAnalysisResult {
	return ImageAnalysisResult{
		StyleTags:       []string{},
		MoodTags:        []string{},
		DetectedObjects: []string{},
		SpaceType:       []string{},
		ColorAnalysis: ColorAnalysis{
			DominantColors:   []string{},
			ColorTemperature: "neutral",
			Brightness:       "medium",
		},
		DesignSuggestions: []string{},
		ConfidenceScore:   0,
		Description:       "Analysis failed",
	}
}

// StageDetails gives finer progress inside the reference stage.
type StageDetails struct {
	ProcessedReferences int    `json:"processedReferences"`
	TotalReferences     int    `json:"totalReferences"`
	CurrentOperation    string `json:"currentOperation"`
}

// ProcessingJob is the mutable job record owned by the orchestrator.
type ProcessingJob struct {
	JobID                    string        `json:"jobId"`
	UserID                   string        `json:"userId,omitempty"`
	Status                   Status        `json:"status"`
	CurrentStage             string        `json:"currentStage"`
	Progress                 float64       `json:"progress"`
	EstimatedTimeRemainingMs int64         `json:"estimatedTimeRemainingMs"`
	StageDetails             *StageDetails `json:"stageDetails,omitempty"`
	Error                    string        `json:"error,omitempty"`
	LastCheckpoint           string        `json:"lastCheckpoint,omitempty"`
	CreatedAt                time.Time     `json:"createdAt"`
	UpdatedAt                time.Time     `json:"updatedAt"`
	CompletedAt              *time.Time    `json:"completedAt,omitempty"`
	CancelledAt              *time.Time    `json:"cancelledAt,omitempty"`
}

// ReferenceAnalysis pairs a reference with its analysis and effective influence.
type ReferenceAnalysis struct {
	Reference        ReferenceInfluence  `json:"-"`
	ReferenceID      string              `json:"referenceId"`
	Analysis         ImageAnalysisResult `json:"analysis"`
	InfluenceApplied float64             `json:"influenceApplied"`
}

// AppliedInfluences summarises which influences reached the design.
type AppliedInfluences struct {
	StyleInfluences []string `json:"styleInfluences"`
	ColorInfluences []string `json:"colorInfluences"`
	MoodInfluences  []string `json:"moodInfluences"`
}

// FurnitureSuggestion is an optional piece recommended for the redesign.
type FurnitureSuggestion struct {
	Type           string  `json:"type"`
	Description    string  `json:"description"`
	EstimatedPrice float64 `json:"estimatedPrice"`
	MatchScore     float64 `json:"matchScore"`
}

// EnhancedDesignResult is the final output of a completed job.
type EnhancedDesignResult struct {
	JobID                 string                `json:"jobId"`
	OriginalPhotoAnalysis ImageAnalysisResult   `json:"originalPhotoAnalysis"`
	ReferenceAnalyses     []ReferenceAnalysis   `json:"referenceAnalyses"`
	GeneratedDesignURL    string                `json:"generatedDesignUrl"`
	DesignDescription     string                `json:"designDescription"`
	AppliedInfluences     AppliedInfluences     `json:"appliedInfluences"`
	ConfidenceScore       float64               `json:"confidenceScore"`
	ProcessingTimeMs      int64                 `json:"processingTimeMs"`
	EstimatedCost         int64                 `json:"estimatedCost"`
	SuggestedFurniture    []FurnitureSuggestion `json:"suggestedFurniture,omitempty"`
}

// WithDefaults fills unset enums with the balanced/standard defaults.
func (r DesignGenerationRequest) WithDefaults() DesignGenerationRequest {
	if r.ProcessingMode == "" {
		r.ProcessingMode = ModeBalanced
	}
	if r.QualityLevel == "" {
		r.QualityLevel = QualityStandard
	}
	if r.ReferenceInfluences == nil {
		r.ReferenceInfluences = []ReferenceInfluence{}
	}
	if r.ColorPaletteInfluences == nil {
		r.ColorPaletteInfluences = []ColorPaletteInfluence{}
	}
	return r
}
