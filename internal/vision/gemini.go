package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"roomDesignAi/internal/design"
	"roomDesignAi/internal/prompts"
)

// Analyzer extracts structured design insights from room images.
type Analyzer interface {
	Analyze(ctx context.Context, imageURL string, opts AnalyzeOptions) (design.ImageAnalysisResult, error)
	AnalyzeBytes(ctx context.Context, data []byte, mimeType string, opts AnalyzeOptions) (design.ImageAnalysisResult, error)
}

// AnalyzeOptions tunes a single analysis call.
type AnalyzeOptions struct {
	FocusArea          string
	IncludeSuggestions bool
	Temperature        float64
	MaxTokens          int
}

// PhotoOptions is used for the subject photo: broad focus, low temperature.
func PhotoOptions() AnalyzeOptions {
	return AnalyzeOptions{FocusArea: "comprehensive", IncludeSuggestions: true, Temperature: 0.1, MaxTokens: 2048}
}

// ReferenceOptions is used for reference images: style focus, no suggestions.
func ReferenceOptions() AnalyzeOptions {
	return AnalyzeOptions{FocusArea: "style", IncludeSuggestions: false, Temperature: 0.2, MaxTokens: 2048}
}

// GeminiAnalyzer implements Analyzer using Google's Generative Language API.
type GeminiAnalyzer struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

const (
	MaxVisionImageBytes = 7 * 1024 * 1024
	defaultVisionModel  = "gemini-1.5-flash-001"
	defaultBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
)

// NewGeminiAnalyzer constructs a Gemini-powered image analyzer.
func NewGeminiAnalyzer(apiKey, model string, timeout time.Duration) *GeminiAnalyzer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiAnalyzer{
		apiKey:  apiKey,
		model:   normalizeVisionModel(model),
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// WithBaseURL points the analyzer at an alternate API root.
func (g *GeminiAnalyzer) WithBaseURL(baseURL string) *GeminiAnalyzer {
	if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
		g.baseURL = trimmed
	}
	return g
}

// Analyze downloads the image and asks Gemini to describe it in structured form.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, imageURL string, opts AnalyzeOptions) (design.ImageAnalysisResult, error) {
	if strings.TrimSpace(imageURL) == "" {
		return design.ImageAnalysisResult{}, fmt.Errorf("vision: empty image URL")
	}
	imgData, mimeType, err := g.fetchImage(ctx, imageURL)
	if err != nil {
		return design.ImageAnalysisResult{}, err
	}
	return g.analyzeData(ctx, imgData, mimeType, opts)
}

// AnalyzeBytes runs analysis directly on uploaded image data.
func (g *GeminiAnalyzer) AnalyzeBytes(ctx context.Context, data []byte, mimeType string, opts AnalyzeOptions) (design.ImageAnalysisResult, error) {
	if len(data) == 0 {
		return design.ImageAnalysisResult{}, fmt.Errorf("vision: empty image data")
	}
	if len(data) > MaxVisionImageBytes {
		return design.ImageAnalysisResult{}, fmt.Errorf("vision: image exceeds %d bytes", MaxVisionImageBytes)
	}
	return g.analyzeData(ctx, data, detectMime(data, mimeType), opts)
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type visionPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type visionContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []visionPart `json:"parts"`
}

type visionRequest struct {
	Contents         []visionContent `json:"contents"`
	GenerationConfig struct {
		Temperature      float64 `json:"temperature"`
		ResponseMimeType string  `json:"responseMimeType"`
		MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type visionResponse struct {
	Candidates []struct {
		Content visionContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// buildRequest pairs the analysis instructions with the inline image.
func buildRequest(data []byte, mimeType string, opts AnalyzeOptions) visionRequest {
	if opts.FocusArea == "" {
		opts.FocusArea = "comprehensive"
	}
	var req visionRequest
	req.Contents = []visionContent{{
		Role: "user",
		Parts: []visionPart{
			{Text: prompts.AnalysisPrompt(opts.FocusArea, opts.IncludeSuggestions)},
			{InlineData: &inlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}},
		},
	}}
	req.GenerationConfig.Temperature = opts.Temperature
	req.GenerationConfig.ResponseMimeType = "application/json"
	req.GenerationConfig.MaxOutputTokens = opts.MaxTokens
	return req
}

func (g *GeminiAnalyzer) analyzeData(ctx context.Context, data []byte, mimeType string, opts AnalyzeOptions) (design.ImageAnalysisResult, error) {
	if strings.TrimSpace(g.apiKey) == "" {
		return design.ImageAnalysisResult{}, fmt.Errorf("vision: missing API key")
	}

	body, err := json.Marshal(buildRequest(data, mimeType, opts))
	if err != nil {
		return design.ImageAnalysisResult{}, fmt.Errorf("vision: marshal payload: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return design.ImageAnalysisResult{}, fmt.Errorf("vision: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return design.ImageAnalysisResult{}, fmt.Errorf("vision: call model: %w", err)
	}
	defer resp.Body.Close()

	var out visionResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return design.ImageAnalysisResult{}, fmt.Errorf("vision: status %d: %s", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return design.ImageAnalysisResult{}, fmt.Errorf("vision: decode response: %w", decodeErr)
	}

	var text strings.Builder
	if len(out.Candidates) > 0 {
		for _, part := range out.Candidates[0].Content.Parts {
			text.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return design.ImageAnalysisResult{}, fmt.Errorf("vision: empty response")
	}
	return parseAnalysisJSON(text.String())
}

func (g *GeminiAnalyzer) fetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("vision: image request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("vision: download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("vision: image %s answered %d", imageURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxVisionImageBytes+1))
	switch {
	case err != nil:
		return nil, "", fmt.Errorf("vision: read image: %w", err)
	case len(data) > MaxVisionImageBytes:
		return nil, "", fmt.Errorf("vision: image exceeds %d bytes", MaxVisionImageBytes)
	}
	return data, detectMime(data, resp.Header.Get("Content-Type")), nil
}

// parseAnalysisJSON accepts the bare object or one wrapped in prose or a
// code fence.
func parseAnalysisJSON(text string) (design.ImageAnalysisResult, error) {
	text = strings.TrimSpace(text)
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		text = text[start : end+1]
	}
	var result design.ImageAnalysisResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return design.ImageAnalysisResult{}, fmt.Errorf("vision: parse response: %w", err)
	}
	return normalize(result), nil
}

// normalize keeps model output inside the documented value ranges.
func normalize(r design.ImageAnalysisResult) design.ImageAnalysisResult {
	r.StyleTags = nonNil(r.StyleTags)
	r.MoodTags = nonNil(r.MoodTags)
	r.DetectedObjects = nonNil(r.DetectedObjects)
	r.SpaceType = nonNil(r.SpaceType)
	r.DesignSuggestions = nonNil(r.DesignSuggestions)
	r.ColorAnalysis.DominantColors = nonNil(r.ColorAnalysis.DominantColors)

	switch strings.ToLower(strings.TrimSpace(r.ColorAnalysis.ColorTemperature)) {
	case "warm":
		r.ColorAnalysis.ColorTemperature = "warm"
	case "cool":
		r.ColorAnalysis.ColorTemperature = "cool"
	default:
		r.ColorAnalysis.ColorTemperature = "neutral"
	}
	switch strings.ToLower(strings.TrimSpace(r.ColorAnalysis.Brightness)) {
	case "dark":
		r.ColorAnalysis.Brightness = "dark"
	case "light":
		r.ColorAnalysis.Brightness = "light"
	default:
		r.ColorAnalysis.Brightness = "medium"
	}

	if r.ConfidenceScore < 0 || r.ConfidenceScore != r.ConfidenceScore {
		r.ConfidenceScore = 0
	}
	if r.ConfidenceScore > 1 {
		r.ConfidenceScore = 1
	}
	return r
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func detectMime(data []byte, provided string) string {
	mime := strings.TrimSpace(provided)
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	if !strings.Contains(mime, "image/") {
		return "image/jpeg"
	}
	return mime
}

func normalizeVisionModel(model string) string {
	clean := strings.TrimSpace(model)
	clean = strings.TrimPrefix(clean, "models/")
	clean = strings.ToLower(clean)
	clean = strings.TrimSuffix(clean, "-latest")

	switch clean {
	case "", "gemini-1.5-flash", "gemini-1_5-flash":
		return defaultVisionModel
	default:
		return clean
	}
}
