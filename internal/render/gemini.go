package render

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"roomDesignAi/internal/media"
)

const defaultImageModel = "gemini-2.5-flash-image"

// GeminiImageGenerator renders redesigns via Gemini image outputs and stores
// the result through the media uploader.
type GeminiImageGenerator struct {
	apiKey   string
	model    string
	timeout  time.Duration
	uploader media.Uploader
	http     *http.Client
}

// NewGeminiImageGenerator constructs a generator able to request inline images.
func NewGeminiImageGenerator(apiKey, model string, timeout time.Duration, uploader media.Uploader) *GeminiImageGenerator {
	if strings.TrimSpace(model) == "" {
		model = defaultImageModel
	}
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &GeminiImageGenerator{
		apiKey:   apiKey,
		model:    model,
		timeout:  timeout,
		uploader: uploader,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Generate sends the prompt and source photo to Gemini and uploads the first returned image.
func (g *GeminiImageGenerator) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	if g == nil || strings.TrimSpace(g.apiKey) == "" {
		return GenerateResult{}, fmt.Errorf("render: gemini generator unavailable")
	}
	if g.uploader == nil {
		return GenerateResult{}, fmt.Errorf("render: no uploader configured")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return GenerateResult{}, fmt.Errorf("render: prompt is required")
	}
	started := time.Now()

	childCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt + "\n\n" + qualityDirective(req.Quality))}
	if strings.TrimSpace(req.SourceImageURL) != "" {
		data, mime, err := fetchSource(childCtx, g.http, req.SourceImageURL)
		if err != nil {
			return GenerateResult{}, err
		}
		parts = append(parts, genai.NewPartFromBytes(data, mime))
	}

	client, err := genai.NewClient(childCtx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return GenerateResult{}, fmt.Errorf("render: create genai client: %w", err)
	}

	aspect := req.AspectRatio
	if aspect == "" {
		aspect = DefaultAspectRatio
	}
	resp, err := client.Models.GenerateContent(childCtx, g.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
			ImageConfig:        &genai.ImageConfig{AspectRatio: aspect},
		})
	if err != nil {
		return GenerateResult{}, fmt.Errorf("render: generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return GenerateResult{}, fmt.Errorf("render: response has no candidates")
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData == nil || len(part.InlineData.Data) == 0 {
			continue
		}
		mime := part.InlineData.MIMEType
		if strings.TrimSpace(mime) == "" {
			mime = "image/png"
		}
		uploaded, err := g.uploader.Upload(childCtx, media.UploadInput{
			Folder:      uploadFolder,
			JobID:       req.JobID,
			Filename:    "render" + extensionFor(mime),
			ContentType: mime,
			Body:        bytes.NewReader(part.InlineData.Data),
			Size:        int64(len(part.InlineData.Data)),
		})
		if err != nil {
			return GenerateResult{}, fmt.Errorf("render: upload: %w", err)
		}
		return GenerateResult{
			Success:          true,
			ImageURL:         uploaded.URL,
			GenerationTimeMs: time.Since(started).Milliseconds(),
		}, nil
	}
	return GenerateResult{}, ErrNoImage
}
