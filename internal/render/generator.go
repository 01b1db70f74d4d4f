package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"roomDesignAi/internal/design"
)

// DefaultAspectRatio is used for room transformations.
const DefaultAspectRatio = "16:9"

const (
	uploadFolder        = "designs"
	maxSourceImageBytes = 10 * 1024 * 1024
)

// ErrNoImage is returned when a model answers without image data.
var ErrNoImage = errors.New("render: response contained no image")

// Generator renders a redesigned room from a prompt and the source photo.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}

// GenerateRequest describes one rendering call.
type GenerateRequest struct {
	JobID          string
	Prompt         string
	SourceImageURL string
	Quality        design.QualityLevel
	AspectRatio    string
}

// GenerateResult is the outcome of a rendering call.
type GenerateResult struct {
	Success          bool
	ImageURL         string
	GenerationTimeMs int64
}

// FallbackURL tags the original photo URL so clients can tell that no new
// render was produced. It fails only when the original cannot be parsed.
func FallbackURL(original string, quality design.QualityLevel, now time.Time) (string, error) {
	trimmed := strings.TrimSpace(original)
	if trimmed == "" {
		return "", fmt.Errorf("render: fallback needs an original photo URL")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("render: fallback url: %w", err)
	}
	sep := "?"
	if parsed.RawQuery != "" {
		sep = "&"
	}
	return trimmed + sep + "ai_fallback=true&quality=" + url.QueryEscape(string(quality)) +
		"&timestamp=" + strconv.FormatInt(now.UnixMilli(), 10), nil
}

func qualityDirective(q design.QualityLevel) string {
	switch q {
	case design.QualityPremium:
		return "Render a photorealistic, magazine-quality interior photograph with accurate lighting and materials."
	case design.QualityDraft:
		return "Render a quick concept visualization of the redesigned room."
	default:
		return "Render a realistic interior photograph of the redesigned room."
	}
}

func fetchSource(ctx context.Context, client *http.Client, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("render: source request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("render: fetch source: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("render: source status %d from %s", resp.StatusCode, imageURL)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("render: read source: %w", err)
	}
	if len(data) > maxSourceImageBytes {
		return nil, "", fmt.Errorf("render: source exceeds %d bytes", maxSourceImageBytes)
	}
	mime := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return data, mime, nil
}

func extensionFor(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
