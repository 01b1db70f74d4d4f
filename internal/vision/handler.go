package vision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"roomDesignAi/internal/design"
)

// Handler serves one-off analysis of a room photo or a style reference,
// using the same presets the design pipeline applies.
type Handler struct {
	Analyzer Analyzer
}

type analyzeResponse struct {
	Kind       string                     `json:"kind"`
	Analysis   design.ImageAnalysisResult `json:"analysis"`
	DurationMs int64                      `json:"duration_ms"`
}

// requestError carries the status code for a rejected request.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

// image is either a URL for the analyzer to fetch or uploaded bytes.
type image struct {
	url  string
	data []byte
	mime string
}

// Analyze handles POST /api/vision/analyze. The body is either JSON
// {"image_url", "kind"} or a multipart form with image_file and kind.
// kind is "photo" (default) or "reference".
func (h Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	if h.Analyzer == nil {
		http.Error(w, "vision analysis inactive", http.StatusServiceUnavailable)
		return
	}

	img, kind, err := readImage(r)
	if err != nil {
		writeError(w, err)
		return
	}
	opts, kind, err := presetFor(kind)
	if err != nil {
		writeError(w, err)
		return
	}

	started := time.Now()
	var result design.ImageAnalysisResult
	if img.data != nil {
		result, err = h.Analyzer.AnalyzeBytes(r.Context(), img.data, img.mime, opts)
	} else {
		result, err = h.Analyzer.Analyze(r.Context(), img.url, opts)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(analyzeResponse{
		Kind:       kind,
		Analysis:   result,
		DurationMs: time.Since(started).Milliseconds(),
	})
}

func readImage(r *http.Request) (image, string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return readUpload(r)
	}

	var body struct {
		ImageURL string `json:"image_url"`
		Kind     string `json:"kind"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		return image{}, "", badRequest("invalid request body")
	}
	imageURL := strings.TrimSpace(body.ImageURL)
	if imageURL == "" {
		return image{}, "", badRequest("image_url is required")
	}
	return image{url: imageURL}, body.Kind, nil
}

func readUpload(r *http.Request) (image, string, error) {
	if err := r.ParseMultipartForm(MaxVisionImageBytes + (1 << 20)); err != nil {
		return image{}, "", badRequest("could not parse form: %v", err)
	}
	file, header, err := r.FormFile("image_file")
	if err != nil {
		return image{}, "", badRequest("image_file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxVisionImageBytes+1))
	switch {
	case err != nil:
		return image{}, "", badRequest("could not read file")
	case len(data) == 0:
		return image{}, "", badRequest("empty file")
	case len(data) > MaxVisionImageBytes:
		return image{}, "", &requestError{status: http.StatusRequestEntityTooLarge, msg: fmt.Sprintf("file exceeds %d bytes", MaxVisionImageBytes)}
	}
	return image{data: data, mime: header.Header.Get("Content-Type")}, r.FormValue("kind"), nil
}

func presetFor(kind string) (AnalyzeOptions, string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "photo":
		return PhotoOptions(), "photo", nil
	case "reference":
		return ReferenceOptions(), "reference", nil
	default:
		return AnalyzeOptions{}, "", badRequest("kind must be photo or reference")
	}
}

func writeError(w http.ResponseWriter, err error) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		http.Error(w, reqErr.msg, reqErr.status)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "vision analysis timed out", http.StatusGatewayTimeout)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}
