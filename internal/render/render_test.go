package render

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/protobuf/types/known/structpb"

	"roomDesignAi/internal/design"
	"roomDesignAi/internal/media"
)

func TestFallbackURL(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	cases := []struct {
		original string
		want     string
	}{
		{"https://cdn.example.com/room.jpg", "https://cdn.example.com/room.jpg?ai_fallback=true&quality=premium&timestamp=1700000000123"},
		{"https://cdn.example.com/room.jpg?w=800", "https://cdn.example.com/room.jpg?w=800&ai_fallback=true&quality=premium&timestamp=1700000000123"},
	}
	for _, tc := range cases {
		got, err := FallbackURL(tc.original, design.QualityPremium, now)
		if err != nil {
			t.Fatalf("FallbackURL(%q) returned error: %v", tc.original, err)
		}
		if got != tc.want {
			t.Fatalf("FallbackURL(%q) = %q, want %q", tc.original, got, tc.want)
		}
	}
}

func TestFallbackURLRejectsUnusableOriginal(t *testing.T) {
	for _, original := range []string{"", "   ", "http://bad host/%zz"} {
		if _, err := FallbackURL(original, design.QualityDraft, time.Now()); err == nil {
			t.Fatalf("FallbackURL(%q) expected error", original)
		}
	}
}

func TestFetchSourceDetectsMime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("\xff\xd8\xff\xe0fakejpeg"))
	}))
	defer srv.Close()

	data, mime, err := fetchSource(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("fetchSource returned error: %v", err)
	}
	if mime != "image/jpeg" || len(data) == 0 {
		t.Fatalf("mime = %q len = %d", mime, len(data))
	}
}

func TestFetchSourceStatusError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	if _, _, err := fetchSource(context.Background(), srv.Client(), srv.URL); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("err = %v, want status 404", err)
	}
}

func TestGeminiGeneratorRequiresKey(t *testing.T) {
	g := NewGeminiImageGenerator("", "", 0, nil)
	if _, err := g.Generate(context.Background(), GenerateRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestImagenRequiresProject(t *testing.T) {
	g := NewImagenGenerator(ImagenConfig{}, nil)
	if _, err := g.Generate(context.Background(), GenerateRequest{Prompt: "x", SourceImageURL: "http://example.com/a.png"}); err == nil {
		t.Fatal("expected error without configuration")
	}
}

func TestGuidanceScaleByQuality(t *testing.T) {
	if !(guidanceScale(design.QualityPremium) > guidanceScale(design.QualityStandard) &&
		guidanceScale(design.QualityStandard) > guidanceScale(design.QualityDraft)) {
		t.Fatal("guidance scale should grow with quality")
	}
}

type stubPredictor struct {
	req  *aiplatformpb.PredictRequest
	resp *aiplatformpb.PredictResponse
}

func (s *stubPredictor) Predict(_ context.Context, req *aiplatformpb.PredictRequest, _ ...gax.CallOption) (*aiplatformpb.PredictResponse, error) {
	s.req = req
	return s.resp, nil
}

func (s *stubPredictor) Close() error { return nil }

type memoryUploader struct {
	input media.UploadInput
	body  []byte
}

func (m *memoryUploader) Upload(_ context.Context, in media.UploadInput) (media.UploadResult, error) {
	m.input = in
	m.body, _ = io.ReadAll(in.Body)
	return media.UploadResult{Key: "designs/" + in.JobID + "/x", URL: "https://cdn.example.com/designs/" + in.JobID + "/x"}, nil
}

func TestImagenGenerateUploadsPrediction(t *testing.T) {
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("original"))
	}))
	defer src.Close()

	prediction, _ := structpb.NewValue(map[string]any{
		"bytesBase64Encoded": base64.StdEncoding.EncodeToString([]byte("rendered")),
		"mimeType":           "image/jpeg",
	})
	stub := &stubPredictor{resp: &aiplatformpb.PredictResponse{Predictions: []*structpb.Value{prediction}}}
	uploader := &memoryUploader{}
	g := NewImagenGenerator(ImagenConfig{ProjectID: "p", Location: "europe-west4", Model: "imagegeneration@006"}, uploader)
	g.dial = func(context.Context) (predictor, error) { return stub, nil }

	res, err := g.Generate(context.Background(), GenerateRequest{
		JobID:          "job_1",
		Prompt:         "scandinavian living room",
		SourceImageURL: src.URL,
		Quality:        design.QualityPremium,
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if !res.Success || res.ImageURL != "https://cdn.example.com/designs/job_1/x" {
		t.Fatalf("result = %+v", res)
	}
	if string(uploader.body) != "rendered" || uploader.input.ContentType != "image/jpeg" || uploader.input.JobID != "job_1" {
		t.Fatalf("upload = %+v body %q", uploader.input, uploader.body)
	}
	if !strings.HasSuffix(uploader.input.Filename, ".jpg") {
		t.Fatalf("filename = %q", uploader.input.Filename)
	}
	if stub.req.GetEndpoint() != "projects/p/locations/europe-west4/publishers/google/models/imagegeneration@006" {
		t.Fatalf("endpoint = %q", stub.req.GetEndpoint())
	}
	params := stub.req.GetParameters().GetStructValue().GetFields()
	if params["aspectRatio"].GetStringValue() != DefaultAspectRatio || params["guidanceScale"].GetNumberValue() != 21 {
		t.Fatalf("parameters = %v", params)
	}
}

func TestDecodePredictionWithoutImage(t *testing.T) {
	empty, _ := structpb.NewValue(map[string]any{"raiFilteredReason": "blocked"})
	cases := []*aiplatformpb.PredictResponse{nil, {}, {Predictions: []*structpb.Value{empty}}}
	for _, resp := range cases {
		if _, _, err := decodePrediction(resp); !errors.Is(err, ErrNoImage) {
			t.Fatalf("err = %v, want ErrNoImage", err)
		}
	}
}
