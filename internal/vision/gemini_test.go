package vision

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func TestParseAnalysisJSONExtractsEmbeddedObject(t *testing.T) {
	text := "Here you go:\n```json\n{\"style_tags\":[\"modern\"],\"confidence_score\":0.8,\"color_analysis\":{\"color_temperature\":\"WARM\"}}\n```"
	got, err := parseAnalysisJSON(text)
	if err != nil {
		t.Fatalf("parseAnalysisJSON returned error: %v", err)
	}
	if len(got.StyleTags) != 1 || got.StyleTags[0] != "modern" {
		t.Fatalf("StyleTags = %v, want [modern]", got.StyleTags)
	}
	if got.ColorAnalysis.ColorTemperature != "warm" || got.ColorAnalysis.Brightness != "medium" {
		t.Fatalf("color analysis = %+v", got.ColorAnalysis)
	}
	if got.MoodTags == nil || got.SpaceType == nil || got.ColorAnalysis.DominantColors == nil {
		t.Fatalf("nil slices not normalised: %+v", got)
	}
}

func TestParseAnalysisJSONRejectsGarbage(t *testing.T) {
	if _, err := parseAnalysisJSON("no json here"); err == nil {
		t.Fatal("expected error for non-JSON text")
	}
}

func TestNormalizeClampsConfidence(t *testing.T) {
	cases := map[string]float64{`{"confidence_score":1.7}`: 1, `{"confidence_score":-0.2}`: 0}
	for in, want := range cases {
		got, err := parseAnalysisJSON(in)
		if err != nil {
			t.Fatalf("parse %s: %v", in, err)
		}
		if got.ConfidenceScore != want {
			t.Fatalf("confidence for %s = %v, want %v", in, got.ConfidenceScore, want)
		}
	}
}

func TestGeminiAnalyzerAnalyze(t *testing.T) {
	var captured map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/image.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngHeader)
	})
	mux.HandleFunc("/models/", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") || r.Header.Get("x-goog-api-key") != "test-key" {
			http.Error(w, "bad path", http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{
					"text": `{"style_tags":["industrial"],"space_type":["kitchen"],"confidence_score":0.75,"description":"A loft kitchen"}`,
				}}},
			}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	analyzer := NewGeminiAnalyzer("test-key", "", 5*time.Second).WithBaseURL(srv.URL)
	got, err := analyzer.Analyze(context.Background(), srv.URL+"/image.png", PhotoOptions())
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if got.ConfidenceScore != 0.75 || got.Description != "A loft kitchen" || got.SpaceType[0] != "kitchen" {
		t.Fatalf("unexpected analysis: %+v", got)
	}

	cfg, _ := captured["generationConfig"].(map[string]any)
	if cfg["temperature"] != 0.1 || cfg["maxOutputTokens"] != float64(2048) {
		t.Fatalf("generationConfig = %v", cfg)
	}
	contents := captured["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	inline := parts[1].(map[string]any)["inline_data"].(map[string]any)
	if inline["mime_type"] != "image/png" {
		t.Fatalf("inline mime = %v, want image/png", inline["mime_type"])
	}
}

func TestGeminiAnalyzerSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	analyzer := NewGeminiAnalyzer("test-key", "gemini-1.5-flash", time.Second).WithBaseURL(srv.URL)
	_, err := analyzer.AnalyzeBytes(context.Background(), pngHeader, "image/png", ReferenceOptions())
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("err = %v, want quota exceeded", err)
	}
}

func TestNormalizeVisionModel(t *testing.T) {
	cases := map[string]string{
		"":                        defaultVisionModel,
		"models/gemini-1.5-flash": defaultVisionModel,
		"gemini-2.0-flash-latest": "gemini-2.0-flash",
		"  Gemini-2.5-Pro ":       "gemini-2.5-pro",
	}
	for in, want := range cases {
		if got := normalizeVisionModel(in); got != want {
			t.Fatalf("normalizeVisionModel(%q) = %q, want %q", in, got, want)
		}
	}
}
