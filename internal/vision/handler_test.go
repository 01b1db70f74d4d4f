package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"roomDesignAi/internal/design"
)

type recordingAnalyzer struct {
	url   string
	data  []byte
	mime  string
	opts  AnalyzeOptions
	err   error
	calls int
}

func (a *recordingAnalyzer) Analyze(_ context.Context, imageURL string, opts AnalyzeOptions) (design.ImageAnalysisResult, error) {
	a.calls++
	a.url, a.opts = imageURL, opts
	return design.ImageAnalysisResult{StyleTags: []string{"modern"}, ConfidenceScore: 0.7}, a.err
}

func (a *recordingAnalyzer) AnalyzeBytes(_ context.Context, data []byte, mime string, opts AnalyzeOptions) (design.ImageAnalysisResult, error) {
	a.calls++
	a.data, a.mime, a.opts = data, mime, opts
	return design.ImageAnalysisResult{StyleTags: []string{"rustic"}}, a.err
}

func TestAnalyzeJSONUsesReferencePreset(t *testing.T) {
	analyzer := &recordingAnalyzer{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/vision/analyze", strings.NewReader(`{"image_url":" https://img.example.com/a.jpg ","kind":"Reference"}`))
	Handler{Analyzer: analyzer}.Analyze(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	if analyzer.url != "https://img.example.com/a.jpg" || analyzer.opts != ReferenceOptions() {
		t.Fatalf("analyzer saw url %q opts %+v", analyzer.url, analyzer.opts)
	}
	var resp analyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Kind != "reference" || resp.Analysis.StyleTags[0] != "modern" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestAnalyzeMultipartUpload(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("image_file", "room.jpg")
	_, _ = part.Write([]byte("jpeg-bytes"))
	_ = mw.Close()

	analyzer := &recordingAnalyzer{}
	req := httptest.NewRequest(http.MethodPost, "/api/vision/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	Handler{Analyzer: analyzer}.Analyze(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", rec.Code, rec.Body)
	}
	if string(analyzer.data) != "jpeg-bytes" || analyzer.opts != PhotoOptions() {
		t.Fatalf("analyzer saw %q opts %+v", analyzer.data, analyzer.opts)
	}
}

func TestAnalyzeRejectsBadRequests(t *testing.T) {
	cases := map[string]string{
		"not json":     `{`,
		"missing url":  `{"kind":"photo"}`,
		"unknown kind": `{"image_url":"https://x/a.jpg","kind":"floorplan"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			analyzer := &recordingAnalyzer{}
			rec := httptest.NewRecorder()
			Handler{Analyzer: analyzer}.Analyze(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if analyzer.calls != 0 {
				t.Fatal("analyzer should not be called")
			}
		})
	}
}

func TestAnalyzeMapsAnalyzerErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{errors.New("gemini status 500"), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"image_url":"https://x/a.jpg"}`))
		Handler{Analyzer: &recordingAnalyzer{err: tc.err}}.Analyze(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("err %v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestAnalyzeInactive(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler{}.Analyze(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
