package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"

	"roomDesignAi/internal/design"
	"roomDesignAi/internal/media"
)

// ImagenConfig describes how to reach the Vertex AI Imagen edit model.
// Credentials are tried in order: inline JSON, key file, API key.
type ImagenConfig struct {
	ProjectID          string
	Location           string
	Model              string
	APIKey             string
	ServiceAccount     string
	ServiceAccountJSON string
}

func (c ImagenConfig) endpoint() string {
	return fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", c.ProjectID, c.Location, c.Model)
}

func (c ImagenConfig) clientOptions() []option.ClientOption {
	opts := []option.ClientOption{option.WithEndpoint(c.Location + "-aiplatform.googleapis.com:443")}
	switch {
	case c.ServiceAccountJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(c.ServiceAccountJSON)))
	case c.ServiceAccount != "":
		opts = append(opts, option.WithCredentialsFile(c.ServiceAccount))
	case c.APIKey != "":
		opts = append(opts, option.WithAPIKey(c.APIKey))
	}
	return opts
}

type predictor interface {
	Predict(ctx context.Context, req *aiplatformpb.PredictRequest, opts ...gax.CallOption) (*aiplatformpb.PredictResponse, error)
	Close() error
}

// ImagenGenerator edits the source photo with Imagen and uploads the render.
type ImagenGenerator struct {
	cfg      ImagenConfig
	uploader media.Uploader
	http     *http.Client
	dial     func(ctx context.Context) (predictor, error)
}

// NewImagenGenerator wires an ImagenGenerator. A prediction client is opened
// per call so credential rotation takes effect without a restart.
func NewImagenGenerator(cfg ImagenConfig, uploader media.Uploader) *ImagenGenerator {
	cfg.ProjectID = strings.TrimSpace(cfg.ProjectID)
	cfg.Location = strings.TrimSpace(cfg.Location)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.ServiceAccount = strings.TrimSpace(cfg.ServiceAccount)
	cfg.ServiceAccountJSON = strings.TrimSpace(cfg.ServiceAccountJSON)

	g := &ImagenGenerator{cfg: cfg, uploader: uploader, http: &http.Client{Timeout: 30 * time.Second}}
	g.dial = func(ctx context.Context) (predictor, error) {
		return aiplatform.NewPredictionClient(ctx, cfg.clientOptions()...)
	}
	return g
}

// Generate runs an Imagen edit over the source photo.
func (g *ImagenGenerator) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	switch {
	case g.uploader == nil:
		return GenerateResult{}, fmt.Errorf("imagen: uploader not configured")
	case g.cfg.ProjectID == "" || g.cfg.Location == "" || g.cfg.Model == "":
		return GenerateResult{}, fmt.Errorf("imagen: missing project/location/model")
	case strings.TrimSpace(req.Prompt) == "":
		return GenerateResult{}, fmt.Errorf("imagen: prompt is required")
	case strings.TrimSpace(req.SourceImageURL) == "":
		return GenerateResult{}, fmt.Errorf("imagen: source image is required")
	}
	started := time.Now()

	source, _, err := fetchSource(ctx, g.http, req.SourceImageURL)
	if err != nil {
		return GenerateResult{}, err
	}
	predictReq, err := g.editRequest(req, source)
	if err != nil {
		return GenerateResult{}, err
	}

	client, err := g.dial(ctx)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("imagen: prediction client: %w", err)
	}
	defer client.Close()

	resp, err := client.Predict(ctx, predictReq)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("imagen: predict: %w", err)
	}
	data, mime, err := decodePrediction(resp)
	if err != nil {
		return GenerateResult{}, err
	}

	uploaded, err := g.uploader.Upload(ctx, media.UploadInput{
		Folder:      uploadFolder,
		JobID:       req.JobID,
		Filename:    "imagen-render" + extensionFor(mime),
		ContentType: mime,
		Body:        bytes.NewReader(data),
		Size:        int64(len(data)),
	})
	if err != nil {
		return GenerateResult{}, fmt.Errorf("imagen: upload render: %w", err)
	}
	return GenerateResult{
		Success:          true,
		ImageURL:         uploaded.URL,
		GenerationTimeMs: time.Since(started).Milliseconds(),
	}, nil
}

func (g *ImagenGenerator) editRequest(req GenerateRequest, source []byte) (*aiplatformpb.PredictRequest, error) {
	instance, err := structpb.NewValue(map[string]any{
		"prompt": req.Prompt,
		"image":  map[string]any{"bytesBase64Encoded": base64.StdEncoding.EncodeToString(source)},
	})
	if err != nil {
		return nil, fmt.Errorf("imagen: instance: %w", err)
	}
	aspect := req.AspectRatio
	if aspect == "" {
		aspect = DefaultAspectRatio
	}
	params, err := structpb.NewValue(map[string]any{
		"sampleCount":   1,
		"editMode":      "inpainting-free-form",
		"aspectRatio":   aspect,
		"guidanceScale": guidanceScale(req.Quality),
	})
	if err != nil {
		return nil, fmt.Errorf("imagen: parameters: %w", err)
	}
	return &aiplatformpb.PredictRequest{
		Endpoint:   g.cfg.endpoint(),
		Instances:  []*structpb.Value{instance},
		Parameters: params,
	}, nil
}

// decodePrediction returns the first image in the response and its MIME type.
func decodePrediction(resp *aiplatformpb.PredictResponse) ([]byte, string, error) {
	if resp == nil || len(resp.GetPredictions()) == 0 {
		return nil, "", ErrNoImage
	}
	fields := resp.GetPredictions()[0].GetStructValue().GetFields()
	encoded := fields["bytesBase64Encoded"].GetStringValue()
	if encoded == "" {
		return nil, "", ErrNoImage
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("imagen: decode result: %w", err)
	}
	mime := fields["mimeType"].GetStringValue()
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/png"
	}
	return data, mime, nil
}

func guidanceScale(q design.QualityLevel) float64 {
	switch q {
	case design.QualityPremium:
		return 21
	case design.QualityDraft:
		return 9
	default:
		return 15
	}
}
