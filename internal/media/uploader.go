package media

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrUploaderDisabled indicates that uploads are not currently enabled.
	ErrUploaderDisabled = errors.New("media uploader disabled")
	// ErrUnsupportedType is returned for content that is not an image.
	ErrUnsupportedType = errors.New("media: only images can be stored")
)

// UploadInput is a rendered design to persist. Renders for the same job share
// a folder.
type UploadInput struct {
	Folder      string
	JobID       string
	Filename    string
	ContentType string
	Body        io.Reader
	Size        int64
}

// UploadResult captures the canonical object key and its accessible URL.
type UploadResult struct {
	Key string
	URL string
}

// Uploader hides the backing implementation for storing files.
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (UploadResult, error)
}

type disabledUploader struct{}

func (disabledUploader) Upload(_ context.Context, _ UploadInput) (UploadResult, error) {
	return UploadResult{}, ErrUploaderDisabled
}

// Disabled returns an uploader that always signals disabled uploads.
func Disabled() Uploader {
	return disabledUploader{}
}

var extensionByType = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

func validate(input UploadInput) error {
	if input.Body == nil {
		return errors.New("upload body is required")
	}
	if ct := strings.TrimSpace(input.ContentType); ct != "" && !strings.HasPrefix(ct, "image/") {
		return ErrUnsupportedType
	}
	return nil
}

// objectKey returns folder/jobID/design-{uuid}.ext with every segment cleaned
// so callers cannot escape the folder.
func objectKey(input UploadInput) string {
	ext := strings.ToLower(filepath.Ext(input.Filename))
	if ext == "" || len(ext) > 6 {
		ext = extensionByType[strings.ToLower(strings.TrimSpace(input.ContentType))]
	}
	return path.Join(cleanSegment(input.Folder), cleanSegment(input.JobID), "design-"+uuid.NewString()+ext)
}

func cleanSegment(s string) string {
	return strings.Trim(path.Clean("/"+strings.ReplaceAll(s, "\\", "/")), "/")
}
