package media

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// LocalUploader stores renders on the local filesystem, optionally exposed
// under a public base URL.
type LocalUploader struct {
	BaseDir       string
	PublicBaseURL string
}

// NewLocalUploader constructs an uploader that writes to the provided directory.
// If baseDir is empty, a roomdesign folder under os.TempDir() is used.
func NewLocalUploader(baseDir, publicBaseURL string) (*LocalUploader, error) {
	dir := baseDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "roomdesign")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create local media dir: %w", err)
	}
	return &LocalUploader{BaseDir: dir, PublicBaseURL: strings.TrimSuffix(publicBaseURL, "/")}, nil
}

// Upload writes the render below BaseDir and returns its key and URL.
func (l *LocalUploader) Upload(_ context.Context, input UploadInput) (UploadResult, error) {
	if err := validate(input); err != nil {
		return UploadResult{}, err
	}

	key := objectKey(input)
	target := filepath.Join(l.BaseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return UploadResult{}, fmt.Errorf("create folder: %w", err)
	}

	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, input.Body); err != nil {
		os.Remove(target)
		return UploadResult{}, fmt.Errorf("write file: %w", err)
	}
	return UploadResult{Key: key, URL: l.objectURL(key, target)}, nil
}

func (l *LocalUploader) objectURL(key, path string) string {
	if l.PublicBaseURL != "" {
		return l.PublicBaseURL + "/" + key
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
