package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes files below a base directory that the router serves at baseURL.
type LocalStore struct {
	baseDir string
	baseURL string
}

// NewLocalStore ensures the base directory exists.
func NewLocalStore(baseDir, baseURL string) (*LocalStore, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if baseURL == "" {
		baseURL = "/uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &LocalStore{baseDir: baseDir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// UploadBytes writes b below folder and returns its URL.
func (s *LocalStore) UploadBytes(ctx context.Context, folder, filename string, b []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel := objectName(folder, filename)
	target := filepath.Join(s.baseDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("prepare upload directory: %w", err)
	}
	if err := os.WriteFile(target, b, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return s.baseURL + "/" + rel, nil
}

// Dir is the directory served for uploaded files.
func (s *LocalStore) Dir() string {
	return s.baseDir
}

// BaseURL is the URL prefix of uploaded files.
func (s *LocalStore) BaseURL() string {
	return s.baseURL
}
