// Package storage uploads artifacts (supporting documents, signature images) and returns a
// durable URL for them.
package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ecas/approval-api/pkg/config"
)

// Folders used by the API.
const (
	FolderDocuments  = "documents"
	FolderSignatures = "signatures"
)

// Uploader stores a blob under a logical folder and returns its URL.
type Uploader interface {
	UploadBytes(ctx context.Context, folder, filename string, b []byte) (string, error)
}

// New returns the uploader selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Uploader, error) {
	switch cfg.Driver {
	case config.StorageDriverCloudinary:
		return NewCloudinaryStore(cfg.CloudinaryURL)
	case config.StorageDriverS3:
		return NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3PublicBaseURL)
	case config.StorageDriverLocal, "":
		return NewLocalStore(cfg.LocalDir, cfg.LocalBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// objectName builds a collision free key below folder keeping the original extension.
func objectName(folder, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = sanitize(base)
	if base == "" {
		base = "file"
	}
	return path.Join(sanitize(folder), fmt.Sprintf("%s-%s%s", uuid.NewString()[:8], base, ext))
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('-')
		}
	}
	return b.String()
}
