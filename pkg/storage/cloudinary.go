package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	cld "github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryStore uploads to Cloudinary.
type CloudinaryStore struct {
	cld *cld.Cloudinary
}

// NewCloudinaryStore configures the client from a cloudinary:// URL. An empty URL falls back
// to the CLOUDINARY_URL environment variable.
func NewCloudinaryStore(cloudinaryURL string) (*CloudinaryStore, error) {
	var (
		client *cld.Cloudinary
		err    error
	)
	if cloudinaryURL == "" {
		client, err = cld.New()
	} else {
		client, err = cld.NewFromURL(cloudinaryURL)
	}
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &CloudinaryStore{cld: client}, nil
}

// UploadBytes uploads b into folder and returns the secure URL.
func (s *CloudinaryStore) UploadBytes(ctx context.Context, folder, filename string, b []byte) (string, error) {
	name := objectName(folder, filename)
	publicID := strings.TrimSuffix(path.Base(name), path.Ext(name))

	res, err := s.cld.Upload.Upload(ctx, bytes.NewReader(b), uploader.UploadParams{
		Folder:       folder,
		PublicID:     publicID,
		ResourceType: "auto",
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return "", fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	return res.SecureURL, nil
}
