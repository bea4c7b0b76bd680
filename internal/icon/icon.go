// Package icon stores collection icons in an S3-compatible bucket.
package icon

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"archive/api/internal/config"
)

var extensions = map[string]string{
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/jpeg": ".jpg",
}

// Store uploads and removes collection icons.
type Store struct {
	client   *minio.Client
	bucket   string
	baseURL  string
	maxBytes int64
}

// New connects to the configured object store and makes sure the icon bucket
// exists. Returns nil with no error when icon storage is unconfigured.
func New(ctx context.Context, cfg config.Config) (*Store, error) {
	if cfg.IconEndpoint == "" {
		return nil, nil
	}
	client, err := minio.New(cfg.IconEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.IconAccessKey, cfg.IconSecretKey, ""),
		Secure: cfg.IconUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect icon storage: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.IconBucket)
	if err != nil {
		return nil, fmt.Errorf("check icon bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.IconBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create icon bucket: %w", err)
		}
	}

	return &Store{
		client:   client,
		bucket:   cfg.IconBucket,
		baseURL:  strings.TrimSuffix(cfg.IconBaseURL, "/"),
		maxBytes: int64(cfg.IconMaxBytes),
	}, nil
}

// ValidateUpload checks an icon's declared content type and size before any
// bytes move.
func ValidateUpload(contentType string, size, maxBytes int64) error {
	if _, ok := extensions[contentType]; !ok {
		return fmt.Errorf("icon must be a png, gif, or jpeg image, got %q", contentType)
	}
	if size <= 0 {
		return fmt.Errorf("icon upload is empty")
	}
	if size > maxBytes {
		return fmt.Errorf("icon is %d bytes, the limit is %d", size, maxBytes)
	}
	return nil
}

// Upload stores an icon for a collection and returns its public URL. Any
// previous icon for the collection is overwritten.
func (s *Store) Upload(ctx context.Context, collectionID, contentType string, r io.Reader, size int64) (string, error) {
	if err := ValidateUpload(contentType, size, s.maxBytes); err != nil {
		return "", err
	}
	name := objectName(collectionID, contentType)
	_, err := s.client.PutObject(ctx, s.bucket, name, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload icon: %w", err)
	}
	return s.url(name), nil
}

// Delete removes every stored variant of a collection's icon.
func (s *Store) Delete(ctx context.Context, collectionID string) error {
	for _, ext := range extensions {
		name := "icons/" + collectionID + ext
		if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove icon: %w", err)
		}
	}
	return nil
}

func objectName(collectionID, contentType string) string {
	return "icons/" + collectionID + extensions[contentType]
}

func (s *Store) url(name string) string {
	if s.baseURL != "" {
		return s.baseURL + "/" + name
	}
	scheme := "https"
	if !strings.HasPrefix(s.client.EndpointURL().String(), "https") {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.client.EndpointURL().Host, s.bucket, name)
}
