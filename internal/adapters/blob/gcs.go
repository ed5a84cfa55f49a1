// Package blob stores uploaded crop photos.
package blob

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// GCSStore implements domain.BlobStore over a Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

func NewGCS(ctx context.Context, bucket string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required for GCS blob store")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (g *GCSStore) UploadImage(ctx context.Context, name string, mimeType string, data []byte) (string, error) {
	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	w.ContentType = mimeType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("writing object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing object %s: %w", name, err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucket, name), nil
}
