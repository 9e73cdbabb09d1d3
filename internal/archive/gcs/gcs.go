// Package gcs implements a Google Cloud Storage archive backend.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/cloudconsole/engine/internal/archive"
	"google.golang.org/api/option"
)

func init() {
	archive.Register("gcs", NewBackend)
}

// Backend stores objects in a GCS bucket.
type Backend struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewBackend(cfg map[string]string) (archive.Archive, error) {
	bucket := cfg["bucket"]
	if bucket == "" {
		return nil, fmt.Errorf("gcs archive requires 'bucket' configuration")
	}

	var opts []option.ClientOption
	if file := cfg["credentials"]; file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}
	if endpoint := cfg["endpoint"]; endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &Backend{client: client, bucket: bucket, prefix: cfg["prefix"]}, nil
}

func (b *Backend) Type() string { return "gcs" }

func (b *Backend) Put(ctx context.Context, key string, data io.Reader) error {
	full := archive.Join(b.prefix, key)
	w := b.client.Bucket(b.bucket).Object(full).NewWriter(ctx)
	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return fmt.Errorf("write gs://%s/%s: %w", b.bucket, full, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gs://%s/%s: %w", b.bucket, full, err)
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	full := archive.Join(b.prefix, key)
	r, err := b.client.Bucket(b.bucket).Object(full).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, archive.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", b.bucket, full, err)
	}
	return r, nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	full := archive.Join(b.prefix, key)
	err := b.client.Bucket(b.bucket).Object(full).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete gs://%s/%s: %w", b.bucket, full, err)
	}
	return nil
}
