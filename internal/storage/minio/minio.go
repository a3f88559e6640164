// Package minio implements storage.Uploader on an S3-compatible MinIO bucket.
package minio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sakif/product-registry/internal/storage"
)

// Config holds the connection settings for the bucket.
type Config struct {
	Endpoint  string // host[:port], no scheme
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Region skips the bucket-location lookup when set.
	Region string
}

// Uploader puts objects into a single bucket.
type Uploader struct {
	client *minio.Client
	bucket string
	logger *slog.Logger

	mu          sync.Mutex
	bucketReady bool
}

var _ storage.Uploader = (*Uploader)(nil)

// New builds an Uploader. It does not contact the server.
func New(cfg Config, logger *slog.Logger) (*Uploader, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("minio: endpoint and bucket are required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: creating client: %w", err)
	}

	return &Uploader{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// Upload stores obj under a fresh key and returns <endpoint>/<bucket>/<key>.
// The bucket is created on first use if it does not exist.
func (u *Uploader) Upload(ctx context.Context, obj storage.Object) (string, error) {
	if err := u.ensureBucket(ctx); err != nil {
		return "", err
	}

	key := storage.ObjectKey(obj.Name)
	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := u.client.PutObject(ctx, u.bucket, key, obj.Body, obj.Size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("minio: putting %s/%s: %w", u.bucket, key, err)
	}

	u.logger.Info("object uploaded",
		slog.String("bucket", u.bucket),
		slog.String("key", key),
		slog.Int64("size", info.Size),
	)
	return u.client.EndpointURL().JoinPath(u.bucket, key).String(), nil
}

func (u *Uploader) ensureBucket(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.bucketReady {
		return nil
	}

	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("minio: checking bucket %s: %w", u.bucket, err)
	}
	if !exists {
		if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("minio: creating bucket %s: %w", u.bucket, err)
		}
		u.logger.Info("bucket created", slog.String("bucket", u.bucket))
	}

	u.bucketReady = true
	return nil
}
