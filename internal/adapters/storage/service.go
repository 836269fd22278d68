// Package storage archives raw webhook bodies in S3-compatible object storage.
package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStore defines the object storage operations used by the webhook archive.
type ObjectStore interface {
	// EnsureBucketExists creates the bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context, bucket string) error

	// UploadFile uploads a file from an io.Reader and returns the full file key.
	UploadFile(ctx context.Context, bucket, folder, fileName, contentType string, reader io.Reader, size int64) (string, error)

	// DeleteObject removes an object from storage.
	DeleteObject(ctx context.Context, bucket, fileKey string) error

	// DeleteOlderThan removes every object under prefix last modified before cutoff.
	DeleteOlderThan(ctx context.Context, bucket, prefix string, cutoff time.Time) (int, error)
}

// Config defines the configuration interface for storage.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	IsMinIOEnabled() bool
}
