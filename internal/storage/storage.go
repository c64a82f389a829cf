package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Bucket names a logical storage zone. Typed so call sites cannot
// pass an arbitrary string.
type Bucket string

const (
	// BucketIncoming: private, 24h retention policy.
	// Account holders upload receipt images here directly.
	BucketIncoming Bucket = "receipts-incoming"

	// BucketReceipts: private, long-term retention.
	// Verified receipts are moved here; plan audits read from it.
	BucketReceipts Bucket = "receipts"
)

// Sentinel errors, so callers branch with errors.Is instead of
// matching provider error strings.
var (
	ErrNotFound     = errors.New("storage: object not found")
	ErrAccessDenied = errors.New("storage: access denied")
	ErrUploadFailed = errors.New("storage: upload failed")
)

// UploadConfig pins down what a presigned upload may write: one exact
// key, one content type, with a hard size ceiling.
type UploadConfig struct {
	Bucket      Bucket
	Key         string
	ContentType string
	MaxFileSize int64
	Expiry      time.Duration
}

// ObjectInfo is the metadata subset the receipt scanner cares about.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Provider is the object-store surface the expense service needs.
// MinIO implements it here; any S3-compatible store can.
type Provider interface {
	GenerateUploadURL(ctx context.Context, cfg UploadConfig) (string, map[string]string, error)

	// PresignGet generates a temporary download URL (buckets are private).
	PresignGet(ctx context.Context, bucket Bucket, key string, expiry time.Duration) (string, error)

	// Stat checks existence and returns object metadata without
	// downloading the payload.
	Stat(ctx context.Context, bucket Bucket, key string) (ObjectInfo, error)

	// Copy promotes an object between buckets server side; receipt
	// bytes never pass through the caller.
	Copy(ctx context.Context, srcBucket Bucket, srcKey string, destBucket Bucket, destKey string) error

	// Delete removes an object.
	Delete(ctx context.Context, bucket Bucket, key string) error

	// Get returns a stream, never a byte slice; the worker reads
	// receipts without holding whole files in memory.
	Get(ctx context.Context, bucket Bucket, key string) (io.ReadCloser, error)
}
