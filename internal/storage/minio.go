package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var _ Provider = (*MinioProvider)(nil)

type MinioProvider struct {
	client *minio.Client
}

// NewMinioProvider initializes the S3 client. useSSL is off only for
// local MinIO.
func NewMinioProvider(endpoint, accessKeyID, secretAccessKey string, useSSL bool) (Provider, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioProvider{client: client}, nil
}

// GenerateUploadURL signs a POST policy for a direct browser upload,
// so receipt images never pass through the API process. The policy
// pins bucket, exact key, content type and a size window; the client
// can vary none of them.
func (m *MinioProvider) GenerateUploadURL(ctx context.Context, cfg UploadConfig) (string, map[string]string, error) {
	policy := minio.NewPostPolicy()

	if err := policy.SetBucket(string(cfg.Bucket)); err != nil {
		return "", nil, fmt.Errorf("failed to set bucket: %w", err)
	}
	if err := policy.SetKey(cfg.Key); err != nil {
		return "", nil, fmt.Errorf("failed to set key: %w", err)
	}
	if err := policy.SetExpires(time.Now().Add(cfg.Expiry).UTC()); err != nil {
		return "", nil, fmt.Errorf("failed to set expiry: %w", err)
	}

	// 1KB floor rejects empty-file spam.
	if err := policy.SetContentLengthRange(1024, cfg.MaxFileSize); err != nil {
		return "", nil, fmt.Errorf("failed to set size limit: %w", err)
	}
	if err := policy.SetContentType(cfg.ContentType); err != nil {
		return "", nil, fmt.Errorf("failed to set content type: %w", err)
	}

	url, formData, err := m.client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate post policy: %w", err)
	}

	// The client must echo every form field back for the signature to
	// verify.
	return url.String(), formData, nil
}

// PresignGet generates a temporary download URL. Both receipt buckets
// are private.
func (m *MinioProvider) PresignGet(ctx context.Context, bucket Bucket, key string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, string(bucket), key, expiry, nil)
	if err != nil {
		return "", mapMinioError(err)
	}
	return u.String(), nil
}

// Stat returns object metadata, mapping absence to ErrNotFound. The
// receipt scanner branches on exactly that distinction.
func (m *MinioProvider) Stat(ctx context.Context, bucket Bucket, key string) (ObjectInfo, error) {
	info, err := m.client.StatObject(ctx, string(bucket), key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, mapMinioError(err)
	}

	return ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}

// Copy runs server side; receipt bytes never transit the worker.
func (m *MinioProvider) Copy(ctx context.Context, srcBucket Bucket, srcKey string, destBucket Bucket, destKey string) error {
	src := minio.CopySrcOptions{
		Bucket: string(srcBucket),
		Object: srcKey,
	}
	dest := minio.CopyDestOptions{
		Bucket: string(destBucket),
		Object: destKey,
	}

	if _, err := m.client.CopyObject(ctx, dest, src); err != nil {
		return mapMinioError(err)
	}

	return nil
}

func (m *MinioProvider) Delete(ctx context.Context, bucket Bucket, key string) error {
	opts := minio.RemoveObjectOptions{
		// Removal must win over bucket object-lock settings.
		GovernanceBypass: true,
	}

	if err := m.client.RemoveObject(ctx, string(bucket), key, opts); err != nil {
		return mapMinioError(err)
	}
	return nil
}

// Get returns the object stream.
func (m *MinioProvider) Get(ctx context.Context, bucket Bucket, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, string(bucket), key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioError(err)
	}

	// GetObject defers existence checks to the first read. Stat forces
	// one so callers get ErrNotFound here, not mid-stream.
	if _, err := obj.Stat(); err != nil {
		return nil, mapMinioError(err)
	}

	return obj, nil
}

// mapMinioError translates SDK errors into this package's sentinels.
func mapMinioError(err error) error {
	if err == nil {
		return nil
	}

	errResp := minio.ToErrorResponse(err)

	switch errResp.Code {
	case "NoSuchKey":
		return ErrNotFound
	case "AccessDenied":
		return ErrAccessDenied
	}

	if errResp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if errResp.StatusCode == http.StatusForbidden {
		return ErrAccessDenied
	}

	return fmt.Errorf("storage provider error: %w", err)
}
