package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

var _ Provider = (*MemoryProvider)(nil)

type memoryObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// MemoryProvider is a thread-safe Fake for testing.
// It stores objects in a map: objects[bucket][key] = object
type MemoryProvider struct {
	mu      sync.RWMutex
	objects map[Bucket]map[string]memoryObject
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		objects: make(map[Bucket]map[string]memoryObject),
	}
}

// Put seeds an object directly, standing in for a browser upload.
func (m *MemoryProvider) Put(bucket Bucket, key string, data []byte, contentType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.objects[bucket] == nil {
		m.objects[bucket] = make(map[string]memoryObject)
	}
	m.objects[bucket][key] = memoryObject{
		data:        data,
		contentType: contentType,
		modified:    time.Now().UTC(),
	}
}

func (m *MemoryProvider) GenerateUploadURL(ctx context.Context, cfg UploadConfig) (string, map[string]string, error) {
	fields := map[string]string{
		"key":          cfg.Key,
		"Content-Type": cfg.ContentType,
		"policy":       "fake-policy",
	}
	return fmt.Sprintf("https://storage.test/%s", cfg.Bucket), fields, nil
}

func (m *MemoryProvider) PresignGet(ctx context.Context, bucket Bucket, key string, expiry time.Duration) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, exists := m.objects[bucket][key]; !exists {
		return "", ErrNotFound
	}
	return fmt.Sprintf("https://storage.test/%s/%s?signed=1", bucket, key), nil
}

func (m *MemoryProvider) Stat(ctx context.Context, bucket Bucket, key string) (ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, exists := m.objects[bucket][key]
	if !exists {
		return ObjectInfo{}, ErrNotFound
	}
	return ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		ContentType:  obj.contentType,
		LastModified: obj.modified,
	}, nil
}

func (m *MemoryProvider) Copy(ctx context.Context, srcBucket Bucket, srcKey string, destBucket Bucket, destKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, exists := m.objects[srcBucket][srcKey]
	if !exists {
		return ErrNotFound
	}
	if m.objects[destBucket] == nil {
		m.objects[destBucket] = make(map[string]memoryObject)
	}
	m.objects[destBucket][destKey] = obj

	return nil
}

func (m *MemoryProvider) Delete(ctx context.Context, bucket Bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if bucketObjs, exists := m.objects[bucket]; exists {
		delete(bucketObjs, key)
	}
	// Object stores don't error on deleting a missing key.
	return nil
}

func (m *MemoryProvider) Get(ctx context.Context, bucket Bucket, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, exists := m.objects[bucket][key]
	if !exists {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Clear resets the storage (useful for `defer cleanup()`)
func (m *MemoryProvider) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects = make(map[Bucket]map[string]memoryObject)
}
