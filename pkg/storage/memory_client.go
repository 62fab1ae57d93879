package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"
)

// MemoryClient is an in-process S3Client used for local runs without an
// object store and in tests.
type MemoryClient struct {
	mu            sync.RWMutex
	objects       map[string][]byte
	publicBaseURL string
}

func NewMemoryClient(publicBaseURL string) *MemoryClient {
	return &MemoryClient{
		objects:       make(map[string][]byte),
		publicBaseURL: publicBaseURL,
	}
}

func (c *MemoryClient) Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.objects[bucket+"/"+key] = b
	c.mu.Unlock()
	return nil
}

func (c *MemoryClient) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	c.mu.RLock()
	b, ok := c.objects[bucket+"/"+key]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (c *MemoryClient) Delete(ctx context.Context, bucket, key string) error {
	c.mu.Lock()
	delete(c.objects, bucket+"/"+key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryClient) GetPresignedURL(ctx context.Context, bucket, key string, expiration time.Duration) (string, error) {
	return c.PublicURL(bucket, key) + "?expires=" + expiration.String(), nil
}

func (c *MemoryClient) PublicURL(bucket, key string) string {
	return BuildPublicURL(c.publicBaseURL, bucket, key)
}

// Object returns a stored object, for assertions.
func (c *MemoryClient) Object(bucket, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.objects[bucket+"/"+key]
	return b, ok
}

var _ S3Client = (*MemoryClient)(nil)
