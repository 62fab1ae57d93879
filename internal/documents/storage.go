package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"trainhub/platform/signing-backend/pkg/storage"
)

const pdfContentType = "application/pdf"

// StorageProvider reads and writes document PDFs in one bucket.
type StorageProvider struct {
	s3     storage.S3Client
	bucket string
}

func NewStorageProvider(s3 storage.S3Client, bucket string) *StorageProvider {
	return &StorageProvider{s3: s3, bucket: bucket}
}

// Download returns the whole object at key.
func (p *StorageProvider) Download(ctx context.Context, key string) ([]byte, error) {
	rc, err := p.s3.Download(ctx, p.bucket, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return b, nil
}

// UploadPDF overwrites key with body and returns its public URL.
func (p *StorageProvider) UploadPDF(ctx context.Context, key string, body []byte) (string, error) {
	if err := p.s3.Upload(ctx, p.bucket, key, bytes.NewReader(body), pdfContentType); err != nil {
		return "", err
	}
	return p.s3.PublicURL(p.bucket, key), nil
}

func (p *StorageProvider) Delete(ctx context.Context, key string) error {
	return p.s3.Delete(ctx, p.bucket, key)
}

func (p *StorageProvider) PublicURL(key string) string {
	return p.s3.PublicURL(p.bucket, key)
}

func (p *StorageProvider) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return p.s3.GetPresignedURL(ctx, p.bucket, key, ttl)
}

// PathFromURL resolves a stored file URL to a key in this bucket.
func (p *StorageProvider) PathFromURL(url string) (string, bool) {
	return storage.PathFromPublicURL(p.bucket, url)
}

// FinalKey is where the fully signed copy of a document lives.
func FinalKey(organizationID, documentID uuid.UUID) string {
	return fmt.Sprintf("%s/documents/%s/convention_signee_%s.pdf", organizationID, documentID, documentID)
}

// IntermediateKey is the in-flight artifact of a multi-party process.
func IntermediateKey(organizationID, processID uuid.UUID) string {
	return fmt.Sprintf("%s/documents/processes/%s/intermediate.pdf", organizationID, processID)
}
