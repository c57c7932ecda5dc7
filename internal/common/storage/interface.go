package storage

import (
	"context"
	"io"
)

// ObjectStorage defines the minimal object storage operations the grader
// needs for report archival. It is intentionally small so MinIO/AWS-S3
// implementations stay swappable without touching business logic.
type ObjectStorage interface {
	// PutObject uploads an object of the given size.
	PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, sizeBytes int64, contentType string) error
}
