package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gradebox/internal/common/storage"
	"gradebox/internal/grader/model"
	appErr "gradebox/pkg/errors"
)

// ReportArchiver persists final grading reports to object storage so they
// survive the ephemeral job workspace.
type ReportArchiver struct {
	store   storage.ObjectStorage
	bucket  string
	timeout time.Duration
}

// NewReportArchiver creates an archiver writing under reports/<jobID>.json.
func NewReportArchiver(store storage.ObjectStorage, bucket string, timeout time.Duration) (*ReportArchiver, error) {
	if store == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("object storage is required")
	}
	if bucket == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("bucket is required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ReportArchiver{store: store, bucket: bucket, timeout: timeout}, nil
}

// Archive uploads the report. Callers treat failures as non-fatal.
func (a *ReportArchiver) Archive(ctx context.Context, jobID string, rep model.Report) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report failed: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	key := fmt.Sprintf("reports/%s.json", jobID)
	if err := a.store.PutObject(ctx, a.bucket, key, bytes.NewReader(payload), int64(len(payload)), "application/json"); err != nil {
		return appErr.Wrapf(err, appErr.ReportArchiveFailed, "upload report %s failed", key)
	}
	return nil
}
