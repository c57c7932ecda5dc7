// Package repository persists job status and publishes terminal job events.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gradebox/internal/common/cache"
	"gradebox/internal/grader/model"
	appErr "gradebox/pkg/errors"
	"gradebox/pkg/utils/logger"

	"go.uber.org/zap"
)

const statusKeyPrefix = "grader:status:"

// StatusRepository keeps queryable job status records in a TTL'd key-value
// store, decoupled from the synchronous grading call.
type StatusRepository struct {
	cache     cache.Cache
	ttl       time.Duration
	publisher StatusEventPublisher
}

// NewStatusRepository creates a repository. The publisher is optional; when
// nil, terminal statuses are stored but not published.
func NewStatusRepository(cacheClient cache.Cache, ttl time.Duration, publisher StatusEventPublisher) (*StatusRepository, error) {
	if cacheClient == nil {
		return nil, appErr.New(appErr.CacheError).WithMessage("cache client is required")
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &StatusRepository{cache: cacheClient, ttl: ttl, publisher: publisher}, nil
}

// Get returns status by job id.
func (r *StatusRepository) Get(ctx context.Context, jobID string) (model.JobStatus, error) {
	if jobID == "" {
		return model.JobStatus{}, appErr.ValidationError("job_id", "required")
	}
	val, err := r.cache.Get(ctx, statusKeyPrefix+jobID)
	if err != nil || val == "" {
		return model.JobStatus{}, appErr.New(appErr.JobNotFound)
	}
	var status model.JobStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return model.JobStatus{}, appErr.Wrapf(err, appErr.CacheError, "decode job status failed")
	}
	return status, nil
}

// Save persists status and, for terminal states, publishes a final event.
// Publish failures are logged and swallowed: the grading response must not
// depend on the event pipeline.
func (r *StatusRepository) Save(ctx context.Context, status model.JobStatus) error {
	if status.JobID == "" {
		return appErr.ValidationError("job_id", "required")
	}
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal job status failed: %w", err)
	}
	if err := r.cache.Set(ctx, statusKeyPrefix+status.JobID, string(data), r.ttl); err != nil {
		return appErr.Wrapf(err, appErr.CacheSetFailed, "store job status failed")
	}
	if status.State.Terminal() && r.publisher != nil {
		if err := r.publisher.PublishFinalStatus(ctx, status); err != nil {
			logger.Warn(ctx, "publish final job status failed",
				zap.String("job_id", status.JobID),
				zap.Error(err))
		}
	}
	return nil
}
