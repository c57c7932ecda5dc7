// Package service drives a grading job through its stages: workspace,
// intake, strategy execution, result recovery, status bookkeeping.
package service

import (
	"context"
	"time"

	"gradebox/internal/common/mq"
	"gradebox/internal/grader/intake"
	"gradebox/internal/grader/model"
	"gradebox/internal/grader/report"
	"gradebox/internal/grader/repository"
	"gradebox/internal/grader/strategy"
	"gradebox/internal/grader/workspace"
	appErr "gradebox/pkg/errors"
	"gradebox/pkg/utils/contextkey"
	"gradebox/pkg/utils/logger"

	"go.uber.org/zap"
)

// Config wires the grade service dependencies. StatusRepo and Archiver are
// optional; nil disables the concern.
type Config struct {
	Workspaces *workspace.Manager
	Intake     *intake.Materializer
	Engine     *strategy.Engine
	StatusRepo *repository.StatusRepository
	Archiver   *ReportArchiver

	// MaxConcurrentJobs bounds simultaneous grading subprocesses.
	MaxConcurrentJobs int
	// AcquirePatience is how long a request waits for a free slot before the
	// service answers busy.
	AcquirePatience time.Duration
}

// GradeService executes grading jobs end to end.
type GradeService struct {
	workspaces *workspace.Manager
	intake     *intake.Materializer
	engine     *strategy.Engine
	statusRepo *repository.StatusRepository
	archiver   *ReportArchiver
	limiter    *mq.TokenLimiter
	patience   time.Duration
}

// NewGradeService creates a grade service.
func NewGradeService(cfg Config) (*GradeService, error) {
	if cfg.Workspaces == nil || cfg.Intake == nil || cfg.Engine == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("workspaces, intake and engine are required")
	}
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 4
	}
	if cfg.AcquirePatience <= 0 {
		cfg.AcquirePatience = 5 * time.Second
	}
	return &GradeService{
		workspaces: cfg.Workspaces,
		intake:     cfg.Intake,
		engine:     cfg.Engine,
		statusRepo: cfg.StatusRepo,
		archiver:   cfg.Archiver,
		limiter:    mq.NewTokenLimiter(cfg.MaxConcurrentJobs),
		patience:   cfg.AcquirePatience,
	}, nil
}

// Grade runs one job. A nil error means the pipeline produced a report, which
// may itself describe a grading failure; a non-nil error is a pipeline fault
// (validation, extraction, capacity, internal) and no report exists.
// The workspace is destroyed exactly once on every path, panics included.
func (s *GradeService) Grade(ctx context.Context, jobID string, sub intake.Submission) (rep model.Report, err error) {
	// A disconnecting client must not abort the job: the subprocess runs to
	// completion or wall-clock timeout, and status/cleanup still happen.
	// Only the caller's cancellation is dropped; the log-correlation values
	// survive.
	ctx = context.WithoutCancel(ctx)
	ctx = context.WithValue(ctx, contextkey.JobID, jobID)
	receivedAt := time.Now().Unix()

	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "grading pipeline panicked", zap.Any("panic", r))
			rep = nil
			err = appErr.Newf(appErr.InternalServerError, "grading pipeline panicked: %v", r)
			s.recordFailure(ctx, jobID, receivedAt, err)
		}
	}()

	// Fail fast before any filesystem or process work.
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, s.patience)
	defer cancel()
	if err := s.limiter.Acquire(acquireCtx); err != nil {
		logger.Warn(ctx, "no free grading slot", zap.Duration("waited", s.patience))
		return nil, appErr.New(appErr.CapacityExhausted)
	}
	defer s.limiter.Release()

	s.recordStatus(ctx, model.JobStatus{
		JobID:      jobID,
		State:      model.StateRunning,
		ReceivedAt: receivedAt,
	})

	layout, err := s.workspaces.Create(ctx, jobID)
	if err != nil {
		err = appErr.Wrap(err, appErr.WorkspaceCreateFailed)
		s.recordFailure(ctx, jobID, receivedAt, err)
		return nil, err
	}
	defer s.workspaces.Destroy(ctx, layout)

	if err := s.intake.Materialize(ctx, layout, sub); err != nil {
		s.recordFailure(ctx, jobID, receivedAt, err)
		return nil, err
	}

	outcome, runErr := s.engine.Run(ctx, layout, sub.Artifact)
	if runErr != nil {
		// Execution faults are never surfaced directly; recovery turns
		// whatever is on disk into a diagnostic report.
		logger.Error(ctx, "strategy execution failed", zap.Error(runErr))
	}

	rep = report.Recover(ctx, layout.ResultsDir)

	status := model.JobStatus{
		JobID:               jobID,
		State:               model.StateFinished,
		Strategy:            string(outcome.Final),
		TotalPointsAchieved: rep.TotalPoints(),
		MaxTotalPoints:      rep.MaxPoints(),
		ReceivedAt:          receivedAt,
		FinishedAt:          time.Now().Unix(),
	}
	if rep.HasError() {
		status.State = model.StateFailed
		status.Error = rep.ErrorMessage()
	}
	s.recordStatus(ctx, status)

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, jobID, rep); err != nil {
			logger.Warn(ctx, "archive grading report failed", zap.Error(err))
		}
	}
	return rep, nil
}

// JobStatus returns the stored status for a job.
func (s *GradeService) JobStatus(ctx context.Context, jobID string) (model.JobStatus, error) {
	if s.statusRepo == nil {
		return model.JobStatus{}, appErr.New(appErr.StatusStoreDisabled)
	}
	return s.statusRepo.Get(ctx, jobID)
}

func (s *GradeService) recordStatus(ctx context.Context, status model.JobStatus) {
	if s.statusRepo == nil {
		return
	}
	if err := s.statusRepo.Save(ctx, status); err != nil {
		logger.Warn(ctx, "save job status failed",
			zap.String("job_id", status.JobID),
			zap.Error(err))
	}
}

func (s *GradeService) recordFailure(ctx context.Context, jobID string, receivedAt int64, cause error) {
	s.recordStatus(ctx, model.JobStatus{
		JobID:      jobID,
		State:      model.StateFailed,
		Error:      cause.Error(),
		ReceivedAt: receivedAt,
		FinishedAt: time.Now().Unix(),
	})
}
