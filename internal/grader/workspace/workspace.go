// Package workspace owns the per-job directory tree lifecycle.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gradebox/pkg/utils/logger"

	"go.uber.org/zap"
)

// Layout describes the filesystem layout for one grading job.
type Layout struct {
	JobID      string
	RootDir    string
	SourceDir  string
	TestsDir   string
	ResultsDir string
}

// Manager creates and destroys job workspaces under a fixed work root.
type Manager struct {
	workRoot string
}

// NewManager creates a workspace manager rooted at workRoot.
func NewManager(workRoot string) (*Manager, error) {
	if workRoot == "" {
		return nil, fmt.Errorf("work root is required")
	}
	if err := os.MkdirAll(workRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create work root: %w", err)
	}
	return &Manager{workRoot: workRoot}, nil
}

// Create builds an exclusive workspace for jobID with the source, tests and
// results subdirectories pre-made. Job IDs are unique per request, so the
// directory never collides with a live job.
func (m *Manager) Create(ctx context.Context, jobID string) (Layout, error) {
	if jobID == "" {
		return Layout{}, fmt.Errorf("job id is required")
	}
	root := filepath.Join(m.workRoot, "job-"+jobID)
	layout := Layout{
		JobID:      jobID,
		RootDir:    root,
		SourceDir:  filepath.Join(root, "source"),
		TestsDir:   filepath.Join(root, "tests"),
		ResultsDir: filepath.Join(root, "results"),
	}
	for _, dir := range []string{layout.SourceDir, layout.TestsDir, layout.ResultsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			// Partial trees are removed so a failed create leaves nothing behind.
			_ = os.RemoveAll(root)
			return Layout{}, fmt.Errorf("create workspace dir %s: %w", dir, err)
		}
	}
	logger.Debug(ctx, "workspace created", zap.String("job_id", jobID), zap.String("root", root))
	return layout, nil
}

// Destroy removes the workspace tree recursively. Removal errors are logged
// and swallowed: by the time Destroy runs the grading response has already
// been determined, and a missing or partially-removed directory is not worth
// failing the job over.
func (m *Manager) Destroy(ctx context.Context, layout Layout) {
	if layout.RootDir == "" {
		return
	}
	if err := os.RemoveAll(layout.RootDir); err != nil {
		logger.Warn(ctx, "workspace cleanup failed",
			zap.String("job_id", layout.JobID),
			zap.String("root", layout.RootDir),
			zap.Error(err))
		return
	}
	logger.Debug(ctx, "workspace destroyed", zap.String("job_id", layout.JobID))
}
