//go:build !linux

package execrun

import (
	"context"
	"fmt"
	"time"
)

// ProcessRunner is only implemented on Linux; the grading toolchain depends
// on bash and process groups.
type ProcessRunner struct{}

func NewProcessRunner(captureMaxBytes int64) *ProcessRunner {
	return &ProcessRunner{}
}

func (r *ProcessRunner) SetGuard(guard GuardConfig) {}

func (r *ProcessRunner) Run(ctx context.Context, argv []string, workDir string, timeout time.Duration) (ExecResult, error) {
	return ExecResult{}, fmt.Errorf("process runner is only supported on linux")
}
