// Package execrun invokes external grading commands with a hard wall-clock bound.
package execrun

import (
	"context"
	"time"
)

// ExecResult captures one subprocess invocation. Exit status and streams are
// reported as observed; interpreting them is the caller's job.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	WallTime time.Duration
}

// Runner runs one command to completion or forced termination.
type Runner interface {
	// Run executes argv with workDir as working directory. The process is
	// killed once timeout elapses; a timeout, a nonzero exit and a zero exit
	// are all valid terminal outcomes returned without error.
	Run(ctx context.Context, argv []string, workDir string, timeout time.Duration) (ExecResult, error)
}
