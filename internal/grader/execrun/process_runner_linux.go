//go:build linux

package execrun

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"gradebox/pkg/utils/logger"

	"go.uber.org/zap"
)

const defaultCaptureMaxBytes int64 = 64 * 1024

// ProcessRunner runs grading commands as subprocesses in their own process
// group so a timeout can kill the whole tree.
type ProcessRunner struct {
	captureMaxBytes int64
	guard           GuardConfig
}

// NewProcessRunner creates a runner. captureMaxBytes bounds how much of each
// stream is retained; zero or negative selects the default.
func NewProcessRunner(captureMaxBytes int64) *ProcessRunner {
	if captureMaxBytes <= 0 {
		captureMaxBytes = defaultCaptureMaxBytes
	}
	return &ProcessRunner{captureMaxBytes: captureMaxBytes}
}

// SetGuard routes every run through the sandbox-init helper. Call before the
// first Run.
func (r *ProcessRunner) SetGuard(guard GuardConfig) {
	if guard.OutputMB <= 0 {
		guard.OutputMB = defaultGuardOutputMB
	}
	if guard.PIDs <= 0 {
		guard.PIDs = defaultGuardPIDs
	}
	r.guard = guard
}

func (r *ProcessRunner) Run(ctx context.Context, argv []string, workDir string, timeout time.Duration) (ExecResult, error) {
	if len(argv) == 0 {
		return ExecResult{}, fmt.Errorf("command is required")
	}
	if workDir == "" {
		return ExecResult{}, fmt.Errorf("work dir is required")
	}

	cmd, err := r.buildCommand(argv, workDir, timeout)
	if err != nil {
		return ExecResult{}, err
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout := newCappedBuffer(r.captureMaxBytes)
	stderr := newCappedBuffer(r.captureMaxBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return ExecResult{}, fmt.Errorf("start grading command: %w", err)
	}

	var timedOut atomic.Bool
	done := make(chan struct{})
	go func() {
		var wallTimer <-chan time.Time
		if timeout > 0 {
			wallTimer = time.After(timeout)
		}
		select {
		case <-ctx.Done():
			killProcessGroup(cmd.Process.Pid)
		case <-wallTimer:
			timedOut.Store(true)
			killProcessGroup(cmd.Process.Pid)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)

	result := ExecResult{
		ExitCode: exitCodeFromErr(waitErr, cmd.ProcessState),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		TimedOut: timedOut.Load(),
		WallTime: time.Since(start),
	}
	if result.TimedOut && result.ExitCode == 0 {
		result.ExitCode = -1
	}
	if waitErr != nil && !isExitError(waitErr) {
		logger.Warn(ctx, "grading command wait failed", zap.Error(waitErr))
	}
	return result, nil
}

// buildCommand prepares a direct invocation, or a sandbox-init invocation
// carrying the guard request on stdin when the guard is configured.
func (r *ProcessRunner) buildCommand(argv []string, workDir string, timeout time.Duration) (*exec.Cmd, error) {
	if r.guard.HelperPath == "" {
		cmd := exec.Command(argv[0], argv[1:]...)
		cmd.Dir = workDir
		return cmd, nil
	}

	req := GuardRequest{
		WorkDir:        workDir,
		Cmd:            argv,
		SeccompProfile: r.guard.SeccompProfile,
		Limits: GuardLimits{
			CPUTimeS: r.guard.CPUTimeS,
			OutputMB: r.guard.OutputMB,
			PIDs:     r.guard.PIDs,
		},
	}
	if req.Limits.CPUTimeS <= 0 && timeout > 0 {
		// CPU bound tracks the wall clock, with headroom for compilation.
		req.Limits.CPUTimeS = int64(timeout/time.Second) + 5
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode guard request: %w", err)
	}
	cmd := exec.Command(r.guard.HelperPath)
	cmd.Dir = workDir
	cmd.Stdin = bytes.NewReader(payload)
	return cmd, nil
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

func exitCodeFromErr(err error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}
