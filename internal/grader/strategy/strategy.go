// Package strategy selects and drives the grading execution backends.
package strategy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gradebox/internal/grader/execrun"
	"gradebox/internal/grader/intake"
	"gradebox/internal/grader/workspace"
	appErr "gradebox/pkg/errors"
	"gradebox/pkg/utils/logger"

	"github.com/google/shlex"
	"go.uber.org/zap"
)

// ID identifies one grading backend.
type ID string

const (
	// Fast handles a single test source file without the full toolchain setup.
	Fast ID = "fast"
	// Full is the general-purpose toolchain path.
	Full ID = "full"
)

// FallbackSentinel is written by the fast script into results/ when it wants
// the full toolchain to take over. It is the authoritative escalation signal;
// a bare exit code 1 from the fast script is still honored for older scripts
// but cannot be told apart from a genuine failure.
const FallbackSentinel = "_fallback_requested"

// legacyFallbackExitCode is the overloaded exit status older fast scripts use
// to request escalation.
const legacyFallbackExitCode = 1

// Config holds the external command templates. {workspace} expands to the
// job's workspace root.
type Config struct {
	FastCommand string
	FullCommand string
	Timeout     time.Duration
	// SourceExt is the suffix of test sources the fast path can grade.
	SourceExt string
}

// Attempt records one backend invocation.
type Attempt struct {
	Strategy ID
	Result   execrun.ExecResult
}

// Outcome is the terminal result of the strategy state machine. Success here
// only means a backend ran to a terminal state; whether grading succeeded is
// decided later from the results directory.
type Outcome struct {
	Attempts []Attempt
	Final    ID
	FellBack bool
}

// LastResult returns the exec result of the final attempt.
func (o Outcome) LastResult() execrun.ExecResult {
	if len(o.Attempts) == 0 {
		return execrun.ExecResult{}
	}
	return o.Attempts[len(o.Attempts)-1].Result
}

// Engine runs the strategy state machine over a bounded process runner.
type Engine struct {
	runner execrun.Runner
	cfg    Config
}

// NewEngine creates a strategy engine and validates the command templates.
func NewEngine(runner execrun.Runner, cfg Config) (*Engine, error) {
	if runner == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("runner is required")
	}
	if strings.TrimSpace(cfg.FastCommand) == "" || strings.TrimSpace(cfg.FullCommand) == "" {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("fast and full command templates are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.SourceExt == "" {
		cfg.SourceExt = ".java"
	}
	for _, tpl := range []string{cfg.FastCommand, cfg.FullCommand} {
		if _, err := buildCommand(tpl, "/tmp/probe"); err != nil {
			return nil, err
		}
	}
	return &Engine{runner: runner, cfg: cfg}, nil
}

// Select picks the initial backend for an artifact: Fast only for a single
// test source of the grading language, Full for archives and everything else.
// Selection is a heuristic; the fast path may still request escalation
// mid-execution.
func (e *Engine) Select(artifact intake.Artifact) ID {
	if artifact.Kind() != intake.KindSingleFile {
		return Full
	}
	if !strings.EqualFold(filepath.Ext(artifact.Filename), e.cfg.SourceExt) {
		return Full
	}
	return Fast
}

// Run drives NotStarted -> (Fast|Full) -> {Success, NeedsFallback -> Full ->
// {Success, Failed}, Failed}. Both terminal states flow into result recovery;
// Run only errors when a backend could not be started at all.
func (e *Engine) Run(ctx context.Context, layout workspace.Layout, artifact intake.Artifact) (Outcome, error) {
	initial := e.Select(artifact)
	outcome := Outcome{Final: initial}

	result, err := e.runOne(ctx, initial, layout)
	if err != nil {
		return outcome, err
	}
	outcome.Attempts = append(outcome.Attempts, Attempt{Strategy: initial, Result: result})

	if initial == Fast && e.needsFallback(ctx, layout, result) {
		logger.Info(ctx, "fast strategy requested fallback",
			zap.String("job_id", layout.JobID),
			zap.Int("exit_code", result.ExitCode))
		result, err = e.runOne(ctx, Full, layout)
		if err != nil {
			return outcome, err
		}
		outcome.Attempts = append(outcome.Attempts, Attempt{Strategy: Full, Result: result})
		outcome.Final = Full
		outcome.FellBack = true
	}
	return outcome, nil
}

func (e *Engine) runOne(ctx context.Context, id ID, layout workspace.Layout) (execrun.ExecResult, error) {
	tpl := e.cfg.FullCommand
	if id == Fast {
		tpl = e.cfg.FastCommand
	}
	argv, err := buildCommand(tpl, layout.RootDir)
	if err != nil {
		return execrun.ExecResult{}, err
	}

	logger.Info(ctx, "running grading strategy",
		zap.String("job_id", layout.JobID),
		zap.String("strategy", string(id)))
	result, err := e.runner.Run(ctx, argv, layout.RootDir, e.cfg.Timeout)
	if err != nil {
		return execrun.ExecResult{}, appErr.Wrapf(err, appErr.ExecutionFailed,
			"start %s grading command failed", id)
	}
	logger.Info(ctx, "grading strategy finished",
		zap.String("job_id", layout.JobID),
		zap.String("strategy", string(id)),
		zap.Int("exit_code", result.ExitCode),
		zap.Bool("timed_out", result.TimedOut),
		zap.Duration("wall_time", result.WallTime))
	return result, nil
}

// needsFallback decides whether a fast attempt asked for escalation. The
// sentinel file is consumed so the full run starts from a clean results dir.
func (e *Engine) needsFallback(ctx context.Context, layout workspace.Layout, result execrun.ExecResult) bool {
	sentinelPath := filepath.Join(layout.ResultsDir, FallbackSentinel)
	if _, err := os.Stat(sentinelPath); err == nil {
		_ = os.Remove(sentinelPath)
		return true
	}
	if result.TimedOut {
		return false
	}
	if result.ExitCode == legacyFallbackExitCode {
		logger.Warn(ctx, "fast strategy exited 1 without fallback sentinel, escalating per legacy convention",
			zap.String("job_id", layout.JobID))
		return true
	}
	return false
}

func buildCommand(tpl, workspaceRoot string) ([]string, error) {
	expanded := strings.ReplaceAll(tpl, "{workspace}", workspaceRoot)
	fields, err := shlex.Split(expanded)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse command template failed")
	}
	if len(fields) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command is empty after expansion")
	}
	return fields, nil
}
