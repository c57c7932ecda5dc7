package strategy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gradebox/internal/grader/execrun"
	"gradebox/internal/grader/intake"
	"gradebox/internal/grader/workspace"
)

type call struct {
	argv    []string
	workDir string
}

// scriptedRunner returns canned results per invocation and can mutate the
// workspace the way a real grading command would.
type scriptedRunner struct {
	calls   []call
	results []execrun.ExecResult
	onRun   func(n int, workDir string)
}

func (r *scriptedRunner) Run(ctx context.Context, argv []string, workDir string, timeout time.Duration) (execrun.ExecResult, error) {
	n := len(r.calls)
	r.calls = append(r.calls, call{argv: argv, workDir: workDir})
	if r.onRun != nil {
		r.onRun(n, workDir)
	}
	if n < len(r.results) {
		return r.results[n], nil
	}
	return execrun.ExecResult{}, nil
}

func newTestLayout(t *testing.T) workspace.Layout {
	t.Helper()
	mgr, err := workspace.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("new manager failed: %v", err)
	}
	layout, err := mgr.Create(context.Background(), "strategy-job")
	if err != nil {
		t.Fatalf("create workspace failed: %v", err)
	}
	return layout
}

func newTestEngine(t *testing.T, runner execrun.Runner) *Engine {
	t.Helper()
	eng, err := NewEngine(runner, Config{
		FastCommand: "grade-fast {workspace}",
		FullCommand: "grade-full {workspace}",
		Timeout:     time.Second,
	})
	if err != nil {
		t.Fatalf("new engine failed: %v", err)
	}
	return eng
}

func TestSelect(t *testing.T) {
	t.Parallel()
	eng := newTestEngine(t, &scriptedRunner{})

	cases := []struct {
		filename string
		want     ID
	}{
		{"SolutionTest.java", Fast},
		{"tests.zip", Full},
		{"notes.txt", Full},
	}
	for _, tc := range cases {
		artifact := intake.Artifact{Filename: tc.filename, Data: []byte("x")}
		if got := eng.Select(artifact); got != tc.want {
			t.Fatalf("Select(%q) = %v, want %v", tc.filename, got, tc.want)
		}
	}
}

func TestRunFastSuccessDoesNotFallBack(t *testing.T) {
	t.Parallel()
	layout := newTestLayout(t)
	runner := &scriptedRunner{results: []execrun.ExecResult{{ExitCode: 0}}}
	eng := newTestEngine(t, runner)

	outcome, err := eng.Run(context.Background(), layout, intake.Artifact{Filename: "T.java", Data: []byte("x")})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if outcome.FellBack || outcome.Final != Fast || len(outcome.Attempts) != 1 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if runner.calls[0].argv[0] != "grade-fast" {
		t.Fatalf("expected fast command, got %v", runner.calls[0].argv)
	}
	if runner.calls[0].argv[1] != layout.RootDir {
		t.Fatalf("expected workspace expansion, got %v", runner.calls[0].argv)
	}
}

func TestRunSentinelTriggersFallback(t *testing.T) {
	t.Parallel()
	layout := newTestLayout(t)
	runner := &scriptedRunner{
		results: []execrun.ExecResult{{ExitCode: 0}, {ExitCode: 0}},
		onRun: func(n int, workDir string) {
			if n == 0 {
				path := filepath.Join(workDir, "results", FallbackSentinel)
				if err := os.WriteFile(path, nil, 0o644); err != nil {
					t.Errorf("write sentinel failed: %v", err)
				}
			}
		},
	}
	eng := newTestEngine(t, runner)

	outcome, err := eng.Run(context.Background(), layout, intake.Artifact{Filename: "T.java", Data: []byte("x")})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !outcome.FellBack || outcome.Final != Full || len(outcome.Attempts) != 2 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if runner.calls[1].argv[0] != "grade-full" {
		t.Fatalf("expected full command on fallback, got %v", runner.calls[1].argv)
	}
	// Both attempts share the same workspace.
	if runner.calls[0].workDir != runner.calls[1].workDir {
		t.Fatalf("fallback ran in a different workspace")
	}
	// The sentinel is consumed before the full run.
	if _, err := os.Stat(filepath.Join(layout.ResultsDir, FallbackSentinel)); !os.IsNotExist(err) {
		t.Fatalf("expected sentinel consumed, stat err: %v", err)
	}
}

func TestRunLegacyExitCodeTriggersFallback(t *testing.T) {
	t.Parallel()
	layout := newTestLayout(t)
	runner := &scriptedRunner{results: []execrun.ExecResult{{ExitCode: 1}, {ExitCode: 0}}}
	eng := newTestEngine(t, runner)

	outcome, err := eng.Run(context.Background(), layout, intake.Artifact{Filename: "T.java", Data: []byte("x")})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !outcome.FellBack || outcome.Final != Full {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestRunTimeoutDoesNotFallBack(t *testing.T) {
	t.Parallel()
	layout := newTestLayout(t)
	runner := &scriptedRunner{results: []execrun.ExecResult{{ExitCode: 1, TimedOut: true}}}
	eng := newTestEngine(t, runner)

	outcome, err := eng.Run(context.Background(), layout, intake.Artifact{Filename: "T.java", Data: []byte("x")})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if outcome.FellBack || len(outcome.Attempts) != 1 {
		t.Fatalf("timed-out fast run must not fall back: %+v", outcome)
	}
}

func TestRunFullFailureIsTerminal(t *testing.T) {
	t.Parallel()
	layout := newTestLayout(t)
	runner := &scriptedRunner{results: []execrun.ExecResult{{ExitCode: 1}}}
	eng := newTestEngine(t, runner)

	outcome, err := eng.Run(context.Background(), layout, intake.Artifact{Filename: "tests.zip", Data: []byte("x")})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if outcome.FellBack || outcome.Final != Full || len(outcome.Attempts) != 1 {
		t.Fatalf("full strategy must not fall back: %+v", outcome)
	}
	if outcome.LastResult().ExitCode != 1 {
		t.Fatalf("unexpected last result: %+v", outcome.LastResult())
	}
}

func TestNewEngineValidatesTemplates(t *testing.T) {
	t.Parallel()
	if _, err := NewEngine(&scriptedRunner{}, Config{FastCommand: "", FullCommand: "x"}); err == nil {
		t.Fatalf("expected error for empty fast command")
	}
	if _, err := NewEngine(&scriptedRunner{}, Config{FastCommand: `bad "quote {workspace}`, FullCommand: "x"}); err == nil {
		t.Fatalf("expected error for unparseable template")
	}
	if _, err := NewEngine(nil, Config{FastCommand: "a", FullCommand: "b"}); err == nil {
		t.Fatalf("expected error for nil runner")
	}
}
