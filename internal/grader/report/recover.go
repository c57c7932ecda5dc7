// Package report reads grading results and guarantees a schema-conformant
// report even when the grading tool produced none.
package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gradebox/internal/grader/model"
	"gradebox/pkg/utils/logger"

	"go.uber.org/zap"
)

const resultsFileName = "results.json"

// Named diagnostic logs scavenged during recovery, in priority order.
const (
	compileErrorsLog = "compile_errors.log"
	rawOutputLog     = "raw_output.log"
	testOutputLog    = "test_output.log"
)

// Recover reads results.json from resultsDir and returns it when it honors
// the grading contract. On absence, corruption, or a wrong shape, it
// scavenges diagnostic logs and synthesizes a fully-shaped fallback report.
// Recover never fails: every path yields a report the caller can destructure,
// and the same directory state always yields the same report.
func Recover(ctx context.Context, resultsDir string) model.Report {
	if rep, ok := readWellFormed(ctx, resultsDir); ok {
		return rep
	}
	return scavenge(ctx, resultsDir)
}

// readWellFormed returns the parsed results.json only when it is valid JSON
// and either an intentional error report or a conformant success report.
func readWellFormed(ctx context.Context, resultsDir string) (model.Report, bool) {
	path := filepath.Join(resultsDir, resultsFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Info(ctx, "results file missing or unreadable", zap.String("path", path), zap.Error(err))
		return nil, false
	}

	var rep model.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		logger.Warn(ctx, "results file is not valid JSON", zap.String("path", path), zap.Error(err))
		return nil, false
	}

	// An error field means the grading tool reported a failure on purpose;
	// it is passed through verbatim, extra fields included.
	if rep.HasError() {
		return rep, true
	}
	if rep.Conforms() {
		return rep, true
	}
	// Valid JSON but wrong shape. Partial trust of valid-looking fields is
	// worse than a clean diagnostic, so treat it as a structural failure.
	logger.Warn(ctx, "results file has unexpected shape", zap.String("path", path))
	return nil, false
}

// scavenge synthesizes a diagnostic report from whatever the grading tool
// left behind in resultsDir.
func scavenge(ctx context.Context, resultsDir string) model.Report {
	entries, err := os.ReadDir(resultsDir)
	if err != nil {
		logger.Warn(ctx, "cannot list results dir", zap.String("dir", resultsDir), zap.Error(err))
		return model.FallbackReport("Could not access grading results", "")
	}

	details := ""
	rawOutput := ""

	if content := readNonEmpty(resultsDir, compileErrorsLog); content != "" {
		details = "Compilation failed: " + content
	}
	for _, name := range []string{rawOutputLog, testOutputLog} {
		if content := readNonEmpty(resultsDir, name); content != "" {
			rawOutput = content
			break
		}
	}

	if details == "" && rawOutput == "" {
		// Nothing named yielded a diagnosis; fall back to the first non-empty
		// log or text file. ReadDir returns sorted names, which keeps the
		// result deterministic.
		for _, entry := range entries {
			if entry.IsDir() || !isDiagnosticFile(entry.Name()) {
				continue
			}
			if content := readNonEmpty(resultsDir, entry.Name()); content != "" {
				rawOutput = content
				break
			}
		}
	}
	if details == "" {
		details = "Script execution failed - check logs"
	}
	return model.FallbackReport(details, rawOutput)
}

func isDiagnosticFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".log" || ext == ".txt"
}

func readNonEmpty(dir, name string) string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	if strings.TrimSpace(string(data)) == "" {
		return ""
	}
	return string(data)
}
