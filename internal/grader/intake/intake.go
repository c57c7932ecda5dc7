// Package intake decodes and validates inbound submissions and writes them
// into the job workspace.
package intake

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"gradebox/internal/grader/workspace"
	appErr "gradebox/pkg/errors"
	"gradebox/pkg/utils/logger"

	"go.uber.org/zap"
)

// ArtifactKind classifies the test artifact shape.
type ArtifactKind string

const (
	KindSingleFile ArtifactKind = "single_file"
	KindArchive    ArtifactKind = "archive"
)

// Artifact is one teacher-supplied test artifact.
type Artifact struct {
	Filename string
	Data     []byte
}

// Kind classifies the artifact by filename suffix.
func (a Artifact) Kind() ArtifactKind {
	return Classify(a.Filename)
}

// Classify maps a filename to an artifact kind. Classification is purely by
// suffix: anything ending in .zip is an archive, everything else a single file.
func Classify(filename string) ArtifactKind {
	if strings.EqualFold(filepath.Ext(filename), ".zip") {
		return KindArchive
	}
	return KindSingleFile
}

// Submission is the validated pair of student code and test artifact.
type Submission struct {
	StudentCode string
	Artifact    Artifact
}

// DecodeArtifact builds an Artifact from a base64 payload and filename, as
// sent on the JSON request path.
func DecodeArtifact(filename, base64Data string) (Artifact, error) {
	if strings.TrimSpace(base64Data) == "" {
		return Artifact{}, appErr.New(appErr.MissingTestArtifact)
	}
	data, err := base64.StdEncoding.DecodeString(base64Data)
	if err != nil {
		return Artifact{}, appErr.Wrap(err, appErr.ArtifactDecodeError).
			WithMessage("Invalid test artifact encoding")
	}
	return Artifact{Filename: filename, Data: data}, nil
}

// Validate fails fast on an incomplete submission, before any filesystem or
// process work happens.
func (s Submission) Validate() error {
	if strings.TrimSpace(s.StudentCode) == "" {
		return appErr.New(appErr.MissingStudentCode)
	}
	if len(s.Artifact.Data) == 0 {
		return appErr.New(appErr.MissingTestArtifact)
	}
	if s.Artifact.Filename == "" {
		return appErr.New(appErr.MissingTestArtifact).WithMessage("Test file name is required")
	}
	return nil
}

// Materializer writes submissions into workspaces.
type Materializer struct {
	solutionFilename  string
	maxArchiveBytes   int64
	maxArchiveEntries int
}

// Config holds materializer limits.
type Config struct {
	SolutionFilename  string
	MaxArchiveBytes   int64
	MaxArchiveEntries int
}

// NewMaterializer creates a materializer with the given limits. Zero limits
// fall back to defaults.
func NewMaterializer(cfg Config) *Materializer {
	if cfg.SolutionFilename == "" {
		cfg.SolutionFilename = "Solution.java"
	}
	if cfg.MaxArchiveBytes <= 0 {
		cfg.MaxArchiveBytes = 64 << 20
	}
	if cfg.MaxArchiveEntries <= 0 {
		cfg.MaxArchiveEntries = 512
	}
	return &Materializer{
		solutionFilename:  cfg.SolutionFilename,
		maxArchiveBytes:   cfg.MaxArchiveBytes,
		maxArchiveEntries: cfg.MaxArchiveEntries,
	}
}

// SolutionFilename returns the filename the student code is written under.
func (m *Materializer) SolutionFilename() string {
	return m.solutionFilename
}

// Materialize writes the student code into source/ and the test artifact into
// tests/, expanding zip archives. Side effects are confined to the workspace.
func (m *Materializer) Materialize(ctx context.Context, layout workspace.Layout, sub Submission) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	sourcePath := filepath.Join(layout.SourceDir, m.solutionFilename)
	if err := os.WriteFile(sourcePath, []byte(sub.StudentCode), 0o644); err != nil {
		return appErr.Wrapf(err, appErr.MaterializeFailed, "write student code failed")
	}

	switch sub.Artifact.Kind() {
	case KindArchive:
		return m.materializeArchive(ctx, layout, sub.Artifact)
	default:
		return m.materializeSingleFile(ctx, layout, sub.Artifact)
	}
}

func (m *Materializer) materializeSingleFile(ctx context.Context, layout workspace.Layout, artifact Artifact) error {
	// The declared filename may carry client path fragments; only the base
	// name lands in tests/.
	name := filepath.Base(filepath.Clean(artifact.Filename))
	if name == "." || name == string(filepath.Separator) {
		return appErr.New(appErr.MissingTestArtifact).WithMessage("Test file name is required")
	}
	target := filepath.Join(layout.TestsDir, name)
	if err := os.WriteFile(target, artifact.Data, 0o644); err != nil {
		return appErr.Wrapf(err, appErr.MaterializeFailed, "write test file failed")
	}
	logger.Debug(ctx, "test file written", zap.String("job_id", layout.JobID), zap.String("file", name))
	return nil
}

func (m *Materializer) materializeArchive(ctx context.Context, layout workspace.Layout, artifact Artifact) error {
	tmpPath := filepath.Join(layout.RootDir, "upload.zip")
	if err := os.WriteFile(tmpPath, artifact.Data, 0o644); err != nil {
		return appErr.Wrapf(err, appErr.MaterializeFailed, "stage test archive failed")
	}
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	extracted, err := extractZip(tmpPath, layout.TestsDir, m.maxArchiveBytes, m.maxArchiveEntries)
	if err != nil {
		return err
	}
	logger.Info(ctx, "test archive extracted",
		zap.String("job_id", layout.JobID),
		zap.Int("files", extracted))
	return nil
}
