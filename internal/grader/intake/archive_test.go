package intake

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	appErr "gradebox/pkg/errors"

	"github.com/klauspost/compress/zip"
)

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("create zip entry failed: %v", err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("write zip entry failed: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close zip writer failed: %v", err)
	}
	return buf.Bytes()
}

func TestMaterializeArchive(t *testing.T) {
	t.Parallel()
	layout := newLayout(t)
	m := NewMaterializer(Config{})

	data := buildZip(t, map[string]string{
		"SolutionTest.java":   "class SolutionTest {}",
		"helpers/Helper.java": "class Helper {}",
	})
	sub := Submission{
		StudentCode: "class Solution {}",
		Artifact:    Artifact{Filename: "tests.zip", Data: data},
	}
	if err := m.Materialize(context.Background(), layout, sub); err != nil {
		t.Fatalf("materialize archive failed: %v", err)
	}

	for _, rel := range []string{"SolutionTest.java", filepath.Join("helpers", "Helper.java")} {
		if _, err := os.Stat(filepath.Join(layout.TestsDir, rel)); err != nil {
			t.Fatalf("expected extracted file %s: %v", rel, err)
		}
	}
	// The staged upload is removed once extraction finishes.
	if _, err := os.Stat(filepath.Join(layout.RootDir, "upload.zip")); !os.IsNotExist(err) {
		t.Fatalf("expected staged archive removed, stat err: %v", err)
	}
}

func TestMaterializeArchiveRejectsTraversal(t *testing.T) {
	t.Parallel()
	layout := newLayout(t)
	m := NewMaterializer(Config{})

	data := buildZip(t, map[string]string{
		"../escape.java": "gotcha",
	})
	sub := Submission{
		StudentCode: "class Solution {}",
		Artifact:    Artifact{Filename: "tests.zip", Data: data},
	}
	err := m.Materialize(context.Background(), layout, sub)
	if !appErr.Is(err, appErr.ExtractionFailed) {
		t.Fatalf("expected extraction failure, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(filepath.Dir(layout.TestsDir), "escape.java")); !os.IsNotExist(statErr) {
		t.Fatalf("traversal entry escaped extraction dir")
	}
}

func TestMaterializeArchiveRejectsCorrupt(t *testing.T) {
	t.Parallel()
	layout := newLayout(t)
	m := NewMaterializer(Config{})

	sub := Submission{
		StudentCode: "class Solution {}",
		Artifact:    Artifact{Filename: "tests.zip", Data: []byte("this is not a zip")},
	}
	if err := m.Materialize(context.Background(), layout, sub); !appErr.Is(err, appErr.ExtractionFailed) {
		t.Fatalf("expected extraction failure, got %v", err)
	}
}

func TestMaterializeArchiveEnforcesEntryCap(t *testing.T) {
	t.Parallel()
	layout := newLayout(t)
	m := NewMaterializer(Config{MaxArchiveEntries: 2})

	data := buildZip(t, map[string]string{
		"a.java": "a",
		"b.java": "b",
		"c.java": "c",
	})
	sub := Submission{
		StudentCode: "class Solution {}",
		Artifact:    Artifact{Filename: "tests.zip", Data: data},
	}
	if err := m.Materialize(context.Background(), layout, sub); !appErr.Is(err, appErr.ExtractionFailed) {
		t.Fatalf("expected entry cap failure, got %v", err)
	}
}

func TestMaterializeArchiveEnforcesByteBudget(t *testing.T) {
	t.Parallel()
	layout := newLayout(t)
	m := NewMaterializer(Config{MaxArchiveBytes: 16})

	data := buildZip(t, map[string]string{
		"big.java": "this content is longer than sixteen bytes",
	})
	sub := Submission{
		StudentCode: "class Solution {}",
		Artifact:    Artifact{Filename: "tests.zip", Data: data},
	}
	if err := m.Materialize(context.Background(), layout, sub); !appErr.Is(err, appErr.ExtractionFailed) {
		t.Fatalf("expected byte budget failure, got %v", err)
	}
}
