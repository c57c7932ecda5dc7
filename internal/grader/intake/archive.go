package intake

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	appErr "gradebox/pkg/errors"

	"github.com/klauspost/compress/zip"
)

// extractZip expands the archive at archivePath into destDir. Every entry is
// validated against path traversal, and extraction is bounded by a total byte
// budget and a file-count cap since the archive is attacker-controlled.
func extractZip(archivePath, destDir string, maxBytes int64, maxEntries int) (int, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.ExtractionFailed, "open test archive failed")
	}
	defer reader.Close()

	if len(reader.File) > maxEntries {
		return 0, appErr.Newf(appErr.ExtractionFailed,
			"archive has %d entries, limit is %d", len(reader.File), maxEntries)
	}

	var written int64
	extracted := 0
	for _, entry := range reader.File {
		target, err := secureJoin(destDir, entry.Name)
		if err != nil {
			return extracted, err
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return extracted, appErr.Wrapf(err, appErr.ExtractionFailed, "create archive dir failed")
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return extracted, appErr.Wrapf(err, appErr.ExtractionFailed, "create archive dir failed")
		}

		remaining := maxBytes - written
		if remaining <= 0 {
			return extracted, appErr.Newf(appErr.ExtractionFailed,
				"archive exceeds %d byte extraction limit", maxBytes)
		}
		n, err := extractEntry(entry, target, remaining)
		written += n
		if err != nil {
			return extracted, err
		}
		if written > maxBytes {
			return extracted, appErr.Newf(appErr.ExtractionFailed,
				"archive exceeds %d byte extraction limit", maxBytes)
		}
		extracted++
	}
	return extracted, nil
}

func extractEntry(entry *zip.File, target string, budget int64) (int64, error) {
	src, err := entry.Open()
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.ExtractionFailed, "open archive entry %s failed", entry.Name)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, appErr.Wrapf(err, appErr.ExtractionFailed, "create extracted file failed")
	}
	defer dst.Close()

	// budget+1 so an over-budget entry is detected rather than silently truncated.
	n, err := io.Copy(dst, io.LimitReader(src, budget+1))
	if err != nil {
		return n, appErr.Wrapf(err, appErr.ExtractionFailed, "extract archive entry %s failed", entry.Name)
	}
	return n, nil
}

// secureJoin resolves an archive entry name under destDir and rejects any
// entry whose normalized path escapes it.
func secureJoin(destDir, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", appErr.Newf(appErr.ExtractionFailed, "archive entry %q escapes extraction dir", name)
	}
	target := filepath.Join(destDir, cleaned)
	if target != destDir && !strings.HasPrefix(target, destDir+string(filepath.Separator)) {
		return "", appErr.Newf(appErr.ExtractionFailed, "archive entry %q escapes extraction dir", name)
	}
	return target, nil
}
