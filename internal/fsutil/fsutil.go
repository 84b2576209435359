// Package fsutil provides the small set of filesystem primitives the rest
// of the orchestrator builds on: idempotent directory creation, newline
// preserving text I/O, and atomic replace.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/local-ai-packaged/orchestrator/internal/logging"
)

const (
	// DefaultDirPermissions is the permission used for directories created
	// by EnsureDir.
	DefaultDirPermissions = 0o750
	// DefaultFilePermissions is the permission used for files written by
	// WriteText and ReplaceAtomically.
	DefaultFilePermissions = 0o600
)

// EnsureDir creates path (and any missing parents) if it does not already
// exist. It fails if path exists and is not a directory.
func EnsureDir(path string) error {
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("fsutil: %s exists and is not a directory", path)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("fsutil: stat %s: %w", path, err)
	}
	if err := os.MkdirAll(path, DefaultDirPermissions); err != nil {
		return fmt.Errorf("fsutil: create directory %s: %w", path, err)
	}
	return nil
}

// ReadText reads path and returns its contents verbatim. Line endings are
// never translated: a CRLF-terminated file round-trips as CRLF.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-controlled config, not attacker input
	if err != nil {
		return "", fmt.Errorf("fsutil: read %s: %w", path, err)
	}
	return string(data), nil
}

// WriteText writes content to path directly (non-atomically), creating the
// file if it does not exist. Content is written byte-for-byte with no
// newline translation.
func WriteText(path string, content string) error {
	if err := os.WriteFile(path, []byte(content), DefaultFilePermissions); err != nil {
		return fmt.Errorf("fsutil: write %s: %w", path, err)
	}
	return nil
}

// ReplaceAtomically writes content to a sibling temp file and renames it
// onto path, so a reader never observes a partially written file. Used for
// the hosts file and dotenv edits.
func ReplaceAtomically(path string, content string, logger *logging.Logger) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("fsutil: create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		removeTemp(tmpPath, logger)
		return fmt.Errorf("fsutil: write temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		removeTemp(tmpPath, logger)
		return fmt.Errorf("fsutil: close temp file for %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, DefaultFilePermissions); err != nil {
		removeTemp(tmpPath, logger)
		return fmt.Errorf("fsutil: chmod temp file for %s: %w", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		removeTemp(tmpPath, logger)
		return fmt.Errorf("fsutil: rename temp file onto %s: %w", path, err)
	}

	return nil
}

func removeTemp(tmpPath string, logger *logging.Logger) {
	if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		if logger != nil {
			logger.Warn("fsutil.tempfile.cleanup_failed", "failed to remove temp file", map[string]interface{}{
				"path":  tmpPath,
				"error": err.Error(),
			})
		}
	}
}

// CloseWithError closes a resource and logs any error if a logger is
// provided. Useful in defer statements where a close failure should be
// surfaced but not change the function's return value.
func CloseWithError(closer func() error, logger *logging.Logger, resource string) {
	if err := closer(); err != nil {
		if logger != nil {
			logger.Warn("fsutil.close_failed", fmt.Sprintf("failed to close %s", resource), map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}
