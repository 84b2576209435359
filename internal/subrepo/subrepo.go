// Package subrepo ensures the external sub-stack checkout is present at a
// pinned path, cloning (with a sparse subtree) or updating in place as
// needed.
package subrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/local-ai-packaged/orchestrator/internal/logging"
	"github.com/local-ai-packaged/orchestrator/internal/procrunner"
)

// FetchFailedError wraps a network or authentication failure while
// acquiring the sub-repo.
type FetchFailedError struct {
	URL string
	Err error
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("subrepo: fetch %s failed: %v", e.URL, e.Err)
}

func (e *FetchFailedError) Unwrap() error { return e.Err }

// RefNotFoundError is returned when the pinned ref cannot be checked out.
type RefNotFoundError struct {
	Ref string
	Err error
}

func (e *RefNotFoundError) Error() string {
	return fmt.Sprintf("subrepo: ref %q not found: %v", e.Ref, e.Err)
}

func (e *RefNotFoundError) Unwrap() error { return e.Err }

// EnsureSubRepo materializes targetDir/subtreePath, either by hard-resetting
// an existing checkout to ref or by performing a fresh shallow, sparse
// clone.
func EnsureSubRepo(ctx context.Context, url, targetDir, subtreePath, ref string, logger *logging.Logger) error {
	if isGitCheckout(targetDir) {
		return updateExisting(ctx, targetDir, ref, logger)
	}
	return cloneFresh(ctx, url, targetDir, subtreePath, ref, logger)
}

func isGitCheckout(targetDir string) bool {
	info, err := os.Stat(filepath.Join(targetDir, ".git"))
	return err == nil && (info.IsDir() || info.Mode().IsRegular())
}

func updateExisting(ctx context.Context, targetDir, ref string, logger *logging.Logger) error {
	logger.Info("subrepo.update.start", "updating existing checkout", map[string]interface{}{
		"target_dir": targetDir,
		"ref":        ref,
	})

	if _, err := run(ctx, targetDir, "git", "fetch", "--depth", "1", "origin", ref); err != nil {
		return &FetchFailedError{URL: "origin", Err: err}
	}

	if _, err := run(ctx, targetDir, "git", "reset", "--hard", "FETCH_HEAD"); err != nil {
		return &RefNotFoundError{Ref: ref, Err: err}
	}

	logger.Info("subrepo.update.done", "checkout updated", map[string]interface{}{
		"target_dir": targetDir,
	})
	return nil
}

func cloneFresh(ctx context.Context, url, targetDir, subtreePath, ref string, logger *logging.Logger) error {
	logger.Info("subrepo.clone.start", "cloning sub-repo", map[string]interface{}{
		"url":        url,
		"target_dir": targetDir,
	})

	if err := os.MkdirAll(targetDir, 0o750); err != nil {
		return fmt.Errorf("subrepo: create target dir: %w", err)
	}

	if _, err := run(ctx, "", "git", "clone", "--filter=blob:none", "--no-checkout", "--depth", "1", url, targetDir); err != nil {
		return &FetchFailedError{URL: url, Err: err}
	}

	if _, err := run(ctx, targetDir, "git", "sparse-checkout", "set", subtreePath); err != nil {
		return &FetchFailedError{URL: url, Err: err}
	}

	if _, err := run(ctx, targetDir, "git", "checkout", ref); err != nil {
		return &RefNotFoundError{Ref: ref, Err: err}
	}

	logger.Info("subrepo.clone.done", "sub-repo cloned", map[string]interface{}{
		"target_dir":   targetDir,
		"subtree_path": subtreePath,
	})
	return nil
}

func run(ctx context.Context, cwd string, argv ...string) (procrunner.ExitStatus, error) {
	status, err := procrunner.Run(ctx, argv, procrunner.Options{Cwd: cwd, Capture: true, Check: true})
	if err != nil {
		var failed *procrunner.ExternalCommandFailed
		if errors.As(err, &failed) {
			return status, fmt.Errorf("%s: %s", strings.Join(argv, " "), strings.TrimSpace(failed.Stderr))
		}
		return status, err
	}
	return status, nil
}
