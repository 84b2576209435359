// Package runlock serializes mutating orchestrator invocations against a
// single state directory using an advisory file lock.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// LockFileName is the advisory lock file created inside the state directory.
const LockFileName = ".orchestrator.lock"

// DefaultWait bounds how long Acquire waits for a concurrent invocation to
// release the lock before giving up.
const DefaultWait = 5 * time.Second

// UnavailableError reports that the lock could not be acquired in time.
type UnavailableError struct {
	Path string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("runlock: could not acquire lock at %s: held by another invocation", e.Path)
}

// Lock wraps an acquired advisory lock. Release is idempotent.
type Lock struct {
	fileLock *flock.Flock
}

// Acquire attempts to take the lock at path, retrying every 100ms until
// wait elapses. It returns *UnavailableError if the lock is still held once
// the wait expires.
func Acquire(ctx context.Context, path string, wait time.Duration) (*Lock, error) {
	fileLock := flock.New(path)

	deadlineCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ok, err := fileLock.TryLockContext(deadlineCtx, 100*time.Millisecond)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &UnavailableError{Path: path}
		}
		return nil, fmt.Errorf("runlock: acquire %s: %w", path, err)
	}
	if !ok {
		return nil, &UnavailableError{Path: path}
	}

	return &Lock{fileLock: fileLock}, nil
}

// Release unlocks and closes the underlying lock file.
func (l *Lock) Release() error {
	if l == nil || l.fileLock == nil {
		return nil
	}
	return l.fileLock.Unlock()
}
