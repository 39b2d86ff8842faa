// Package lockfile implements the single advisory write lock that
// guards an entire compile+apply cycle: a second invocation must never
// race to install a partially-built ruleset.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"pvefw.dev/core/internal/logging"
	"pvefw.dev/core/internal/metrics"
)

// DefaultTimeout is the lock-acquisition timeout mandated by the
// concurrency model: failure to acquire within this window is a hard
// error surfaced to the caller.
const DefaultTimeout = 10 * time.Second

// retryInterval between failed non-blocking flock attempts.
const retryInterval = 100 * time.Millisecond

// ErrTimeout is returned when the lock could not be acquired before the
// configured timeout expired. If ctx is done first, Acquire returns
// ctx.Err() instead.
var ErrTimeout = errors.New("lockfile: timed out acquiring lock")

// Lock holds an open, flocked file descriptor. Release drops the lock
// and closes the descriptor.
type Lock struct {
	path string
	fd   int
}

// Acquire opens (creating if necessary) the file at path and attempts
// an exclusive, non-blocking flock, retrying until ctx is done or
// timeout elapses. Returns ErrTimeout when the timeout elapses and
// ctx.Err() when ctx is done.
func Acquire(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC, 0600)
	if err != nil {
		return nil, fmt.Errorf("lockfile: open %s: %w", path, err)
	}

	start := time.Now()
	deadline := start.Add(timeout)
	log := logging.Default().WithComponent("lockfile")

	for {
		lockErr := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if lockErr == nil {
			metrics.Default().LockWaitDuration.Observe(time.Since(start).Seconds())
			return &Lock{path: path, fd: fd}, nil
		}
		if lockErr != unix.EWOULDBLOCK && lockErr != unix.EAGAIN {
			unix.Close(fd)
			return nil, fmt.Errorf("lockfile: flock %s: %w", path, lockErr)
		}

		if time.Now().After(deadline) {
			unix.Close(fd)
			log.Warn("lock acquisition timed out", "path", path, "timeout", timeout)
			return nil, ErrTimeout
		}

		select {
		case <-ctx.Done():
			unix.Close(fd)
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// WithLock runs fn while holding the lock at path, releasing it
// unconditionally afterward. This is the narrow "lock_file(path,
// timeout, fn) -> result" collaborator interface.
func WithLock(ctx context.Context, path string, timeout time.Duration, fn func(ctx context.Context) error) error {
	l, err := Acquire(ctx, path, timeout)
	if err != nil {
		return err
	}
	defer l.Release()
	return fn(ctx)
}

// Release drops the flock and closes the underlying descriptor.
func (l *Lock) Release() error {
	if err := unix.Flock(l.fd, unix.LOCK_UN); err != nil {
		unix.Close(l.fd)
		return fmt.Errorf("lockfile: unlock %s: %w", l.path, err)
	}
	return unix.Close(l.fd)
}
