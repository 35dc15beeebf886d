package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/zjrosen/vhosts/internal/domain/vhost"
	"github.com/zjrosen/vhosts/internal/log"
)

// Lock defaults.
const (
	DefaultLockTimeout      = 3 * time.Second
	DefaultLockPollInterval = 25 * time.Millisecond
	lockSuffix              = ".lock"
)

// LockPath returns the lock file for the hosts file at hostsPath. Symlinks are
// resolved first so every path that reaches the same file shares one lock.
func LockPath(hostsPath string) string {
	return resolvePath(hostsPath) + lockSuffix
}

// resolvePath makes hostsPath absolute and follows its symlinks. A file that
// does not exist yet is resolved through its directory.
func resolvePath(hostsPath string) string {
	if abs, err := filepath.Abs(hostsPath); err == nil {
		hostsPath = abs
	}
	if resolved, err := filepath.EvalSymlinks(hostsPath); err == nil {
		return resolved
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(hostsPath)); err == nil {
		return filepath.Join(dir, filepath.Base(hostsPath))
	}
	return hostsPath
}

// GuardOptions configure lock acquisition.
type GuardOptions struct {
	Timeout      time.Duration
	PollInterval time.Duration
}

// Guard provides mutual exclusion around read-modify-write cycles on one hosts
// file. Across processes it holds an advisory flock on a colocated lock file,
// which the OS releases if the holder dies. Within a process a semaphore per
// lock path queues goroutines before they touch the lock file, because fcntl
// based locking on some platforms is per process rather than per descriptor.
//
// The lock path is derived on every acquisition, so a symlink retargeted
// between operations is honoured.
type Guard struct {
	hostsPath string
	timeout   time.Duration
	poll      time.Duration
}

var (
	semMu sync.Mutex
	sems  = make(map[string]chan struct{})
)

// semaphore returns the process-wide semaphore for a resolved lock path.
func semaphore(lockPath string) chan struct{} {
	semMu.Lock()
	defer semMu.Unlock()
	sem, ok := sems[lockPath]
	if !ok {
		sem = make(chan struct{}, 1)
		sems[lockPath] = sem
	}
	return sem
}

// NewGuard creates a guard for the hosts file at hostsPath.
func NewGuard(hostsPath string, opts GuardOptions) *Guard {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultLockTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultLockPollInterval
	}
	return &Guard{
		hostsPath: hostsPath,
		timeout:   opts.Timeout,
		poll:      opts.PollInterval,
	}
}

// WithLock runs fn while holding the lock. Acquisition gives up after the
// configured timeout with a *vhost.LockTimeoutError. The lock is released on
// every exit path, including a panic inside fn.
func (g *Guard) WithLock(ctx context.Context, fn func() error) (err error) {
	started := time.Now()
	lockPath := LockPath(g.hostsPath)
	sem := semaphore(lockPath)
	lockCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	select {
	case sem <- struct{}{}:
	case <-lockCtx.Done():
		return g.acquireFailed(ctx, lockPath, started)
	}
	defer func() { <-sem }()

	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}

	fl := flock.New(lockPath)
	locked, lockErr := fl.TryLockContext(lockCtx, g.poll)
	if lockErr != nil && !errors.Is(lockErr, context.DeadlineExceeded) && !errors.Is(lockErr, context.Canceled) {
		return fmt.Errorf("acquiring lock %s: %w", lockPath, lockErr)
	}
	if !locked {
		return g.acquireFailed(ctx, lockPath, started)
	}
	log.Debug(log.CatLock, "Acquired lock", "path", lockPath, "waited", time.Since(started))

	defer func() {
		if unlockErr := fl.Unlock(); unlockErr != nil {
			log.ErrorErr(log.CatLock, "Failed to release lock", unlockErr, "path", lockPath)
			if err == nil {
				err = fmt.Errorf("releasing lock %s: %w", lockPath, unlockErr)
			}
		}
	}()

	return fn()
}

// acquireFailed distinguishes the caller giving up from the lock timing out.
func (g *Guard) acquireFailed(ctx context.Context, lockPath string, started time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Warn(log.CatLock, "Lock acquisition timed out", "path", lockPath, "waited", time.Since(started))
	return &vhost.LockTimeoutError{Path: lockPath, Timeout: g.timeout}
}
