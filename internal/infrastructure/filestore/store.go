// Package filestore persists the host registry in a single JSON file and
// serializes writers across processes with an advisory lock file beside it.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/vhosts/internal/domain/vhost"
	"github.com/zjrosen/vhosts/internal/log"
)

// ErrUnavailable is returned by LoadForDisplay when the hosts file could not be
// parsed even after a retry, typically because a writer was mid-write.
var ErrUnavailable = errors.New("hosts file unavailable")

// DefaultReadRetryDelay is how long LoadForDisplay waits before its single retry.
const DefaultReadRetryDelay = 100 * time.Millisecond

// StoreOptions tune how the store reads and writes the hosts file.
type StoreOptions struct {
	// DirectWrite overwrites the file in place instead of temp file + rename.
	DirectWrite bool
	// StrictDecode logs skipped entries at warn level instead of debug.
	StrictDecode bool
	// ReadRetryDelay is the pause before LoadForDisplay retries a failed parse.
	ReadRetryDelay time.Duration
}

// Store loads and saves the whole registry. It performs no locking; writers go
// through Repository, which wraps every read-modify-write in a Guard.
type Store struct {
	path string
	opts StoreOptions
}

// NewStore creates a store backed by the file at path.
func NewStore(path string, opts StoreOptions) *Store {
	if opts.ReadRetryDelay <= 0 {
		opts.ReadRetryDelay = DefaultReadRetryDelay
	}
	return &Store{path: path, opts: opts}
}

// Path returns the hosts file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads and decodes the hosts file. A missing file is an empty registry.
func (s *Store) Load(ctx context.Context) (vhost.Registry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debug(log.CatStore, "Hosts file missing, using empty registry", "path", s.path)
		return vhost.NewRegistry(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading hosts file: %w", err)
	}

	reg, skipped, err := vhost.DecodeRegistry(data)
	if err != nil {
		var pe *vhost.ParseError
		if errors.As(err, &pe) {
			pe.Path = s.path
		}
		return nil, err
	}

	for _, domain := range skipped {
		if s.opts.StrictDecode {
			log.Warn(log.CatCodec, "Skipped malformed host entry", "domain", domain, "path", s.path)
		} else {
			log.Debug(log.CatCodec, "Skipped malformed host entry", "domain", domain, "path", s.path)
		}
	}
	log.Debug(log.CatStore, "Loaded hosts file", "path", s.path, "hosts", len(reg), "skipped", len(skipped))
	return reg, nil
}

// LoadForDisplay is Load for read-only callers that do not hold the lock. A
// parse failure may be a concurrent writer caught mid-write, so it is retried
// once after a short delay before being reported as ErrUnavailable.
func (s *Store) LoadForDisplay(ctx context.Context) (vhost.Registry, error) {
	reg, err := s.Load(ctx)
	if err == nil || !errors.Is(err, vhost.ErrParse) {
		return reg, err
	}

	log.Warn(log.CatStore, "Hosts file did not parse, retrying", "path", s.path, "delay", s.opts.ReadRetryDelay)

	timer := time.NewTimer(s.opts.ReadRetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	reg, err = s.Load(ctx)
	if err != nil {
		if errors.Is(err, vhost.ErrParse) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil, err
	}
	return reg, nil
}

// Save replaces the hosts file with the encoded registry. Encoding completes
// before the file is touched, so a failure leaves the previous content intact.
func (s *Store) Save(ctx context.Context, reg vhost.Registry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := vhost.EncodeRegistry(reg)
	if err != nil {
		return err
	}

	target, err := s.resolveTarget()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating hosts directory: %w", err)
	}

	if s.opts.DirectWrite {
		if err := os.WriteFile(target, data, 0o644); err != nil { //nolint:gosec // hosts.json is read by the config generator
			return fmt.Errorf("writing hosts file: %w", err)
		}
	} else if err := writeAtomic(target, data); err != nil {
		return err
	}

	log.Debug(log.CatStore, "Saved hosts file", "path", target, "hosts", len(reg), "bytes", len(data))
	return nil
}

// Delete removes one host in a read-modify-write cycle over the whole file.
// The file is not touched when the domain is absent.
func (s *Store) Delete(ctx context.Context, domain string) error {
	reg, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if _, ok := reg[domain]; !ok {
		return &vhost.NotFoundError{Domain: domain}
	}
	delete(reg, domain)
	return s.Save(ctx, reg)
}

// resolveTarget follows a symlinked hosts file so the rename replaces the
// link's target rather than the link itself.
func (s *Store) resolveTarget() (string, error) {
	info, err := os.Lstat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s.path, nil
	}
	if err != nil {
		return "", fmt.Errorf("inspecting hosts file: %w", err)
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		return s.path, nil
	}
	target, err := filepath.EvalSymlinks(s.path)
	if err != nil {
		return "", fmt.Errorf("resolving hosts file symlink: %w", err)
	}
	return target, nil
}

// writeAtomic writes data to a temp file in the target's directory and renames
// it over the target, keeping the target's permissions when it already exists.
func writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	temp, err := os.CreateTemp(dir, ".hosts.json.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	fail := func(step string, err error) error {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("%s: %w", step, err)
	}

	mode := fs.FileMode(0o644)
	if info, err := os.Stat(target); err == nil {
		mode = info.Mode().Perm()
	}
	if err := temp.Chmod(mode); err != nil {
		return fail("setting temp file mode", err)
	}
	if _, err := temp.Write(data); err != nil {
		return fail("writing temp file", err)
	}
	if err := temp.Sync(); err != nil {
		return fail("syncing temp file", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, target); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
