package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/zjrosen/vhosts/internal/domain/vhost"
)

// Repository pairs a Store with its Guard so every write is a locked
// read-modify-write cycle and every read comes fresh from disk.
type Repository struct {
	store *Store
	guard *Guard
}

// Options configure a Repository.
type Options struct {
	Store StoreOptions
	Guard GuardOptions
}

// NewRepository creates a repository for the hosts file at path.
func NewRepository(path string, opts Options) *Repository {
	return &Repository{
		store: NewStore(path, opts.Store),
		guard: NewGuard(path, opts.Guard),
	}
}

// Path returns the hosts file path.
func (r *Repository) Path() string {
	return r.store.Path()
}

// Load reads the registry without taking the lock, retrying once on a parse failure.
func (r *Repository) Load(ctx context.Context) (vhost.Registry, error) {
	return r.store.LoadForDisplay(ctx)
}

// Update loads the registry under the lock, applies fn and saves the result.
// Nothing is written when fn returns an error.
func (r *Repository) Update(ctx context.Context, fn func(vhost.Registry) error) error {
	return r.guard.WithLock(ctx, func() error {
		reg, err := r.store.Load(ctx)
		if err != nil {
			return err
		}
		if err := fn(reg); err != nil {
			return err
		}
		return r.store.Save(ctx, reg)
	})
}

// Replace overwrites the registry under the lock without reading it first, so
// it also recovers a hosts file that no longer parses.
func (r *Repository) Replace(ctx context.Context, reg vhost.Registry) error {
	return r.guard.WithLock(ctx, func() error {
		return r.store.Save(ctx, reg)
	})
}

// Delete removes one host under the lock.
func (r *Repository) Delete(ctx context.Context, domain string) error {
	return r.guard.WithLock(ctx, func() error {
		return r.store.Delete(ctx, domain)
	})
}

// Create writes an empty registry unless the hosts file already exists. The
// existence check runs under the lock, so a file written by a concurrent holder
// is kept. It reports whether the file was created.
func (r *Repository) Create(ctx context.Context) (bool, error) {
	created := false
	err := r.guard.WithLock(ctx, func() error {
		_, err := os.Stat(r.store.Path())
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("checking hosts file: %w", err)
		}
		if err := r.store.Save(ctx, vhost.NewRegistry()); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}
