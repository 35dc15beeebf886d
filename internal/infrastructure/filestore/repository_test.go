package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/vhosts/internal/domain/vhost"
	"github.com/zjrosen/vhosts/internal/testutil"
)

func newRepo(t *testing.T, path string) *Repository {
	t.Helper()
	return NewRepository(path, Options{Guard: GuardOptions{Timeout: 5 * time.Second}})
}

func TestRepository_Update(t *testing.T) {
	b := testutil.NewBuilder(t, testutil.HostsPath(t)).WithStandardHosts()
	repo := newRepo(t, b.Build())

	err := repo.Update(context.Background(), func(reg vhost.Registry) error {
		host := reg["blog.test"]
		host.Active = true
		reg.Put(host)
		return nil
	})
	require.NoError(t, err)

	reg, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.True(t, reg["blog.test"].Active)
}

func TestRepository_Update_ErrorSkipsSave(t *testing.T) {
	b := testutil.NewBuilder(t, testutil.HostsPath(t)).WithStandardHosts()
	repo := newRepo(t, b.Build())
	before := b.ReadFile()
	boom := errors.New("boom")

	err := repo.Update(context.Background(), func(reg vhost.Registry) error {
		delete(reg, "app.test")
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, before, b.ReadFile())
}

func TestRepository_Update_ParseErrorAborts(t *testing.T) {
	b := testutil.NewBuilder(t, testutil.HostsPath(t))
	b.WriteFile([]byte(`{broken`))
	repo := newRepo(t, b.Path())

	called := false
	err := repo.Update(context.Background(), func(vhost.Registry) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, vhost.ErrParse)
	require.False(t, called)
	require.Equal(t, []byte(`{broken`), b.ReadFile())
}

func TestRepository_Replace_RecoversCorruptFile(t *testing.T) {
	b := testutil.NewBuilder(t, testutil.HostsPath(t))
	b.WriteFile([]byte(`{broken`))
	repo := newRepo(t, b.Path())

	reg := vhost.Registry{"x.test": vhost.NewHost("x.test")}
	require.NoError(t, repo.Replace(context.Background(), reg))

	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, reg, loaded)
}

func TestRepository_Delete(t *testing.T) {
	repo := newRepo(t, testutil.HostsPath(t))

	err := repo.Delete(context.Background(), "nope.test")
	require.ErrorIs(t, err, vhost.ErrNotFound)
}

func TestRepository_ConcurrentUpdatesAreNotLost(t *testing.T) {
	b := testutil.NewBuilder(t, testutil.HostsPath(t))
	const n = 10
	for i := 0; i < n; i++ {
		b.WithHost(fmt.Sprintf("h%d.test", i))
	}
	path := b.Build()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(domain string) {
			defer wg.Done()
			// Each writer has its own repository, like the app and the tray process.
			repo := newRepo(t, path)
			err := repo.Update(context.Background(), func(reg vhost.Registry) error {
				host := reg[domain]
				host.Active = !host.Active
				reg.Put(host)
				return nil
			})
			require.NoError(t, err)
		}(fmt.Sprintf("h%d.test", i))
	}
	wg.Wait()

	reg, err := newRepo(t, path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, reg, n)
	require.Zero(t, reg.ActiveCount(), "every toggle must be reflected")
}

func TestRepository_Create(t *testing.T) {
	ctx := context.Background()
	path := testutil.HostsPath(t)
	repo := newRepo(t, path)

	created, err := repo.Create(ctx)
	require.NoError(t, err)
	require.True(t, created)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "{}\n", string(data))

	require.NoError(t, repo.Update(ctx, func(reg vhost.Registry) error {
		reg.Put(vhost.Host{Domain: "app.test", Docroot: "/srv/app"})
		return nil
	}))
	created, err = repo.Create(ctx)
	require.NoError(t, err)
	require.False(t, created)

	reg, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, reg, "app.test")
}

func TestRepository_Create_TimesOutWhileLocked(t *testing.T) {
	path := testutil.HostsPath(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	holder := flock.New(LockPath(path))
	locked, err := holder.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	repo := NewRepository(path, Options{Guard: GuardOptions{Timeout: 30 * time.Millisecond, PollInterval: 5 * time.Millisecond}})
	_, err = repo.Create(context.Background())
	require.ErrorIs(t, err, vhost.ErrLockTimeout)
	require.NoFileExists(t, path)

	require.NoError(t, holder.Unlock())
	created, err := repo.Create(context.Background())
	require.NoError(t, err)
	require.True(t, created)
}
