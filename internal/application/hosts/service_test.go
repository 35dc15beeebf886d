package hosts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zjrosen/vhosts/internal/domain/vhost"
	"github.com/zjrosen/vhosts/internal/infrastructure/filestore"
	"github.com/zjrosen/vhosts/internal/testutil"
)

func newService(t *testing.T, path string, opts ...Option) *Service {
	t.Helper()
	repo := filestore.NewRepository(path, filestore.Options{
		Guard: filestore.GuardOptions{Timeout: 5 * time.Second},
	})
	return NewService(repo, opts...)
}

func standardService(t *testing.T) (*Service, *testutil.Builder) {
	t.Helper()
	b := testutil.NewBuilder(t, testutil.HostsPath(t)).WithStandardHosts()
	return newService(t, b.Build()), b
}

func TestService_EndToEnd(t *testing.T) {
	ctx := context.Background()
	b := testutil.NewBuilder(t, testutil.HostsPath(t))
	b.WriteFile([]byte("{}"))
	svc := newService(t, b.Path())

	host := vhost.NewHost("x.test")
	host.Docroot = "/srv/x"
	require.NoError(t, svc.ReplaceAll(ctx, vhost.Registry{"x.test": host}))

	toggled, err := svc.ToggleActive(ctx, "x.test")
	require.NoError(t, err)
	require.False(t, toggled.Active)

	reg, err := svc.ListHosts(ctx)
	require.NoError(t, err)
	require.Len(t, reg, 1)
	want := host
	want.Active = false
	require.Equal(t, want, reg["x.test"])
}

func TestService_ListHosts_MissingFileIsEmpty(t *testing.T) {
	svc := newService(t, testutil.HostsPath(t))

	reg, err := svc.ListHosts(context.Background())
	require.NoError(t, err)
	require.Empty(t, reg)
}

func TestService_ListHosts_Legacy(t *testing.T) {
	b := testutil.NewBuilder(t, testutil.HostsPath(t)).WithLegacyHosts()
	svc := newService(t, b.Build())

	reg, err := svc.ListHosts(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"strings.test", "singular.test", "typed.test"}, reg.Domains())
	require.Equal(t, []string{"old.singular.test"}, reg["singular.test"].ActiveAliases())
}

func TestService_ListHosts_ParseError(t *testing.T) {
	b := testutil.NewBuilder(t, testutil.HostsPath(t))
	b.WriteFile([]byte(`[1, 2]`))
	svc := newService(t, b.Path())

	_, err := svc.ListHosts(context.Background())
	require.ErrorIs(t, err, vhost.ErrParse)
	require.Equal(t, "parse", ErrorKind(err))
}

func TestService_ReplaceAll_KeysWin(t *testing.T) {
	ctx := context.Background()
	svc, _ := standardService(t)

	mismatched := vhost.NewHost("other.test")
	require.NoError(t, svc.ReplaceAll(ctx, vhost.Registry{"key.test": mismatched}))

	reg, err := svc.ListHosts(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"key.test"}, reg.Domains())
	require.Equal(t, "key.test", reg["key.test"].Domain)
}

func TestService_ReplaceAll_InvalidKeyLeavesFile(t *testing.T) {
	svc, b := standardService(t)
	before := b.ReadFile()

	err := svc.ReplaceAll(context.Background(), vhost.Registry{"bad domain": vhost.NewHost("bad domain")})
	require.ErrorIs(t, err, vhost.ErrInvalidDomain)
	require.Equal(t, before, b.ReadFile())
}

func TestService_ReplaceAll_RecoversCorruptFile(t *testing.T) {
	ctx := context.Background()
	b := testutil.NewBuilder(t, testutil.HostsPath(t))
	b.WriteFile([]byte(`{"truncated": `))
	svc := newService(t, b.Path())

	require.NoError(t, svc.ReplaceAll(ctx, vhost.Registry{"a.test": vhost.NewHost("a.test")}))
	reg, err := svc.ListHosts(ctx)
	require.NoError(t, err)
	require.Contains(t, reg, "a.test")
}

func TestService_DeleteOne(t *testing.T) {
	ctx := context.Background()
	svc, _ := standardService(t)

	require.NoError(t, svc.DeleteOne(ctx, "api.test"))

	reg, err := svc.ListHosts(ctx)
	require.NoError(t, err)
	require.NotContains(t, reg, "api.test")
	require.Len(t, reg, 2)
}

func TestService_DeleteOne_Missing(t *testing.T) {
	t.Run("empty registry", func(t *testing.T) {
		b := testutil.NewBuilder(t, testutil.HostsPath(t))
		b.WriteFile([]byte("{}"))
		svc := newService(t, b.Path())

		err := svc.DeleteOne(context.Background(), "nope.test")
		var notFound *vhost.NotFoundError
		require.ErrorAs(t, err, &notFound)
		require.Equal(t, "nope.test", notFound.Domain)
		require.Equal(t, "{}", string(b.ReadFile()))
	})

	t.Run("no file", func(t *testing.T) {
		path := testutil.HostsPath(t)
		svc := newService(t, path)

		require.ErrorIs(t, svc.DeleteOne(context.Background(), "nope.test"), vhost.ErrNotFound)
		_, err := os.Stat(path)
		require.True(t, errors.Is(err, os.ErrNotExist), "delete of a missing host must not create the file")
	})
}

func TestService_ToggleActive(t *testing.T) {
	ctx := context.Background()
	svc, _ := standardService(t)

	host, err := svc.ToggleActive(ctx, "blog.test")
	require.NoError(t, err)
	require.True(t, host.Active)

	host, err = svc.ToggleActive(ctx, "blog.test")
	require.NoError(t, err)
	require.False(t, host.Active)

	_, err = svc.ToggleActive(ctx, "missing.test")
	require.ErrorIs(t, err, vhost.ErrNotFound)
}

func TestService_ToggleActive_ConcurrentNoneLost(t *testing.T) {
	ctx := context.Background()
	b := testutil.NewBuilder(t, testutil.HostsPath(t))
	for i := 0; i < 8; i++ {
		b.WithHost(fmt.Sprintf("h%d.test", i))
	}
	path := b.Build()

	// Separate services model uncoordinated callers (main UI and tray).
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svc := newService(t, path)
			_, err := svc.ToggleActive(ctx, fmt.Sprintf("h%d.test", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	reg, err := newService(t, path).ListHosts(ctx)
	require.NoError(t, err)
	require.Len(t, reg, 8)
	require.Zero(t, reg.ActiveCount(), "every toggle must be reflected")
}

func TestService_SetAllActive(t *testing.T) {
	ctx := context.Background()
	svc, b := standardService(t)

	changed, err := svc.SetAllActive(ctx, true)
	require.NoError(t, err)
	require.Equal(t, 1, changed)
	once := b.ReadFile()

	changed, err = svc.SetAllActive(ctx, true)
	require.NoError(t, err)
	require.Zero(t, changed)
	require.Equal(t, once, b.ReadFile(), "second call is a no-op")

	changed, err = svc.SetAllActive(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 3, changed)

	reg, err := svc.ListHosts(ctx)
	require.NoError(t, err)
	require.Zero(t, reg.ActiveCount())
}

func TestService_UpsertHost(t *testing.T) {
	ctx := context.Background()
	svc, _ := standardService(t)

	created, err := svc.UpsertHost(ctx, vhost.Host{
		Domain:  "new.test",
		Docroot: "/srv/new",
		Aliases: []vhost.Alias{{Value: "www.new.test", Active: true}, {Value: ""}},
		Active:  true,
	})
	require.NoError(t, err)
	require.True(t, created)

	reg, err := svc.ListHosts(ctx)
	require.NoError(t, err)
	host := reg["new.test"]
	require.Equal(t, vhost.DefaultGroup, host.Group)
	require.Equal(t, vhost.DefaultType, host.Type)
	require.Len(t, host.Aliases, 1)
	require.NotEmpty(t, host.Aliases[0].ID)

	host.Docroot = "/srv/changed"
	created, err = svc.UpsertHost(ctx, host)
	require.NoError(t, err)
	require.False(t, created)

	reg, err = svc.ListHosts(ctx)
	require.NoError(t, err)
	require.Equal(t, "/srv/changed", reg["new.test"].Docroot)
	require.Len(t, reg, 4)

	_, err = svc.UpsertHost(ctx, vhost.Host{Domain: " "})
	require.ErrorIs(t, err, vhost.ErrInvalidDomain)
}

func TestService_RenameDomain(t *testing.T) {
	ctx := context.Background()
	svc, _ := standardService(t)

	require.NoError(t, svc.RenameDomain(ctx, "app.test", "shop.test"))

	reg, err := svc.ListHosts(ctx)
	require.NoError(t, err)
	require.NotContains(t, reg, "app.test")
	require.Equal(t, "shop.test", reg["shop.test"].Domain)
	require.Len(t, reg["shop.test"].Aliases, 2, "aliases move with the host")

	require.ErrorIs(t, svc.RenameDomain(ctx, "shop.test", "api.test"), vhost.ErrDuplicateDomain)
	require.ErrorIs(t, svc.RenameDomain(ctx, "missing.test", "x.test"), vhost.ErrNotFound)
	require.ErrorIs(t, svc.RenameDomain(ctx, "shop.test", "bad/name"), vhost.ErrInvalidDomain)
	require.NoError(t, svc.RenameDomain(ctx, "shop.test", "shop.test"))
}

func TestService_RenameGroup(t *testing.T) {
	ctx := context.Background()
	svc, _ := standardService(t)

	moved, err := svc.RenameGroup(ctx, "Work", "Clients")
	require.NoError(t, err)
	require.Equal(t, 2, moved)

	reg, err := svc.ListHosts(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Clients", vhost.DefaultGroup}, reg.Groups())

	moved, err = svc.RenameGroup(ctx, "Nope", "Other")
	require.NoError(t, err)
	require.Zero(t, moved)

	moved, err = svc.RenameGroup(ctx, "Clients", "")
	require.NoError(t, err)
	require.Equal(t, 2, moved)

	reg, err = svc.ListHosts(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{vhost.DefaultGroup}, reg.Groups())
}

func TestService_Aliases(t *testing.T) {
	ctx := context.Background()
	svc, _ := standardService(t)

	alias, err := svc.AddAlias(ctx, "api.test", " v2.api.test ")
	require.NoError(t, err)
	require.Equal(t, "v2.api.test", alias.Value)
	require.True(t, alias.Active)

	_, err = svc.AddAlias(ctx, "api.test", "v2.api.test")
	require.ErrorIs(t, err, vhost.ErrDuplicateDomain)
	_, err = svc.AddAlias(ctx, "missing.test", "x.test")
	require.ErrorIs(t, err, vhost.ErrNotFound)

	toggled, err := svc.ToggleAlias(ctx, "api.test", alias.ID)
	require.NoError(t, err)
	require.False(t, toggled.Active)

	reg, err := svc.ListHosts(ctx)
	require.NoError(t, err)
	require.Empty(t, reg["api.test"].ActiveAliases())

	require.NoError(t, svc.RemoveAlias(ctx, "api.test", alias.ID))
	reg, err = svc.ListHosts(ctx)
	require.NoError(t, err)
	require.Empty(t, reg["api.test"].Aliases)

	err = svc.RemoveAlias(ctx, "api.test", alias.ID)
	var notFound *vhost.NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, alias.ID, notFound.AliasID)
}

func TestService_RemoveAlias_KeepsOrder(t *testing.T) {
	ctx := context.Background()
	b := testutil.NewBuilder(t, testutil.HostsPath(t)).
		WithHost("a.test",
			testutil.Alias("one.test", true),
			testutil.Alias("two.test", true),
			testutil.Alias("three.test", true))
	svc := newService(t, b.Build())

	reg, err := svc.ListHosts(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.RemoveAlias(ctx, "a.test", reg["a.test"].Aliases[1].ID))

	reg, err = svc.ListHosts(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"one.test", "three.test"}, reg["a.test"].ActiveAliases())
}

func TestService_LockTimeout(t *testing.T) {
	b := testutil.NewBuilder(t, testutil.HostsPath(t)).WithStandardHosts()
	path := b.Build()

	holder := filestore.NewGuard(path, filestore.GuardOptions{Timeout: time.Second})
	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = holder.WithLock(context.Background(), func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	repo := filestore.NewRepository(path, filestore.Options{
		Guard: filestore.GuardOptions{Timeout: 100 * time.Millisecond, PollInterval: 10 * time.Millisecond},
	})
	svc := NewService(repo)

	_, err := svc.ToggleActive(context.Background(), "app.test")
	require.ErrorIs(t, err, vhost.ErrLockTimeout)
	require.Equal(t, "lock_timeout", ErrorKind(err))

	reg, err := svc.ListHosts(context.Background())
	require.NoError(t, err, "reads do not take the lock")
	require.True(t, reg["app.test"].Active)
}

func TestService_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	b := testutil.NewBuilder(t, testutil.HostsPath(t)).WithStandardHosts()
	svc := newService(t, b.Build(), WithTracer(tp.Tracer("test")))

	_, _ = svc.ListHosts(context.Background())
	_, _ = svc.ToggleActive(context.Background(), "missing.test")

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	require.Equal(t, "hosts.list", ended[0].Name())
	require.Equal(t, "hosts.toggle", ended[1].Name())
	require.NotEmpty(t, ended[1].Events(), "error recorded as span event")
}

func TestErrorKind(t *testing.T) {
	require.Empty(t, ErrorKind(nil))
	require.Equal(t, "not_found", ErrorKind(&vhost.NotFoundError{Domain: "a"}))
	require.Equal(t, "invalid_domain", ErrorKind(vhost.ValidateDomain("")))
	require.Equal(t, "duplicate", ErrorKind(fmt.Errorf("%w: x", vhost.ErrDuplicateDomain)))
	require.Equal(t, "canceled", ErrorKind(context.Canceled))
	require.Equal(t, "io", ErrorKind(&os.PathError{Op: "open", Path: "/x", Err: os.ErrPermission}))
	require.Equal(t, "internal", ErrorKind(errors.New("other")))
}
