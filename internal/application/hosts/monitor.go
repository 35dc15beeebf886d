package hosts

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/zjrosen/vhosts/internal/cachemanager"
	"github.com/zjrosen/vhosts/internal/domain/vhost"
	"github.com/zjrosen/vhosts/internal/log"
	"github.com/zjrosen/vhosts/internal/pubsub"
	"github.com/zjrosen/vhosts/internal/watcher"
)

// Lister is the read side of Service used by Monitor.
type Lister interface {
	Path() string
	ListHosts(ctx context.Context) (vhost.Registry, error)
}

// Change describes the difference between two observed states of hosts.json.
type Change struct {
	Added    []string
	Removed  []string
	Modified []string
	// Diff is a line diff of the canonical encodings, "+"/"-" prefixed.
	Diff  string
	Hosts vhost.Registry
	// Err is set on pubsub.ErrorEvent when the file could not be read.
	Err error
}

// Empty reports whether the change carries no host differences.
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}

// Summary is a one-line description suitable for a menu title or log line.
func (c Change) Summary() string {
	if c.Err != nil {
		return "hosts unavailable: " + c.Err.Error()
	}
	var parts []string
	if n := len(c.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("%d added", n))
	}
	if n := len(c.Removed); n > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", n))
	}
	if n := len(c.Modified); n > 0 {
		parts = append(parts, fmt.Sprintf("%d modified", n))
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, ", ")
}

// Snapshot is the last registry state a Monitor observed.
type Snapshot struct {
	Hosts   vhost.Registry
	Encoded string
}

// MonitorOptions configure a Monitor.
type MonitorOptions struct {
	Debounce time.Duration
	// Snapshots stores the last observed state per hosts file. Defaults to an in-memory cache.
	Snapshots cachemanager.CacheManager[string, Snapshot]
}

// monitorBufferSize bounds how many changes a subscriber may lag behind before
// the oldest are discarded. Every Change carries the full registry, so the
// newest one is always enough to redraw.
const monitorBufferSize = 16

// Monitor publishes a Change whenever hosts.json is modified by any process.
type Monitor struct {
	lister    Lister
	debounce  time.Duration
	snapshots cachemanager.CacheManager[string, Snapshot]
	broker    *pubsub.Broker[Change]
	mu        sync.Mutex
}

// NewMonitor creates a monitor over lister.
func NewMonitor(lister Lister, opts MonitorOptions) *Monitor {
	snapshots := opts.Snapshots
	if snapshots == nil {
		snapshots = cachemanager.NewInMemoryCacheManager[string, Snapshot](
			"hosts-snapshots", cachemanager.NoExpiration, cachemanager.DefaultCleanupInterval)
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = watcher.DefaultDebounce
	}
	return &Monitor{
		lister:    lister,
		debounce:  debounce,
		snapshots: snapshots,
		broker: pubsub.NewBroker[Change](
			pubsub.WithBufferSize(monitorBufferSize),
			pubsub.WithOverflow(pubsub.DropOldest),
		),
	}
}

// Subscribe returns a channel of Change events that closes when ctx is done.
func (m *Monitor) Subscribe(ctx context.Context) <-chan pubsub.Event[Change] {
	return m.broker.Subscribe(ctx)
}

// lastSnapshot returns the last observed registry, if any.
func (m *Monitor) lastSnapshot(ctx context.Context) (Snapshot, bool) {
	return m.snapshots.Get(ctx, m.lister.Path())
}

// Refresh reads the registry, compares it with the last snapshot and publishes
// an UpdatedEvent if anything differs. The first call only records the snapshot.
// A read failure publishes an ErrorEvent and keeps the previous snapshot.
func (m *Monitor) Refresh(ctx context.Context) (Change, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, err := m.lister.ListHosts(ctx)
	if err != nil {
		log.Warn(log.CatWatcher, "Hosts file unreadable", "path", m.lister.Path(), "error", err)
		m.broker.Publish(pubsub.ErrorEvent, Change{Err: err})
		return Change{}, false, err
	}
	encoded, err := vhost.EncodeRegistry(reg)
	if err != nil {
		return Change{}, false, err
	}
	current := Snapshot{Hosts: reg, Encoded: string(encoded)}

	key := m.lister.Path()
	previous, seen := m.snapshots.Get(ctx, key)
	m.snapshots.Set(ctx, key, current, cachemanager.NoExpiration)
	if !seen {
		log.Debug(log.CatWatcher, "Recorded initial snapshot", "hosts", len(reg))
		return Change{Hosts: reg}, false, nil
	}

	change := diffSnapshots(previous, current)
	if change.Empty() {
		return change, false, nil
	}
	log.Info(log.CatWatcher, "Hosts file changed", "summary", change.Summary())
	m.broker.Publish(pubsub.UpdatedEvent, change)
	return change, true, nil
}

// Run watches the hosts file until ctx is done. The parent directory must exist.
func (m *Monitor) Run(ctx context.Context) error {
	w, err := watcher.New(watcher.Config{Path: m.lister.Path(), Debounce: m.debounce})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	onChange, err := w.Start(ctx)
	if err != nil {
		return err
	}

	// A read error here is already published; keep watching for a fix.
	_, _, _ = m.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-onChange:
			_, _, _ = m.Refresh(ctx)
		}
	}
}

// Close ends every subscription.
func (m *Monitor) Close() {
	m.broker.Close()
}

func diffSnapshots(previous, current Snapshot) Change {
	change := Change{Hosts: current.Hosts}
	for domain, host := range current.Hosts {
		old, ok := previous.Hosts[domain]
		switch {
		case !ok:
			change.Added = append(change.Added, domain)
		case !reflect.DeepEqual(normalizedForCompare(old), normalizedForCompare(host)):
			change.Modified = append(change.Modified, domain)
		}
	}
	for domain := range previous.Hosts {
		if _, ok := current.Hosts[domain]; !ok {
			change.Removed = append(change.Removed, domain)
		}
	}
	sort.Strings(change.Added)
	sort.Strings(change.Removed)
	sort.Strings(change.Modified)
	if !change.Empty() {
		change.Diff = lineDiff(previous.Encoded, current.Encoded)
	}
	return change
}

// normalizedForCompare treats nil and empty alias lists as equal.
func normalizedForCompare(h vhost.Host) vhost.Host {
	if len(h.Aliases) == 0 {
		h.Aliases = nil
	}
	return h
}

// lineDiff renders only the changed lines of a line-level diff.
func lineDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		default:
			continue
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}
