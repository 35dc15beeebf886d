// Package testutil builds hosts.json fixtures for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/vhosts/internal/domain/vhost"
)

// HostsPath returns a hosts.json path inside a fresh temp directory. The file is not created.
func HostsPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "conf", "hosts.json")
}

// Builder accumulates host entries and writes them as a hosts.json document.
// Raw entries are written verbatim, which lets tests mix canonical hosts with
// legacy or malformed ones.
type Builder struct {
	t     *testing.T
	path  string
	hosts []vhost.Host
	raw   map[string]json.RawMessage
}

// NewBuilder creates a builder that writes to path.
func NewBuilder(t *testing.T, path string) *Builder {
	t.Helper()
	return &Builder{t: t, path: path, raw: make(map[string]json.RawMessage)}
}

// WithHost adds a host starting from the registry defaults.
func (b *Builder) WithHost(domain string, opts ...HostOption) *Builder {
	host := vhost.NewHost(domain)
	for _, opt := range opts {
		opt(&host)
	}
	b.hosts = append(b.hosts, host)
	return b
}

// WithRawEntry adds an entry whose JSON is written exactly as given.
func (b *Builder) WithRawEntry(domain, rawJSON string) *Builder {
	b.raw[domain] = json.RawMessage(rawJSON)
	return b
}

// Path returns the file the builder writes to.
func (b *Builder) Path() string {
	return b.path
}

// Registry returns the canonical hosts added so far (raw entries excluded).
func (b *Builder) Registry() vhost.Registry {
	reg := vhost.NewRegistry()
	for _, h := range b.hosts {
		reg.Put(h.Clone())
	}
	return reg
}

// Build writes the document and returns its path.
func (b *Builder) Build() string {
	b.t.Helper()

	doc := make(map[string]json.RawMessage, len(b.hosts)+len(b.raw))
	for _, h := range b.hosts {
		data, err := vhost.EncodeHost(h)
		require.NoError(b.t, err)
		doc[h.Domain] = data
	}
	for domain, raw := range b.raw {
		doc[domain] = raw
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	require.NoError(b.t, err)
	b.WriteFile(data)
	return b.path
}

// WriteFile writes arbitrary content to the builder's path, e.g. a corrupt document.
func (b *Builder) WriteFile(data []byte) {
	b.t.Helper()
	require.NoError(b.t, os.MkdirAll(filepath.Dir(b.path), 0o755))
	require.NoError(b.t, os.WriteFile(b.path, data, 0o644))
}

// ReadFile returns the current content of the builder's path.
func (b *Builder) ReadFile() []byte {
	b.t.Helper()
	data, err := os.ReadFile(b.path)
	require.NoError(b.t, err)
	return data
}

func aliasID(domain string, n int) string {
	return fmt.Sprintf("alias_%s_%d", domain, n)
}
