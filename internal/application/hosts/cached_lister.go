package hosts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"time"

	"github.com/zjrosen/vhosts/internal/cachemanager"
	"github.com/zjrosen/vhosts/internal/domain/vhost"
	"github.com/zjrosen/vhosts/internal/log"
)

// DefaultListCacheTTL bounds how long a decoded registry is kept after its last use.
const DefaultListCacheTTL = 5 * time.Second

// CachedLister reads hosts.json on every call and reuses the decoded registry
// only when the bytes are identical to a previous read. Entries are keyed by a
// SHA-256 of the content, so any edit, whatever its size or timestamp, is a miss.
type CachedLister struct {
	lister Lister
	ttl    time.Duration
	cache  *cachemanager.ReadThroughCache[string, vhost.Registry, []byte]
	decode func(data []byte) (vhost.Registry, error)
}

// NewCachedLister wraps lister. A ttl <= 0 disables reuse and every call goes to lister.
func NewCachedLister(lister Lister, ttl time.Duration) *CachedLister {
	expiry := ttl
	if expiry <= 0 {
		expiry = DefaultListCacheTTL
	}
	c := &CachedLister{lister: lister, ttl: ttl, decode: decodeRegistry}
	manager := cachemanager.NewInMemoryCacheManager[string, vhost.Registry]("hosts-list", expiry, cachemanager.DefaultCleanupInterval)
	load := func(_ context.Context, data []byte) (vhost.Registry, error) {
		return c.decode(data)
	}
	c.cache = cachemanager.NewReadThroughCache[string, vhost.Registry, []byte](manager, load, ttl <= 0)
	return c
}

func decodeRegistry(data []byte) (vhost.Registry, error) {
	reg, skipped, err := vhost.DecodeRegistry(data)
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		log.Debug(log.CatCodec, "Skipped malformed host entries", "domains", skipped)
	}
	return reg, nil
}

// Path implements Lister.
func (c *CachedLister) Path() string {
	return c.lister.Path()
}

// ListHosts implements Lister. The returned registry is a private copy.
//
// Anything other than a readable, parseable file goes through the wrapped
// lister, which owns missing-file handling and the retry on a partial write.
func (c *CachedLister) ListHosts(ctx context.Context) (vhost.Registry, error) {
	if c.ttl <= 0 {
		return c.lister.ListHosts(ctx)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(c.lister.Path())
	if err != nil {
		return c.lister.ListHosts(ctx)
	}
	sum := sha256.Sum256(data)
	reg, err := c.cache.Get(ctx, hex.EncodeToString(sum[:]), data, c.ttl)
	if err != nil {
		return c.lister.ListHosts(ctx)
	}
	return reg.Clone(), nil
}

// Invalidate drops every decoded registry. The API calls it after each write
// so memory does not hold registries that are no longer on disk.
func (c *CachedLister) Invalidate(ctx context.Context) error {
	return c.cache.Invalidate(ctx)
}
