// Package authcache caches remote-signer authorization contexts keyed by the
// full credential fingerprint, with explicit expiry and do-once construction
// per key.
package authcache

import (
	"context"
	"encoding/hex"
	"time"

	ristretto "github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"

	"github.com/heavenprotocol/publisher/pkg/puberr"
	"github.com/heavenprotocol/publisher/pkg/utils"
)

const (
	// Expect a handful of live identities; size generously anyway.
	cacheNumCounters = 1_000
	cacheMaxCost     = 100
	cacheBufferItems = 64
	cacheItemCost    = 1
)

// AuthContext is an authorization granted by the remote signer network.
// Contexts are immutable: rotation or expiry replaces the whole value.
type AuthContext struct {
	IdentityKey  string
	Capabilities map[string]struct{}
	ExpiresAt    time.Time
}

// Expired reports whether the context is no longer usable at now.
func (a *AuthContext) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// CredentialKey identifies one credential in every dimension that affects
// the resulting authorization. Two keys differing in any field must never
// share a cache entry.
type CredentialKey struct {
	Identity       string
	CredentialType string
	CredentialID   string
	AccessToken    string
}

// Fingerprint renders the cache key. Every credential dimension is included,
// joined with a separator that cannot appear in the hashed token, and the
// access token is hashed so the raw token never sits in cache keys or logs.
func (k CredentialKey) Fingerprint() string {
	tokenHash := hex.EncodeToString(utils.Blake3Hash([]byte(k.AccessToken)))
	return k.Identity + "\x1f" + k.CredentialType + "\x1f" + k.CredentialID + "\x1f" + tokenHash
}

// Factory builds a fresh AuthContext for a credential. Called at most once
// per fingerprint at a time.
type Factory func(ctx context.Context, key CredentialKey) (*AuthContext, error)

// Cache is the process-wide auth-context cache. Construct once and pass by
// reference into every call site; there is no ambient global instance.
type Cache struct {
	entries *ristretto.Cache[string, *AuthContext]
	sf      singleflight.Group
	now     func() time.Time
}

func New() *Cache {
	c, _ := ristretto.NewCache(&ristretto.Config[string, *AuthContext]{
		NumCounters: cacheNumCounters,
		MaxCost:     cacheMaxCost,
		BufferItems: cacheBufferItems,
	})
	return &Cache{entries: c, now: time.Now}
}

// GetOrCreate returns the cached context for key, invoking factory exactly
// once per fingerprint when the entry is missing or expired. Concurrent
// callers for the same fingerprint share one construction.
func (c *Cache) GetOrCreate(ctx context.Context, key CredentialKey, factory Factory) (*AuthContext, error) {
	fp := key.Fingerprint()

	if cached, ok := c.entries.Get(fp); ok && cached != nil && !cached.Expired(c.now()) {
		return cached, nil
	}

	res, err, _ := c.sf.Do(fp, func() (any, error) {
		// Double-check inside the singleflight window: a concurrent
		// caller may have populated the entry while we waited.
		if cached, ok := c.entries.Get(fp); ok && cached != nil && !cached.Expired(c.now()) {
			return cached, nil
		}

		built, err := factory(ctx, key)
		if err != nil {
			return nil, err
		}
		if built == nil {
			return nil, puberr.New(puberr.KindInternal, "PUB-INT-001", "auth context factory returned nil")
		}

		ttl := built.ExpiresAt.Sub(c.now())
		if ttl <= 0 {
			return nil, puberr.New(puberr.KindSignature, "PUB-SIG-020", "auth context already expired at creation")
		}
		c.entries.SetWithTTL(fp, built, cacheItemCost, ttl)
		c.entries.Wait()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*AuthContext), nil
}

// Invalidate drops the entry for a credential, forcing the next call to
// rebuild. Used on credential rotation.
func (c *Cache) Invalidate(key CredentialKey) {
	c.entries.Del(key.Fingerprint())
}
