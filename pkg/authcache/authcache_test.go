package authcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testFactory(calls *atomic.Int32, ttl time.Duration) Factory {
	return func(_ context.Context, key CredentialKey) (*AuthContext, error) {
		calls.Add(1)
		return &AuthContext{
			IdentityKey:  key.Identity,
			Capabilities: map[string]struct{}{"sign": {}},
			ExpiresAt:    time.Now().Add(ttl),
		}, nil
	}
}

func TestGetOrCreateCachesByFullFingerprint(t *testing.T) {
	cache := New()
	var calls atomic.Int32
	factory := testFactory(&calls, time.Hour)

	base := CredentialKey{
		Identity:       "alice",
		CredentialType: "webauthn",
		CredentialID:   "cred-1",
		AccessToken:    "token-1",
	}

	first, err := cache.GetOrCreate(context.Background(), base, factory)
	require.NoError(t, err)
	second, err := cache.GetOrCreate(context.Background(), base, factory)
	require.NoError(t, err)

	require.Same(t, first, second, "identical credentials must share one cached context")
	require.Equal(t, int32(1), calls.Load())

	// Changing any single dimension must yield a distinct entry. This is
	// the property most likely to be silently violated by a hand-rolled
	// cache key, so each dimension gets its own check.
	variants := []CredentialKey{
		{Identity: "bob", CredentialType: "webauthn", CredentialID: "cred-1", AccessToken: "token-1"},
		{Identity: "alice", CredentialType: "rawkey", CredentialID: "cred-1", AccessToken: "token-1"},
		{Identity: "alice", CredentialType: "webauthn", CredentialID: "cred-2", AccessToken: "token-1"},
		{Identity: "alice", CredentialType: "webauthn", CredentialID: "cred-1", AccessToken: "token-2"},
	}
	for i, variant := range variants {
		got, err := cache.GetOrCreate(context.Background(), variant, factory)
		require.NoError(t, err)
		require.NotSame(t, first, got, "variant %d must not share the base entry", i)
	}
	require.Equal(t, int32(5), calls.Load())
}

func TestGetOrCreateRebuildsAfterExpiry(t *testing.T) {
	cache := New()
	var calls atomic.Int32

	// The factory stamps expiry from the same clock the cache reads, so
	// advancing the fake clock expires the first entry without also
	// pre-expiring the rebuilt one.
	factory := func(_ context.Context, key CredentialKey) (*AuthContext, error) {
		calls.Add(1)
		return &AuthContext{
			IdentityKey: key.Identity,
			ExpiresAt:   cache.now().Add(50 * time.Millisecond),
		}, nil
	}

	key := CredentialKey{Identity: "alice", CredentialType: "pkp", CredentialID: "c", AccessToken: "t"}

	first, err := cache.GetOrCreate(context.Background(), key, factory)
	require.NoError(t, err)

	// Simulate the clock passing the expiry instead of sleeping.
	cache.now = func() time.Time { return first.ExpiresAt.Add(time.Millisecond) }

	second, err := cache.GetOrCreate(context.Background(), key, factory)
	require.NoError(t, err)
	require.NotSame(t, first, second, "expired entry must be rebuilt")
	require.True(t, second.ExpiresAt.After(first.ExpiresAt))
	require.Equal(t, int32(2), calls.Load())
}

func TestGetOrCreateConstructionIsDoOnce(t *testing.T) {
	cache := New()
	var calls atomic.Int32

	release := make(chan struct{})
	factory := func(_ context.Context, key CredentialKey) (*AuthContext, error) {
		calls.Add(1)
		<-release
		return &AuthContext{IdentityKey: key.Identity, ExpiresAt: time.Now().Add(time.Hour)}, nil
	}

	key := CredentialKey{Identity: "alice", CredentialType: "pkp", CredentialID: "c", AccessToken: "t"}

	const workers = 8
	results := make([]*AuthContext, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := cache.GetOrCreate(context.Background(), key, factory)
			require.NoError(t, err)
			results[i] = got
		}(i)
	}

	// Give the workers time to pile up on the singleflight gate.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load(), "factory must run once for concurrent callers")
	for i := 1; i < workers; i++ {
		require.Same(t, results[0], results[i])
	}
}

func TestGetOrCreateRejectsPreExpiredContext(t *testing.T) {
	cache := New()
	factory := func(context.Context, CredentialKey) (*AuthContext, error) {
		return &AuthContext{ExpiresAt: time.Now().Add(-time.Minute)}, nil
	}
	key := CredentialKey{Identity: "alice"}
	_, err := cache.GetOrCreate(context.Background(), key, factory)
	require.Error(t, err)
}

func TestInvalidateForcesRebuild(t *testing.T) {
	cache := New()
	var calls atomic.Int32
	factory := testFactory(&calls, time.Hour)
	key := CredentialKey{Identity: "alice", AccessToken: "t"}

	_, err := cache.GetOrCreate(context.Background(), key, factory)
	require.NoError(t, err)

	cache.Invalidate(key)
	cache.entries.Wait()

	_, err = cache.GetOrCreate(context.Background(), key, factory)
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
}
