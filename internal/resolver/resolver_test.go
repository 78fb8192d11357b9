package resolver_test

import (
	"context"
	"net/http"
	"net/netip"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/shielddns/shielddns/internal/blocklist"
	"github.com/shielddns/shielddns/internal/dnscache"
	"github.com/shielddns/shielddns/internal/filtering"
	"github.com/shielddns/shielddns/internal/policy"
	"github.com/shielddns/shielddns/internal/resolver"
	"github.com/shielddns/shielddns/internal/shieldtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTimeout is the common timeout for tests.
const testTimeout = 5 * time.Second

// newTestResolver is a helper wiring a resolver around x with a fresh
// policy engine, list store, and cache.
func newTestResolver(
	t *testing.T,
	x resolver.Exchanger,
) (r *resolver.Resolver, e *policy.Engine, c *dnscache.Cache) {
	t.Helper()

	l := slogutil.NewDiscardLogger()
	clock := timeutil.SystemClock{}

	m := blocklist.NewManager(&blocklist.ManagerConfig{
		Logger:     l,
		Clock:      clock,
		HTTPClient: &http.Client{},
	})

	e = policy.NewEngine(&policy.Config{
		Logger:     l,
		Clock:      clock,
		Blocklists: m,
		Filter:     filtering.New(&filtering.Config{Logger: l}),
	})

	c = dnscache.New(&dnscache.Config{
		Logger:     l,
		Clock:      clock,
		MaxEntries: 100,
		DefaultTTL: time.Minute,
	})

	r = resolver.New(&resolver.Config{
		Logger:    l,
		Policy:    e,
		Cache:     c,
		Exchanger: x,
	})

	return r, e, c
}

func TestResolver_Resolve(t *testing.T) {
	ctx := testutil.ContextWithTimeout(t, testTimeout)

	want := []netip.Addr{netip.MustParseAddr("93.184.216.34")}

	calls := 0
	x := &shieldtest.Exchanger{
		OnExchange: func(
			_ context.Context,
			host string,
			qtype uint16,
		) (addrs []netip.Addr, ttl time.Duration, err error) {
			calls++

			return want, time.Minute, nil
		},
	}

	r, _, c := newTestResolver(t, x)

	got, err := r.Resolve(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, calls)

	// The second lookup is served from the cache.
	got, err = r.Resolve(ctx, "EXAMPLE.com.")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.Len())

	hits, misses := r.CacheStats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
	assert.InDelta(t, 0.5, r.CacheHitRate(), 0.001)

	r.ClearCache()
	assert.Equal(t, 0, c.Len())
}

func TestResolver_Resolve_blockedNeverCached(t *testing.T) {
	ctx := testutil.ContextWithTimeout(t, testTimeout)

	x := &shieldtest.Exchanger{
		OnExchange: func(
			_ context.Context,
			host string,
			_ uint16,
		) (addrs []netip.Addr, ttl time.Duration, err error) {
			panic("unexpected upstream lookup for " + host)
		},
	}

	r, e, c := newTestResolver(t, x)
	e.AddToBlocklist("malware.example.com", "malware")

	for range 2 {
		addrs, err := r.Resolve(ctx, "malware.example.com")
		require.NoError(t, err)
		assert.Empty(t, addrs)
	}

	assert.Equal(t, 0, c.Len())
	assert.True(t, r.IsBlocked(ctx, "malware.example.com"))
}

func TestResolver_Resolve_upstreamError(t *testing.T) {
	ctx := testutil.ContextWithTimeout(t, testTimeout)

	x := &shieldtest.Exchanger{
		OnExchange: func(
			_ context.Context,
			_ string,
			_ uint16,
		) (addrs []netip.Addr, ttl time.Duration, err error) {
			return nil, 0, assert.AnError
		},
	}

	r, _, c := newTestResolver(t, x)

	_, err := r.Resolve(ctx, "flaky.example.com")

	var resErr *resolver.ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "flaky.example.com", resErr.Host)
	assert.ErrorIs(t, err, assert.AnError)

	// A failed lookup must not pollute the cache.
	assert.Equal(t, 0, c.Len())
}

func TestResolver_ResolveForClient(t *testing.T) {
	ctx := testutil.ContextWithTimeout(t, testTimeout)

	want := []netip.Addr{netip.MustParseAddr("2001:db8::1")}
	r, e, _ := newTestResolver(t, shieldtest.StaticExchanger(time.Minute, want...))

	prof := policy.NewProfile("Kid", policy.LevelCustom)
	prof.CustomBlocklist = []string{"videos.example.com"}

	ip := netip.MustParseAddr("192.0.2.10")
	e.AssignProfileToIP(ip, prof)

	addrs, err := r.ResolveForClient(ctx, "videos.example.com", policy.Client{IP: ip})
	require.NoError(t, err)
	assert.Empty(t, addrs)

	addrs, err = r.ResolveForClient(ctx, "videos.example.com", policy.Client{})
	require.NoError(t, err)
	assert.Equal(t, want, addrs)
}

func TestResolver_Resolve_defaultTTL(t *testing.T) {
	ctx := testutil.ContextWithTimeout(t, testTimeout)

	want := []netip.Addr{netip.MustParseAddr("198.51.100.7")}

	// The upstream reports no TTL, so the cache default applies and the
	// entry is immediately retrievable.
	r, _, c := newTestResolver(t, shieldtest.StaticExchanger(0, want...))

	got, err := r.Resolve(ctx, "nottl.example.com")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, c.Len())

	got, err = r.Resolve(ctx, "nottl.example.com")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	hits, _ := r.CacheStats()
	assert.Equal(t, uint64(1), hits)
}
