// Package resolver combines the policy engine, the name cache, and an
// upstream exchanger into the resolution entry point of the gateway.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/miekg/dns"
	"github.com/shielddns/shielddns/internal/dnscache"
	"github.com/shielddns/shielddns/internal/hostpat"
	"github.com/shielddns/shielddns/internal/policy"
)

// ResolutionError is returned when the upstream lookup for a host fails.
// It is distinct from a policy block, which yields an empty result and a
// nil error.
type ResolutionError struct {
	// Err is the underlying upstream error.
	Err error

	// Host is the normalized host the lookup was for.
	Host string
}

// type check
var _ error = (*ResolutionError)(nil)

// Error implements the error interface for *ResolutionError.
func (err *ResolutionError) Error() (msg string) {
	return fmt.Sprintf("resolving %q: %s", err.Host, err.Err)
}

// Unwrap implements the [errors.Wrapper] interface for *ResolutionError.
func (err *ResolutionError) Unwrap() (unwrapped error) {
	return err.Err
}

// Config is the resolver configuration structure.
type Config struct {
	// Logger is used for logging the operation of the resolver.  It must
	// not be nil.
	Logger *slog.Logger

	// Policy decides whether a host may be resolved.  It must not be nil.
	Policy *policy.Engine

	// Cache stores successful answers.  It must not be nil.
	Cache *dnscache.Cache

	// Exchanger performs the upstream lookups.  It must not be nil.
	Exchanger Exchanger
}

// Resolver is the protection-aware DNS resolver.
type Resolver struct {
	logger    *slog.Logger
	policy    *policy.Engine
	cache     *dnscache.Cache
	exchanger Exchanger
}

// New returns a new properly initialized resolver.  conf must not be nil.
func New(conf *Config) (r *Resolver) {
	return &Resolver{
		logger:    conf.Logger,
		policy:    conf.Policy,
		cache:     conf.Cache,
		exchanger: conf.Exchanger,
	}
}

// Resolve returns the addresses for host, consulting the policy engine
// without client context.  A blocked host yields an empty result and a nil
// error.  Upstream failures are returned as a *ResolutionError and leave
// the cache untouched.
func (r *Resolver) Resolve(ctx context.Context, host string) (addrs []netip.Addr, err error) {
	return r.ResolveForClient(ctx, host, policy.Client{})
}

// ResolveForClient is like [Resolver.Resolve] but attributes the lookup to
// cli, so client-assigned profiles apply.
func (r *Resolver) ResolveForClient(
	ctx context.Context,
	host string,
	cli policy.Client,
) (addrs []netip.Addr, err error) {
	host = hostpat.Normalize(host)

	res := r.policy.CheckClient(ctx, host, cli)
	if res.Decision == policy.DecisionBlock {
		r.logger.DebugContext(
			ctx,
			"blocked",
			"host", host,
			"reason", res.Reason,
			"category", res.Category,
		)

		return nil, nil
	}

	key := dnscache.NewKey(host, dns.TypeToString[dns.TypeA])
	if records, ok := r.cache.Get(ctx, key); ok {
		return parseRecords(records), nil
	}

	addrs, ttl, err := r.exchanger.Exchange(ctx, host, dns.TypeA)
	if err != nil {
		return nil, &ResolutionError{Err: err, Host: host}
	}

	if ttl <= 0 {
		// Let the cache apply its default.
		ttl = -1
	}

	r.cache.Set(ctx, key, formatRecords(addrs), ttl)

	return addrs, nil
}

// IsBlocked reports whether host is blocked by the current policy for an
// unqualified lookup.
func (r *Resolver) IsBlocked(ctx context.Context, host string) (ok bool) {
	return r.policy.IsBlocked(ctx, host)
}

// CacheStats returns the hit and miss counters of the name cache.
func (r *Resolver) CacheStats() (hits, misses uint64) {
	return r.cache.Stats()
}

// CacheHitRate returns the fraction of cache lookups that hit, in [0, 1].
func (r *Resolver) CacheHitRate() (rate float64) {
	return r.cache.HitRate()
}

// ClearCache removes all cached answers.
func (r *Resolver) ClearCache() {
	r.cache.Clear()
}

// formatRecords converts addresses to their cached string form.
func formatRecords(addrs []netip.Addr) (records []string) {
	records = make([]string, 0, len(addrs))
	for _, ip := range addrs {
		records = append(records, ip.String())
	}

	return records
}

// parseRecords converts cached records back to addresses, skipping any that
// do not parse.
func parseRecords(records []string) (addrs []netip.Addr) {
	addrs = make([]netip.Addr, 0, len(records))
	for _, rec := range records {
		ip, err := netip.ParseAddr(rec)
		if err != nil {
			continue
		}

		addrs = append(addrs, ip)
	}

	return addrs
}
