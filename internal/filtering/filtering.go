// Package filtering contains the static domain filter: the flat blocklist,
// allowlist, and wildcard blocklist used for direct, uncategorized overrides.
// The category-aware lists live in the blocklist package, and both are
// composed into a single decision by the policy package.
package filtering

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/shielddns/shielddns/internal/hostpat"
)

// CategoryCustom is the category name reported for blocks caused by manual
// rules rather than by a categorized list.
const CategoryCustom = "custom"

// Decision is the result of checking a domain against the static filter.
type Decision int

// Decision values.
const (
	// DecisionUnknown means that the filter has no opinion on the domain.
	// It is the zero value and is never returned by an enabled filter.
	DecisionUnknown Decision = iota

	// DecisionAllow means that the domain is explicitly allowed or that the
	// filter found no blocking rule.
	DecisionAllow

	// DecisionBlock means that the domain matched the blocklist.
	DecisionBlock
)

// String implements the [fmt.Stringer] interface for Decision.
func (d Decision) String() (s string) {
	switch d {
	case DecisionUnknown:
		return "unknown"
	case DecisionAllow:
		return "allow"
	case DecisionBlock:
		return "block"
	default:
		return fmt.Sprintf("!bad_decision_%d", d)
	}
}

// Config is the static filter configuration structure.
type Config struct {
	// Logger is used for logging the operation of the filter.  It must not be
	// nil.
	Logger *slog.Logger
}

// Filter is the static domain filter.  It is safe for concurrent use.
type Filter struct {
	logger *slog.Logger

	// mu protects all fields below.
	mu        *sync.RWMutex
	blocklist *container.MapSet[string]
	allowlist *container.MapSet[string]
	wildcards []string
	enabled   bool

	// onChange, if not nil, is called after every mutation of the filter's
	// rules or its enabled state.  It's how dependents that cache decisions
	// derived from the filter learn that those decisions are stale.
	onChange func()
}

// New returns a new enabled *Filter.  conf must not be nil.
func New(conf *Config) (f *Filter) {
	return &Filter{
		logger:    conf.Logger,
		mu:        &sync.RWMutex{},
		blocklist: container.NewMapSet[string](),
		allowlist: container.NewMapSet[string](),
		enabled:   true,
	}
}

// SetOnChange registers fn to be called after every mutation of the filter.
func (f *Filter) SetOnChange(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.onChange = fn
}

// notify invokes the registered change callback, if any.  It must be called
// without f.mu held.
func (f *Filter) notify() {
	f.mu.RLock()
	fn := f.onChange
	f.mu.RUnlock()

	if fn != nil {
		fn()
	}
}

// Check returns the filter's decision for domain.  The allowlist is consulted
// first and short-circuits any blocklist match.  A disabled filter always
// allows.
func (f *Filter) Check(domain string) (d Decision) {
	domain = hostpat.Normalize(domain)

	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.enabled {
		return DecisionAllow
	}

	if f.allowlist.Has(domain) {
		return DecisionAllow
	}

	if f.blocklist.Has(domain) {
		return DecisionBlock
	}

	for _, pat := range f.wildcards {
		if hostpat.MatchWildcard(domain, pat) {
			return DecisionBlock
		}
	}

	return DecisionAllow
}

// IsBlocked is a shorthand for Check(domain) == DecisionBlock.
func (f *Filter) IsBlocked(domain string) (ok bool) {
	return f.Check(domain) == DecisionBlock
}

// InAllowlist returns true if domain is an explicit allowlist entry, as
// opposed to merely not being blocked.
func (f *Filter) InAllowlist(domain string) (ok bool) {
	domain = hostpat.Normalize(domain)

	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.enabled && f.allowlist.Has(domain)
}

// AddToBlocklist adds domain to the blocklist.  Entries starting with "*."
// are stored as wildcard patterns.
func (f *Filter) AddToBlocklist(domain string) {
	domain = hostpat.Normalize(domain)

	defer f.notify()

	f.mu.Lock()
	defer f.mu.Unlock()

	if strings.HasPrefix(domain, "*.") {
		if !slices.Contains(f.wildcards, domain) {
			f.wildcards = append(f.wildcards, domain)
		}

		return
	}

	f.blocklist.Add(domain)
}

// RemoveFromBlocklist removes domain from the blocklist, including the
// wildcard patterns.
func (f *Filter) RemoveFromBlocklist(domain string) {
	domain = hostpat.Normalize(domain)

	defer f.notify()

	f.mu.Lock()
	defer f.mu.Unlock()

	if strings.HasPrefix(domain, "*.") {
		if i := slices.Index(f.wildcards, domain); i != -1 {
			f.wildcards = slices.Delete(f.wildcards, i, i+1)
		}

		return
	}

	f.blocklist.Delete(domain)
}

// AddToAllowlist adds domain to the allowlist.
func (f *Filter) AddToAllowlist(domain string) {
	domain = hostpat.Normalize(domain)

	defer f.notify()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.allowlist.Add(domain)
}

// RemoveFromAllowlist removes domain from the allowlist.
func (f *Filter) RemoveFromAllowlist(domain string) {
	domain = hostpat.Normalize(domain)

	defer f.notify()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.allowlist.Delete(domain)
}

// LoadBlocklist reads path as a plain list of domains, one per line, skipping
// empty lines and "#" comments, and adds the entries to the blocklist.  It
// returns the number of entries added.
func (f *Filter) LoadBlocklist(ctx context.Context, path string) (count int, err error) {
	defer func() { err = errors.Annotate(err, "loading blocklist from %q: %w", path) }()

	// #nosec G304 -- Trust the file path given by the caller.
	file, err := os.Open(path)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return 0, err
	}
	defer func() { err = errors.WithDeferred(err, file.Close()) }()

	s := bufio.NewScanner(file)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		f.AddToBlocklist(line)
		count++
	}

	err = s.Err()
	if err != nil {
		return count, fmt.Errorf("scanning blocklist: %w", err)
	}

	f.logger.InfoContext(ctx, "loaded blocklist", "path", path, "count", count)

	return count, nil
}

// SetEnabled turns the filter on or off.  A disabled filter allows every
// domain without consulting any list.
func (f *Filter) SetEnabled(enabled bool) {
	defer f.notify()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.enabled = enabled
}

// BlocklistSize returns the number of exact and wildcard blocklist entries.
func (f *Filter) BlocklistSize() (n int) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.blocklist.Len() + len(f.wildcards)
}

// AllowlistSize returns the number of allowlist entries.
func (f *Filter) AllowlistSize() (n int) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.allowlist.Len()
}

// Clear removes all entries from all lists.
func (f *Filter) Clear() {
	defer f.notify()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.blocklist = container.NewMapSet[string]()
	f.allowlist = container.NewMapSet[string]()
	f.wildcards = nil
}
