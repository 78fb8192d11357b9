// Package policy decides whether a domain should be resolved for a given
// client.  It combines the global allowlist, the static filter, the
// category blocklists, and per-client profiles into a single ordered
// decision pipeline.
package policy

import (
	"context"
	"log/slog"
	"net/netip"
	"sync"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/bluele/gcache"
	"github.com/shielddns/shielddns/internal/blocklist"
	"github.com/shielddns/shielddns/internal/filtering"
	"github.com/shielddns/shielddns/internal/hostpat"
)

// DefaultDecisionCacheSize is the default number of cached decisions.
const DefaultDecisionCacheSize = 4096

// Client identifies the requesting client of a policy check.  The zero
// value means the check is unqualified and only the default profile
// applies.
type Client struct {
	// IP is the address of the client, if known.
	IP netip.Addr

	// DeviceID is the device identifier of the client, if known.  IP takes
	// precedence when both are set.
	DeviceID string
}

// Config is the policy engine configuration structure.
type Config struct {
	// Logger is used for logging the operation of the engine.  It must not
	// be nil.
	Logger *slog.Logger

	// Clock is used to evaluate time rules.  It must not be nil.
	Clock timeutil.Clock

	// Blocklists is the category blocklist store.  It must not be nil.
	Blocklists *blocklist.Manager

	// Filter is the static custom filter.  It must not be nil.
	Filter *filtering.Filter

	// DecisionCacheSize is the number of decisions kept in the LRU decision
	// cache.  Zero means [DefaultDecisionCacheSize].
	DecisionCacheSize int
}

// Engine is the policy decision engine.
type Engine struct {
	logger     *slog.Logger
	clock      timeutil.Clock
	blocklists *blocklist.Manager
	filter     *filtering.Filter

	// mu protects globalAllow, ipProfiles, deviceProfiles, and defProfile.
	mu          *sync.RWMutex
	globalAllow *container.MapSet[string]

	ipProfiles     map[netip.Addr]*Profile
	deviceProfiles map[string]*Profile
	defProfile     *Profile

	// decisions caches results keyed by profile and domain.  It is safe for
	// concurrent use and is purged whenever any policy input changes.
	decisions gcache.Cache
}

// NewEngine returns a new properly initialized policy engine.  conf must
// not be nil.
func NewEngine(conf *Config) (e *Engine) {
	size := conf.DecisionCacheSize
	if size == 0 {
		size = DefaultDecisionCacheSize
	}

	e = &Engine{
		logger:         conf.Logger,
		clock:          conf.Clock,
		blocklists:     conf.Blocklists,
		filter:         conf.Filter,
		mu:             &sync.RWMutex{},
		globalAllow:    container.NewMapSet[string](),
		ipProfiles:     map[netip.Addr]*Profile{},
		deviceProfiles: map[string]*Profile{},
		decisions:      gcache.New(size).LRU().Build(),
	}

	// The static filter can be mutated directly, bypassing the engine, so
	// cached decisions derived from it must be dropped on its every change.
	e.filter.SetOnChange(e.PurgeDecisions)

	return e
}

// Check reports the decision for domain without any client context.  Only
// the default profile applies.
func (e *Engine) Check(ctx context.Context, domain string) (r Result) {
	return e.CheckClient(ctx, domain, Client{})
}

// CheckClient reports the decision for domain on behalf of cli.
func (e *Engine) CheckClient(ctx context.Context, domain string, cli Client) (r Result) {
	domain = hostpat.Normalize(domain)

	e.mu.RLock()
	defer e.mu.RUnlock()

	// Explicit global allows win over everything.
	if e.globalAllow.Has(domain) {
		return Result{Decision: DecisionAllow, Reason: ReasonGlobalAllowlist}
	}

	prof := e.profileForLocked(cli)

	cacheKey := e.decisionKey(domain, prof)
	cacheable := prof == nil || len(prof.TimeRules) == 0
	if cacheable {
		if v, err := e.decisions.Get(cacheKey); err == nil {
			cached, ok := v.(Result)
			if ok {
				return cached
			}
		}
	}

	r = e.checkLocked(ctx, domain, prof)
	if cacheable {
		// The error from an LRU set is always nil.
		_ = e.decisions.Set(cacheKey, r)
	}

	return r
}

// checkLocked runs the pipeline steps that follow profile resolution.  prof
// may be nil.  e.mu is expected to be locked.
func (e *Engine) checkLocked(ctx context.Context, domain string, prof *Profile) (r Result) {
	if prof != nil {
		r = Result{ProfileID: prof.ID.String(), ProfileName: prof.Name}

		if prof.inAllowlist(domain) {
			r.Decision = DecisionAllow
			r.Reason = ReasonProfileAllowlist

			return r
		}
	}

	if e.filter.InAllowlist(domain) {
		r.Decision = DecisionAllow
		r.Reason = ReasonGlobalAllowlist

		return r
	}

	if prof != nil {
		if rule, ok := prof.activeRule(e.clock.Now(), domain); ok {
			e.logger.DebugContext(
				ctx,
				"time rule matched",
				"rule", rule.Name,
				"action", rule.Action,
				"domain", domain,
			)

			r.Reason = ReasonTimeBasedRule
			if rule.Action == ActionBlock {
				r.Decision = DecisionBlock
				r.Category = filtering.CategoryCustom
			} else {
				r.Decision = DecisionAllow
			}

			return r
		}

		if prof.inBlocklist(domain) {
			r.Decision = DecisionBlock
			r.Reason = ReasonProfileBlock
			r.Category = filtering.CategoryCustom

			return r
		}
	}

	if e.filter.IsBlocked(domain) {
		r.Decision = DecisionBlock
		r.Reason = ReasonGlobalBlocklist
		r.Category = filtering.CategoryCustom

		return r
	}

	if prof != nil {
		for _, cat := range prof.BlockedCategories {
			if e.blocklists.IsBlockedByCategory(domain, cat) {
				r.Decision = DecisionBlock
				r.Reason = ReasonCategoryBlock
				r.Category = cat

				return r
			}
		}
	} else if cat, ok := e.blocklists.BlockingCategory(domain); ok {
		r.Decision = DecisionBlock
		r.Reason = ReasonCategoryBlock
		r.Category = cat

		return r
	}

	r.Decision = DecisionAllow
	r.Reason = ReasonDefaultAllow

	return r
}

// profileForLocked resolves the applicable profile for cli.  Disabled
// profiles are skipped.  e.mu is expected to be locked.
func (e *Engine) profileForLocked(cli Client) (prof *Profile) {
	if cli.IP.IsValid() {
		if p, ok := e.ipProfiles[cli.IP]; ok && p.Enabled {
			return p
		}
	}

	if cli.DeviceID != "" {
		if p, ok := e.deviceProfiles[cli.DeviceID]; ok && p.Enabled {
			return p
		}
	}

	if e.defProfile != nil && e.defProfile.Enabled {
		return e.defProfile
	}

	return nil
}

// decisionKey builds the decision-cache key for domain under prof.
func (e *Engine) decisionKey(domain string, prof *Profile) (key string) {
	if prof == nil {
		return "/" + domain
	}

	return prof.ID.String() + "/" + domain
}

// IsBlocked is a shorthand for an unqualified check returning only the
// verdict.
func (e *Engine) IsBlocked(ctx context.Context, domain string) (ok bool) {
	return e.Check(ctx, domain).Decision == DecisionBlock
}

// AssignProfileToIP makes prof apply to requests from ip.  prof must not be
// nil.
func (e *Engine) AssignProfileToIP(ip netip.Addr, prof *Profile) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ipProfiles[ip] = prof
	e.decisions.Purge()
}

// RemoveIPProfile removes the profile assignment for ip.
func (e *Engine) RemoveIPProfile(ip netip.Addr) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.ipProfiles, ip)
	e.decisions.Purge()
}

// AssignProfileToDevice makes prof apply to requests from the device with
// the given id.  prof must not be nil.
func (e *Engine) AssignProfileToDevice(deviceID string, prof *Profile) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.deviceProfiles[deviceID] = prof
	e.decisions.Purge()
}

// ProfileForDevice returns the profile assigned to the device, if any.
func (e *Engine) ProfileForDevice(deviceID string) (prof *Profile, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	prof, ok = e.deviceProfiles[deviceID]

	return prof, ok
}

// SetDefaultProfile sets the profile applied when no client-specific one
// matches.  prof may be nil to clear it.
func (e *Engine) SetDefaultProfile(prof *Profile) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.defProfile = prof
	e.decisions.Purge()
}

// DefaultProfile returns the current default profile, if any.
func (e *Engine) DefaultProfile() (prof *Profile) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.defProfile
}

// AddToGlobalAllowlist adds domain to the global allowlist.
func (e *Engine) AddToGlobalAllowlist(domain string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.globalAllow.Add(hostpat.Normalize(domain))
	e.decisions.Purge()
}

// RemoveFromGlobalAllowlist removes domain from the global allowlist.
func (e *Engine) RemoveFromGlobalAllowlist(domain string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.globalAllow.Delete(hostpat.Normalize(domain))
	e.decisions.Purge()
}

// AddToBlocklist adds domain to the category blocklist store.
func (e *Engine) AddToBlocklist(domain, category string) {
	e.blocklists.AddDomain(domain, category)
	e.decisions.Purge()
}

// RemoveFromBlocklist removes domain from every category.
func (e *Engine) RemoveFromBlocklist(domain string) {
	e.blocklists.RemoveDomain(domain)
	e.decisions.Purge()
}

// EnableCategory enables blocking of the category for unqualified checks.
func (e *Engine) EnableCategory(category string) {
	e.blocklists.EnableCategory(category)
	e.decisions.Purge()
}

// DisableCategory disables blocking of the category for unqualified
// checks.
func (e *Engine) DisableCategory(category string) {
	e.blocklists.DisableCategory(category)
	e.decisions.Purge()
}

// EnabledCategories returns the sorted enabled categories.
func (e *Engine) EnabledCategories() (categories []string) {
	return e.blocklists.EnabledCategories()
}

// PurgeDecisions empties the decision cache.  It should be called after
// out-of-band blocklist mutations, such as a background refresh.
func (e *Engine) PurgeDecisions() {
	e.decisions.Purge()
}

// Stats describes the current state of the engine.
type Stats struct {
	// IPAssignments is the number of profiles assigned by client IP.
	IPAssignments int

	// DeviceAssignments is the number of profiles assigned by device ID.
	DeviceAssignments int

	// GlobalAllowlist is the size of the global allowlist.
	GlobalAllowlist int

	// CachedDecisions is the number of entries in the decision cache.
	CachedDecisions int
}

// Stats returns the current engine statistics.
func (e *Engine) Stats() (s *Stats) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return &Stats{
		IPAssignments:     len(e.ipProfiles),
		DeviceAssignments: len(e.deviceProfiles),
		GlobalAllowlist:   e.globalAllow.Len(),
		CachedDecisions:   e.decisions.Len(false),
	}
}
