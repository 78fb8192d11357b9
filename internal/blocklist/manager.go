// Package blocklist contains the category-aware blocklist manager.  It
// fetches and parses list sources, partitions the domains and wildcard
// patterns by category, and maintains a flattened set of all domains from the
// currently enabled categories for O(1) lookups on the hot path.
package blocklist

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/c2h5oh/datasize"
	"github.com/shielddns/shielddns/internal/hostpat"
)

// DefaultEnabledCategories are the categories enabled in a fresh manager.
var DefaultEnabledCategories = []string{"ads", "malware", "phishing", "tracking"}

// Default fetch limits.
const (
	// DefaultSourceTimeout bounds the fetch of a single source.
	DefaultSourceTimeout = 30 * time.Second

	// DefaultMaxSourceSize bounds the size of a single source's response
	// body.
	DefaultMaxSourceSize = 64 * datasize.MB
)

// Stats describes the outcome of the most recent fetch.  ByCategory and
// TotalDomains report the manager's current contents, accumulated across all
// fetches, while SourcesLoaded and SourcesFailed only cover the most recent
// batch.
type Stats struct {
	// LastUpdate is the wall-clock time of the last successful fetch.
	LastUpdate time.Time

	// ByCategory maps category names to the number of rules, exact and
	// wildcard, currently stored for them.
	ByCategory map[string]int

	// TotalDomains is the size of the flattened set of enabled categories.
	TotalDomains int

	// SourcesLoaded is the number of sources fetched successfully in the most
	// recent batch.
	SourcesLoaded int

	// SourcesFailed is the number of sources that failed to fetch in the most
	// recent batch.  A failed source never aborts the batch.
	SourcesFailed int
}

// ManagerConfig is the blocklist manager configuration structure.
type ManagerConfig struct {
	// Logger is used for logging the operation of the manager.  It must not
	// be nil.
	Logger *slog.Logger

	// Clock is used to tell the current time.  It must not be nil.
	Clock timeutil.Clock

	// HTTPClient is used to fetch the sources.  It must not be nil.
	HTTPClient *http.Client

	// EnabledCategories are the initially enabled categories.  If nil,
	// [DefaultEnabledCategories] are used.
	EnabledCategories []string

	// SourceTimeout bounds the fetch of a single source.  Zero means
	// [DefaultSourceTimeout].
	SourceTimeout time.Duration

	// MaxSourceSize bounds the size of a single source's response body.
	// Zero means [DefaultMaxSourceSize].
	MaxSourceSize datasize.ByteSize
}

// Manager is the category-aware blocklist manager.  It is safe for concurrent
// use.
type Manager struct {
	logger *slog.Logger
	clock  timeutil.Clock

	httpCli       *http.Client
	sourceTimeout time.Duration
	maxSourceSize datasize.ByteSize

	// mu protects the per-category collections and the enabled-category set.
	mu        *sync.RWMutex
	domains   map[string]*container.MapSet[string]
	wildcards map[string][]string
	enabled   *container.MapSet[string]

	// flatMu protects flat, the set of all domains belonging to the enabled
	// categories.  flat is derived data: it's always rebuilt from the
	// per-category sets and replaced as a unit, never patched in place, so
	// concurrent readers see either the previous or the next complete set.
	flatMu *sync.RWMutex
	flat   *container.MapSet[string]

	// statsMu protects stats.
	statsMu *sync.RWMutex
	stats   *Stats
}

// NewManager returns a new *Manager with no domains loaded.  conf must not be
// nil.
func NewManager(conf *ManagerConfig) (m *Manager) {
	enabledCats := conf.EnabledCategories
	if enabledCats == nil {
		enabledCats = DefaultEnabledCategories
	}

	sourceTimeout := conf.SourceTimeout
	if sourceTimeout == 0 {
		sourceTimeout = DefaultSourceTimeout
	}

	maxSourceSize := conf.MaxSourceSize
	if maxSourceSize == 0 {
		maxSourceSize = DefaultMaxSourceSize
	}

	return &Manager{
		logger:        conf.Logger,
		clock:         conf.Clock,
		httpCli:       conf.HTTPClient,
		sourceTimeout: sourceTimeout,
		maxSourceSize: maxSourceSize,
		mu:            &sync.RWMutex{},
		domains:       map[string]*container.MapSet[string]{},
		wildcards:     map[string][]string{},
		enabled:       container.NewMapSet(enabledCats...),
		flatMu:        &sync.RWMutex{},
		flat:          container.NewMapSet[string](),
		statsMu:       &sync.RWMutex{},
		stats:         &Stats{ByCategory: map[string]int{}},
	}
}

// IsBlocked returns true if domain is blocked under the currently enabled
// categories.  The flattened exact-match set is checked first, since it
// covers the overwhelming majority of lookups; the wildcard patterns of the
// enabled categories are only scanned on a miss.
func (m *Manager) IsBlocked(domain string) (ok bool) {
	domain = hostpat.Normalize(domain)

	m.flatMu.RLock()
	inFlat := m.flat.Has(domain)
	m.flatMu.RUnlock()

	if inFlat {
		return true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for cat, pats := range m.wildcards {
		if !m.enabled.Has(cat) {
			continue
		}

		for _, pat := range pats {
			if hostpat.MatchWildcard(domain, pat) {
				return true
			}
		}
	}

	return false
}

// IsBlockedByCategory returns true if domain belongs to category, whether or
// not the category is currently enabled.
func (m *Manager) IsBlockedByCategory(domain, category string) (ok bool) {
	domain = hostpat.Normalize(domain)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if set, hasCat := m.domains[category]; hasCat && set.Has(domain) {
		return true
	}

	for _, pat := range m.wildcards[category] {
		if hostpat.MatchWildcard(domain, pat) {
			return true
		}
	}

	return false
}

// BlockingCategory returns the enabled category that blocks domain, if any.
// Exact matches across all enabled categories are preferred over wildcard
// matches.
func (m *Manager) BlockingCategory(domain string) (category string, ok bool) {
	domain = hostpat.Normalize(domain)

	m.mu.RLock()
	defer m.mu.RUnlock()

	cats := m.enabledLocked()

	for _, cat := range cats {
		if set, hasCat := m.domains[cat]; hasCat && set.Has(domain) {
			return cat, true
		}
	}

	for _, cat := range cats {
		for _, pat := range m.wildcards[cat] {
			if hostpat.MatchWildcard(domain, pat) {
				return cat, true
			}
		}
	}

	return "", false
}

// EnableCategory adds category to the enabled set and rebuilds the flattened
// set.
func (m *Manager) EnableCategory(category string) {
	m.mu.Lock()
	m.enabled.Add(category)
	flat := m.rebuildLocked()
	m.mu.Unlock()

	m.swapFlat(flat)
}

// DisableCategory removes category from the enabled set and rebuilds the
// flattened set.
func (m *Manager) DisableCategory(category string) {
	m.mu.Lock()
	m.enabled.Delete(category)
	flat := m.rebuildLocked()
	m.mu.Unlock()

	m.swapFlat(flat)
}

// SetEnabledCategories replaces the enabled set with categories and rebuilds
// the flattened set.
func (m *Manager) SetEnabledCategories(categories []string) {
	m.mu.Lock()
	m.enabled = container.NewMapSet(categories...)
	flat := m.rebuildLocked()
	m.mu.Unlock()

	m.swapFlat(flat)
}

// EnabledCategories returns a sorted list of the currently enabled
// categories.
func (m *Manager) EnabledCategories() (categories []string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.enabledLocked()
}

// enabledLocked returns a sorted list of the enabled categories.  m.mu is
// expected to be locked.
func (m *Manager) enabledLocked() (categories []string) {
	categories = m.enabled.Values()
	slices.Sort(categories)

	return categories
}

// AddDomain adds domain to category.  Entries starting with "*." are stored
// as wildcard patterns.  The flattened set is rebuilt.
func (m *Manager) AddDomain(domain, category string) {
	domain = hostpat.Normalize(domain)

	m.mu.Lock()
	m.addLocked(domain, category)
	flat := m.rebuildLocked()
	m.mu.Unlock()

	m.swapFlat(flat)
}

// addLocked stores domain under category.  m.mu is expected to be locked.
func (m *Manager) addLocked(domain, category string) {
	if strings.HasPrefix(domain, "*.") {
		if !slices.Contains(m.wildcards[category], domain) {
			m.wildcards[category] = append(m.wildcards[category], domain)
		}

		return
	}

	set, ok := m.domains[category]
	if !ok {
		set = container.NewMapSet[string]()
		m.domains[category] = set
	}

	set.Add(domain)
}

// RemoveDomain removes domain from every category, including the wildcard
// patterns.  The flattened set is rebuilt.
func (m *Manager) RemoveDomain(domain string) {
	domain = hostpat.Normalize(domain)

	m.mu.Lock()
	for _, set := range m.domains {
		set.Delete(domain)
	}

	for cat, pats := range m.wildcards {
		if i := slices.Index(pats, domain); i != -1 {
			m.wildcards[cat] = slices.Delete(pats, i, i+1)
		}
	}

	flat := m.rebuildLocked()
	m.mu.Unlock()

	m.swapFlat(flat)
}

// rebuildLocked derives a new flattened set from the enabled categories.
// m.mu is expected to be locked.  The caller must pass the result to
// [Manager.swapFlat] after releasing m.mu.
func (m *Manager) rebuildLocked() (flat *container.MapSet[string]) {
	flat = container.NewMapSet[string]()
	m.enabled.Range(func(cat string) (cont bool) {
		if set, ok := m.domains[cat]; ok {
			set.Range(func(domain string) (cont bool) {
				flat.Add(domain)

				return true
			})
		}

		return true
	})

	return flat
}

// swapFlat replaces the flattened set as a unit.
func (m *Manager) swapFlat(flat *container.MapSet[string]) {
	m.flatMu.Lock()
	defer m.flatMu.Unlock()

	m.flat = flat
}

// BlockedCount returns the size of the flattened set.
func (m *Manager) BlockedCount() (n int) {
	m.flatMu.RLock()
	defer m.flatMu.RUnlock()

	return m.flat.Len()
}

// Stats returns a copy of the most recent fetch statistics.
func (m *Manager) Stats() (s *Stats) {
	m.statsMu.RLock()
	defer m.statsMu.RUnlock()

	s = &Stats{
		LastUpdate:    m.stats.LastUpdate,
		ByCategory:    make(map[string]int, len(m.stats.ByCategory)),
		TotalDomains:  m.stats.TotalDomains,
		SourcesLoaded: m.stats.SourcesLoaded,
		SourcesFailed: m.stats.SourcesFailed,
	}
	for cat, n := range m.stats.ByCategory {
		s.ByCategory[cat] = n
	}

	return s
}

// setStats replaces the stored statistics.
func (m *Manager) setStats(s *Stats) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	m.stats = s
}

// categoryCountsLocked returns the number of rules stored per category.  m.mu
// is expected to be locked.
func (m *Manager) categoryCountsLocked() (counts map[string]int) {
	counts = map[string]int{}
	for cat, set := range m.domains {
		counts[cat] += set.Len()
	}
	for cat, pats := range m.wildcards {
		counts[cat] += len(pats)
	}

	return counts
}
