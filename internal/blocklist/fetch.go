package blocklist

import (
	"context"
	"fmt"
	"net/http"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/ioutil"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
)

// Refresh fetches all enabled sources from conf and stores the parsed
// domains under their categories.  A failing source is counted and logged
// but never aborts the batch, so partial success is the expected steady
// state.  The flattened set is rebuilt once, after the whole batch.
func (m *Manager) Refresh(ctx context.Context, conf *Config) (stats *Stats) {
	m.logger.InfoContext(ctx, "fetching blocklists", "sources", len(conf.Sources))

	stats = &Stats{}

	for _, src := range conf.Sources {
		if !src.Enabled {
			m.logger.DebugContext(ctx, "skipping disabled source", "name", src.Name)

			continue
		}

		count, err := m.fetchSource(ctx, src)
		if err != nil {
			m.logger.WarnContext(
				ctx,
				"fetching source",
				"name", src.Name,
				"url", src.URL,
				slogutil.KeyError, err,
			)
			stats.SourcesFailed++

			continue
		}

		m.logger.InfoContext(
			ctx,
			"loaded source",
			"name", src.Name,
			"category", src.Category,
			"rules", count,
		)
		stats.SourcesLoaded++
	}

	m.mu.Lock()
	flat := m.rebuildLocked()
	stats.ByCategory = m.categoryCountsLocked()
	m.mu.Unlock()

	m.swapFlat(flat)

	stats.TotalDomains = flat.Len()
	stats.LastUpdate = m.clock.Now()
	m.setStats(stats)

	m.logger.InfoContext(
		ctx,
		"blocklist fetch finished",
		"total_domains", stats.TotalDomains,
		"sources_loaded", stats.SourcesLoaded,
		"sources_failed", stats.SourcesFailed,
	)

	return m.Stats()
}

// fetchSource fetches and parses a single source, storing its domains under
// the source's category.
func (m *Manager) fetchSource(ctx context.Context, src *Source) (count int, err error) {
	defer func() { err = errors.Annotate(err, "source %q: %w", src.Name) }()

	ctx, cancel := context.WithTimeout(ctx, m.sourceTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("making request: %w", err)
	}

	resp, err := m.httpCli.Do(req)
	if err != nil {
		return 0, fmt.Errorf("requesting: %w", err)
	}
	defer func() { err = errors.WithDeferred(err, resp.Body.Close()) }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("got status code %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body := ioutil.LimitReader(resp.Body, m.maxSourceSize.Bytes())
	domains, err := parseAll(nil, body, src.Format)
	if err != nil {
		return 0, fmt.Errorf("parsing response: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, domain := range domains {
		m.addLocked(domain, src.Category)
	}

	return len(domains), nil
}
