package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/AdguardTeam/golibs/service"
	"github.com/shielddns/shielddns/internal/blocklist"
	"github.com/shielddns/shielddns/internal/policy"
	"github.com/shielddns/shielddns/internal/resolver"
)

// statsInterval is how often the stats reporter logs its snapshot.
const statsInterval = 1 * time.Minute

// statsReporterConfig is the stats reporter configuration structure.
type statsReporterConfig struct {
	logger   *slog.Logger
	resolver *resolver.Resolver
	engine   *policy.Engine
	manager  *blocklist.Manager
}

// statsReporter periodically logs cache, engine, and blocklist statistics.
// External metrics exporters scrape the same numbers from the log stream.
type statsReporter struct {
	logger   *slog.Logger
	resolver *resolver.Resolver
	engine   *policy.Engine
	manager  *blocklist.Manager

	done     chan struct{}
	finished chan struct{}
}

// newStatsReporter returns a new *statsReporter.  conf must not be nil.
func newStatsReporter(conf *statsReporterConfig) (rep *statsReporter) {
	return &statsReporter{
		logger:   conf.logger,
		resolver: conf.resolver,
		engine:   conf.engine,
		manager:  conf.manager,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// type check
var _ service.Interface = (*statsReporter)(nil)

// Start implements the [service.Interface] interface for *statsReporter.
// It does not block.
func (rep *statsReporter) Start(_ context.Context) (err error) {
	go rep.run()

	return nil
}

// Shutdown implements the [service.Interface] interface for *statsReporter.
func (rep *statsReporter) Shutdown(ctx context.Context) (err error) {
	close(rep.done)

	select {
	case <-rep.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the reporting loop.  It is intended to be used as a goroutine.
func (rep *statsReporter) run() {
	defer close(rep.finished)

	t := time.NewTicker(statsInterval)
	defer t.Stop()

	ctx := context.Background()

	for {
		select {
		case <-rep.done:
			return
		case <-t.C:
			rep.report(ctx)
		}
	}
}

// report logs a single snapshot of the gateway statistics.
func (rep *statsReporter) report(ctx context.Context) {
	hits, misses := rep.resolver.CacheStats()
	engStats := rep.engine.Stats()

	rep.logger.InfoContext(
		ctx,
		"gateway stats",
		"cache_hits", hits,
		"cache_misses", misses,
		"cache_hit_rate", rep.resolver.CacheHitRate(),
		"blocked_domains", rep.manager.BlockedCount(),
		"ip_profiles", engStats.IPAssignments,
		"device_profiles", engStats.DeviceAssignments,
		"cached_decisions", engStats.CachedDecisions,
	)
}
