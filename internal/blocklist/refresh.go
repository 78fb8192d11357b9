package blocklist

import (
	"context"
	"log/slog"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/service"
)

// RefresherConfig is the periodic refresher configuration structure.
type RefresherConfig struct {
	// Logger is used for logging the operation of the refresher.  It must not
	// be nil.
	Logger *slog.Logger

	// Manager is the blocklist manager to refresh.  It must not be nil.
	Manager *Manager

	// Sources is the source configuration to fetch from.  It must not be nil.
	Sources *Config

	// OnRefresh, if not nil, is called after every refresh.  It's used by the
	// policy engine to drop derived caches.
	OnRefresh func()

	// Interval is the refresh period.  If zero, it's derived from
	// Sources.UpdateIntervalHours.
	Interval time.Duration
}

// Refresher periodically refreshes the blocklist manager from its configured
// sources.  It doesn't own any data: it communicates with the resolve path
// purely through the manager's concurrency-safe structures.
type Refresher struct {
	logger    *slog.Logger
	manager   *Manager
	sources   *Config
	onRefresh func()
	interval  time.Duration

	done     chan struct{}
	finished chan struct{}
}

// NewRefresher returns a new *Refresher.  conf must not be nil.
func NewRefresher(conf *RefresherConfig) (r *Refresher) {
	ivl := conf.Interval
	if ivl == 0 {
		hours := conf.Sources.UpdateIntervalHours
		if hours == 0 {
			hours = DefaultUpdateIntervalHours
		}

		ivl = time.Duration(hours) * time.Hour
	}

	return &Refresher{
		logger:    conf.Logger,
		manager:   conf.Manager,
		sources:   conf.Sources,
		onRefresh: conf.OnRefresh,
		interval:  ivl,
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
	}
}

// type check
var _ service.Interface = (*Refresher)(nil)

// Start implements the [service.Interface] interface for *Refresher.  It
// performs an initial refresh and then refreshes periodically until Shutdown
// is called.  It does not block.
func (r *Refresher) Start(_ context.Context) (err error) {
	go r.run()

	return nil
}

// Shutdown implements the [service.Interface] interface for *Refresher.
func (r *Refresher) Shutdown(ctx context.Context) (err error) {
	close(r.done)

	select {
	case <-r.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the refresh loop.  It is intended to be used as a goroutine.
func (r *Refresher) run() {
	defer close(r.finished)

	ctx := context.Background()

	err := r.Refresh(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "initial refresh", slogutil.KeyError, err)
	}

	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-r.done:
			r.logger.DebugContext(ctx, "refresher shut down")

			return
		case <-t.C:
			err = r.Refresh(ctx)
			if err != nil {
				r.logger.ErrorContext(ctx, "periodic refresh", slogutil.KeyError, err)
			}
		}
	}
}

// type check
var _ service.Refresher = (*Refresher)(nil)

// Refresh implements the [service.Refresher] interface for *Refresher.  It
// performs a single fetch of all enabled sources.  Partial failure is not an
// error.
func (r *Refresher) Refresh(ctx context.Context) (err error) {
	stats := r.manager.Refresh(ctx, r.sources)

	if r.onRefresh != nil {
		r.onRefresh()
	}

	r.logger.InfoContext(
		ctx,
		"refreshed blocklists",
		"total_domains", stats.TotalDomains,
		"sources_loaded", stats.SourcesLoaded,
		"sources_failed", stats.SourcesFailed,
	)

	return nil
}
