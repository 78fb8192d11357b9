// Package cmd is the ShieldDNS entry point.  It reads the configuration,
// assembles the cache, the blocklist store, the policy engine, and the
// resolver, and runs the background refresher until a shutdown signal
// arrives.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/timeutil"
	"github.com/shielddns/shielddns/internal/blocklist"
	"github.com/shielddns/shielddns/internal/dnscache"
	"github.com/shielddns/shielddns/internal/filtering"
	"github.com/shielddns/shielddns/internal/policy"
	"github.com/shielddns/shielddns/internal/resolver"
	"github.com/shielddns/shielddns/internal/version"
)

// shutdownTimeout is how long a graceful shutdown may take.
const shutdownTimeout = 5 * time.Second

// options are the command-line options of the gateway.
type options struct {
	confFile string
	verbose  bool
	version  bool
}

// parseOptions parses the command-line options from args.
func parseOptions(cmdName string, args []string) (opts *options, err error) {
	opts = &options{}

	fs := flag.NewFlagSet(cmdName, flag.ContinueOnError)
	fs.StringVar(&opts.confFile, "c", "", "path to the configuration file")
	fs.BoolVar(&opts.verbose, "v", false, "enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "print the version and exit")

	err = fs.Parse(args)
	if err != nil {
		return nil, err
	}

	return opts, nil
}

// Main is the entry point of ShieldDNS.
func Main() {
	opts, err := parseOptions(os.Args[0], os.Args[1:])
	check(err)

	if opts.version {
		fmt.Println(version.Full())

		os.Exit(0)
	}

	lvl := slog.LevelInfo
	if opts.verbose {
		lvl = slog.LevelDebug
	}

	logger := slogutil.New(&slogutil.Config{
		Format:       slogutil.FormatDefault,
		Level:        lvl,
		AddTimestamp: true,
	})

	ctx := context.Background()

	logger.InfoContext(
		ctx,
		"starting shielddns",
		"version", version.Version(),
		"pid", os.Getpid(),
	)

	conf, err := readConfig(opts.confFile)
	check(err)

	clock := timeutil.SystemClock{}

	cache := dnscache.New(&dnscache.Config{
		Logger:     logger.With(slogutil.KeyPrefix, "dnscache"),
		Clock:      clock,
		MaxEntries: conf.Cache.Size,
		DefaultTTL: time.Duration(conf.Cache.TTL),
	})

	manager := blocklist.NewManager(&blocklist.ManagerConfig{
		Logger:     logger.With(slogutil.KeyPrefix, "blocklist"),
		Clock:      clock,
		HTTPClient: &http.Client{},
	})

	if len(conf.Blocklists.EnabledCategories) > 0 {
		manager.SetEnabledCategories(conf.Blocklists.EnabledCategories)
	}

	filter := filtering.New(&filtering.Config{
		Logger: logger.With(slogutil.KeyPrefix, "filtering"),
	})

	if conf.BlocklistFile != "" {
		var n int
		n, err = filter.LoadBlocklist(ctx, conf.BlocklistFile)
		check(err)

		logger.InfoContext(ctx, "loaded static blocklist", "rules", n)
	}

	engine := policy.NewEngine(&policy.Config{
		Logger:     logger.With(slogutil.KeyPrefix, "policy"),
		Clock:      clock,
		Blocklists: manager,
		Filter:     filter,
	})

	for _, domain := range conf.Allowlist {
		engine.AddToGlobalAllowlist(domain)
	}

	rslv := resolver.New(&resolver.Config{
		Logger: logger.With(slogutil.KeyPrefix, "resolver"),
		Policy: engine,
		Cache:  cache,
		Exchanger: newExchanger(&resolver.UpstreamConfig{
			Logger:  logger.With(slogutil.KeyPrefix, "upstream"),
			Address: conf.Upstream.Address,
			Timeout: time.Duration(conf.Upstream.Timeout),
		}),
	})

	sigHdlr := newSignalHandler(logger)

	statsRep := newStatsReporter(&statsReporterConfig{
		logger:   logger.With(slogutil.KeyPrefix, "stats"),
		resolver: rslv,
		engine:   engine,
		manager:  manager,
	})

	err = statsRep.Start(ctx)
	check(err)

	sigHdlr.add(statsRep)

	if conf.Blocklists.SourcesFile != "" {
		var sources *blocklist.Config
		sources, err = blocklist.LoadConfig(conf.Blocklists.SourcesFile)
		check(err)

		if name := conf.Blocklists.Preset; name != "" {
			preset, ok := sources.Presets[name]
			if !ok {
				check(fmt.Errorf("unknown preset %q", name))
			}

			manager.SetEnabledCategories(preset.EnabledCategories)
			logger.InfoContext(
				ctx,
				"applied preset",
				"preset", name,
				"categories", preset.EnabledCategories,
			)
		}

		refr := blocklist.NewRefresher(&blocklist.RefresherConfig{
			Logger:    logger.With(slogutil.KeyPrefix, "refresher"),
			Manager:   manager,
			Sources:   sources,
			OnRefresh: engine.PurgeDecisions,
		})

		err = refr.Start(ctx)
		check(err)

		sigHdlr.add(refr)
	} else {
		manager.LoadDefaults(ctx)
		engine.PurgeDecisions()
	}

	os.Exit(sigHdlr.handle(ctx))
}

// newExchanger builds the upstream exchanger or exits on failure.
func newExchanger(conf *resolver.UpstreamConfig) (x resolver.Exchanger) {
	ux, err := resolver.NewUpstreamExchanger(conf)
	check(err)

	return ux
}

// check is a simple error-checking helper.  It must only be used within
// Main.
func check(err error) {
	if err != nil {
		panic(err)
	}
}
