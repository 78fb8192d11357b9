package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/AdguardTeam/golibs/timeutil"
	"gopkg.in/yaml.v3"
)

// configuration is the on-disk configuration of the gateway.
type configuration struct {
	// Upstream is the DNS upstream settings.
	Upstream upstreamConf `yaml:"upstream"`

	// Cache is the name cache settings.
	Cache cacheConf `yaml:"cache"`

	// Blocklists is the category blocklist settings.
	Blocklists blocklistsConf `yaml:"blocklists"`

	// BlocklistFile is an optional path to a file with one blocked domain
	// per line, loaded into the static filter on startup.
	BlocklistFile string `yaml:"blocklist_file"`

	// Allowlist contains domains always allowed regardless of any
	// blocklist.
	Allowlist []string `yaml:"allowlist"`
}

// upstreamConf is the DNS upstream settings of the gateway.
type upstreamConf struct {
	// Address is the upstream address in any format accepted by dnsproxy.
	Address string `yaml:"address"`

	// Timeout is the timeout of a single upstream exchange.
	Timeout timeutil.Duration `yaml:"timeout"`
}

// cacheConf is the name cache settings of the gateway.
type cacheConf struct {
	// Size is the maximum number of cached answers.
	Size int `yaml:"size"`

	// TTL is the TTL applied to answers without an upstream-provided one.
	TTL timeutil.Duration `yaml:"ttl"`
}

// blocklistsConf is the category blocklist settings of the gateway.
type blocklistsConf struct {
	// SourcesFile is the path to the list-source configuration file.  If
	// empty, the embedded default lists are used instead.
	SourcesFile string `yaml:"sources_file"`

	// Preset is the name of a preset from the sources file whose category
	// set should be enabled.
	Preset string `yaml:"preset"`

	// EnabledCategories overrides the default enabled category set, if not
	// empty.
	EnabledCategories []string `yaml:"enabled_categories"`
}

// Default configuration values.
const (
	defaultUpstreamAddr = "9.9.9.9"
	defaultCacheSize    = 10_000
	defaultCacheTTL     = 5 * time.Minute
)

// readConfig reads the configuration from path.  If path is empty, the
// defaults are returned.
func readConfig(path string) (conf *configuration, err error) {
	conf = &configuration{
		Upstream: upstreamConf{
			Address: defaultUpstreamAddr,
		},
		Cache: cacheConf{
			Size: defaultCacheSize,
			TTL:  timeutil.Duration(defaultCacheTTL),
		},
	}

	if path == "" {
		return conf, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	err = yaml.Unmarshal(data, conf)
	if err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}

	if conf.Cache.Size <= 0 {
		conf.Cache.Size = defaultCacheSize
	}

	if conf.Cache.TTL <= 0 {
		conf.Cache.TTL = timeutil.Duration(defaultCacheTTL)
	}

	if conf.Upstream.Address == "" {
		conf.Upstream.Address = defaultUpstreamAddr
	}

	return conf, nil
}
