package blocklist

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Format is the textual format of a blocklist source.
type Format string

// Supported blocklist source formats.  An unknown format falls back to
// [FormatDomains].
const (
	// FormatHosts is the hosts-file format: "0.0.0.0 domain.example".
	FormatHosts Format = "hosts"

	// FormatAdblock is the adblock-style format: "||domain.example^".
	FormatAdblock Format = "adblock"

	// FormatDomains is the plain format with one domain per line.
	FormatDomains Format = "domains"
)

// Source is a single blocklist source in the configuration file.
type Source struct {
	// Name is the human-readable name of the source.
	Name string `yaml:"name"`

	// URL is the HTTP(S) location of the list.
	URL string `yaml:"url"`

	// Category is the category the source's domains belong to.
	Category string `yaml:"category"`

	// Format is the textual format of the list.
	Format Format `yaml:"format"`

	// Enabled shows whether the source takes part in fetches.
	Enabled bool `yaml:"enabled"`

	// Description is an optional human-readable description.
	Description string `yaml:"description,omitempty"`
}

// CategoryInfo describes a category in the configuration file.
type CategoryInfo struct {
	// Description is the human-readable description of the category.
	Description string `yaml:"description"`

	// Priority orders categories in UIs.  Lower means more important.
	Priority int `yaml:"priority"`
}

// Preset is a named selection of categories.
type Preset struct {
	// Description is the human-readable description of the preset.
	Description string `yaml:"description"`

	// EnabledCategories are the categories the preset turns on.
	EnabledCategories []string `yaml:"enabled_categories"`
}

// Config is the blocklist source configuration file.
type Config struct {
	// Categories describes the known categories.
	Categories map[string]*CategoryInfo `yaml:"categories"`

	// Presets are the named category selections.
	Presets map[string]*Preset `yaml:"presets"`

	// Sources are the blocklist sources.
	Sources []*Source `yaml:"sources"`

	// UpdateIntervalHours is the period of the background refresh, in hours.
	// Zero means the default of 24 hours.
	UpdateIntervalHours uint `yaml:"update_interval_hours"`
}

// DefaultUpdateIntervalHours is used when the configuration file leaves the
// update interval unset.
const DefaultUpdateIntervalHours = 24

// ConfigError is returned by [LoadConfig] when the configuration file cannot
// be read or parsed.  Callers that receive it should fall back to the
// embedded default blocklist instead of operating with zero protection.
type ConfigError struct {
	// Err is the underlying error.
	Err error

	// Path is the path of the configuration file.
	Path string
}

// type check
var _ error = (*ConfigError)(nil)

// Error implements the error interface for *ConfigError.
func (err *ConfigError) Error() (msg string) {
	return fmt.Sprintf("blocklist config %q: %s", err.Path, err.Err)
}

// Unwrap implements the [errors.Wrapper] interface for *ConfigError.
func (err *ConfigError) Unwrap() (unwrapped error) { return err.Err }

// LoadConfig reads and validates the blocklist source configuration at path.
func LoadConfig(path string) (conf *Config, err error) {
	// #nosec G304 -- Trust the file path given by the caller.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	conf = &Config{}
	err = yaml.Unmarshal(data, conf)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	if conf.UpdateIntervalHours == 0 {
		conf.UpdateIntervalHours = DefaultUpdateIntervalHours
	}

	return conf, nil
}
