// Package version contains ShieldDNS version information.
package version

import "fmt"

// Channel constants.
const (
	ChannelDevelopment = "development"
	ChannelEdge        = "edge"
	ChannelRelease     = "release"
)

// These are set by the linker.  Unfortunately we cannot set constants during
// linking, and Go doesn't have a concept of immutable variables, so to be
// thorough we have to only export them through getters.
var (
	channel string = ChannelDevelopment
	version string
)

// Channel returns the current ShieldDNS release channel.
func Channel() (v string) {
	return channel
}

// Version returns the ShieldDNS build version.
func Version() (v string) {
	if version == "" {
		return "v0.0.0-dev"
	}

	return version
}

// Full returns the full current version of ShieldDNS.
func Full() (v string) {
	return fmt.Sprintf("ShieldDNS, version %s, channel %s", Version(), Channel())
}
