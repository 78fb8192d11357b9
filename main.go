// ShieldDNS is a DNS protection gateway: it resolves names through a
// configurable upstream while enforcing category blocklists, custom filter
// rules, and per-client protection profiles.
package main

import "github.com/shielddns/shielddns/internal/cmd"

func main() {
	cmd.Main()
}
