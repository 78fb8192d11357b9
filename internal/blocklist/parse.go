package blocklist

import (
	"bufio"
	"io"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/shielddns/shielddns/internal/hostpat"
)

// blockingAddrs are the addresses a hosts-format line must map a domain to
// for the line to count as a blocking rule.  The address is compared as a
// whole field, so "127.0.0.10 domain.example" is not a rule.
var blockingAddrs = []string{"0.0.0.0", "127.0.0.1", "::", "::0", "::1"}

// localhostAliases are hostnames that hosts files commonly map to loopback
// addresses.  They are list noise, not blocking rules.
var localhostAliases = []string{
	"localhost",
	"localhost.localdomain",
	"local",
	"broadcasthost",
}

// parseAll reads lines from r and parses them according to format, appending
// the parsed domains to dst.  Unparseable lines are skipped silently.
func parseAll(dst []string, r io.Reader, format Format) (domains []string, err error) {
	domains = dst

	s := bufio.NewScanner(r)
	for s.Scan() {
		if domain, ok := parseLine(s.Text(), format); ok {
			domains = append(domains, domain)
		}
	}

	return domains, errors.Annotate(s.Err(), "scanning list contents: %w")
}

// parseLine parses a single line of a blocklist in the given format.  ok is
// false for comments, empty lines and anything else that isn't a rule.
func parseLine(line string, format Format) (domain string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" ||
		strings.HasPrefix(line, "#") ||
		strings.HasPrefix(line, "!") ||
		strings.HasPrefix(line, "[") {
		return "", false
	}

	switch format {
	case FormatHosts:
		return parseHostsLine(line)
	case FormatAdblock:
		return parseAdblockLine(line)
	default:
		return parseDomainLine(line)
	}
}

// parseHostsLine parses a hosts-format line, e.g. "0.0.0.0 domain.example".
// Lines mapping localhost aliases are skipped.
func parseHostsLine(line string) (domain string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", false
	}

	isBlocking := false
	for _, addr := range blockingAddrs {
		if fields[0] == addr {
			isBlocking = true

			break
		}
	}

	if !isBlocking {
		return "", false
	}

	domain = hostpat.Normalize(fields[1])
	if domain == "" || !strings.Contains(domain, ".") {
		return "", false
	}

	for _, alias := range localhostAliases {
		if domain == alias {
			return "", false
		}
	}

	return domain, true
}

// parseAdblockLine parses an adblock-style line, e.g. "||domain.example^".
// Rules with options, paths, or wildcards within the domain are rejected,
// since they cannot be expressed as plain domain blocks.
func parseAdblockLine(line string) (domain string, ok bool) {
	if strings.ContainsAny(line, "$/") {
		return "", false
	}

	domain, ok = strings.CutPrefix(line, "||")
	if !ok {
		return "", false
	}

	domain, ok = strings.CutSuffix(domain, "^")
	if !ok || strings.Contains(domain, "*") {
		return "", false
	}

	domain = hostpat.Normalize(domain)
	if domain == "" || !strings.Contains(domain, ".") {
		return "", false
	}

	return domain, true
}

// parseDomainLine parses a plain-format line: a bare domain, possibly
// followed by an inline "#" comment.
func parseDomainLine(line string) (domain string, ok bool) {
	domain, _, _ = strings.Cut(line, "#")
	domain = hostpat.Normalize(strings.TrimSpace(domain))

	if domain == "" {
		return "", false
	}

	if !strings.Contains(domain, ".") && !strings.HasPrefix(domain, "*.") {
		return "", false
	}

	return domain, true
}
