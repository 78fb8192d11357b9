// Package hostpat contains the domain-name matching primitives shared by the
// filtering components.  All of them expect the so-called wildcard patterns of
// the form "*.domain.example", which match both the domain itself and any of
// its subdomains.
package hostpat

import "strings"

// Normalize returns a lowercased version of host without the trailing dot, if
// any.  Callers should normalize all domain names and patterns before storing
// or comparing them.
func Normalize(host string) (norm string) {
	return strings.TrimSuffix(strings.ToLower(host), ".")
}

// MatchWildcard returns true if domain matches pattern.  A pattern starting
// with "*." matches the domain equal to the rest of the pattern as well as any
// of its subdomains.  Any other pattern only matches the exactly equal domain.
// Both domain and pattern are expected to be normalized.
func MatchWildcard(domain, pattern string) (ok bool) {
	suf, isWildcard := strings.CutPrefix(pattern, "*.")
	if !isWildcard {
		return domain == pattern
	}

	return domain == suf || strings.HasSuffix(domain, "."+suf)
}

// MatchSuffix returns true if domain is equal to pattern or is a subdomain of
// pattern.  It's the matching rule used for the per-profile custom lists,
// where a bare "domain.example" entry is expected to also cover its
// subdomains.  Patterns in the wildcard form are handled as in
// [MatchWildcard].
func MatchSuffix(domain, pattern string) (ok bool) {
	if suf, isWildcard := strings.CutPrefix(pattern, "*."); isWildcard {
		pattern = suf
	}

	return domain == pattern || strings.HasSuffix(domain, "."+pattern)
}
