package blocklist

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine_hosts(t *testing.T) {
	testCases := []struct {
		name   string
		line   string
		want   string
		wantOK bool
	}{{
		name:   "unspec",
		line:   "0.0.0.0 tracker.example.com",
		want:   "tracker.example.com",
		wantOK: true,
	}, {
		name:   "loopback",
		line:   "127.0.0.1 tracker.example.com",
		want:   "tracker.example.com",
		wantOK: true,
	}, {
		name:   "ipv6_loopback",
		line:   "::1 tracker.example.com",
		want:   "tracker.example.com",
		wantOK: true,
	}, {
		name:   "localhost",
		line:   "127.0.0.1 localhost",
		wantOK: false,
	}, {
		name:   "localhost_localdomain",
		line:   "127.0.0.1 localhost.localdomain",
		wantOK: false,
	}, {
		name:   "broadcasthost",
		line:   "255.255.255.255 broadcasthost",
		wantOK: false,
	}, {
		name:   "comment",
		line:   "# 0.0.0.0 tracker.example.com",
		wantOK: false,
	}, {
		name:   "no_domain",
		line:   "0.0.0.0",
		wantOK: false,
	}, {
		name:   "uppercase",
		line:   "0.0.0.0 Tracker.Example.COM",
		want:   "tracker.example.com",
		wantOK: true,
	}, {
		name:   "real_loopback_subnet",
		line:   "127.0.0.10 real.example.com",
		wantOK: false,
	}, {
		name:   "addr_prefix_only",
		line:   "0.0.0.07 d.example.com",
		wantOK: false,
	}, {
		name:   "other_addr",
		line:   "198.51.100.1 real.example.com",
		wantOK: false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseLine(tc.line, FormatHosts)
			require.Equal(t, tc.wantOK, ok)

			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseLine_adblock(t *testing.T) {
	testCases := []struct {
		name   string
		line   string
		want   string
		wantOK bool
	}{{
		name:   "plain",
		line:   "||ads.example.com^",
		want:   "ads.example.com",
		wantOK: true,
	}, {
		name:   "with_option",
		line:   "||ads.example.com^$script",
		wantOK: false,
	}, {
		name:   "with_path",
		line:   "||ads.example.com/banner^",
		wantOK: false,
	}, {
		name:   "embedded_wildcard",
		line:   "||ads.*.example.com^",
		wantOK: false,
	}, {
		name:   "comment",
		line:   "! comment",
		wantOK: false,
	}, {
		name:   "cosmetic",
		line:   "[Adblock Plus 2.0]",
		wantOK: false,
	}, {
		name:   "no_anchor",
		line:   "ads.example.com^",
		wantOK: false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseLine(tc.line, FormatAdblock)
			require.Equal(t, tc.wantOK, ok)

			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseLine_domains(t *testing.T) {
	testCases := []struct {
		name   string
		line   string
		want   string
		wantOK bool
	}{{
		name:   "plain",
		line:   "ads.example.com",
		want:   "ads.example.com",
		wantOK: true,
	}, {
		name:   "inline_comment",
		line:   "ads.example.com # annoying",
		want:   "ads.example.com",
		wantOK: true,
	}, {
		name:   "wildcard",
		line:   "*.ads.example.com",
		want:   "*.ads.example.com",
		wantOK: true,
	}, {
		name:   "empty",
		line:   "",
		wantOK: false,
	}, {
		name:   "comment",
		line:   "# comment",
		wantOK: false,
	}, {
		name:   "no_dot",
		line:   "justaword",
		wantOK: false,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseLine(tc.line, FormatDomains)
			require.Equal(t, tc.wantOK, ok)

			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseLine_unknownFormat(t *testing.T) {
	got, ok := parseLine("ads.example.com", Format("csv"))
	require.True(t, ok)

	assert.Equal(t, "ads.example.com", got)
}

func TestParseAll(t *testing.T) {
	const listData = `# Standard hosts head.
127.0.0.1 localhost
0.0.0.0 tracker.example.com
0.0.0.0 ads.example.com

not a rule
`

	domains, err := parseAll(nil, strings.NewReader(listData), FormatHosts)
	require.NoError(t, err)

	assert.Equal(t, []string{"tracker.example.com", "ads.example.com"}, domains)
}
