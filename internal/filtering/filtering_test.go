package filtering_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/testutil"
	"github.com/shielddns/shielddns/internal/filtering"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTimeout is the common timeout for tests.
const testTimeout = 1 * time.Second

// newTestFilter is a helper returning a filter with a discarded log output.
func newTestFilter(t *testing.T) (f *filtering.Filter) {
	t.Helper()

	return filtering.New(&filtering.Config{
		Logger: slogutil.NewDiscardLogger(),
	})
}

func TestFilter_Check(t *testing.T) {
	f := newTestFilter(t)

	f.AddToBlocklist("blocked.example.com")
	f.AddToBlocklist("*.ads.example.com")
	f.AddToAllowlist("allowed.example.com")

	testCases := []struct {
		name   string
		domain string
		want   filtering.Decision
	}{{
		name:   "not_listed",
		domain: "clean.example.com",
		want:   filtering.DecisionAllow,
	}, {
		name:   "blocked_exact",
		domain: "blocked.example.com",
		want:   filtering.DecisionBlock,
	}, {
		name:   "blocked_case_insensitive",
		domain: "Blocked.Example.COM",
		want:   filtering.DecisionBlock,
	}, {
		name:   "wildcard_base",
		domain: "ads.example.com",
		want:   filtering.DecisionBlock,
	}, {
		name:   "wildcard_subdomain",
		domain: "x.ads.example.com",
		want:   filtering.DecisionBlock,
	}, {
		name:   "wildcard_lookalike",
		domain: "notads.example.com",
		want:   filtering.DecisionAllow,
	}, {
		name:   "allowed",
		domain: "allowed.example.com",
		want:   filtering.DecisionAllow,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, f.Check(tc.domain))
		})
	}
}

func TestFilter_Check_allowOverBlock(t *testing.T) {
	f := newTestFilter(t)

	f.AddToBlocklist("both.example.com")
	f.AddToAllowlist("both.example.com")

	assert.Equal(t, filtering.DecisionAllow, f.Check("both.example.com"))
	assert.False(t, f.IsBlocked("both.example.com"))
	assert.True(t, f.InAllowlist("both.example.com"))
}

func TestFilter_SetEnabled(t *testing.T) {
	f := newTestFilter(t)

	f.AddToBlocklist("blocked.example.com")
	require.True(t, f.IsBlocked("blocked.example.com"))

	f.SetEnabled(false)
	assert.False(t, f.IsBlocked("blocked.example.com"))
	assert.False(t, f.InAllowlist("blocked.example.com"))

	f.SetEnabled(true)
	assert.True(t, f.IsBlocked("blocked.example.com"))
}

func TestFilter_RemoveEntries(t *testing.T) {
	f := newTestFilter(t)

	f.AddToBlocklist("blocked.example.com")
	f.AddToBlocklist("*.ads.example.com")
	require.Equal(t, 2, f.BlocklistSize())

	f.RemoveFromBlocklist("blocked.example.com")
	assert.False(t, f.IsBlocked("blocked.example.com"))

	f.RemoveFromBlocklist("*.ads.example.com")
	assert.False(t, f.IsBlocked("sub.ads.example.com"))
	assert.Equal(t, 0, f.BlocklistSize())

	f.AddToAllowlist("allowed.example.com")
	require.Equal(t, 1, f.AllowlistSize())

	f.RemoveFromAllowlist("allowed.example.com")
	assert.Equal(t, 0, f.AllowlistSize())
}

func TestFilter_LoadBlocklist(t *testing.T) {
	ctx := testutil.ContextWithTimeout(t, testTimeout)

	const listData = `# Comment.
blocked.example.com

*.ads.example.com
`

	path := filepath.Join(t.TempDir(), "blocklist.txt")
	require.NoError(t, os.WriteFile(path, []byte(listData), 0o644))

	f := newTestFilter(t)

	count, err := f.LoadBlocklist(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, 2, count)
	assert.True(t, f.IsBlocked("blocked.example.com"))
	assert.True(t, f.IsBlocked("banner.ads.example.com"))
}
