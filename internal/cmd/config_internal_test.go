package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		conf, err := readConfig("")
		require.NoError(t, err)

		assert.Equal(t, defaultUpstreamAddr, conf.Upstream.Address)
		assert.Equal(t, defaultCacheSize, conf.Cache.Size)
		assert.Equal(t, defaultCacheTTL, time.Duration(conf.Cache.TTL))
	})

	t.Run("file", func(t *testing.T) {
		const confData = `
upstream:
  address: "tls://1.1.1.1"
  timeout: 3s
cache:
  size: 500
  ttl: 30s
blocklists:
  sources_file: "sources.yaml"
  preset: "family"
allowlist:
  - "good.example.com"
`

		path := filepath.Join(t.TempDir(), "shielddns.yaml")
		require.NoError(t, os.WriteFile(path, []byte(confData), 0o644))

		conf, err := readConfig(path)
		require.NoError(t, err)

		assert.Equal(t, "tls://1.1.1.1", conf.Upstream.Address)
		assert.Equal(t, 3*time.Second, time.Duration(conf.Upstream.Timeout))
		assert.Equal(t, 500, conf.Cache.Size)
		assert.Equal(t, 30*time.Second, time.Duration(conf.Cache.TTL))
		assert.Equal(t, "sources.yaml", conf.Blocklists.SourcesFile)
		assert.Equal(t, "family", conf.Blocklists.Preset)
		assert.Equal(t, []string{"good.example.com"}, conf.Allowlist)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := readConfig(filepath.Join(t.TempDir(), "none.yaml"))
		assert.Error(t, err)
	})
}
