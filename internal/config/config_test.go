package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(`
server:
  host: 0.0.0.0
  port: 3001
log_level: debug
chain:
  retention_window: 6
  prune_margin: 2
  genesis:
    address: 02aa
    reward: "50"
producer:
  enabled: true
  interval: 3s
  policy: greedy
`), 0o600)
	require.NoError(t, err)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 3001, cfg.Server.Port)
	require.Equal(t, "debug", cfg.LogLevel)
	require.EqualValues(t, 6, cfg.Chain.RetentionWindow)
	require.EqualValues(t, 2, cfg.Chain.PruneMargin)
	require.Equal(t, "02aa", cfg.Chain.Genesis.Address)
	require.Equal(t, "50", cfg.Chain.Genesis.Reward)
	require.True(t, cfg.Producer.Enabled)
	require.Equal(t, 3*time.Second, cfg.Producer.Interval)
	require.Equal(t, "greedy", cfg.Producer.Policy)

	// sections missing from the file get defaults
	require.Equal(t, "memdb", cfg.DB.DBType)
	require.Equal(t, DefaultBlockChanBuf, cfg.Indexer.BlockChanBuf)
	require.Equal(t, DefaultSigCacheSize, cfg.SigCache.Size)
	require.Equal(t, "25", cfg.Producer.Reward)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.EqualValues(t, DefaultRetentionWindow, cfg.Chain.RetentionWindow)
	require.Zero(t, cfg.Chain.PruneMargin)
	require.Equal(t, "maxfee", cfg.Producer.Policy)
	require.False(t, cfg.Producer.Enabled)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
