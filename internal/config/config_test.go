package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tupldb/remote/internal/handshake"
)

func TestLoadAppliesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, SaveConfig(&Config{
		Server: ServerConfig{
			ListenAddr:      ":9999",
			WorkerLimit:     8,
			DataDir:         dir,
			MaxFragmentSize: 4096,
		},
		Logging: LoggingConfig{Level: "DEBUG", Format: "json"},
		Metrics: MetricsConfig{Enabled: true, ListenAddr: ":9090"},
		Diagnostics: DiagnosticsConfig{
			Enabled: false, ListenAddr: ":9091",
		},
	}, path))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.Server.ListenAddr)
	require.Equal(t, "DEBUG", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().Server.ListenAddr, cfg.Server.ListenAddr)
}

func TestValidateRejectsMissingListenAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.ListenAddr = ""
	require.Error(t, Validate(cfg))
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "LOUD"
	require.Error(t, Validate(cfg))
}

func TestParseTokensAcceptsDecimalPairs(t *testing.T) {
	ts, err := ParseTokens([]string{"123:456", "7:8"})
	require.NoError(t, err)
	require.Equal(t, handshake.TokenSet{123, 456, 7, 8}, ts)
}

func TestParseTokensRejectsMalformedPair(t *testing.T) {
	_, err := ParseTokens([]string{"not-a-pair"})
	require.Error(t, err)
}

func TestWatchFileReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := DefaultConfig()
	cfg.Logging.Level = "INFO"
	require.NoError(t, SaveConfig(cfg, path))

	changed := make(chan *Config, 1)
	w, err := WatchFile(path, func(c *Config) { changed <- c })
	require.NoError(t, err)
	defer w.Close()

	cfg.Logging.Level = "WARN"
	require.NoError(t, SaveConfig(cfg, path))

	select {
	case c := <-changed:
		require.Equal(t, "WARN", c.Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
