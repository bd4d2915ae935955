package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default().Sync.WorkerCount, cfg.Sync.WorkerCount)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := "sync:\n  worker_count: 8\nwatcher:\n  debounce_ms: 250\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Sync.WorkerCount)
	require.Equal(t, 250, cfg.Watcher.DebounceMS)
	require.NotEmpty(t, cfg.Sync.SkipDirs, "unset skip dirs should fall back to defaults")
}

func TestDebounceDurationDefault(t *testing.T) {
	w := WatcherConfig{}
	require.Equal(t, defaultDebounce, w.DebounceDuration())
}
