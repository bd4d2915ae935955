// Package config holds the host-provided configuration surface recognized
// by the core (§6): store addresses, worker counts, watcher debounce,
// language extension map, and note staleness overrides. Hosts load this
// from YAML; the core never reads its own config file off disk implicitly.
// app.New passes on the store drivers and DSNs, Sync.MaxFileSizeBytes and
// Logging. Sync.WorkerCount, Sync.SkipDirs, Sync.LanguageExtension,
// Watcher.DebounceMS and Notes.BaseDecayDaysByType are loaded and defaulted
// here but are not passed to any component; the Sync Engine, File Watcher
// and Notes Manager use their built-in values instead.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration object passed into the core at startup.
type Config struct {
	Graph   GraphConfig   `yaml:"graph"`
	Search  SearchConfig  `yaml:"search"`
	Sync    SyncConfig    `yaml:"sync"`
	Watcher WatcherConfig `yaml:"watcher"`
	Notes   NotesConfig   `yaml:"notes"`
	Logging LoggingConfig `yaml:"logging"`
}

// GraphConfig addresses the graph store (§4.B).
type GraphConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "mock"
	DSN    string `yaml:"dsn"`
}

// SearchConfig addresses the search store (§4.C).
type SearchConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "mock"
	DSN    string `yaml:"dsn"`
}

// SyncConfig governs the sync engine (§4.D).
type SyncConfig struct {
	WorkerCount       int      `yaml:"worker_count"`
	MaxFileSizeBytes  int64    `yaml:"max_file_size_bytes"`
	SkipDirs          []string `yaml:"skip_dirs"`
	LanguageExtension map[string]string `yaml:"language_extension_map"`
}

// WatcherConfig governs the file watcher (§4.E).
type WatcherConfig struct {
	DebounceMS int `yaml:"debounce_ms"`
}

// NotesConfig overrides the built-in staleness decay table (§4.G).
type NotesConfig struct {
	BaseDecayDaysByType map[string]float64 `yaml:"base_decay_days_by_type"`
}

// LoggingConfig drives internal/logging.Configure.
type LoggingConfig struct {
	Level      string          `yaml:"level"`
	Categories map[string]bool `yaml:"categories"`
}

const defaultDebounce = 500 * time.Millisecond

// DebounceDuration converts WatcherConfig.DebounceMS to a time.Duration.
func (w WatcherConfig) DebounceDuration() time.Duration {
	if w.DebounceMS <= 0 {
		return defaultDebounce
	}
	return time.Duration(w.DebounceMS) * time.Millisecond
}

var defaultSkipDirs = []string{"target", "node_modules", "dist", "build", ".venv", "__pycache__", ".git"}

// Default returns the built-in configuration used when no host config is
// supplied, modeled on the defaults enumerated in spec.md §4.D and §4.G.
func Default() *Config {
	return &Config{
		Graph:  GraphConfig{Driver: "sqlite", DSN: "codeforge_graph.db"},
		Search: SearchConfig{Driver: "sqlite", DSN: "codeforge_search.db"},
		Sync: SyncConfig{
			WorkerCount:      4,
			MaxFileSizeBytes: 5 * 1024 * 1024,
			SkipDirs:         append([]string(nil), defaultSkipDirs...),
		},
		Watcher: WatcherConfig{DebounceMS: 500},
		Notes: NotesConfig{
			BaseDecayDaysByType: map[string]float64{
				"context":     30,
				"tip":         90,
				"observation": 90,
				"gotcha":      180,
				"guideline":   365,
				"pattern":     365,
				// "assertion" intentionally absent: assertions do not decay by time.
			},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML config file from path, filling any unset fields from
// Default(). A missing file is not an error — Default() alone is returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if len(cfg.Sync.SkipDirs) == 0 {
		cfg.Sync.SkipDirs = append([]string(nil), defaultSkipDirs...)
	}
	return cfg, nil
}
