// Package config loads and merges wizgo's runtime configuration: model
// location, session/KV-cache parameters, generation defaults, the optional
// HTTP/SSE server, snapshot storage, and logging. Grounded on the teacher's
// Default/Resolve/loadFile/merge/applyEnvOverrides shape, trimmed to this
// engine's scope (no memory/RAG/embedding/vision sections).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config captures every runtime setting wizgo needs.
type Config struct {
	Model      ModelConfig      `yaml:"model"`
	Session    SessionConfig    `yaml:"session"`
	Generation GenerationConfig `yaml:"generation"`
	Server     ServerConfig     `yaml:"server"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ModelConfig locates the GGML model file and sets the thread count used
// for graph compute during inference.
type ModelConfig struct {
	Path    string `yaml:"path"`
	Threads int    `yaml:"threads"`
}

// SessionConfig controls the KV cache's shape and sampling memory.
type SessionConfig struct {
	LastNSize   int    `yaml:"last_n_size"`
	MemoryKType string `yaml:"memory_k_type"` // "f16" or "f32"
	MemoryVType string `yaml:"memory_v_type"`
}

// GenerationConfig sets the default sampling and stopping parameters.
type GenerationConfig struct {
	MaxTokens     int      `yaml:"max_tokens"`
	Temperature   float64  `yaml:"temperature"`
	TopK          int      `yaml:"top_k"`
	TopP          float64  `yaml:"top_p"`
	RepeatPenalty float64  `yaml:"repeat_penalty"`
	RepeatLastN   int      `yaml:"repeat_last_n"`
	Stop          []string `yaml:"stop"`
	// Bias selects the EOD-suppression policy: "newline" (default, hold off
	// EOD for a minimum newline count) or "fence" (hold off EOD while an
	// opened code fence hasn't closed, for code-generation prompts).
	Bias string `yaml:"bias"`
}

// ServerConfig configures the optional HTTP/SSE front end.
type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Enabled *bool  `yaml:"enabled"`
}

// SnapshotConfig configures where session snapshots and the prompt-cache
// index are stored.
type SnapshotConfig struct {
	Dir            string `yaml:"dir"`
	CacheIndexPath string `yaml:"cache_index_path"`
	Enabled        *bool  `yaml:"enabled"`
}

// LoggingConfig configures where and how verbosely wizgo logs.
type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

const defaultConfigFile = "wizgo.yaml"

// boolPtr returns a pointer to the given bool value.
// Used for *bool config fields that need to distinguish "not set" from "false".
func boolPtr(b bool) *bool { return &b }

// Default returns a Config pre-populated with opinionated defaults.
func Default() Config {
	return Config{
		Model: ModelConfig{
			Path:    "",
			Threads: 4,
		},
		Session: SessionConfig{
			LastNSize:   64,
			MemoryKType: "f16",
			MemoryVType: "f16",
		},
		Generation: GenerationConfig{
			MaxTokens:     512,
			Temperature:   0.8,
			TopK:          40,
			TopP:          0.95,
			RepeatPenalty: 1.1,
			RepeatLastN:   64,
			Stop:          nil,
		},
		Server: ServerConfig{
			Host:    "127.0.0.1",
			Port:    42067,
			Enabled: boolPtr(false),
		},
		Snapshot: SnapshotConfig{
			Dir:            "wizgo_snapshots",
			CacheIndexPath: "wizgo_snapshots.db",
			Enabled:        boolPtr(true),
		},
		Logging: LoggingConfig{
			Dir:   "",
			Level: "info",
		},
	}
}

// Resolve loads configuration from file and environment variables.
func Resolve() (Config, error) {
	cfg := Default()

	path := strings.TrimSpace(os.Getenv("WIZGO_CONFIG"))
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	} else if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("provided WIZGO_CONFIG file %q not found", path)
	}

	if path != "" {
		loaded, err := loadFile(path)
		if err != nil {
			return cfg, err
		}
		cfg = merge(cfg, loaded)
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}

func loadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %q: %w", path, err)
	}

	return cfg, nil
}

// merge overlays non-zero override values onto the base config.
//
// KNOWN LIMITATION: bool fields without a *bool field (none currently) could
// only be toggled ON via YAML override, never OFF, since Go's zero value for
// bool is false. Server.Enabled and Snapshot.Enabled use *bool and can be
// explicitly set to false.
func merge(base, override Config) Config {
	result := base

	if override.Model.Path != "" {
		result.Model.Path = override.Model.Path
	}
	if override.Model.Threads != 0 {
		result.Model.Threads = override.Model.Threads
	}

	if override.Session.LastNSize != 0 {
		result.Session.LastNSize = override.Session.LastNSize
	}
	if override.Session.MemoryKType != "" {
		result.Session.MemoryKType = override.Session.MemoryKType
	}
	if override.Session.MemoryVType != "" {
		result.Session.MemoryVType = override.Session.MemoryVType
	}

	g := override.Generation
	if g.MaxTokens != 0 {
		result.Generation.MaxTokens = g.MaxTokens
	}
	if g.Temperature != 0 {
		result.Generation.Temperature = g.Temperature
	}
	if g.TopK != 0 {
		result.Generation.TopK = g.TopK
	}
	if g.TopP != 0 {
		result.Generation.TopP = g.TopP
	}
	if g.RepeatPenalty != 0 {
		result.Generation.RepeatPenalty = g.RepeatPenalty
	}
	if g.RepeatLastN != 0 {
		result.Generation.RepeatLastN = g.RepeatLastN
	}
	if len(g.Stop) != 0 {
		result.Generation.Stop = append([]string(nil), g.Stop...)
	}
	if g.Bias != "" {
		result.Generation.Bias = g.Bias
	}

	if override.Server.Host != "" {
		result.Server.Host = override.Server.Host
	}
	if override.Server.Port != 0 {
		result.Server.Port = override.Server.Port
	}
	if override.Server.Enabled != nil {
		result.Server.Enabled = override.Server.Enabled
	}

	if override.Snapshot.Dir != "" {
		result.Snapshot.Dir = override.Snapshot.Dir
	}
	if override.Snapshot.CacheIndexPath != "" {
		result.Snapshot.CacheIndexPath = override.Snapshot.CacheIndexPath
	}
	if override.Snapshot.Enabled != nil {
		result.Snapshot.Enabled = override.Snapshot.Enabled
	}

	if override.Logging.Dir != "" {
		result.Logging.Dir = override.Logging.Dir
	}
	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}

	return result
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("WIZGO_MODEL_PATH")); v != "" {
		cfg.Model.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("WIZGO_THREADS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Model.Threads = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("WIZGO_LAST_N_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Session.LastNSize = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("WIZGO_MAX_TOKENS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Generation.MaxTokens = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("WIZGO_TEMPERATURE")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Generation.Temperature = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("WIZGO_TOP_K")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Generation.TopK = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("WIZGO_SERVER_HOST")); v != "" {
		cfg.Server.Host = v
	}
	if v := strings.TrimSpace(os.Getenv("WIZGO_SERVER_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("WIZGO_SERVER_ENABLED")); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Server.Enabled = boolPtr(enabled)
		}
	}
	if v := strings.TrimSpace(os.Getenv("WIZGO_SNAPSHOT_DIR")); v != "" {
		cfg.Snapshot.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv("WIZGO_SNAPSHOT_ENABLED")); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Snapshot.Enabled = boolPtr(enabled)
		}
	}
	if v := strings.TrimSpace(os.Getenv("WIZGO_LOG_DIR")); v != "" {
		cfg.Logging.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv("WIZGO_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
}

// ServerEnabled reports if the HTTP/SSE server should be started.
func (c Config) ServerEnabled() bool {
	return c.Server.Enabled != nil && *c.Server.Enabled
}

// SnapshotEnabled reports whether cached snapshots are looked up and
// restored before a prompt is fed. It does not gate writing: the cli package
// writes a snapshot after every fed prompt whether or not this is set.
func (c Config) SnapshotEnabled() bool {
	return c.Snapshot.Enabled != nil && *c.Snapshot.Enabled
}
