package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config controls the ambient settings of the event store and
// orchestrator: where the Persistent Store lives, whether its
// full-text index is enabled, how aggressively the idle sweep ends
// inactive sessions, and how large a tool.result payload may grow
// before it is truncated.
type Config struct {
	// DatabasePath is the sqlite file the Persistent Store opens.
	// ":memory:" is accepted for tests.
	DatabasePath string `json:"databasePath" yaml:"databasePath"`
	// EnableFTS toggles the events_fts virtual table.
	EnableFTS bool `json:"enableFTS" yaml:"enableFTS"`
	// IdleSweepInterval is the cron-equivalent duration between idle
	// sweep passes; zero means use the orchestrator's default schedule.
	IdleSweepInterval time.Duration `json:"idleSweepInterval" yaml:"idleSweepInterval"`
	// IdleThreshold is how long a session may sit without an append
	// before the sweep ends it; zero means use the orchestrator default.
	IdleThreshold time.Duration `json:"idleThreshold" yaml:"idleThreshold"`
	// ToolResultTruncationBytes is loaded, merged and saved with the
	// rest of the config, but nothing reads it: tool.result content is
	// always truncated at eventkind.MaxToolResultContentBytes.
	ToolResultTruncationBytes int `json:"toolResultTruncationBytes" yaml:"toolResultTruncationBytes"`
}

// Default returns the baseline configuration used when no config file
// or override is present.
func Default() Config {
	return Config{
		DatabasePath: filepath.Join(GetPaths().Data, "db", "prod.db"),
		EnableFTS:    true,
	}
}

// Load loads configuration from multiple sources, later sources
// overriding earlier ones (same precedence order as the teacher's
// opencode.json/opencode.jsonc layering):
//  1. Global config (~/.config/eventstore/config.json[c] or .yaml)
//  2. Project config (<directory>/.eventstore/config.json[c] or .yaml)
//  3. Environment variables
func Load(directory string) (Config, error) {
	cfg := Default()

	globalDir := GetPaths().Config
	loadConfigFile(filepath.Join(globalDir, "config.json"), &cfg)
	loadConfigFile(filepath.Join(globalDir, "config.jsonc"), &cfg)
	loadConfigFile(filepath.Join(globalDir, "config.yaml"), &cfg)

	if directory != "" {
		projectDir := filepath.Join(directory, ".eventstore")
		loadConfigFile(filepath.Join(projectDir, "config.json"), &cfg)
		loadConfigFile(filepath.Join(projectDir, "config.jsonc"), &cfg)
		loadConfigFile(filepath.Join(projectDir, "config.yaml"), &cfg)
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}

// loadConfigFile reads one config file and merges non-zero fields into
// cfg. Missing files are silently skipped, matching the teacher's
// "file doesn't exist, skip" behavior.
func loadConfigFile(path string, cfg *Config) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var file Config
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	default:
		// jsonc.ToJSON strips // and /* */ comments; plain JSON passes
		// through unchanged.
		err = json.Unmarshal(jsonc.ToJSON(data), &file)
	}
	if err != nil {
		return
	}

	mergeConfig(cfg, file)
}

func mergeConfig(target *Config, source Config) {
	if source.DatabasePath != "" {
		target.DatabasePath = source.DatabasePath
	}
	if source.IdleSweepInterval != 0 {
		target.IdleSweepInterval = source.IdleSweepInterval
	}
	if source.IdleThreshold != 0 {
		target.IdleThreshold = source.IdleThreshold
	}
	if source.ToolResultTruncationBytes != 0 {
		target.ToolResultTruncationBytes = source.ToolResultTruncationBytes
	}
	// EnableFTS has no "unset" sentinel distinct from false, so a file
	// can turn it on but never off; only EVENTSTORE_ENABLE_FTS can
	// disable it once it is on.
	target.EnableFTS = source.EnableFTS || target.EnableFTS
}

// applyEnvOverrides applies the EVENTSTORE_* environment overrides,
// highest precedence in the load order.
func applyEnvOverrides(cfg *Config) {
	if path := os.Getenv("EVENTSTORE_DB_PATH"); path != "" {
		cfg.DatabasePath = path
	}
	if v := os.Getenv("EVENTSTORE_ENABLE_FTS"); v != "" {
		cfg.EnableFTS = v != "0" && v != "false"
	}
	if v := os.Getenv("EVENTSTORE_IDLE_THRESHOLD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.IdleThreshold = d
		}
	}
	if v := os.Getenv("EVENTSTORE_IDLE_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.IdleSweepInterval = d
		}
	}
}

// Save writes cfg as indented JSON to path, creating parent
// directories as needed.
func Save(cfg Config, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
