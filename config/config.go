// Package config loads calculator settings from a TOML file with
// CALC_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/pelletier/go-toml/v2"

	"github.com/zylisp/calc/logger"
	"github.com/zylisp/calc/protocol"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config is the full calculator configuration.
type Config struct {
	Log     LogConfig     `toml:"log"`
	Storage StorageConfig `toml:"storage"`
	History HistoryConfig `toml:"history"`
	Server  ServerConfig  `toml:"server"`
	UI      UIConfig      `toml:"ui"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `toml:"level"`
	Path  string `toml:"path"`
}

// StorageConfig selects where the history ledger persists.
type StorageConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// HistoryConfig bounds the ledger. MaxEntries 0 keeps everything.
type HistoryConfig struct {
	MaxEntries int `toml:"max_entries"`
}

// ServerConfig configures `calc serve`.
type ServerConfig struct {
	Transport string `toml:"transport"`
	Addr      string `toml:"addr"`
	Codec     string `toml:"codec"`
}

// UIConfig holds front-end settings.
type UIConfig struct {
	ErrorMarker  string `toml:"error_marker"`
	HistoryLines int    `toml:"history_lines"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dir := defaultDir()
	return &Config{
		Log: LogConfig{
			Level: "info",
			Path:  filepath.Join(dir, "calc.log"),
		},
		Storage: StorageConfig{
			Backend: BackendFile,
			Path:    filepath.Join(dir, "history.json"),
		},
		Server: ServerConfig{
			Transport: "tcp",
			Addr:      "localhost:5555",
			Codec:     "json",
		},
		UI: UIConfig{
			ErrorMarker:  "Error",
			HistoryLines: 8,
		},
	}
}

func defaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "calc")
	}
	return ".calc"
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(defaultDir(), "config.toml")
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error. An empty path means DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Debug("config %s not found, using defaults", path)
	case err != nil:
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	default:
		if err := Parse(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes TOML data into cfg. Keys absent from data keep their
// current values; unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}

// Save writes cfg to path atomically, creating the directory if needed.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

// applyEnv overrides fields from CALC_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"CALC_LOG_LEVEL":        &c.Log.Level,
		"CALC_LOG_PATH":         &c.Log.Path,
		"CALC_STORAGE_BACKEND":  &c.Storage.Backend,
		"CALC_STORAGE_PATH":     &c.Storage.Path,
		"CALC_SERVER_TRANSPORT": &c.Server.Transport,
		"CALC_SERVER_ADDR":      &c.Server.Addr,
		"CALC_SERVER_CODEC":     &c.Server.Codec,
		"CALC_UI_ERROR_MARKER":  &c.UI.ErrorMarker,
	}
	for name, field := range strs {
		if v, ok := lookup(name); ok {
			*field = v
		}
	}

	ints := map[string]*int{
		"CALC_HISTORY_MAX_ENTRIES": &c.History.MaxEntries,
		"CALC_UI_HISTORY_LINES":    &c.UI.HistoryLines,
	}
	for name, field := range ints {
		v, ok := lookup(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*field = n
	}
	return nil
}

// Validate checks that every field holds a usable value.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendFile, BackendSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, fmt.Errorf("storage.path: required for %s backend", c.Storage.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend))
	}

	if c.History.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("history.max_entries: must not be negative"))
	}

	switch c.Server.Transport {
	case "in-process", "tcp", "unix", "ws":
	default:
		errs = append(errs, fmt.Errorf("server.transport: unknown transport %q", c.Server.Transport))
	}
	if err := protocol.CheckFormat(c.Server.Codec); err != nil {
		errs = append(errs, fmt.Errorf("server.codec: %w", err))
	}

	if c.UI.ErrorMarker == "" {
		errs = append(errs, fmt.Errorf("ui.error_marker: must not be empty"))
	}
	if c.UI.HistoryLines < 0 {
		errs = append(errs, fmt.Errorf("ui.history_lines: must not be negative"))
	}

	return errors.Join(errs...)
}

// LogLevel returns the parsed log level. Validate rejects names it cannot
// parse, so an unvalidated config falls back to info.
func (c *Config) LogLevel() logger.Level {
	level, _ := logger.ParseLevel(c.Log.Level)
	return level
}
