// Package settings loads kryten's runtime settings.
//
// Values come from, in order of precedence: KRYTEN_* environment
// variables (optionally seeded from a .env file), an optional YAML
// settings file, and built-in defaults. The YAML file is checked against
// a CUE schema before it is read.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
	"gopkg.in/yaml.v3"

	"github.com/roach88/kryten/internal/schema"
)

// EnvPrefix prefixes every environment variable name.
const EnvPrefix = "KRYTEN_"

// Settings tunes the monitor. The zero value is not usable; call Load or
// Defaults.
type Settings struct {
	PollInterval time.Duration `env:"KRYTEN_POLL_INTERVAL" default:"50ms"`
	BatchSize    int           `env:"KRYTEN_BATCH_SIZE" default:"400"`
	ConnectGrace time.Duration `env:"KRYTEN_CONNECT_GRACE" default:"2s"`
	QueueLimit   int           `env:"KRYTEN_QUEUE_LIMIT" default:"0"`

	HistoryDB   string `env:"KRYTEN_HISTORY_DB"`
	MetricsAddr string `env:"KRYTEN_METRICS_ADDR"`

	LogLevel  string `env:"KRYTEN_LOG_LEVEL" default:"info"`
	LogFormat string `env:"KRYTEN_LOG_FORMAT" default:"text"`

	// ShutdownWait bounds how long exit waits for launched commands.
	ShutdownWait time.Duration `env:"KRYTEN_SHUTDOWN_WAIT" default:"5s"`
}

// Options locate the optional settings sources.
type Options struct {
	// File is a YAML settings file. Empty means none.
	File string

	// EnvFile is a dotenv file loaded into the environment if it exists.
	// Variables already set are not overwritten.
	EnvFile string

	// Source overrides the process environment, for tests.
	Source env.Source

	Logger *slog.Logger
}

// Defaults returns the built-in settings.
func Defaults() *Settings {
	s, err := Load(Options{Source: lookupFunc(func(string) (string, bool) { return "", false })})
	if err != nil {
		panic(fmt.Sprintf("settings: defaults do not load: %v", err))
	}
	return s
}

// Load resolves settings from opts.
func Load(opts Options) (*Settings, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", opts.EnvFile, err)
			}
			logger.Debug("no env file, using environment variables", "path", opts.EnvFile)
		}
	}

	fileValues, err := readFile(opts.File)
	if err != nil {
		return nil, err
	}

	base := opts.Source
	if base == nil {
		base = env.OS
	}

	var s Settings
	if err := env.Load(&s, &env.Options{Source: layered{env: base, file: fileValues}}); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// readFile validates and reads the YAML settings file, returning its
// values keyed by environment variable name.
func readFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	sch, err := schema.Settings()
	if err != nil {
		return nil, err
	}
	if err := sch.ValidateYAML(path, data); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[EnvPrefix+strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

// Validate checks values that may have come from the environment, which
// bypasses the file schema.
func (s *Settings) Validate() error {
	if s.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", s.PollInterval)
	}
	if s.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", s.BatchSize)
	}
	if s.ConnectGrace < 0 {
		return fmt.Errorf("connect grace must not be negative, got %s", s.ConnectGrace)
	}
	if s.QueueLimit < 0 {
		return fmt.Errorf("queue limit must not be negative, got %d", s.QueueLimit)
	}
	if s.ShutdownWait < 0 {
		return fmt.Errorf("shutdown wait must not be negative, got %s", s.ShutdownWait)
	}
	if _, err := ParseLevel(s.LogLevel); err != nil {
		return err
	}
	switch s.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", s.LogFormat)
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level %q", name)
}

// layered looks a name up in the environment first, then in the settings
// file.
type layered struct {
	env  env.Source
	file map[string]string
}

func (l layered) LookupEnv(key string) (string, bool) {
	if v, ok := l.env.LookupEnv(key); ok {
		return v, true
	}
	v, ok := l.file[key]
	return v, ok
}

type lookupFunc func(string) (string, bool)

func (f lookupFunc) LookupEnv(key string) (string, bool) { return f(key) }
