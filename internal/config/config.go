// Package config provides environment-driven configuration for spacestore.
//
// Values are resolved in order: environment variable, the YAML file named by
// SPACESTORE_CONFIG, built-in default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable pointing at the YAML config file.
const FileEnv = "SPACESTORE_CONFIG"

// Activity log sources.
const (
	ActivityInProcess = "inprocess"
	ActivityNotify    = "notify"
	ActivityOff       = "off"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	StorageBackend string
	DatabaseURL    Secret
	DBMaxConns     int
	BadgerPath     string
	BadgerInMemory bool

	ListenHost string
	Port       string

	LogLevel  string
	LogFormat string

	ActivitySource        string
	ActivityQueueSize     int
	ActivityRetentionDays int

	WriteAttempts int
	PatchMaxDepth int
}

// source resolves one setting from the environment, then the file.
type source struct {
	file map[string]string
}

func (s source) get(env, key, fallback string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	if v, ok := s.file[key]; ok && v != "" {
		return v
	}

	return fallback
}

// Load reads configuration from the environment and the optional config file.
func Load() (*Config, error) {
	file, err := readFile(os.Getenv(FileEnv))
	if err != nil {
		return nil, err
	}

	src := source{file: file}

	cfg := &Config{
		StorageBackend: strings.ToLower(src.get("STORAGE_BACKEND", "storage_backend", "postgres")),
		DatabaseURL:    Secret(src.get("DATABASE_URL", "database_url", "")),
		BadgerPath:     src.get("BADGER_PATH", "badger_path", "./data/spacestore"),
		BadgerInMemory: src.get("BADGER_IN_MEMORY", "badger_in_memory", "false") == "true",
		ListenHost:     src.get("LISTEN_HOST", "listen_host", "127.0.0.1"),
		Port:           src.get("PORT", "port", "3040"),
		LogLevel:       src.get("LOG_LEVEL", "log_level", "info"),
		LogFormat:      src.get("LOG_FORMAT", "log_format", "json"),
		ActivitySource: strings.ToLower(src.get("ACTIVITY_SOURCE", "activity_source", ActivityInProcess)),
	}

	ints := []struct {
		env, key, fallback string
		min, max           int
		dst                *int
	}{
		{"DB_MAX_CONNS", "db_max_conns", "21", 2, 200, &cfg.DBMaxConns},
		{"ACTIVITY_QUEUE_SIZE", "activity_queue_size", "1000", 1, 100000, &cfg.ActivityQueueSize},
		{"ACTIVITY_RETENTION_DAYS", "activity_retention_days", "90", 1, 3650, &cfg.ActivityRetentionDays},
		{"WRITE_ATTEMPTS", "write_attempts", "3", 1, 10, &cfg.WriteAttempts},
		{"PATCH_MAX_DEPTH", "patch_max_depth", "0", 0, 64, &cfg.PatchMaxDepth},
	}
	for _, i := range ints {
		n, err := strconv.Atoi(src.get(i.env, i.key, i.fallback))
		if err != nil || n < i.min || n > i.max {
			return nil, fmt.Errorf("%s must be an integer between %d and %d", i.env, i.min, i.max)
		}
		*i.dst = n
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// readFile parses the flat YAML config file at path. An empty path yields
// no values.
func readFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator.
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileEnv, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("parsing %s: key %q must be a scalar", path, k)
		case nil:
			continue
		}
		values[k] = fmt.Sprint(v)
	}

	return values, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}
