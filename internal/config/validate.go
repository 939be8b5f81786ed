package config

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"
)

// storageBackends mirrors the names registered in internal/backend.
var storageBackends = map[string]bool{
	"postgres": true,
	"badger":   true,
}

func (c *Config) validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}

	if err := c.validateNetwork(); err != nil {
		return err
	}

	if err := c.validateLogging(); err != nil {
		return err
	}

	if err := c.validateActivity(); err != nil {
		return err
	}

	return nil
}

func (c *Config) validateStorage() error {
	if !storageBackends[c.StorageBackend] {
		return fmt.Errorf("STORAGE_BACKEND must be 'postgres' or 'badger', got %q", c.StorageBackend)
	}

	switch c.StorageBackend {
	case "postgres":
		return c.validateDatabase()
	case "badger":
		if !c.BadgerInMemory && c.BadgerPath == "" {
			return fmt.Errorf("BADGER_PATH is required unless BADGER_IN_MEMORY is true")
		}
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.DatabaseURL.Value() == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	dbURL, err := url.Parse(c.DatabaseURL.Value())
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}

	if dbURL.Scheme != "postgres" && dbURL.Scheme != "postgresql" {
		return fmt.Errorf("DATABASE_URL scheme must be postgres:// or postgresql://")
	}

	if dbURL.Hostname() == "" {
		return fmt.Errorf("DATABASE_URL must include a host")
	}

	dbHost := dbURL.Hostname()
	if !isLoopback(dbHost) && dbURL.Query().Get("sslmode") == "disable" {
		return fmt.Errorf("DATABASE_URL sslmode=disable is not allowed for non-local host %q", dbHost)
	}

	return nil
}

func (c *Config) validateNetwork() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid integer: %w", err)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	// 0.0.0.0 and :: are for containers, where the network boundary is
	// enforced outside the process.
	if !isLoopback(c.ListenHost) && c.ListenHost != "0.0.0.0" && c.ListenHost != "::" {
		return fmt.Errorf("LISTEN_HOST must be a loopback address or 0.0.0.0/:: for containers (got %q)", c.ListenHost)
	}

	return nil
}

func (c *Config) validateLogging() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'text', got %q", c.LogFormat)
	}

	return nil
}

func (c *Config) validateActivity() error {
	switch c.ActivitySource {
	case ActivityInProcess, ActivityOff:
	case ActivityNotify:
		if c.StorageBackend != "postgres" {
			return fmt.Errorf("ACTIVITY_SOURCE=notify requires STORAGE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("ACTIVITY_SOURCE must be 'inprocess', 'notify' or 'off', got %q", c.ActivitySource)
	}

	return nil
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
