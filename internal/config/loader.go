package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Limits enforced by [Validate].
const (
	maxGain          = 10.0
	maxLatencyOffset = time.Second
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes must be positive, got %d", cfg.Server.MaxUploadBytes))
	}
	if cfg.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must not be negative, got %s", cfg.Server.ShutdownTimeout))
	}

	// Mix
	errs = append(errs, validateMix(cfg.Mix)...)

	// Storage
	switch cfg.Storage.Backend {
	case StorageMemory:
		if cfg.Storage.PostgresDSN != "" {
			slog.Warn("storage.postgres_dsn is set but storage.backend is memory; takes will not be persisted")
		}
	case StoragePostgres:
		if cfg.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required when storage.backend is postgres"))
		}
	case StorageSQLite:
		if cfg.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required when storage.backend is sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is invalid; valid values: memory, postgres, sqlite", cfg.Storage.Backend))
	}

	// Telemetry
	if cfg.Telemetry.ServiceName == "" {
		errs = append(errs, errors.New("telemetry.service_name is required"))
	}

	return errors.Join(errs...)
}

func validateMix(m MixConfig) []error {
	var errs []error
	if m.BackingGain < 0 || m.BackingGain > maxGain {
		errs = append(errs, fmt.Errorf("mix.backing_gain %.2f is out of range [0, %.0f]", m.BackingGain, maxGain))
	}
	if m.VocalGain < 0 || m.VocalGain > maxGain {
		errs = append(errs, fmt.Errorf("mix.vocal_gain %.2f is out of range [0, %.0f]", m.VocalGain, maxGain))
	}
	if m.BackingGain == 0 && m.VocalGain == 0 {
		slog.Warn("mix.backing_gain and mix.vocal_gain are both 0; every mix will be silent")
	}
	if m.LatencyOffset < 0 || m.LatencyOffset >= maxLatencyOffset {
		errs = append(errs, fmt.Errorf("mix.latency_offset %s is out of range [0s, %s)", m.LatencyOffset, maxLatencyOffset))
	}
	if m.MaxDuration < 0 {
		errs = append(errs, fmt.Errorf("mix.max_duration must not be negative, got %s", m.MaxDuration))
	}
	return errs
}
