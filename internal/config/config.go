// Package config provides the configuration schema, loader, validation and
// file watcher for the singalong server.
package config

import "time"

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// StorageBackend selects where finished takes are kept.
type StorageBackend string

const (
	// StorageMemory keeps takes in process memory. They are lost on restart.
	StorageMemory StorageBackend = "memory"

	// StoragePostgres stores takes in a PostgreSQL BYTEA column.
	StoragePostgres StorageBackend = "postgres"

	// StorageSQLite stores takes in a local SQLite file.
	StorageSQLite StorageBackend = "sqlite"
)

// IsValid reports whether b is a recognised backend.
func (b StorageBackend) IsValid() bool {
	switch b {
	case StorageMemory, StoragePostgres, StorageSQLite:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
// Fields absent from the file keep the values from [Default].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Mix       MixConfig       `yaml:"mix"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds network, upload and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MaxUploadBytes bounds the request body of a mix upload, covering both
	// tracks and multipart overhead.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// ShutdownTimeout is how long in-flight requests get to finish on exit.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// MixConfig holds the tunable mixdown parameters. The output format is fixed
// and intentionally absent here.
type MixConfig struct {
	// BackingGain is the linear gain applied to the backing track.
	BackingGain float64 `yaml:"backing_gain"`

	// VocalGain is the linear gain applied to the vocal track.
	VocalGain float64 `yaml:"vocal_gain"`

	// LatencyOffset advances the vocal to compensate for the recording start
	// delay. Zero disables it.
	LatencyOffset time.Duration `yaml:"latency_offset"`

	// MaxDuration caps the rendered output length. Zero disables the cap.
	MaxDuration time.Duration `yaml:"max_duration"`
}

// StorageConfig selects and configures the take store.
type StorageConfig struct {
	Backend StorageBackend `yaml:"backend"`

	// PostgresDSN is the connection string used when Backend is "postgres".
	PostgresDSN string `yaml:"postgres_dsn"`

	// SQLitePath is the database file used when Backend is "sqlite".
	SQLitePath string `yaml:"sqlite_path"`
}

// TelemetryConfig configures the OpenTelemetry resource.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:      ":8080",
			LogLevel:        LogInfo,
			MaxUploadBytes:  64 << 20,
			ShutdownTimeout: 15 * time.Second,
		},
		Mix: MixConfig{
			BackingGain:   0.7,
			VocalGain:     2.0,
			LatencyOffset: 150 * time.Millisecond,
			MaxDuration:   15 * time.Minute,
		},
		Storage: StorageConfig{
			Backend:    StorageMemory,
			SQLitePath: "singalong.db",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "singalong",
		},
	}
}
