package config

// ConfigDiff describes what changed between two configs.
// Mix settings and the log level are applied live; everything else is listed
// in RestartRequired.
type ConfigDiff struct {
	MixChanged bool
	NewMix     MixConfig

	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired names changed settings that only take effect after a
	// restart, e.g. "server.listen_addr".
	RestartRequired []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.MixChanged && !d.LogLevelChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Mix != new.Mix {
		d.MixChanged = true
		d.NewMix = new.Mix
	}
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	restart := []struct {
		name    string
		changed bool
	}{
		{"server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr},
		{"server.max_upload_bytes", old.Server.MaxUploadBytes != new.Server.MaxUploadBytes},
		{"server.shutdown_timeout", old.Server.ShutdownTimeout != new.Server.ShutdownTimeout},
		{"storage", old.Storage != new.Storage},
		{"telemetry.service_name", old.Telemetry.ServiceName != new.Telemetry.ServiceName},
	}
	for _, r := range restart {
		if r.changed {
			d.RestartRequired = append(d.RestartRequired, r.name)
		}
	}
	return d
}
