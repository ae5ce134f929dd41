package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/singalong/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	d := config.Diff(config.Default(), config.Default())
	if !d.Empty() {
		t.Errorf("expected empty diff, got %+v", d)
	}
}

func TestDiff_MixChange(t *testing.T) {
	t.Parallel()
	old, cur := config.Default(), config.Default()
	cur.Mix.LatencyOffset = 120 * time.Millisecond

	d := config.Diff(old, cur)
	if !d.MixChanged || d.NewMix.LatencyOffset != 120*time.Millisecond {
		t.Errorf("expected mix change, got %+v", d)
	}
	if d.LogLevelChanged || len(d.RestartRequired) != 0 {
		t.Errorf("unexpected extra changes: %+v", d)
	}
}

func TestDiff_LogLevelChange(t *testing.T) {
	t.Parallel()
	old, cur := config.Default(), config.Default()
	cur.Server.LogLevel = config.LogDebug

	d := config.Diff(old, cur)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("expected log level change, got %+v", d)
	}
	if d.MixChanged {
		t.Error("mix should be unchanged")
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	old, cur := config.Default(), config.Default()
	cur.Server.ListenAddr = ":9999"
	cur.Storage.Backend = config.StorageSQLite
	cur.Telemetry.ServiceName = "other"

	d := config.Diff(old, cur)
	want := []string{"server.listen_addr", "storage", "telemetry.service_name"}
	if !slices.Equal(d.RestartRequired, want) {
		t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, want)
	}
	if d.Empty() {
		t.Error("diff with restart fields should not be empty")
	}
}
