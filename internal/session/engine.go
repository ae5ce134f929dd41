package session

import (
	"github.com/MrWong99/singalong/internal/config"
	"github.com/MrWong99/singalong/pkg/mixdown"
)

// NewEngine builds a mixdown engine from the mix section of the config. extra
// options are applied after the config-derived ones, so callers can add a
// decoder, logger or telemetry providers.
func NewEngine(mc config.MixConfig, extra ...mixdown.Option) *mixdown.Engine {
	opts := []mixdown.Option{
		mixdown.WithBackingGain(float32(mc.BackingGain)),
		mixdown.WithVocalGain(float32(mc.VocalGain)),
		mixdown.WithLatencyOffset(mc.LatencyOffset),
		mixdown.WithMaxDuration(mc.MaxDuration),
	}
	return mixdown.New(append(opts, extra...)...)
}
