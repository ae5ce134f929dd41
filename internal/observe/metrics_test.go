package observe

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumBy returns the int64 sum data points keyed by the value of attribute key.
func sumBy(t *testing.T, rm metricdata.ResourceMetrics, name, key string) map[string]int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is %T, want Sum[int64]", name, met.Data)
	}
	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		v, _ := attrValue(dp.Attributes, key)
		out[v] += dp.Value
	}
	return out
}

func TestRecordLyricsParse(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordLyricsParse(ctx, false)
	m.RecordLyricsParse(ctx, false)
	m.RecordLyricsParse(ctx, true)

	got := sumBy(t, collect(t, reader), "singalong.lyrics.parses", "result")
	if got["complete"] != 2 || got["truncated"] != 1 {
		t.Errorf("parses = %v, want complete=2 truncated=1", got)
	}
}

func TestRecordMix(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordMix(ctx, "ok")
	m.RecordMix(ctx, "rejected")
	m.RecordMix(ctx, "rejected")

	got := sumBy(t, collect(t, reader), "singalong.session.mixes", "status")
	if got["ok"] != 1 || got["rejected"] != 2 {
		t.Errorf("mixes = %v, want ok=1 rejected=2", got)
	}
}

func TestRecordTakeOp(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTakeOp(ctx, "put", nil)
	m.RecordTakeOp(ctx, "put", errors.New("disk full"))
	m.RecordTakeOp(ctx, "get", nil)

	got := sumBy(t, collect(t, reader), "singalong.takes.ops", "status")
	if got["ok"] != 2 || got["error"] != 1 {
		t.Errorf("take ops = %v, want ok=2 error=1", got)
	}
}

func TestUpDownCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 3)
	m.ActiveSessions.Add(ctx, -1)
	m.FollowStreams.Add(ctx, 1)
	m.FollowStreams.Add(ctx, -1)

	rm := collect(t, reader)
	if got := sumBy(t, rm, "singalong.sessions.active", "")[""]; got != 2 {
		t.Errorf("active sessions = %d, want 2", got)
	}
	if got := sumBy(t, rm, "singalong.follow.streams", "")[""]; got != 0 {
		t.Errorf("follow streams = %d, want 0", got)
	}
}

func TestTakeBytesHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.TakeBytes.Record(context.Background(), 44_144)

	met := findMetric(collect(t, reader), "singalong.takes.size")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[int64])
	if !ok {
		t.Fatalf("metric is %T, want Histogram[int64]", met.Data)
	}
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Errorf("data points = %+v", hist.DataPoints)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
