package engine

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/timeslider/internal/engine"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	ticks      metric.Int64Counter
	placements metric.Int64Counter
	rerenders  metric.Int64Counter
	duration   metric.Float64Histogram
}

// newMetrics uses the global OTel meter (no-op if not configured).
func newMetrics() (*metrics, error) {
	m := meter()
	var (
		out metrics
		err error
	)

	out.ticks, err = m.Int64Counter(
		"timeline.marker.ticks",
		metric.WithDescription("Marker ticks applied"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	out.placements, err = m.Int64Counter(
		"timeline.marker.placements",
		metric.WithDescription("Markers placed by activation or seek"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating placements counter: %w", err)
	}

	out.rerenders, err = m.Int64Counter(
		"timeline.rerenders",
		metric.WithDescription("Destructive re-renders"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rerenders counter: %w", err)
	}

	out.duration, err = m.Float64Histogram(
		"timeline.rerender.duration",
		metric.WithDescription("Duration of a save-rebuild-restore cycle"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating rerender histogram: %w", err)
	}

	return &out, nil
}
