package simulator

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName names the run loop meter.
const InstrumentationName = "github.com/mechevo/simulator/internal/simulator"

type metrics struct {
	ticks    metric.Int64Counter
	runs     metric.Int64Counter
	events   metric.Int64Counter
	duration metric.Float64Histogram
}

// newMetrics creates the run loop instruments on m, or on the global meter when m is nil.
func newMetrics(m metric.Meter) (*metrics, error) {
	if m == nil {
		m = otel.Meter(InstrumentationName)
	}
	var (
		out metrics
		err error
	)

	out.ticks, err = m.Int64Counter("sim.ticks",
		metric.WithDescription("Ticks simulated across all runs"))
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}

	out.runs, err = m.Int64Counter("sim.runs",
		metric.WithDescription("Finished runs by termination reason"))
	if err != nil {
		return nil, fmt.Errorf("creating run counter: %w", err)
	}

	out.events, err = m.Int64Counter("sim.events",
		metric.WithDescription("Events emitted across all runs"))
	if err != nil {
		return nil, fmt.Errorf("creating event counter: %w", err)
	}

	out.duration, err = m.Float64Histogram("sim.run.duration",
		metric.WithDescription("Wall-clock run duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return &out, nil
}
