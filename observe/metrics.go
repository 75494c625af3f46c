// Package observe holds the OpenTelemetry instruments recorded by game
// sessions and the HTTP viewer.
//
// Tests should build Metrics with NewMetrics over a provider backed by a
// ManualReader; binaries call InitProvider once and use the global provider.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for every lionsweep metric.
const meterName = "github.com/brensch/lionsweep"

// Metrics holds all instruments. Safe for concurrent use.
type Metrics struct {
	// TurnsExecuted counts resolved turns.
	TurnsExecuted metric.Int64Counter

	// MovesApplied counts lion moves that passed validation.
	MovesApplied metric.Int64Counter

	// MovesDropped counts queued moves discarded at turn time.
	MovesDropped metric.Int64Counter

	// LionsPlaced counts placement-phase lions.
	LionsPlaced metric.Int64Counter

	// Commands counts session commands. Attributes: command, status.
	Commands metric.Int64Counter

	// ContaminatedNodes records the contamination set size after each turn.
	ContaminatedNodes metric.Int64Histogram

	// TurnDuration tracks how long turn resolution takes.
	TurnDuration metric.Float64Histogram

	// ActiveSessions tracks live sessions.
	ActiveSessions metric.Int64UpDownCounter

	// ActiveConnections tracks open WebSocket connections.
	ActiveConnections metric.Int64UpDownCounter

	// HTTPRequestDuration tracks API latency. Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

var turnBuckets = []float64{
	0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05,
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TurnsExecuted, err = m.Int64Counter("lionsweep.turns",
		metric.WithDescription("Turns resolved."),
	); err != nil {
		return nil, err
	}
	if met.MovesApplied, err = m.Int64Counter("lionsweep.moves.applied",
		metric.WithDescription("Lion moves applied during turn resolution."),
	); err != nil {
		return nil, err
	}
	if met.MovesDropped, err = m.Int64Counter("lionsweep.moves.dropped",
		metric.WithDescription("Queued moves discarded because they were no longer legal."),
	); err != nil {
		return nil, err
	}
	if met.LionsPlaced, err = m.Int64Counter("lionsweep.lions.placed",
		metric.WithDescription("Lions placed during the placement phase."),
	); err != nil {
		return nil, err
	}
	if met.Commands, err = m.Int64Counter("lionsweep.commands",
		metric.WithDescription("Session commands by name and status."),
	); err != nil {
		return nil, err
	}
	if met.ContaminatedNodes, err = m.Int64Histogram("lionsweep.contaminated_nodes",
		metric.WithDescription("Size of the contamination set after each turn."),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 5, 10, 20, 50, 100, 500),
	); err != nil {
		return nil, err
	}
	if met.TurnDuration, err = m.Float64Histogram("lionsweep.turn.duration",
		metric.WithDescription("Time spent resolving a turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(turnBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("lionsweep.active_sessions",
		metric.WithDescription("Live game sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveConnections, err = m.Int64UpDownCounter("lionsweep.active_connections",
		metric.WithDescription("Open WebSocket connections."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("lionsweep.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordCommand counts one session command.
func (m *Metrics) RecordCommand(ctx context.Context, command, status string) {
	if m == nil {
		return
	}
	m.Commands.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", command),
		attribute.String("status", status),
	))
}

// RecordTurn records the outcome of one resolved turn.
func (m *Metrics) RecordTurn(ctx context.Context, applied, dropped, contaminated int, took time.Duration) {
	if m == nil {
		return
	}
	m.TurnsExecuted.Add(ctx, 1)
	m.MovesApplied.Add(ctx, int64(applied))
	if dropped > 0 {
		m.MovesDropped.Add(ctx, int64(dropped))
	}
	m.ContaminatedNodes.Record(ctx, int64(contaminated))
	m.TurnDuration.Record(ctx, took.Seconds())
}
