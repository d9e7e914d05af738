package main

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "rocket-arena"

// Metrics counts netcode outcomes. A nil *Metrics records nothing.
type Metrics struct {
	fires    metric.Int64Counter
	rejects  metric.Int64Counter
	hits     metric.Int64Counter
	pickups  metric.Int64Counter
	dropped  metric.Int64Counter
	sessions metric.Int64UpDownCounter
}

// NewMetrics registers the counters on the global meter provider
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error
	if m.fires, err = meter.Int64Counter("rockets.fired", metric.WithDescription("confirmed rocket launches")); err != nil {
		return nil, err
	}
	if m.rejects, err = meter.Int64Counter("rockets.rejected", metric.WithDescription("fire requests the authority refused")); err != nil {
		return nil, err
	}
	if m.hits, err = meter.Int64Counter("rockets.hits", metric.WithDescription("hit reports applied")); err != nil {
		return nil, err
	}
	if m.pickups, err = meter.Int64Counter("pickups.granted"); err != nil {
		return nil, err
	}
	if m.dropped, err = meter.Int64Counter("net.unreliable_dropped", metric.WithDescription("unreliable sends dropped on a full buffer")); err != nil {
		return nil, err
	}
	if m.sessions, err = meter.Int64UpDownCounter("sessions.active"); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) RecordFire(session string) {
	if m == nil {
		return
	}
	m.fires.Add(context.Background(), 1, metric.WithAttributes(attribute.String("session", session)))
}

func (m *Metrics) RecordReject(session string) {
	if m == nil {
		return
	}
	m.rejects.Add(context.Background(), 1, metric.WithAttributes(attribute.String("session", session)))
}

func (m *Metrics) RecordHit(session string) {
	if m == nil {
		return
	}
	m.hits.Add(context.Background(), 1, metric.WithAttributes(attribute.String("session", session)))
}

func (m *Metrics) RecordPickup(session string, kind ItemKind) {
	if m == nil {
		return
	}
	m.pickups.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("session", session),
		attribute.String("kind", kind.String()),
	))
}

func (m *Metrics) RecordDropped() {
	if m == nil {
		return
	}
	m.dropped.Add(context.Background(), 1)
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Add(context.Background(), 1)
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Add(context.Background(), -1)
}
