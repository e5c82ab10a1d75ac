package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/multisession"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Resolution metrics
	ResolveTotal metric.Int64Counter

	// Session metrics
	SessionsCreatedTotal       metric.Int64Counter
	SessionsSignedOutTotal     metric.Int64Counter
	SessionRefreshTotal        metric.Int64Counter
	SessionRefreshErrorsTotal  metric.Int64Counter
	SessionSweepDeletedTotal   metric.Int64Counter
	CredentialVerifyErrorTotal metric.Int64Counter

	// Connection registry metrics
	ActiveConnections      metric.Int64UpDownCounter
	ConnectionTTLRefreshes metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.ResolveTotal, _ = meter.Int64Counter(
		"multisession.auth.resolve.total",
		metric.WithDescription("Total number of request authentications by outcome"),
		metric.WithUnit("{request}"),
	)

	m.SessionsCreatedTotal, _ = meter.Int64Counter(
		"multisession.sessions.created.total",
		metric.WithDescription("Total number of sessions created by sign in"),
		metric.WithUnit("{session}"),
	)

	m.SessionsSignedOutTotal, _ = meter.Int64Counter(
		"multisession.sessions.signed_out.total",
		metric.WithDescription("Total number of sessions removed by sign out"),
		metric.WithUnit("{session}"),
	)

	m.SessionRefreshTotal, _ = meter.Int64Counter(
		"multisession.sessions.refresh.total",
		metric.WithDescription("Total number of sliding expiry refresh writes"),
		metric.WithUnit("{refresh}"),
	)

	m.SessionRefreshErrorsTotal, _ = meter.Int64Counter(
		"multisession.sessions.refresh.errors.total",
		metric.WithDescription("Total number of failed sliding expiry refresh writes"),
		metric.WithUnit("{error}"),
	)

	m.SessionSweepDeletedTotal, _ = meter.Int64Counter(
		"multisession.sessions.sweep.deleted.total",
		metric.WithDescription("Total number of expired sessions removed by the sweeper"),
		metric.WithUnit("{session}"),
	)

	m.CredentialVerifyErrorTotal, _ = meter.Int64Counter(
		"multisession.credentials.verify.errors.total",
		metric.WithDescription("Total number of rejected sign in credentials"),
		metric.WithUnit("{error}"),
	)

	m.ActiveConnections, _ = meter.Int64UpDownCounter(
		"multisession.connections.active",
		metric.WithDescription("Number of live websocket connections"),
		metric.WithUnit("{connection}"),
	)

	m.ConnectionTTLRefreshes, _ = meter.Int64Counter(
		"multisession.connections.ttl_refresh.total",
		metric.WithDescription("Total number of connection record TTL extensions"),
		metric.WithUnit("{refresh}"),
	)

	return m
}
