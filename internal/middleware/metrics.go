package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Mohsinsiddi/w3kit/internal/transport"
)

const metricsNamespace = "w3kit"

// Metrics counts requests and observes their latency per method.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewMetrics registers the RPC collectors with reg. A nil reg uses the
// default Prometheus registry. Collectors already registered by an earlier
// client are reused, so every client in a process feeds the same series.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	requests, err := register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of JSON-RPC requests by method and outcome",
		},
		[]string{"method", "outcome"},
	))
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "JSON-RPC round trip duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"method"},
	))
	if err != nil {
		return nil, err
	}
	inFlight, err := register(reg, prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "rpc",
			Name:      "requests_in_flight",
			Help:      "JSON-RPC requests currently in flight",
		},
	))
	if err != nil {
		return nil, err
	}
	return &Metrics{requests: requests, duration: duration, inFlight: inFlight}, nil
}

// register adds c to reg, or returns the equivalent collector reg already
// holds.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	var zero C
	return zero, fmt.Errorf("registering metrics: %w", err)
}

func (m *Metrics) Name() string { return NameMetrics }

func (m *Metrics) Process(ctx context.Context, req *transport.Request, next Handler) (*transport.Response, error) {
	m.inFlight.Inc()
	defer m.inFlight.Dec()

	start := time.Now()
	resp, err := next(ctx, req)
	m.duration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
	m.requests.WithLabelValues(req.Method, outcome(resp, err)).Inc()
	return resp, err
}

func outcome(resp *transport.Response, err error) string {
	var rpcErr *transport.RPCError
	switch {
	case err == nil && resp != nil && resp.Error != nil:
		return "rpc_error"
	case err == nil:
		return "ok"
	case errors.Is(err, transport.ErrTimeout):
		return "timeout"
	case errors.Is(err, transport.ErrConnection):
		return "connection_error"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.As(err, &rpcErr):
		return "rpc_error"
	}
	return "error"
}
