// Package metrics exposes Prometheus metrics for the poll loop, writes and
// the decoded controller values.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lmaertin/pooldose-go/internal/values"
)

const metricPrefix = "pooldose_"

// Metrics holds the collectors on a private registry so several instances
// can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	pollsTotal    *prometheus.CounterVec
	pollDuration  prometheus.Histogram
	deviceOnline  prometheus.Gauge
	valuesDecoded prometheus.Gauge
	valueGauge    *prometheus.GaugeVec

	writesTotal   *prometheus.CounterVec
	writeDuration *prometheus.HistogramVec

	sinkErrors *prometheus.CounterVec
}

// New creates and registers every collector, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "polls_total",
				Help: "Total polls of the controller by status",
			},
			[]string{"status"},
		),
		pollDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "poll_duration_seconds",
				Help:    "Duration of a controller poll in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		deviceOnline: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "device_online",
				Help: "1 when the last poll returned fresh data",
			},
		),
		valuesDecoded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "values_decoded",
				Help: "Number of values decoded from the last snapshot",
			},
		),
		valueGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "value",
				Help: "Current numeric value; booleans are exported as 0 or 1",
			},
			[]string{"device_id", "name", "kind", "unit"},
		),
		writesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "writes_total",
				Help: "Total write attempts by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		writeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "write_duration_seconds",
				Help:    "Write latency in seconds by outcome",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		sinkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sink_errors_total",
				Help: "Total failures delivering a poll to a sink",
			},
			[]string{"sink"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.pollsTotal,
		m.pollDuration,
		m.deviceOnline,
		m.valuesDecoded,
		m.valueGauge,
		m.writesTotal,
		m.writeDuration,
		m.sinkErrors,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObservePoll records one poll. Online is true only when the poll returned
// fresh data.
func (m *Metrics) ObservePoll(status string, online bool, d time.Duration) {
	m.pollsTotal.WithLabelValues(status).Inc()
	m.pollDuration.Observe(d.Seconds())
	if online {
		m.deviceOnline.Set(1)
	} else {
		m.deviceOnline.Set(0)
	}
}

// ObserveSnapshot exports every numeric or boolean value of a snapshot.
// Text values are counted but not exported.
func (m *Metrics) ObserveSnapshot(deviceID string, snapshot values.StructuredSnapshot) {
	m.valuesDecoded.Set(float64(snapshot.Len()))

	snapshot.Each(func(name string, d values.Decoded) {
		v, unit, ok := numeric(d)
		if !ok {
			return
		}
		m.valueGauge.WithLabelValues(deviceID, name, string(d.Kind()), unit).Set(v)
	})
}

// ObserveWrite records one write attempt.
func (m *Metrics) ObserveWrite(source, outcome string, d time.Duration) {
	m.writesTotal.WithLabelValues(source, outcome).Inc()
	m.writeDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// SinkError counts a failed delivery to the named sink.
func (m *Metrics) SinkError(sink string) {
	m.sinkErrors.WithLabelValues(sink).Inc()
}

func numeric(d values.Decoded) (float64, string, bool) {
	switch v := d.(type) {
	case values.SensorValue:
		switch x := v.Value.(type) {
		case float64:
			return x, v.Unit.String(), true
		case bool:
			return boolFloat(x), v.Unit.String(), true
		}
	case values.NumberValue:
		return v.Value, v.Unit.String(), true
	case values.BinaryValue:
		return boolFloat(v.Value), "", true
	case values.SwitchValue:
		return boolFloat(v.Value), "", true
	}
	return 0, "", false
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
