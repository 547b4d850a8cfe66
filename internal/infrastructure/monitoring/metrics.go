package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Privileged execution metrics
	ElevatedCalls    *prometheus.CounterVec
	ElevatedDuration *prometheus.HistogramVec

	// Host probe metrics
	ProbeFailures *prometheus.CounterVec
	ProbeDuration *prometheus.HistogramVec

	// Service metrics
	ServiceCalls    *prometheus.CounterVec
	ServiceDuration *prometheus.HistogramVec

	// Broadcast metrics
	EventsPublished   *prometheus.CounterVec
	DeliveryFailures  *prometheus.CounterVec
	DroppedDeliveries prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the JSON health API
type Snapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	ElevatedCalls     int64   `json:"elevated_calls"`
	ElevatedDenied    int64   `json:"elevated_denied"`
	EventsPublished   int64   `json:"events_published"`
	ActiveConnections int64   `json:"active_connections"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector registered with reg.
// A nil reg registers with the Prometheus default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostsync_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hostsync_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),

		ElevatedCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostsync_elevated_calls_total",
				Help: "Privileged command executions by outcome kind",
			},
			[]string{"kind"},
		),
		ElevatedDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hostsync_elevated_duration_seconds",
				Help:    "Privileged command duration in seconds, including authentication",
				Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"kind"},
		),

		ProbeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostsync_probe_failures_total",
				Help: "Host probe failures by probe",
			},
			[]string{"probe"},
		),
		ProbeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hostsync_probe_duration_seconds",
				Help:    "Snapshot probe duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10},
			},
			[]string{"snapshot"},
		),

		ServiceCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostsync_service_calls_total",
				Help: "Total number of service tool calls",
			},
			[]string{"service", "tool", "status"},
		),
		ServiceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hostsync_service_duration_seconds",
				Help:    "Service tool call duration in seconds",
				Buckets: []float64{.001, .01, .1, .5, 1, 5, 30, 120},
			},
			[]string{"service", "tool"},
		),

		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostsync_events_published_total",
				Help: "Status events published by channel and success flag",
			},
			[]string{"channel", "success"},
		),
		DeliveryFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostsync_event_delivery_failures_total",
				Help: "Observer delivery failures by channel",
			},
			[]string{"channel"},
		),
		DroppedDeliveries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hostsync_ws_dropped_events_total",
				Help: "Events dropped because a WebSocket client queue was full",
			},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "hostsync_ws_connections",
				Help: "Number of connected WebSocket observers",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hostsync_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "hostsync_uptime_seconds",
			Help: "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordElevated records a privileged command execution
func (m *Metrics) RecordElevated(kind string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ElevatedCalls.WithLabelValues(kind).Inc()
	m.ElevatedDuration.WithLabelValues(kind).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.ElevatedCalls++
	if kind == "auth_denied" {
		m.snapshot.ElevatedDenied++
	}
	m.mu.Unlock()
}

// RecordProbeFailure records a failed host probe
func (m *Metrics) RecordProbeFailure(probe string) {
	if m == nil {
		return
	}
	m.ProbeFailures.WithLabelValues(probe).Inc()
}

// RecordSnapshot records how long a full snapshot took to assemble
func (m *Metrics) RecordSnapshot(snapshot string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ProbeDuration.WithLabelValues(snapshot).Observe(duration.Seconds())
}

// RecordServiceCall records a service tool call
func (m *Metrics) RecordServiceCall(service, tool, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ServiceCalls.WithLabelValues(service, tool, status).Inc()
	m.ServiceDuration.WithLabelValues(service, tool).Observe(duration.Seconds())
}

// RecordPublish records a published status event
func (m *Metrics) RecordPublish(channel string, success bool) {
	if m == nil {
		return
	}
	flag := "false"
	if success {
		flag = "true"
	}
	m.EventsPublished.WithLabelValues(channel, flag).Inc()

	m.mu.Lock()
	m.snapshot.EventsPublished++
	m.mu.Unlock()
}

// RecordDeliveryFailure records an observer that failed to take an event
func (m *Metrics) RecordDeliveryFailure(channel string) {
	if m == nil {
		return
	}
	m.DeliveryFailures.WithLabelValues(channel).Inc()
}

// IncDropped increments the dropped WebSocket deliveries counter
func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.DroppedDeliveries.Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// GetSnapshot returns the current values for the JSON API
func (m *Metrics) GetSnapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
