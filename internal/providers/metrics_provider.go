package providers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"smd/internal/structures"
	"time"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	IncFramesProcessed(camera string)
	IncViolations(camera string)
	IncMalformedMessages(camera string)
	SetSessionFPS(camera string, fps float64)
	IncAlertsEmitted(severity string)
	IncAlertsThrottled()
	SetRecordingsActive(count int)
	ObservePersistenceDuration(duration time.Duration)
}

// SessionCounter is the narrow view of the monitor service the metrics
// gauges poll. Kept local so the provider does not depend on services.
type SessionCounter interface {
	SessionCount() int
	StreamingCount() int
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	framesProcessed     *prometheus.CounterVec
	violations          *prometheus.CounterVec
	malformedMessages   *prometheus.CounterVec
	sessionFPS          *prometheus.GaugeVec
	alertsEmitted       *prometheus.CounterVec
	alertsThrottled     prometheus.Counter
	recordingsActive    prometheus.Gauge
	persistenceDuration prometheus.Histogram
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) IncFramesProcessed(camera string) {
	m.framesProcessed.WithLabelValues(camera).Inc()
}

func (m *MetricsProvider) IncViolations(camera string) {
	m.violations.WithLabelValues(camera).Inc()
}

func (m *MetricsProvider) IncMalformedMessages(camera string) {
	m.malformedMessages.WithLabelValues(camera).Inc()
}

func (m *MetricsProvider) SetSessionFPS(camera string, fps float64) {
	m.sessionFPS.WithLabelValues(camera).Set(fps)
}

func (m *MetricsProvider) IncAlertsEmitted(severity string) {
	m.alertsEmitted.WithLabelValues(severity).Inc()
}

func (m *MetricsProvider) IncAlertsThrottled() {
	m.alertsThrottled.Inc()
}

func (m *MetricsProvider) SetRecordingsActive(count int) {
	m.recordingsActive.Set(float64(count))
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config, counter SessionCounter) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	m := &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "smd_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smd_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "smd_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "smd_cache_misses_total",
			Help: "Total number of cache misses",
		}),

		framesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "smd_frames_processed_total",
			Help: "Total number of annotated frames processed per camera",
		}, []string{"camera"}),

		violations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "smd_violations_total",
			Help: "Total number of counted safety violations per camera",
		}, []string{"camera"}),

		malformedMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "smd_malformed_messages_total",
			Help: "Total number of dropped malformed stream messages per camera",
		}, []string{"camera"}),

		sessionFPS: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smd_session_fps",
			Help: "Smoothed frames per second per streaming camera",
		}, []string{"camera"}),

		alertsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "smd_alerts_emitted_total",
			Help: "Total number of audible alerts emitted per severity",
		}, []string{"severity"}),

		alertsThrottled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "smd_alerts_throttled_total",
			Help: "Total number of alerts suppressed by the cooldown window",
		}),

		recordingsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "smd_recordings_active",
			Help: "Number of sessions currently being recorded",
		}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "smd_persistence_duration_seconds",
			Help:    "Duration of persistence operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "smd_sessions_total",
		Help: "Total number of enrolled camera sessions",
	}, func() float64 {
		return float64(counter.SessionCount())
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "smd_sessions_streaming",
		Help: "Number of sessions currently streaming",
	}, func() float64 {
		return float64(counter.StreamingCount())
	})

	return m
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) IncFramesProcessed(_ string)                      {}
func (n *noopMetrics) IncViolations(_ string)                           {}
func (n *noopMetrics) IncMalformedMessages(_ string)                    {}
func (n *noopMetrics) SetSessionFPS(_ string, _ float64)                {}
func (n *noopMetrics) IncAlertsEmitted(_ string)                        {}
func (n *noopMetrics) IncAlertsThrottled()                              {}
func (n *noopMetrics) SetRecordingsActive(_ int)                        {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
