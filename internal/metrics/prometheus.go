package metrics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

var (
	defaultCollector *MetricsCollector
	once             sync.Once
)

// GetMetricsCollector returns the singleton collector registered on the default registry
func GetMetricsCollector(namespace, appName string) *MetricsCollector {
	once.Do(func() {
		defaultCollector = NewMetricsCollector(namespace, appName, prometheus.DefaultRegisterer)
	})
	return defaultCollector
}

type MetricsCollector struct {
	AppName         string
	EntriesMasked   *prometheus.CounterVec
	EntriesDropped  *prometheus.CounterVec
	BodyFallbacks   *prometheus.CounterVec
	MaskDuration    *prometheus.HistogramVec
	BatchDuration   *prometheus.HistogramVec
	BatchRecords    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestCounter  *prometheus.CounterVec
	ErrorCounter    *prometheus.CounterVec
	ActiveRequests  prometheus.Gauge
	QueueSize       *prometheus.GaugeVec
}

type MetricsResponse struct {
	AppName   string                 `json:"app_name"`
	Timestamp time.Time              `json:"timestamp"`
	Metrics   map[string]interface{} `json:"metrics"`
}

// NewMetricsCollector registers every metric on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration.
func NewMetricsCollector(namespace, appName string, reg prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(reg)
	return &MetricsCollector{
		AppName: appName,
		EntriesMasked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entries_masked_total",
				Help:      "Entries passed through the masking engine",
			},
			[]string{"app", "sink", "kind", "level"},
		),
		EntriesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entries_dropped_total",
				Help:      "Masked entries that never reached a sink",
			},
			[]string{"app", "sink", "reason"},
		),
		BodyFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "body_fallback_total",
				Help:      "Bodies replaced by the sentinel because they were not JSON",
			},
			[]string{"app", "sink"},
		),
		MaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "mask_duration_seconds",
				Help:      "Time spent masking one entry",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
			},
			[]string{"app", "sink"},
		),
		BatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_save_duration_seconds",
				Help:      "Repository batch save duration",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"app", "operation"},
		),
		BatchRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_save_records_total",
				Help:      "Records handed to the repository",
			},
			[]string{"app", "operation"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"app", "method", "path", "status"},
		),
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"app", "method", "path", "status"},
		),
		ErrorCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors",
			},
			[]string{"app", "type"},
		),
		ActiveRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Name:        "active_requests",
				Help:        "Number of API requests in flight",
				ConstLabels: prometheus.Labels{"app": appName},
			},
		),
		QueueSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_size",
				Help:      "Current size of the queue",
			},
			[]string{"app", "queue"},
		),
	}
}

// ObserveMask records one pass through the masking engine for a sink.
func (m *MetricsCollector) ObserveMask(sink, kind, level string, duration time.Duration, bodyFallback bool) {
	m.EntriesMasked.With(prometheus.Labels{
		"app":   m.AppName,
		"sink":  sink,
		"kind":  kind,
		"level": level,
	}).Inc()
	m.MaskDuration.With(prometheus.Labels{"app": m.AppName, "sink": sink}).Observe(duration.Seconds())
	if bodyFallback {
		m.BodyFallbacks.With(prometheus.Labels{"app": m.AppName, "sink": sink}).Inc()
	}
}

func (m *MetricsCollector) IncDropped(sink, reason string) {
	m.EntriesDropped.With(prometheus.Labels{"app": m.AppName, "sink": sink, "reason": reason}).Inc()
}

func (m *MetricsCollector) IncActiveRequests() {
	m.ActiveRequests.Inc()
}

func (m *MetricsCollector) DecActiveRequests() {
	m.ActiveRequests.Dec()
}

// LogError counts an error by type. The error text is not a label.
func (m *MetricsCollector) LogError(errorType string, _ error) {
	m.ErrorCounter.With(prometheus.Labels{"app": m.AppName, "type": errorType}).Inc()
}

func (m *MetricsCollector) ObserveBatchSave(operation string, duration time.Duration, batchSize int) {
	labels := prometheus.Labels{"app": m.AppName, "operation": operation}
	m.BatchDuration.With(labels).Observe(duration.Seconds())
	m.BatchRecords.With(labels).Add(float64(batchSize))
}

func (m *MetricsCollector) ObserveQueueSize(queue string, size float64) {
	m.QueueSize.With(prometheus.Labels{"app": m.AppName, "queue": queue}).Set(size)
}

// ObserveRequest records an API request
func (m *MetricsCollector) ObserveRequest(method, path, status string, duration time.Duration) {
	labels := prometheus.Labels{
		"app":    m.AppName,
		"method": method,
		"path":   path,
		"status": status,
	}
	m.RequestCounter.With(labels).Inc()
	m.RequestDuration.With(labels).Observe(duration.Seconds())
}

// GetMetricsJSON returns a JSON snapshot of the collector
func (m *MetricsCollector) GetMetricsJSON() ([]byte, error) {
	metrics := MetricsResponse{
		AppName:   m.AppName,
		Timestamp: time.Now(),
		Metrics: map[string]interface{}{
			"entries_masked":   counterValues(m.EntriesMasked),
			"entries_dropped":  counterValues(m.EntriesDropped),
			"body_fallbacks":   counterValues(m.BodyFallbacks),
			"mask_duration":    histogramValues(m.MaskDuration),
			"batch_records":    counterValues(m.BatchRecords),
			"requests_total":   counterValues(m.RequestCounter),
			"request_duration": histogramValues(m.RequestDuration),
			"errors_total":     counterValues(m.ErrorCounter),
			"active_requests":  gaugeValue(m.ActiveRequests),
			"queue_size":       gaugeVecValues(m.QueueSize),
		},
	}

	return json.Marshal(metrics)
}

func collect(c prometheus.Collector) []*dto.Metric {
	ch := make(chan prometheus.Metric, 1000)
	c.Collect(ch)
	close(ch)

	var out []*dto.Metric
	for metric := range ch {
		dtoMetric := &dto.Metric{}
		if err := metric.Write(dtoMetric); err != nil {
			continue
		}
		out = append(out, dtoMetric)
	}
	return out
}

func histogramValues(vec *prometheus.HistogramVec) map[string]float64 {
	metrics := make(map[string]float64)
	for _, dtoMetric := range collect(vec) {
		hist := dtoMetric.GetHistogram()
		name := labelString(dtoMetric)
		metrics[name+":sum"] = hist.GetSampleSum()
		metrics[name+":count"] = float64(hist.GetSampleCount())
	}
	return metrics
}

func counterValues(vec *prometheus.CounterVec) map[string]float64 {
	metrics := make(map[string]float64)
	for _, dtoMetric := range collect(vec) {
		metrics[labelString(dtoMetric)] = dtoMetric.GetCounter().GetValue()
	}
	return metrics
}

func gaugeVecValues(vec *prometheus.GaugeVec) map[string]float64 {
	metrics := make(map[string]float64)
	for _, dtoMetric := range collect(vec) {
		metrics[labelString(dtoMetric)] = dtoMetric.GetGauge().GetValue()
	}
	return metrics
}

func gaugeValue(gauge prometheus.Gauge) float64 {
	for _, dtoMetric := range collect(gauge) {
		return dtoMetric.GetGauge().GetValue()
	}
	return 0
}

func labelString(dtoMetric *dto.Metric) string {
	var labels []string
	for _, label := range dtoMetric.GetLabel() {
		if label.GetName() == "app" {
			continue
		}
		labels = append(labels, fmt.Sprintf("%s=%s", label.GetName(), label.GetValue()))
	}
	sort.Strings(labels)
	return strings.Join(labels, ",")
}
