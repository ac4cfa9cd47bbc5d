// Package metrics exposes the Supervisor's per-stage Prometheus gauges and
// counters: the scrape-facing half of the statistics view described in
// spec.md §4.7, complementing the store's own polling Stats() snapshot.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps the collectors scraped by an external monitoring
// stack. A single process-wide instance is installed by InitPrometheus at
// startup and reached by each worker through Global().
type PrometheusMetrics struct {
	registry *prometheus.Registry

	filesFetchedTotal  *prometheus.CounterVec // result=completed|failed
	fetchBytesTotal    prometheus.Counter
	fetchDuration      prometheus.Histogram
	volumesTotal       *prometheus.CounterVec // status=completed|failed
	decodeDuration     prometheus.Histogram
	decodeRetriesTotal prometheus.Counter
	productsTotal      *prometheus.CounterVec // product_type, status
	renderDuration     *prometheus.HistogramVec
	stuckResetTotal    *prometheus.CounterVec // entity
	storeVolumesGauge  *prometheus.GaugeVec   // status
	storeProductsGauge *prometheus.GaugeVec   // status
	workerLiveness     *prometheus.GaugeVec   // worker
}

var defaultBuckets = []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600}

var global *PrometheusMetrics

// InitPrometheus constructs the global metrics registry under namespace.
// Safe to call once at startup; subsequent calls replace the prior
// registry, which is only useful in tests.
func InitPrometheus(namespace string) *PrometheusMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		filesFetchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "files_fetched_total",
			Help: "Total files processed by the Fetcher, by outcome.",
		}, []string{"result"}),

		fetchBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "fetch_bytes_total",
			Help: "Total bytes streamed from the remote server.",
		}),

		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "fetch_duration_seconds",
			Help: "Time to download and verify one file.", Buckets: defaultBuckets,
		}),

		volumesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "volumes_total",
			Help: "Total volumes that reached a terminal decode status.",
		}, []string{"status"}),

		decodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "decode_duration_seconds",
			Help: "Time to decode, align and write one volume's container.", Buckets: defaultBuckets,
		}),

		decodeRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "decode_retries_total",
			Help: "Total decoder FFI retry attempts across all volumes.",
		}),

		productsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "products_total",
			Help: "Total render attempts that reached a terminal status.",
		}, []string{"product_type", "status"}),

		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "render_duration_seconds",
			Help: "Time to render one product.", Buckets: defaultBuckets,
		}, []string{"product_type"}),

		stuckResetTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "stuck_reset_total",
			Help: "Total rows reset from processing back to pending by the retention sweep.",
		}, []string{"entity"}),

		storeVolumesGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "store_volumes",
			Help: "Current count of volume rows by status, from the last poll.",
		}, []string{"status"}),

		storeProductsGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "store_products",
			Help: "Current count of product rows by status, from the last poll.",
		}, []string{"status"}),

		workerLiveness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "worker_alive",
			Help: "1 if the named worker's loop is running, 0 otherwise.",
		}, []string{"worker"}),
	}

	registry.MustRegister(
		pm.filesFetchedTotal, pm.fetchBytesTotal, pm.fetchDuration,
		pm.volumesTotal, pm.decodeDuration, pm.decodeRetriesTotal,
		pm.productsTotal, pm.renderDuration, pm.stuckResetTotal,
		pm.storeVolumesGauge, pm.storeProductsGauge, pm.workerLiveness,
	)

	global = pm
	return pm
}

// Global returns the metrics registry created by InitPrometheus, or nil if
// metrics were never initialized; callers no-op on a nil receiver.
func Global() *PrometheusMetrics {
	return global
}

// Handler returns the HTTP handler the Supervisor mounts at /metrics.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

func (pm *PrometheusMetrics) ObserveFetch(result string, bytes int64, seconds float64) {
	if pm == nil {
		return
	}
	pm.filesFetchedTotal.WithLabelValues(result).Inc()
	pm.fetchBytesTotal.Add(float64(bytes))
	pm.fetchDuration.Observe(seconds)
}

func (pm *PrometheusMetrics) ObserveVolume(status string, seconds float64, retries int) {
	if pm == nil {
		return
	}
	pm.volumesTotal.WithLabelValues(status).Inc()
	pm.decodeDuration.Observe(seconds)
	pm.decodeRetriesTotal.Add(float64(retries))
}

func (pm *PrometheusMetrics) ObserveProduct(productType, status string, seconds float64) {
	if pm == nil {
		return
	}
	pm.productsTotal.WithLabelValues(productType, status).Inc()
	pm.renderDuration.WithLabelValues(productType).Observe(seconds)
}

func (pm *PrometheusMetrics) ObserveStuckReset(entity string, count int64) {
	if pm == nil || count == 0 {
		return
	}
	pm.stuckResetTotal.WithLabelValues(entity).Add(float64(count))
}

func (pm *PrometheusMetrics) SetWorkerAlive(worker string, alive bool) {
	if pm == nil {
		return
	}
	v := 0.0
	if alive {
		v = 1.0
	}
	pm.workerLiveness.WithLabelValues(worker).Set(v)
}

// SetStoreGauges publishes the store's polling statistics snapshot onto the
// scrape-facing gauges.
func (pm *PrometheusMetrics) SetStoreGauges(pending, processing, completed, failed float64, products map[string]float64) {
	if pm == nil {
		return
	}
	pm.storeVolumesGauge.WithLabelValues("pending").Set(pending)
	pm.storeVolumesGauge.WithLabelValues("processing").Set(processing)
	pm.storeVolumesGauge.WithLabelValues("completed").Set(completed)
	pm.storeVolumesGauge.WithLabelValues("failed").Set(failed)
	for status, v := range products {
		pm.storeProductsGauge.WithLabelValues(status).Set(v)
	}
}
