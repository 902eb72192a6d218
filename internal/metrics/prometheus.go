package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps prometheus collectors for the control plane.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	vmsSpawned   prometheus.Counter
	vmsDestroyed prometheus.Counter

	forksTotal  prometheus.Counter
	forkedVMs   prometheus.Counter
	forkSize    prometheus.Histogram

	acquireTotal *prometheus.CounterVec
	releaseTotal *prometheus.CounterVec

	ensureWarmCallsTotal prometheus.Counter
	warmQueueDepth       *prometheus.GaugeVec

	uptime prometheus.GaugeFunc
}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem under the
// given namespace (typically "hc").
func InitPrometheus(namespace string) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		vmsSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "vms_spawned_total", Help: "Total warm VMs spawned",
		}),
		vmsDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "vms_destroyed_total", Help: "Total VMs destroyed",
		}),
		forksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "forks_total", Help: "Total Fork calls",
		}),
		forkedVMs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "forked_vms_total", Help: "Total child VMs produced by Fork",
		}),
		forkSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "fork_size", Help: "Children requested per Fork call",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
		}),
		acquireTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "acquire_total", Help: "Acquire calls by outcome",
		}, []string{"result"}),
		releaseTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "release_total", Help: "Release calls by recycle flag",
		}, []string{"recycle"}),
		ensureWarmCallsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ensure_warm_calls_total", Help: "Total EnsureWarm reconciliation calls",
		}),
		warmQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "warm_queue_depth", Help: "Current warm-queue length by pool and shape",
		}, []string{"pool", "shape"}),
	}

	pm.uptime = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Name: "uptime_seconds", Help: "Time since the daemon started",
	}, func() float64 {
		return time.Since(StartTime()).Seconds()
	})

	registry.MustRegister(
		pm.vmsSpawned,
		pm.vmsDestroyed,
		pm.forksTotal,
		pm.forkedVMs,
		pm.forkSize,
		pm.acquireTotal,
		pm.releaseTotal,
		pm.ensureWarmCallsTotal,
		pm.warmQueueDepth,
		pm.uptime,
	)

	promMetrics = pm
}

func recordPrometheusVMSpawned() {
	if promMetrics == nil {
		return
	}
	promMetrics.vmsSpawned.Inc()
}

func recordPrometheusVMDestroyed() {
	if promMetrics == nil {
		return
	}
	promMetrics.vmsDestroyed.Inc()
}

func recordPrometheusFork(children int) {
	if promMetrics == nil {
		return
	}
	promMetrics.forksTotal.Inc()
	promMetrics.forkedVMs.Add(float64(children))
	promMetrics.forkSize.Observe(float64(children))
}

func recordPrometheusAcquire(ok bool) {
	if promMetrics == nil {
		return
	}
	result := "success"
	if !ok {
		result = "exhausted"
	}
	promMetrics.acquireTotal.WithLabelValues(result).Inc()
}

func recordPrometheusRelease(recycle bool) {
	if promMetrics == nil {
		return
	}
	label := "false"
	if recycle {
		label = "true"
	}
	promMetrics.releaseTotal.WithLabelValues(label).Inc()
}

func recordPrometheusEnsureWarm() {
	if promMetrics == nil {
		return
	}
	promMetrics.ensureWarmCallsTotal.Inc()
}

func setPrometheusWarmQueueDepth(poolID, shapeKey string, depth int) {
	if promMetrics == nil {
		return
	}
	promMetrics.warmQueueDepth.WithLabelValues(poolID, shapeKey).Set(float64(depth))
}

// PrometheusHandler returns an HTTP handler for Prometheus metrics scraping.
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the prometheus registry (for custom collectors).
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
