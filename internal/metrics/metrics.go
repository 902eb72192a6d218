// Package metrics collects and exposes control-plane observability data.
//
// # Design rationale
//
// Two metric stores coexist in this package:
//
//  1. The in-process Metrics struct (atomic counters) for a lightweight
//     JSON /metrics endpoint.
//  2. A Prometheus registry (prometheus.go) for scraping by external
//     monitoring systems.
//
// # Concurrency
//
// Every counter here is updated from request-handling goroutines and must
// stay lock-free; atomic.Int64 is used throughout instead of a mutex.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics collects and exposes control-plane runtime metrics.
type Metrics struct {
	VMsSpawned   atomic.Int64
	VMsDestroyed atomic.Int64
	ForksTotal   atomic.Int64
	ForkedVMs    atomic.Int64

	AcquireSuccessTotal   atomic.Int64
	AcquireExhaustedTotal atomic.Int64
	ReleaseTotal          atomic.Int64
	ReleaseRecycledTotal  atomic.Int64

	EnsureWarmCallsTotal atomic.Int64

	startTime time.Time
}

var global = &Metrics{startTime: time.Now()}

// Global returns the global metrics instance.
func Global() *Metrics {
	return global
}

// StartTime returns the time when the metrics system was initialized.
func StartTime() time.Time {
	return global.startTime
}

// RecordVMSpawned records a VM placed into a warm pool via SpawnWarm.
func (m *Metrics) RecordVMSpawned() {
	m.VMsSpawned.Add(1)
	recordPrometheusVMSpawned()
}

// RecordVMDestroyed records a VM torn down by Destroy.
func (m *Metrics) RecordVMDestroyed() {
	m.VMsDestroyed.Add(1)
	recordPrometheusVMDestroyed()
}

// RecordFork records one Fork call and the number of children it produced.
func (m *Metrics) RecordFork(children int) {
	m.ForksTotal.Add(1)
	m.ForkedVMs.Add(int64(children))
	recordPrometheusFork(children)
}

// RecordAcquire records the outcome of an Acquire call.
func (m *Metrics) RecordAcquire(ok bool) {
	if ok {
		m.AcquireSuccessTotal.Add(1)
	} else {
		m.AcquireExhaustedTotal.Add(1)
	}
	recordPrometheusAcquire(ok)
}

// RecordRelease records a Release call and whether it requested recycling.
func (m *Metrics) RecordRelease(recycle bool) {
	m.ReleaseTotal.Add(1)
	if recycle {
		m.ReleaseRecycledTotal.Add(1)
	}
	recordPrometheusRelease(recycle)
}

// RecordEnsureWarm records one EnsureWarm reconciliation call.
func (m *Metrics) RecordEnsureWarm() {
	m.EnsureWarmCallsTotal.Add(1)
	recordPrometheusEnsureWarm()
}

// SetWarmQueueDepth reports the current warm-queue length for one
// (pool, shape) pair.
func (m *Metrics) SetWarmQueueDepth(poolID, shapeKey string, depth int) {
	setPrometheusWarmQueueDepth(poolID, shapeKey, depth)
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
		"vms": map[string]interface{}{
			"spawned":   m.VMsSpawned.Load(),
			"destroyed": m.VMsDestroyed.Load(),
		},
		"fork": map[string]interface{}{
			"calls":    m.ForksTotal.Load(),
			"children": m.ForkedVMs.Load(),
		},
		"acquire": map[string]interface{}{
			"success":   m.AcquireSuccessTotal.Load(),
			"exhausted": m.AcquireExhaustedTotal.Load(),
		},
		"release": map[string]interface{}{
			"total":    m.ReleaseTotal.Load(),
			"recycled": m.ReleaseRecycledTotal.Load(),
		},
		"ensure_warm_calls": m.EnsureWarmCallsTotal.Load(),
	}
}

// JSONHandler returns an HTTP handler that exposes metrics in JSON format.
func (m *Metrics) JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.Snapshot())
	})
}
