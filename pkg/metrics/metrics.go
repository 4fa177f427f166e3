// Package metrics exposes the node's Prometheus collectors.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	rpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "JSON-RPC requests by method and error code (0 for success).",
		},
		[]string{"method", "code"},
	)
	rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "JSON-RPC request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	peersStored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "peers",
			Name:      "stored_total",
			Help:      "Peer records inserted or replaced, by subnetwork.",
		},
		[]string{"subnetwork"},
	)
)

// RegisterMetrics registers the collectors with the default registry once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(rpcRequests, rpcDuration, peersStored)
	})
}

// RecordRPC counts one answered request.
func RecordRPC(method string, code int, duration time.Duration) {
	RegisterMetrics()
	rpcRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	rpcDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordPeersStored adds n stored records for subnetwork.
func RecordPeersStored(subnetwork string, n int) {
	RegisterMetrics()
	if n > 0 {
		peersStored.WithLabelValues(subnetwork).Add(float64(n))
	}
}
