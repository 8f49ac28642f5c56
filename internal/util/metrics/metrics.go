// Package metrics holds the shared Prometheus bucket schemes and label
// sets for this module's instrumentation (currently cmd/demo's printer
// gauge), mirroring
// the role internal/util/metrics plays for cdc-sink's own
// staging/stage metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// LatencyBuckets is shared by every duration histogram in this module.
var LatencyBuckets = []float64{
	.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

// CollectionLabels is the label set attached to per-collection metrics.
var CollectionLabels = []string{"collection"}

// QueryLabels is the label set attached to per-live-query metrics.
var QueryLabels = []string{"query"}

// MustRegister is a thin wrapper so callers in this module don't each
// need to import prometheus directly just to ignore the bool return.
func MustRegister(c prometheus.Collector) {
	prometheus.MustRegister(c)
}
