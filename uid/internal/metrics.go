package internal

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ClaimsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uid_segment_claims_total",
		Help: "Total number of segment claims by sequence name and result",
	}, []string{"name", "result"})

	ClaimConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uid_segment_claim_conflicts_total",
		Help: "Total number of lost compare-and-swap races while claiming",
	}, []string{"name"})

	ClaimLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "uid_segment_claim_duration_seconds",
		Help:    "Histogram of segment claim latency including retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"name"})

	PreloadFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uid_preload_fallback_total",
		Help: "Times a caller gave up waiting for the background preload and claimed synchronously",
	}, []string{"name"})

	SegmentRemaining = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "uid_segment_remaining",
		Help: "Ids left in the active segment at the time it was installed",
	}, []string{"name"})
)

// RegisterMetrics 注册全部指标，重复注册视为成功
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{ClaimsTotal, ClaimConflicts, ClaimLatency, PreloadFallbacks, SegmentRemaining} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
