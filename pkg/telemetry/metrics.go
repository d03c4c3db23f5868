// Package telemetry exposes the Prometheus instrumentation for the detection
// pipeline. All collectors are registered on the default registry via
// promauto, so any handler serving promhttp picks them up.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	detectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentinel",
		Name:      "detections_total",
		Help:      "Detection requests processed, by severity outcome.",
	}, []string{"severity"})

	detectionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sentinel",
		Name:      "detection_latency_seconds",
		Help:      "End-to-end detection latency.",
		Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"tier"})

	screeningHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentinel",
		Name:      "screening_hits_total",
		Help:      "Fast-tier screenings that crossed the forwarding threshold, by family.",
	}, []string{"family"})

	deepClassifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentinel",
		Name:      "deep_classifications_total",
		Help:      "Deep-tier classifications, by outcome (ok, degraded, skipped).",
	}, []string{"outcome"})

	operatingTier = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sentinel",
		Name:      "operating_tier",
		Help:      "Current operating tier (1 for the active tier, 0 otherwise).",
	}, []string{"tier"})

	resourceCPU = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sentinel",
		Name:      "resource_cpu_fraction",
		Help:      "Last sampled CPU utilization fraction.",
	})

	resourceMemory = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sentinel",
		Name:      "resource_memory_fraction",
		Help:      "Last sampled memory utilization fraction.",
	})

	patternStoreSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sentinel",
		Name:      "pattern_store_entries",
		Help:      "Live entries in the adaptive pattern store.",
	})

	patternEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sentinel",
		Name:      "pattern_store_evictions_total",
		Help:      "Pattern entries removed by decay or capacity pressure.",
	})

	feedbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentinel",
		Name:      "feedback_total",
		Help:      "Feedback events, by agreement with the original verdict.",
	}, []string{"agreement"})

	archiveWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sentinel",
		Name:      "archive_writes_total",
		Help:      "Verdict archive writes, by result.",
	}, []string{"result"})
)

// ObserveDetection records one completed detection.
func ObserveDetection(severity string, tier string, latencySeconds float64) {
	detectionsTotal.WithLabelValues(severity).Inc()
	detectionLatency.WithLabelValues(tier).Observe(latencySeconds)
}

// ObserveScreeningHit records a fast-tier hit that crossed the threshold.
func ObserveScreeningHit(family string) {
	screeningHits.WithLabelValues(family).Inc()
}

// ObserveDeepClassification records a deep-tier outcome.
func ObserveDeepClassification(outcome string) {
	deepClassifications.WithLabelValues(outcome).Inc()
}

// SetOperatingTier marks the active operating tier gauge.
func SetOperatingTier(tier string) {
	for _, t := range []string{"full", "balanced", "conserving"} {
		v := 0.0
		if t == tier {
			v = 1
		}
		operatingTier.WithLabelValues(t).Set(v)
	}
}

// SetResourceSample records the latest resource fractions.
func SetResourceSample(cpuFraction, memoryFraction float64) {
	resourceCPU.Set(cpuFraction)
	resourceMemory.Set(memoryFraction)
}

// SetPatternStoreSize records the live entry count.
func SetPatternStoreSize(n int) {
	patternStoreSize.Set(float64(n))
}

// ObservePatternEviction records one evicted pattern entry.
func ObservePatternEviction() {
	patternEvictions.Inc()
}

// ObserveFeedback records a feedback event. agreement is "confirmed" or
// "contested".
func ObserveFeedback(agreement string) {
	feedbackTotal.WithLabelValues(agreement).Inc()
}

// ObserveArchiveWrite records a verdict archive write result ("ok", "error",
// "dropped").
func ObserveArchiveWrite(result string) {
	archiveWrites.WithLabelValues(result).Inc()
}
