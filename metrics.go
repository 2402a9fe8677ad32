package alsahal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	streamStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alsahal",
		Subsystem: "stream",
		Name:      "starts_total",
		Help:      "Streams that left standby",
	}, []string{"direction"})

	activeStreams = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "alsahal",
		Subsystem: "stream",
		Name:      "active",
		Help:      "Streams currently holding hardware",
	}, []string{"direction"})

	openFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alsahal",
		Subsystem: "stream",
		Name:      "open_failures_total",
		Help:      "Failed attempts to leave standby",
	}, []string{"direction"})

	underruns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "alsahal",
		Subsystem: "output",
		Name:      "underruns_total",
		Help:      "Playback underruns",
	})

	throttleSleep = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "alsahal",
		Subsystem: "output",
		Name:      "throttle_sleep_seconds",
		Help:      "Time a write slept waiting for hardware occupancy to drop",
		Buckets:   []float64{0, .002, .005, .01, .015, .022},
	})

	writeThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "alsahal",
		Subsystem: "output",
		Name:      "write_threshold_frames",
		Help:      "Target hardware occupancy",
	})

	currentThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "alsahal",
		Subsystem: "output",
		Name:      "current_threshold_frames",
		Help:      "Hardware occupancy threshold applied to the last write",
	})

	readFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "alsahal",
		Subsystem: "input",
		Name:      "read_failures_total",
		Help:      "Capture reads that returned an error",
	})

	resolverScans = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "alsahal",
		Subsystem: "resolver",
		Name:      "scans_total",
		Help:      "Endpoint scans performed by the card resolver",
	}, []string{"direction"})
)
