package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/23skdu/longbow-axi/internal/accel"
)

var (
	configuredTotal atomic.Int64
	rejectedTotal   atomic.Int64
)

var (
	DiscoverTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accel_discover_total",
		Help: "Capability discovery attempts by outcome",
	}, []string{"family", "result"})

	ConfigureTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accel_configure_total",
		Help: "Configuration attempts by outcome",
	}, []string{"family", "result"})

	ValidationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accel_validation_errors_total",
		Help: "Rejected descriptors by error class",
	}, []string{"family", "kind"})

	StartTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accel_start_total",
		Help: "Start requests by outcome",
	}, []string{"family", "result"})

	CompletionWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "accel_completion_wait_seconds",
		Help:    "Time spent polling DMA completion counters",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"family"})

	FeatureMapRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "accel_feature_map_rows",
		Help: "Feature-map buffer rows allocated by the last configuration",
	}, []string{"family"})

	MidResultRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "accel_mid_result_rows",
		Help: "Intermediate-result rows allocated by the last configuration",
	}, []string{"family"})

	PerfCycles = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "accel_perf_cycles",
		Help: "Cycle count read from the performance monitor",
	}, []string{"family"})

	PerfBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "accel_perf_bytes",
		Help: "Bytes transferred per DMA channel, read from the performance monitor",
	}, []string{"family", "channel"})
)

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func RecordDiscover(family string, err error) {
	DiscoverTotal.WithLabelValues(family, accel.Kind(err)).Inc()
}

// RecordConfigure counts one configure call and, on rejection, its error class.
func RecordConfigure(family string, err error) {
	ConfigureTotal.WithLabelValues(family, result(err)).Inc()
	if err != nil {
		rejectedTotal.Add(1)
		ValidationErrors.WithLabelValues(family, accel.Kind(err)).Inc()
		return
	}
	configuredTotal.Add(1)
}

func RecordStart(family string, err error) {
	StartTotal.WithLabelValues(family, accel.Kind(err)).Inc()
}

func RecordCompletionWait(family string, d time.Duration) {
	CompletionWait.WithLabelValues(family).Observe(d.Seconds())
}

// RecordAllocation publishes the buffer sizing chosen for the current layer.
// Families without a feature-map cache pass rows < 0.
func RecordAllocation(family string, fmRows, midRows int) {
	if fmRows >= 0 {
		FeatureMapRows.WithLabelValues(family).Set(float64(fmRows))
	}
	if midRows >= 0 {
		MidResultRows.WithLabelValues(family).Set(float64(midRows))
	}
}

func RecordPerf(family string, cycles uint32, bytes map[string]uint32) {
	PerfCycles.WithLabelValues(family).Set(float64(cycles))
	for ch, n := range bytes {
		PerfBytes.WithLabelValues(family, ch).Set(float64(n))
	}
}

// ConfiguredTotal returns the number of accepted configurations since start.
func ConfiguredTotal() int64 { return configuredTotal.Load() }

// RejectedTotal returns the number of rejected configurations since start.
func RejectedTotal() int64 { return rejectedTotal.Load() }
