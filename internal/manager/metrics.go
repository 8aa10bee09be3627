package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelhost",
			Subsystem: "manager",
			Name:      "loads_total",
			Help:      "Model load attempts by outcome",
		},
		[]string{"outcome"},
	)

	workerUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "modelhost",
			Subsystem: "manager",
			Name:      "worker_up",
			Help:      "1 while a worker process is running",
		},
	)

	inferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modelhost",
			Subsystem: "manager",
			Name:      "inference_seconds",
			Help:      "Duration of prompt round trips to the worker",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"outcome"},
	)

	teardownDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "modelhost",
			Subsystem: "manager",
			Name:      "teardown_seconds",
			Help:      "Time spent draining and stopping a worker",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, workerUp, inferenceDuration, teardownDuration)
}
