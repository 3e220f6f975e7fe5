package capture

import (
	"github.com/flowmetrics/flowcap/pkg/defaults"
	"github.com/prometheus/client_golang/prometheus"
)

const metricsSubsystem = "capture"

var (
	packetsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: defaults.ServiceName,
		Subsystem: metricsSubsystem,
		Name:      "packets_processed_total",
		Help:      "Number of packets successfully processed into feature vectors",
	})

	packetsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: defaults.ServiceName,
		Subsystem: metricsSubsystem,
		Name:      "packets_dropped_total",
		Help:      "Number of feature vectors dropped because publishing failed",
	})

	parseErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: defaults.ServiceName,
		Subsystem: metricsSubsystem,
		Name:      "parse_errors_total",
		Help:      "Number of packets that downgraded to an unparseable record",
	})

	burstSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: defaults.ServiceName,
		Subsystem: metricsSubsystem,
		Name:      "rx_burst_size",
		Help:      "Number of buffers returned per RxBurst call",
		Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64, 128},
	})

	activeFlows = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: defaults.ServiceName,
		Subsystem: metricsSubsystem,
		Name:      "flow_table_active_flows",
		Help:      "Number of flows currently tracked in the flow table",
	})

	flowsEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: defaults.ServiceName,
		Subsystem: metricsSubsystem,
		Name:      "flow_table_evicted_total",
		Help:      "Number of flows evicted by the idle sweeper",
	})
)

func init() {
	prometheus.MustRegister(
		packetsProcessed,
		packetsDropped,
		parseErrors,
		burstSize,
		activeFlows,
		flowsEvicted,
	)
}
