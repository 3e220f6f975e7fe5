// Package defaults holds the default configuration values for the
// capture pipeline and the bus publisher, per the external interface
// contract.
package defaults

import "time"

const (
	// ServiceName is used as the Prometheus metric namespace and as the
	// default Kafka client ID.
	ServiceName = "flowcap"

	// PortID is the default (and, for now, only) NIC port this pipeline
	// drains.
	PortID = 0

	// NumMbufs is the default buffer pool size.
	NumMbufs = 8191

	// CacheSize is the default per-core buffer pool cache size.
	CacheSize = 250

	// BurstSize is the default maximum number of buffers drained per
	// RxBurst call.
	BurstSize = 32

	// RxRingSize is the default receive queue descriptor depth.
	RxRingSize = 1024

	// TxRingSize is the default transmit queue descriptor depth.
	TxRingSize = 1024

	// IdleExpiry is the default flow idle timeout before eviction.
	IdleExpiry = 300 * time.Second

	// SweepInterval is the default minimum spacing between opportunistic
	// flow table sweeps.
	SweepInterval = 60 * time.Second

	// BootstrapServers is the default Kafka bootstrap address.
	BootstrapServers = "localhost:9092"

	// Topic is the default Kafka topic feature vectors are published to.
	Topic = "network-flows"
)
