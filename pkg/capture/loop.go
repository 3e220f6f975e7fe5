// Package capture implements the single-threaded, cooperative hot loop
// that owns one RX queue end to end: burst receive, header parsing,
// flow table update and feature vector emission.
package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/flowmetrics/flowcap/pkg/capturetypes"
	"github.com/flowmetrics/flowcap/pkg/defaults"
	"github.com/flowmetrics/flowcap/pkg/driver"
	"github.com/flowmetrics/flowcap/pkg/flow"
	"github.com/flowmetrics/flowcap/pkg/logging"
	"github.com/flowmetrics/flowcap/pkg/parser"
)

// emptyBurstSleep is how long the loop sleeps after an RxBurst call
// returns zero buffers, before trying again.
const emptyBurstSleep = time.Millisecond

// Config carries the fixed capture parameters from the external
// interface contract's capture section.
type Config struct {
	PortID     uint16
	NbMbufs    int
	CacheSize  int
	BurstSize  int
	RxRingSize int
	TxRingSize int

	IdleExpiry    time.Duration
	SweepInterval time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		PortID:        defaults.PortID,
		NbMbufs:       defaults.NumMbufs,
		CacheSize:     defaults.CacheSize,
		BurstSize:     defaults.BurstSize,
		RxRingSize:    defaults.RxRingSize,
		TxRingSize:    defaults.TxRingSize,
		IdleExpiry:    defaults.IdleExpiry,
		SweepInterval: defaults.SweepInterval,
	}
}

// Emitter is the publisher boundary this loop hands finished feature
// vectors to. Implementations must be safe to call synchronously from
// the hot path; a false return means the vector was dropped.
type Emitter interface {
	Emit(ctx context.Context, v flow.Vector) bool
}

const dataRoomSize = 2048

// Loop is a single capture state machine bound to one driver adapter
// and one flow table. It is not safe for concurrent use: exactly one
// goroutine must call Run.
type Loop struct {
	cfg     Config
	adapter driver.Adapter
	table   *flow.Table

	state     State
	pool      driver.PoolHandle
	parseErrs capturetypes.ParsingErrTracker

	stopRequested bool
}

// New constructs a Loop in the Uninitialized state.
func New(adapter driver.Adapter, cfg Config) *Loop {
	return &Loop{
		cfg:     cfg,
		adapter: adapter,
		table:   flow.NewTable(cfg.IdleExpiry, cfg.SweepInterval),
		state:   StateUninitialized,
	}
}

// State returns the loop's current lifecycle state.
func (l *Loop) State() State {
	return l.state
}

// Initialize sets up the driver environment, buffer pool and port. It
// is idempotent: calling it again once Initialized is a no-op.
func (l *Loop) Initialize(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	if l.state == StateInitialized || l.state == StateRunning {
		return nil
	}

	args := []string{"flowcap", "-c", "0x1", "-n", "4", "--huge-dir", "/dev/hugepages", "--proc-type", "auto"}
	if _, err := l.adapter.InitEnv(args); err != nil {
		l.state = StateErrored
		return fmt.Errorf("capture: driver environment init failed: %w", err)
	}

	ports, err := l.adapter.PortCount()
	if err != nil {
		l.state = StateErrored
		return fmt.Errorf("capture: failed to query port count: %w", err)
	}
	if ports == 0 {
		l.state = StateErrored
		return fmt.Errorf("capture: no usable ports reported by driver")
	}

	pool, err := l.adapter.CreateBufferPool("flowcap_mbufs", l.cfg.NbMbufs, l.cfg.CacheSize, dataRoomSize, 0)
	if err != nil {
		l.state = StateErrored
		return fmt.Errorf("capture: failed to create buffer pool: %w", err)
	}
	l.pool = pool

	if err := l.adapter.ConfigurePort(l.cfg.PortID, 1, 1); err != nil {
		l.state = StateErrored
		return fmt.Errorf("capture: failed to configure port %d: %w", l.cfg.PortID, err)
	}
	if err := l.adapter.SetupRxQueue(l.cfg.PortID, 0, l.cfg.RxRingSize, 0, l.pool); err != nil {
		l.state = StateErrored
		return fmt.Errorf("capture: failed to set up rx queue: %w", err)
	}
	if err := l.adapter.SetupTxQueue(l.cfg.PortID, 0, l.cfg.TxRingSize, 0); err != nil {
		l.state = StateErrored
		return fmt.Errorf("capture: failed to set up tx queue: %w", err)
	}
	if err := l.adapter.StartPort(l.cfg.PortID); err != nil {
		l.state = StateErrored
		return fmt.Errorf("capture: failed to start port %d: %w", l.cfg.PortID, err)
	}

	l.state = StateInitialized
	logger.Info("capture loop initialized")
	return nil
}

// Stop requests a graceful shutdown. The in-flight burst still drains
// and releases every buffer; no new burst is issued afterwards.
func (l *Loop) Stop() {
	l.stopRequested = true
}

// Run drives the hot loop until Stop is called or ctx is cancelled. It
// transitions Initialized -> Running on entry and Running -> Stopped on
// exit.
func (l *Loop) Run(ctx context.Context, emit Emitter) error {
	if l.state != StateInitialized {
		return fmt.Errorf("capture: Run called from state %s, expected %s", l.state, StateInitialized)
	}
	logger := logging.FromContext(ctx)
	l.state = StateRunning

	for !l.stopRequested {
		select {
		case <-ctx.Done():
			l.stopRequested = true
			continue
		default:
		}

		handles, err := l.adapter.RxBurst(ctx, l.cfg.PortID, 0, l.cfg.BurstSize)
		if err != nil {
			logger.Errorf("rx burst error: %v", err)
			l.state = StateErrored
			return fmt.Errorf("capture: rx burst failed: %w", err)
		}

		burstSize.Observe(float64(len(handles)))
		if len(handles) == 0 {
			time.Sleep(emptyBurstSleep)
			continue
		}

		for _, h := range handles {
			l.processBuffer(ctx, h, emit)
		}

		now := time.Now()
		if removed := l.table.MaybeSweep(now); removed > 0 {
			flowsEvicted.Add(float64(removed))
		}
		activeFlows.Set(float64(l.table.Len()))
	}

	l.state = StateStopped
	logger.Info("capture loop stopped", "parse_errors", l.parseErrs.Sum())
	return nil
}

// ParseErrors returns the per-kind parsing error counts accumulated over
// the loop's lifetime.
func (l *Loop) ParseErrors() capturetypes.ParsingErrTracker {
	return l.parseErrs
}

// processBuffer handles exactly one received buffer: parse, update,
// emit, release. The release always runs, on every return path,
// including a parser or emitter panic.
func (l *Loop) processBuffer(ctx context.Context, h driver.BufferHandle, emit Emitter) {
	defer l.adapter.FreeBuffer(h)
	defer func() {
		if r := recover(); r != nil {
			parseErrors.Inc()
			logging.FromContext(ctx).Errorf("recovered from panic processing buffer: %v", r)
		}
	}()

	captureTime := float64(time.Now().UnixNano()) / 1e9
	data := l.adapter.BufferData(h)

	var pkt parser.Packet
	if l.adapter.LinkType() == driver.LinkTypeIP {
		pkt = parser.ParseIP(data, l.adapter.BufferWireLen(h), captureTime)
	} else {
		pkt = parser.Parse(data, captureTime)
	}

	var vec flow.Vector
	if !pkt.Ok {
		parseErrors.Inc()
		l.parseErrs[pkt.Errno]++
		vec = flow.NewUnparsed(pkt, time.Now())
	} else {
		key, isForward := flow.NewKey(pkt.SrcIP, pkt.DstIP, pkt.SrcPort, pkt.DstPort, pkt.Protocol)
		st := l.table.Touch(key)
		st.Update(pkt.Length, pkt.Timestamp, isForward, pkt.TCPFlags, pkt.TCPWindow)
		vec = flow.New(pkt, st, time.Now())
	}

	packetsProcessed.Inc()
	if !emit.Emit(ctx, vec) {
		packetsDropped.Inc()
	}
}
