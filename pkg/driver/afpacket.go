package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/fako1024/gotools/concurrency"
	"github.com/fako1024/slimcap/capture"
	"github.com/fako1024/slimcap/capture/afpacket/afring"
	"github.com/fako1024/slimcap/filter"
)

// AFPacketAdapter backs the Adapter contract with a single AF_PACKET
// ring-buffer source per interface. Its RxBurst collects up to max
// packets from the ring buffer, one NextPacket call per packet. Buffer
// recycling is delegated to a gotools MemPool.
//
// slimcap strips the link layer: a capture.Packet carries a small
// metadata prefix followed by the bytes starting at the IP header, with
// the full on-wire length recorded separately. The adapter therefore
// reports LinkTypeIP, hands out IPLayer() slices from BufferData and
// surfaces TotalLen() through BufferWireLen.
//
// This adapter only ever backs port 0, queue 0: the single-RX-queue
// model is not negotiable here (see pkg/capture).
type AFPacketAdapter struct {
	iface string

	source  *afring.Source
	pool    concurrency.MemPool
	dataLen int

	promisc   bool
	snaplen   int
	blockSize int
	numBlocks int
}

// packetHdrOffset is the length of the metadata prefix slimcap keeps in
// front of the IP layer inside a capture.Packet buffer.
const packetHdrOffset = 6

// NewAFPacketAdapter constructs an adapter bound to iface. The ring
// buffer itself is not opened until StartPort.
func NewAFPacketAdapter(iface string, promisc bool) *AFPacketAdapter {
	return &AFPacketAdapter{
		iface:     iface,
		promisc:   promisc,
		snaplen:   2048,
		blockSize: 1 << 20,
		numBlocks: 4,
	}
}

func (a *AFPacketAdapter) InitEnv(args []string) (int, error) {
	// No process-wide environment to initialize for an AF_PACKET socket;
	// the argument vector exists purely to satisfy the adapter contract
	// shared with heavier (e.g. DPDK-style) drivers.
	return len(args), nil
}

func (a *AFPacketAdapter) PortCount() (uint16, error) {
	if a.iface == "" {
		return 0, errors.New("driver: no interface configured")
	}
	return 1, nil
}

func (a *AFPacketAdapter) CreateBufferPool(name string, n, cacheSize, dataRoomSize, numaSocket int) (PoolHandle, error) {
	a.pool = concurrency.NewMemPool(n)
	a.dataLen = dataRoomSize
	return a.pool, nil
}

func (a *AFPacketAdapter) ConfigurePort(port uint16, nRxQueues, nTxQueues int) error {
	if nRxQueues != 1 || nTxQueues != 1 {
		return fmt.Errorf("driver: only a single RX/TX queue is supported, got rx=%d tx=%d", nRxQueues, nTxQueues)
	}
	return nil
}

func (a *AFPacketAdapter) SetupRxQueue(port uint16, queue uint16, depth int, numaSocket int, pool PoolHandle) error {
	a.blockSize = depth * a.snaplen
	return nil
}

func (a *AFPacketAdapter) SetupTxQueue(port uint16, queue uint16, depth int, numaSocket int) error {
	// This pipeline never transmits; a TX queue is configured only to
	// satisfy the symmetric adapter contract.
	return nil
}

func (a *AFPacketAdapter) StartPort(port uint16) error {
	src, err := afring.NewSource(a.iface,
		afring.CaptureLength(filter.CaptureLengthFixed(a.snaplen)),
		afring.BufferSize(a.blockSize, a.numBlocks),
		afring.Promiscuous(a.promisc),
	)
	if err != nil {
		return fmt.Errorf("driver: failed to start capture on %s: %w", a.iface, err)
	}
	a.source = src
	return nil
}

// RxBurst drains up to max packets from the ring buffer without
// blocking past ctx's deadline. Each returned handle owns a buffer
// checked out of the pool; FreeBuffer must be called exactly once per
// handle.
func (a *AFPacketAdapter) RxBurst(ctx context.Context, port uint16, queue uint16, max int) ([]BufferHandle, error) {
	out := make([]BufferHandle, 0, max)
	for len(out) < max {
		select {
		case <-ctx.Done():
			return out, nil
		default:
		}

		// The extra bytes leave room for the metadata prefix slimcap
		// keeps in front of the IP layer.
		buf := a.pool.Get(a.dataLen + packetHdrOffset)
		pkt := capture.Packet(buf)
		// The returned packet value aliases pkt itself (slimcap populates
		// the buffer passed in); only the error is meaningful here.
		_, err := a.source.NextPacket(pkt)
		if err != nil {
			a.pool.Put(buf)
			if errors.Is(err, capture.ErrCaptureUnblocked) {
				return out, nil
			}
			if errors.Is(err, capture.ErrCaptureStopped) {
				return out, nil
			}
			return out, fmt.Errorf("driver: rx burst failed: %w", err)
		}
		out = append(out, pkt)
	}
	return out, nil
}

func (a *AFPacketAdapter) LinkType() LinkType {
	return LinkTypeIP
}

// BufferData returns the packet's bytes starting at the IP header,
// bounded by the on-wire length (the buffer itself is sized to the snap
// length and may extend past the captured region).
func (a *AFPacketAdapter) BufferData(handle BufferHandle) []byte {
	pkt, ok := handle.(capture.Packet)
	if !ok {
		return nil
	}
	ip := pkt.IPLayer()
	if captured := int(pkt.TotalLen()); captured < len(ip) {
		return ip[:captured]
	}
	return ip
}

func (a *AFPacketAdapter) BufferWireLen(handle BufferHandle) int {
	pkt, ok := handle.(capture.Packet)
	if !ok {
		return 0
	}
	return int(pkt.TotalLen())
}

func (a *AFPacketAdapter) FreeBuffer(handle BufferHandle) {
	pkt, ok := handle.(capture.Packet)
	if !ok {
		return
	}
	a.pool.Put([]byte(pkt))
}

func (a *AFPacketAdapter) Close() error {
	if a.source == nil {
		return nil
	}
	a.source.Close()
	return nil
}
