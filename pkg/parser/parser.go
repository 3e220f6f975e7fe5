// Package parser decodes Ethernet/IPv4/TCP/UDP headers from a raw,
// driver-owned byte slice into a Packet.
//
// It is deliberately a flat, allocation-free decoder operating on raw
// slice offsets rather than a generic layer-stack framework such as
// gopacket, keeping the hot path free of per-packet allocations and
// layered-decoding overhead.
package parser

import (
	"encoding/binary"

	"github.com/flowmetrics/flowcap/pkg/capturetypes"
)

const (
	etherTypeIPv4  = 0x0800
	ethHeaderLen   = 14
	minIPv4HdrLen  = 20
	minTCPHdrLen   = 20
	minUDPHdrLen   = 8
	tcpFlagsOffset = 13
)

// TCP flag bit masks within the 6 meaningful bits of the flags byte.
const (
	FlagFIN byte = 0x01
	FlagSYN byte = 0x02
	FlagRST byte = 0x04
	FlagPSH byte = 0x08
	FlagACK byte = 0x10
	FlagURG byte = 0x20
)

// Packet is the ephemeral, per-packet record produced by Parse. It is
// constructed on the stack of the capture loop's current iteration and
// must not be retained past it. IP addresses are copied out of the
// packet buffer into fixed 4-byte arrays, and only become owned strings
// when a flow.Vector is built from them.
type Packet struct {
	// Ok is false for a packet that could not be decoded past the
	// Ethernet/IPv4 layers; only Length, Timestamp and Errno are valid
	// in that case.
	Ok bool

	SrcIP, DstIP     [4]byte
	SrcPort, DstPort uint16
	Protocol         uint8
	Length           int // bytes on the wire, as reported by the driver
	HeaderLength     int // IP header length in bytes (IHL * 4)
	TTL              uint8
	TOS              uint8
	Timestamp        float64 // capture time, seconds

	HasTCP           bool
	TCPSeq, TCPAck   uint32
	TCPFlags         byte
	TCPWindow        uint16
	FlagFIN, FlagSYN bool
	FlagRST, FlagPSH bool
	FlagACK, FlagURG bool

	Errno capturetypes.ParsingErrno
}

// Parse decodes a single captured Ethernet frame. It never returns an
// error: a short or malformed frame always yields a Packet with Ok ==
// false and a populated Errno, carrying only Length and Timestamp; the
// capture loop must never abort on a bad packet.
func Parse(data []byte, captureTimestamp float64) Packet {
	pkt := Packet{Length: len(data), Timestamp: captureTimestamp}

	if len(data) < ethHeaderLen {
		pkt.Errno = capturetypes.ErrnoShortEthernet
		return pkt
	}

	etherType := binary.BigEndian.Uint16(data[12:14])
	if etherType != etherTypeIPv4 {
		pkt.Errno = capturetypes.ErrnoNotIPv4
		return pkt
	}

	parseIPv4(&pkt, data[ethHeaderLen:])
	return pkt
}

// ParseIP decodes a packet whose link-layer header was already consumed
// by the driver: data starts at the IP header. wireLen is the packet's
// total on-wire length including the link layer, which becomes the
// reported packet length — the captured slice may be shorter when the
// driver truncates at its snap length. Same no-error contract as Parse;
// a non-IPv4 packet (including IPv6) downgrades via the version nibble.
func ParseIP(data []byte, wireLen int, captureTimestamp float64) Packet {
	pkt := Packet{Length: wireLen, Timestamp: captureTimestamp}
	parseIPv4(&pkt, data)
	return pkt
}

func parseIPv4(pkt *Packet, ip []byte) {
	if len(ip) < minIPv4HdrLen {
		pkt.Errno = capturetypes.ErrnoShortIPv4
		return
	}

	version := ip[0] >> 4
	if version != 4 {
		pkt.Errno = capturetypes.ErrnoBadIPVersion
		return
	}

	ihl := int(ip[0] & 0x0F)
	pkt.HeaderLength = ihl * 4
	pkt.TOS = ip[1]
	pkt.TTL = ip[8]
	pkt.Protocol = ip[9]
	copy(pkt.SrcIP[:], ip[12:16])
	copy(pkt.DstIP[:], ip[16:20])
	pkt.Ok = true

	if pkt.HeaderLength < minIPv4HdrLen || len(ip) < pkt.HeaderLength {
		// IP header claims to be shorter than the minimum, or the captured
		// frame was truncated before the declared header ends. The IP-level
		// fields decoded above are still trustworthy; only transport
		// parsing is skipped.
		return
	}

	transport := ip[pkt.HeaderLength:]
	switch pkt.Protocol {
	case capturetypes.TCP:
		parseTCP(pkt, transport)
	case capturetypes.UDP:
		parseUDP(pkt, transport)
	}
}

func parseTCP(pkt *Packet, transport []byte) {
	if len(transport) < minTCPHdrLen {
		return
	}
	pkt.HasTCP = true
	pkt.SrcPort = binary.BigEndian.Uint16(transport[0:2])
	pkt.DstPort = binary.BigEndian.Uint16(transport[2:4])
	pkt.TCPSeq = binary.BigEndian.Uint32(transport[4:8])
	pkt.TCPAck = binary.BigEndian.Uint32(transport[8:12])
	flags := transport[tcpFlagsOffset] & 0x3F
	pkt.TCPFlags = flags
	pkt.TCPWindow = binary.BigEndian.Uint16(transport[14:16])

	pkt.FlagFIN = flags&FlagFIN != 0
	pkt.FlagSYN = flags&FlagSYN != 0
	pkt.FlagRST = flags&FlagRST != 0
	pkt.FlagPSH = flags&FlagPSH != 0
	pkt.FlagACK = flags&FlagACK != 0
	pkt.FlagURG = flags&FlagURG != 0
}

func parseUDP(pkt *Packet, transport []byte) {
	if len(transport) < minUDPHdrLen {
		return
	}
	pkt.SrcPort = binary.BigEndian.Uint16(transport[0:2])
	pkt.DstPort = binary.BigEndian.Uint16(transport[2:4])
}
