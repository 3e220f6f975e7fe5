package parser

import (
	"encoding/binary"
	"testing"

	"github.com/flowmetrics/flowcap/pkg/capturetypes"
	"github.com/stretchr/testify/require"
)

// buildEthernet prepends a minimal 14-byte Ethernet header (zeroed MACs,
// the given EtherType) to payload.
func buildEthernet(etherType uint16, payload []byte) []byte {
	frame := make([]byte, ethHeaderLen+len(payload))
	binary.BigEndian.PutUint16(frame[12:14], etherType)
	copy(frame[ethHeaderLen:], payload)
	return frame
}

// buildIPv4 builds a bare 20-byte IPv4 header (no options) wrapping
// transport, with the given protocol and source/destination addresses.
func buildIPv4(proto uint8, src, dst [4]byte, transport []byte) []byte {
	hdr := make([]byte, minIPv4HdrLen)
	hdr[0] = 0x45 // version 4, IHL 5
	hdr[8] = 64   // TTL
	hdr[9] = proto
	copy(hdr[12:16], src[:])
	copy(hdr[16:20], dst[:])
	total := append(hdr, transport...)
	binary.BigEndian.PutUint16(total[2:4], uint16(len(total)))
	return total
}

func buildTCP(srcPort, dstPort uint16, flags byte, seq, ack uint32, window uint16) []byte {
	hdr := make([]byte, minTCPHdrLen)
	binary.BigEndian.PutUint16(hdr[0:2], srcPort)
	binary.BigEndian.PutUint16(hdr[2:4], dstPort)
	binary.BigEndian.PutUint32(hdr[4:8], seq)
	binary.BigEndian.PutUint32(hdr[8:12], ack)
	hdr[12] = 0x50 // data offset 5
	hdr[13] = flags
	binary.BigEndian.PutUint16(hdr[14:16], window)
	return hdr
}

func buildUDP(srcPort, dstPort uint16, payloadLen int) []byte {
	hdr := make([]byte, minUDPHdrLen+payloadLen)
	binary.BigEndian.PutUint16(hdr[0:2], srcPort)
	binary.BigEndian.PutUint16(hdr[2:4], dstPort)
	binary.BigEndian.PutUint16(hdr[4:6], uint16(len(hdr)))
	return hdr
}

func TestParseTCPSyn(t *testing.T) {
	src := [4]byte{10, 0, 0, 1}
	dst := [4]byte{10, 0, 0, 2}
	tcp := buildTCP(443, 51000, FlagSYN, 1000, 0, 65535)
	frame := buildEthernet(etherTypeIPv4, buildIPv4(capturetypes.TCP, src, dst, tcp))

	pkt := Parse(frame, 1.0)

	require.True(t, pkt.Ok)
	require.Equal(t, capturetypes.ErrnoOK, pkt.Errno)
	require.Equal(t, src, pkt.SrcIP)
	require.Equal(t, dst, pkt.DstIP)
	require.EqualValues(t, capturetypes.TCP, pkt.Protocol)
	require.True(t, pkt.HasTCP)
	require.EqualValues(t, 443, pkt.SrcPort)
	require.EqualValues(t, 51000, pkt.DstPort)
	require.True(t, pkt.FlagSYN)
	require.False(t, pkt.FlagACK)
	require.Equal(t, len(frame), pkt.Length)
}

func TestParseUDP(t *testing.T) {
	src := [4]byte{192, 168, 1, 5}
	dst := [4]byte{192, 168, 1, 10}
	udp := buildUDP(53, 33221, 12)
	frame := buildEthernet(etherTypeIPv4, buildIPv4(capturetypes.UDP, src, dst, udp))

	pkt := Parse(frame, 2.0)

	require.True(t, pkt.Ok)
	require.EqualValues(t, capturetypes.UDP, pkt.Protocol)
	require.False(t, pkt.HasTCP)
	require.EqualValues(t, 53, pkt.SrcPort)
	require.EqualValues(t, 33221, pkt.DstPort)
}

func TestParseIPLayerTCP(t *testing.T) {
	src := [4]byte{10, 0, 0, 9}
	dst := [4]byte{10, 0, 0, 10}
	tcp := buildTCP(443, 51000, FlagSYN|FlagACK, 7, 9, 512)
	ip := buildIPv4(capturetypes.TCP, src, dst, tcp)

	// The link-layer header was consumed by the driver; the on-wire
	// length still covers it.
	wireLen := len(ip) + ethHeaderLen
	pkt := ParseIP(ip, wireLen, 9.0)

	require.True(t, pkt.Ok)
	require.Equal(t, wireLen, pkt.Length)
	require.Equal(t, src, pkt.SrcIP)
	require.Equal(t, dst, pkt.DstIP)
	require.True(t, pkt.HasTCP)
	require.EqualValues(t, 443, pkt.SrcPort)
	require.EqualValues(t, 51000, pkt.DstPort)
	require.True(t, pkt.FlagSYN)
	require.True(t, pkt.FlagACK)
}

func TestParseIPLayerRejectsIPv6(t *testing.T) {
	ip := make([]byte, 40)
	ip[0] = 6 << 4

	pkt := ParseIP(ip, len(ip)+ethHeaderLen, 10.0)

	require.False(t, pkt.Ok)
	require.Equal(t, capturetypes.ErrnoBadIPVersion, pkt.Errno)
	require.Equal(t, len(ip)+ethHeaderLen, pkt.Length)
}

func TestParseNonIPv4EtherType(t *testing.T) {
	// 0x86DD is IPv6; this pipeline does not parse it.
	frame := buildEthernet(0x86DD, make([]byte, 40))

	pkt := Parse(frame, 3.0)

	require.False(t, pkt.Ok)
	require.Equal(t, capturetypes.ErrnoNotIPv4, pkt.Errno)
	require.Equal(t, len(frame), pkt.Length)
}

func TestParseShortEthernetFrame(t *testing.T) {
	pkt := Parse(make([]byte, 8), 4.0)

	require.False(t, pkt.Ok)
	require.Equal(t, capturetypes.ErrnoShortEthernet, pkt.Errno)
}

func TestParseShortIPv4Header(t *testing.T) {
	frame := buildEthernet(etherTypeIPv4, make([]byte, 10))

	pkt := Parse(frame, 5.0)

	require.False(t, pkt.Ok)
	require.Equal(t, capturetypes.ErrnoShortIPv4, pkt.Errno)
}

func TestParseBadIPVersion(t *testing.T) {
	ip := make([]byte, minIPv4HdrLen)
	ip[0] = 0x55 // version 5
	frame := buildEthernet(etherTypeIPv4, ip)

	pkt := Parse(frame, 6.0)

	require.False(t, pkt.Ok)
	require.Equal(t, capturetypes.ErrnoBadIPVersion, pkt.Errno)
}

func TestParseTruncatedTransportStillYieldsIPFields(t *testing.T) {
	src := [4]byte{1, 2, 3, 4}
	dst := [4]byte{5, 6, 7, 8}
	// Only 4 bytes of TCP header present: too short to extract ports/flags.
	frame := buildEthernet(etherTypeIPv4, buildIPv4(capturetypes.TCP, src, dst, []byte{0, 80, 0, 0}))

	pkt := Parse(frame, 7.0)

	require.True(t, pkt.Ok)
	require.Equal(t, src, pkt.SrcIP)
	require.Equal(t, dst, pkt.DstIP)
	require.False(t, pkt.HasTCP)
	require.EqualValues(t, 0, pkt.SrcPort)
}

func TestParseUnknownProtocolStillCapturedAtIPLayer(t *testing.T) {
	src := [4]byte{9, 9, 9, 9}
	dst := [4]byte{8, 8, 8, 8}
	frame := buildEthernet(etherTypeIPv4, buildIPv4(capturetypes.ESP, src, dst, make([]byte, 16)))

	pkt := Parse(frame, 8.0)

	require.True(t, pkt.Ok)
	require.EqualValues(t, capturetypes.ESP, pkt.Protocol)
	require.EqualValues(t, 0, pkt.SrcPort)
	require.EqualValues(t, 0, pkt.DstPort)
}
