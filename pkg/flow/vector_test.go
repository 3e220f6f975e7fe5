package flow

import (
	"testing"
	"time"

	"github.com/flowmetrics/flowcap/pkg/parser"
	"github.com/stretchr/testify/require"
)

func TestVectorSingleSynScenario(t *testing.T) {
	pkt := parser.Packet{
		Ok:       true,
		SrcIP:    [4]byte{10, 0, 0, 1},
		DstIP:    [4]byte{10, 0, 0, 2},
		SrcPort:  5000,
		DstPort:  80,
		Protocol: 6,
		Length:   74,
		HasTCP:   true,
		FlagSYN:  true,
		TCPFlags: 0x02,
		Timestamp: 1000.0,
	}

	key, isFwd := NewKey(pkt.SrcIP, pkt.DstIP, pkt.SrcPort, pkt.DstPort, pkt.Protocol)
	require.True(t, isFwd)

	table := NewTable(0, 0)
	st := table.Touch(key)
	st.Update(pkt.Length, pkt.Timestamp, isFwd, pkt.TCPFlags, pkt.TCPWindow)

	v := New(pkt, st, time.Unix(1000, 0))

	require.Equal(t, "10.0.0.1", v.SrcIP)
	require.Equal(t, "10.0.0.2", v.DstIP)
	require.Equal(t, 5000, v.SrcPort)
	require.Equal(t, 80, v.DstPort)
	require.Equal(t, 6, v.Protocol)
	require.Equal(t, 1, v.TCPFlagSYN)
	require.Equal(t, 0, v.TCPFlagFIN+v.TCPFlagRST+v.TCPFlagPSH+v.TCPFlagACK+v.TCPFlagURG)
	require.Equal(t, 1, v.TotalFwdPackets)
	require.Equal(t, 0, v.TotalBwdPackets)
	require.Equal(t, 0.0, v.FlowDuration)
	require.Equal(t, 0.0, v.FlowBytesPerSecond)
	require.Equal(t, 0.0, v.FlowPacketsPerSecond)
	require.Equal(t, "BENIGN", v.Label)
	require.Equal(t, "TCP", v.ProtocolName)
}

func TestVectorSynThenSynAckScenario(t *testing.T) {
	synAck := parser.Packet{
		Ok: true, SrcIP: [4]byte{10, 0, 0, 2}, DstIP: [4]byte{10, 0, 0, 1},
		SrcPort: 80, DstPort: 5000, Protocol: 6, Length: 74,
		HasTCP: true, FlagSYN: true, FlagACK: true, TCPFlags: 0x12, Timestamp: 1000.1,
	}

	table := NewTable(0, 0)
	synKey, synFwd := NewKey([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2}, 5000, 80, 6)
	st := table.Touch(synKey)
	st.Update(74, 1000.0, synFwd, 0x02, 0)

	ackKey, ackFwd := NewKey(synAck.SrcIP, synAck.DstIP, synAck.SrcPort, synAck.DstPort, synAck.Protocol)
	require.Equal(t, synKey, ackKey)
	require.False(t, ackFwd)
	st2 := table.Touch(ackKey)
	require.Same(t, st, st2)
	st2.Update(synAck.Length, synAck.Timestamp, ackFwd, synAck.TCPFlags, synAck.TCPWindow)

	v := New(synAck, st2, time.Unix(1000, 0))

	require.Equal(t, 1, v.TotalFwdPackets)
	require.Equal(t, 1, v.TotalBwdPackets)
	require.InDelta(t, 0.1, v.FlowDuration, 1e-9)
	require.InDelta(t, 20.0, v.FlowPacketsPerSecond, 1e-9)
	require.InDelta(t, 0.1, v.FlowInterArrivalTimeMean, 1e-9)
	require.Equal(t, 0.0, v.FlowInterArrivalTimeStd)
}

func TestVectorUDPScenario(t *testing.T) {
	pkt := parser.Packet{
		Ok: true, SrcIP: [4]byte{192, 168, 1, 1}, DstIP: [4]byte{192, 168, 1, 2},
		SrcPort: 53, DstPort: 33000, Protocol: 17, Length: 120, Timestamp: 5.0,
	}
	key, isFwd := NewKey(pkt.SrcIP, pkt.DstIP, pkt.SrcPort, pkt.DstPort, pkt.Protocol)
	table := NewTable(0, 0)
	st := table.Touch(key)
	st.Update(pkt.Length, pkt.Timestamp, isFwd, pkt.TCPFlags, pkt.TCPWindow)

	v := New(pkt, st, time.Unix(5, 0))

	require.Equal(t, 17, v.Protocol)
	require.Equal(t, 0, v.TCPFlags)
	require.Equal(t, 0, v.TCPWindow)
	require.Equal(t, 0, v.TCPFlagSYN+v.TCPFlagFIN+v.TCPFlagRST+v.TCPFlagPSH+v.TCPFlagACK+v.TCPFlagURG)
	require.Equal(t, 53, v.SrcPort)
	require.Equal(t, 33000, v.DstPort)
	require.Equal(t, "UDP", v.ProtocolName)
}

func TestIdenticalSequencesYieldIdenticalVectors(t *testing.T) {
	packets := []parser.Packet{
		{Ok: true, SrcIP: [4]byte{10, 0, 0, 1}, DstIP: [4]byte{10, 0, 0, 2}, SrcPort: 5000, DstPort: 80,
			Protocol: 6, Length: 74, HasTCP: true, FlagSYN: true, TCPFlags: 0x02, TCPWindow: 64240, Timestamp: 1000.0},
		{Ok: true, SrcIP: [4]byte{10, 0, 0, 2}, DstIP: [4]byte{10, 0, 0, 1}, SrcPort: 80, DstPort: 5000,
			Protocol: 6, Length: 74, HasTCP: true, FlagSYN: true, FlagACK: true, TCPFlags: 0x12, TCPWindow: 65160, Timestamp: 1000.1},
		{Ok: true, SrcIP: [4]byte{10, 0, 0, 1}, DstIP: [4]byte{10, 0, 0, 2}, SrcPort: 5000, DstPort: 80,
			Protocol: 6, Length: 1514, HasTCP: true, FlagACK: true, TCPFlags: 0x10, TCPWindow: 64240, Timestamp: 1000.3},
		{Ok: true, SrcIP: [4]byte{192, 168, 1, 1}, DstIP: [4]byte{192, 168, 1, 2}, SrcPort: 53, DstPort: 33000,
			Protocol: 17, Length: 120, Timestamp: 1001.0},
	}

	emittedAt := time.Unix(1001, 0)
	replay := func() []Vector {
		table := NewTable(0, 0)
		out := make([]Vector, 0, len(packets))
		for _, pkt := range packets {
			key, isFwd := NewKey(pkt.SrcIP, pkt.DstIP, pkt.SrcPort, pkt.DstPort, pkt.Protocol)
			st := table.Touch(key)
			st.Update(pkt.Length, pkt.Timestamp, isFwd, pkt.TCPFlags, pkt.TCPWindow)
			out = append(out, New(pkt, st, emittedAt))
		}
		return out
	}

	require.Equal(t, replay(), replay())
}

func TestVectorNonIPv4FrameScenario(t *testing.T) {
	pkt := parser.Packet{Ok: false, Length: 98, Timestamp: 7.0}

	v := NewUnparsed(pkt, time.Unix(7, 0))

	require.Equal(t, "PARSING_ERROR", v.Label)
	require.Equal(t, 98, v.PacketLength)
	require.Equal(t, "", v.SrcIP)
	require.Equal(t, 0, v.Protocol)
}
