package flow

import (
	"fmt"
	"math"
	"time"

	"github.com/flowmetrics/flowcap/pkg/capturetypes"
	"github.com/flowmetrics/flowcap/pkg/parser"
)

// Vector is the flat, wire-ready feature record emitted once per
// packet. Field names and JSON keys follow the external schema exactly;
// jsoniter is used for marshaling at the publisher boundary.
type Vector struct {
	SrcIP        string `json:"src_ip"`
	DstIP        string `json:"dst_ip"`
	SrcPort      int    `json:"src_port"`
	DstPort      int    `json:"dst_port"`
	Protocol     int    `json:"protocol"`
	PacketLength int    `json:"packet_length"`
	HeaderLength int    `json:"header_length"`
	TTL          int    `json:"ttl"`
	TOS          int    `json:"tos"`
	Timestamp    int64  `json:"timestamp"`

	TCPFlags  int   `json:"tcp_flags"`
	TCPWindow int   `json:"tcp_window"`
	TCPSeq    int64 `json:"tcp_seq"`
	TCPAck    int64 `json:"tcp_ack"`

	TCPFlagFIN int `json:"tcp_flag_fin"`
	TCPFlagSYN int `json:"tcp_flag_syn"`
	TCPFlagRST int `json:"tcp_flag_rst"`
	TCPFlagPSH int `json:"tcp_flag_psh"`
	TCPFlagACK int `json:"tcp_flag_ack"`
	TCPFlagURG int `json:"tcp_flag_urg"`

	FlowDuration float64 `json:"flow_duration"`

	TotalFwdPackets       int `json:"total_fwd_packets"`
	TotalBwdPackets       int `json:"total_bwd_packets"`
	TotalLengthFwdPackets int `json:"total_length_fwd_packets"`
	TotalLengthBwdPackets int `json:"total_length_bwd_packets"`

	PacketLengthMean     float64 `json:"packet_length_mean"`
	PacketLengthStd      float64 `json:"packet_length_std"`
	PacketLengthMin      float64 `json:"packet_length_min"`
	PacketLengthMax      float64 `json:"packet_length_max"`
	PacketLengthVariance float64 `json:"packet_length_variance"`
	FwdPacketLengthMean  float64 `json:"fwd_packet_length_mean"`

	FlowBytesPerSecond   float64 `json:"flow_bytes_per_second"`
	FlowPacketsPerSecond float64 `json:"flow_packets_per_second"`
	FwdPacketsPerSecond  float64 `json:"fwd_packets_per_second"`
	BwdPacketsPerSecond  float64 `json:"bwd_packets_per_second"`

	FlowInterArrivalTimeMean float64 `json:"flow_inter_arrival_time_mean"`
	FlowInterArrivalTimeStd  float64 `json:"flow_inter_arrival_time_std"`
	FwdInterArrivalTimeMean  float64 `json:"fwd_inter_arrival_time_mean"`
	BwdInterArrivalTimeMean  float64 `json:"bwd_inter_arrival_time_mean"`

	ActiveMean float64 `json:"active_mean"`
	ActiveStd  float64 `json:"active_std"`
	IdleMean   float64 `json:"idle_mean"`
	IdleStd    float64 `json:"idle_std"`

	TCPWindowSizeMean float64 `json:"tcp_window_size_mean"`
	TCPFlagsCount     int     `json:"tcp_flags_count"`
	FlowBytesTotal    int64   `json:"flow_bytes_total"`

	Label            string `json:"label"`
	CaptureTimestamp string `json:"capture_timestamp"`
	ProtocolName     string `json:"protocol_name"`
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// New builds the feature vector for a successfully parsed packet from
// its already-updated flow State. emittedAt is the wall-clock time of
// emission, independent of the packet's own capture timestamp.
func New(pkt parser.Packet, st *State, emittedAt time.Time) Vector {
	duration := st.Duration()

	v := Vector{
		SrcIP:        ipString(pkt.SrcIP),
		DstIP:        ipString(pkt.DstIP),
		SrcPort:      int(pkt.SrcPort),
		DstPort:      int(pkt.DstPort),
		Protocol:     int(pkt.Protocol),
		PacketLength: pkt.Length,
		HeaderLength: pkt.HeaderLength,
		TTL:          int(pkt.TTL),
		TOS:          int(pkt.TOS),
		Timestamp:    int64(math.Floor(pkt.Timestamp * 1_000_000)),

		TCPFlags:  int(pkt.TCPFlags),
		TCPWindow: int(pkt.TCPWindow),
		TCPSeq:    int64(pkt.TCPSeq),
		TCPAck:    int64(pkt.TCPAck),

		TCPFlagFIN: boolToInt(pkt.FlagFIN),
		TCPFlagSYN: boolToInt(pkt.FlagSYN),
		TCPFlagRST: boolToInt(pkt.FlagRST),
		TCPFlagPSH: boolToInt(pkt.FlagPSH),
		TCPFlagACK: boolToInt(pkt.FlagACK),
		TCPFlagURG: boolToInt(pkt.FlagURG),

		FlowDuration: duration,

		TotalFwdPackets:       st.FwdPackets,
		TotalBwdPackets:       st.BwdPackets,
		TotalLengthFwdPackets: int(st.FwdBytes),
		TotalLengthBwdPackets: int(st.BwdBytes),

		PacketLengthMean:     st.AllLengths.Mean(),
		PacketLengthStd:      st.AllLengths.Std(),
		PacketLengthMin:      st.AllLengths.Min(),
		PacketLengthMax:      st.AllLengths.Max(),
		PacketLengthVariance: st.AllLengths.Variance(),
		FwdPacketLengthMean:  st.FwdLengths.Mean(),

		FlowBytesPerSecond:   rate(float64(st.FwdBytes+st.BwdBytes), duration),
		FlowPacketsPerSecond: rate(float64(st.TotalPackets), duration),
		FwdPacketsPerSecond:  rate(float64(st.FwdPackets), duration),
		BwdPacketsPerSecond:  rate(float64(st.BwdPackets), duration),

		FlowInterArrivalTimeMean: st.AllIAT.Mean(),
		FlowInterArrivalTimeStd:  st.AllIAT.Std(),
		FwdInterArrivalTimeMean:  st.FwdIAT.Mean(),
		BwdInterArrivalTimeMean:  st.BwdIAT.Mean(),

		ActiveMean: st.ActivePeriods.Mean(),
		ActiveStd:  st.ActivePeriods.Std(),
		IdleMean:   st.IdlePeriods.Mean(),
		IdleStd:    st.IdlePeriods.Std(),

		TCPWindowSizeMean: st.TCPWindowSizes.Mean(),
		TCPFlagsCount:     st.TCPFlagsCountSum(),
		FlowBytesTotal:    st.FwdBytes + st.BwdBytes,

		Label:            capturetypes.LabelBenign,
		CaptureTimestamp: emittedAt.UTC().Format(time.RFC3339Nano),
		ProtocolName:     capturetypes.ProtocolName(pkt.Protocol),
	}
	return v
}

// NewUnparsed builds the sentinel feature vector for a packet that
// never reached the flow table: only length, timestamp and the parsing
// error label are meaningful.
func NewUnparsed(pkt parser.Packet, emittedAt time.Time) Vector {
	return Vector{
		SrcIP:            "",
		DstIP:            "",
		Protocol:         0,
		PacketLength:     pkt.Length,
		Timestamp:        int64(math.Floor(pkt.Timestamp * 1_000_000)),
		Label:            capturetypes.LabelParsingError,
		CaptureTimestamp: emittedAt.UTC().Format(time.RFC3339Nano),
		ProtocolName:     capturetypes.ProtocolName(0),
	}
}

func ipString(ip [4]byte) string {
	return fmt.Sprintf("%d.%d.%d.%d", ip[0], ip[1], ip[2], ip[3])
}
