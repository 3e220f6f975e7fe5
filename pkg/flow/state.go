package flow

// idleGapThreshold is the minimum gap between consecutive packets, in
// seconds, that counts as an idle period rather than ordinary
// inter-packet spacing.
const idleGapThreshold = 1.0

// State is the mutable, per-flow accounting record owned exclusively by
// the flow table. It is updated once per packet by the capture loop and
// never read or written from anywhere else.
//
// Per-flow packet-length and inter-arrival-time series are folded into
// runningStats rather than retained as growing slices (see DESIGN.md):
// a long-lived flow must not cause unbounded per-flow memory growth.
type State struct {
	started   bool
	StartTime float64
	LastTime  float64

	TotalPackets int
	AllLengths   runningStats
	AllIAT       runningStats

	lastPacketTimeSet bool
	lastPacketTime    float64

	FwdPackets int
	FwdBytes   int64
	FwdLengths runningStats
	FwdIAT     runningStats
	fwdLastSet bool
	fwdLast    float64

	BwdPackets int
	BwdBytes   int64
	BwdLengths runningStats
	BwdIAT     runningStats
	bwdLastSet bool
	bwdLast    float64

	// TCPFlagsCount maps each observed flag-bit combination to the number
	// of packets that carried it. It stays a plain map: real traffic
	// touches at most a few dozen distinct combinations per flow, so an
	// incremental replacement isn't warranted the way it is for the
	// length/IAT series.
	TCPFlagsCount  map[byte]int
	TCPWindowSizes runningStats

	// ActivePeriods has no producer in this version: the reference this
	// pipeline is modeled on defines the storage but never populates it.
	// active_mean / active_std are always emitted as 0 (open question,
	// see DESIGN.md).
	ActivePeriods runningStats

	IdlePeriods         runningStats
	lastActivityTimeSet bool
	lastActivityTime    float64
}

// Update folds one packet into the flow's running state. It must be
// called with a strictly non-decreasing ts across the lifetime of a
// single State to preserve the last_time >= start_time invariant.
func (s *State) Update(packetLength int, ts float64, isForward bool, tcpFlags uint8, tcpWindow uint16) {
	if !s.started {
		s.started = true
		s.StartTime = ts
		s.lastActivityTime = ts
		s.lastActivityTimeSet = true
	}

	s.TotalPackets++
	s.AllLengths.add(float64(packetLength))
	if s.lastPacketTimeSet {
		s.AllIAT.add(ts - s.lastPacketTime)
	}
	s.lastPacketTime = ts
	s.lastPacketTimeSet = true
	s.LastTime = ts

	if isForward {
		s.FwdPackets++
		s.FwdBytes += int64(packetLength)
		s.FwdLengths.add(float64(packetLength))
		if s.fwdLastSet {
			s.FwdIAT.add(ts - s.fwdLast)
		}
		s.fwdLast = ts
		s.fwdLastSet = true
	} else {
		s.BwdPackets++
		s.BwdBytes += int64(packetLength)
		s.BwdLengths.add(float64(packetLength))
		if s.bwdLastSet {
			s.BwdIAT.add(ts - s.bwdLast)
		}
		s.bwdLast = ts
		s.bwdLastSet = true
	}

	if tcpFlags > 0 {
		if s.TCPFlagsCount == nil {
			s.TCPFlagsCount = make(map[byte]int)
		}
		s.TCPFlagsCount[tcpFlags]++
	}
	if tcpWindow > 0 {
		s.TCPWindowSizes.add(float64(tcpWindow))
	}

	if s.lastActivityTimeSet && ts-s.lastActivityTime > idleGapThreshold {
		s.IdlePeriods.add(ts - s.lastActivityTime)
	}
	s.lastActivityTime = ts
	s.lastActivityTimeSet = true
}

// TCPFlagsCountSum returns the total number of packets that carried any
// TCP flags, i.e. the sum of values across the flag-combination map —
// not the number of distinct combinations seen.
func (s *State) TCPFlagsCountSum() int {
	sum := 0
	for _, n := range s.TCPFlagsCount {
		sum += n
	}
	return sum
}

// Duration returns the flow's duration so far: 0 for a flow that has
// seen at most one packet.
func (s *State) Duration() float64 {
	if !s.started {
		return 0
	}
	d := s.LastTime - s.StartTime
	if d < 0 {
		return 0
	}
	return d
}

// rate divides total by the flow duration, returning 0 rather than
// dividing by zero for a zero-duration flow.
func rate(total float64, duration float64) float64 {
	if duration == 0 {
		return 0
	}
	return total / duration
}
