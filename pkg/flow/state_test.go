package flow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStateInvariantsHoldAfterUpdateSequence(t *testing.T) {
	var s State
	s.Update(60, 1000.0, true, 0x02, 65535)  // SYN
	s.Update(60, 1000.1, false, 0x12, 65535) // SYN-ACK
	s.Update(1400, 1000.3, true, 0x10, 65535)

	require.Equal(t, s.FwdPackets+s.BwdPackets, s.TotalPackets)
	require.EqualValues(t, 60+1400, s.FwdBytes)
	require.EqualValues(t, 2, s.AllIAT.Count()) // 3 packets -> 2 IATs
	require.GreaterOrEqual(t, s.LastTime, s.StartTime)
}

func TestZeroDurationFlowEmitsZeroRates(t *testing.T) {
	var s State
	s.Update(74, 1000.0, true, 0x02, 65535)

	require.Equal(t, 0.0, s.Duration())
	require.Equal(t, 0.0, rate(float64(s.FwdBytes), s.Duration()))
}

func TestSingleSynScenario(t *testing.T) {
	var s State
	s.Update(74, 1000.0, true, 0x02, 0)

	require.Equal(t, 1, s.FwdPackets)
	require.Equal(t, 0, s.BwdPackets)
	require.Equal(t, 0.0, s.Duration())
}

func TestSynThenSynAckScenario(t *testing.T) {
	var s State
	s.Update(74, 1000.0, true, 0x02, 0)
	s.Update(74, 1000.1, false, 0x12, 0)

	require.Equal(t, 1, s.FwdPackets)
	require.Equal(t, 1, s.BwdPackets)
	require.InDelta(t, 0.1, s.Duration(), 1e-9)
	require.InDelta(t, 0.1, s.AllIAT.Mean(), 1e-9)
	require.Equal(t, 0.0, s.AllIAT.Std()) // single sample -> sample std is 0
}

func TestIdleGapScenario(t *testing.T) {
	var s State
	s.Update(60, 0.0, true, 0x02, 0)
	s.Update(60, 1.5, true, 0x10, 0)
	s.Update(60, 3.0, true, 0x10, 0)

	require.Equal(t, 2, s.IdlePeriods.Count())
	require.InDelta(t, 1.5, s.IdlePeriods.Mean(), 1e-9)
	require.Equal(t, 0.0, s.IdlePeriods.Std())
}

func TestNonTCPPacketLeavesTCPAccountingEmpty(t *testing.T) {
	var s State
	// A non-TCP packet (here ICMP) reaches State.Update with zero TCP
	// flags and window; neither the flag counter nor the window series
	// may record anything for it.
	s.Update(84, 10.0, true, 0, 0)

	require.Equal(t, 0, s.TCPFlagsCountSum())
	require.Equal(t, 0, s.TCPWindowSizes.Count())
}
