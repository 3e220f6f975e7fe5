package capturetypes

// ParsingErrno denotes a non-critical packet parsing error / failure. A
// malformed or truncated frame never aborts the capture loop: it is
// downgraded to a ParsingErrno and the packet survives as an unparseable
// record (see parser.Packet).
type ParsingErrno int

const (
	// ErrnoOK : no error, the packet was decoded successfully
	ErrnoOK ParsingErrno = iota

	// ErrnoShortEthernet : fewer than 14 bytes captured, not enough for an
	// Ethernet header
	ErrnoShortEthernet

	// ErrnoNotIPv4 : EtherType was not 0x0800 (IPv4 not in use, or VLAN tag)
	ErrnoNotIPv4

	// ErrnoShortIPv4 : fewer than 20 bytes available at the IPv4 header offset
	ErrnoShortIPv4

	// ErrnoBadIPVersion : the IP version nibble was not 4
	ErrnoBadIPVersion

	// NumParsingErrors : number of tracked parsing error kinds
	NumParsingErrors
)

var parsingErrnoNames = [NumParsingErrors]string{
	"no error",
	"short ethernet frame",
	"not an IPv4 frame",
	"short IPv4 header",
	"bad IP version",
}

// String returns a human-readable name for the error code.
func (e ParsingErrno) String() string {
	if e < 0 || int(e) >= len(parsingErrnoNames) {
		return "unknown parsing error"
	}
	return parsingErrnoNames[e]
}

// Failed reports whether this errno represents an actual parsing failure
// (as opposed to ErrnoOK).
func (e ParsingErrno) Failed() bool {
	return e != ErrnoOK
}

// LabelBenign is the label emitted on the wire for successfully parsed
// packets.
const LabelBenign = "BENIGN"

// LabelParsingError is the label emitted on the wire for packets that
// downgraded to an unparseable record.
const LabelParsingError = "PARSING_ERROR"

// ParsingErrTracker is a simple table-based counter for every tracked
// ParsingErrno, used by the capture loop to account for each parsing
// error kind observed over its lifetime.
type ParsingErrTracker [NumParsingErrors]int

// Sum returns the total number of tracked (non-OK) parsing errors.
func (e *ParsingErrTracker) Sum() (res int) {
	for i := ErrnoShortEthernet; i < NumParsingErrors; i++ {
		res += e[i]
	}
	return
}

// Reset clears all error counters for reuse.
func (e *ParsingErrTracker) Reset() {
	for i := range e {
		e[i] = 0
	}
}
