// Package capturetypes holds the small, dependency-free value types shared
// by the parser, flow table and publisher: IP protocol numbers, the
// per-packet parsing error enum and the wire label constants.
package capturetypes

import "strconv"

// Enumeration of the IP protocol numbers this pipeline gives special
// treatment to. Any other value is still captured at the IP layer; only
// port extraction is skipped for it.
const (
	ICMP = 0x01 // ICMP : 1
	TCP  = 0x06 // TCP : 6
	UDP  = 0x11 // UDP : 17
	GRE  = 0x2F // GRE : 47
	ESP  = 0x32 // ESP : 50
)

// protocolNames maps the protocol numbers named in the wire schema to their
// friendly names. Anything absent from this table is rendered as
// UNKNOWN_<n> by ProtocolName.
var protocolNames = map[uint8]string{
	ICMP: "ICMP",
	TCP:  "TCP",
	UDP:  "UDP",
	GRE:  "GRE",
	ESP:  "ESP",
}

// ProtocolName returns the friendly name for an IANA protocol number,
// falling back to "UNKNOWN_<n>" for anything not explicitly named.
func ProtocolName(proto uint8) string {
	if name, ok := protocolNames[proto]; ok {
		return name
	}
	return "UNKNOWN_" + strconv.Itoa(int(proto))
}
