// Package rcode implements the 12-bit DNS response code and its mapping
// to/from the 4-bit header flags plus the 8 high bits carried in an EDNS(0)
// OPT record's extended-rcode field. Ported from the fully-implemented
// reference dns.rcode module.
package rcode

import "fmt"

// Rcode is a 12-bit response code, combining the legacy 4-bit header field
// with the EDNS(0) 8-bit extension.
type Rcode int

const (
	NoError  Rcode = 0
	FormErr  Rcode = 1
	ServFail Rcode = 2
	NXDomain Rcode = 3
	NotImp   Rcode = 4
	Refused  Rcode = 5
	YXDomain Rcode = 6
	YXRRSet  Rcode = 7
	NXRRSet  Rcode = 8
	NotAuth  Rcode = 9
	NotZone  Rcode = 10
	DSOTYPENI Rcode = 11
	BADVERS  Rcode = 16
	BADSIG   Rcode = 16
	BADKEY   Rcode = 17
	BADTIME  Rcode = 18
	BADMODE  Rcode = 19
	BADNAME  Rcode = 20
	BADALG   Rcode = 21
	BADTRUNC Rcode = 22
	BADCOOKIE Rcode = 23
)

var names = map[Rcode]string{
	NoError: "NOERROR", FormErr: "FORMERR", ServFail: "SERVFAIL",
	NXDomain: "NXDOMAIN", NotImp: "NOTIMP", Refused: "REFUSED",
	YXDomain: "YXDOMAIN", YXRRSet: "YXRRSET", NXRRSet: "NXRRSET",
	NotAuth: "NOTAUTH", NotZone: "NOTZONE", DSOTYPENI: "DSOTYPENI",
	BADVERS: "BADVERS", BADKEY: "BADKEY", BADTIME: "BADTIME",
	BADMODE: "BADMODE", BADNAME: "BADNAME", BADALG: "BADALG",
	BADTRUNC: "BADTRUNC", BADCOOKIE: "BADCOOKIE",
}

// FromFlags combines the low 4 bits of the header flags with the high 8
// bits of the EDNS extended-rcode field (bits 24-31 of ednsflags) into a
// 12-bit rcode.
func FromFlags(flags uint16, ednsflags uint32) (Rcode, error) {
	value := int(flags&0x000f) | int((ednsflags>>20)&0xff0)
	if value < 0 || value > 4095 {
		return 0, fmt.Errorf("rcode: value %d out of range", value)
	}
	return Rcode(value), nil
}

// ToFlags splits an Rcode back into the header-flags low nibble and the
// ednsflags extended-rcode high byte. It is the exact inverse of FromFlags.
func ToFlags(r Rcode) (flags uint16, ednsflags uint32, err error) {
	if r < 0 || r > 4095 {
		return 0, 0, fmt.Errorf("rcode: value %d out of range", r)
	}
	flags = uint16(r) & 0x000f
	ednsflags = (uint32(r) & 0xff0) << 20
	return flags, ednsflags, nil
}

// String renders the rcode's mnemonic, or a numeric fallback if unknown.
func (r Rcode) String() string {
	if name, ok := names[r]; ok {
		return name
	}
	return fmt.Sprintf("RCODE%d", int(r))
}

// ToText renders the rcode's mnemonic; when tsig is true, BADSIG is
// preferred over BADVERS for the shared value 16, matching TSIG context.
func ToText(r Rcode, tsig bool) string {
	if r == 16 {
		if tsig {
			return "BADSIG"
		}
		return "BADVERS"
	}
	return r.String()
}
