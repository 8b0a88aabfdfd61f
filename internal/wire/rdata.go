package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"

	"github.com/dnsscience/stubresolver/internal/dnsname"
)

var ErrShortRData = errors.New("wire: rdata shorter than required")

// SOA is the decoded RDATA of a start-of-authority record.
type SOA struct {
	MName   dnsname.Name
	RName   dnsname.Name
	Serial  uint32
	Refresh uint32
	Retry   uint32
	Expire  uint32
	Minimum uint32
}

// nameOffsetReader re-walks the original message buffer so that any
// compression pointer inside this RR's rdata still resolves correctly.
func (rr RR) nameAt(rel int) (dnsname.Name, int, error) {
	if rr.msgBuf == nil {
		return dnsname.Name{}, 0, fmt.Errorf("wire: rr has no backing message buffer")
	}
	return dnsname.FromWire(rr.msgBuf, rr.rdataOff+rel)
}

// SOA decodes the RR's rdata as an SOA record.
func (rr RR) SOA() (SOA, error) {
	mname, next, err := rr.nameAt(0)
	if err != nil {
		return SOA{}, err
	}
	rname, next2, err := dnsname.FromWire(rr.msgBuf, next)
	if err != nil {
		return SOA{}, err
	}
	rest := rr.msgBuf[next2 : rr.rdataOff+len(rr.RData)]
	if len(rest) < 20 {
		return SOA{}, ErrShortRData
	}
	return SOA{
		MName:   mname,
		RName:   rname,
		Serial:  binary.BigEndian.Uint32(rest[0:4]),
		Refresh: binary.BigEndian.Uint32(rest[4:8]),
		Retry:   binary.BigEndian.Uint32(rest[8:12]),
		Expire:  binary.BigEndian.Uint32(rest[12:16]),
		Minimum: binary.BigEndian.Uint32(rest[16:20]),
	}, nil
}

// EncodeSOA serializes an SOA into wire rdata, without name compression
// (SOA rdata names are rare to repeat and RFC 1035 doesn't require it).
func EncodeSOA(s SOA) []byte {
	buf := dnsname.ToWire(s.MName, nil, nil, false)
	buf = dnsname.ToWire(s.RName, buf, nil, false)
	var tail [20]byte
	binary.BigEndian.PutUint32(tail[0:4], s.Serial)
	binary.BigEndian.PutUint32(tail[4:8], s.Refresh)
	binary.BigEndian.PutUint32(tail[8:12], s.Retry)
	binary.BigEndian.PutUint32(tail[12:16], s.Expire)
	binary.BigEndian.PutUint32(tail[16:20], s.Minimum)
	return append(buf, tail[:]...)
}

// Name decodes rdata that is a single domain name (NS, CNAME, PTR).
func (rr RR) NameRData() (dnsname.Name, error) {
	n, _, err := rr.nameAt(0)
	return n, err
}

// EncodeName serializes a single-name rdata (NS/CNAME/PTR), uncompressed.
func EncodeName(n dnsname.Name) []byte {
	return dnsname.ToWire(n, nil, nil, false)
}

// A decodes rdata as an IPv4 address.
func (rr RR) A() (net.IP, error) {
	if len(rr.RData) != 4 {
		return nil, ErrShortRData
	}
	return net.IP(append([]byte(nil), rr.RData...)), nil
}

// EncodeA serializes an IPv4 address.
func EncodeA(ip net.IP) []byte {
	v4 := ip.To4()
	return append([]byte(nil), v4...)
}

// AAAA decodes rdata as an IPv6 address.
func (rr RR) AAAA() (net.IP, error) {
	if len(rr.RData) != 16 {
		return nil, ErrShortRData
	}
	return net.IP(append([]byte(nil), rr.RData...)), nil
}

// EncodeAAAA serializes an IPv6 address.
func EncodeAAAA(ip net.IP) []byte {
	v6 := ip.To16()
	return append([]byte(nil), v6...)
}

// MX is the decoded RDATA of a mail-exchange record.
type MX struct {
	Preference uint16
	Exchange   dnsname.Name
}

func (rr RR) MX() (MX, error) {
	if len(rr.RData) < 3 {
		return MX{}, ErrShortRData
	}
	name, _, err := rr.nameAt(2)
	if err != nil {
		return MX{}, err
	}
	return MX{Preference: binary.BigEndian.Uint16(rr.RData[0:2]), Exchange: name}, nil
}

func EncodeMX(mx MX) []byte {
	var pref [2]byte
	binary.BigEndian.PutUint16(pref[:], mx.Preference)
	return append(pref[:], dnsname.ToWire(mx.Exchange, nil, nil, false)...)
}

// SRV is the decoded RDATA of a service record.
type SRV struct {
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   dnsname.Name
}

func (rr RR) SRV() (SRV, error) {
	if len(rr.RData) < 7 {
		return SRV{}, ErrShortRData
	}
	target, _, err := rr.nameAt(6)
	if err != nil {
		return SRV{}, err
	}
	return SRV{
		Priority: binary.BigEndian.Uint16(rr.RData[0:2]),
		Weight:   binary.BigEndian.Uint16(rr.RData[2:4]),
		Port:     binary.BigEndian.Uint16(rr.RData[4:6]),
		Target:   target,
	}, nil
}

func EncodeSRV(s SRV) []byte {
	var head [6]byte
	binary.BigEndian.PutUint16(head[0:2], s.Priority)
	binary.BigEndian.PutUint16(head[2:4], s.Weight)
	binary.BigEndian.PutUint16(head[4:6], s.Port)
	return append(head[:], dnsname.ToWire(s.Target, nil, nil, false)...)
}

// TXT decodes rdata as a sequence of character-strings.
func (rr RR) TXT() ([]string, error) {
	var out []string
	data := rr.RData
	for len(data) > 0 {
		n := int(data[0])
		if n+1 > len(data) {
			return nil, ErrShortRData
		}
		out = append(out, string(data[1:1+n]))
		data = data[1+n:]
	}
	return out, nil
}

func EncodeTXT(strs []string) []byte {
	var out []byte
	for _, s := range strs {
		if len(s) > 255 {
			s = s[:255]
		}
		out = append(out, byte(len(s)))
		out = append(out, s...)
	}
	return out
}

// SVCBParam is one key/value parameter of an SVCB/HTTPS record.
type SVCBParam struct {
	Key   uint16
	Value []byte
}

// SVCB is the decoded RDATA of an SVCB/HTTPS record (RFC 9460).
type SVCB struct {
	Priority uint16
	Target   dnsname.Name
	Params   []SVCBParam
}

func (rr RR) SVCB() (SVCB, error) {
	if len(rr.RData) < 2 {
		return SVCB{}, ErrShortRData
	}
	target, end, err := rr.nameAt(2)
	if err != nil {
		return SVCB{}, err
	}
	priority := binary.BigEndian.Uint16(rr.RData[0:2])
	rest := rr.msgBuf[end : rr.rdataOff+len(rr.RData)]
	var params []SVCBParam
	for len(rest) >= 4 {
		key := binary.BigEndian.Uint16(rest[0:2])
		length := int(binary.BigEndian.Uint16(rest[2:4]))
		if 4+length > len(rest) {
			return SVCB{}, ErrShortRData
		}
		params = append(params, SVCBParam{Key: key, Value: append([]byte(nil), rest[4:4+length]...)})
		rest = rest[4+length:]
	}
	return SVCB{Priority: priority, Target: target, Params: params}, nil
}

// Option is one EDNS(0) option (code, length, value) inside an OPT RR.
type Option struct {
	Code  uint16
	Value []byte
}

// Options decodes this RR's rdata as a sequence of EDNS(0) options (valid
// only when Type == TypeOPT).
func (rr RR) Options() ([]Option, error) {
	var out []Option
	data := rr.RData
	for len(data) >= 4 {
		code := binary.BigEndian.Uint16(data[0:2])
		length := int(binary.BigEndian.Uint16(data[2:4]))
		if 4+length > len(data) {
			return nil, ErrShortRData
		}
		out = append(out, Option{Code: code, Value: append([]byte(nil), data[4:4+length]...)})
		data = data[4+length:]
	}
	return out, nil
}

func EncodeOptions(opts []Option) []byte {
	var out []byte
	for _, o := range opts {
		var head [4]byte
		binary.BigEndian.PutUint16(head[0:2], o.Code)
		binary.BigEndian.PutUint16(head[2:4], uint16(len(o.Value)))
		out = append(out, head[:]...)
		out = append(out, o.Value...)
	}
	return out
}

// EDNS(0) option codes relevant to this module.
const (
	OptCodeCookie uint16 = 10
	OptCodePadding uint16 = 12
)

// ExtendedRcode/Version/Flags decode the TTL field of an OPT pseudo-RR, per
// SPEC_FULL.md §6.
func DecodeOPTTTL(ttl uint32) (extRcode uint8, version uint8, flags uint16) {
	return uint8(ttl >> 24), uint8(ttl >> 16), uint16(ttl)
}

func EncodeOPTTTL(extRcode uint8, version uint8, flags uint16) uint32 {
	return uint32(extRcode)<<24 | uint32(version)<<16 | uint32(flags)
}
