package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dnsscience/stubresolver/internal/dnsname"
)

const (
	headerSize    = 12
	maxMessageLen = 65535
)

var (
	ErrTruncatedHeader  = errors.New("wire: message shorter than header")
	ErrRDLengthOverrun  = errors.New("wire: rdlength overruns message")
	ErrMessageTooLarge  = errors.New("wire: message exceeds 65535 octets")
)

// Header is the fixed 12-byte DNS message header.
type Header struct {
	ID      uint16
	Flags   uint16
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

func (h Header) Opcode() Opcode { return Opcode((h.Flags >> 11) & 0xf) }

// Question is one entry of the QUESTION section.
type Question struct {
	Name  dnsname.Name
	Type  Type
	Class Class
}

// RR is a decoded resource record: the header fields plus the raw rdata
// bytes. Callers that need a typed view (SOA, MX, ...) use the helpers in
// rdata.go, which re-walk msgBuf from rdataOff so that names embedded in
// rdata (e.g. an SOA's MNAME) can still follow compression pointers into
// earlier parts of the whole message.
type RR struct {
	Name  dnsname.Name
	Type  Type
	Class Class
	TTL   uint32
	RData []byte

	msgBuf  []byte
	rdataOff int
}

// Message is the fully decoded form of a DNS message.
type Message struct {
	Header     Header
	Question   []Question
	Answer     []RR
	Authority  []RR
	Additional []RR
}

// ParseMessage decodes buf into a structured Message. It validates section
// counts against actual content and rejects rdata that overruns the
// message, matching the hardening posture of a production wire parser.
func ParseMessage(buf []byte) (*Message, error) {
	if len(buf) > maxMessageLen {
		return nil, ErrMessageTooLarge
	}
	if len(buf) < headerSize {
		return nil, ErrTruncatedHeader
	}

	m := &Message{
		Header: Header{
			ID:      binary.BigEndian.Uint16(buf[0:2]),
			Flags:   binary.BigEndian.Uint16(buf[2:4]),
			QDCount: binary.BigEndian.Uint16(buf[4:6]),
			ANCount: binary.BigEndian.Uint16(buf[6:8]),
			NSCount: binary.BigEndian.Uint16(buf[8:10]),
			ARCount: binary.BigEndian.Uint16(buf[10:12]),
		},
	}

	off := headerSize
	var err error

	m.Question, off, err = parseQuestions(buf, off, int(m.Header.QDCount))
	if err != nil {
		return nil, err
	}
	m.Answer, off, err = parseRRs(buf, off, int(m.Header.ANCount))
	if err != nil {
		return nil, err
	}
	m.Authority, off, err = parseRRs(buf, off, int(m.Header.NSCount))
	if err != nil {
		return nil, err
	}
	m.Additional, _, err = parseRRs(buf, off, int(m.Header.ARCount))
	if err != nil {
		return nil, err
	}
	return m, nil
}

func parseQuestions(buf []byte, off int, count int) ([]Question, int, error) {
	out := make([]Question, 0, count)
	for i := 0; i < count; i++ {
		name, next, err := dnsname.FromWire(buf, off)
		if err != nil {
			return nil, 0, fmt.Errorf("wire: question %d name: %w", i, err)
		}
		off = next
		if off+4 > len(buf) {
			return nil, 0, ErrRDLengthOverrun
		}
		out = append(out, Question{
			Name:  name,
			Type:  Type(binary.BigEndian.Uint16(buf[off : off+2])),
			Class: Class(binary.BigEndian.Uint16(buf[off+2 : off+4])),
		})
		off += 4
	}
	return out, off, nil
}

func parseRRs(buf []byte, off int, count int) ([]RR, int, error) {
	out := make([]RR, 0, count)
	for i := 0; i < count; i++ {
		name, next, err := dnsname.FromWire(buf, off)
		if err != nil {
			return nil, 0, fmt.Errorf("wire: rr %d name: %w", i, err)
		}
		off = next
		if off+10 > len(buf) {
			return nil, 0, ErrRDLengthOverrun
		}
		typ := Type(binary.BigEndian.Uint16(buf[off : off+2]))
		class := Class(binary.BigEndian.Uint16(buf[off+2 : off+4]))
		ttl := binary.BigEndian.Uint32(buf[off+4 : off+8])
		rdlen := int(binary.BigEndian.Uint16(buf[off+8 : off+10]))
		off += 10
		if off+rdlen > len(buf) {
			return nil, 0, ErrRDLengthOverrun
		}
		rdata := append([]byte(nil), buf[off:off+rdlen]...)
		rdataOff := off
		off += rdlen
		out = append(out, RR{
			Name: name, Type: typ, Class: class, TTL: ttl, RData: rdata,
			msgBuf: buf, rdataOff: rdataOff,
		})
	}
	return out, off, nil
}
