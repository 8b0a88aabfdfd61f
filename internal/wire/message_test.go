package wire

import (
	"encoding/binary"
	"testing"

	"github.com/dnsscience/stubresolver/internal/dnsname"
)

func buildSimpleMessage(t *testing.T) []byte {
	t.Helper()
	name := dnsname.MustFromText("www.example.com.")
	var buf []byte
	header := make([]byte, 12)
	binary.BigEndian.PutUint16(header[0:2], 0x1234)
	binary.BigEndian.PutUint16(header[2:4], FlagQR|FlagRD|FlagRA)
	binary.BigEndian.PutUint16(header[4:6], 1) // qdcount
	binary.BigEndian.PutUint16(header[6:8], 1) // ancount
	buf = append(buf, header...)

	buf = dnsname.ToWire(name, buf, nil, false)
	qtail := make([]byte, 4)
	binary.BigEndian.PutUint16(qtail[0:2], uint16(TypeA))
	binary.BigEndian.PutUint16(qtail[2:4], uint16(ClassINET))
	buf = append(buf, qtail...)

	buf = dnsname.ToWire(name, buf, nil, false)
	rrHead := make([]byte, 10)
	binary.BigEndian.PutUint16(rrHead[0:2], uint16(TypeA))
	binary.BigEndian.PutUint16(rrHead[2:4], uint16(ClassINET))
	binary.BigEndian.PutUint32(rrHead[4:8], 300)
	binary.BigEndian.PutUint16(rrHead[8:10], 4)
	buf = append(buf, rrHead...)
	buf = append(buf, 93, 184, 216, 34) // 93.184.216.34
	return buf
}

func TestParseMessage(t *testing.T) {
	buf := buildSimpleMessage(t)
	m, err := ParseMessage(buf)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if m.Header.ID != 0x1234 {
		t.Errorf("ID = %#x, want 0x1234", m.Header.ID)
	}
	if len(m.Question) != 1 || len(m.Answer) != 1 {
		t.Fatalf("got %d questions, %d answers", len(m.Question), len(m.Answer))
	}
	ip, err := m.Answer[0].A()
	if err != nil {
		t.Fatalf("A(): %v", err)
	}
	if ip.String() != "93.184.216.34" {
		t.Errorf("A = %v, want 93.184.216.34", ip)
	}
}

func TestParseMessageRejectsRDLengthOverrun(t *testing.T) {
	buf := buildSimpleMessage(t)
	// Corrupt the answer rdlength to claim more bytes than remain.
	binary.BigEndian.PutUint16(buf[len(buf)-6:len(buf)-4], 0xffff)
	if _, err := ParseMessage(buf); err == nil {
		t.Error("expected error for rdlength overrun")
	}
}

func TestSOARoundTrip(t *testing.T) {
	mname := dnsname.MustFromText("ns1.example.com.")
	rname := dnsname.MustFromText("hostmaster.example.com.")
	soa := SOA{MName: mname, RName: rname, Serial: 2024010100, Refresh: 7200, Retry: 3600, Expire: 1209600, Minimum: 300}
	rdata := EncodeSOA(soa)

	msg := append([]byte(nil), make([]byte, 12)...)
	rr := RR{msgBuf: msg, rdataOff: len(msg), RData: rdata}
	msg = append(msg, rdata...)
	rr.msgBuf = msg

	got, err := rr.SOA()
	if err != nil {
		t.Fatalf("SOA(): %v", err)
	}
	if got.Serial != soa.Serial || !got.MName.Equal(mname) || !got.RName.Equal(rname) {
		t.Errorf("SOA round trip mismatch: %+v", got)
	}
}
