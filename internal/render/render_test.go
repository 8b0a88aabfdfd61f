package render

import (
	"testing"

	"github.com/dnsscience/stubresolver/internal/dnsname"
	"github.com/dnsscience/stubresolver/internal/wire"
)

func TestAddQuestionAndHeader(t *testing.T) {
	r := New(wire.FlagRD, 0, nil)
	name := dnsname.MustFromText("www.example.com.")
	if err := r.AddQuestion(name, wire.TypeA, wire.ClassINET); err != nil {
		t.Fatalf("AddQuestion: %v", err)
	}
	if _, err := r.WriteHeader(0x1234); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	m, err := wire.ParseMessage(r.Bytes())
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if m.Header.ID != 0x1234 {
		t.Errorf("ID = %#x", m.Header.ID)
	}
	if len(m.Question) != 1 || !m.Question[0].Name.Equal(name) {
		t.Fatalf("question mismatch: %+v", m.Question)
	}
}

func TestSectionOrderEnforced(t *testing.T) {
	r := New(0, 0, nil)
	name := dnsname.MustFromText("example.com.")
	if err := r.AddRR(SectionAnswer, name, wire.TypeA, wire.ClassINET, 300, wire.EncodeA([]byte{1, 2, 3, 4})); err != nil {
		t.Fatalf("AddRR: %v", err)
	}
	if err := r.AddQuestion(name, wire.TypeA, wire.ClassINET); err != ErrSectionOrder {
		t.Errorf("expected ErrSectionOrder, got %v", err)
	}
}

func TestCompressionAcrossSections(t *testing.T) {
	r := New(0, 0, nil)
	name := dnsname.MustFromText("www.example.com.")
	if err := r.AddQuestion(name, wire.TypeA, wire.ClassINET); err != nil {
		t.Fatal(err)
	}
	before := len(r.Bytes())
	if err := r.AddRR(SectionAnswer, name, wire.TypeA, wire.ClassINET, 300, wire.EncodeA([]byte{93, 184, 216, 34})); err != nil {
		t.Fatal(err)
	}
	grew := len(r.Bytes()) - before
	// owner name compresses to a 2-byte pointer + 10-byte RR header + 4-byte rdata.
	if grew != 2+10+4 {
		t.Errorf("expected compressed RR to add 16 bytes, added %d", grew)
	}
}

func TestRollbackToMark(t *testing.T) {
	r := New(0, 0, nil)
	name := dnsname.MustFromText("example.com.")
	if err := r.AddQuestion(name, wire.TypeA, wire.ClassINET); err != nil {
		t.Fatal(err)
	}
	mark := r.Mark()
	if err := r.AddRR(SectionAnswer, name, wire.TypeA, wire.ClassINET, 300, wire.EncodeA([]byte{1, 2, 3, 4})); err != nil {
		t.Fatal(err)
	}
	r.RollbackTo(mark)
	if len(r.Bytes()) != mark.offset {
		t.Errorf("RollbackTo did not truncate buffer")
	}
	qd, an, _, _ := r.Counts()
	if qd != 1 || an != 0 {
		t.Errorf("RollbackTo did not restore counts: qd=%d an=%d", qd, an)
	}
}

func TestAddOPTPadding(t *testing.T) {
	r := New(0, 0, nil)
	name := dnsname.MustFromText("example.com.")
	if err := r.AddQuestion(name, wire.TypeA, wire.ClassINET); err != nil {
		t.Fatal(err)
	}
	if err := r.AddOPT(4096, 0, 0, 0, nil, 128, 0, 0); err != nil {
		t.Fatalf("AddOPT: %v", err)
	}
	if len(r.Bytes())%128 != 0 {
		t.Errorf("padded message length %d is not a multiple of 128", len(r.Bytes()))
	}
}

func TestAddTSIGSigns(t *testing.T) {
	r := New(0, 0, nil)
	name := dnsname.MustFromText("example.com.")
	if err := r.AddQuestion(name, wire.TypeA, wire.ClassINET); err != nil {
		t.Fatal(err)
	}
	keyName := dnsname.MustFromText("key.example.com.")
	algo := dnsname.MustFromText("hmac-sha256.")
	if err := r.AddTSIG(keyName, []byte("secret"), algo, 1700000000, 300, 0x1234, 0, nil); err != nil {
		t.Fatalf("AddTSIG: %v", err)
	}
	if len(r.LastMAC()) == 0 {
		t.Error("expected a non-empty MAC to be recorded")
	}
}
