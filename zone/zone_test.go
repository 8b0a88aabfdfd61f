package zone

import (
	"net"
	"testing"

	"github.com/dnsscience/stubresolver/internal/dnsname"
	"github.com/dnsscience/stubresolver/internal/wire"
)

func mustName(t *testing.T, s string) dnsname.Name {
	t.Helper()
	n, err := dnsname.FromText(s, &dnsname.Root)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func addSOAAndNS(t *testing.T, z *Zone, origin dnsname.Name) {
	t.Helper()
	mname := mustName(t, "ns1.example.com.")
	rname := mustName(t, "hostmaster.example.com.")
	soaRR, err := buildRR(origin, wire.TypeSOA, wire.ClassINET, 3600,
		wire.EncodeSOA(wire.SOA{MName: mname, RName: rname, Serial: 2024010100, Refresh: 7200, Retry: 3600, Expire: 1209600, Minimum: 300}))
	if err != nil {
		t.Fatal(err)
	}
	if err := z.AddRecord(soaRR); err != nil {
		t.Fatal(err)
	}
	nsRR, err := buildRR(origin, wire.TypeNS, wire.ClassINET, 3600, wire.EncodeName(mname))
	if err != nil {
		t.Fatal(err)
	}
	if err := z.AddRecord(nsRR); err != nil {
		t.Fatal(err)
	}
	glueRR, err := buildRR(mname, wire.TypeA, wire.ClassINET, 3600, wire.EncodeA(net.IPv4(192, 0, 2, 53)))
	if err != nil {
		t.Fatal(err)
	}
	if err := z.AddRecord(glueRR); err != nil {
		t.Fatal(err)
	}
}

func TestAddRecordRejectsOutOfZoneOwner(t *testing.T) {
	origin := mustName(t, "example.com.")
	z := New(origin)
	outside := mustName(t, "www.example.org.")
	rr, err := buildRR(outside, wire.TypeA, wire.ClassINET, 300, wire.EncodeA(net.IPv4(1, 2, 3, 4)))
	if err != nil {
		t.Fatal(err)
	}
	if err := z.AddRecord(rr); err == nil {
		t.Fatal("expected an out-of-zone record to be rejected")
	}
}

func TestValidatePassesWithSOANSAndGlue(t *testing.T) {
	origin := mustName(t, "example.com.")
	z := New(origin)
	addSOAAndNS(t, z, origin)
	if err := z.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
}

func TestValidateFailsWithoutGlue(t *testing.T) {
	origin := mustName(t, "example.com.")
	z := New(origin)
	mname := mustName(t, "ns1.example.com.")
	rname := mustName(t, "hostmaster.example.com.")
	soaRR, _ := buildRR(origin, wire.TypeSOA, wire.ClassINET, 3600,
		wire.EncodeSOA(wire.SOA{MName: mname, RName: rname, Serial: 1, Refresh: 1, Retry: 1, Expire: 1, Minimum: 1}))
	z.AddRecord(soaRR)
	nsRR, _ := buildRR(origin, wire.TypeNS, wire.ClassINET, 3600, wire.EncodeName(mname))
	z.AddRecord(nsRR)
	if err := z.Validate(); err == nil {
		t.Fatal("expected validation to fail for an in-zone nameserver with no glue")
	}
}

func TestWildcardLookup(t *testing.T) {
	origin := mustName(t, "example.com.")
	z := New(origin)
	wildcard := mustName(t, "*.example.com.")
	rr, err := buildRR(wildcard, wire.TypeA, wire.ClassINET, 300, wire.EncodeA(net.IPv4(203, 0, 113, 9)))
	if err != nil {
		t.Fatal(err)
	}
	if err := z.AddRecord(rr); err != nil {
		t.Fatal(err)
	}
	got := z.GetRecords(mustName(t, "anything.example.com."), wire.TypeA)
	if len(got) != 1 {
		t.Fatalf("expected wildcard match, got %d records", len(got))
	}
	if !got[0].Name.Equal(mustName(t, "anything.example.com.")) {
		t.Errorf("expected synthesized owner name, got %s", got[0].Name)
	}
}

func TestIncrementSerialJumpsToToday(t *testing.T) {
	origin := mustName(t, "example.com.")
	z := New(origin)
	mname := mustName(t, "ns1.example.com.")
	rname := mustName(t, "hostmaster.example.com.")
	soaRR, _ := buildRR(origin, wire.TypeSOA, wire.ClassINET, 3600,
		wire.EncodeSOA(wire.SOA{MName: mname, RName: rname, Serial: 1, Refresh: 1, Retry: 1, Expire: 1, Minimum: 1}))
	z.AddRecord(soaRR)
	if err := z.IncrementSerial(); err != nil {
		t.Fatal(err)
	}
	soa, err := z.SOA.SOA()
	if err != nil {
		t.Fatal(err)
	}
	if soa.Serial <= 1 {
		t.Errorf("expected serial to jump forward from 1, got %d", soa.Serial)
	}
}

func TestCommitViaTransactionAppliesDeletesThenAdds(t *testing.T) {
	origin := mustName(t, "example.com.")
	z := New(origin)
	addSOAAndNS(t, z, origin)

	owner := mustName(t, "www.example.com.")
	oldRR, _ := buildRR(owner, wire.TypeA, wire.ClassINET, 300, wire.EncodeA(net.IPv4(192, 0, 2, 1)))
	z.AddRecord(oldRR)

	w, err := z.Writer()
	if err != nil {
		t.Fatal(err)
	}
	newRR, _ := buildRR(owner, wire.TypeA, wire.ClassINET, 300, wire.EncodeA(net.IPv4(192, 0, 2, 2)))
	if err := w.Delete([]wire.RR{oldRR}); err != nil {
		t.Fatal(err)
	}
	if err := w.Add([]wire.RR{newRR}); err != nil {
		t.Fatal(err)
	}
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}

	got := z.GetRecords(owner, wire.TypeA)
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 A record after replace, got %d", len(got))
	}
	ip, _ := got[0].A()
	if ip.String() != "192.0.2.2" {
		t.Errorf("expected updated address, got %s", ip)
	}
}

func TestZoneSatisfiesXFRTxnManager(t *testing.T) {
	origin := mustName(t, "example.com.")
	z := New(origin)
	if !z.Origin().Equal(origin) {
		t.Errorf("Origin() = %s, want %s", z.Origin(), origin)
	}
}
