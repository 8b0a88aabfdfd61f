package resolver

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/dnsscience/stubresolver/internal/dnsname"
	"github.com/dnsscience/stubresolver/internal/render"
	"github.com/dnsscience/stubresolver/internal/wire"
	"github.com/dnsscience/stubresolver/transport"
)

func mustName(t *testing.T, text string) dnsname.Name {
	t.Helper()
	n, err := dnsname.FromText(text, &dnsname.Root)
	if err != nil {
		t.Fatalf("FromText(%q): %v", text, err)
	}
	return n
}

// buildResponse renders a minimal response with the given rcode to the
// question in query, with one A-record answer for name if addAnswer is true.
func buildResponse(t *testing.T, query []byte, name dnsname.Name, addAnswer bool, rcode int) []byte {
	t.Helper()
	id := binary.BigEndian.Uint16(query[0:2])
	flags := uint16(0x8180) | uint16(rcode&0xf) // QR|RD|RA
	rnd := render.New(flags, 65535, nil)
	if err := rnd.AddQuestion(name, wire.TypeA, wire.ClassINET); err != nil {
		t.Fatal(err)
	}
	if addAnswer {
		if err := rnd.AddRR(render.SectionAnswer, name, wire.TypeA, wire.ClassINET, 300, wire.EncodeA(net.IPv4(1, 2, 3, 4))); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := rnd.WriteHeader(id); err != nil {
		t.Fatal(err)
	}
	return rnd.Bytes()
}

func newTestResolver(t *testing.T, fn transport.Responder) (*Resolver, *transport.Mock) {
	t.Helper()
	mock := &transport.Mock{Fn: fn}
	r, err := New(Options{
		Nameservers: []transport.Nameserver{{Addr: "127.0.0.1", Port: 53, Kind: transport.KindDo53}},
		Transport:   mock,
		Lifetime:    2 * time.Second,
		Timeout:     500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r, mock
}

func TestResolveCachesSecondCallNoNetwork(t *testing.T) {
	calls := 0
	name := mustName(t, "www.example.com.")
	r, _ := newTestResolver(t, func(server transport.Nameserver, query []byte, forceTCP bool) ([]byte, error) {
		calls++
		return buildResponse(t, query, name, true, 0), nil
	})

	ctx := context.Background()
	if _, err := r.Resolve(ctx, name, wire.TypeA, wire.ClassINET); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if _, err := r.Resolve(ctx, name, wire.TypeA, wire.ClassINET); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one network query, got %d", calls)
	}
}

func TestSearchListOrderNdots(t *testing.T) {
	r, _ := newTestResolver(t, nil)
	r.opts.Ndots = 1
	r.opts.Search = []dnsname.Name{mustName(t, "a.test."), mustName(t, "b.test.")}

	got := r.getQnamesToTry(mustName(t, "foo"))
	want := []string{"foo.a.test.", "foo.b.test.", "foo."}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d: %v", len(got), len(want), got)
	}
	for i, g := range got {
		if g.String() != want[i] {
			t.Errorf("candidate %d = %q, want %q", i, g.String(), want[i])
		}
	}
}

func TestNXDOMAINAggregatesAllCandidates(t *testing.T) {
	r, _ := newTestResolver(t, func(server transport.Nameserver, query []byte, forceTCP bool) ([]byte, error) {
		msg, err := wire.ParseMessage(query)
		if err != nil {
			t.Fatal(err)
		}
		return buildResponse(t, query, msg.Question[0].Name, false, 3), nil
	})
	r.opts.Ndots = 1
	r.opts.Search = []dnsname.Name{mustName(t, "a.test."), mustName(t, "b.test.")}

	_, err := r.Resolve(context.Background(), mustName(t, "foo"), wire.TypeA, wire.ClassINET)
	nx, ok := err.(*NXDOMAIN)
	if !ok {
		t.Fatalf("expected *NXDOMAIN, got %T: %v", err, err)
	}
	if len(nx.QNames()) != 3 {
		t.Fatalf("expected 3 qnames tried, got %d: %v", len(nx.QNames()), nx.QNames())
	}
}

func TestDecodeRcodeWithoutOPTUsesHeaderNibbleOnly(t *testing.T) {
	name := mustName(t, "www.example.com.")
	flags := uint16(0x8180) | uint16(3&0xf) // NXDOMAIN
	rnd := render.New(flags, 65535, nil)
	if err := rnd.AddQuestion(name, wire.TypeA, wire.ClassINET); err != nil {
		t.Fatal(err)
	}
	if _, err := rnd.WriteHeader(1); err != nil {
		t.Fatal(err)
	}
	msg, err := wire.ParseMessage(rnd.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	rc, err := decodeRcode(msg)
	if err != nil {
		t.Fatal(err)
	}
	if rc != 3 {
		t.Errorf("decodeRcode() = %d, want 3 (NXDOMAIN)", rc)
	}
}

func TestDecodeRcodeCombinesOPTExtendedByte(t *testing.T) {
	name := mustName(t, "www.example.com.")
	flags := uint16(0x8180) // NOERROR in the header nibble
	rnd := render.New(flags, 65535, nil)
	if err := rnd.AddQuestion(name, wire.TypeA, wire.ClassINET); err != nil {
		t.Fatal(err)
	}
	// BADVERS is 16: low nibble 0 (already in flags), extended byte 1 in the
	// OPT TTL field's top 8 bits.
	optTTL := uint32(1) << 24
	if err := rnd.AddRR(render.SectionAdditional, dnsname.Root, wire.TypeOPT, wire.ClassINET, optTTL, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := rnd.WriteHeader(1); err != nil {
		t.Fatal(err)
	}
	msg, err := wire.ParseMessage(rnd.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	rc, err := decodeRcode(msg)
	if err != nil {
		t.Fatal(err)
	}
	if rc != 16 {
		t.Errorf("decodeRcode() = %d, want 16 (BADVERS)", rc)
	}
}

func TestLifetimeTimeoutAgainstBlackHole(t *testing.T) {
	r, _ := newTestResolver(t, func(server transport.Nameserver, query []byte, forceTCP bool) ([]byte, error) {
		time.Sleep(50 * time.Millisecond)
		return nil, context.DeadlineExceeded
	})
	r.opts.Lifetime = 120 * time.Millisecond
	r.opts.Timeout = 30 * time.Millisecond

	start := time.Now()
	_, err := r.Resolve(context.Background(), mustName(t, "black.hole."), wire.TypeA, wire.ClassINET)
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected an error")
	}
	if elapsed > r.opts.Lifetime+500*time.Millisecond {
		t.Fatalf("resolve took %v, want close to lifetime %v", elapsed, r.opts.Lifetime)
	}
}
