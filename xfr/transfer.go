package xfr

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/dnsscience/stubresolver/internal/dnsname"
	"github.com/dnsscience/stubresolver/internal/render"
	"github.com/dnsscience/stubresolver/internal/wire"
	"github.com/dnsscience/stubresolver/transport"
)

// Transfer performs one complete AXFR or IXFR against server over a
// dedicated TCP connection, feeding each response message through a fresh
// Inbound into mgr, and returns once the transfer commits. Grounded on the
// reference implementation's xfr.py driving make_query/Inbound over a
// caller-managed socket (query.py's send/receive loop is outside the
// retrieval pack, so the TCP session handling here is written directly
// against RFC 5936 §2.2's "one AXFR response may span many TCP messages"
// requirement using transport.WriteFramed/ReadFramed for wire framing).
func Transfer(ctx context.Context, server transport.Nameserver, mgr TxnManager, rdtype Rdtype, serial uint32, keyName *dnsname.Name, keySecret []byte, keyAlgorithm dnsname.Name) error {
	origin := mgr.Origin()

	qtype := wire.TypeAXFR
	if rdtype == RdtypeIXFR {
		qtype = wire.TypeIXFR
	}

	id, err := randomID()
	if err != nil {
		return fmt.Errorf("xfr: generating query id: %w", err)
	}

	rnd := render.New(0, 0, &origin)
	if err := rnd.AddQuestion(origin, qtype, wire.ClassINET); err != nil {
		return fmt.Errorf("xfr: rendering question: %w", err)
	}
	if rdtype == RdtypeIXFR {
		if err := addIXFRSOAHint(rnd, origin, serial); err != nil {
			return err
		}
	}
	if keySecret != nil {
		if err := rnd.AddTSIG(*keyName, keySecret, keyAlgorithm, 0, 300, 0, 0, nil); err != nil {
			return fmt.Errorf("xfr: signing request: %w", err)
		}
	}
	if _, err := rnd.WriteHeader(id); err != nil {
		return fmt.Errorf("xfr: writing header: %w", err)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", server.HostPort())
	if err != nil {
		return fmt.Errorf("xfr: dialing %s: %w", server.HostPort(), err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := transport.WriteFramed(conn, rnd.Bytes()); err != nil {
		return fmt.Errorf("xfr: sending request: %w", err)
	}

	in, err := New(mgr, rdtype, serial, false)
	if err != nil {
		return err
	}
	defer in.Close()

	for !in.Done() {
		raw, err := transport.ReadFramed(conn)
		if err != nil {
			return fmt.Errorf("xfr: reading response: %w", err)
		}
		msg, err := wire.ParseMessage(raw)
		if err != nil {
			return fmt.Errorf("xfr: parsing response: %w", err)
		}
		if msg.Header.ID != id {
			return fmt.Errorf("xfr: response id %d does not match query id %d", msg.Header.ID, id)
		}
		if err := CheckRcode(msg); err != nil {
			return err
		}
		if _, err := in.ProcessMessage(msg); err != nil {
			return err
		}
	}
	return nil
}

// addIXFRSOAHint renders the client's current SOA serial into the
// AUTHORITY section, per RFC 1995 §3's IXFR query format.
func addIXFRSOAHint(rnd *render.Renderer, origin dnsname.Name, serial uint32) error {
	rdata := wire.EncodeSOA(wire.SOA{
		MName: origin, RName: origin,
		Serial: serial, Refresh: 0, Retry: 0, Expire: 0, Minimum: 0,
	})
	return rnd.AddRR(render.SectionAuthority, origin, wire.TypeSOA, wire.ClassINET, 0, rdata)
}

func randomID() (uint16, error) {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}
