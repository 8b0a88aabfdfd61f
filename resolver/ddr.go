package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/dnsscience/stubresolver/ddr"
	"github.com/dnsscience/stubresolver/internal/dnsname"
	"github.com/dnsscience/stubresolver/internal/wire"
	"github.com/dnsscience/stubresolver/transport"
)

// ResolverARPA is the well-known query name DDR bootstrap uses to discover
// designated resolvers, per RFC 9462 §3.
var ResolverARPA = dnsname.MustFromText("_dns.resolver.arpa.")

// TryDDR queries ResolverARPA for SVCB records, TLS-validates each returned
// target via package ddr, and — if any candidate validated — replaces the
// resolver's nameserver list with the validated encrypted nameservers.
// Ported from the reference Resolver's try_ddr/_get_nameservers_sync
// (fully implemented in _examples/original_source/dns/_ddr.py).
func (r *Resolver) TryDDR(ctx context.Context, lifetime time.Duration) (int, error) {
	if lifetime <= 0 {
		lifetime = r.opts.Lifetime
	}
	ctx, cancel := context.WithTimeout(ctx, lifetime)
	defer cancel()

	answer, err := r.Resolve(ctx, ResolverARPA, wire.TypeSVCB, wire.ClassINET)
	if err != nil {
		return 0, fmt.Errorf("resolver: ddr bootstrap query: %w", err)
	}

	var validated []transport.Nameserver
	for _, rr := range answer.RRset {
		if rr.Type != wire.TypeSVCB {
			continue
		}
		svcb, err := rr.SVCB()
		if err != nil {
			continue
		}
		port := 853
		for _, p := range svcb.Params {
			if p.Key == 3 && len(p.Value) == 2 { // "port" SvcParamKey
				port = int(p.Value[0])<<8 | int(p.Value[1])
			}
		}
		hostname := svcb.Target.String()
		candidate := ddr.Candidate{BootstrapAddress: hostname, Port: port, Hostname: hostname}

		ok, err := ddr.Verify(ctx, candidate)
		if err != nil || !ok {
			continue
		}
		validated = append(validated, transport.Nameserver{
			Addr: hostname, Port: port, Kind: transport.KindDoT, TLSServerName: hostname,
		})
	}

	if len(validated) > 0 {
		r.SetNameservers(validated)
	}
	return len(validated), nil
}
