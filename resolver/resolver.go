// Package resolver implements the stub-resolver query engine: search-list
// planning, per-server retry with UDP→TCP truncation fallback, NXDOMAIN
// aggregation across candidate names, and cache population. Control flow is
// ported from the reference implementation's BaseResolver/_Resolution/
// Resolver.resolve (fully implemented there); Go concurrency idioms
// (context deadlines, errors.Is/As) are grounded on the teacher's
// engine.Resolver Config/Close/GetStats conventions, re-pointed from the
// teacher's dns.Client-style exchange onto this module's own
// transport.Transport capability rather than miekg/dns.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dnsscience/stubresolver/internal/cookie"
	"github.com/dnsscience/stubresolver/internal/dnsname"
	"github.com/dnsscience/stubresolver/internal/rcache"
	"github.com/dnsscience/stubresolver/internal/random"
	"github.com/dnsscience/stubresolver/internal/rcode"
	"github.com/dnsscience/stubresolver/internal/render"
	"github.com/dnsscience/stubresolver/internal/wire"
	"github.com/dnsscience/stubresolver/transport"
)

// Answer and CacheKey are re-exported from internal/rcache so callers never
// need to import that package directly.
type Answer = rcache.Answer
type CacheKey = rcache.CacheKey

// Options configures a Resolver. Mutating an Options after passing it to
// New does not affect the constructed Resolver. The nameserver list can be
// replaced afterward with SetNameservers, which is synchronized internally.
type Options struct {
	Nameservers []transport.Nameserver
	Search      []dnsname.Name
	Ndots       int

	EDNS        bool
	PayloadSize uint16
	UseCookies  bool

	TSIGKeyName  *dnsname.Name
	TSIGSecret   []byte
	TSIGAlgorithm dnsname.Name

	Cache rcache.Cache

	Timeout         time.Duration // per transport call
	Lifetime        time.Duration // whole Resolve budget
	Rotate          bool
	ForceTCP        bool
	RetryServfail   bool
	RaiseOnNoAnswer bool

	RateLimit *rate.Limiter // optional, shared across all nameservers

	Transport transport.Transport
	Logger    *slog.Logger
}

// Resolver is the stub-resolver engine. It is safe for concurrent use: the
// cache and nameserver rotation state are guarded internally; Options
// fields set at construction are treated as read-only during Resolve.
type Resolver struct {
	opts Options

	mu          sync.Mutex // guards nameserver rotation only
	nameservers []transport.Nameserver

	cache     rcache.Cache
	transport transport.Transport
	cookies   *cookie.ClientJar
	log       *slog.Logger
}

// New constructs a Resolver from opts, applying defaults the way the
// teacher's Config-struct-plus-DefaultXConfig convention does throughout
// (cache.Config, engine.ResolverConfig, worker.Config).
func New(opts Options) (*Resolver, error) {
	if len(opts.Nameservers) == 0 {
		return nil, ErrConfigError
	}
	if opts.Ndots == 0 {
		opts.Ndots = 1
	}
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}
	if opts.Lifetime == 0 {
		opts.Lifetime = 5 * time.Second
	}
	if opts.PayloadSize == 0 {
		opts.PayloadSize = 1232
	}
	if opts.Transport == nil {
		opts.Transport = &transport.Dialer{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Cache == nil {
		opts.Cache = rcache.NewSimple(0)
	}

	r := &Resolver{
		opts:        opts,
		nameservers: append([]transport.Nameserver(nil), opts.Nameservers...),
		cache:       opts.Cache,
		transport:   opts.Transport,
		log:         opts.Logger,
	}
	if opts.UseCookies {
		r.cookies = cookie.NewClientJar()
	}
	return r, nil
}

// Nameservers returns a snapshot of the current nameserver list.
func (r *Resolver) Nameservers() []transport.Nameserver {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transport.Nameserver(nil), r.nameservers...)
}

// SetNameservers replaces the resolver's nameserver list, used by TryDDR
// and by callers reconfiguring after a resolv.conf reload.
func (r *Resolver) SetNameservers(ns []transport.Nameserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nameservers = append([]transport.Nameserver(nil), ns...)
}

// Cache returns the resolver's answer cache (a Simple cache when
// Options.Cache was nil, so never nil).
// Exposed so callers (e.g. a metrics-syncing goroutine) can read its
// statistics without this package importing internal/metrics.
func (r *Resolver) Cache() rcache.Cache {
	return r.cache
}

// nextServer returns the server to try next, applying the rotate policy:
// pop-front-then-append if Rotate, else the attempt-th server in list order.
func (r *Resolver) nextServer(attempt int) (transport.Nameserver, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.nameservers)
	if n == 0 {
		return transport.Nameserver{}, false
	}
	if attempt >= n {
		return transport.Nameserver{}, false
	}
	if !r.opts.Rotate {
		return r.nameservers[attempt], true
	}
	ns := r.nameservers[0]
	r.nameservers = append(r.nameservers[1:], ns)
	return ns, true
}

// getQnamesToTry implements the search-list planner: for a relative qname
// with more than Ndots dots, the bare name is tried first, then the search
// list; otherwise the search list is tried first and the bare name last.
// An absolute qname has exactly one candidate, itself. Ported from prose in
// SPEC_FULL.md §4.3 plus worked example §8 scenario 5 — no recoverable
// reference body exists for this function in the retrieval pack.
func (r *Resolver) getQnamesToTry(qname dnsname.Name) []dnsname.Name {
	if qname.IsAbsolute() {
		return []dnsname.Name{qname}
	}

	dots := 0
	for _, lbl := range qname.Labels() {
		_ = lbl
		dots++
	}
	if dots > 0 {
		dots-- // number of dot separators, not label count
	}

	bare, err := qname.Derelativize(dnsname.Root)
	if err != nil {
		return nil
	}

	var candidates []dnsname.Name
	appendSearch := func() {
		for _, origin := range r.opts.Search {
			abs, err := qname.Derelativize(origin)
			if err == nil {
				candidates = append(candidates, abs)
			}
		}
	}

	if dots > r.opts.Ndots {
		candidates = append(candidates, bare)
		appendSearch()
	} else {
		appendSearch()
		candidates = append(candidates, bare)
	}
	return candidates
}

// Resolve looks up qname (rdtype, rdclass), returning a populated Answer on
// success. See SPEC_FULL.md §4.3 for the full per-query loop this method
// implements.
func (r *Resolver) Resolve(ctx context.Context, qname dnsname.Name, rdtype wire.Type, rdclass wire.Class) (Answer, error) {
	candidates := r.getQnamesToTry(qname)
	if len(candidates) == 0 {
		return Answer{}, fmt.Errorf("resolver: %s has no valid candidate names", qname)
	}

	deadline := time.Now().Add(r.opts.Lifetime)
	var trace []Trace
	var nx *NXDOMAIN

	for _, candidate := range candidates {
		key := CacheKey{Name: candidate, Type: rdtype, Class: rdclass}
		if a, ok := r.cache.Get(key); ok {
			if a.NXDomain {
				// Matches the reference _Resolution.next_request: record and
				// continue silently rather than surfacing immediately
				// (SPEC_FULL.md §9 resolved Open Question).
				if nx == nil {
					nx = newNXDOMAIN()
				}
				nx.record(candidate, a.Response)
				continue
			}
			return a, nil
		}

		if time.Now().After(deadline) {
			return Answer{}, &LifetimeTimeout{Qname: qname, Trace: trace}
		}

		answer, candidateNX, cTrace, err := r.resolveCandidate(ctx, candidate, rdtype, rdclass, deadline)
		trace = append(trace, cTrace...)
		if err != nil {
			var lt *LifetimeTimeout
			if errors.As(err, &lt) {
				lt.Qname = qname
				return Answer{}, lt
			}
			return Answer{}, err
		}
		if candidateNX != nil {
			if nx == nil {
				nx = candidateNX
			} else {
				nx = nx.Merge(candidateNX)
			}
			r.cache.Put(key, Answer{Qname: candidate, Rdtype: rdtype, Rdclass: rdclass, NXDomain: true,
				Response: candidateNX.Responses[candidate.String()], Expiration: time.Now().Add(5 * time.Minute)})
			continue
		}
		if answer != nil {
			return *answer, nil
		}
		// every server failed for this candidate; fall through trying the
		// next candidate name only if one remains, else NoNameservers below.
	}

	if nx != nil {
		return Answer{}, nx
	}
	return Answer{}, &NoNameservers{Qname: qname, Trace: trace}
}

// resolveCandidate runs the per-nameserver retry loop for a single
// candidate qname, returning exactly one of: a positive Answer, an
// NXDOMAIN, or (nil, nil, trace, nil) meaning every server failed and the
// caller should try the next candidate.
func (r *Resolver) resolveCandidate(ctx context.Context, qname dnsname.Name, rdtype wire.Type, rdclass wire.Class, deadline time.Time) (*Answer, *NXDOMAIN, []Trace, error) {
	var trace []Trace
	n := len(r.Nameservers())

	for attempt := 0; attempt < n; attempt++ {
		if time.Now().After(deadline) {
			return nil, nil, trace, &LifetimeTimeout{Trace: trace}
		}
		server, ok := r.nextServer(attempt)
		if !ok {
			break
		}

		if r.opts.RateLimit != nil {
			if err := r.opts.RateLimit.Wait(ctx); err != nil {
				trace = append(trace, Trace{Server: server.Addr, Err: err})
				continue
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
		resp, err := r.query(callCtx, server, qname, rdtype, rdclass, false)
		cancel()
		if err != nil {
			r.log.Debug("resolver: transport error", "server", server.Addr, "qname", qname.String(), "error", err)
			trace = append(trace, Trace{Server: server.Addr, Err: err})
			if ctx.Err() != nil {
				return nil, nil, trace, &LifetimeTimeout{Trace: trace}
			}
			continue
		}

		if resp.Header.Flags&wire.FlagTC != 0 && server.Kind == transport.KindDo53 {
			callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
			tcpResp, tcpErr := r.query(callCtx, server, qname, rdtype, rdclass, true)
			cancel()
			if tcpErr != nil {
				trace = append(trace, Trace{Server: server.Addr, Err: fmt.Errorf("tcp fallback: %w", tcpErr)})
				continue
			}
			resp = tcpResp
		}

		rc, rcErr := decodeRcode(resp)
		if rcErr != nil {
			trace = append(trace, Trace{Server: server.Addr, Err: rcErr})
			continue
		}

		switch {
		case rc == 2: // SERVFAIL
			// RetryServfail is not consulted: a SERVFAIL always moves on to
			// the next server, and each server gets one attempt per
			// candidate name.
			trace = append(trace, Trace{Server: server.Addr, Err: fmt.Errorf("SERVFAIL")})
			continue
		case rc == 3: // NXDOMAIN
			nx := newNXDOMAIN()
			nx.record(qname, resp)
			return nil, nx, trace, nil
		case rc == 0: // NOERROR
			answer := buildAnswer(qname, rdtype, rdclass, resp)
			if answer.RRset == nil && r.opts.RaiseOnNoAnswer {
				return nil, nil, trace, &NoAnswer{Qname: qname, Rdtype: rdtype}
			}
			r.cache.Put(CacheKey{Name: qname, Type: rdtype, Class: rdclass}, answer)
			return &answer, nil, trace, nil
		default:
			trace = append(trace, Trace{Server: server.Addr, Err: fmt.Errorf("rcode %s", rcode.Rcode(rc))})
			continue
		}
	}
	return nil, nil, trace, nil
}

// decodeRcode returns the response's full 12-bit rcode: the header flags'
// low 4 bits combined with the high 8 bits an EDNS(0) OPT record carries in
// its TTL field, per RFC 6891 §6.1.3. A response with no OPT record (no
// EDNS) has no extended bits, so only the header nibble applies.
func decodeRcode(m *wire.Message) (int, error) {
	var ednsflags uint32
	for _, rr := range m.Additional {
		if rr.Type == wire.TypeOPT {
			ednsflags = rr.TTL
			break
		}
	}
	rc, err := rcode.FromFlags(m.Header.Flags, ednsflags)
	if err != nil {
		return 0, fmt.Errorf("resolver: %w", err)
	}
	return int(rc), nil
}

// query renders a single query message for qname/rdtype/rdclass and
// dispatches it over the resolver's transport, parsing the raw response.
func (r *Resolver) query(ctx context.Context, server transport.Nameserver, qname dnsname.Name, rdtype wire.Type, rdclass wire.Class, forceTCP bool) (*wire.Message, error) {
	flags := uint16(0x0100) // RD
	rnd := render.New(flags, 65535, nil)
	if err := rnd.AddQuestion(qname, rdtype, rdclass); err != nil {
		return nil, fmt.Errorf("resolver: building question: %w", err)
	}
	if r.opts.EDNS {
		if err := rnd.AddOPT(r.opts.PayloadSize, 0, 0, 0, nil, 0, 0, 0); err != nil {
			return nil, fmt.Errorf("resolver: adding OPT: %w", err)
		}
	}
	if r.opts.TSIGSecret != nil && r.opts.TSIGKeyName != nil {
		if err := rnd.AddTSIG(*r.opts.TSIGKeyName, r.opts.TSIGSecret, r.opts.TSIGAlgorithm, uint64(time.Now().Unix()), 300, 0, 0, nil); err != nil {
			return nil, fmt.Errorf("resolver: signing query: %w", err)
		}
	}
	id, err := rnd.WriteHeader(randomID())
	if err != nil {
		return nil, err
	}

	raw, err := r.transport.Query(ctx, server, rnd.Bytes(), forceTCP)
	if err != nil {
		return nil, err
	}
	resp, err := wire.ParseMessage(raw)
	if err != nil {
		return nil, fmt.Errorf("resolver: parsing response: %w", err)
	}
	if resp.Header.ID != id {
		return nil, fmt.Errorf("resolver: response id %d does not match query id %d", resp.Header.ID, id)
	}
	return resp, nil
}

func randomID() uint16 {
	return random.TransactionID()
}

// buildAnswer constructs an Answer from a NOERROR response, resolving the
// minimum TTL across any CNAME chain and picking the RRset matching
// rdtype, or leaving RRset nil (a "no answer" case the caller decides how
// to surface).
func buildAnswer(qname dnsname.Name, rdtype wire.Type, rdclass wire.Class, resp *wire.Message) Answer {
	canonical := qname
	var minTTL uint32 = ^uint32(0)
	var rrset []wire.RR

	for {
		advanced := false
		for _, rr := range resp.Answer {
			if !rr.Name.Equal(canonical) {
				continue
			}
			if rr.TTL < minTTL {
				minTTL = rr.TTL
			}
			if rr.Type == rdtype && rr.Class == rdclass {
				rrset = append(rrset, rr)
			} else if rr.Type == wire.TypeCNAME {
				target, err := rr.NameRData()
				if err == nil {
					canonical = target
					advanced = true
				}
			}
		}
		if !advanced {
			break
		}
	}
	if minTTL == ^uint32(0) {
		minTTL = 0
	}
	return Answer{
		Qname:      qname,
		Rdtype:     rdtype,
		Rdclass:    rdclass,
		Response:   resp,
		Canonical:  canonical,
		RRset:      rrset,
		Expiration: time.Now().Add(time.Duration(minTTL) * time.Second),
	}
}

// ResolveAddress builds a reverse-lookup name for ip and queries PTR.
func (r *Resolver) ResolveAddress(ctx context.Context, ip net.IP) (Answer, error) {
	name, err := reverseName(ip)
	if err != nil {
		return Answer{}, err
	}
	return r.Resolve(ctx, name, wire.TypePTR, wire.ClassINET)
}

func reverseName(ip net.IP) (dnsname.Name, error) {
	if v4 := ip.To4(); v4 != nil {
		text := fmt.Sprintf("%d.%d.%d.%d.in-addr.arpa.", v4[3], v4[2], v4[1], v4[0])
		return dnsname.FromText(text, &dnsname.Root)
	}
	v6 := ip.To16()
	if v6 == nil {
		return dnsname.Name{}, fmt.Errorf("resolver: %v is not a valid IP address", ip)
	}
	nibbles := make([]byte, 0, 32*2)
	for i := len(v6) - 1; i >= 0; i-- {
		hi := v6[i] >> 4
		lo := v6[i] & 0x0f
		nibbles = append(nibbles, hexDigit(lo), '.', hexDigit(hi), '.')
	}
	text := string(nibbles) + "ip6.arpa."
	return dnsname.FromText(text, &dnsname.Root)
}

func hexDigit(v byte) byte {
	if v < 10 {
		return '0' + v
	}
	return 'a' + (v - 10)
}

// HostAnswers maps rdtype (A and/or AAAA) to the Answer ResolveName found
// for it.
type HostAnswers map[wire.Type]Answer

// ResolveName performs A and/or AAAA lookups for name depending on family
// ("ip4", "ip6", or "" for both) and returns the per-type answers found.
// If every lookup fails, it returns the error of the last one. An answer
// with no RRset (RaiseOnNoAnswer unset) counts as found, so NoAnswer is
// returned only when the lookups themselves return it.
func (r *Resolver) ResolveName(ctx context.Context, name dnsname.Name, family string) (HostAnswers, error) {
	types := []wire.Type{}
	switch family {
	case "ip4":
		types = append(types, wire.TypeA)
	case "ip6":
		types = append(types, wire.TypeAAAA)
	default:
		types = append(types, wire.TypeA, wire.TypeAAAA)
	}

	out := make(HostAnswers)
	var lastErr error
	for _, t := range types {
		a, err := r.Resolve(ctx, name, t, wire.ClassINET)
		if err != nil {
			lastErr = err
			continue
		}
		out[t] = a
	}
	if len(out) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, &NoAnswer{Qname: name, Rdtype: wire.TypeA}
	}
	return out, nil
}

// CanonicalName chases the CNAME chain for name iteratively via a plain
// lookup, detecting a fixpoint (a name that maps to itself, or a repeat
// already seen) rather than looping forever.
func (r *Resolver) CanonicalName(ctx context.Context, name dnsname.Name) (dnsname.Name, error) {
	seen := map[string]bool{}
	current := name
	for {
		if seen[current.String()] {
			return current, nil
		}
		seen[current.String()] = true

		a, err := r.Resolve(ctx, current, wire.TypeCNAME, wire.ClassINET)
		if err != nil {
			var na *NoAnswer
			if errors.As(err, &na) {
				return current, nil
			}
			return current, err
		}
		if len(a.RRset) == 0 {
			return current, nil
		}
		target, err := a.RRset[0].NameRData()
		if err != nil {
			return current, nil
		}
		if target.Equal(current) {
			return current, nil
		}
		current = target
	}
}
