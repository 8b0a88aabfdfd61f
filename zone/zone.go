// Package zone holds an in-memory DNS zone: per-owner, per-type record
// sets, SOA-aware validation, and the load/transfer write path shared by
// master-file loading, YAML loading, and inbound zone transfer. Adapted
// from _examples/straticus1-dnsscienced/internal/zone/zone.go, re-pointed
// from that file's github.com/miekg/dns types onto this module's own
// internal/wire and internal/dnsname representations so a zone record is
// the same wire.RR the resolver, xfr, and update packages already use.
package zone

import (
	"fmt"
	"sync"
	"time"

	"github.com/dnsscience/stubresolver/internal/dnsname"
	"github.com/dnsscience/stubresolver/internal/render"
	"github.com/dnsscience/stubresolver/internal/wire"
)

// Config holds zone loader configuration, mirroring the teacher's parser
// Config (DefaultTTL/Strict/AllowIncludes/BaseDir) but scoped to the
// directives this module's master-file parser actually implements.
type Config struct {
	DefaultTTL    uint32
	Strict        bool
	AllowIncludes bool
	BaseDir       string
}

// DefaultConfig returns the teacher's defaults: an hour default TTL,
// strict-by-default parsing, and includes disabled (AllowIncludes false).
func DefaultConfig() Config {
	return Config{DefaultTTL: 3600, Strict: true, AllowIncludes: false, BaseDir: "."}
}

// Zone is an in-memory collection of records rooted at the zone's apex,
// organized by owner name (canonical text form) and then by type — the
// same two-level map shape as the teacher's Zone.Records, keyed by
// dnsname.Name's text form instead of a bare miekg/dns string. The apex
// name is unexported because its accessor, Origin(), also satisfies
// xfr.TxnManager.
type Zone struct {
	mu sync.RWMutex

	origin dnsname.Name
	Class  wire.Class

	// Records maps owner-name text -> type -> records at that owner.
	Records map[string]map[wire.Type][]wire.RR

	SOA *wire.RR
}

// New creates an empty zone rooted at origin.
func New(origin dnsname.Name) *Zone {
	return &Zone{
		origin:  origin,
		Class:   wire.ClassINET,
		Records: make(map[string]map[wire.Type][]wire.RR),
	}
}

// buildRR wire-encodes rdata into a synthetic single-RR message and
// re-parses it, so the resulting wire.RR carries the backing message
// buffer its own NameRData/SOA/MX/SRV/SVCB decoders require — the same
// technique xfr's tests use to manufacture RRs outside a live response.
func buildRR(owner dnsname.Name, typ wire.Type, class wire.Class, ttl uint32, rdata []byte) (wire.RR, error) {
	rnd := render.New(0, 65535, nil)
	if err := rnd.AddRR(render.SectionAnswer, owner, typ, class, ttl, rdata); err != nil {
		return wire.RR{}, fmt.Errorf("zone: encoding record: %w", err)
	}
	if _, err := rnd.WriteHeader(1); err != nil {
		return wire.RR{}, err
	}
	msg, err := wire.ParseMessage(rnd.Bytes())
	if err != nil {
		return wire.RR{}, fmt.Errorf("zone: re-parsing record: %w", err)
	}
	return msg.Answer[0], nil
}

// AddRecord inserts rr, which must be a subdomain of (or equal to) the
// zone's origin. An SOA record is additionally cached on z.SOA, matching
// the teacher's "store the SOA separately" shortcut for GetNameservers/
// Validate.
func (z *Zone) AddRecord(rr wire.RR) error {
	if !rr.Name.IsSubdomain(z.origin) {
		return fmt.Errorf("zone: record %s not in zone %s", rr.Name, z.origin)
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	z.addLocked(rr)
	return nil
}

// GetRecords returns every record of typ at owner, falling back to a
// wildcard match (e.g. "*.example.com." matching "foo.example.com.") one
// label at a time the way the teacher's GetRecords does, since RFC 1035
// §4.3.3 wildcard synthesis is otherwise invisible to a pure in-memory
// lookup table.
func (z *Zone) GetRecords(owner dnsname.Name, typ wire.Type) []wire.RR {
	z.mu.RLock()
	defer z.mu.RUnlock()
	if typeMap, ok := z.Records[owner.String()]; ok {
		if recs, ok := typeMap[typ]; ok {
			return recs
		}
	}
	labels := owner.Labels()
	for i := 1; i < len(labels); i++ {
		suffix, err := dnsname.FromText(joinLabels(labels[i:]), nil)
		if err != nil {
			continue
		}
		wildcard, err := dnsname.FromText("*."+suffix.String(), nil)
		if err != nil {
			continue
		}
		if typeMap, ok := z.Records[wildcard.String()]; ok {
			if recs, ok := typeMap[typ]; ok {
				out := make([]wire.RR, len(recs))
				for j, rr := range recs {
					clone := rr
					clone.Name = owner
					out[j] = clone
				}
				return out
			}
		}
	}
	return nil
}

func joinLabels(labels []string) string {
	out := ""
	for _, l := range labels {
		out += l + "."
	}
	return out
}

// GetAllRecords returns every record in the zone, in unspecified order.
func (z *Zone) GetAllRecords() []wire.RR {
	z.mu.RLock()
	defer z.mu.RUnlock()
	var out []wire.RR
	for _, typeMap := range z.Records {
		for _, recs := range typeMap {
			out = append(out, recs...)
		}
	}
	return out
}

// GetNameservers returns the apex NS records.
func (z *Zone) GetNameservers() []wire.RR {
	return z.GetRecords(z.origin, wire.TypeNS)
}

// Validate checks the structural invariants the teacher's Zone.Validate
// enforces: an apex SOA, at least one apex NS, in-zone NS targets having
// glue, and CNAME exclusivity at any owner that has one.
func (z *Zone) Validate() error {
	z.mu.RLock()
	defer z.mu.RUnlock()
	if z.SOA == nil {
		return fmt.Errorf("zone: %s missing SOA record", z.origin)
	}
	if !z.SOA.Name.Equal(z.origin) {
		return fmt.Errorf("zone: SOA name %s does not match origin %s", z.SOA.Name, z.origin)
	}
	ns := z.Records[z.origin.String()][wire.TypeNS]
	if len(ns) == 0 {
		return fmt.Errorf("zone: %s has no nameservers", z.origin)
	}
	for _, n := range ns {
		target, err := n.NameRData()
		if err != nil {
			continue
		}
		if !target.IsSubdomain(z.origin) {
			continue
		}
		typeMap := z.Records[target.String()]
		if len(typeMap[wire.TypeA]) == 0 && len(typeMap[wire.TypeAAAA]) == 0 {
			return fmt.Errorf("zone: nameserver %s is in-zone but missing glue records", target)
		}
	}
	for owner, typeMap := range z.Records {
		if cnames, ok := typeMap[wire.TypeCNAME]; ok {
			if len(typeMap) > 1 {
				return fmt.Errorf("zone: CNAME at %s coexists with other records", owner)
			}
			if len(cnames) > 1 {
				return fmt.Errorf("zone: multiple CNAME records at %s", owner)
			}
		}
	}
	return nil
}

// IncrementSerial bumps the SOA serial using the teacher's YYYYMMDDnn
// convention: jump forward to today's first serial if the stored serial
// predates today, otherwise a plain increment.
func (z *Zone) IncrementSerial() error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.SOA == nil {
		return fmt.Errorf("zone: no SOA record to increment")
	}
	soa, err := z.SOA.SOA()
	if err != nil {
		return fmt.Errorf("zone: decoding SOA: %w", err)
	}
	todaySerial := todaySerialBase(time.Now())
	if soa.Serial < todaySerial {
		soa.Serial = todaySerial
	} else {
		soa.Serial++
	}
	return z.replaceSOA(soa)
}

func todaySerialBase(t time.Time) uint32 {
	return uint32(t.Year())*1000000 + uint32(t.Month())*10000 + uint32(t.Day())*100
}

// replaceSOA rebuilds the zone's sole SOA record with soa's fields,
// keeping the original owner, class, and TTL.
func (z *Zone) replaceSOA(soa wire.SOA) error {
	owner, class, ttl := z.SOA.Name, z.SOA.Class, z.SOA.TTL
	rr, err := buildRR(owner, wire.TypeSOA, class, ttl, wire.EncodeSOA(soa))
	if err != nil {
		return err
	}
	z.Records[owner.String()][wire.TypeSOA] = []wire.RR{rr}
	z.SOA = &rr
	return nil
}

// Clone returns a deep copy of the zone (the record slices are copied;
// wire.RR values are themselves immutable once built, so copying the
// slice headers is sufficient).
func (z *Zone) Clone() *Zone {
	z.mu.RLock()
	defer z.mu.RUnlock()
	out := New(z.origin)
	out.Class = z.Class
	for owner, typeMap := range z.Records {
		out.Records[owner] = make(map[wire.Type][]wire.RR, len(typeMap))
		for typ, recs := range typeMap {
			out.Records[owner][typ] = append([]wire.RR(nil), recs...)
		}
	}
	if z.SOA != nil {
		cp := *z.SOA
		out.SOA = &cp
	}
	return out
}

// Stats summarizes zone size, matching the teacher's Stats shape.
type Stats struct {
	RecordSets int
	Records    int
	Owners     int
}

// GetStats computes zone statistics.
func (z *Zone) GetStats() Stats {
	z.mu.RLock()
	defer z.mu.RUnlock()
	var s Stats
	s.Owners = len(z.Records)
	for _, typeMap := range z.Records {
		for _, recs := range typeMap {
			s.RecordSets++
			s.Records += len(recs)
		}
	}
	return s
}
