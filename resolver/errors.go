package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dnsscience/stubresolver/internal/dnsname"
	"github.com/dnsscience/stubresolver/internal/wire"
)

// ErrConfigError is surfaced when a Resolver has no nameservers configured.
var ErrConfigError = errors.New("resolver: no nameservers configured")

// ErrNoAnswer is wrapped by NoAnswer errors; see that type for the carried
// qname/rdtype.
var ErrNoAnswer = errors.New("resolver: the response has no answer of the requested type")

// Trace records one failed attempt against a single nameserver, threaded
// through NoNameservers and LifetimeTimeout so callers can see why every
// server failed.
type Trace struct {
	Server string
	Err    error
}

// NoAnswer is surfaced when a response is NOERROR but carries no RRset of
// the requested type, and the caller asked to be told (RaiseOnNoAnswer).
type NoAnswer struct {
	Qname  dnsname.Name
	Rdtype wire.Type
}

func (e *NoAnswer) Error() string {
	return fmt.Sprintf("resolver: %s has no %s record", e.Qname, e.Rdtype)
}
func (e *NoAnswer) Unwrap() error { return ErrNoAnswer }

// NoNameservers is surfaced when every configured nameserver failed without
// producing a terminal NOERROR/NXDOMAIN response.
type NoNameservers struct {
	Qname dnsname.Name
	Trace []Trace
}

func (e *NoNameservers) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "resolver: all nameservers failed for %s: ", e.Qname)
	for i, t := range e.Trace {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %v", t.Server, t.Err)
	}
	return b.String()
}

// LifetimeTimeout is surfaced when a Resolve call's overall lifetime budget
// is exhausted before a terminal response was obtained.
type LifetimeTimeout struct {
	Qname   dnsname.Name
	Trace   []Trace
}

func (e *LifetimeTimeout) Error() string {
	return fmt.Sprintf("resolver: lifetime exceeded resolving %s after %d attempts", e.Qname, len(e.Trace))
}

// NXDOMAIN aggregates, across every candidate name the search-list planner
// tried, the authoritative non-existence responses received. Merge combines
// two NXDOMAIN values the way the reference implementation's "+" operator
// does: union of qnames (order preserved), union of per-name responses.
type NXDOMAIN struct {
	Qnames    []dnsname.Name
	Responses map[string]*wire.Message
}

func newNXDOMAIN() *NXDOMAIN {
	return &NXDOMAIN{Responses: make(map[string]*wire.Message)}
}

func (e *NXDOMAIN) record(qname dnsname.Name, resp *wire.Message) {
	key := qname.String()
	if _, ok := e.Responses[key]; !ok {
		e.Qnames = append(e.Qnames, qname)
	}
	e.Responses[key] = resp
}

func (e *NXDOMAIN) Error() string {
	names := make([]string, len(e.Qnames))
	for i, n := range e.Qnames {
		names[i] = n.String()
	}
	return fmt.Sprintf("resolver: NXDOMAIN for all of [%s]", strings.Join(names, ", "))
}

// QNames returns the attempted names in candidate order.
func (e *NXDOMAIN) QNames() []dnsname.Name { return e.Qnames }

// Merge returns a new *NXDOMAIN whose Qnames is the order-preserving union
// of e and other's, and whose Responses is the union of both maps.
func (e *NXDOMAIN) Merge(other *NXDOMAIN) *NXDOMAIN {
	merged := newNXDOMAIN()
	for _, n := range e.Qnames {
		merged.record(n, e.Responses[n.String()])
	}
	for _, n := range other.Qnames {
		merged.record(n, other.Responses[n.String()])
	}
	return merged
}
