// Package xfr implements the inbound zone-transfer state machine for AXFR
// and IXFR, driving a caller-supplied Transaction writer. Ported
// control-flow-for-control-flow from the reference implementation's
// Inbound/_process_axfr_message/_process_ixfr_message
// (_examples/original_source/dns/xfr.py, fully implemented there).
package xfr

import (
	"errors"
	"fmt"

	"github.com/dnsscience/stubresolver/internal/dnsname"
	"github.com/dnsscience/stubresolver/internal/wire"
)

// Rdtype selects AXFR or IXFR semantics for an Inbound transfer.
type Rdtype int

const (
	RdtypeAXFR Rdtype = iota
	RdtypeIXFR
)

// ErrUseTCP is surfaced when an IXFR arrives over UDP and a single
// datagram cannot complete the transfer.
var ErrUseTCP = errors.New("xfr: this IXFR cannot be completed over UDP; retry over TCP")

// TransferError wraps a non-NOERROR rcode on a transfer response.
type TransferError struct{ Rcode int }

func (e *TransferError) Error() string {
	return fmt.Sprintf("xfr: zone transfer error: rcode %d", e.Rcode)
}

// CheckRcode returns a *TransferError if msg's header rcode (low 4 bits of
// flags) is not NOERROR; callers should call this before handing msg to
// ProcessMessage.
func CheckRcode(msg *wire.Message) error {
	if rc := msg.Header.Flags & 0x000f; rc != 0 {
		return &TransferError{Rcode: int(rc)}
	}
	return nil
}

// Transaction is the capability an Inbound state machine drives: a
// zone-mutation writer scoped to one commit-or-rollback lifetime.
type Transaction interface {
	Add(rrs []wire.RR) error
	Delete(rrs []wire.RR) error
	Commit() error
	Rollback() error
}

// TxnManager supplies Transactions and the origin the transfer applies to;
// a zone loader implements this so XFR and zone-file loading share one
// writer path, matching the reference's dns.zone.Zone doubling as both.
type TxnManager interface {
	Writer() (Transaction, error)
	Origin() dnsname.Name
}

// Inbound drives a single AXFR or IXFR transfer from a sequence of
// response messages into a Transaction.
type Inbound struct {
	mgr    TxnManager
	txn    Transaction
	rdtype Rdtype
	serial uint32
	isUDP  bool

	soaSeen    bool
	firstSOA   wire.RR
	deleteMode bool
	done       bool
}

// New creates an Inbound transfer driver. serial is required (and only
// meaningful) for IXFR; isUDP must be false for AXFR.
func New(mgr TxnManager, rdtype Rdtype, serial uint32, isUDP bool) (*Inbound, error) {
	if rdtype == RdtypeAXFR && isUDP {
		return nil, errors.New("xfr: is_udp specified for AXFR")
	}
	return &Inbound{mgr: mgr, rdtype: rdtype, serial: serial, isUDP: isUDP}, nil
}

// Done reports whether the transfer has reached a terminal state.
func (in *Inbound) Done() bool { return in.done }

// ProcessMessage feeds one response message's answer section through the
// state machine. It returns true once the transfer is complete. Messages
// must arrive in the order they were received on the wire.
func (in *Inbound) ProcessMessage(msg *wire.Message) (bool, error) {
	if in.done {
		return true, nil
	}
	if in.txn == nil {
		txn, err := in.mgr.Writer()
		if err != nil {
			return false, fmt.Errorf("xfr: opening transaction: %w", err)
		}
		in.txn = txn
	}

	switch in.rdtype {
	case RdtypeAXFR:
		return in.processAXFR(msg)
	default:
		return in.processIXFR(msg)
	}
}

func (in *Inbound) processAXFR(msg *wire.Message) (bool, error) {
	for _, rr := range msg.Answer {
		if rr.Type == wire.TypeSOA {
			if !in.soaSeen {
				in.soaSeen = true
				in.firstSOA = rr
			} else {
				if err := in.txn.Commit(); err != nil {
					return false, fmt.Errorf("xfr: committing AXFR transaction: %w", err)
				}
				in.done = true
				return true, nil
			}
		}
		if err := in.txn.Add([]wire.RR{rr}); err != nil {
			return false, fmt.Errorf("xfr: adding rr: %w", err)
		}
	}
	return false, nil
}

func (in *Inbound) processIXFR(msg *wire.Message) (bool, error) {
	if in.isUDP && len(msg.Answer) == 0 {
		return false, ErrUseTCP
	}

	for _, rr := range msg.Answer {
		if rr.Type == wire.TypeSOA {
			if !in.soaSeen {
				in.soaSeen = true
				in.firstSOA = rr

				soa, err := rr.SOA()
				if err != nil {
					return false, fmt.Errorf("xfr: decoding opening SOA: %w", err)
				}
				if serialLE(soa.Serial, in.serial) {
					// Condensed "no changes" envelope: up to date already.
					in.done = true
					return true, nil
				}
				continue
			}
			if soaRREqual(rr, in.firstSOA) {
				if err := in.txn.Commit(); err != nil {
					return false, fmt.Errorf("xfr: committing IXFR transaction: %w", err)
				}
				in.done = true
				return true, nil
			}
			in.deleteMode = !in.deleteMode
			continue
		}

		if in.deleteMode {
			if err := in.txn.Delete([]wire.RR{rr}); err != nil {
				return false, fmt.Errorf("xfr: deleting rr: %w", err)
			}
		} else {
			if err := in.txn.Add([]wire.RR{rr}); err != nil {
				return false, fmt.Errorf("xfr: adding rr: %w", err)
			}
		}
	}
	return false, nil
}

// Close rolls back the underlying transaction if ProcessMessage never
// reached a committing terminal state, matching the reference's
// __exit__ rollback-on-abnormal-exit behavior. Safe to call after a
// successful commit (a no-op in that case since the zone loader's
// Transaction.Rollback after Commit should itself be a no-op).
func (in *Inbound) Close() error {
	if in.txn == nil || in.done {
		return nil
	}
	return in.txn.Rollback()
}

// serialLE compares two SOA serials using RFC 1982 serial-number
// arithmetic (wraparound-aware), not a plain uint32 comparison.
func serialLE(a, b uint32) bool {
	return int32(a-b) <= 0
}

func soaRREqual(a, b wire.RR) bool {
	sa, err1 := a.SOA()
	sb, err2 := b.SOA()
	if err1 != nil || err2 != nil {
		return false
	}
	return sa.Serial == sb.Serial && sa.MName.Equal(sb.MName) && sa.RName.Equal(sb.RName)
}
