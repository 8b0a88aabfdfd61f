package zone

import (
	"fmt"

	"github.com/dnsscience/stubresolver/internal/dnsname"
	"github.com/dnsscience/stubresolver/internal/wire"
	"github.com/dnsscience/stubresolver/xfr"
)

// txn is a staged, all-or-nothing mutation against a Zone: adds and
// deletes are buffered and only applied to the live Records map on
// Commit, so a rolled-back or abandoned IXFR never leaves partial state
// visible to concurrent readers — mirroring the reference xfr.py's
// assumption that the zone-as-transaction-manager only mutates at the
// transaction's __exit__.
type txn struct {
	z       *Zone
	added   []wire.RR
	deleted []wire.RR
	done    bool
}

var _ xfr.Transaction = (*txn)(nil)
var _ xfr.TxnManager = (*Zone)(nil)

// Writer opens a new transaction against the zone, satisfying
// xfr.TxnManager so an Inbound transfer can drive this zone directly.
func (z *Zone) Writer() (xfr.Transaction, error) {
	return &txn{z: z}, nil
}

// Origin reports the zone's apex name, satisfying xfr.TxnManager.
func (z *Zone) Origin() dnsname.Name { return z.origin }

func (t *txn) Add(rrs []wire.RR) error {
	if t.done {
		return fmt.Errorf("zone: transaction already finished")
	}
	t.added = append(t.added, rrs...)
	return nil
}

func (t *txn) Delete(rrs []wire.RR) error {
	if t.done {
		return fmt.Errorf("zone: transaction already finished")
	}
	t.deleted = append(t.deleted, rrs...)
	return nil
}

// Commit applies every staged delete, then every staged add, to the
// zone's live Records map, in that order so an IXFR's delete-then-add
// pattern for a changed rdata at the same owner/type nets out correctly.
func (t *txn) Commit() error {
	if t.done {
		return fmt.Errorf("zone: transaction already finished")
	}
	t.z.mu.Lock()
	defer t.z.mu.Unlock()
	for _, rr := range t.deleted {
		t.z.deleteLocked(rr)
	}
	for _, rr := range t.added {
		t.z.addLocked(rr)
	}
	t.done = true
	return nil
}

// Rollback discards every staged mutation without touching the zone.
func (t *txn) Rollback() error {
	t.done = true
	t.added = nil
	t.deleted = nil
	return nil
}

// addLocked is AddRecord's body, callable while z.mu is already held.
func (z *Zone) addLocked(rr wire.RR) {
	owner := rr.Name.String()
	if z.Records[owner] == nil {
		z.Records[owner] = make(map[wire.Type][]wire.RR)
	}
	z.Records[owner][rr.Type] = append(z.Records[owner][rr.Type], rr)
	if rr.Type == wire.TypeSOA {
		cp := rr
		z.SOA = &cp
	}
}

// deleteLocked removes every record matching rr's owner/type/rdata triple
// (RFC 2136 delete-specific-RR semantics; a zero-length RData deletes the
// whole RRset instead, matching the ANY/NONE class sentinels package
// update emits for DeleteRRset/Delete).
func (z *Zone) deleteLocked(rr wire.RR) {
	owner := rr.Name.String()
	typeMap := z.Records[owner]
	if typeMap == nil {
		return
	}
	if rr.Type == wire.TypeANY {
		delete(z.Records, owner)
		return
	}
	if len(rr.RData) == 0 {
		delete(typeMap, rr.Type)
		if len(typeMap) == 0 {
			delete(z.Records, owner)
		}
		return
	}
	existing := typeMap[rr.Type]
	kept := existing[:0]
	for _, cand := range existing {
		if string(cand.RData) != string(rr.RData) {
			kept = append(kept, cand)
		}
	}
	if len(kept) == 0 {
		delete(typeMap, rr.Type)
	} else {
		typeMap[rr.Type] = kept
	}
	if len(typeMap) == 0 {
		delete(z.Records, owner)
	}
}
