// Package render builds wire-format DNS messages: section-ordered RR
// emission with name compression, EDNS(0) OPT padding, and TSIG signing.
// Ported from the fully-implemented reference dns.renderer module.
package render

import (
	"encoding/binary"
	"errors"

	"github.com/dnsscience/stubresolver/internal/dnsname"
	"github.com/dnsscience/stubresolver/internal/random"
	"github.com/dnsscience/stubresolver/internal/wire"
)

// Section identifies one of the four DNS message sections, in the order
// they must be written.
type Section int

const (
	SectionQuestion Section = iota
	SectionAnswer
	SectionAuthority
	SectionAdditional
	sectionCount
)

var ErrSectionOrder = errors.New("render: sections must be written in QUESTION, ANSWER, AUTHORITY, ADDITIONAL order")
var ErrTooLarge = errors.New("render: message would exceed the configured maximum size")
var ErrNoReservation = errors.New("render: release_reserved called with no outstanding reservation")

// Mark is an opaque snapshot of the renderer's buffer length, section, and
// per-section counts, suitable for RollbackTo — grouping the buffer
// truncation and compression-table purge the reference implementation
// performs separately into one token, per SPEC_FULL.md §9.
type Mark struct {
	offset  int
	section Section
	counts  [sectionCount]uint16
}

// Renderer assembles a single DNS message into a growable buffer. It is
// single-owner and never shared across goroutines.
type Renderer struct {
	buf     []byte
	section Section
	counts  [sectionCount]uint16
	table   dnsname.CompressionTable
	origin  *dnsname.Name
	maxSize int
	reserved int
	flags   uint16
	mac     []byte
}

// New creates a Renderer with a 12-byte placeholder header (patched in
// place by WriteHeader), the given flags, and a compression table seeded
// fresh. maxSize of 0 means "no limit other than the 65535-octet message
// cap".
func New(flags uint16, maxSize int, origin *dnsname.Name) *Renderer {
	if maxSize <= 0 || maxSize > 65535 {
		maxSize = 65535
	}
	return &Renderer{
		buf:     make([]byte, 12),
		table:   make(dnsname.CompressionTable),
		origin:  origin,
		maxSize: maxSize,
		flags:   flags,
	}
}

// Mark snapshots the renderer's current position.
func (r *Renderer) Mark() Mark {
	return Mark{offset: len(r.buf), section: r.section, counts: r.counts}
}

// RollbackTo truncates the buffer to m's offset and purges every
// compression-table entry recorded at or beyond that offset, restoring the
// section and per-section counts as they were at Mark time.
func (r *Renderer) RollbackTo(m Mark) {
	r.buf = r.buf[:m.offset]
	r.table.Purge(m.offset)
	r.section = m.section
	r.counts = m.counts
}

// setSection enforces the monotonic QUESTION->ANSWER->AUTHORITY->ADDITIONAL
// ordering; writing to an earlier section than the current one is a form
// error.
func (r *Renderer) setSection(s Section) error {
	if s < r.section {
		return ErrSectionOrder
	}
	r.section = s
	return nil
}

func (r *Renderer) availableSpace() int {
	return r.maxSize - r.reserved - len(r.buf)
}

// AddQuestion appends one QUESTION-section entry.
func (r *Renderer) AddQuestion(name dnsname.Name, qtype wire.Type, qclass wire.Class) error {
	if err := r.setSection(SectionQuestion); err != nil {
		return err
	}
	start := len(r.buf)
	r.buf = dnsname.ToWire(name, r.buf, r.table, false)
	var tail [4]byte
	binary.BigEndian.PutUint16(tail[0:2], uint16(qtype))
	binary.BigEndian.PutUint16(tail[2:4], uint16(qclass))
	r.buf = append(r.buf, tail[:]...)

	if len(r.buf) > r.maxSize-r.reserved {
		r.buf = r.buf[:start]
		r.table.Purge(start)
		return ErrTooLarge
	}
	r.counts[SectionQuestion]++
	return nil
}

// AddRR appends one resource record to the current section (ANSWER,
// AUTHORITY, or ADDITIONAL). rdata must already be wire-encoded (see the
// Encode* helpers in package wire); RR names embedded in rdata are NOT
// separately compressed here — only the owner name is.
func (r *Renderer) AddRR(section Section, name dnsname.Name, typ wire.Type, class wire.Class, ttl uint32, rdata []byte) error {
	if err := r.setSection(section); err != nil {
		return err
	}
	start := len(r.buf)
	r.buf = dnsname.ToWire(name, r.buf, r.table, false)
	head := make([]byte, 10)
	binary.BigEndian.PutUint16(head[0:2], uint16(typ))
	binary.BigEndian.PutUint16(head[2:4], uint16(class))
	binary.BigEndian.PutUint32(head[4:8], ttl)
	binary.BigEndian.PutUint16(head[8:10], uint16(len(rdata)))
	r.buf = append(r.buf, head...)
	r.buf = append(r.buf, rdata...)

	if len(r.buf) > r.maxSize-r.reserved {
		r.buf = r.buf[:start]
		return ErrTooLarge
	}
	r.counts[section]++
	return nil
}

// Reserve shrinks the effective max size by n bytes, guaranteeing room for
// a later fixed-size item such as a TSIG RR.
func (r *Renderer) Reserve(n int) { r.reserved += n }

// ReleaseReserved releases every outstanding reservation at once.
func (r *Renderer) ReleaseReserved() error {
	if r.reserved == 0 {
		return ErrNoReservation
	}
	r.reserved = 0
	return nil
}

// Counts returns the current per-section RR counts (QD/AN/NS/AR order).
func (r *Renderer) Counts() (qd, an, ns, ar uint16) {
	return r.counts[SectionQuestion], r.counts[SectionAnswer], r.counts[SectionAuthority], r.counts[SectionAdditional]
}

// WriteHeader patches the 12-byte placeholder header in place with id,
// flags, and the accumulated section counts. id, if zero, is drawn fresh
// from crypto/rand (never math/rand — an attacker-predictable transaction
// ID defeats off-path spoofing resistance).
func (r *Renderer) WriteHeader(id uint16) (uint16, error) {
	if id == 0 {
		id = random.TransactionID()
	}
	binary.BigEndian.PutUint16(r.buf[0:2], id)
	binary.BigEndian.PutUint16(r.buf[2:4], r.flags)
	binary.BigEndian.PutUint16(r.buf[4:6], r.counts[SectionQuestion])
	binary.BigEndian.PutUint16(r.buf[6:8], r.counts[SectionAnswer])
	binary.BigEndian.PutUint16(r.buf[8:10], r.counts[SectionAuthority])
	binary.BigEndian.PutUint16(r.buf[10:12], r.counts[SectionAdditional])
	return id, nil
}

// Bytes returns the rendered message. Call WriteHeader first.
func (r *Renderer) Bytes() []byte { return r.buf }

// LastMAC returns the MAC recorded by the most recent AddTSIG call, if any.
func (r *Renderer) LastMAC() []byte { return r.mac }
