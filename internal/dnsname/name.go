// Package dnsname implements the immutable domain-name type the rest of the
// resolver is built on: text/wire codecs, case-insensitive ordering, and the
// successor/predecessor operations used for canonical zone ordering.
package dnsname

import (
	"errors"
	"strconv"
	"strings"
)

const (
	maxLabelLength = 63
	maxNameLength  = 255
)

var (
	ErrEmptyLabel    = errors.New("dnsname: empty label is only allowed at the end of a name")
	ErrLabelTooLong  = errors.New("dnsname: label exceeds 63 octets")
	ErrNameTooLong   = errors.New("dnsname: name exceeds 255 octets")
	ErrBadEscape     = errors.New("dnsname: invalid escape sequence")
	ErrNeedAbsolute  = errors.New("dnsname: name must be absolute")
	ErrNotRelative   = errors.New("dnsname: origin required to make name absolute")
)

// Relation describes the relative position of two names in the label tree,
// as produced by FullCompare.
type Relation int

const (
	RelationNone Relation = iota
	RelationSuperdomain
	RelationSubdomain
	RelationEqual
	RelationCommonAncestor
)

// Name is an immutable, ordered sequence of labels. The empty label that
// terminates an absolute name is tracked via the Absolute flag rather than
// as a literal trailing entry in Labels, which keeps label indexing direct.
//
// Two package-level singletons exist: Root (the DNS root, absolute, zero
// labels) and Empty (relative, zero labels) — they are distinct per
// SPEC_FULL.md §3.
type Name struct {
	labels   []string // each label's raw octets, most-significant (TLD) last
	absolute bool
	hash     uint64
	hashSet  bool
}

// Root is the DNS root name ".".
var Root = Name{labels: nil, absolute: true}

// Empty is the relative name with no labels, distinct from Root.
var Empty = Name{labels: nil, absolute: false}

func newName(labels []string, absolute bool) Name {
	n := Name{labels: labels, absolute: absolute}
	n.hash, n.hashSet = foldHash(labels, absolute), true
	return n
}

func foldHash(labels []string, absolute bool) uint64 {
	var h uint64
	for _, lbl := range labels {
		h = (h << 3) + h + uint64(len(lbl))
		for i := 0; i < len(lbl); i++ {
			c := lbl[i]
			if c >= 'A' && c <= 'Z' {
				c += 'a' - 'A'
			}
			h = (h << 3) + h + uint64(c)
		}
	}
	if absolute {
		h = (h << 3) + h + 1
	}
	return h
}

// New builds a Name from an already-split sequence of raw label octets,
// most-significant label last, matching the wire ordering.
func New(labels []string, absolute bool) (Name, error) {
	if err := validateLabels(labels); err != nil {
		return Name{}, err
	}
	return newName(append([]string(nil), labels...), absolute), nil
}

// validateLabels checks a label slice that does NOT include the trailing
// root marker (absoluteness is tracked separately via Name.absolute), so no
// label in the slice may ever be empty.
func validateLabels(labels []string) error {
	total := 0
	for _, lbl := range labels {
		if len(lbl) == 0 {
			return ErrEmptyLabel
		}
		if len(lbl) > maxLabelLength {
			return ErrLabelTooLong
		}
		total += len(lbl) + 1
	}
	total++ // root/terminating length byte
	if total > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}

// FromText parses the textual representation of a name: labels separated by
// '.', with '\DDD' (three-digit decimal octet) and '\c' (literal character)
// escapes. A trailing '.' marks the name absolute. A relative name is
// concatenated with origin when origin is non-nil; with a nil origin the
// parsed name is returned relative.
func FromText(text string, origin *Name) (Name, error) {
	if text == "" {
		if origin != nil {
			return *origin, nil
		}
		return Empty, nil
	}
	if text == "@" {
		if origin != nil {
			return *origin, nil
		}
		return Empty, nil
	}
	if text == "." {
		return Root, nil
	}

	var labels []string
	var cur strings.Builder
	absolute := false
	i := 0
	n := len(text)
	for i < n {
		c := text[i]
		switch {
		case c == '\\':
			i++
			if i >= n {
				return Name{}, ErrBadEscape
			}
			if text[i] >= '0' && text[i] <= '9' {
				if i+2 >= n {
					return Name{}, ErrBadEscape
				}
				v, err := strconv.Atoi(text[i : i+3])
				if err != nil || v > 255 {
					return Name{}, ErrBadEscape
				}
				cur.WriteByte(byte(v))
				i += 3
			} else {
				cur.WriteByte(text[i])
				i++
			}
		case c == '.':
			if i == n-1 {
				absolute = true
			}
			labels = append(labels, cur.String())
			cur.Reset()
			i++
		default:
			cur.WriteByte(c)
			i++
		}
	}
	if !absolute {
		labels = append(labels, cur.String())
	}

	if err := validateLabels(labels); err != nil {
		return Name{}, err
	}
	name := newName(labels, absolute)
	if !absolute && origin != nil {
		return name.Derelativize(*origin)
	}
	return name, nil
}

// MustFromText is FromText but panics on error; intended for literal
// constants in tests and call sites that already know the text is valid.
func MustFromText(text string) Name {
	n, err := FromText(text, &Root)
	if err != nil {
		panic(err)
	}
	return n
}

// String renders the name's text form, escaping '.', '\\', and
// non-printable bytes.
func (n Name) String() string {
	if len(n.labels) == 0 {
		if n.absolute {
			return "."
		}
		return "@"
	}
	var b strings.Builder
	for i, lbl := range n.labels {
		if i > 0 {
			b.WriteByte('.')
		}
		writeEscapedLabel(&b, lbl)
	}
	if n.absolute {
		b.WriteByte('.')
	}
	return b.String()
}

func writeEscapedLabel(b *strings.Builder, lbl string) {
	for i := 0; i < len(lbl); i++ {
		c := lbl[i]
		switch {
		case c == '.' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c < 0x20 || c >= 0x7f:
			b.WriteByte('\\')
			b.WriteString(pad3(int(c)))
		default:
			b.WriteByte(c)
		}
	}
}

func pad3(v int) string {
	s := strconv.Itoa(v)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}

// IsAbsolute reports whether the name ends in the root label.
func (n Name) IsAbsolute() bool { return n.absolute }

// IsWild reports whether the first label is the wildcard "*".
func (n Name) IsWild() bool {
	return len(n.labels) > 0 && n.labels[0] == "*"
}

// Labels returns the name's labels, most-significant last. The returned
// slice must not be mutated.
func (n Name) Labels() []string { return n.labels }

// Hash is a case-insensitive hash suitable for use as a map key component.
func (n Name) Hash() uint64 { return n.hash }

// Equal reports whether two names compare equal under FullCompare.
func (n Name) Equal(other Name) bool {
	_, order, _ := n.FullCompare(other)
	return order == 0
}

// Compare returns the FullCompare order component.
func (n Name) Compare(other Name) int {
	_, order, _ := n.FullCompare(other)
	return order
}

// FullCompare walks both names from the root end, comparing labels
// case-insensitively, and reports their relation, signed order, and the
// number of labels they share as a common suffix.
func (n Name) FullCompare(other Name) (Relation, int, int) {
	if n.absolute != other.absolute {
		if n.absolute {
			return RelationNone, 1, 0
		}
		return RelationNone, -1, 0
	}

	la, lb := n.labels, other.labels
	ia, ib := len(la)-1, len(lb)-1
	common := 0
	for ia >= 0 && ib >= 0 {
		c := compareLabel(la[ia], lb[ib])
		if c != 0 {
			if common == 0 {
				return RelationNone, c, 0
			}
			return RelationCommonAncestor, c, common
		}
		common++
		ia--
		ib--
	}

	switch {
	case len(la) == len(lb):
		return RelationEqual, 0, common
	case len(la) < len(lb):
		return RelationSuperdomain, -1, common
	default:
		return RelationSubdomain, 1, common
	}
}

func compareLabel(a, b string) int {
	la, lb := foldLower(a), foldLower(b)
	if la < lb {
		return -1
	}
	if la > lb {
		return 1
	}
	return 0
}

func foldLower(s string) string {
	needsFold := false
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsFold = true
			break
		}
	}
	if !needsFold {
		return s
	}
	b := []byte(s)
	for i := range b {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// IsSubdomain reports whether n is equal to or a subdomain of other.
func (n Name) IsSubdomain(other Name) bool {
	rel, _, _ := n.FullCompare(other)
	return rel == RelationSubdomain || rel == RelationEqual
}

// IsSuperdomain reports whether n is equal to or a superdomain of other.
func (n Name) IsSuperdomain(other Name) bool {
	rel, _, _ := n.FullCompare(other)
	return rel == RelationSuperdomain || rel == RelationEqual
}

// Concatenate appends other's labels after n's, producing an absolute name
// if other is absolute. n must be relative.
func (n Name) Concatenate(other Name) (Name, error) {
	if n.absolute {
		return Name{}, errors.New("dnsname: cannot concatenate onto an absolute name")
	}
	labels := append(append([]string(nil), n.labels...), other.labels...)
	return New(labels, other.absolute)
}

// Derelativize concatenates n (relative) with origin, producing an absolute
// name. If n is already absolute it is returned unchanged.
func (n Name) Derelativize(origin Name) (Name, error) {
	if n.absolute {
		return n, nil
	}
	return n.Concatenate(origin)
}

// Relativize returns n made relative to origin, if n is a subdomain of
// origin; otherwise n is returned unchanged.
func (n Name) Relativize(origin Name) Name {
	if !n.absolute || !origin.absolute {
		return n
	}
	rel, _, common := n.FullCompare(origin)
	if rel != RelationSubdomain && rel != RelationEqual {
		return n
	}
	keep := len(n.labels) - common
	out, _ := New(append([]string(nil), n.labels[:keep]...), false)
	return out
}

// Split divides n at depth labels from the right, returning the prefix and
// the suffix (which retains n's absoluteness).
func (n Name) Split(depth int) (Name, Name) {
	if depth <= 0 {
		prefix, _ := New(append([]string(nil), n.labels...), false)
		return prefix, newName(nil, n.absolute)
	}
	if depth >= len(n.labels) {
		prefix, _ := New(nil, false)
		return prefix, n
	}
	cut := len(n.labels) - depth
	prefix, _ := New(append([]string(nil), n.labels[:cut]...), false)
	suffix, _ := New(append([]string(nil), n.labels[cut:]...), n.absolute)
	return prefix, suffix
}

// Parent returns n with its leftmost label removed. It is an error to take
// the parent of Root or Empty.
func (n Name) Parent() (Name, error) {
	if len(n.labels) == 0 {
		return Name{}, errors.New("dnsname: name has no parent")
	}
	_, suffix := n.Split(len(n.labels) - 1)
	return suffix, nil
}

// ChooseRelativity returns n unchanged if origin is nil or n is already
// absolute/relative as requested, otherwise it relativizes or derelativizes
// n against origin.
func (n Name) ChooseRelativity(origin *Name, relativize bool) Name {
	if origin == nil {
		return n
	}
	if relativize {
		return n.Relativize(*origin)
	}
	out, err := n.Derelativize(*origin)
	if err != nil {
		return n
	}
	return out
}
