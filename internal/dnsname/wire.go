package dnsname

import "errors"

const (
	pointerMask        = 0xC0
	maxPointerOffset    = 0x3FFF // 14 bits
	maxCompressionDepth = 64     // bounds pointer-chasing loops during decode
)

var (
	ErrBadPointer   = errors.New("dnsname: compression pointer is not strictly backward")
	ErrBadLabelType = errors.New("dnsname: unsupported label type")
	ErrTruncated    = errors.New("dnsname: message truncated while decoding name")
)

// CompressionTable maps a Name to the byte offset in a render buffer at
// which it (or a suffix of it) was previously emitted. Only offsets at or
// below maxPointerOffset are ever recorded or consulted.
type CompressionTable map[uint64][]compressionEntry

type compressionEntry struct {
	name   Name
	offset int
}

func (t CompressionTable) lookup(n Name) (int, bool) {
	for _, e := range t[n.Hash()] {
		if e.name.Equal(n) {
			return e.offset, true
		}
	}
	return 0, false
}

func (t CompressionTable) insert(n Name, offset int) {
	if offset > maxPointerOffset {
		return
	}
	t[n.Hash()] = append(t[n.Hash()], compressionEntry{name: n, offset: offset})
}

// Purge removes every entry recorded at or beyond floor, used by the
// renderer's rollback-to-mark operation.
func (t CompressionTable) Purge(floor int) {
	for h, entries := range t {
		kept := entries[:0]
		for _, e := range entries {
			if e.offset < floor {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(t, h)
		} else {
			t[h] = kept
		}
	}
}

// ToWire appends n's wire encoding to buf at the current length of buf
// (the caller's buffer length is the offset new compression entries will be
// recorded at). If table is non-nil, a matching suffix already present in
// the table is emitted as a compression pointer and any unmatched prefix
// labels are newly recorded (for offsets below the 14-bit pointer limit).
// If canonicalize is true, labels are lowercased and compression is
// disabled, matching DNSSEC/TSIG canonical-form requirements.
func ToWire(n Name, buf []byte, table CompressionTable, canonicalize bool) []byte {
	if canonicalize {
		table = nil
	}

	for i := 0; i < len(n.labels); i++ {
		suffixLabels := n.labels[i:]
		suffix, _ := New(append([]string(nil), suffixLabels...), n.absolute)
		if table != nil {
			if off, ok := table.lookup(suffix); ok {
				buf = append(buf, byte(pointerMask|(off>>8)), byte(off))
				return buf
			}
			if len(buf) <= maxPointerOffset {
				table.insert(suffix, len(buf))
			}
		}
		lbl := n.labels[i]
		if canonicalize {
			lbl = foldLower(lbl)
		}
		buf = append(buf, byte(len(lbl)))
		buf = append(buf, lbl...)
	}

	// The root label is always emitted literally, never as a pointer,
	// per SPEC_FULL.md §4.1.
	buf = append(buf, 0x00)
	return buf
}

// FromWire decodes a Name starting at offset off within msg, following
// compression pointers as needed, and returns the decoded Name and the
// offset immediately following the name's own encoding (NOT following any
// pointer it jumped through).
func FromWire(msg []byte, off int) (Name, int, error) {
	var labels []string
	origOffset := off
	firstPointerSeen := false
	endOffset := -1
	depth := 0

	for {
		if off >= len(msg) {
			return Name{}, 0, ErrTruncated
		}
		lengthByte := msg[off]
		switch lengthByte & pointerMask {
		case 0x00:
			if lengthByte == 0 {
				off++
				if !firstPointerSeen {
					endOffset = off
				}
				total := 0
				for _, l := range labels {
					total += len(l) + 1
				}
				if total+1 > maxNameLength {
					return Name{}, 0, ErrNameTooLong
				}
				name, err := New(labels, true)
				if err != nil {
					return Name{}, 0, err
				}
				return name, endOffset, nil
			}
			length := int(lengthByte)
			if length > maxLabelLength {
				return Name{}, 0, ErrLabelTooLong
			}
			if off+1+length > len(msg) {
				return Name{}, 0, ErrTruncated
			}
			labels = append(labels, string(msg[off+1:off+1+length]))
			off += 1 + length
		case pointerMask:
			if off+1 >= len(msg) {
				return Name{}, 0, ErrTruncated
			}
			ptr := (int(lengthByte&^pointerMask) << 8) | int(msg[off+1])
			if !firstPointerSeen {
				endOffset = off + 2
				firstPointerSeen = true
			}
			if ptr >= origOffset {
				return Name{}, 0, ErrBadPointer
			}
			depth++
			if depth > maxCompressionDepth {
				return Name{}, 0, ErrBadPointer
			}
			origOffset = ptr
			off = ptr
		default:
			return Name{}, 0, ErrBadLabelType
		}
	}
}
