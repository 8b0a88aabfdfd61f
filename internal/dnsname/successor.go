package dnsname

// Successor returns the DNSSEC canonical-ordering successor of n within a
// zone rooted at origin. When prefixOK, the successor simply prepends a
// minimal new label (a single 0x00 byte) to n. Otherwise the least
// significant label is incremented as an unbounded big-endian integer, with
// carry propagating into higher labels; if incrementing would grow the name
// past the 255-octet cap, the "end of zone" sentinel origin is returned.
func (n Name) Successor(origin Name, prefixOK bool) Name {
	if prefixOK {
		labels := append([]string{string([]byte{0x00})}, n.labels...)
		if out, err := New(labels, n.absolute); err == nil {
			return out
		}
		return origin
	}

	if len(n.labels) == 0 {
		labels := []string{string([]byte{0x00})}
		out, err := New(labels, n.absolute)
		if err != nil {
			return origin
		}
		return out
	}

	labels := append([]string(nil), n.labels...)
	idx := 0 // least-significant label is first in our slice ordering
	for {
		b := []byte(labels[idx])
		carried := incrementBytes(b)
		labels[idx] = string(b)
		if !carried {
			break
		}
		idx++
		if idx >= len(labels) {
			return origin
		}
	}
	out, err := New(labels, n.absolute)
	if err != nil {
		return origin
	}
	return out
}

// incrementBytes increments b in place as an unbounded big-endian integer
// with carry; it returns true if the increment overflowed b (all bytes were
// 0xff and wrapped to 0x00), signaling the caller to carry into the next
// label.
func incrementBytes(b []byte) bool {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != 0xff {
			b[i]++
			return false
		}
		b[i] = 0x00
	}
	return true
}

// Predecessor is the symmetric counterpart to Successor: it either appends a
// maximal (0xff-filled) label or decrements the least-significant label as
// an unbounded big-endian integer with borrow, extending with 0xff bytes
// when a label underflows below its original length.
func (n Name) Predecessor(origin Name, prefixOK bool) Name {
	if prefixOK {
		labels := append([]string{string([]byte{0xff})}, n.labels...)
		if out, err := New(labels, n.absolute); err == nil {
			return out
		}
		return origin
	}

	if len(n.labels) == 0 {
		return origin
	}

	labels := append([]string(nil), n.labels...)
	idx := 0
	for {
		b := []byte(labels[idx])
		borrowed := decrementBytes(&b)
		labels[idx] = string(b)
		if !borrowed {
			break
		}
		idx++
		if idx >= len(labels) {
			return origin
		}
	}
	out, err := New(labels, n.absolute)
	if err != nil {
		return origin
	}
	return out
}

// decrementBytes decrements *b in place as an unbounded big-endian integer
// with borrow. If every byte is 0x00, it extends the label by one 0xff byte
// (matching the reference implementation's maximal-extension behavior) and
// reports a borrow so the caller carries into the next label.
func decrementBytes(b *[]byte) bool {
	for i := len(*b) - 1; i >= 0; i-- {
		if (*b)[i] != 0x00 {
			(*b)[i]--
			return false
		}
		(*b)[i] = 0xff
	}
	*b = append(*b, 0xff)
	return true
}
