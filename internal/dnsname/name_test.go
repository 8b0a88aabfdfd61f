package dnsname

import "testing"

func TestFromTextRoundTrip(t *testing.T) {
	cases := []string{"www.example.com.", "example.com.", "."}
	for _, text := range cases {
		n, err := FromText(text, nil)
		if err != nil {
			t.Fatalf("FromText(%q): %v", text, err)
		}
		if got := n.String(); got != text {
			t.Errorf("FromText(%q).String() = %q, want %q", text, got, text)
		}
	}
}

func TestWireRoundTrip(t *testing.T) {
	n := MustFromText("www.example.com.")
	buf := ToWire(n, nil, nil, false)
	want := []byte{3, 'w', 'w', 'w', 7, 'e', 'x', 'a', 'm', 'p', 'l', 'e', 3, 'c', 'o', 'm', 0}
	if len(buf) != len(want) {
		t.Fatalf("ToWire length = %d, want %d (%v)", len(buf), len(want), buf)
	}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("ToWire byte %d = %#x, want %#x", i, buf[i], want[i])
		}
	}

	decoded, end, err := FromWire(buf, 0)
	if err != nil {
		t.Fatalf("FromWire: %v", err)
	}
	if end != len(buf) {
		t.Errorf("FromWire end = %d, want %d", end, len(buf))
	}
	if !decoded.Equal(n) {
		t.Errorf("FromWire(ToWire(n)) = %q, want %q", decoded, n)
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	table := make(CompressionTable)
	a := MustFromText("www.example.com.")
	b := MustFromText("mail.example.com.")

	buf := ToWire(a, nil, table, false)
	beforeB := len(buf)
	buf = ToWire(b, buf, table, false)

	da, enda, err := FromWire(buf, 0)
	if err != nil {
		t.Fatalf("decode a: %v", err)
	}
	if !da.Equal(a) {
		t.Errorf("decoded a = %q, want %q", da, a)
	}
	db, _, err := FromWire(buf, enda)
	if err != nil {
		t.Fatalf("decode b: %v", err)
	}
	if !db.Equal(b) {
		t.Errorf("decoded b = %q, want %q", db, b)
	}
	// b's encoding should be shorter than an uncompressed encoding would be,
	// since "example.com." is shared with a's suffix.
	if len(buf)-beforeB >= len(ToWire(b, nil, nil, false)) {
		t.Errorf("expected compression to shrink b's encoding")
	}
}

func TestFullCompareOrdering(t *testing.T) {
	a := MustFromText("a.example.com.")
	b := MustFromText("b.example.com.")
	parent := MustFromText("example.com.")

	if a.Compare(b) >= 0 {
		t.Errorf("expected a < b")
	}
	rel, _, common := a.FullCompare(parent)
	if rel != RelationSubdomain {
		t.Errorf("relation = %v, want Subdomain", rel)
	}
	if common != 2 {
		t.Errorf("common labels = %d, want 2", common)
	}
	if !a.IsSubdomain(parent) {
		t.Errorf("expected a.IsSubdomain(parent)")
	}
	if !parent.IsSuperdomain(a) {
		t.Errorf("expected parent.IsSuperdomain(a)")
	}
}

func TestFullCompareTransitiveSubdomain(t *testing.T) {
	a := MustFromText("x.y.example.com.")
	b := MustFromText("y.example.com.")
	c := MustFromText("example.com.")
	if !a.IsSubdomain(b) || !b.IsSubdomain(c) {
		t.Fatal("expected chain of subdomains")
	}
	if !a.IsSubdomain(c) {
		t.Error("subdomain relation should be transitive")
	}
	if !a.IsSubdomain(a) {
		t.Error("subdomain relation should be reflexive")
	}
}

func TestCaseInsensitiveEquality(t *testing.T) {
	a := MustFromText("WWW.Example.COM.")
	b := MustFromText("www.example.com.")
	if !a.Equal(b) {
		t.Errorf("names should compare equal case-insensitively")
	}
	if a.Hash() != b.Hash() {
		t.Errorf("hashes should match case-insensitively")
	}
}

func TestBadPointerRejected(t *testing.T) {
	// A pointer at offset 0 pointing to itself (or forward) must fail.
	buf := []byte{0xC0, 0x00}
	if _, _, err := FromWire(buf, 0); err != ErrBadPointer {
		t.Errorf("expected ErrBadPointer, got %v", err)
	}
}

func TestLabelTooLongRejected(t *testing.T) {
	_, err := New([]string{string(make([]byte, 64))}, true)
	if err != ErrLabelTooLong {
		t.Errorf("expected ErrLabelTooLong, got %v", err)
	}
}

func TestEmptyVsRoot(t *testing.T) {
	if Empty.Equal(Root) {
		t.Error("Empty and Root must not compare equal")
	}
	if !Empty.Equal(Empty) {
		t.Error("Empty should compare equal to itself")
	}
}
