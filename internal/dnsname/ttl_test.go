package dnsname

import "testing"

func TestTTLFromText(t *testing.T) {
	cases := []struct {
		text string
		want uint32
	}{
		{"1w2d3h", 788400},
		{"5m", 300},
		{"86400", 86400},
	}
	for _, c := range cases {
		got, err := TTLFromText(c.text)
		if err != nil {
			t.Fatalf("TTLFromText(%q): %v", c.text, err)
		}
		if got != c.want {
			t.Errorf("TTLFromText(%q) = %d, want %d", c.text, got, c.want)
		}
	}
}

func TestTTLFromTextRejectsBadUnit(t *testing.T) {
	if _, err := TTLFromText("1x"); err == nil {
		t.Error("expected error for unknown unit")
	}
}

func TestTTLFromTextRejectsEmpty(t *testing.T) {
	if _, err := TTLFromText(""); err == nil {
		t.Error("expected error for empty TTL")
	}
}

func TestTTLFromTextRejectsOverflow(t *testing.T) {
	if _, err := TTLFromText("4294967296"); err == nil {
		t.Error("expected error for TTL exceeding MaxTTL")
	}
}

func TestTTLRoundTripsThroughText(t *testing.T) {
	for _, seconds := range []uint32{0, 1, 60, 3600, 86400, 604800, 777600, MaxTTL} {
		text := TTLToText(seconds)
		got, err := TTLFromText(text)
		if err != nil {
			t.Fatalf("TTLFromText(%q): %v", text, err)
		}
		if got != seconds {
			t.Errorf("round trip %d -> %q -> %d", seconds, text, got)
		}
	}
}
