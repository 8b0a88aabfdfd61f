package rcode

import "testing"

func TestRoundTripAllValues(t *testing.T) {
	for v := 0; v <= 4095; v++ {
		flags, ednsflags, err := ToFlags(Rcode(v))
		if err != nil {
			t.Fatalf("ToFlags(%d): %v", v, err)
		}
		got, err := FromFlags(flags, ednsflags)
		if err != nil {
			t.Fatalf("FromFlags: %v", err)
		}
		if int(got) != v {
			t.Errorf("round trip %d -> %d", v, got)
		}
	}
}

func TestBadVersMapping(t *testing.T) {
	flags, ednsflags, err := ToFlags(BADVERS)
	if err != nil {
		t.Fatal(err)
	}
	if flags != 0 || ednsflags != 0x01000000 {
		t.Errorf("ToFlags(BADVERS) = (%#x, %#x), want (0x0, 0x01000000)", flags, ednsflags)
	}
	got, err := FromFlags(0, 0x01000000)
	if err != nil {
		t.Fatal(err)
	}
	if got != 16 {
		t.Errorf("FromFlags(0, 0x01000000) = %d, want 16", got)
	}
}

func TestOutOfRangeRejected(t *testing.T) {
	if _, _, err := ToFlags(Rcode(4096)); err == nil {
		t.Error("expected error for rcode > 4095")
	}
}
