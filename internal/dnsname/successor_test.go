package dnsname

import "testing"

func TestSuccessorIncrement(t *testing.T) {
	origin := MustFromText("example.com.")
	n := MustFromText("a.example.com.")
	succ := n.Successor(origin, false)
	if succ.Equal(origin) {
		t.Fatal("expected a non-overflow increment")
	}
	if succ.Compare(n) <= 0 {
		t.Errorf("successor must sort after its predecessor")
	}
}

func TestSuccessorOverflowReturnsOrigin(t *testing.T) {
	origin := MustFromText("example.com.")
	maxLabel := string(bytesOf(0xff, maxLabelLength))
	n, err := New([]string{maxLabel}, true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	succ := n.Successor(origin, false)
	if !succ.Equal(origin) {
		t.Errorf("expected overflow of the only label to yield origin sentinel")
	}
}

func TestPredecessorDecrement(t *testing.T) {
	origin := MustFromText("example.com.")
	n := MustFromText("b.example.com.")
	pred := n.Predecessor(origin, false)
	if pred.Compare(n) >= 0 {
		t.Errorf("predecessor must sort before its successor")
	}
}

func bytesOf(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}
