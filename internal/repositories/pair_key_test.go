package repositories

import "testing"

func TestPairKeyOrderIndependent(t *testing.T) {
	if PairKey("b", "a") != PairKey("a", "b") {
		t.Fatalf("pair key must not depend on argument order")
	}
	if got := PairKey("b", "a"); got != "a_b" {
		t.Fatalf("expected a_b, got %s", got)
	}
}

func TestPairKeyDistinctPairs(t *testing.T) {
	if PairKey("a", "b") == PairKey("a", "c") {
		t.Fatalf("distinct pairs must produce distinct keys")
	}
}
