package dispatcher

import (
	"testing"

	"github.com/ruleshard/ruleengine/internal/statusvalue"
)

func TestMaskForNoTransitionWhenUnchanged(t *testing.T) {
	if _, ok := maskFor(statusvalue.TernaryTrue, statusvalue.TernaryTrue); ok {
		t.Fatal("prev == curr should not be a transition")
	}
}

func TestMaskForAllSixPairs(t *testing.T) {
	pairs := []struct {
		prev, curr statusvalue.Ternary
		want       ConditionMask
	}{
		{statusvalue.TernaryTrue, statusvalue.TernaryFalse, TrueToFalse},
		{statusvalue.TernaryTrue, statusvalue.TernaryUnknown, TrueToUnknown},
		{statusvalue.TernaryFalse, statusvalue.TernaryTrue, FalseToTrue},
		{statusvalue.TernaryFalse, statusvalue.TernaryUnknown, FalseToUnknown},
		{statusvalue.TernaryUnknown, statusvalue.TernaryTrue, UnknownToTrue},
		{statusvalue.TernaryUnknown, statusvalue.TernaryFalse, UnknownToFalse},
	}
	for _, p := range pairs {
		got, ok := maskFor(p.prev, p.curr)
		if !ok || got != p.want {
			t.Errorf("maskFor(%v,%v) = (%v,%v), want (%v,true)", p.prev, p.curr, got, ok, p.want)
		}
	}
}

func TestMatches(t *testing.T) {
	mask := TrueToFalse | FalseToTrue
	if !mask.Matches(statusvalue.TernaryTrue, statusvalue.TernaryFalse) {
		t.Fatal("mask should match True->False")
	}
	if mask.Matches(statusvalue.TernaryTrue, statusvalue.TernaryUnknown) {
		t.Fatal("mask should not match True->Unknown")
	}
}
