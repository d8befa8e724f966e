package dispatcher

import "github.com/ruleshard/ruleengine/internal/statusvalue"

// ConditionMask is a bitmask over the six (previous, current) Ternary
// transition pairs a handler can guard on. There is no bit for "no
// change" (previous == current is never a transition) or for the three
// hold-steady pairs that follow from it, which is why there are six bits
// rather than nine.
type ConditionMask uint8

const (
	TrueToFalse ConditionMask = 1 << iota
	TrueToUnknown
	FalseToTrue
	FalseToUnknown
	UnknownToTrue
	UnknownToFalse
)

// AllTransitions matches every possible transition.
const AllTransitions = TrueToFalse | TrueToUnknown | FalseToTrue | FalseToUnknown | UnknownToTrue | UnknownToFalse

// maskFor returns the single bit corresponding to the (prev, curr)
// transition, and false if prev == curr (not a transition at all).
func maskFor(prev, curr statusvalue.Ternary) (ConditionMask, bool) {
	if prev == curr {
		return 0, false
	}
	switch {
	case prev == statusvalue.TernaryTrue && curr == statusvalue.TernaryFalse:
		return TrueToFalse, true
	case prev == statusvalue.TernaryTrue && curr == statusvalue.TernaryUnknown:
		return TrueToUnknown, true
	case prev == statusvalue.TernaryFalse && curr == statusvalue.TernaryTrue:
		return FalseToTrue, true
	case prev == statusvalue.TernaryFalse && curr == statusvalue.TernaryUnknown:
		return FalseToUnknown, true
	case prev == statusvalue.TernaryUnknown && curr == statusvalue.TernaryTrue:
		return UnknownToTrue, true
	case prev == statusvalue.TernaryUnknown && curr == statusvalue.TernaryFalse:
		return UnknownToFalse, true
	default:
		return 0, false
	}
}

// Matches reports whether this mask guards the (prev, curr) transition.
func (m ConditionMask) Matches(prev, curr statusvalue.Ternary) bool {
	bit, ok := maskFor(prev, curr)
	return ok && m&bit != 0
}
