// Package expr implements Expression and the Evaluator: condition
// expressions built out of sub-expressions, status-transition checks, and
// status comparisons, combined with AND/OR and evaluated to a Ternary.
// Grounded on the original engine's expression/evaluator pair for the
// evaluation algorithm, and on the teacher's internal/vm.Chunk (parallel
// growable-slice-with-capacity-hint storage, elements addressed by a
// chunk-relative index range) for the storage shape.
package expr

import (
	"github.com/ruleshard/ruleengine/internal/container"
	"github.com/ruleshard/ruleengine/internal/hashkey"
	"github.com/ruleshard/ruleengine/internal/reservoir"
)

// Logic is the operator combining an expression's elements.
type Logic uint8

const (
	Or Logic = iota
	And
)

// Kind says which of an ExpressionChunk's three element arrays an
// Expression's [Begin, End) range indexes into.
type Kind uint8

const (
	KindSubExpression Kind = iota
	KindStatusTransition
	KindStatusComparison
)

// Expression is a registered condition: a half-open range of elements in
// one ExpressionChunk, combined with Logic.
type Expression struct {
	ChunkKey hashkey.Key
	Logic    Logic
	Kind     Kind
	Begin    uint32
	End      uint32
}

// IsEmpty reports whether the expression references no elements — such an
// expression can never be registered, mirroring the original's rejection
// of an empty element container.
func (e Expression) IsEmpty() bool { return e.Begin == e.End }

// SubExpressionElement is one element of a compound expression: it
// references another registered expression and the boolean outcome that
// counts as "satisfied" when folded into this expression's logic.
type SubExpressionElement struct {
	Key       hashkey.Key
	Condition bool
}

// StatusTransitionElement is one element of a status-transition
// expression: satisfied when the named status changed since the last
// clear_transitions.
type StatusTransitionElement struct {
	Key hashkey.Key
}

// ExpressionChunk holds the three parallel element arrays every
// expression registered under one chunk key indexes into, plus the keys
// of the expressions it owns (for chunk-granularity removal).
type ExpressionChunk struct {
	SubExpressions    *container.Static[SubExpressionElement]
	StatusTransitions *container.Static[StatusTransitionElement]
	StatusComparisons *container.Static[reservoir.Comparison]
	Owned             []hashkey.Key
}

func newExpressionChunk(elementCapacity int) *ExpressionChunk {
	return &ExpressionChunk{
		SubExpressions:    container.NewStatic[SubExpressionElement](elementCapacity),
		StatusTransitions: container.NewStatic[StatusTransitionElement](elementCapacity),
		StatusComparisons: container.NewStatic[reservoir.Comparison](elementCapacity),
	}
}
