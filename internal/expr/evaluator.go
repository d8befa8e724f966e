package expr

import (
	"sync"

	"github.com/ruleshard/ruleengine/internal/hashkey"
	"github.com/ruleshard/ruleengine/internal/reservoir"
	"github.com/ruleshard/ruleengine/internal/statusvalue"
)

// elementCapacityHint sizes a freshly created chunk's three Static element
// arrays. Chunks grow past it without issue; it only avoids a handful of
// reallocations for the common case.
const elementCapacityHint = 8

// Evaluator holds registered expressions and the chunks their elements
// live in, and evaluates them against a Reservoir. Grounded on the
// original engine's evaluator: registration fixes an expression's
// [begin, end) element range inside one chunk, and evaluate walks that
// range short-circuiting on the expression's Logic.
type Evaluator struct {
	mu          sync.RWMutex
	chunks      map[hashkey.Key]*ExpressionChunk
	expressions map[hashkey.Key]Expression
}

// New creates an empty Evaluator with capacity hints for its two maps.
func New(chunkCapacity, expressionCapacity int) *Evaluator {
	return &Evaluator{
		chunks:      make(map[hashkey.Key]*ExpressionChunk, chunkCapacity),
		expressions: make(map[hashkey.Key]Expression, expressionCapacity),
	}
}

func (e *Evaluator) chunkFor(chunkKey hashkey.Key) *ExpressionChunk {
	c := e.chunks[chunkKey]
	if c == nil {
		c = newExpressionChunk(elementCapacityHint)
		e.chunks[chunkKey] = c
	}
	return c
}

// RegisterSubExpression registers a compound expression over other
// expressions. Fails if exprKey is already registered, elements is empty,
// or any element references an expression that isn't registered yet —
// requiring forward references to already exist rules out cycles by
// construction order, since an expression can only ever point at
// expressions registered strictly before it.
func (e *Evaluator) RegisterSubExpression(chunkKey, exprKey hashkey.Key, logic Logic, elements []SubExpressionElement) bool {
	if len(elements) == 0 || chunkKey == hashkey.NoKey || exprKey == hashkey.NoKey {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.expressions[exprKey]; exists {
		return false
	}
	for _, el := range elements {
		if _, ok := e.expressions[el.Key]; !ok {
			return false
		}
	}
	chunk := e.chunkFor(chunkKey)
	begin := uint32(chunk.SubExpressions.Len())
	for _, el := range elements {
		chunk.SubExpressions.Append(el)
	}
	end := uint32(chunk.SubExpressions.Len())
	e.expressions[exprKey] = Expression{ChunkKey: chunkKey, Logic: logic, Kind: KindSubExpression, Begin: begin, End: end}
	chunk.Owned = append(chunk.Owned, exprKey)
	return true
}

// RegisterStatusTransition registers a status-transition expression: true
// when enough of the named statuses changed since the last clear, per
// logic.
func (e *Evaluator) RegisterStatusTransition(chunkKey, exprKey hashkey.Key, logic Logic, elements []StatusTransitionElement) bool {
	if len(elements) == 0 || chunkKey == hashkey.NoKey || exprKey == hashkey.NoKey {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.expressions[exprKey]; exists {
		return false
	}
	chunk := e.chunkFor(chunkKey)
	begin := uint32(chunk.StatusTransitions.Len())
	for _, el := range elements {
		chunk.StatusTransitions.Append(el)
	}
	end := uint32(chunk.StatusTransitions.Len())
	e.expressions[exprKey] = Expression{ChunkKey: chunkKey, Logic: logic, Kind: KindStatusTransition, Begin: begin, End: end}
	chunk.Owned = append(chunk.Owned, exprKey)
	return true
}

// RegisterStatusComparison registers a status-comparison expression.
func (e *Evaluator) RegisterStatusComparison(chunkKey, exprKey hashkey.Key, logic Logic, elements []reservoir.Comparison) bool {
	if len(elements) == 0 || chunkKey == hashkey.NoKey || exprKey == hashkey.NoKey {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.expressions[exprKey]; exists {
		return false
	}
	chunk := e.chunkFor(chunkKey)
	begin := uint32(chunk.StatusComparisons.Len())
	for _, el := range elements {
		chunk.StatusComparisons.Append(el)
	}
	end := uint32(chunk.StatusComparisons.Len())
	e.expressions[exprKey] = Expression{ChunkKey: chunkKey, Logic: logic, Kind: KindStatusComparison, Begin: begin, End: end}
	chunk.Owned = append(chunk.Owned, exprKey)
	return true
}

// FindExpression returns the registered expression and whether it exists.
func (e *Evaluator) FindExpression(exprKey hashkey.Key) (Expression, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	expr, ok := e.expressions[exprKey]
	return expr, ok
}

// Evaluate resolves exprKey to a Ternary against res. TernaryUnknown means
// the expression isn't registered, its chunk is missing, or evaluating one
// of its elements failed (recursively, for sub-expressions, or because a
// referenced status was never registered). Evaluation is strict: it folds
// elements left to right and returns Unknown the moment any element is
// Unknown, even if a later element would have short-circuited the result —
// this matches the non-commutative evaluation order of the engine this was
// built on, not full truth-table Kleene logic.
func (e *Evaluator) Evaluate(exprKey hashkey.Key, res *reservoir.Reservoir) statusvalue.Ternary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.evaluateLocked(exprKey, res)
}

func (e *Evaluator) evaluateLocked(exprKey hashkey.Key, res *reservoir.Reservoir) statusvalue.Ternary {
	expression, ok := e.expressions[exprKey]
	if !ok {
		return statusvalue.TernaryUnknown
	}
	chunk, ok := e.chunks[expression.ChunkKey]
	if !ok {
		return statusvalue.TernaryUnknown
	}
	switch expression.Kind {
	case KindSubExpression:
		return evaluateRange(expression, int(chunk.SubExpressions.Len()), func(i int) statusvalue.Ternary {
			el := chunk.SubExpressions.At(i)
			result := e.evaluateLocked(el.Key, res)
			if result == statusvalue.TernaryUnknown {
				return statusvalue.TernaryUnknown
			}
			return statusvalue.FromBool((result == statusvalue.TernaryTrue) == el.Condition)
		})
	case KindStatusTransition:
		return evaluateRange(expression, int(chunk.StatusTransitions.Len()), func(i int) statusvalue.Ternary {
			return res.FindTransition(chunk.StatusTransitions.At(i).Key)
		})
	case KindStatusComparison:
		return evaluateRange(expression, int(chunk.StatusComparisons.Len()), func(i int) statusvalue.Ternary {
			return res.CompareStatus(chunk.StatusComparisons.At(i))
		})
	default:
		return statusvalue.TernaryUnknown
	}
}

// evaluateRange folds elements[begin:end) with logic, short-circuiting on
// the first element that decides the outcome (False for AND, True for OR)
// and failing immediately on the first Unknown element.
func evaluateRange(expression Expression, elementCount int, at func(i int) statusvalue.Ternary) statusvalue.Ternary {
	if expression.IsEmpty() || elementCount < int(expression.End) {
		return statusvalue.TernaryUnknown
	}
	and := expression.Logic == And
	for i := int(expression.Begin); i < int(expression.End); i++ {
		result := at(i)
		switch result {
		case statusvalue.TernaryUnknown:
			return statusvalue.TernaryUnknown
		case statusvalue.TernaryTrue:
			if !and {
				return statusvalue.TernaryTrue
			}
		case statusvalue.TernaryFalse:
			if and {
				return statusvalue.TernaryFalse
			}
		}
	}
	return statusvalue.FromBool(and)
}

// RemoveChunk removes chunkKey and every expression it owns.
func (e *Evaluator) RemoveChunk(chunkKey hashkey.Key) {
	e.mu.Lock()
	defer e.mu.Unlock()
	chunk, ok := e.chunks[chunkKey]
	if !ok {
		return
	}
	for _, ek := range chunk.Owned {
		delete(e.expressions, ek)
	}
	delete(e.chunks, chunkKey)
}

// Rebuild replaces the internal maps with freshly sized ones carrying the
// same contents — mirroring the original evaluator's rehash-on-rebuild,
// adapted to Go maps which don't expose a bucket count to tune directly.
func (e *Evaluator) Rebuild(chunkCapacity, expressionCapacity int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	newChunks := make(map[hashkey.Key]*ExpressionChunk, chunkCapacity)
	for k, v := range e.chunks {
		newChunks[k] = v
	}
	newExpressions := make(map[hashkey.Key]Expression, expressionCapacity)
	for k, v := range e.expressions {
		newExpressions[k] = v
	}
	e.chunks = newChunks
	e.expressions = newExpressions
}
