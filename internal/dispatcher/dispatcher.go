// Package dispatcher implements the minimal concrete slice of the
// handler-firing contract spec.md leaves external: register a handler
// against an expression with a condition_mask and priority, and on each
// tick re-evaluate every expression with at least one handler, firing
// the handlers whose mask matches the (previous, current) transition in
// priority order. The full chunk-scoped weak-reference handler registry
// and its CSV-driven builder are named non-core collaborators — this
// package only supplies what Driver.Tick needs to honor the contract:
// a deterministic transition set, a pure evaluate step, and
// clear_transitions called exactly once (by Driver, after Dispatch).
package dispatcher

import (
	"container/heap"
	"fmt"
	"io"
	"sort"

	"github.com/ruleshard/ruleengine/internal/expr"
	"github.com/ruleshard/ruleengine/internal/hashkey"
	"github.com/ruleshard/ruleengine/internal/reservoir"
	"github.com/ruleshard/ruleengine/internal/statusvalue"
)

// HandlerFunc reacts to an expression's guarded transition.
type HandlerFunc func(exprKey hashkey.Key, prev, curr statusvalue.Ternary)

type handlerEntry struct {
	chunkKey hashkey.Key
	exprKey  hashkey.Key
	mask     ConditionMask
	fn       HandlerFunc
	priority int
}

// handlerQueue orders handlerEntry pointers by ascending priority via
// container/heap — the ecosystem carries no priority-queue library, so
// this is the one place the dispatcher reaches for the standard library
// over a third-party dependency.
type handlerQueue []*handlerEntry

func (q handlerQueue) Len() int            { return len(q) }
func (q handlerQueue) Less(i, j int) bool  { return q[i].priority < q[j].priority }
func (q handlerQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *handlerQueue) Push(x interface{}) { *q = append(*q, x.(*handlerEntry)) }
func (q *handlerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// sortedByPriority returns q's entries in ascending priority order
// without disturbing q itself.
func (q handlerQueue) sortedByPriority() []*handlerEntry {
	clone := make(handlerQueue, len(q))
	copy(clone, q)
	heap.Init(&clone)
	out := make([]*handlerEntry, 0, len(clone))
	for clone.Len() > 0 {
		out = append(out, heap.Pop(&clone).(*handlerEntry))
	}
	return out
}

// Dispatcher fires handlers in response to expression-evaluation
// transitions observed across ticks.
type Dispatcher struct {
	byExpr   map[hashkey.Key]*handlerQueue
	byChunk  map[hashkey.Key][]*handlerEntry
	previous map[hashkey.Key]statusvalue.Ternary

	// Out receives one line per handler panic the dispatcher recovers
	// from; nil suppresses logging, matching the teacher's Out
	// io.Writer convention (internal/evaluator/evaluator.go).
	Out io.Writer
}

// New creates an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{
		byExpr:   make(map[hashkey.Key]*handlerQueue),
		byChunk:  make(map[hashkey.Key][]*handlerEntry),
		previous: make(map[hashkey.Key]statusvalue.Ternary),
	}
}

// RegisterHandler subscribes fn to exprKey's evaluation transitions,
// scoped to chunkKey for later chunk-granularity removal. mask selects
// which (prev, curr) transitions fire fn; priority breaks ties across
// handlers on the same expression, ascending.
func (d *Dispatcher) RegisterHandler(chunkKey, exprKey hashkey.Key, mask ConditionMask, fn HandlerFunc, priority int) bool {
	if chunkKey == hashkey.NoKey || exprKey == hashkey.NoKey || fn == nil {
		return false
	}
	entry := &handlerEntry{chunkKey: chunkKey, exprKey: exprKey, mask: mask, fn: fn, priority: priority}
	q, ok := d.byExpr[exprKey]
	if !ok {
		q = &handlerQueue{}
		d.byExpr[exprKey] = q
	}
	heap.Push(q, entry)
	d.byChunk[chunkKey] = append(d.byChunk[chunkKey], entry)
	return true
}

// RemoveChunk drops every handler registered under chunkKey.
func (d *Dispatcher) RemoveChunk(chunkKey hashkey.Key) {
	entries, ok := d.byChunk[chunkKey]
	if !ok {
		return
	}
	for _, e := range entries {
		q, ok := d.byExpr[e.exprKey]
		if !ok {
			continue
		}
		filtered := (*q)[:0]
		for _, existing := range *q {
			if existing != e {
				filtered = append(filtered, existing)
			}
		}
		*q = filtered
		heap.Init(q)
		if q.Len() == 0 {
			delete(d.byExpr, e.exprKey)
		}
	}
	delete(d.byChunk, chunkKey)
}

// Dispatch re-evaluates every expression with at least one registered
// handler, in ascending expression-key order for a deterministic firing
// sequence across expressions, and fires the handlers whose mask matches
// the transition from this expression's last recorded evaluation. It
// does not call ClearTransitions — Driver.Tick owns that, exactly once,
// after Dispatch returns.
func (d *Dispatcher) Dispatch(ev *expr.Evaluator, res *reservoir.Reservoir) {
	keys := make([]hashkey.Key, 0, len(d.byExpr))
	for k := range d.byExpr {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, exprKey := range keys {
		curr := ev.Evaluate(exprKey, res)
		prev, known := d.previous[exprKey]
		d.previous[exprKey] = curr
		if !known {
			prev = statusvalue.TernaryUnknown
		}
		if prev == curr {
			continue
		}
		for _, entry := range d.byExpr[exprKey].sortedByPriority() {
			if entry.mask.Matches(prev, curr) {
				d.fire(entry, prev, curr)
			}
		}
	}
}

func (d *Dispatcher) fire(entry *handlerEntry, prev, curr statusvalue.Ternary) {
	defer func() {
		if r := recover(); r != nil && d.Out != nil {
			fmt.Fprintf(d.Out, "dispatcher: handler for expression %d panicked: %v\n", entry.exprKey, r)
		}
	}()
	entry.fn(entry.exprKey, prev, curr)
}
