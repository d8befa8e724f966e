package driver

import (
	"bytes"
	"testing"

	"github.com/ruleshard/ruleengine/internal/accumulator"
	"github.com/ruleshard/ruleengine/internal/dispatcher"
	"github.com/ruleshard/ruleengine/internal/expr"
	"github.com/ruleshard/ruleengine/internal/hashkey"
	"github.com/ruleshard/ruleengine/internal/reservoir"
	"github.com/ruleshard/ruleengine/internal/statusvalue"
)

func TestTickFlushesThenDispatchesThenClears(t *testing.T) {
	d := New(0, 0, 0, 0, nil)

	chunk := d.Key("chunk")
	hp := d.Key("hp")
	if !d.RegisterStatus("chunk", "hp", statusvalue.NewUnsigned(10), 8) {
		t.Fatal("register status failed")
	}

	cmpKey := d.Key("hp-is-zero")
	if !d.Evaluator().RegisterStatusComparison(chunk, cmpKey, expr.And, []reservoir.Comparison{
		{Target: hp, Op: statusvalue.CmpEqual, Value: statusvalue.NewUnsigned(0)},
	}) {
		t.Fatal("register comparison failed")
	}

	fired := 0
	var lastPrev, lastCurr statusvalue.Ternary
	d.RegisterHandler(chunk, cmpKey, dispatcher.FalseToTrue, func(exprKey hashkey.Key, prev, curr statusvalue.Ternary) {
		fired++
		lastPrev, lastCurr = prev, curr
	}, 0)

	d.Accumulate(reservoir.Assignment{Target: hp, Op: statusvalue.OpCopy, Value: statusvalue.NewUnsigned(0)}, accumulator.Nonblock)
	d.Tick()

	if fired != 1 {
		t.Fatalf("expected handler to fire once, fired %d times", fired)
	}
	if lastPrev != statusvalue.TernaryFalse || lastCurr != statusvalue.TernaryTrue {
		t.Fatalf("expected False->True, got %v->%v", lastPrev, lastCurr)
	}
	if d.Reservoir().FindTransition(hp) != statusvalue.TernaryFalse {
		t.Fatal("expected transition flag cleared after tick")
	}
	if d.Ticks() != 1 {
		t.Fatalf("expected 1 tick recorded, got %d", d.Ticks())
	}
}

func TestRemoveChunkClearsAllThreeCollaborators(t *testing.T) {
	d := New(0, 0, 0, 0, nil)
	chunk := d.Key("chunk")
	hp := d.Key("hp")
	d.RegisterStatus("chunk", "hp", statusvalue.NewUnsigned(1), 8)

	cmpKey := d.Key("hp-gt-zero")
	d.Evaluator().RegisterStatusComparison(chunk, cmpKey, expr.And, []reservoir.Comparison{
		{Target: hp, Op: statusvalue.CmpGreater, Value: statusvalue.NewUnsigned(0)},
	})
	fired := false
	d.RegisterHandler(chunk, cmpKey, dispatcher.AllTransitions, func(hashkey.Key, statusvalue.Ternary, statusvalue.Ternary) {
		fired = true
	}, 0)

	d.RemoveChunk(chunk)

	if d.Reservoir().FindStatus(hp).Kind() != statusvalue.Empty {
		t.Fatal("expected status removed from reservoir")
	}
	if _, ok := d.Evaluator().FindExpression(cmpKey); ok {
		t.Fatal("expected expression removed from evaluator")
	}

	// Re-register the same status and expression: a handler that survived
	// RemoveChunk would fire on the Unknown->True transition.
	d.RegisterStatus("chunk", "hp", statusvalue.NewUnsigned(1), 8)
	d.Evaluator().RegisterStatusComparison(chunk, cmpKey, expr.And, []reservoir.Comparison{
		{Target: hp, Op: statusvalue.CmpGreater, Value: statusvalue.NewUnsigned(0)},
	})
	d.Tick()
	if fired {
		t.Fatal("expected handler removed from dispatcher")
	}
}

func TestVerboseTickWritesALine(t *testing.T) {
	d := New(0, 0, 0, 0, nil)
	var buf bytes.Buffer
	d.Out = &buf
	d.Verbose = true

	d.Tick()

	if buf.Len() == 0 {
		t.Fatal("expected a diagnostics line when Verbose is set")
	}
}
