package expr

import (
	"testing"

	"github.com/ruleshard/ruleengine/internal/hashkey"
	"github.com/ruleshard/ruleengine/internal/reservoir"
	"github.com/ruleshard/ruleengine/internal/statusvalue"
)

func key(n uint64) hashkey.Key { return hashkey.Key(n) }

func TestStatusComparisonExpression(t *testing.T) {
	res := reservoir.New(1, 4)
	res.RegisterStatus(key(1), key(10), statusvalue.NewUnsigned(5), 8)

	ev := New(1, 4)
	ok := ev.RegisterStatusComparison(key(1), key(100), And, []reservoir.Comparison{
		{Target: key(10), Op: statusvalue.CmpGreater, Value: statusvalue.NewUnsigned(3)},
	})
	if !ok {
		t.Fatal("register should succeed")
	}
	if got := ev.Evaluate(key(100), res); got != statusvalue.TernaryTrue {
		t.Fatalf("expected True, got %v", got)
	}
}

func TestAndShortCircuitsOnFalse(t *testing.T) {
	res := reservoir.New(1, 4)
	res.RegisterStatus(key(1), key(10), statusvalue.NewUnsigned(5), 8)
	res.RegisterStatus(key(1), key(11), statusvalue.NewUnsigned(5), 8)

	ev := New(1, 4)
	ev.RegisterStatusComparison(key(1), key(100), And, []reservoir.Comparison{
		{Target: key(10), Op: statusvalue.CmpEqual, Value: statusvalue.NewUnsigned(999)}, // false
		{Target: key(11), Op: statusvalue.CmpEqual, Value: statusvalue.NewUnsigned(5)},
	})
	if got := ev.Evaluate(key(100), res); got != statusvalue.TernaryFalse {
		t.Fatalf("expected False, got %v", got)
	}
}

func TestOrShortCircuitsOnTrue(t *testing.T) {
	res := reservoir.New(1, 4)
	res.RegisterStatus(key(1), key(10), statusvalue.NewUnsigned(5), 8)

	ev := New(1, 4)
	ev.RegisterStatusComparison(key(1), key(100), Or, []reservoir.Comparison{
		{Target: key(10), Op: statusvalue.CmpEqual, Value: statusvalue.NewUnsigned(5)}, // true
		{Target: key(999), Op: statusvalue.CmpEqual, Value: statusvalue.NewUnsigned(5)}, // would be unknown
	})
	if got := ev.Evaluate(key(100), res); got != statusvalue.TernaryTrue {
		t.Fatalf("expected True, got %v", got)
	}
}

func TestUnknownPropagatesImmediately(t *testing.T) {
	res := reservoir.New(1, 4)
	res.RegisterStatus(key(1), key(10), statusvalue.NewUnsigned(5), 8)

	ev := New(1, 4)
	ev.RegisterStatusComparison(key(1), key(100), Or, []reservoir.Comparison{
		{Target: key(999), Op: statusvalue.CmpEqual, Value: statusvalue.NewUnsigned(5)}, // unknown, evaluated first
		{Target: key(10), Op: statusvalue.CmpEqual, Value: statusvalue.NewUnsigned(5)},  // would be true
	})
	if got := ev.Evaluate(key(100), res); got != statusvalue.TernaryUnknown {
		t.Fatalf("expected Unknown even though a later element is true, got %v", got)
	}
}

func TestSubExpressionRequiresPriorRegistration(t *testing.T) {
	ev := New(1, 4)
	ok := ev.RegisterSubExpression(key(1), key(200), And, []SubExpressionElement{
		{Key: key(999), Condition: true}, // not registered yet
	})
	if ok {
		t.Fatal("registering a sub-expression over an unregistered key should fail")
	}
}

func TestSubExpressionComposesRegisteredExpressions(t *testing.T) {
	res := reservoir.New(1, 4)
	res.RegisterStatus(key(1), key(10), statusvalue.NewUnsigned(1), 8)
	res.RegisterStatus(key(1), key(11), statusvalue.NewUnsigned(2), 8)

	ev := New(1, 4)
	ev.RegisterStatusComparison(key(1), key(100), And, []reservoir.Comparison{
		{Target: key(10), Op: statusvalue.CmpEqual, Value: statusvalue.NewUnsigned(1)},
	})
	ev.RegisterStatusComparison(key(1), key(101), And, []reservoir.Comparison{
		{Target: key(11), Op: statusvalue.CmpEqual, Value: statusvalue.NewUnsigned(2)},
	})
	ok := ev.RegisterSubExpression(key(1), key(200), And, []SubExpressionElement{
		{Key: key(100), Condition: true},
		{Key: key(101), Condition: true},
	})
	if !ok {
		t.Fatal("sub-expression registration should succeed once both dependencies exist")
	}
	if got := ev.Evaluate(key(200), res); got != statusvalue.TernaryTrue {
		t.Fatalf("expected True, got %v", got)
	}
}

func TestStatusTransitionExpression(t *testing.T) {
	res := reservoir.New(1, 4)
	res.RegisterStatus(key(1), key(10), statusvalue.NewUnsigned(1), 8)

	ev := New(1, 4)
	ev.RegisterStatusTransition(key(1), key(300), And, []StatusTransitionElement{{Key: key(10)}})

	if got := ev.Evaluate(key(300), res); got != statusvalue.TernaryTrue {
		t.Fatalf("freshly registered status should report a transition, got %v", got)
	}
	res.ClearTransitions()
	if got := ev.Evaluate(key(300), res); got != statusvalue.TernaryFalse {
		t.Fatalf("expected False after clear_transitions, got %v", got)
	}
}

func TestRemoveChunkDropsOwnedExpressions(t *testing.T) {
	res := reservoir.New(1, 4)
	res.RegisterStatus(key(1), key(10), statusvalue.NewUnsigned(1), 8)

	ev := New(1, 4)
	ev.RegisterStatusComparison(key(1), key(100), And, []reservoir.Comparison{
		{Target: key(10), Op: statusvalue.CmpEqual, Value: statusvalue.NewUnsigned(1)},
	})
	ev.RemoveChunk(key(1))
	if _, ok := ev.FindExpression(key(100)); ok {
		t.Fatal("expression should be gone after its chunk is removed")
	}
	if got := ev.Evaluate(key(100), res); got != statusvalue.TernaryUnknown {
		t.Fatalf("evaluating a removed expression should be Unknown, got %v", got)
	}
}

func TestRegisterRejectsDuplicateKeyAndEmptyElements(t *testing.T) {
	ev := New(1, 4)
	if ev.RegisterStatusComparison(key(1), key(100), And, nil) {
		t.Fatal("empty element list should be rejected")
	}
	ev.RegisterStatusComparison(key(1), key(100), And, []reservoir.Comparison{
		{Target: key(10), Op: statusvalue.CmpEqual, Value: statusvalue.NewUnsigned(1)},
	})
	if ev.RegisterStatusComparison(key(1), key(100), And, []reservoir.Comparison{
		{Target: key(10), Op: statusvalue.CmpEqual, Value: statusvalue.NewUnsigned(1)},
	}) {
		t.Fatal("duplicate expression key should be rejected")
	}
}
