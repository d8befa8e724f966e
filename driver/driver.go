// Package driver composes Reservoir, Evaluator, Accumulator, and
// Dispatcher into the facade a host application actually drives: a
// single New/tick surface over the four otherwise-independent
// collaborators. Grounded on the teacher's pkg/embed/vm.go (a VM struct
// wrapping sub-objects behind a handful of verbs) and pkg/cli/entry.go's
// composition-root style.
package driver

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/ruleshard/ruleengine/internal/accumulator"
	"github.com/ruleshard/ruleengine/internal/config"
	"github.com/ruleshard/ruleengine/internal/dispatcher"
	"github.com/ruleshard/ruleengine/internal/expr"
	"github.com/ruleshard/ruleengine/internal/hashkey"
	"github.com/ruleshard/ruleengine/internal/reservoir"
	"github.com/ruleshard/ruleengine/internal/statusvalue"
)

// Driver owns one instance of every core collaborator and drives them
// through a tick in the fixed order the contract requires: flush queued
// assignments, dispatch handlers against the resulting transitions, then
// clear those transitions exactly once.
type Driver struct {
	res    *reservoir.Reservoir
	ev     *expr.Evaluator
	acc    *accumulator.Accumulator
	disp   *dispatcher.Dispatcher
	hasher hashkey.Hasher

	// Out receives tick diagnostics (one line per tick, when Verbose is
	// set): the tick number, assignments queued before the flush, and the
	// number of live chunks.
	// Matches the teacher's Evaluator.Out convention — nil suppresses
	// output entirely, same as leaving Verbose false.
	Out     io.Writer
	Verbose bool

	ticks uint64
}

// New creates a Driver with the given capacity hints; zero means "use
// the package default" for that capacity. hasher defaults to
// hashkey.DefaultHasher when nil.
func New(chunkCap, statusCap, exprCap, cacheCap int, hasher hashkey.Hasher) *Driver {
	if chunkCap <= 0 {
		chunkCap = config.DefaultChunkCapacity
	}
	if statusCap <= 0 {
		statusCap = config.DefaultStatusCapacity
	}
	if exprCap <= 0 {
		exprCap = config.DefaultExpressionCapacity
	}
	if cacheCap <= 0 {
		cacheCap = config.DefaultCacheCapacity
	}
	if hasher == nil {
		hasher = hashkey.DefaultHasher
	}
	return &Driver{
		res:    reservoir.New(chunkCap, statusCap),
		ev:     expr.New(chunkCap, exprCap),
		acc:    accumulator.New(cacheCap),
		disp:   dispatcher.New(),
		hasher: hasher,
		Out:    os.Stdout,
	}
}

// Reservoir returns the underlying Reservoir for direct read/compare/
// assign access.
func (d *Driver) Reservoir() *reservoir.Reservoir { return d.res }

// Evaluator returns the underlying Evaluator for direct registration and
// ad hoc evaluation outside of a tick.
func (d *Driver) Evaluator() *expr.Evaluator { return d.ev }

// Accumulator returns the underlying Accumulator for direct queuing
// outside of Accumulate/AccumulateMany.
func (d *Driver) Accumulator() *accumulator.Accumulator { return d.acc }

// Key hashes name into a Key using the Driver's configured Hasher.
func (d *Driver) Key(name string) hashkey.Key { return d.hasher.Hash(name) }

// RegisterStatus registers a status under the chunk/status names the
// caller supplies, hashing them with the Driver's Hasher.
func (d *Driver) RegisterStatus(chunkName, statusName string, value statusvalue.Value, width uint) bool {
	return d.res.RegisterStatus(d.Key(chunkName), d.Key(statusName), value, width)
}

// RegisterHandler subscribes fn to exprKey's evaluation transitions,
// scoped to chunkKey for later RemoveChunk cleanup.
func (d *Driver) RegisterHandler(chunkKey, exprKey hashkey.Key, mask dispatcher.ConditionMask, fn dispatcher.HandlerFunc, priority int) bool {
	return d.disp.RegisterHandler(chunkKey, exprKey, mask, fn, priority)
}

// Accumulate queues one assignment for the next tick's flush.
func (d *Driver) Accumulate(assignment reservoir.Assignment, delay accumulator.Delay) {
	d.acc.Accumulate(assignment, delay)
}

// AccumulateMany queues a series of assignments for the next tick's
// flush; see accumulator.Accumulator.AccumulateMany.
func (d *Driver) AccumulateMany(assignments []reservoir.Assignment, delay accumulator.Delay) {
	d.acc.AccumulateMany(assignments, delay)
}

// RemoveChunk removes chunkKey from every collaborator that can own
// state scoped to it: its statuses, the expressions registered against
// it, and the handlers registered against it. The three removals aren't
// atomic across collaborators, but each one is a single-collaborator
// operation and none can partially fail.
func (d *Driver) RemoveChunk(chunkKey hashkey.Key) {
	d.res.RemoveChunk(chunkKey)
	d.ev.RemoveChunk(chunkKey)
	d.disp.RemoveChunk(chunkKey)
}

// Tick runs exactly one cycle: flush queued assignments into the
// reservoir, dispatch handlers against the transitions that produced,
// then clear every transition flag. clear_transitions is called exactly
// once per Tick, after Dispatch, per the dispatcher contract.
func (d *Driver) Tick() {
	queued := d.acc.Count()
	d.acc.Flush(d.res)
	d.disp.Dispatch(d.ev, d.res)
	d.res.ClearTransitions()
	d.ticks++
	if d.Verbose && d.Out != nil && !config.IsTestMode {
		d.logTick(queued)
	}
}

// Ticks returns the number of completed Tick calls.
func (d *Driver) Ticks() uint64 { return d.ticks }

func (d *Driver) logTick(queued int) {
	chunks := len(d.res.ChunkKeys())
	line := fmt.Sprintf("tick %s: %s assignments queued, %s chunks live",
		humanize.Comma(int64(d.ticks)),
		humanize.Comma(int64(queued)),
		humanize.Comma(int64(chunks)))
	if f, ok := d.Out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		fmt.Fprintf(d.Out, "\033[2m%s\033[0m\n", line)
		return
	}
	fmt.Fprintln(d.Out, line)
}
