// Package accumulator implements the write-behind queue that batches
// status assignments for a single flush per tick, subject to a per-entry
// delay policy that controls ordering and retry behavior when more than
// one reservation series targets the tick's already-changed statuses.
// Grounded closely on the original engine's accumulator::_flush: this is
// a direct, line-by-line port of its series-boundary algorithm into Go
// slice operations.
package accumulator

import (
	"github.com/ruleshard/ruleengine/internal/reservoir"
	"github.com/ruleshard/ruleengine/internal/statusvalue"
)

// Delay selects how an accumulated assignment behaves when another
// reservation series already changed its target during the same flush.
type Delay uint8

const (
	// Follow continues the previous entry's series rather than starting a
	// new one; it never appears as the first Delay of a call.
	Follow Delay = iota
	// Yield starts a new series. If any status in the series already
	// transitioned this flush, the whole series is delayed to the next
	// flush.
	Yield
	// Block starts a new series. If any status in the series already
	// transitioned this flush, the series AND every later entry queued in
	// this flush are delayed to the next flush.
	Block
	// Nonblock starts a new series that always applies immediately,
	// regardless of whether its targets already transitioned this flush.
	Nonblock
)

type entry struct {
	assignment reservoir.Assignment
	delay      Delay
}

// Accumulator queues status assignments and applies them to a Reservoir
// in Flush calls, batched by tick.
type Accumulator struct {
	accumulated []entry
	delayed     []entry
}

// New creates an empty Accumulator, preallocating both internal queues to
// reserveCapacity entries.
func New(reserveCapacity int) *Accumulator {
	return &Accumulator{
		accumulated: make([]entry, 0, reserveCapacity),
		delayed:     make([]entry, 0, reserveCapacity),
	}
}

// Count returns the number of assignments currently queued for the next
// Flush.
func (a *Accumulator) Count() int { return len(a.accumulated) }

// Accumulate queues one assignment under delay.
func (a *Accumulator) Accumulate(assignment reservoir.Assignment, delay Delay) {
	a.accumulated = append(a.accumulated, entry{assignment: assignment, delay: delay})
}

// AccumulateMany queues a run of assignments as a single series: the
// first uses delay, and every subsequent assignment is queued with
// Follow so the run is treated as one series by Flush.
func (a *Accumulator) AccumulateMany(assignments []reservoir.Assignment, delay Delay) {
	for _, assignment := range assignments {
		a.Accumulate(assignment, delay)
		delay = Follow
	}
}

// Flush applies queued assignments to res. Within one Flush call,
// assignments are grouped into series: a Follow entry extends the
// previous series, anything else starts a new one. A series is applied in
// order unless one of its targets already has its transition flag set in
// res (by an earlier series of this Flush call, or by any other write
// since the last ClearTransitions), in which case Yield delays just that
// series, Block
// delays that series and everything queued after it, and Nonblock never
// delays. If an assignment in an applied series fails, the rest of that
// series is skipped (not retried later). Anything delayed is queued for
// the next Flush call.
func (a *Accumulator) Flush(res *reservoir.Reservoir) {
	n := len(a.accumulated)
	i := 0
	for i < n {
		nonblock := a.accumulated[i].delay == Nonblock
		flush := !nonblock
		j := i
		for {
			if flush && res.FindTransition(a.accumulated[j].assignment.Target) == statusvalue.TernaryTrue {
				flush = false
			}
			j++
			if j == n || a.accumulated[j].delay != Follow {
				break
			}
		}

		if nonblock || flush {
			for ; i < j; i++ {
				if !res.AssignStatus(a.accumulated[i].assignment) {
					i = j
					break
				}
			}
		} else {
			if a.accumulated[i].delay == Block {
				j = n
			}
			a.delayed = append(a.delayed, a.accumulated[i:j]...)
			i = j
		}
	}
	a.accumulated, a.delayed = a.delayed, a.accumulated[:0]
}
