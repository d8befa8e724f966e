// Package reservoir owns the Reservoir: a mapping from chunk key to
// StatusChunk and from status key to StatusProperty, plus the typed
// get/set/compare/assign operations and transition-flag bookkeeping spec
// describes. Grounded on the teacher's environment.go (mutex-guarded map
// storage) for the storage shape and on the original engine's reservoir
// for register/assign/rebuild semantics.
package reservoir

import (
	"math"
	"sort"
	"sync"

	"github.com/ruleshard/ruleengine/internal/block"
	"github.com/ruleshard/ruleengine/internal/hashkey"
	"github.com/ruleshard/ruleengine/internal/statusvalue"
)

// Assignment describes one status_assignment: an operator applied to a
// target status, with the right-hand side being either a constant Value
// or another status's current value.
type Assignment struct {
	Target    hashkey.Key
	Op        statusvalue.AssignOp
	Value     statusvalue.Value
	RHSStatus hashkey.Key // if != hashkey.NoKey, overrides Value
}

// Comparison describes one StatusComparison element: compare a status
// against a constant or another status using op.
type Comparison struct {
	Target    hashkey.Key
	Op        statusvalue.ComparisonOp
	Value     statusvalue.Value
	RHSStatus hashkey.Key // if != hashkey.NoKey, overrides Value
}

// Reservoir owns chunks and statuses. Per spec §5 the core is
// single-threaded; the mutex here costs nothing on the uncontended path
// and matches the teacher's own reflex of guarding shared maps, but it is
// not a concurrency guarantee — callers must still serialize ticks.
type Reservoir struct {
	mu     sync.RWMutex
	chunks map[hashkey.Key]*StatusChunk
	props  map[hashkey.Key]StatusProperty
}

// New creates an empty Reservoir with capacity hints for its two maps.
func New(chunkCapacity, statusCapacity int) *Reservoir {
	return &Reservoir{
		chunks: make(map[hashkey.Key]*StatusChunk, chunkCapacity),
		props:  make(map[hashkey.Key]StatusProperty, statusCapacity),
	}
}

// RegisterStatus reserves a new status in the named chunk (creating the
// chunk if absent), determining its packed format from value's kind (and
// width for integers). Fails if statusKey already exists, the keys are
// NoKey, the width is invalid, or value overflows the declared width.
func (r *Reservoir) RegisterStatus(chunkKey, statusKey hashkey.Key, value statusvalue.Value, width uint) bool {
	if statusKey == hashkey.NoKey || chunkKey == hashkey.NoKey {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.props[statusKey]; exists {
		return false
	}
	format, ok := FormatFor(value.Kind(), width)
	if !ok {
		return false
	}
	raw, ok := rawBitsFor(value, format)
	if !ok {
		return false
	}

	chunk := r.chunks[chunkKey]
	if chunk == nil {
		chunk = NewStatusChunk()
		r.chunks[chunkKey] = chunk
	}
	pos, ok := chunk.AllocateField(format.Width())
	if !ok {
		return false
	}
	if _, ok := chunk.SetField(pos, format.Width(), raw); !ok {
		return false
	}
	chunk.Owned = append(chunk.Owned, statusKey)
	r.props[statusKey] = StatusProperty{ChunkKey: chunkKey, Position: pos, Format: format, Transition: true}
	return true
}

// FindStatus returns the current value of statusKey, or Empty if absent.
func (r *Reservoir) FindStatus(statusKey hashkey.Key) statusvalue.Value {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prop, ok := r.props[statusKey]
	if !ok {
		return statusvalue.NewEmpty()
	}
	return r.readLocked(prop)
}

// readLocked decodes the current value of the status described by prop.
// Must be called with r.mu held.
func (r *Reservoir) readLocked(prop StatusProperty) statusvalue.Value {
	chunk := r.chunks[prop.ChunkKey]
	raw := chunk.GetField(prop.Position, prop.Format.Width())
	return valueFromRaw(raw, prop.Format)
}

// AssignStatus applies one assignment, updating bits and the target's
// transition flag if they changed. Fails if the target (or, for a
// status-sourced rhs, the source status) is absent, the resulting value is
// out of range for the target's width, or kind rules are violated.
func (r *Reservoir) AssignStatus(a Assignment) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	prop, ok := r.props[a.Target]
	if !ok {
		return false
	}
	rhs, ok := r.resolveLocked(a.Value, a.RHSStatus)
	if !ok {
		return false
	}
	current := r.readLocked(prop)
	next, ok := current.AssignOp(a.Op, rhs)
	if !ok {
		return false
	}
	raw, ok := rawBitsFor(next, prop.Format)
	if !ok {
		return false
	}
	chunk := r.chunks[prop.ChunkKey]
	changed, ok := chunk.SetField(prop.Position, prop.Format.Width(), raw)
	if !ok {
		return false
	}
	if changed {
		prop.Transition = true
		r.props[a.Target] = prop
	}
	return true
}

// CompareStatus resolves the comparison's right-hand side (constant or
// status) and delegates to statusvalue.Value.Compare.
func (r *Reservoir) CompareStatus(c Comparison) statusvalue.Ternary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prop, ok := r.props[c.Target]
	if !ok {
		return statusvalue.TernaryUnknown
	}
	rhs, ok := r.resolveLocked(c.Value, c.RHSStatus)
	if !ok {
		return statusvalue.TernaryUnknown
	}
	left := r.readLocked(prop)
	return left.Compare(c.Op, rhs)
}

func (r *Reservoir) resolveLocked(value statusvalue.Value, rhsStatus hashkey.Key) (statusvalue.Value, bool) {
	if rhsStatus == hashkey.NoKey {
		return value, true
	}
	prop, ok := r.props[rhsStatus]
	if !ok {
		return statusvalue.Value{}, false
	}
	return r.readLocked(prop), true
}

// FindTransition reports the transition flag of statusKey as a Ternary:
// True if set, False if clear, Unknown if the status is absent.
func (r *Reservoir) FindTransition(statusKey hashkey.Key) statusvalue.Ternary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prop, ok := r.props[statusKey]
	if !ok {
		return statusvalue.TernaryUnknown
	}
	return statusvalue.FromBool(prop.Transition)
}

// ClearTransitions clears every status's transition flag. Called exactly
// once per tick, after dispatch.
func (r *Reservoir) ClearTransitions() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, p := range r.props {
		if p.Transition {
			p.Transition = false
			r.props[k] = p
		}
	}
}

// StatusProperty returns the registered property for statusKey, for
// callers (like internal/chunkio) that need a status's Format and
// Position directly rather than its decoded value.
func (r *Reservoir) StatusProperty(statusKey hashkey.Key) (StatusProperty, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.props[statusKey]
	return p, ok
}

// Chunk returns the raw StatusChunk backing chunkKey, for callers (like
// internal/chunkio) that need to serialize or inspect its packed storage
// directly rather than going through per-status accessors.
func (r *Reservoir) Chunk(chunkKey hashkey.Key) (*StatusChunk, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.chunks[chunkKey]
	return c, ok
}

// ChunkKeys returns every registered chunk key, in no particular order.
func (r *Reservoir) ChunkKeys() []hashkey.Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]hashkey.Key, 0, len(r.chunks))
	for k := range r.chunks {
		keys = append(keys, k)
	}
	return keys
}

// PutChunk installs chunk under chunkKey and re-derives every status
// property it owns from chunk.Owned, taking formats[i] and positions[i]
// as the Format and Position of chunk.Owned[i] (the chunk's packed bytes
// alone don't record a field's declared kind/width, only its bit
// contents). Restored properties have their transition flag clear. It
// returns false if the slice lengths differ from len(chunk.Owned); used
// by internal/chunkio's deserializer to restore a persisted chunk without
// re-running RegisterStatus's allocator.
func (r *Reservoir) PutChunk(chunkKey hashkey.Key, chunk *StatusChunk, formats []Format, positions []uint) bool {
	if len(chunk.Owned) != len(formats) || len(chunk.Owned) != len(positions) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks[chunkKey] = chunk
	for i, statusKey := range chunk.Owned {
		r.props[statusKey] = StatusProperty{
			ChunkKey: chunkKey,
			Position: positions[i],
			Format:   formats[i],
		}
	}
	return true
}

// RemoveChunk removes chunkKey and every status it owns.
func (r *Reservoir) RemoveChunk(chunkKey hashkey.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chunk, ok := r.chunks[chunkKey]
	if !ok {
		return
	}
	for _, sk := range chunk.Owned {
		delete(r.props, sk)
	}
	delete(r.chunks, chunkKey)
}

// Rebuild compacts storage: within each chunk it walks statuses in
// descending width order and re-allocates their fields into a fresh
// StatusChunk, carrying over values and transition flags, then drops any
// chunk left with no statuses. chunkCapacity/statusCapacity size the
// rebuilt maps.
func (r *Reservoir) Rebuild(chunkCapacity, statusCapacity int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	type carried struct {
		key   hashkey.Key
		prop  StatusProperty
		value statusvalue.Value
	}

	newChunks := make(map[hashkey.Key]*StatusChunk, chunkCapacity)
	newProps := make(map[hashkey.Key]StatusProperty, statusCapacity)

	for chunkKey, chunk := range r.chunks {
		if len(chunk.Owned) == 0 {
			continue
		}
		items := make([]carried, 0, len(chunk.Owned))
		for _, sk := range chunk.Owned {
			prop := r.props[sk]
			items = append(items, carried{key: sk, prop: prop, value: r.readLocked(prop)})
		}
		sort.Slice(items, func(i, j int) bool {
			return items[i].prop.Format.Width() > items[j].prop.Format.Width()
		})

		fresh := NewStatusChunk()
		fresh.Owned = make([]hashkey.Key, 0, len(items))
		for _, it := range items {
			width := it.prop.Format.Width()
			pos, _ := fresh.AllocateField(width)
			raw, _ := rawBitsFor(it.value, it.prop.Format)
			fresh.SetField(pos, width, raw)
			fresh.Owned = append(fresh.Owned, it.key)
			newProps[it.key] = StatusProperty{
				ChunkKey:   chunkKey,
				Position:   pos,
				Format:     it.prop.Format,
				Transition: it.prop.Transition,
			}
		}
		newChunks[chunkKey] = fresh
	}

	r.chunks = newChunks
	r.props = newProps
}

func valueFromRaw(raw uint64, format Format) statusvalue.Value {
	switch format.Kind() {
	case statusvalue.Bool:
		return statusvalue.NewBool(raw != 0)
	case statusvalue.Unsigned:
		return statusvalue.NewUnsigned(raw)
	case statusvalue.Signed:
		width := format.Width()
		signBit := uint64(1) << (width - 1)
		if raw&signBit != 0 {
			raw |= ^block.Mask(width)
		}
		return statusvalue.NewSigned(int64(raw))
	case statusvalue.Float:
		return statusvalue.NewFloat(math.Float64frombits(raw))
	default:
		return statusvalue.NewEmpty()
	}
}

func rawBitsFor(v statusvalue.Value, format Format) (uint64, bool) {
	coerced, ok := statusvalue.AssignTo(v, format.Kind())
	if !ok {
		return 0, false
	}
	switch format.Kind() {
	case statusvalue.Empty:
		return 0, true
	case statusvalue.Bool:
		b, _ := coerced.AsBool()
		if b {
			return 1, true
		}
		return 0, true
	case statusvalue.Unsigned:
		u, _ := coerced.AsUnsigned()
		if u > block.Mask(format.Width()) {
			return 0, false
		}
		return u, true
	case statusvalue.Signed:
		s, _ := coerced.AsSigned()
		width := format.Width()
		lo := -(int64(1) << (width - 1))
		hi := (int64(1) << (width - 1)) - 1
		if s < lo || s > hi {
			return 0, false
		}
		return uint64(s) & block.Mask(width), true
	case statusvalue.Float:
		f, _ := coerced.AsFloat()
		return math.Float64bits(f), true
	default:
		return 0, false
	}
}
