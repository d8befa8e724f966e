package reservoir

import (
	"github.com/ruleshard/ruleengine/internal/block"
	"github.com/ruleshard/ruleengine/internal/container"
	"github.com/ruleshard/ruleengine/internal/hashkey"
)

// freeField is one entry in a StatusChunk's free list: a contiguous,
// unallocated bit range described by its width and position.
type freeField struct {
	Width    uint
	Position uint
}

func lessFreeField(a, b freeField) bool {
	if a.Width != b.Width {
		return a.Width < b.Width
	}
	return a.Position < b.Position
}

// StatusChunk owns a pool of fixed-width blocks holding packed field data,
// plus a sorted free list of unallocated sub-block regions. Grounded on
// the teacher's vm.Chunk (growable typed slices with capacity hints) for
// shape, and on the original engine's state_chunk allocator for the
// best-fit/tail-split algorithm.
type StatusChunk struct {
	Blocks []uint64
	free   *container.SortedSlice[freeField]
	// Owned tracks which status keys this chunk backs, so Reservoir can
	// remove a chunk's statuses in one pass instead of scanning every
	// status in the reservoir.
	Owned []hashkey.Key
}

// NewStatusChunk creates an empty chunk.
func NewStatusChunk() *StatusChunk {
	return &StatusChunk{
		free: container.NewSortedSlice(lessFreeField),
	}
}

// ByteSize returns the chunk's packed storage footprint in bytes.
func (c *StatusChunk) ByteSize() int {
	return len(c.Blocks) * 8
}

// AllocateField reserves width bits, returning their position. It chooses
// the smallest free region with width >= requested (best-fit by width,
// earliest position on ties), splitting off any remainder back into the
// free list. If no free region fits, it appends enough whole blocks to
// hold width bits and returns any block tail smaller than one block to the
// free list. Fails only if width is 0 or exceeds block.Bits; the returned
// position is not checked against any position-encoding limit.
func (c *StatusChunk) AllocateField(width uint) (uint, bool) {
	if width == 0 || width > block.Bits {
		return 0, false
	}
	if idx := c.free.FindFirst(func(f freeField) bool { return f.Width >= width }); idx >= 0 {
		region := c.free.At(idx)
		c.free.RemoveAt(idx)
		if remainder := region.Width - width; remainder > 0 {
			c.free.Insert(freeField{Width: remainder, Position: region.Position + width})
		}
		return region.Position, true
	}

	needed := block.BlocksNeeded(width)
	position := uint(len(c.Blocks)) * block.Bits
	c.Blocks = append(c.Blocks, make([]uint64, needed)...)
	if tail := uint(needed)*block.Bits - width; tail > 0 {
		c.free.Insert(freeField{Width: tail, Position: position + width})
	}
	return position, true
}

// GetField reads width bits starting at position. Callers must only pass
// positions/widths previously returned by AllocateField for this chunk.
func (c *StatusChunk) GetField(position, width uint) uint64 {
	return block.Get(c.Blocks, position, width)
}

// SetField writes width bits of value at position, reporting whether the
// stored bits actually changed. ok is false if value doesn't fit in width
// bits.
func (c *StatusChunk) SetField(position, width uint, value uint64) (changed, ok bool) {
	return block.Set(c.Blocks, position, width, value)
}

// resetFree discards the current free list, leaving it empty.
func (c *StatusChunk) resetFree() {
	c.free = container.NewSortedSlice(lessFreeField)
}

// FreeRegion is the exported shape of a chunk's free-field entry, used by
// internal/chunkio to serialize a chunk's allocator state without this
// package exposing its internal SortedSlice type.
type FreeRegion struct {
	Width    uint
	Position uint
}

// FreeRegions returns the chunk's free list as a plain slice, in the
// allocator's sorted order.
func (c *StatusChunk) FreeRegions() []FreeRegion {
	items := c.free.Items()
	out := make([]FreeRegion, len(items))
	for i, f := range items {
		out[i] = FreeRegion{Width: f.Width, Position: f.Position}
	}
	return out
}

// RestoreStatusChunk rebuilds a StatusChunk from previously serialized
// parts, exactly as internal/chunkio's deserializer produces them.
// Callers must pass data obtained from a real chunk's Blocks/Owned/
// FreeRegions — this does not re-validate that free regions don't
// overlap allocated fields.
func RestoreStatusChunk(blocks []uint64, owned []hashkey.Key, free []FreeRegion) *StatusChunk {
	c := NewStatusChunk()
	c.Blocks = blocks
	c.Owned = owned
	for _, f := range free {
		c.free.Insert(freeField{Width: f.Width, Position: f.Position})
	}
	return c
}
