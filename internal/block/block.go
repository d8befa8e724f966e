// Package block implements the fixed-width packed-field primitives a
// StatusChunk's storage is built from: reading and writing a sub-range of
// bits inside a slice of config.BlockBits-wide unsigned blocks, with the
// constraint that no field may straddle a block boundary.
package block

import "github.com/ruleshard/ruleengine/internal/config"

// Bits is the width, in bits, of one storage block.
const Bits = config.BlockBits

// Mask returns a bitmask with the low width bits set. width must be in
// [1, Bits].
func Mask(width uint) uint64 {
	if width >= Bits {
		return ^uint64(0)
	}
	return (uint64(1) << width) - 1
}

// BlocksNeeded returns the number of whole blocks needed to hold width
// bits, rounding up.
func BlocksNeeded(width uint) int {
	return int((width + Bits - 1) / Bits)
}

// Fits reports whether a field of the given width placed at position fits
// entirely within one block, i.e. does not straddle a block boundary.
func Fits(position, width uint) bool {
	return width <= Bits && position%Bits+width <= Bits
}

// Get reads width bits starting at position out of blocks. The caller must
// ensure Fits(position, width) and that position+width falls within
// len(blocks)*Bits.
func Get(blocks []uint64, position, width uint) uint64 {
	blockIdx := position / Bits
	localPos := position % Bits
	return (blocks[blockIdx] >> localPos) & Mask(width)
}

// Set writes width bits of value into blocks at position, masking value to
// width first. It reports whether the stored bits actually changed.
// Returns ok=false if value does not fit in width bits.
func Set(blocks []uint64, position, width uint, value uint64) (changed bool, ok bool) {
	if width < Bits && value > Mask(width) {
		return false, false
	}
	blockIdx := position / Bits
	localPos := position % Bits
	mask := Mask(width) << localPos
	old := blocks[blockIdx]
	next := (old &^ mask) | ((value << localPos) & mask)
	changed = next != old
	blocks[blockIdx] = next
	return changed, true
}
