package reservoir

import (
	"github.com/ruleshard/ruleengine/internal/config"
	"github.com/ruleshard/ruleengine/internal/statusvalue"
)

// Format is the packed StatusFormat sentinel: 0 is Empty, 1 is Bool (1
// bit), config.FormatFloat means Float (BlockBits wide), positive N in
// [2, BlockBits] is Unsigned N-bit, negative -N in [-BlockBits, -2] is
// Signed N-bit. A single integer encodes both kind and bit width for
// packed storage, matching spec's StatusFormat.
type Format int16

// Kind returns the statusvalue.Kind this format encodes.
func (f Format) Kind() statusvalue.Kind {
	switch {
	case f == config.FormatEmpty:
		return statusvalue.Empty
	case f == config.FormatBool:
		return statusvalue.Bool
	case f == config.FormatFloat:
		return statusvalue.Float
	case f > 0:
		return statusvalue.Unsigned
	default:
		return statusvalue.Signed
	}
}

// Width returns the number of bits this format occupies in a StatusChunk.
func (f Format) Width() uint {
	switch {
	case f == config.FormatEmpty:
		return 0
	case f == config.FormatBool:
		return 1
	case f == config.FormatFloat:
		return config.BlockBits
	case f > 0:
		return uint(f)
	default:
		return uint(-f)
	}
}

// FormatFor derives a Format from a value's kind and a requested bit
// width. width is ignored for Float (always BlockBits); for Bool it must
// be 0 or 1 (stored in 1 bit either way); for Empty it must be 0; it must
// be in [2, BlockBits] for Unsigned/Signed. Reports false on any other
// width.
func FormatFor(kind statusvalue.Kind, width uint) (Format, bool) {
	switch kind {
	case statusvalue.Empty:
		if width != 0 {
			return 0, false
		}
		return Format(config.FormatEmpty), true
	case statusvalue.Bool:
		if width != 0 && width != 1 {
			return 0, false
		}
		return Format(config.FormatBool), true
	case statusvalue.Float:
		return Format(config.FormatFloat), true
	case statusvalue.Unsigned:
		if width < 2 || width > config.BlockBits {
			return 0, false
		}
		return Format(width), true
	case statusvalue.Signed:
		if width < 2 || width > config.BlockBits {
			return 0, false
		}
		return Format(-int16(width)), true
	default:
		return 0, false
	}
}
