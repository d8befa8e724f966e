// Package hashkey produces the opaque integer keys used throughout the
// engine to name chunks, statuses, and expressions. The engine itself does
// not specify a canonical name grammar; it only requires that the hash of
// the empty name be reserved as "no such key" and that collisions be
// treated as a programmer error.
package hashkey

import (
	"hash/fnv"

	"github.com/google/uuid"
)

// Key is the opaque integer identifying a chunk, status, or expression.
type Key uint64

// NoKey is the reserved "no such key" value — the hash of the empty name.
const NoKey Key = 0

// Hasher turns a name into a Key.
type Hasher interface {
	Hash(name string) Key
}

// FNV1a is the default Hasher: 64-bit FNV-1a over the name's bytes. Mirrors
// the engine's own string-interning helper, which hashes identifiers the
// same way for its flyweight table.
type FNV1a struct{}

func (FNV1a) Hash(name string) Key {
	if name == "" {
		return NoKey
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	k := Key(h.Sum64())
	if k == NoKey {
		// Vanishingly unlikely, but NoKey is reserved; perturb deterministically.
		k = Key(1)
	}
	return k
}

// DefaultHasher is the Hasher used when a Driver is constructed without an
// explicit one.
var DefaultHasher Hasher = FNV1a{}

// Random mints a non-zero Key for anonymous chunks, expressions, or
// statuses that tooling creates without a stable name (e.g. scratch state
// set up by a test or a REPL session). It is never derived from a name and
// therefore never collides with FNV1a's output space in practice.
func Random() Key {
	for {
		id := uuid.New()
		b := id[:]
		var v uint64
		for i := 0; i < 8; i++ {
			v = v<<8 | uint64(b[i])
		}
		if v != uint64(NoKey) {
			return Key(v)
		}
	}
}
