package reservoir

import "github.com/ruleshard/ruleengine/internal/hashkey"

// StatusProperty locates and describes one status: which chunk backs it,
// where its field sits, what it's shaped like, and whether a write
// actually changed its bits since the last clear_transitions.
type StatusProperty struct {
	ChunkKey   hashkey.Key
	Position   uint
	Format     Format
	Transition bool
}
