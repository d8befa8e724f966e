// Package chunkio implements serialize_chunk/deserialize_chunk: spec.md
// leaves the on-disk byte layout unspecified, so this packs a
// StatusChunk's blocks, free list, and owned-status properties using
// funbit's Erlang-style bitstring builder/matcher, one fixed-width
// integer segment per field. internal/sqlitestore stores the resulting
// blobs; nothing else in the engine depends on this exact layout.
package chunkio

import (
	"fmt"

	"github.com/funvibe/funbit/pkg/funbit"

	"github.com/ruleshard/ruleengine/internal/hashkey"
	"github.com/ruleshard/ruleengine/internal/reservoir"
)

// SerializeChunk packs chunkKey's StatusChunk (and the Format/Position of
// every status it owns) into a byte blob.
func SerializeChunk(res *reservoir.Reservoir, chunkKey hashkey.Key) ([]byte, error) {
	chunk, ok := res.Chunk(chunkKey)
	if !ok {
		return nil, fmt.Errorf("chunkio: unknown chunk %d", chunkKey)
	}
	free := chunk.FreeRegions()
	owned := chunk.Owned

	b := funbit.NewBuilder()
	funbit.AddInteger(b, uint64(len(chunk.Blocks)), funbit.WithSize(32))
	funbit.AddInteger(b, uint64(len(free)), funbit.WithSize(32))
	funbit.AddInteger(b, uint64(len(owned)), funbit.WithSize(32))

	for _, block := range chunk.Blocks {
		funbit.AddInteger(b, block, funbit.WithSize(64))
	}
	for _, f := range free {
		funbit.AddInteger(b, uint64(f.Width), funbit.WithSize(8))
		funbit.AddInteger(b, uint64(f.Position), funbit.WithSize(32))
	}
	for _, statusKey := range owned {
		prop, ok := res.StatusProperty(statusKey)
		if !ok {
			return nil, fmt.Errorf("chunkio: status %d owned by chunk %d has no property", statusKey, chunkKey)
		}
		funbit.AddInteger(b, uint64(statusKey), funbit.WithSize(64))
		funbit.AddInteger(b, uint64(uint16(prop.Format)), funbit.WithSize(16))
		funbit.AddInteger(b, uint64(prop.Position), funbit.WithSize(32))
	}

	bits, err := funbit.Build(b)
	if err != nil {
		return nil, fmt.Errorf("chunkio: build chunk %d: %w", chunkKey, err)
	}
	return bits.ToBytes(), nil
}

// Decoded holds everything DeserializeChunk recovers from a blob, ready
// to hand to reservoir.PutChunk alongside the chunk key the caller
// already knows from context (the blob itself doesn't carry it).
type Decoded struct {
	Chunk     *reservoir.StatusChunk
	Formats   []reservoir.Format
	Positions []uint
}

// DeserializeChunk unpacks a blob produced by SerializeChunk.
func DeserializeChunk(data []byte) (Decoded, error) {
	header := funbit.NewMatcher()
	var numBlocks, numFree, numOwned uint64
	var rest []byte
	funbit.Integer(header, &numBlocks, funbit.WithSize(32))
	funbit.Integer(header, &numFree, funbit.WithSize(32))
	funbit.Integer(header, &numOwned, funbit.WithSize(32))
	funbit.RestBinary(header, &rest)
	if _, err := funbit.Match(header, funbit.NewBitStringFromBytes(data)); err != nil {
		return Decoded{}, fmt.Errorf("chunkio: match header: %w", err)
	}

	blocks := make([]uint64, numBlocks)
	freeWidths := make([]uint64, numFree)
	freePositions := make([]uint64, numFree)
	ownedKeys := make([]uint64, numOwned)
	ownedFormats := make([]uint64, numOwned)
	ownedPositions := make([]uint64, numOwned)

	body := funbit.NewMatcher()
	for i := range blocks {
		funbit.Integer(body, &blocks[i], funbit.WithSize(64))
	}
	for i := range freeWidths {
		funbit.Integer(body, &freeWidths[i], funbit.WithSize(8))
		funbit.Integer(body, &freePositions[i], funbit.WithSize(32))
	}
	for i := range ownedKeys {
		funbit.Integer(body, &ownedKeys[i], funbit.WithSize(64))
		funbit.Integer(body, &ownedFormats[i], funbit.WithSize(16))
		funbit.Integer(body, &ownedPositions[i], funbit.WithSize(32))
	}
	if numBlocks+numFree+numOwned > 0 {
		if _, err := funbit.Match(body, funbit.NewBitStringFromBytes(rest)); err != nil {
			return Decoded{}, fmt.Errorf("chunkio: match body: %w", err)
		}
	}

	free := make([]reservoir.FreeRegion, numFree)
	for i := range free {
		free[i] = reservoir.FreeRegion{Width: uint(freeWidths[i]), Position: uint(freePositions[i])}
	}
	owned := make([]hashkey.Key, numOwned)
	formats := make([]reservoir.Format, numOwned)
	positions := make([]uint, numOwned)
	for i := range owned {
		owned[i] = hashkey.Key(ownedKeys[i])
		formats[i] = reservoir.Format(int16(uint16(ownedFormats[i])))
		positions[i] = uint(ownedPositions[i])
	}

	chunk := reservoir.RestoreStatusChunk(blocks, owned, free)
	return Decoded{Chunk: chunk, Formats: formats, Positions: positions}, nil
}
