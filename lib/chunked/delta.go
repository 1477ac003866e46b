// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chunked

import (
	"github.com/microsoft/wopi-validator-core-sub000/lib/fingerprint"
)

// Delta is the result of comparing new content against what the
// receiver is known to hold.
type Delta struct {
	// Signatures is the complete ordered composition of the new
	// content, not only the delta, so the receiver can rebuild the
	// whole stream from partial bytes.
	Signatures []ChunkSignature

	// Chunks holds the chunks the receiver lacks.
	Chunks ChunkMap

	// Order lists the ids of Chunks in first-appearance order, the
	// order their frames are written in.
	Order []fingerprint.Fingerprint
}

// ComputeDelta returns the chunks of newStream that appear neither in
// lastKnown nor in staged. staged holds chunks already scheduled for
// the same body by other streams; it is read, not modified. lastKnown
// and staged may be nil.
func ComputeDelta(newStream, lastKnown *ChunkedStream, staged ChunkMap) Delta {
	delta := Delta{
		Signatures: newStream.Signatures(),
		Chunks:     make(ChunkMap),
	}
	for _, id := range newStream.IDs {
		if lastKnown != nil && lastKnown.Chunks.Has(id) {
			continue
		}
		if staged.Has(id) {
			continue
		}
		if delta.Chunks.Add(newStream.Chunks[id]) {
			delta.Order = append(delta.Order, id)
		}
	}
	return delta
}

// Bytes returns the summed length of the delta chunks.
func (d Delta) Bytes() uint64 {
	return d.Chunks.TotalBytes()
}
