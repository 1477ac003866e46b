// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chunked

import (
	"bytes"
	"io"
	"slices"

	"github.com/microsoft/wopi-validator-core-sub000/lib/fingerprint"
)

// Chunk is an immutable, content-addressed byte range. Its id is the
// fingerprint of its bytes.
type Chunk struct {
	id   fingerprint.Fingerprint
	data []byte
}

// NewChunk fingerprints data and wraps it as a Chunk. The chunk takes
// ownership of data: callers must not modify it afterward.
func NewChunk(data []byte) Chunk {
	return Chunk{id: fingerprint.Sum(data), data: data}
}

// VerifiedChunk wraps data that arrived under a claimed id, rejecting
// it with ChunkIdentityMismatch when the bytes fingerprint to
// something else.
func VerifiedChunk(id fingerprint.Fingerprint, data []byte) (Chunk, error) {
	chunk := NewChunk(data)
	if chunk.id != id {
		return Chunk{}, errorf(KindChunkIdentityMismatch,
			"chunk sent as %s fingerprints to %s (%d bytes)", id, chunk.id, len(data))
	}
	return chunk, nil
}

// ID returns the chunk's fingerprint.
func (c Chunk) ID() fingerprint.Fingerprint { return c.id }

// Len returns the chunk length in bytes.
func (c Chunk) Len() int { return len(c.data) }

// Bytes returns a copy of the chunk content.
func (c Chunk) Bytes() []byte { return bytes.Clone(c.data) }

// Reader returns a fresh reader over the chunk content. Each call
// starts at the beginning.
func (c Chunk) Reader() *bytes.Reader { return bytes.NewReader(c.data) }

// WriteTo writes the chunk content to w.
func (c Chunk) WriteTo(w io.Writer) (int64, error) {
	written, err := w.Write(c.data)
	return int64(written), err
}

// Signature returns the chunk's identity without its bytes.
func (c Chunk) Signature() ChunkSignature {
	return ChunkSignature{ChunkID: c.id, Length: uint64(len(c.data))}
}

// ChunkMap maps chunk ids to chunks. It serves both as a delta set
// (chunks the receiver lacks) and as the combined lookup used during
// reconstruction.
type ChunkMap map[fingerprint.Fingerprint]Chunk

// Add inserts chunk, reporting whether it was absent. Identical
// chunks collapse to one entry.
func (m ChunkMap) Add(chunk Chunk) bool {
	if _, exists := m[chunk.id]; exists {
		return false
	}
	m[chunk.id] = chunk
	return true
}

// Has reports whether id is present.
func (m ChunkMap) Has(id fingerprint.Fingerprint) bool {
	_, exists := m[id]
	return exists
}

// Union returns a new map holding the chunks of every argument.
// Nil maps are allowed.
func Union(maps ...ChunkMap) ChunkMap {
	size := 0
	for _, chunks := range maps {
		size += len(chunks)
	}
	union := make(ChunkMap, size)
	for _, chunks := range maps {
		for id, chunk := range chunks {
			union[id] = chunk
		}
	}
	return union
}

// IDs returns the map's ids in byte order, for deterministic output.
func (m ChunkMap) IDs() []fingerprint.Fingerprint {
	ids := make([]fingerprint.Fingerprint, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b fingerprint.Fingerprint) int {
		return bytes.Compare(a[:], b[:])
	})
	return ids
}

// TotalBytes returns the summed length of all chunks in the map.
func (m ChunkMap) TotalBytes() uint64 {
	var total uint64
	for _, chunk := range m {
		total += uint64(len(chunk.data))
	}
	return total
}

// ChunkedStream is the result of chunking one content stream: the
// ordered chunk ids that compose it and the distinct chunks by id.
type ChunkedStream struct {
	Scheme Scheme
	IDs    []fingerprint.Fingerprint
	Chunks ChunkMap
}

func newChunkedStream(scheme Scheme) *ChunkedStream {
	return &ChunkedStream{Scheme: scheme, Chunks: make(ChunkMap)}
}

// append adds chunk to the end of the stream composition.
func (s *ChunkedStream) append(chunk Chunk) {
	s.IDs = append(s.IDs, chunk.id)
	s.Chunks.Add(chunk)
}

// Signatures returns the stream's full ordered composition.
func (s *ChunkedStream) Signatures() []ChunkSignature {
	signatures := make([]ChunkSignature, len(s.IDs))
	for i, id := range s.IDs {
		signatures[i] = s.Chunks[id].Signature()
	}
	return signatures
}

// Size returns the byte length of the stream the chunks compose.
func (s *ChunkedStream) Size() uint64 {
	var size uint64
	for _, id := range s.IDs {
		size += uint64(s.Chunks[id].Len())
	}
	return size
}

// StreamSignature returns the stream's wire signature under id.
func (s *ChunkedStream) StreamSignature(streamID string) StreamSignature {
	return StreamSignature{
		ChunkingScheme:  s.Scheme,
		StreamID:        streamID,
		ChunkSignatures: s.Signatures(),
	}
}
