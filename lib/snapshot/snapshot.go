// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/zeebo/blake3"

	"github.com/microsoft/wopi-validator-core-sub000/lib/chunked"
	"github.com/microsoft/wopi-validator-core-sub000/lib/codec"
	"github.com/microsoft/wopi-validator-core-sub000/lib/fingerprint"
)

// File layout:
//
//	[8]  magic "WCSNAP\x01\x00"
//	[1]  compression tag
//	[32] keyed BLAKE3 digest of the uncompressed body
//	[8]  uncompressed body size, little-endian
//	[..] body, compressed per the tag
//
// The body is CBOR (Core Deterministic Encoding) of snapshotBody.
const (
	magic      = "WCSNAP\x01\x00"
	headerSize = len(magic) + 1 + 32 + 8

	// MaxBodySize bounds the uncompressed body a snapshot may
	// declare, so a corrupt header cannot force a huge allocation.
	MaxBodySize = 2 << 30

	bodyVersion = 1
)

// digestKey separates snapshot digests from any other BLAKE3 use.
var digestKey = [32]byte{
	'w', 'o', 'p', 'i', 'c', 'h', 'u', 'n', 'k', '.', 's', 'n', 'a', 'p', 's', 'h',
	'o', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Snapshot is a caller-owned record of the content a host is known
// to hold: each stream's ordered chunk ids and the bytes of every
// chunk. It is the "last known" side of an upload delta and the
// "already known" side of a download, carried between runs in a file.
type Snapshot struct {
	streams map[string]*chunked.ChunkedStream
	chunks  chunked.ChunkMap
}

// New returns an empty snapshot.
func New() *Snapshot {
	return &Snapshot{
		streams: make(map[string]*chunked.ChunkedStream),
		chunks:  make(chunked.ChunkMap),
	}
}

// Add records stream under streamID, replacing any previous stream of
// that id. Its chunks join the snapshot's chunk set.
func (s *Snapshot) Add(streamID string, stream *chunked.ChunkedStream) {
	for _, chunk := range stream.Chunks {
		s.chunks.Add(chunk)
	}
	s.streams[streamID] = &chunked.ChunkedStream{
		Scheme: stream.Scheme,
		IDs:    slices.Clone(stream.IDs),
		Chunks: stream.Chunks,
	}
}

// Stream returns the recorded stream.
func (s *Snapshot) Stream(streamID string) (*chunked.ChunkedStream, bool) {
	stream, exists := s.streams[streamID]
	return stream, exists
}

// StreamIDs returns the recorded stream ids, sorted.
func (s *Snapshot) StreamIDs() []string {
	ids := make([]string, 0, len(s.streams))
	for id := range s.streams {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Chunks returns every chunk in the snapshot. The map is shared; do
// not modify it.
func (s *Snapshot) Chunks() chunked.ChunkMap { return s.chunks }

type snapshotBody struct {
	Version int            `cbor:"version"`
	Streams []streamRecord `cbor:"streams"`
	Chunks  []chunkRecord  `cbor:"chunks"`
}

type streamRecord struct {
	StreamID string                    `cbor:"stream_id"`
	Scheme   chunked.Scheme            `cbor:"scheme"`
	ChunkIDs []fingerprint.Fingerprint `cbor:"chunk_ids"`
}

type chunkRecord struct {
	ID   fingerprint.Fingerprint `cbor:"id"`
	Data []byte                  `cbor:"data"`
}

// Encode writes s to w. A body that does not shrink under the
// requested compression is stored uncompressed, with the header tag
// saying so.
func Encode(w io.Writer, s *Snapshot, compression CompressionTag) error {
	body := snapshotBody{Version: bodyVersion}
	for _, streamID := range s.StreamIDs() {
		stream := s.streams[streamID]
		body.Streams = append(body.Streams, streamRecord{
			StreamID: streamID,
			Scheme:   stream.Scheme,
			ChunkIDs: stream.IDs,
		})
	}
	for _, id := range s.chunks.IDs() {
		body.Chunks = append(body.Chunks, chunkRecord{ID: id, Data: s.chunks[id].Bytes()})
	}

	encoded, err := codec.Marshal(&body)
	if err != nil {
		return fmt.Errorf("encoding snapshot body: %w", err)
	}

	compressed, err := compress(encoded, compression)
	if errors.Is(err, errIncompressible) {
		compressed, compression = encoded, CompressionNone
	} else if err != nil {
		return err
	}

	header := make([]byte, 0, headerSize)
	header = append(header, magic...)
	header = append(header, byte(compression))
	digest := bodyDigest(encoded)
	header = append(header, digest[:]...)
	header = binary.LittleEndian.AppendUint64(header, uint64(len(encoded)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("writing snapshot header: %w", err)
	}
	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("writing snapshot body: %w", err)
	}
	return nil
}

// Decode reads a snapshot written by Encode. It rejects a bad magic,
// an unknown compression tag, and a digest mismatch; chunk bytes that
// do not fingerprint to their recorded id are ChunkIdentityMismatch,
// and a stream naming a chunk the snapshot lacks is
// UnknownChunkReference.
func Decode(r io.Reader) (*Snapshot, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("reading snapshot header: %w", err)
	}
	if string(header[:len(magic)]) != magic {
		return nil, errors.New("not a snapshot file (bad magic)")
	}
	compression := CompressionTag(header[len(magic)])
	var digest [32]byte
	copy(digest[:], header[len(magic)+1:len(magic)+33])
	size := binary.LittleEndian.Uint64(header[len(magic)+33:])
	if size > MaxBodySize {
		return nil, fmt.Errorf("snapshot body size %d exceeds maximum %d", size, MaxBodySize)
	}

	compressed, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot body: %w", err)
	}
	encoded, err := decompress(compressed, compression, int(size))
	if err != nil {
		return nil, fmt.Errorf("decompressing snapshot body: %w", err)
	}
	if bodyDigest(encoded) != digest {
		return nil, errors.New("snapshot digest mismatch")
	}

	var body snapshotBody
	if err := codec.Unmarshal(encoded, &body); err != nil {
		return nil, fmt.Errorf("decoding snapshot body: %w", err)
	}
	if body.Version != bodyVersion {
		return nil, fmt.Errorf("snapshot body version %d is not supported", body.Version)
	}

	snapshot := New()
	for _, record := range body.Chunks {
		chunk, err := chunked.VerifiedChunk(record.ID, record.Data)
		if err != nil {
			return nil, fmt.Errorf("snapshot chunk: %w", err)
		}
		snapshot.chunks.Add(chunk)
	}
	for _, record := range body.Streams {
		if err := record.Scheme.Validate(); err != nil {
			return nil, fmt.Errorf("snapshot stream %q: %w", record.StreamID, err)
		}
		stream := &chunked.ChunkedStream{
			Scheme: record.Scheme,
			IDs:    record.ChunkIDs,
			Chunks: make(chunked.ChunkMap),
		}
		for position, id := range record.ChunkIDs {
			chunk, exists := snapshot.chunks[id]
			if !exists {
				return nil, fmt.Errorf("snapshot stream %q: %w", record.StreamID, &chunked.Error{
					Kind: chunked.KindUnknownChunkReference,
					Err:  fmt.Errorf("chunk %d (%s) is not in the snapshot", position, id),
				})
			}
			stream.Chunks.Add(chunk)
		}
		snapshot.streams[record.StreamID] = stream
	}
	return snapshot, nil
}

func bodyDigest(body []byte) [32]byte {
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		panic("snapshot: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(body)
	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// Save writes s to path atomically: the snapshot is written to a
// temporary file in the same directory, synced, and renamed into
// place.
func Save(path string, s *Snapshot, compression CompressionTag) error {
	var buffer bytes.Buffer
	if err := Encode(&buffer, s, compression); err != nil {
		return err
	}

	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary snapshot file: %w", err)
	}
	temporaryPath := file.Name()

	if _, err := file.Write(buffer.Bytes()); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary snapshot file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary snapshot file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary snapshot file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming snapshot into place: %w", err)
	}
	return nil
}

// Load reads the snapshot at path.
func Load(path string) (*Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer file.Close()

	snapshot, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %s: %w", path, err)
	}
	return snapshot, nil
}
