// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chunked

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/microsoft/wopi-validator-core-sub000/lib/fingerprint"
)

// memoryResources is a ResourceAccess over in-memory byte slices.
type memoryResources struct {
	content map[string][]byte
	indexes map[string]string
}

func (m *memoryResources) OpenResource(_ context.Context, resourceID string) (io.ReadCloser, error) {
	data, exists := m.content[resourceID]
	if !exists {
		return nil, fmt.Errorf("resource %q not found", resourceID)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryResources) OpenOffsetIndex(_ context.Context, resourceID string) (io.ReadCloser, error) {
	index, exists := m.indexes[resourceID]
	if !exists {
		return nil, fmt.Errorf("offset index %q not found", resourceID)
	}
	return io.NopCloser(strings.NewReader(index)), nil
}

func TestFullFileHelloWorld(t *testing.T) {
	stream, err := FullFile{}.ChunkStream(strings.NewReader("Hello World"))
	if err != nil {
		t.Fatalf("ChunkStream: %v", err)
	}
	if len(stream.IDs) != 1 || len(stream.Chunks) != 1 {
		t.Fatalf("got %d ids and %d chunks, want 1 and 1", len(stream.IDs), len(stream.Chunks))
	}
	if got := stream.IDs[0].String(); got != "ozcHPcAnmT+cFGap1aqcqQ==" {
		t.Errorf("chunk id = %s, want ozcHPcAnmT+cFGap1aqcqQ==", got)
	}
	if stream.Scheme != SchemeFullFile {
		t.Errorf("scheme = %q, want %q", stream.Scheme, SchemeFullFile)
	}

	content, err := ReconstructBytes(stream.IDs, stream.Chunks)
	if err != nil {
		t.Fatalf("ReconstructBytes: %v", err)
	}
	if string(content) != "Hello World" {
		t.Errorf("reconstructed %q, want %q", content, "Hello World")
	}
	if stream.Size() != 11 {
		t.Errorf("Size = %d, want 11", stream.Size())
	}
}

func TestFullFileEmpty(t *testing.T) {
	stream, err := FullFile{}.ChunkStream(bytes.NewReader(nil))
	if err != nil {
		t.Fatalf("ChunkStream: %v", err)
	}
	if len(stream.IDs) != 0 || len(stream.Chunks) != 0 {
		t.Fatalf("got %d ids and %d chunks, want none", len(stream.IDs), len(stream.Chunks))
	}

	content, err := ReconstructBytes(nil, ChunkMap{})
	if err != nil {
		t.Fatalf("ReconstructBytes: %v", err)
	}
	if content == nil || len(content) != 0 {
		t.Errorf("reconstructed %v, want empty non-nil slice", content)
	}
}

func TestFullFileRejectsNilReader(t *testing.T) {
	if _, err := (FullFile{}).ChunkStream(nil); err == nil {
		t.Fatal("ChunkStream(nil) succeeded")
	}
}

func TestChunkImmutability(t *testing.T) {
	chunk := NewChunk([]byte("AAAA"))
	copied := chunk.Bytes()
	copied[0] = 'Z'

	if got := string(chunk.Bytes()); got != "AAAA" {
		t.Errorf("chunk content changed to %q through Bytes()", got)
	}

	first, _ := io.ReadAll(chunk.Reader())
	second, _ := io.ReadAll(chunk.Reader())
	if string(first) != "AAAA" || string(second) != "AAAA" {
		t.Errorf("Reader not re-readable: %q then %q", first, second)
	}
}

func TestVerifiedChunk(t *testing.T) {
	id := fingerprint.Sum([]byte("AAAA"))
	if _, err := VerifiedChunk(id, []byte("AAAA")); err != nil {
		t.Fatalf("VerifiedChunk with matching id: %v", err)
	}
	_, err := VerifiedChunk(id, []byte("AAAB"))
	if !errors.Is(err, ErrChunkIdentityMismatch) {
		t.Fatalf("got %v, want ChunkIdentityMismatch", err)
	}
}

func TestParseOffsetIndex(t *testing.T) {
	offsets, err := ParseOffsetIndex(strings.NewReader("# entries\n0\n10, 25\n  40 # tail\n"))
	if err != nil {
		t.Fatalf("ParseOffsetIndex: %v", err)
	}
	want := []uint64{0, 10, 25, 40}
	if fmt.Sprint(offsets) != fmt.Sprint(want) {
		t.Errorf("offsets = %v, want %v", offsets, want)
	}
}

func TestParseOffsetIndexRejects(t *testing.T) {
	tests := []struct {
		name  string
		index string
	}{
		{"empty", ""},
		{"only comments", "# nothing here\n"},
		{"not a number", "0\nten\n"},
		{"negative", "0, -5"},
		{"does not start at zero", "5, 10"},
		{"repeated offset", "0, 10, 10"},
		{"decreasing", "0, 20, 10"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseOffsetIndex(strings.NewReader(test.index))
			if !errors.Is(err, ErrInvalidOffsetIndex) {
				t.Fatalf("got %v, want InvalidOffsetIndex", err)
			}
		})
	}
}

func TestFormatOffsetIndexRoundTrip(t *testing.T) {
	var buffer bytes.Buffer
	if err := FormatOffsetIndex(&buffer, []uint64{0, 30, 4096}); err != nil {
		t.Fatalf("FormatOffsetIndex: %v", err)
	}
	offsets, err := ParseOffsetIndex(&buffer)
	if err != nil {
		t.Fatalf("ParseOffsetIndex: %v", err)
	}
	if fmt.Sprint(offsets) != "[0 30 4096]" {
		t.Errorf("round trip = %v", offsets)
	}
}

func TestChunkByOffsets(t *testing.T) {
	data := []byte("aaaabbbbbbcccdd")
	stream, err := ChunkByOffsets(bytes.NewReader(data), []uint64{0, 4, 10, 13})
	if err != nil {
		t.Fatalf("ChunkByOffsets: %v", err)
	}

	var parts []string
	for _, id := range stream.IDs {
		parts = append(parts, string(stream.Chunks[id].Bytes()))
	}
	if got := strings.Join(parts, "|"); got != "aaaa|bbbbbb|ccc|dd" {
		t.Errorf("chunks = %s, want aaaa|bbbbbb|ccc|dd", got)
	}

	content, err := ReconstructBytes(stream.IDs, stream.Chunks)
	if err != nil {
		t.Fatalf("ReconstructBytes: %v", err)
	}
	if !bytes.Equal(content, data) {
		t.Errorf("reconstructed %q, want %q", content, data)
	}
}

func TestChunkByOffsetsCollapsesIdenticalChunks(t *testing.T) {
	stream, err := ChunkByOffsets(strings.NewReader("xyzxyzxyz"), []uint64{0, 3, 6})
	if err != nil {
		t.Fatalf("ChunkByOffsets: %v", err)
	}
	if len(stream.IDs) != 3 {
		t.Errorf("got %d ids, want 3", len(stream.IDs))
	}
	if len(stream.Chunks) != 1 {
		t.Errorf("got %d distinct chunks, want 1", len(stream.Chunks))
	}
	if len(stream.Signatures()) != 3 {
		t.Errorf("got %d signatures, want 3", len(stream.Signatures()))
	}
}

func TestChunkByOffsetsFinalEmptyRange(t *testing.T) {
	stream, err := ChunkByOffsets(strings.NewReader("abcdef"), []uint64{0, 3, 6})
	if err != nil {
		t.Fatalf("ChunkByOffsets: %v", err)
	}
	if len(stream.IDs) != 2 {
		t.Errorf("got %d chunks, want 2 (no chunk for the empty final range)", len(stream.IDs))
	}
}

func TestChunkByOffsetsStreamTooShort(t *testing.T) {
	_, err := ChunkByOffsets(strings.NewReader("abcdef"), []uint64{0, 4, 10})
	if !errors.Is(err, ErrInvalidOffsetIndex) {
		t.Fatalf("got %v, want InvalidOffsetIndex", err)
	}
}

func TestZipChunkerResource(t *testing.T) {
	resources := &memoryResources{
		content: map[string][]byte{"doc": []byte("headerbody-one-body-two")},
		indexes: map[string]string{"doc": "0,6,14"},
	}
	chunker := NewChunker(resources)

	stream, err := chunker.Chunk(context.Background(), ResourceContent("doc"))
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if stream.Scheme != SchemeZip {
		t.Errorf("scheme = %q, want %q", stream.Scheme, SchemeZip)
	}
	if len(stream.IDs) != 3 {
		t.Fatalf("got %d chunks, want 3", len(stream.IDs))
	}
	content, err := ReconstructBytes(stream.IDs, stream.Chunks)
	if err != nil {
		t.Fatalf("ReconstructBytes: %v", err)
	}
	if string(content) != "headerbody-one-body-two" {
		t.Errorf("reconstructed %q", content)
	}

	if _, err := chunker.Chunk(context.Background(), ResourceContent("missing")); err == nil {
		t.Error("chunking a missing resource succeeded")
	}
}

func TestChunkerDispatch(t *testing.T) {
	chunker := NewChunker(nil)
	ctx := context.Background()

	stream, err := chunker.Chunk(ctx, StreamContent(strings.NewReader("AAAA")))
	if err != nil {
		t.Fatalf("stream content: %v", err)
	}
	if stream.Scheme != SchemeFullFile || len(stream.IDs) != 1 {
		t.Errorf("stream content chunked as %q with %d chunks", stream.Scheme, len(stream.IDs))
	}

	absent, err := chunker.Chunk(ctx, Content{})
	if err != nil {
		t.Fatalf("absent content: %v", err)
	}
	if len(absent.IDs) != 0 {
		t.Errorf("absent content produced %d chunks", len(absent.IDs))
	}

	again, err := chunker.Chunk(ctx, ChunkedContent(stream))
	if err != nil {
		t.Fatalf("chunked content: %v", err)
	}
	if again != stream {
		t.Error("chunked content was not passed through")
	}

	if _, err := chunker.Chunk(ctx, ResourceContent("doc")); err == nil {
		t.Error("resource content without resource access succeeded")
	}
}

func TestParseScheme(t *testing.T) {
	for _, tag := range []string{"FullFile", "Zip"} {
		if _, err := ParseScheme(tag); err != nil {
			t.Errorf("ParseScheme(%q): %v", tag, err)
		}
	}
	if scheme, err := ParseScheme(""); err != nil || scheme != SchemeFullFile {
		t.Errorf("ParseScheme(\"\") = %q, %v, want FullFile", scheme, err)
	}
	for _, tag := range []string{"fullfile", "ZipChunking", "Rdc"} {
		_, err := ParseScheme(tag)
		if !errors.Is(err, ErrUnsupportedChunkingScheme) {
			t.Errorf("ParseScheme(%q) = %v, want UnsupportedChunkingScheme", tag, err)
		}
	}
}

func TestReconstructionIdempotence(t *testing.T) {
	data := make([]byte, 5000)
	for i := range data {
		data[i] = byte(i * 7)
	}

	fullFile, err := FullFile{}.ChunkStream(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("FullFile: %v", err)
	}
	zip, err := ChunkByOffsets(bytes.NewReader(data), []uint64{0, 1, 192, 193, 1000, 4096})
	if err != nil {
		t.Fatalf("ChunkByOffsets: %v", err)
	}

	for _, stream := range []*ChunkedStream{fullFile, zip} {
		content, err := ReconstructBytes(stream.IDs, stream.Chunks)
		if err != nil {
			t.Fatalf("%s: ReconstructBytes: %v", stream.Scheme, err)
		}
		if !bytes.Equal(content, data) {
			t.Errorf("%s: reconstruction differs from input", stream.Scheme)
		}
	}
}

func TestReconstructUnknownChunk(t *testing.T) {
	known := NewChunk([]byte("known"))
	chunks := ChunkMap{}
	chunks.Add(known)

	var buffer bytes.Buffer
	_, err := Reconstruct(&buffer, []fingerprint.Fingerprint{known.ID(), fingerprint.Sum([]byte("other"))}, chunks)
	if !errors.Is(err, ErrUnknownChunkReference) {
		t.Fatalf("got %v, want UnknownChunkReference", err)
	}
}

func TestReconstructSignatureLengthMismatch(t *testing.T) {
	chunk := NewChunk([]byte("12345"))
	chunks := ChunkMap{}
	chunks.Add(chunk)

	signature := StreamSignature{
		ChunkingScheme:  SchemeFullFile,
		StreamID:        "MainContent",
		ChunkSignatures: []ChunkSignature{{ChunkID: chunk.ID(), Length: 4}},
	}
	_, err := ReconstructSignature(signature, chunks)
	if !errors.Is(err, ErrChunkIdentityMismatch) {
		t.Fatalf("got %v, want ChunkIdentityMismatch", err)
	}
}
