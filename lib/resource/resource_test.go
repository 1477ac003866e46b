// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/klauspost/compress/zip"

	"github.com/microsoft/wopi-validator-core-sub000/lib/chunked"
	"github.com/microsoft/wopi-validator-core-sub000/lib/testutil"
)

func chunkResource(t *testing.T, access chunked.ResourceAccess, resourceID string) *chunked.ChunkedStream {
	t.Helper()
	stream, err := chunked.NewChunker(access).Chunk(context.Background(), chunked.ResourceContent(resourceID))
	if err != nil {
		t.Fatalf("chunking %s: %v", resourceID, err)
	}
	return stream
}

func TestValidateID(t *testing.T) {
	for _, id := range []string{"doc.docx", "folder/doc.docx", "a/b/c"} {
		if err := ValidateID(id); err != nil {
			t.Errorf("ValidateID(%q): %v", id, err)
		}
	}
	for _, id := range []string{"", "/abs", "a//b", "../escape", "a/./b", "trailing/", "doc.offsets"} {
		if err := ValidateID(id); err == nil {
			t.Errorf("ValidateID(%q) succeeded", id)
		}
	}
}

func TestFSStore(t *testing.T) {
	filesystem := memfs.New()
	store := NewFS(filesystem)

	if err := store.Put("docs/report.bin", []byte("0123456789abcdef"), []uint64{0, 4, 10}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	index, err := util.ReadFile(filesystem, "docs/report.bin.offsets")
	if err != nil {
		t.Fatalf("reading offset index: %v", err)
	}
	if string(index) != "0\n4\n10\n" {
		t.Errorf("offset index = %q", index)
	}

	stream := chunkResource(t, store, "docs/report.bin")
	if len(stream.IDs) != 3 {
		t.Fatalf("got %d chunks, want 3", len(stream.IDs))
	}
	content, err := chunked.ReconstructBytes(stream.IDs, stream.Chunks)
	if err != nil {
		t.Fatalf("ReconstructBytes: %v", err)
	}
	if string(content) != "0123456789abcdef" {
		t.Errorf("reconstructed %q", content)
	}

	_, err = store.OpenResource(context.Background(), "docs/missing.bin")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing resource: got %v, want ErrNotFound", err)
	}
	if _, err := store.OpenResource(context.Background(), "../outside"); err == nil {
		t.Error("path escape accepted")
	}
}

func TestFSStoreHandWrittenIndex(t *testing.T) {
	filesystem := memfs.New()
	util.WriteFile(filesystem, "deck.pptx", []byte("slide-one|slide-two"), 0o644)
	util.WriteFile(filesystem, "deck.pptx.offsets", []byte("# slide boundaries\n0, 10\n"), 0o644)

	stream := chunkResource(t, NewFS(filesystem), "deck.pptx")
	if len(stream.IDs) != 2 {
		t.Fatalf("got %d chunks, want 2", len(stream.IDs))
	}
	if string(stream.Chunks[stream.IDs[1]].Bytes()) != "slide-two" {
		t.Errorf("second chunk = %q", stream.Chunks[stream.IDs[1]].Bytes())
	}
}

func TestDirectoryStore(t *testing.T) {
	root := t.TempDir()
	store := NewDirectory(root)
	if err := store.Put("doc", []byte("abcdef"), []uint64{0, 3}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	stream := chunkResource(t, NewDirectory(root), "doc")
	if len(stream.IDs) != 2 {
		t.Errorf("got %d chunks, want 2", len(stream.IDs))
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemory()
	if err := store.Put("doc", []byte("aaabbb"), []uint64{0, 3}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put("bad", []byte("x"), []uint64{1}); !errors.Is(err, chunked.ErrInvalidOffsetIndex) {
		t.Errorf("invalid offsets: got %v, want InvalidOffsetIndex", err)
	}

	stream := chunkResource(t, store, "doc")
	if len(stream.IDs) != 2 {
		t.Errorf("got %d chunks, want 2", len(stream.IDs))
	}

	_, err := store.OpenOffsetIndex(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

// fakeS3 serves objects from a map, returning NoSuchKey like the real
// service for absent keys.
type fakeS3 struct {
	objects  map[string]string
	requests []string
}

func (f *fakeS3) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := *input.Bucket + "/" + *input.Key
	f.requests = append(f.requests, key)
	object, exists := f.objects[key]
	if !exists {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(object))}, nil
}

func TestS3Store(t *testing.T) {
	client := &fakeS3{objects: map[string]string{
		"files/tenant/doc":         "headerbodyfooter",
		"files/tenant/doc.offsets": "0 6 10",
	}}
	store := NewS3(client, "files", "tenant")

	stream := chunkResource(t, store, "doc")
	if len(stream.IDs) != 3 {
		t.Fatalf("got %d chunks, want 3", len(stream.IDs))
	}
	content, err := chunked.ReconstructBytes(stream.IDs, stream.Chunks)
	if err != nil {
		t.Fatalf("ReconstructBytes: %v", err)
	}
	if string(content) != "headerbodyfooter" {
		t.Errorf("reconstructed %q", content)
	}

	_, err = store.OpenResource(context.Background(), "absent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if got := client.requests[len(client.requests)-1]; got != "files/tenant/absent" {
		t.Errorf("last request = %s, want files/tenant/absent", got)
	}
	if key := NewS3(client, "files", "").Key("doc"); key != "doc" {
		t.Errorf("unprefixed key = %q", key)
	}
}

func TestZipOffsets(t *testing.T) {
	archive := testutil.StoredZip(t,
		testutil.Entry{Name: "[Content_Types].xml", Content: "<Types/>"},
		testutil.Entry{Name: "word/document.xml", Content: strings.Repeat("<w:p/>", 50)},
		testutil.Entry{Name: "word/styles.xml", Content: "<w:styles/>"},
	)

	offsets, err := ZipOffsets(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		t.Fatalf("ZipOffsets: %v", err)
	}
	if len(offsets) != 4 {
		t.Fatalf("offsets = %v, want zero plus one per entry", offsets)
	}
	if err := chunked.ValidateOffsets(offsets); err != nil {
		t.Fatalf("ValidateOffsets: %v", err)
	}

	// Each entry's data starts its chunk.
	reader, _ := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	for i, file := range reader.File {
		dataOffset, _ := file.DataOffset()
		if offsets[i+1] != uint64(dataOffset) {
			t.Errorf("offset %d = %d, want entry %s data at %d", i+1, offsets[i+1], file.Name, dataOffset)
		}
	}

	if _, err := ZipOffsets(strings.NewReader("not a zip"), 9); err == nil {
		t.Error("ZipOffsets accepted a non-zip")
	}
}

func TestZipChunkingDeltaAfterEdit(t *testing.T) {
	original := testutil.StoredZip(t,
		testutil.Entry{Name: "a.xml", Content: strings.Repeat("A", 300)},
		testutil.Entry{Name: "b.xml", Content: strings.Repeat("B", 300)},
		testutil.Entry{Name: "c.xml", Content: strings.Repeat("C", 300)},
	)
	edited := testutil.StoredZip(t,
		testutil.Entry{Name: "a.xml", Content: strings.Repeat("A", 300)},
		testutil.Entry{Name: "b.xml", Content: strings.Repeat("b", 300)},
		testutil.Entry{Name: "c.xml", Content: strings.Repeat("C", 300)},
	)

	store := NewMemory()
	if err := store.PutZip("original", original); err != nil {
		t.Fatalf("PutZip: %v", err)
	}
	if err := store.PutZip("edited", edited); err != nil {
		t.Fatalf("PutZip: %v", err)
	}

	oldStream := chunkResource(t, store, "original")
	newStream := chunkResource(t, store, "edited")
	delta := chunked.ComputeDelta(newStream, oldStream, nil)

	if len(delta.Order) >= len(newStream.IDs) {
		t.Errorf("delta carries %d of %d chunks; an edit to one entry should reuse the rest", len(delta.Order), len(newStream.IDs))
	}
	content, err := chunked.ReconstructBytes(newStream.IDs, chunked.Union(oldStream.Chunks, delta.Chunks))
	if err != nil {
		t.Fatalf("ReconstructBytes: %v", err)
	}
	if !bytes.Equal(content, edited) {
		t.Error("reconstructed archive differs from the edited archive")
	}
}
