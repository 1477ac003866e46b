// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chunked

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// ResourceAccess resolves resource ids for Zip chunking. Each resource
// has a byte stream and a companion offset index listing the chunk
// boundaries within it.
type ResourceAccess interface {
	// OpenResource returns the resource's bytes from the start.
	OpenResource(ctx context.Context, resourceID string) (io.ReadCloser, error)

	// OpenOffsetIndex returns the resource's offset index in the
	// text form [ParseOffsetIndex] reads.
	OpenOffsetIndex(ctx context.Context, resourceID string) (io.ReadCloser, error)
}

// ZipChunker splits resources at the boundaries their offset index
// declares.
type ZipChunker struct {
	Resources ResourceAccess
}

// ChunkResource reads the offset index and the resource bytes for
// resourceID and chunks the bytes at each indexed boundary.
func (z *ZipChunker) ChunkResource(ctx context.Context, resourceID string) (*ChunkedStream, error) {
	indexReader, err := z.Resources.OpenOffsetIndex(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("opening offset index: %w", err)
	}
	offsets, err := ParseOffsetIndex(indexReader)
	indexReader.Close()
	if err != nil {
		return nil, err
	}

	resourceReader, err := z.Resources.OpenResource(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("opening resource: %w", err)
	}
	defer resourceReader.Close()

	return ChunkByOffsets(resourceReader, offsets)
}

// maxOffsetIndexLine bounds one line of an offset index. Indexes
// written on a single comma-separated line can be long.
const maxOffsetIndexLine = 16 * 1024 * 1024

// ParseOffsetIndex reads an offset index: decimal byte offsets
// separated by whitespace or commas, with '#' starting a comment that
// runs to the end of the line. The result is validated as by
// [ValidateOffsets].
func ParseOffsetIndex(r io.Reader) ([]uint64, error) {
	var offsets []uint64
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxOffsetIndexLine)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line, _, _ := strings.Cut(scanner.Text(), "#")
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || unicode.IsSpace(r)
		})
		for _, field := range fields {
			offset, err := strconv.ParseUint(field, 10, 64)
			if err != nil {
				return nil, errorf(KindInvalidOffsetIndex, "line %d: offset %q: %w", lineNumber, field, err)
			}
			offsets = append(offsets, offset)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errorf(KindInvalidOffsetIndex, "reading offset index: %w", err)
	}
	if err := ValidateOffsets(offsets); err != nil {
		return nil, err
	}
	return offsets, nil
}

// ValidateOffsets checks that offsets is non-empty, starts at zero,
// and is strictly increasing.
func ValidateOffsets(offsets []uint64) error {
	if len(offsets) == 0 {
		return errorf(KindInvalidOffsetIndex, "offset index is empty")
	}
	if offsets[0] != 0 {
		return errorf(KindInvalidOffsetIndex, "first offset is %d, want 0", offsets[0])
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] <= offsets[i-1] {
			return errorf(KindInvalidOffsetIndex, "offset %d (%d) does not follow offset %d (%d)",
				i, offsets[i], i-1, offsets[i-1])
		}
	}
	return nil
}

// FormatOffsetIndex writes offsets in the form ParseOffsetIndex reads,
// one per line.
func FormatOffsetIndex(w io.Writer, offsets []uint64) error {
	writer := bufio.NewWriter(w)
	for _, offset := range offsets {
		writer.WriteString(strconv.FormatUint(offset, 10))
		writer.WriteByte('\n')
	}
	return writer.Flush()
}

// ChunkByOffsets reads r and emits one chunk per range between
// successive offsets, with the last range running to the end of the
// stream. A range the stream cannot fill is InvalidOffsetIndex. An
// empty final range produces no chunk.
func ChunkByOffsets(r io.Reader, offsets []uint64) (*ChunkedStream, error) {
	if err := ValidateOffsets(offsets); err != nil {
		return nil, err
	}

	stream := newChunkedStream(SchemeZip)
	var position uint64
	for i := 1; i < len(offsets); i++ {
		length := offsets[i] - offsets[i-1]
		data, err := readRange(r, length)
		if err != nil {
			return nil, fmt.Errorf("reading range at offset %d: %w", position, err)
		}
		if uint64(len(data)) < length {
			return nil, errorf(KindInvalidOffsetIndex,
				"stream ended at offset %d, expected data through offset %d", position+uint64(len(data)), offsets[i])
		}
		position += length
		stream.append(NewChunk(data))
	}

	tail, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading final range at offset %d: %w", position, err)
	}
	if len(tail) > 0 {
		stream.append(NewChunk(tail))
	}
	return stream, nil
}

// readRange reads up to length bytes, growing the buffer as data
// arrives so a bogus offset cannot force a large allocation. A short
// result means the stream ended.
func readRange(r io.Reader, length uint64) ([]byte, error) {
	var buffer bytes.Buffer
	buffer.Grow(int(min(length, 64*1024)))
	if _, err := io.CopyN(&buffer, r, int64(length)); err != nil && err != io.EOF {
		return nil, err
	}
	return buffer.Bytes(), nil
}
