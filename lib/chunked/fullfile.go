// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chunked

import (
	"errors"
	"fmt"
	"io"
)

// FullFile is the coarsest strategy: the whole stream is one chunk.
// Any change anywhere in the content changes the only chunk, so a
// delta always carries the entire new content.
type FullFile struct{}

// ChunkStream reads r to the end. An empty stream has no chunks;
// anything else is exactly one chunk.
func (FullFile) ChunkStream(r io.Reader) (*ChunkedStream, error) {
	if r == nil {
		return nil, errors.New("full-file chunking: nil reader")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("full-file chunking: reading stream: %w", err)
	}

	stream := newChunkedStream(SchemeFullFile)
	if len(data) > 0 {
		stream.append(NewChunk(data))
	}
	return stream, nil
}
