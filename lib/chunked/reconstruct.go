// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chunked

import (
	"bytes"
	"fmt"
	"io"

	"github.com/microsoft/wopi-validator-core-sub000/lib/fingerprint"
)

// Reconstruct writes the content of each id in order, looked up in
// chunks. A missing id is UnknownChunkReference; nothing is written
// past it. An empty id list writes nothing.
func Reconstruct(w io.Writer, ids []fingerprint.Fingerprint, chunks ChunkMap) (int64, error) {
	var written int64
	for position, id := range ids {
		chunk, exists := chunks[id]
		if !exists {
			return written, errorf(KindUnknownChunkReference, "chunk %d (%s) is not available", position, id)
		}
		bytesWritten, err := chunk.WriteTo(w)
		written += bytesWritten
		if err != nil {
			return written, fmt.Errorf("writing chunk %d: %w", position, err)
		}
	}
	return written, nil
}

// ReconstructBytes returns the concatenated content of ids.
func ReconstructBytes(ids []fingerprint.Fingerprint, chunks ChunkMap) ([]byte, error) {
	var buffer bytes.Buffer
	if _, err := Reconstruct(&buffer, ids, chunks); err != nil {
		return nil, err
	}
	if buffer.Len() == 0 {
		return []byte{}, nil
	}
	return buffer.Bytes(), nil
}

// ReconstructSignature rebuilds a stream from its signature. Besides
// resolving every id, it checks that each chunk has the length the
// signature declares; a disagreement is ChunkIdentityMismatch.
func ReconstructSignature(signature StreamSignature, chunks ChunkMap) ([]byte, error) {
	for position, chunkSignature := range signature.ChunkSignatures {
		chunk, exists := chunks[chunkSignature.ChunkID]
		if !exists {
			continue
		}
		if uint64(chunk.Len()) != chunkSignature.Length {
			return nil, errorf(KindChunkIdentityMismatch,
				"stream %q chunk %d (%s) is %d bytes, signature declares %d",
				signature.StreamID, position, chunkSignature.ChunkID, chunk.Len(), chunkSignature.Length)
		}
	}
	content, err := ReconstructBytes(signature.IDs(), chunks)
	if err != nil {
		return nil, fmt.Errorf("reconstructing stream %q: %w", signature.StreamID, err)
	}
	return content, nil
}
