// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chunked

import (
	"errors"
	"fmt"
	"io"

	"github.com/microsoft/wopi-validator-core-sub000/lib/fingerprint"
)

// --- Host side ---
//
// The host mirrors the client: it parses upload bodies and builds
// download responses. Both sides share the frame and message codecs,
// so a loopback through these functions exercises the full protocol.

// UploadResult is a parsed and reconstructed upload body.
type UploadResult struct {
	Properties   []ContentProperty
	SessionToken string
	Signatures   []StreamSignature

	// Streams maps stream id to reconstructed content.
	Streams map[string][]byte

	// Received holds the chunks carried in the body.
	Received ChunkMap
}

// ParseUploadBody reads an upload body and rebuilds every stream from
// the received chunks and hostChunks, the chunks the host already
// holds. A signature referencing a chunk in neither set is
// UnknownChunkReference.
func (t *Transfer) ParseUploadBody(r io.Reader, hostChunks ChunkMap) (*UploadResult, error) {
	message, received, skipped, err := t.readBody(r)
	if err != nil {
		return nil, fmt.Errorf("reading upload body: %w", err)
	}
	request, err := DecodeUploadRequest(message)
	if err != nil {
		return nil, err
	}

	result := &UploadResult{
		Properties:   request.ContentProperties,
		SessionToken: request.UploadSessionTokenToCommit,
		Signatures:   request.Signatures,
		Streams:      make(map[string][]byte, len(request.Signatures)),
		Received:     received,
	}

	combined := Union(hostChunks, received)
	for _, signature := range request.Signatures {
		content, err := ReconstructSignature(signature, combined)
		if err != nil {
			return nil, err
		}
		result.Streams[signature.StreamID] = content
	}
	t.logger.Debug("parsed upload body",
		"streams", len(request.Signatures),
		"properties", len(request.ContentProperties),
		"received_chunks", len(received),
		"received_bytes", received.TotalBytes(),
		"skipped_ranges", skipped,
	)
	return result, nil
}

// StreamChunks rebuilds the named stream as a ChunkedStream, drawing
// chunks from the received set and hostChunks.
func (r *UploadResult) StreamChunks(streamID string, hostChunks ChunkMap) (*ChunkedStream, error) {
	all := Union(hostChunks, r.Received)
	for _, signature := range r.Signatures {
		if signature.StreamID != streamID {
			continue
		}
		stream := newChunkedStream(signature.ChunkingScheme)
		for position, id := range signature.IDs() {
			chunk, exists := all[id]
			if !exists {
				return nil, errorf(KindUnknownChunkReference, "stream %q chunk %d (%s) is not available", streamID, position, id)
			}
			stream.append(chunk)
		}
		return stream, nil
	}
	return nil, fmt.Errorf("stream %q is not in the upload", streamID)
}

// ParseDownloadRequest reads a download request body. The body is a
// message frame alone; chunk frames in it are MalformedFrame.
func (t *Transfer) ParseDownloadRequest(r io.Reader) (*DownloadRequestMessage, error) {
	message, received, skipped, err := t.readBody(r)
	if err != nil {
		return nil, fmt.Errorf("reading download request: %w", err)
	}
	if len(received) != 0 || skipped != 0 {
		return nil, errorf(KindMalformedFrame, "download request carries %d chunk frames", len(received)+skipped)
	}
	return DecodeDownloadRequest(message)
}

// HostStream is one stream as stored by a host.
type HostStream struct {
	StreamID string
	Stream   *ChunkedStream
}

// ErrStreamNotFound is returned by BuildDownloadResponse when a
// content filter names a stream the host does not have.
var ErrStreamNotFound = errors.New("stream not found")

// BuildDownloadResponse builds the host's response body to request.
// Each filtered stream contributes its complete signature; chunk
// frames follow for the chunks its ChunksToReturn selects, minus those
// the client already knows, each chunk at most once per body. A
// request with no filters returns every stream with All. Only
// requested properties that exist are returned.
func BuildDownloadResponse(request *DownloadRequestMessage, streams []HostStream, properties []ContentProperty) ([]byte, error) {
	filters := request.ContentFilters
	if len(filters) == 0 {
		for _, stream := range streams {
			filters = append(filters, ContentFilter{StreamID: stream.StreamID, ChunksToReturn: ChunksAll})
		}
	}

	byID := make(map[string]*ChunkedStream, len(streams))
	for _, stream := range streams {
		byID[stream.StreamID] = stream.Stream
	}

	response := DownloadResponseMessage{
		Signatures: make([]StreamSignature, 0, len(filters)),
	}
	emitted := make(map[fingerprint.Fingerprint]bool)
	var chunks []Chunk

	for _, filter := range filters {
		stream, exists := byID[filter.StreamID]
		if !exists {
			return nil, fmt.Errorf("%w: %q", ErrStreamNotFound, filter.StreamID)
		}
		response.Signatures = append(response.Signatures, stream.StreamSignature(filter.StreamID))

		known := make(map[fingerprint.Fingerprint]bool, len(filter.AlreadyKnownChunks))
		for _, id := range filter.AlreadyKnownChunks {
			known[id] = true
		}

		chunksToReturn, err := ParseChunksToReturn(string(filter.ChunksToReturn))
		if err != nil {
			return nil, err
		}
		var candidates []fingerprint.Fingerprint
		switch chunksToReturn {
		case ChunksAll:
			candidates = stream.IDs
		case ChunksLastZipChunk:
			if len(stream.IDs) > 0 {
				candidates = stream.IDs[len(stream.IDs)-1:]
			}
		}
		for _, id := range candidates {
			if known[id] || emitted[id] {
				continue
			}
			emitted[id] = true
			chunks = append(chunks, stream.Chunks[id])
		}
	}

	existing := make(map[string]ContentProperty, len(properties))
	for _, property := range properties {
		existing[property.Name] = property
	}
	for _, name := range request.ContentPropertiesToReturn {
		if property, exists := existing[name]; exists {
			response.ContentProperties = append(response.ContentProperties, property)
		}
	}

	message, err := EncodeMessage(&response)
	if err != nil {
		return nil, err
	}
	return BuildBody(message, chunks)
}
