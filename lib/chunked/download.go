// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chunked

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/microsoft/wopi-validator-core-sub000/lib/fingerprint"
)

// StreamRequest names one stream to download.
type StreamRequest struct {
	StreamID string

	// Scheme is the chunking scheme the client expects. Empty means
	// FullFile.
	Scheme Scheme

	// ChunksToReturn defaults to All.
	ChunksToReturn ChunksToReturn

	// Known lists chunk ids the client already holds. Duplicates are
	// dropped.
	Known []fingerprint.Fingerprint
}

// BuildDownloadRequest builds a download request body asking for the
// named content properties and streams.
func (t *Transfer) BuildDownloadRequest(properties []string, streams []StreamRequest) ([]byte, error) {
	request := DownloadRequestMessage{
		ContentPropertiesToReturn: properties,
		ContentFilters:            make([]ContentFilter, 0, len(streams)),
	}

	seen := make(map[string]bool, len(streams))
	for _, stream := range streams {
		if seen[stream.StreamID] {
			return nil, fmt.Errorf("stream %q requested more than once", stream.StreamID)
		}
		seen[stream.StreamID] = true

		scheme := stream.Scheme.OrDefault()
		if err := scheme.Validate(); err != nil {
			return nil, fmt.Errorf("stream %q: %w", stream.StreamID, err)
		}
		chunksToReturn, err := ParseChunksToReturn(string(stream.ChunksToReturn))
		if err != nil {
			return nil, fmt.Errorf("stream %q: %w", stream.StreamID, err)
		}

		request.ContentFilters = append(request.ContentFilters, ContentFilter{
			ChunkingScheme:     scheme,
			StreamID:           stream.StreamID,
			ChunksToReturn:     chunksToReturn,
			AlreadyKnownChunks: uniqueIDs(stream.Known),
		})
	}

	message, err := EncodeMessage(&request)
	if err != nil {
		return nil, err
	}
	return BuildBody(message, nil)
}

func uniqueIDs(ids []fingerprint.Fingerprint) []fingerprint.Fingerprint {
	unique := make([]fingerprint.Fingerprint, 0, len(ids))
	seen := make(map[fingerprint.Fingerprint]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	return unique
}

// DownloadResult is a parsed and reconstructed download response.
type DownloadResult struct {
	// Properties are the content properties the host returned.
	Properties []ContentProperty

	// Signatures are the stream signatures in response order.
	Signatures []StreamSignature

	// Streams maps stream id to reconstructed content.
	Streams map[string][]byte

	// Received holds the chunks that arrived in the response.
	Received ChunkMap

	// SkippedRanges counts chunk range frames, which are not used
	// for reconstruction.
	SkippedRanges int

	known ChunkMap
}

// ParseDownloadResponse reads a download response body and rebuilds
// every stream it describes from the received chunks together with
// known, the chunks the caller already held. Any protocol violation
// aborts the whole parse.
func (t *Transfer) ParseDownloadResponse(r io.Reader, known ChunkMap) (*DownloadResult, error) {
	message, received, skipped, err := t.readBody(r)
	if err != nil {
		return nil, fmt.Errorf("reading download response: %w", err)
	}
	response, err := DecodeDownloadResponse(message)
	if err != nil {
		return nil, err
	}

	result := &DownloadResult{
		Properties:    response.ContentProperties,
		Signatures:    response.Signatures,
		Streams:       make(map[string][]byte, len(response.Signatures)),
		Received:      received,
		SkippedRanges: skipped,
		known:         known,
	}

	combined := Union(known, received)
	for _, signature := range response.Signatures {
		content, err := ReconstructSignature(signature, combined)
		if err != nil {
			return nil, err
		}
		result.Streams[signature.StreamID] = content
		t.logger.Debug("reconstructed stream",
			"stream", signature.StreamID,
			"scheme", signature.ChunkingScheme,
			"chunks", len(signature.ChunkSignatures),
			"bytes", len(content),
		)
	}
	t.logger.Debug("parsed download response",
		"streams", len(response.Signatures),
		"properties", len(response.ContentProperties),
		"received_chunks", len(received),
		"received_bytes", received.TotalBytes(),
		"skipped_ranges", skipped,
	)
	return result, nil
}

// Property returns the named content property.
func (r *DownloadResult) Property(name string) (ContentProperty, bool) {
	for _, property := range r.Properties {
		if property.Name == name {
			return property, true
		}
	}
	return ContentProperty{}, false
}

// KnownChunks returns the chunks the caller holds after this
// download: those known before plus those received.
func (r *DownloadResult) KnownChunks() ChunkMap {
	return Union(r.known, r.Received)
}

// StreamChunks returns the named stream as a ChunkedStream drawing on
// KnownChunks, suitable as last-known content for a later upload.
func (r *DownloadResult) StreamChunks(streamID string) (*ChunkedStream, bool) {
	index := slices.IndexFunc(r.Signatures, func(signature StreamSignature) bool {
		return signature.StreamID == streamID
	})
	if index < 0 {
		return nil, false
	}
	signature := r.Signatures[index]
	all := r.KnownChunks()
	stream := newChunkedStream(signature.ChunkingScheme)
	for _, id := range signature.IDs() {
		stream.append(all[id])
	}
	return stream, true
}

// MismatchError reports reconstructed content that differs from what
// the caller expected.
type MismatchError struct {
	StreamID string

	// Offset is the first differing byte, or the length of the
	// shorter side when one is a prefix of the other.
	Offset int

	GotLength  int
	WantLength int
}

func (err *MismatchError) Error() string {
	return fmt.Sprintf("stream %q differs from expected content at offset %d (got %d bytes, want %d)",
		err.StreamID, err.Offset, err.GotLength, err.WantLength)
}

// Verify compares reconstructed streams against expected content by
// stream id. Every mismatch is reported, joined in stream-id order.
func (r *DownloadResult) Verify(expected map[string][]byte) error {
	streamIDs := make([]string, 0, len(expected))
	for streamID := range expected {
		streamIDs = append(streamIDs, streamID)
	}
	slices.Sort(streamIDs)

	var errs []error
	for _, streamID := range streamIDs {
		want := expected[streamID]
		got, exists := r.Streams[streamID]
		if !exists {
			errs = append(errs, fmt.Errorf("stream %q is missing from the response", streamID))
			continue
		}
		if offset, differs := firstDifference(got, want); differs {
			errs = append(errs, &MismatchError{
				StreamID:   streamID,
				Offset:     offset,
				GotLength:  len(got),
				WantLength: len(want),
			})
		}
	}
	return errors.Join(errs...)
}

func firstDifference(got, want []byte) (int, bool) {
	shorter := min(len(got), len(want))
	for i := 0; i < shorter; i++ {
		if got[i] != want[i] {
			return i, true
		}
	}
	if len(got) != len(want) {
		return shorter, true
	}
	return 0, false
}
