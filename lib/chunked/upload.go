// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chunked

import (
	"context"
	"errors"
	"fmt"

	"github.com/microsoft/wopi-validator-core-sub000/lib/fingerprint"
)

// StreamUpload is one stream of an upload.
type StreamUpload struct {
	StreamID string

	// Content is the new stream content.
	Content Content

	// LastKnown is the content the host is believed to hold for this
	// stream. The zero Content means nothing is known and every
	// chunk is sent.
	LastKnown Content
}

// UploadRequest describes an upload body.
type UploadRequest struct {
	Streams      []StreamUpload
	Properties   []ContentProperty
	SessionToken string
}

// UploadStats summarizes an upload body.
type UploadStats struct {
	Streams     int
	TotalChunks int
	TotalBytes  uint64
	DeltaChunks int
	DeltaBytes  uint64
}

// UploadBody is a built upload.
type UploadBody struct {
	Message UploadRequestMessage

	// Delta holds every chunk carried in the body, across streams.
	Delta ChunkMap

	// Body is the frame-encoded request body.
	Body  []byte
	Stats UploadStats
}

// BuildUpload chunks each stream's new and last-known content with the
// same scheme, computes the delta, and encodes one body: the message
// listing every stream's complete signature, then each delta chunk
// once, in first-appearance order.
func (t *Transfer) BuildUpload(ctx context.Context, request UploadRequest) (*UploadBody, error) {
	if err := checkProperties(request.Properties); err != nil {
		return nil, err
	}

	properties := make([]ContentProperty, len(request.Properties))
	for i, property := range request.Properties {
		property.Retention, _ = ParseRetention(string(property.Retention))
		properties[i] = property
	}
	message := UploadRequestMessage{
		ContentProperties:          properties,
		Signatures:                 make([]StreamSignature, 0, len(request.Streams)),
		UploadSessionTokenToCommit: request.SessionToken,
	}

	staged := make(ChunkMap)
	var order []fingerprint.Fingerprint
	var stats UploadStats
	seen := make(map[string]bool, len(request.Streams))

	for _, stream := range request.Streams {
		if seen[stream.StreamID] {
			return nil, fmt.Errorf("stream %q uploaded more than once", stream.StreamID)
		}
		seen[stream.StreamID] = true

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if stream.Content.IsZero() {
			return nil, fmt.Errorf("stream %q: no content", stream.StreamID)
		}
		newStream, err := t.chunker.Chunk(ctx, stream.Content)
		if err != nil {
			return nil, fmt.Errorf("stream %q: chunking new content: %w", stream.StreamID, err)
		}
		lastKnown, err := t.chunker.Chunk(ctx, stream.LastKnown)
		if err != nil {
			return nil, fmt.Errorf("stream %q: chunking last-known content: %w", stream.StreamID, err)
		}
		if !stream.LastKnown.IsZero() && lastKnown.Scheme != newStream.Scheme {
			return nil, fmt.Errorf("stream %q: %w", stream.StreamID, errorf(KindUnsupportedChunkingScheme,
				"last-known content is %s chunked, new content is %s", lastKnown.Scheme, newStream.Scheme))
		}

		delta := ComputeDelta(newStream, lastKnown, staged)
		for _, id := range delta.Order {
			staged.Add(delta.Chunks[id])
		}
		order = append(order, delta.Order...)

		message.Signatures = append(message.Signatures, StreamSignature{
			ChunkingScheme:  newStream.Scheme,
			StreamID:        stream.StreamID,
			ChunkSignatures: delta.Signatures,
		})

		stats.Streams++
		stats.TotalChunks += len(newStream.IDs)
		stats.TotalBytes += newStream.Size()
		t.logger.Debug("computed stream delta",
			"stream", stream.StreamID,
			"scheme", newStream.Scheme,
			"chunks", len(newStream.IDs),
			"last_known_chunks", len(lastKnown.IDs),
			"delta_chunks", len(delta.Order),
			"delta_bytes", delta.Bytes(),
		)
	}

	encoded, err := EncodeMessage(&message)
	if err != nil {
		return nil, err
	}
	chunks := make([]Chunk, len(order))
	for i, id := range order {
		chunks[i] = staged[id]
	}
	body, err := BuildBody(encoded, chunks)
	if err != nil {
		return nil, fmt.Errorf("building upload body: %w", err)
	}

	stats.DeltaChunks = len(order)
	stats.DeltaBytes = staged.TotalBytes()
	return &UploadBody{
		Message: message,
		Delta:   staged,
		Body:    body,
		Stats:   stats,
	}, nil
}

// checkProperties rejects duplicate names and unknown retention values.
func checkProperties(properties []ContentProperty) error {
	seen := make(map[string]bool, len(properties))
	for _, property := range properties {
		if property.Name == "" {
			return errors.New("content property with empty name")
		}
		if seen[property.Name] {
			return fmt.Errorf("content property %q given more than once", property.Name)
		}
		seen[property.Name] = true
		if _, err := ParseRetention(string(property.Retention)); err != nil {
			return fmt.Errorf("content property %q: %w", property.Name, err)
		}
	}
	return nil
}
