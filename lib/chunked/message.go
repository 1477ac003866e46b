// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chunked

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/microsoft/wopi-validator-core-sub000/lib/fingerprint"
)

// --- Message types ---
//
// These structs are the JSON documents carried in a message frame.
// Field names are the protocol's PascalCase names; chunk ids render
// as base64 strings through fingerprint.Fingerprint's text marshaling.

// ChunkSignature is a chunk's identity without its bytes.
type ChunkSignature struct {
	ChunkID fingerprint.Fingerprint `json:"ChunkId"`
	Length  uint64                  `json:"Length"`
}

// StreamSignature is the full ordered composition of one named
// stream, such as "MainContent".
type StreamSignature struct {
	ChunkingScheme  Scheme           `json:"ChunkingScheme"`
	StreamID        string           `json:"StreamId"`
	ChunkSignatures []ChunkSignature `json:"ChunkSignatures"`
}

// IDs returns the ordered chunk ids of the signature.
func (s StreamSignature) IDs() []fingerprint.Fingerprint {
	ids := make([]fingerprint.Fingerprint, len(s.ChunkSignatures))
	for i, signature := range s.ChunkSignatures {
		ids[i] = signature.ChunkID
	}
	return ids
}

// Size returns the byte length the signature describes.
func (s StreamSignature) Size() uint64 {
	var size uint64
	for _, signature := range s.ChunkSignatures {
		size += signature.Length
	}
	return size
}

// Retention controls whether a content property survives a content
// change that does not re-send it.
type Retention string

const (
	RetentionKeepOnContentChange   Retention = "KeepOnContentChange"
	RetentionDeleteOnContentChange Retention = "DeleteOnContentChange"
)

// ParseRetention validates a retention value. The empty string means
// KeepOnContentChange.
func ParseRetention(value string) (Retention, error) {
	switch Retention(value) {
	case "", RetentionKeepOnContentChange:
		return RetentionKeepOnContentChange, nil
	case RetentionDeleteOnContentChange:
		return RetentionDeleteOnContentChange, nil
	default:
		return "", fmt.Errorf("unknown retention %q (want %s or %s)",
			value, RetentionKeepOnContentChange, RetentionDeleteOnContentChange)
	}
}

// ContentProperty is whole-file metadata, unique by name within a file.
type ContentProperty struct {
	Name      string    `json:"Name"`
	Value     string    `json:"Value"`
	Retention Retention `json:"Retention"`
}

// ChunksToReturn selects which chunks a host includes for a stream in
// a download response.
type ChunksToReturn string

const (
	ChunksAll          ChunksToReturn = "All"
	ChunksNone         ChunksToReturn = "None"
	ChunksLastZipChunk ChunksToReturn = "LastZipChunk"
)

// ParseChunksToReturn validates a ChunksToReturn value. The empty
// string means All.
func ParseChunksToReturn(value string) (ChunksToReturn, error) {
	switch ChunksToReturn(value) {
	case "", ChunksAll:
		return ChunksAll, nil
	case ChunksNone, ChunksLastZipChunk:
		return ChunksToReturn(value), nil
	default:
		return "", fmt.Errorf("unknown chunks-to-return value %q", value)
	}
}

// ContentFilter tells the host which stream to return and which of
// its chunks the client already holds.
type ContentFilter struct {
	ChunkingScheme     Scheme                    `json:"ChunkingScheme"`
	StreamID           string                    `json:"StreamId"`
	ChunksToReturn     ChunksToReturn            `json:"ChunksToReturn"`
	AlreadyKnownChunks []fingerprint.Fingerprint `json:"AlreadyKnownChunks"`
}

// DownloadRequestMessage is the message of a GET_CHUNKED_FILE request body.
type DownloadRequestMessage struct {
	ContentPropertiesToReturn []string        `json:"ContentPropertiesToReturn"`
	ContentFilters            []ContentFilter `json:"ContentFilters"`
}

// DownloadResponseMessage is the message of a GET_CHUNKED_FILE response body.
type DownloadResponseMessage struct {
	ContentProperties []ContentProperty `json:"ContentProperties"`
	Signatures        []StreamSignature `json:"Signatures"`
}

// UploadRequestMessage is the message of a PUT_CHUNKED_FILE request body.
type UploadRequestMessage struct {
	ContentProperties          []ContentProperty `json:"ContentProperties"`
	Signatures                 []StreamSignature `json:"Signatures"`
	UploadSessionTokenToCommit string            `json:"UploadSessionTokenToCommit"`
}

// --- Encoding ---

// EncodeMessage renders a message as JSON. Nil slices encode as empty
// arrays, never null, and an empty ChunkingScheme is written as
// FullFile.
func EncodeMessage(message any) ([]byte, error) {
	switch typed := message.(type) {
	case *DownloadRequestMessage:
		normalized := *typed
		normalized.ContentPropertiesToReturn = nonNil(normalized.ContentPropertiesToReturn)
		normalized.ContentFilters = slices.Clone(nonNil(normalized.ContentFilters))
		for i := range normalized.ContentFilters {
			normalized.ContentFilters[i].AlreadyKnownChunks = nonNil(normalized.ContentFilters[i].AlreadyKnownChunks)
			normalized.ContentFilters[i].ChunkingScheme = normalized.ContentFilters[i].ChunkingScheme.OrDefault()
		}
		message = &normalized
	case *DownloadResponseMessage:
		normalized := *typed
		normalized.ContentProperties = nonNil(normalized.ContentProperties)
		normalized.Signatures = normalizeSignatures(normalized.Signatures)
		message = &normalized
	case *UploadRequestMessage:
		normalized := *typed
		normalized.ContentProperties = nonNil(normalized.ContentProperties)
		normalized.Signatures = normalizeSignatures(normalized.Signatures)
		message = &normalized
	}

	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	return data, nil
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}

func normalizeSignatures(signatures []StreamSignature) []StreamSignature {
	normalized := make([]StreamSignature, len(signatures))
	for i, signature := range signatures {
		signature.ChunkSignatures = nonNil(signature.ChunkSignatures)
		signature.ChunkingScheme = signature.ChunkingScheme.OrDefault()
		normalized[i] = signature
	}
	return normalized
}

// --- Decoding ---
//
// Decode failures are MalformedFrame: the message frame is part of
// the frame stream and a body whose message cannot be read is not a
// valid body. Unknown fields are ignored. An empty ChunkingScheme
// decodes as FullFile.

// DecodeDownloadRequest parses a download request message.
func DecodeDownloadRequest(data []byte) (*DownloadRequestMessage, error) {
	var request DownloadRequestMessage
	if err := decodeJSON(data, &request, "download request"); err != nil {
		return nil, err
	}
	for i := range request.ContentFilters {
		filter := &request.ContentFilters[i]
		filter.ChunkingScheme = filter.ChunkingScheme.OrDefault()
		if err := filter.ChunkingScheme.Validate(); err != nil {
			return nil, fmt.Errorf("content filter %d (%q): %w", i, filter.StreamID, err)
		}
		if _, err := ParseChunksToReturn(string(filter.ChunksToReturn)); err != nil {
			return nil, errorf(KindMalformedFrame, "content filter %d (%q): %w", i, filter.StreamID, err)
		}
	}
	return &request, nil
}

// DecodeDownloadResponse parses a download response message.
func DecodeDownloadResponse(data []byte) (*DownloadResponseMessage, error) {
	var response DownloadResponseMessage
	if err := decodeJSON(data, &response, "download response"); err != nil {
		return nil, err
	}
	if err := validateSignatures(response.Signatures); err != nil {
		return nil, err
	}
	if err := validateProperties(response.ContentProperties); err != nil {
		return nil, err
	}
	return &response, nil
}

// DecodeUploadRequest parses an upload request message.
func DecodeUploadRequest(data []byte) (*UploadRequestMessage, error) {
	var request UploadRequestMessage
	if err := decodeJSON(data, &request, "upload request"); err != nil {
		return nil, err
	}
	if err := validateSignatures(request.Signatures); err != nil {
		return nil, err
	}
	if err := validateProperties(request.ContentProperties); err != nil {
		return nil, err
	}
	return &request, nil
}

func decodeJSON(data []byte, target any, what string) error {
	if err := json.Unmarshal(data, target); err != nil {
		return errorf(KindMalformedFrame, "decoding %s: %w", what, err)
	}
	return nil
}

func validateSignatures(signatures []StreamSignature) error {
	seen := make(map[string]bool, len(signatures))
	for i := range signatures {
		signature := &signatures[i]
		signature.ChunkingScheme = signature.ChunkingScheme.OrDefault()
		if err := signature.ChunkingScheme.Validate(); err != nil {
			return fmt.Errorf("stream %q: %w", signature.StreamID, err)
		}
		if seen[signature.StreamID] {
			return errorf(KindMalformedFrame, "stream %q appears more than once", signature.StreamID)
		}
		seen[signature.StreamID] = true
	}
	return nil
}

func validateProperties(properties []ContentProperty) error {
	seen := make(map[string]bool, len(properties))
	for _, property := range properties {
		if _, err := ParseRetention(string(property.Retention)); err != nil {
			return errorf(KindMalformedFrame, "content property %q: %w", property.Name, err)
		}
		if seen[property.Name] {
			return errorf(KindMalformedFrame, "content property %q appears more than once", property.Name)
		}
		seen[property.Name] = true
	}
	return nil
}
