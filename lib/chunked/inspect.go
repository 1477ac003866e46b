// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chunked

import (
	"io"

	"github.com/microsoft/wopi-validator-core-sub000/lib/fingerprint"
)

// FrameSummary describes one frame of a body without its payload.
type FrameSummary struct {
	Index              int       `json:"index"`
	Type               FrameType `json:"-"`
	TypeName           string    `json:"type"`
	ExtendedHeaderSize int       `json:"extended_header_size"`
	PayloadSize        int       `json:"payload_size"`

	// ChunkID and Verified are set for chunk frames whose extended
	// header is a fingerprint.
	ChunkID  string `json:"chunk_id,omitempty"`
	Verified bool   `json:"verified,omitempty"`

	// Message is the JSON text of a message frame.
	Message string `json:"message,omitempty"`
}

// Inspect lists the frames of a body, including the end frame. Unlike
// [StreamReader] it does not stop at the first rule violation in a
// chunk: identity mismatches are reported through Verified so a broken
// body can still be examined. Framing errors end the listing and are
// returned with the frames read so far.
func Inspect(r io.Reader, maxFrameSize uint64) ([]FrameSummary, error) {
	var summaries []FrameSummary
	for index := 0; ; index++ {
		frame, err := ReadFrame(r, maxFrameSize)
		if err == io.EOF {
			return summaries, errorf(KindMalformedFrame, "body ended after %d frames without an end frame", index)
		}
		if err != nil {
			return summaries, err
		}

		summary := FrameSummary{
			Index:              index,
			Type:               frame.Type,
			TypeName:           frame.Type.String(),
			ExtendedHeaderSize: len(frame.ExtendedHeader),
			PayloadSize:        len(frame.Payload),
		}
		switch frame.Type {
		case FrameMessage:
			summary.Message = string(frame.Payload)
		case FrameChunk:
			if id, err := fingerprint.FromBytes(frame.ExtendedHeader); err == nil {
				summary.ChunkID = id.String()
				summary.Verified = fingerprint.Sum(frame.Payload) == id
			}
		}
		summaries = append(summaries, summary)

		if frame.Type == FrameEnd {
			return summaries, nil
		}
	}
}
