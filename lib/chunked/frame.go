// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chunked

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/microsoft/wopi-validator-core-sub000/lib/fingerprint"
)

// FrameType tags a frame on the wire.
type FrameType uint32

const (
	// FrameEnd terminates a body. It carries no extended header and
	// no payload.
	FrameEnd FrameType = 1

	// FrameMessage carries the body's JSON message. It is always the
	// first frame and never has an extended header.
	FrameMessage FrameType = 2

	// FrameChunk carries one chunk. Its extended header is the 16
	// raw fingerprint bytes of its payload.
	FrameChunk FrameType = 3

	// FrameChunkRange carries a byte range of a chunk. Readers
	// accept it; nothing in this package produces one.
	FrameChunkRange FrameType = 4
)

func (t FrameType) String() string {
	switch t {
	case FrameEnd:
		return "End"
	case FrameMessage:
		return "MessageJSON"
	case FrameChunk:
		return "Chunk"
	case FrameChunkRange:
		return "ChunkRange"
	default:
		return fmt.Sprintf("FrameType(%d)", uint32(t))
	}
}

func (t FrameType) valid() bool {
	return t >= FrameEnd && t <= FrameChunkRange
}

// Wire format constants.
const (
	// HeaderSize is the fixed frame header: type uint32, extended
	// header size uint32, payload size uint64, all big-endian.
	HeaderSize = 16

	// MaxExtendedHeaderSize bounds the extended header, which is read
	// into memory whole. The only defined extended header is a
	// 16-byte fingerprint.
	MaxExtendedHeaderSize = 64 * 1024

	// DefaultMaxFrameSize bounds extended header plus payload of a
	// single frame when no explicit limit is configured.
	DefaultMaxFrameSize uint64 = 256 * 1024 * 1024

	// LimitMaxFrameSize is the largest accepted frame limit. Larger
	// limits are clamped to it so declared sizes always fit an int64.
	LimitMaxFrameSize uint64 = math.MaxInt64
)

// Frame is one tagged, length-prefixed record of a body.
type Frame struct {
	Type           FrameType
	ExtendedHeader []byte
	Payload        []byte
}

// MessageFrame wraps an encoded JSON message.
func MessageFrame(message []byte) Frame {
	return Frame{Type: FrameMessage, Payload: message}
}

// ChunkFrame wraps a chunk, with its fingerprint as extended header.
func ChunkFrame(chunk Chunk) Frame {
	id := chunk.ID()
	return Frame{Type: FrameChunk, ExtendedHeader: id[:], Payload: chunk.data}
}

// Size returns the frame's encoded length.
func (f Frame) Size() uint64 {
	return HeaderSize + uint64(len(f.ExtendedHeader)) + uint64(len(f.Payload))
}

// ChunkID returns the fingerprint carried in a chunk frame's extended
// header. It fails when the header is not exactly one fingerprint.
func (f Frame) ChunkID() (fingerprint.Fingerprint, error) {
	id, err := fingerprint.FromBytes(f.ExtendedHeader)
	if err != nil {
		return id, errorf(KindMalformedFrame, "%s frame extended header: %w", f.Type, err)
	}
	return id, nil
}

func (f Frame) String() string {
	switch f.Type {
	case FrameChunk:
		if id, err := fingerprint.FromBytes(f.ExtendedHeader); err == nil {
			return fmt.Sprintf("Chunk %s (%d bytes)", id, len(f.Payload))
		}
	case FrameMessage:
		return fmt.Sprintf("MessageJSON (%d bytes)", len(f.Payload))
	}
	return fmt.Sprintf("%s (header %d bytes, payload %d bytes)", f.Type, len(f.ExtendedHeader), len(f.Payload))
}

// WriteFrame encodes one frame to w.
func WriteFrame(w io.Writer, frame Frame) error {
	if !frame.Type.valid() {
		return fmt.Errorf("writing frame: invalid type %d", uint32(frame.Type))
	}
	if len(frame.ExtendedHeader) > MaxExtendedHeaderSize {
		return fmt.Errorf("writing frame: extended header is %d bytes, maximum %d", len(frame.ExtendedHeader), MaxExtendedHeaderSize)
	}

	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(frame.Type))
	binary.BigEndian.PutUint32(header[4:8], uint32(len(frame.ExtendedHeader)))
	binary.BigEndian.PutUint64(header[8:16], uint64(len(frame.Payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}
	if len(frame.ExtendedHeader) > 0 {
		if _, err := w.Write(frame.ExtendedHeader); err != nil {
			return fmt.Errorf("writing frame extended header: %w", err)
		}
	}
	if len(frame.Payload) > 0 {
		if _, err := w.Write(frame.Payload); err != nil {
			return fmt.Errorf("writing frame payload: %w", err)
		}
	}
	return nil
}

// ReadFrame decodes one frame from r. Reads loop until each declared
// length is satisfied; a body that ends first is MalformedFrame, as is
// an unknown type or a frame larger than maxFrameSize (zero means
// DefaultMaxFrameSize, and larger than LimitMaxFrameSize means
// LimitMaxFrameSize). The payload buffer grows as bytes arrive
// rather than being sized from the untrusted header.
//
// ReadFrame returns io.EOF, unwrapped, only when r is exhausted
// before the first header byte.
func ReadFrame(r io.Reader, maxFrameSize uint64) (Frame, error) {
	if maxFrameSize == 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	maxFrameSize = min(maxFrameSize, LimitMaxFrameSize)

	var header [HeaderSize]byte
	if bytesRead, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, errorf(KindMalformedFrame, "frame header truncated after %d of %d bytes", bytesRead, HeaderSize)
		}
		return Frame{}, fmt.Errorf("reading frame header: %w", err)
	}

	frameType := FrameType(binary.BigEndian.Uint32(header[0:4]))
	extendedSize := binary.BigEndian.Uint32(header[4:8])
	payloadSize := binary.BigEndian.Uint64(header[8:16])

	if !frameType.valid() {
		return Frame{}, errorf(KindMalformedFrame, "unknown frame type %d", uint32(frameType))
	}
	if extendedSize > MaxExtendedHeaderSize {
		return Frame{}, errorf(KindMalformedFrame, "%s frame extended header size %d exceeds maximum %d",
			frameType, extendedSize, MaxExtendedHeaderSize)
	}
	if payloadSize > maxFrameSize || uint64(extendedSize) > maxFrameSize-payloadSize {
		return Frame{}, errorf(KindMalformedFrame, "%s frame declares %d extended header and %d payload bytes, maximum %d",
			frameType, extendedSize, payloadSize, maxFrameSize)
	}

	frame := Frame{Type: frameType}
	if extendedSize > 0 {
		frame.ExtendedHeader = make([]byte, extendedSize)
		if bytesRead, err := io.ReadFull(r, frame.ExtendedHeader); err != nil {
			return Frame{}, truncated(err, frameType, "extended header", uint64(bytesRead), uint64(extendedSize))
		}
	}
	if payloadSize > 0 {
		var payload bytes.Buffer
		payload.Grow(int(min(payloadSize, 64*1024)))
		bytesRead, err := io.CopyN(&payload, r, int64(payloadSize))
		if err != nil {
			return Frame{}, truncated(err, frameType, "payload", uint64(bytesRead), payloadSize)
		}
		frame.Payload = payload.Bytes()
	}
	return frame, nil
}

// truncated classifies a failed body read: running out of input is a
// protocol violation, anything else is a transport error.
func truncated(err error, frameType FrameType, part string, got, want uint64) error {
	if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
		return errorf(KindMalformedFrame, "%s frame %s truncated after %d of %d bytes", frameType, part, got, want)
	}
	return fmt.Errorf("reading %s frame %s: %w", frameType, part, err)
}
