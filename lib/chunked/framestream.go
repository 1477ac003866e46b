// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chunked

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/microsoft/wopi-validator-core-sub000/lib/fingerprint"
)

// --- Builder ---

// Builder writes a body: one message frame, zero or more chunk frames,
// then the end frame written by Close. Receivers read the message
// before any chunk payload, so the builder refuses any other order.
type Builder struct {
	writer      io.Writer
	wroteHeader bool
	closed      bool
	frames      int
}

// NewBuilder returns a Builder writing to w.
func NewBuilder(w io.Writer) *Builder {
	return &Builder{writer: w}
}

// WriteMessage writes the message frame. It must be called exactly
// once, before any chunk.
func (b *Builder) WriteMessage(message []byte) error {
	if b.closed {
		return errors.New("write to closed frame builder")
	}
	if b.wroteHeader {
		return errors.New("message frame already written")
	}
	if err := WriteFrame(b.writer, MessageFrame(message)); err != nil {
		return err
	}
	b.wroteHeader = true
	b.frames++
	return nil
}

// WriteChunk writes one chunk frame.
func (b *Builder) WriteChunk(chunk Chunk) error {
	return b.WriteFrame(ChunkFrame(chunk))
}

// WriteFrame writes a chunk or chunk-range frame after the message.
func (b *Builder) WriteFrame(frame Frame) error {
	if b.closed {
		return errors.New("write to closed frame builder")
	}
	if !b.wroteHeader {
		return fmt.Errorf("%s frame written before the message frame", frame.Type)
	}
	if frame.Type != FrameChunk && frame.Type != FrameChunkRange {
		return fmt.Errorf("%s frame cannot follow the message frame", frame.Type)
	}
	if err := WriteFrame(b.writer, frame); err != nil {
		return err
	}
	b.frames++
	return nil
}

// Close writes the end frame. The underlying writer is not closed.
func (b *Builder) Close() error {
	if b.closed {
		return nil
	}
	if !b.wroteHeader {
		return errors.New("closing frame builder with no message frame")
	}
	b.closed = true
	return WriteFrame(b.writer, Frame{Type: FrameEnd})
}

// Frames returns the number of frames written, excluding the end frame.
func (b *Builder) Frames() int { return b.frames }

// BuildBody encodes message followed by one frame per chunk, in order,
// and the end frame.
func BuildBody(message []byte, chunks []Chunk) ([]byte, error) {
	var buffer bytes.Buffer
	builder := NewBuilder(&buffer)
	if err := builder.WriteMessage(message); err != nil {
		return nil, err
	}
	for _, chunk := range chunks {
		if err := builder.WriteChunk(chunk); err != nil {
			return nil, err
		}
	}
	if err := builder.Close(); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// --- Stream reader ---

// StreamReader reads a body frame by frame and enforces the stream
// rules: the first frame is the only message frame, message and end
// frames carry no extended header, the end frame is empty, nothing
// follows it, and every chunk frame's payload fingerprints to its
// extended header.
type StreamReader struct {
	reader       io.Reader
	maxFrameSize uint64
	frames       int
	done         bool
}

// NewStreamReader returns a StreamReader over r. A zero maxFrameSize
// means DefaultMaxFrameSize.
func NewStreamReader(r io.Reader, maxFrameSize uint64) *StreamReader {
	return &StreamReader{reader: r, maxFrameSize: maxFrameSize}
}

// Next returns the next frame. After the end frame it returns io.EOF;
// the end frame itself is never returned.
func (s *StreamReader) Next() (Frame, error) {
	if s.done {
		return Frame{}, io.EOF
	}

	frame, err := ReadFrame(s.reader, s.maxFrameSize)
	if err == io.EOF {
		return Frame{}, errorf(KindMalformedFrame, "body ended after %d frames without an end frame", s.frames)
	}
	if err != nil {
		return Frame{}, fmt.Errorf("frame %d: %w", s.frames, err)
	}

	switch frame.Type {
	case FrameMessage:
		if s.frames != 0 {
			return Frame{}, errorf(KindMalformedFrame, "frame %d: message frame after the first frame", s.frames)
		}
		if len(frame.ExtendedHeader) != 0 {
			return Frame{}, errorf(KindMalformedFrame, "message frame has a %d-byte extended header", len(frame.ExtendedHeader))
		}

	case FrameEnd:
		if s.frames == 0 {
			return Frame{}, errorf(KindMalformedFrame, "end frame before any message frame")
		}
		if len(frame.ExtendedHeader) != 0 || len(frame.Payload) != 0 {
			return Frame{}, errorf(KindMalformedFrame, "end frame is not empty (header %d bytes, payload %d bytes)",
				len(frame.ExtendedHeader), len(frame.Payload))
		}
		s.done = true
		if err := s.checkTrailing(); err != nil {
			return Frame{}, err
		}
		return Frame{}, io.EOF

	case FrameChunk:
		if s.frames == 0 {
			return Frame{}, errorf(KindMalformedFrame, "chunk frame before the message frame")
		}
		id, err := frame.ChunkID()
		if err != nil {
			return Frame{}, fmt.Errorf("frame %d: %w", s.frames, err)
		}
		if actual := fingerprint.Sum(frame.Payload); actual != id {
			return Frame{}, errorf(KindChunkIdentityMismatch, "frame %d: chunk sent as %s fingerprints to %s (%d bytes)",
				s.frames, id, actual, len(frame.Payload))
		}

	case FrameChunkRange:
		if s.frames == 0 {
			return Frame{}, errorf(KindMalformedFrame, "chunk range frame before the message frame")
		}
	}

	s.frames++
	return frame, nil
}

// checkTrailing reports data after the end frame.
func (s *StreamReader) checkTrailing() error {
	var probe [1]byte
	for {
		bytesRead, err := s.reader.Read(probe[:])
		if bytesRead > 0 {
			return errorf(KindMalformedFrame, "data after end frame")
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading after end frame: %w", err)
		}
	}
}

// ParseStream reads a whole body and returns its frames in order,
// excluding the end frame.
func ParseStream(r io.Reader, maxFrameSize uint64) ([]Frame, error) {
	reader := NewStreamReader(r, maxFrameSize)
	var frames []Frame
	for {
		frame, err := reader.Next()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
}
