// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chunked

import (
	"io"
	"log/slog"
)

// TransferConfig holds the dependencies of a Transfer.
type TransferConfig struct {
	// Chunker splits content for uploads. Nil means FullFile only.
	Chunker *Chunker

	// Logger receives per-stream debug records. Nil discards.
	Logger *slog.Logger

	// MaxFrameSize bounds a single frame when parsing bodies. Zero
	// means DefaultMaxFrameSize.
	MaxFrameSize uint64
}

// Transfer runs the client and host sides of chunked transfers. It
// holds no per-transfer state: each call is independent, and a
// Transfer may be used from multiple goroutines.
type Transfer struct {
	chunker      *Chunker
	logger       *slog.Logger
	maxFrameSize uint64
}

// NewTransfer returns a Transfer for config.
func NewTransfer(config TransferConfig) *Transfer {
	chunker := config.Chunker
	if chunker == nil {
		chunker = NewChunker(nil)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	maxFrameSize := config.MaxFrameSize
	if maxFrameSize == 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Transfer{
		chunker:      chunker,
		logger:       logger,
		maxFrameSize: maxFrameSize,
	}
}

// readBody reads the message frame and the chunk frames that follow
// it. Chunk frames are verified by the stream reader and collected
// into a map; chunk range frames are counted and skipped.
func (t *Transfer) readBody(r io.Reader) (message []byte, received ChunkMap, skipped int, err error) {
	reader := NewStreamReader(r, t.maxFrameSize)
	received = make(ChunkMap)
	for {
		frame, err := reader.Next()
		if err == io.EOF {
			return message, received, skipped, nil
		}
		if err != nil {
			return nil, nil, 0, err
		}
		switch frame.Type {
		case FrameMessage:
			message = frame.Payload
		case FrameChunk:
			id, _ := frame.ChunkID()
			received[id] = Chunk{id: id, data: frame.Payload}
		case FrameChunkRange:
			skipped++
			t.logger.Debug("skipping chunk range frame",
				"extended_header_bytes", len(frame.ExtendedHeader),
				"payload_bytes", len(frame.Payload),
			)
		}
	}
}
