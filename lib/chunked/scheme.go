// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chunked

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Scheme names a chunking strategy on the wire.
type Scheme string

const (
	// SchemeFullFile treats the whole stream as one chunk.
	SchemeFullFile Scheme = "FullFile"

	// SchemeZip splits a resource at boundaries from an out-of-band
	// offset index, typically the entry boundaries of a zip archive.
	SchemeZip Scheme = "Zip"
)

// ParseScheme validates a scheme tag. The empty tag is FullFile.
func ParseScheme(tag string) (Scheme, error) {
	scheme := Scheme(tag).OrDefault()
	if err := scheme.Validate(); err != nil {
		return "", err
	}
	return scheme, nil
}

// OrDefault returns s, or SchemeFullFile when s is empty.
func (s Scheme) OrDefault() Scheme {
	if s == "" {
		return SchemeFullFile
	}
	return s
}

// Validate returns UnsupportedChunkingScheme for tags outside the
// known set.
func (s Scheme) Validate() error {
	switch s {
	case SchemeFullFile, SchemeZip:
		return nil
	default:
		return errorf(KindUnsupportedChunkingScheme, "scheme %q (want %s or %s)", string(s), SchemeFullFile, SchemeZip)
	}
}

// StreamChunker splits a byte stream into chunks.
type StreamChunker interface {
	ChunkStream(r io.Reader) (*ChunkedStream, error)
}

// ResourceChunker splits a resource, named by id, into chunks.
type ResourceChunker interface {
	ChunkResource(ctx context.Context, resourceID string) (*ChunkedStream, error)
}

// contentSource tags which variant a Content holds.
type contentSource int

const (
	contentAbsent contentSource = iota
	contentStream
	contentResource
	contentChunked
)

// Content is the input to chunking: a byte stream (FullFile), a
// resource id (Zip), or an already-chunked stream such as one loaded
// from a snapshot. The zero value is absent content, which chunks to
// nothing; it stands for "no last-known content" in an upload.
type Content struct {
	source     contentSource
	reader     io.Reader
	resourceID string
	chunked    *ChunkedStream
}

// StreamContent is FullFile content read from r.
func StreamContent(r io.Reader) Content {
	return Content{source: contentStream, reader: r}
}

// ResourceContent is Zip content for the given resource id.
func ResourceContent(resourceID string) Content {
	return Content{source: contentResource, resourceID: resourceID}
}

// ChunkedContent is content that has already been chunked.
func ChunkedContent(stream *ChunkedStream) Content {
	return Content{source: contentChunked, chunked: stream}
}

// IsZero reports whether the content is absent.
func (c Content) IsZero() bool { return c.source == contentAbsent }

// Scheme returns the scheme the content chunks under, or "" for
// absent content.
func (c Content) Scheme() Scheme {
	switch c.source {
	case contentStream:
		return SchemeFullFile
	case contentResource:
		return SchemeZip
	case contentChunked:
		if c.chunked != nil {
			return c.chunked.Scheme
		}
	}
	return ""
}

// Chunker dispatches content to the strategy for its variant.
type Chunker struct {
	Stream   StreamChunker
	Resource ResourceChunker
}

// NewChunker returns a Chunker with FullFile for streams and, when
// resources is non-nil, Zip chunking over those resources.
func NewChunker(resources ResourceAccess) *Chunker {
	chunker := &Chunker{Stream: FullFile{}}
	if resources != nil {
		chunker.Resource = &ZipChunker{Resources: resources}
	}
	return chunker
}

// errNoResourceChunker is returned when resource content is chunked by
// a Chunker built without resource access.
var errNoResourceChunker = errors.New("resource content requires a chunker with resource access")

// Chunk splits content with the strategy its variant selects. Absent
// content yields an empty stream.
func (c *Chunker) Chunk(ctx context.Context, content Content) (*ChunkedStream, error) {
	switch content.source {
	case contentAbsent:
		return newChunkedStream(""), nil
	case contentStream:
		return c.Stream.ChunkStream(content.reader)
	case contentResource:
		if c.Resource == nil {
			return nil, errNoResourceChunker
		}
		stream, err := c.Resource.ChunkResource(ctx, content.resourceID)
		if err != nil {
			return nil, fmt.Errorf("chunking resource %q: %w", content.resourceID, err)
		}
		return stream, nil
	case contentChunked:
		if content.chunked == nil {
			return nil, errors.New("chunked content is nil")
		}
		if err := content.chunked.Scheme.Validate(); err != nil {
			return nil, err
		}
		return content.chunked, nil
	default:
		return nil, fmt.Errorf("unknown content source %d", content.source)
	}
}
