// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chunked

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a protocol violation. Every kind aborts the
// transfer that produced it; nothing in this package retries.
type ErrorKind int

const (
	// KindMalformedFrame covers framing violations: an unknown frame
	// type, a frame sequence out of order, data after the end frame,
	// a body that ends before a declared length is satisfied, or a
	// message frame whose JSON does not decode.
	KindMalformedFrame ErrorKind = iota + 1

	// KindChunkIdentityMismatch means chunk bytes do not fingerprint
	// to the id they were sent or stored under.
	KindChunkIdentityMismatch

	// KindUnknownChunkReference means a signature names a chunk that
	// is neither in the received delta nor among the chunks the
	// caller already knew.
	KindUnknownChunkReference

	// KindUnsupportedChunkingScheme means a scheme tag outside
	// FullFile and Zip.
	KindUnsupportedChunkingScheme

	// KindInvalidOffsetIndex means a Zip offset index that does not
	// parse or disagrees with the resource it describes.
	KindInvalidOffsetIndex
)

func (kind ErrorKind) String() string {
	switch kind {
	case KindMalformedFrame:
		return "malformed frame"
	case KindChunkIdentityMismatch:
		return "chunk identity mismatch"
	case KindUnknownChunkReference:
		return "unknown chunk reference"
	case KindUnsupportedChunkingScheme:
		return "unsupported chunking scheme"
	case KindInvalidOffsetIndex:
		return "invalid offset index"
	default:
		return fmt.Sprintf("error kind %d", int(kind))
	}
}

// Error is a protocol violation with a specific kind. Match kinds
// with errors.Is against the Err* sentinels, or extract the kind
// with [KindOf]:
//
//	if errors.Is(err, chunked.ErrMalformedFrame) { ... }
type Error struct {
	Kind ErrorKind

	// Err describes the specific violation. Nil only for the
	// sentinel values.
	Err error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrMalformedFrame            = &Error{Kind: KindMalformedFrame}
	ErrChunkIdentityMismatch     = &Error{Kind: KindChunkIdentityMismatch}
	ErrUnknownChunkReference     = &Error{Kind: KindUnknownChunkReference}
	ErrUnsupportedChunkingScheme = &Error{Kind: KindUnsupportedChunkingScheme}
	ErrInvalidOffsetIndex        = &Error{Kind: KindInvalidOffsetIndex}
)

func (err *Error) Error() string {
	if err.Err == nil {
		return "chunked: " + err.Kind.String()
	}
	return "chunked: " + err.Kind.String() + ": " + err.Err.Error()
}

func (err *Error) Unwrap() error {
	return err.Err
}

// Is reports whether target is an *Error of the same kind.
func (err *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == err.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or
// zero when err is not a protocol violation.
func KindOf(err error) ErrorKind {
	var protocolError *Error
	if errors.As(err, &protocolError) {
		return protocolError.Kind
	}
	return 0
}

// errorf builds an *Error of the given kind. The format follows
// fmt.Errorf, so %w wraps an underlying cause.
func errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}
