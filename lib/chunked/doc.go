// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chunked implements incremental file transfer for the WOPI
// chunked-file protocol: a client uploads or downloads a file by
// exchanging only the chunks the other side lacks, identified by
// content fingerprint rather than byte offset.
//
// A body is a sequence of binary frames. Each frame has a 16-byte
// big-endian header (type uint32, extended header size uint32,
// payload size uint64), an optional extended header, and a payload:
//
//	[MessageJSON][Chunk]...[Chunk][End]
//
// The message frame comes first and carries a JSON document listing
// each stream's complete chunk signature and any content properties.
// Chunk frames carry chunk bytes with the chunk's 16-byte fingerprint
// (see package fingerprint) as extended header; every chunk frame is
// verified on read. The end frame is empty and nothing may follow it.
//
// Content is split into chunks by one of two schemes. [FullFile]
// makes the whole stream a single chunk. [ZipChunker] splits a
// resource at boundaries listed in a companion offset index, so an
// edit to one zip entry changes only that entry's chunk. [Chunker]
// selects the strategy from the [Content] variant: streams chunk as
// FullFile, resource ids as Zip.
//
// The upload path is [ComputeDelta] per stream, then a [Builder].
// The download path is a [StreamReader], then [Reconstruct] over the
// union of received and already-known chunks. [Transfer] wraps both
// directions for client and host.
//
// Protocol violations are *[Error] values carrying an [ErrorKind].
// Every violation aborts the transfer: there is no partial success.
// Nothing in this package keeps state between transfers.
package chunked
