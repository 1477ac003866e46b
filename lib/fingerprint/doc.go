// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fingerprint computes the 128-bit content fingerprint used as
// chunk identity in the incremental file transfer protocol.
//
// The hash is SpookyHash V2 (Bob Jenkins, public domain): a fast,
// non-cryptographic mixing hash with three regimes. Inputs shorter
// than 192 bytes go through a 4-word state consuming 32-byte blocks.
// Longer inputs use a 12-word state consuming 96-byte blocks, a padded
// final block, and three finishing passes. The empty input resolves to
// a constant computed once at package initialization.
//
// Fingerprints must be byte-identical to those produced by every other
// implementation that participates in the protocol, because hosts and
// clients compare chunk ids as opaque strings. Two details are fixed by
// that contract and must not change:
//
//   - message words are loaded little-endian, and
//   - the canonical 16-byte form is word one followed by word two, each
//     serialized little-endian, regardless of host byte order.
//
// The canonical string form is standard padded base64 of those 16
// bytes (24 characters), which is the chunk id carried in JSON
// messages. Chunk frames carry the raw 16 bytes.
//
// Fingerprints are not collision resistant against an adversary and
// must never be used for authentication.
package fingerprint
