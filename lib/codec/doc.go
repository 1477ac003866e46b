// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the shared CBOR configuration for on-disk
// formats, currently the snapshot bundle.
//
// Protocol messages on the wire are JSON, as the chunked-file
// protocol requires. CBOR is used only where this module owns the
// format. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items, so the same logical data always produces
// identical bytes and a digest over the encoding is stable.
//
// Types implementing encoding.TextMarshaler, such as
// fingerprint.Fingerprint, encode as CBOR text strings.
package codec
