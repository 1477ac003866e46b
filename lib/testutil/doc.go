// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the chunked
// transfer packages.
//
// [StoredZip] builds zip archives whose entries are stored
// uncompressed, so entry data offsets and chunk boundaries are
// predictable. [WriteFile] writes a fixture into a test directory.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with time.After fallback) so that individual
// tests do not need direct time.After calls.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
