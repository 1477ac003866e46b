// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package resource provides the resource stores behind Zip chunking.
//
// Each resource is a byte stream plus an offset index listing its
// chunk boundaries, stored side by side: the resource under its id
// and the index under the id with [OffsetIndexSuffix] appended.
// Three stores implement chunked.ResourceAccess:
//
//   - [FS] reads from a go-billy filesystem (a directory on disk in
//     production, memfs in tests).
//   - [S3] reads objects from an S3 bucket under a key prefix.
//   - [Memory] holds resources in process, for content prepared on
//     the fly such as a local zip file being uploaded.
//
// [ZipOffsets] derives an offset index from a zip archive's entry
// layout, so each entry's data begins a new chunk.
package resource
