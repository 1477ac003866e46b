// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wopihost is an in-memory WOPI host that speaks the chunked
// file protocol. It backs loopback tests and the serve command.
//
// Each file is a set of named streams, stored chunked, plus content
// properties and an optional lock. PUT_CHUNKED_FILE reconstructs the
// uploaded streams from the body's chunks and the chunks the file
// already holds; when content changes, properties marked
// DeleteOnContentChange that the upload did not re-send are dropped.
// GET_CHUNKED_FILE answers with signatures and the chunks the client
// does not already know.
package wopihost
