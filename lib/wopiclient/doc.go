// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wopiclient carries chunked-file bodies to a WOPI host over
// HTTP.
//
// The chunked-file operations are POSTs to the file's contents
// endpoint, told apart by the X-WOPI-Override header:
//
//	POST {base}/wopi/files/{id}/contents?access_token=...
//	X-WOPI-Override: GET_CHUNKED_FILE | PUT_CHUNKED_FILE
//	Content-Type: application/octet-stream
//
// Bodies are opaque here. Building and parsing them is the job of
// package chunked; this package only moves bytes and turns non-2xx
// responses into [*StatusError].
package wopiclient
