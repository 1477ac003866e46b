// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"errors"
	"fmt"
	"strings"

	"github.com/microsoft/wopi-validator-core-sub000/lib/chunked"
)

// OffsetIndexSuffix is appended to a resource id to name its offset
// index.
const OffsetIndexSuffix = ".offsets"

// ErrNotFound is returned when a resource or its offset index does
// not exist.
var ErrNotFound = errors.New("resource not found")

// Compile-time checks.
var (
	_ chunked.ResourceAccess = (*FS)(nil)
	_ chunked.ResourceAccess = (*S3)(nil)
	_ chunked.ResourceAccess = (*Memory)(nil)
)

// ValidateID checks that id is usable as a relative path or object
// key: non-empty, slash-separated, with no empty, "." or ".."
// segments.
func ValidateID(id string) error {
	if id == "" {
		return errors.New("resource id is empty")
	}
	for _, segment := range strings.Split(id, "/") {
		switch segment {
		case "", ".", "..":
			return fmt.Errorf("resource id %q has an invalid path segment %q", id, segment)
		}
	}
	if strings.HasSuffix(id, OffsetIndexSuffix) {
		return fmt.Errorf("resource id %q ends with the offset index suffix", id)
	}
	return nil
}
