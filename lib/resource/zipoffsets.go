// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"fmt"
	"io"
	"slices"

	"github.com/klauspost/compress/zip"
)

// ZipOffsets derives an offset index from a zip archive: zero, then
// the offset at which each entry's data begins. Each chunk therefore
// holds one entry's data together with the local header of the entry
// after it, and the last chunk runs through the central directory.
// Changing one entry changes its own chunk and, when the entry's size
// changes, shifts nothing else: later chunks keep their content and
// so their ids.
func ZipOffsets(r io.ReaderAt, size int64) ([]uint64, error) {
	archive, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("reading zip archive: %w", err)
	}

	offsets := []uint64{0}
	for _, file := range archive.File {
		offset, err := file.DataOffset()
		if err != nil {
			return nil, fmt.Errorf("locating data of zip entry %q: %w", file.Name, err)
		}
		if offset > 0 && offset < size {
			offsets = append(offsets, uint64(offset))
		}
	}
	slices.Sort(offsets)
	return slices.Compact(offsets), nil
}
