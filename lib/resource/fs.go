// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/microsoft/wopi-validator-core-sub000/lib/chunked"
)

// FS serves resources from a billy filesystem.
type FS struct {
	filesystem billy.Filesystem
}

// NewFS returns a store over filesystem.
func NewFS(filesystem billy.Filesystem) *FS {
	return &FS{filesystem: filesystem}
}

// NewDirectory returns a store over the directory root on disk.
func NewDirectory(root string) *FS {
	return NewFS(osfs.New(root))
}

// OpenResource opens the resource bytes.
func (f *FS) OpenResource(_ context.Context, resourceID string) (io.ReadCloser, error) {
	return f.open(resourceID, resourceID)
}

// OpenOffsetIndex opens the resource's offset index.
func (f *FS) OpenOffsetIndex(_ context.Context, resourceID string) (io.ReadCloser, error) {
	return f.open(resourceID, resourceID+OffsetIndexSuffix)
}

func (f *FS) open(resourceID, name string) (io.ReadCloser, error) {
	if err := ValidateID(resourceID); err != nil {
		return nil, err
	}
	file, err := f.filesystem.Open(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	return file, nil
}

// Put stores a resource and its offset index.
func (f *FS) Put(resourceID string, data []byte, offsets []uint64) error {
	if err := ValidateID(resourceID); err != nil {
		return err
	}
	if err := chunked.ValidateOffsets(offsets); err != nil {
		return err
	}
	if directory := path.Dir(resourceID); directory != "." {
		if err := f.filesystem.MkdirAll(directory, 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", resourceID, err)
		}
	}
	if err := util.WriteFile(f.filesystem, resourceID, data, 0o644); err != nil {
		return fmt.Errorf("writing resource %s: %w", resourceID, err)
	}
	return WriteOffsetIndex(f.filesystem, resourceID, offsets)
}

// WriteOffsetIndex writes offsets as the offset index of resourceID
// on filesystem.
func WriteOffsetIndex(filesystem billy.Filesystem, resourceID string, offsets []uint64) error {
	file, err := filesystem.Create(resourceID + OffsetIndexSuffix)
	if err != nil {
		return fmt.Errorf("creating offset index for %s: %w", resourceID, err)
	}
	if err := chunked.FormatOffsetIndex(file, offsets); err != nil {
		file.Close()
		return fmt.Errorf("writing offset index for %s: %w", resourceID, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing offset index for %s: %w", resourceID, err)
	}
	return nil
}
