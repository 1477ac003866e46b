// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package resource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/microsoft/wopi-validator-core-sub000/lib/chunked"
)

// Memory is an in-process resource store. It is safe for concurrent
// use.
type Memory struct {
	mutex     sync.RWMutex
	resources map[string]memoryResource
}

type memoryResource struct {
	data    []byte
	offsets []uint64
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{resources: make(map[string]memoryResource)}
}

// Put stores data with its offset index. The store takes ownership of
// data.
func (m *Memory) Put(resourceID string, data []byte, offsets []uint64) error {
	if err := ValidateID(resourceID); err != nil {
		return err
	}
	if err := chunked.ValidateOffsets(offsets); err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.resources[resourceID] = memoryResource{data: data, offsets: slices.Clone(offsets)}
	return nil
}

// PutZip stores a zip archive with an offset index derived from its
// entry layout.
func (m *Memory) PutZip(resourceID string, archive []byte) error {
	offsets, err := ZipOffsets(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return err
	}
	return m.Put(resourceID, archive, offsets)
}

func (m *Memory) get(resourceID string) (memoryResource, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	resource, exists := m.resources[resourceID]
	if !exists {
		return memoryResource{}, fmt.Errorf("%w: %s", ErrNotFound, resourceID)
	}
	return resource, nil
}

// OpenResource returns a reader over the stored bytes.
func (m *Memory) OpenResource(_ context.Context, resourceID string) (io.ReadCloser, error) {
	resource, err := m.get(resourceID)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(resource.data)), nil
}

// OpenOffsetIndex returns the stored offsets in index text form.
func (m *Memory) OpenOffsetIndex(_ context.Context, resourceID string) (io.ReadCloser, error) {
	resource, err := m.get(resourceID)
	if err != nil {
		return nil, err
	}
	var buffer bytes.Buffer
	if err := chunked.FormatOffsetIndex(&buffer, resource.offsets); err != nil {
		return nil, err
	}
	return io.NopCloser(&buffer), nil
}
