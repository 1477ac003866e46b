// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wopihost

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/microsoft/wopi-validator-core-sub000/lib/chunked"
)

var (
	// ErrFileNotFound is returned for operations on unknown files.
	ErrFileNotFound = errors.New("file not found")

	// ErrStreamNotFound is returned when a GET names a stream the
	// file does not have.
	ErrStreamNotFound = chunked.ErrStreamNotFound
)

// LockMismatchError is returned when a PUT's lock does not match the
// file's current lock.
type LockMismatchError struct {
	FileID  string
	Current string
}

func (err *LockMismatchError) Error() string {
	return fmt.Sprintf("file %q is locked with a different lock", err.FileID)
}

// Config configures a Host.
type Config struct {
	// AccessToken, when set, must match every request's access_token.
	AccessToken string

	// MaxFrameSize bounds parsed frames. Zero means the parser default.
	MaxFrameSize uint64

	// MaxBodySize bounds request bodies. Zero means 1 GiB.
	MaxBodySize int64

	// Logger defaults to discarding.
	Logger *slog.Logger
}

// Host holds files in memory. It is safe for concurrent use.
type Host struct {
	accessToken string
	maxBodySize int64
	transfer    *chunked.Transfer
	logger      *slog.Logger

	mutex sync.Mutex
	files map[string]*file
}

type file struct {
	streams    map[string]*chunked.ChunkedStream
	properties []chunked.ContentProperty
	lock       string
	version    int
}

// New returns an empty host.
func New(config Config) *Host {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	maxBodySize := config.MaxBodySize
	if maxBodySize == 0 {
		maxBodySize = 1 << 30
	}
	return &Host{
		accessToken: config.AccessToken,
		maxBodySize: maxBodySize,
		transfer: chunked.NewTransfer(chunked.TransferConfig{
			Logger:       logger,
			MaxFrameSize: config.MaxFrameSize,
		}),
		logger: logger,
		files:  make(map[string]*file),
	}
}

// fileLocked returns the named file, creating it if create is set.
// The caller holds h.mutex.
func (h *Host) fileLocked(fileID string, create bool) (*file, error) {
	existing, exists := h.files[fileID]
	if exists {
		return existing, nil
	}
	if !create {
		return nil, fmt.Errorf("%w: %q", ErrFileNotFound, fileID)
	}
	created := &file{streams: make(map[string]*chunked.ChunkedStream)}
	h.files[fileID] = created
	return created, nil
}

// --- Seeding and inspection ---

// SetStream stores stream as fileID's streamID, creating the file if
// needed.
func (h *Host) SetStream(fileID, streamID string, stream *chunked.ChunkedStream) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	target, _ := h.fileLocked(fileID, true)
	target.streams[streamID] = stream
	target.version++
}

// SetProperty stores or replaces a content property.
func (h *Host) SetProperty(fileID string, property chunked.ContentProperty) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	target, _ := h.fileLocked(fileID, true)
	target.properties = upsertProperty(target.properties, property)
}

// SetLock sets or, with an empty lock, clears the file's lock.
func (h *Host) SetLock(fileID, lock string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	target, _ := h.fileLocked(fileID, true)
	target.lock = lock
}

// Stream returns the reconstructed content of a stream.
func (h *Host) Stream(fileID, streamID string) ([]byte, bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	target, exists := h.files[fileID]
	if !exists {
		return nil, false
	}
	stream, exists := target.streams[streamID]
	if !exists {
		return nil, false
	}
	content, err := chunked.ReconstructBytes(stream.IDs, stream.Chunks)
	if err != nil {
		return nil, false
	}
	return content, true
}

// Properties returns a copy of the file's content properties.
func (h *Host) Properties(fileID string) []chunked.ContentProperty {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	target, exists := h.files[fileID]
	if !exists {
		return nil
	}
	return slices.Clone(target.properties)
}

// Version returns the file's content version, which increments on
// every content change.
func (h *Host) Version(fileID string) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	target, exists := h.files[fileID]
	if !exists {
		return 0
	}
	return target.version
}

// --- Protocol operations ---

// GetChunkedFile answers a download request body for fileID.
func (h *Host) GetChunkedFile(fileID string, body io.Reader) ([]byte, error) {
	request, err := h.transfer.ParseDownloadRequest(body)
	if err != nil {
		return nil, err
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	target, err := h.fileLocked(fileID, false)
	if err != nil {
		return nil, err
	}

	streams := make([]chunked.HostStream, 0, len(target.streams))
	for _, streamID := range sortedKeys(target.streams) {
		streams = append(streams, chunked.HostStream{StreamID: streamID, Stream: target.streams[streamID]})
	}
	response, err := chunked.BuildDownloadResponse(request, streams, target.properties)
	if err != nil {
		return nil, err
	}
	h.logger.Info("served chunked download",
		"file_id", fileID,
		"filters", len(request.ContentFilters),
		"response_bytes", len(response),
	)
	return response, nil
}

// PutResult describes an accepted upload.
type PutResult struct {
	Version        int
	ContentChanged bool
	ReceivedChunks int
	ReceivedBytes  uint64
}

// PutChunkedFile applies an upload body to fileID, creating the file
// if it does not exist. A file holding a lock accepts only uploads
// carrying the same lock. The file is unchanged when any part of the
// upload is rejected.
func (h *Host) PutChunkedFile(fileID string, body io.Reader, lock string) (*PutResult, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading upload body: %w", err)
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	target, exists := h.files[fileID]
	if !exists {
		target = &file{streams: make(map[string]*chunked.ChunkedStream)}
	}
	if target.lock != "" && target.lock != lock {
		return nil, &LockMismatchError{FileID: fileID, Current: target.lock}
	}

	hostChunks := target.chunks()
	upload, err := h.transfer.ParseUploadBody(bytes.NewReader(data), hostChunks)
	if err != nil {
		return nil, err
	}

	updated := make(map[string]*chunked.ChunkedStream, len(upload.Signatures))
	changed := false
	for _, signature := range upload.Signatures {
		stream, err := upload.StreamChunks(signature.StreamID, hostChunks)
		if err != nil {
			return nil, err
		}
		updated[signature.StreamID] = stream
		previous, exists := target.streams[signature.StreamID]
		if !exists || !slices.Equal(previous.IDs, stream.IDs) {
			changed = true
		}
	}

	for streamID, stream := range updated {
		target.streams[streamID] = stream
	}
	target.properties = applyRetention(target.properties, upload.Properties, changed)
	if changed {
		target.version++
	}
	h.files[fileID] = target

	h.logger.Info("applied chunked upload",
		"file_id", fileID,
		"streams", len(upload.Signatures),
		"content_changed", changed,
		"received_chunks", len(upload.Received),
		"received_bytes", upload.Received.TotalBytes(),
		"session_token", upload.SessionToken != "",
		"version", target.version,
	)
	return &PutResult{
		Version:        target.version,
		ContentChanged: changed,
		ReceivedChunks: len(upload.Received),
		ReceivedBytes:  upload.Received.TotalBytes(),
	}, nil
}

// chunks returns every chunk the file holds, across streams.
func (f *file) chunks() chunked.ChunkMap {
	maps := make([]chunked.ChunkMap, 0, len(f.streams))
	for _, stream := range f.streams {
		maps = append(maps, stream.Chunks)
	}
	return chunked.Union(maps...)
}

// applyRetention merges sent into existing. When content changed,
// existing DeleteOnContentChange properties not in sent are dropped
// first.
func applyRetention(existing, sent []chunked.ContentProperty, contentChanged bool) []chunked.ContentProperty {
	resent := make(map[string]bool, len(sent))
	for _, property := range sent {
		resent[property.Name] = true
	}

	kept := make([]chunked.ContentProperty, 0, len(existing)+len(sent))
	for _, property := range existing {
		if contentChanged && property.Retention == chunked.RetentionDeleteOnContentChange && !resent[property.Name] {
			continue
		}
		kept = append(kept, property)
	}
	for _, property := range sent {
		kept = upsertProperty(kept, property)
	}
	return kept
}

func upsertProperty(properties []chunked.ContentProperty, property chunked.ContentProperty) []chunked.ContentProperty {
	if property.Retention == "" {
		property.Retention = chunked.RetentionKeepOnContentChange
	}
	for i := range properties {
		if properties[i].Name == property.Name {
			properties[i] = property
			return properties
		}
	}
	return append(properties, property)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
