// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

// TB is the subset of testing.TB the helpers use.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// Entry is one file of a StoredZip archive.
type Entry struct {
	Name    string
	Content string
}

// StoredZip returns a zip archive holding entries in order, each
// stored without compression and with a zero modification time. Two
// archives whose entries differ only in content of equal length have
// identical local headers.
func StoredZip(t TB, entries ...Entry) []byte {
	t.Helper()
	var buffer bytes.Buffer
	writer := zip.NewWriter(&buffer)
	for _, entry := range entries {
		file, err := writer.CreateHeader(&zip.FileHeader{Name: entry.Name, Method: zip.Store})
		if err != nil {
			t.Fatalf("creating zip entry %s: %v", entry.Name, err)
		}
		if _, err := io.WriteString(file, entry.Content); err != nil {
			t.Fatalf("writing zip entry %s: %v", entry.Name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buffer.Bytes()
}

// WriteFile writes data to dir/name and returns the path.
func WriteFile(t TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}
