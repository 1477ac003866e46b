// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fingerprint

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// Size is the length of a fingerprint in bytes.
const Size = 16

// EncodedLen is the length of the base64 string form.
const EncodedLen = 24

// Default seeds. Every participant in the protocol hashes with these,
// so they are as much a part of the wire contract as the algorithm.
const (
	DefaultSeed1 uint64 = 0
	DefaultSeed2 uint64 = 0
)

// Fingerprint is a 128-bit content fingerprint in canonical byte
// order: word one then word two, each little-endian.
type Fingerprint [Size]byte

// emptyFingerprint is the fingerprint of the zero-length input under
// the default seeds.
var emptyFingerprint = fromWords(hash128(nil, DefaultSeed1, DefaultSeed2))

// Sum returns the fingerprint of data under the default seeds.
func Sum(data []byte) Fingerprint {
	if len(data) == 0 {
		return emptyFingerprint
	}
	return fromWords(hash128(data, DefaultSeed1, DefaultSeed2))
}

// Hasher computes fingerprints under a specific seed pair. The zero
// value is not useful; production code should use [Sum] and [New],
// which apply the default seeds.
type Hasher struct {
	seed1 uint64
	seed2 uint64
}

// NewHasher returns a Hasher for the given seeds.
func NewHasher(seed1, seed2 uint64) Hasher {
	return Hasher{seed1: seed1, seed2: seed2}
}

// Sum returns the fingerprint of data under the hasher's seeds.
func (h Hasher) Sum(data []byte) Fingerprint {
	return fromWords(hash128(data, h.seed1, h.seed2))
}

// New returns a streaming digest under the hasher's seeds.
func (h Hasher) New() *Digest {
	digest := &Digest{seed1: h.seed1, seed2: h.seed2}
	digest.Reset()
	return digest
}

func fromWords(word1, word2 uint64) Fingerprint {
	var fingerprint Fingerprint
	binary.LittleEndian.PutUint64(fingerprint[0:8], word1)
	binary.LittleEndian.PutUint64(fingerprint[8:16], word2)
	return fingerprint
}

// Words returns the two 64-bit result words.
func (f Fingerprint) Words() (uint64, uint64) {
	return binary.LittleEndian.Uint64(f[0:8]), binary.LittleEndian.Uint64(f[8:16])
}

// String returns the base64 chunk id form.
func (f Fingerprint) String() string {
	return base64.StdEncoding.EncodeToString(f[:])
}

// MarshalText implements encoding.TextMarshaler so fingerprints
// serialize as chunk ids in JSON and CBOR.
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fingerprint) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Parse decodes a base64 chunk id.
func Parse(id string) (Fingerprint, error) {
	if len(id) != EncodedLen {
		return Fingerprint{}, fmt.Errorf("chunk id %q is %d characters, want %d", id, len(id), EncodedLen)
	}
	decoded, err := base64.StdEncoding.DecodeString(id)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("parsing chunk id %q: %w", id, err)
	}
	return FromBytes(decoded)
}

// FromBytes converts a raw 16-byte fingerprint, as carried in a chunk
// frame's extended header.
func FromBytes(raw []byte) (Fingerprint, error) {
	var fingerprint Fingerprint
	if len(raw) != Size {
		return fingerprint, fmt.Errorf("fingerprint is %d bytes, want %d", len(raw), Size)
	}
	copy(fingerprint[:], raw)
	return fingerprint, nil
}
