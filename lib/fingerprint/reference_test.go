// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fingerprint

import (
	"testing"

	spooky "github.com/dgryski/go-spooky"
)

// referenceSum hashes data with an independent SpookyHash V2
// implementation.
func referenceSum(data []byte, seed1, seed2 uint64) (uint64, uint64) {
	word1, word2 := seed1, seed2
	spooky.Hash128(data, &word1, &word2)
	return word1, word2
}

func TestSumMatchesReferenceImplementation(t *testing.T) {
	seeds := []struct{ seed1, seed2 uint64 }{
		{DefaultSeed1, DefaultSeed2},
		{1, 2},
		{0xdeadbeefcafef00d, 0x0123456789abcdef},
	}

	for _, seed := range seeds {
		hasher := NewHasher(seed.seed1, seed.seed2)
		for length := range 1200 {
			data := patternBytes(length)
			want1, want2 := referenceSum(data, seed.seed1, seed.seed2)
			got1, got2 := hasher.Sum(data).Words()
			if got1 != want1 || got2 != want2 {
				t.Fatalf("seeds %#x/%#x length %d: words = %#x %#x, want %#x %#x",
					seed.seed1, seed.seed2, length, got1, got2, want1, want2)
			}
		}
	}
}

func TestDigestMatchesReferenceImplementation(t *testing.T) {
	data := patternBytes(5000)
	want1, want2 := referenceSum(data, 7, 11)

	for _, split := range []int{1, 13, 96, 192, 1000} {
		digest := NewHasher(7, 11).New()
		for offset := 0; offset < len(data); offset += split {
			digest.Write(data[offset:min(offset+split, len(data))])
		}
		got1, got2 := digest.Fingerprint().Words()
		if got1 != want1 || got2 != want2 {
			t.Errorf("split %d: words = %#x %#x, want %#x %#x", split, got1, got2, want1, want2)
		}
	}
}
