// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fingerprint

// Digest computes a fingerprint incrementally. Any sequence of Write
// calls yields the same result as [Sum] over the concatenated input.
// Digest implements hash.Hash.
//
// A Digest is not safe for concurrent use.
type Digest struct {
	seed1 uint64
	seed2 uint64

	// state is the long-message state, valid once at least
	// bufferSize bytes have been written.
	state [stateWords]uint64

	// buffer holds bytes not yet folded into state. Before the
	// first bufferSize bytes arrive it holds the whole message.
	buffer   [bufferSize]byte
	buffered int

	// length is the total number of bytes written.
	length uint64
}

// New returns a streaming digest under the default seeds.
func New() *Digest {
	return NewHasher(DefaultSeed1, DefaultSeed2).New()
}

// Reset discards all written data.
func (d *Digest) Reset() {
	d.state = [stateWords]uint64{}
	d.buffered = 0
	d.length = 0
}

// Write absorbs p. It never returns an error.
func (d *Digest) Write(p []byte) (int, error) {
	written := len(p)

	if d.buffered+len(p) < bufferSize {
		copy(d.buffer[d.buffered:], p)
		d.buffered += len(p)
		d.length += uint64(len(p))
		return written, nil
	}

	if d.length < bufferSize {
		d.state = seedState(d.seed1, d.seed2)
	}
	d.length += uint64(len(p))

	var block [stateWords]uint64
	if d.buffered > 0 {
		prefix := bufferSize - d.buffered
		copy(d.buffer[d.buffered:], p[:prefix])
		loadBlock(&block, d.buffer[:blockSize])
		mix(&block, &d.state)
		loadBlock(&block, d.buffer[blockSize:])
		mix(&block, &d.state)
		p = p[prefix:]
	}

	for len(p) >= blockSize {
		loadBlock(&block, p)
		mix(&block, &d.state)
		p = p[blockSize:]
	}

	d.buffered = copy(d.buffer[:], p)
	return written, nil
}

// Fingerprint returns the fingerprint of everything written so far.
// It does not change the digest state.
func (d *Digest) Fingerprint() Fingerprint {
	if d.length < bufferSize {
		return fromWords(short(d.buffer[:d.buffered], d.seed1, d.seed2))
	}

	state := d.state
	tail := d.buffer[:d.buffered]
	if len(tail) >= blockSize {
		var block [stateWords]uint64
		loadBlock(&block, tail)
		mix(&block, &state)
		tail = tail[blockSize:]
	}
	finish(&state, tail)
	return fromWords(state[0], state[1])
}

// Sum appends the canonical fingerprint bytes to b.
func (d *Digest) Sum(b []byte) []byte {
	fingerprint := d.Fingerprint()
	return append(b, fingerprint[:]...)
}

// Size returns the fingerprint length in bytes.
func (d *Digest) Size() int { return Size }

// BlockSize returns the long-message block size.
func (d *Digest) BlockSize() int { return blockSize }
