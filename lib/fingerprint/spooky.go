// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fingerprint

import (
	"encoding/binary"
	"math/bits"
)

// SpookyHash V2 parameters. These are protocol constants: changing
// any of them changes every chunk id.
const (
	// stateWords is the number of 64-bit words in the long-message
	// state.
	stateWords = 12

	// blockSize is the long-message block size in bytes.
	blockSize = stateWords * 8

	// bufferSize is the threshold below which the short-message path
	// is used, and the size of the streaming buffer.
	bufferSize = 2 * blockSize

	// spookyConst is the fixed odd constant mixed into unused state
	// words. It is not a seed.
	spookyConst uint64 = 0xdeadbeefdeadbeef
)

var mixRotations = [stateWords]int{11, 32, 43, 31, 17, 28, 39, 57, 55, 54, 22, 46}

var endRotations = [stateWords]int{44, 15, 34, 21, 38, 33, 10, 13, 38, 53, 42, 54}

var shortMixRotations = [12]int{50, 52, 30, 41, 54, 48, 38, 37, 62, 34, 5, 36}

var shortEndRotations = [11]int{15, 52, 26, 51, 28, 9, 47, 54, 32, 25, 63}

// hash128 is the one-shot hash over a complete message.
func hash128(message []byte, seed1, seed2 uint64) (uint64, uint64) {
	if len(message) < bufferSize {
		return short(message, seed1, seed2)
	}

	state := seedState(seed1, seed2)
	var block [stateWords]uint64
	for len(message) >= blockSize {
		loadBlock(&block, message)
		mix(&block, &state)
		message = message[blockSize:]
	}

	finish(&state, message)
	return state[0], state[1]
}

// seedState spreads the two seeds and the constant across the long
// state: words 0,3,6,9 take seed1; 1,4,7,10 take seed2; the rest take
// spookyConst.
func seedState(seed1, seed2 uint64) [stateWords]uint64 {
	var state [stateWords]uint64
	for i := 0; i < stateWords; i += 3 {
		state[i] = seed1
		state[i+1] = seed2
		state[i+2] = spookyConst
	}
	return state
}

// finish pads the final partial block (fewer than blockSize bytes),
// records its length in the last byte, and applies the end rounds.
func finish(state *[stateWords]uint64, tail []byte) {
	var last [blockSize]byte
	copy(last[:], tail)
	last[blockSize-1] = byte(len(tail))

	var block [stateWords]uint64
	loadBlock(&block, last[:])
	end(&block, state)
}

func loadBlock(block *[stateWords]uint64, data []byte) {
	for i := range block {
		block[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
}

// mix folds one 96-byte block into the long state.
func mix(data, state *[stateWords]uint64) {
	for i := 0; i < stateWords; i++ {
		state[i] += data[i]
		state[(i+2)%stateWords] ^= state[(i+10)%stateWords]
		state[(i+11)%stateWords] ^= state[i]
		state[i] = bits.RotateLeft64(state[i], mixRotations[i])
		state[(i+11)%stateWords] += state[(i+1)%stateWords]
	}
}

func endPartial(state *[stateWords]uint64) {
	for i := 0; i < stateWords; i++ {
		state[(i+11)%stateWords] += state[(i+1)%stateWords]
		state[(i+2)%stateWords] ^= state[(i+11)%stateWords]
		state[(i+1)%stateWords] = bits.RotateLeft64(state[(i+1)%stateWords], endRotations[i])
	}
}

// end absorbs the padded final block and runs the finishing pass
// three times, which is what distinguishes V2 from V1.
func end(data, state *[stateWords]uint64) {
	for i := range state {
		state[i] += data[i]
	}
	endPartial(state)
	endPartial(state)
	endPartial(state)
}

// short hashes messages shorter than bufferSize with a 4-word state.
func short(message []byte, seed1, seed2 uint64) (uint64, uint64) {
	length := len(message)
	remainder := length % 32
	h := [4]uint64{seed1, seed2, spookyConst, spookyConst}

	if length > 15 {
		for len(message) >= 32 {
			h[2] += binary.LittleEndian.Uint64(message[0:])
			h[3] += binary.LittleEndian.Uint64(message[8:])
			shortMix(&h)
			h[0] += binary.LittleEndian.Uint64(message[16:])
			h[1] += binary.LittleEndian.Uint64(message[24:])
			message = message[32:]
		}

		if remainder >= 16 {
			h[2] += binary.LittleEndian.Uint64(message[0:])
			h[3] += binary.LittleEndian.Uint64(message[8:])
			shortMix(&h)
			message = message[16:]
			remainder -= 16
		}
	}

	// The last 0..15 bytes, plus the total length in the top byte.
	h[3] += uint64(length) << 56
	switch remainder {
	case 15:
		h[3] += uint64(message[14]) << 48
		fallthrough
	case 14:
		h[3] += uint64(message[13]) << 40
		fallthrough
	case 13:
		h[3] += uint64(message[12]) << 32
		fallthrough
	case 12:
		h[3] += uint64(binary.LittleEndian.Uint32(message[8:]))
		h[2] += binary.LittleEndian.Uint64(message[0:])
	case 11:
		h[3] += uint64(message[10]) << 16
		fallthrough
	case 10:
		h[3] += uint64(message[9]) << 8
		fallthrough
	case 9:
		h[3] += uint64(message[8])
		fallthrough
	case 8:
		h[2] += binary.LittleEndian.Uint64(message[0:])
	case 7:
		h[2] += uint64(message[6]) << 48
		fallthrough
	case 6:
		h[2] += uint64(message[5]) << 40
		fallthrough
	case 5:
		h[2] += uint64(message[4]) << 32
		fallthrough
	case 4:
		h[2] += uint64(binary.LittleEndian.Uint32(message[0:]))
	case 3:
		h[2] += uint64(message[2]) << 16
		fallthrough
	case 2:
		h[2] += uint64(message[1]) << 8
		fallthrough
	case 1:
		h[2] += uint64(message[0])
	case 0:
		h[2] += spookyConst
		h[3] += spookyConst
	}

	shortEnd(&h)
	return h[0], h[1]
}

// shortMix is twelve add-rotate-xor steps over the 4-word state. Step
// k rotates word (k+2)%4, adds word (k+3)%4 into it, and xors the
// result into word k%4.
func shortMix(h *[4]uint64) {
	for k, rotation := range shortMixRotations {
		target := (k + 2) % 4
		h[target] = bits.RotateLeft64(h[target], rotation)
		h[target] += h[(k+3)%4]
		h[k%4] ^= h[target]
	}
}

// shortEnd is the eleven-step finishing mix for the short path.
func shortEnd(h *[4]uint64) {
	for k, rotation := range shortEndRotations {
		source := (k + 2) % 4
		target := (k + 3) % 4
		h[target] ^= h[source]
		h[source] = bits.RotateLeft64(h[source], rotation)
		h[target] += h[source]
	}
}
