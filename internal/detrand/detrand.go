// Package detrand is the single source of pseudo-randomness for the kernel.
//
// Every draw is a pure function of its inputs: there is no generator to
// advance, so call order and concurrency never change a result. Values are
// hashed with xxhash64 over a fixed little-endian encoding, which makes the
// output identical on every platform.
package detrand

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// PPMScale is the denominator for all probabilities (parts per million).
const PPMScale = 1_000_000

// Hash mixes a sequence of 64-bit words into one 64-bit value.
func Hash(parts ...uint64) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(buf[:], p)
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// Label folds a string into a word usable as a Hash part. The length prefix
// keeps ("ab","c") and ("a","bc") apart when several labels are mixed.
func Label(s string) uint64 {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(s)
	return d.Sum64()
}

// Derive returns a child seed for one consumer of randomness, e.g.
// Derive(seed, "interference", streamLabel). Two different (domain, label)
// pairs never share a stream.
func Derive(seed uint64, domain, label string) uint64 {
	return Hash(seed, Label(domain), Label(label))
}

// UniformPPM draws a value in [0, PPMScale) for (seed, epoch, key, tag).
func UniformPPM(seed, epoch, key, tag uint64) uint32 {
	return uint32(Hash(seed, epoch, key, tag) % PPMScale)
}

// Flip reports whether the draw for (seed, epoch, key, tag) lands below pPPM.
// pPPM = 0 never flips; pPPM >= PPMScale always flips.
func Flip(seed, epoch, key, tag uint64, pPPM uint32) bool {
	return UniformPPM(seed, epoch, key, tag) < pPPM
}

// Rate returns num/den in parts per million, or 0 when den is zero.
func Rate(num, den uint64) uint32 {
	if den == 0 {
		return 0
	}
	return uint32(num * PPMScale / den)
}
