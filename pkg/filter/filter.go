// Package filter implements the probabilistic membership accelerator that sits in front of every SSTable.
// It never produces a false negative: any key that was ever added will always test positive. It may produce
// false positives at a rate governed by the bit-vector size (M) and the number of hash probes (K); both are
// fixed for the lifetime of the filter and supplied by configuration.
package filter

import (
	"github.com/bits-and-blooms/bloom/v3"
)

// Membership is a fixed-size, double-hashed bit-vector set of keys. It is associated with exactly one SSTable
// and lives as long as that table. Add and MightContain may be called concurrently from a single owning
// component; the owner (the SSTable) is responsible for serializing mutation against its own index.
type Membership struct {
	bits *bloom.BloomFilter
	m    uint
	k    uint
}

// New constructs a Membership with a bit vector of size numBits (M) and numHashes (K) probes per key. The
// underlying implementation derives its K probe positions from two independent hashes of the key combined via
// double hashing (h1 + i*h2 mod M), so filter behavior does not depend on a seeded PRNG or host stdlib details.
func New(numBits, numHashes uint) *Membership {
	if numBits == 0 {
		numBits = 1
	}
	if numHashes == 0 {
		numHashes = 1
	}
	return &Membership{bits: bloom.New(numBits, numHashes), m: numBits, k: numHashes}
}

// Add records key as a member. After Add returns, MightContain(key) is guaranteed to be true for the lifetime
// of this filter (no false negatives).
func (f *Membership) Add(key []byte) {
	f.bits.Add(key)
}

// MightContain reports whether key may be a member. A false result means key was definitely never added. A
// true result may be a false positive at a rate determined by M and K.
func (f *Membership) MightContain(key []byte) bool {
	return f.bits.Test(key)
}

// Clear resets the filter to its empty state, keeping the same M and K.
func (f *Membership) Clear() {
	f.bits.ClearAll()
}

// NumBits returns M, the size of the underlying bit vector.
func (f *Membership) NumBits() uint {
	return f.m
}

// NumHashes returns K, the number of hash probes performed per key.
func (f *Membership) NumHashes() uint {
	return f.k
}

// EstimatedFalsePositiveRate returns the filter's current estimated false-positive rate given how many keys
// have been added so far. It is exposed for the observability layer only; it never affects correctness.
func (f *Membership) EstimatedFalsePositiveRate(keysAdded uint) float64 {
	return f.bits.EstimateFalsePositiveRate(keysAdded)
}
