package bloom

import "github.com/cespare/xxhash/v2"

// saltByte distinguishes the second hash pass from the first. Any fixed
// byte works; it only has to make the two digests independent enough
// for Kirsch-Mitzenmacher double hashing.
const saltByte = 0x9e

// hashPair derives two 64-bit digests for key using xxhash. Every
// index function for every tier is then synthesized from these two
// digests instead of running k independent hashes per key.
func hashPair(key []byte) (h1, h2 uint64) {
	h1 = xxhash.Sum64(key)

	salted := make([]byte, len(key)+1)
	salted[0] = saltByte
	copy(salted[1:], key)
	h2 = xxhash.Sum64(salted)
	if h2 == 0 {
		h2 = 1 // avoid degenerating to a single index function
	}
	return h1, h2
}

// index returns the i-th bit position (mod m) for a Kirsch-Mitzenmacher
// double-hashed index function.
func index(h1, h2 uint64, i int, m uint64) uint64 {
	return (h1 + uint64(i)*h2) % m
}
