package fingerprint

import "math/bits"

// NearDuplicateThreshold is the maximum Hamming distance between two
// simhashes for the corresponding articles to be treated as near-duplicates.
const NearDuplicateThreshold = 3

// HammingDistance64 returns the number of differing bits between a and b.
func HammingDistance64(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// IsNearDuplicate reports whether a and b are within NearDuplicateThreshold
// bits of each other.
func IsNearDuplicate(a, b uint64) bool {
	return HammingDistance64(a, b) <= NearDuplicateThreshold
}
