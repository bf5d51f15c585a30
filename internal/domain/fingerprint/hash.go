// Package fingerprint computes the content fingerprints used to reject
// exact and near-duplicate articles before they reach embedding and
// clustering: a content hash for exact matches and a 64-bit simhash for
// near matches under Hamming distance.
package fingerprint

import "golang.org/x/crypto/blake2b"

// ContentHash returns the first 8 bytes of the blake2b-256 digest of text.
// Truncating to 8 bytes keeps the exact-duplicate lookup column narrow
// while remaining collision-safe for the corpus sizes this pipeline runs
// against.
func ContentHash(text string) []byte {
	sum := blake2b.Sum256([]byte(text))
	hash := make([]byte, 8)
	copy(hash, sum[:8])
	return hash
}
