// Package checksum fingerprints ledger files for optimistic concurrency.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Normalize strips ETag decoration (quotes and a weak "W/" prefix) and
// lowercases the digest.
func Normalize(tag string) string {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimPrefix(tag, "W/")
	return strings.ToLower(strings.Trim(tag, `"`))
}

// Matches reports whether a client supplied tag names the given digest. An
// empty tag or "*" matches anything.
func Matches(tag, sum string) bool {
	tag = Normalize(tag)
	return tag == "" || tag == "*" || tag == sum
}
