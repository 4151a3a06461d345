package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize lowercases text and collapses every whitespace run to a single
// space, dropping leading and trailing whitespace.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Fingerprint is the hex sha256 of the normalized text. Texts that differ
// only in case or whitespace share a fingerprint.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}
