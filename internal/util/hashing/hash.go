package hashing

import (
	"crypto/sha256"
	"encoding/binary"
)

// Bucket maps name onto [0, n) using the leading bytes of its SHA256.
// The result depends only on name and n.
func Bucket(name string, n int) int {
	if n <= 0 {
		return 0
	}
	sum := sha256.Sum256([]byte(name))
	return int(binary.BigEndian.Uint64(sum[:8]) % uint64(n))
}
