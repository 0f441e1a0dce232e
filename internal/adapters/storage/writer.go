package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// hashingWriter forwards writes to w while feeding a SHA256 and counting
// the bytes that made it through.
type hashingWriter struct {
	w io.Writer
	h hash.Hash
	n int64
}

func newHashingWriter(w io.Writer) *hashingWriter {
	return &hashingWriter{w: w, h: sha256.New()}
}

func (hw *hashingWriter) Write(p []byte) (int, error) {
	n, err := hw.w.Write(p)
	if n > 0 {
		hw.h.Write(p[:n])
		hw.n += int64(n)
	}
	return n, err
}

func (hw *hashingWriter) Hash() string {
	return hex.EncodeToString(hw.h.Sum(nil))
}

func (hw *hashingWriter) Size() int64 {
	return hw.n
}
