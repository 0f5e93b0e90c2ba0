// Package cryptox computes the content checksums recorded for uploaded files.
package cryptox

import (
	"encoding/hex"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
)

// NewChecksum returns an unkeyed BLAKE2b-256 hash.
func NewChecksum() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// only returned for keys longer than 64 bytes
		panic(err)
	}
	return h
}

// HexSum returns the hex encoding of h's current sum.
func HexSum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// Checksum hashes everything read from r.
func Checksum(r io.Reader) (string, error) {
	h := NewChecksum()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return HexSum(h), nil
}
