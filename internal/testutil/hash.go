package testutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns the content id the archive assigns to data.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
