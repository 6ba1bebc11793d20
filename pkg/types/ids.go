package types

import (
	"crypto/sha1"
	"encoding/hex"
)

// hashFields returns the hex SHA-1 of parts joined by NUL bytes.
func hashFields(parts ...[]byte) string {
	h := sha1.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
