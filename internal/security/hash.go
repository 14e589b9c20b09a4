package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashRequestFingerprint identifies a request body+target for idempotency key
// reuse detection. Same key with a different fingerprint is a conflict.
func HashRequestFingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
