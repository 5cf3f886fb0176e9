package authz

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashAPIKey returns the SHA-256 hash of a tenant API key. Only the hash is
// stored; the raw key is shown once at tenant creation.
func HashAPIKey(key string) string {
	key = strings.TrimSpace(key)

	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}
