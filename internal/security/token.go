package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// opaqueTokenBytes gives opaque tokens 256 bits of entropy.
const opaqueTokenBytes = 32

// GenerateToken returns a hex-encoded random token for refresh, verification
// and password reset flows.
func GenerateToken() (string, error) {
	bytes := make([]byte, opaqueTokenBytes)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// HashToken returns the hex SHA-256 digest persisted in place of a refresh token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
