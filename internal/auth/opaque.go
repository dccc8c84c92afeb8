package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const refreshSecretBytes = 64

// GenerateRefreshSecret returns 64 random bytes, URL-safe encoded without padding.
func GenerateRefreshSecret() (string, error) {
	b := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Digester computes the keyed lookup digest of opaque secrets.
type Digester struct {
	key []byte
}

func NewDigester(key string) Digester {
	return Digester{key: []byte(key)}
}

// Digest returns hex(HMAC-SHA256(key, secret)).
func (d Digester) Digest(secret string) string {
	mac := hmac.New(sha256.New, d.key)
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}
