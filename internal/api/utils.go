package api

import (
	"crypto/rand"
	"encoding/base64"
)

// randomState returns an URL-safe random string for the OAuth state
// parameter.
func randomState(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)[:length]
}
