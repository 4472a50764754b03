package util

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewSessionID returns the opaque identifier for an anonymous respondent
// session.
func NewSessionID() string {
	return uuid.NewString()
}

// NewToken returns a random bearer token. Only the hash of a token is
// persisted.
func NewToken() string {
	bytes := make([]byte, 32)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
