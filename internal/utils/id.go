package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// NewID returns a best-effort unique identifier.
func NewID() string {
	id, err := uuid.NewRandom()
	if err == nil {
		return id.String()
	}

	const size = 12
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}

	// Fallback to timestamp if crypto/rand is unavailable.
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}

// NewOrderedID returns an identifier whose lexical order matches creation
// order within this process (UUIDv7). Used for store-assigned child keys.
func NewOrderedID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
