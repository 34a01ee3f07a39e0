package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HashHeader carries the body signature.
const HashHeader = "HashSHA256"

// CalculateHash returns the hex HMAC-SHA256 of body under key.
func CalculateHash(body []byte, key string) string {
	h := hmac.New(sha256.New, []byte(key))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// ValidHash compares a received signature with the expected one in constant time.
func ValidHash(body []byte, key, got string) bool {
	return hmac.Equal([]byte(got), []byte(CalculateHash(body, key)))
}
