// Package identity provides the platform's small set of privacy and
// identifier utilities: salted IP hashing, opaque ID generation, and
// user-agent truncation, per spec.md §4.2.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// sentinelHash is returned for an empty or unparseable IP, so callers always
// get a well-formed 64-hex-char value.
var sentinelHash = strings.Repeat("0", 64)

// HashIP returns the lowercase 64-char hex SHA-256 of salt||rawIP. SHA-256 has
// no extended-primitive requirement here (no password storage in this
// domain), so stdlib crypto/sha256 suffices without golang.org/x/crypto.
func HashIP(salt, rawIP string) string {
	if rawIP == "" || net.ParseIP(rawIP) == nil {
		return sentinelHash
	}
	sum := sha256.Sum256([]byte(salt + rawIP))
	return hex.EncodeToString(sum[:])
}

// NewID returns a 36-char UUID v4, used for payment order ids.
func NewID() string {
	return uuid.New().String()
}

// TruncateUA returns the first 500 bytes of s with control characters
// stripped.
func TruncateUA(s string) string {
	const maxLen = 500

	cleaned := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		cleaned = append(cleaned, r)
	}

	out := string(cleaned)
	if len(out) > maxLen {
		out = out[:maxLen]
	}
	return out
}
