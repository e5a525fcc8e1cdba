package utils

import (
    "crypto/rand"
    "encoding/hex"
    "strings"
)

// NewReferenceCode returns a short human-shareable reservation code such
// as "PK-3F9A0C7B". The 4 random bytes come from crypto/rand; uniqueness
// is ultimately enforced by the database column, and callers regenerate on
// a collision.
func NewReferenceCode() (string, error) {
    buf := make([]byte, 4)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return "PK-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}
