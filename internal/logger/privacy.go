package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

const minHashSaltLength = 32

var hashSalt = "default-salt-change-in-production"

// InitHashSalt loads the id hashing salt from LOG_HASH_SALT.
// It panics when the salt is missing or shorter than 32 characters.
func InitHashSalt() {
	salt := os.Getenv("LOG_HASH_SALT")
	if len(salt) < minHashSaltLength {
		panic(fmt.Sprintf("LOG_HASH_SALT must be set to at least %d characters", minHashSaltLength))
	}
	hashSalt = salt
}

// InitHashSaltForTesting sets the salt without validation.
func InitHashSaltForTesting(salt string) {
	hashSalt = salt
}

// HashID creates a privacy-preserving hash of an entity ID.
// This allows correlating actions across log lines without exposing raw ids.
func HashID(id uuid.UUID) string {
	data := id.String() + ":" + hashSalt
	hash := sha256.Sum256([]byte(data))
	// First 8 characters are enough to correlate.
	return hex.EncodeToString(hash[:])[:8]
}

// SanitizeDescription redacts a free-text description but keeps its shape.
func SanitizeDescription(desc string) string {
	if desc == "" {
		return "<empty>"
	}

	words := strings.Fields(desc)
	return fmt.Sprintf("<redacted: %d words, %d chars>", len(words), len(desc))
}

// SanitizeEmail keeps the domain of an email address and masks the local part.
func SanitizeEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return "<empty>"
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return fmt.Sprintf("<%d chars>", len(email))
	}
	return local[:1] + "***@" + domain
}
