package tokengenerator

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrEntropyUnavailable is returned when the system random source cannot be
// read. Callers must treat this as fatal; there is no low-entropy fallback.
var ErrEntropyUnavailable = errors.New("entropy source unavailable")

// Generator produces verification keys for email ownership proofs and
// password resets.
type Generator interface {
	Generate(email string) (string, error)
}

// RandomGenerator derives keys from crypto/rand salted with the email address.
// The resulting key is 64 lowercase hex characters, safe inside a URL path
// segment.
type RandomGenerator struct{}

// NewRandomGenerator creates a new RandomGenerator.
func NewRandomGenerator() *RandomGenerator {
	return &RandomGenerator{}
}

// Generate returns a new verification key for the given email.
func (g *RandomGenerator) Generate(email string) (string, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}

	h := sha256.New()
	h.Write(salt)
	h.Write([]byte(email))
	return hex.EncodeToString(h.Sum(nil)), nil
}
