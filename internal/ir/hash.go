package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-derived identity.
// Version suffix enables future algorithm migration.
const (
	DomainUniverse = "piazza/universe/v1"
	DomainRecipe   = "piazza/recipe/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// UniverseKey computes the content-derived key a universe is registered
// under. Two contexts with the same attributes and values produce the same
// key regardless of insertion order.
func UniverseKey(c Context) (string, error) {
	if _, err := c.ID(); err != nil {
		return "", err
	}
	canonical, err := MarshalCanonical(c)
	if err != nil {
		return "", fmt.Errorf("UniverseKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainUniverse, canonical), nil
}

// RecipeHash identifies a recipe text after NFC normalization.
func RecipeHash(text string) string {
	b, _ := marshalCanonicalString(text)
	return hashWithDomain(DomainRecipe, b)
}

// MustUniverseKey is like UniverseKey but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustUniverseKey(c Context) string {
	key, err := UniverseKey(c)
	if err != nil {
		panic(err)
	}
	return key
}
