package variant

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainValue = "chainflow/value/v1"
	DomainChain = "chainflow/chain/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the content hash of v's canonical representation.
func Hash(v *Variant) (string, error) {
	return HashDomain(DomainValue, v)
}

// HashDomain hashes v's canonical representation under domain.
func HashDomain(domain string, v *Variant) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash: failed to marshal: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// MustHash is like Hash but panics on error.
// Use only in tests or when the value is known to be representable.
func MustHash(v *Variant) string {
	h, err := Hash(v)
	if err != nil {
		panic(err)
	}
	return h
}
