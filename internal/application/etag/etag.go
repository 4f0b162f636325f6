// Package etag derives content fingerprints for HTTP responses and decides
// cache-freshness (304) and precondition (412) outcomes from them.
//
// All functions are stateless and pure: the fingerprint depends only on the
// payload passed in. Callers must hand in the response model itself, never
// request-scoped values, so that identical content always yields an
// identical token.
package etag

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Wildcard is the validator that matches any current representation.
const Wildcard = "*"

// Generate serializes payload to its canonical JSON form and returns the
// SHA-256 hex digest wrapped in double quotes, the opaque validator form
// HTTP expects. encoding/json emits struct fields in declaration order, so
// the byte form is stable for a given payload value.
func Generate(payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize payload for etag: %w", err)
	}

	sum := sha256.Sum256(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`, nil
}

// IsNotModified reports whether the client-presented validator set contains
// the current token or the wildcard validator.
func IsNotModified(validators []string, current string) bool {
	for _, v := range validators {
		v = strings.TrimSpace(v)
		if v == Wildcard {
			return true
		}
		if Equal(v, current) {
			return true
		}
	}
	return false
}

// Validate recomputes the fingerprint of payload and compares it to the
// supplied header value. Used on mutating requests before any state change.
// The header may carry several comma-separated validators; one match, or
// the wildcard, satisfies the precondition.
func Validate(payload interface{}, supplied string) (bool, error) {
	current, err := Generate(payload)
	if err != nil {
		return false, err
	}
	return IsNotModified(ParseHeader(supplied), current), nil
}

// Equal compares two validators case-insensitively, tolerating the weak
// validator prefix and missing quotes on the client side.
func Equal(a, b string) bool {
	return strings.EqualFold(normalize(a), normalize(b))
}

// ParseHeader splits a comma-separated validator header (If-None-Match,
// If-Match) into its individual validators.
func ParseHeader(header string) []string {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalize(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, `"`)
	return v
}
