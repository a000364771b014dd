package report

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fingerprintLen is the number of hex characters kept from the digest.
const fingerprintLen = 16

// Fingerprint derives a stable short digest from normalized message text,
// used as a cheap similarity key. Same text yields the same digest
// regardless of case and surrounding whitespace. Collisions are tolerated;
// this is a coarse hint, not an identity.
func Fingerprint(message string) string {
	normalized := strings.ToLower(strings.TrimSpace(message))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}
