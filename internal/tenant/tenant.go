// Package tenant holds the two pure derivations every storage operation
// hangs off: the tenant key used to namespace the shared stores, and the
// content fingerprint used to deduplicate ingestion.
package tenant

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"
)

// KeyLength is the fixed width of a derived tenant key in hex characters.
const KeyLength = 10

// DeriveKey maps a tenant identifier to its storage key: a fixed-width
// md5 prefix, lower-cased so matching is case-insensitive. Same input,
// same key, always.
func DeriveKey(tenantID string) string {
	sum := md5.Sum([]byte(tenantID))
	return strings.ToLower(hex.EncodeToString(sum[:]))[:KeyLength]
}

// Fingerprint derives the dedup key for one ingestion: a sha256 over the
// length-prefixed (userID, tenantID, content) triple. Length prefixes keep
// the encoding unambiguous, so the digest changes whenever any one of the
// three inputs changes.
func Fingerprint(userID, tenantID string, content []byte) string {
	h := sha256.New()
	writeLenPrefixed(h, []byte(userID))
	writeLenPrefixed(h, []byte(tenantID))
	writeLenPrefixed(h, content)
	return hex.EncodeToString(h.Sum(nil))
}

func writeLenPrefixed(h interface{ Write([]byte) (int, error) }, b []byte) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(b)))
	_, _ = h.Write(lenBuf[:])
	_, _ = h.Write(b)
}
