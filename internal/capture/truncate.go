package capture

import (
	"crypto/sha256"
	"encoding/hex"
	"unicode/utf8"
)

// clipped is a body cut down for the journal.
type clipped struct {
	Body      string
	Truncated bool
	Size      int    // original size in bytes
	SHA256    string // digest of the original, set only when cut
}

// clipBody keeps at most maxBytes of body, backing off to a rune boundary so
// the journal never holds half a Cyrillic letter. maxBytes <= 0 disables it.
func clipBody(body string, maxBytes int) clipped {
	if maxBytes <= 0 || len(body) <= maxBytes {
		return clipped{Body: body, Size: len(body)}
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	sum := sha256.Sum256([]byte(body))
	return clipped{Body: body[:cut], Truncated: true, Size: len(body), SHA256: hex.EncodeToString(sum[:])}
}
