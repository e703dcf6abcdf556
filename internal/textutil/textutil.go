package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var foldReplacer = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\u00a0", " ",
	"\u202f", " ",
	"\u200b", "",
	"\ufeff", "",
)

// Fold applies NFKC normalisation and rewrites the invisible characters that
// portal and spreadsheet exports tend to leave behind.
func Fold(s string) string {
	return foldReplacer.Replace(norm.NFKC.String(s))
}

// Hash computes a SHA-256 hex hash of a string for deduplication.
func Hash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// Truncate shortens a string to maxLen runes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
