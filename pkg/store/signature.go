package store

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// PII-bearing token shapes, replaced before hashing. Order matters: emails
// contain digit runs, so they fold first.
var (
	emailRe  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	urlRe    = regexp.MustCompile(`https?://[^\s]+`)
	phoneRe  = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
	digitsRe = regexp.MustCompile(`\d{3,}`)
	handleRe = regexp.MustCompile(`@[a-zA-Z0-9_]{2,}`)
)

// Sanitize strips identifying tokens from text, keeping only the structural
// shape of the message. The output is what gets hashed; raw text never
// reaches the store or any persister.
func Sanitize(text string) string {
	text = strings.ToLower(text)
	text = emailRe.ReplaceAllString(text, "<email>")
	text = urlRe.ReplaceAllString(text, "<url>")
	text = phoneRe.ReplaceAllString(text, "<phone>")
	text = handleRe.ReplaceAllString(text, "<handle>")
	text = digitsRe.ReplaceAllString(text, "<num>")
	return strings.Join(strings.Fields(text), " ")
}

// Signature derives the stable store key for a detection: the SHA-256 of the
// sanitized text scoped by family. Same threat shape, same key, across
// restarts and across users.
func Signature(family, text string) string {
	h := sha256.New()
	h.Write([]byte(family))
	h.Write([]byte{0})
	h.Write([]byte(Sanitize(text)))
	return hex.EncodeToString(h.Sum(nil))
}
