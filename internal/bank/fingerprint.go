package bank

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/qvet/internal/domain"
)

// Normalize concatenates the content fields that make a question "the same
// question": its text, correct answer, and distractors. Each part is
// trimmed, lowercased, and has its line endings normalized before joining,
// so formatting churn in a bank file does not change the fingerprint.
func Normalize(q domain.Question) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	parts := make([]string, 0, 2+len(q.Distractors))
	parts = append(parts, normalizePart(q.Question), normalizePart(q.CorrectAnswer))
	for _, d := range q.Distractors {
		parts = append(parts, normalizePart(d))
	}

	// Joined with newlines to keep fields separated; "question" and
	// "answer" must never run together into one token.
	return strings.Join(parts, "\n")
}

// Fingerprint normalizes a question and returns its SHA-256 hash as a hex
// string. Used to skip duplicates within an import run.
func Fingerprint(q domain.Question) string {
	normalized := Normalize(q)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}
