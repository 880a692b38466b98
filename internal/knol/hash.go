package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// Normalize concatenates the card's identifying content after cleaning each
// part: whitespace is trimmed, text lowercased and line endings normalized.
// The deck is part of the identity so the same card in two decks is two cards.
func Normalize(card domain.Flashcard) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	parts := []string{
		normalizePart(card.DeckID),
		normalizePart(card.Front),
		normalizePart(card.Back),
		normalizePart(card.Hint),
	}
	// Joined with newlines so "question" and "answer" never become "questionanswer".
	return strings.Join(parts, "\n")
}

// Hash returns the SHA-256 of the normalized card as a hex string. It is the
// card's id.
func Hash(card domain.Flashcard) string {
	hashBytes := sha256.Sum256([]byte(Normalize(card)))
	return fmt.Sprintf("%x", hashBytes)
}
