package parser

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/knolstudy/internal/domain"
)

const (
	frontPrefix = "Q:"
	backPrefix  = "A:"
	hintPrefix  = "H:"
	imagePrefix = "I:"
)

type state int

const (
	seeking state = iota
	readingFront
	readingBack
	readingHint
	readingImage
)

// DeckID derives a deck id from a deck file name: "decks/Go Basics.md"
// becomes "go-basics".
func DeckID(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.ToLower(strings.Join(strings.Fields(base), "-"))
}

// ParseFile reads a deck file and extracts its cards, tagged with the deck id
// derived from the file name.
func ParseFile(path string) ([]domain.Flashcard, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cards, err := Parse(file)
	if err != nil {
		return nil, err
	}
	deckID := DeckID(path)
	for i := range cards {
		cards[i].DeckID = deckID
	}
	return cards, nil
}

// Parse reads from an io.Reader and extracts all cards. A card starts at a
// "Q:" line; "A:", "H:" and "I:" lines set its back, hint and image. A line of
// "---" ends the current card. Cards are numbered in file order.
func Parse(r io.Reader) ([]domain.Flashcard, error) {
	scanner := bufio.NewScanner(r)
	var cards []domain.Flashcard
	var currentCard domain.Flashcard
	var currentBlock []string
	currentState := seeking

	flushBlock := func() {
		if len(currentBlock) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(currentBlock, "\n"))
		switch currentState {
		case readingFront:
			currentCard.Front = content
		case readingBack:
			currentCard.Back = content
		case readingHint:
			currentCard.Hint = content
		case readingImage:
			currentCard.Image = content
		}
		currentBlock = nil
	}

	finishCard := func() {
		flushBlock()
		if currentCard.Front != "" {
			currentCard.OrderIndex = len(cards)
			cards = append(cards, currentCard)
		}
		currentCard = domain.Flashcard{}
		currentState = seeking
	}

	prefixes := []struct {
		prefix string
		state  state
	}{
		{frontPrefix, readingFront},
		{backPrefix, readingBack},
		{hintPrefix, readingHint},
		{imagePrefix, readingImage},
	}

	for scanner.Scan() {
		line := scanner.Text()

		if line == "---" {
			finishCard()
			continue
		}

		matched := false
		for _, p := range prefixes {
			if !strings.HasPrefix(line, p.prefix) {
				continue
			}
			matched = true
			if p.state == readingFront && currentState != seeking {
				finishCard() // A new question always starts a new card
			}
			flushBlock()
			currentState = p.state
			currentBlock = append(currentBlock, strings.TrimPrefix(line[len(p.prefix):], " "))
			break
		}

		if !matched && currentState != seeking {
			currentBlock = append(currentBlock, line)
		}
	}

	finishCard() // Finish the very last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}
