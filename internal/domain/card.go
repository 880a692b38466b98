package domain

import (
	"fmt"
	"strings"
	"time"
)

// Flashcard is a single front/back study card belonging to a deck.
type Flashcard struct {
	ID         string `json:"id"`
	DeckID     string `json:"deckId,omitempty"`
	Front      string `json:"front"`
	Back       string `json:"back"`
	Hint       string `json:"hint,omitempty"`
	Image      string `json:"image,omitempty"`
	OrderIndex int    `json:"orderIndex"`
}

// Difficulty is the learner's judgment of a card after seeing its back.
type Difficulty string

const (
	Again Difficulty = "AGAIN"
	Hard  Difficulty = "HARD"
	Good  Difficulty = "GOOD"
	Easy  Difficulty = "EASY"
)

// Difficulties lists every judgment in ascending order of ease.
var Difficulties = []Difficulty{Again, Hard, Good, Easy}

// Valid reports whether d is one of the four known judgments.
func (d Difficulty) Valid() bool {
	switch d {
	case Again, Hard, Good, Easy:
		return true
	}
	return false
}

// ParseDifficulty accepts a judgment name in any case, or its grade 1-4.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AGAIN", "1":
		return Again, nil
	case "HARD", "2":
		return Hard, nil
	case "GOOD", "3":
		return Good, nil
	case "EASY", "4":
		return Easy, nil
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// StudyResults aggregates the judgments of one study session.
type StudyResults struct {
	TotalCards int `json:"totalCards"`
	AgainCount int `json:"againCount"`
	HardCount  int `json:"hardCount"`
	GoodCount  int `json:"goodCount"`
	EasyCount  int `json:"easyCount"`
}

// Record counts one judgment. TotalCards is not touched.
func (r StudyResults) Record(d Difficulty) StudyResults {
	switch d {
	case Again:
		r.AgainCount++
	case Hard:
		r.HardCount++
	case Good:
		r.GoodCount++
	case Easy:
		r.EasyCount++
	}
	return r
}

// Judged is the number of judgments recorded so far.
func (r StudyResults) Judged() int {
	return r.AgainCount + r.HardCount + r.GoodCount + r.EasyCount
}

// Review records a single review event for a card.
type Review struct {
	ID         string
	CardID     string
	Difficulty Difficulty
	ReviewedAt time.Time
	NextDue    time.Time
}
