// Package schedule decides when a judged card is next due.
//
// Cards move between fixed interval buckets, one per judgment. There is no
// per-card memory model.
package schedule

import (
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// Buckets holds the interval used after each judgment.
type Buckets struct {
	Again time.Duration `koanf:"again" validate:"gt=0"`
	Hard  time.Duration `koanf:"hard" validate:"gt=0"`
	Good  time.Duration `koanf:"good" validate:"gt=0"`
	Easy  time.Duration `koanf:"easy" validate:"gt=0"`
}

// DefaultBuckets provides the intervals used when none are configured.
func DefaultBuckets() Buckets {
	return Buckets{
		Again: 10 * time.Minute,
		Hard:  24 * time.Hour,
		Good:  3 * 24 * time.Hour,
		Easy:  7 * 24 * time.Hour,
	}
}

// Interval returns the bucket for d. Unknown judgments fall back to Again.
func (b Buckets) Interval(d domain.Difficulty) time.Duration {
	switch d {
	case domain.Hard:
		return b.Hard
	case domain.Good:
		return b.Good
	case domain.Easy:
		return b.Easy
	}
	return b.Again
}

// NextDue is when a card judged d at now should be shown again.
func (b Buckets) NextDue(now time.Time, d domain.Difficulty) time.Time {
	return now.Add(b.Interval(d))
}
