package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/conorfennell/knolstudy/internal/domain"
)

func TestNextDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := DefaultBuckets()

	testCases := []struct {
		difficulty domain.Difficulty
		expected   time.Time
	}{
		{domain.Again, now.Add(10 * time.Minute)},
		{domain.Hard, now.AddDate(0, 0, 1)},
		{domain.Good, now.AddDate(0, 0, 3)},
		{domain.Easy, now.AddDate(0, 0, 7)},
		{"UNKNOWN", now.Add(10 * time.Minute)},
	}

	for _, tc := range testCases {
		t.Run(string(tc.difficulty), func(t *testing.T) {
			assert.Equal(t, tc.expected, b.NextDue(now, tc.difficulty))
		})
	}
}

func TestIntervalsGrowWithEase(t *testing.T) {
	b := DefaultBuckets()
	for i := 1; i < len(domain.Difficulties); i++ {
		prev, cur := domain.Difficulties[i-1], domain.Difficulties[i]
		assert.Less(t, b.Interval(prev), b.Interval(cur), "%s should be sooner than %s", prev, cur)
	}
}
