package playback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestPlayPauseSeek(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := New(60, WithClock(clock.Now))

	assert.Zero(t, p.CurrentTime())
	clock.Advance(5 * time.Second)
	assert.Zero(t, p.CurrentTime(), "a new player is paused")

	p.Play()
	clock.Advance(10 * time.Second)
	assert.InDelta(t, 10, p.CurrentTime(), 1e-9)

	p.Pause()
	clock.Advance(10 * time.Second)
	assert.InDelta(t, 10, p.CurrentTime(), 1e-9)

	p.Seek(42)
	assert.InDelta(t, 42, p.CurrentTime(), 1e-9)
	p.Play()
	clock.Advance(3 * time.Second)
	assert.InDelta(t, 45, p.CurrentTime(), 1e-9)

	p.Seek(-4)
	assert.Zero(t, p.CurrentTime())
	p.Seek(100)
	assert.Equal(t, 60.0, p.CurrentTime())
	assert.True(t, p.Ended())
	assert.False(t, p.Playing())
}

func TestSpeed(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := New(120, WithClock(clock.Now), WithSpeed(2))
	p.Play()
	clock.Advance(30 * time.Second)
	assert.InDelta(t, 60, p.CurrentTime(), 1e-9)

	clock.Advance(time.Minute)
	assert.Equal(t, 120.0, p.CurrentTime(), "position stops at the end")
}

func TestPlayTwiceKeepsAnchor(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	p := New(60, WithClock(clock.Now))
	p.Play()
	clock.Advance(4 * time.Second)
	p.Play()
	assert.InDelta(t, 4, p.CurrentTime(), 1e-9)
}

func TestTicksRunToEnd(t *testing.T) {
	p := New(1, WithSpeed(20))
	p.Play()

	var got []float64
	for pos := range p.Ticks(context.Background(), time.Millisecond) {
		got = append(got, pos)
	}
	require.NotEmpty(t, got)
	assert.Equal(t, 1.0, got[len(got)-1])
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1])
	}
}

func TestTicksStopWithContext(t *testing.T) {
	p := New(3600)
	ctx, cancel := context.WithCancel(context.Background())
	ticks := p.Ticks(ctx, time.Millisecond)
	cancel()

	select {
	case _, ok := <-ticks:
		for ok {
			_, ok = <-ticks
		}
	case <-time.After(time.Second):
		t.Fatal("ticks channel was not closed")
	}
}
