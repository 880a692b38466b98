// Package playback simulates a video player so lesson quizzes can be run
// outside a browser.
package playback

import (
	"context"
	"sync"
	"time"
)

// Option configures a Player.
type Option func(*Player)

// WithSpeed sets the playback rate. Values of zero or less are ignored.
func WithSpeed(speed float64) Option {
	return func(p *Player) {
		if speed > 0 {
			p.speed = speed
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Player) { p.now = now }
}

// Player is a position clock over a video of fixed duration, in seconds.
// It starts paused at zero. All methods are safe for concurrent use.
type Player struct {
	duration float64
	speed    float64
	now      func() time.Time

	mu       sync.Mutex
	position float64
	anchor   time.Time
	playing  bool
}

// New returns a paused player for a video of duration seconds.
func New(duration float64, opts ...Option) *Player {
	p := &Player{duration: duration, speed: 1, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Player) Duration() float64 { return p.duration }

// CurrentTime is the playback position in seconds.
func (p *Player) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *Player) positionLocked() float64 {
	pos := p.position
	if p.playing {
		pos += p.now().Sub(p.anchor).Seconds() * p.speed
	}
	return min(pos, p.duration)
}

func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return
	}
	p.anchor = p.now()
	p.playing = true
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return
	}
	p.position = p.positionLocked()
	p.playing = false
}

// Seek moves to t, clamped to the video.
func (p *Player) Seek(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = max(0, min(t, p.duration))
	p.anchor = p.now()
}

// Playing reports whether the video is playing and has not reached its end.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing && p.positionLocked() < p.duration
}

func (p *Player) Ended() bool {
	return p.CurrentTime() >= p.duration
}

// Ticks sends the position every interval while the video plays, like a
// browser's timeupdate event. The channel is closed once the end has been
// sent or ctx is done.
func (p *Player) Ticks(ctx context.Context, interval time.Duration) <-chan float64 {
	ch := make(chan float64)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			p.mu.Lock()
			playing, pos := p.playing, p.positionLocked()
			p.mu.Unlock()
			if !playing {
				continue
			}

			select {
			case ch <- pos:
			case <-ctx.Done():
				return
			}
			if pos >= p.duration {
				return
			}
		}
	}()
	return ch
}
