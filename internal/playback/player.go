// Package playback implements the replay state machine and the timer that drives it.
package playback

import (
	"math"
	"sync"

	"github.com/gwlsn/hawkeye/internal/scene"
)

// DefaultIncrement is how far one tick advances progress.
const DefaultIncrement = 0.01

// State is a snapshot of a Player.
type State struct {
	Progress   float64 `json:"progress"`
	Playing    bool    `json:"playing"`
	Fullscreen bool    `json:"fullscreen"`
	Index      int     `json:"index"`
}

// Player is the Stopped/Playing state machine over a normalized progress value.
// It is safe for concurrent use.
type Player struct {
	mu         sync.Mutex
	samples    int
	increment  float64
	progress   float64
	playing    bool
	fullscreen bool
}

// NewPlayer creates a stopped player at progress 0 for a sequence of n samples.
func NewPlayer(n int, increment float64) *Player {
	if increment <= 0 || math.IsNaN(increment) {
		increment = DefaultIncrement
	}
	return &Player{samples: n, increment: increment}
}

// Play starts advancing. Playing from progress 1 stops again on the next tick.
func (p *Player) Play() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
	return p.stateLocked()
}

// Pause stops advancing without touching progress.
func (p *Player) Pause() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	return p.stateLocked()
}

// Toggle flips between Playing and Stopped.
func (p *Player) Toggle() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = !p.playing
	return p.stateLocked()
}

// Reset forces progress to 0 and Stopped.
func (p *Player) Reset() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = 0
	p.playing = false
	return p.stateLocked()
}

// Scrub sets progress directly, in any state. Values outside [0,1] are clamped.
func (p *Player) Scrub(v float64) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case math.IsNaN(v) || v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	p.progress = v
	return p.stateLocked()
}

// Tick advances progress by one increment while Playing. Reaching 1 clamps
// and stops. A tick while Stopped changes nothing.
func (p *Player) Tick() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return p.stateLocked()
	}
	next := p.progress + p.increment
	if next >= 1 {
		next = 1
		p.playing = false
	}
	p.progress = next
	return p.stateLocked()
}

// ToggleFullscreen flips the presentation flag. Playback is unaffected.
func (p *Player) ToggleFullscreen() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fullscreen = !p.fullscreen
	return p.stateLocked()
}

// State returns the current snapshot.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

func (p *Player) stateLocked() State {
	return State{
		Progress:   p.progress,
		Playing:    p.playing,
		Fullscreen: p.fullscreen,
		Index:      scene.Index(p.progress, p.samples),
	}
}
