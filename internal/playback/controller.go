package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gwlsn/hawkeye/internal/scene"
	"github.com/gwlsn/hawkeye/internal/trajectory"
)

// DefaultInterval is the tick period, roughly one display frame.
const DefaultInterval = 16 * time.Millisecond

// Command types accepted by Controller.Apply.
const (
	CmdPlay       = "play"
	CmdPause      = "pause"
	CmdToggle     = "toggle"
	CmdReset      = "reset"
	CmdScrub      = "scrub"
	CmdFullscreen = "fullscreen"
)

var (
	ErrUnknownCommand   = errors.New("unknown playback command")
	ErrControllerClosed = errors.New("playback controller closed")
)

// Command is a user action on the replay.
type Command struct {
	Type     string  `json:"type"`
	Progress float64 `json:"progress,omitempty"`
}

// Update is pushed to the sink after every state change. Frame.Static is only
// populated on the first update; renderers keep the pitch from it.
// Tick marks an intermediate update from the running loop. Another one
// follows shortly, so a slow sink may drop it. The update that ends
// playback is not a Tick.
type Update struct {
	State State       `json:"state"`
	Frame scene.Frame `json:"frame"`
	Tick  bool        `json:"-"`
}

// Sink receives updates. It is called from both the command goroutine and
// the ticker goroutine, so it must be safe for concurrent use.
type Sink func(Update)

// Options configure a Controller.
type Options struct {
	Increment    float64
	Interval     time.Duration
	BounceHeight float64
}

// Controller owns a Player and the Ticker that advances it. The ticker is
// held only while playing and is released on pause, reset and Close.
type Controller struct {
	mu       sync.Mutex
	ctx      context.Context
	player   *Player
	ticker   Ticker
	samples  []trajectory.Sample
	interval time.Duration
	render   scene.Options
	sink     Sink
	closed   bool
}

// NewController creates a stopped controller at progress 0 and immediately
// pushes the initial full frame to sink.
func NewController(ctx context.Context, samples []trajectory.Sample, opts Options, sink Sink) *Controller {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	c := &Controller{
		ctx:      ctx,
		player:   NewPlayer(len(samples), opts.Increment),
		samples:  samples,
		interval: interval,
		render:   scene.Options{BounceHeight: opts.BounceHeight},
		sink:     sink,
	}
	c.emit(c.player.State(), true)
	return c
}

// Apply executes one command.
func (c *Controller) Apply(cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrControllerClosed
	}

	switch cmd.Type {
	case CmdPlay:
		c.playLocked()
	case CmdPause:
		c.pauseLocked()
	case CmdToggle:
		if c.player.State().Playing {
			c.pauseLocked()
		} else {
			c.playLocked()
		}
	case CmdReset:
		c.ticker.Stop()
		c.emit(c.player.Reset(), false)
	case CmdScrub:
		c.emit(c.player.Scrub(cmd.Progress), false)
	case CmdFullscreen:
		c.emit(c.player.ToggleFullscreen(), false)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	return nil
}

// State returns the player's current state.
func (c *Controller) State() State {
	return c.player.State()
}

// Close stops the ticker. Further commands fail with ErrControllerClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.ticker.Stop()
	c.player.Pause()
}

// playLocked always restarts the loop. A loop that has just reached the end
// can still count as running until its goroutine exits, so Start alone could
// leave the player in Playing with nothing ticking.
func (c *Controller) playLocked() {
	c.ticker.Stop()
	c.emit(c.player.Play(), false)
	c.ticker.Start(c.ctx, c.interval, func() bool {
		st := c.player.Tick()
		c.emitUpdate(st, false, st.Playing)
		return st.Playing
	})
}

func (c *Controller) pauseLocked() {
	c.ticker.Stop()
	c.emit(c.player.Pause(), false)
}

func (c *Controller) emit(st State, full bool) {
	c.emitUpdate(st, full, false)
}

func (c *Controller) emitUpdate(st State, full, tick bool) {
	if c.sink == nil {
		return
	}
	f := scene.Render(c.samples, st.Progress, c.render)
	if !full {
		f.Static = nil
	}
	c.sink(Update{State: st, Frame: f, Tick: tick})
}
