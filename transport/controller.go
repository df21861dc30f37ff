// Package transport drives a single audio resource: play/pause requests,
// a per-frame position sampler and pointer seeking, mirrored into a state
// record a renderer can display.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultFrameInterval approximates one display frame
const DefaultFrameInterval = 16 * time.Millisecond

// State is the playback state of one controller
type State struct {
	SourceURI       string
	Ready           bool // duration metadata obtained
	Playing         bool // last state confirmed by the resource
	AutoplayBlocked bool // last play attempt was rejected by the host
	Failed          bool // resource reported a terminal error
	Seeking         bool // a pointer drag is writing the position
	Position        float64
	Duration        float64
}

// Snapshot is State plus its display strings
type Snapshot struct {
	State
	CurrentText  string
	DurationText string
	Percent      float64
}

// Controller is an AudioTransportController. All methods, and every
// callback it schedules, run on the Loop passed to New; it is not safe for
// use from other goroutines.
type Controller struct {
	res   Resource
	loop  Loop
	clock Clock
	frame time.Duration
	log   *slog.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()

	state         State
	autoplayTried bool
	playPending   bool
	sampler       *frameHandle
	disposed      bool
}

// frameHandle is one armed sampling tick
type frameHandle struct {
	timer     Timer
	cancelled bool
}

// Option configures a Controller
type Option func(*Controller)

// WithClock replaces the wall clock used for sampling
func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithFrameInterval sets the sampling period
func WithFrameInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.frame = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a controller for res whose state lives on loop
func New(res Resource, loop Loop, opts ...Option) *Controller {
	c := &Controller{
		res:   res,
		loop:  loop,
		clock: SystemClock,
		frame: DefaultFrameInterval,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "transport")
	return c
}

// Initialize binds the controller to sourceURI and starts loading it.
// Load failures are logged; the controller then simply never becomes ready.
func (c *Controller) Initialize(ctx context.Context, sourceURI string) error {
	if c.disposed {
		return ErrDisposed
	}
	if c.unsubscribe != nil {
		return fmt.Errorf("already bound to %q", c.state.SourceURI)
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.state.SourceURI = sourceURI
	c.unsubscribe = c.res.Subscribe(func(ev Event) {
		c.loop.Post(func() { c.handle(ev) })
	})

	loadCtx := c.ctx
	c.loop.Async(func() error {
		return c.res.Load(loadCtx, sourceURI)
	}, func(err error) {
		if err != nil && !c.disposed {
			c.log.Warn("load failed", "source", sourceURI, "err", err)
		}
	})
	return nil
}

func (c *Controller) handle(ev Event) {
	if c.disposed {
		return
	}
	switch ev.Kind {
	case EventMetadataReady:
		c.onMetadataReady()
	case EventPlayed:
		c.onResourcePlay()
	case EventPaused:
		c.onResourcePause()
	case EventFailed:
		c.onResourceFailed(ev.Err)
	}
}

func (c *Controller) onMetadataReady() {
	d := c.res.Duration()
	if !finite(d) || d < 0 {
		d = 0
	}
	c.state.Duration = d
	c.state.Ready = true
	c.log.Debug("metadata ready", "duration", d)

	if c.autoplayTried {
		return
	}
	c.autoplayTried = true
	c.requestPlay(OriginAutoplay)
}

func (c *Controller) onResourcePlay() {
	c.state.Playing = true
	c.state.AutoplayBlocked = false
	if !c.state.Seeking {
		c.armSampler()
	}
}

func (c *Controller) onResourcePause() {
	c.state.Playing = false
	c.cancelSampler()
}

func (c *Controller) onResourceFailed(err error) {
	c.log.Warn("resource failed", "source", c.state.SourceURI, "err", err)
	c.state.Failed = true
	c.state.Ready = false
	c.state.Playing = false
	c.cancelSampler()
}

// requestPlay asks the resource to start. Success is not recorded here:
// only EventPlayed sets Playing.
func (c *Controller) requestPlay(origin Origin) {
	ctx := c.ctx
	c.playPending = true
	c.loop.Async(func() error {
		return c.res.Play(ctx, origin)
	}, func(err error) {
		c.playPending = false
		if c.disposed || err == nil {
			return
		}
		if c.state.Playing {
			// the resource confirmed playback before the request settled
			c.log.Debug("ignoring stale play rejection", "origin", origin, "err", err)
			return
		}
		c.state.AutoplayBlocked = true
		c.cancelSampler()
		c.log.Info("playback start rejected", "origin", origin, "err", err)
	})
}

// Toggle requests play when paused and pause when playing. Playing only
// flips on confirmation, so a toggle while a play request is still in
// flight is dropped rather than sent as a second play.
func (c *Controller) Toggle() {
	if c.disposed || c.ctx == nil || c.state.Failed {
		return
	}
	if !c.state.Playing {
		if c.playPending {
			c.log.Debug("play request in flight, ignoring toggle")
			return
		}
		c.requestPlay(OriginUser)
		return
	}
	ctx := c.ctx
	c.loop.Async(func() error {
		return c.res.Pause(ctx)
	}, func(err error) {
		if err != nil && !c.disposed {
			c.log.Warn("pause request failed", "err", err)
		}
	})
}

func (c *Controller) armSampler() {
	c.cancelSampler()
	h := &frameHandle{}
	h.timer = c.clock.AfterFunc(c.frame, func() {
		c.loop.Post(func() {
			if h.cancelled || c.sampler != h || c.disposed {
				return
			}
			c.samplePosition()
		})
	})
	c.sampler = h
}

func (c *Controller) cancelSampler() {
	if c.sampler == nil {
		return
	}
	c.sampler.cancelled = true
	c.sampler.timer.Stop()
	c.sampler = nil
}

func (c *Controller) samplePosition() {
	c.sampler = nil
	if !c.state.Playing || c.state.Seeking {
		return
	}

	if d := c.res.Duration(); finite(d) && d >= 0 {
		c.state.Duration = d
	}
	p := c.res.Position()
	if !finite(p) || p < 0 {
		p = 0
	}
	if c.state.Duration > 0 && p > c.state.Duration {
		p = c.state.Duration
	}
	c.state.Position = p

	c.armSampler()
}

// BeginSeek starts a drag at ratio of the track
func (c *Controller) BeginSeek(ratio float64) {
	if c.disposed {
		return
	}
	c.state.Seeking = true
	c.cancelSampler()
	c.seekTo(ratio)
}

// ContinueSeek moves an active drag; ignored when no drag is active
func (c *Controller) ContinueSeek(ratio float64) {
	if c.disposed || !c.state.Seeking {
		return
	}
	c.seekTo(ratio)
}

// EndSeek finishes a drag and resumes sampling if playing
func (c *Controller) EndSeek() {
	if c.disposed || !c.state.Seeking {
		return
	}
	c.state.Seeking = false
	if c.state.Playing {
		c.armSampler()
	}
}

func (c *Controller) seekTo(ratio float64) {
	d := c.state.Duration
	if !finite(d) || d <= 0 {
		return
	}
	if !finite(ratio) {
		ratio = 0
	}
	target := clamp(ratio, 0, 1) * d
	if err := c.res.SetPosition(target); err != nil {
		c.log.Warn("seek failed", "target", target, "err", err)
		return
	}
	c.state.Position = target
}

// Dispose releases the resource subscription and cancels every pending
// tick and request. The state is frozen afterwards.
func (c *Controller) Dispose() {
	if c.disposed {
		return
	}
	c.disposed = true
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.cancelSampler()
	if c.cancel != nil {
		c.cancel()
	}
}

// Disposed reports whether Dispose was called
func (c *Controller) Disposed() bool {
	return c.disposed
}

// State returns the raw playback state
func (c *Controller) State() State {
	return c.state
}

// Snapshot returns the state with its display strings
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		State:        c.state,
		CurrentText:  FormatClock(c.state.Position),
		DurationText: Loading,
		Percent:      ProgressPercent(c.state.Position, c.state.Duration),
	}
	if c.state.Ready {
		s.DurationText = FormatClock(c.state.Duration)
	}
	return s
}
