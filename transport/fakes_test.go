package transport

import (
	"context"
	"math"
	"sort"
	"time"
)

// fakeResource is a scriptable Resource. Play and Pause return the
// configured errors and, when confirm is set, emit the matching event the
// way a real player would.
type fakeResource struct {
	duration float64
	position float64

	loadErr  error
	playErr  error
	pauseErr error
	seekErr  error
	confirm  bool

	loads     []string
	plays     []Origin
	pauses    int
	positions []float64

	subs   map[int]func(Event)
	nextID int
}

func newFakeResource() *fakeResource {
	return &fakeResource{
		duration: math.NaN(),
		confirm:  true,
		subs:     make(map[int]func(Event)),
	}
}

func (r *fakeResource) Load(ctx context.Context, uri string) error {
	r.loads = append(r.loads, uri)
	return r.loadErr
}

func (r *fakeResource) Play(ctx context.Context, origin Origin) error {
	r.plays = append(r.plays, origin)
	if r.playErr != nil {
		return r.playErr
	}
	if r.confirm {
		r.emit(Event{Kind: EventPlayed})
	}
	return nil
}

func (r *fakeResource) Pause(ctx context.Context) error {
	r.pauses++
	if r.pauseErr != nil {
		return r.pauseErr
	}
	if r.confirm {
		r.emit(Event{Kind: EventPaused})
	}
	return nil
}

func (r *fakeResource) Position() float64 { return r.position }

func (r *fakeResource) SetPosition(seconds float64) error {
	if r.seekErr != nil {
		return r.seekErr
	}
	r.positions = append(r.positions, seconds)
	r.position = seconds
	return nil
}

func (r *fakeResource) Duration() float64 { return r.duration }

func (r *fakeResource) Subscribe(fn func(Event)) func() {
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	return func() { delete(r.subs, id) }
}

func (r *fakeResource) emit(ev Event) {
	for _, fn := range r.subs {
		fn(ev)
	}
}

// fakeLoop queues posted work until drained. Async runs work inline, which
// is enough to order it before its continuation.
type fakeLoop struct {
	queue []func()
}

func (l *fakeLoop) Post(fn func()) {
	l.queue = append(l.queue, fn)
}

func (l *fakeLoop) Async(work func() error, then func(error)) {
	err := work()
	l.Post(func() { then(err) })
}

func (l *fakeLoop) drain() {
	for len(l.queue) > 0 {
		fn := l.queue[0]
		l.queue = l.queue[1:]
		fn()
	}
}

// manualClock fires timers only when advanced
type manualClock struct {
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	pending := !t.stopped && !t.fired
	t.stopped = true
	return pending
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &manualTimer{at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) Advance(d time.Duration) {
	c.now += d
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.fired = true
		t.f()
	}
}

// pending counts timers that would still fire
func (c *manualClock) pending() int {
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type harness struct {
	res   *fakeResource
	loop  *fakeLoop
	clock *manualClock
	ctrl  *Controller
}

func newHarness() *harness {
	h := &harness{
		res:   newFakeResource(),
		loop:  &fakeLoop{},
		clock: &manualClock{},
	}
	h.ctrl = New(h.res, h.loop, WithClock(h.clock), WithFrameInterval(DefaultFrameInterval))
	return h
}

func (h *harness) init(uri string) error {
	err := h.ctrl.Initialize(context.Background(), uri)
	h.loop.drain()
	return err
}

// loadMetadata makes the resource report duration d
func (h *harness) loadMetadata(d float64) {
	h.res.duration = d
	h.res.emit(Event{Kind: EventMetadataReady})
	h.loop.drain()
}

// frame advances the clock by one sampling period and runs what it posted
func (h *harness) frame() {
	h.clock.Advance(DefaultFrameInterval)
	h.loop.drain()
}
