package transport

import (
	"context"
	"time"
)

// EventKind identifies a media resource lifecycle notification
type EventKind int

const (
	// EventMetadataReady fires once the resource knows its duration
	EventMetadataReady EventKind = iota
	// EventPlayed confirms playback actually started
	EventPlayed
	// EventPaused confirms playback actually stopped
	EventPaused
	// EventFailed reports a terminal resource error (fetch, decode)
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventMetadataReady:
		return "metadata-ready"
	case EventPlayed:
		return "play"
	case EventPaused:
		return "pause"
	case EventFailed:
		return "error"
	}
	return "unknown"
}

// Event is a notification emitted by a Resource
type Event struct {
	Kind EventKind
	Err  error // set for EventFailed
}

// Origin tells the host who asked for playback, so it can apply its
// autoplay policy.
type Origin int

const (
	OriginAutoplay Origin = iota
	OriginUser
)

func (o Origin) String() string {
	if o == OriginUser {
		return "user"
	}
	return "autoplay"
}

// Resource is a playable audio handle owned by the host environment.
// Play and Pause may block; the controller only calls them through
// Loop.Async. Position, SetPosition and Duration must not block.
type Resource interface {
	Load(ctx context.Context, uri string) error
	Play(ctx context.Context, origin Origin) error
	Pause(ctx context.Context) error
	Position() float64
	SetPosition(seconds float64) error
	// Duration returns NaN until metadata is available
	Duration() float64
	// Subscribe registers fn for resource events. Events may be delivered
	// on any goroutine; the returned func removes the subscription.
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Loop is the single execution context that owns controller state.
//
// Post and the then callback of Async must run fn on that context. Neither
// may be called from the context itself in a way that blocks it.
type Loop interface {
	Post(fn func())
	Async(work func() error, then func(error))
}

// Timer is a pending AfterFunc call
type Timer interface {
	Stop() bool
}

// Clock schedules the sampling loop
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the wall clock
var SystemClock Clock = realClock{}
