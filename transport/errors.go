package transport

import "errors"

// ErrPlaybackStartRejected is returned by a Resource when the host refuses
// to start playback, typically an autoplay attempt without a user gesture.
var ErrPlaybackStartRejected = errors.New("playback start rejected")

// ErrDisposed is returned by operations on a disposed controller
var ErrDisposed = errors.New("controller disposed")

// IsPlaybackStartRejected reports whether err is a play rejection
func IsPlaybackStartRejected(err error) bool {
	return errors.Is(err, ErrPlaybackStartRejected)
}
