package transport

import "math"

// TrackRatio maps a horizontal pointer offset inside a track of the given
// width to [0, 1]. A track with no measured width yields 0.
func TrackRatio(offset, width float64) float64 {
	if !finite(width) || width <= 0 || math.IsNaN(offset) {
		return 0
	}
	return clamp(offset, 0, width) / width
}

// SeekSession is exclusive pointer capture for one drag on the seek track.
// Release always ends the controller's seek, wherever the pointer is, and
// is safe to call more than once.
type SeekSession struct {
	c      *Controller
	active bool
}

// Capture starts a drag at ratio and returns the session holding the
// pointer. Any session still held by the caller should be released first.
func (c *Controller) Capture(ratio float64) *SeekSession {
	s := &SeekSession{c: c, active: true}
	c.BeginSeek(ratio)
	return s
}

// Move forwards a pointer move while the capture is held
func (s *SeekSession) Move(ratio float64) {
	if s == nil || !s.active {
		return
	}
	s.c.ContinueSeek(ratio)
}

// Active reports whether the session still holds the pointer
func (s *SeekSession) Active() bool {
	return s != nil && s.active
}

// Release ends the drag; used for pointer up, cancel and focus loss alike
func (s *SeekSession) Release() {
	if s == nil || !s.active {
		return
	}
	s.active = false
	s.c.EndSeek()
}
