package transport

import (
	"fmt"
	"math"
)

const (
	// Placeholder is shown for unknown or non-finite times
	Placeholder = "0:00"
	// Loading is shown for the duration until metadata arrives
	Loading = "…"
)

// FormatClock converts seconds to m:ss
func FormatClock(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return Placeholder
	}
	total := int64(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// ProgressPercent returns position as a percentage of duration in [0, 100]
func ProgressPercent(position, duration float64) float64 {
	if !finite(duration) || duration <= 0 || !finite(position) {
		return 0
	}
	pct := position / duration * 100
	return clamp(pct, 0, 100)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
