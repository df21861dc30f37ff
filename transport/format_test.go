package transport

import (
	"math"
	"testing"
)

func posInf() float64 { return math.Inf(1) }

// TestFormatClock tests the FormatClock function with various inputs
func TestFormatClock(t *testing.T) {
	tests := []struct {
		name     string
		seconds  float64
		expected string
	}{
		{"zero seconds", 0, "0:00"},
		{"under 10 seconds", 5, "0:05"},
		{"fraction truncated", 9.99, "0:09"},
		{"exactly one minute", 60, "1:00"},
		{"over one minute", 65, "1:05"},
		{"fractional over one minute", 65.4, "1:05"},
		{"exactly 10 minutes", 600, "10:00"},
		{"over one hour", 3661, "61:01"},
		{"NaN", math.NaN(), Placeholder},
		{"positive infinity", math.Inf(1), Placeholder},
		{"negative infinity", math.Inf(-1), Placeholder},
		{"negative", -3, Placeholder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatClock(tt.seconds)
			if result != tt.expected {
				t.Errorf("FormatClock(%v) = %q; want %q", tt.seconds, result, tt.expected)
			}
		})
	}
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		name     string
		position float64
		duration float64
		expected float64
	}{
		{"start", 0, 120, 0},
		{"half", 60, 120, 50},
		{"end", 120, 120, 100},
		{"zero duration", 30, 0, 0},
		{"NaN duration", 30, math.NaN(), 0},
		{"infinite duration", 30, math.Inf(1), 0},
		{"NaN position", math.NaN(), 100, 0},
		{"past end", 150, 120, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ProgressPercent(tt.position, tt.duration)
			if result != tt.expected {
				t.Errorf("ProgressPercent(%v, %v) = %v; want %v", tt.position, tt.duration, result, tt.expected)
			}
		})
	}
}

// TestProgressPercentProperty checks p/d*100 over a grid of durations
func TestProgressPercentProperty(t *testing.T) {
	for _, d := range []float64{0.5, 1, 37, 180, 3600} {
		for _, frac := range []float64{0, 0.1, 0.33, 0.5, 0.99, 1} {
			p := frac * d
			want := p / d * 100
			if got := ProgressPercent(p, d); got != want {
				t.Errorf("ProgressPercent(%v, %v) = %v; want %v", p, d, got, want)
			}
		}
	}
}

func BenchmarkFormatClock(b *testing.B) {
	for i := 0; i < b.N; i++ {
		FormatClock(12345.6)
	}
}
