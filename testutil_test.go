package main

import (
	"image"
	"image/color"
	"regexp"
	"testing"
)

// generateTestImage creates a solid test photo
func generateTestImage(width, height int, fillColor color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fillColor)
		}
	}
	return img
}

// generateGradientImage creates a vertical gradient for accent extraction tests
func generateGradientImage(width, height int, startColor, endColor color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		ratio := float64(y) / float64(height)
		r := uint8(float64(startColor.R)*(1-ratio) + float64(endColor.R)*ratio)
		g := uint8(float64(startColor.G)*(1-ratio) + float64(endColor.G)*ratio)
		b := uint8(float64(startColor.B)*(1-ratio) + float64(endColor.B)*ratio)

		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{r, g, b, 255})
		}
	}

	return img
}

// assertError fails the test if err is nil
func assertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Errorf("Expected error: %s, got nil", msg)
	}
}

// assertNoError stops the test on an unexpected error
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

// assertEqual compares comparable values
func assertEqual(t *testing.T, got, want interface{}, msg string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %v, want %v", msg, got, want)
	}
}

var hexColor6 = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// isValidHexColor checks for the #RRGGBB form produced by accent extraction
func isValidHexColor(color string) bool {
	return hexColor6.MatchString(color)
}
