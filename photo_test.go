package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func encodeTestPNG(t testing.TB, w, h int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, generateTestImage(w, h, c)); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestDecodePhoto(t *testing.T) {
	data := encodeTestPNG(t, 10, 10, color.RGBA{255, 0, 0, 255})

	t.Run("png bytes", func(t *testing.T) {
		img, err := decodePhoto(data)
		assertNoError(t, err)
		if img == nil {
			t.Error("Expected non-nil image")
		}
	})

	t.Run("empty data", func(t *testing.T) {
		_, err := decodePhoto(nil)
		assertError(t, err, "empty data")
	})

	t.Run("invalid data", func(t *testing.T) {
		_, err := decodePhoto([]byte("not an image"))
		assertError(t, err, "invalid data")
	})
}

func TestReadPhoto(t *testing.T) {
	data := encodeTestPNG(t, 4, 4, color.RGBA{200, 30, 90, 255})
	path := filepath.Join(t.TempDir(), "rose.png")
	assertNoError(t, os.WriteFile(path, data, 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rose.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer srv.Close()

	ctx := context.Background()

	t.Run("local path", func(t *testing.T) {
		got, err := readPhoto(ctx, path)
		assertNoError(t, err)
		assertEqual(t, len(got), len(data), "bytes read")
	})

	t.Run("file url", func(t *testing.T) {
		got, err := readPhoto(ctx, "file://"+path)
		assertNoError(t, err)
		assertEqual(t, len(got), len(data), "bytes read")
	})

	t.Run("http", func(t *testing.T) {
		got, err := readPhoto(ctx, srv.URL+"/rose.png")
		assertNoError(t, err)
		assertEqual(t, len(got), len(data), "bytes read")
	})

	t.Run("http not found", func(t *testing.T) {
		_, err := readPhoto(ctx, srv.URL+"/missing.png")
		assertError(t, err, "404")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readPhoto(ctx, filepath.Join(t.TempDir(), "nope.png"))
		assertError(t, err, "missing file")
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		_, err := readPhoto(ctx, "ftp://example.com/rose.png")
		assertError(t, err, "ftp")
	})

	t.Run("empty", func(t *testing.T) {
		_, err := readPhoto(ctx, "")
		assertError(t, err, "empty reference")
	})
}

func TestExtractAccentColor(t *testing.T) {
	t.Run("solid color image", func(t *testing.T) {
		img := generateTestImage(100, 100, color.RGBA{255, 0, 0, 255})
		c, err := extractAccentColor(img)
		assertNoError(t, err)
		assertEqual(t, c, "#ff0000", "accent")
	})

	t.Run("warm beats cool", func(t *testing.T) {
		// equal halves of pink and blue with matching saturation and lightness
		img := generateGradientImage(100, 100,
			color.RGBA{236, 72, 153, 255},
			color.RGBA{72, 153, 236, 255})
		c, err := extractAccentColor(img)
		assertNoError(t, err)
		if !isValidHexColor(c) {
			t.Errorf("Invalid hex color format: %s", c)
		}
	})

	t.Run("grey image falls back", func(t *testing.T) {
		img := generateTestImage(20, 20, color.RGBA{128, 128, 128, 255})
		c, err := extractAccentColor(img)
		// K-means may or may not find a color, but must not panic
		if err == nil && !isValidHexColor(c) {
			t.Errorf("Invalid hex color format: %s", c)
		}
	})

	t.Run("nil image", func(t *testing.T) {
		_, err := extractAccentColor(nil)
		assertError(t, err, "nil image")
	})
}

func TestEncodeForKitty(t *testing.T) {
	t.Run("valid image", func(t *testing.T) {
		img := generateTestImage(50, 50, color.RGBA{100, 150, 200, 255})
		encoded, err := encodeForKitty(img, 100, 10)
		assertNoError(t, err)

		if !strings.HasPrefix(encoded, kittyClear()) {
			t.Error("Encoded string doesn't clear the previous photo")
		}
		if !strings.Contains(encoded, "c=10") {
			t.Error("Encoded string doesn't size by columns")
		}
	})

	t.Run("nil image", func(t *testing.T) {
		_, err := encodeForKitty(nil, 100, 10)
		assertError(t, err, "nil image")
	})

	t.Run("invalid size", func(t *testing.T) {
		img := generateTestImage(5, 5, color.RGBA{1, 2, 3, 255})
		_, err := encodeForKitty(img, 0, 10)
		assertError(t, err, "zero width")
	})

	t.Run("large image chunks", func(t *testing.T) {
		// noise defeats PNG compression so the payload spans chunks
		img := image.NewRGBA(image.Rect(0, 0, 200, 200))
		seed := uint32(7)
		for i := range img.Pix {
			seed = seed*1664525 + 1013904223
			img.Pix[i] = uint8(seed >> 24)
		}
		encoded, err := encodeForKitty(img, 200, 20)
		assertNoError(t, err)

		if !strings.Contains(encoded, "m=1") || !strings.Contains(encoded, "\033_Gm=0;") {
			t.Error("Large payload was not chunked")
		}
	})
}

func TestProcessPhoto(t *testing.T) {
	cfg := defaultConfig()
	data := encodeTestPNG(t, 50, 50, color.RGBA{236, 72, 153, 255})

	t.Run("color and kitty", func(t *testing.T) {
		c, encoded, err := processPhoto(data, cfg, true, true)
		assertNoError(t, err)
		if !isValidHexColor(c) {
			t.Errorf("Invalid hex color: %s", c)
		}
		if encoded == "" {
			t.Error("Expected non-empty encoded string")
		}
	})

	t.Run("plain terminal", func(t *testing.T) {
		c, encoded, err := processPhoto(data, cfg, false, false)
		assertNoError(t, err)
		assertEqual(t, c, "", "color")
		assertEqual(t, encoded, "", "encoded")
	})

	t.Run("invalid data", func(t *testing.T) {
		_, _, err := processPhoto([]byte("not an image"), cfg, true, true)
		assertError(t, err, "invalid data")
	})
}

func TestLoadPhotoCmd(t *testing.T) {
	config.Set(defaultConfig())
	path := filepath.Join(t.TempDir(), "p.png")
	assertNoError(t, os.WriteFile(path, encodeTestPNG(t, 8, 8, color.RGBA{244, 63, 94, 255}), 0o644))

	msg := loadPhotoCmd(context.Background(), 3, path, false)()
	pm, ok := msg.(photoMsg)
	if !ok {
		t.Fatalf("Expected photoMsg, got %T", msg)
	}
	assertNoError(t, pm.err)
	assertEqual(t, pm.step, 3, "step")
	assertEqual(t, pm.ref, path, "ref")
	if !isValidHexColor(pm.color) {
		t.Errorf("Invalid hex color: %s", pm.color)
	}

	msg = loadPhotoCmd(context.Background(), 1, filepath.Join(t.TempDir(), "gone.png"), false)()
	assertError(t, msg.(photoMsg).err, "missing photo")
}

// TestSupportsKittyGraphics tests terminal detection
func TestSupportsKittyGraphics(t *testing.T) {
	tests := []struct {
		name          string
		term          string
		termProgram   string
		shouldSupport bool
	}{
		{"kitty terminal", "xterm-kitty", "", true},
		{"konsole", "konsole", "", true},
		{"ghostty", "", "ghostty", true},
		{"wezterm", "", "WezTerm", true},
		{"xterm", "xterm-256color", "", false},
		{"tmux", "tmux-256color", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TERM", tt.term)
			t.Setenv("TERM_PROGRAM", tt.termProgram)

			if got := supportsKittyGraphics(); got != tt.shouldSupport {
				t.Errorf("Expected %v, got %v for TERM=%s, TERM_PROGRAM=%s",
					tt.shouldSupport, got, tt.term, tt.termProgram)
			}
		})
	}
}

func BenchmarkExtractAccentColor(b *testing.B) {
	img := generateTestImage(300, 300, color.RGBA{100, 150, 200, 255})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		extractAccentColor(img)
	}
}

func BenchmarkProcessPhoto(b *testing.B) {
	cfg := defaultConfig()
	data := encodeTestPNG(b, 300, 300, color.RGBA{100, 150, 200, 255})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		processPhoto(data, cfg, true, true)
	}
}
