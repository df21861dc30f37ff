package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/EdlinOrg/prominentcolor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
)

const (
	photoFetchTimeout = 10 * time.Second
	maxPhotoBytes     = 16 << 20
	kittyImageID      = 42
	kittyChunkSize    = 4096
)

var photoClient = &http.Client{Timeout: photoFetchTimeout}

// photoMsg carries a processed slide photo back to the model
type photoMsg struct {
	step    int
	ref     string
	color   string
	encoded string
	err     error
}

// readPhoto opens a local path, file:// URL or http(s) URL
func readPhoto(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, fmt.Errorf("empty photo reference")
	}

	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// plain path (a one-letter scheme is a Windows drive)
		return readPhotoFile(ref)
	}

	switch u.Scheme {
	case "file":
		return readPhotoFile(u.Path)
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		resp, err := photoClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch photo: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("failed to fetch photo: %s", resp.Status)
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	default:
		return nil, fmt.Errorf("unsupported photo scheme %q", u.Scheme)
	}
}

func readPhotoFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open photo: %w", err)
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxPhotoBytes))
}

// decodePhoto decodes raw image bytes (png, jpeg, gif or webp)
func decodePhoto(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return img, nil
}

// Extract an accent color from a photo
// Prefers vibrant, light colors that stay readable on dark backgrounds
func extractAccentColor(img image.Image) (string, error) {
	if img == nil {
		return "", fmt.Errorf("nil image")
	}

	bounds := img.Bounds()

	// Sample every 5th pixel
	colorMap := make(map[uint32]int)
	const sampleRate = 5

	for y := bounds.Min.Y; y < bounds.Max.Y; y += sampleRate {
		for x := bounds.Min.X; x < bounds.Max.X; x += sampleRate {
			r, g, b, a := img.At(x, y).RGBA()

			// Skip transparent pixels
			if a < 32768 {
				continue
			}

			rgb := (uint32(uint8(r>>8)) << 16) | (uint32(uint8(g>>8)) << 8) | uint32(uint8(b>>8))
			colorMap[rgb]++
		}
	}

	type colorScore struct {
		rgb   uint32
		score float64
	}

	var candidates []colorScore

	for rgb, count := range colorMap {
		lightness, saturation := hsl(rgb)

		// Too dark, near-white or washed out
		if lightness < 0.3 || lightness > 0.85 || saturation < 0.25 {
			continue
		}

		lightnessScore := lightness
		if lightness > 0.7 {
			lightnessScore = 0.7 - (lightness - 0.7)
		}

		// warm hues get a small bonus so roses beat skies
		score := (saturation * 2.5) + (lightnessScore * 1.5) + (float64(count) / 1000.0) + warmth(rgb)*0.5

		candidates = append(candidates, colorScore{rgb: rgb, score: score})
	}

	if len(candidates) == 0 {
		// Fallback: K-means when sampling finds nothing usable
		colors, err := prominentcolor.Kmeans(img)
		if err != nil || len(colors) == 0 {
			return "", fmt.Errorf("no suitable colors found")
		}
		c := colors[0]
		return fmt.Sprintf("#%02x%02x%02x", c.Color.R, c.Color.G, c.Color.B), nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score == candidates[j].score {
			return candidates[i].rgb < candidates[j].rgb
		}
		return candidates[i].score > candidates[j].score
	})

	best := candidates[0].rgb
	return fmt.Sprintf("#%02x%02x%02x", uint8(best>>16), uint8(best>>8), uint8(best)), nil
}

// hsl returns lightness and saturation of a packed RGB value
func hsl(rgb uint32) (lightness, saturation float64) {
	rf := float64(uint8(rgb>>16)) / 255.0
	gf := float64(uint8(rgb>>8)) / 255.0
	bf := float64(uint8(rgb)) / 255.0

	hi := max(rf, gf, bf)
	lo := min(rf, gf, bf)

	lightness = (hi + lo) / 2.0
	if hi != lo {
		if lightness > 0.5 {
			saturation = (hi - lo) / (2.0 - hi - lo)
		} else {
			saturation = (hi - lo) / (hi + lo)
		}
	}
	return lightness, saturation
}

// warmth is 1 for pure reds and magentas, 0 for greens and blues
func warmth(rgb uint32) float64 {
	r := float64(uint8(rgb >> 16))
	g := float64(uint8(rgb >> 8))
	if r == 0 {
		return 0
	}
	w := (r - g) / r
	if w < 0 {
		return 0
	}
	return w
}

// Check if terminal supports Kitty graphics protocol
func supportsKittyGraphics() bool {
	term := os.Getenv("TERM")
	termProgram := os.Getenv("TERM_PROGRAM")

	if strings.Contains(term, "kitty") || strings.Contains(term, "konsole") {
		return true
	}

	// Ghostty and WezTerm identify themselves via TERM_PROGRAM
	if termProgram == "ghostty" || termProgram == "WezTerm" {
		return true
	}

	return false
}

// kittyClear removes the slide photo from the screen
func kittyClear() string {
	return fmt.Sprintf("\033_Ga=d,d=I,i=%d\033\\", kittyImageID)
}

// encodeForKitty resizes a photo and wraps it in Kitty graphics escapes
func encodeForKitty(img image.Image, widthPixels, widthColumns int) (string, error) {
	if img == nil {
		return "", fmt.Errorf("nil image")
	}
	if widthPixels <= 0 || widthColumns <= 0 {
		return "", fmt.Errorf("invalid photo size %dpx / %d columns", widthPixels, widthColumns)
	}

	// Kitty handles final sizing from the column count
	resized := resize.Resize(uint(widthPixels), 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return "", fmt.Errorf("failed to encode PNG: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	var result strings.Builder

	// Replace any previous slide photo
	result.WriteString(kittyClear())

	if len(encoded) <= kittyChunkSize {
		result.WriteString(fmt.Sprintf("\033_Ga=T,f=100,t=d,i=%d,c=%d,C=1;%s\033\\", kittyImageID, widthColumns, encoded))
		return result.String(), nil
	}

	for i := 0; i < len(encoded); i += kittyChunkSize {
		end := min(i+kittyChunkSize, len(encoded))
		chunk := encoded[i:end]

		switch {
		case i == 0:
			result.WriteString(fmt.Sprintf("\033_Ga=T,f=100,t=d,i=%d,c=%d,C=1,m=1;%s\033\\", kittyImageID, widthColumns, chunk))
		case end == len(encoded):
			result.WriteString(fmt.Sprintf("\033_Gm=0;%s\033\\", chunk))
		default:
			result.WriteString(fmt.Sprintf("\033_Gm=1;%s\033\\", chunk))
		}
	}

	return result.String(), nil
}

// processPhoto decodes once and returns both the accent color and the Kitty payload
func processPhoto(data []byte, cfg Config, extractColor, kitty bool) (color string, encoded string, err error) {
	img, err := decodePhoto(data)
	if err != nil {
		return "", "", err
	}

	if extractColor {
		if c, err := extractAccentColor(img); err == nil && c != "" {
			color = c
		}
	}

	if kitty {
		if enc, err := encodeForKitty(img, cfg.Photos.WidthPixels, cfg.Photos.WidthColumns); err == nil {
			encoded = enc
		}
	}

	return color, encoded, nil
}

// loadPhotoCmd fetches and processes a slide photo off the UI goroutine
func loadPhotoCmd(ctx context.Context, step int, ref string, kitty bool) tea.Cmd {
	cfg := config.Get()
	return func() tea.Msg {
		data, err := readPhoto(ctx, ref)
		if err != nil {
			return photoMsg{step: step, ref: ref, err: err}
		}
		color, encoded, err := processPhoto(data, cfg, cfg.UI.ColorMode == "auto", kitty)
		return photoMsg{step: step, ref: ref, color: color, encoded: encoded, err: err}
	}
}
