package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// scrollSeparator joins the end of a scrolling title back to its start
const scrollSeparator = "  •  "

// scrollText returns a scrolling window of text with smooth looping
func scrollText(text string, max int, offset int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max <= 0 {
		return ""
	}

	fullText := append(runes, []rune(scrollSeparator)...)
	textLen := len(fullText)

	offset = offset % textLen
	if offset < 0 {
		offset += textLen
	}

	var result []rune
	for i := 0; i < max; i++ {
		result = append(result, fullText[(offset+i)%textLen])
	}
	return string(result)
}

// wrapText breaks text on spaces so no line is wider than width cells
// Words longer than width are left on their own line
func wrapText(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if width <= 0 {
		return []string{strings.Join(words, " ")}
	}

	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if lipgloss.Width(line)+1+lipgloss.Width(w) > width {
			lines = append(lines, line)
			line = w
			continue
		}
		line += " " + w
	}
	return append(lines, line)
}

var heartGlyphs = []rune{'♥', '♡', '·', '♥', '✦'}

// heartField renders the floating hearts backdrop for a given frame
// Hearts drift upward one row every few frames and wrap at the top
func heartField(width, height, frame int) []string {
	if width <= 0 || height <= 0 {
		return nil
	}

	rows := make([][]rune, height)
	for y := range rows {
		rows[y] = []rune(strings.Repeat(" ", width))
	}

	count := max(width*height/90, 3)
	for i := 0; i < count; i++ {
		// fixed pseudo-random column and phase per heart
		seed := uint32(i)*2654435761 + 12345
		x := int(seed>>8) % width
		speed := 2 + int(seed>>20)%3
		phase := int(seed>>12) % height
		y := (height - 1) - ((frame/speed + phase) % height)
		rows[y][x] = heartGlyphs[i%len(heartGlyphs)]
	}

	out := make([]string, height)
	for y, r := range rows {
		out[y] = string(r)
	}
	return out
}

// sparkleLine is the twinkling divider under a slide title
func sparkleLine(width, frame int) string {
	if width <= 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < width; i++ {
		switch (i + frame) % 6 {
		case 0:
			b.WriteRune('✦')
		case 3:
			b.WriteRune('·')
		default:
			b.WriteRune('─')
		}
	}
	return b.String()
}
