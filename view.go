package main

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"valentine/transport"
)

const blockedHint = "Tap ▶ to play music"

func (m model) View() string {
	if m.quitting {
		if m.supportsKitty {
			return kittyClear()
		}
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return ""
	}

	cfg := config.Get()
	l := m.layout()
	color := lipgloss.Color(m.color)

	card := m.renderCard(cfg, color)

	var rows []string
	rows = append(rows, m.renderBackdrop(card, l.cardH)...)
	if l.arena.h > 0 {
		rows = append(rows, m.renderArena(l, color)...)
	}
	rows = append(rows, "")
	rows = append(rows, m.renderAudioBar(l, color)...)

	return strings.Join(rows, "\n")
}

// renderCard builds the bordered slide: pills, title, message, photo, question
func (m model) renderCard(cfg Config, color lipgloss.Color) string {
	step := m.currentStep()
	accent := lipgloss.Color(step.AccentColor())

	highlight := lipgloss.NewStyle().Foreground(color)
	titleStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	pillStyle := lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	textStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("255"))

	borderColor := color
	if m.celebrating && m.frame%2 == 0 {
		borderColor = accent
	}
	borderStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(1, 2)

	inner := cfg.UI.MaxWidth - 6
	if m.width > 0 {
		inner = min(inner, m.width-6)
	}
	inner = max(inner, 10)

	showPhoto := cfg.Photos.Enabled && m.supportsKitty && m.photoEncoded != ""
	textWidth := inner
	if showPhoto {
		textWidth = max(inner-cfg.Photos.Padding, 10)
	}

	var header strings.Builder
	header.WriteString(mutedStyle.Render(fmt.Sprintf("Valentine Week • A little surprise for %s", m.deck.HerName)) + "\n")
	header.WriteString(titleStyle.Render(scrollText(m.deck.Title, inner, 0)) + "\n\n")
	header.WriteString(m.renderPills(pillStyle, mutedStyle) + "\n\n")
	header.WriteString(pillStyle.Render(fmt.Sprintf("● %s • %s", step.DayLabel, step.DateLabel)) + "\n")
	header.WriteString(titleStyle.Render(scrollText(step.Title, min(cfg.Text.MaxLength, inner), m.scrollOffset)) + "\n")
	header.WriteString(highlight.Render(sparkleLine(min(24, inner), m.frame)))

	var body strings.Builder
	for i, line := range wrapText(step.Message, textWidth-2) {
		prefix := "  "
		if i == 0 {
			prefix = highlight.Render("♥ ")
		}
		body.WriteString(prefix + textStyle.Render(line) + "\n")
	}
	body.WriteString("\n" + highlight.Render("♥") + " " + dimStyle.Render("Made with love · "+m.deck.YourName))

	if !showPhoto && cfg.Photos.Enabled && len(step.Photos) > 0 {
		ref := step.Photos[m.photoIndex%len(step.Photos)]
		caption := fmt.Sprintf("📷 %s (%d/%d)", filepath.Base(ref), m.photoIndex%len(step.Photos)+1, len(step.Photos))
		body.WriteString("\n" + mutedStyle.Render(scrollText(caption, textWidth, 0)))
	}

	var bodySection string
	switch {
	case showPhoto:
		// image on the left, text padded to its right
		bodySection = m.photoEncoded + lipgloss.NewStyle().
			PaddingLeft(cfg.Photos.Padding).
			Render(body.String())
	case m.supportsKitty:
		bodySection = kittyClear() + body.String()
	default:
		bodySection = body.String()
	}

	sections := []string{header.String(), "", bodySection}
	if m.onQuestion() {
		sections = append(sections, "", m.renderQuestion(inner, titleStyle, dimStyle, textStyle))
	}
	sections = append(sections, "", m.renderNav(inner, mutedStyle, highlight))

	if m.showHelp {
		sections = append(sections, "", m.renderHelp(inner, highlight))
	}

	return borderStyle.Width(inner + 4).Render(strings.Join(sections, "\n"))
}

func (m model) renderPills(active, inactive lipgloss.Style) string {
	var b strings.Builder
	for i := range m.deck.Steps {
		if i > 0 {
			b.WriteString(" ")
		}
		if i == m.step {
			b.WriteString(active.Render("●"))
		} else {
			b.WriteString(inactive.Render("○"))
		}
	}
	return b.String()
}

func (m model) renderQuestion(width int, title, dim, text lipgloss.Style) string {
	center := lipgloss.NewStyle().Width(width).Align(lipgloss.Center)

	lines := []string{
		center.Render(title.Render(m.deck.Prompt)),
		center.Render(dim.Render(m.deck.Subtitle)),
	}

	var reply string
	switch m.answer {
	case answerYes:
		reply = m.deck.YesReply
	case answerNo:
		reply = m.deck.NoReply
	}
	if reply != "" {
		lines = append(lines, "")
		for _, l := range wrapText(reply, width-2) {
			lines = append(lines, center.Render(text.Render(l)))
		}
	}
	return strings.Join(lines, "\n")
}

func (m model) renderNav(width int, muted, highlight lipgloss.Style) string {
	back := highlight.Render("← Back")
	if m.step == 0 {
		back = muted.Render("← Back")
	}
	next := highlight.Render("Next →")
	if m.step == len(m.deck.Steps)-1 {
		next = muted.Render("Next →")
	}
	counter := muted.Render(fmt.Sprintf("Step %d / %d", m.step+1, len(m.deck.Steps)))

	gap := width - lipgloss.Width(back) - lipgloss.Width(next) - lipgloss.Width(counter)
	left := max(gap/2, 1)
	right := max(gap-left, 1)
	return back + strings.Repeat(" ", left) + counter + strings.Repeat(" ", right) + next
}

func (m model) renderHelp(width int, highlight lipgloss.Style) string {
	return lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Render(strings.Join([]string{
			"Play/Pause: " + highlight.Render("space"),
			"Steps: " + highlight.Render("←/→"),
			"Yes: " + highlight.Render("y"),
			"Photos: " + highlight.Render("a"),
			"Quit: " + highlight.Render("q"),
			"Hide: " + highlight.Render("?"),
		}, "  "))
}

// renderBackdrop centers the card over the floating hearts; rows the card
// covers carry no hearts so photo lines stay stable between frames
func (m model) renderBackdrop(card string, height int) []string {
	if height <= 0 {
		return nil
	}

	heartStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.currentStep().AccentColor())).Faint(true)
	field := heartField(m.width, height, m.frame)
	if m.celebrating {
		field = burstField(m.width, height, m.frame)
	}

	cardLines := strings.Split(card, "\n")
	cardW := lipgloss.Width(card)
	x0 := max((m.width-cardW)/2, 0)
	y0 := max((height-len(cardLines))/2, 0)

	rows := make([]string, 0, height)
	for y := 0; y < height; y++ {
		ci := y - y0
		if ci >= 0 && ci < len(cardLines) {
			rows = append(rows, strings.Repeat(" ", x0)+cardLines[ci])
			continue
		}
		rows = append(rows, heartStyle.Render(field[y]))
	}
	return rows
}

// burstField is the denser, faster heart shower shown after a yes
func burstField(width, height, frame int) []string {
	a := heartField(width, height, frame*3)
	b := heartField(width, height, frame*3+height/2)
	out := make([]string, height)
	for y := range a {
		ra, rb := []rune(a[y]), []rune(b[y])
		for x := range ra {
			if ra[x] == ' ' && x < len(rb) {
				ra[x] = rb[x]
			}
		}
		out[y] = string(ra)
	}
	return out
}

// renderArena draws the Yes and No buttons at their layout positions
func (m model) renderArena(l screenLayout, color lipgloss.Color) []string {
	yesStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("#e11d48")).Bold(true)
	noStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	if m.answer == answerYes {
		yesStyle = yesStyle.Blink(m.celebrating)
	}

	rows := make([]string, l.arena.h)
	for i := range rows {
		y := l.arena.y + i
		type placed struct {
			x     int
			w     int
			label string
		}
		var items []placed
		if l.yes.y == y {
			items = append(items, placed{l.yes.x, l.yes.w, yesStyle.Render(yesLabel)})
		}
		if l.no.y == y && m.answer != answerYes {
			items = append(items, placed{l.no.x, l.no.w, noStyle.Render(noLabel)})
		}
		if len(items) == 2 && items[1].x < items[0].x {
			items[0], items[1] = items[1], items[0]
		}

		var b strings.Builder
		col := 0
		for _, it := range items {
			if it.x < col {
				// overlapping buttons on a cramped screen
				continue
			}
			b.WriteString(strings.Repeat(" ", it.x-col))
			b.WriteString(it.label)
			col = it.x + it.w
		}
		rows[i] = b.String()
	}
	return rows
}

// renderAudioBar draws the seek track and the transport controls
func (m model) renderAudioBar(l screenLayout, color lipgloss.Color) []string {
	snap := m.ctrl.Snapshot()

	highlight := lipgloss.NewStyle().Foreground(color)
	rail := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	hintStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	track := strings.Repeat(" ", l.track.x) + renderTrack(l.track.w, snap.Percent, snap.Seeking, highlight, rail)

	icon := "▶"
	if snap.Playing {
		icon = "⏸"
	}
	controls := strings.Repeat(" ", l.toggle.x) + highlight.Render("["+icon+"]") + " " +
		mutedStyle.Render(fmt.Sprintf("%s • %s", snap.CurrentText, snap.DurationText))

	switch {
	case snap.Failed:
		controls += "   " + errorStyle.Render("audio unavailable")
	case snap.AutoplayBlocked:
		controls += "   " + hintStyle.Render(blockedHint)
	case !snap.Ready:
		controls += "   " + mutedStyle.Render("loading "+transport.Loading)
	}
	if !m.showHelp {
		controls += "   " + lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("Press ? for help")
	}

	return []string{track, controls}
}

// renderTrack draws a width-cell seek track with a knob at percent
func renderTrack(width int, percent float64, seeking bool, filled, rail lipgloss.Style) string {
	if width <= 0 {
		return ""
	}
	knob := int(math.Round(percent / 100 * float64(width-1)))
	knob = min(max(knob, 0), width-1)

	knobGlyph := "●"
	if seeking {
		knobGlyph = "◉"
	}
	return filled.Render(strings.Repeat("━", knob)+knobGlyph) + rail.Render(strings.Repeat("─", width-knob-1))
}
