package main

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"valentine/transport"
)

const (
	barRows     = 3 // spacer, seek track, controls
	arenaHeight = 5
	arenaPad    = 2
	trackInset  = 2

	yesLabel    = "[ Yes 💖 ]"
	noLabel     = "[ No 🙈 ]"
	toggleWidth = 3
)

type answer int

const (
	answerNone answer = iota
	answerYes
	answerNo
)

type rect struct {
	x, y, w, h int
}

func (r rect) contains(x, y int) bool {
	return r.w > 0 && r.h > 0 && x >= r.x && x < r.x+r.w && y >= r.y && y < r.y+r.h
}

// screenLayout is shared by View and mouse hit-testing
type screenLayout struct {
	cardH  int
	arena  rect
	yes    rect
	no     rect
	track  rect
	toggle rect
}

// model is the Bubble Tea model for the slideshow
type model struct {
	ctx   context.Context
	deck  *Deck
	step  int
	ctrl  *transport.Controller
	seek  *transport.SeekSession
	log   *slog.Logger
	color string

	width  int
	height int
	frame  int

	// Slide photos
	supportsKitty bool
	photoIndex    int
	photoTicks    int
	photoEncoded  string
	photoColor    string
	photoCache    map[string]photoMsg

	// Final question
	answer      answer
	celebrating bool
	noMoved     bool
	noPos       struct{ x, y int }
	rng         *rand.Rand

	// Text scrolling state
	scrollOffset int
	scrollPause  int
	scrollTick   int

	showHelp bool
	quitting bool
}

// UI refresh tick
type tickMsg time.Time

// celebrateDoneMsg ends the yes burst
type celebrateDoneMsg struct{}

func newModel(ctx context.Context, deck *Deck, ctrl *transport.Controller, kitty bool) model {
	cfg := config.Get()
	return model{
		ctx:           ctx,
		deck:          deck,
		ctrl:          ctrl,
		log:           slog.Default().With("component", "ui"),
		color:         initialColor(cfg, deck.Step(0)),
		supportsKitty: kitty,
		photoCache:    make(map[string]photoMsg),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		scrollPause:   30,
	}
}

func initialColor(cfg Config, s Step) string {
	if cfg.UI.ColorMode == "manual" {
		return cfg.UI.Color
	}
	return s.AccentColor()
}

// Schedule next UI refresh tick
func tickCmd() tea.Cmd {
	cfg := config.Get()
	return tea.Tick(time.Duration(cfg.Timing.UIRefreshMs)*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func celebrateCmd() tea.Cmd {
	cfg := config.Get()
	return tea.Tick(time.Duration(cfg.Timing.CelebrateMs)*time.Millisecond, func(time.Time) tea.Msg {
		return celebrateDoneMsg{}
	})
}

func (m model) currentStep() Step {
	return m.deck.Step(m.step)
}

func (m model) onQuestion() bool {
	return m.step == m.deck.QuestionIndex()
}

func (m model) currentPhotoRef() string {
	photos := m.currentStep().Photos
	if len(photos) == 0 {
		return ""
	}
	return m.deck.ResolvePhoto(photos[m.photoIndex%len(photos)])
}

// loadPhoto shows a cached photo or fetches it in the background
func (m *model) loadPhoto() tea.Cmd {
	cfg := config.Get()
	ref := m.currentPhotoRef()
	if !cfg.Photos.Enabled || ref == "" {
		m.photoEncoded = ""
		return nil
	}
	if cached, ok := m.photoCache[ref]; ok {
		m.applyPhoto(cached)
		return nil
	}
	m.photoEncoded = ""
	return loadPhotoCmd(m.ctx, m.step, ref, m.supportsKitty)
}

func (m *model) applyPhoto(msg photoMsg) {
	m.photoEncoded = msg.encoded
	m.photoColor = msg.color
	if config.Get().UI.ColorMode == "auto" {
		if msg.color != "" {
			m.color = msg.color
		} else {
			m.color = m.currentStep().AccentColor()
		}
	}
}

func (m model) layout() screenLayout {
	var l screenLayout
	l.track = rect{x: trackInset, y: m.height - 2, w: max(m.width-2*trackInset, 1), h: 1}
	l.toggle = rect{x: trackInset, y: m.height - 1, w: toggleWidth, h: 1}
	l.cardH = max(m.height-barRows, 0)

	if !m.onQuestion() {
		return l
	}

	l.arena = rect{x: 0, y: max(l.cardH-arenaHeight, 0), w: m.width, h: arenaHeight}
	l.cardH = l.arena.y

	yesW := lipgloss.Width(yesLabel)
	noW := lipgloss.Width(noLabel)
	l.yes = rect{x: max(m.width/2-yesW-arenaPad, 0), y: l.arena.y + arenaHeight/2, w: yesW, h: 1}
	if m.noMoved {
		l.no = rect{x: m.noPos.x, y: l.arena.y + m.noPos.y, w: noW, h: 1}
	} else {
		l.no = rect{x: m.width/2 + arenaPad, y: l.yes.y, w: noW, h: 1}
	}
	return l
}

// evadePosition picks a random spot for the No button inside the arena,
// clamped away from the edges and clear of the Yes button
func evadePosition(rng *rand.Rand, arenaW, btnW int, yes, current rect) (x, y int) {
	maxX := arenaW - btnW
	lo, hi := arenaPad, maxX-arenaPad
	if hi < lo {
		lo, hi = 0, max(maxX, 0)
	}

	for attempt := 0; attempt < 16; attempt++ {
		x = lo + rng.Intn(hi-lo+1)
		y = rng.Intn(arenaHeight)
		if overlaps(rect{x: x, y: y, w: btnW, h: 1}, yes) || (x == current.x && y == current.y) {
			continue
		}
		return x, y
	}
	return x, y
}

func overlaps(a, b rect) bool {
	return a.x < b.x+b.w && b.x < a.x+a.w && a.y < b.y+b.h && b.y < a.y+a.h
}

func (m *model) evadeNo() {
	l := m.layout()
	if l.arena.w == 0 {
		return
	}
	yes := l.yes
	yes.y -= l.arena.y
	cur := l.no
	cur.y -= l.arena.y
	m.noPos.x, m.noPos.y = evadePosition(m.rng, l.arena.w, l.no.w, yes, cur)
	m.noMoved = true
}

func (m *model) goTo(step int) tea.Cmd {
	step = clampIndex(step, len(m.deck.Steps))
	if step == m.step {
		return nil
	}
	m.step = step
	m.photoIndex = 0
	m.photoTicks = 0
	m.scrollOffset = 0
	m.scrollPause = 30
	m.scrollTick = 0

	// leaving the question resets it
	if !m.onQuestion() {
		m.answer = answerNone
		m.celebrating = false
		m.noMoved = false
	}
	if config.Get().UI.ColorMode == "auto" {
		m.color = m.currentStep().AccentColor()
	}
	return m.loadPhoto()
}

func (m *model) sayYes() tea.Cmd {
	if !m.onQuestion() {
		return nil
	}
	m.answer = answerYes
	m.celebrating = true
	m.log.Info("valentine accepted")
	return celebrateCmd()
}

func (m *model) releaseSeek() {
	m.seek.Release()
	m.seek = nil
}

func (m model) trackRatio(x int, l screenLayout) float64 {
	return transport.TrackRatio(float64(x-l.track.x), float64(l.track.w-1))
}

func (m model) handleMouse(msg tea.MouseMsg) (model, tea.Cmd) {
	l := m.layout()

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return m, nil
		}
		switch {
		case l.track.contains(msg.X, msg.Y):
			m.releaseSeek()
			m.seek = m.ctrl.Capture(m.trackRatio(msg.X, l))
		case l.toggle.contains(msg.X, msg.Y):
			m.ctrl.Toggle()
		case l.yes.contains(msg.X, msg.Y):
			return m, m.sayYes()
		case l.no.contains(msg.X, msg.Y):
			m.answer = answerNo
		}

	case tea.MouseActionMotion:
		if m.seek.Active() {
			m.seek.Move(m.trackRatio(msg.X, l))
			return m, nil
		}
		if l.no.contains(msg.X, msg.Y) && m.answer != answerYes {
			m.evadeNo()
		}

	case tea.MouseActionRelease:
		if m.seek.Active() {
			m.seek.Move(m.trackRatio(msg.X, l))
			m.releaseSeek()
		}
	}
	return m, nil
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		watchConfigCmd(),
		m.loadPhoto(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dispatchMsg:
		// transport callbacks run here, on the UI goroutine
		msg()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.releaseSeek()
			m.ctrl.Dispose()
			m.quitting = true
			return m, tea.Quit
		case " ", "p":
			m.ctrl.Toggle()
			return m, nil
		case "right", "l":
			return m, m.goTo(m.step + 1)
		case "left", "h":
			return m, m.goTo(m.step - 1)
		case "enter":
			if m.onQuestion() {
				return m, m.sayYes()
			}
			return m, m.goTo(m.step + 1)
		case "y":
			return m, m.sayYes()
		case "n":
			if m.onQuestion() && m.answer != answerYes {
				m.evadeNo()
			}
			return m, nil
		case "a":
			// Toggle photos on/off
			cfg := config.Get()
			cfg.Photos.Enabled = !cfg.Photos.Enabled
			config.Set(cfg)
			return m, m.loadPhoto()
		case "?":
			m.showHelp = !m.showHelp
			return m, nil
		}

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.BlurMsg:
		// focus loss cancels a drag like a release outside the track
		m.releaseSeek()
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.noMoved {
			l := m.layout()
			if m.noPos.x+l.no.w > m.width {
				m.noMoved = false
			}
		}

	case configReloadMsg:
		cfg := config.Get()
		if cfg.UI.ColorMode == "manual" {
			m.color = cfg.UI.Color
		} else if m.photoColor != "" {
			m.color = m.photoColor
		} else {
			m.color = m.currentStep().AccentColor()
		}
		if !cfg.Photos.Enabled && m.photoEncoded != "" {
			m.photoEncoded = ""
			return m, watchConfigCmd()
		}
		if cfg.Photos.Enabled && m.photoEncoded == "" && m.supportsKitty {
			return m, tea.Batch(watchConfigCmd(), m.loadPhoto())
		}
		return m, watchConfigCmd()

	case tickMsg:
		m.frame++
		m.scrollTick++
		cfg := config.Get()

		var cmd tea.Cmd
		// Cycle through the step's photos
		if photos := m.currentStep().Photos; len(photos) > 1 && cfg.Photos.Enabled {
			m.photoTicks++
			if m.photoTicks*cfg.Timing.UIRefreshMs >= cfg.Photos.CycleMs {
				m.photoTicks = 0
				m.photoIndex = (m.photoIndex + 1) % len(photos)
				cmd = m.loadPhoto()
			}
		}

		if m.scrollPause > 0 {
			m.scrollPause--
		} else if m.scrollTick%3 == 0 {
			m.scrollOffset++
			titleLen := len([]rune(m.currentStep().Title))
			if titleLen > cfg.Text.MaxLength && m.scrollOffset >= titleLen+len([]rune(scrollSeparator)) {
				m.scrollOffset = 0
				m.scrollPause = 30
			}
		}
		return m, tea.Batch(tickCmd(), cmd)

	case celebrateDoneMsg:
		m.celebrating = false
		return m, nil

	case photoMsg:
		if msg.err != nil {
			m.log.Debug("photo unavailable", "ref", msg.ref, "err", msg.err)
		} else {
			// failures are retried on the next cycle
			m.photoCache[msg.ref] = msg
		}
		// ignore photos for a slide we already left
		if msg.step == m.step && msg.ref == m.currentPhotoRef() {
			m.applyPhoto(msg)
		}
		return m, nil
	}

	return m, nil
}
