package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Accent names map to the palette used for pills and highlights
var accentColors = map[string]string{
	"rose":    "#f43f5e",
	"pink":    "#ec4899",
	"fuchsia": "#d946ef",
}

// Step is one day of the slideshow
type Step struct {
	Key       string   `yaml:"key"`
	DayLabel  string   `yaml:"day"`
	DateLabel string   `yaml:"date"`
	Accent    string   `yaml:"accent"`
	Title     string   `yaml:"title"`
	Message   string   `yaml:"message"`
	Photos    []string `yaml:"photos"`
	Question  bool     `yaml:"question"`
}

// Deck is the ordered set of steps plus the personalised strings
type Deck struct {
	Title    string `yaml:"title"`
	HerName  string `yaml:"her_name"`
	YourName string `yaml:"your_name"`
	Prompt   string `yaml:"prompt"`
	Subtitle string `yaml:"subtitle"`
	YesReply string `yaml:"yes_reply"`
	NoReply  string `yaml:"no_reply"`
	Steps    []Step `yaml:"steps"`

	// directory relative photo paths resolve against
	baseDir string
}

// AccentColor resolves a step accent to a hex color; unknown names pass through
// when they are already valid colors
func (s Step) AccentColor() string {
	if c, ok := accentColors[strings.ToLower(s.Accent)]; ok {
		return c
	}
	if isValidColor(s.Accent) {
		return s.Accent
	}
	return accentColors["rose"]
}

// QuestionIndex returns the index of the step carrying the final prompt
func (d *Deck) QuestionIndex() int {
	for i, s := range d.Steps {
		if s.Question {
			return i
		}
	}
	return len(d.Steps) - 1
}

// Step returns the step at i, clamped to the deck bounds
func (d *Deck) Step(i int) Step {
	return d.Steps[clampIndex(i, len(d.Steps))]
}

// ResolvePhoto turns a deck photo reference into something readPhoto can open
func (d *Deck) ResolvePhoto(ref string) string {
	if ref == "" || strings.Contains(ref, "://") || filepath.IsAbs(ref) || d.baseDir == "" {
		return ref
	}
	return filepath.Join(d.baseDir, ref)
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// normalize fills personalised defaults and marks the question step
func (d *Deck) normalize(herName, yourName string) {
	if herName != "" {
		d.HerName = herName
	}
	if yourName != "" {
		d.YourName = yourName
	}
	if d.HerName == "" {
		d.HerName = "My Love"
	}
	if d.YourName == "" {
		d.YourName = "Yours"
	}
	if d.Title == "" {
		d.Title = fmt.Sprintf("%d Days, %d Reasons · For %s", len(d.Steps)-1, len(d.Steps)-1, d.HerName)
	}
	if d.Prompt == "" {
		d.Prompt = "So... Will you be my Valentine? 💘"
	}
	if d.Subtitle == "" {
		d.Subtitle = "I'm asking with all my heart. (And a tiny bit of code 😄)"
	}
	if d.YesReply == "" {
		d.YesReply = fmt.Sprintf("Yayyy! 💞 You just made my whole universe brighter. Happy Valentine's Day, %s.", d.HerName)
	}
	if d.NoReply == "" {
		d.NoReply = "Hehe 😅 Okay, even if you say no, I still choose you. (But can I try again with a hug? 🤗)"
	}

	marked := false
	for i := range d.Steps {
		if d.Steps[i].Question {
			if marked {
				d.Steps[i].Question = false
			}
			marked = true
		}
	}
	if !marked && len(d.Steps) > 0 {
		d.Steps[len(d.Steps)-1].Question = true
	}
}

func validateDeck(d *Deck) error {
	if len(d.Steps) == 0 {
		return errors.New("deck has no steps")
	}
	seen := make(map[string]bool, len(d.Steps))
	for i, s := range d.Steps {
		if strings.TrimSpace(s.Title) == "" {
			return fmt.Errorf("step %d: title is required", i+1)
		}
		if s.Key != "" {
			if seen[s.Key] {
				return fmt.Errorf("step %d: duplicate key %q", i+1, s.Key)
			}
			seen[s.Key] = true
		}
	}
	return nil
}

// loadDeck reads a YAML deck; an empty path yields the built-in deck
func loadDeck(path, herName, yourName string) (*Deck, error) {
	if path == "" {
		d := defaultDeck()
		d.normalize(herName, yourName)
		return d, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deck: %w", err)
	}

	var d Deck
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse deck %s: %w", path, err)
	}
	if err := validateDeck(&d); err != nil {
		return nil, fmt.Errorf("invalid deck %s: %w", path, err)
	}

	d.baseDir = filepath.Dir(path)
	d.normalize(herName, yourName)
	return &d, nil
}

func defaultDeck() *Deck {
	const (
		rosePhoto  = "https://images.unsplash.com/photo-1518895949257-7621c3c786d7?auto=format&fit=crop&w=900&q=80"
		ringPhoto  = "https://plus.unsplash.com/premium_photo-1674068279574-92b0a56e660e?q=80&w=687&auto=format&fit=crop"
		chocoPhoto = "https://images.unsplash.com/photo-1582176604856-e824b4736522?q=80&w=686&auto=format&fit=crop"
		duskPhoto  = "https://images.unsplash.com/reserve/Af0sF2OS5S5gatqrKzVP_Silhoutte.jpg?w=600&auto=format&fit=crop&q=60"
		heartPhoto = "https://images.unsplash.com/photo-1529626455594-4ff0802cfb7e?auto=format&fit=crop&w=900&q=80"
	)

	return &Deck{
		Steps: []Step{
			{
				Key:       "rose",
				DayLabel:  "Rose Day",
				DateLabel: "7 Feb",
				Accent:    "rose",
				Title:     "A rose for the way you make my life bloom 🌹",
				Message:   "Like a rose, you're soft and strong at the same time, and you make ordinary days feel special. You are the rose of my life and I will always protect you, my love.",
				Photos:    []string{rosePhoto},
			},
			{
				Key:       "propose",
				DayLabel:  "Propose Day",
				DateLabel: "8 Feb",
				Accent:    "pink",
				Title:     "I propose to you, again and again 💍",
				Message:   "If love were a decision, I'd still pick you every time. Today is my little way of saying: I'm proud of us, and I want more of you in my tomorrows.",
				Photos:    []string{ringPhoto},
			},
			{
				Key:       "chocolate",
				DayLabel:  "Chocolate Day",
				DateLabel: "9 Feb",
				Accent:    "fuchsia",
				Title:     "Sweet like you 🍫",
				Message:   "Chocolate is sweet... but somehow you're the sweetest. You turn stress into calm and silence into comfort. Here's to the tiny moments that taste better because of you.",
				Photos:    []string{chocoPhoto},
			},
			{
				Key:       "teddy",
				DayLabel:  "Teddy Day",
				DateLabel: "10 Feb",
				Accent:    "rose",
				Title:     "You're my safe place in a loud world 🧸",
				Message:   "A teddy is for warm hugs on days you feel small. But for me... you're the comfort. When you're around, everything feels softer and lighter.",
				Photos:    []string{heartPhoto},
			},
			{
				Key:       "promise",
				DayLabel:  "Promise Day",
				DateLabel: "11 Feb",
				Accent:    "pink",
				Title:     "My promise is simple: for you and with you, always 💗",
				Message:   "I promise to listen, to grow and to try. And to love you in the small everyday ways, not just the big romantic moments.",
				Photos:    []string{duskPhoto},
			},
			{
				Key:       "hug",
				DayLabel:  "Hug Day",
				DateLabel: "12 Feb",
				Accent:    "fuchsia",
				Title:     "A hug that says everything 🤗",
				Message:   "Some things don't need words. If this screen could hug you, it would. Until then, imagine I'm holding you close, telling you 'I'm here.'",
				Photos:    []string{heartPhoto},
			},
			{
				Key:       "kiss",
				DayLabel:  "Kiss Day",
				DateLabel: "13 Feb",
				Accent:    "rose",
				Title:     "A kiss for all the times you made me smile 😘",
				Message:   "If I could kiss you through this screen, I would. From the first kiss to the last, every one has a special place in my heart.",
				Photos:    []string{rosePhoto},
			},
			{
				Key:       "valentine",
				DayLabel:  "Valentine's Day",
				DateLabel: "14 Feb",
				Accent:    "pink",
				Title:     "Okay... one last question 💞",
				Message:   "I built this little thing because you deserve effort, not just words. And because I want you to feel how important you are to me, in every phase, every day.",
				Photos:    []string{heartPhoto},
				Question:  true,
			},
		},
	}
}
