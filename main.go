package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"valentine/transport"
)

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("valentine", pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: valentine [flags] [audio-file-or-url]\n\n")
		flags.PrintDefaults()
	}

	flags.StringP("config", "f", "", "Config file (default $XDG_CONFIG_HOME/valentine/config.yaml)")
	flags.StringP("color", "c", "", "Highlight color (ANSI 0-255 or hex)")
	flags.StringP("source", "s", "", "Background music file or URL")
	flags.String("mpv", "", "Path to the mpv binary")
	flags.StringP("deck", "d", "", "YAML slide deck (default: built-in Valentine week)")
	flags.String("her-name", "", "Name shown in the greeting")
	flags.String("your-name", "", "Name used to sign the cards")
	flags.String("log-file", "", "Log file, or - to disable logging")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.Bool("no-photos", false, "Disable slide photos")
	flags.Bool("no-autoplay", false, "Wait for space before starting the music")
	return flags
}

func main() {
	flags := newFlagSet()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	initConfig(flags)
	cfg := config.Get()
	if flags.NArg() > 0 {
		cfg.Audio.Source = flags.Arg(0)
		config.Set(cfg)
	}

	logCloser, err := setupLogging(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	} else {
		defer logCloser.Close()
	}

	deck, err := loadDeck(cfg.Deck.Path, cfg.Deck.HerName, cfg.Deck.YourName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, deck); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg Config, deck *Deck) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res := newMPVResource(mpvOptions{
		Binary:        cfg.Audio.MPVPath,
		SocketPath:    cfg.Audio.SocketPath,
		Volume:        cfg.Audio.Volume,
		AllowAutoplay: cfg.Audio.Autoplay,
		Logger:        slog.Default(),
	})
	defer func() {
		if err := res.Close(); err != nil {
			slog.Warn("mpv shutdown failed", "err", err)
		}
	}()

	loop := &programLoop{}
	ctrl := transport.New(res, loop,
		transport.WithFrameInterval(time.Duration(cfg.Audio.FrameMs)*time.Millisecond),
		transport.WithLogger(slog.Default()),
	)

	m := newModel(ctx, deck, ctrl, supportsKittyGraphics())
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
		tea.WithReportFocus(),
	)
	loop.attach(p)

	slog.Info("starting", "source", cfg.Audio.Source, "steps", len(deck.Steps), "autoplay", cfg.Audio.Autoplay)
	if err := ctrl.Initialize(ctx, cfg.Audio.Source); err != nil {
		return fmt.Errorf("failed to start audio: %w", err)
	}

	_, err := p.Run()

	// the event loop has stopped, so nothing else touches the controller
	ctrl.Dispose()
	if err != nil {
		return fmt.Errorf("program failed: %w", err)
	}
	return nil
}
