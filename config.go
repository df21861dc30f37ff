package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	UI struct {
		Color     string `mapstructure:"color"`
		ColorMode string `mapstructure:"color_mode"`
		MaxWidth  int    `mapstructure:"max_width"`
	} `mapstructure:"ui"`
	Audio struct {
		Source     string `mapstructure:"source"`
		Autoplay   bool   `mapstructure:"autoplay"`
		Volume     int    `mapstructure:"volume"`
		MPVPath    string `mapstructure:"mpv_path"`
		SocketPath string `mapstructure:"socket_path"`
		FrameMs    int    `mapstructure:"frame_ms"`
	} `mapstructure:"audio"`
	Deck struct {
		Path     string `mapstructure:"path"`
		HerName  string `mapstructure:"her_name"`
		YourName string `mapstructure:"your_name"`
	} `mapstructure:"deck"`
	Photos struct {
		Enabled      bool `mapstructure:"enabled"`
		Padding      int  `mapstructure:"padding"`
		WidthPixels  int  `mapstructure:"width_pixels"`
		WidthColumns int  `mapstructure:"width_columns"`
		CycleMs      int  `mapstructure:"cycle_ms"`
	} `mapstructure:"photos"`
	Text struct {
		MaxLength int `mapstructure:"max_length"`
	} `mapstructure:"text"`
	Timing struct {
		UIRefreshMs int `mapstructure:"ui_refresh_ms"`
		CelebrateMs int `mapstructure:"celebrate_ms"`
	} `mapstructure:"timing"`
	Log struct {
		File  string `mapstructure:"file"`
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// defaultConfig mirrors the viper defaults and repairs invalid fields
func defaultConfig() Config {
	var cfg Config
	cfg.UI.Color = "204"
	cfg.UI.ColorMode = "auto"
	cfg.UI.MaxWidth = 64
	cfg.Audio.Source = "audio/love.mp3"
	cfg.Audio.Autoplay = true
	cfg.Audio.Volume = 70
	cfg.Audio.MPVPath = "mpv"
	cfg.Audio.FrameMs = 16
	cfg.Photos.Enabled = true
	cfg.Photos.Padding = 16
	cfg.Photos.WidthPixels = 300
	cfg.Photos.WidthColumns = 13
	cfg.Photos.CycleMs = 4000
	cfg.Text.MaxLength = 48
	cfg.Timing.UIRefreshMs = 100
	cfg.Timing.CelebrateMs = 2000
	cfg.Log.Level = "info"
	return cfg
}

// SafeConfig wraps Config with thread-safe access
type SafeConfig struct {
	mu  sync.RWMutex
	cfg Config
}

// Get returns a copy of the current config (thread-safe read)
func (sc *SafeConfig) Get() Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.cfg
}

// Set updates the config (thread-safe write)
func (sc *SafeConfig) Set(cfg Config) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.cfg = cfg
}

var config = &SafeConfig{}

// Config file changed notification
type configReloadMsg struct{}

var configChangeChan = make(chan struct{}, 1)

// Watch for config file changes
func watchConfigCmd() tea.Cmd {
	return func() tea.Msg {
		<-configChangeChan
		return configReloadMsg{}
	}
}

// configError describes one invalid config field
type configError struct {
	field   string
	message string
}

func (e configError) Error() string {
	return fmt.Sprintf("%s: %s", e.field, e.message)
}

var hexColorPattern = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// isValidColor accepts ANSI 256 codes and #RGB / #RRGGBB hex colors
func isValidColor(color string) bool {
	if strings.HasPrefix(color, "#") {
		return hexColorPattern.MatchString(color)
	}
	n, err := strconv.Atoi(color)
	if err != nil || strconv.Itoa(n) != color {
		return false
	}
	return n >= 0 && n <= 255
}

func checkRange(errs []error, field string, v, lo, hi int) []error {
	if v < lo || v > hi {
		errs = append(errs, configError{field: field, message: fmt.Sprintf("must be between %d and %d (got %d)", lo, hi, v)})
	}
	return errs
}

// validateConfig returns one error per invalid field
func validateConfig(cfg *Config) []error {
	var errs []error

	if !isValidColor(cfg.UI.Color) {
		errs = append(errs, configError{field: "ui.color", message: fmt.Sprintf("invalid color format '%s'", cfg.UI.Color)})
	}
	if cfg.UI.ColorMode != "auto" && cfg.UI.ColorMode != "manual" {
		errs = append(errs, configError{field: "ui.color_mode", message: fmt.Sprintf("must be 'auto' or 'manual' (got '%s')", cfg.UI.ColorMode)})
	}
	errs = checkRange(errs, "ui.max_width", cfg.UI.MaxWidth, 30, 200)

	if strings.TrimSpace(cfg.Audio.Source) == "" {
		errs = append(errs, configError{field: "audio.source", message: "must not be empty"})
	}
	errs = checkRange(errs, "audio.volume", cfg.Audio.Volume, 0, 100)
	errs = checkRange(errs, "audio.frame_ms", cfg.Audio.FrameMs, 1, 1000)
	if strings.TrimSpace(cfg.Audio.MPVPath) == "" {
		errs = append(errs, configError{field: "audio.mpv_path", message: "must not be empty"})
	}

	errs = checkRange(errs, "photos.width_pixels", cfg.Photos.WidthPixels, 16, 2000)
	errs = checkRange(errs, "photos.width_columns", cfg.Photos.WidthColumns, 4, 80)
	if cfg.Photos.Padding < 0 {
		errs = append(errs, configError{field: "photos.padding", message: fmt.Sprintf("must not be negative (got %d)", cfg.Photos.Padding)})
	} else if cfg.Photos.Padding >= cfg.UI.MaxWidth && cfg.UI.MaxWidth >= 30 {
		errs = append(errs, configError{field: "photos.padding", message: fmt.Sprintf("must be less than ui.max_width (got %d)", cfg.Photos.Padding)})
	}
	errs = checkRange(errs, "photos.cycle_ms", cfg.Photos.CycleMs, 500, 60000)

	errs = checkRange(errs, "text.max_length", cfg.Text.MaxLength, 10, 200)
	errs = checkRange(errs, "timing.ui_refresh_ms", cfg.Timing.UIRefreshMs, 10, 1000)
	errs = checkRange(errs, "timing.celebrate_ms", cfg.Timing.CelebrateMs, 0, 60000)

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, configError{field: "log.level", message: fmt.Sprintf("unknown level '%s'", cfg.Log.Level)})
	}

	return errs
}

// applyDefaultsForInvalidFields resets every field named in errs
func applyDefaultsForInvalidFields(cfg *Config, errs []error) {
	def := defaultConfig()
	for _, err := range errs {
		ce, ok := err.(configError)
		if !ok {
			continue
		}
		switch ce.field {
		case "ui.color":
			cfg.UI.Color = def.UI.Color
		case "ui.color_mode":
			cfg.UI.ColorMode = def.UI.ColorMode
		case "ui.max_width":
			cfg.UI.MaxWidth = def.UI.MaxWidth
		case "audio.source":
			cfg.Audio.Source = def.Audio.Source
		case "audio.volume":
			cfg.Audio.Volume = def.Audio.Volume
		case "audio.frame_ms":
			cfg.Audio.FrameMs = def.Audio.FrameMs
		case "audio.mpv_path":
			cfg.Audio.MPVPath = def.Audio.MPVPath
		case "photos.width_pixels":
			cfg.Photos.WidthPixels = def.Photos.WidthPixels
		case "photos.width_columns":
			cfg.Photos.WidthColumns = def.Photos.WidthColumns
		case "photos.padding":
			cfg.Photos.Padding = def.Photos.Padding
		case "photos.cycle_ms":
			cfg.Photos.CycleMs = def.Photos.CycleMs
		case "text.max_length":
			cfg.Text.MaxLength = def.Text.MaxLength
		case "timing.ui_refresh_ms":
			cfg.Timing.UIRefreshMs = def.Timing.UIRefreshMs
		case "timing.celebrate_ms":
			cfg.Timing.CelebrateMs = def.Timing.CelebrateMs
		case "log.level":
			cfg.Log.Level = def.Log.Level
		}
	}

	// padding is checked against max_width, which may only now be valid
	if cfg.Photos.Padding >= cfg.UI.MaxWidth {
		cfg.Photos.Padding = def.Photos.Padding
	}
}

func printConfigWarnings(errs []error) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "Warning: %d invalid config value(s), using defaults:\n", len(errs))
	for _, err := range errs {
		fmt.Fprintf(os.Stderr, "  - %v\n", err)
	}
}

// loadValidatedConfig unmarshals viper state and repairs invalid fields
func loadValidatedConfig(v *viper.Viper) (Config, []error, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, nil, fmt.Errorf("failed to parse config: %w", err)
	}
	errs := validateConfig(&cfg)
	applyDefaultsForInvalidFields(&cfg, errs)
	return cfg, errs, nil
}

func setDefaults(v *viper.Viper) {
	def := defaultConfig()
	v.SetDefault("ui.color", def.UI.Color)
	v.SetDefault("ui.color_mode", def.UI.ColorMode)
	v.SetDefault("ui.max_width", def.UI.MaxWidth)
	v.SetDefault("audio.source", def.Audio.Source)
	v.SetDefault("audio.autoplay", def.Audio.Autoplay)
	v.SetDefault("audio.volume", def.Audio.Volume)
	v.SetDefault("audio.mpv_path", def.Audio.MPVPath)
	v.SetDefault("audio.socket_path", def.Audio.SocketPath)
	v.SetDefault("audio.frame_ms", def.Audio.FrameMs)
	v.SetDefault("deck.path", def.Deck.Path)
	v.SetDefault("deck.her_name", def.Deck.HerName)
	v.SetDefault("deck.your_name", def.Deck.YourName)
	v.SetDefault("photos.enabled", def.Photos.Enabled)
	v.SetDefault("photos.padding", def.Photos.Padding)
	v.SetDefault("photos.width_pixels", def.Photos.WidthPixels)
	v.SetDefault("photos.width_columns", def.Photos.WidthColumns)
	v.SetDefault("photos.cycle_ms", def.Photos.CycleMs)
	v.SetDefault("text.max_length", def.Text.MaxLength)
	v.SetDefault("timing.ui_refresh_ms", def.Timing.UIRefreshMs)
	v.SetDefault("timing.celebrate_ms", def.Timing.CelebrateMs)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("log.level", def.Log.Level)
}

// configDir follows XDG, falling back to ~/.config
func configDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, "valentine")
}

// flagBindings maps command-line flags to config keys
var flagBindings = map[string]string{
	"color":       "ui.color",
	"source":      "audio.source",
	"mpv":         "audio.mpv_path",
	"deck":        "deck.path",
	"her-name":    "deck.her_name",
	"your-name":   "deck.your_name",
	"log-file":    "log.file",
	"log-level":   "log.level",
	"no-photos":   "photos.enabled",
	"no-autoplay": "audio.autoplay",
}

func initConfig(flags *pflag.FlagSet) {
	v := viper.GetViper()
	setDefaults(v)

	if path, _ := flags.GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir := configDir(); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	// Environment variable support with VALENTINE_ prefix
	v.SetEnvPrefix("VALENTINE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (ignore error if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: Error reading config file: %v\n", err)
		}
	}

	// Flags take precedence, but only when given explicitly
	for name, key := range flagBindings {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		switch name {
		case "no-photos", "no-autoplay":
			// negated switches
			if on, _ := flags.GetBool(name); on {
				v.Set(key, false)
			}
		default:
			if err := v.BindPFlag(key, f); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: cannot bind --%s: %v\n", name, err)
			}
		}
	}

	cfg, errs, err := loadValidatedConfig(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		cfg = defaultConfig()
	}
	printConfigWarnings(errs)
	config.Set(cfg)

	// Watch for config file changes and live reload
	v.OnConfigChange(func(e fsnotify.Event) {
		newCfg, _, err := loadValidatedConfig(v)
		if err != nil {
			return
		}
		config.Set(newCfg)
		select {
		case configChangeChan <- struct{}{}:
		default:
			// Channel full, skip notification
		}
	})
	if v.ConfigFileUsed() != "" {
		v.WatchConfig()
	}
}
