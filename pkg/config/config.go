package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

// Position anchors the widget to a corner of its host surface.
const (
	PositionBottomRight = "bottom-right"
	PositionBottomLeft  = "bottom-left"
)

type Config struct {
	Widget WidgetConfig `json:"widget"`
	TUI    TUIConfig    `json:"tui"`
	Server ServerConfig `json:"server"`
	mu     sync.RWMutex
}

// WidgetConfig is the caller-facing configuration surface of the widget.
type WidgetConfig struct {
	APIURL         string `json:"api_url" env:"FLOATCHAT_WIDGET_API_URL"`
	Position       string `json:"position" env:"FLOATCHAT_WIDGET_POSITION"`
	ThemeColor     string `json:"theme_color" env:"FLOATCHAT_WIDGET_THEME_COLOR"`
	Title          string `json:"title" env:"FLOATCHAT_WIDGET_TITLE"`
	Placeholder    string `json:"placeholder" env:"FLOATCHAT_WIDGET_PLACEHOLDER"`
	WelcomeMessage string `json:"welcome_message" env:"FLOATCHAT_WIDGET_WELCOME_MESSAGE"`

	Width     int  `json:"width" env:"FLOATCHAT_WIDGET_WIDTH"`
	Height    int  `json:"height" env:"FLOATCHAT_WIDGET_HEIGHT"`
	Resizable bool `json:"resizable" env:"FLOATCHAT_WIDGET_RESIZABLE"`
	MinWidth  int  `json:"min_width" env:"FLOATCHAT_WIDGET_MIN_WIDTH"`
	MaxWidth  int  `json:"max_width" env:"FLOATCHAT_WIDGET_MAX_WIDTH"`
	MinHeight int  `json:"min_height" env:"FLOATCHAT_WIDGET_MIN_HEIGHT"`
	MaxHeight int  `json:"max_height" env:"FLOATCHAT_WIDGET_MAX_HEIGHT"`

	AnimationDurationMS int `json:"animation_duration_ms" env:"FLOATCHAT_WIDGET_ANIMATION_DURATION_MS"`
	TypingSpeedMS       int `json:"typing_speed_ms" env:"FLOATCHAT_WIDGET_TYPING_SPEED_MS"`
	MaxMessageLength    int `json:"max_message_length" env:"FLOATCHAT_WIDGET_MAX_MESSAGE_LENGTH"`

	// SessionID pins the conversation id. Auto-generated at widget init
	// when empty.
	SessionID string `json:"session_id,omitempty" env:"FLOATCHAT_WIDGET_SESSION_ID"`

	EnableFileUpload bool     `json:"enable_file_upload" env:"FLOATCHAT_WIDGET_ENABLE_FILE_UPLOAD"`
	MaxFileSize      int64    `json:"max_file_size" env:"FLOATCHAT_WIDGET_MAX_FILE_SIZE"`
	AllowedFileTypes []string `json:"allowed_file_types" env:"FLOATCHAT_WIDGET_ALLOWED_FILE_TYPES"`
}

type TUIConfig struct {
	Mouse bool `json:"mouse" env:"FLOATCHAT_TUI_MOUSE"`
}

type ServerConfig struct {
	Host      string   `json:"host" env:"FLOATCHAT_SERVER_HOST"`
	Port      int      `json:"port" env:"FLOATCHAT_SERVER_PORT"`
	Username  string   `json:"username" env:"FLOATCHAT_SERVER_USERNAME"`
	Password  string   `json:"password" env:"FLOATCHAT_SERVER_PASSWORD"`
	AllowFrom []string `json:"allow_from" env:"FLOATCHAT_SERVER_ALLOW_FROM"`
}

func DefaultConfig() *Config {
	return &Config{
		Widget: WidgetConfig{
			APIURL:              "",
			Position:            PositionBottomRight,
			ThemeColor:          "#6c5ce7",
			Title:               "Chat",
			Placeholder:         "Type a message...",
			WelcomeMessage:      "",
			Width:               380,
			Height:              560,
			Resizable:           true,
			MinWidth:            300,
			MaxWidth:            640,
			MinHeight:           360,
			MaxHeight:           800,
			AnimationDurationMS: 200,
			TypingSpeedMS:       20,
			MaxMessageLength:    4000,
			EnableFileUpload:    true,
			MaxFileSize:         10 * 1024 * 1024,
			AllowedFileTypes:    []string{},
		},
		TUI: TUIConfig{
			Mouse: true,
		},
		Server: ServerConfig{
			Host:      "0.0.0.0",
			Port:      18850,
			AllowFrom: []string{},
		},
	}
}

// LoadConfig reads the config file at path, falling back to defaults when the
// file does not exist, then applies environment overrides. A full config can
// also be supplied via FLOATCHAT_CONFIG_JSON for containers and serverless.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if cfgJSON := os.Getenv("FLOATCHAT_CONFIG_JSON"); cfgJSON != "" {
		if err := json.Unmarshal([]byte(cfgJSON), cfg); err != nil {
			return nil, fmt.Errorf("parsing FLOATCHAT_CONFIG_JSON: %w", err)
		}
		if err := env.Parse(cfg); err != nil {
			return nil, err
		}
		cfg.normalize()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.normalize()
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultPath returns the config file location under the user's home.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "floatchat.json"
	}
	return filepath.Join(home, ".floatchat", "config.json")
}

// normalize repairs size bounds so the resize controller always clamps
// against a sane range: zero values fall back to defaults, inverted min/max
// pairs collapse onto min, and the initial size is pulled inside the bounds.
func (c *Config) normalize() {
	w := &c.Widget
	def := DefaultConfig().Widget

	if w.Position != PositionBottomLeft && w.Position != PositionBottomRight {
		w.Position = def.Position
	}
	if w.MinWidth <= 0 {
		w.MinWidth = def.MinWidth
	}
	if w.MaxWidth <= 0 {
		w.MaxWidth = def.MaxWidth
	}
	if w.MinHeight <= 0 {
		w.MinHeight = def.MinHeight
	}
	if w.MaxHeight <= 0 {
		w.MaxHeight = def.MaxHeight
	}
	if w.MaxWidth < w.MinWidth {
		w.MaxWidth = w.MinWidth
	}
	if w.MaxHeight < w.MinHeight {
		w.MaxHeight = w.MinHeight
	}
	if w.Width <= 0 {
		w.Width = def.Width
	}
	if w.Height <= 0 {
		w.Height = def.Height
	}
	w.Width = clamp(w.Width, w.MinWidth, w.MaxWidth)
	w.Height = clamp(w.Height, w.MinHeight, w.MaxHeight)

	if w.TypingSpeedMS < 0 {
		w.TypingSpeedMS = 0
	}
	if w.MaxMessageLength <= 0 {
		w.MaxMessageLength = def.MaxMessageLength
	}
	if w.MaxFileSize <= 0 {
		w.MaxFileSize = def.MaxFileSize
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
