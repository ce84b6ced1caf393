// Package config handles loading and saving bt configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/bt/config.yaml (or config.toml)
//   - State:   ~/.local/state/bt/ (exported snapshots by default)
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/bintree/pkg/interact"
	"github.com/vanderheijden86/bintree/pkg/layout"
	"github.com/vanderheijden86/bintree/pkg/model"
)

const appName = "bt"

// Source is a named tree source offered by the source picker.
type Source struct {
	Name string `yaml:"name" toml:"name"`
	Path string `yaml:"path" toml:"path"`
}

// InteractionConfig holds the pointer and touch timing.
type InteractionConfig struct {
	ShowDelay      time.Duration `yaml:"show_delay,omitempty" toml:"show_delay,omitempty"`
	HideDelay      time.Duration `yaml:"hide_delay,omitempty" toml:"hide_delay,omitempty"`
	LongPressDelay time.Duration `yaml:"long_press_delay,omitempty" toml:"long_press_delay,omitempty"`
}

// UIConfig holds UI preference settings.
type UIConfig struct {
	Theme     string `yaml:"theme,omitempty" toml:"theme,omitempty"`           // auto, dark, light
	TouchMode bool   `yaml:"touch_mode,omitempty" toml:"touch_mode,omitempty"` // treat mouse presses as touches
	Depth     int    `yaml:"depth,omitempty" toml:"depth,omitempty"`           // levels loaded per view
}

// ServerConfig configures the HTTP view.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty" toml:"addr,omitempty"`
	// MaxPNGPixels caps the pixel area of /tree.png; 0 keeps the default.
	MaxPNGPixels int `yaml:"max_png_pixels,omitempty" toml:"max_png_pixels,omitempty"`
}

// Config is the top-level configuration for bt.
type Config struct {
	Sources     []Source          `yaml:"sources,omitempty" toml:"sources,omitempty"`
	Layout      layout.Config     `yaml:"layout" toml:"layout"`
	Interaction InteractionConfig `yaml:"interaction,omitempty" toml:"interaction,omitempty"`
	// SignupURL is the link offered for an empty slot. {sponsor} and {side}
	// are replaced with the query-escaped parent member id and LEFT/RIGHT.
	SignupURL string       `yaml:"signup_url,omitempty" toml:"signup_url,omitempty"`
	UI        UIConfig     `yaml:"ui,omitempty" toml:"ui,omitempty"`
	Server    ServerConfig `yaml:"server,omitempty" toml:"server,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Layout: layout.DefaultConfig(),
		Interaction: InteractionConfig{
			ShowDelay:      interact.DefaultShowDelay,
			HideDelay:      interact.DefaultHideDelay,
			LongPressDelay: interact.DefaultLongPressDelay,
		},
		SignupURL: "https://example.com/signup?sponsor={sponsor}&side={side}",
		UI: UIConfig{
			Theme: "auto",
			Depth: 6,
		},
		Server: ServerConfig{Addr: "127.0.0.1:8080"},
	}
}

// Validate checks the values that cannot be defaulted silently.
func (c Config) Validate() error {
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	switch c.UI.Theme {
	case "", "auto", "dark", "light":
	default:
		return fmt.Errorf("ui.theme: unknown theme %q", c.UI.Theme)
	}
	if c.Server.MaxPNGPixels < 0 {
		return fmt.Errorf("server.max_png_pixels: must not be negative")
	}
	if c.SignupURL != "" {
		if _, err := url.Parse(c.SignupLink("x", model.PositionLeft)); err != nil {
			return fmt.Errorf("signup_url: %w", err)
		}
	}
	return nil
}

// EngineOptions converts the interaction section for interact.New.
func (c Config) EngineOptions() interact.Options {
	return interact.Options{
		ShowDelay:      c.Interaction.ShowDelay,
		HideDelay:      c.Interaction.HideDelay,
		LongPressDelay: c.Interaction.LongPressDelay,
	}
}

// SignupLink formats SignupURL for an empty slot under sponsor.
func (c Config) SignupLink(sponsor string, side model.Position) string {
	r := strings.NewReplacer(
		"{sponsor}", url.QueryEscape(sponsor),
		"{side}", url.QueryEscape(string(side)),
	)
	return r.Replace(c.SignupURL)
}

// ConfigDir returns the XDG config directory for bt.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// StateDir returns the XDG state directory for bt.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", appName)
}

// ConfigPath returns the path of the config file, preferring config.yaml
// and falling back to an existing config.toml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	yamlPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}
	tomlPath := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath
	}
	return yamlPath
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path. The format follows the
// extension: .toml is TOML, anything else YAML.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	for i := range cfg.Sources {
		cfg.Sources[i].Path = expandHome(cfg.Sources[i].Path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveTo writes the config to a specific path as YAML or TOML by extension.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.NewEncoder(f).Encode(cfg)
	} else {
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		err = enc.Encode(cfg)
		if err == nil {
			err = enc.Close()
		}
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return nil
}

// FindSource returns the source with the given name, or nil.
func (c Config) FindSource(name string) *Source {
	for i := range c.Sources {
		if strings.EqualFold(c.Sources[i].Name, name) {
			return &c.Sources[i]
		}
	}
	return nil
}

// AddSource registers path under name, replacing an existing entry.
func (c *Config) AddSource(name, path string) {
	if s := c.FindSource(name); s != nil {
		s.Path = path
		return
	}
	c.Sources = append(c.Sources, Source{Name: name, Path: path})
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
