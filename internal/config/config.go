package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/nativeshot/internal/logger"
)

// ErrUnknownKey is returned by Set for keys the config does not have
var ErrUnknownKey = errors.New("unknown configuration key")

// Backend names accepted by the backend setting
const (
	BackendAuto    = "auto"
	BackendX11     = "x11"
	BackendVirtual = "virtual"
)

// maxWindowSide is the largest width or height an X11 window can have
const maxWindowSide = 65535

// WindowConfig describes the demo window the app opens
type WindowConfig struct {
	Title  string `json:"title" yaml:"title"`
	Width  int    `json:"width" yaml:"width"`
	Height int    `json:"height" yaml:"height"`
}

// CaptureConfig controls the one-shot capture command
type CaptureConfig struct {
	Output       string `json:"output" yaml:"output"`
	WaitTicks    int    `json:"wait_ticks" yaml:"wait_ticks"`
	TimeoutTicks int    `json:"timeout_ticks" yaml:"timeout_ticks"`
}

// Config represents the application configuration
type Config struct {
	LogLevel   string        `json:"log_level" yaml:"log_level"`
	LogPretty  bool          `json:"log_pretty" yaml:"log_pretty"`
	Backend    string        `json:"backend" yaml:"backend"`
	TickRate   int           `json:"tick_rate" yaml:"tick_rate"`
	ServerPort int           `json:"server_port" yaml:"server_port"`
	Window     WindowConfig  `json:"window" yaml:"window"`
	Capture    CaptureConfig `json:"capture" yaml:"capture"`
}

// TickInterval converts the tick rate into a loop period
func (c *Config) TickInterval() time.Duration {
	rate := c.TickRate
	if rate <= 0 {
		rate = 60
	}
	return time.Second / time.Duration(rate)
}

// Validate checks value ranges
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendX11, BackendVirtual:
	default:
		return fmt.Errorf("invalid backend %q (use: auto, x11, virtual)", c.Backend)
	}
	if c.TickRate <= 0 {
		return fmt.Errorf("tick_rate must be positive, got %d", c.TickRate)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size must be positive, got %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Window.Width > maxWindowSide || c.Window.Height > maxWindowSide {
		return fmt.Errorf("window size %dx%d exceeds the X11 limit of %d", c.Window.Width, c.Window.Height, maxWindowSide)
	}
	if c.Capture.WaitTicks < 0 {
		return fmt.Errorf("capture.wait_ticks must not be negative")
	}
	if c.Capture.TimeoutTicks <= c.Capture.WaitTicks {
		return fmt.Errorf("capture.timeout_ticks (%d) must exceed capture.wait_ticks (%d)",
			c.Capture.TimeoutTicks, c.Capture.WaitTicks)
	}
	if c.ServerPort < 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server_port %d", c.ServerPort)
	}
	return nil
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		LogLevel:   "info",
		LogPretty:  true,
		Backend:    BackendAuto,
		TickRate:   60,
		ServerPort: 8080,
		Window: WindowConfig{
			Title:  "nativeshot example",
			Width:  800,
			Height: 600,
		},
		Capture: CaptureConfig{
			Output:       "./native_screenshot.png",
			WaitTicks:    30,
			TimeoutTicks: 120,
		},
	}
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/nativeshot/config.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "nativeshot", "config.yaml"), nil
}

// NewManager loads configFile, or the default path when empty, writing
// defaults if the file does not exist yet
func NewManager(configFile string) (*Manager, error) {
	path := configFile
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	m := &Manager{configPath: path}

	if err := m.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		logger.WithComponent("config").Info().
			Str("path", m.configPath).
			Msg("Config file not found, creating new config")
		m.config = Defaults()
		if err := m.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config loaded")

	return m, nil
}

// load reads the configuration from disk on top of the defaults
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", m.configPath, err)
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return Defaults()
	}
	cfg := *m.config
	return &cfg
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	data, err := yaml.Marshal(m.config)
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(m.configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// GetConfigPath returns the path of the backing file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// Keys lists every settable key
func Keys() []string {
	return []string{
		"log_level", "log_pretty", "backend", "tick_rate", "server_port",
		"window.title", "window.width", "window.height",
		"capture.output", "capture.wait_ticks", "capture.timeout_ticks",
	}
}

// Lookup returns the string form of key
func (m *Manager) Lookup(key string) (string, error) {
	cfg := m.Get()
	switch key {
	case "log_level":
		return cfg.LogLevel, nil
	case "log_pretty":
		return strconv.FormatBool(cfg.LogPretty), nil
	case "backend":
		return cfg.Backend, nil
	case "tick_rate":
		return strconv.Itoa(cfg.TickRate), nil
	case "server_port":
		return strconv.Itoa(cfg.ServerPort), nil
	case "window.title":
		return cfg.Window.Title, nil
	case "window.width":
		return strconv.Itoa(cfg.Window.Width), nil
	case "window.height":
		return strconv.Itoa(cfg.Window.Height), nil
	case "capture.output":
		return cfg.Capture.Output, nil
	case "capture.wait_ticks":
		return strconv.Itoa(cfg.Capture.WaitTicks), nil
	case "capture.timeout_ticks":
		return strconv.Itoa(cfg.Capture.TimeoutTicks), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}

// Set parses value for key and applies it in memory. The result must
// still validate; call Save to persist.
func (m *Manager) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := *m.config
	if err := assign(&next, key, value); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	m.config = &next
	return nil
}

func assign(cfg *Config, key, value string) error {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %s", key, value)
		}
		return n, nil
	}

	var err error
	switch key {
	case "log_level":
		level := strings.ToLower(value)
		valid := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !valid[level] {
			return fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", value)
		}
		cfg.LogLevel = level
	case "log_pretty":
		cfg.LogPretty, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %s (use: true or false)", value)
		}
	case "backend":
		cfg.Backend = strings.ToLower(value)
	case "tick_rate":
		cfg.TickRate, err = atoi()
	case "server_port":
		cfg.ServerPort, err = atoi()
	case "window.title":
		cfg.Window.Title = value
	case "window.width":
		cfg.Window.Width, err = atoi()
	case "window.height":
		cfg.Window.Height, err = atoi()
	case "capture.output":
		cfg.Capture.Output = value
	case "capture.wait_ticks":
		cfg.Capture.WaitTicks, err = atoi()
	case "capture.timeout_ticks":
		cfg.Capture.TimeoutTicks, err = atoi()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return err
}

// ApplyOverrides copies every key explicitly set in v (bound command-line
// flags) over the file values without saving
func (m *Manager) ApplyOverrides(v *viper.Viper) error {
	for _, key := range Keys() {
		if !v.IsSet(key) {
			continue
		}
		value := v.GetString(key)
		if value == "" {
			continue
		}
		if err := m.Set(key, value); err != nil {
			return fmt.Errorf("flag override %s: %w", key, err)
		}
	}
	return nil
}
