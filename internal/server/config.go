package server

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tyeth/digital-dial-gauge-web-serial/internal/gauge"
)

// Config holds all dashboard configuration.
type Config struct {
	mu sync.RWMutex

	// Instrument transport
	Instrument InstrumentConfig `yaml:"instrument" json:"instrument"`

	// Decode engine parameters
	Decode DecodeConfig `yaml:"decode" json:"decode"`

	// CSV export persistence
	Export ExportConfig `yaml:"export" json:"export"`

	// Server
	Server ServerConfig `yaml:"server" json:"server"`

	path string // file path for save/load
}

type InstrumentConfig struct {
	Type     string `yaml:"type" json:"type"`          // "serial" or "demo"
	PortPath string `yaml:"port_path" json:"portPath"` // e.g. /dev/ttyUSB0
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
}

type DecodeConfig struct {
	Mode           string  `yaml:"mode" json:"mode"` // "ascii" or "binary"
	ExpectedDigits int     `yaml:"expected_digits" json:"expectedDigits"`
	FrameSize      int     `yaml:"frame_size" json:"frameSize"`
	FlushMs        int     `yaml:"flush_ms" json:"flushMs"`
	ResizeMs       int     `yaml:"resize_ms" json:"resizeMs"`
	JumpThreshold  float64 `yaml:"jump_threshold" json:"jumpThreshold"`
}

type ExportConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listenAddr"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Instrument: InstrumentConfig{
			Type:     "demo",
			PortPath: "/dev/ttyUSB0",
			BaudRate: 9600,
		},
		Decode: DecodeConfig{
			Mode:           "ascii",
			ExpectedDigits: 6,
			FrameSize:      8,
			FlushMs:        500,
			ResizeMs:       10000,
			JumpThreshold:  1.0,
		},
		Export: ExportConfig{
			Enabled: false,
			Path:    "/var/log/gaugedash",
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
	}
}

// GaugeConfig maps the decode section onto engine parameters.
func (c *Config) GaugeConfig() gauge.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cfg := gauge.DefaultConfig()
	if c.Decode.Mode == string(gauge.ModeBinary) {
		cfg.Mode = gauge.ModeBinary
	}
	if c.Decode.ExpectedDigits > 0 {
		cfg.ExpectedDigits = c.Decode.ExpectedDigits
	}
	if c.Decode.FrameSize > 0 {
		cfg.FrameSize = c.Decode.FrameSize
	}
	if c.Decode.FlushMs > 0 {
		cfg.FlushAfter = time.Duration(c.Decode.FlushMs) * time.Millisecond
	}
	if c.Decode.ResizeMs > 0 {
		cfg.ResizeAfter = time.Duration(c.Decode.ResizeMs) * time.Millisecond
	}
	if c.Decode.JumpThreshold > 0 {
		cfg.JumpThreshold = c.Decode.JumpThreshold
	}
	return cfg
}

// LoadConfig reads config from a YAML file, then applies .env and environment
// variable overrides. Falls back to defaults if YAML not found.
func LoadConfig(path string) *Config {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[config] no config at %s, using defaults", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("[config] error parsing %s: %v, using defaults", path, err)
		cfg = DefaultConfig()
		cfg.path = path
	} else {
		log.Printf("[config] loaded from %s", path)
	}

	// Load .env file from the same directory as the config, or from CWD
	envPaths := []string{
		filepath.Join(filepath.Dir(path), ".env"),
		".env",
	}
	for _, ep := range envPaths {
		loadEnvFile(ep)
	}

	cfg.applyEnvOverrides()
	return cfg
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	log.Printf("[config] loading .env from %s", path)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		val = strings.Trim(val, `"'`)
		// Real env takes precedence
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: GAUGE_TYPE, GAUGE_PORT, GAUGE_BAUD, GAUGE_MODE, GAUGE_DIGITS,
// GAUGE_JUMP_THRESHOLD, LISTEN_ADDR, EXPORT_ENABLED, EXPORT_PATH
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GAUGE_TYPE"); v != "" {
		c.Instrument.Type = v
	}
	if v := os.Getenv("GAUGE_PORT"); v != "" {
		c.Instrument.PortPath = v
	}
	if v := os.Getenv("GAUGE_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Instrument.BaudRate = n
		}
	}
	if v := os.Getenv("GAUGE_MODE"); v != "" {
		c.Decode.Mode = v
	}
	if v := os.Getenv("GAUGE_DIGITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Decode.ExpectedDigits = n
		}
	}
	if v := os.Getenv("GAUGE_JUMP_THRESHOLD"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			c.Decode.JumpThreshold = n
		}
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("EXPORT_ENABLED"); v != "" {
		c.Export.Enabled = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("EXPORT_PATH"); v != "" {
		c.Export.Path = v
	}
}

// Save writes the config to its YAML file.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.path == "" {
		c.path = "/etc/gaugedash/config.yaml"
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}

// ToJSON serializes config for the API.
func (c *Config) ToJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c)
}

// UpdateFromJSON applies a partial JSON config update by deep-merging
// incoming fields into the existing config. Fields not present in the
// incoming JSON are preserved (e.g. port paths, baud rates).
func (c *Config) UpdateFromJSON(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	currentBytes, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal current config: %w", err)
	}
	var base map[string]interface{}
	if err := json.Unmarshal(currentBytes, &base); err != nil {
		return fmt.Errorf("unmarshal current config: %w", err)
	}

	var patch map[string]interface{}
	if err := json.Unmarshal(data, &patch); err != nil {
		return fmt.Errorf("unmarshal patch: %w", err)
	}

	deepMerge(base, patch)

	merged, err := json.Marshal(base)
	if err != nil {
		return fmt.Errorf("marshal merged config: %w", err)
	}
	return json.Unmarshal(merged, c)
}

// deepMerge recursively merges src into dst. For nested maps, values are
// merged rather than replaced. For all other types, src overwrites dst.
func deepMerge(dst, src map[string]interface{}) {
	for key, srcVal := range src {
		if srcMap, ok := srcVal.(map[string]interface{}); ok {
			if dstMap, ok := dst[key].(map[string]interface{}); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[key] = srcVal
	}
}
