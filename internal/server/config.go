package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaunagostinho/cansat-ground/internal/session"
	"github.com/shaunagostinho/cansat-ground/internal/transport"
	"github.com/shaunagostinho/cansat-ground/pkg/logger"
)

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "/etc/cansat-ground/config.yaml"

// Config holds all ground station configuration.
type Config struct {
	mu sync.RWMutex

	// Radio link
	Serial SerialConfig `yaml:"serial" json:"serial"`

	// Ingest pipeline tuning
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline"`

	// Flight log
	Recording RecordingConfig `yaml:"recording" json:"recording"`

	// Command uplink
	Uplink UplinkConfig `yaml:"uplink" json:"uplink"`

	// Server
	Server ServerConfig `yaml:"server" json:"server"`

	// Process logging
	Log LogConfig `yaml:"log" json:"log"`

	path string // file path for save/load
}

type SerialConfig struct {
	Type          string `yaml:"type" json:"type"`          // "serial" or "demo"
	PortPath      string `yaml:"port_path" json:"portPath"` // e.g. /dev/ttyUSB0
	BaudRate      int    `yaml:"baud_rate" json:"baudRate"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms" json:"readTimeoutMs"`
	AutoConnect   bool   `yaml:"auto_connect" json:"autoConnect"`
}

type PipelineConfig struct {
	RetryBackoffMs  int `yaml:"retry_backoff_ms" json:"retryBackoffMs"`
	JoinTimeoutMs   int `yaml:"join_timeout_ms" json:"joinTimeoutMs"`
	HistoryCapacity int `yaml:"history_capacity" json:"historyCapacity"`
	MaxFrameBytes   int `yaml:"max_frame_bytes" json:"maxFrameBytes"`
}

type RecordingConfig struct {
	Dir       string `yaml:"dir" json:"dir"`
	AutoStart bool   `yaml:"auto_start" json:"autoStart"` // start recording at process start-up
}

type UplinkConfig struct {
	TeamID         string `yaml:"team_id" json:"teamId"`
	WriteTimeoutMs int    `yaml:"write_timeout_ms" json:"writeTimeoutMs"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listenAddr"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // console, json
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Serial: SerialConfig{
			Type:          "serial",
			PortPath:      "/dev/ttyUSB0",
			BaudRate:      9600,
			ReadTimeoutMs: 100,
		},
		Pipeline: PipelineConfig{
			RetryBackoffMs:  100,
			JoinTimeoutMs:   2000,
			HistoryCapacity: 100,
			MaxFrameBytes:   4096,
		},
		Recording: RecordingConfig{
			Dir: "",
		},
		Uplink: UplinkConfig{
			TeamID:         "1001",
			WriteTimeoutMs: 1000,
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig reads config from a YAML file, then applies .env and
// environment variable overrides. Falls back to defaults if the file is
// missing. The returned notes describe what was loaded, for logging once
// the process logger exists.
func LoadConfig(path string) (*Config, []string) {
	var notes []string
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		notes = append(notes, fmt.Sprintf("no config at %s, using defaults", path))
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		notes = append(notes, fmt.Sprintf("error parsing %s: %v, using defaults", path, err))
		cfg = DefaultConfig()
		cfg.path = path
	} else {
		notes = append(notes, fmt.Sprintf("loaded from %s", path))
	}

	// .env next to the config, then in CWD
	for _, ep := range []string{filepath.Join(filepath.Dir(path), ".env"), ".env"} {
		if loadEnvFile(ep) {
			notes = append(notes, fmt.Sprintf("loaded .env from %s", ep))
		}
	}

	cfg.applyEnvOverrides()
	return cfg, notes
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
// Variables already present in the real environment win.
func loadEnvFile(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
	return true
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: SERIAL_TYPE, SERIAL_PORT, SERIAL_BAUD, RECORD_DIR,
// RECORD_AUTOSTART, TEAM_ID, LISTEN_ADDR, LOG_LEVEL, LOG_FORMAT
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SERIAL_TYPE"); v != "" {
		c.Serial.Type = v
	}
	if v := os.Getenv("SERIAL_PORT"); v != "" {
		c.Serial.PortPath = v
	}
	if v := os.Getenv("SERIAL_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Serial.BaudRate = n
		}
	}
	if v := os.Getenv("RECORD_DIR"); v != "" {
		c.Recording.Dir = v
	}
	if v := os.Getenv("RECORD_AUTOSTART"); v != "" {
		c.Recording.AutoStart = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("TEAM_ID"); v != "" {
		c.Uplink.TeamID = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

func millis(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

// TransportConfig returns the link settings for Connect.
func (c *Config) TransportConfig() transport.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return transport.Config{
		Type:        c.Serial.Type,
		PortPath:    c.Serial.PortPath,
		BaudRate:    c.Serial.BaudRate,
		ReadTimeout: millis(c.Serial.ReadTimeoutMs),
	}
}

// SessionConfig returns the pipeline settings for session.New.
func (c *Config) SessionConfig() session.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return session.Config{
		RetryBackoff: millis(c.Pipeline.RetryBackoffMs),
		JoinTimeout:  millis(c.Pipeline.JoinTimeoutMs),
		WriteTimeout: millis(c.Uplink.WriteTimeoutMs),
		PollInterval: millis(c.Serial.ReadTimeoutMs),
		MaxFrame:     c.Pipeline.MaxFrameBytes,
	}
}

// LoggerConfig returns the process logger settings.
func (c *Config) LoggerConfig() logger.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return logger.Config{Level: c.Log.Level, Format: c.Log.Format}
}

// RecordingDir returns the configured flight log directory.
func (c *Config) RecordingDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Recording.Dir
}

// TeamID returns the uplink team identifier.
func (c *Config) TeamID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Uplink.TeamID
}

// Save writes the config to its YAML file.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	path := c.path
	if path == "" {
		path = DefaultConfigPath
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ToJSON serializes config for the API.
func (c *Config) ToJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c)
}

// UpdateFromJSON applies a partial JSON config update by deep-merging
// incoming fields into the existing config. Fields not present in the
// incoming JSON are preserved.
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
