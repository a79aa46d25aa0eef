package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Service ServiceConfig `json:"service"`
	Camera  CameraConfig  `json:"camera"`
	Capture CaptureConfig `json:"capture"`
	Cue     CueConfig     `json:"cue"`
	Server  ServerConfig  `json:"server"`
	Log     LogConfig     `json:"log"`
}

// ServiceConfig points at the remote attendance service
type ServiceConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// CameraConfig holds the per-facing frame sources. A source is a file path
// or an http(s) snapshot URL.
type CameraConfig struct {
	FrontSource string `json:"front_source"`
	BackSource  string `json:"back_source"`
}

// CaptureConfig holds capture encoding and pacing settings
type CaptureConfig struct {
	JPEGQuality   int    `json:"jpeg_quality"`
	CooldownMS    int    `json:"cooldown_ms"`
	ArchiveDir    string `json:"archive_dir"`
	ArchiveFormat string `json:"archive_format"`
}

// CueConfig selects the capture feedback sound
type CueConfig struct {
	Bell    bool     `json:"bell"`
	Command []string `json:"command"`
}

// ServerConfig configures the reference attendance service
type ServerConfig struct {
	Addr      string `json:"addr"`
	DBPath    string `json:"db_path"`
	MediaDir  string `json:"media_dir"`
	PublicURL string `json:"public_url"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Dir   string `json:"dir"`
	Debug bool   `json:"debug"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 30,
		},
		Camera: CameraConfig{
			FrontSource: "",
			BackSource:  "",
		},
		Capture: CaptureConfig{
			JPEGQuality:   92,
			CooldownMS:    3000,
			ArchiveDir:    "",
			ArchiveFormat: "jpg",
		},
		Cue: CueConfig{
			Bell: true,
		},
		Server: ServerConfig{
			Addr:     ":8000",
			DBPath:   "attendance.db",
			MediaDir: "./media",
		},
		Log: LogConfig{
			Dir:   "",
			Debug: false,
		},
	}
}

// Cooldown returns the capture cooldown window
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Capture.CooldownMS) * time.Millisecond
}

// Timeout returns the request timeout for the attendance service
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Service.TimeoutSeconds) * time.Second
}

// Load reads the config file when it exists, then applies .env and environment overrides
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename != "" {
		loaded, err := LoadFromFile(filename)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}

	// a missing .env is fine
	_ = godotenv.Load()
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a JSON file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from the process environment
func (c *Config) ApplyEnv() {
	c.Service.BaseURL = getEnv("ATTENDANCE_BASE_URL", c.Service.BaseURL)
	c.Service.TimeoutSeconds = getEnvAsInt("ATTENDANCE_TIMEOUT_SECONDS", c.Service.TimeoutSeconds)
	c.Camera.FrontSource = getEnv("CAMERA_FRONT", c.Camera.FrontSource)
	c.Camera.BackSource = getEnv("CAMERA_BACK", c.Camera.BackSource)
	c.Capture.JPEGQuality = getEnvAsInt("CAPTURE_JPEG_QUALITY", c.Capture.JPEGQuality)
	c.Capture.CooldownMS = getEnvAsInt("CAPTURE_COOLDOWN_MS", c.Capture.CooldownMS)
	c.Capture.ArchiveDir = getEnv("CAPTURE_ARCHIVE_DIR", c.Capture.ArchiveDir)
	c.Capture.ArchiveFormat = getEnv("CAPTURE_ARCHIVE_FORMAT", c.Capture.ArchiveFormat)
	c.Cue.Bell = getEnvAsBool("CUE_BELL", c.Cue.Bell)
	if cmd := getEnv("CUE_COMMAND", ""); cmd != "" {
		c.Cue.Command = strings.Fields(cmd)
	}
	c.Server.Addr = getEnv("SERVER_ADDR", c.Server.Addr)
	c.Server.DBPath = getEnv("DB_PATH", c.Server.DBPath)
	c.Server.MediaDir = getEnv("MEDIA_DIR", c.Server.MediaDir)
	c.Server.PublicURL = getEnv("PUBLIC_URL", c.Server.PublicURL)
	c.Log.Dir = getEnv("LOG_DIR", c.Log.Dir)
	c.Log.Debug = getEnvAsBool("LOG_DEBUG", c.Log.Debug)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Service.BaseURL == "" {
		return fmt.Errorf("service.base_url cannot be empty")
	}

	if !strings.HasPrefix(c.Service.BaseURL, "http://") && !strings.HasPrefix(c.Service.BaseURL, "https://") {
		return fmt.Errorf("service.base_url must be an http or https URL")
	}

	if c.Service.TimeoutSeconds < 1 {
		return fmt.Errorf("service.timeout_seconds must be positive")
	}

	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		return fmt.Errorf("capture.jpeg_quality must be between 1 and 100")
	}

	if c.Capture.CooldownMS < 0 {
		return fmt.Errorf("capture.cooldown_ms cannot be negative")
	}

	switch strings.ToLower(c.Capture.ArchiveFormat) {
	case "", "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("capture.archive_format must be jpg, png or webp")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "attendance-cam", "config.json")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
