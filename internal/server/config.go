package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/iwvelando/sprint-budget/internal/config"
	"github.com/iwvelando/sprint-budget/pkg/constants"
	"gopkg.in/yaml.v3"
)

const defaultShutdownTimeout = 10 * time.Second

// Config defines runtime parameters for the HTTP server.
type Config struct {
	Address         string               `yaml:"address"`
	MaxUploadSize   string               `yaml:"maxUploadSize"`
	ShutdownTimeout string               `yaml:"shutdownTimeout,omitempty"`
	Logging         config.LoggingConfig `yaml:"logging"`
	uploadSizeBytes int64
	shutdownTimeout time.Duration
}

// LoadConfig loads the server configuration from YAML. If the file does not exist,
// defaults are returned without error.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Address:         constants.DefaultServerAddress,
		MaxUploadSize:   strconv.FormatInt(constants.DefaultMaxUploadSizeBytes, 10),
		uploadSizeBytes: constants.DefaultMaxUploadSizeBytes,
		shutdownTimeout: defaultShutdownTimeout,
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read server config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse server config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UploadSizeBytes returns the configured upload size in bytes.
func (c *Config) UploadSizeBytes() int64 {
	return c.uploadSizeBytes
}

// SetUploadSizeBytes overrides the configured upload size.
func (c *Config) SetUploadSizeBytes(size int64) {
	if size > 0 {
		c.uploadSizeBytes = size
		c.MaxUploadSize = strconv.FormatInt(size, 10)
	}
}

// ShutdownTimeoutDuration is how long a graceful shutdown may take.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	if c.shutdownTimeout <= 0 {
		return defaultShutdownTimeout
	}
	return c.shutdownTimeout
}

func (c *Config) normalize() error {
	if c.Address == "" {
		c.Address = constants.DefaultServerAddress
	}

	c.shutdownTimeout = defaultShutdownTimeout
	if s := strings.TrimSpace(c.ShutdownTimeout); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid shutdownTimeout %q: %w", s, err)
		}
		if d > 0 {
			c.shutdownTimeout = d
		}
	}

	size, err := ParseSize(c.MaxUploadSize)
	if err != nil {
		return err
	}
	if size <= 0 {
		size = constants.DefaultMaxUploadSizeBytes
	}
	c.uploadSizeBytes = size
	c.MaxUploadSize = strconv.FormatInt(size, 10)
	return nil
}

// ParseSize converts a human-friendly byte string (e.g., "256K", "10M") into
// bytes. An empty string yields the default upload size.
func ParseSize(value string) (int64, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	if trimmed == "" {
		return constants.DefaultMaxUploadSizeBytes, nil
	}

	idx := strings.LastIndexFunc(trimmed, unicode.IsDigit) + 1
	if idx == 0 {
		return 0, fmt.Errorf("invalid size: %s", value)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(trimmed[:idx]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value %q: %w", value, err)
	}

	var shift uint
	switch strings.TrimSpace(trimmed[idx:]) {
	case "", "B":
	case "K", "KB":
		shift = 10
	case "M", "MB":
		shift = 20
	case "G", "GB":
		shift = 30
	default:
		return 0, fmt.Errorf("unsupported size unit %q", trimmed[idx:])
	}

	if n < 0 || n > (1<<62)>>shift {
		return 0, fmt.Errorf("size overflow for value %s", value)
	}
	return n << shift, nil
}
