package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
)

const DefaultFile = "gfxbridge.toml"

var (
	ErrUnknownBackend = errors.New("unknown device backend")
	ErrUnknownLoader  = errors.New("unknown vulkan loader")
	ErrInvalidRuntime = errors.New("invalid runtime settings")
)

type Backend string

const (
	BackendSoft   Backend = "soft"
	BackendVulkan Backend = "vulkan"
)

type LogConfig struct {
	Level        string `toml:"level"`
	Prefix       string `toml:"prefix"`
	ReportCaller bool   `toml:"report_caller"`
}

type DeviceConfig struct {
	Backend    Backend `toml:"backend"`
	AppName    string  `toml:"app_name"`
	Validation bool    `toml:"validation"`
	// Loader selects the Vulkan entry point: "system" or "glfw".
	Loader string `toml:"loader"`
}

type RuntimeConfig struct {
	ComputeWorkers int `toml:"compute_workers"`
	JobQueueSize   int `toml:"job_queue_size"`
}

type SoftConfig struct {
	// MaxMemory in bytes, 0 for no limit.
	MaxMemory uint64 `toml:"max_memory"`
}

type Config struct {
	Log     LogConfig     `toml:"log"`
	Device  DeviceConfig  `toml:"device"`
	Runtime RuntimeConfig `toml:"runtime"`
	Soft    SoftConfig    `toml:"soft"`
}

func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:        "info",
			Prefix:       "gfxbridge",
			ReportCaller: true,
		},
		Device: DeviceConfig{
			Backend: BackendSoft,
			AppName: "gfxbridge",
			Loader:  "system",
		},
		Runtime: RuntimeConfig{
			ComputeWorkers: 4,
			JobQueueSize:   64,
		},
		Soft: SoftConfig{
			MaxMemory: 256 << 20,
		},
	}
}

// Parse decodes data on top of the defaults, so a file only needs the keys it changes.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("config %d:%d: %w", row, col, err)
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Device.Backend {
	case BackendSoft, BackendVulkan:
	default:
		return fmt.Errorf("device.backend %q: %w", c.Device.Backend, ErrUnknownBackend)
	}
	switch c.Device.Loader {
	case "system", "glfw":
	default:
		return fmt.Errorf("device.loader %q: %w", c.Device.Loader, ErrUnknownLoader)
	}
	if c.Runtime.ComputeWorkers < 1 {
		return fmt.Errorf("runtime.compute_workers = %d: %w", c.Runtime.ComputeWorkers, ErrInvalidRuntime)
	}
	if c.Runtime.JobQueueSize < 1 {
		return fmt.Errorf("runtime.job_queue_size = %d: %w", c.Runtime.JobQueueSize, ErrInvalidRuntime)
	}
	return nil
}

// Encode renders the config back to TOML, used to write a starter file.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
