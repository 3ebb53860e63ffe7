package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DeviceMAX2769 = "max2769"
	DeviceFile    = "file"
)

type Config struct {
	Device           string        `yaml:"device"`
	Bias             int           `yaml:"bias"`
	Antenna          int           `yaml:"antenna"`
	CenterFreq       float64       `yaml:"center_freq"`
	Bandwidth        int           `yaml:"bandwidth"`
	ZeroIF           bool          `yaml:"zero_if"`
	SampleRate       int           `yaml:"sample_rate"`
	ChunkLimit       int           `yaml:"chunk_limit"`
	IdleDelay        time.Duration `yaml:"idle_delay"`
	RecordLocation   string        `yaml:"record_location"`
	PlaybackLocation string        `yaml:"playback_location"`
	PlaybackLoop     bool          `yaml:"playback_loop"`
	LogLevel         string        `yaml:"log_level"`
	USB              USB           `yaml:"usb"`
	ControlServer    struct {
		Port int `yaml:"port"`
	} `yaml:"control_server"`
	Monitor struct {
		Interval int `yaml:"interval"`
		FFTSize  int `yaml:"fft_size"`
	} `yaml:"monitor"`
	InfluxDB struct {
		Host         string `yaml:"host"`
		Token        string `yaml:"token"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"influxdb"`
}

type USB struct {
	VendorID       uint16        `yaml:"vendor_id"`
	ProductID      uint16        `yaml:"product_id"`
	Endpoint       int           `yaml:"endpoint"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	ControlTimeout time.Duration `yaml:"control_timeout"`
}

// Default is a GPS L1 low-IF setup on the first antenna input.
func Default() Config {
	c := Config{
		Device:     DeviceMAX2769,
		Antenna:    1,
		CenterFreq: 1575420000,
		Bandwidth:  2500000,
		SampleRate: 8184000,
		IdleDelay:  time.Millisecond,
		LogLevel:   "info",
	}
	c.Monitor.Interval = 200
	c.Monitor.FFTSize = 4096
	return c
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(contents []byte) (*Config, error) {
	c := Default()
	if err := yaml.UnmarshalStrict(contents, &c); err != nil {
		return nil, fmt.Errorf("error unmarshaling yaml: %w", err)
	}

	// A playback location always means file playback.
	if c.PlaybackLocation != "" {
		c.Device = DeviceFile
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func Load(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return Parse(contents)
}

func (c *Config) Validate() error {
	switch c.Device {
	case DeviceMAX2769:
	case DeviceFile:
		if c.PlaybackLocation == "" {
			return fmt.Errorf("device %q requires playback_location", c.Device)
		}
	default:
		return fmt.Errorf("unknown device %q", c.Device)
	}
	if c.CenterFreq <= 0 {
		return fmt.Errorf("center_freq must be positive")
	}
	if c.ChunkLimit < 0 {
		return fmt.Errorf("chunk_limit must not be negative")
	}
	if c.SampleRate < 0 {
		return fmt.Errorf("sample_rate must not be negative")
	}
	if c.Monitor.Interval < 0 || c.Monitor.FFTSize < 0 {
		return fmt.Errorf("monitor interval and fft_size must not be negative")
	}
	return nil
}
