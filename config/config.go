package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const CONFILE = "config.yml"

// Config is the complete configuration read from config.yml.
type Config struct {
	MonitorSleepTimeoutSeconds int            `yaml:"MonitorSleepTimeoutSeconds"`
	Presence                   PresenceConfig `yaml:"Presence"`
	Power                      PowerConfig    `yaml:"Power"`
	Hardware                   HardwareConfig `yaml:"Hardware"`
	Web                        WebConfig      `yaml:"Web"`
	Logging                    LoggingConfig  `yaml:"Logging"`
}

type PresenceConfig struct {
	DistanceThreshold float64       `yaml:"DistanceThreshold" json:"DistanceThreshold"`
	WindowSize        int           `yaml:"WindowSize" json:"WindowSize"`
	PollInterval      time.Duration `yaml:"PollInterval" json:"PollInterval"`
	ReadTimeout       time.Duration `yaml:"ReadTimeout" json:"ReadTimeout"`
}

type PowerConfig struct {
	OffRetryDelay  time.Duration `yaml:"OffRetryDelay"`
	CommandTimeout time.Duration `yaml:"CommandTimeout"`
}

type HardwareConfig struct {
	I2CBus       string        `yaml:"I2CBus"`
	GestureAddr  uint16        `yaml:"GestureAddr"`
	DistanceAddr uint16        `yaml:"DistanceAddr"`
	Display      DisplayConfig `yaml:"Display"`
}

// Display power backends.
const (
	DisplayCommand = "command"
	DisplayGPIO    = "gpio"
	DisplayNone    = "none"
)

type DisplayConfig struct {
	Type       string   `yaml:"Type"`
	OnCommand  []string `yaml:"OnCommand,flow"`
	OffCommand []string `yaml:"OffCommand,flow"`
	GPIOPin    int      `yaml:"GPIOPin"`
	ActiveLow  bool     `yaml:"ActiveLow"`
}

type WebConfig struct {
	Enabled bool   `yaml:"Enabled"`
	Listen  string `yaml:"Listen"`
}

type LoggingConfig struct {
	TUI LogConfig `yaml:"TUI"`
	HW  LogConfig `yaml:"HW"`
}

type LogConfig struct {
	Level  string `yaml:"Level"`
	Format string `yaml:"Format"`
	File   string `yaml:"File"`
}

// ReadConfig reads, completes and validates the configuration file.
func ReadConfig(cfile string) (*Config, error) {
	data, err := os.ReadFile(cfile)
	if err != nil {
		return nil, fmt.Errorf("can't read config file %s: %w", cfile, err)
	}

	var conf Config
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, fmt.Errorf("can't decode config file %s: %w", cfile, err)
	}
	conf.applyDefaults()

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", cfile, err)
	}
	return &conf, nil
}

// WriteConfig stores conf as YAML in cfile.
func WriteConfig(cfile string, conf *Config) error {
	data, err := yaml.Marshal(conf)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(cfile, data, 0o644)
}

// AbsenceDelay is the time nobody must be present before the display is
// switched off.
func (c *Config) AbsenceDelay() time.Duration {
	return time.Duration(c.MonitorSleepTimeoutSeconds) * time.Second
}

func (c *Config) applyDefaults() {
	if c.MonitorSleepTimeoutSeconds == 0 {
		c.MonitorSleepTimeoutSeconds = 300
	}
	if c.Presence.WindowSize == 0 {
		c.Presence.WindowSize = 10
	}
	if c.Presence.PollInterval == 0 {
		c.Presence.PollInterval = 500 * time.Millisecond
	}
	if c.Presence.ReadTimeout == 0 {
		c.Presence.ReadTimeout = 250 * time.Millisecond
	}
	if c.Power.CommandTimeout == 0 {
		c.Power.CommandTimeout = 5 * time.Second
	}
	if c.Hardware.GestureAddr == 0 {
		c.Hardware.GestureAddr = 0x73
	}
	if c.Hardware.DistanceAddr == 0 {
		c.Hardware.DistanceAddr = 0x40
	}
	d := &c.Hardware.Display
	if d.Type == "" {
		d.Type = DisplayCommand
	}
	d.Type = strings.ToLower(d.Type)
	if d.Type == DisplayCommand {
		if len(d.OnCommand) == 0 {
			d.OnCommand = []string{"vcgencmd", "display_power", "1"}
		}
		if len(d.OffCommand) == 0 {
			d.OffCommand = []string{"vcgencmd", "display_power", "0"}
		}
	}
	if c.Web.Listen == "" {
		c.Web.Listen = ":8081"
	}
	for _, l := range []*LogConfig{&c.Logging.TUI, &c.Logging.HW} {
		if l.Level == "" {
			l.Level = "INFO"
		}
		if l.Format == "" {
			l.Format = "text"
		}
	}
}

// Validate checks the configuration for consistency. All problems found
// are reported together.
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, c.Runtime().Validate())

	if c.Presence.WindowSize < 1 {
		errs = append(errs, fmt.Errorf("Presence.WindowSize (%d) must be at least 1", c.Presence.WindowSize))
	}
	if c.Presence.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("Presence.PollInterval (%v) must be positive", c.Presence.PollInterval))
	}
	if c.Presence.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("Presence.ReadTimeout (%v) must be positive", c.Presence.ReadTimeout))
	} else if c.Presence.ReadTimeout > c.Presence.PollInterval {
		errs = append(errs, fmt.Errorf("Presence.ReadTimeout (%v) must not exceed Presence.PollInterval (%v)",
			c.Presence.ReadTimeout, c.Presence.PollInterval))
	}
	if c.Power.OffRetryDelay < 0 {
		errs = append(errs, fmt.Errorf("Power.OffRetryDelay (%v) must be non-negative", c.Power.OffRetryDelay))
	}
	if c.Power.CommandTimeout <= 0 {
		errs = append(errs, fmt.Errorf("Power.CommandTimeout (%v) must be positive", c.Power.CommandTimeout))
	}
	if c.Hardware.GestureAddr > 0x7F || c.Hardware.DistanceAddr > 0x7F {
		errs = append(errs, errors.New("Hardware I2C addresses must be 7 bit"))
	}

	d := c.Hardware.Display
	switch d.Type {
	case DisplayCommand:
		if len(d.OnCommand) == 0 || len(d.OffCommand) == 0 {
			errs = append(errs, errors.New("Hardware.Display.OnCommand and OffCommand must not be empty"))
		}
	case DisplayGPIO:
		if d.GPIOPin < 0 || d.GPIOPin > 27 {
			errs = append(errs, fmt.Errorf("Hardware.Display.GPIOPin (%d) must be between 0 and 27", d.GPIOPin))
		}
	case DisplayNone:
	default:
		errs = append(errs, fmt.Errorf("Hardware.Display.Type %q must be one of %s, %s, %s",
			d.Type, DisplayCommand, DisplayGPIO, DisplayNone))
	}

	for name, l := range map[string]LogConfig{"TUI": c.Logging.TUI, "HW": c.Logging.HW} {
		switch strings.ToUpper(l.Level) {
		case "DEBUG", "INFO", "WARN", "ERROR":
		default:
			errs = append(errs, fmt.Errorf("Logging.%s.Level %q is unknown", name, l.Level))
		}
		switch strings.ToLower(l.Format) {
		case "text", "json":
		default:
			errs = append(errs, fmt.Errorf("Logging.%s.Format %q must be text or json", name, l.Format))
		}
	}

	return errors.Join(errs...)
}
