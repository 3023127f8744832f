package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	lev "github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"

	"mqttwatch/filter"
	"mqttwatch/ui"
)

const (
	ModeLive     = "live"
	ModeRetained = "retained"

	UITcell = "tcell"
	UIANSI  = "ansi"
)

var (
	modeNames = []string{ModeLive, ModeRetained}
	uiNames   = []string{UITcell, UIANSI}
)

// Config represents the complete monitor configuration
type Config struct {
	Broker  BrokerConfig  `yaml:"broker"`
	Filter  FilterConfig  `yaml:"filter"`
	Mask    MaskConfig    `yaml:"mask"`
	Display DisplayConfig `yaml:"display"`
	Logging LoggingConfig `yaml:"logging"`
}

// BrokerConfig contains MQTT connection settings
type BrokerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	ClientID       string `yaml:"client_id"`
	Topic          string `yaml:"topic"`
	QoS            int    `yaml:"qos"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// FilterConfig contains exclude/include patterns
type FilterConfig struct {
	Exclude     []string `yaml:"exclude"`
	Include     []string `yaml:"include"`
	IncludeMode string   `yaml:"include_mode"`
}

// MaskConfig contains payload redaction settings
type MaskConfig struct {
	Patterns []string `yaml:"patterns"`
	Preserve string   `yaml:"preserve"`
}

// DisplayConfig contains view and session behavior
type DisplayConfig struct {
	Sort          string `yaml:"sort"`
	Mode          string `yaml:"mode"`
	ClearRetained bool   `yaml:"clear_retained"`
	UI            string `yaml:"ui"`
	LabelWidth    int    `yaml:"label_width"`
	PayloadWidth  int    `yaml:"payload_width"`
}

// LoggingConfig contains log file settings. An empty Dir disables the file.
type LoggingConfig struct {
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			Host:           "localhost",
			Port:           1883,
			Topic:          "#",
			TimeoutSeconds: 10,
		},
		Filter:  FilterConfig{IncludeMode: "label"},
		Mask:    MaskConfig{Preserve: "none"},
		Display: DisplayConfig{Sort: "time", Mode: ModeLive, UI: UITcell},
		Logging: LoggingConfig{RetentionDays: 7},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected so a
// misspelled option does not silently fall back to its default.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Broker.Topic) == "" {
		errs = append(errs, errors.New("broker.topic: must not be empty"))
	}
	if strings.TrimSpace(c.Broker.Host) == "" {
		errs = append(errs, errors.New("broker.host: must not be empty"))
	}
	if c.Broker.Port <= 0 || c.Broker.Port > 65535 {
		errs = append(errs, fmt.Errorf("broker.port: %d out of range 1-65535", c.Broker.Port))
	}
	if c.Broker.QoS < 0 || c.Broker.QoS > 2 {
		errs = append(errs, fmt.Errorf("broker.qos: %d not one of 0, 1, 2", c.Broker.QoS))
	}
	if c.Broker.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("broker.timeout_seconds: must be positive, got %d", c.Broker.TimeoutSeconds))
	}
	// MQTT only carries a password alongside a user name.
	if c.Broker.Password != "" && c.Broker.Username == "" {
		errs = append(errs, errors.New("broker.password: set without broker.username"))
	}
	errs = appendEnum(errs, "filter.include_mode", c.Filter.IncludeMode, filter.IncludeModeNames())
	errs = appendEnum(errs, "mask.preserve", c.Mask.Preserve, filter.PreserveModeNames())
	errs = appendEnum(errs, "display.sort", c.Display.Sort, ui.SortKeyNames())
	errs = appendEnum(errs, "display.mode", c.Display.Mode, modeNames)
	errs = appendEnum(errs, "display.ui", c.Display.UI, uiNames)
	if c.Logging.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("logging.retention_days: must not be negative, got %d", c.Logging.RetentionDays))
	}
	return errors.Join(errs...)
}

func appendEnum(errs []error, field, value string, allowed []string) []error {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if v == a {
			return errs
		}
	}
	msg := fmt.Sprintf("%s: invalid value %q (want one of %s)", field, value, strings.Join(allowed, ", "))
	if s := suggest(v, allowed); s != "" {
		msg += fmt.Sprintf("; did you mean %q?", s)
	}
	return append(errs, errors.New(msg))
}

// suggest returns the closest allowed value within an edit distance of 3.
func suggest(value string, allowed []string) string {
	best, bestDistance := "", 4
	for _, a := range allowed {
		if d := lev.ComputeDistance(value, a); d < bestDistance {
			best, bestDistance = a, d
		}
	}
	return best
}

// IncludeMode returns the parsed include mode. Call after Validate.
func (c *Config) IncludeMode() filter.IncludeMode {
	m, _ := filter.ParseIncludeMode(c.Filter.IncludeMode)
	return m
}

// PreserveMode returns the parsed mask preservation mode.
func (c *Config) PreserveMode() filter.PreserveMode {
	m, _ := filter.ParsePreserveMode(c.Mask.Preserve)
	return m
}

// SortKey returns the parsed initial sort key.
func (c *Config) SortKey() ui.SortKey {
	k, _ := ui.ParseSortKey(c.Display.Sort)
	return k
}

// RetainedOnly reports whether live deliveries are dropped.
func (c *Config) RetainedOnly() bool {
	return strings.EqualFold(strings.TrimSpace(c.Display.Mode), ModeRetained)
}

// Summary is a one-line description for the startup log. The password is
// never included.
func (c *Config) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "broker %s:%d topic %q", c.Broker.Host, c.Broker.Port, c.Broker.Topic)
	if c.Broker.Username != "" {
		fmt.Fprintf(&b, " user %s", c.Broker.Username)
	}
	fmt.Fprintf(&b, " mode %s sort %s ui %s", c.Display.Mode, c.Display.Sort, c.Display.UI)
	if len(c.Mask.Patterns) > 0 {
		fmt.Fprintf(&b, " mask %d pattern(s) preserve %s", len(c.Mask.Patterns), c.Mask.Preserve)
	}
	if c.Display.ClearRetained {
		b.WriteString(" clear-retained")
	}
	return b.String()
}
