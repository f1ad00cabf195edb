package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	// Embedded zone database; Europe/Oslo must resolve on hosts without one.
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the input folder.
const FileName = "tollcheck.yaml"

// Config represents the top-level tollcheck.yaml configuration.
type Config struct {
	Input   InputConfig   `yaml:"input"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// InputConfig describes the billing exports to read.
type InputConfig struct {
	Pattern          string   `yaml:"pattern"`
	Format           string   `yaml:"format"`
	Delimiter        string   `yaml:"delimiter"`
	Encoding         string   `yaml:"encoding"`
	Timezone         string   `yaml:"timezone"`
	TimestampLayouts []string `yaml:"timestamp_layouts"`
	CheckHeaderNames bool     `yaml:"check_header_names"`
}

// OutputConfig controls reports and workbook naming.
type OutputConfig struct {
	Format         string `yaml:"format"` // text, json or yaml
	WorkbookSuffix string `yaml:"workbook_suffix"`
}

// LoggingConfig controls the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// Load reads a tollcheck.yaml file from disk. Keys missing from the file
// keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Find loads explicit when set, else tollcheck.yaml in folder when it
// exists, else the defaults. It returns the path it loaded, if any.
func Find(folder, explicit string) (*Config, string, error) {
	if explicit != "" {
		cfg, err := Load(explicit)
		return cfg, explicit, err
	}
	path := filepath.Join(folder, FileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), "", nil
		}
		return nil, "", fmt.Errorf("checking config: %w", err)
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config for semicolon separated AutoPASS exports.
func Default() *Config {
	return &Config{
		Input: InputConfig{
			Pattern:   "*.csv",
			Format:    "autopass",
			Delimiter: ";",
			Encoding:  "windows-1252",
			Timezone:  "Europe/Oslo",
			TimestampLayouts: []string{
				"02.01.2006 15:04:05",
				"02.01.2006 15:04",
				"2006-01-02 15:04:05",
				"2006-01-02T15:04:05",
				"2006-01-02 15:04",
			},
			CheckHeaderNames: true,
		},
		Output: OutputConfig{
			Format:         "text",
			WorkbookSuffix: ".xlsx",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the values Load cannot type check.
func (c *Config) Validate() error {
	if _, err := c.Input.DelimiterRune(); err != nil {
		return err
	}
	if _, err := c.Input.Location(); err != nil {
		return err
	}
	if _, err := filepath.Match(c.Input.Pattern, ""); err != nil {
		return fmt.Errorf("input.pattern %q: %w", c.Input.Pattern, err)
	}
	return nil
}

// DelimiterRune returns the single-character field delimiter.
func (in InputConfig) DelimiterRune() (rune, error) {
	if in.Delimiter == `\t` {
		return '\t', nil
	}
	if utf8.RuneCountInString(in.Delimiter) != 1 {
		return 0, fmt.Errorf("input.delimiter %q must be a single character", in.Delimiter)
	}
	r, _ := utf8.DecodeRuneInString(in.Delimiter)
	return r, nil
}

// Location returns the time zone timestamps are read in.
func (in InputConfig) Location() (*time.Location, error) {
	if in.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(in.Timezone)
	if err != nil {
		return nil, fmt.Errorf("input.timezone: %w", err)
	}
	return loc, nil
}
