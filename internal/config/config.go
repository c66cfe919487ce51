// Package config provides configuration management for pagekit using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration names the components booted on a page, split into a
// critical group that must settle before the page counts as interactive and
// a best-effort secondary group, together with widget defaults, the
// persisted-state store and logging. YAML files and PAGEKIT_ prefixed
// environment variables are supported.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/pagekit/internal/component"
	"github.com/conneroisu/pagekit/internal/dom"
	"github.com/conneroisu/pagekit/internal/loader"
	"github.com/conneroisu/pagekit/internal/logging"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = ".pagekit.yml"

type Config struct {
	Components  ComponentsConfig `yaml:"components" mapstructure:"components"`
	Toast       ToastConfig      `yaml:"toast" mapstructure:"toast"`
	Storage     StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Log         LogConfig        `yaml:"log" mapstructure:"log"`
	Watch       WatchConfig      `yaml:"watch" mapstructure:"watch"`
	TargetFiles []string         `yaml:"-" mapstructure:"-"` // CLI arguments, not from config file
}

// ComponentSpec declares one component to boot.
type ComponentSpec struct {
	Kind     string                 `yaml:"kind" mapstructure:"kind"`
	Selector string                 `yaml:"selector" mapstructure:"selector"`
	Options  map[string]interface{} `yaml:"options,omitempty" mapstructure:"options"`
}

type ComponentsConfig struct {
	Critical  []ComponentSpec `yaml:"critical" mapstructure:"critical"`
	Secondary []ComponentSpec `yaml:"secondary" mapstructure:"secondary"`
}

type ToastConfig struct {
	Duration time.Duration `yaml:"duration" mapstructure:"duration"`
}

type StorageConfig struct {
	// Path of the YAML state file. Empty keeps state in memory.
	Path string `yaml:"path" mapstructure:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

// MarshalYAML writes the duration in its readable form.
func (t ToastConfig) MarshalYAML() (interface{}, error) {
	return map[string]string{"duration": t.Duration.String()}, nil
}

// MarshalYAML writes the debounce in its readable form.
func (w WatchConfig) MarshalYAML() (interface{}, error) {
	return map[string]string{"debounce": w.Debounce.String()}, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Components: ComponentsConfig{
			Critical: []ComponentSpec{
				{Kind: "toast", Selector: "#toasts"},
				{Kind: "collapse", Selector: "[data-collapse]"},
			},
			Secondary: []ComponentSpec{
				{Kind: "tabs", Selector: "[data-tabs]"},
				{Kind: "search-filter", Selector: "[data-search]"},
				{Kind: "notebook", Selector: "[data-notebook]"},
			},
		},
		Toast:   ToastConfig{Duration: 3 * time.Second},
		Storage: StorageConfig{Path: ""},
		Log:     LogConfig{Level: "info", Format: "text"},
		Watch:   WatchConfig{Debounce: 100 * time.Millisecond},
	}
}

// Load reads the current viper state into a validated Config.
func Load() (*Config, error) {
	config, err := Decode()
	if err != nil {
		return nil, err
	}

	// Validate configuration values
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Decode reads the current viper state into a Config with defaults applied
// but without validation, for callers that report problems themselves.
func Decode() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	defaults := Default()

	// Apply defaults for component groups only if neither group was set
	if !viper.IsSet("components.critical") && !viper.IsSet("components.secondary") {
		config.Components = defaults.Components
	}

	// Env overrides arrive as strings; let viper parse them
	if viper.IsSet("toast.duration") {
		config.Toast.Duration = viper.GetDuration("toast.duration")
	} else {
		config.Toast.Duration = defaults.Toast.Duration
	}
	if viper.IsSet("watch.debounce") {
		config.Watch.Debounce = viper.GetDuration("watch.debounce")
	} else {
		config.Watch.Debounce = defaults.Watch.Debounce
	}

	if config.Log.Level == "" {
		config.Log.Level = defaults.Log.Level
	}
	if config.Log.Format == "" {
		config.Log.Format = defaults.Log.Format
	}
	config.Log.Level = strings.ToLower(config.Log.Level)
	config.Log.Format = strings.ToLower(config.Log.Format)

	return &config, nil
}

// BootRequests converts the component groups into loader requests. Toasts
// without an explicit duration get the configured one.
func (c *Config) BootRequests() (critical, secondary []loader.Request) {
	return c.requests(c.Components.Critical), c.requests(c.Components.Secondary)
}

func (c *Config) requests(specs []ComponentSpec) []loader.Request {
	out := make([]loader.Request, 0, len(specs))
	for _, spec := range specs {
		opts := make(map[string]any, len(spec.Options)+1)
		for k, v := range spec.Options {
			opts[k] = v
		}
		if _, ok := opts["duration"]; !ok && spec.Kind == "toast" {
			opts["duration"] = c.Toast.Duration
		}
		out = append(out, loader.Request{
			Kind:   component.Kind(spec.Kind),
			Config: component.Config{Selector: spec.Selector, Options: opts},
		})
	}
	return out
}

// LoggerConfig builds the logger settings.
func (c *Config) LoggerConfig() (*logging.LoggerConfig, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = c.Log.Format
	return lc, nil
}

// WriteFile writes c as YAML to path. It refuses to overwrite an existing
// file unless force is set.
func (c *Config) WriteFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file %s already exists", path)
		}
	}
	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	header := "# pagekit configuration\n\n"
	if err := os.WriteFile(path, append([]byte(header), raw...), 0o644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	if err := validateComponentsConfig(&config.Components); err != nil {
		return fmt.Errorf("components config: %w", err)
	}

	if config.Toast.Duration <= 0 {
		return fmt.Errorf("toast config: duration must be positive, got %s", config.Toast.Duration)
	}

	if config.Storage.Path != "" {
		if err := validatePath(config.Storage.Path); err != nil {
			return fmt.Errorf("storage config: %w", err)
		}
	}

	if _, err := logging.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("log config: unknown format %q", config.Log.Format)
	}

	if config.Watch.Debounce < 0 {
		return fmt.Errorf("watch config: debounce must not be negative")
	}

	return nil
}

// validateComponentsConfig validates every component declaration
func validateComponentsConfig(config *ComponentsConfig) error {
	groups := []struct {
		name  string
		specs []ComponentSpec
	}{
		{"critical", config.Critical},
		{"secondary", config.Secondary},
	}
	for _, group := range groups {
		for i, spec := range group.specs {
			if err := validateSpec(spec); err != nil {
				return fmt.Errorf("%s[%d]: %w", group.name, i, err)
			}
		}
	}
	return nil
}

func validateSpec(spec ComponentSpec) error {
	if strings.TrimSpace(spec.Kind) == "" {
		return fmt.Errorf("empty kind")
	}
	if spec.Selector == "" {
		return fmt.Errorf("component %s has no selector", spec.Kind)
	}
	if _, err := dom.CompileSelector(spec.Selector); err != nil {
		return fmt.Errorf("component %s: %w", spec.Kind, err)
	}
	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	// Clean the path
	cleanPath := filepath.Clean(path)

	// Reject path traversal attempts
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	// Reject dangerous characters
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
