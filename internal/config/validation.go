package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/conneroisu/pagekit/internal/dom"
	"github.com/conneroisu/pagekit/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
		builder.WriteString("\n")
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// ValidateConfigWithDetails performs comprehensive validation with detailed
// feedback. knownKinds, when non-empty, lists the kinds that can be loaded;
// other kinds are reported as warnings since they boot as no-ops.
func ValidateConfigWithDetails(config *Config, knownKinds []string) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateComponentsConfigDetails(&config.Components, knownKinds, result)
	validateToastConfigDetails(&config.Toast, result)
	validateStorageConfigDetails(&config.Storage, result)
	validateLogConfigDetails(&config.Log, result)
	validateWatchConfigDetails(&config.Watch, result)

	// Set overall validity
	result.Valid = !result.HasErrors()

	return result
}

func validateComponentsConfigDetails(config *ComponentsConfig, knownKinds []string, result *ValidationResult) {
	if len(config.Critical) == 0 && len(config.Secondary) == 0 {
		result.addWarning("components", nil, "no components configured",
			"Add entries under components.critical or components.secondary")
		return
	}

	seen := make(map[string]string)
	check := func(group string, specs []ComponentSpec) {
		for i, spec := range specs {
			field := fmt.Sprintf("components.%s[%d]", group, i)
			if strings.TrimSpace(spec.Kind) == "" {
				result.addError(field+".kind", spec.Kind, "kind is required")
				continue
			}
			if len(knownKinds) > 0 && !slices.Contains(knownKinds, spec.Kind) {
				result.addWarning(field+".kind", spec.Kind, fmt.Sprintf("unknown kind %q", spec.Kind),
					"Known kinds: "+strings.Join(knownKinds, ", "))
			}
			if spec.Selector == "" {
				result.addError(field+".selector", spec.Selector, "selector is required",
					fmt.Sprintf("Use an id selector such as #%s", spec.Kind))
				continue
			}
			if _, err := dom.CompileSelector(spec.Selector); err != nil {
				result.addError(field+".selector", spec.Selector, err.Error(),
					"Supported: tag, #id, .class, [attr], [attr=v], descendant and child combinators")
				continue
			}
			key := spec.Kind + " " + spec.Selector
			if prev, dup := seen[key]; dup {
				result.addWarning(field, spec.Selector,
					fmt.Sprintf("duplicates %s; both requests resolve to one instance", prev))
				continue
			}
			seen[key] = field
		}
	}
	check("critical", config.Critical)
	check("secondary", config.Secondary)
}

func validateToastConfigDetails(config *ToastConfig, result *ValidationResult) {
	switch {
	case config.Duration <= 0:
		result.addError("toast.duration", config.Duration, "duration must be positive",
			"Try 3s")
	case config.Duration > time.Minute:
		result.addWarning("toast.duration", config.Duration, "toasts stay up for over a minute")
	}
}

func validateStorageConfigDetails(config *StorageConfig, result *ValidationResult) {
	if config.Path == "" {
		return
	}
	if err := validatePath(config.Path); err != nil {
		result.addError("storage.path", config.Path, err.Error())
		return
	}
	dir := filepath.Dir(config.Path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		result.addWarning("storage.path", config.Path, fmt.Sprintf("directory %s does not exist", dir),
			"Create it before booting, or leave storage.path empty to keep state in memory")
	}
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.addError("log.level", config.Level, err.Error(), "Use debug, info, warn or error")
	}
	if config.Format != "text" && config.Format != "json" {
		result.addError("log.format", config.Format, "format must be text or json")
	}
}

func validateWatchConfigDetails(config *WatchConfig, result *ValidationResult) {
	if config.Debounce < 0 {
		result.addError("watch.debounce", config.Debounce, "debounce must not be negative")
	} else if config.Debounce == 0 {
		result.addWarning("watch.debounce", config.Debounce, "every file event triggers a reload")
	}
}
