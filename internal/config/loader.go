package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/j-94/waggle-dance/internal/types"
)

// Loader loads settings from YAML files.
type Loader interface {
	// Load reads and validates the file at path.
	Load(path string) (*Settings, error)

	// LoadWithDefaults behaves like Load, but a missing file yields
	// DefaultSettings instead of an error.
	LoadWithDefaults(path string) (*Settings, error)
}

type viperLoader struct {
	validator Validator
}

// NewLoader creates a viper-backed Loader.
func NewLoader(validator Validator) Loader {
	return &viperLoader{validator: validator}
}

// Load reads path, interpolates ${VAR} references from the environment,
// unmarshals, and validates.
func (l *viperLoader) Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to read settings file", err)
	}

	interpolated, ok := interpolateEnvVars(v.AllSettings()).(map[string]interface{})
	if !ok {
		return nil, types.NewError(types.CONFIG_PARSE_FAILED, "settings file is not a mapping")
	}

	merged := viper.New()
	if err := merged.MergeConfigMap(interpolated); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "failed to merge settings", err)
	}

	settings := DefaultSettings()
	if err := merged.Unmarshal(settings); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED, "failed to unmarshal settings", err)
	}

	if err := l.validator.Validate(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// LoadWithDefaults loads path, or returns defaults when it does not exist.
func (l *viperLoader) LoadWithDefaults(path string) (*Settings, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		settings := DefaultSettings()
		if err := l.validator.Validate(settings); err != nil {
			return nil, err
		}
		return settings, nil
	}
	return l.Load(path)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// interpolateEnvVars walks a settings tree replacing ${VAR} in every string.
func interpolateEnvVars(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, value := range v {
			result[key] = interpolateEnvVars(value)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, value := range v {
			result[i] = interpolateEnvVars(value)
		}
		return result
	case string:
		return interpolateString(v)
	default:
		return v
	}
}

// interpolateString replaces ${VAR} with the environment value. Unset
// variables leave the reference in place so validation can surface it.
func interpolateString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if value := os.Getenv(name); value != "" {
			return value
		}
		return match
	})
}
