package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/smol/internal/errors"
	"github.com/conneroisu/smol/internal/logging"
)

// Validate checks configuration values for correctness.
func Validate(config *Config) error {
	if strings.TrimSpace(config.Source) == "" {
		return invalid("source", "must not be empty")
	}
	if strings.TrimSpace(config.Out) == "" {
		return invalid("out", "must not be empty")
	}

	source := filepath.Clean(config.Source)
	out := filepath.Clean(config.Out)
	if out == source {
		return invalid("out", fmt.Sprintf("must differ from source %q", config.Source))
	}
	if contains(out, source) {
		return invalid("out", fmt.Sprintf("must not contain source %q", config.Source))
	}
	if config.StaticDir != "" && filepath.Clean(config.StaticDir) == source {
		return invalid("static_dir", fmt.Sprintf("must differ from source %q", config.Source))
	}

	if len(config.Templates) == 0 {
		return invalid("templates", "must list at least one extension")
	}
	for _, ext := range config.Templates {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return invalid("templates", fmt.Sprintf("extension %q must start with a dot", ext))
		}
	}

	if config.Watch.Debounce < 0 {
		return invalid("watch.debounce", fmt.Sprintf("%s is negative", config.Watch.Debounce))
	}

	if err := validateServerConfig(&config.Server); err != nil {
		return err
	}

	if _, err := logging.ParseLevel(config.Log.Level); err != nil {
		return invalid("log.level", err.Error())
	}
	switch config.Log.Format {
	case "text", "json":
	default:
		return invalid("log.format", fmt.Sprintf("%q is not one of text, json", config.Log.Format))
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	if config.Port <= 0 || config.Port > 65535 {
		return invalid("server.port", fmt.Sprintf("%d is not in valid range 1-65535", config.Port))
	}

	// Basic validation - no dangerous characters
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\", " "}
	for _, char := range dangerousChars {
		if strings.Contains(config.Host, char) {
			return invalid("server.host", fmt.Sprintf("contains invalid character %q", char))
		}
	}

	return nil
}

// contains reports whether dir is inside or equal to path.
func contains(path, dir string) bool {
	if path == "." {
		return true
	}
	return dir == path || strings.HasPrefix(dir, path+string(filepath.Separator))
}

func invalid(field, message string) error {
	return errors.NewConfigError(errors.ErrCodeConfigInvalid, field+": "+message).
		WithContext("field", field)
}
