package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the config file read from the data directory.
const FileName = "config.json"

// Config holds application configuration.
type Config struct {
	// Bind is the address the HTTP server listens on.
	Bind string `json:"bind,omitempty"`

	// Port is the HTTP listen port.
	Port int `json:"port,omitempty"`

	// Slow adds a fixed delay to every HTTP request. Development aid for
	// exercising client loading states.
	Slow bool `json:"slow,omitempty"`

	// MaxUploadBytes caps the decoded size of an image note body.
	MaxUploadBytes int64 `json:"max_upload_bytes,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// LogFormat is "json" or "text".
	LogFormat string `json:"log_format,omitempty"`

	// CORSOrigins lists origins allowed to call the JSON API from a browser.
	// Empty disables CORS handling.
	CORSOrigins []string `json:"cors_origins,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Bind:           "127.0.0.1",
		Port:           8080,
		MaxUploadBytes: 500 << 20,
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.lenote.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, FileName))
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.Bind = overlay.Bind
	if result.Bind == "" {
		result.Bind = base.Bind
	}

	result.Port = overlay.Port
	if result.Port == 0 {
		result.Port = base.Port
	}

	result.MaxUploadBytes = overlay.MaxUploadBytes
	if result.MaxUploadBytes == 0 {
		result.MaxUploadBytes = base.MaxUploadBytes
	}

	result.LogLevel = overlay.LogLevel
	if result.LogLevel == "" {
		result.LogLevel = base.LogLevel
	}

	result.LogFormat = overlay.LogFormat
	if result.LogFormat == "" {
		result.LogFormat = base.LogFormat
	}

	// Booleans: overlay wins if true, else base
	result.Slow = base.Slow || overlay.Slow

	// Arrays: merge and deduplicate
	result.CORSOrigins = mergeStringSlice(base.CORSOrigins, overlay.CORSOrigins)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
