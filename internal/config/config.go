// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/jeranaias/docqa-tui/internal/backend"
	"github.com/jeranaias/docqa-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete docqa configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Chat    ChatConfig    `toml:"chat"`
	Render  RenderConfig  `toml:"render"`
	Upload  UploadConfig  `toml:"upload"`
	Archive ArchiveConfig `toml:"archive"`
	Logging LoggingConfig `toml:"logging"`
	Export  ExportConfig  `toml:"export"`
}

// ServerConfig locates the answer service.
type ServerConfig struct {
	BaseURL            string `toml:"base_url" validate:"required,http_url"`
	RequestTimeoutSecs int    `toml:"request_timeout_secs" validate:"min=1,max=3600"`

	// TeardownTimeoutMs bounds the end-of-session signal on exit.
	TeardownTimeoutMs int `toml:"teardown_timeout_ms" validate:"min=0,max=60000"`
}

// ChatConfig controls submissions.
type ChatConfig struct {
	// HistoryWindow is how many transcript entries are sent as context.
	HistoryWindow    int  `toml:"history_window" validate:"min=0,max=100"`
	RequireDocuments bool `toml:"require_documents"`
}

// RenderConfig controls answer rendering in the terminal.
type RenderConfig struct {
	WordWrap     int    `toml:"word_wrap" validate:"min=0,max=1000"`
	Style        string `toml:"style" validate:"oneof=auto dark light notty ascii dracula pink tokyo-night"`
	CodeStyle    string `toml:"code_style" validate:"required"`
	Math         bool   `toml:"math"`
	Hyperlinks   bool   `toml:"hyperlinks"`
	CacheTTLSecs int    `toml:"cache_ttl_secs" validate:"min=0"`
}

// UploadConfig limits uploads and the watch folder.
type UploadConfig struct {
	MaxFileMB       int     `toml:"max_file_mb" validate:"min=1,max=2048"`
	WatchRatePerSec float64 `toml:"watch_rate_per_sec" validate:"gt=0"`
	WatchBurst      int     `toml:"watch_burst" validate:"min=1"`
	WatchDebounceMs int     `toml:"watch_debounce_ms" validate:"min=0"`
}

// ArchiveConfig controls the local transcript archive.
type ArchiveConfig struct {
	Enabled     bool   `toml:"enabled"`
	Path        string `toml:"path"` // default: ~/.docqa/archive.db
	MaxSessions int    `toml:"max_sessions" validate:"min=0"`
}

// LoggingConfig controls the log file.
type LoggingConfig struct {
	File  string `toml:"file"` // default: ~/.docqa/logs/docqa.log
	Level string `toml:"level" validate:"oneof=debug info warn error"`
}

// ExportConfig sets export defaults.
type ExportConfig struct {
	Dir   string `toml:"dir"`
	Theme string `toml:"theme" validate:"oneof=dark light"`
	Open  bool   `toml:"open"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:            "http://127.0.0.1:8000",
			RequestTimeoutSecs: 60,
			TeardownTimeoutMs:  2000,
		},
		Chat: ChatConfig{
			HistoryWindow:    6,
			RequireDocuments: true,
		},
		Render: RenderConfig{
			WordWrap:     80,
			Style:        "auto",
			CodeStyle:    "monokai",
			Math:         true,
			Hyperlinks:   true,
			CacheTTLSecs: 600,
		},
		Upload: UploadConfig{
			MaxFileMB:       50,
			WatchRatePerSec: 1,
			WatchBurst:      3,
			WatchDebounceMs: 500,
		},
		Archive: ArchiveConfig{
			MaxSessions: 200,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Export: ExportConfig{
			Dir:   ".",
			Theme: "dark",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the docqa configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".docqa"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions tightens a config file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		if err := os.Chmod(path, 0o600); err != nil {
			return fmt.Errorf("failed to fix permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ./.env (if present), then ~/.docqa/config.toml (if present),
// applies DOCQA_* overrides and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads a specific file. A missing file yields the defaults.
// Variables already in the environment are applied on top.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, statErr := os.Stat(path); statErr == nil {
		if err := ensureSecurePermissions(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
		}
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo writes cfg as TOML with 0600 permissions, atomically.
func SaveTo(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# docqa configuration file\n")
	buf.WriteString("# Generated by docqa - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0o600, 0o700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their TOML names.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("toml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks every field and returns ValidateErrors on failure.
func (c *Config) Validate() error {
	err := structValidator().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	errs := make(ValidateErrors, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, ValidationError{
			Field:   strings.TrimPrefix(fe.Namespace(), "Config."),
			Message: describe(fe),
		})
	}
	return errs
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "http_url":
		return fmt.Sprintf("%q is not an http(s) URL", fe.Value())
	case "oneof":
		return fmt.Sprintf("invalid value %v, must be one of: %s", fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - DOCQA_SERVER_URL: overrides server.base_url
//   - DOCQA_LOG_LEVEL: overrides logging.level
//   - DOCQA_LOG_FILE: overrides logging.file
//   - DOCQA_ARCHIVE: "1"/"true" enables the archive, "0"/"false" disables it
//   - DOCQA_HISTORY_WINDOW: overrides chat.history_window
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv("DOCQA_SERVER_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("DOCQA_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("DOCQA_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("DOCQA_ARCHIVE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DOCQA_ARCHIVE: %w", err)
		}
		c.Archive.Enabled = b
	}
	if v := os.Getenv("DOCQA_HISTORY_WINDOW"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DOCQA_HISTORY_WINDOW: %w", err)
		}
		c.Chat.HistoryWindow = n
	}
	return nil
}

// =============================================================================
// GET (DOT NOTATION)
// =============================================================================

// ErrUnknownKey is returned by Get for keys that name no setting.
var ErrUnknownKey = errors.New("unknown key")

// Get retrieves a value by its TOML path, e.g. "server.base_url".
func (c *Config) Get(key string) (any, error) {
	if key == "" {
		return nil, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTOMLName(v, part)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKey, strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field.Interface(), nil
		}
		if field.Kind() != reflect.Struct {
			return nil, fmt.Errorf("key '%s' is not a table", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return nil, fmt.Errorf("invalid key: %s", key)
}

func fieldByTOMLName(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.SplitN(t.Field(i).Tag.Get("toml"), ",", 2)[0]
		if strings.EqualFold(tag, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// Keys returns every leaf key in dot notation, sorted.
func Keys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := strings.SplitN(f.Tag.Get("toml"), ",", 2)[0]
			if name == "" || name == "-" {
				continue
			}
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, prefix+name+".")
				continue
			}
			keys = append(keys, prefix+name)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	sort.Strings(keys)
	return keys
}

// String returns the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return buf.String()
}

// =============================================================================
// DERIVED SETTINGS
// =============================================================================

// ClientConfig returns the backend client settings.
func (c *Config) ClientConfig() *backend.ClientConfig {
	return &backend.ClientConfig{
		BaseURL:         c.Server.BaseURL,
		Timeout:         time.Duration(c.Server.RequestTimeoutSecs) * time.Second,
		TeardownTimeout: time.Duration(c.Server.TeardownTimeoutMs) * time.Millisecond,
	}
}

// CacheTTL returns the render cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Render.CacheTTLSecs) * time.Second
}

// MaxUploadBytes returns the per-file upload limit.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Upload.MaxFileMB) << 20
}

// WatchDebounce returns the watch-folder quiet period.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.Upload.WatchDebounceMs) * time.Millisecond
}

// ArchivePath returns the archive database path, defaulting under
// ConfigDir.
func (c *Config) ArchivePath() (string, error) {
	if c.Archive.Path != "" {
		return expandHome(c.Archive.Path)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "archive.db"), nil
}

// LogFile returns the log file path, defaulting under ConfigDir.
func (c *Config) LogFile() (string, error) {
	if c.Logging.File != "" {
		return expandHome(c.Logging.File)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs", "docqa.log"), nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
