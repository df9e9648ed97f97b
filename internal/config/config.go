// Package config provides application configuration management with support
// for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/audiofolio/audiofolio-server/internal/domain"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Data    DataConfig
	Library LibraryConfig
	Scan    ScanConfig
	Watch   WatchConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `validate:"required,oneof=development staging production"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `validate:"required,oneof=debug info warn error"`
}

// DataConfig holds catalog storage configuration.
type DataConfig struct {
	// BasePath is the directory holding the database and extracted covers.
	BasePath string `validate:"required"`
}

// LibraryConfig holds the configured library roots.
type LibraryConfig struct {
	Roots []domain.RootFolder `validate:"dive"`
}

// ScanConfig holds scanning behavior configuration.
type ScanConfig struct {
	// Workers bounds the analyzer pool; 0 means one per CPU.
	Workers int `validate:"min=0,max=64"`
	// PreferredLanguages pick chapter names in multi-language Matroska
	// files. Defaults to the LANG locale, then English.
	PreferredLanguages []string
}

// WatchConfig holds filesystem watching configuration.
type WatchConfig struct {
	Enabled bool
	// SettleDelay is how long a folder must stay quiet before a rescan.
	SettleDelay time.Duration `validate:"min=0"`
	// MinRescanInterval rate-limits watcher-triggered rescans.
	MinRescanInterval time.Duration `validate:"min=0"`
}

// flagSpec ties one flag value to its env var and default.
type flagSpec struct {
	value *string
	env   string
	def   string
}

// Load builds configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
//
// Flags must already be parsed; pass the flag values in. LoadFromFlags is
// the usual entry point.
func Load(values Values) (*Config, error) {
	_ = loadEnvFile(values.EnvFile)

	cfg := &Config{
		App: AppConfig{
			Environment: pick(values.Environment, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: pick(values.LogLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: pick(values.DataPath, "DATA_PATH", ""),
		},
		Scan: ScanConfig{
			Workers:            pickInt(values.ScanWorkers, "SCAN_WORKERS", 0),
			PreferredLanguages: defaultLanguages(),
		},
		Watch: WatchConfig{
			Enabled:           pickBool(values.WatchEnabled, "WATCH_ENABLED", true),
			SettleDelay:       0,
			MinRescanInterval: 0,
		},
	}

	settle, err := pickDuration(values.WatchSettleDelay, "WATCH_SETTLE_DELAY", "2s")
	if err != nil {
		return nil, err
	}
	cfg.Watch.SettleDelay = settle

	minInterval, err := pickDuration(values.WatchMinRescanInterval, "WATCH_MIN_RESCAN_INTERVAL", "30s")
	if err != nil {
		return nil, err
	}
	cfg.Watch.MinRescanInterval = minInterval

	roots, err := parseRoots(values.Roots, os.Getenv("LIBRARY_ROOTS"))
	if err != nil {
		return nil, err
	}
	cfg.Library.Roots = roots

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}
	for i := range cfg.Library.Roots {
		expanded, err := expandPath(cfg.Library.Roots[i].Path, "")
		if err != nil {
			return nil, fmt.Errorf("invalid library root %q: %w", cfg.Library.Roots[i].Path, err)
		}
		cfg.Library.Roots[i].Path = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Values carries the raw flag values for Load. Empty strings fall through to
// environment variables and defaults.
type Values struct {
	Environment            string
	LogLevel               string
	DataPath               string
	Roots                  string
	ScanWorkers            string
	WatchEnabled           string
	WatchSettleDelay       string
	WatchMinRescanInterval string
	EnvFile                string
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return err
	}
	for _, root := range c.Library.Roots {
		switch root.Type {
		case domain.FolderTypeRoot, domain.FolderTypeAuthor,
			domain.FolderTypeSingleFolder, domain.FolderTypeSingleFile:
		default:
			return fmt.Errorf("invalid folder type %q for root %s", root.Type, root.Path)
		}
	}
	return nil
}

// parseRoots parses the comma-separated "type:path" root list, e.g.
// "root:/audiobooks,author:/library/by-author,single-file:/books/one.m4b".
// A bare path defaults to the root policy.
func parseRoots(flagValue, envValue string) ([]domain.RootFolder, error) {
	raw := flagValue
	if raw == "" {
		raw = envValue
	}
	if raw == "" {
		return nil, nil
	}

	var roots []domain.RootFolder
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		folderType, path, found := strings.Cut(entry, ":")
		if !found {
			roots = append(roots, domain.RootFolder{Path: entry, Type: domain.FolderTypeRoot})
			continue
		}
		ft := domain.FolderType(folderType)
		switch ft {
		case domain.FolderTypeRoot, domain.FolderTypeAuthor,
			domain.FolderTypeSingleFolder, domain.FolderTypeSingleFile:
			roots = append(roots, domain.RootFolder{Path: path, Type: ft})
		default:
			return nil, fmt.Errorf("unknown folder type %q in root entry %q", folderType, entry)
		}
	}
	return roots, nil
}

// defaultLanguages derives the chapter-name language preference from the
// LANG locale, always falling back to English.
func defaultLanguages() []string {
	langs := []string{}
	if locale := os.Getenv("LANG"); locale != "" {
		// "de_DE.UTF-8" -> "de"
		lang, _, _ := strings.Cut(locale, "_")
		lang, _, _ = strings.Cut(lang, ".")
		if lang != "" && lang != "C" && lang != "POSIX" {
			langs = append(langs, lang)
		}
	}
	return append(langs, "eng")
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath expands ~ and makes the path absolute, defaulting to
// ~/AudioFolio.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "AudioFolio")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// pick returns the first non-empty value from flag, env var, or default.
func pick(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// pickBool reads a bool from flag, env var, or default.
// Accepts "true", "1", "yes" (case-insensitive) as true; anything else is false.
func pickBool(flagValue, envKey string, defaultValue bool) bool {
	strValue := pick(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// pickInt reads an int from flag, env var, or default.
func pickInt(flagValue, envKey string, defaultValue int) int {
	strValue := pick(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// pickDuration reads a duration from flag, env var, or default.
func pickDuration(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := pick(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q for %s: %w", strValue, envKey, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	file, err := os.Open(path) //#nosec G304 -- config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Real env vars take precedence over the .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}
