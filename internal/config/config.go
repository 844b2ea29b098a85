package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds everything toolroom needs to reach the maintenance backend.
type Config struct {
	APIURL          string
	APIKey          string
	LogDir          string
	LogLevel        string
	CredentialsPath string
	RequestTimeout  time.Duration
	RateLimit       float64 // requests per second; zero disables pacing
	RateBurst       int
	MetricsAddr     string // empty disables the /metrics listener
	Maintenance     Maintenance
}

// Maintenance holds the operating-hour thresholds used to flag machines as due.
type Maintenance struct {
	IntervalHours int
	WarningHours  int
}

const (
	defaultConfigPath      = "~/.config/toolroom/config.toml"
	defaultCredentialsPath = "~/.config/toolroom/credentials.toml"
	defaultLogDir          = "~/.local/share/toolroom/logs"
	defaultAPIURL          = "http://127.0.0.1:5000/api"
	defaultLogLevel        = "info"
	defaultRequestTimeout  = 15 * time.Second
	defaultRateLimit       = 20
	defaultRateBurst       = 10
	defaultIntervalHours   = 500
	defaultWarningHours    = 50
)

type fileConfig struct {
	APIURL          string  `toml:"api_url"`
	APIKey          string  `toml:"api_key"`
	LogDir          string  `toml:"log_dir"`
	LogLevel        string  `toml:"log_level"`
	CredentialsPath string  `toml:"credentials_path"`
	TimeoutSeconds  int     `toml:"request_timeout_seconds"`
	RateLimit       float64 `toml:"rate_limit"`
	RateBurst       int     `toml:"rate_burst"`
	MetricsAddr     string  `toml:"metrics_addr"`
	Maintenance     struct {
		IntervalHours int `toml:"interval_hours"`
		WarningHours  int `toml:"warning_hours"`
	} `toml:"maintenance"`
}

type envOverrides struct {
	APIURL      string `env:"TOOLROOM_API_URL"`
	APIKey      string `env:"TOOLROOM_API_KEY"`
	LogDir      string `env:"TOOLROOM_LOG_DIR"`
	LogLevel    string `env:"TOOLROOM_LOG_LEVEL"`
	MetricsAddr string `env:"TOOLROOM_METRICS_ADDR"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIURL:          defaultAPIURL,
		LogDir:          mustExpand(defaultLogDir),
		LogLevel:        defaultLogLevel,
		CredentialsPath: mustExpand(defaultCredentialsPath),
		RequestTimeout:  defaultRequestTimeout,
		RateLimit:       defaultRateLimit,
		RateBurst:       defaultRateBurst,
		Maintenance: Maintenance{
			IntervalHours: defaultIntervalHours,
			WarningHours:  defaultWarningHours,
		},
	}
}

// Load reads the TOML config, falling back to defaults when it is missing,
// then applies TOOLROOM_* environment overrides.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		return applyEnv(cfg)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw fileConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIURL); v != "" {
		cfg.APIURL = v
	}
	cfg.APIKey = strings.TrimSpace(raw.APIKey)
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.LogDir = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(raw.CredentialsPath); v != "" {
		cfg.CredentialsPath = mustExpand(v)
	}
	if raw.TimeoutSeconds > 0 {
		cfg.RequestTimeout = time.Duration(raw.TimeoutSeconds) * time.Second
	}
	if raw.RateLimit > 0 {
		cfg.RateLimit = raw.RateLimit
	}
	if raw.RateBurst > 0 {
		cfg.RateBurst = raw.RateBurst
	}
	cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	if raw.Maintenance.IntervalHours > 0 {
		cfg.Maintenance.IntervalHours = raw.Maintenance.IntervalHours
	}
	if raw.Maintenance.WarningHours > 0 {
		cfg.Maintenance.WarningHours = raw.Maintenance.WarningHours
	}

	return applyEnv(cfg)
}

// LoadDotenv loads KEY=VALUE pairs from the given .env files (default ".env")
// into the process environment. Missing files are ignored and variables that
// are already set win.
func LoadDotenv(paths ...string) error {
	const op = "config.LoadDotenv"

	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: load %s: %w", op, p, err)
		}
	}
	return nil
}

func applyEnv(cfg Config) (Config, error) {
	var raw envOverrides
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if v := strings.TrimSpace(raw.APIURL); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(raw.APIKey); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.LogDir = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(raw.MetricsAddr); v != "" {
		cfg.MetricsAddr = v
	}
	return cfg, nil
}

// LogPath returns the path of toolroom's own log file.
func (c Config) LogPath() string {
	if strings.TrimSpace(c.LogDir) == "" {
		return mustExpand(defaultLogDir + "/toolroom.log")
	}
	return filepath.Join(c.LogDir, "toolroom.log")
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
