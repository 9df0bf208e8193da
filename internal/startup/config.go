package startup

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"video-converter/internal/logging"
	"video-converter/internal/pipeline"
)

const (
	defaultStorageRoot    = "./Uploads"
	defaultBindAddress    = "0.0.0.0:5000"
	defaultMaxUploadBytes = int64(1 << 30)
	defaultFFmpegPath     = "ffmpeg"
	defaultMetricsPort    = "9090"
	defaultEnvFile        = ".env"
)

// Config holds all application configuration
type Config struct {
	StorageRoot        string        `yaml:"storage_root"`
	BindAddress        string        `yaml:"bind_address"`
	MaxUploadBytes     int64         `yaml:"max_upload_bytes"`
	PublicBaseURL      string        `yaml:"public_base_url"`
	StagingDir         string        `yaml:"staging_dir"`
	FFmpegPath         string        `yaml:"ffmpeg_path"`
	TranscodeTimeout   time.Duration `yaml:"transcode_timeout"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
	MetricsEnabled     bool          `yaml:"metrics_enabled"`
	MetricsPort        string        `yaml:"metrics_port"`
	LogDownloads       bool          `yaml:"log_downloads"`
	LogHealthChecks    bool          `yaml:"log_health_checks"`
	LogLevel           string        `yaml:"log_level"`

	// Set by the server after probing the transcoder, never read from config.
	FFmpegAvailable bool `yaml:"-"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		StorageRoot:        defaultStorageRoot,
		BindAddress:        defaultBindAddress,
		MaxUploadBytes:     defaultMaxUploadBytes,
		StagingDir:         os.TempDir(),
		FFmpegPath:         defaultFFmpegPath,
		CORSAllowedOrigins: []string{"*"},
		MetricsEnabled:     true,
		MetricsPort:        defaultMetricsPort,
		LogHealthChecks:    true,
	}
}

// Port returns the port part of BindAddress.
func (c *Config) Port() string {
	_, port, err := net.SplitHostPort(c.BindAddress)
	if err != nil {
		return c.BindAddress
	}
	return port
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.StorageRoot) == "" {
		errs = append(errs, errors.New("storage_root must not be empty"))
	}
	if _, _, err := net.SplitHostPort(c.BindAddress); err != nil {
		errs = append(errs, fmt.Errorf("bind_address %q: %w", c.BindAddress, err))
	}
	if c.MaxUploadBytes <= 0 || c.MaxUploadBytes > pipeline.MaxUploadLimit {
		errs = append(errs, fmt.Errorf("max_upload_bytes must be between 1 and %d, got %d",
			pipeline.MaxUploadLimit, c.MaxUploadBytes))
	}
	if c.TranscodeTimeout < 0 {
		errs = append(errs, fmt.Errorf("transcode_timeout must not be negative, got %v", c.TranscodeTimeout))
	}
	if c.PublicBaseURL != "" {
		u, err := url.Parse(c.PublicBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("public_base_url %q must be an absolute http(s) URL", c.PublicBaseURL))
		}
	}
	if c.MetricsEnabled {
		if p, err := strconv.Atoi(c.MetricsPort); err != nil || p <= 0 || p > 65535 {
			errs = append(errs, fmt.Errorf("metrics_port %q is not a valid port", c.MetricsPort))
		}
	}
	if c.LogLevel != "" {
		if _, ok := logging.ParseLevel(c.LogLevel); !ok {
			errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
		}
	}

	return errors.Join(errs...)
}

// loadEnvFile loads a dotenv file into the process environment without
// overriding variables that are already set. An empty path tries ./.env and
// ignores its absence.
func loadEnvFile(path string) (string, error) {
	if path == "" {
		if _, err := os.Stat(defaultEnvFile); err != nil {
			return "", nil
		}
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		return "", fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return path, nil
}

// loadFile decodes a YAML config file over cfg. Unknown keys are rejected.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file not found: %s", path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides cfg with every variable that is set.
func applyEnv(cfg *Config) {
	cfg.StorageRoot = getEnv("STORAGE_ROOT", cfg.StorageRoot)
	cfg.BindAddress = getEnv("BIND_ADDRESS", cfg.BindAddress)
	cfg.MaxUploadBytes = getEnvInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.PublicBaseURL = getEnv("PUBLIC_BASE_URL", cfg.PublicBaseURL)
	cfg.StagingDir = getEnv("STAGING_DIR", cfg.StagingDir)
	cfg.FFmpegPath = getEnv("FFMPEG_PATH", cfg.FFmpegPath)
	cfg.TranscodeTimeout = getEnvDuration("TRANSCODE_TIMEOUT", cfg.TranscodeTimeout)
	cfg.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins)
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.MetricsPort = getEnv("METRICS_PORT", cfg.MetricsPort)
	cfg.LogDownloads = getEnvBool("LOG_DOWNLOADS", cfg.LogDownloads)
	cfg.LogHealthChecks = getEnvBool("LOG_HEALTH_CHECKS", cfg.LogHealthChecks)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if getEnvBool("DEBUG", false) {
		cfg.LogLevel = "debug"
	}
}

// readConfig layers defaults, the YAML file and the environment. The env file
// must already have been loaded.
func readConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if configFile != "" {
		if err := loadFile(cfg, configFile); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
