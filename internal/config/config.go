package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/disgoorg/snowflake/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	v       *viper.Viper
	logFile *lumberjack.Logger
	Logger  *log.Logger
}

// NewConfig loads the configuration from .env, config.yaml and the environment
func NewConfig() (*Config, error) {
	// A missing .env is normal in production, anything else is worth knowing about.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)

	// Try to read config file (don't error if it doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		l := log.New(os.Stderr)
		l.Warnf("error reading config file: %v\nContinuing with envs...", err)
	}

	if err := bindEnvs(v); err != nil {
		return nil, fmt.Errorf("error binding environment variables: %w", err)
	}

	newCfg := &Config{v: v}

	logFile, err := newLogFile(newCfg.GetLogDir())
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	// Log both to a file and to stderr
	newCfg.logFile = logFile
	newCfg.Logger = newLogger(io.MultiWriter(os.Stderr, logFile), newCfg.GetLogLevel())

	if err := validateConfig(newCfg); err != nil {
		return nil, err
	}

	return newCfg, nil
}

// newLogFile prepares the rotating log file inside dir
func newLogFile(dir string) (*lumberjack.Logger, error) {
	if dir == "" {
		return nil, fmt.Errorf("log directory is not set")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, "renamebot.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     7, // days
		Compress:   true,
	}, nil
}

func newLogger(w io.Writer, level string) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "renamebot",
	})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		l.Warnf("unknown log level %q, using info", level)
		lvl = log.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// RotateLogs starts a fresh log file. Old files are pruned by age.
func (c *Config) RotateLogs() error {
	if c.logFile == nil {
		return nil
	}
	return c.logFile.Rotate()
}

// Close flushes and closes the log file
func (c *Config) Close() error {
	if c.logFile == nil {
		return nil
	}
	return c.logFile.Close()
}

// NewMockConfig creates a mock configuration for testing
func NewMockConfig(kv map[string]interface{}) *Config {
	v := viper.New()
	setDefaults(v)
	for k, val := range kv {
		v.Set(k, val)
	}
	return &Config{
		v:      v,
		Logger: log.New(os.Stderr),
	}
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_dir", "./logs")
	v.SetDefault("log_level", "info")
	v.SetDefault("honeycomb_dataset", "receiver")
	v.SetDefault("otlp_endpoint", "api.honeycomb.io:443")
	v.SetDefault("trace_exporter", "otlp")
	v.SetDefault("service_name", "receiver")
}

// bindEnvs binds environment variables to viper keys
func bindEnvs(v *viper.Viper) error {
	bindings := []struct {
		key string
		env string
	}{
		{"bot_token", "DISCORD_TOKEN"},
		{"guild_id", "DISCORD_GUILD_ID"},
		{"application_id", "DISCORD_APPLICATION_ID"},
		{"global_commands", "DISCORD_GLOBAL"},
		{"ephemeral_replies", "DISCORD_HIDDEN"},
		{"notification_channel", "DISCORD_NAME_CHANNEL"},
		{"honeycomb_api_key", "HONEYCOMB_API_KEY"},
		{"honeycomb_dataset", "HONEYCOMB_DATASET"},
		{"otlp_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT"},
		{"trace_exporter", "OTEL_TRACES_EXPORTER"},
		{"service_name", "OTEL_SERVICE_NAME"},
		{"log_dir", "RENAMEBOT_LOG_DIR"},
		{"log_level", "RENAMEBOT_LOG_LEVEL"},
	}

	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return fmt.Errorf("error binding %s environment variable: %w", binding.key, err)
		}
	}
	return nil
}

// validateConfig validates that all required configuration fields are present
func validateConfig(cfg *Config) error {
	if cfg.GetBotToken() == "" {
		return fmt.Errorf("bot_token is required (set DISCORD_TOKEN environment variable)")
	}

	if id := cfg.GetGuildID(); id != "" {
		if _, err := snowflake.Parse(id); err != nil {
			return fmt.Errorf("guild_id %q is not a valid Discord ID: %w", id, err)
		}
	}

	if id := cfg.GetApplicationID(); id != "" {
		if _, err := snowflake.Parse(id); err != nil {
			return fmt.Errorf("application_id %q is not a valid Discord ID: %w", id, err)
		}
	}

	if cfg.GetHoneycombAPIKey() == "" {
		cfg.Logger.Warn("honeycomb_api_key is not set, traces will not be exported (set HONEYCOMB_API_KEY)")
	}

	return nil
}

// flag reads a presence-style switch: any value other than a false-y boolean turns it on.
func (c *Config) flag(key string) bool {
	if !c.v.IsSet(key) {
		return false
	}
	raw := strings.TrimSpace(c.v.GetString(key))
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return true
}
