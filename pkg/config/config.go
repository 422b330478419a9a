// Package config loads the service configuration: ~/.config/gsd/config.yaml, a .env file in
// the working directory, and GSD_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	xdgAppName = "gsd"
	configFile = "config.yaml"
	envPrefix  = "GSD"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	AI      AIConfig      `mapstructure:"ai"`
	Google  GoogleConfig  `mapstructure:"google"`
	Jobs    JobsConfig    `mapstructure:"jobs"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type StorageConfig struct {
	// Driver is sqlite, file or memory.
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// AIConfig points at an OpenAI-compatible completion service. An empty BaseURL disables AI.
type AIConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	VisionModel string        `mapstructure:"vision_model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float64       `mapstructure:"temperature"`
	TopK        int           `mapstructure:"top_k"`
}

type GoogleConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`
	AuthPort        string `mapstructure:"auth_port"`
	TimeZone        string `mapstructure:"time_zone"`
}

type JobsConfig struct {
	SummarySchedule string `mapstructure:"summary_schedule"`
	AIProbeSchedule string `mapstructure:"ai_probe_schedule"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Dir is the per-user configuration directory, ~/.config/gsd.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

// GetConfigPath returns the default config file location.
func GetConfigPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Defaults returns the configuration used when nothing overrides it. Paths live under dir.
func Defaults(dir string) *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           "127.0.0.1:6790",
			AllowedOrigins: []string{"chrome-extension://*", "http://localhost:*", "http://127.0.0.1:*"},
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   filepath.Join(dir, "gsd.db"),
		},
		AI: AIConfig{
			Model:       "llama3.2",
			VisionModel: "llava",
			Timeout:     8 * time.Second,
			Temperature: 0.7,
			TopK:        3,
		},
		Google: GoogleConfig{
			CredentialsFile: filepath.Join(dir, "credentials.json"),
			TokenFile:       filepath.Join(dir, "token.json"),
			AuthPort:        "6789",
		},
		Jobs: JobsConfig{
			SummarySchedule: "0 18 * * *",
			AIProbeSchedule: "@every 10m",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("ai.base_url", d.AI.BaseURL)
	v.SetDefault("ai.api_key", d.AI.APIKey)
	v.SetDefault("ai.model", d.AI.Model)
	v.SetDefault("ai.vision_model", d.AI.VisionModel)
	v.SetDefault("ai.timeout", d.AI.Timeout)
	v.SetDefault("ai.temperature", d.AI.Temperature)
	v.SetDefault("ai.top_k", d.AI.TopK)
	v.SetDefault("google.credentials_file", d.Google.CredentialsFile)
	v.SetDefault("google.token_file", d.Google.TokenFile)
	v.SetDefault("google.auth_port", d.Google.AuthPort)
	v.SetDefault("google.time_zone", d.Google.TimeZone)
	v.SetDefault("jobs.summary_schedule", d.Jobs.SummarySchedule)
	v.SetDefault("jobs.ai_probe_schedule", d.Jobs.AIProbeSchedule)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads the configuration. path may be empty to use the default location; a missing
// file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	explicit := path != ""
	if !explicit {
		path = filepath.Join(dir, configFile)
	}

	v := viper.New()
	setDefaults(v, Defaults(dir))
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 8 * time.Second
	}
	return &cfg, nil
}

// EnsureDir creates the directory holding the given file with owner-only permissions.
func EnsureDir(file string) error {
	if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}
