package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int `yaml:"port"`
		ShutdownSeconds int `yaml:"shutdownSeconds"`
	} `yaml:"server"`

	Log struct {
		Mode  string `yaml:"mode"`
		Level string `yaml:"level"`
	} `yaml:"log"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres | memory
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Redis struct {
		Enabled    bool   `yaml:"enabled"`
		Addr       string `yaml:"addr"`
		Password   string `yaml:"password"`
		DB         int    `yaml:"db"`
		TTLSeconds int    `yaml:"ttlSeconds"`
	} `yaml:"redis"`

	AI struct {
		Provider    string `yaml:"provider"` // openai | gemini
		Model       string `yaml:"model"`
		APIKey      string `yaml:"apiKey"`
		MaxTokens   int    `yaml:"maxTokens"`
		TimeoutSecs int    `yaml:"timeoutSeconds"`
	} `yaml:"ai"`

	Panel struct {
		BatchSize         int    `yaml:"batchSize"`
		BatchDelayMs      int    `yaml:"batchDelayMs"` // negative disables the pause
		SamplingThreshold int    `yaml:"samplingThreshold"`
		ResponseTextCap   int    `yaml:"responseTextCap"`
		Themes            string `yaml:"themes"` // remote | local
		MaxVariants       int    `yaml:"maxVariants"`
	} `yaml:"panel"`

	Progress struct {
		PollIntervalMs int `yaml:"pollIntervalMs"`
	} `yaml:"progress"`

	Auth struct {
		// project -> api key. Empty map disables auth.
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`

	RateLimit struct {
		Capacity        int     `yaml:"capacity"`
		RefillPerSecond float64 `yaml:"refillPerSecond"`
	} `yaml:"rateLimit"`
}

// Load baca .env (kalau ada) lalu config.yaml, env override, defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML bytes and applies environment overrides and defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.AI.Provider, "AI_PROVIDER")
	switch strings.ToLower(c.AI.Provider) {
	case "gemini":
		setString(&c.AI.APIKey, "GEMINI_API_KEY")
	default:
		setString(&c.AI.APIKey, "OPENAI_API_KEY")
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownSeconds <= 0 {
		c.Server.ShutdownSeconds = 15
	}
	if c.Log.Mode == "" {
		c.Log.Mode = "development"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "memory"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Redis.TTLSeconds <= 0 {
		c.Redis.TTLSeconds = 86400
	}
	if c.AI.Provider == "" {
		c.AI.Provider = "openai"
	}
	if c.AI.Model == "" {
		if c.AI.Provider == "gemini" {
			c.AI.Model = "gemini-2.5-flash"
		} else {
			c.AI.Model = "gpt-4o-mini"
		}
	}
	if c.AI.MaxTokens <= 0 {
		c.AI.MaxTokens = 2048
	}
	if c.AI.TimeoutSecs <= 0 {
		c.AI.TimeoutSecs = 90
	}
	if c.Panel.BatchSize <= 0 {
		c.Panel.BatchSize = 3
	}
	if c.Panel.BatchDelayMs == 0 {
		c.Panel.BatchDelayMs = 1000
	}
	if c.Panel.SamplingThreshold <= 0 {
		c.Panel.SamplingThreshold = 40
	}
	if c.Panel.ResponseTextCap <= 0 {
		c.Panel.ResponseTextCap = 500
	}
	if c.Panel.Themes == "" {
		c.Panel.Themes = "remote"
	}
	if c.Panel.MaxVariants <= 0 {
		c.Panel.MaxVariants = 100
	}
	if c.Progress.PollIntervalMs <= 0 {
		c.Progress.PollIntervalMs = 1000
	}
	if c.RateLimit.Capacity <= 0 {
		c.RateLimit.Capacity = 60
	}
	if c.RateLimit.RefillPerSecond <= 0 {
		c.RateLimit.RefillPerSecond = 1
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	switch c.AI.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("config: unknown ai provider %q", c.AI.Provider)
	}
	switch c.Panel.Themes {
	case "remote", "local":
	default:
		return fmt.Errorf("config: panel.themes must be remote or local, got %q", c.Panel.Themes)
	}
	return nil
}

func (c *Config) BatchDelay() time.Duration {
	return time.Duration(c.Panel.BatchDelayMs) * time.Millisecond
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Progress.PollIntervalMs) * time.Millisecond
}

func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.Redis.TTLSeconds) * time.Second
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
