package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/wekeepgrowing/order-payments/pkg/logger"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Log      logger.Config  `yaml:"log"`
	JWT      JWTConfig      `yaml:"jwt"`
	Redis    RedisConfig    `yaml:"redis"`
	Settings SettingsConfig `yaml:"settings"`
	Payments PaymentsConfig `yaml:"payments"`
}

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

type RedisConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Addr          string        `yaml:"addr" validate:"required_if=Enabled true"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	EventsChannel string        `yaml:"events_channel"`
	DedupTTL      time.Duration `yaml:"dedup_ttl"`
}

// SettingsConfig points at the runtime settings file (provider toggles).
type SettingsConfig struct {
	Path      string `yaml:"path"`
	Watch     bool   `yaml:"watch"`
	EnvPrefix string `yaml:"env_prefix"`
}

// LoadConfig reads CONFIG_PATH (default ./configs/payment.yaml). A .env file
// next to the working directory is loaded first and ${VAR} placeholders in
// the YAML are expanded from the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/payment.yaml"
	}
	return LoadFile(configPath)
}

// LoadFile parses, defaults and validates one YAML config file.
func LoadFile(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "order-payments"
	}
	if c.Server.HTTP.Port == 0 {
		c.Server.HTTP.Port = 8080
	}
	if c.Server.GRPC.Port == 0 {
		c.Server.GRPC.Port = 9090
	}
	if c.Redis.EventsChannel == "" {
		c.Redis.EventsChannel = "payments.events"
	}
	if c.Redis.DedupTTL == 0 {
		c.Redis.DedupTTL = 72 * time.Hour
	}
	if c.Settings.EnvPrefix == "" {
		c.Settings.EnvPrefix = "ORDERPAY"
	}
	c.Payments.applyDefaults()
}
