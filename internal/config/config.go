package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultProjectName = "Nimbus Nexus: EC2 Onboarding Portal"

// Config holds the application's configuration.
type Config struct {
	ProjectName string `yaml:"project_name"`
	Server      struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Session struct {
		Secret   string `yaml:"secret"`
		TTLHours int    `yaml:"ttl_hours"`
	} `yaml:"session"`
	Metadata struct {
		Enabled   *bool  `yaml:"enabled"`
		Endpoint  string `yaml:"endpoint"`
		TimeoutMS int    `yaml:"timeout_ms"`
	} `yaml:"metadata"`
	Files struct {
		LimerickPath string `yaml:"limerick_path"`
	} `yaml:"files"`
	Password struct {
		Time      uint32 `yaml:"time"`
		MemoryKiB uint32 `yaml:"memory_kib"`
		Threads   uint8  `yaml:"threads"`
	} `yaml:"password"`
}

// LoadConfig reads configuration from the specified YAML file, applies
// environment overrides and fills defaults. A missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}

	if configPath != "" {
		file, err := os.Open(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to open config file: %w", err)
		default:
			defer file.Close()
			if err := yaml.NewDecoder(file).Decode(config); err != nil {
				return nil, fmt.Errorf("failed to decode config file: %w", err)
			}
		}
	}

	config.Session.Secret = os.ExpandEnv(config.Session.Secret)

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	config.setDefaults()

	return config, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("PORT"); ok {
		c.Server.Port = v
	}
	if v, ok := os.LookupEnv("DATABASE_PATH"); ok {
		c.Database.Path = v
	}
	if v, ok := os.LookupEnv("SESSION_SECRET"); ok {
		c.Session.Secret = v
	}
	if v, ok := os.LookupEnv("LIMERICK_PATH"); ok {
		c.Files.LimerickPath = v
	}
	if v, ok := os.LookupEnv("AWS_METADATA_ENDPOINT"); ok {
		c.Metadata.Endpoint = v
	}
	// Anything but "0" keeps the probe on, same as the legacy deployment flag.
	if v, ok := os.LookupEnv("AWS_METADATA_ENABLED"); ok {
		enabled := v != "0"
		c.Metadata.Enabled = &enabled
	}
	if v, ok := os.LookupEnv("AWS_METADATA_TIMEOUT_MS"); ok {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid AWS_METADATA_TIMEOUT_MS %q: %w", v, err)
		}
		c.Metadata.TimeoutMS = ms
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.ProjectName == "" {
		c.ProjectName = DefaultProjectName
	}
	if c.Server.Port == "" {
		c.Server.Port = "5000"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/database.db"
	}
	if c.Session.Secret == "" {
		c.Session.Secret = "change-me-for-production"
	}
	if c.Session.TTLHours == 0 {
		c.Session.TTLHours = 24
	}
	if c.Metadata.Enabled == nil {
		enabled := true
		c.Metadata.Enabled = &enabled
	}
	if c.Metadata.Endpoint == "" {
		c.Metadata.Endpoint = "http://169.254.169.254"
	}
	if c.Metadata.TimeoutMS == 0 {
		c.Metadata.TimeoutMS = 200
	}
	if c.Files.LimerickPath == "" {
		c.Files.LimerickPath = "./Limerick.txt"
	}
	if c.Password.Time == 0 {
		c.Password.Time = 1
	}
	if c.Password.MemoryKiB == 0 {
		c.Password.MemoryKiB = 64 * 1024
	}
	if c.Password.Threads == 0 {
		c.Password.Threads = 4
	}
}

// MetadataEnabled reports whether the instance metadata probe may touch the network.
func (c *Config) MetadataEnabled() bool {
	return c.Metadata.Enabled != nil && *c.Metadata.Enabled
}

func (c *Config) MetadataTimeout() time.Duration {
	return time.Duration(c.Metadata.TimeoutMS) * time.Millisecond
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLHours) * time.Hour
}
