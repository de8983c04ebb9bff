package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	CRM         CRMConfig         `yaml:"crm"`
	Snowflake   SnowflakeConfig   `yaml:"snowflake"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Bedrock     BedrockConfig     `yaml:"bedrock"`
	Storage     StorageConfig     `yaml:"storage"`
	Scoring     ScoringConfig     `yaml:"scoring"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CRMConfig holds the upstream CRM API connection settings.
// The access token is attached as a bearer token on every request.
type CRMConfig struct {
	BaseURL        string `yaml:"base_url"`
	AccessToken    string `yaml:"access_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// Timeout returns the configured CRM request timeout
func (c CRMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SnowflakeConfig holds the conversions warehouse connection settings
type SnowflakeConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Account   string `yaml:"account"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Warehouse string `yaml:"warehouse"`
}

// DatabaseConfig holds PostgreSQL settings for scoring-run history
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// RedisConfig holds enrichment cache settings
type RedisConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLMinutes int    `yaml:"ttl_minutes"`
}

// TTL returns the enrichment cache TTL
func (c RedisConfig) TTL() time.Duration {
	if c.TTLMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.TTLMinutes) * time.Minute
}

// OpenAIConfig holds OpenAI LLM provider settings
type OpenAIConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// BedrockConfig holds AWS Bedrock LLM provider settings
type BedrockConfig struct {
	Enabled bool   `yaml:"enabled"`
	Region  string `yaml:"region"`
	ModelID string `yaml:"model_id"`
}

// StorageConfig holds insight snapshot storage settings
type StorageConfig struct {
	Type       string `yaml:"type"` // "aws" or "local"
	S3Bucket   string `yaml:"s3_bucket"`
	S3Prefix   string `yaml:"s3_prefix"`
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"`
	LocalPath  string `yaml:"local_path"`
}

// ScoringConfig holds scoring engine defaults
type ScoringConfig struct {
	DefaultContactLimit int `yaml:"default_contact_limit"`
}

// ContactLimit returns the default contact fetch limit
func (c ScoringConfig) ContactLimit() int {
	if c.DefaultContactLimit <= 0 {
		return 100
	}
	return c.DefaultContactLimit
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads the YAML config and applies environment overrides.
// Missing config file is not fatal: env-only deployments are supported.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg := defaults()
	if _, err := os.Stat(path); err == nil {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CRM_BASE_URL"); v != "" {
		cfg.CRM.BaseURL = v
	}
	if v := os.Getenv("CRM_ACCESS_TOKEN"); v != "" {
		cfg.CRM.AccessToken = v
	}
	if v := os.Getenv("SNOWFLAKE_ACCOUNT"); v != "" {
		cfg.Snowflake.Account = v
		cfg.Snowflake.Enabled = true
	}
	if v := os.Getenv("SNOWFLAKE_USER"); v != "" {
		cfg.Snowflake.User = v
	}
	if v := os.Getenv("SNOWFLAKE_PASSWORD"); v != "" {
		cfg.Snowflake.Password = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
		cfg.Database.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = v
		cfg.OpenAI.Enabled = true
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.OpenAI.Model = v
	}
	if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" {
		cfg.Bedrock.ModelID = v
		cfg.Bedrock.Enabled = true
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Bedrock.Region = v
		if cfg.Storage.AWSRegion == "" {
			cfg.Storage.AWSRegion = v
		}
	}
	if v := os.Getenv("STORAGE_S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
		cfg.Storage.Type = "aws"
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		CRM: CRMConfig{
			BaseURL:        "https://services.leadconnectorhq.com",
			TimeoutSeconds: 30,
			MaxRetries:     3,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			TTLMinutes: 10,
		},
		Storage: StorageConfig{
			Type:      "local",
			LocalPath: "data/insights",
		},
		Scoring: ScoringConfig{
			DefaultContactLimit: 100,
		},
	}
}
