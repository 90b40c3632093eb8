package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         string   `yaml:"port"`
		AllowOrigins []string `yaml:"allow_origins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	RabbitMQ struct {
		URI string `yaml:"uri"`
	} `yaml:"rabbitmq"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Oracle struct {
		Provider   string `yaml:"provider"`
		BaseURL    string `yaml:"base_url"`
		APIKey     string `yaml:"api_key"`
		Model      string `yaml:"model"`
		Timeout    string `yaml:"timeout"`
		MaxRetries int    `yaml:"max_retries"`
	} `yaml:"oracle"`
	Auth struct {
		JWTSecret      string `yaml:"jwt_secret"`
		TokenTTL       string `yaml:"token_ttl"`
		DefaultCredits int    `yaml:"default_credits"`
	} `yaml:"auth"`
}

func defaults() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Mongo.Database = "edurumble"
	cfg.Quiz.TTL = "10m"
	cfg.Oracle.Provider = "gemini"
	cfg.Oracle.Timeout = "60s"
	cfg.Oracle.MaxRetries = 2
	cfg.Auth.TokenTTL = "168h"
	cfg.Auth.DefaultCredits = 30
	return cfg
}

// Load reads YAML config from path, then applies environment overrides.
// A .env file in the working directory is loaded first; a missing config file is not an error.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Mongo.URI, "MONGO_URI")
	setString(&cfg.Mongo.Database, "MONGO_DATABASE")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Postgres.URL, "POSTGRES_URL")
	setString(&cfg.RabbitMQ.URI, "RABBITMQ_URI")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Oracle.APIKey, "API_KEY")
	setString(&cfg.Oracle.Provider, "ORACLE_PROVIDER")
	setString(&cfg.Oracle.BaseURL, "ORACLE_BASE_URL")
	setString(&cfg.Oracle.Model, "ORACLE_MODEL")
	if raw := os.Getenv("DEFAULT_CREDITS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			cfg.Auth.DefaultCredits = n
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
