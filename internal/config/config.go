package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql or postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	OpenAI struct {
		APIKey            string `yaml:"apiKey"`
		Model             string `yaml:"model"`
		RequestsPerMinute int    `yaml:"requestsPerMinute"`
	} `yaml:"openai"`

	Pipeline struct {
		Workers            int    `yaml:"workers"`
		TaskTimeoutSeconds int    `yaml:"taskTimeoutSeconds"`
		Top                int    `yaml:"top"`
		Region             string `yaml:"region"`
		Mode               string `yaml:"mode"` // movers or watchlist
		WatchlistPath      string `yaml:"watchlistPath"`
	} `yaml:"pipeline"`

	Cache struct {
		Dir               string `yaml:"dir"`
		TTLSeconds        int    `yaml:"ttlSeconds"`
		MaxPerHost        int    `yaml:"maxPerHost"`
		RequestTimeoutSec int    `yaml:"requestTimeoutSeconds"`
	} `yaml:"cache"`

	Review struct {
		ConfidenceThreshold float64 `yaml:"confidenceThreshold"`
		PctChangeThreshold  float64 `yaml:"pctChangeThreshold"`
		RetryBelow          float64 `yaml:"retryBelow"`
	} `yaml:"review"`
}

// Load baca file config.yaml, lalu timpa dengan env vars kalau ada.
// A missing config file is fine: semua bisa dari env.
func Load(path string) (*Config, error) {
	godotenv.Load()

	var cfg Config
	cfg.applyDefaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	c.Server.Port = 8080
	c.Database.Driver = "mysql"
	c.OpenAI.Model = "gpt-4o-mini"
	c.OpenAI.RequestsPerMinute = 60
	c.Pipeline.Workers = 5
	c.Pipeline.TaskTimeoutSeconds = 90
	c.Pipeline.Top = 25
	c.Pipeline.Region = "us"
	c.Pipeline.Mode = "movers"
	c.Cache.Dir = ".cache/http"
	c.Cache.TTLSeconds = 1800
	c.Cache.MaxPerHost = 5
	c.Cache.RequestTimeoutSec = 20
	c.Review.ConfidenceThreshold = 0.75
	c.Review.PctChangeThreshold = 15
	c.Review.RetryBelow = 0.35
}

func (c *Config) applyEnv() {
	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.Host, "DB_HOST")
	setInt(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")

	setString(&c.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Minio.BucketName, "MINIO_BUCKET")

	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.Model, "OPENAI_MODEL")

	setInt(&c.Server.Port, "PORT")
	setInt(&c.Pipeline.Workers, "PIPELINE_WORKERS")
	setInt(&c.Pipeline.Top, "PIPELINE_TOP")
	setString(&c.Pipeline.Region, "PIPELINE_REGION")
	setString(&c.Pipeline.Mode, "PIPELINE_MODE")
	setString(&c.Pipeline.WatchlistPath, "PIPELINE_WATCHLIST")
	setString(&c.Cache.Dir, "CACHE_DIR")
	setInt(&c.Cache.TTLSeconds, "CACHE_TTL_SECONDS")
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

func (c *Config) TaskTimeout() time.Duration {
	return time.Duration(c.Pipeline.TaskTimeoutSeconds) * time.Second
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

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		sslMode,
	)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
