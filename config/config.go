package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	CORS      CORSConfig      `yaml:"cors"`
	Redis     RedisConfig     `yaml:"redis"`
	S3        S3Config        `yaml:"s3"`
}

type ServerConfig struct {
	Port        string `yaml:"port"`
	GinMode     string `yaml:"gin_mode"`
	Environment string `yaml:"environment"`
	StaticDir   string `yaml:"static_dir"`
}

// DatabaseConfig 로컬 SQLite 파일과 선택적 원격 복제본 설정
type DatabaseConfig struct {
	File               string        `yaml:"file"`
	ReplicaURL         string        `yaml:"replica_url"`  // postgres://user@host:5432/db
	ReplicaAuthToken   string        `yaml:"replica_auth_token"`
	ReplicaSyncTimeout time.Duration `yaml:"replica_sync_timeout"`
	ReplicaDebounce    time.Duration `yaml:"replica_debounce"`
}

type ScraperConfig struct {
	SourceURL string        `yaml:"source_url"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

type SchedulerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CronSpec string `yaml:"cron_spec"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host"`
	Port     string        `yaml:"port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type S3Config struct {
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Prefix          string `yaml:"prefix"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load 설정 로드 순서: 기본값 -> CONFIG_FILE(YAML) -> 환경 변수
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := config.loadFile(path); err != nil {
			return nil, err
		}
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default 기본 설정값
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "5000",
			GinMode:     "debug",
			Environment: "development",
			StaticDir:   "static",
		},
		Database: DatabaseConfig{
			File:               "goldtracker.db",
			ReplicaSyncTimeout: 10 * time.Second,
			ReplicaDebounce:    time.Second,
		},
		Scraper: ScraperConfig{
			SourceURL: "https://galeri24.co.id/harga-emas",
			Timeout:   15 * time.Second,
			UserAgent: defaultUserAgent,
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			CronSpec: "0 * * * *",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     "6379",
			CacheTTL: time.Minute,
		},
		S3: S3Config{
			Region: "ap-southeast-3",
			Prefix: "exports",
		},
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.GinMode = getEnv("GIN_MODE", c.Server.GinMode)
	c.Server.Environment = getEnv("ENVIRONMENT", c.Server.Environment)
	c.Server.StaticDir = getEnv("STATIC_DIR", c.Server.StaticDir)

	c.Database.File = getEnv("DATABASE_FILE", c.Database.File)
	c.Database.ReplicaURL = getEnv("REPLICA_DATABASE_URL", c.Database.ReplicaURL)
	c.Database.ReplicaAuthToken = getEnv("REPLICA_AUTH_TOKEN", c.Database.ReplicaAuthToken)
	c.Database.ReplicaSyncTimeout = parseDuration(os.Getenv("REPLICA_SYNC_TIMEOUT"), c.Database.ReplicaSyncTimeout)
	c.Database.ReplicaDebounce = parseDuration(os.Getenv("REPLICA_SYNC_DEBOUNCE"), c.Database.ReplicaDebounce)

	c.Scraper.SourceURL = getEnv("PRICE_SOURCE_URL", c.Scraper.SourceURL)
	c.Scraper.Timeout = parseDuration(os.Getenv("PRICE_FETCH_TIMEOUT"), c.Scraper.Timeout)
	c.Scraper.UserAgent = getEnv("PRICE_USER_AGENT", c.Scraper.UserAgent)

	c.Scheduler.Enabled = parseBool(os.Getenv("SCHEDULER_ENABLED"), c.Scheduler.Enabled)
	c.Scheduler.CronSpec = getEnv("PRICE_CRON", c.Scheduler.CronSpec)

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.CORS.AllowedOrigins = parseSlice(origins)
	}

	c.Redis.Enabled = parseBool(os.Getenv("REDIS_ENABLED"), c.Redis.Enabled)
	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = getEnv("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	c.Redis.CacheTTL = parseDuration(os.Getenv("PRICE_CACHE_TTL"), c.Redis.CacheTTL)

	c.S3.Region = getEnv("AWS_REGION", c.S3.Region)
	c.S3.Bucket = getEnv("AWS_S3_BUCKET", c.S3.Bucket)
	c.S3.AccessKeyID = getEnv("AWS_ACCESS_KEY_ID", c.S3.AccessKeyID)
	c.S3.SecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", c.S3.SecretAccessKey)
	c.S3.Prefix = getEnv("AWS_S3_PREFIX", c.S3.Prefix)
}

// Validate 잘못된 설정값 검사
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.File == "" {
		return fmt.Errorf("database file is required")
	}
	if c.Scraper.SourceURL == "" {
		return fmt.Errorf("price source url is required")
	}
	if c.Scraper.Timeout <= 0 {
		return fmt.Errorf("price fetch timeout must be positive")
	}
	if c.Database.ReplicaSyncTimeout <= 0 {
		return fmt.Errorf("replica sync timeout must be positive")
	}
	if _, err := cron.ParseStandard(c.Scheduler.CronSpec); err != nil {
		return fmt.Errorf("invalid price cron %q: %w", c.Scheduler.CronSpec, err)
	}
	return nil
}

// ReplicationEnabled 원격 복제본 사용 여부
func (c *DatabaseConfig) ReplicationEnabled() bool {
	return c.ReplicaURL != ""
}

// ReplicaDSN 인증 토큰이 있으면 URL의 비밀번호로 넣어서 반환
func (c *DatabaseConfig) ReplicaDSN() string {
	if c.ReplicaAuthToken == "" {
		return c.ReplicaURL
	}
	u, err := url.Parse(c.ReplicaURL)
	if err != nil || u.User == nil {
		return c.ReplicaURL
	}
	u.User = url.UserPassword(u.User.Username(), c.ReplicaAuthToken)
	return u.String()
}

// Addr redis 주소
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseBool(s string, fallback bool) bool {
	if s == "" {
		return fallback
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}

func parseSlice(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
