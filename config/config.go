package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Env      string
	Port     string
	Database DatabaseConfig
	Render   RenderConfig
	Proxy    ProxyConfig
	Email    EmailConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Log      LogConfig
}

// DatabaseConfig holds the catalogue store connection settings
type DatabaseConfig struct {
	URL      string // DATABASE_URL, takes precedence over the individual fields
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RenderConfig holds catalogue rendering settings
type RenderConfig struct {
	Backend           string        // native or chrome
	ChromePath        string        // Optional, auto-detected when empty
	ProxyBaseURL      string        // Base URL of the image proxy; empty runs one in-process on loopback
	AssetBaseURL      string        // Joined with relative image references
	FetchConcurrency  int           // In-flight image fetches per document
	ImageFetchTimeout time.Duration // Per-item fetch timeout
	GenerationTimeout time.Duration // Whole-document timeout, 0 disables
	Brand             string
	Subtitle          string
}

// ProxyConfig holds image proxy settings
type ProxyConfig struct {
	AllowedHosts    []string // Empty allows any host
	CacheDir        string
	CacheTTL        time.Duration
	CredentialsPath string // GOOGLE_APPLICATION_CREDENTIALS, enables Drive downloads
	UpstreamTimeout time.Duration
}

// EmailConfig holds SMTP and email worker settings
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	From         string
	Workers      int
	QueueSize    int
}

// StorageConfig holds S3-compatible storage used for download links
type StorageConfig struct {
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	UsePathStyle      bool
	PresignExpiration time.Duration
}

// RedisConfig holds the optional Redis image cache settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// LoadDotEnv loads a .env file outside production.
// Values from the file override the process environment.
func LoadDotEnv(env string) error {
	if env == "production" {
		return nil
	}
	return godotenv.Overload(".env")
}

// Load reads configuration from an optional config.yaml and the environment.
// Environment variables take precedence (e.g. RENDER_BACKEND, SMTP_HOST).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Env:  v.GetString("env"),
		Port: strings.TrimPrefix(v.GetString("port"), ":"),
		Database: DatabaseConfig{
			URL:      v.GetString("database.url"),
			Host:     v.GetString("db.host"),
			Port:     v.GetString("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			Name:     v.GetString("db.name"),
			SSLMode:  v.GetString("db.sslmode"),
		},
		Render: RenderConfig{
			Backend:           strings.ToLower(v.GetString("render.backend")),
			ChromePath:        v.GetString("chrome.path"),
			ProxyBaseURL:      strings.TrimSuffix(v.GetString("proxy.base.url"), "/"),
			AssetBaseURL:      v.GetString("asset.base.url"),
			FetchConcurrency:  v.GetInt("fetch.concurrency"),
			ImageFetchTimeout: v.GetDuration("image.fetch.timeout"),
			GenerationTimeout: v.GetDuration("generation.timeout"),
			Brand:             v.GetString("catalogue.brand"),
			Subtitle:          v.GetString("catalogue.subtitle"),
		},
		Proxy: ProxyConfig{
			AllowedHosts:    splitList(v.GetString("proxy.allowed.hosts")),
			CacheDir:        v.GetString("proxy.cache.dir"),
			CacheTTL:        v.GetDuration("proxy.cache.ttl"),
			CredentialsPath: v.GetString("google.application.credentials"),
			UpstreamTimeout: v.GetDuration("proxy.upstream.timeout"),
		},
		Email: EmailConfig{
			SMTPHost:     v.GetString("smtp.host"),
			SMTPPort:     v.GetInt("smtp.port"),
			SMTPUser:     v.GetString("smtp.user"),
			SMTPPassword: v.GetString("smtp.password"),
			From:         v.GetString("smtp.from"),
			Workers:      v.GetInt("email.workers"),
			QueueSize:    v.GetInt("email.queue.size"),
		},
		Storage: StorageConfig{
			Endpoint:          v.GetString("s3.endpoint"),
			Region:            v.GetString("s3.region"),
			Bucket:            v.GetString("s3.bucket"),
			AccessKey:         v.GetString("s3.access.key"),
			SecretKey:         v.GetString("s3.secret.key"),
			UsePathStyle:      v.GetBool("s3.use.path.style"),
			PresignExpiration: v.GetDuration("s3.presign.expiration"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("port", "8080")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("render.backend", "native")
	v.SetDefault("fetch.concurrency", 6)
	v.SetDefault("image.fetch.timeout", 5*time.Second)
	v.SetDefault("generation.timeout", 2*time.Minute)
	v.SetDefault("catalogue.brand", "BLOUDAN BANGLES")
	v.SetDefault("catalogue.subtitle", "Product Catalogue")
	v.SetDefault("proxy.cache.dir", "cache/images")
	v.SetDefault("proxy.cache.ttl", 24*time.Hour)
	v.SetDefault("proxy.upstream.timeout", 10*time.Second)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("email.workers", 2)
	v.SetDefault("email.queue.size", 32)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.presign.expiration", 15*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
}

func (c *Config) validate() error {
	if c.Render.Backend != "native" && c.Render.Backend != "chrome" {
		return fmt.Errorf("invalid RENDER_BACKEND %q (valid: native, chrome)", c.Render.Backend)
	}
	if c.Render.FetchConcurrency < 1 {
		c.Render.FetchConcurrency = 1
	}
	if c.Render.FetchConcurrency > 8 {
		c.Render.FetchConcurrency = 8
	}
	if c.Render.ImageFetchTimeout <= 0 {
		return fmt.Errorf("IMAGE_FETCH_TIMEOUT must be positive")
	}
	if c.Email.Workers < 1 {
		c.Email.Workers = 1
	}
	if c.Email.QueueSize < 1 {
		c.Email.QueueSize = 1
	}
	return nil
}

// DSN returns the catalogue store connection string.
// Returns an empty string when no database is configured.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return ""
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// SMTPEnabled reports whether an SMTP relay is configured
func (e EmailConfig) SMTPEnabled() bool {
	return e.SMTPHost != "" && e.From != ""
}

// Enabled reports whether download-link storage is configured
func (s StorageConfig) Enabled() bool {
	return s.Bucket != "" && s.AccessKey != "" && s.SecretKey != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
