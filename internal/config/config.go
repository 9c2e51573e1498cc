package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Generation GenerationConfig `mapstructure:"generation"`
	Executor   ExecutorConfig   `mapstructure:"executor"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres
	Path            string        `mapstructure:"path"`   // sqlite file path
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // local, s3

	// Local driver settings.
	Root          string `mapstructure:"root"`
	SigningSecret string `mapstructure:"signing_secret"`
	BaseURL       string `mapstructure:"base_url"`

	// S3 driver settings.
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	Region       string `mapstructure:"region"`
	Bucket       string `mapstructure:"bucket"`
	UseSSL       bool   `mapstructure:"use_ssl"`
	CustomDomain string `mapstructure:"custom_domain"`

	// Shared settings.
	Location  string        `mapstructure:"location"` // key prefix
	Overwrite bool          `mapstructure:"overwrite"`
	URLExpiry time.Duration `mapstructure:"url_expiry"` // signed URL lifetime
}

type QueueConfig struct {
	Driver            string        `mapstructure:"driver"` // memory, redis
	RedisAddr         string        `mapstructure:"redis_addr"`
	RedisDB           int           `mapstructure:"redis_db"`
	RedisPass         string        `mapstructure:"redis_pass"`
	Key               string        `mapstructure:"key"`
	BufferSize        int           `mapstructure:"buffer_size"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
}

type GenerationConfig struct {
	Backend   string        `mapstructure:"backend"` // replicate
	APIToken  string        `mapstructure:"api_token"`
	BaseURL   string        `mapstructure:"base_url"`
	Model     string        `mapstructure:"model"`
	StepCount int           `mapstructure:"step_count"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type ExecutorConfig struct {
	Workers    int           `mapstructure:"workers"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("storage.access_key", "AWS_ACCESS_KEY_ID")
	v.BindEnv("storage.secret_key", "AWS_SECRET_ACCESS_KEY")
	v.BindEnv("storage.region", "AWS_S3_REGION_NAME")
	v.BindEnv("storage.bucket", "AWS_STORAGE_BUCKET_NAME")
	v.BindEnv("storage.signing_secret", "STORAGE_SIGNING_SECRET")
	v.BindEnv("queue.redis_addr", "REDIS_ADDR")
	v.BindEnv("queue.redis_pass", "REDIS_PASSWORD")
	v.BindEnv("generation.api_token", "REPLICATE_API_TOKEN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/getravio.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.root", "./data/media")
	v.SetDefault("storage.base_url", "http://localhost:8080/media")
	v.SetDefault("storage.location", "media")
	v.SetDefault("storage.overwrite", true)
	v.SetDefault("storage.url_expiry", 72*time.Hour)
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("queue.driver", "memory")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.key", "getravio:jobs")
	v.SetDefault("queue.buffer_size", 256)
	v.SetDefault("queue.visibility_timeout", 10*time.Minute)

	v.SetDefault("generation.backend", "replicate")
	v.SetDefault("generation.base_url", "https://api.replicate.com/v1")
	v.SetDefault("generation.step_count", 30)
	v.SetDefault("generation.timeout", 10*time.Minute)

	v.SetDefault("executor.workers", 2)
	v.SetDefault("executor.max_retries", 2)
	v.SetDefault("executor.retry_delay", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
}
