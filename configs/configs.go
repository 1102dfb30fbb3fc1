package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Engine    EngineConfig
	WebSocket WebSocketConfig
	Auth      AuthConfig
	Features  FeaturesConfig
}

type ServerConfig struct {
	Port            string
	Env             string
	LogLevel        string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver       string
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	AutoMigrate  bool
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Channel  string
}

type EngineConfig struct {
	SweepInterval   time.Duration
	FullSweepEvery  int
	Workers         int
	ExtensionWindow time.Duration
	ExtensionStep   time.Duration
	MaxBidAttempts  int
	RetryBackoff    time.Duration
	LockTimeout     time.Duration
	LockTTL         time.Duration
}

type WebSocketConfig struct {
	PingInterval   time.Duration
	MaxMessageSize int64
	RateLimit      float64
	RateBurst      int
}

type AuthConfig struct {
	SecretKey  string
	CookieName string
}

type FeaturesConfig struct {
	EnableDashboard  bool
	AllowCrossOrigin bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.logLevel", "info")
	v.SetDefault("server.shutdownTimeout", "10s")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "auction")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.autoMigrate", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "auction:events")

	v.SetDefault("engine.sweepInterval", "5s")
	v.SetDefault("engine.fullSweepEvery", 6)
	v.SetDefault("engine.workers", 8)
	v.SetDefault("engine.extensionWindow", "60s")
	v.SetDefault("engine.extensionStep", "15s")
	v.SetDefault("engine.maxBidAttempts", 3)
	v.SetDefault("engine.retryBackoff", "50ms")
	v.SetDefault("engine.lockTimeout", "5s")
	v.SetDefault("engine.lockTTL", "10s")

	v.SetDefault("websocket.pingInterval", "54s")
	v.SetDefault("websocket.maxMessageSize", 4096)
	v.SetDefault("websocket.rateLimit", 1)
	v.SetDefault("websocket.rateBurst", 3)

	v.SetDefault("auth.secretKey", "")
	v.SetDefault("auth.cookieName", "authjs.session-token")

	v.SetDefault("features.enableDashboard", false)
	v.SetDefault("features.allowCrossOrigin", true)
}

func LoadConfig() (*Config, error) {
	return Load("./configs")
}

// Load reads config.yaml and an optional .env from dir. Environment
// variables override file values (engine.lockTimeout -> ENGINE_LOCKTIMEOUT)
// and ${VAR} references inside values are expanded.
func Load(dir string) (*Config, error) {
	// Load .env file
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil {
		log.Info("No .env file found")
	}

	v := viper.New()
	v.SetConfigName("config") // Name of the config file (without extension)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.AutomaticEnv()

	// Allow dots in environment variables to map to nested keys
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		log.Warn("No config.yaml found, using defaults", "dir", dir)
	}

	substituteEnvVarsInConfig(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate reports every problem at once rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port == "" {
		errs = append(errs, "server.port is required")
	}
	if _, err := log.ParseLevel(c.Server.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("server.logLevel %q is not a valid level", c.Server.LogLevel))
	}
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			errs = append(errs, "database.host and database.name are required for postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be postgres or memory", c.Database.Driver))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis.addr is required when redis is enabled")
	}
	if c.Engine.SweepInterval <= 0 {
		errs = append(errs, "engine.sweepInterval must be positive")
	}
	if c.Engine.FullSweepEvery < 1 {
		errs = append(errs, "engine.fullSweepEvery must be at least 1")
	}
	if c.Engine.Workers < 1 {
		errs = append(errs, "engine.workers must be at least 1")
	}
	if c.Engine.ExtensionWindow < 0 || c.Engine.ExtensionStep < 0 {
		errs = append(errs, "engine extension window and step must not be negative")
	}
	if c.Engine.MaxBidAttempts < 1 {
		errs = append(errs, "engine.maxBidAttempts must be at least 1")
	}
	if c.Engine.LockTimeout <= 0 || c.Engine.LockTTL <= 0 {
		errs = append(errs, "engine.lockTimeout and engine.lockTTL must be positive")
	}
	if c.WebSocket.RateLimit <= 0 || c.WebSocket.RateBurst < 1 {
		errs = append(errs, "websocket.rateLimit and websocket.rateBurst must be positive")
	}
	if c.Server.Env == "production" && c.Auth.SecretKey == "" {
		errs = append(errs, "auth.secretKey is required in production")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Helper function to manually replace environment variables in config file values
func substituteEnvVarsInConfig(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		value := v.GetString(key)

		// Check if the value contains environment variable syntax (e.g., ${PORT})
		if strings.Contains(value, "${") {
			v.Set(key, os.ExpandEnv(value))
		}
	}
}
