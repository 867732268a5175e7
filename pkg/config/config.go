package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port            string
		GRPCPort        string
		Env             string
		ShutdownTimeout time.Duration
		OpenAPISchema   string
	}

	// Database configuration
	Database struct {
		Driver   string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		Path     string
		MaxConns int
		Retries  int
		Timeout  time.Duration
	}

	// JWT configuration
	JWT struct {
		Secret string
		Expiry time.Duration
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Chat relay settings
	Chat struct {
		SendBuffer     int
		MaxMessageSize int64
		WriteWait      time.Duration
		PongWait       time.Duration
		MessageRate    float64
		MessageBurst   int
		HistoryLimit   int
	}

	// Bot reply generator settings
	Bot struct {
		Endpoint    string
		APIKey      string
		AuthScheme  string
		FolderID    string
		Model       string
		Temperature float64
		MaxTokens   int
		Timeout     time.Duration
		Workers     int
		QueueSize   int
	}

	// Redis pub/sub for multi-process room fan-out
	Redis struct {
		Enabled  bool
		Addr     string
		Password string
		DB       int
	}

	// Observability settings
	Observability struct {
		ServiceName    string
		TracingEnabled bool
		HealthInterval time.Duration
	}

	// Vault secret source; env vars are used when disabled
	Vault struct {
		Enabled   bool
		Addr      string
		Token     string
		Namespace string
		Mount     string
		Path      string
	}

	// Participant lookup cache
	Cache struct {
		TTL         time.Duration
		MaxSize     int
		PurgeWindow time.Duration
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables.
// Only the first call reads the environment.
func New() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		instance = Load()
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	return New()
}

// Load reads a fresh Config from the environment without touching the singleton
func Load() *Config {
	cfg := &Config{}

	cfg.Server.Port = getEnvString("PORT", "8081")
	cfg.Server.GRPCPort = getEnvString("GRPC_PORT", "9094")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	cfg.Server.OpenAPISchema = getEnvString("OPENAPI_SCHEMA_PATH", "")

	cfg.Database.Driver = getEnvString("DB_DRIVER", "postgres")
	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "radiance")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.Path = getEnvString("DB_PATH", "radiance.db")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.Retries = getEnvInt("DB_CONNECT_RETRIES", 5)
	cfg.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

	cfg.JWT.Secret = getEnvString("JWT_SECRET", "")
	cfg.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

	cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", 5)
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})

	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	cfg.Chat.SendBuffer = getEnvInt("CHAT_SEND_BUFFER", 256)
	cfg.Chat.MaxMessageSize = getEnvInt64("CHAT_MAX_MESSAGE_SIZE", 64<<10)
	cfg.Chat.WriteWait = getEnvDuration("CHAT_WRITE_WAIT", 10*time.Second)
	cfg.Chat.PongWait = getEnvDuration("CHAT_PONG_WAIT", 60*time.Second)
	cfg.Chat.MessageRate = getEnvFloat("CHAT_MESSAGE_RATE", 5)
	cfg.Chat.MessageBurst = getEnvInt("CHAT_MESSAGE_BURST", 10)
	cfg.Chat.HistoryLimit = getEnvInt("CHAT_HISTORY_LIMIT", 200)

	cfg.Bot.Endpoint = getEnvString("YAGPT_URL", "https://llm.api.cloud.yandex.net/foundationModels/v1/completion")
	cfg.Bot.APIKey = getEnvString("YAGPT_API_KEY", "")
	cfg.Bot.AuthScheme = getEnvString("YAGPT_AUTH_SCHEME", "Api-Key")
	cfg.Bot.FolderID = getEnvString("YAGPT_FOLDER_ID", "")
	cfg.Bot.Model = getEnvString("YAGPT_MODEL", "yandexgpt/latest")
	cfg.Bot.Temperature = getEnvFloat("YAGPT_TEMPERATURE", 0.3)
	cfg.Bot.MaxTokens = getEnvInt("YAGPT_MAX_TOKENS", 100)
	cfg.Bot.Timeout = getEnvDuration("BOT_TIMEOUT", 30*time.Second)
	cfg.Bot.Workers = getEnvInt("BOT_WORKERS", 8)
	cfg.Bot.QueueSize = getEnvInt("BOT_QUEUE_SIZE", 128)

	cfg.Redis.Enabled = getEnvBool("REDIS_ENABLED", false)
	cfg.Redis.Addr = getEnvString("REDIS_URL", "localhost:6379")
	cfg.Redis.Password = getEnvString("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Observability.ServiceName = getEnvString("SERVICE_NAME", "radiance-chat")
	cfg.Observability.TracingEnabled = getEnvBool("TRACING_ENABLED", false)
	cfg.Observability.HealthInterval = getEnvDuration("HEALTH_CHECK_INTERVAL", 30*time.Second)

	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	cfg.Vault.Addr = getEnvString("VAULT_ADDR", "")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.Namespace = getEnvString("VAULT_NAMESPACE", "")
	cfg.Vault.Mount = getEnvString("VAULT_MOUNT", "secret")
	cfg.Vault.Path = getEnvString("VAULT_SECRETS_PATH", "radiance")

	cfg.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
	cfg.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 1000)
	cfg.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)

	return cfg
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
