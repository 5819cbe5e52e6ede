package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 应用配置，来源为环境变量（可由 .env 提供）
type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis配置，关闭时缓存与跨实例广播均不可用
	RedisEnabled       bool
	RedisHost          string
	RedisPort          string
	RedisPassword      string
	RedisDB            int
	RedisEventsChannel string
	CacheTTL           time.Duration

	// MinIO 用于头像存储
	MinioEnabled   bool
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioRegion    string
	MinioPublicURL string

	JWTSecret string
	JWTExpiry time.Duration

	AIProvider string
	AIAPIURL   string
	AIAPIKey   string
	AIModel    string
	AITimeout  time.Duration

	CORSAllowedOrigins []string
	AuthRateLimit      int

	LogLevel      string
	LogFile       string
	LogMaxSize    int
	LogMaxBackups int
	LogMaxAge     int
	LogCompress   bool
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// defaultAIURL 根据提供方返回默认接口地址
func defaultAIURL(provider string) string {
	if provider == "anthropic" {
		return "https://api.anthropic.com"
	}
	return "https://api.openai.com/v1"
}

// Load 读取 .env 与环境变量，已存在的环境变量不会被 .env 覆盖
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables and defaults.")
	}

	provider := strings.ToLower(getEnv("AI_PROVIDER", "openai"))

	return &Config{
		Port: getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", "studysync"),

		RedisEnabled:       getEnvBool("REDIS_ENABLED", false),
		RedisHost:          getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:          getEnv("REDIS_PORT", "6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		RedisEventsChannel: getEnv("REDIS_EVENTS_CHANNEL", "studysync:events"),
		CacheTTL:           getEnvDuration("CACHE_TTL", 5*time.Minute),

		MinioEnabled:   getEnvBool("MINIO_ENABLED", false),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "studysync"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioPublicURL: getEnv("MINIO_PUBLIC_URL", ""),

		JWTSecret: getEnv("JWT_SECRET", "studysync-dev-secret"),
		JWTExpiry: getEnvDuration("JWT_EXPIRY", 30*24*time.Hour),

		AIProvider: provider,
		AIAPIURL:   getEnv("AI_API_URL", defaultAIURL(provider)),
		AIAPIKey:   getEnv("AI_API_KEY", ""),
		AIModel:    getEnv("AI_MODEL", "gpt-4o-mini"),
		AITimeout:  getEnvDuration("AI_TIMEOUT", 30*time.Second),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		AuthRateLimit:      getEnvInt("AUTH_RATE_LIMIT", 20),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSize:    getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAge:     getEnvInt("LOG_MAX_AGE_DAYS", 30),
		LogCompress:   getEnvBool("LOG_COMPRESS", true),
	}
}
