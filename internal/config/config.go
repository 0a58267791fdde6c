package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "dev-secret-change-me"

type Config struct {
	Port           string
	DatabaseDSN    string
	JWTSecret      string
	Env            string
	LogLevel       string
	TokenTTLHours  int
	SessionCookie  string
	AdminEmail     string
	PublicBaseURL  string
	CORSOrigins    []string
	StorageBackend string
	UploadDir      string
	MaxUploadMB    int
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3PublicURL    string
	RateLimitRPS   int
	RateLimitBurst int
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// getenvInt 解析正整数，非法或非正数时回退到默认值。
func getenvInt(key string, def int) int {
	v, err := strconv.Atoi(getenv(key, ""))
	if err != nil || v <= 0 {
		return def
	}
	return v
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

// Load 先尝试读取 .env（不存在则忽略），再从环境变量组装配置。
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Port:           getenv("APP_PORT", "8080"),
		DatabaseDSN:    getenv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=groupomania port=5432 sslmode=disable TimeZone=UTC"),
		JWTSecret:      getenv("JWT_SECRET", defaultJWTSecret),
		Env:            getenv("APP_ENV", "dev"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		TokenTTLHours:  getenvInt("TOKEN_TTL_HOURS", 24),
		SessionCookie:  getenv("SESSION_COOKIE", "jwt"),
		AdminEmail:     getenv("ADMIN_EMAIL", "admin@admin.admin"),
		PublicBaseURL:  strings.TrimRight(getenv("PUBLIC_BASE_URL", ""), "/"),
		CORSOrigins:    splitList(getenv("CORS_ORIGINS", "")),
		StorageBackend: strings.ToLower(getenv("STORAGE_BACKEND", "disk")),
		UploadDir:      getenv("UPLOAD_DIR", "./uploads"),
		MaxUploadMB:    getenvInt("MAX_UPLOAD_MB", 8),
		S3Bucket:       getenv("S3_BUCKET", ""),
		S3Region:       getenv("S3_REGION", "us-east-1"),
		S3Endpoint:     getenv("S3_ENDPOINT", ""),
		S3AccessKey:    getenv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getenv("S3_SECRET_KEY", ""),
		S3PublicURL:    strings.TrimRight(getenv("S3_PUBLIC_URL", ""), "/"),
		RateLimitRPS:   getenvInt("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getenvInt("RATE_LIMIT_BURST", 40),
	}
}

// Validate 在启动前检查配置，非 dev 环境禁止使用默认密钥。
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("config: APP_PORT is required")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("config: DATABASE_DSN is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if cfg.Env != "dev" && cfg.JWTSecret == defaultJWTSecret {
		return errors.New("config: JWT_SECRET must be changed outside dev")
	}
	switch cfg.StorageBackend {
	case "disk", "":
	case "s3":
		if cfg.S3Bucket == "" {
			return errors.New("config: S3_BUCKET is required for s3 storage")
		}
	default:
		return errors.New("config: unknown STORAGE_BACKEND " + strconv.Quote(cfg.StorageBackend))
	}
	return nil
}
