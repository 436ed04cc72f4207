package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type Config struct {
	Mode     Mode
	HTTPAddr string
	LogMode  string

	DBDriver string // sqlite|postgres
	DBDSN    string

	AuthHMACSecret string
	AuthTokenTTL   time.Duration
	BcryptCost     int

	// Empty RedisAddr keeps revoked tokens in process memory.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSOrigins []string

	BootstrapTeacherUser     string
	BootstrapTeacherPassword string

	EnrollmentAllowDuplicates bool
	EnableMetrics             bool
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load(files ...string) Config {
	_ = godotenv.Load(files...)
	return FromEnv()
}

func FromEnv() Config {
	mode := Mode(envOr("MODE", string(ModeDev)))
	logMode := envOr("LOG_MODE", "")
	if logMode == "" {
		logMode = string(mode)
	}
	return Config{
		Mode:     mode,
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),
		LogMode:  logMode,

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		AuthHMACSecret: envOr("AUTH_HMAC_SECRET", "dev-secret-change-me"),
		AuthTokenTTL:   envDuration("AUTH_TOKEN_TTL", 8*time.Hour),
		BcryptCost:     envInt("BCRYPT_COST", 12),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:3000"),

		BootstrapTeacherUser:     os.Getenv("BOOTSTRAP_TEACHER_USER"),
		BootstrapTeacherPassword: os.Getenv("BOOTSTRAP_TEACHER_PASSWORD"),

		EnrollmentAllowDuplicates: envBool("ENROLLMENT_ALLOW_DUPLICATES", true),
		EnableMetrics:             envBool("ENABLE_METRICS", true),
	}
}
func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	n, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return n
}
func envDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil || d <= 0 {
		return def
	}
	return d
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
