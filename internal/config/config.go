package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port           string
	MongoURI       string
	MongoDB        string
	PostgresDSN    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	CloudinaryURL  string
	CloudinaryDir  string
	KafkaBroker    string
	KafkaTopic     string
	JWTSecret      string
	AllowedOrigins []string
	CookieSecure   bool
}

// Load reads .env when present, then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env: %v", err)
	}

	cfg := &Config{
		Port:           getenv("PORT", "3000"),
		MongoURI:       getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:        getenv("MONGO_DB", "estate"),
		PostgresDSN:    getenv("POSTGRES_DSN", ""),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getenv("REDIS_PASSWORD", ""),
		RedisDB:        getenvInt("REDIS_DB", 0),
		MinioEndpoint:  getenv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "estate-uploads"),
		MinioUseSSL:    getenv("MINIO_USE_SSL", "false") == "true",
		CloudinaryURL:  getenv("CLOUDINARY_URL", ""),
		CloudinaryDir:  getenv("CLOUDINARY_FOLDER", "estate"),
		KafkaBroker:    getenv("KAFKA_BROKER", ""),
		KafkaTopic:     getenv("KAFKA_TOPIC", "estate-events"),
		JWTSecret:      getenv("JWT_SECRET", ""),
		AllowedOrigins: splitList(getenv("ALLOWED_ORIGINS", "http://localhost:5173")),
		CookieSecure:   getenv("COOKIE_SECURE", "false") == "true",
	}
	if cfg.JWTSecret == "" {
		log.Fatal("config: JWT_SECRET is required")
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getenv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
