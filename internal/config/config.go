package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds all runtime settings loaded from the environment.
type Config struct {
	Port        string
	MongoURI    string
	MongoDBName string
	JWTSecret   string
	TokenExpiry time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPSender   string
	SMTPPassword string

	// WSAuthTimeout bounds how long a fresh socket may stay unauthenticated.
	WSAuthTimeout time.Duration

	AllowedOrigin string
}

// LoadConfig reads the .env file (if present) and the process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, relying on environment variables")
	}

	return &Config{
		Port:          getEnv("PORT", "8080"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:   getEnv("MONGO_DB", "conecte"),
		JWTSecret:     getEnv("JWT_SECRET", "dev-secret-change-me"),
		TokenExpiry:   getDuration("TOKEN_EXPIRY", 24*time.Hour),
		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPPort:      getEnv("SMTP_PORT", "587"),
		SMTPSender:    os.Getenv("SMTP_SENDER"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),
		WSAuthTimeout: getDuration("WS_AUTH_TIMEOUT", 10*time.Second),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Warnf("Invalid duration in %s, using default %s", key, fallback)
	}
	return fallback
}
