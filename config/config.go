package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds process-level settings sourced from the environment.
type Config struct {
	ServerPort    string
	DBDriver      string
	DatabaseURL   string
	LogLevel      string
	PlatformsFile string
}

// Load reads .env if present and resolves the environment config.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Printf("no .env file loaded: %v", err)
	}

	return &Config{
		ServerPort:    getEnv("SERVER_PORT", ":8080"),
		DBDriver:      getEnv("DB_DRIVER", "postgres"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PlatformsFile: getEnv("PLATFORMS_CONFIG", "platforms.yaml"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
