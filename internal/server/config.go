package server

import "os"

// Config holds server configuration
type Config struct {
	Port      string
	DataDir   string // sqlite location
	RedisAddr string
	RedisPass string
	JWTSecret string // signs participant tokens
	AppEnv    string // "development" enables verbose error bodies
}

// LoadConfig reads server configuration from the environment
func LoadConfig() Config {
	cfg := Config{
		Port:      envOr("PORT", "3000"),
		DataDir:   envOr("DATA_DIR", "data"),
		RedisAddr: envOr("REDIS_ADDR", "localhost:6379"),
		RedisPass: os.Getenv("REDIS_PASSWORD"),
		JWTSecret: envOr("JWT_SECRET", "dev-secret-change-me"),
		AppEnv:    envOr("APP_ENV", "development"),
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
