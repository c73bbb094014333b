package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Session    SessionConfig
	RateLimit  RateLimitConfig
	Currency   CurrencyConfig
	PayPal     PayPalConfig
	Kafka      KafkaConfig
	Migrations string
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

// IsDevelopment reports whether the server runs outside production
func (c ServerConfig) IsDevelopment() bool {
	return c.Env != "production"
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port
func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// JWTConfig verifies tokens issued by the hosted identity service
type JWTConfig struct {
	Secret    string
	AdminRole string
}

type SessionConfig struct {
	Secret     string
	CookieName string
	MaxAge     int // in seconds
	Secure     bool
	CartTTL    time.Duration
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type CurrencyConfig struct {
	Code   string
	Symbol string
}

type PayPalConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Enabled reports whether PayPal capture credentials are configured
func (c PayPalConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("JWT_ADMIN_ROLE", "admin")
	viper.SetDefault("SESSION_COOKIE_NAME", "storefront_session")
	viper.SetDefault("SESSION_MAX_AGE", 86400*30)
	viper.SetDefault("SESSION_SECURE", false)
	viper.SetDefault("CART_TTL", "168h")
	viper.SetDefault("RATE_LIMIT_REQUESTS", 60)
	viper.SetDefault("RATE_LIMIT_WINDOW", "1m")
	viper.SetDefault("CURRENCY_CODE", "GYD")
	viper.SetDefault("CURRENCY_SYMBOL", "GY$")
	viper.SetDefault("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com")
	viper.SetDefault("PAYPAL_TIMEOUT", "15s")
	viper.SetDefault("KAFKA_BROKERS", "")
	viper.SetDefault("KAFKA_ORDERS_TOPIC", "orders.placed")
	viper.SetDefault("MIGRATIONS_DIR", "migrations")

	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Env:            viper.GetString("SERVER_ENV"),
			AllowedOrigins: splitList(viper.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:    viper.GetString("JWT_SECRET"),
			AdminRole: viper.GetString("JWT_ADMIN_ROLE"),
		},
		Session: SessionConfig{
			Secret:     viper.GetString("SESSION_SECRET"),
			CookieName: viper.GetString("SESSION_COOKIE_NAME"),
			MaxAge:     viper.GetInt("SESSION_MAX_AGE"),
			Secure:     viper.GetBool("SESSION_SECURE"),
			CartTTL:    viper.GetDuration("CART_TTL"),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   viper.GetDuration("RATE_LIMIT_WINDOW"),
		},
		Currency: CurrencyConfig{
			Code:   viper.GetString("CURRENCY_CODE"),
			Symbol: viper.GetString("CURRENCY_SYMBOL"),
		},
		PayPal: PayPalConfig{
			BaseURL:      viper.GetString("PAYPAL_BASE_URL"),
			ClientID:     viper.GetString("PAYPAL_CLIENT_ID"),
			ClientSecret: viper.GetString("PAYPAL_CLIENT_SECRET"),
			Timeout:      viper.GetDuration("PAYPAL_TIMEOUT"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(viper.GetString("KAFKA_BROKERS")),
			Topic:   viper.GetString("KAFKA_ORDERS_TOPIC"),
		},
		Migrations: viper.GetString("MIGRATIONS_DIR"),
	}
}

// splitList parses a comma separated env value, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
