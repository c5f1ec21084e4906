// Package config loads the bot's settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // Asia/Yangon must resolve on minimal images
)

// Config holds all application configuration.
type Config struct {
	Port        string
	Environment string

	UseMemoryStore bool
	Database       DatabaseConfig

	Twilio TwilioConfig
	AI     AIConfig

	// Conversation engine
	SessionTTL        time.Duration
	SweepInterval     time.Duration
	StoreTimeout      time.Duration
	MessageTimeout    time.Duration
	SpeedTestTimeout  time.Duration
	Workers           int
	QueueSize         int
	MaxVersionRetries int
	Timezone          *time.Location

	// Operator API
	JWTSecret string
	JWTTTL    time.Duration

	// Webhook
	DisableWebhookValidation bool
	PublicURL                string
}

// DatabaseConfig describes the postgres connection. URL wins when set.
type DatabaseConfig struct {
	URL                    string
	User                   string
	Password               string
	Name                   string
	Host                   string
	Port                   string
	InstanceConnectionName string
}

// TwilioConfig holds the WhatsApp sender credentials.
type TwilioConfig struct {
	AccountSID   string
	AuthToken    string
	WhatsAppFrom string
}

// Configured reports whether outbound WhatsApp can be used.
func (t TwilioConfig) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.WhatsAppFrom != ""
}

// AIConfig configures the OpenAI-compatible fallback responder.
type AIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	MaxTokens int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	tzName := getEnv("TIMEZONE", "Asia/Yangon")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tzName, err)
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "production"),
		UseMemoryStore: getEnvBool("USE_MEMORY_STORE", false),
		Database: DatabaseConfig{
			URL:                    getEnv("DATABASE_URL", ""),
			User:                   getEnv("DB_USER", "postgres"),
			Password:               getEnv("DB_PASS", ""),
			Name:                   getEnv("DB_NAME", "ispbot"),
			Host:                   getEnv("DB_HOST", "localhost"),
			Port:                   getEnv("DB_PORT", "5432"),
			InstanceConnectionName: getEnv("INSTANCE_CONNECTION_NAME", ""),
		},
		Twilio: TwilioConfig{
			AccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
			WhatsAppFrom: getEnv("TWILIO_WHATSAPP_FROM", ""),
		},
		AI: AIConfig{
			APIKey:    getEnv("AI_API_KEY", getEnv("GEMINI_API_KEY", "")),
			BaseURL:   getEnv("AI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
			Model:     getEnv("AI_MODEL", "gemini-2.0-flash"),
			Timeout:   getEnvDuration("AI_TIMEOUT", 15*time.Second),
			MaxTokens: getEnvInt("AI_MAX_TOKENS", 400),
		},
		SessionTTL:               getEnvDuration("SESSION_TTL", 24*time.Hour),
		SweepInterval:            getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		StoreTimeout:             getEnvDuration("STORE_TIMEOUT", 5*time.Second),
		MessageTimeout:           getEnvDuration("MESSAGE_TIMEOUT", 90*time.Second),
		SpeedTestTimeout:         getEnvDuration("SPEEDTEST_TIMEOUT", 60*time.Second),
		Workers:                  getEnvInt("WORKERS", 32),
		QueueSize:                getEnvInt("QUEUE_SIZE", 512),
		MaxVersionRetries:        getEnvInt("MAX_VERSION_RETRIES", 3),
		Timezone:                 loc,
		JWTSecret:                getEnv("JWT_SECRET", ""),
		JWTTTL:                   getEnvDuration("JWT_TTL", 8*time.Hour),
		DisableWebhookValidation: getEnvBool("DISABLE_WEBHOOK_VALIDATION", false),
		PublicURL:                strings.TrimRight(getEnv("PUBLIC_URL", ""), "/"),
	}

	if cfg.JWTSecret == "" && cfg.IsDevelopment() {
		cfg.JWTSecret = "dev-secret-change-me"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be > 0")
	}
	if c.StoreTimeout <= 0 || c.MessageTimeout <= 0 || c.SpeedTestTimeout <= 0 || c.AI.Timeout <= 0 {
		return fmt.Errorf("timeouts must be > 0")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("WORKERS must be > 0")
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("QUEUE_SIZE must be >= 0")
	}
	if c.MaxVersionRetries <= 0 {
		return fmt.Errorf("MAX_VERSION_RETRIES must be > 0")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET cannot be empty outside development")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	if d.InstanceConnectionName != "" {
		// Cloud Run with Cloud SQL: connect via Unix socket
		return fmt.Sprintf("host=/cloudsql/%s user=%s password=%s dbname=%s sslmode=disable",
			d.InstanceConnectionName, d.User, d.Password, d.Name)
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		d.Host, d.User, d.Password, d.Name, d.Port)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
