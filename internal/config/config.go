package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Single authorized admin identity (exact email match)
	AdminEmail     string
	AdminJWTSecret string

	// Cognito auth config (optional, enables Cognito JWT validation)
	CognitoRegion     string
	CognitoUserPoolID string
	CognitoClientID   string

	CORSAllowedOrigins []string
	// TrustedProxies lists proxy addresses or CIDRs allowed to set
	// X-Forwarded-For. Empty means the peer address is the client.
	TrustedProxies []string

	// Document store
	UseMemoryStore      bool
	AppointmentsTable   string
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Change feed
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	ChangeChannel string

	// Audit trail (optional)
	DatabaseURL string

	// Clinic presentation
	ClinicName         string
	ClinicTimezone     string
	DefaultPhoneRegion string

	// Lifecycle
	AutoCompleteEnabled  bool
	AutoCompleteInterval time.Duration

	// Public patient endpoints
	PublicRateLimit float64
	PublicRateBurst int

	// Email ("email myself")
	EmailProvider    string
	EmailFromAddress string
	EmailFromName    string
	EmailReplyTo     string
	SendGridAPIKey   string
	SESConfigSet     string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		AdminEmail:     strings.TrimSpace(getEnv("ADMIN_EMAIL", "")),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		CognitoRegion:     getEnv("COGNITO_REGION", getEnv("AWS_REGION", "us-east-1")),
		CognitoUserPoolID: getEnv("COGNITO_USER_POOL_ID", ""),
		CognitoClientID:   getEnv("COGNITO_CLIENT_ID", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		TrustedProxies:     getEnvAsList("TRUSTED_PROXIES", nil),

		UseMemoryStore:      getEnvAsBool("USE_MEMORY_STORE", false),
		AppointmentsTable:   getEnv("APPOINTMENTS_TABLE", "appointments"),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		ChangeChannel: getEnv("CHANGE_CHANNEL", "appointments:changes"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		ClinicName:         getEnv("CLINIC_NAME", "Clínica Dental"),
		ClinicTimezone:     getEnv("CLINIC_TIMEZONE", "Europe/Madrid"),
		DefaultPhoneRegion: strings.ToUpper(getEnv("DEFAULT_PHONE_REGION", "ES")),

		AutoCompleteEnabled:  getEnvAsBool("AUTO_COMPLETE_ENABLED", true),
		AutoCompleteInterval: getEnvAsDuration("AUTO_COMPLETE_INTERVAL", time.Hour),

		PublicRateLimit: getEnvAsFloat("PUBLIC_RATE_LIMIT", 5),
		PublicRateBurst: getEnvAsInt("PUBLIC_RATE_BURST", 20),

		EmailProvider:    strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "stub"))),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", ""),
		EmailReplyTo:     getEnv("EMAIL_REPLY_TO", ""),
		SendGridAPIKey:   getEnv("SENDGRID_API_KEY", ""),
		SESConfigSet:     getEnv("SES_CONFIGURATION_SET", ""),
	}
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c == nil || c.Env == "" || c.Env == "development"
}

// Location returns the clinic timezone, falling back to UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	if c == nil || c.ClinicTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
