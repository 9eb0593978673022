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
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Portal sessions
	PortalJWTSecret  string
	SessionTTL       time.Duration
	RequireBirthDate bool

	// Clinic facts injected into the assistant instructions
	ClinicName  string
	ClinicHours string

	// Completion service
	CompletionProvider  string
	CompletionTimeout   time.Duration
	CompletionMaxTokens int
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	OpenAIModel         string
	BedrockModelID      string
	GeminiAPIKey        string
	GeminiModel         string

	// Audit trail
	AuditBackend string
	AuditTable   string
	AuditChannel string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Staff-side intents
	StaffIntentQueueURL string
	IntentOutbox        bool
	StaffNotifyEmail    string
	SendGridAPIKey      string
	SendGridFromEmail   string
	SendGridFromName    string
	SESFromEmail        string

	// Documents
	DocumentsBucket string
	DocumentURLTTL  time.Duration

	// HTTP edge
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		PortalJWTSecret:  getEnv("PORTAL_JWT_SECRET", ""),
		SessionTTL:       getEnvAsDuration("SESSION_TTL", 12*time.Hour),
		RequireBirthDate: getEnvAsBool("REQUIRE_BIRTH_DATE", false),

		ClinicName:  getEnv("CLINIC_NAME", "the clinic"),
		ClinicHours: getEnv("CLINIC_HOURS", "Monday to Friday, 08:00 to 18:00"),

		CompletionProvider:  strings.ToLower(strings.TrimSpace(getEnv("COMPLETION_PROVIDER", "openai"))),
		CompletionTimeout:   getEnvAsDuration("COMPLETION_TIMEOUT", 30*time.Second),
		CompletionMaxTokens: getEnvAsInt("COMPLETION_MAX_TOKENS", 512),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		AuditBackend: strings.ToLower(strings.TrimSpace(getEnv("AUDIT_BACKEND", "postgres"))),
		AuditTable:   getEnv("AUDIT_TABLE", "message_audit"),
		AuditChannel: getEnv("AUDIT_CHANNEL", "patient_portal"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		StaffIntentQueueURL: getEnv("STAFF_INTENT_QUEUE_URL", ""),
		IntentOutbox:        getEnvAsBool("INTENT_OUTBOX", false),
		StaffNotifyEmail:    getEnv("STAFF_NOTIFY_EMAIL", ""),
		SendGridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:   getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:    getEnv("SENDGRID_FROM_NAME", "Patient Portal"),
		SESFromEmail:        getEnv("SES_FROM_EMAIL", ""),

		DocumentsBucket: getEnv("DOCUMENTS_BUCKET", ""),
		DocumentURLTTL:  getEnvAsDuration("DOCUMENT_URL_TTL", 15*time.Minute),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
	}
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
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

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
