package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	UseMemoryQueue bool
	WorkerCount    int
	DatabaseURL    string

	// Redis (conversation history store)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Reasoner selection: "http", "bedrock" or "auto" (bedrock when a model
	// id is configured, http otherwise).
	ReasonerProvider string
	ReasonerBaseURL  string
	ReasonerAPIKey   string
	ReasonerTimeout  time.Duration

	// Recorder (best-effort transcript persistence collaborator)
	RecorderBaseURL string
	RecorderTimeout time.Duration

	// AWS / Bedrock
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	TurnQueueURL        string
	BedrockModelID      string

	AdminJWTSecret string

	// Conversation pacing and policy
	DemoMode            bool
	OpeningDelay        time.Duration
	ReplyDelay          time.Duration
	MaxMeetingReprompts int
	SessionTTL          time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		ReasonerProvider: strings.ToLower(strings.TrimSpace(getEnv("REASONER_PROVIDER", "auto"))),
		ReasonerBaseURL:  getEnv("REASONER_BASE_URL", ""),
		ReasonerAPIKey:   getEnv("REASONER_API_KEY", ""),
		ReasonerTimeout:  getEnvAsDuration("REASONER_TIMEOUT", 20*time.Second),

		RecorderBaseURL: getEnv("RECORDER_BASE_URL", ""),
		RecorderTimeout: getEnvAsDuration("RECORDER_TIMEOUT", 5*time.Second),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		TurnQueueURL:        getEnv("TURN_QUEUE_URL", ""),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		DemoMode:            getEnvAsBool("DEMO_MODE", false),
		OpeningDelay:        getEnvAsDuration("OPENING_DELAY", 0),
		ReplyDelay:          getEnvAsDuration("REPLY_DELAY", 0),
		MaxMeetingReprompts: getEnvAsInt("MAX_MEETING_REPROMPTS", 0),
		SessionTTL:          getEnvAsDuration("SESSION_TTL", 24*time.Hour),
	}
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
