package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	AppURL      string
	HTTPAddr    string

	// Hex-encoded 256-bit key used to encrypt stored provider credentials.
	EncryptionKey string

	LogLevel string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Email     EmailConfig
	Scheduler SchedulerConfig
	OAuth     OAuthConfig
}

// EmailConfig selects and configures the outbound email provider.
type EmailConfig struct {
	Provider     string // "resend", "smtp" or "noop"
	ResendAPIKey string
	ResendFrom   string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// SchedulerConfig configures the external per-service schedule API. When
// Token is empty the embedded cron sweep is used instead.
type SchedulerConfig struct {
	BaseURL       string
	Token         string
	EmbeddedSweep bool
}

// OAuthConfig carries client credentials for providers using the
// authorization-code flow.
type OAuthConfig struct {
	GitHubClientID       string
	GitHubClientSecret   string
	VercelClientID       string
	VercelClientSecret   string
	SentryClientID       string
	SentryClientSecret   string
	SupabaseClientID     string
	SupabaseClientSecret string
	StateSecret          string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "beacon"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		AppURL:      strings.TrimRight(getenv("APP_URL", "http://localhost:4567"), "/"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		EncryptionKey: strings.TrimSpace(getenv("ENCRYPTION_KEY", "")),

		LogLevel: strings.ToLower(getenv("LOG_LEVEL", "info")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "beacon"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		Email: EmailConfig{
			Provider:     strings.ToLower(getenv("EMAIL_PROVIDER", "resend")),
			ResendAPIKey: strings.TrimSpace(getenv("RESEND_API_KEY", "")),
			ResendFrom:   getenv("RESEND_FROM", "Beacon Alerts <alerts@beacon.dev>"),
			SMTPHost:     getenv("SMTP_HOST", "localhost"),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "alerts@beacon.dev"),
		},
		Scheduler: SchedulerConfig{
			BaseURL:       strings.TrimRight(getenv("SCHEDULER_BASE_URL", "https://qstash.upstash.io"), "/"),
			Token:         strings.TrimSpace(getenv("SCHEDULER_TOKEN", "")),
			EmbeddedSweep: getenvBool("SCHEDULER_EMBEDDED_SWEEP", true),
		},
		OAuth: OAuthConfig{
			GitHubClientID:       strings.TrimSpace(getenv("GITHUB_CLIENT_ID", "")),
			GitHubClientSecret:   strings.TrimSpace(getenv("GITHUB_CLIENT_SECRET", "")),
			VercelClientID:       strings.TrimSpace(getenv("VERCEL_CLIENT_ID", "")),
			VercelClientSecret:   strings.TrimSpace(getenv("VERCEL_CLIENT_SECRET", "")),
			SentryClientID:       strings.TrimSpace(getenv("SENTRY_CLIENT_ID", "")),
			SentryClientSecret:   strings.TrimSpace(getenv("SENTRY_CLIENT_SECRET", "")),
			SupabaseClientID:     strings.TrimSpace(getenv("SUPABASE_CLIENT_ID", "")),
			SupabaseClientSecret: strings.TrimSpace(getenv("SUPABASE_CLIENT_SECRET", "")),
			StateSecret:          strings.TrimSpace(getenv("OAUTH_STATE_SECRET", "")),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
