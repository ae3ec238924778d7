package config

import "time"

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment   string
	Addr          string
	LogLevel      string
	DatabaseURL   string
	MigrationsDir string

	// Token signing. The secret is injected here once at startup and handed
	// to the token issuer at construction; nothing reads it ambiently.
	TokenSecret     string
	SessionTokenTTL time.Duration
	VerifyTokenTTL  time.Duration
	ResetTokenTTL   time.Duration

	BcryptCost int

	// Base URL embedded in verification and password-reset links.
	PublicBaseURL string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:     GetString("APP_ENV", "development"),
		Addr:            GetString("API_ADDR", ":3000"),
		LogLevel:        GetString("LOG_LEVEL", "info"),
		DatabaseURL:     GetString("DATABASE_URL", "postgres://mingle:mingle@db:5432/mingle?sslmode=disable"),
		MigrationsDir:   GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		TokenSecret:     GetString("TOKEN_SECRET", "supersecuresecret"),
		SessionTokenTTL: GetDuration("SESSION_TOKEN_TTL", 24*time.Hour),
		VerifyTokenTTL:  GetDuration("VERIFY_TOKEN_TTL", time.Hour),
		ResetTokenTTL:   GetDuration("RESET_TOKEN_TTL", time.Hour),
		BcryptCost:      GetInt("BCRYPT_COST", 10),
		PublicBaseURL:   GetString("PUBLIC_BASE_URL", "http://localhost:3000"),
		SMTPHost:        GetString("SMTP_HOST", ""),
		SMTPPort:        GetInt("SMTP_PORT", 587),
		SMTPUsername:    GetString("SMTP_USERNAME", ""),
		SMTPPassword:    GetString("SMTP_PASSWORD", ""),
		MailFrom:        GetString("MAIL_FROM", "no-reply@mingle.app"),
		RedisAddr:       GetString("REDIS_ADDR", ""),
		RedisPassword:   GetString("REDIS_PASSWORD", ""),
		RedisDB:         GetInt("REDIS_DB", 0),
	}
}
