package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/femtrack/api/internal/ingest/seed"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	LogLevel    string   `mapstructure:"LOG_LEVEL"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	DBSchema    string   `mapstructure:"DB_SCHEMA"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	JWTSigningKey string        `mapstructure:"JWT_SIGNING_KEY"`
	JWTIssuer     string        `mapstructure:"JWT_ISSUER"`
	TokenTTL      time.Duration `mapstructure:"TOKEN_TTL"`
	BcryptCost    int           `mapstructure:"BCRYPT_COST"`

	LoginRateLimitRPS   float64 `mapstructure:"LOGIN_RATE_LIMIT_RPS"`
	LoginRateLimitBurst int     `mapstructure:"LOGIN_RATE_LIMIT_BURST"`

	SeedDefaultDoctorHandle   string `mapstructure:"SEED_DEFAULT_DOCTOR_HANDLE"`
	SeedDefaultDoctorEmail    string `mapstructure:"SEED_DEFAULT_DOCTOR_EMAIL"`
	SeedDoctorCredential      string `mapstructure:"SEED_DOCTOR_CREDENTIAL"`
	SeedPlaceholderCredential string `mapstructure:"SEED_PLACEHOLDER_CREDENTIAL"`
	SeedEmailDomain           string `mapstructure:"SEED_EMAIL_DOMAIN"`
	SeedMode                  string `mapstructure:"SEED_MODE"`
}

// devSigningKey signs tokens when ENV=development and no key is configured.
const devSigningKey = "femtrack-development-signing-key-do-not-use"

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "DB_SCHEMA",
	"CORS_ORIGINS", "JWT_SIGNING_KEY", "JWT_ISSUER", "TOKEN_TTL", "BCRYPT_COST",
	"LOGIN_RATE_LIMIT_RPS", "LOGIN_RATE_LIMIT_BURST",
	"SEED_DEFAULT_DOCTOR_HANDLE", "SEED_DEFAULT_DOCTOR_EMAIL", "SEED_DOCTOR_CREDENTIAL",
	"SEED_PLACEHOLDER_CREDENTIAL", "SEED_EMAIL_DOMAIN", "SEED_MODE",
}

// Load reads configuration from the environment and an optional .env file.
// DATABASE_URL is not checked here; commands that talk to the database call
// RequireDatabase.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("JWT_ISSUER", "femtrack")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("LOGIN_RATE_LIMIT_RPS", 1)
	v.SetDefault("LOGIN_RATE_LIMIT_BURST", 5)
	v.SetDefault("SEED_DEFAULT_DOCTOR_HANDLE", "default_doctor")
	v.SetDefault("SEED_DEFAULT_DOCTOR_EMAIL", "doctor@femtrack.com")
	v.SetDefault("SEED_DOCTOR_CREDENTIAL", "password123")
	v.SetDefault("SEED_PLACEHOLDER_CREDENTIAL", "testpassword123")
	v.SetDefault("SEED_EMAIL_DOMAIN", "example.com")
	v.SetDefault("SEED_MODE", string(seed.ModeAtomic))

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// RequireDatabase reports an error when DATABASE_URL is unset.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// SigningKey returns the JWT signing key bytes. A 64-character hex value is
// decoded; anything else is used as raw bytes. Development falls back to a
// fixed key when none is configured.
func (c *Config) SigningKey() []byte {
	if c.JWTSigningKey == "" {
		if c.IsDev() {
			return []byte(devSigningKey)
		}
		return nil
	}
	if len(c.JWTSigningKey) == 64 {
		if b, err := hex.DecodeString(c.JWTSigningKey); err == nil {
			return b
		}
	}
	return []byte(c.JWTSigningKey)
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.JWTSigningKey == "" {
			return fmt.Errorf("JWT_SIGNING_KEY is required when ENV=%q", c.Env)
		}
		if n := len(c.SigningKey()); n < 32 {
			return fmt.Errorf("JWT_SIGNING_KEY must be at least 32 bytes, got %d", n)
		}
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.LoginRateLimitRPS <= 0 || c.LoginRateLimitBurst <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT_RPS and LOGIN_RATE_LIMIT_BURST must be positive")
	}
	if _, err := seed.ParseMode(c.SeedMode); err != nil {
		return fmt.Errorf("SEED_MODE: %w", err)
	}
	if strings.TrimSpace(c.SeedDefaultDoctorHandle) == "" {
		return fmt.Errorf("SEED_DEFAULT_DOCTOR_HANDLE must not be empty")
	}
	if strings.TrimSpace(c.SeedEmailDomain) == "" {
		return fmt.Errorf("SEED_EMAIL_DOMAIN must not be empty")
	}
	return nil
}

// SeedConfig projects the SEED_* settings into the loader configuration.
func (c *Config) SeedConfig() seed.Config {
	mode, err := seed.ParseMode(c.SeedMode)
	if err != nil {
		mode = seed.ModeAtomic
	}
	return seed.Config{
		DefaultDoctorHandle:   c.SeedDefaultDoctorHandle,
		DefaultDoctorEmail:    c.SeedDefaultDoctorEmail,
		DoctorCredential:      c.SeedDoctorCredential,
		PlaceholderCredential: c.SeedPlaceholderCredential,
		EmailDomain:           c.SeedEmailDomain,
		Mode:                  mode,
	}
}
