package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AI       AIConfig
	Mail     MailConfig
}

type AppConfig struct {
	AppName      string
	Environment  string
	HTTPPort     string
	SettingsFile string
}

type DatabaseConfig struct {
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
	MaxConns   int32
}

// Enabled reports whether enough is configured to open a Postgres pool.
func (d DatabaseConfig) Enabled() bool {
	return d.DBHost != "" && d.DBName != ""
}

func (d DatabaseConfig) DSN() string {
	port := d.DBPort
	if port == "" {
		port = "5432"
	}
	ssl := d.DBSSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", d.DBUser, d.DBPassword, d.DBHost, port, d.DBName, ssl)
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	EventChannel string
}

func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type AIConfig struct {
	APIKey string
	Model  string
}

func (a AIConfig) Enabled() bool {
	return a.APIKey != ""
}

type MailConfig struct {
	CredentialsFile string
	TokenFile       string
	Sender          string
	DryRun          bool
}

func (m MailConfig) Enabled() bool {
	return !m.DryRun && m.CredentialsFile != "" && m.TokenFile != ""
}

var errMissingRequiredEnv = errors.New("missing required environment variables")

var errInvalidEnv = errors.New("invalid environment variable")

func Load() (Config, error) {
	cfg := Config{}

	var missing []string
	var invalid []string
	req := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}
	opt := func(key string) string {
		return strings.TrimSpace(os.Getenv(key))
	}
	optDefault := func(key, def string) string {
		if v := opt(key); v != "" {
			return v
		}
		return def
	}
	optInt := func(key string, def int) int {
		v := opt(key)
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			invalid = append(invalid, key)
			return def
		}
		return n
	}
	optBool := func(key string, def bool) bool {
		v := opt(key)
		if v == "" {
			return def
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			invalid = append(invalid, key)
			return def
		}
		return b
	}

	cfg.App = AppConfig{
		AppName:      req("APP_NAME"),
		Environment:  req("APP_ENV"),
		HTTPPort:     req("HTTP_PORT"),
		SettingsFile: optDefault("SETTINGS_FILE", "settings.yaml"),
	}

	cfg.Database = DatabaseConfig{
		DBHost:     opt("DB_HOST"),
		DBPort:     opt("DB_PORT"),
		DBName:     opt("DB_NAME"),
		DBUser:     opt("DB_USER"),
		DBPassword: opt("DB_PASSWORD"),
		DBSSLMode:  opt("DB_SSL_MODE"),
		MaxConns:   int32(optInt("DB_MAX_CONNS", 10)),
	}

	cfg.Redis = RedisConfig{
		Addr:         opt("REDIS_ADDR"),
		Password:     opt("REDIS_PASSWORD"),
		DB:           optInt("REDIS_DB", 0),
		EventChannel: optDefault("REDIS_EVENT_CHANNEL", "outreach:events"),
	}

	cfg.AI = AIConfig{
		APIKey: opt("GEMINI_API_KEY"),
		Model:  optDefault("GEMINI_MODEL", "gemini-1.5-flash"),
	}

	cfg.Mail = MailConfig{
		CredentialsFile: opt("GMAIL_CREDENTIALS_FILE"),
		TokenFile:       opt("GMAIL_TOKEN_FILE"),
		Sender:          opt("GMAIL_SENDER"),
		DryRun:          optBool("MAIL_DRY_RUN", false),
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errMissingRequiredEnv, strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errInvalidEnv, strings.Join(invalid, ", "))
	}

	return cfg, nil
}
