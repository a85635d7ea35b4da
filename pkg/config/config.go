// Package config loads application configuration via Viper
// (environment variables, optionally a config file).
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config groups all application configuration.
type Config struct {
	App  AppConfig
	DB   DBConfig
	HTTP HTTPConfig
	JWT  JWTConfig
	SMTP SMTPConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Env      string // development, staging, production
	LogLevel string // debug, info, warn, error
}

// DBConfig holds PostgreSQL settings. If DatabaseURL is set it is used
// verbatim; otherwise the DSN is assembled from the individual fields.
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int32
}

// ConnectionString returns the DSN to use.
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// HTTPConfig holds server settings.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr returns the listen address (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// JWTConfig holds token settings.
type JWTConfig struct {
	Secret    string
	Issuer    string
	AccessTTL time.Duration
}

// SMTPConfig holds the optional mail sink settings.
// Empty Host disables the SMTP notification sink.
type SMTPConfig struct {
	Host string
	Port int
	From string
}

// Load reads configuration from the environment (prefix PROVISION_) and,
// when present, from config.yaml in the working directory.
func Load() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("PROVISION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; env-only deployments are fine.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetDefault("app.env", "development")
	v.SetDefault("app.loglevel", "info")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "provision")
	v.SetDefault("db.dbname", "provision")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.maxconns", 25)
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("jwt.issuer", "provision")
	v.SetDefault("jwt.accessttl", "8h")
	v.SetDefault("smtp.port", 587)

	cfg := &Config{
		App: AppConfig{
			Env:      v.GetString("app.env"),
			LogLevel: v.GetString("app.loglevel"),
		},
		DB: DBConfig{
			DatabaseURL: v.GetString("db.databaseurl"),
			Host:        v.GetString("db.host"),
			Port:        v.GetInt("db.port"),
			User:        v.GetString("db.user"),
			Password:    v.GetString("db.password"),
			DBName:      v.GetString("db.dbname"),
			SSLMode:     v.GetString("db.sslmode"),
			MaxConns:    int32(v.GetInt("db.maxconns")),
		},
		HTTP: HTTPConfig{
			Host: v.GetString("http.host"),
			Port: v.GetInt("http.port"),
		},
		JWT: JWTConfig{
			Secret:    v.GetString("jwt.secret"),
			Issuer:    v.GetString("jwt.issuer"),
			AccessTTL: v.GetDuration("jwt.accessttl"),
		},
		SMTP: SMTPConfig{
			Host: v.GetString("smtp.host"),
			Port: v.GetInt("smtp.port"),
			From: v.GetString("smtp.from"),
		},
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required (PROVISION_JWT_SECRET)")
	}

	return cfg, nil
}
