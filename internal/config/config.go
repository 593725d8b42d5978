package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "DESKBANK"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "deskbank.db"
	defaultLogLevel      = "info"
	defaultTokenTTL      = 60
	defaultCollection    = "coaching_questions"
	defaultOutboxRetries = 5
	defaultOutboxBackoff = 30
	defaultOutboxPoll    = 5
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress      string
	DatabasePath     string
	LogLevel         string
	SigningSecret    string
	IssueSecret      string
	TokenTTL         time.Duration
	RemoteBaseURL    string
	RemoteAPIKey     string
	RemoteCollection string
	OutboxMaxRetries int
	OutboxBackoff    time.Duration
	OutboxPoll       time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTL)
	configViper.SetDefault("remote.collection", defaultCollection)
	configViper.SetDefault("outbox.max_retries", defaultOutboxRetries)
	configViper.SetDefault("outbox.backoff_seconds", defaultOutboxBackoff)
	configViper.SetDefault("outbox.poll_seconds", defaultOutboxPoll)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:      configViper.GetString("http.address"),
		DatabasePath:     configViper.GetString("database.path"),
		LogLevel:         configViper.GetString("log.level"),
		SigningSecret:    configViper.GetString("auth.signing_secret"),
		IssueSecret:      configViper.GetString("auth.issue_secret"),
		TokenTTL:         time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		RemoteBaseURL:    configViper.GetString("remote.base_url"),
		RemoteAPIKey:     configViper.GetString("remote.api_key"),
		RemoteCollection: configViper.GetString("remote.collection"),
		OutboxMaxRetries: configViper.GetInt("outbox.max_retries"),
		OutboxBackoff:    time.Duration(configViper.GetInt("outbox.backoff_seconds")) * time.Second,
		OutboxPoll:       time.Duration(configViper.GetInt("outbox.poll_seconds")) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.IssueSecret) == "" {
		return fmt.Errorf("auth.issue_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.RemoteCollection) == "" {
		return fmt.Errorf("remote.collection is required")
	}
	return nil
}
