package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	LLM      LLMConfig
	Server   ServerConfig
	Commerce CommerceConfig
	Payment  PaymentConfig
	Session  SessionConfig
	Business BusinessConfig
	MCP      MCPConfig
	Log      LogConfig
}

// LLMConfig holds the LLM configuration
type LLMConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	SystemPrompt  string        `mapstructure:"system_prompt"`
	HistoryWindow int           `mapstructure:"history_window"`
	MaxToolRounds int           `mapstructure:"max_tool_rounds"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host          string `mapstructure:"host"`
	Port          string `mapstructure:"port"`
	AllowedOrigin string `mapstructure:"allowed_origin"`
}

// CommerceConfig points at the WooCommerce REST API of the storefront.
type CommerceConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	ConsumerKey    string        `mapstructure:"consumer_key"`
	ConsumerSecret string        `mapstructure:"consumer_secret"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// PaymentConfig holds the Stripe credentials.
type PaymentConfig struct {
	SecretKey     string        `mapstructure:"secret_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Currency      string        `mapstructure:"currency"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// SessionConfig selects the session backend and its lifetime policy.
type SessionConfig struct {
	Backend       string        `mapstructure:"backend"`
	SQLitePath    string        `mapstructure:"sqlite_path"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// BusinessConfig holds user-facing business details.
type BusinessConfig struct {
	Name         string `mapstructure:"name"`
	ContactEmail string `mapstructure:"contact_email"`
}

// MCPConfig toggles the MCP endpoint. Token is the bearer token clients must
// send; the endpoint can create orders and payment links.
type MCPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

// LogConfig holds the logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"llm.base_url":             "https://api.openai.com/v1",
	"llm.api_key":              "",
	"llm.model":                "gpt-4o-mini",
	"llm.max_tokens":           1024,
	"llm.system_prompt":        "",
	"llm.history_window":       20,
	"llm.max_tool_rounds":      8,
	"llm.timeout":              60 * time.Second,
	"server.host":              "0.0.0.0",
	"server.port":              "3001",
	"server.allowed_origin":    "https://hopebasketballquebec.com",
	"commerce.base_url":        "",
	"commerce.consumer_key":    "",
	"commerce.consumer_secret": "",
	"commerce.timeout":         15 * time.Second,
	"payment.secret_key":       "",
	"payment.webhook_secret":   "",
	"payment.currency":         "cad",
	"payment.timeout":          15 * time.Second,
	"session.backend":          "memory",
	"session.sqlite_path":      "sessions.db",
	"session.ttl":              2 * time.Hour,
	"session.sweep_interval":   5 * time.Minute,
	"business.name":            "Hope Basketball Québec",
	"business.contact_email":   "info.hopebasketballquebec@gmail.com",
	"mcp.enabled":              false,
	"mcp.token":                "",
	"log.level":                "info",
	"log.format":               "json",
}

// legacyEnv maps keys to the environment names used by existing deployments.
var legacyEnv = map[string]string{
	"llm.api_key":              "OPENAI_API_KEY",
	"commerce.base_url":        "WOO_URL",
	"commerce.consumer_key":    "WOO_CONSUMER_KEY",
	"commerce.consumer_secret": "WOO_CONSUMER_SECRET",
	"payment.secret_key":       "STRIPE_SECRET_KEY",
	"payment.webhook_secret":   "STRIPE_WEBHOOK_SECRET",
	"server.allowed_origin":    "CORS_ORIGIN",
	"server.port":              "PORT",
}

// Load reads an optional .env file, an optional YAML file (CONFIG_PATH or
// ./config.yaml) and the environment, in increasing order of precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate reports every missing secret or endpoint at once.
func (c *Config) Validate() error {
	var errs []error
	if c.LLM.APIKey == "" {
		errs = append(errs, errors.New("llm.api_key (OPENAI_API_KEY) is required"))
	}
	if c.Commerce.BaseURL == "" {
		errs = append(errs, errors.New("commerce.base_url (WOO_URL) is required"))
	}
	if c.Payment.SecretKey == "" {
		errs = append(errs, errors.New("payment.secret_key (STRIPE_SECRET_KEY) is required"))
	}
	if c.Payment.WebhookSecret == "" {
		errs = append(errs, errors.New("payment.webhook_secret (STRIPE_WEBHOOK_SECRET) is required"))
	}
	if c.LLM.HistoryWindow <= 0 {
		errs = append(errs, errors.New("llm.history_window must be positive"))
	}
	if c.LLM.MaxToolRounds <= 0 {
		errs = append(errs, errors.New("llm.max_tool_rounds must be positive"))
	}
	if c.MCP.Enabled && c.MCP.Token == "" {
		errs = append(errs, errors.New("mcp.token (MCP_TOKEN) is required when mcp.enabled is true"))
	}
	switch c.Session.Backend {
	case "memory", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("session.backend %q is not one of memory, sqlite", c.Session.Backend))
	}
	return errors.Join(errs...)
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
