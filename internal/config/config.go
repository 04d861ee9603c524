package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	SendGrid  SendGridConfig  `yaml:"sendgrid"`
	Stripe    StripeConfig    `yaml:"stripe"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	Overstay  OverstayConfig  `yaml:"overstay"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// SendGridConfig contains transactional email settings
type SendGridConfig struct {
	APIKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

// StripeConfig contains payment gateway settings
type StripeConfig struct {
	SecretKey     string `yaml:"secret_key"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret            string `yaml:"secret"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// OverstayConfig contains the platform-default penalty policy and charge
// accounting settings. Listings and locations may override the policy fields
// per record.
type OverstayConfig struct {
	Currency                string `yaml:"currency"`
	GracePeriodDays         int    `yaml:"grace_period_days"`
	PenaltyRate             string `yaml:"penalty_rate"` // decimal, e.g. "0.10"
	MaxPenaltyDays          int    `yaml:"max_penalty_days"`
	PolicyText              string `yaml:"policy_text"`
	ProcessingFeePercent    string `yaml:"processing_fee_percent"` // decimal, e.g. "2.9"
	ProcessingFeeFixedCents int64  `yaml:"processing_fee_fixed_cents"`
	CheckoutLinkTTLHours    int    `yaml:"checkout_link_ttl_hours"`
	CheckoutSuccessURL      string `yaml:"checkout_success_url"`
	CheckoutCancelURL       string `yaml:"checkout_cancel_url"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	DetectOverstays string `yaml:"detect_overstays"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// SendGrid
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.SendGrid.APIKey = val
	}
	if val := os.Getenv("SENDGRID_FROM_EMAIL"); val != "" {
		c.SendGrid.FromEmail = val
	}

	// Stripe
	if val := os.Getenv("STRIPE_SECRET_KEY"); val != "" {
		c.Stripe.SecretKey = val
	}
	if val := os.Getenv("STRIPE_WEBHOOK_SECRET"); val != "" {
		c.Stripe.WebhookSecret = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	// Gateway validation
	if c.Stripe.SecretKey == "" {
		return fmt.Errorf("stripe secret key is required")
	}

	// SendGrid validation
	if c.SendGrid.APIKey == "" {
		return fmt.Errorf("sendgrid API key is required")
	}
	if c.SendGrid.FromEmail == "" {
		return fmt.Errorf("sendgrid from email is required")
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.AccessTokenExpiry == 0 {
		c.JWT.AccessTokenExpiry = 60
	}

	// Overstay defaults
	if c.Overstay.Currency == "" {
		c.Overstay.Currency = "usd"
	}
	if c.Overstay.GracePeriodDays == 0 {
		c.Overstay.GracePeriodDays = 2
	}
	if c.Overstay.PenaltyRate == "" {
		c.Overstay.PenaltyRate = "0.10"
	}
	if c.Overstay.MaxPenaltyDays == 0 {
		c.Overstay.MaxPenaltyDays = 30
	}
	if c.Overstay.ProcessingFeePercent == "" {
		c.Overstay.ProcessingFeePercent = "2.9"
	}
	if _, err := strconv.ParseFloat(c.Overstay.PenaltyRate, 64); err != nil {
		return fmt.Errorf("invalid overstay penalty rate %q", c.Overstay.PenaltyRate)
	}
	if _, err := strconv.ParseFloat(c.Overstay.ProcessingFeePercent, 64); err != nil {
		return fmt.Errorf("invalid overstay processing fee percent %q", c.Overstay.ProcessingFeePercent)
	}
	if c.Overstay.ProcessingFeeFixedCents == 0 {
		c.Overstay.ProcessingFeeFixedCents = 30
	}
	if c.Overstay.CheckoutLinkTTLHours == 0 {
		c.Overstay.CheckoutLinkTTLHours = 24
	}
	if c.Overstay.CheckoutSuccessURL == "" {
		return fmt.Errorf("overstay checkout success URL is required")
	}
	if c.Overstay.CheckoutCancelURL == "" {
		return fmt.Errorf("overstay checkout cancel URL is required")
	}

	// Scheduler defaults
	if c.Scheduler.DetectOverstays == "" {
		c.Scheduler.DetectOverstays = "0 0 2 * * *" // 2 AM UTC
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// CheckoutLinkTTL returns the validity window for escalation payment links
func (c *OverstayConfig) CheckoutLinkTTL() time.Duration {
	return time.Duration(c.CheckoutLinkTTLHours) * time.Hour
}
