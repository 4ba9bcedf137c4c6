package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"taskbuddy/internal/timeparse"
)

const DefaultPath = "config/config.yaml"

type TwilioConfig struct {
	AccountSID      string `yaml:"account_sid"`
	AuthToken       string `yaml:"auth_token"`
	FromNumber      string `yaml:"from_number"`
	BaseURL         string `yaml:"base_url"`
	DryRun          bool   `yaml:"dry_run"`
	ValidateWebhook bool   `yaml:"validate_webhook"`
	WebhookURL      string `yaml:"webhook_url"` // public URL Twilio signs
}

type OpenAIConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type SchedulerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Interval        time.Duration `yaml:"interval"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
	SweepTimeout    time.Duration `yaml:"sweep_timeout"`
}

type ResolverConfig struct {
	PMBelowHour int    `yaml:"pm_inference_max_hour"`
	DefaultZone string `yaml:"default_zone"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Required  bool   `yaml:"required"`
}

type VerificationConfig struct {
	CodeTTL time.Duration `yaml:"code_ttl"`
}

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	FromEmail    string `yaml:"from_email"`
	AlertTo      string `yaml:"alert_to"`
}

// Enabled reports whether operator alerts can be mailed.
func (e EmailConfig) Enabled() bool {
	return e.SMTPHost != "" && e.AlertTo != ""
}

type TelegramConfig struct {
	BotToken    string `yaml:"bot_token"`
	AlertChatID int64  `yaml:"alert_chat_id"`
	APIBase     string `yaml:"api_base"`
}

// Enabled reports whether operator alerts can be posted to Telegram.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.AlertChatID != 0
}

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`
	Twilio       TwilioConfig       `yaml:"twilio"`
	OpenAI       OpenAIConfig       `yaml:"openai"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
	Resolver     ResolverConfig     `yaml:"resolver"`
	Auth         AuthConfig         `yaml:"auth"`
	Verification VerificationConfig `yaml:"verification"`
	Email        EmailConfig        `yaml:"email"`
	Telegram     TelegramConfig     `yaml:"telegram"`
}

// Default returns a config with every default filled in.
func Default() *Config {
	cfg := &Config{}
	cfg.Scheduler.Enabled = true
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads the YAML file at path (DefaultPath when empty), applies
// env overrides and defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cfg := &Config{}
	cfg.Scheduler.Enabled = true
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Database.DSN, "DATABASE_URL")
	set(&c.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	set(&c.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	set(&c.Twilio.FromNumber, "TWILIO_NUMBER")
	set(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	set(&c.Auth.JWTSecret, "JWT_SECRET")
	set(&c.Email.SMTPPassword, "SMTP_PASSWORD")
	set(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Twilio.BaseURL == "" {
		c.Twilio.BaseURL = "https://api.twilio.com"
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.Timeout == 0 {
		c.OpenAI.Timeout = 20 * time.Second
	}
	if c.Scheduler.Interval == 0 {
		c.Scheduler.Interval = time.Minute
	}
	if c.Scheduler.DeliveryTimeout == 0 {
		c.Scheduler.DeliveryTimeout = 10 * time.Second
	}
	if c.Scheduler.SweepTimeout == 0 {
		c.Scheduler.SweepTimeout = 50 * time.Second
	}
	if c.Resolver.PMBelowHour == 0 {
		c.Resolver.PMBelowHour = timeparse.DefaultPMBelowHour
	}
	if c.Resolver.DefaultZone == "" {
		c.Resolver.DefaultZone = "UTC"
	}
	if c.Verification.CodeTTL == 0 {
		c.Verification.CodeTTL = 10 * time.Minute
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("scheduler.interval must be positive"))
	}
	if c.Scheduler.DeliveryTimeout <= 0 {
		errs = append(errs, errors.New("scheduler.delivery_timeout must be positive"))
	}
	if c.Scheduler.SweepTimeout <= 0 {
		errs = append(errs, errors.New("scheduler.sweep_timeout must be positive"))
	}
	if c.Resolver.PMBelowHour < 0 || c.Resolver.PMBelowHour > 12 {
		errs = append(errs, fmt.Errorf("resolver.pm_inference_max_hour %d not in 0..12", c.Resolver.PMBelowHour))
	}
	if !timeparse.ValidZone(c.Resolver.DefaultZone) {
		errs = append(errs, fmt.Errorf("resolver.default_zone %q is not an IANA zone", c.Resolver.DefaultZone))
	}
	if c.Auth.Required && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.required needs auth.jwt_secret"))
	}
	return errors.Join(errs...)
}
