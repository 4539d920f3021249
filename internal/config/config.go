// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package config assembles the runtime configuration from flags, environment
// variables and an optional config.toml.
package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	TLS      TLSConfig
	Site     SiteConfig
	Token    TokenConfig
	Mail     MailConfig
	Metrics  MetricsConfig
	Notify   NotifyConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type TLSConfig struct {
	Mode     string // auto, acme, manual, off
	CertDir  string // ACME certificate cache
	Email    string // ACME email for Let's Encrypt
	CertFile string // manual mode
	KeyFile  string // manual mode
}

type SiteConfig struct {
	Name string // shown on pages and in emails
}

type TokenConfig struct {
	MaxAge time.Duration
	Secret string // optional HMAC key; empty keeps plain SHA-256 digests
}

type MailConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Provider string // log, smtp, sendgrid
	From     string
	FromName string
	SMTP     SMTPConfig
	SendGrid SendGridConfig
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host     string
	Port     int
	Username string
	Password string
	TLS      string // starttls, tls, none
}

type SendGridConfig struct {
	APIKey  string
	BaseURL string
}

type MetricsConfig struct {
	Enabled bool
}

type NotifyConfig struct {
	Timeout time.Duration // upper bound for one background email
}

// Mail providers.
const (
	MailProviderLog      = "log"
	MailProviderSMTP     = "smtp"
	MailProviderSendGrid = "sendgrid"
)

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		TLS: TLSConfig{
			Mode:     cmd.String("tls-mode"),
			CertDir:  cmd.String("tls-cert-dir"),
			Email:    cmd.String("tls-email"),
			CertFile: cmd.String("tls-cert-file"),
			KeyFile:  cmd.String("tls-key-file"),
		},
		Site: SiteConfig{
			Name: cmd.String("site-name"),
		},
		Token: TokenConfig{
			MaxAge: cmd.Duration("token-max-age"),
			Secret: cmd.String("token-secret"),
		},
		Mail: MailConfig{
			Provider: strings.ToLower(cmd.String("mail-provider")),
			From:     cmd.String("mail-from"),
			FromName: cmd.String("mail-from-name"),
			SMTP: SMTPConfig{
				Host:     cmd.String("smtp-host"),
				Port:     int(cmd.Int("smtp-port")),
				Username: cmd.String("smtp-username"),
				Password: cmd.String("smtp-password"),
				TLS:      strings.ToLower(cmd.String("smtp-tls")),
			},
			SendGrid: SendGridConfig{
				APIKey:  cmd.String("sendgrid-api-key"),
				BaseURL: cmd.String("sendgrid-base-url"),
			},
		},
		Metrics: MetricsConfig{
			Enabled: cmd.Bool("metrics-enabled"),
		},
		Notify: NotifyConfig{
			Timeout: cmd.Duration("notify-timeout"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")

	if cfg.Mail.FromName == "" {
		cfg.Mail.FromName = cfg.Site.Name
	}

	return cfg
}

// Validate checks settings that would otherwise only fail on first use.
func (c *Config) Validate() error {
	switch c.Mail.Provider {
	case MailProviderLog:
	case MailProviderSMTP:
		if c.Mail.SMTP.Host == "" {
			return fmt.Errorf("mail provider smtp requires --smtp-host")
		}
	case MailProviderSendGrid:
		if c.Mail.SendGrid.APIKey == "" {
			return fmt.Errorf("mail provider sendgrid requires --sendgrid-api-key")
		}
	default:
		return fmt.Errorf("unknown mail provider: %s", c.Mail.Provider)
	}

	if c.Mail.Provider != MailProviderLog && c.Mail.From == "" {
		return fmt.Errorf("mail provider %s requires --mail-from", c.Mail.Provider)
	}

	if c.Token.MaxAge <= 0 {
		return fmt.Errorf("token max age must be positive, got %s", c.Token.MaxAge)
	}

	return nil
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port
	mode := strings.ToLower(cfg.TLS.Mode)

	scheme := "http"
	if shouldUseTLS(mode, host) {
		scheme = "https"
	}

	// ACME mode always uses port 443
	if mode == "acme" {
		return fmt.Sprintf("https://%s", host)
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

func shouldUseTLS(mode, host string) bool {
	switch mode {
	case "off":
		return false
	case "acme", "manual":
		return true
	default: // "auto" or empty
		return !IsLocalhost(host)
	}
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	return strings.HasSuffix(host, ".localhost")
}

func source(env, key string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(cli.EnvVar(env), toml.TOML(key, configFile))
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: source("HOST", "server.host"),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: source("PORT", "server.port"),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Public base URL, used in confirmation links",
			Sources: source("BASE_URL", "server.base_url"),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: source("MAX_BODY_SIZE", "server.max_body_size"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: source("LOG_LEVEL", "log.level"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: source("LOG_FORMAT", "log.format"),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/waitlist.db",
			Usage:   "Database DSN",
			Sources: source("DATABASE_DSN", "database.dsn"),
		},
		&cli.StringFlag{
			Name:    "tls-mode",
			Value:   "auto",
			Usage:   "TLS mode (auto, acme, manual, off)",
			Sources: source("TLS_MODE", "tls.mode"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-dir",
			Value:   "./data/certs",
			Usage:   "Directory for ACME certificates",
			Sources: source("TLS_CERT_DIR", "tls.cert_dir"),
		},
		&cli.StringFlag{
			Name:    "tls-email",
			Usage:   "Email for ACME/Let's Encrypt registration",
			Sources: source("TLS_EMAIL", "tls.email"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-file",
			Usage:   "Path to TLS certificate file (manual mode)",
			Sources: source("TLS_CERT_FILE", "tls.cert_file"),
		},
		&cli.StringFlag{
			Name:    "tls-key-file",
			Usage:   "Path to TLS private key file (manual mode)",
			Sources: source("TLS_KEY_FILE", "tls.key_file"),
		},
		&cli.StringFlag{
			Name:    "site-name",
			Value:   "Waitlist",
			Usage:   "Product name shown on pages and in emails",
			Sources: source("SITE_NAME", "site.name"),
		},
		&cli.DurationFlag{
			Name:    "token-max-age",
			Value:   24 * time.Hour,
			Usage:   "How long confirmation links stay valid",
			Sources: source("TOKEN_MAX_AGE", "token.max_age"),
		},
		&cli.StringFlag{
			Name:    "token-secret",
			Usage:   "Optional secret mixed into confirmation token digests",
			Sources: source("TOKEN_SECRET", "token.secret"),
		},
		&cli.StringFlag{
			Name:    "mail-provider",
			Value:   MailProviderLog,
			Usage:   "Mail provider (log, smtp, sendgrid)",
			Sources: source("MAIL_PROVIDER", "mail.provider"),
		},
		&cli.StringFlag{
			Name:    "mail-from",
			Usage:   "Sender address",
			Sources: source("MAIL_FROM", "mail.from"),
		},
		&cli.StringFlag{
			Name:    "mail-from-name",
			Usage:   "Sender display name (defaults to site name)",
			Sources: source("MAIL_FROM_NAME", "mail.from_name"),
		},
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host",
			Sources: source("SMTP_HOST", "mail.smtp.host"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: source("SMTP_PORT", "mail.smtp.port"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: source("SMTP_USERNAME", "mail.smtp.username"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: source("SMTP_PASSWORD", "mail.smtp.password"),
		},
		&cli.StringFlag{
			Name:    "smtp-tls",
			Value:   "starttls",
			Usage:   "SMTP TLS policy (starttls, tls, none)",
			Sources: source("SMTP_TLS", "mail.smtp.tls"),
		},
		&cli.StringFlag{
			Name:    "sendgrid-api-key",
			Usage:   "SendGrid API key",
			Sources: source("SENDGRID_API_KEY", "mail.sendgrid.api_key"),
		},
		&cli.StringFlag{
			Name:    "sendgrid-base-url",
			Value:   "https://api.sendgrid.com",
			Usage:   "SendGrid API base URL",
			Sources: source("SENDGRID_BASE_URL", "mail.sendgrid.base_url"),
		},
		&cli.BoolFlag{
			Name:    "metrics-enabled",
			Usage:   "Expose Prometheus metrics on /metrics",
			Sources: source("METRICS_ENABLED", "metrics.enabled"),
		},
		&cli.DurationFlag{
			Name:    "notify-timeout",
			Value:   30 * time.Second,
			Usage:   "Timeout for sending one notification email",
			Sources: source("NOTIFY_TIMEOUT", "notify.timeout"),
		},
	}
}
