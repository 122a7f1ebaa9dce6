package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds the invoicing web app configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Render   RenderConfig
	PDF      PDFConfig
	Mail     MailConfig
	Jobs     JobsConfig
	Notify   NotifyConfig
	Issuer   IssuerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host     string
	Port     string
	APIBase  string
	ViewsDir string
	Debug    bool
}

// DatabaseConfig holds storage settings.
type DatabaseConfig struct {
	DSN  string
	Seed bool
}

// RenderConfig holds HTML template settings.
type RenderConfig struct {
	// TemplateDir overrides the embedded invoice templates when set.
	TemplateDir     string
	DefaultTemplate string
	MaxHTMLBytes    int64
}

// PDFConfig holds HTML-to-PDF conversion settings.
type PDFConfig struct {
	Engine          string
	ChromiumPath    string
	WKHTMLTOPDFPath string
	Headless        bool
	Args            []string
	Timeout         time.Duration
	PageSize        string
	PrintBackground bool
	Verify          bool
}

// MailConfig holds outbound mail settings. An empty Host logs mail instead.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	ReplyTo  string
}

// JobsConfig holds scheduled job settings.
type JobsConfig struct {
	OverdueSchedule string
	ArchiveDir      string
	ArchiveSchedule string
	Timezone        string
	AsyncSend       bool
}

// NotifyConfig enables archive notifications. No recipients disables them.
type NotifyConfig struct {
	Recipients []string
	Channels   []string
	Locale     string
	BaseURL    string
	LinkTTL    time.Duration
}

// IssuerConfig describes the invoicing company printed on documents.
type IssuerConfig struct {
	Name         string
	Address      string
	RegistryCode string
	VATNumber    string
	Email        string
	Phone        string
	IBAN         string
}

const (
	EngineChromium    = "chromium"
	EngineWKHTMLTOPDF = "wkhtmltopdf"
)

// Defaults returns a Config with sensible defaults.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:     "localhost",
			Port:     "5010",
			APIBase:  "/api",
			ViewsDir: "./views",
		},
		Database: DatabaseConfig{
			DSN:  "file:invoices.db?cache=shared&_pragma=foreign_keys(1)",
			Seed: true,
		},
		Render: RenderConfig{
			DefaultTemplate: "standard",
			MaxHTMLBytes:    2 << 20,
		},
		PDF: PDFConfig{
			Engine:          EngineChromium,
			WKHTMLTOPDFPath: "wkhtmltopdf",
			Headless:        true,
			Timeout:         30 * time.Second,
			PageSize:        "A4",
			PrintBackground: true,
			Verify:          true,
		},
		Mail: MailConfig{
			Port: 587,
		},
		Jobs: JobsConfig{
			OverdueSchedule: "@hourly",
			ArchiveSchedule: "30 2 * * *",
			Timezone:        "UTC",
			AsyncSend:       true,
		},
		Notify: NotifyConfig{
			Locale:  "en",
			LinkTTL: 24 * time.Hour,
		},
		Issuer: IssuerConfig{
			Name: "Billi OÜ",
		},
	}
}

// FromEnv applies environment overrides on top of Defaults.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Defaults()
	if getenv == nil {
		return cfg, nil
	}
	env := func(key string) string { return strings.TrimSpace(getenv(key)) }

	setString(&cfg.Server.Host, env("HOST"))
	setString(&cfg.Server.Port, env("PORT"))
	setString(&cfg.Server.APIBase, env("API_BASE_PATH"))
	setString(&cfg.Server.ViewsDir, env("VIEWS_DIR"))
	setString(&cfg.Database.DSN, env("DATABASE_DSN"))
	setString(&cfg.Render.TemplateDir, env("INVOICE_TEMPLATE_DIR"))
	setString(&cfg.Render.DefaultTemplate, env("INVOICE_DEFAULT_TEMPLATE"))
	setString(&cfg.PDF.Engine, strings.ToLower(env("INVOICE_PDF_ENGINE")))
	setString(&cfg.PDF.ChromiumPath, env("INVOICE_PDF_CHROMIUM_PATH"))
	setString(&cfg.PDF.WKHTMLTOPDFPath, env("INVOICE_WKHTMLTOPDF_PATH"))
	setString(&cfg.PDF.PageSize, env("INVOICE_PDF_PAGE_SIZE"))
	setString(&cfg.Mail.Host, env("SMTP_HOST"))
	setString(&cfg.Mail.Username, env("SMTP_USERNAME"))
	setString(&cfg.Mail.Password, env("SMTP_PASSWORD"))
	setString(&cfg.Mail.From, env("SMTP_FROM"))
	setString(&cfg.Mail.ReplyTo, env("SMTP_REPLY_TO"))
	setString(&cfg.Jobs.OverdueSchedule, env("INVOICE_OVERDUE_SCHEDULE"))
	setString(&cfg.Jobs.ArchiveDir, env("INVOICE_ARCHIVE_DIR"))
	setString(&cfg.Jobs.ArchiveSchedule, env("INVOICE_ARCHIVE_SCHEDULE"))
	setString(&cfg.Jobs.Timezone, env("TZ_INVOICES"))
	setString(&cfg.Issuer.Name, env("ISSUER_NAME"))
	setString(&cfg.Issuer.Address, env("ISSUER_ADDRESS"))
	setString(&cfg.Issuer.RegistryCode, env("ISSUER_REGISTRY_CODE"))
	setString(&cfg.Issuer.VATNumber, env("ISSUER_VAT_NUMBER"))
	setString(&cfg.Issuer.Email, env("ISSUER_EMAIL"))
	setString(&cfg.Issuer.Phone, env("ISSUER_PHONE"))
	setString(&cfg.Issuer.IBAN, env("ISSUER_IBAN"))

	setString(&cfg.Notify.Locale, env("NOTIFY_LOCALE"))
	setString(&cfg.Notify.BaseURL, env("NOTIFY_BASE_URL"))
	if recipients := env("NOTIFY_ARCHIVE_RECIPIENTS"); recipients != "" {
		cfg.Notify.Recipients = splitCSV(recipients)
	}
	if channels := env("NOTIFY_CHANNELS"); channels != "" {
		cfg.Notify.Channels = splitCSV(channels)
	}

	if args := env("INVOICE_PDF_CHROMIUM_ARGS"); args != "" {
		cfg.PDF.Args = splitCSV(args)
	}

	var err error
	if cfg.Server.Debug, err = parseBool("DEBUG", env("DEBUG"), cfg.Server.Debug); err != nil {
		return cfg, err
	}
	if cfg.Database.Seed, err = parseBool("DATABASE_SEED", env("DATABASE_SEED"), cfg.Database.Seed); err != nil {
		return cfg, err
	}
	if cfg.Jobs.AsyncSend, err = parseBool("INVOICE_ASYNC_SEND", env("INVOICE_ASYNC_SEND"), cfg.Jobs.AsyncSend); err != nil {
		return cfg, err
	}
	if cfg.PDF.Headless, err = parseBool("INVOICE_PDF_HEADLESS", env("INVOICE_PDF_HEADLESS"), cfg.PDF.Headless); err != nil {
		return cfg, err
	}
	if cfg.PDF.PrintBackground, err = parseBool("INVOICE_PDF_PRINT_BACKGROUND", env("INVOICE_PDF_PRINT_BACKGROUND"), cfg.PDF.PrintBackground); err != nil {
		return cfg, err
	}
	if cfg.PDF.Verify, err = parseBool("INVOICE_PDF_VERIFY", env("INVOICE_PDF_VERIFY"), cfg.PDF.Verify); err != nil {
		return cfg, err
	}
	if timeout := env("INVOICE_PDF_TIMEOUT"); timeout != "" {
		cfg.PDF.Timeout, err = parseTimeout(timeout)
		if err != nil {
			return cfg, err
		}
	}
	if port := env("SMTP_PORT"); port != "" {
		cfg.Mail.Port, err = strconv.Atoi(port)
		if err != nil || cfg.Mail.Port <= 0 {
			return cfg, fmt.Errorf("SMTP_PORT: invalid port %q", port)
		}
	}
	if size := env("INVOICE_MAX_HTML_BYTES"); size != "" {
		cfg.Render.MaxHTMLBytes, err = strconv.ParseInt(size, 10, 64)
		if err != nil || cfg.Render.MaxHTMLBytes <= 0 {
			return cfg, fmt.Errorf("INVOICE_MAX_HTML_BYTES: invalid size %q", size)
		}
	}

	return cfg, cfg.Validate()
}

// Validate reports configuration values the app cannot start with.
func (c Config) Validate() error {
	switch c.PDF.Engine {
	case EngineChromium, EngineWKHTMLTOPDF:
	default:
		return fmt.Errorf("INVOICE_PDF_ENGINE: unsupported engine %q", c.PDF.Engine)
	}
	if c.PDF.Timeout <= 0 {
		return fmt.Errorf("INVOICE_PDF_TIMEOUT: must be positive")
	}
	if c.Mail.Host != "" && c.Mail.From == "" {
		return fmt.Errorf("SMTP_FROM: required when SMTP_HOST is set")
	}
	if _, err := time.LoadLocation(c.Jobs.Timezone); err != nil {
		return fmt.Errorf("TZ_INVOICES: %w", err)
	}
	return nil
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func parseBool(key, value string, fallback bool) (bool, error) {
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: invalid boolean %q", key, value)
	}
	return parsed, nil
}

// parseTimeout accepts a Go duration or a number of seconds.
func parseTimeout(value string) (time.Duration, error) {
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0, fmt.Errorf("INVOICE_PDF_TIMEOUT: must be positive")
		}
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("INVOICE_PDF_TIMEOUT: invalid duration %q", value)
	}
	return d, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
