package invoicenotify

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	i18n "github.com/goliatone/go-i18n"
	"github.com/goliatone/go-invoice/invoice"
	"github.com/goliatone/go-notifications/pkg/adapters"
	"github.com/goliatone/go-notifications/pkg/adapters/console"
	notifsmtp "github.com/goliatone/go-notifications/pkg/adapters/smtp"
	notifconfig "github.com/goliatone/go-notifications/pkg/config"
	"github.com/goliatone/go-notifications/pkg/inbox"
	"github.com/goliatone/go-notifications/pkg/interfaces/broadcaster"
	"github.com/goliatone/go-notifications/pkg/interfaces/cache"
	notiflogger "github.com/goliatone/go-notifications/pkg/interfaces/logger"
	"github.com/goliatone/go-notifications/pkg/notifier"
	"github.com/goliatone/go-notifications/pkg/onready"
	"github.com/goliatone/go-notifications/pkg/storage"
	"github.com/goliatone/go-notifications/pkg/templates"
)

const (
	defaultFrom        = "billing@localhost"
	defaultSMTPTimeout = 10 * time.Second
)

// SMTPConfig configures the notification mail adapter.
type SMTPConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	ReplyTo     string
	UseTLS      bool
	UseStartTLS bool
	Timeout     time.Duration
}

// Config configures the in-process notification stack.
type Config struct {
	Recipients []string
	Locale     string
	SMTP       SMTPConfig
	Logger     invoice.Logger
}

// NewOnReadyNotifier builds a go-notifications "ready" notifier backed by
// in-memory storage, delivering over SMTP when configured and always to
// the console.
func NewOnReadyNotifier(ctx context.Context, cfg Config) (onready.OnReadyNotifier, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	locale := strings.TrimSpace(cfg.Locale)
	if locale == "" {
		locale = "en"
	}

	store := i18n.NewStaticStore(onready.Translations())
	translator, err := i18n.NewSimpleTranslator(store, i18n.WithTranslatorDefaultLocale(locale))
	if err != nil {
		return nil, invoice.NewError(invoice.KindInternal, "notification translator setup failed", err)
	}

	providers := storage.NewMemoryProviders()
	logSink := NewLogger(cfg.Logger)
	tplSvc, err := templates.New(templates.Dependencies{
		Repository:    providers.Templates,
		Cache:         &cache.Nop{},
		Logger:        logSink,
		Translator:    translator,
		Fallbacks:     i18n.NewStaticFallbackResolver(),
		DefaultLocale: locale,
	})
	if err != nil {
		return nil, invoice.NewError(invoice.KindInternal, "notification templates setup failed", err)
	}

	inboxSvc, err := inbox.New(inbox.Dependencies{
		Repository:  providers.Inbox,
		Broadcaster: &broadcaster.Nop{},
		Logger:      logSink,
	})
	if err != nil {
		return nil, invoice.NewError(invoice.KindInternal, "notification inbox setup failed", err)
	}

	reg, err := onready.Register(ctx, onready.Dependencies{
		Definitions: providers.Definitions,
		Templates:   tplSvc,
	}, onready.Options{})
	if err != nil {
		return nil, invoice.NewError(invoice.KindInternal, "notification definition setup failed", err)
	}

	manager, err := notifier.New(notifier.Dependencies{
		Definitions: providers.Definitions,
		Events:      providers.Events,
		Messages:    providers.Messages,
		Attempts:    providers.DeliveryAttempts,
		Templates:   tplSvc,
		Adapters:    adapters.NewRegistry(messengers(logSink, cfg.SMTP)...),
		Logger:      logSink,
		Config: notifconfig.DispatcherConfig{
			EnvFallbackAllowlist: cfg.Recipients,
		},
		Inbox: inboxSvc,
	})
	if err != nil {
		return nil, invoice.NewError(invoice.KindInternal, "notification manager setup failed", err)
	}

	ready, err := onready.NewNotifier(manager, reg.DefinitionCode)
	if err != nil {
		return nil, invoice.NewError(invoice.KindInternal, "notification notifier setup failed", err)
	}
	return ready, nil
}

func messengers(logSink notiflogger.Logger, cfg SMTPConfig) []adapters.Messenger {
	list := make([]adapters.Messenger, 0, 2)
	if strings.TrimSpace(cfg.Host) != "" {
		list = append(list, newSMTPMessenger(logSink, cfg))
	}
	return append(list, console.New(logSink))
}

// NewSMTPMessenger builds the go-notifications SMTP adapter with the sender
// and HTML body defaults invoice mail relies on.
func NewSMTPMessenger(cfg SMTPConfig, logger invoice.Logger) adapters.Messenger {
	return newSMTPMessenger(NewLogger(logger), cfg)
}

func newSMTPMessenger(logSink notiflogger.Logger, cfg SMTPConfig) adapters.Messenger {
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = defaultFrom
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSMTPTimeout
	}
	smtpAdapter := notifsmtp.New(logSink, notifsmtp.WithConfig(notifsmtp.Config{
		Host:         cfg.Host,
		Port:         port,
		From:         from,
		ReplyTo:      strings.TrimSpace(cfg.ReplyTo),
		Username:     cfg.Username,
		Password:     cfg.Password,
		UseTLS:       cfg.UseTLS,
		UseStartTLS:  cfg.UseStartTLS,
		TLSPolicy:    adapters.TLSPolicyStrict,
		Timeout:      timeout,
		AuthDisabled: cfg.Username == "",
	}))
	return smtpDefaults{base: smtpAdapter, from: from}
}

// smtpDefaults fills the sender and HTML body the SMTP adapter expects.
type smtpDefaults struct {
	base adapters.Messenger
	from string
}

func (a smtpDefaults) Name() string { return a.base.Name() }

func (a smtpDefaults) Capabilities() adapters.Capability { return a.base.Capabilities() }

func (a smtpDefaults) Send(ctx context.Context, msg adapters.Message) error {
	msg.Subject = html.UnescapeString(msg.Subject)
	msg.Metadata = withDefault(msg.Metadata, "from", a.from)
	if _, plain := msg.Metadata["text_body"]; !plain && strings.TrimSpace(msg.Body) != "" {
		msg.Metadata = withDefault(msg.Metadata, "html_body", msg.Body)
	}
	return a.base.Send(ctx, msg)
}

func withDefault(meta map[string]any, key, value string) map[string]any {
	if strings.TrimSpace(value) == "" {
		return meta
	}
	if meta == nil {
		meta = make(map[string]any)
	}
	if current, ok := meta[key].(string); ok && strings.TrimSpace(current) != "" {
		return meta
	}
	meta[key] = value
	return meta
}

// NewLogger adapts an invoice logger to the go-notifications logger contract.
func NewLogger(base invoice.Logger) notiflogger.Logger {
	return notificationsLogger{base: base}
}

type notificationsLogger struct {
	base   invoice.Logger
	fields []any
}

var (
	_ notiflogger.Logger       = notificationsLogger{}
	_ notiflogger.FieldsLogger = notificationsLogger{}
)

func (l notificationsLogger) Trace(msg string, args ...any) { l.debug(msg, args) }
func (l notificationsLogger) Debug(msg string, args ...any) { l.debug(msg, args) }

func (l notificationsLogger) Info(msg string, args ...any) {
	if l.base != nil {
		l.base.Infof("[notifications] %s%s", msg, l.format(args))
	}
}

func (l notificationsLogger) Warn(msg string, args ...any) {
	if l.base != nil {
		l.base.Infof("[notifications][WARN] %s%s", msg, l.format(args))
	}
}

func (l notificationsLogger) Error(msg string, args ...any) {
	if l.base != nil {
		l.base.Errorf("[notifications] %s%s", msg, l.format(args))
	}
}

// Fatal is logged as an error; a notification failure never stops the process.
func (l notificationsLogger) Fatal(msg string, args ...any) {
	if l.base != nil {
		l.base.Errorf("[notifications][FATAL] %s%s", msg, l.format(args))
	}
}

func (l notificationsLogger) WithContext(ctx context.Context) notiflogger.Logger {
	_ = ctx
	return l
}

func (l notificationsLogger) WithFields(fields map[string]any) notiflogger.Logger {
	if len(fields) == 0 {
		return l
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	next := notificationsLogger{base: l.base, fields: append([]any(nil), l.fields...)}
	for _, key := range keys {
		next.fields = append(next.fields, key, fields[key])
	}
	return next
}

func (l notificationsLogger) debug(msg string, args []any) {
	if l.base != nil {
		l.base.Debugf("[notifications] %s%s", msg, l.format(args))
	}
}

// format renders key/value pairs; a trailing or non-string key prints as is.
func (l notificationsLogger) format(args []any) string {
	all := append(append([]any(nil), l.fields...), args...)
	if len(all) == 0 {
		return ""
	}
	parts := make([]string, 0, len(all))
	for i := 0; i < len(all); {
		if key, ok := all[i].(string); ok && i+1 < len(all) {
			parts = append(parts, fmt.Sprintf("%s=%v", key, all[i+1]))
			i += 2
			continue
		}
		parts = append(parts, fmt.Sprint(all[i]))
		i++
	}
	return " " + strings.Join(parts, " ")
}
