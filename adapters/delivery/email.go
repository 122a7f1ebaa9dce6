package invoicedelivery

import (
	"context"
	"fmt"
	"strings"

	invoicenotify "github.com/goliatone/go-invoice/adapters/notifications"
	"github.com/goliatone/go-invoice/invoice"
	"github.com/goliatone/go-notifications/pkg/adapters"
)

// SMTPConfig holds connection settings for SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	ReplyTo  string
}

// SMTPMailer sends invoice mail through a go-notifications messenger.
// Each recipient gets its own message.
type SMTPMailer struct {
	Messenger adapters.Messenger
	From      string
	ReplyTo   string
}

// NewSMTPMailer builds a mailer backed by the go-notifications SMTP adapter.
// Port 587 negotiates STARTTLS, port 465 uses implicit TLS.
func NewSMTPMailer(cfg SMTPConfig, logger invoice.Logger) *SMTPMailer {
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &SMTPMailer{
		Messenger: invoicenotify.NewSMTPMessenger(invoicenotify.SMTPConfig{
			Host:        cfg.Host,
			Port:        port,
			Username:    cfg.Username,
			Password:    cfg.Password,
			From:        cfg.From,
			ReplyTo:     cfg.ReplyTo,
			UseTLS:      port == 465,
			UseStartTLS: port == 587,
		}, logger),
		From:    cfg.From,
		ReplyTo: cfg.ReplyTo,
	}
}

// Send delivers the message to every recipient.
func (m *SMTPMailer) Send(ctx context.Context, msg invoice.Mail) error {
	if m == nil || m.Messenger == nil {
		return invoice.NewError(invoice.KindInternal, "mailer is nil", nil)
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	from := strings.TrimSpace(m.From)
	if from == "" {
		return invoice.NewError(invoice.KindValidation, "email from is required", nil)
	}
	recipients := make([]string, 0, len(msg.To))
	for _, to := range msg.To {
		if to = strings.TrimSpace(to); to != "" {
			recipients = append(recipients, to)
		}
	}
	if len(recipients) == 0 {
		return invoice.NewError(invoice.KindValidation, "email recipients are required", nil)
	}

	var attachments []adapters.Attachment
	if msg.Attachment != nil {
		contentType := msg.Attachment.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		attachments = []adapters.Attachment{{
			Filename:    strings.ReplaceAll(msg.Attachment.Filename, "\"", ""),
			ContentType: contentType,
			Content:     msg.Attachment.Data,
			Size:        len(msg.Attachment.Data),
		}}
	}

	for _, to := range recipients {
		out := adapters.Message{
			Channel:     "email",
			Provider:    m.Messenger.Name(),
			Subject:     msg.Subject,
			Body:        msg.Body,
			To:          to,
			Attachments: attachments,
			Metadata: map[string]any{
				"from":         from,
				"text_body":    msg.Body,
				"content_type": "text/plain; charset=UTF-8",
			},
		}
		if replyTo := strings.TrimSpace(m.ReplyTo); replyTo != "" {
			out.Metadata["reply_to"] = replyTo
		}
		if err := m.Messenger.Send(ctx, out); err != nil {
			return invoice.NewError(invoice.KindExternal, "smtp send failed", err)
		}
	}
	return nil
}

// LogMailer records outbound mail in the log instead of sending it.
type LogMailer struct {
	Logger invoice.Logger
}

// Send logs the message summary.
func (m LogMailer) Send(ctx context.Context, msg invoice.Mail) error {
	_ = ctx
	logger := m.Logger
	if logger == nil {
		logger = invoice.NopLogger{}
	}
	if len(msg.To) == 0 {
		return invoice.NewError(invoice.KindValidation, "email recipients are required", nil)
	}
	attachment := "none"
	if msg.Attachment != nil {
		attachment = fmt.Sprintf("%s (%d bytes)", msg.Attachment.Filename, len(msg.Attachment.Data))
	}
	logger.Infof("mail to %s subject %q attachment %s", strings.Join(msg.To, ", "), msg.Subject, attachment)
	return nil
}

var (
	_ invoice.Mailer = (*SMTPMailer)(nil)
	_ invoice.Mailer = LogMailer{}
)
