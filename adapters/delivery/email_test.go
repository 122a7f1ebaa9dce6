package invoicedelivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/goliatone/go-invoice/invoice"
	"github.com/goliatone/go-notifications/pkg/adapters"
)

type captureMessenger struct {
	sent []adapters.Message
	err  error
}

func (c *captureMessenger) Name() string { return "smtp" }

func (c *captureMessenger) Capabilities() adapters.Capability {
	return adapters.Capability{Name: "smtp", Channels: []string{"email"}}
}

func (c *captureMessenger) Send(_ context.Context, msg adapters.Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func TestSMTPMailer_SendInvoiceAttachment(t *testing.T) {
	messenger := &captureMessenger{}
	mailer := &SMTPMailer{
		Messenger: messenger,
		From:      "billing@billi.test",
		ReplyTo:   "accounts@billi.test",
	}

	pdf := []byte("%PDF-1.7 invoice 1001")
	err := mailer.Send(context.Background(), invoice.Mail{
		To:      []string{" billing@acme.test ", "cfo@acme.test"},
		Subject: "Invoice 1001",
		Body:    "Hello Acme OÜ,\n\nPlease find attached invoice 1001.",
		Attachment: &invoice.Attachment{
			Filename:    "invoice_1001_standard.pdf",
			ContentType: invoice.ContentTypePDF,
			Data:        pdf,
		},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(messenger.sent) != 2 {
		t.Fatalf("expected one message per recipient, got %d", len(messenger.sent))
	}
	first := messenger.sent[0]
	if first.To != "billing@acme.test" || messenger.sent[1].To != "cfo@acme.test" {
		t.Fatalf("unexpected recipients %q %q", first.To, messenger.sent[1].To)
	}
	if first.Channel != "email" || first.Subject != "Invoice 1001" {
		t.Fatalf("unexpected message %+v", first)
	}
	if first.Metadata["from"] != "billing@billi.test" || first.Metadata["reply_to"] != "accounts@billi.test" {
		t.Fatalf("unexpected sender metadata %v", first.Metadata)
	}
	if body, _ := first.Metadata["text_body"].(string); !strings.Contains(body, "Acme OÜ") {
		t.Fatalf("expected plain text body, got %v", first.Metadata)
	}
	if len(first.Attachments) != 1 {
		t.Fatalf("expected one attachment, got %d", len(first.Attachments))
	}
	att := first.Attachments[0]
	if att.Filename != "invoice_1001_standard.pdf" || att.ContentType != "application/pdf" {
		t.Fatalf("unexpected attachment %s %s", att.Filename, att.ContentType)
	}
	if string(att.Content) != string(pdf) || att.Size != len(pdf) {
		t.Fatalf("attachment content was not preserved")
	}
}

func TestSMTPMailer_SendPlainText(t *testing.T) {
	messenger := &captureMessenger{}
	mailer := &SMTPMailer{Messenger: messenger, From: "billing@billi.test"}

	err := mailer.Send(context.Background(), invoice.Mail{
		To:      []string{"billing@acme.test"},
		Subject: "Arve 1001 – Acme OÜ",
		Body:    "Tere",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	msg := messenger.sent[0]
	if len(msg.Attachments) != 0 {
		t.Fatalf("expected no attachments, got %d", len(msg.Attachments))
	}
	if _, ok := msg.Metadata["reply_to"]; ok {
		t.Fatalf("expected no reply_to without configuration")
	}
	if msg.Metadata["content_type"] != "text/plain; charset=UTF-8" {
		t.Fatalf("expected plain text content type, got %v", msg.Metadata["content_type"])
	}
}

func TestSMTPMailer_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mailer *SMTPMailer
		msg    invoice.Mail
		kind   invoice.ErrorKind
	}{
		{
			name:   "missing from",
			mailer: &SMTPMailer{Messenger: &captureMessenger{}},
			msg:    invoice.Mail{To: []string{"a@b.test"}},
			kind:   invoice.KindValidation,
		},
		{
			name:   "missing recipients",
			mailer: &SMTPMailer{From: "x@y.test", Messenger: &captureMessenger{}},
			msg:    invoice.Mail{To: []string{" "}},
			kind:   invoice.KindValidation,
		},
		{
			name:   "smtp failure",
			mailer: &SMTPMailer{From: "x@y.test", Messenger: &captureMessenger{err: errors.New("421 service not available")}},
			msg:    invoice.Mail{To: []string{"a@b.test"}, Subject: "Invoice"},
			kind:   invoice.KindExternal,
		},
		{
			name:   "no messenger",
			mailer: &SMTPMailer{From: "x@y.test"},
			msg:    invoice.Mail{To: []string{"a@b.test"}},
			kind:   invoice.KindInternal,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.mailer.Send(context.Background(), tc.msg)
			if got := invoice.KindFromError(err); got != tc.kind {
				t.Fatalf("expected %s, got %s (%v)", tc.kind, got, err)
			}
		})
	}
}

func TestSMTPMailer_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	messenger := &captureMessenger{}
	mailer := &SMTPMailer{From: "x@y.test", Messenger: messenger}
	if err := mailer.Send(ctx, invoice.Mail{To: []string{"a@b.test"}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if len(messenger.sent) != 0 {
		t.Fatalf("expected nothing to be sent")
	}
}

func TestNewSMTPMailer(t *testing.T) {
	mailer := NewSMTPMailer(SMTPConfig{Host: "mail.test", From: "billing@billi.test"}, nil)
	if mailer.Messenger == nil {
		t.Fatalf("expected messenger")
	}
	if mailer.Messenger.Name() != "smtp" {
		t.Fatalf("expected smtp messenger, got %s", mailer.Messenger.Name())
	}
	if mailer.From != "billing@billi.test" {
		t.Fatalf("unexpected from %s", mailer.From)
	}
}

type recordLogger struct {
	infos []string
}

func (l *recordLogger) Debugf(string, ...any) {}
func (l *recordLogger) Infof(format string, args ...any) {
	l.infos = append(l.infos, fmt.Sprintf(format, args...))
}
func (l *recordLogger) Errorf(string, ...any) {}

func TestLogMailer(t *testing.T) {
	logger := &recordLogger{}
	err := LogMailer{Logger: logger}.Send(context.Background(), invoice.Mail{
		To:         []string{"billing@acme.test"},
		Subject:    "Invoice 1001",
		Attachment: &invoice.Attachment{Filename: "invoice_1001_standard.pdf", Data: []byte("%PDF-")},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(logger.infos) != 1 || !strings.Contains(logger.infos[0], "invoice_1001_standard.pdf (5 bytes)") {
		t.Fatalf("unexpected log %v", logger.infos)
	}
}
