package invoicenotify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-invoice/invoice"
	"github.com/goliatone/go-notifications/pkg/onready"
)

// Saver persists rendered documents and reports whether the archive
// gained a new or changed document.
type Saver interface {
	Save(ctx context.Context, doc invoice.Document) (bool, error)
}

type indexer interface {
	Exists(ctx context.Context, key string) (bool, error)
}

// ArchiveNotifier saves documents through Next and then announces them
// to Recipients with a go-notifications "ready" event.
type ArchiveNotifier struct {
	Next       Saver
	Notifier   onready.OnReadyNotifier
	Recipients []string
	Channels   []string
	BaseURL    string
	LinkTTL    time.Duration
	Logger     invoice.Logger
	Now        func() time.Time
}

// Save stores the document and notifies only when the archive changed.
// Notification failures are logged and never fail the save.
func (n *ArchiveNotifier) Save(ctx context.Context, doc invoice.Document) (bool, error) {
	if n == nil || n.Next == nil {
		return false, invoice.NewError(invoice.KindInternal, "archive notifier requires a saver", nil)
	}
	created, err := n.Next.Save(ctx, doc)
	if err != nil || !created {
		return created, err
	}
	if n.Notifier == nil || len(n.Recipients) == 0 {
		return true, nil
	}
	if err := n.Notifier.Send(ctx, n.event(doc)); err != nil {
		n.logger().Errorf("invoice %s archived, notification failed: %v", doc.Invoice.Number, err)
	}
	return true, nil
}

// Exists delegates to Next when it can answer archive lookups.
func (n *ArchiveNotifier) Exists(ctx context.Context, key string) (bool, error) {
	if n == nil || n.Next == nil {
		return false, nil
	}
	index, ok := n.Next.(indexer)
	if !ok {
		return false, nil
	}
	return index.Exists(ctx, key)
}

func (n *ArchiveNotifier) event(doc invoice.Document) onready.OnReadyEvent {
	evt := onready.OnReadyEvent{
		Recipients: n.Recipients,
		Channels:   notifyChannels(n.Channels),
		FileName:   doc.Filename,
		Format:     "pdf",
		Rows:       len(doc.Invoice.Lines),
		Message:    archiveMessage(doc.Invoice),
	}
	if base := strings.TrimRight(strings.TrimSpace(n.BaseURL), "/"); base != "" && doc.Invoice.ID != "" {
		evt.URL = fmt.Sprintf("%s/invoices/%s/pdf", base, doc.Invoice.ID)
		if n.LinkTTL > 0 {
			evt.ExpiresAt = n.now().Add(n.LinkTTL).UTC().Format(time.RFC3339)
		}
	}
	return evt
}

func archiveMessage(inv invoice.Invoice) string {
	if inv.Number == "" {
		return "Invoice archived"
	}
	msg := fmt.Sprintf("Invoice %s archived", inv.Number)
	if inv.Client.Name != "" {
		msg += " for " + inv.Client.Name
	}
	if !inv.Total.IsZero() {
		msg += fmt.Sprintf(" (%s %s)", inv.Total.StringFixed(2), inv.Currency)
	}
	return msg
}

func notifyChannels(channels []string) []string {
	if len(channels) == 0 {
		return []string{"email"}
	}
	return channels
}

func (n *ArchiveNotifier) logger() invoice.Logger {
	if n.Logger == nil {
		return invoice.NopLogger{}
	}
	return n.Logger
}

func (n *ArchiveNotifier) now() time.Time {
	if n.Now == nil {
		return time.Now()
	}
	return n.Now()
}
