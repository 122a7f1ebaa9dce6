package main

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-invoice/invoice"
)

func TestSeedDemoData(t *testing.T) {
	ctx := context.Background()
	svc := invoice.NewService(invoice.ServiceConfig{
		Store: invoice.NewMemoryStore(),
		Now: func() time.Time {
			return time.Date(2025, 8, 12, 9, 0, 0, 0, time.UTC)
		},
	})

	if err := seedDemoData(ctx, svc, invoice.NopLogger{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := seedDemoData(ctx, svc, invoice.NopLogger{}); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	clients, err := svc.ListClients(ctx, invoice.ClientFilter{})
	if err != nil {
		t.Fatalf("list clients: %v", err)
	}
	if len(clients) != 2 {
		t.Fatalf("expected 2 clients after repeated seeding, got %d", len(clients))
	}

	invoices, err := svc.ListInvoices(ctx, invoice.InvoiceFilter{})
	if err != nil {
		t.Fatalf("list invoices: %v", err)
	}
	if len(invoices) != 2 {
		t.Fatalf("expected 2 invoices, got %d", len(invoices))
	}
	byNumber := map[string]invoice.Invoice{}
	for _, inv := range invoices {
		byNumber[inv.Number] = inv
	}

	sent := byNumber["2025-0001"]
	if sent.Status != invoice.StatusSent || sent.Total.StringFixed(2) != "426.88" {
		t.Fatalf("unexpected first invoice status=%s total=%s", sent.Status, sent.Total.StringFixed(2))
	}
	paid := byNumber["2025-0002"]
	if paid.Status != invoice.StatusPaid || paid.Total.StringFixed(2) != "1301.01" {
		t.Fatalf("unexpected second invoice status=%s total=%s", paid.Status, paid.Total.StringFixed(2))
	}
}
