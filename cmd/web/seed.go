package main

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-invoice/invoice"
	"github.com/shopspring/decimal"
)

type seedInvoice struct {
	number string
	client int
	issue  time.Time
	status invoice.Status
	lines  []invoice.LineItem
}

// seedDemoData fills an empty database with two clients and their invoices.
func seedDemoData(ctx context.Context, svc invoice.Service, logger invoice.Logger) error {
	existing, err := svc.ListClients(ctx, invoice.ClientFilter{})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	clients := []invoice.Client{
		{
			Name:         "Nordics OÜ",
			RegistryCode: "12345678",
			Email:        "info@nordics.ee",
			Phone:        "+372 5555 1234",
			Address:      "Tallinn, Estonia",
		},
		{
			Name:         "Viridian AS",
			RegistryCode: "87654321",
			Email:        "contact@viridian.ee",
			Phone:        "+372 5555 5678",
			Address:      "Tartu, Estonia",
		},
	}
	ids := make([]string, 0, len(clients))
	for _, client := range clients {
		created, err := svc.CreateClient(ctx, client)
		if err != nil {
			return fmt.Errorf("seed client %s: %w", client.Name, err)
		}
		ids = append(ids, created.ID)
	}

	invoices := []seedInvoice{
		{
			number: "2025-0001",
			client: 0,
			issue:  time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC),
			status: invoice.StatusSent,
			lines: []invoice.LineItem{
				{Description: "Web development services", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("344.26")},
			},
		},
		{
			number: "2025-0002",
			client: 1,
			issue:  time.Date(2025, 8, 8, 0, 0, 0, 0, time.UTC),
			status: invoice.StatusPaid,
			lines: []invoice.LineItem{
				{Description: "Consulting services", Quantity: decimal.NewFromInt(8), UnitPrice: decimal.RequireFromString("131.15")},
			},
		},
	}
	for _, item := range invoices {
		created, err := svc.CreateInvoice(ctx, invoice.Invoice{
			Number:    item.number,
			ClientID:  ids[item.client],
			IssueDate: item.issue,
			DueDate:   item.issue.AddDate(0, 0, invoice.DefaultPaymentDays),
			VATRate:   invoice.DefaultVATRate,
			Lines:     item.lines,
		})
		if err != nil {
			return fmt.Errorf("seed invoice %s: %w", item.number, err)
		}
		if item.status != invoice.StatusDraft {
			if _, err := svc.ChangeStatus(ctx, created.ID, item.status); err != nil {
				return fmt.Errorf("seed invoice %s status: %w", item.number, err)
			}
		}
	}

	logger.Infof("seeded %d clients and %d invoices", len(clients), len(invoices))
	return nil
}
