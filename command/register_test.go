package command

import (
	"context"
	"testing"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-invoice/invoice"
	"github.com/goliatone/go-invoice/query"
)

func TestRegisterInvoiceHandlers_Dispatch(t *testing.T) {
	svc, client := newMemoryService(t)

	reg := gcmd.NewRegistry()
	registration, err := RegisterInvoiceHandlers(reg, svc)
	if err != nil {
		t.Fatalf("register handlers: %v", err)
	}
	defer registration.Unsubscribe()

	if registration.MarkOverdue == nil || registration.MarkOverdue.CronOptions().Expression != DefaultOverdueSchedule {
		t.Fatalf("expected overdue handler with default schedule")
	}

	created, err := dispatcher.DispatchWithResult[CreateInvoice, invoice.Invoice](
		context.Background(),
		CreateInvoice{Invoice: sampleInvoice(client.ID)},
	)
	if err != nil {
		t.Fatalf("dispatch create invoice: %v", err)
	}
	if created.ID == "" || created.Total.StringFixed(2) != "200.00" {
		t.Fatalf("unexpected created invoice %+v", created)
	}

	listed, err := dispatcher.Query[query.ListInvoices, []invoice.Invoice](
		context.Background(),
		query.ListInvoices{Filter: invoice.InvoiceFilter{ClientID: client.ID}},
	)
	if err != nil {
		t.Fatalf("query invoices: %v", err)
	}
	if len(listed) != 1 || listed[0].Number != "1001" {
		t.Fatalf("unexpected listing %+v", listed)
	}
}

func TestRegisterInvoiceHandlers_RequiresService(t *testing.T) {
	if _, err := RegisterInvoiceHandlers(nil, nil); err == nil {
		t.Fatalf("expected error without service")
	}
}
