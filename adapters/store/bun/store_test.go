package invoicebun

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-invoice/invoice"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := OpenSQLite("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := CreateSchema(context.Background(), db); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func seedClient(t *testing.T, store *Store, id, name string) invoice.Client {
	t.Helper()
	client, err := store.CreateClient(context.Background(), invoice.Client{
		ID:        id,
		Name:      name,
		Email:     strings.ToLower(strings.Fields(name)[0]) + "@example.ee",
		CreatedAt: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return client
}

func testInvoice(id, number, clientID string, issue time.Time) invoice.Invoice {
	return invoice.Recalculate(invoice.Invoice{
		ID:        id,
		Number:    number,
		ClientID:  clientID,
		IssueDate: issue,
		DueDate:   issue.AddDate(0, 0, 14),
		VATRate:   dec("24"),
		Currency:  "EUR",
		Status:    invoice.StatusDraft,
		Lines: []invoice.LineItem{
			{Description: "Consulting", Quantity: dec("1.5"), UnitPrice: dec("80")},
			{Description: "Hosting", Quantity: dec("1"), UnitPrice: dec("19.99")},
		},
		CreatedAt: issue,
	})
}

func TestStore_Clients(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newTestDB(t))

	seedClient(t, store, "c1", "Viridian AS")
	acme := seedClient(t, store, "c2", "Acme OÜ")

	if _, err := store.CreateClient(ctx, invoice.Client{ID: "c1", Name: "Again"}); invoice.KindFromError(err) != invoice.KindConflict {
		t.Fatalf("expected conflict for duplicate id, got %v", err)
	}

	list, err := store.ListClients(ctx, invoice.ClientFilter{})
	if err != nil {
		t.Fatalf("list clients: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Acme OÜ" {
		t.Fatalf("expected clients ordered by name, got %+v", list)
	}

	found, err := store.ListClients(ctx, invoice.ClientFilter{Query: "viridian"})
	if err != nil {
		t.Fatalf("search clients: %v", err)
	}
	if len(found) != 1 || found[0].ID != "c1" {
		t.Fatalf("expected search hit, got %+v", found)
	}

	acme.Phone = "+372 5555 0000"
	if _, err := store.UpdateClient(ctx, acme); err != nil {
		t.Fatalf("update client: %v", err)
	}
	got, err := store.GetClient(ctx, "c2")
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	if got.Phone != "+372 5555 0000" || got.Name != "Acme OÜ" {
		t.Fatalf("unexpected client %+v", got)
	}

	if err := store.DeleteClient(ctx, "c1"); err != nil {
		t.Fatalf("delete client: %v", err)
	}
	if _, err := store.GetClient(ctx, "c1"); invoice.KindFromError(err) != invoice.KindNotFound {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := store.DeleteClient(ctx, "c1"); invoice.KindFromError(err) != invoice.KindNotFound {
		t.Fatalf("expected not found deleting twice, got %v", err)
	}
}

func TestStore_InvoiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newTestDB(t))
	seedClient(t, store, "c1", "Acme OÜ")

	issue := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	created, err := store.CreateInvoice(ctx, testInvoice("i1", "2025-0001", "c1", issue))
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if created.Total.StringFixed(2) != "173.59" {
		t.Fatalf("unexpected total %s", created.Total.StringFixed(2))
	}

	got, err := store.GetInvoice(ctx, "i1")
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if got.Number != "2025-0001" || got.ClientID != "c1" || got.Status != invoice.StatusDraft {
		t.Fatalf("unexpected invoice %+v", got)
	}
	if !got.IssueDate.Equal(issue) || !got.DueDate.Equal(issue.AddDate(0, 0, 14)) {
		t.Fatalf("unexpected dates %s %s", got.IssueDate, got.DueDate)
	}
	if len(got.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(got.Lines))
	}
	if got.Lines[0].Position != 1 || got.Lines[0].Description != "Consulting" || !got.Lines[0].Quantity.Equal(dec("1.5")) {
		t.Fatalf("unexpected first line %+v", got.Lines[0])
	}
	if !got.Lines[1].UnitPrice.Equal(dec("19.99")) || got.Lines[1].Amount.StringFixed(2) != "19.99" {
		t.Fatalf("unexpected second line %+v", got.Lines[1])
	}
	if !got.VATRate.Equal(dec("24")) || got.Tax.StringFixed(2) != "33.60" || invoice.TotalsStale(got) {
		t.Fatalf("unexpected totals subtotal=%s tax=%s total=%s", got.Subtotal, got.Tax, got.Total)
	}

	if _, err := store.GetInvoice(ctx, "missing"); invoice.KindFromError(err) != invoice.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStore_InvoiceNumberConflict(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newTestDB(t))
	seedClient(t, store, "c1", "Acme OÜ")
	issue := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	if _, err := store.CreateInvoice(ctx, testInvoice("i1", "1001", "c1", issue)); err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if _, err := store.CreateInvoice(ctx, testInvoice("i2", "1001", "c1", issue)); invoice.KindFromError(err) != invoice.KindConflict {
		t.Fatalf("expected number conflict, got %v", err)
	}
	if _, err := store.GetInvoice(ctx, "i2"); invoice.KindFromError(err) != invoice.KindNotFound {
		t.Fatalf("expected rejected invoice not to be stored, got %v", err)
	}

	if _, err := store.CreateInvoice(ctx, testInvoice("i2", "1002", "c1", issue)); err != nil {
		t.Fatalf("create second invoice: %v", err)
	}
	renumbered := testInvoice("i2", "1001", "c1", issue)
	if _, err := store.UpdateInvoice(ctx, renumbered); invoice.KindFromError(err) != invoice.KindConflict {
		t.Fatalf("expected conflict renumbering onto a taken number, got %v", err)
	}
}

func TestStore_UpdateReplacesLines(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newTestDB(t))
	seedClient(t, store, "c1", "Acme OÜ")
	issue := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	inv, err := store.CreateInvoice(ctx, testInvoice("i1", "1001", "c1", issue))
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	inv.Lines = []invoice.LineItem{{Description: "Audit", Quantity: dec("3"), UnitPrice: dec("10")}}
	inv.Notes = "Thanks"
	inv = invoice.Recalculate(inv)
	if _, err := store.UpdateInvoice(ctx, inv); err != nil {
		t.Fatalf("update invoice: %v", err)
	}

	got, err := store.GetInvoice(ctx, "i1")
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if len(got.Lines) != 1 || got.Lines[0].Description != "Audit" {
		t.Fatalf("expected replaced lines, got %+v", got.Lines)
	}
	if got.Notes != "Thanks" || got.Total.StringFixed(2) != "37.20" {
		t.Fatalf("unexpected update result notes=%q total=%s", got.Notes, got.Total)
	}

	missing := testInvoice("nope", "9999", "c1", issue)
	if _, err := store.UpdateInvoice(ctx, missing); invoice.KindFromError(err) != invoice.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStore_ListInvoices(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newTestDB(t))
	seedClient(t, store, "c1", "Acme OÜ")
	seedClient(t, store, "c2", "Viridian AS")

	jan := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, inv := range []invoice.Invoice{
		testInvoice("i1", "2025-0001", "c1", jan),
		testInvoice("i2", "2025-0002", "c2", feb),
		testInvoice("i3", "2025-0003", "c1", mar),
	} {
		if _, err := store.CreateInvoice(ctx, inv); err != nil {
			t.Fatalf("create invoice: %v", err)
		}
	}
	if err := store.SetStatus(ctx, "i1", invoice.StatusSent, mar); err != nil {
		t.Fatalf("set status: %v", err)
	}

	all, err := store.ListInvoices(ctx, invoice.InvoiceFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "i3" || all[2].ID != "i1" {
		t.Fatalf("expected newest first, got %v", invoiceIDs(all))
	}
	if len(all[1].Lines) != 2 {
		t.Fatalf("expected lines to be loaded for listed invoices")
	}

	cases := []struct {
		name   string
		filter invoice.InvoiceFilter
		want   []string
	}{
		{"status", invoice.InvoiceFilter{Status: invoice.StatusSent}, []string{"i1"}},
		{"client", invoice.InvoiceFilter{ClientID: "c1"}, []string{"i3", "i1"}},
		{"client name query", invoice.InvoiceFilter{Query: "viridian"}, []string{"i2"}},
		{"number query", invoice.InvoiceFilter{Query: "0003"}, []string{"i3"}},
		{"due before", invoice.InvoiceFilter{DueBefore: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}, []string{"i1"}},
		{"limit", invoice.InvoiceFilter{Limit: 2}, []string{"i3", "i2"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := store.ListInvoices(ctx, tc.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if ids := invoiceIDs(got); strings.Join(ids, ",") != strings.Join(tc.want, ",") {
				t.Fatalf("expected %v, got %v", tc.want, ids)
			}
		})
	}
}

func TestStore_StatusNumbersDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newTestDB(t))
	seedClient(t, store, "c1", "Acme OÜ")
	issue := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for _, inv := range []invoice.Invoice{
		testInvoice("i1", "2025-0001", "c1", issue),
		testInvoice("i2", "2025-0002", "c1", issue),
		testInvoice("i3", "2024-0009", "c1", issue.AddDate(-1, 0, 0)),
	} {
		if _, err := store.CreateInvoice(ctx, inv); err != nil {
			t.Fatalf("create invoice: %v", err)
		}
	}

	numbers, err := store.NumbersWithPrefix(ctx, "2025-")
	if err != nil {
		t.Fatalf("numbers: %v", err)
	}
	if strings.Join(numbers, ",") != "2025-0001,2025-0002" {
		t.Fatalf("unexpected numbers %v", numbers)
	}

	paidAt := time.Date(2025, 3, 20, 8, 0, 0, 0, time.UTC)
	if err := store.SetStatus(ctx, "i2", invoice.StatusPaid, paidAt); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, err := store.GetInvoice(ctx, "i2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != invoice.StatusPaid || !got.UpdatedAt.Equal(paidAt) {
		t.Fatalf("unexpected status %s at %s", got.Status, got.UpdatedAt)
	}
	if err := store.SetStatus(ctx, "missing", invoice.StatusPaid, paidAt); invoice.KindFromError(err) != invoice.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := store.DeleteInvoice(ctx, "i1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetInvoice(ctx, "i1"); invoice.KindFromError(err) != invoice.KindNotFound {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := store.DeleteInvoice(ctx, "i1"); invoice.KindFromError(err) != invoice.KindNotFound {
		t.Fatalf("expected not found deleting twice, got %v", err)
	}
	remaining, err := store.DB.NewSelect().Model((*lineModel)(nil)).Where("invoice_id = ?", "i1").Count(ctx)
	if err != nil {
		t.Fatalf("count lines: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected lines to be deleted, got %d", remaining)
	}
}

func TestStore_ServiceScenario(t *testing.T) {
	ctx := context.Background()
	var rendered invoice.Invoice
	svc := invoice.NewService(invoice.ServiceConfig{
		Store: NewStore(newTestDB(t)),
		PDF: pdfFunc(func(ctx context.Context, inv invoice.Invoice, opts invoice.RenderOptions) ([]byte, error) {
			_ = ctx
			_ = opts
			rendered = inv
			return []byte("%PDF-1.7"), nil
		}),
		Now: func() time.Time { return time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC) },
	})

	client, err := svc.CreateClient(ctx, invoice.Client{Name: "Acme OÜ"})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	inv, err := svc.CreateInvoice(ctx, invoice.Invoice{
		Number:   "1001",
		ClientID: client.ID,
		VATRate:  decimal.Zero,
		Lines: []invoice.LineItem{
			{Description: "Consulting", Quantity: dec("1"), UnitPrice: dec("100")},
			{Description: "License", Quantity: dec("2"), UnitPrice: dec("50")},
		},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	doc, err := svc.RenderPDF(ctx, inv.ID, invoice.RenderOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if doc.Filename != "invoice_1001_standard.pdf" {
		t.Fatalf("unexpected filename %q", doc.Filename)
	}
	if rendered.Total.StringFixed(2) != "200.00" || rendered.Client.Name != "Acme OÜ" {
		t.Fatalf("unexpected snapshot total=%s client=%q", rendered.Total, rendered.Client.Name)
	}
}

type pdfFunc func(ctx context.Context, inv invoice.Invoice, opts invoice.RenderOptions) ([]byte, error)

func (f pdfFunc) RenderPDF(ctx context.Context, inv invoice.Invoice, opts invoice.RenderOptions) ([]byte, error) {
	return f(ctx, inv, opts)
}

func invoiceIDs(invoices []invoice.Invoice) []string {
	ids := make([]string, 0, len(invoices))
	for _, inv := range invoices {
		ids = append(ids, inv.ID)
	}
	return ids
}
