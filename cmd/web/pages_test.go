package main

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-invoice/command"
	"github.com/goliatone/go-invoice/invoice"
	"github.com/goliatone/go-router"
	"github.com/shopspring/decimal"
)

type pageContext struct {
	path     string
	params   map[string]string
	query    map[string]string
	form     map[string]string
	locals   map[any]any
	headers  map[string]string
	ctx      context.Context
	status   int
	view     string
	bind     router.ViewContext
	location string
}

func newPageContext(path string, params, form map[string]string) *pageContext {
	if params == nil {
		params = map[string]string{}
	}
	if form == nil {
		form = map[string]string{}
	}
	return &pageContext{
		path:    path,
		params:  params,
		query:   map[string]string{},
		form:    form,
		locals:  map[any]any{},
		headers: map[string]string{},
		ctx:     context.Background(),
	}
}

func (c *pageContext) Bind(v any) error { return nil }

func (c *pageContext) Context() context.Context { return c.ctx }

func (c *pageContext) SetContext(ctx context.Context) { c.ctx = ctx }

func (c *pageContext) Next() error { return nil }

func (c *pageContext) RouteName() string { return "" }

func (c *pageContext) RouteParams() map[string]string { return c.params }

func (c *pageContext) Method() string { return http.MethodGet }

func (c *pageContext) Path() string { return c.path }

func (c *pageContext) Param(name string, defaultValue ...string) string {
	return lookup(c.params, name, defaultValue)
}

func (c *pageContext) ParamsInt(key string, defaultValue int) int { return defaultValue }

func (c *pageContext) Query(name string, defaultValue ...string) string {
	return lookup(c.query, name, defaultValue)
}

func (c *pageContext) QueryValues(name string) []string {
	if val, ok := c.query[name]; ok {
		return []string{val}
	}
	return nil
}

func (c *pageContext) QueryInt(name string, defaultValue int) int { return defaultValue }

func (c *pageContext) Queries() map[string]string { return c.query }

func (c *pageContext) Body() []byte { return nil }

func (c *pageContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		c.locals[key] = value[0]
		return value[0]
	}
	return c.locals[key]
}

func (c *pageContext) LocalsMerge(key any, value map[string]any) map[string]any {
	merged, _ := c.locals[key].(map[string]any)
	if merged == nil {
		merged = map[string]any{}
	}
	for k, v := range value {
		merged[k] = v
	}
	c.locals[key] = merged
	return merged
}

func (c *pageContext) Render(name string, bind any, layouts ...string) error {
	c.view = name
	c.bind, _ = bind.(router.ViewContext)
	if c.status == 0 {
		c.status = http.StatusOK
	}
	return nil
}

func (c *pageContext) Cookie(cookie *router.Cookie) {}

func (c *pageContext) Cookies(key string, defaultValue ...string) string {
	return lookup(nil, key, defaultValue)
}

func (c *pageContext) CookieParser(out any) error { return nil }

func (c *pageContext) Redirect(location string, status ...int) error {
	c.location = location
	c.status = http.StatusFound
	if len(status) > 0 {
		c.status = status[0]
	}
	return nil
}

func (c *pageContext) RedirectToRoute(routeName string, params router.ViewContext, status ...int) error {
	return nil
}

func (c *pageContext) RedirectBack(fallback string, status ...int) error { return nil }

func (c *pageContext) Header(name string) string { return c.headers[name] }

func (c *pageContext) Referer() string { return "" }

func (c *pageContext) OriginalURL() string { return c.path }

func (c *pageContext) FormFile(key string) (*multipart.FileHeader, error) { return nil, nil }

func (c *pageContext) FormValue(key string, defaultValue ...string) string {
	return lookup(c.form, key, defaultValue)
}

func (c *pageContext) IP() string { return "127.0.0.1" }

func (c *pageContext) Status(code int) router.Context {
	c.status = code
	return c
}

func (c *pageContext) Send(body []byte) error { return nil }

func (c *pageContext) SendString(body string) error { return nil }

func (c *pageContext) SendStatus(code int) error {
	c.status = code
	return nil
}

func (c *pageContext) JSON(code int, v any) error {
	c.status = code
	return nil
}

func (c *pageContext) SendStream(r io.Reader) error { return nil }

func (c *pageContext) NoContent(code int) error {
	c.status = code
	return nil
}

func (c *pageContext) SetHeader(key, val string) router.Context {
	c.headers[key] = val
	return c
}

func (c *pageContext) Set(key string, value any) { c.locals[key] = value }

func (c *pageContext) Get(key string, def any) any {
	if val, ok := c.locals[key]; ok {
		return val
	}
	return def
}

func (c *pageContext) GetString(key string, def string) string {
	if val, ok := c.locals[key].(string); ok {
		return val
	}
	return def
}

func (c *pageContext) GetInt(key string, def int) int {
	if val, ok := c.locals[key].(int); ok {
		return val
	}
	return def
}

func (c *pageContext) GetBool(key string, def bool) bool {
	if val, ok := c.locals[key].(bool); ok {
		return val
	}
	return def
}

var _ router.Context = (*pageContext)(nil)

func lookup(values map[string]string, key string, defaultValue []string) string {
	if val, ok := values[key]; ok {
		return val
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func newPagesFixture(t *testing.T) (*Pages, invoice.Service, invoice.Client) {
	t.Helper()
	now := func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }
	svc := invoice.NewService(invoice.ServiceConfig{Store: invoice.NewMemoryStore(), Now: now})
	registration, err := command.RegisterInvoiceHandlers(nil, svc)
	if err != nil {
		t.Fatalf("register handlers: %v", err)
	}
	t.Cleanup(registration.Unsubscribe)

	client, err := svc.CreateClient(context.Background(), invoice.Client{Name: "Acme OÜ", Email: "billing@acme.test"})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return &Pages{APIBase: "/api", Logger: invoice.NopLogger{}, Now: now}, svc, client
}

func createPageInvoice(t *testing.T, svc invoice.Service, clientID string, price int64) invoice.Invoice {
	t.Helper()
	inv, err := svc.CreateInvoice(context.Background(), invoice.Invoice{
		ClientID:  clientID,
		IssueDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		DueDate:   time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		VATRate:   decimal.Zero,
		Lines: []invoice.LineItem{
			{Description: "Consulting", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(price)},
		},
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	return inv
}

func TestPages_InvoiceFormFlow(t *testing.T) {
	pages, svc, client := newPagesFixture(t)
	ctx := context.Background()

	create := newPageContext("/invoices/new", nil, map[string]string{
		"client_id":     client.ID,
		"issue_date":    "2025-03-01",
		"due_date":      "2025-03-15",
		"vat_rate":      "0",
		"description_0": "Design",
		"quantity_0":    "2",
		"unit_price_0":  "50",
	})
	if err := pages.CreateInvoice(create); err != nil {
		t.Fatalf("create: %v", err)
	}
	if create.status != http.StatusSeeOther || !strings.HasPrefix(create.location, "/invoices/") {
		t.Fatalf("expected redirect to invoice, got %d %q", create.status, create.location)
	}
	id := strings.TrimPrefix(create.location, "/invoices/")

	edit := newPageContext("/invoices/"+id+"/edit", map[string]string{"id": id}, nil)
	if err := pages.EditInvoiceForm(edit); err != nil {
		t.Fatalf("edit form: %v", err)
	}
	if edit.view != "invoice_new" || edit.bind["action"] != "/invoices/"+id+"/edit" || edit.bind["submit"] != "Save invoice" {
		t.Fatalf("unexpected edit view %q %+v", edit.view, edit.bind)
	}
	form, _ := edit.bind["form"].(map[string]any)
	lines, _ := form["lines"].([]formLine)
	if len(lines) != formLineRows || lines[0].Description != "Design" || lines[0].UnitPrice != "50.00" || lines[1].Description != "" {
		t.Fatalf("unexpected form lines %+v", lines)
	}

	update := newPageContext("/invoices/"+id+"/edit", map[string]string{"id": id}, map[string]string{
		"client_id":     client.ID,
		"issue_date":    "2025-03-01",
		"due_date":      "2025-03-20",
		"vat_rate":      "0",
		"description_0": "Design review",
		"quantity_0":    "2",
		"unit_price_0":  "75",
	})
	if err := pages.UpdateInvoice(update); err != nil {
		t.Fatalf("update: %v", err)
	}
	if update.status != http.StatusSeeOther || update.location != "/invoices/"+id {
		t.Fatalf("expected redirect after update, got %d %q", update.status, update.location)
	}

	saved, err := svc.GetInvoice(ctx, id)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if saved.Total.StringFixed(2) != "150.00" || saved.Lines[0].Description != "Design review" {
		t.Fatalf("update not applied: total=%s lines=%+v", saved.Total.StringFixed(2), saved.Lines)
	}
	if saved.DueDate.Format(dateLayout) != "2025-03-20" {
		t.Fatalf("expected new due date, got %s", saved.DueDate.Format(dateLayout))
	}
}

func TestPages_UpdateInvoiceValidation(t *testing.T) {
	pages, svc, client := newPagesFixture(t)
	inv := createPageInvoice(t, svc, client.ID, 100)

	c := newPageContext("/invoices/"+inv.ID+"/edit", map[string]string{"id": inv.ID}, map[string]string{
		"client_id":     client.ID,
		"description_0": "Consulting",
		"quantity_0":    "lots",
		"unit_price_0":  "100",
	})
	if err := pages.UpdateInvoice(c); err != nil {
		t.Fatalf("update: %v", err)
	}
	if c.view != "invoice_new" || c.status != http.StatusBadRequest {
		t.Fatalf("expected form re-render with 400, got %q %d", c.view, c.status)
	}
	if c.bind["error"] != "quantity must be a number" || c.bind["action"] != "/invoices/"+inv.ID+"/edit" {
		t.Fatalf("unexpected form view %+v", c.bind)
	}
}

func TestPages_PaidInvoiceIsReadOnly(t *testing.T) {
	pages, svc, client := newPagesFixture(t)
	ctx := context.Background()
	inv := createPageInvoice(t, svc, client.ID, 100)
	if _, err := svc.ChangeStatus(ctx, inv.ID, invoice.StatusPaid); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	edit := newPageContext("/invoices/"+inv.ID+"/edit", map[string]string{"id": inv.ID}, nil)
	if err := pages.EditInvoiceForm(edit); err != nil {
		t.Fatalf("edit form: %v", err)
	}
	if edit.status != http.StatusSeeOther || !strings.Contains(edit.location, "read-only") {
		t.Fatalf("expected read-only redirect, got %d %q", edit.status, edit.location)
	}

	update := newPageContext("/invoices/"+inv.ID+"/edit", map[string]string{"id": inv.ID}, map[string]string{
		"client_id":     client.ID,
		"description_0": "Changed",
		"unit_price_0":  "1",
	})
	if err := pages.UpdateInvoice(update); err != nil {
		t.Fatalf("update: %v", err)
	}
	if update.status != http.StatusSeeOther || !strings.HasPrefix(update.location, "/invoices/"+inv.ID+"?flash=") {
		t.Fatalf("expected flash redirect, got %d %q", update.status, update.location)
	}
	unchanged, err := svc.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if unchanged.Lines[0].Description != "Consulting" {
		t.Fatalf("paid invoice was modified: %+v", unchanged.Lines)
	}
}

func TestPages_ClientDetailAndStats(t *testing.T) {
	pages, svc, client := newPagesFixture(t)
	ctx := context.Background()
	paid := createPageInvoice(t, svc, client.ID, 100)
	createPageInvoice(t, svc, client.ID, 40)
	if _, err := svc.ChangeStatus(ctx, paid.ID, invoice.StatusSent); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if _, err := svc.CreateClient(ctx, invoice.Client{Name: "Idle Ltd"}); err != nil {
		t.Fatalf("create client: %v", err)
	}

	show := newPageContext("/clients/"+client.ID, map[string]string{"id": client.ID}, nil)
	if err := pages.ShowClient(show); err != nil {
		t.Fatalf("show client: %v", err)
	}
	row, _ := show.bind["client"].(clientRow)
	if show.view != "client" || row.InvoiceCount != 2 || row.TotalRevenue != "100.00" || row.LastInvoiceDate != "2025-03-01" {
		t.Fatalf("unexpected client detail %q %+v", show.view, row)
	}
	if invoices, _ := show.bind["invoices"].([]invoiceRow); len(invoices) != 2 {
		t.Fatalf("expected 2 client invoices, got %d", len(invoices))
	}

	list := newPageContext("/clients", nil, nil)
	if err := pages.ListClients(list); err != nil {
		t.Fatalf("list clients: %v", err)
	}
	rows, _ := list.bind["clients"].([]clientRow)
	if len(rows) != 2 {
		t.Fatalf("expected 2 clients, got %+v", rows)
	}
	for _, r := range rows {
		switch r.Name {
		case "Acme OÜ":
			if r.InvoiceCount != 2 || r.TotalRevenue != "100.00" {
				t.Fatalf("unexpected stats for %s: %+v", r.Name, r)
			}
		case "Idle Ltd":
			if r.InvoiceCount != 0 || r.TotalRevenue != "0.00" || r.LastInvoiceDate != "" {
				t.Fatalf("unexpected stats for %s: %+v", r.Name, r)
			}
		default:
			t.Fatalf("unexpected client %q", r.Name)
		}
	}
}

func TestPages_UpdateClient(t *testing.T) {
	pages, svc, client := newPagesFixture(t)

	c := newPageContext("/clients/"+client.ID+"/edit", map[string]string{"id": client.ID}, map[string]string{
		"name":  "Acme Group OÜ",
		"email": "ap@acme.test",
	})
	if err := pages.UpdateClient(c); err != nil {
		t.Fatalf("update client: %v", err)
	}
	if c.status != http.StatusSeeOther || c.location != "/clients/"+client.ID+"?flash=saved" {
		t.Fatalf("unexpected redirect %d %q", c.status, c.location)
	}
	saved, err := svc.GetClient(context.Background(), client.ID)
	if err != nil {
		t.Fatalf("get client: %v", err)
	}
	if saved.Name != "Acme Group OÜ" || saved.Email != "ap@acme.test" {
		t.Fatalf("update not applied: %+v", saved)
	}

	blank := newPageContext("/clients/"+client.ID+"/edit", map[string]string{"id": client.ID}, map[string]string{"name": " "})
	if err := pages.UpdateClient(blank); err != nil {
		t.Fatalf("update client: %v", err)
	}
	if blank.view != "client" || blank.status < 400 || blank.status >= 500 || blank.bind["error"] == "" {
		t.Fatalf("expected client form error, got %q %d %+v", blank.view, blank.status, blank.bind)
	}
}

func TestPages_DeleteClient(t *testing.T) {
	pages, svc, client := newPagesFixture(t)
	ctx := context.Background()
	createPageInvoice(t, svc, client.ID, 100)

	refused := newPageContext("/clients/"+client.ID+"/delete", map[string]string{"id": client.ID}, nil)
	if err := pages.DeleteClient(refused); err != nil {
		t.Fatalf("delete client: %v", err)
	}
	if refused.status != http.StatusSeeOther || !strings.HasPrefix(refused.location, "/clients/"+client.ID+"?flash=") {
		t.Fatalf("expected refusal redirect, got %d %q", refused.status, refused.location)
	}
	if _, err := svc.GetClient(ctx, client.ID); err != nil {
		t.Fatalf("client with invoices should remain: %v", err)
	}

	spare, err := svc.CreateClient(ctx, invoice.Client{Name: "Spare"})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	deleted := newPageContext("/clients/"+spare.ID+"/delete", map[string]string{"id": spare.ID}, nil)
	if err := pages.DeleteClient(deleted); err != nil {
		t.Fatalf("delete client: %v", err)
	}
	if deleted.status != http.StatusSeeOther || deleted.location != "/clients" {
		t.Fatalf("expected redirect to list, got %d %q", deleted.status, deleted.location)
	}
	if _, err := svc.GetClient(ctx, spare.ID); invoice.KindFromError(err) != invoice.KindNotFound {
		t.Fatalf("expected deleted client to be gone, got %v", err)
	}
}

func TestPages_OverviewMetrics(t *testing.T) {
	pages, svc, client := newPagesFixture(t)
	ctx := context.Background()
	inv := createPageInvoice(t, svc, client.ID, 100)
	createPageInvoice(t, svc, client.ID, 40)
	if _, err := svc.ChangeStatus(ctx, inv.ID, invoice.StatusPaid); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	c := newPageContext("/", nil, nil)
	if err := pages.Overview(c); err != nil {
		t.Fatalf("overview: %v", err)
	}
	if c.view != "overview" || c.bind["cash_in"] != "100.00" || c.bind["invoice_count"] != 2 || c.bind["average_days"] != 14 {
		t.Fatalf("unexpected overview %+v", c.bind)
	}
}
