package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-invoice/adapters/invoiceapi"
	"github.com/goliatone/go-invoice/command"
	"github.com/goliatone/go-invoice/invoice"
	"github.com/goliatone/go-invoice/query"
	"github.com/goliatone/go-router"
	"github.com/shopspring/decimal"
)

const (
	dateLayout   = "2006-01-02"
	formLineRows = 5
)

// Pages renders the HTML screens through the command dispatcher.
type Pages struct {
	APIBase string
	Logger  invoice.Logger
	Now     func() time.Time
}

type invoiceRow struct {
	ID          string
	Number      string
	ClientName  string
	IssueDate   string
	DueDate     string
	Subtotal    string
	VATRate     string
	Tax         string
	Total       string
	Currency    string
	Status      string
	StatusLabel string
	Badge       string
	Editable    bool
	Next        []statusOption
	Lines       []lineRow
	Notes       string
}

type lineRow struct {
	Position    int
	Description string
	Quantity    string
	UnitPrice   string
	Amount      string
}

type statusOption struct {
	Value string
	Label string
}

type clientRow struct {
	ID              string
	Name            string
	RegistryCode    string
	Email           string
	Phone           string
	Address         string
	InvoiceCount    int
	TotalRevenue    string
	LastInvoiceDate string
}

type formLine struct {
	Index       int
	Description string
	Quantity    string
	UnitPrice   string
}

func newInvoiceRow(inv invoice.Invoice) invoiceRow {
	row := invoiceRow{
		ID:          inv.ID,
		Number:      inv.Number,
		ClientName:  inv.Client.Name,
		IssueDate:   inv.IssueDate.Format(dateLayout),
		DueDate:     inv.DueDate.Format(dateLayout),
		Subtotal:    inv.Subtotal.StringFixed(2),
		VATRate:     inv.VATRate.String(),
		Tax:         inv.Tax.StringFixed(2),
		Total:       inv.Total.StringFixed(2),
		Currency:    inv.Currency,
		Status:      string(inv.Status),
		StatusLabel: inv.Status.Label(),
		Badge:       inv.Status.Badge(),
		Editable:    inv.Status.Editable(),
		Notes:       inv.Notes,
	}
	for _, next := range inv.Status.Next() {
		row.Next = append(row.Next, statusOption{Value: string(next), Label: next.Label()})
	}
	for _, line := range inv.Lines {
		row.Lines = append(row.Lines, lineRow{
			Position:    line.Position,
			Description: line.Description,
			Quantity:    line.Quantity.String(),
			UnitPrice:   line.UnitPrice.StringFixed(2),
			Amount:      line.Amount.StringFixed(2),
		})
	}
	return row
}

func newClientRow(client invoice.Client, stats invoice.ClientStats) clientRow {
	row := clientRow{
		ID:           client.ID,
		Name:         client.Name,
		RegistryCode: client.RegistryCode,
		Email:        client.Email,
		Phone:        client.Phone,
		Address:      client.Address,
		InvoiceCount: stats.InvoiceCount,
		TotalRevenue: stats.TotalRevenue.StringFixed(2),
	}
	if !stats.LastInvoiceDate.IsZero() {
		row.LastInvoiceDate = stats.LastInvoiceDate.Format(dateLayout)
	}
	return row
}

// invoiceForm fills the form with an existing invoice, padding empty line rows.
func invoiceForm(inv invoice.Invoice) map[string]any {
	rows := formLineRows
	if len(inv.Lines) >= rows {
		rows = len(inv.Lines) + 1
	}
	lines := make([]formLine, rows)
	for i := range lines {
		lines[i] = formLine{Index: i}
		if i < len(inv.Lines) {
			lines[i].Description = inv.Lines[i].Description
			lines[i].Quantity = inv.Lines[i].Quantity.String()
			lines[i].UnitPrice = inv.Lines[i].UnitPrice.StringFixed(2)
		}
	}
	return map[string]any{
		"invoice_id": inv.ID,
		"number":     inv.Number,
		"client_id":  inv.ClientID,
		"issue_date": inv.IssueDate.Format(dateLayout),
		"due_date":   inv.DueDate.Format(dateLayout),
		"vat_rate":   inv.VATRate.String(),
		"currency":   inv.Currency,
		"notes":      inv.Notes,
		"lines":      lines,
	}
}

func newInvoiceRows(invoices []invoice.Invoice) []invoiceRow {
	rows := make([]invoiceRow, 0, len(invoices))
	for _, inv := range invoices {
		rows = append(rows, newInvoiceRow(inv))
	}
	return rows
}

func templateNames() []string {
	names := make([]string, 0, len(invoice.Templates))
	for _, name := range invoice.Templates {
		names = append(names, string(name))
	}
	return names
}

func statusOptions() []statusOption {
	out := make([]statusOption, 0, len(invoice.Statuses))
	for _, status := range invoice.Statuses {
		out = append(out, statusOption{Value: string(status), Label: status.Label()})
	}
	return out
}

// Overview handles GET /.
func (p *Pages) Overview(c router.Context) error {
	overview, err := dispatcher.Query[query.Overview, invoice.Overview](c.Context(), query.Overview{})
	if err != nil {
		return p.renderError(c, err)
	}
	counts := make([]map[string]any, 0, len(invoice.Statuses))
	for _, status := range invoice.Statuses {
		counts = append(counts, map[string]any{
			"label": status.Label(),
			"badge": status.Badge(),
			"count": overview.Counts[status],
			"total": overview.TotalsByStatus[status].StringFixed(2),
		})
	}
	return c.Render("overview", router.ViewContext{
		"title":              "Overview",
		"revenue_this_month": overview.RevenueThisMonth.StringFixed(2),
		"outstanding":        overview.Outstanding.StringFixed(2),
		"unpaid_count":       overview.UnpaidCount,
		"overdue_count":      overview.OverdueCount,
		"cash_in":            overview.CashIn.StringFixed(2),
		"invoice_count":      overview.InvoiceCount,
		"average_days":       overview.AverageDaysToPay,
		"counts":             counts,
		"recent":             newInvoiceRows(overview.Recent),
		"api_base":           p.APIBase,
	})
}

// ListInvoices handles GET /invoices.
func (p *Pages) ListInvoices(c router.Context) error {
	filter := invoice.InvoiceFilter{
		Status:   invoice.Status(strings.TrimSpace(c.Query("status"))),
		ClientID: strings.TrimSpace(c.Query("client_id")),
		Query:    strings.TrimSpace(c.Query("q")),
	}
	invoices, err := dispatcher.Query[query.ListInvoices, []invoice.Invoice](c.Context(), query.ListInvoices{Filter: filter})
	if err != nil {
		return p.renderError(c, err)
	}
	return c.Render("invoices", router.ViewContext{
		"title":     "Invoices",
		"invoices":  newInvoiceRows(invoices),
		"statuses":  statusOptions(),
		"templates": templateNames(),
		"status":    string(filter.Status),
		"q":         filter.Query,
		"api_base":  p.APIBase,
	})
}

// NewInvoiceForm handles GET /invoices/new.
func (p *Pages) NewInvoiceForm(c router.Context) error {
	today := p.now()
	lines := make([]formLine, formLineRows)
	for i := range lines {
		lines[i] = formLine{Index: i}
	}
	lines[0].Quantity = "1"
	return p.renderInvoiceForm(c, http.StatusOK, map[string]any{
		"issue_date": today.Format(dateLayout),
		"due_date":   today.AddDate(0, 0, invoice.DefaultPaymentDays).Format(dateLayout),
		"vat_rate":   invoice.DefaultVATRate.String(),
		"currency":   invoice.DefaultCurrency,
		"client_id":  c.Query("client_id"),
		"lines":      lines,
	}, "")
}

// CreateInvoice handles POST /invoices/new.
func (p *Pages) CreateInvoice(c router.Context) error {
	inv, form, err := parseInvoiceForm(c)
	if err == nil {
		inv, err = dispatcher.DispatchWithResult[command.CreateInvoice, invoice.Invoice](c.Context(), command.CreateInvoice{Invoice: inv})
	}
	if err != nil {
		status := invoiceapi.StatusForError(err)
		if status >= http.StatusInternalServerError {
			return p.renderError(c, err)
		}
		return p.renderInvoiceForm(c, status, form, errorMessage(err))
	}
	p.logger().Infof("invoice %s created from form", inv.Number)
	return c.Redirect("/invoices/"+inv.ID, http.StatusSeeOther)
}

// EditInvoiceForm handles GET /invoices/:id/edit.
func (p *Pages) EditInvoiceForm(c router.Context) error {
	id := c.Param("id")
	inv, err := dispatcher.Query[query.GetInvoice, invoice.Invoice](c.Context(), query.GetInvoice{InvoiceID: id})
	if err != nil {
		return p.renderError(c, err)
	}
	if !inv.Status.Editable() {
		return p.redirectWithFlash(c, id, invoice.NewError(invoice.KindConflict, "paid invoices are read-only", nil))
	}
	return p.renderInvoiceForm(c, http.StatusOK, invoiceForm(inv), "")
}

// UpdateInvoice handles POST /invoices/:id/edit.
func (p *Pages) UpdateInvoice(c router.Context) error {
	id := c.Param("id")
	inv, form, err := parseInvoiceForm(c)
	form["invoice_id"] = id
	if err == nil {
		inv.ID = id
		inv, err = dispatcher.DispatchWithResult[command.UpdateInvoice, invoice.Invoice](c.Context(), command.UpdateInvoice{Invoice: inv})
	}
	if err != nil {
		status := invoiceapi.StatusForError(err)
		if status == http.StatusConflict || status == http.StatusNotFound {
			return p.redirectWithFlash(c, id, err)
		}
		if status >= http.StatusInternalServerError {
			return p.renderError(c, err)
		}
		return p.renderInvoiceForm(c, status, form, errorMessage(err))
	}
	p.logger().Infof("invoice %s updated from form", inv.Number)
	return c.Redirect("/invoices/"+inv.ID, http.StatusSeeOther)
}

// ShowInvoice handles GET /invoices/:id.
func (p *Pages) ShowInvoice(c router.Context) error {
	inv, err := dispatcher.Query[query.GetInvoice, invoice.Invoice](c.Context(), query.GetInvoice{InvoiceID: c.Param("id")})
	if err != nil {
		return p.renderError(c, err)
	}
	return c.Render("invoice", router.ViewContext{
		"title":     "Invoice " + inv.Number,
		"invoice":   newInvoiceRow(inv),
		"client":    inv.Client,
		"templates": templateNames(),
		"api_base":  p.APIBase,
		"flash":     c.Query("flash"),
	})
}

// ChangeStatus handles POST /invoices/:id/status.
func (p *Pages) ChangeStatus(c router.Context) error {
	id := c.Param("id")
	msg := command.ChangeStatus{InvoiceID: id, Status: invoice.Status(c.FormValue("status"))}
	if err := dispatcher.Dispatch(c.Context(), msg); err != nil {
		return p.redirectWithFlash(c, id, err)
	}
	return c.Redirect("/invoices/"+id, http.StatusSeeOther)
}

// DuplicateInvoice handles POST /invoices/:id/duplicate.
func (p *Pages) DuplicateInvoice(c router.Context) error {
	id := c.Param("id")
	dup, err := dispatcher.DispatchWithResult[command.DuplicateInvoice, invoice.Invoice](c.Context(), command.DuplicateInvoice{InvoiceID: id})
	if err != nil {
		return p.redirectWithFlash(c, id, err)
	}
	return c.Redirect("/invoices/"+dup.ID, http.StatusSeeOther)
}

// SendInvoice handles POST /invoices/:id/send.
func (p *Pages) SendInvoice(c router.Context) error {
	id := c.Param("id")
	tpl, _ := invoice.ParseTemplateName(c.FormValue("template"))
	if err := dispatcher.Dispatch(c.Context(), command.SendInvoice{InvoiceID: id, Template: tpl}); err != nil {
		return p.redirectWithFlash(c, id, err)
	}
	return c.Redirect("/invoices/"+id+"?flash=sent", http.StatusSeeOther)
}

// DeleteInvoice handles POST /invoices/:id/delete.
func (p *Pages) DeleteInvoice(c router.Context) error {
	id := c.Param("id")
	if err := dispatcher.Dispatch(c.Context(), command.DeleteInvoice{InvoiceID: id}); err != nil {
		return p.redirectWithFlash(c, id, err)
	}
	return c.Redirect("/invoices", http.StatusSeeOther)
}

// ListClients handles GET /clients.
func (p *Pages) ListClients(c router.Context) error {
	return p.renderClients(c, http.StatusOK, invoice.Client{}, "")
}

// CreateClient handles POST /clients.
func (p *Pages) CreateClient(c router.Context) error {
	client := clientFromForm(c)
	if _, err := dispatcher.DispatchWithResult[command.CreateClient, invoice.Client](c.Context(), command.CreateClient{Client: client}); err != nil {
		status := invoiceapi.StatusForError(err)
		if status >= http.StatusInternalServerError {
			return p.renderError(c, err)
		}
		return p.renderClients(c, status, client, errorMessage(err))
	}
	return c.Redirect("/clients", http.StatusSeeOther)
}

// ShowClient handles GET /clients/:id.
func (p *Pages) ShowClient(c router.Context) error {
	client, err := dispatcher.Query[query.GetClient, invoice.Client](c.Context(), query.GetClient{ClientID: c.Param("id")})
	if err != nil {
		return p.renderError(c, err)
	}
	return p.renderClient(c, http.StatusOK, client, client, "")
}

// UpdateClient handles POST /clients/:id/edit.
func (p *Pages) UpdateClient(c router.Context) error {
	id := c.Param("id")
	form := clientFromForm(c)
	form.ID = id
	if _, err := dispatcher.DispatchWithResult[command.UpdateClient, invoice.Client](c.Context(), command.UpdateClient{Client: form}); err != nil {
		status := invoiceapi.StatusForError(err)
		if status == http.StatusNotFound || status >= http.StatusInternalServerError {
			return p.renderError(c, err)
		}
		current, qerr := dispatcher.Query[query.GetClient, invoice.Client](c.Context(), query.GetClient{ClientID: id})
		if qerr != nil {
			return p.renderError(c, qerr)
		}
		return p.renderClient(c, status, current, form, errorMessage(err))
	}
	return c.Redirect("/clients/"+id+"?flash=saved", http.StatusSeeOther)
}

// DeleteClient handles POST /clients/:id/delete.
func (p *Pages) DeleteClient(c router.Context) error {
	id := c.Param("id")
	if err := dispatcher.Dispatch(c.Context(), command.DeleteClient{ClientID: id}); err != nil {
		status := invoiceapi.StatusForError(err)
		if status == http.StatusNotFound || status >= http.StatusInternalServerError {
			return p.renderError(c, err)
		}
		p.logger().Debugf("client %s delete refused: %v", id, err)
		return c.Redirect("/clients/"+id+"?flash="+url.QueryEscape(errorMessage(err)), http.StatusSeeOther)
	}
	return c.Redirect("/clients", http.StatusSeeOther)
}

func (p *Pages) renderClient(c router.Context, status int, client, form invoice.Client, formError string) error {
	filter := invoice.InvoiceFilter{ClientID: client.ID}
	invoices, err := dispatcher.Query[query.ListInvoices, []invoice.Invoice](c.Context(), query.ListInvoices{Filter: filter})
	if err != nil {
		return p.renderError(c, err)
	}
	stats := invoice.BuildClientStats(invoices)[client.ID]
	return c.Status(status).Render("client", router.ViewContext{
		"title":    client.Name,
		"client":   newClientRow(client, stats),
		"invoices": newInvoiceRows(invoices),
		"form":     form,
		"error":    formError,
		"flash":    c.Query("flash"),
		"api_base": p.APIBase,
	})
}

func (p *Pages) renderClients(c router.Context, status int, form invoice.Client, formError string) error {
	search := strings.TrimSpace(c.Query("q"))
	clients, err := dispatcher.Query[query.ListClients, []invoice.Client](c.Context(), query.ListClients{Filter: invoice.ClientFilter{Query: search}})
	if err != nil {
		return p.renderError(c, err)
	}
	invoices, err := dispatcher.Query[query.ListInvoices, []invoice.Invoice](c.Context(), query.ListInvoices{})
	if err != nil {
		return p.renderError(c, err)
	}
	stats := invoice.BuildClientStats(invoices)
	rows := make([]clientRow, 0, len(clients))
	for _, client := range clients {
		rows = append(rows, newClientRow(client, stats[client.ID]))
	}
	return c.Status(status).Render("clients", router.ViewContext{
		"title":   "Clients",
		"clients": rows,
		"q":       search,
		"form":    form,
		"error":   formError,
	})
}

// renderInvoiceForm serves both create and edit; an invoice_id in the form selects edit.
func (p *Pages) renderInvoiceForm(c router.Context, status int, form map[string]any, formError string) error {
	clients, err := dispatcher.Query[query.ListClients, []invoice.Client](c.Context(), query.ListClients{})
	if err != nil {
		return p.renderError(c, err)
	}
	view := router.ViewContext{
		"title":   "New invoice",
		"action":  "/invoices/new",
		"submit":  "Create invoice",
		"clients": clients,
		"form":    form,
		"error":   formError,
	}
	if id, _ := form["invoice_id"].(string); id != "" {
		view["title"] = "Edit invoice"
		if number, _ := form["number"].(string); number != "" {
			view["title"] = "Edit invoice " + number
		}
		view["action"] = "/invoices/" + id + "/edit"
		view["submit"] = "Save invoice"
	}
	return c.Status(status).Render("invoice_new", view)
}

func (p *Pages) redirectWithFlash(c router.Context, id string, err error) error {
	status := invoiceapi.StatusForError(err)
	if status == http.StatusNotFound || status >= http.StatusInternalServerError {
		return p.renderError(c, err)
	}
	p.logger().Debugf("invoice %s action refused: %v", id, err)
	return c.Redirect("/invoices/"+id+"?flash="+url.QueryEscape(errorMessage(err)), http.StatusSeeOther)
}

func (p *Pages) renderError(c router.Context, err error) error {
	status := invoiceapi.StatusForError(err)
	if status >= http.StatusInternalServerError {
		p.logger().Errorf("page %s failed: %v", c.Path(), err)
	}
	return c.Status(status).Render("error", router.ViewContext{
		"title":   http.StatusText(status),
		"status":  status,
		"message": errorMessage(err),
	})
}

func (p *Pages) logger() invoice.Logger {
	if p.Logger == nil {
		return invoice.NopLogger{}
	}
	return p.Logger
}

func (p *Pages) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func parseInvoiceForm(c router.Context) (invoice.Invoice, map[string]any, error) {
	form := map[string]any{
		"client_id":  c.FormValue("client_id"),
		"issue_date": c.FormValue("issue_date"),
		"due_date":   c.FormValue("due_date"),
		"vat_rate":   c.FormValue("vat_rate"),
		"currency":   c.FormValue("currency"),
		"notes":      c.FormValue("notes"),
	}
	inv := invoice.Invoice{
		ClientID: strings.TrimSpace(c.FormValue("client_id")),
		Currency: strings.TrimSpace(c.FormValue("currency")),
		Notes:    strings.TrimSpace(c.FormValue("notes")),
		VATRate:  invoice.DefaultVATRate,
	}

	lines := make([]formLine, formLineRows)
	var firstErr error
	fail := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}
	for i := range lines {
		lines[i] = formLine{
			Index:       i,
			Description: strings.TrimSpace(c.FormValue(fmt.Sprintf("description_%d", i))),
			Quantity:    strings.TrimSpace(c.FormValue(fmt.Sprintf("quantity_%d", i))),
			UnitPrice:   strings.TrimSpace(c.FormValue(fmt.Sprintf("unit_price_%d", i))),
		}
		line := lines[i]
		if line.Description == "" && line.UnitPrice == "" {
			continue
		}
		qty, err := parseDecimalField("quantity", line.Quantity, decimal.NewFromInt(1))
		if err != nil {
			fail(err)
			continue
		}
		price, err := parseDecimalField("unit price", line.UnitPrice, decimal.Zero)
		if err != nil {
			fail(err)
			continue
		}
		inv.Lines = append(inv.Lines, invoice.LineItem{
			Position:    len(inv.Lines) + 1,
			Description: line.Description,
			Quantity:    qty,
			UnitPrice:   price,
		})
	}
	form["lines"] = lines

	if value := strings.TrimSpace(c.FormValue("vat_rate")); value != "" {
		rate, err := parseDecimalField("VAT rate", value, invoice.DefaultVATRate)
		if err != nil {
			fail(err)
		}
		inv.VATRate = rate
	}
	var err error
	if inv.IssueDate, err = parseDateField("issue date", c.FormValue("issue_date")); err != nil {
		fail(err)
	}
	if inv.DueDate, err = parseDateField("due date", c.FormValue("due_date")); err != nil {
		fail(err)
	}
	return inv, form, firstErr
}

func clientFromForm(c router.Context) invoice.Client {
	return invoice.Client{
		Name:         c.FormValue("name"),
		RegistryCode: c.FormValue("registry_code"),
		Email:        c.FormValue("email"),
		Phone:        c.FormValue("phone"),
		Address:      c.FormValue("address"),
	}
}

func parseDecimalField(field, value string, fallback decimal.Decimal) (decimal.Decimal, error) {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", ".")
	if value == "" {
		return fallback, nil
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return fallback, invoice.NewError(invoice.KindValidation, field+" must be a number", err)
	}
	return parsed, nil
}

func parseDateField(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, invoice.NewError(invoice.KindValidation, field+" must be YYYY-MM-DD", err)
	}
	return parsed, nil
}

func errorMessage(err error) string {
	if ge := invoice.AsGoError(err); ge != nil {
		return ge.Message
	}
	return ""
}
