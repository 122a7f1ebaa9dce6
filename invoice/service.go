package invoice

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

const maxNumberAttempts = 3

// Document is a rendered artifact ready to be served.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
	Invoice     Invoice
}

// Overview summarizes the invoice book.
type Overview struct {
	RevenueThisMonth decimal.Decimal            `json:"revenue_this_month"`
	CashIn           decimal.Decimal            `json:"cash_in"`
	Outstanding      decimal.Decimal            `json:"outstanding"`
	UnpaidCount      int                        `json:"unpaid_count"`
	OverdueCount     int                        `json:"overdue_count"`
	InvoiceCount     int                        `json:"invoice_count"`
	AverageDaysToPay int                        `json:"average_days_to_pay"`
	Counts           map[Status]int             `json:"counts"`
	TotalsByStatus   map[Status]decimal.Decimal `json:"totals_by_status"`
	Recent           []Invoice                  `json:"recent"`
}

// ClientStats summarizes one client's invoices.
type ClientStats struct {
	InvoiceCount    int             `json:"invoice_count"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	LastInvoiceDate time.Time       `json:"last_invoice_date,omitempty"`
}

// Service coordinates invoice operations across store, renderers and mailer.
type Service interface {
	CreateClient(ctx context.Context, client Client) (Client, error)
	UpdateClient(ctx context.Context, client Client) (Client, error)
	GetClient(ctx context.Context, id string) (Client, error)
	ListClients(ctx context.Context, filter ClientFilter) ([]Client, error)
	DeleteClient(ctx context.Context, id string) error

	CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	UpdateInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	GetInvoice(ctx context.Context, id string) (Invoice, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
	DeleteInvoice(ctx context.Context, id string) error
	ChangeStatus(ctx context.Context, id string, status Status) (Invoice, error)
	DuplicateInvoice(ctx context.Context, id string) (Invoice, error)
	SendInvoice(ctx context.Context, id string, opts RenderOptions) (Invoice, error)
	MarkOverdue(ctx context.Context, now time.Time) (int, error)

	RenderPDF(ctx context.Context, id string, opts RenderOptions) (Document, error)
	Preview(ctx context.Context, id string, opts RenderOptions) (Document, error)
	Register(ctx context.Context, filter InvoiceFilter) (Document, error)
	Overview(ctx context.Context) (Overview, error)
}

// ServiceConfig supplies dependencies for Service.
type ServiceConfig struct {
	Store           Store
	PDF             PDFRenderer
	HTML            HTMLRenderer
	Mailer          Mailer
	Logger          Logger
	DefaultTemplate TemplateName
	Now             func() time.Time
	IDGenerator     func() string
}

type service struct {
	store           Store
	pdf             PDFRenderer
	html            HTMLRenderer
	mailer          Mailer
	logger          Logger
	defaultTemplate TemplateName
	now             func() time.Time
	idGenerator     func() string
}

// NewService creates a Service with the provided configuration.
func NewService(cfg ServiceConfig) Service {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	idGen := cfg.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	tpl := cfg.DefaultTemplate
	if tpl == "" {
		tpl = TemplateStandard
	}
	return &service{
		store:           store,
		pdf:             cfg.PDF,
		html:            cfg.HTML,
		mailer:          cfg.Mailer,
		logger:          logger,
		defaultTemplate: tpl,
		now:             nowFn,
		idGenerator:     idGen,
	}
}

func (s *service) CreateClient(ctx context.Context, client Client) (Client, error) {
	client = normalizeClient(client)
	if err := ValidateClient(client); err != nil {
		return Client{}, err
	}
	client.ID = s.idGenerator()
	client.CreatedAt = s.now()
	created, err := s.store.CreateClient(ctx, client)
	if err != nil {
		return Client{}, AsGoError(err)
	}
	s.logger.Infof("client %s created", created.ID)
	return created, nil
}

func (s *service) UpdateClient(ctx context.Context, client Client) (Client, error) {
	if client.ID == "" {
		return Client{}, AsGoError(NewError(KindValidation, "client ID is required", nil))
	}
	existing, err := s.store.GetClient(ctx, client.ID)
	if err != nil {
		return Client{}, AsGoError(err)
	}
	client = normalizeClient(client)
	if err := ValidateClient(client); err != nil {
		return Client{}, err
	}
	client.CreatedAt = existing.CreatedAt
	updated, err := s.store.UpdateClient(ctx, client)
	if err != nil {
		return Client{}, AsGoError(err)
	}
	return updated, nil
}

func (s *service) GetClient(ctx context.Context, id string) (Client, error) {
	client, err := s.store.GetClient(ctx, id)
	if err != nil {
		return Client{}, AsGoError(err)
	}
	return client, nil
}

func (s *service) ListClients(ctx context.Context, filter ClientFilter) ([]Client, error) {
	clients, err := s.store.ListClients(ctx, filter)
	if err != nil {
		return nil, AsGoError(err)
	}
	return clients, nil
}

func (s *service) DeleteClient(ctx context.Context, id string) error {
	if _, err := s.store.GetClient(ctx, id); err != nil {
		return AsGoError(err)
	}
	invoices, err := s.store.ListInvoices(ctx, InvoiceFilter{ClientID: id, Limit: 1})
	if err != nil {
		return AsGoError(err)
	}
	if len(invoices) > 0 {
		return AsGoError(NewError(KindConflict, "client has invoices and cannot be deleted", nil))
	}
	if err := s.store.DeleteClient(ctx, id); err != nil {
		return AsGoError(err)
	}
	s.logger.Infof("client %s deleted", id)
	return nil
}

func (s *service) CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	now := s.now()
	inv = s.applyDefaults(inv, now)
	if err := ValidateInvoice(inv); err != nil {
		return Invoice{}, err
	}
	client, err := s.requireClient(ctx, inv.ClientID)
	if err != nil {
		return Invoice{}, err
	}

	inv = Recalculate(inv)
	inv.ID = s.idGenerator()
	inv.Status = StatusDraft
	inv.CreatedAt = now
	inv.UpdatedAt = now

	explicitNumber := inv.Number != ""
	var created Invoice
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		if !explicitNumber {
			number, err := s.nextNumber(ctx, inv.IssueDate.Year())
			if err != nil {
				return Invoice{}, AsGoError(err)
			}
			inv.Number = number
		}
		created, err = s.store.CreateInvoice(ctx, inv)
		if err == nil || explicitNumber || KindFromError(err) != KindConflict {
			break
		}
	}
	if err != nil {
		return Invoice{}, AsGoError(err)
	}
	created.Client = client
	s.logger.Infof("invoice %s created with number %s", created.ID, created.Number)
	return created, nil
}

func (s *service) UpdateInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	if inv.ID == "" {
		return Invoice{}, AsGoError(NewError(KindValidation, "invoice ID is required", nil))
	}
	existing, err := s.store.GetInvoice(ctx, inv.ID)
	if err != nil {
		return Invoice{}, AsGoError(err)
	}
	if !existing.Status.Editable() {
		return Invoice{}, AsGoError(NewError(KindConflict, "paid invoices are read-only", nil))
	}

	if inv.IssueDate.IsZero() {
		inv.IssueDate = existing.IssueDate
	}
	if inv.DueDate.IsZero() {
		inv.DueDate = existing.DueDate
	}
	now := s.now()
	inv = s.applyDefaults(inv, now)
	if inv.Number == "" {
		inv.Number = existing.Number
	}
	if err := ValidateInvoice(inv); err != nil {
		return Invoice{}, err
	}
	client, err := s.requireClient(ctx, inv.ClientID)
	if err != nil {
		return Invoice{}, err
	}

	inv = Recalculate(inv)
	inv.Status = existing.Status
	inv.CreatedAt = existing.CreatedAt
	inv.UpdatedAt = now
	updated, err := s.store.UpdateInvoice(ctx, inv)
	if err != nil {
		return Invoice{}, AsGoError(err)
	}
	updated.Client = client
	return updated, nil
}

func (s *service) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	inv, err := s.snapshot(ctx, id)
	if err != nil {
		return Invoice{}, AsGoError(err)
	}
	return inv, nil
}

func (s *service) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, AsGoError(NewError(KindValidation, fmt.Sprintf("unknown status %q", filter.Status), nil))
	}
	invoices, err := s.store.ListInvoices(ctx, filter)
	if err != nil {
		return nil, AsGoError(err)
	}
	if err := s.attachClients(ctx, invoices); err != nil {
		return nil, AsGoError(err)
	}
	for i := range invoices {
		invoices[i] = Recalculate(invoices[i])
	}
	return invoices, nil
}

func (s *service) DeleteInvoice(ctx context.Context, id string) error {
	existing, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return AsGoError(err)
	}
	if !existing.Status.Editable() {
		return AsGoError(NewError(KindConflict, "paid invoices are archived and cannot be deleted", nil))
	}
	if err := s.store.DeleteInvoice(ctx, id); err != nil {
		return AsGoError(err)
	}
	s.logger.Infof("invoice %s deleted", id)
	return nil
}

func (s *service) ChangeStatus(ctx context.Context, id string, status Status) (Invoice, error) {
	inv, err := s.snapshot(ctx, id)
	if err != nil {
		return Invoice{}, AsGoError(err)
	}
	now := s.now()
	if err := CheckTransition(inv, status, now); err != nil {
		return Invoice{}, AsGoError(err)
	}
	if inv.Status == status {
		return inv, nil
	}
	if err := s.store.SetStatus(ctx, id, status, now); err != nil {
		return Invoice{}, AsGoError(err)
	}
	s.logger.Infof("invoice %s status %s -> %s", inv.Number, inv.Status, status)
	inv.Status = status
	inv.UpdatedAt = now
	return inv, nil
}

func (s *service) DuplicateInvoice(ctx context.Context, id string) (Invoice, error) {
	source, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return Invoice{}, AsGoError(err)
	}
	today := dayOf(s.now())
	dup := Invoice{
		ClientID:  source.ClientID,
		IssueDate: today,
		DueDate:   today.AddDate(0, 0, DefaultPaymentDays),
		Lines:     append([]LineItem(nil), source.Lines...),
		VATRate:   source.VATRate,
		Currency:  source.Currency,
		Notes:     source.Notes,
	}
	created, err := s.CreateInvoice(ctx, dup)
	if err != nil {
		return Invoice{}, err
	}
	s.logger.Infof("invoice %s duplicated as %s", source.Number, created.Number)
	return created, nil
}

func (s *service) SendInvoice(ctx context.Context, id string, opts RenderOptions) (Invoice, error) {
	if s.mailer == nil {
		return Invoice{}, AsGoError(NewError(KindNotImpl, "mail delivery is not configured", nil))
	}
	doc, err := s.RenderPDF(ctx, id, opts)
	if err != nil {
		return Invoice{}, err
	}
	inv := doc.Invoice
	email := strings.TrimSpace(inv.Client.Email)
	if email == "" {
		return Invoice{}, AsGoError(NewError(KindValidation, "client email is required to send an invoice", nil))
	}

	msg := Mail{
		To:      []string{email},
		Subject: fmt.Sprintf("Invoice %s", inv.Number),
		Body: fmt.Sprintf("Hello %s,\n\nPlease find attached invoice %s for %s %s, due %s.\n",
			inv.Client.Name, inv.Number, inv.Total.StringFixed(moneyPlaces), inv.Currency, inv.DueDate.Format("2006-01-02")),
		Attachment: &Attachment{
			Filename:    doc.Filename,
			ContentType: doc.ContentType,
			Data:        doc.Data,
		},
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Errorf("invoice %s mail delivery failed: %v", inv.Number, err)
		return Invoice{}, AsGoError(err)
	}
	s.logger.Infof("invoice %s sent to %s", inv.Number, email)

	if inv.Status == StatusDraft {
		return s.ChangeStatus(ctx, id, StatusSent)
	}
	return inv, nil
}

func (s *service) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	if now.IsZero() {
		now = s.now()
	}
	candidates, err := s.store.ListInvoices(ctx, InvoiceFilter{Status: StatusSent, DueBefore: dayOf(now)})
	if err != nil {
		return 0, AsGoError(err)
	}
	count := 0
	for _, inv := range candidates {
		if err := ctx.Err(); err != nil {
			return count, AsGoError(err)
		}
		if !IsOverdue(inv, now) {
			continue
		}
		if err := s.store.SetStatus(ctx, inv.ID, StatusOverdue, now); err != nil {
			return count, AsGoError(err)
		}
		count++
	}
	if count > 0 {
		s.logger.Infof("marked %d invoices overdue", count)
	}
	return count, nil
}

func (s *service) RenderPDF(ctx context.Context, id string, opts RenderOptions) (Document, error) {
	if s.pdf == nil {
		return Document{}, AsGoError(NewConversionError("pdf renderer is not configured", nil))
	}
	inv, err := s.snapshot(ctx, id)
	if err != nil {
		return Document{}, AsGoError(err)
	}
	opts = s.renderOptions(opts)
	data, err := s.pdf.RenderPDF(ctx, inv, opts)
	if err != nil {
		s.logger.Errorf("invoice %s pdf render failed (%s): %v", inv.Number, KindFromError(err), err)
		return Document{}, AsGoError(err)
	}
	return Document{
		Filename:    PDFFilename(inv.Number, opts.Template),
		ContentType: ContentTypePDF,
		Data:        data,
		Invoice:     inv,
	}, nil
}

func (s *service) Preview(ctx context.Context, id string, opts RenderOptions) (Document, error) {
	if s.html == nil {
		return Document{}, AsGoError(NewTemplateRenderError("html renderer is not configured", nil))
	}
	inv, err := s.snapshot(ctx, id)
	if err != nil {
		return Document{}, AsGoError(err)
	}
	opts = s.renderOptions(opts)
	var buf bytes.Buffer
	if err := s.html.RenderHTML(ctx, inv, opts, &buf); err != nil {
		s.logger.Errorf("invoice %s preview failed: %v", inv.Number, err)
		return Document{}, AsGoError(err)
	}
	return Document{
		Filename:    PreviewFilename(inv.Number, opts.Template),
		ContentType: ContentTypeHTML,
		Data:        buf.Bytes(),
		Invoice:     inv,
	}, nil
}

func (s *service) Register(ctx context.Context, filter InvoiceFilter) (Document, error) {
	invoices, err := s.ListInvoices(ctx, filter)
	if err != nil {
		return Document{}, err
	}
	var buf bytes.Buffer
	if err := WriteRegisterXLSX(&buf, invoices); err != nil {
		return Document{}, AsGoError(err)
	}
	return Document{
		Filename:    fmt.Sprintf("invoices_%s.xlsx", s.now().Format("20060102")),
		ContentType: ContentTypeXLSX,
		Data:        buf.Bytes(),
	}, nil
}

func (s *service) Overview(ctx context.Context) (Overview, error) {
	invoices, err := s.ListInvoices(ctx, InvoiceFilter{})
	if err != nil {
		return Overview{}, err
	}
	return BuildOverview(invoices, s.now()), nil
}

// BuildOverview computes dashboard metrics from recomputed invoices.
func BuildOverview(invoices []Invoice, now time.Time) Overview {
	out := Overview{
		RevenueThisMonth: decimal.Zero,
		CashIn:           decimal.Zero,
		Outstanding:      decimal.Zero,
		InvoiceCount:     len(invoices),
		Counts:           make(map[Status]int, len(Statuses)),
		TotalsByStatus:   make(map[Status]decimal.Decimal, len(Statuses)),
	}
	for _, status := range Statuses {
		out.Counts[status] = 0
		out.TotalsByStatus[status] = decimal.Zero
	}

	year, month, _ := now.Date()
	paidDays, paidCount := 0, 0
	for _, inv := range invoices {
		out.Counts[inv.Status]++
		out.TotalsByStatus[inv.Status] = out.TotalsByStatus[inv.Status].Add(inv.Total)
		switch inv.Status {
		case StatusPaid:
			out.CashIn = out.CashIn.Add(inv.Total)
			paidDays += paymentDays(inv)
			paidCount++
			y, m, _ := inv.IssueDate.Date()
			if y == year && m == month {
				out.RevenueThisMonth = out.RevenueThisMonth.Add(inv.Total)
			}
		case StatusSent, StatusOverdue:
			out.UnpaidCount++
			out.Outstanding = out.Outstanding.Add(inv.Total)
			if inv.Status == StatusOverdue || IsOverdue(inv, now) {
				out.OverdueCount++
			}
		}
	}

	if paidCount > 0 {
		out.AverageDaysToPay = paidDays / paidCount
	}

	recent := append([]Invoice(nil), invoices...)
	SortInvoices(recent)
	if len(recent) > 5 {
		recent = recent[:5]
	}
	out.Recent = recent
	return out
}

// paymentDays is the payment term of a paid invoice, at least one day.
// No payment date is stored, so the due date stands in for it.
func paymentDays(inv Invoice) int {
	days := int(inv.DueDate.Sub(inv.IssueDate).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

// BuildClientStats groups invoice counts and billed revenue by client ID.
// Drafts count as invoices but not as revenue.
func BuildClientStats(invoices []Invoice) map[string]ClientStats {
	out := make(map[string]ClientStats)
	for _, inv := range invoices {
		stats, ok := out[inv.ClientID]
		if !ok {
			stats.TotalRevenue = decimal.Zero
		}
		stats.InvoiceCount++
		if inv.Status != StatusDraft {
			stats.TotalRevenue = stats.TotalRevenue.Add(inv.Total)
		}
		if inv.IssueDate.After(stats.LastInvoiceDate) {
			stats.LastInvoiceDate = inv.IssueDate
		}
		out[inv.ClientID] = stats
	}
	return out
}

// snapshot loads an invoice with its client and recomputed totals.
func (s *service) snapshot(ctx context.Context, id string) (Invoice, error) {
	if strings.TrimSpace(id) == "" {
		return Invoice{}, NewError(KindValidation, "invoice ID is required", nil)
	}
	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if inv.ClientID != "" {
		client, err := s.store.GetClient(ctx, inv.ClientID)
		if err != nil && KindFromError(err) != KindNotFound {
			return Invoice{}, err
		}
		inv.Client = client
	}
	if TotalsStale(inv) {
		s.logger.Debugf("invoice %s stored totals are stale, recomputing", inv.Number)
	}
	return Recalculate(inv), nil
}

func (s *service) attachClients(ctx context.Context, invoices []Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	clients, err := s.store.ListClients(ctx, ClientFilter{})
	if err != nil {
		return err
	}
	byID := make(map[string]Client, len(clients))
	for _, client := range clients {
		byID[client.ID] = client
	}
	for i := range invoices {
		invoices[i].Client = byID[invoices[i].ClientID]
	}
	return nil
}

func (s *service) requireClient(ctx context.Context, id string) (Client, error) {
	client, err := s.store.GetClient(ctx, id)
	if err != nil {
		if KindFromError(err) == KindNotFound {
			return Client{}, AsGoError(NewError(KindValidation, fmt.Sprintf("client %q does not exist", id), err))
		}
		return Client{}, AsGoError(err)
	}
	return client, nil
}

func (s *service) nextNumber(ctx context.Context, year int) (string, error) {
	existing, err := s.store.NumbersWithPrefix(ctx, NumberPrefix(year))
	if err != nil {
		return "", err
	}
	return NextNumber(year, existing), nil
}

func (s *service) applyDefaults(inv Invoice, now time.Time) Invoice {
	inv.Number = strings.TrimSpace(inv.Number)
	inv.Currency = strings.ToUpper(strings.TrimSpace(inv.Currency))
	if inv.Currency == "" {
		inv.Currency = DefaultCurrency
	}
	if inv.IssueDate.IsZero() {
		inv.IssueDate = dayOf(now)
	}
	if inv.DueDate.IsZero() {
		inv.DueDate = inv.IssueDate.AddDate(0, 0, DefaultPaymentDays)
	}
	inv.Lines = append([]LineItem(nil), inv.Lines...)
	for i := range inv.Lines {
		inv.Lines[i].Description = strings.TrimSpace(inv.Lines[i].Description)
	}
	return inv
}

func (s *service) renderOptions(opts RenderOptions) RenderOptions {
	if opts.Template == "" {
		opts.Template = s.defaultTemplate
	}
	return opts
}

func normalizeClient(client Client) Client {
	client.Name = strings.TrimSpace(client.Name)
	client.Email = strings.TrimSpace(client.Email)
	client.RegistryCode = strings.TrimSpace(client.RegistryCode)
	client.Phone = strings.TrimSpace(client.Phone)
	client.Address = strings.TrimSpace(client.Address)
	return client
}
