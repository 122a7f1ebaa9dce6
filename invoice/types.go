package invoice

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the invoice lifecycle state.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusSent    Status = "sent"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// Statuses lists every known status in display order.
var Statuses = []Status{StatusDraft, StatusSent, StatusPaid, StatusOverdue}

// TemplateName identifies an invoice layout.
type TemplateName string

const (
	TemplateStandard TemplateName = "standard"
	TemplateModern   TemplateName = "modern"
	TemplateElegant  TemplateName = "elegant"
)

// Templates lists the built-in invoice layouts.
var Templates = []TemplateName{TemplateStandard, TemplateModern, TemplateElegant}

// ParseTemplateName resolves a layout name, case-insensitive.
func ParseTemplateName(value string) (TemplateName, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, name := range Templates {
		if string(name) == value {
			return name, true
		}
	}
	return "", false
}

const (
	DefaultCurrency    = "EUR"
	DefaultPaymentDays = 14
)

// DefaultVATRate is the VAT percentage applied to new invoices.
var DefaultVATRate = decimal.NewFromInt(24)

// Client is the billed party.
type Client struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	RegistryCode string    `json:"registry_code,omitempty"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// LineItem is a single billable entry owned by an invoice.
type LineItem struct {
	Position    int             `json:"position"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// Invoice is a billing document with its lines and totals.
type Invoice struct {
	ID        string          `json:"id"`
	Number    string          `json:"number"`
	ClientID  string          `json:"client_id"`
	Client    Client          `json:"client"`
	IssueDate time.Time       `json:"issue_date"`
	DueDate   time.Time       `json:"due_date"`
	Lines     []LineItem      `json:"lines"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	VATRate   decimal.Decimal `json:"vat_rate"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency"`
	Status    Status          `json:"status"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	Status    Status
	ClientID  string
	Query     string
	DueBefore time.Time
	Limit     int
}

// ClientFilter narrows client listings.
type ClientFilter struct {
	Query string
}

// InvoiceStore persists invoices and their lines.
type InvoiceStore interface {
	CreateInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	UpdateInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	GetInvoice(ctx context.Context, id string) (Invoice, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
	DeleteInvoice(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error
	NumbersWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// ClientStore persists clients.
type ClientStore interface {
	CreateClient(ctx context.Context, client Client) (Client, error)
	UpdateClient(ctx context.Context, client Client) (Client, error)
	GetClient(ctx context.Context, id string) (Client, error)
	ListClients(ctx context.Context, filter ClientFilter) ([]Client, error)
	DeleteClient(ctx context.Context, id string) error
}

// Store combines invoice and client persistence.
type Store interface {
	InvoiceStore
	ClientStore
}

// PDFExternalAssetsPolicy controls network access while converting HTML.
type PDFExternalAssetsPolicy string

const (
	PDFExternalAssetsBlock PDFExternalAssetsPolicy = "block"
	PDFExternalAssetsAllow PDFExternalAssetsPolicy = "allow"
)

// PDFOptions configures HTML-to-PDF conversion.
type PDFOptions struct {
	PageSize             string                  `json:"page_size,omitempty"`
	Landscape            *bool                   `json:"landscape,omitempty"`
	PrintBackground      *bool                   `json:"print_background,omitempty"`
	Scale                float64                 `json:"scale,omitempty"`
	MarginTop            string                  `json:"margin_top,omitempty"`
	MarginBottom         string                  `json:"margin_bottom,omitempty"`
	MarginLeft           string                  `json:"margin_left,omitempty"`
	MarginRight          string                  `json:"margin_right,omitempty"`
	PreferCSSPageSize    *bool                   `json:"prefer_css_page_size,omitempty"`
	ExternalAssetsPolicy PDFExternalAssetsPolicy `json:"external_assets_policy,omitempty"`
}

// RenderOptions selects the layout and conversion settings for a render.
type RenderOptions struct {
	Template TemplateName
	PDF      PDFOptions
}

// HTMLRenderer writes the invoice document as HTML.
type HTMLRenderer interface {
	RenderHTML(ctx context.Context, inv Invoice, opts RenderOptions, w io.Writer) error
}

// PDFRenderer renders a complete invoice PDF.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, inv Invoice, opts RenderOptions) ([]byte, error)
}

// Attachment is a file sent with a mail.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Mail is an outbound message.
type Mail struct {
	To         []string
	Subject    string
	Body       string
	Attachment *Attachment
}

// Mailer delivers outbound mail.
type Mailer interface {
	Send(ctx context.Context, msg Mail) error
}

// Logger provides logging hooks.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger discards all log output.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}
