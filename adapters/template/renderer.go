package invoicetemplate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-invoice/invoice"
	"github.com/shopspring/decimal"
)

// DefaultMaxHTMLBytes bounds the rendered HTML held in memory.
const DefaultMaxHTMLBytes int64 = 8 * 1024 * 1024

const dateLayout = "02.01.2006"

// Issuer is the seller block printed on every invoice.
type Issuer struct {
	Name         string `json:"name"`
	Address      string `json:"address"`
	RegistryCode string `json:"registry_code"`
	VATNumber    string `json:"vat_number"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	IBAN         string `json:"iban"`
}

// Renderer renders invoice HTML through a TemplateExecutor.
type Renderer struct {
	Templates    TemplateExecutor
	Issuer       Issuer
	MaxHTMLBytes int64
}

var _ invoice.HTMLRenderer = Renderer{}

// New creates a Renderer backed by the embedded pongo2 templates.
func New(cfg PongoConfig, issuer Issuer) (Renderer, error) {
	executor, err := NewPongoExecutor(cfg)
	if err != nil {
		return Renderer{}, err
	}
	return Renderer{Templates: executor, Issuer: issuer}, nil
}

// RenderHTML renders inv with the selected template and writes the complete
// document to w.
func (r Renderer) RenderHTML(ctx context.Context, inv invoice.Invoice, opts invoice.RenderOptions, w io.Writer) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if r.Templates == nil {
		return invoice.NewTemplateRenderError("template renderer requires templates", nil)
	}

	name := opts.Template
	if name == "" {
		name = invoice.TemplateStandard
	}
	if _, ok := invoice.ParseTemplateName(string(name)); !ok {
		return invoice.NewTemplateRenderError(fmt.Sprintf("unknown invoice template %q", name), nil)
	}
	if missing := MissingFields(inv); len(missing) > 0 {
		return invoice.NewTemplateRenderError("invoice is missing required fields: "+strings.Join(missing, ", "), nil)
	}

	data := BuildTemplateData(inv, r.Issuer, name)
	buffer := newLimitedBuffer(r.MaxHTMLBytes)
	if err := r.Templates.ExecuteTemplate(buffer, string(name), data.Context()); err != nil {
		return invoice.NewTemplateRenderError(fmt.Sprintf("invoice template %s failed", name), err)
	}
	if _, err := w.Write(buffer.Bytes()); err != nil {
		return invoice.NewTemplateRenderError("write rendered html", err)
	}
	return nil
}

// MissingFields lists the printed fields that inv lacks.
func MissingFields(inv invoice.Invoice) []string {
	var missing []string
	if strings.TrimSpace(inv.Number) == "" {
		missing = append(missing, "number")
	}
	if strings.TrimSpace(inv.Client.Name) == "" {
		missing = append(missing, "client name")
	}
	if inv.IssueDate.IsZero() {
		missing = append(missing, "issue date")
	}
	if inv.DueDate.IsZero() {
		missing = append(missing, "due date")
	}
	if strings.TrimSpace(inv.Currency) == "" {
		missing = append(missing, "currency")
	}
	if len(inv.Lines) == 0 {
		missing = append(missing, "line items")
	}
	for i, line := range inv.Lines {
		if strings.TrimSpace(line.Description) == "" {
			missing = append(missing, fmt.Sprintf("line %d description", i+1))
		}
	}
	return missing
}

// TemplateData is the context passed to invoice templates.
type TemplateData struct {
	Template string
	Title    string
	Issuer   Issuer
	Invoice  InvoiceView
	Client   ClientView
	Lines    []LineView
}

// InvoiceView carries preformatted invoice values.
type InvoiceView struct {
	Number    string
	IssueDate string
	DueDate   string
	Currency  string
	Status    string
	Notes     string
	Subtotal  string
	VATRate   string
	Tax       string
	Total     string
}

// ClientView carries the client snapshot.
type ClientView struct {
	Name         string
	RegistryCode string
	Email        string
	Phone        string
	Address      string
}

// LineView carries one preformatted line.
type LineView struct {
	Position    int
	Description string
	Quantity    string
	UnitPrice   string
	Amount      string
}

// BuildTemplateData recomputes totals and formats every printed value.
func BuildTemplateData(inv invoice.Invoice, issuer Issuer, name invoice.TemplateName) TemplateData {
	inv = invoice.Recalculate(inv)

	lines := make([]LineView, len(inv.Lines))
	for i, line := range inv.Lines {
		lines[i] = LineView{
			Position:    line.Position,
			Description: line.Description,
			Quantity:    formatQuantity(line.Quantity),
			UnitPrice:   formatMoney(line.UnitPrice),
			Amount:      formatMoney(line.Amount),
		}
	}

	return TemplateData{
		Template: string(name),
		Title:    "Invoice " + inv.Number,
		Issuer:   issuer,
		Invoice: InvoiceView{
			Number:    inv.Number,
			IssueDate: inv.IssueDate.Format(dateLayout),
			DueDate:   inv.DueDate.Format(dateLayout),
			Currency:  strings.ToUpper(inv.Currency),
			Status:    inv.Status.Label(),
			Notes:     inv.Notes,
			Subtotal:  formatMoney(inv.Subtotal),
			VATRate:   inv.VATRate.String(),
			Tax:       formatMoney(inv.Tax),
			Total:     formatMoney(inv.Total),
		},
		Client: ClientView{
			Name:         inv.Client.Name,
			RegistryCode: inv.Client.RegistryCode,
			Email:        inv.Client.Email,
			Phone:        inv.Client.Phone,
			Address:      inv.Client.Address,
		},
		Lines: lines,
	}
}

// Context flattens the data into template variables.
func (d TemplateData) Context() map[string]any {
	return map[string]any{
		"template": d.Template,
		"title":    d.Title,
		"issuer":   d.Issuer,
		"invoice":  d.Invoice,
		"client":   d.Client,
		"lines":    d.Lines,
	}
}

func formatMoney(value decimal.Decimal) string {
	return value.StringFixed(2)
}

func formatQuantity(value decimal.Decimal) string {
	if value.Equal(value.Truncate(0)) {
		return value.Truncate(0).String()
	}
	return value.String()
}

type limitedBuffer struct {
	buf     bytes.Buffer
	maxSize int64
}

func newLimitedBuffer(maxSize int64) *limitedBuffer {
	if maxSize <= 0 {
		maxSize = DefaultMaxHTMLBytes
	}
	return &limitedBuffer{maxSize: maxSize}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if int64(b.buf.Len()+len(p)) > b.maxSize {
		return 0, fmt.Errorf("rendered html exceeds %d bytes", b.maxSize)
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}
