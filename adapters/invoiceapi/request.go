package invoiceapi

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/goliatone/go-invoice/invoice"
	"github.com/shopspring/decimal"
)

// DefaultMaxBodyBytes caps JSON request bodies.
const DefaultMaxBodyBytes int64 = 1 << 20

const dateLayout = "2006-01-02"

// Request provides minimal request access for transport adapters.
type Request interface {
	Context() context.Context
	Method() string
	Path() string
	Header(name string) string
	Query(name string) string
	Body() io.ReadCloser
}

// InvoicePayload is the JSON body for creating or updating an invoice.
type InvoicePayload struct {
	Number    string           `json:"number,omitempty"`
	ClientID  string           `json:"client_id"`
	IssueDate Date             `json:"issue_date,omitempty"`
	DueDate   Date             `json:"due_date,omitempty"`
	VATRate   *decimal.Decimal `json:"vat_rate,omitempty"`
	Currency  string           `json:"currency,omitempty"`
	Notes     string           `json:"notes,omitempty"`
	Lines     []LinePayload    `json:"lines"`
}

// LinePayload is a single invoice line in a request body.
type LinePayload struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// ToInvoice converts the payload. A missing VAT rate falls back to the default rate.
func (p InvoicePayload) ToInvoice() invoice.Invoice {
	vat := invoice.DefaultVATRate
	if p.VATRate != nil {
		vat = *p.VATRate
	}
	inv := invoice.Invoice{
		Number:    strings.TrimSpace(p.Number),
		ClientID:  strings.TrimSpace(p.ClientID),
		IssueDate: p.IssueDate.Time,
		DueDate:   p.DueDate.Time,
		VATRate:   vat,
		Currency:  p.Currency,
		Notes:     p.Notes,
		Lines:     make([]invoice.LineItem, 0, len(p.Lines)),
	}
	for i, line := range p.Lines {
		inv.Lines = append(inv.Lines, invoice.LineItem{
			Position:    i + 1,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}
	return inv
}

// ApplyTo merges the payload onto an existing invoice for updates. Dates,
// VAT rate, currency and number the payload omits keep their current values.
func (p InvoicePayload) ApplyTo(existing invoice.Invoice) invoice.Invoice {
	inv := p.ToInvoice()
	inv.ID = existing.ID
	if p.VATRate == nil {
		inv.VATRate = existing.VATRate
	}
	if inv.IssueDate.IsZero() {
		inv.IssueDate = existing.IssueDate
	}
	if inv.DueDate.IsZero() {
		inv.DueDate = existing.DueDate
	}
	if strings.TrimSpace(inv.Currency) == "" {
		inv.Currency = existing.Currency
	}
	if inv.Number == "" {
		inv.Number = existing.Number
	}
	return inv
}

// ClientPayload is the JSON body for creating or updating a client.
type ClientPayload struct {
	Name         string `json:"name"`
	RegistryCode string `json:"registry_code,omitempty"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Address      string `json:"address,omitempty"`
}

// ToClient converts the payload.
func (p ClientPayload) ToClient() invoice.Client {
	return invoice.Client{
		Name:         p.Name,
		RegistryCode: p.RegistryCode,
		Email:        p.Email,
		Phone:        p.Phone,
		Address:      p.Address,
	}
}

// StatusPayload is the JSON body for status changes.
type StatusPayload struct {
	Status invoice.Status `json:"status"`
}

// Date accepts calendar dates (2006-01-02) or RFC3339 timestamps.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return invoice.NewError(invoice.KindValidation, "dates must be strings", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if parsed, err := time.Parse(dateLayout, raw); err == nil {
		d.Time = parsed
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return invoice.NewError(invoice.KindValidation, "invalid date "+raw, err)
	}
	y, m, day := parsed.Date()
	d.Time = time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

// DecodeJSON reads a JSON body into dst, rejecting unknown fields.
func DecodeJSON(req Request, dst any, maxBytes int64) error {
	if req == nil {
		return invoice.NewError(invoice.KindInternal, "request is nil", nil)
	}
	body := req.Body()
	if body == nil {
		return invoice.NewError(invoice.KindValidation, "request body is required", nil)
	}
	defer body.Close()

	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	decoder := json.NewDecoder(io.LimitReader(body, maxBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if invoice.KindFromError(err) == invoice.KindValidation {
			return err
		}
		return invoice.NewError(invoice.KindValidation, "invalid request payload", err)
	}
	return nil
}

func parseInvoiceFilter(req Request) (invoice.InvoiceFilter, error) {
	filter := invoice.InvoiceFilter{
		Status:   invoice.Status(strings.ToLower(strings.TrimSpace(req.Query("status")))),
		ClientID: strings.TrimSpace(req.Query("client_id")),
		Query:    strings.TrimSpace(req.Query("q")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return invoice.InvoiceFilter{}, invoice.NewError(invoice.KindValidation, "unknown status "+string(filter.Status), nil)
	}
	if before := req.Query("due_before"); before != "" {
		ts, err := time.Parse(dateLayout, before)
		if err != nil {
			return invoice.InvoiceFilter{}, invoice.NewError(invoice.KindValidation, "invalid due_before date", err)
		}
		filter.DueBefore = ts
	}
	return filter, nil
}
