package query

import (
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-invoice/invoice"
)

// GetInvoice requests a single invoice with its client and totals.
type GetInvoice struct {
	InvoiceID string
}

func (GetInvoice) Type() string { return "invoice:get" }

func (msg GetInvoice) Validate() error {
	return requireInvoiceID(msg.InvoiceID)
}

// ListInvoices requests invoices matching a filter.
type ListInvoices struct {
	Filter invoice.InvoiceFilter
}

func (ListInvoices) Type() string { return "invoice:list" }

func (msg ListInvoices) Validate() error {
	if msg.Filter.Status != "" && !msg.Filter.Status.Valid() {
		return errors.New("unknown invoice status", errors.CategoryValidation).
			WithTextCode("STATUS_INVALID")
	}
	if msg.Filter.Limit < 0 {
		return errors.New("limit must not be negative", errors.CategoryValidation).
			WithTextCode("LIMIT_INVALID")
	}
	return nil
}

// RenderInvoicePDF requests the PDF document of an invoice.
type RenderInvoicePDF struct {
	InvoiceID string
	Options   invoice.RenderOptions
}

func (RenderInvoicePDF) Type() string { return "invoice:render-pdf" }

func (msg RenderInvoicePDF) Validate() error {
	return requireInvoiceID(msg.InvoiceID)
}

// PreviewInvoice requests the HTML document of an invoice.
type PreviewInvoice struct {
	InvoiceID string
	Options   invoice.RenderOptions
}

func (PreviewInvoice) Type() string { return "invoice:preview" }

func (msg PreviewInvoice) Validate() error {
	return requireInvoiceID(msg.InvoiceID)
}

// InvoiceRegister requests the XLSX register of invoices.
type InvoiceRegister struct {
	Filter invoice.InvoiceFilter
}

func (InvoiceRegister) Type() string { return "invoice:register" }

func (InvoiceRegister) Validate() error { return nil }

// Overview requests dashboard metrics.
type Overview struct{}

func (Overview) Type() string { return "invoice:overview" }

func (Overview) Validate() error { return nil }

// ListClients requests clients matching a search.
type ListClients struct {
	Filter invoice.ClientFilter
}

func (ListClients) Type() string { return "client:list" }

func (ListClients) Validate() error { return nil }

// GetClient requests a single client.
type GetClient struct {
	ClientID string
}

func (GetClient) Type() string { return "client:get" }

func (msg GetClient) Validate() error {
	if strings.TrimSpace(msg.ClientID) == "" {
		return errors.New("client ID is required", errors.CategoryValidation).
			WithTextCode("CLIENT_ID_REQUIRED")
	}
	return nil
}

func requireInvoiceID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("invoice ID is required", errors.CategoryValidation).
			WithTextCode("INVOICE_ID_REQUIRED")
	}
	return nil
}
