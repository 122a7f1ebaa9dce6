package invoiceapi

import "github.com/goliatone/go-invoice/invoice"

// Response provides a minimal response interface for transport adapters.
type Response interface {
	SetHeader(name, value string)
	DelHeader(name string)
	WriteHeader(status int)
	Write(data []byte) (int, error)
	WriteJSON(status int, payload any) error
}

// InvoiceListResponse wraps invoice listings.
type InvoiceListResponse struct {
	Invoices []invoice.Invoice `json:"invoices"`
	Count    int               `json:"count"`
}

// ClientListResponse wraps client listings.
type ClientListResponse struct {
	Clients []invoice.Client `json:"clients"`
	Count   int              `json:"count"`
}

// SendQueuedResponse acknowledges a background send.
type SendQueuedResponse struct {
	InvoiceID string               `json:"invoice_id"`
	Template  invoice.TemplateName `json:"template"`
	Status    string               `json:"status"`
}

// ErrorResponse describes JSON error responses.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains error details.
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
