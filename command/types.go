package command

import (
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-invoice/invoice"
)

// CreateInvoice stores a new invoice.
type CreateInvoice struct {
	Invoice invoice.Invoice
	Result  *invoice.Invoice
}

func (CreateInvoice) Type() string { return "invoice:create" }

func (msg CreateInvoice) Validate() error {
	if strings.TrimSpace(msg.Invoice.ClientID) == "" {
		return errors.New("client ID is required", errors.CategoryValidation).
			WithTextCode("CLIENT_ID_REQUIRED")
	}
	if len(msg.Invoice.Lines) == 0 {
		return errors.New("at least one line item is required", errors.CategoryValidation).
			WithTextCode("LINES_REQUIRED")
	}
	return nil
}

// UpdateInvoice replaces an editable invoice.
type UpdateInvoice struct {
	Invoice invoice.Invoice
	Result  *invoice.Invoice
}

func (UpdateInvoice) Type() string { return "invoice:update" }

func (msg UpdateInvoice) Validate() error {
	if strings.TrimSpace(msg.Invoice.ID) == "" {
		return errInvoiceIDRequired()
	}
	return nil
}

// ChangeStatus moves an invoice through its lifecycle.
type ChangeStatus struct {
	InvoiceID string
	Status    invoice.Status
	Result    *invoice.Invoice
}

func (ChangeStatus) Type() string { return "invoice:status" }

func (msg ChangeStatus) Validate() error {
	if strings.TrimSpace(msg.InvoiceID) == "" {
		return errInvoiceIDRequired()
	}
	if !msg.Status.Valid() {
		return errors.New("unknown invoice status", errors.CategoryValidation).
			WithTextCode("STATUS_INVALID")
	}
	return nil
}

// DuplicateInvoice copies an invoice into a new draft.
type DuplicateInvoice struct {
	InvoiceID string
	Result    *invoice.Invoice
}

func (DuplicateInvoice) Type() string { return "invoice:duplicate" }

func (msg DuplicateInvoice) Validate() error {
	if strings.TrimSpace(msg.InvoiceID) == "" {
		return errInvoiceIDRequired()
	}
	return nil
}

// SendInvoice emails the rendered PDF to the client.
type SendInvoice struct {
	InvoiceID string
	Template  invoice.TemplateName
	Result    *invoice.Invoice
}

func (SendInvoice) Type() string { return "invoice:send" }

func (msg SendInvoice) Validate() error {
	if strings.TrimSpace(msg.InvoiceID) == "" {
		return errInvoiceIDRequired()
	}
	return nil
}

// DeleteInvoice removes an invoice and its lines.
type DeleteInvoice struct {
	InvoiceID string
}

func (DeleteInvoice) Type() string { return "invoice:delete" }

func (msg DeleteInvoice) Validate() error {
	if strings.TrimSpace(msg.InvoiceID) == "" {
		return errInvoiceIDRequired()
	}
	return nil
}

// CreateClient stores a new client.
type CreateClient struct {
	Client invoice.Client
	Result *invoice.Client
}

func (CreateClient) Type() string { return "client:create" }

func (msg CreateClient) Validate() error {
	if strings.TrimSpace(msg.Client.Name) == "" {
		return errors.New("client name is required", errors.CategoryValidation).
			WithTextCode("CLIENT_NAME_REQUIRED")
	}
	return nil
}

// UpdateClient replaces a client's details.
type UpdateClient struct {
	Client invoice.Client
	Result *invoice.Client
}

func (UpdateClient) Type() string { return "client:update" }

func (msg UpdateClient) Validate() error {
	if strings.TrimSpace(msg.Client.ID) == "" {
		return errClientIDRequired()
	}
	if strings.TrimSpace(msg.Client.Name) == "" {
		return errors.New("client name is required", errors.CategoryValidation).
			WithTextCode("CLIENT_NAME_REQUIRED")
	}
	return nil
}

// DeleteClient removes a client without invoices.
type DeleteClient struct {
	ClientID string
}

func (DeleteClient) Type() string { return "client:delete" }

func (msg DeleteClient) Validate() error {
	if strings.TrimSpace(msg.ClientID) == "" {
		return errClientIDRequired()
	}
	return nil
}

// MarkOverdue flags sent invoices past their due date.
type MarkOverdue struct {
	Now    time.Time
	Result *int
}

func (MarkOverdue) Type() string { return "invoice:mark-overdue" }

func (MarkOverdue) Validate() error { return nil }

func errInvoiceIDRequired() error {
	return errors.New("invoice ID is required", errors.CategoryValidation).
		WithTextCode("INVOICE_ID_REQUIRED")
}

func errClientIDRequired() error {
	return errors.New("client ID is required", errors.CategoryValidation).
		WithTextCode("CLIENT_ID_REQUIRED")
}
