package query

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-invoice/invoice"
)

// GetInvoiceHandler returns a single invoice.
type GetInvoiceHandler struct {
	Service invoice.Service
}

func NewGetInvoiceHandler(svc invoice.Service) *GetInvoiceHandler {
	return &GetInvoiceHandler{Service: svc}
}

func (h *GetInvoiceHandler) Query(ctx context.Context, msg GetInvoice) (invoice.Invoice, error) {
	if h == nil || h.Service == nil {
		return invoice.Invoice{}, errServiceRequired()
	}
	return h.Service.GetInvoice(ctx, msg.InvoiceID)
}

// ListInvoicesHandler returns filtered invoices.
type ListInvoicesHandler struct {
	Service invoice.Service
}

func NewListInvoicesHandler(svc invoice.Service) *ListInvoicesHandler {
	return &ListInvoicesHandler{Service: svc}
}

func (h *ListInvoicesHandler) Query(ctx context.Context, msg ListInvoices) ([]invoice.Invoice, error) {
	if h == nil || h.Service == nil {
		return nil, errServiceRequired()
	}
	return h.Service.ListInvoices(ctx, msg.Filter)
}

// RenderInvoicePDFHandler returns rendered PDF documents.
type RenderInvoicePDFHandler struct {
	Service invoice.Service
}

func NewRenderInvoicePDFHandler(svc invoice.Service) *RenderInvoicePDFHandler {
	return &RenderInvoicePDFHandler{Service: svc}
}

func (h *RenderInvoicePDFHandler) Query(ctx context.Context, msg RenderInvoicePDF) (invoice.Document, error) {
	if h == nil || h.Service == nil {
		return invoice.Document{}, errServiceRequired()
	}
	return h.Service.RenderPDF(ctx, msg.InvoiceID, msg.Options)
}

// PreviewInvoiceHandler returns rendered HTML documents.
type PreviewInvoiceHandler struct {
	Service invoice.Service
}

func NewPreviewInvoiceHandler(svc invoice.Service) *PreviewInvoiceHandler {
	return &PreviewInvoiceHandler{Service: svc}
}

func (h *PreviewInvoiceHandler) Query(ctx context.Context, msg PreviewInvoice) (invoice.Document, error) {
	if h == nil || h.Service == nil {
		return invoice.Document{}, errServiceRequired()
	}
	return h.Service.Preview(ctx, msg.InvoiceID, msg.Options)
}

// InvoiceRegisterHandler returns the XLSX register.
type InvoiceRegisterHandler struct {
	Service invoice.Service
}

func NewInvoiceRegisterHandler(svc invoice.Service) *InvoiceRegisterHandler {
	return &InvoiceRegisterHandler{Service: svc}
}

func (h *InvoiceRegisterHandler) Query(ctx context.Context, msg InvoiceRegister) (invoice.Document, error) {
	if h == nil || h.Service == nil {
		return invoice.Document{}, errServiceRequired()
	}
	return h.Service.Register(ctx, msg.Filter)
}

// OverviewHandler returns dashboard metrics.
type OverviewHandler struct {
	Service invoice.Service
}

func NewOverviewHandler(svc invoice.Service) *OverviewHandler {
	return &OverviewHandler{Service: svc}
}

func (h *OverviewHandler) Query(ctx context.Context, msg Overview) (invoice.Overview, error) {
	_ = msg
	if h == nil || h.Service == nil {
		return invoice.Overview{}, errServiceRequired()
	}
	return h.Service.Overview(ctx)
}

// ListClientsHandler returns clients.
type ListClientsHandler struct {
	Service invoice.Service
}

func NewListClientsHandler(svc invoice.Service) *ListClientsHandler {
	return &ListClientsHandler{Service: svc}
}

func (h *ListClientsHandler) Query(ctx context.Context, msg ListClients) ([]invoice.Client, error) {
	if h == nil || h.Service == nil {
		return nil, errServiceRequired()
	}
	return h.Service.ListClients(ctx, msg.Filter)
}

// GetClientHandler returns a single client.
type GetClientHandler struct {
	Service invoice.Service
}

func NewGetClientHandler(svc invoice.Service) *GetClientHandler {
	return &GetClientHandler{Service: svc}
}

func (h *GetClientHandler) Query(ctx context.Context, msg GetClient) (invoice.Client, error) {
	if h == nil || h.Service == nil {
		return invoice.Client{}, errServiceRequired()
	}
	return h.Service.GetClient(ctx, msg.ClientID)
}

func errServiceRequired() error {
	return errors.New("invoice service is required", errors.CategoryInternal).
		WithTextCode("SERVICE_REQUIRED")
}
