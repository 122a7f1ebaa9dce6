package invoicerouter

import (
	"github.com/goliatone/go-invoice/adapters/invoiceapi"
	"github.com/goliatone/go-invoice/invoice"
	"github.com/goliatone/go-router"
)

// Config configures the go-router adapter.
type Config = invoiceapi.Config

// Handler exposes invoice routes for go-router.
type Handler struct {
	controller *invoiceapi.Controller
}

// NewHandler creates a go-router handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{controller: invoiceapi.NewController(cfg)}
}

// RegisterRoutes registers routes on a compatible go-router router.
func (h *Handler) RegisterRoutes(router any) {
	r, ok := router.(routeRegistrar)
	if !ok {
		return
	}
	base := h.basePath()
	invoices := base + "/invoices"
	clients := base + "/clients"

	r.Get(invoices, h.Handle)
	r.Post(invoices, h.Handle)
	r.Get(invoices+"/:id", h.Handle)
	r.Put(invoices+"/:id", h.Handle)
	r.Delete(invoices+"/:id", h.Handle)
	r.Get(invoices+"/:id/pdf", h.Handle)
	r.Get(invoices+"/:id/pdf/:template", h.Handle)
	r.Get(invoices+"/:id/preview", h.Handle)
	r.Get(invoices+"/:id/preview/:template", h.Handle)
	r.Post(invoices+"/:id/status", h.Handle)
	r.Post(invoices+"/:id/duplicate", h.Handle)
	r.Post(invoices+"/:id/send", h.Handle)

	r.Get(clients, h.Handle)
	r.Post(clients, h.Handle)
	r.Get(clients+"/:id", h.Handle)
	r.Put(clients+"/:id", h.Handle)
	r.Delete(clients+"/:id", h.Handle)

	r.Get(base+"/overview", h.Handle)
	r.Get(base+"/reports/invoices.xlsx", h.Handle)
}

// Handle executes the shared invoice API.
func (h *Handler) Handle(c router.Context) error {
	if c == nil {
		return nil
	}
	if h == nil || h.controller == nil {
		invoiceapi.WriteError(routerResponse{ctx: c}, invoice.NewError(invoice.KindInternal, "handler is nil", nil))
		return nil
	}
	h.controller.Serve(routerRequest{ctx: c}, routerResponse{ctx: c})
	return nil
}

func (h *Handler) basePath() string {
	if h == nil || h.controller == nil {
		return invoiceapi.DefaultBasePath
	}
	path := h.controller.BasePath()
	if path == "" {
		return invoiceapi.DefaultBasePath
	}
	return path
}

type routeRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Put(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}
