package main

import (
	"github.com/gofiber/fiber/v2"
	invoicerouter "github.com/goliatone/go-invoice/adapters/router"
	"github.com/goliatone/go-invoice/invoice"
	"github.com/goliatone/go-router"
)

// SetupRoutes registers all application routes.
func (a *App) SetupRoutes(r router.Router[*fiber.App]) {
	// JSON API and PDF downloads
	apiHandler := invoicerouter.NewHandler(invoicerouter.Config{
		Service:         a.Service,
		SendQueue:       a.SendQueue(),
		BasePath:        a.Config.Server.APIBase,
		DefaultTemplate: invoice.TemplateName(a.Config.Render.DefaultTemplate),
		Logger:          a.Logger,
	})
	apiHandler.RegisterRoutes(r)

	pages := &Pages{APIBase: a.Config.Server.APIBase, Logger: a.Logger}
	r.Get("/", pages.Overview)
	r.Get("/invoices", pages.ListInvoices)
	r.Get("/invoices/new", pages.NewInvoiceForm)
	r.Post("/invoices/new", pages.CreateInvoice)
	r.Get("/invoices/:id", pages.ShowInvoice)
	r.Get("/invoices/:id/edit", pages.EditInvoiceForm)
	r.Post("/invoices/:id/edit", pages.UpdateInvoice)
	r.Post("/invoices/:id/status", pages.ChangeStatus)
	r.Post("/invoices/:id/duplicate", pages.DuplicateInvoice)
	r.Post("/invoices/:id/send", pages.SendInvoice)
	r.Post("/invoices/:id/delete", pages.DeleteInvoice)
	r.Get("/clients", pages.ListClients)
	r.Post("/clients", pages.CreateClient)
	r.Get("/clients/:id", pages.ShowClient)
	r.Post("/clients/:id/edit", pages.UpdateClient)
	r.Post("/clients/:id/delete", pages.DeleteClient)
}
