package command

import (
	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-invoice/invoice"
	"github.com/goliatone/go-invoice/query"
)

// Registration reports what RegisterInvoiceHandlers wired.
type Registration struct {
	Subscriptions []dispatcher.Subscription
	MarkOverdue   *MarkOverdueHandler
}

// Unsubscribe detaches every dispatcher subscription.
func (r Registration) Unsubscribe() {
	for _, sub := range r.Subscriptions {
		sub.Unsubscribe()
	}
}

// RegisterInvoiceHandlers wires invoice commands and queries to go-command.
// extra handlers (CLI or cron commands) are added to reg alongside them.
func RegisterInvoiceHandlers(reg *gcmd.Registry, svc invoice.Service, extra ...any) (Registration, error) {
	if svc == nil {
		return Registration{}, errors.New("invoice service is required", errors.CategoryValidation).
			WithTextCode("SERVICE_REQUIRED")
	}

	create := NewCreateInvoiceHandler(svc)
	update := NewUpdateInvoiceHandler(svc)
	status := NewChangeStatusHandler(svc)
	duplicate := NewDuplicateInvoiceHandler(svc)
	send := NewSendInvoiceHandler(svc)
	del := NewDeleteInvoiceHandler(svc)
	createClient := NewCreateClientHandler(svc)
	updateClient := NewUpdateClientHandler(svc)
	deleteClient := NewDeleteClientHandler(svc)
	overdue := NewMarkOverdueHandler(svc)

	get := query.NewGetInvoiceHandler(svc)
	list := query.NewListInvoicesHandler(svc)
	pdf := query.NewRenderInvoicePDFHandler(svc)
	preview := query.NewPreviewInvoiceHandler(svc)
	register := query.NewInvoiceRegisterHandler(svc)
	overview := query.NewOverviewHandler(svc)
	clients := query.NewListClientsHandler(svc)
	client := query.NewGetClientHandler(svc)

	out := Registration{
		MarkOverdue: overdue,
		Subscriptions: []dispatcher.Subscription{
			dispatcher.SubscribeCommand(create),
			dispatcher.SubscribeCommand(update),
			dispatcher.SubscribeCommand(status),
			dispatcher.SubscribeCommand(duplicate),
			dispatcher.SubscribeCommand(send),
			dispatcher.SubscribeCommand(del),
			dispatcher.SubscribeCommand(createClient),
			dispatcher.SubscribeCommand(updateClient),
			dispatcher.SubscribeCommand(deleteClient),
			dispatcher.SubscribeCommand(overdue),
			dispatcher.SubscribeQuery(get),
			dispatcher.SubscribeQuery(list),
			dispatcher.SubscribeQuery(pdf),
			dispatcher.SubscribeQuery(preview),
			dispatcher.SubscribeQuery(register),
			dispatcher.SubscribeQuery(overview),
			dispatcher.SubscribeQuery(clients),
			dispatcher.SubscribeQuery(client),
		},
	}

	if reg != nil {
		handlers := []any{
			create,
			update,
			status,
			duplicate,
			send,
			del,
			createClient,
			updateClient,
			deleteClient,
			overdue,
			get,
			list,
			pdf,
			preview,
			register,
			overview,
			clients,
			client,
		}
		for _, handler := range append(handlers, extra...) {
			if handler == nil {
				continue
			}
			if err := reg.RegisterCommand(handler); err != nil {
				return out, err
			}
		}
	}

	return out, nil
}
