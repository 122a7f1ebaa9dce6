package command

import (
	"context"
	"time"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-invoice/invoice"
)

// CreateInvoiceHandler stores new invoices.
type CreateInvoiceHandler struct {
	Service invoice.Service
}

func NewCreateInvoiceHandler(svc invoice.Service) *CreateInvoiceHandler {
	return &CreateInvoiceHandler{Service: svc}
}

func (h *CreateInvoiceHandler) Execute(ctx context.Context, msg CreateInvoice) error {
	if h == nil || h.Service == nil {
		return errServiceRequired()
	}
	inv, err := h.Service.CreateInvoice(ctx, msg.Invoice)
	if err != nil {
		return err
	}
	storeInvoice(ctx, msg.Result, inv)
	return nil
}

// UpdateInvoiceHandler replaces editable invoices.
type UpdateInvoiceHandler struct {
	Service invoice.Service
}

func NewUpdateInvoiceHandler(svc invoice.Service) *UpdateInvoiceHandler {
	return &UpdateInvoiceHandler{Service: svc}
}

func (h *UpdateInvoiceHandler) Execute(ctx context.Context, msg UpdateInvoice) error {
	if h == nil || h.Service == nil {
		return errServiceRequired()
	}
	inv, err := h.Service.UpdateInvoice(ctx, msg.Invoice)
	if err != nil {
		return err
	}
	storeInvoice(ctx, msg.Result, inv)
	return nil
}

// ChangeStatusHandler applies status transitions.
type ChangeStatusHandler struct {
	Service invoice.Service
}

func NewChangeStatusHandler(svc invoice.Service) *ChangeStatusHandler {
	return &ChangeStatusHandler{Service: svc}
}

func (h *ChangeStatusHandler) Execute(ctx context.Context, msg ChangeStatus) error {
	if h == nil || h.Service == nil {
		return errServiceRequired()
	}
	inv, err := h.Service.ChangeStatus(ctx, msg.InvoiceID, msg.Status)
	if err != nil {
		return err
	}
	storeInvoice(ctx, msg.Result, inv)
	return nil
}

// DuplicateInvoiceHandler copies invoices into drafts.
type DuplicateInvoiceHandler struct {
	Service invoice.Service
}

func NewDuplicateInvoiceHandler(svc invoice.Service) *DuplicateInvoiceHandler {
	return &DuplicateInvoiceHandler{Service: svc}
}

func (h *DuplicateInvoiceHandler) Execute(ctx context.Context, msg DuplicateInvoice) error {
	if h == nil || h.Service == nil {
		return errServiceRequired()
	}
	inv, err := h.Service.DuplicateInvoice(ctx, msg.InvoiceID)
	if err != nil {
		return err
	}
	storeInvoice(ctx, msg.Result, inv)
	return nil
}

// SendInvoiceHandler mails invoices to clients.
type SendInvoiceHandler struct {
	Service invoice.Service
}

func NewSendInvoiceHandler(svc invoice.Service) *SendInvoiceHandler {
	return &SendInvoiceHandler{Service: svc}
}

func (h *SendInvoiceHandler) Execute(ctx context.Context, msg SendInvoice) error {
	if h == nil || h.Service == nil {
		return errServiceRequired()
	}
	inv, err := h.Service.SendInvoice(ctx, msg.InvoiceID, invoice.RenderOptions{Template: msg.Template})
	if err != nil {
		return err
	}
	storeInvoice(ctx, msg.Result, inv)
	return nil
}

// DeleteInvoiceHandler removes invoices.
type DeleteInvoiceHandler struct {
	Service invoice.Service
}

func NewDeleteInvoiceHandler(svc invoice.Service) *DeleteInvoiceHandler {
	return &DeleteInvoiceHandler{Service: svc}
}

func (h *DeleteInvoiceHandler) Execute(ctx context.Context, msg DeleteInvoice) error {
	if h == nil || h.Service == nil {
		return errServiceRequired()
	}
	return h.Service.DeleteInvoice(ctx, msg.InvoiceID)
}

// CreateClientHandler stores new clients.
type CreateClientHandler struct {
	Service invoice.Service
}

func NewCreateClientHandler(svc invoice.Service) *CreateClientHandler {
	return &CreateClientHandler{Service: svc}
}

func (h *CreateClientHandler) Execute(ctx context.Context, msg CreateClient) error {
	if h == nil || h.Service == nil {
		return errServiceRequired()
	}
	client, err := h.Service.CreateClient(ctx, msg.Client)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = client
	}
	if res := gcmd.ResultFromContext[invoice.Client](ctx); res != nil {
		res.Store(client)
	}
	return nil
}

// UpdateClientHandler edits clients.
type UpdateClientHandler struct {
	Service invoice.Service
}

func NewUpdateClientHandler(svc invoice.Service) *UpdateClientHandler {
	return &UpdateClientHandler{Service: svc}
}

func (h *UpdateClientHandler) Execute(ctx context.Context, msg UpdateClient) error {
	if h == nil || h.Service == nil {
		return errServiceRequired()
	}
	client, err := h.Service.UpdateClient(ctx, msg.Client)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = client
	}
	if res := gcmd.ResultFromContext[invoice.Client](ctx); res != nil {
		res.Store(client)
	}
	return nil
}

// DeleteClientHandler removes clients.
type DeleteClientHandler struct {
	Service invoice.Service
}

func NewDeleteClientHandler(svc invoice.Service) *DeleteClientHandler {
	return &DeleteClientHandler{Service: svc}
}

func (h *DeleteClientHandler) Execute(ctx context.Context, msg DeleteClient) error {
	if h == nil || h.Service == nil {
		return errServiceRequired()
	}
	return h.Service.DeleteClient(ctx, msg.ClientID)
}

// MarkOverdueHandler runs the overdue sweep.
type MarkOverdueHandler struct {
	Service invoice.Service
	Config  gcmd.HandlerConfig
	Clock   func() time.Time
}

func NewMarkOverdueHandler(svc invoice.Service) *MarkOverdueHandler {
	return &MarkOverdueHandler{
		Service: svc,
		Config:  gcmd.HandlerConfig{Expression: DefaultOverdueSchedule},
	}
}

func (h *MarkOverdueHandler) Execute(ctx context.Context, msg MarkOverdue) error {
	if h == nil || h.Service == nil {
		return errServiceRequired()
	}
	now := msg.Now
	if now.IsZero() && h.Clock != nil {
		now = h.Clock()
	}
	count, err := h.Service.MarkOverdue(ctx, now)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = count
	}
	if res := gcmd.ResultFromContext[int](ctx); res != nil {
		res.Store(count)
	}
	return nil
}

func (h *MarkOverdueHandler) CronHandler() func() error {
	return func() error {
		return h.Execute(context.Background(), MarkOverdue{})
	}
}

func (h *MarkOverdueHandler) CronOptions() gcmd.HandlerConfig {
	if h == nil {
		return gcmd.HandlerConfig{}
	}
	return h.Config
}

func storeInvoice(ctx context.Context, dst *invoice.Invoice, inv invoice.Invoice) {
	if dst != nil {
		*dst = inv
	}
	if res := gcmd.ResultFromContext[invoice.Invoice](ctx); res != nil {
		res.Store(inv)
	}
}

func errServiceRequired() error {
	return errors.New("invoice service is required", errors.CategoryInternal).
		WithTextCode("SERVICE_REQUIRED")
}
