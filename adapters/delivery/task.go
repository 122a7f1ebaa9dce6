package invoicedelivery

import (
	"context"

	"github.com/goliatone/go-invoice/invoice"
	job "github.com/goliatone/go-job"
)

// Sender renders and mails an invoice. invoice.Service satisfies it.
type Sender interface {
	SendInvoice(ctx context.Context, id string, opts invoice.RenderOptions) (invoice.Invoice, error)
}

// MessageBuilderFunc builds an execution message for non-queue paths.
type MessageBuilderFunc func(ctx context.Context) (*job.ExecutionMessage, error)

// TaskConfig configures the send task.
type TaskConfig struct {
	ID             string
	Path           string
	Config         job.Config
	HandlerOptions job.HandlerOptions
	Sender         Sender
	MessageBuilder MessageBuilderFunc
	Logger         invoice.Logger
}

// SendTask executes queued invoice sends.
type SendTask struct {
	id             string
	path           string
	config         job.Config
	handlerOptions job.HandlerOptions
	sender         Sender
	messageBuilder MessageBuilderFunc
	logger         invoice.Logger
}

// NewSendTask creates the go-job task that sends one invoice per message.
func NewSendTask(cfg TaskConfig) *SendTask {
	logger := cfg.Logger
	if logger == nil {
		logger = invoice.NopLogger{}
	}
	id := cfg.ID
	if id == "" {
		id = DefaultSendTaskID
	}
	path := cfg.Path
	if path == "" {
		path = DefaultSendTaskPath
	}

	return &SendTask{
		id:             id,
		path:           path,
		config:         cfg.Config,
		handlerOptions: cfg.HandlerOptions,
		sender:         cfg.Sender,
		messageBuilder: cfg.MessageBuilder,
		logger:         logger,
	}
}

// GetID returns the task identifier.
func (t *SendTask) GetID() string { return t.id }

// GetHandler returns a handler for non-queue execution paths.
func (t *SendTask) GetHandler() func() error {
	return func() error {
		if t == nil {
			return invoice.NewError(invoice.KindInternal, "send task is nil", nil)
		}
		if t.messageBuilder == nil {
			return invoice.NewError(invoice.KindNotImpl, "send message builder not configured", nil)
		}

		ctx := context.Background()
		msg, err := t.messageBuilder(ctx)
		if err != nil {
			return err
		}
		if msg == nil {
			return invoice.NewError(invoice.KindValidation, "send execution message is required", nil)
		}
		return t.Execute(ctx, msg)
	}
}

// GetHandlerConfig returns scheduler options for the task.
func (t *SendTask) GetHandlerConfig() job.HandlerOptions { return t.handlerOptions }

// GetConfig returns task config defaults.
func (t *SendTask) GetConfig() job.Config { return t.config }

// GetPath returns the task path.
func (t *SendTask) GetPath() string { return t.path }

// GetEngine returns nil because this task is code-driven.
func (t *SendTask) GetEngine() job.Engine { return nil }

// Execute sends the invoice named in the message payload.
func (t *SendTask) Execute(ctx context.Context, msg *job.ExecutionMessage) error {
	if t == nil {
		return invoice.NewError(invoice.KindInternal, "send task is nil", nil)
	}
	if t.sender == nil {
		return invoice.NewError(invoice.KindNotImpl, "invoice sender not configured", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}
	inv, err := t.sender.SendInvoice(ctx, payload.InvoiceID, invoice.RenderOptions{Template: payload.Template})
	if err != nil {
		t.logger.Errorf("queued send of invoice %s failed: %v", payload.InvoiceID, err)
		return err
	}
	t.logger.Infof("queued send of invoice %s done (status %s)", inv.Number, inv.Status)
	return nil
}
