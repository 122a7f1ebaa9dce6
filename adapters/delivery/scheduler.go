package invoicedelivery

import (
	"context"
	"strings"

	"github.com/goliatone/go-invoice/invoice"
	job "github.com/goliatone/go-job"
)

const (
	DefaultSendTaskID   = "invoice:send"
	DefaultSendTaskPath = "invoice:send"
)

// Enqueuer delivers execution messages to go-job.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg *job.ExecutionMessage) error
}

// EnqueuerFunc adapts a function to Enqueuer.
type EnqueuerFunc func(ctx context.Context, msg *job.ExecutionMessage) error

// Enqueue calls f.
func (f EnqueuerFunc) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if f == nil {
		return invoice.NewError(invoice.KindInternal, "enqueuer is nil", nil)
	}
	return f(ctx, msg)
}

// SchedulerConfig configures the send scheduler.
type SchedulerConfig struct {
	Enqueuer Enqueuer
	TaskID   string
	TaskPath string
	Logger   invoice.Logger
}

// Scheduler enqueues invoice sends.
type Scheduler struct {
	enqueuer Enqueuer
	taskID   string
	taskPath string
	logger   invoice.Logger
}

// NewScheduler creates a new send scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = invoice.NopLogger{}
	}
	taskID := cfg.TaskID
	if taskID == "" {
		taskID = DefaultSendTaskID
	}
	taskPath := cfg.TaskPath
	if taskPath == "" {
		taskPath = DefaultSendTaskPath
	}

	return &Scheduler{
		enqueuer: cfg.Enqueuer,
		taskID:   taskID,
		taskPath: taskPath,
		logger:   logger,
	}
}

// RequestSend enqueues a send of invoice id using the given template.
func (s *Scheduler) RequestSend(ctx context.Context, id string, tpl invoice.TemplateName) error {
	if s == nil {
		return invoice.NewError(invoice.KindInternal, "scheduler is nil", nil)
	}
	if s.enqueuer == nil {
		return invoice.NewError(invoice.KindNotImpl, "job enqueuer not configured", nil)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return invoice.NewError(invoice.KindValidation, "invoice id is required", nil)
	}

	encoded, err := encodePayload(Payload{InvoiceID: id, Template: tpl})
	if err != nil {
		return err
	}

	msg := &job.ExecutionMessage{
		JobID:      s.taskID,
		ScriptPath: s.taskPath,
		Parameters: map[string]any{"payload": encoded},
	}

	if err := s.enqueuer.Enqueue(ctx, msg); err != nil {
		return invoice.NewError(invoice.KindExternal, "enqueue send failed", err)
	}
	s.logger.Debugf("queued send of invoice %s", id)
	return nil
}
