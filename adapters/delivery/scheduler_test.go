package invoicedelivery

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-invoice/invoice"
	job "github.com/goliatone/go-job"
)

func TestScheduler_RequestSend_RunsThroughTaskCommander(t *testing.T) {
	sender := &captureSender{}
	task := NewSendTask(TaskConfig{Sender: sender})
	cmd := job.NewTaskCommander(task)

	var queued []*job.ExecutionMessage
	enqueuer := EnqueuerFunc(func(ctx context.Context, msg *job.ExecutionMessage) error {
		queued = append(queued, msg)
		return cmd.Execute(ctx, msg)
	})

	scheduler := NewScheduler(SchedulerConfig{Enqueuer: enqueuer})
	if err := scheduler.RequestSend(context.Background(), " inv-7 ", invoice.TemplateElegant); err != nil {
		t.Fatalf("request send: %v", err)
	}

	if len(queued) != 1 || queued[0].JobID != "invoice:send" || queued[0].ScriptPath != "invoice:send" {
		t.Fatalf("unexpected queued messages %+v", queued)
	}
	if len(sender.calls) != 1 {
		t.Fatalf("expected 1 send, got %d", len(sender.calls))
	}
	if sender.calls[0].id != "inv-7" || sender.calls[0].opts.Template != invoice.TemplateElegant {
		t.Fatalf("unexpected send %+v", sender.calls[0])
	}
}

func TestScheduler_RequestSend_Errors(t *testing.T) {
	failing := EnqueuerFunc(func(context.Context, *job.ExecutionMessage) error {
		return errors.New("queue full")
	})
	tests := []struct {
		name      string
		scheduler *Scheduler
		id        string
		kind      invoice.ErrorKind
	}{
		{name: "nil scheduler", scheduler: nil, id: "inv-1", kind: invoice.KindInternal},
		{name: "no enqueuer", scheduler: NewScheduler(SchedulerConfig{}), id: "inv-1", kind: invoice.KindNotImpl},
		{name: "blank id", scheduler: NewScheduler(SchedulerConfig{Enqueuer: failing}), id: " ", kind: invoice.KindValidation},
		{name: "enqueue failure", scheduler: NewScheduler(SchedulerConfig{Enqueuer: failing}), id: "inv-1", kind: invoice.KindExternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.scheduler.RequestSend(context.Background(), tc.id, invoice.TemplateStandard)
			if got := invoice.KindFromError(err); got != tc.kind {
				t.Fatalf("expected %s, got %s (%v)", tc.kind, got, err)
			}
		})
	}
}
