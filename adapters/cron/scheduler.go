package invoicecron

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-invoice/invoice"
	"github.com/robfig/cron/v3"
)

// Command is a handler that can run on a schedule.
type Command interface {
	CronHandler() func() error
	CronOptions() gcmd.HandlerConfig
}

// Config configures the scheduler.
type Config struct {
	Location *time.Location
	Logger   invoice.Logger
}

// Scheduler runs cron commands with robfig/cron.
type Scheduler struct {
	cron   *cron.Cron
	logger invoice.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewScheduler builds a scheduler. Overlapping runs of the same job are skipped.
func NewScheduler(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = invoice.NopLogger{}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

// Register schedules cmd under name using its cron expression.
func (s *Scheduler) Register(name string, cmd Command) error {
	if s == nil {
		return errors.New("scheduler is nil", errors.CategoryInternal).
			WithTextCode("SCHEDULER_NIL")
	}
	if cmd == nil {
		return errors.New("cron command is required", errors.CategoryValidation).
			WithTextCode("CRON_COMMAND_REQUIRED")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("cron job name is required", errors.CategoryValidation).
			WithTextCode("CRON_NAME_REQUIRED")
	}
	expr := strings.TrimSpace(cmd.CronOptions().Expression)
	if expr == "" {
		return errors.New("cron expression is required", errors.CategoryValidation).
			WithTextCode("CRON_EXPRESSION_REQUIRED")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; ok {
		return errors.New(fmt.Sprintf("cron job %q already registered", name), errors.CategoryConflict).
			WithTextCode("CRON_DUPLICATE")
	}

	handler := cmd.CronHandler()
	id, err := s.cron.AddFunc(expr, func() {
		s.run(name, handler)
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid cron expression").
			WithTextCode("CRON_EXPRESSION_INVALID")
	}
	s.entries[name] = id
	s.logger.Infof("cron job %s scheduled (%s)", name, expr)
	return nil
}

// Next returns the next activation of a registered job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	if s == nil {
		return
	}
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run(name string, handler func() error) {
	if handler == nil {
		return
	}
	started := time.Now()
	if err := handler(); err != nil {
		s.logger.Errorf("cron job %s failed: %v", name, err)
		return
	}
	s.logger.Debugf("cron job %s finished in %s", name, time.Since(started))
}

type cronLogger struct {
	logger invoice.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugf("cron: %s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorf("cron: %s: %v %v", msg, err, keysAndValues)
}
