package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gcmd "github.com/goliatone/go-command"
	invoicearchive "github.com/goliatone/go-invoice/adapters/archive"
	invoicecron "github.com/goliatone/go-invoice/adapters/cron"
	invoicedelivery "github.com/goliatone/go-invoice/adapters/delivery"
	"github.com/goliatone/go-invoice/adapters/invoiceapi"
	invoicenotify "github.com/goliatone/go-invoice/adapters/notifications"
	invoicepdf "github.com/goliatone/go-invoice/adapters/pdf"
	invoicebun "github.com/goliatone/go-invoice/adapters/store/bun"
	invoicetemplate "github.com/goliatone/go-invoice/adapters/template"
	"github.com/goliatone/go-invoice/cmd/web/config"
	"github.com/goliatone/go-invoice/command"
	"github.com/goliatone/go-invoice/invoice"
	job "github.com/goliatone/go-job"
	"github.com/uptrace/bun"
)

const queuedSendTimeout = 5 * time.Minute

// App holds the application dependencies.
type App struct {
	Config    config.Config
	Logger    *ZapLogger
	DB        *bun.DB
	Service   invoice.Service
	Scheduler *invoicecron.Scheduler
	Archive   *command.ArchiveCommand
	Sends     *invoicedelivery.Scheduler

	chromium     *invoicepdf.ChromiumEngine
	registration command.Registration
	sendsCtx     context.Context
	stopSends    context.CancelFunc
	sendsMu      sync.Mutex
	sendsClosed  bool
	pendingSends sync.WaitGroup
}

// NewApp creates and initializes the application.
func NewApp(ctx context.Context, cfg config.Config, logger *ZapLogger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := invoicebun.OpenSQLite(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := invoicebun.CreateSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	html, err := invoicetemplate.New(invoicetemplate.PongoConfig{
		Dir:   cfg.Render.TemplateDir,
		Debug: cfg.Server.Debug,
	}, issuerFromConfig(cfg.Issuer))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load invoice templates: %w", err)
	}
	html.MaxHTMLBytes = cfg.Render.MaxHTMLBytes

	app := &App{Config: cfg, Logger: logger, DB: db}

	pdf := invoicepdf.Renderer{
		HTML:   html,
		Engine: app.buildEngine(cfg.PDF),
		Logger: logger,
	}
	if cfg.PDF.Verify {
		pdf.Verifier = invoicepdf.PDFCPUVerifier{MinPages: 1}
	}

	defaultTemplate, ok := invoice.ParseTemplateName(cfg.Render.DefaultTemplate)
	if !ok {
		defaultTemplate = invoice.TemplateStandard
	}

	app.Service = invoice.NewService(invoice.ServiceConfig{
		Store:           invoicebun.NewStore(db),
		PDF:             pdf,
		HTML:            html,
		Mailer:          buildMailer(cfg.Mail, logger),
		Logger:          logger,
		DefaultTemplate: defaultTemplate,
	})

	if cfg.Database.Seed {
		if err := seedDemoData(ctx, app.Service, logger); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to seed data: %w", err)
		}
	}

	if dir := strings.TrimSpace(cfg.Jobs.ArchiveDir); dir != "" {
		sink, err := app.archiveSink(ctx, dir)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Archive = command.NewArchiveCommand(app.Service, dir,
			command.WithArchiveCronConfig(gcmd.HandlerConfig{Expression: cfg.Jobs.ArchiveSchedule}),
			command.WithArchiveSink(sink),
			command.WithArchiveTemplate(defaultTemplate),
			command.WithArchiveLogger(logger),
		)
	}

	if cfg.Jobs.AsyncSend {
		app.setupSendQueue()
	}

	// Register go-command handlers
	app.registration, err = command.RegisterInvoiceHandlers(nil, app.Service)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to register invoice handlers: %w", err)
	}

	if err := app.setupScheduler(); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) archiveSink(ctx context.Context, dir string) (command.ArchiveSink, error) {
	store := invoicearchive.NewStore(dir)
	cfg := a.Config.Notify
	if len(cfg.Recipients) == 0 {
		return store, nil
	}
	ready, err := invoicenotify.NewOnReadyNotifier(ctx, invoicenotify.Config{
		Recipients: cfg.Recipients,
		Locale:     cfg.Locale,
		Logger:     a.Logger,
		SMTP: invoicenotify.SMTPConfig{
			Host:        a.Config.Mail.Host,
			Port:        a.Config.Mail.Port,
			Username:    a.Config.Mail.Username,
			Password:    a.Config.Mail.Password,
			From:        a.Config.Mail.From,
			ReplyTo:     a.Config.Mail.ReplyTo,
			UseTLS:      a.Config.Mail.Port == 465,
			UseStartTLS: a.Config.Mail.Port == 587,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup archive notifications: %w", err)
	}
	a.Logger.Infof("archive notifications enabled for %s", strings.Join(cfg.Recipients, ", "))
	return &invoicenotify.ArchiveNotifier{
		Next:       store,
		Notifier:   ready,
		Recipients: cfg.Recipients,
		Channels:   cfg.Channels,
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/") + a.Config.Server.APIBase,
		LinkTTL:    cfg.LinkTTL,
		Logger:     a.Logger,
	}, nil
}

// setupSendQueue runs queued sends on background goroutines drained by Close.
func (a *App) setupSendQueue() {
	task := invoicedelivery.NewSendTask(invoicedelivery.TaskConfig{
		Sender: a.Service,
		Logger: a.Logger,
	})
	runner := job.NewTaskCommander(task)
	a.sendsCtx, a.stopSends = context.WithCancel(context.Background())

	enqueuer := invoicedelivery.EnqueuerFunc(func(ctx context.Context, msg *job.ExecutionMessage) error {
		a.sendsMu.Lock()
		if a.sendsClosed {
			a.sendsMu.Unlock()
			return invoice.NewError(invoice.KindCanceled, "send queue is shut down", nil)
		}
		a.pendingSends.Add(1)
		a.sendsMu.Unlock()
		go func() {
			defer a.pendingSends.Done()
			execCtx, cancel := context.WithTimeout(a.sendsCtx, queuedSendTimeout)
			defer cancel()
			if err := runner.Execute(execCtx, msg); err != nil {
				a.Logger.Errorf("queued invoice send failed: %v", err)
			}
		}()
		return nil
	})

	a.Sends = invoicedelivery.NewScheduler(invoicedelivery.SchedulerConfig{
		Enqueuer: enqueuer,
		Logger:   a.Logger,
	})
}

// SendQueue returns the background send queue, or nil when sends run inline.
func (a *App) SendQueue() invoiceapi.SendQueue {
	if a.Sends == nil {
		return nil
	}
	return a.Sends
}

func (a *App) drainSends(ctx context.Context) {
	if a.stopSends == nil {
		return
	}
	a.sendsMu.Lock()
	a.sendsClosed = true
	a.sendsMu.Unlock()

	done := make(chan struct{})
	go func() {
		a.pendingSends.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.Logger.Errorf("queued sends still running at shutdown, canceling")
		a.stopSends()
		<-done
	}
	a.stopSends()
}

func (a *App) setupScheduler() error {
	loc, err := time.LoadLocation(a.Config.Jobs.Timezone)
	if err != nil {
		return fmt.Errorf("invalid jobs timezone: %w", err)
	}
	a.Scheduler = invoicecron.NewScheduler(invoicecron.Config{Location: loc, Logger: a.Logger})

	overdue := a.registration.MarkOverdue
	if schedule := strings.TrimSpace(a.Config.Jobs.OverdueSchedule); schedule != "" {
		overdue.Config = gcmd.HandlerConfig{Expression: schedule}
	}
	if err := a.Scheduler.Register("invoice:mark-overdue", overdue); err != nil {
		return fmt.Errorf("failed to schedule overdue sweep: %w", err)
	}
	if a.Archive != nil {
		if err := a.Scheduler.Register("invoice:archive", a.Archive); err != nil {
			return fmt.Errorf("failed to schedule archive: %w", err)
		}
	}
	return nil
}

func (a *App) buildEngine(cfg config.PDFConfig) invoicepdf.Engine {
	defaults := invoice.PDFOptions{
		PageSize:        cfg.PageSize,
		PrintBackground: &cfg.PrintBackground,
	}
	if cfg.Engine == config.EngineWKHTMLTOPDF {
		return invoicepdf.WKHTMLTOPDFEngine{
			Command: cfg.WKHTMLTOPDFPath,
			Timeout: cfg.Timeout,
		}
	}
	a.chromium = &invoicepdf.ChromiumEngine{
		BrowserPath: cfg.ChromiumPath,
		Headless:    cfg.Headless,
		Timeout:     cfg.Timeout,
		Args:        cfg.Args,
		DefaultPDF:  defaults,
	}
	return a.chromium
}

func buildMailer(cfg config.MailConfig, logger invoice.Logger) invoice.Mailer {
	if strings.TrimSpace(cfg.Host) == "" {
		return invoicedelivery.LogMailer{Logger: logger}
	}
	return invoicedelivery.NewSMTPMailer(invoicedelivery.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
		ReplyTo:  cfg.ReplyTo,
	}, logger)
}

func issuerFromConfig(cfg config.IssuerConfig) invoicetemplate.Issuer {
	return invoicetemplate.Issuer{
		Name:         cfg.Name,
		Address:      cfg.Address,
		RegistryCode: cfg.RegistryCode,
		VATNumber:    cfg.VATNumber,
		Email:        cfg.Email,
		Phone:        cfg.Phone,
		IBAN:         cfg.IBAN,
	}
}

// Close releases app resources.
func (a *App) Close() error {
	a.registration.Unsubscribe()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.drainSends(ctx)
	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(ctx); err != nil {
			a.Logger.Errorf("scheduler stop: %v", err)
		}
	}
	if a.chromium != nil {
		if err := a.chromium.Close(); err != nil {
			a.Logger.Errorf("chromium close: %v", err)
		}
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
