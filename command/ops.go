package command

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-invoice/invoice"
)

// DefaultOverdueSchedule runs the overdue sweep at the top of every hour.
const DefaultOverdueSchedule = "0 * * * *"

// CLIHandler exposes the overdue sweep via CLI.
func (h *MarkOverdueHandler) CLIHandler() any {
	return &overdueCLI{handler: h}
}

// CLIOptions describes overdue sweep CLI metadata.
func (h *MarkOverdueHandler) CLIOptions() gcmd.CLIConfig {
	return gcmd.CLIConfig{
		Path:        []string{"invoices-mark-overdue"},
		Description: "Mark sent invoices past their due date as overdue",
		Group:       "invoices",
	}
}

type overdueCLI struct {
	handler *MarkOverdueHandler
	Date    string `kong:"name='date',help='Evaluate due dates as of YYYY-MM-DD (default today)'"`
}

func (c *overdueCLI) Run() error {
	if c == nil || c.handler == nil {
		return errors.New("overdue handler is required", errors.CategoryInternal).
			WithTextCode("OVERDUE_HANDLER_REQUIRED")
	}
	var now time.Time
	if date := strings.TrimSpace(c.Date); date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return errors.Wrap(err, errors.CategoryValidation, "date must be YYYY-MM-DD").
				WithTextCode("DATE_INVALID")
		}
		now = parsed
	}
	return c.handler.Execute(context.Background(), MarkOverdue{Now: now})
}

// ArchiveRequest selects invoices for a PDF archive run. Number, when known,
// lets the run skip invoices already present in the archive without
// rendering them.
type ArchiveRequest struct {
	InvoiceID string               `json:"invoice_id"`
	Number    string               `json:"number,omitempty"`
	Template  invoice.TemplateName `json:"template,omitempty"`
}

// ArchiveLoader loads archive requests from a source.
type ArchiveLoader func(ctx context.Context) ([]ArchiveRequest, error)

// ArchiveSink persists rendered documents. Save reports false when the
// archive already holds an identical document.
type ArchiveSink interface {
	Save(ctx context.Context, doc invoice.Document) (bool, error)
}

// ArchiveIndex is implemented by sinks that can tell whether a document is
// already archived.
type ArchiveIndex interface {
	Exists(ctx context.Context, filename string) (bool, error)
}

// ArchiveResult summarizes one archive run.
type ArchiveResult struct {
	Archived int
	Skipped  int
	Failed   int
}

// ArchiveLimits bounds archive throughput.
type ArchiveLimits struct {
	MaxRequests int
	MinInterval time.Duration
}

// ArchiveCommand renders invoice PDFs into a directory.
type ArchiveCommand struct {
	service    invoice.Service
	loader     ArchiveLoader
	dir        string
	cliConfig  gcmd.CLIConfig
	cronConfig gcmd.HandlerConfig
	limits     ArchiveLimits
	sink       ArchiveSink
	template   invoice.TemplateName
	logger     invoice.Logger
	sleep      func(time.Duration)
}

// ArchiveOption customizes archive commands.
type ArchiveOption func(*ArchiveCommand)

// WithArchiveCronConfig overrides cron configuration.
func WithArchiveCronConfig(cfg gcmd.HandlerConfig) ArchiveOption {
	return func(cmd *ArchiveCommand) {
		cmd.cronConfig = cfg
	}
}

// WithArchiveLimits overrides archive limits.
func WithArchiveLimits(limits ArchiveLimits) ArchiveOption {
	return func(cmd *ArchiveCommand) {
		cmd.limits = limits
	}
}

// WithArchiveLoader sets the default request source.
func WithArchiveLoader(loader ArchiveLoader) ArchiveOption {
	return func(cmd *ArchiveCommand) {
		cmd.loader = loader
	}
}

// WithArchiveSink replaces the plain directory writer.
func WithArchiveSink(sink ArchiveSink) ArchiveOption {
	return func(cmd *ArchiveCommand) {
		cmd.sink = sink
	}
}

// WithArchiveTemplate sets the template used when a request names none.
func WithArchiveTemplate(name invoice.TemplateName) ArchiveOption {
	return func(cmd *ArchiveCommand) {
		cmd.template = name
	}
}

// WithArchiveLogger sets the logger used for per-invoice failures.
func WithArchiveLogger(logger invoice.Logger) ArchiveOption {
	return func(cmd *ArchiveCommand) {
		cmd.logger = logger
	}
}

// NewArchiveCommand creates a CLI/Cron command writing invoice PDFs to dir.
// Without a loader every paid invoice is archived.
func NewArchiveCommand(svc invoice.Service, dir string, opts ...ArchiveOption) *ArchiveCommand {
	cmd := &ArchiveCommand{
		service: svc,
		dir:     dir,
		cliConfig: gcmd.CLIConfig{
			Path:        []string{"invoices-archive"},
			Description: "Render invoice PDFs into the archive directory",
			Group:       "invoices",
		},
		cronConfig: gcmd.HandlerConfig{Expression: "30 2 * * *"},
		template:   invoice.TemplateStandard,
		logger:     invoice.NopLogger{},
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cmd)
		}
	}
	if cmd.sink == nil {
		cmd.sink = dirSink{dir: dir}
	}
	if cmd.logger == nil {
		cmd.logger = invoice.NopLogger{}
	}
	if cmd.template == "" {
		cmd.template = invoice.TemplateStandard
	}
	return cmd
}

// CronHandler executes the archive run.
func (c *ArchiveCommand) CronHandler() func() error {
	return func() error {
		_, err := c.run(context.Background(), "")
		return err
	}
}

// CronOptions returns cron configuration.
func (c *ArchiveCommand) CronOptions() gcmd.HandlerConfig {
	if c == nil {
		return gcmd.HandlerConfig{}
	}
	return c.cronConfig
}

// CLIHandler exposes the CLI handler.
func (c *ArchiveCommand) CLIHandler() any {
	return &archiveCLI{cmd: c}
}

// CLIOptions returns CLI configuration.
func (c *ArchiveCommand) CLIOptions() gcmd.CLIConfig {
	if c == nil {
		return gcmd.CLIConfig{}
	}
	return c.cliConfig
}

// run archives every requested invoice. A failing invoice is logged and
// counted; the remaining requests still run and the failures are joined
// into the returned error.
func (c *ArchiveCommand) run(ctx context.Context, from string) (ArchiveResult, error) {
	var result ArchiveResult
	if c == nil {
		return result, errors.New("archive command is nil", errors.CategoryInternal).
			WithTextCode("ARCHIVE_CMD_NIL")
	}
	if c.service == nil {
		return result, errServiceRequired()
	}
	if strings.TrimSpace(c.dir) == "" {
		return result, errors.New("archive directory is required", errors.CategoryValidation).
			WithTextCode("ARCHIVE_DIR_REQUIRED")
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return result, errors.Wrap(err, errors.CategoryExternal, "create archive directory failed").
			WithTextCode("ARCHIVE_DIR_CREATE")
	}

	requests, err := c.loadRequests(ctx, from)
	if err != nil {
		return result, err
	}
	sink := c.sink
	if sink == nil {
		sink = dirSink{dir: c.dir}
	}
	index, _ := sink.(ArchiveIndex)
	logger := c.logger
	if logger == nil {
		logger = invoice.NopLogger{}
	}

	var failures []error
	rendered := 0
	for _, req := range requests {
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}
		if c.limits.MaxRequests > 0 && rendered >= c.limits.MaxRequests {
			break
		}
		tpl := req.Template
		if tpl == "" {
			tpl = c.template
		}
		if index != nil && strings.TrimSpace(req.Number) != "" {
			exists, err := index.Exists(ctx, invoice.PDFFilename(req.Number, tpl))
			if err != nil {
				logger.Errorf("invoice %s archive lookup failed: %v", req.Number, err)
			} else if exists {
				result.Skipped++
				continue
			}
		}

		rendered++
		doc, err := c.service.RenderPDF(ctx, req.InvoiceID, invoice.RenderOptions{Template: tpl})
		if err != nil {
			logger.Errorf("invoice %s archive render failed: %v", req.InvoiceID, err)
			failures = append(failures, err)
			result.Failed++
			c.pause()
			continue
		}
		created, err := sink.Save(ctx, doc)
		if err != nil {
			logger.Errorf("invoice %s archive write failed: %v", req.InvoiceID, err)
			failures = append(failures, errors.Wrap(err, errors.CategoryExternal, "write archive file failed").
				WithTextCode("ARCHIVE_WRITE"))
			result.Failed++
			c.pause()
			continue
		}
		if created {
			result.Archived++
		} else {
			result.Skipped++
		}
		c.pause()
	}
	logger.Infof("invoice archive run: %d archived, %d skipped, %d failed", result.Archived, result.Skipped, result.Failed)
	return result, stderrors.Join(failures...)
}

func (c *ArchiveCommand) pause() {
	if c.limits.MinInterval > 0 && c.sleep != nil {
		c.sleep(c.limits.MinInterval)
	}
}

func (c *ArchiveCommand) loadRequests(ctx context.Context, from string) ([]ArchiveRequest, error) {
	if strings.TrimSpace(from) != "" {
		return loadArchiveRequestsFromFile(from)
	}
	if c.loader != nil {
		return c.loader(ctx)
	}
	paid, err := c.service.ListInvoices(ctx, invoice.InvoiceFilter{Status: invoice.StatusPaid})
	if err != nil {
		return nil, err
	}
	requests := make([]ArchiveRequest, 0, len(paid))
	for _, inv := range paid {
		requests = append(requests, ArchiveRequest{InvoiceID: inv.ID, Number: inv.Number})
	}
	return requests, nil
}

type dirSink struct {
	dir string
}

func (s dirSink) Save(ctx context.Context, doc invoice.Document) (bool, error) {
	_ = ctx
	target := filepath.Join(s.dir, filepath.Base(doc.Filename))
	if current, err := os.ReadFile(target); err == nil && bytes.Equal(current, doc.Data) {
		return false, nil
	}
	if err := os.WriteFile(target, doc.Data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

func (s dirSink) Exists(ctx context.Context, filename string) (bool, error) {
	_ = ctx
	_, err := os.Stat(filepath.Join(s.dir, filepath.Base(filename)))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

type archiveCLI struct {
	cmd  *ArchiveCommand
	From string `kong:"name='from',help='Path to JSON archive requests'"`
}

func (c *archiveCLI) Run() error {
	if c == nil || c.cmd == nil {
		return errors.New("archive command is required", errors.CategoryInternal).
			WithTextCode("ARCHIVE_CMD_NIL")
	}
	_, err := c.cmd.run(context.Background(), c.From)
	return err
}

func loadArchiveRequestsFromFile(path string) ([]ArchiveRequest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "read archive file failed").
			WithTextCode("ARCHIVE_FILE_READ")
	}

	var requests []ArchiveRequest
	if err := json.Unmarshal(content, &requests); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "archive file invalid JSON").
			WithTextCode("ARCHIVE_FILE_INVALID")
	}
	return requests, nil
}
