package invoicepdf

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/goliatone/go-invoice/invoice"
)

const (
	defaultPDFScale        = 1.0
	defaultInvoicePageSize = "A4"
	defaultInvoiceMargin   = "15mm"
)

var pdfLengthPattern = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)\s*([a-zA-Z]*)\s*$`)

var pdfPageSizesInches = map[string]struct {
	width  float64
	height float64
}{
	"A3":     {width: 11.69, height: 16.54},
	"A4":     {width: 8.27, height: 11.69},
	"A5":     {width: 5.83, height: 8.27},
	"LETTER": {width: 8.5, height: 11},
	"LEGAL":  {width: 8.5, height: 14},
}

// ChromiumEngine renders PDF output with a shared headless Chromium process.
// Each render runs in its own tab, so concurrent renders share no page state.
type ChromiumEngine struct {
	BrowserPath string
	Headless    bool
	Timeout     time.Duration
	Args        []string

	DefaultPDF invoice.PDFOptions

	initOnce      sync.Once
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	initErr       error
}

// Render executes Chromium-based HTML-to-PDF rendering.
func (e *ChromiumEngine) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	if e == nil {
		return nil, invoice.NewConversionError("chromium engine is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := e.ensureBrowser(); err != nil {
		return nil, invoice.NewConversionError("chromium engine init failed", err)
	}

	tabCtx, cancel := chromedp.NewContext(e.browserCtx)
	defer cancel()

	execCtx := tabCtx
	if ctx != nil {
		var cancelReq context.CancelFunc
		execCtx, cancelReq = context.WithCancel(tabCtx)
		defer cancelReq()
		go func() {
			select {
			case <-ctx.Done():
				cancelReq()
			case <-execCtx.Done():
			}
		}()
	}
	if e.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		execCtx, cancelTimeout = context.WithTimeout(execCtx, e.Timeout)
		defer cancelTimeout()
	}

	options := mergePDFOptions(e.defaultPDFOptions(), req.Options)
	params, err := buildPrintToPDFParams(options)
	if err != nil {
		return nil, invoice.NewConversionError("invalid pdf options", err)
	}

	var pdf []byte
	actions := []chromedp.Action{}
	if options.ExternalAssetsPolicy != invoice.PDFExternalAssetsAllow {
		actions = append(actions,
			network.Enable(),
			network.SetBlockedURLs().WithURLPatterns(blockedURLPatterns()),
		)
	}

	actions = append(actions,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(req.HTML)).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = params.Do(ctx)
			return err
		}),
	)

	if err := chromedp.Run(execCtx, actions...); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return nil, invoice.NewConversionError("chromium pdf render timed out", err)
		}
		return nil, invoice.NewConversionError("chromium pdf render failed", err)
	}
	return pdf, nil
}

// blockedURLPatterns covers every remote scheme Chromium could fetch from
// while the invoice document loads.
func blockedURLPatterns() []*network.BlockPattern {
	return []*network.BlockPattern{
		{URLPattern: "http://*:*/*", Block: true},
		{URLPattern: "https://*:*/*", Block: true},
	}
}

// Close releases Chromium resources if they have been initialized.
func (e *ChromiumEngine) Close() error {
	if e == nil {
		return nil
	}
	if e.browserCancel != nil {
		e.browserCancel()
	}
	if e.allocCancel != nil {
		e.allocCancel()
	}
	return nil
}

func (e *ChromiumEngine) ensureBrowser() error {
	e.initOnce.Do(func() {
		options := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if e.BrowserPath != "" {
			options = append(options, chromedp.ExecPath(e.BrowserPath))
		}
		options = append(options, chromedp.Flag("headless", e.Headless))
		options = append(options, allocatorOptionsFromArgs(e.Args)...)

		e.allocCtx, e.allocCancel = chromedp.NewExecAllocator(context.Background(), options...)
		e.browserCtx, e.browserCancel = chromedp.NewContext(e.allocCtx)
		// Start the browser once; tabs opened from browserCtx share it.
		if err := chromedp.Run(e.browserCtx); err != nil {
			e.initErr = err
			e.browserCancel()
			e.allocCancel()
		}
	})
	if e.initErr != nil {
		return e.initErr
	}
	if e.allocCtx == nil || e.browserCtx == nil {
		return errors.New("chromium allocator unavailable")
	}
	return nil
}

// defaultPDFOptions prints invoices on A4 with 15mm margins unless the
// engine or the template says otherwise.
func (e *ChromiumEngine) defaultPDFOptions() invoice.PDFOptions {
	defaults := e.DefaultPDF
	if defaults.PageSize == "" && (defaults.PreferCSSPageSize == nil || !*defaults.PreferCSSPageSize) {
		defaults.PageSize = defaultInvoicePageSize
	}
	for _, margin := range []*string{&defaults.MarginTop, &defaults.MarginBottom, &defaults.MarginLeft, &defaults.MarginRight} {
		if *margin == "" {
			*margin = defaultInvoiceMargin
		}
	}
	if defaults.Scale == 0 {
		defaults.Scale = defaultPDFScale
	}
	if defaults.PrintBackground == nil {
		defaults.PrintBackground = boolPtr(true)
	}
	return defaults
}

// mergePDFOptions overlays every non-zero field of override onto base.
func mergePDFOptions(base, override invoice.PDFOptions) invoice.PDFOptions {
	merged := base
	overlayString(&merged.PageSize, override.PageSize)
	overlayString(&merged.MarginTop, override.MarginTop)
	overlayString(&merged.MarginBottom, override.MarginBottom)
	overlayString(&merged.MarginLeft, override.MarginLeft)
	overlayString(&merged.MarginRight, override.MarginRight)
	overlayBool(&merged.Landscape, override.Landscape)
	overlayBool(&merged.PrintBackground, override.PrintBackground)
	overlayBool(&merged.PreferCSSPageSize, override.PreferCSSPageSize)
	if override.Scale != 0 {
		merged.Scale = override.Scale
	}
	if override.ExternalAssetsPolicy != "" {
		merged.ExternalAssetsPolicy = override.ExternalAssetsPolicy
	}
	return merged
}

func overlayString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func overlayBool(dst **bool, value *bool) {
	if value != nil {
		*dst = value
	}
}

func buildPrintToPDFParams(opts invoice.PDFOptions) (*page.PrintToPDFParams, error) {
	scale := opts.Scale
	if scale == 0 {
		scale = defaultPDFScale
	}
	if scale < 0.1 || scale > 2.0 {
		return nil, invoice.NewError(invoice.KindValidation, "pdf scale must be between 0.1 and 2.0", nil)
	}
	params := page.PrintToPDF().WithScale(scale)

	if opts.Landscape != nil {
		params = params.WithLandscape(*opts.Landscape)
	}
	if opts.PrintBackground != nil {
		params = params.WithPrintBackground(*opts.PrintBackground)
	}
	if preferCSSPageSize(opts) {
		params = params.WithPreferCSSPageSize(true)
	}

	if opts.PageSize != "" {
		size, ok := pdfPageSizesInches[strings.ToUpper(strings.TrimSpace(opts.PageSize))]
		if !ok {
			return nil, invoice.NewError(invoice.KindValidation, fmt.Sprintf("unsupported pdf page size: %s", opts.PageSize), nil)
		}
		params = params.WithPaperWidth(size.width).WithPaperHeight(size.height)
	}

	margins := []struct {
		value string
		dst   *float64
	}{
		{opts.MarginTop, &params.MarginTop},
		{opts.MarginBottom, &params.MarginBottom},
		{opts.MarginLeft, &params.MarginLeft},
		{opts.MarginRight, &params.MarginRight},
	}
	for _, margin := range margins {
		if margin.value == "" {
			continue
		}
		inches, err := parseLengthInches(margin.value)
		if err != nil {
			return nil, err
		}
		*margin.dst = inches
	}
	return params, nil
}

// preferCSSPageSize lets an @page rule win when no paper size is forced.
func preferCSSPageSize(opts invoice.PDFOptions) bool {
	if opts.PreferCSSPageSize != nil {
		return *opts.PreferCSSPageSize
	}
	return opts.PageSize == ""
}

// unitsPerInch converts CSS lengths; a bare number is inches.
var unitsPerInch = map[string]float64{
	"":   1,
	"in": 1,
	"cm": 2.54,
	"mm": 25.4,
	"pt": 72,
	"px": 96,
}

func parseLengthInches(value string) (float64, error) {
	matches := pdfLengthPattern.FindStringSubmatch(value)
	if len(matches) != 3 {
		return 0, invoice.NewError(invoice.KindValidation, fmt.Sprintf("invalid pdf length: %s", value), nil)
	}
	amount, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, invoice.NewError(invoice.KindValidation, fmt.Sprintf("invalid pdf length: %s", value), err)
	}
	per, ok := unitsPerInch[strings.ToLower(matches[2])]
	if !ok {
		return 0, invoice.NewError(invoice.KindValidation, fmt.Sprintf("unsupported pdf length unit: %s", matches[2]), nil)
	}
	return amount / per, nil
}

// allocatorOptionsFromArgs turns "--flag" and "--flag=value" strings into
// allocator flags.
func allocatorOptionsFromArgs(args []string) []chromedp.ExecAllocatorOption {
	var options []chromedp.ExecAllocatorOption
	for _, arg := range args {
		arg = strings.TrimPrefix(strings.TrimSpace(arg), "--")
		if arg == "" {
			continue
		}
		name, value, hasValue := strings.Cut(arg, "=")
		if hasValue {
			options = append(options, chromedp.Flag(name, value))
		} else {
			options = append(options, chromedp.Flag(name, true))
		}
	}
	return options
}

func boolPtr(value bool) *bool {
	return &value
}
