package invoicepdf

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/goliatone/go-invoice/invoice"
)

// RenderRequest contains HTML input and PDF options for engines.
type RenderRequest struct {
	HTML    []byte
	Options invoice.PDFOptions
}

// Engine renders HTML content into PDF bytes.
type Engine interface {
	Render(ctx context.Context, req RenderRequest) ([]byte, error)
}

// EngineFunc adapts a function to an Engine.
type EngineFunc func(ctx context.Context, req RenderRequest) ([]byte, error)

func (f EngineFunc) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	if f == nil {
		return nil, errors.New("pdf engine func is nil")
	}
	return f(ctx, req)
}

// Verifier checks converted output and reports its page count.
type Verifier interface {
	Verify(pdf []byte) (int, error)
}

// Renderer turns an invoice snapshot into PDF bytes.
type Renderer struct {
	HTML     invoice.HTMLRenderer
	Engine   Engine
	Verifier Verifier
	Logger   invoice.Logger
}

var _ invoice.PDFRenderer = Renderer{}

// RenderPDF renders the invoice HTML, converts it and returns the complete
// document. No bytes are returned with an error.
func (r Renderer) RenderPDF(ctx context.Context, inv invoice.Invoice, opts invoice.RenderOptions) ([]byte, error) {
	if r.HTML == nil {
		return nil, invoice.NewTemplateRenderError("pdf renderer requires an html renderer", nil)
	}
	if r.Engine == nil {
		return nil, invoice.NewConversionError("pdf renderer requires an engine", nil)
	}
	logger := r.Logger
	if logger == nil {
		logger = invoice.NopLogger{}
	}

	var html bytes.Buffer
	if err := r.HTML.RenderHTML(ctx, inv, opts, &html); err != nil {
		switch invoice.KindFromError(err) {
		case invoice.KindTemplateRender, invoice.KindTimeout, invoice.KindCanceled:
		default:
			err = invoice.NewTemplateRenderError("invoice html render failed", err)
		}
		logger.Errorf("invoice %s template render failed: %v", inv.Number, err)
		return nil, err
	}

	started := time.Now()
	pdf, err := r.Engine.Render(ctx, RenderRequest{HTML: html.Bytes(), Options: opts.PDF})
	if err != nil {
		if !invoice.IsConversionError(err) {
			err = invoice.NewConversionError("pdf conversion failed", err)
		}
		logger.Errorf("invoice %s pdf conversion failed: %v", inv.Number, err)
		return nil, err
	}
	if len(pdf) == 0 {
		err := invoice.NewConversionError("pdf engine returned no output", nil)
		logger.Errorf("invoice %s pdf conversion failed: %v", inv.Number, err)
		return nil, err
	}
	if !bytes.HasPrefix(pdf, pdfMagic) {
		err := invoice.NewConversionError("pdf engine returned non-pdf output", nil)
		logger.Errorf("invoice %s pdf conversion failed: %v", inv.Number, err)
		return nil, err
	}
	if r.Verifier != nil {
		pages, err := r.Verifier.Verify(pdf)
		if err != nil {
			err = invoice.NewConversionError("pdf output failed validation", err)
			logger.Errorf("invoice %s pdf verification failed: %v", inv.Number, err)
			return nil, err
		}
		logger.Debugf("invoice %s pdf verified, %d page(s)", inv.Number, pages)
	}

	pdf = NormalizePDF(pdf, inv.IssueDate, inv.Number)
	logger.Debugf("invoice %s pdf rendered in %s (%d bytes)", inv.Number, time.Since(started), len(pdf))
	return pdf, nil
}

// WKHTMLTOPDFEngine invokes wkhtmltopdf for HTML-to-PDF conversion.
type WKHTMLTOPDFEngine struct {
	Command string
	Args    []string
	Env     []string
	Timeout time.Duration
}

// Render executes wkhtmltopdf using stdin/stdout for HTML/PDF.
func (e WKHTMLTOPDFEngine) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	cmdPath := strings.TrimSpace(e.Command)
	if cmdPath == "" {
		cmdPath = "wkhtmltopdf"
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cmdCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	args := append([]string{"--quiet", "--disable-javascript"}, e.Args...)
	if req.Options.ExternalAssetsPolicy != invoice.PDFExternalAssetsAllow {
		args = append(args, "--disable-local-file-access")
	}
	if req.Options.PageSize != "" {
		args = append(args, "--page-size", req.Options.PageSize)
	}
	if req.Options.Landscape != nil && *req.Options.Landscape {
		args = append(args, "--orientation", "Landscape")
	}
	args = append(args, "-", "-")
	cmd := exec.CommandContext(cmdCtx, cmdPath, args...)
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	cmd.Stdin = bytes.NewReader(req.HTML)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = "wkhtmltopdf failed"
		}
		return nil, invoice.NewConversionError(message, err)
	}
	return stdout.Bytes(), nil
}
