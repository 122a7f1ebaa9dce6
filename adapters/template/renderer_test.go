package invoicetemplate

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-invoice/invoice"
	"github.com/shopspring/decimal"
)

func acmeInvoice() invoice.Invoice {
	issue := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return invoice.Invoice{
		Number:    "1001",
		Client:    invoice.Client{Name: "Acme OÜ", Email: "billing@acme.ee"},
		IssueDate: issue,
		DueDate:   issue.AddDate(0, 0, 14),
		Currency:  "EUR",
		Status:    invoice.StatusDraft,
		VATRate:   decimal.Zero,
		Lines: []invoice.LineItem{
			{Description: "Consulting", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(100)},
			{Description: "License", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(50)},
		},
	}
}

func newTestRenderer(t *testing.T) Renderer {
	t.Helper()
	renderer, err := New(PongoConfig{}, Issuer{Name: "Billi OÜ", IBAN: "EE382200221020145685"})
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	return renderer
}

func TestRenderHTML_Templates(t *testing.T) {
	renderer := newTestRenderer(t)

	for _, name := range invoice.Templates {
		t.Run(string(name), func(t *testing.T) {
			buf := &bytes.Buffer{}
			err := renderer.RenderHTML(context.Background(), acmeInvoice(), invoice.RenderOptions{Template: name}, buf)
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			html := buf.String()
			for _, want := range []string{"Acme OÜ", "200.00", "1001", "01.03.2025", "15.03.2025", "invoice-" + string(name)} {
				if !strings.Contains(html, want) {
					t.Fatalf("expected %q in output", want)
				}
			}
			if strings.Contains(html, "http://") || strings.Contains(html, "https://") {
				t.Fatalf("expected self-contained html")
			}
		})
	}
}

func TestRenderHTML_DefaultsToStandard(t *testing.T) {
	renderer := newTestRenderer(t)
	buf := &bytes.Buffer{}
	if err := renderer.RenderHTML(context.Background(), acmeInvoice(), invoice.RenderOptions{}, buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "invoice-standard") {
		t.Fatalf("expected standard template")
	}
}

func TestRenderHTML_RecomputesStaleTotals(t *testing.T) {
	renderer := newTestRenderer(t)
	inv := acmeInvoice()
	inv.Total = decimal.RequireFromString("999.99")

	buf := &bytes.Buffer{}
	if err := renderer.RenderHTML(context.Background(), inv, invoice.RenderOptions{}, buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(buf.String(), "999.99") {
		t.Fatalf("expected stored total to be ignored")
	}
}

func TestRenderHTML_Deterministic(t *testing.T) {
	renderer := newTestRenderer(t)
	first := &bytes.Buffer{}
	second := &bytes.Buffer{}
	if err := renderer.RenderHTML(context.Background(), acmeInvoice(), invoice.RenderOptions{Template: invoice.TemplateModern}, first); err != nil {
		t.Fatalf("render: %v", err)
	}
	if err := renderer.RenderHTML(context.Background(), acmeInvoice(), invoice.RenderOptions{Template: invoice.TemplateModern}, second); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Fatalf("expected identical output")
	}
}

func TestRenderHTML_EscapesClientInput(t *testing.T) {
	renderer := newTestRenderer(t)
	inv := acmeInvoice()
	inv.Client.Name = "<script>alert(1)</script>"

	buf := &bytes.Buffer{}
	if err := renderer.RenderHTML(context.Background(), inv, invoice.RenderOptions{}, buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(buf.String(), "<script>") {
		t.Fatalf("expected client name to be escaped")
	}
}

func TestRenderHTML_MissingFields(t *testing.T) {
	renderer := newTestRenderer(t)

	cases := []struct {
		name   string
		mutate func(*invoice.Invoice)
		field  string
	}{
		{"client name", func(inv *invoice.Invoice) { inv.Client.Name = " " }, "client name"},
		{"number", func(inv *invoice.Invoice) { inv.Number = "" }, "number"},
		{"lines", func(inv *invoice.Invoice) { inv.Lines = nil }, "line items"},
		{"line description", func(inv *invoice.Invoice) { inv.Lines[1].Description = "" }, "line 2 description"},
		{"due date", func(inv *invoice.Invoice) { inv.DueDate = time.Time{} }, "due date"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := acmeInvoice()
			tc.mutate(&inv)
			buf := &bytes.Buffer{}
			err := renderer.RenderHTML(context.Background(), inv, invoice.RenderOptions{}, buf)
			if !invoice.IsTemplateRenderError(err) {
				t.Fatalf("expected template render error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Fatalf("expected %q in %q", tc.field, err.Error())
			}
			if buf.Len() != 0 {
				t.Fatalf("expected no output on failure")
			}
		})
	}
}

func TestRenderHTML_ContextErrorsAreNotTemplateErrors(t *testing.T) {
	renderer := newTestRenderer(t)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	err := renderer.RenderHTML(canceled, acmeInvoice(), invoice.RenderOptions{}, &bytes.Buffer{})
	if invoice.KindFromError(err) != invoice.KindCanceled {
		t.Fatalf("expected canceled, got %v", err)
	}

	expired, stop := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer stop()
	err = renderer.RenderHTML(expired, acmeInvoice(), invoice.RenderOptions{}, &bytes.Buffer{})
	if invoice.KindFromError(err) != invoice.KindTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if invoice.IsTemplateRenderError(err) {
		t.Fatalf("expected deadline not to be reported as a template error")
	}
}

func TestRenderHTML_UnknownTemplate(t *testing.T) {
	renderer := newTestRenderer(t)
	err := renderer.RenderHTML(context.Background(), acmeInvoice(), invoice.RenderOptions{Template: "gothic"}, &bytes.Buffer{})
	if !invoice.IsTemplateRenderError(err) {
		t.Fatalf("expected template render error, got %v", err)
	}
}

func TestRenderHTML_MaxBytes(t *testing.T) {
	renderer := newTestRenderer(t)
	renderer.MaxHTMLBytes = 64

	buf := &bytes.Buffer{}
	err := renderer.RenderHTML(context.Background(), acmeInvoice(), invoice.RenderOptions{}, buf)
	if !invoice.IsTemplateRenderError(err) {
		t.Fatalf("expected template render error, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected no partial output")
	}
}

func TestRenderHTML_MissingTemplates(t *testing.T) {
	err := Renderer{}.RenderHTML(context.Background(), acmeInvoice(), invoice.RenderOptions{}, &bytes.Buffer{})
	if !invoice.IsTemplateRenderError(err) {
		t.Fatalf("expected template render error, got %v", err)
	}
}

func TestRenderHTML_DirectoryOverride(t *testing.T) {
	dir := t.TempDir()
	override := "<html><body>custom {{ invoice.Number }} for {{ client.Name }}</body></html>"
	if err := os.WriteFile(filepath.Join(dir, "standard.html"), []byte(override), 0o600); err != nil {
		t.Fatalf("write override: %v", err)
	}

	renderer, err := New(PongoConfig{Dir: dir}, Issuer{})
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}

	buf := &bytes.Buffer{}
	if err := renderer.RenderHTML(context.Background(), acmeInvoice(), invoice.RenderOptions{}, buf); err != nil {
		t.Fatalf("render standard: %v", err)
	}
	if got := buf.String(); got != "<html><body>custom 1001 for Acme OÜ</body></html>" {
		t.Fatalf("unexpected override output %q", got)
	}

	buf.Reset()
	if err := renderer.RenderHTML(context.Background(), acmeInvoice(), invoice.RenderOptions{Template: invoice.TemplateElegant}, buf); err != nil {
		t.Fatalf("render elegant: %v", err)
	}
	if !strings.Contains(buf.String(), "invoice-elegant") {
		t.Fatalf("expected embedded fallback for elegant template")
	}
}

func TestFormatQuantity(t *testing.T) {
	cases := map[string]string{
		"2":    "2",
		"2.00": "2",
		"1.5":  "1.5",
		"0.25": "0.25",
	}
	for input, want := range cases {
		if got := formatQuantity(decimal.RequireFromString(input)); got != want {
			t.Fatalf("formatQuantity(%s) = %s, want %s", input, got, want)
		}
	}
}
