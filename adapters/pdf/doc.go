// Package invoicepdf converts rendered invoice HTML into PDF documents.
//
// Renderer renders HTML through an invoice.HTMLRenderer and hands it to a
// pluggable Engine (headless Chromium via chromedp, or wkhtmltopdf). Output is
// checked for the PDF header, optionally validated with pdfcpu, and its
// timestamps are pinned to the invoice issue date so equal snapshots give
// equal bytes. Template failures surface as TemplateRenderError and every
// engine or verification failure as ConversionError.
package invoicepdf
