// Package invoicetemplate renders invoices to self-contained HTML with pongo2.
//
// Renderer validates the fields every template prints, builds a context of
// preformatted strings and executes the named template (standard, modern or
// elegant) into a bounded buffer. Output reaches the caller's writer only after
// the template has executed completely, so a failure never leaks partial HTML.
// Every failure is reported as an invoice TemplateRenderError.
//
// Templates are embedded; PongoConfig.Dir may point at a directory whose files
// override the embedded ones by name.
package invoicetemplate
