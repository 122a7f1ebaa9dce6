package invoice

import (
	"fmt"
	"strings"
)

// PDFFilename builds the download name for an invoice PDF.
func PDFFilename(number string, template TemplateName) string {
	if template == "" {
		template = TemplateStandard
	}
	number = sanitizeFilenamePart(number)
	if number == "" {
		number = "draft"
	}
	return fmt.Sprintf("invoice_%s_%s.pdf", number, sanitizeFilenamePart(string(template)))
}

// PreviewFilename builds the inline name for an HTML preview.
func PreviewFilename(number string, template TemplateName) string {
	return strings.TrimSuffix(PDFFilename(number, template), ".pdf") + ".html"
}

func sanitizeFilenamePart(value string) string {
	value = strings.TrimSpace(value)
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), ".")
}
