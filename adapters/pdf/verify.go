package invoicepdf

import (
	"bytes"
	"errors"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var pdfMagic = []byte("%PDF-")

// PDFCPUVerifier validates output with pdfcpu in relaxed mode.
type PDFCPUVerifier struct {
	MinPages int
}

var _ Verifier = PDFCPUVerifier{}

// Verify parses pdf and returns its page count.
func (v PDFCPUVerifier) Verify(pdf []byte) (int, error) {
	if !bytes.HasPrefix(pdf, pdfMagic) {
		return 0, errors.New("missing pdf header")
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.Validate(bytes.NewReader(pdf), conf); err != nil {
		return 0, err
	}
	pages, err := api.PageCount(bytes.NewReader(pdf), conf)
	if err != nil {
		return 0, err
	}

	minPages := v.MinPages
	if minPages <= 0 {
		minPages = 1
	}
	if pages < minPages {
		return pages, errors.New("pdf has no pages")
	}
	return pages, nil
}
