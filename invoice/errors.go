package invoice

import (
	"context"
	"errors"

	errorslib "github.com/goliatone/go-errors"
)

// ErrorKind defines invoice error kinds.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindNotFound       ErrorKind = "not_found"
	KindConflict       ErrorKind = "conflict"
	KindTemplateRender ErrorKind = "template_render"
	KindConversion     ErrorKind = "conversion"
	KindExternal       ErrorKind = "external"
	KindTimeout        ErrorKind = "timeout"
	KindCanceled       ErrorKind = "canceled"
	KindInternal       ErrorKind = "internal"
	KindNotImpl        ErrorKind = "not_implemented"
)

// ConversionHint is appended to conversion failures surfaced to operators.
const ConversionHint = "verify that Chromium and its native font and graphics libraries are installed"

// InvoiceError wraps errors with a kind.
type InvoiceError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *InvoiceError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *InvoiceError) Unwrap() error {
	return e.Err
}

// NewError creates a new invoice error.
func NewError(kind ErrorKind, msg string, err error) *InvoiceError {
	return &InvoiceError{Kind: kind, Msg: msg, Err: err}
}

// NewTemplateRenderError reports that the invoice document could not be produced.
func NewTemplateRenderError(msg string, err error) *InvoiceError {
	return NewError(KindTemplateRender, msg, err)
}

// NewConversionError reports an HTML-to-PDF backend failure.
func NewConversionError(msg string, err error) *InvoiceError {
	return NewError(KindConversion, msg, err)
}

// IsTemplateRenderError reports whether err is a template render failure.
func IsTemplateRenderError(err error) bool {
	return KindFromError(err) == KindTemplateRender
}

// IsConversionError reports whether err is a PDF conversion failure.
func IsConversionError(err error) bool {
	return KindFromError(err) == KindConversion
}

// AsGoError maps an error into a go-errors error.
func AsGoError(err error) *errorslib.Error {
	if err == nil {
		return nil
	}

	var invoiceErr *InvoiceError
	if !errors.As(err, &invoiceErr) {
		var ge *errorslib.Error
		if errors.As(err, &ge) {
			return ge
		}
	}

	kind := KindFromError(err)
	msg := err.Error()
	if invoiceErr != nil && invoiceErr.Msg != "" {
		msg = invoiceErr.Msg
	}

	var ge *errorslib.Error
	switch kind {
	case KindValidation:
		ge = errorslib.New(msg, errorslib.CategoryValidation).WithTextCode("validation")
	case KindNotFound:
		ge = errorslib.New(msg, errorslib.CategoryNotFound).WithTextCode("not_found")
	case KindConflict:
		ge = errorslib.New(msg, errorslib.CategoryConflict).WithTextCode("conflict")
	case KindTemplateRender:
		ge = errorslib.New(msg, errorslib.CategoryBadInput).WithTextCode("template_render")
	case KindConversion:
		ge = errorslib.New(msg+"; "+ConversionHint, errorslib.CategoryExternal).WithTextCode("conversion")
	case KindExternal:
		ge = errorslib.New(msg, errorslib.CategoryExternal).WithTextCode("external")
	case KindTimeout:
		ge = errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("timeout")
	case KindCanceled:
		ge = errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("canceled")
	case KindNotImpl:
		ge = errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("not_implemented")
	default:
		ge = errorslib.New(msg, errorslib.CategoryInternal).WithTextCode("internal")
	}
	ge.Source = err
	return ge
}

// KindFromError maps an error to its invoice error kind.
func KindFromError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var invoiceErr *InvoiceError
	if errors.As(err, &invoiceErr) {
		return invoiceErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	var ge *errorslib.Error
	if errors.As(err, &ge) {
		switch ge.TextCode {
		case string(KindTemplateRender):
			return KindTemplateRender
		case string(KindConversion):
			return KindConversion
		case string(KindTimeout):
			return KindTimeout
		case string(KindCanceled):
			return KindCanceled
		case string(KindNotImpl):
			return KindNotImpl
		}
		switch ge.Category {
		case errorslib.CategoryValidation, errorslib.CategoryBadInput:
			return KindValidation
		case errorslib.CategoryNotFound:
			return KindNotFound
		case errorslib.CategoryConflict:
			return KindConflict
		case errorslib.CategoryExternal:
			return KindExternal
		}
	}

	return KindInternal
}
