package invoice

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	errorslib "github.com/goliatone/go-errors"
	"github.com/shopspring/decimal"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

var (
	errNotPositive = validation.NewError("validation_not_positive", "must be greater than zero")
	errNegative    = validation.NewError("validation_negative", "must not be negative")
	errVATRange    = validation.NewError("validation_vat_range", "must be between 0 and 100")
	errDueBefore   = validation.NewError("validation_due_before_issue", "must not be before the issue date")
)

// Validate checks client fields.
func (c Client) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&c.Email, validation.Length(0, 254), is.EmailFormat),
		validation.Field(&c.RegistryCode, validation.Length(0, 50)),
		validation.Field(&c.Phone, validation.Length(0, 50)),
		validation.Field(&c.Address, validation.Length(0, 500)),
	)
}

// Validate checks a single line item.
func (l LineItem) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Description, validation.Required, validation.Length(1, 500)),
		validation.Field(&l.Quantity, validation.By(decimalPositive)),
		validation.Field(&l.UnitPrice, validation.By(decimalNonNegative)),
	)
}

// Validate checks invoice fields and every line.
func (inv Invoice) Validate() error {
	return validation.ValidateStruct(&inv,
		validation.Field(&inv.ClientID, validation.Required),
		validation.Field(&inv.Number, validation.Length(0, 50)),
		validation.Field(&inv.IssueDate, validation.Required),
		validation.Field(&inv.DueDate, validation.Required, validation.By(notBefore(inv.IssueDate))),
		validation.Field(&inv.Currency, validation.Required, validation.Match(currencyPattern)),
		validation.Field(&inv.VATRate, validation.By(vatRange)),
		validation.Field(&inv.Lines, validation.Required),
		validation.Field(&inv.Notes, validation.Length(0, 2000)),
	)
}

// ValidateClient returns a go-errors validation error for invalid clients.
func ValidateClient(client Client) error {
	if err := client.Validate(); err != nil {
		return errorslib.FromOzzoValidation(err, "invalid client").WithTextCode("validation")
	}
	return nil
}

// ValidateInvoice returns a go-errors validation error for invalid invoices.
func ValidateInvoice(inv Invoice) error {
	if err := inv.Validate(); err != nil {
		return errorslib.FromOzzoValidation(err, "invalid invoice").WithTextCode("validation")
	}
	return nil
}

func decimalPositive(value any) error {
	d, ok := value.(decimal.Decimal)
	if !ok || !d.IsPositive() {
		return errNotPositive
	}
	return nil
}

func decimalNonNegative(value any) error {
	d, ok := value.(decimal.Decimal)
	if !ok || d.IsNegative() {
		return errNegative
	}
	return nil
}

func vatRange(value any) error {
	d, ok := value.(decimal.Decimal)
	if !ok || d.IsNegative() || d.GreaterThan(hundred) {
		return errVATRange
	}
	return nil
}

func notBefore(issue time.Time) validation.RuleFunc {
	return func(value any) error {
		due, ok := value.(time.Time)
		if !ok || issue.IsZero() {
			return nil
		}
		if dayOf(due).Before(dayOf(issue)) {
			return errDueBefore
		}
		return nil
	}
}
