package invoicebun

import (
	"fmt"
	"time"

	"github.com/goliatone/go-invoice/invoice"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type clientModel struct {
	bun.BaseModel `bun:"table:clients,alias:c"`

	ID           string    `bun:",pk"`
	Name         string    `bun:",notnull"`
	RegistryCode string    `bun:"registry_code"`
	Email        string    `bun:"email"`
	Phone        string    `bun:"phone"`
	Address      string    `bun:"address"`
	CreatedAt    time.Time `bun:"created_at"`
}

// Money values are stored as fixed-point strings.
type invoiceModel struct {
	bun.BaseModel `bun:"table:invoices,alias:inv"`

	ID        string    `bun:",pk"`
	Number    string    `bun:",unique,notnull"`
	ClientID  string    `bun:"client_id,notnull"`
	IssueDate time.Time `bun:"issue_date,notnull"`
	DueDate   time.Time `bun:"due_date,notnull"`
	VATRate   string    `bun:"vat_rate,notnull"`
	Subtotal  string    `bun:"subtotal,notnull"`
	Tax       string    `bun:"tax,notnull"`
	Total     string    `bun:"total,notnull"`
	Currency  string    `bun:"currency,notnull"`
	Status    string    `bun:"status,notnull"`
	Notes     string    `bun:"notes"`
	CreatedAt time.Time `bun:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero"`
}

type lineModel struct {
	bun.BaseModel `bun:"table:invoice_lines,alias:l"`

	ID          int64  `bun:",pk,autoincrement"`
	InvoiceID   string `bun:"invoice_id,notnull"`
	Position    int    `bun:"position,notnull"`
	Description string `bun:"description,notnull"`
	Quantity    string `bun:"quantity,notnull"`
	UnitPrice   string `bun:"unit_price,notnull"`
	Amount      string `bun:"amount,notnull"`
}

func clientModelFrom(client invoice.Client) clientModel {
	return clientModel{
		ID:           client.ID,
		Name:         client.Name,
		RegistryCode: client.RegistryCode,
		Email:        client.Email,
		Phone:        client.Phone,
		Address:      client.Address,
		CreatedAt:    client.CreatedAt.UTC(),
	}
}

func (m clientModel) toClient() invoice.Client {
	return invoice.Client{
		ID:           m.ID,
		Name:         m.Name,
		RegistryCode: m.RegistryCode,
		Email:        m.Email,
		Phone:        m.Phone,
		Address:      m.Address,
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

func invoiceModelFrom(inv invoice.Invoice) invoiceModel {
	return invoiceModel{
		ID:        inv.ID,
		Number:    inv.Number,
		ClientID:  inv.ClientID,
		IssueDate: inv.IssueDate.UTC(),
		DueDate:   inv.DueDate.UTC(),
		VATRate:   inv.VATRate.String(),
		Subtotal:  inv.Subtotal.StringFixed(2),
		Tax:       inv.Tax.StringFixed(2),
		Total:     inv.Total.StringFixed(2),
		Currency:  inv.Currency,
		Status:    string(inv.Status),
		Notes:     inv.Notes,
		CreatedAt: inv.CreatedAt.UTC(),
		UpdatedAt: inv.UpdatedAt.UTC(),
	}
}

func lineModelsFrom(inv invoice.Invoice) []lineModel {
	lines := make([]lineModel, 0, len(inv.Lines))
	for i, line := range inv.Lines {
		position := line.Position
		if position == 0 {
			position = i + 1
		}
		lines = append(lines, lineModel{
			InvoiceID:   inv.ID,
			Position:    position,
			Description: line.Description,
			Quantity:    line.Quantity.String(),
			UnitPrice:   line.UnitPrice.String(),
			Amount:      line.Amount.StringFixed(2),
		})
	}
	return lines
}

func (m invoiceModel) toInvoice(lines []lineModel) (invoice.Invoice, error) {
	inv := invoice.Invoice{
		ID:        m.ID,
		Number:    m.Number,
		ClientID:  m.ClientID,
		IssueDate: m.IssueDate.UTC(),
		DueDate:   m.DueDate.UTC(),
		Currency:  m.Currency,
		Status:    invoice.Status(m.Status),
		Notes:     m.Notes,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
		Lines:     make([]invoice.LineItem, 0, len(lines)),
	}

	var err error
	if inv.VATRate, err = parseDecimal("vat_rate", m.VATRate); err != nil {
		return invoice.Invoice{}, err
	}
	if inv.Subtotal, err = parseDecimal("subtotal", m.Subtotal); err != nil {
		return invoice.Invoice{}, err
	}
	if inv.Tax, err = parseDecimal("tax", m.Tax); err != nil {
		return invoice.Invoice{}, err
	}
	if inv.Total, err = parseDecimal("total", m.Total); err != nil {
		return invoice.Invoice{}, err
	}

	for _, line := range lines {
		item := invoice.LineItem{Position: line.Position, Description: line.Description}
		if item.Quantity, err = parseDecimal("quantity", line.Quantity); err != nil {
			return invoice.Invoice{}, err
		}
		if item.UnitPrice, err = parseDecimal("unit_price", line.UnitPrice); err != nil {
			return invoice.Invoice{}, err
		}
		if item.Amount, err = parseDecimal("amount", line.Amount); err != nil {
			return invoice.Invoice{}, err
		}
		inv.Lines = append(inv.Lines, item)
	}
	return inv, nil
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, invoice.NewError(invoice.KindInternal, fmt.Sprintf("stored %s %q is not a number", field, value), err)
	}
	return parsed, nil
}
