package invoice

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	registerSheetName  = "Invoices"
	registerDateFormat = "yyyy-mm-dd"
	registerMoneyFmt   = "#,##0.00"
)

var registerHeaders = []string{
	"Number", "Client", "Issue date", "Due date", "Status", "Currency", "Subtotal", "VAT %", "Tax", "Total",
}

// WriteRegisterXLSX writes the invoice register workbook to w.
func WriteRegisterXLSX(w io.Writer, invoices []Invoice) error {
	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()

	defaultSheet := file.GetSheetName(0)
	if defaultSheet != registerSheetName {
		file.SetSheetName(defaultSheet, registerSheetName)
	}

	stream, err := file.NewStreamWriter(registerSheetName)
	if err != nil {
		return err
	}

	headerID, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	dateFmt := registerDateFormat
	dateID, err := file.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt})
	if err != nil {
		return err
	}
	moneyFmt := registerMoneyFmt
	moneyID, err := file.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})
	if err != nil {
		return err
	}

	headers := make([]any, len(registerHeaders))
	for i, label := range registerHeaders {
		headers[i] = excelize.Cell{StyleID: headerID, Value: label}
	}
	if err := stream.SetRow("A1", headers); err != nil {
		return err
	}

	for i, inv := range invoices {
		row := []any{
			excelize.Cell{Value: inv.Number},
			excelize.Cell{Value: inv.Client.Name},
			excelize.Cell{Value: inv.IssueDate, StyleID: dateID},
			excelize.Cell{Value: inv.DueDate, StyleID: dateID},
			excelize.Cell{Value: inv.Status.Label()},
			excelize.Cell{Value: inv.Currency},
			excelize.Cell{Value: inv.Subtotal.InexactFloat64(), StyleID: moneyID},
			excelize.Cell{Value: inv.VATRate.InexactFloat64()},
			excelize.Cell{Value: inv.Tax.InexactFloat64(), StyleID: moneyID},
			excelize.Cell{Value: inv.Total.InexactFloat64(), StyleID: moneyID},
		}
		if err := stream.SetRow(fmt.Sprintf("A%d", i+2), row); err != nil {
			return err
		}
	}

	if err := stream.Flush(); err != nil {
		return err
	}
	_, err = file.WriteTo(w)
	return err
}
