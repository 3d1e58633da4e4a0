package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	billing "abstraction-billing/internal/billing/domain"
)

// reportLine is one transaction row of a batch summary.
type reportLine struct {
	FinancialYear  string
	AccountNumber  string
	LicenceNumber  string
	ChargePeriod   string
	Description    string
	BillableDays   int
	AuthorisedDays int
	Volume         string
	Credit         bool
	Compensation   bool
	Status         string
}

type reportTotals struct {
	Invoices     int
	Licences     int
	Transactions int
	Credits      int
}

func reportLines(invoices []*billing.Invoice) ([]reportLine, reportTotals) {
	var (
		lines  []reportLine
		totals reportTotals
	)
	for _, inv := range invoices {
		totals.Invoices++
		for _, il := range inv.InvoiceLicences {
			totals.Licences++
			for _, t := range il.Transactions {
				totals.Transactions++
				if t.IsCredit {
					totals.Credits++
				}
				volume := ""
				if t.Volume != nil {
					volume = t.Volume.StringFixed(3)
				}
				lines = append(lines, reportLine{
					FinancialYear:  inv.FinancialYear.String(),
					AccountNumber:  inv.InvoiceAccount.AccountNumber,
					LicenceNumber:  il.LicenceNumber,
					ChargePeriod:   t.ChargePeriod.String(),
					Description:    t.Description,
					BillableDays:   t.BillableDays,
					AuthorisedDays: t.AuthorisedDays,
					Volume:         volume,
					Credit:         t.IsCredit,
					Compensation:   t.IsCompensationCharge,
					Status:         string(t.Status),
				})
			}
		}
	}
	return lines, totals
}

// BuildBatchReportPDF renders a batch summary with one row per transaction.
func BuildBatchReportPDF(batch *billing.Batch, invoices []*billing.Invoice) ([]byte, error) {
	lines, totals := reportLines(invoices)

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Billing Batch Summary")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Batch: %s", batch.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Region: %s", batch.RegionID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Type: %s", batch.Type))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Financial years: %s to %s", batch.StartYear, batch.EndYear))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", batch.Status))
	pdf.Ln(5)
	if batch.ExternalID != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Ledger reference: %s", batch.ExternalID))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", batch.UpdatedAt.Format(time.RFC3339)))
	pdf.Ln(8)
	pdf.Cell(0, 6, fmt.Sprintf("Invoices: %d  Licences: %d  Transactions: %d  Credits: %d",
		totals.Invoices, totals.Licences, totals.Transactions, totals.Credits))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(20, 6, "Year", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 6, "Account", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Licence", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Charge period", "1", 0, "C", false, 0, "")
	pdf.CellFormat(24, 6, "Days", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 6, "Volume (Ml)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(16, 6, "Credit", "1", 0, "C", false, 0, "")
	pdf.CellFormat(26, 6, "Compensation", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, line := range lines {
		pdf.CellFormat(20, 6, line.FinancialYear, "1", 0, "C", false, 0, "")
		pdf.CellFormat(28, 6, line.AccountNumber, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, line.LicenceNumber, "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, line.ChargePeriod, "1", 0, "C", false, 0, "")
		pdf.CellFormat(24, 6, fmt.Sprintf("%d/%d", line.BillableDays, line.AuthorisedDays), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, line.Volume, "1", 0, "R", false, 0, "")
		pdf.CellFormat(16, 6, yesNo(line.Credit), "1", 0, "C", false, 0, "")
		pdf.CellFormat(26, 6, yesNo(line.Compensation), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, line.Status, "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildBatchReportXLSX renders a batch summary workbook.
func BuildBatchReportXLSX(batch *billing.Batch, invoices []*billing.Invoice) ([]byte, error) {
	lines, totals := reportLines(invoices)

	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	transactionsSheet := "transactions"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(transactionsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Billing Batch Summary")
	summary := [][2]any{
		{"Batch", batch.ID},
		{"Region", batch.RegionID},
		{"Type", string(batch.Type)},
		{"Start year", batch.StartYear.String()},
		{"End year", batch.EndYear.String()},
		{"Status", string(batch.Status)},
		{"Ledger reference", batch.ExternalID},
		{"Invoices", totals.Invoices},
		{"Licences", totals.Licences},
		{"Transactions", totals.Transactions},
		{"Credits", totals.Credits},
	}
	for i, row := range summary {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+3), row[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+3), row[1])
	}

	headers := []string{"Year", "Account", "Licence", "Charge period", "Description", "Billable days", "Authorised days", "Volume (Ml)", "Credit", "Compensation", "Status"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(transactionsSheet, cell, h)
	}
	for i, line := range lines {
		row := i + 2
		values := []any{
			line.FinancialYear, line.AccountNumber, line.LicenceNumber, line.ChargePeriod, line.Description,
			line.BillableDays, line.AuthorisedDays, line.Volume, line.Credit, line.Compensation, line.Status,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(transactionsSheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
