// =============================================================================
// shopinvoice - Invoice Exporter
// =============================================================================
//
// This module projects an invoice table onto the fixed import schema of the
// invoicing system and serializes it.
//
// OUTPUT CONTRACT:
//   - Exactly the 12 required columns followed by the 5 optional ones, in the
//     order given by types.ExportColumns().
//   - A header row, no index column, one row per invoice line in table order.
//   - CSV: ';' separated, UTF-8.
//   - Null cells are empty. Dates are YYYY-MM-DD. Amounts use '.' as the
//     decimal separator.
//
// The export never depends on the validation verdict; callers write the file
// whether or not the checks passed.
//
// =============================================================================

package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/shopinvoice/shopinvoice/internal/types"
)

// Separator is the CSV field separator expected by the invoice import.
const Separator = ';'

// SheetName is the worksheet name used for XLSX exports.
const SheetName = "Invoices"

// =============================================================================
// PROJECTION
// =============================================================================

// Header returns the export header row.
func Header() []string {
	return types.ExportColumns()
}

// Record renders one invoice line as export cells, in header order.
func Record(line types.InvoiceLine) []string {
	return []string{
		str(line.CustomerNo),
		str(line.OrderNo),
		dec(line.PaidAmount),
		integer(line.LineCount),
		dec(line.UnitPrice),
		str(line.VATCode),
		str(line.PaymentType),
		date(line.InvoiceDate),
		date(line.DeliveryDate),
		date(line.OrderDate),
		date(line.DueDate),
		integer(line.InvoiceNo),
		str(line.CustomerName),
		str(line.ProdName),
		dec(line.DiscountPct),
		str(line.ProdDescription),
		str(line.ProdNo),
	}
}

// values renders one invoice line as typed worksheet values. Numeric columns
// stay numeric; nulls are nil and leave the cell empty.
func values(line types.InvoiceLine) []interface{} {
	return []interface{}{
		ptrValue(line.CustomerNo),
		ptrValue(line.OrderNo),
		decValue(line.PaidAmount),
		ptrValue(line.LineCount),
		decValue(line.UnitPrice),
		ptrValue(line.VATCode),
		ptrValue(line.PaymentType),
		dateValue(line.InvoiceDate),
		dateValue(line.DeliveryDate),
		dateValue(line.OrderDate),
		dateValue(line.DueDate),
		ptrValue(line.InvoiceNo),
		ptrValue(line.CustomerName),
		ptrValue(line.ProdName),
		decValue(line.DiscountPct),
		ptrValue(line.ProdDescription),
		ptrValue(line.ProdNo),
	}
}

// =============================================================================
// WRITERS
// =============================================================================

// WriteCSV writes table as ';' separated CSV with a header row to w.
func WriteCSV(w io.Writer, table types.Table) error {
	writer := csv.NewWriter(w)
	writer.Comma = Separator

	if err := writer.Write(Header()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, line := range table {
		if err := writer.Write(Record(line)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// WriteXLSX writes table to a new workbook at path.
func WriteXLSX(path string, table types.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	header := Header()
	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &headerRow); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, line := range table {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := values(line)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	firstCol, _ := excelize.ColumnNumberToName(1)
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	if err := f.SetColWidth(SheetName, firstCol, lastCol, 18); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// WriteFile writes table to path, choosing the format from the extension:
// ".xlsx" produces a workbook, anything else ';' separated CSV.
func WriteFile(path string, table types.Table) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return WriteXLSX(path, table)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteCSV(file, table); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// CELL FORMATTING
// =============================================================================

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func integer(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}

func dec(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(types.DateLayout)
}

func ptrValue[T any](p *T) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

// decValue stores amounts as numeric cells. Stored amounts have at most 14
// digits, within float64 precision, and excelize writes the shortest
// representation, so the cell text equals d.String().
func decValue(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.InexactFloat64()
}

func dateValue(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(types.DateLayout)
}
