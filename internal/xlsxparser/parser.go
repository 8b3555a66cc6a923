// =============================================================================
// shopinvoice - Invoice Workbook Reader
// =============================================================================
//
// This module reads an invoice workbook (as written by the exporter, or an
// import file re-saved from a spreadsheet) into an invoice table.
//
// WORKBOOK STRUCTURE:
//   - The sheet named "Invoices" is used when present, otherwise the first
//     sheet.
//   - Row 1 holds the column headers; every following row is one invoice line.
//   - Cell decoding and missing-column handling are shared with the CSV
//     reader (csvparser.ParseRecords).
//
// =============================================================================

package xlsxparser

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/shopinvoice/shopinvoice/internal/csvparser"
	"github.com/shopinvoice/shopinvoice/internal/types"
)

// PreferredSheet is the sheet read when the workbook has one by that name.
const PreferredSheet = "Invoices"

// Parse reads the invoice workbook at filePath.
//
// PARAMETERS:
//   - filePath: The path to the XLSX file.
//
// RETURNS:
//   - The invoice table in sheet order.
//   - An error if the workbook cannot be opened, has no sheets, lacks a column
//     (csvparser.ErrMissingColumn) or holds an undecodable cell.
func Parse(filePath string) (types.Table, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet, err := pickSheet(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w: sheet %s is empty", filePath, csvparser.ErrMissingColumn, sheet)
	}

	table, err := csvparser.ParseRecords(rows[0], rows[1:])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return table, nil
}

// pickSheet returns PreferredSheet if present, otherwise the first sheet.
func pickSheet(f *excelize.File) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("no sheets found in workbook")
	}
	for _, name := range sheets {
		if name == PreferredSheet {
			return name, nil
		}
	}
	return sheets[0], nil
}
