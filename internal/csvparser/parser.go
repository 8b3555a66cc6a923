// =============================================================================
// shopinvoice - Invoice CSV Reader
// =============================================================================
//
// This module reads an existing invoice import file back into an invoice
// table so it can be validated again before upload.
//
// INPUT FORMAT:
//   - One header row naming the 17 export columns (any order, extra columns
//     are ignored).
//   - ';' separated by default.
//   - UTF-8 (with or without BOM), or a single-byte encoding such as
//     ISO-8859-1 or Windows-1252 when files were edited in a spreadsheet.
//
// CELL DECODING:
//   - Empty and whitespace-only cells are null.
//   - Amounts accept '.' or ',' as decimal separator.
//   - Counts and invoice numbers accept integral decimals ("2.0").
//   - Dates accept YYYY-MM-DD, DD.MM.YYYY and timestamps with a time part.
//
// ERRORS:
//   A missing column is a structural error (ErrMissingColumn); a cell that
//   cannot be decoded is ErrInvalidValue with row and column. Both abort the
//   read.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/shopinvoice/shopinvoice/internal/types"
)

var (
	// ErrMissingColumn is returned when an input file lacks an export column.
	ErrMissingColumn = errors.New("missing column")

	// ErrInvalidValue is returned when a cell cannot be decoded.
	ErrInvalidValue = errors.New("invalid value")

	// ErrUnsupportedEncoding is returned for unknown encoding names.
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
)

// =============================================================================
// SETTINGS
// =============================================================================

// Settings controls how an invoice CSV is read.
type Settings struct {
	// Delimiter is the field separator. Default: ';'
	Delimiter rune

	// Encoding is the character set of the file. Default: "UTF-8"
	// Supported: UTF-8, ISO-8859-1 (latin1), ISO-8859-15, Windows-1252.
	Encoding string
}

// DefaultSettings returns the settings for files produced by the exporter.
func DefaultSettings() Settings {
	return Settings{
		Delimiter: ';',
		Encoding:  "UTF-8",
	}
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads the invoice CSV at filePath.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: Delimiter and encoding; zero fields use the defaults.
//
// RETURNS:
//   - The invoice table in file order.
//   - An error if the file cannot be opened, lacks a column or holds an
//     undecodable cell.
func Parse(filePath string, settings Settings) (types.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	table, err := ParseReader(file, settings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return table, nil
}

// ParseReader reads an invoice CSV from r.
func ParseReader(r io.Reader, settings Settings) (types.Table, error) {
	if settings.Delimiter == 0 {
		settings.Delimiter = ';'
	}

	decoded, err := decodingReader(r, settings.Encoding)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(decoded)
	csvReader.Comma = settings.Delimiter
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = true

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrMissingColumn)
	}

	return ParseRecords(records[0], records[1:])
}

// decodingReader wraps r so it yields UTF-8 for the named encoding. A UTF-8
// byte order mark is dropped.
func decodingReader(r io.Reader, name string) (io.Reader, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return nil, err
	}
	if enc != nil {
		return transform.NewReader(r, enc.NewDecoder()), nil
	}

	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	return br, nil
}

// lookupEncoding maps an encoding name to a decoder. UTF-8 yields nil.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "UTF-8", "UTF8":
		return nil, nil
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		return charmap.ISO8859_1, nil
	case "ISO-8859-15", "LATIN9", "LATIN-9":
		return charmap.ISO8859_15, nil
	case "WINDOWS-1252", "CP1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, name)
	}
}

// =============================================================================
// RECORD DECODING
// =============================================================================

// ParseRecords converts a header row and data rows into an invoice table.
// Rows that are entirely empty are skipped. It is shared by every tabular
// input format.
func ParseRecords(header []string, records [][]string) (types.Table, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	var missing []string
	for _, column := range types.ExportColumns() {
		if _, ok := index[column]; !ok {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	table := make(types.Table, 0, len(records))
	for i, record := range records {
		if isRowEmpty(record) {
			continue
		}
		cell := func(column string) string {
			if j := index[column]; j < len(record) {
				return strings.TrimSpace(record[j])
			}
			return ""
		}

		line, err := decodeLine(cell)
		if err != nil {
			// Row numbers count the header as row 1.
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		table = append(table, line)
	}
	return table, nil
}

// decodeLine builds one invoice line from a cell accessor.
func decodeLine(cell func(string) string) (types.InvoiceLine, error) {
	var line types.InvoiceLine
	var err error

	line.CustomerNo = types.String(cell(types.ColCustomerNo))
	line.CustomerName = types.String(cell(types.ColCustomerName))
	line.OrderNo = types.String(cell(types.ColOrderNo))
	line.PaymentType = types.String(cell(types.ColPaymentType))
	line.ProdName = types.String(cell(types.ColProdName))
	line.VATCode = types.String(cell(types.ColVATCode))
	line.ProdDescription = types.String(cell(types.ColProdDescription))
	line.ProdNo = types.String(cell(types.ColProdNo))

	decimals := []struct {
		column string
		dst    **decimal.Decimal
	}{
		{types.ColPaidAmount, &line.PaidAmount},
		{types.ColUnitPrice, &line.UnitPrice},
		{types.ColDiscount, &line.DiscountPct},
	}
	for _, d := range decimals {
		if *d.dst, err = parseDecimal(cell(d.column)); err != nil {
			return line, fmt.Errorf("%w: %s: %v", ErrInvalidValue, d.column, err)
		}
	}

	ints := []struct {
		column string
		dst    **int64
	}{
		{types.ColLineCount, &line.LineCount},
		{types.ColInvoiceNo, &line.InvoiceNo},
	}
	for _, n := range ints {
		if *n.dst, err = parseInt(cell(n.column)); err != nil {
			return line, fmt.Errorf("%w: %s: %v", ErrInvalidValue, n.column, err)
		}
	}

	dates := []struct {
		column string
		dst    **time.Time
	}{
		{types.ColInvoiceDate, &line.InvoiceDate},
		{types.ColDeliveryDate, &line.DeliveryDate},
		{types.ColOrderDate, &line.OrderDate},
		{types.ColDueDate, &line.DueDate},
	}
	for _, d := range dates {
		if *d.dst, err = parseDate(cell(d.column)); err != nil {
			return line, fmt.Errorf("%w: %s: %v", ErrInvalidValue, d.column, err)
		}
	}

	return line, nil
}

func parseDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", s)
	}
	return &d, nil
}

func parseInt(s string) (*int64, error) {
	d, err := parseDecimal(s)
	if err != nil || d == nil {
		return nil, err
	}
	if !d.IsInteger() {
		return nil, fmt.Errorf("%q is not a whole number", s)
	}
	n := d.IntPart()
	return &n, nil
}

var dateLayouts = []string{
	types.DateLayout,
	"02.01.2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return types.Date(t), nil
		}
	}
	return nil, fmt.Errorf("%q is not a date", s)
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
