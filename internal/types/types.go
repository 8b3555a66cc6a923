// =============================================================================
// shopinvoice - Shared Types
// =============================================================================
//
// This package contains the invoice row type shared by every stage of the
// invoicing pipeline, kept here to avoid import cycles. Types defined here are
// used by:
//   - storage     (produces lines from the invoice query)
//   - csvparser   (produces lines from an existing invoice file)
//   - xlsxparser  (produces lines from an existing invoice workbook)
//   - pipeline    (renames gateways)
//   - validation  (checks lines)
//   - exporter    (serializes lines)
//
// NULLABILITY:
//   Every exported field is a pointer. A nil pointer is a null cell: the
//   completeness checks in the validation package rely on seeing them.
//
// =============================================================================

package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COLUMN NAMES
// =============================================================================

// Column names of the invoice import format. These are the exact header
// strings expected by the downstream invoicing system.
const (
	ColCustomerNo      = "CUSTOMER NO"
	ColOrderNo         = "ORDER NO"
	ColPaidAmount      = "PAID AMOUNT"
	ColLineCount       = "ORDER LINE - COUNT"
	ColUnitPrice       = "ORDER LINE - UNIT PRICE"
	ColVATCode         = "ORDER LINE - VAT CODE"
	ColPaymentType     = "PAYMENT TYPE"
	ColInvoiceDate     = "INVOICE DATE"
	ColDeliveryDate    = "DELIVERY DATE"
	ColOrderDate       = "ORDER DATE"
	ColDueDate         = "DUE DATE"
	ColInvoiceNo       = "INVOICE NO"
	ColCustomerName    = "CUSTOMER NAME"
	ColProdName        = "ORDER LINE - PROD NAME"
	ColDiscount        = "ORDER LINE - DISCOUNT"
	ColProdDescription = "ORDER LINE - DESCRIPTION"
	ColProdNo          = "ORDER LINE - PROD NO"
)

// GiftCardProdNo is the product number the shop uses for gift card lines.
const GiftCardProdNo = "GIFTCARD"

// DateLayout is the layout used for every date column, in and out.
const DateLayout = "2006-01-02"

var requiredColumns = [...]string{
	ColCustomerNo,
	ColOrderNo,
	ColPaidAmount,
	ColLineCount,
	ColUnitPrice,
	ColVATCode,
	ColPaymentType,
	ColInvoiceDate,
	ColDeliveryDate,
	ColOrderDate,
	ColDueDate,
	ColInvoiceNo,
}

var optionalColumns = [...]string{
	ColCustomerName,
	ColProdName,
	ColDiscount,
	ColProdDescription,
	ColProdNo,
}

// RequiredColumns returns the ordered list of columns that must be present and
// non-null on every invoice line. The returned slice is a copy.
func RequiredColumns() []string {
	out := make([]string, len(requiredColumns))
	copy(out, requiredColumns[:])
	return out
}

// OptionalColumns returns the ordered list of columns appended after the
// required ones in the export. The returned slice is a copy.
func OptionalColumns() []string {
	out := make([]string, len(optionalColumns))
	copy(out, optionalColumns[:])
	return out
}

// ExportColumns returns the required columns followed by the optional ones.
func ExportColumns() []string {
	return append(RequiredColumns(), optionalColumns[:]...)
}

// =============================================================================
// INVOICE LINE
// =============================================================================

// InvoiceLine is one row of the invoice table: one product line of one order's
// payment allocation.
type InvoiceLine struct {
	// TransactionID and OrderID identify the source rows in storage.
	// They are not part of the export.
	TransactionID *int64 `gorm:"column:transaction_id"`
	OrderID       *int64 `gorm:"column:order_id"`

	CustomerNo   *string          `gorm:"column:CUSTOMER NO"`
	CustomerName *string          `gorm:"column:CUSTOMER NAME"`
	OrderNo      *string          `gorm:"column:ORDER NO"`
	PaidAmount   *decimal.Decimal `gorm:"column:PAID AMOUNT"`
	PaymentType  *string          `gorm:"column:PAYMENT TYPE"`

	LineCount       *int64           `gorm:"column:ORDER LINE - COUNT"`
	ProdName        *string          `gorm:"column:ORDER LINE - PROD NAME"`
	UnitPrice       *decimal.Decimal `gorm:"column:ORDER LINE - UNIT PRICE"`
	DiscountPct     *decimal.Decimal `gorm:"column:ORDER LINE - DISCOUNT"`
	VATCode         *string          `gorm:"column:ORDER LINE - VAT CODE"`
	ProdDescription *string          `gorm:"column:ORDER LINE - DESCRIPTION"`
	ProdNo          *string          `gorm:"column:ORDER LINE - PROD NO"`

	InvoiceDate  *time.Time `gorm:"column:INVOICE DATE"`
	DeliveryDate *time.Time `gorm:"column:DELIVERY DATE"`
	OrderDate    *time.Time `gorm:"column:ORDER DATE"`
	DueDate      *time.Time `gorm:"column:DUE DATE"`

	InvoiceNo *int64 `gorm:"column:INVOICE NO"`
}

// IsNull reports whether the named export column is null on this line.
// Unknown column names are reported as null.
func (l *InvoiceLine) IsNull(column string) bool {
	switch column {
	case ColCustomerNo:
		return l.CustomerNo == nil
	case ColOrderNo:
		return l.OrderNo == nil
	case ColPaidAmount:
		return l.PaidAmount == nil
	case ColLineCount:
		return l.LineCount == nil
	case ColUnitPrice:
		return l.UnitPrice == nil
	case ColVATCode:
		return l.VATCode == nil
	case ColPaymentType:
		return l.PaymentType == nil
	case ColInvoiceDate:
		return l.InvoiceDate == nil
	case ColDeliveryDate:
		return l.DeliveryDate == nil
	case ColOrderDate:
		return l.OrderDate == nil
	case ColDueDate:
		return l.DueDate == nil
	case ColInvoiceNo:
		return l.InvoiceNo == nil
	case ColCustomerName:
		return l.CustomerName == nil
	case ColProdName:
		return l.ProdName == nil
	case ColDiscount:
		return l.DiscountPct == nil
	case ColProdDescription:
		return l.ProdDescription == nil
	case ColProdNo:
		return l.ProdNo == nil
	default:
		return true
	}
}

// OrderNoOr returns the order number, or fallback when it is null.
func (l *InvoiceLine) OrderNoOr(fallback string) string {
	if l.OrderNo == nil {
		return fallback
	}
	return *l.OrderNo
}

// =============================================================================
// TABLE
// =============================================================================

// Table is the ordered invoice table. Row order is meaningful: the export
// preserves it and the per-order aggregates use first-seen order.
type Table []InvoiceLine

// Clone returns a shallow copy of the table. Field pointers are shared; the
// pipeline never writes through them, it replaces them.
func (t Table) Clone() Table {
	if t == nil {
		return nil
	}
	out := make(Table, len(t))
	copy(out, t)
	return out
}

// DistinctOrders returns the number of distinct non-null order numbers among
// the lines for which keep returns true.
func (t Table) DistinctOrders(keep func(InvoiceLine) bool) int {
	seen := make(map[string]struct{})
	for _, line := range t {
		if line.OrderNo == nil || !keep(line) {
			continue
		}
		seen[*line.OrderNo] = struct{}{}
	}
	return len(seen)
}

// =============================================================================
// POINTER HELPERS
// =============================================================================

// String returns a pointer to s, or nil when s is empty.
func String(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Int returns a pointer to n.
func Int(n int64) *int64 {
	return &n
}

// Decimal returns a pointer to d.
func Decimal(d decimal.Decimal) *decimal.Decimal {
	return &d
}

// Date returns a pointer to the date part of t.
func Date(t time.Time) *time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
