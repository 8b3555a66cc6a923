package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/shopinvoice/shopinvoice/internal/types"
)

// InvoiceViewName is the view the invoice query reads from.
const InvoiceViewName = "tripletex_invoice"

// vatCodeSQL maps a line tax rate to the invoice VAT code: 25% regular,
// 15% food, 12% transport, anything else exempt.
const vatCodeSQL = `CASE
			WHEN %[1]s = 0.25 THEN '3'
			WHEN %[1]s = 0.15 THEN '31'
			WHEN %[1]s = 0.12 THEN '33'
			ELSE '6'
		END`

// invoiceViewSQL defines one row per invoiced line. Sales are successful
// sale or capture transactions joined to the order's product and shipping
// lines; refunds are successful refund transactions joined to the refunded
// lines with negated count and amount. payment_tag groups rows into
// invoices and line_id makes the row order deterministic.
var invoiceViewSQL = `CREATE OR REPLACE VIEW ` + InvoiceViewName + ` AS
SELECT
	t.id AS transaction_id,
	o.id AS order_id,
	li.id AS line_id,
	'sale:' || t.id AS payment_tag,
	CAST(o.customer_id AS TEXT) AS "CUSTOMER NO",
	c.name AS "CUSTOMER NAME",
	o.name AS "ORDER NO",
	t.amount AS "PAID AMOUNT",
	t.gateway AS "PAYMENT TYPE",
	li.quantity AS "ORDER LINE - COUNT",
	li.title AS "ORDER LINE - PROD NAME",
	li.unit_price AS "ORDER LINE - UNIT PRICE",
	CASE WHEN li.total_price > 0
		THEN ROUND(100 * COALESCE(li.total_discount_amount, 0) / li.total_price, 2)
		ELSE 0
	END AS "ORDER LINE - DISCOUNT",
	` + fmt.Sprintf(vatCodeSQL, "li.tax_rate") + ` AS "ORDER LINE - VAT CODE",
	li.variant_title AS "ORDER LINE - DESCRIPTION",
	li.sku AS "ORDER LINE - PROD NO",
	DATE(COALESCE(t.processed_at, t.created_at)) AS "INVOICE DATE",
	DATE(COALESCE(t.processed_at, t.created_at)) AS "DELIVERY DATE",
	DATE(o.created_at) AS "ORDER DATE",
	DATE(COALESCE(t.processed_at, t.created_at)) AS "DUE DATE"
FROM transactions t
JOIN orders o ON o.id = t.order_id
JOIN line_item_products li ON li.order_id = o.id
LEFT JOIN customers c ON c.id = o.customer_id
WHERE t.status = 'success' AND t.kind IN ('sale', 'capture')

UNION ALL

SELECT
	t.id,
	o.id,
	s.id,
	'sale:' || t.id,
	CAST(o.customer_id AS TEXT),
	c.name,
	o.name,
	t.amount,
	t.gateway,
	1,
	COALESCE(s.title, 'Shipping'),
	s.price,
	CASE WHEN s.price > 0
		THEN ROUND(100 * (s.price - COALESCE(s.discounted_price, s.price)) / s.price, 2)
		ELSE 0
	END,
	` + fmt.Sprintf(vatCodeSQL, "s.tax_rate") + `,
	s.code,
	'SHIPPING',
	DATE(COALESCE(t.processed_at, t.created_at)),
	DATE(COALESCE(t.processed_at, t.created_at)),
	DATE(o.created_at),
	DATE(COALESCE(t.processed_at, t.created_at))
FROM transactions t
JOIN orders o ON o.id = t.order_id
JOIN shipping s ON s.order_id = o.id
LEFT JOIN customers c ON c.id = o.customer_id
WHERE t.status = 'success' AND t.kind IN ('sale', 'capture')

UNION ALL

SELECT
	t.id,
	o.id,
	rli.id,
	'refund:' || r.id,
	CAST(o.customer_id AS TEXT),
	c.name,
	o.name,
	-t.amount,
	t.gateway,
	-rli.quantity,
	li.title,
	li.unit_price,
	CASE WHEN li.total_price > 0
		THEN ROUND(100 * COALESCE(li.total_discount_amount, 0) / li.total_price, 2)
		ELSE 0
	END,
	` + fmt.Sprintf(vatCodeSQL, "li.tax_rate") + `,
	li.variant_title,
	li.sku,
	DATE(COALESCE(t.processed_at, t.created_at)),
	DATE(COALESCE(t.processed_at, t.created_at)),
	DATE(o.created_at),
	DATE(COALESCE(t.processed_at, t.created_at))
FROM refunds r
JOIN transactions t ON t.id = r.transaction_id
JOIN orders o ON o.id = r.order_id
JOIN line_item_product_refunds rli ON rli.refund_id = r.id
JOIN line_item_products li ON li.id = rli.line_item_product_id
LEFT JOIN customers c ON c.id = o.customer_id
WHERE t.status = 'success' AND t.kind = 'refund'`

// invoiceQuerySQL numbers every (order, payment) group of the date range
// consecutively from the start ID. Groups are numbered in order date order,
// then by order number and payment tag, so rerunning the same range gives
// the same numbers.
const invoiceQuerySQL = `WITH invoice AS (
	SELECT * FROM ` + InvoiceViewName + `
	WHERE "ORDER DATE" BETWEEN ? AND ?
),
numbered AS (
	SELECT
		"ORDER NO",
		payment_tag,
		ROW_NUMBER() OVER (ORDER BY MIN("ORDER DATE"), "ORDER NO", payment_tag) AS n
	FROM invoice
	GROUP BY "ORDER NO", payment_tag
)
SELECT invoice.*, (? + numbered.n - 1) AS "INVOICE NO"
FROM invoice
JOIN numbered
	ON numbered."ORDER NO" = invoice."ORDER NO"
	AND numbered.payment_tag = invoice.payment_tag
ORDER BY "INVOICE NO", invoice."CUSTOMER NAME", invoice.line_id`

// Invoices returns the invoice table for orders placed between from and to,
// both inclusive, numbered consecutively from startID.
//
// PARAMETERS:
//   - ctx: Cancels the query
//   - from, to: Order date range; only the date part is used
//   - startID: Invoice number given to the first invoice
//
// RETURNS:
//   - types.Table: Lines ordered by invoice number then customer name
//   - error: Any query error
func (s *Store) Invoices(ctx context.Context, from, to time.Time, startID int64) (types.Table, error) {
	var table types.Table
	err := s.invoiceQuery(s.db.WithContext(ctx), from, to, startID).Scan(&table).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	return table, nil
}

func (s *Store) invoiceQuery(db *gorm.DB, from, to time.Time, startID int64) *gorm.DB {
	return db.Raw(invoiceQuerySQL,
		from.Format(types.DateLayout),
		to.Format(types.DateLayout),
		startID,
	)
}
