package validation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shopinvoice/shopinvoice/internal/types"
)

// maxListedGaps caps how many missing numbers a continuity finding lists.
const maxListedGaps = 1000

var hundred = decimal.NewFromInt(100)

// =============================================================================
// INFORMATIONAL CHECKS
// =============================================================================

// checkRefunds reports orders settled with a zero or negative paid amount.
func checkRefunds(table types.Table) CheckResult {
	orders := sortedOrders(table, func(l types.InvoiceLine) bool {
		return l.PaidAmount != nil && !l.PaidAmount.IsPositive()
	})

	result := CheckResult{Name: CheckRefunds, Informational: true, Passed: len(orders) == 0}
	if len(orders) > 0 {
		result.Findings = append(result.Findings, Finding{
			Check:    CheckRefunds,
			Severity: SeverityInfo,
			Message: fmt.Sprintf("The following %d orders are refunds: %s",
				len(orders), strings.Join(orders, ", ")),
			Orders: orders,
		})
	}
	return result
}

// checkGiftCards reports orders containing gift card lines.
func checkGiftCards(table types.Table) CheckResult {
	orders := sortedOrders(table, func(l types.InvoiceLine) bool {
		return l.ProdNo != nil && *l.ProdNo == types.GiftCardProdNo
	})

	result := CheckResult{Name: CheckGiftCards, Informational: true, Passed: len(orders) == 0}
	if len(orders) > 0 {
		result.Findings = append(result.Findings, Finding{
			Check:    CheckGiftCards,
			Severity: SeverityInfo,
			Message: fmt.Sprintf("The following %d orders include gift cards: %s.",
				len(orders), strings.Join(orders, ", ")),
			Orders: orders,
		})
	}
	return result
}

// =============================================================================
// CONTINUITY CHECKS
// =============================================================================

// checkOrderNoContinuity looks for gaps in the numeric part of the order
// numbers of all non-refund lines.
func checkOrderNoContinuity(table types.Table) CheckResult {
	result := CheckResult{Name: CheckOrderNoContinuity, Passed: true}

	var raw []string
	for _, line := range table {
		if line.OrderNo == nil || line.PaidAmount == nil || line.PaidAmount.IsNegative() {
			continue
		}
		raw = append(raw, *line.OrderNo)
	}

	prefix, numbers, err := ParseOrderNumbers(raw)
	if err != nil {
		result.Passed = false
		result.Findings = append(result.Findings, Finding{
			Check:    CheckOrderNoContinuity,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Order numbers could not be checked for gaps: %v", err),
		})
		return result
	}

	missing, count := findGaps(numbers)
	if count == 0 {
		return result
	}

	labels := make([]string, len(missing))
	for i, n := range missing {
		labels[i] = OrderNumber{Prefix: prefix, Number: n}.String()
	}

	result.Passed = false
	result.Findings = append(result.Findings, Finding{
		Check:        CheckOrderNoContinuity,
		Severity:     SeverityWarning,
		Message:      fmt.Sprintf("The following %d orders are missing: %s", count, joinCapped(labels, count)),
		Orders:       labels,
		Missing:      missing,
		MissingCount: count,
	})
	return result
}

// checkInvoiceNoContinuity looks for gaps in the invoice numbers.
func checkInvoiceNoContinuity(table types.Table) CheckResult {
	result := CheckResult{Name: CheckInvoiceNoContinuity, Passed: true}

	var numbers []int64
	for _, line := range table {
		if line.InvoiceNo != nil {
			numbers = append(numbers, *line.InvoiceNo)
		}
	}

	missing, count := findGaps(numbers)
	if count == 0 {
		return result
	}

	labels := make([]string, len(missing))
	for i, n := range missing {
		labels[i] = strconv.FormatInt(n, 10)
	}

	result.Passed = false
	result.Findings = append(result.Findings, Finding{
		Check:        CheckInvoiceNoContinuity,
		Severity:     SeverityWarning,
		Message:      fmt.Sprintf("The following %d invoice numbers are missing: %s", count, joinCapped(labels, count)),
		Missing:      missing,
		MissingCount: count,
	})
	return result
}

// findGaps returns the integers absent between the minimum and maximum of
// numbers, capped at maxListedGaps, and the total count of absent integers.
// Duplicates are ignored; fewer than two distinct values never have gaps.
func findGaps(numbers []int64) ([]int64, int64) {
	if len(numbers) < 2 {
		return nil, 0
	}

	distinct := make([]int64, len(numbers))
	copy(distinct, numbers)
	sort.Slice(distinct, func(i, j int) bool { return distinct[i] < distinct[j] })

	var missing []int64
	var count int64
	for i := 1; i < len(distinct); i++ {
		prev, cur := distinct[i-1], distinct[i]
		if cur-prev <= 1 {
			continue
		}
		count += cur - prev - 1
		for n := prev + 1; n < cur && len(missing) < maxListedGaps; n++ {
			missing = append(missing, n)
		}
	}
	return missing, count
}

// joinCapped joins labels and notes how many were left out.
func joinCapped(labels []string, total int64) string {
	s := strings.Join(labels, ", ")
	if rest := total - int64(len(labels)); rest > 0 {
		s += fmt.Sprintf(" (and %d more)", rest)
	}
	return s
}

// =============================================================================
// COMPLETENESS CHECKS
// =============================================================================

// checkRequiredFields reports, per required column, the orders with a null
// value in that column. Lines without an order number are labelled by row.
func checkRequiredFields(table types.Table, columns []string) CheckResult {
	result := CheckResult{Name: CheckRequiredFields, Passed: true}

	for _, column := range columns {
		var orders []string
		seen := make(map[string]bool)
		for i, line := range table {
			if !line.IsNull(column) {
				continue
			}
			label := line.OrderNoOr(fmt.Sprintf("row %d", i+1))
			if !seen[label] {
				seen[label] = true
				orders = append(orders, label)
			}
		}
		if len(orders) == 0 {
			continue
		}

		result.Passed = false
		result.Findings = append(result.Findings, Finding{
			Check:    CheckRequiredFields,
			Severity: SeverityWarning,
			Message: fmt.Sprintf("Required column %s is missing for orders %s",
				column, strings.Join(orders, ", ")),
			Orders: orders,
			Field:  column,
		})
	}
	return result
}

// checkProdNoOrDescription reports orders with lines lacking both a product
// number and a description.
func checkProdNoOrDescription(table types.Table) CheckResult {
	orders := firstSeenOrders(table, func(l types.InvoiceLine) bool {
		return l.ProdNo == nil && l.ProdDescription == nil
	})

	result := CheckResult{Name: CheckProdNoOrDescription, Passed: len(orders) == 0}
	if len(orders) > 0 {
		result.Findings = append(result.Findings, Finding{
			Check:    CheckProdNoOrDescription,
			Severity: SeverityWarning,
			Message: fmt.Sprintf("The following %d orders miss either '%s' or '%s': %s",
				len(orders), types.ColProdNo, types.ColProdDescription, strings.Join(orders, ", ")),
			Orders: orders,
		})
	}
	return result
}

// =============================================================================
// PRICE RECONCILIATION
// =============================================================================

// orderTotal accumulates the paid and computed amounts of one order.
type orderTotal struct {
	paid     *decimal.Decimal
	computed decimal.Decimal
}

// checkPrice compares, per order, the first paid amount seen with the sum of
// count * unit price * (100 - discount) / 100 over the order's lines. An order
// fails when the absolute deviation exceeds tolerance * |paid|.
//
// Lines missing a count or unit price contribute nothing (the completeness
// check reports them); a null discount counts as no discount. Orders without
// any paid amount are skipped.
func checkPrice(table types.Table, tolerance decimal.Decimal) CheckResult {
	result := CheckResult{Name: CheckPriceMismatch, Passed: true}

	var order []string
	totals := make(map[string]*orderTotal)
	for _, line := range table {
		if line.OrderNo == nil {
			continue
		}
		t, ok := totals[*line.OrderNo]
		if !ok {
			t = &orderTotal{}
			totals[*line.OrderNo] = t
			order = append(order, *line.OrderNo)
		}
		if t.paid == nil && line.PaidAmount != nil {
			t.paid = line.PaidAmount
		}
		t.computed = t.computed.Add(lineTotal(line))
	}

	for _, orderNo := range order {
		t := totals[orderNo]
		if t.paid == nil {
			continue
		}
		deviation := t.paid.Sub(t.computed)
		if !deviation.Abs().GreaterThan(t.paid.Abs().Mul(tolerance)) {
			continue
		}

		result.Passed = false
		result.Findings = append(result.Findings, Finding{
			Check:    CheckPriceMismatch,
			Severity: SeverityWarning,
			Message: fmt.Sprintf("Order %s has a deviation between the total amount paid and the sum of all lineitems of %s",
				orderNo, deviation.String()),
			Orders:    []string{orderNo},
			Deviation: deviation,
		})
	}
	return result
}

// lineTotal is the discounted total of one line.
func lineTotal(line types.InvoiceLine) decimal.Decimal {
	if line.LineCount == nil || line.UnitPrice == nil {
		return decimal.Zero
	}
	discount := decimal.Zero
	if line.DiscountPct != nil {
		discount = *line.DiscountPct
	}
	return decimal.NewFromInt(*line.LineCount).
		Mul(*line.UnitPrice).
		Mul(hundred.Sub(discount)).
		Div(hundred)
}

// =============================================================================
// GATEWAY ALLOWLIST
// =============================================================================

// checkGateways reports one finding per (order, payment type) pair whose
// payment type is not in allowlist. A nil allowlist always passes.
func checkGateways(table types.Table, allowlist []string) CheckResult {
	result := CheckResult{Name: CheckUnknownGateway, Passed: true}
	if allowlist == nil {
		return result
	}

	allowed := make(map[string]bool, len(allowlist))
	for _, g := range allowlist {
		allowed[g] = true
	}

	type pair struct{ order, gateway string }
	seen := make(map[pair]bool)
	var pairs []pair
	for _, line := range table {
		if line.OrderNo == nil || line.PaymentType == nil || allowed[*line.PaymentType] {
			continue
		}
		p := pair{*line.OrderNo, *line.PaymentType}
		if !seen[p] {
			seen[p] = true
			pairs = append(pairs, p)
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].order != pairs[j].order {
			return pairs[i].order < pairs[j].order
		}
		return pairs[i].gateway < pairs[j].gateway
	})

	for _, p := range pairs {
		result.Passed = false
		result.Findings = append(result.Findings, Finding{
			Check:    CheckUnknownGateway,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Order %s has an unknown payment gateway: '%s'", p.order, p.gateway),
			Orders:   []string{p.order},
			Gateway:  p.gateway,
		})
	}
	return result
}

// =============================================================================
// HELPERS
// =============================================================================

// firstSeenOrders returns the distinct order numbers of matching lines in the
// order they first appear.
func firstSeenOrders(table types.Table, match func(types.InvoiceLine) bool) []string {
	var orders []string
	seen := make(map[string]bool)
	for _, line := range table {
		if line.OrderNo == nil || !match(line) || seen[*line.OrderNo] {
			continue
		}
		seen[*line.OrderNo] = true
		orders = append(orders, *line.OrderNo)
	}
	return orders
}

// sortedOrders returns the distinct order numbers of matching lines, sorted.
func sortedOrders(table types.Table, match func(types.InvoiceLine) bool) []string {
	orders := firstSeenOrders(table, match)
	sort.Strings(orders)
	return orders
}

// formatOrderCounts renders the order count summary line.
func formatOrderCounts(ordinary, refunds int) string {
	return fmt.Sprintf("There are %d ordinary orders and %d refund-only orders", ordinary, refunds)
}
