// =============================================================================
// shopinvoice - Invoice Validation Engine
// =============================================================================
//
// This module runs a fixed battery of consistency checks against one invoice
// table and folds them into a single advisory verdict.
//
// CHECKS (run in this order, always all of them):
//   1. refunds                 - orders settled with a zero or negative amount (info)
//   2. gift_cards              - orders containing GIFTCARD lines (info)
//   3. order_no_continuity     - gaps in the order number sequence
//   4. invoice_no_continuity   - gaps in the invoice number sequence
//   5. required_fields         - nulls in required columns
//   6. prod_no_or_description  - lines with neither product number nor description
//   7. price_mismatch          - paid amount vs. sum of discounted line totals
//   8. unknown_gateway         - payment types outside the allowlist
//
// ERROR HANDLING:
//   - Data-quality problems are never returned as errors. They become findings,
//     are logged, and flip the verdict.
//   - Informational checks are logged at info level and do not affect the
//     verdict unless the strict policy is enabled.
//   - The input table is never modified.
//
// =============================================================================

package validation

import (
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shopinvoice/shopinvoice/internal/types"
)

// =============================================================================
// CHECK NAMES
// =============================================================================

const (
	CheckRefunds             = "refunds"
	CheckGiftCards           = "gift_cards"
	CheckOrderNoContinuity   = "order_no_continuity"
	CheckInvoiceNoContinuity = "invoice_no_continuity"
	CheckRequiredFields      = "required_fields"
	CheckProdNoOrDescription = "prod_no_or_description"
	CheckPriceMismatch       = "price_mismatch"
	CheckUnknownGateway      = "unknown_gateway"
)

// =============================================================================
// FINDINGS AND RESULTS
// =============================================================================

// Severity is the log level a finding is reported at.
type Severity string

const (
	// SeverityWarning marks a data-quality violation.
	SeverityWarning Severity = "warning"

	// SeverityInfo marks a purely informational finding.
	SeverityInfo Severity = "info"
)

// Finding is one human-readable discrepancy produced by a check.
type Finding struct {
	// Check is the name of the check that produced the finding.
	Check string

	// Severity is the level the finding was logged at.
	Severity Severity

	// Message is the operator-facing text.
	Message string

	// Orders lists the affected order numbers, when the finding concerns orders.
	Orders []string

	// Field is the column name for required-field findings.
	Field string

	// Gateway is the unrecognized payment type for gateway findings.
	Gateway string

	// Missing lists the absent numbers for continuity findings. It is capped at
	// maxListedGaps entries; MissingCount holds the full count.
	Missing      []int64
	MissingCount int64

	// Deviation is paid minus computed for price findings.
	Deviation decimal.Decimal
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name          string
	Informational bool
	Passed        bool
	Findings      []Finding
}

// Report is the outcome of validating one table.
type Report struct {
	// Passed is the verdict: true iff every verdict-relevant check passed.
	Passed bool

	// Results holds one entry per check, in execution order.
	Results []CheckResult

	// RowsValidated is the number of invoice lines checked.
	RowsValidated int

	// OrdinaryOrders is the number of distinct orders with a non-negative paid amount.
	OrdinaryOrders int

	// RefundOrders is the number of distinct orders with a negative paid amount.
	RefundOrders int
}

// Result returns the result of the named check.
func (r *Report) Result(name string) (CheckResult, bool) {
	for _, res := range r.Results {
		if res.Name == name {
			return res, true
		}
	}
	return CheckResult{}, false
}

// Failed returns the names of the checks that did not pass.
func (r *Report) Failed() []string {
	var names []string
	for _, res := range r.Results {
		if !res.Passed {
			names = append(names, res.Name)
		}
	}
	return names
}

// Findings returns every finding of every check, in execution order.
func (r *Report) Findings() []Finding {
	var out []Finding
	for _, res := range r.Results {
		out = append(out, res.Findings...)
	}
	return out
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Options contains options for validation.
type Options struct {
	// Gateways is the allowlist of payment types. A nil slice disables the
	// allowlist check; an empty non-nil slice rejects every payment type.
	Gateways []string

	// PriceTolerance is the accepted relative deviation between the paid amount
	// and the computed line total. Zero requires an exact match.
	// Default (nil): 0.01 (1%).
	PriceTolerance *decimal.Decimal

	// StrictInformational makes the refund and gift card checks part of the
	// verdict, as the older variant of the validator did.
	// Default: false
	StrictInformational bool

	// RequiredColumns are the columns that must be non-null on every line.
	// Default: types.RequiredColumns()
	RequiredColumns []string

	// Logger receives one record per finding. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultPriceTolerance is the 1% deviation accepted by the price check.
var DefaultPriceTolerance = decimal.NewFromFloat(0.01)

// DefaultOptions returns the default validation options.
func DefaultOptions() Options {
	return Options{
		Gateways:            nil,
		PriceTolerance:      &DefaultPriceTolerance,
		StrictInformational: false,
		RequiredColumns:     types.RequiredColumns(),
		Logger:              slog.Default(),
	}
}

// Validator runs the invoice checks.
type Validator struct {
	options   Options
	tolerance decimal.Decimal
	logger    *slog.Logger
}

// New creates a Validator with default options.
func New() *Validator {
	return NewWithOptions(DefaultOptions())
}

// NewWithOptions creates a Validator with custom options. Nil fields fall
// back to their defaults.
func NewWithOptions(options Options) *Validator {
	tolerance := DefaultPriceTolerance
	if options.PriceTolerance != nil {
		tolerance = *options.PriceTolerance
	}
	if options.RequiredColumns == nil {
		options.RequiredColumns = types.RequiredColumns()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Validator{
		options:   options,
		tolerance: tolerance,
		logger:    options.Logger,
	}
}

// Validate runs every check against table and returns the report. The
// verdict is advisory: callers export regardless.
func (v *Validator) Validate(table types.Table) *Report {
	report := &Report{
		RowsValidated: len(table),
		OrdinaryOrders: table.DistinctOrders(func(l types.InvoiceLine) bool {
			return l.PaidAmount != nil && !l.PaidAmount.IsNegative()
		}),
		RefundOrders: table.DistinctOrders(func(l types.InvoiceLine) bool {
			return l.PaidAmount != nil && l.PaidAmount.IsNegative()
		}),
	}

	v.logger.Info(formatOrderCounts(report.OrdinaryOrders, report.RefundOrders),
		"ordinary", report.OrdinaryOrders,
		"refund_only", report.RefundOrders,
	)

	checks := []func(types.Table) CheckResult{
		checkRefunds,
		checkGiftCards,
		checkOrderNoContinuity,
		checkInvoiceNoContinuity,
		func(t types.Table) CheckResult { return checkRequiredFields(t, v.options.RequiredColumns) },
		checkProdNoOrDescription,
		func(t types.Table) CheckResult { return checkPrice(t, v.tolerance) },
		func(t types.Table) CheckResult { return checkGateways(t, v.options.Gateways) },
	}

	report.Passed = true
	for _, check := range checks {
		result := check(table)
		v.logResult(result)
		report.Results = append(report.Results, result)

		if result.Passed {
			continue
		}
		if result.Informational && !v.options.StrictInformational {
			continue
		}
		report.Passed = false
	}

	if report.Passed {
		v.logger.Info("No irregularities detected in the invoices")
	} else {
		v.logger.Warn("Invoices contain one or more notices that should be checked manually",
			"failed_checks", strings.Join(report.Failed(), ","))
	}

	return report
}

// logResult emits one record per finding at the finding's severity.
func (v *Validator) logResult(result CheckResult) {
	for _, f := range result.Findings {
		if f.Severity == SeverityInfo {
			v.logger.Info(f.Message, "check", f.Check)
		} else {
			v.logger.Warn(f.Message, "check", f.Check)
		}
	}
}
