// =============================================================================
// shopinvoice - Invoice Pipeline
// =============================================================================
//
// This module orchestrates one invoice run, from the stored orders to the
// file uploaded to Tripletex.
//
// PIPELINE:
//   1. Query the invoice table for the order date range
//   2. Rename payment gateways
//   3. Validate the table
//   4. Export the table (always, whatever the verdict)
//   5. Write the review report next to the export
//
// The verdict is advisory. A failed validation is reported through the
// Result and the log, never as an error.
//
// =============================================================================

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopinvoice/shopinvoice/internal/exporter"
	"github.com/shopinvoice/shopinvoice/internal/types"
	"github.com/shopinvoice/shopinvoice/internal/validation"
	"github.com/shopinvoice/shopinvoice/pkg/utils"
)

// InvoiceSource produces the invoice table for a date range.
// *storage.Store implements it.
type InvoiceSource interface {
	Invoices(ctx context.Context, from, to time.Time, startID int64) (types.Table, error)
}

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of one invoice run.
type Result struct {
	// RunID identifies the run in the review report.
	RunID string

	// OutputFile is the path of the export.
	OutputFile string

	// ReportFile is the path of the review report, empty when disabled.
	ReportFile string

	// Report is the validation outcome.
	Report *validation.Report

	// Stats contains run statistics.
	Stats Stats
}

// Stats contains statistics about the run.
type Stats struct {
	// Rows is the number of invoice lines exported.
	Rows int

	// Invoices is the number of distinct invoice numbers exported.
	Invoices int

	// ProcessingTime is the time taken by the run.
	ProcessingTime time.Duration
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures an invoice run.
type Options struct {
	Store   string
	From    time.Time
	To      time.Time
	StartID int64

	// Gateways renames payment types before validation and export.
	Gateways GatewayMapping

	// Allowlist overrides the accepted payment types. When nil, the targets of
	// Gateways are used; when Gateways is empty too, the check is disabled.
	Allowlist []string

	// PriceTolerance is the accepted relative price deviation. Nil means the
	// validator default; zero requires an exact match.
	PriceTolerance *decimal.Decimal

	// StrictInformational makes refund and gift card findings fail the verdict.
	StrictInformational bool

	// OutputPath is the export destination. The extension picks the format.
	OutputPath string

	// WriteReport enables the review report.
	WriteReport bool

	Logger *slog.Logger
}

// allowlist resolves the payment types the validator accepts.
func (o Options) allowlist() []string {
	if o.Allowlist != nil {
		return o.Allowlist
	}
	if len(o.Gateways) > 0 {
		return o.Gateways.Targets()
	}
	return nil
}

func (o Options) validator() *validation.Validator {
	return validation.NewWithOptions(validation.Options{
		Gateways:            o.allowlist(),
		PriceTolerance:      o.PriceTolerance,
		StrictInformational: o.StrictInformational,
		Logger:              o.Logger,
	})
}

// =============================================================================
// RUNS
// =============================================================================

// Generate runs the whole pipeline against source.
//
// PARAMETERS:
//   - ctx: Cancels the invoice query
//   - source: Produces the invoice table
//   - opts: Run settings; OutputPath is required
//
// RETURNS:
//   - *Result: The run outcome, including the validation report
//   - error: Query or write failures
func Generate(ctx context.Context, source InvoiceSource, opts Options) (*Result, error) {
	startTime := time.Now()
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	log := opts.Logger

	result := &Result{
		RunID:      uuid.New().String(),
		OutputFile: opts.OutputPath,
	}

	log.Info("Generating invoices",
		"from", opts.From.Format(types.DateLayout),
		"to", opts.To.Format(types.DateLayout),
		"start_id", opts.StartID,
	)
	table, err := source.Invoices(ctx, opts.From, opts.To, opts.StartID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate invoices: %w", err)
	}

	table = RenameGateways(table, opts.Gateways)

	log.Info("Verifying invoices")
	result.Report = opts.validator().Validate(table)

	if utils.FileExists(opts.OutputPath) {
		log.Warn("Overwriting existing invoice file", "file", opts.OutputPath)
	}
	if err := exporter.WriteFile(opts.OutputPath, table); err != nil {
		return nil, err
	}

	result.Stats = Stats{
		Rows:           len(table),
		Invoices:       countInvoices(table),
		ProcessingTime: time.Since(startTime),
	}

	if opts.WriteReport {
		result.ReportFile = utils.ReviewReportPath(opts.OutputPath)
		summary := reviewSummary(result, opts, startTime)
		if err := utils.WriteReviewReport(summary, result.ReportFile); err != nil {
			return nil, err
		}
	}

	log.Info(fmt.Sprintf(
		"Tripletex invoices for %s from %s to %s has been written to file %s. "+
			"To upload in Tripletex, navigate to 'Faktura' > 'Fakturaimport', "+
			"tick the box to include VAT and upload the invoices",
		opts.Store, opts.From.Format(types.DateLayout), opts.To.Format(types.DateLayout), opts.OutputPath))

	return result, nil
}

// Verify validates an existing invoice table without renaming or exporting.
// The allowlist follows the same rules as Generate.
func Verify(table types.Table, opts Options) *validation.Report {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Logger.Info("Verifying invoices")
	return opts.validator().Validate(table)
}

func countInvoices(table types.Table) int {
	seen := make(map[int64]struct{})
	for _, line := range table {
		if line.InvoiceNo != nil {
			seen[*line.InvoiceNo] = struct{}{}
		}
	}
	return len(seen)
}

func reviewSummary(result *Result, opts Options, startTime time.Time) utils.ReviewSummary {
	report := result.Report
	summary := utils.ReviewSummary{
		RunID:          result.RunID,
		Store:          opts.Store,
		From:           opts.From.Format(types.DateLayout),
		To:             opts.To.Format(types.DateLayout),
		ExportFile:     result.OutputFile,
		StartTime:      startTime,
		EndTime:        time.Now(),
		Rows:           report.RowsValidated,
		OrdinaryOrders: report.OrdinaryOrders,
		RefundOrders:   report.RefundOrders,
		Passed:         report.Passed,
	}
	for _, res := range report.Results {
		check := utils.CheckSummary{
			Name:          res.Name,
			Passed:        res.Passed,
			Informational: res.Informational,
		}
		for _, f := range res.Findings {
			check.Messages = append(check.Messages, f.Message)
		}
		summary.Checks = append(summary.Checks, check)
	}
	return summary
}
