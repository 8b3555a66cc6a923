// =============================================================================
// shopinvoice - Generate Command
// =============================================================================
//
// This file defines the 'generate' command, which builds the Tripletex
// invoice import file for a range of order dates from the synced database.
//
// COMMAND USAGE:
//   shopinvoice generate <from_date> <to_date> <invoice_start_id> [-g old:new ...]
//
// The invoice start ID is the number of the first new invoice. Check the ID
// of the latest invoice in Tripletex and give a value that is 1 greater.
//
// =============================================================================

package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/shopinvoice/shopinvoice/internal/config"
	"github.com/shopinvoice/shopinvoice/internal/pipeline"
	"github.com/shopinvoice/shopinvoice/internal/types"
	"github.com/shopinvoice/shopinvoice/pkg/utils"
)

// gatewayPairs holds the repeated -g/--gateway values of generate and verify.
var gatewayPairs []string

// outputFile overrides the configured output file name format.
var outputFile string

// =============================================================================
// GENERATE COMMAND DEFINITION
// =============================================================================

var generateCmd = &cobra.Command{
	Use:   "generate <from_date> <to_date> <invoice_start_id>",
	Short: "Generate the Tripletex invoice import file",
	Long: `The generate command reads the orders placed between from_date and to_date
(inclusive, format yyyy-mm-dd) from the database and writes one invoice line
per order line and payment. Invoices are numbered consecutively starting at
invoice_start_id.

Payment gateway names can be renamed with case sensitive old:new pairs.
Any gateway that is not a rename target is flagged with a warning:
  shopinvoice generate 2021-05-01 2021-05-31 10001 -g stripe:Stripe -g vipps:Vipps

The file is validated and written even when problems are found. Check the
warnings and the review report before uploading it.`,
	Args: cobra.ExactArgs(3),

	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerate(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringArrayVarP(
		&gatewayPairs,
		"gateway",
		"g",
		nil,
		"Case sensitive old:new pair to rename a payment gateway (repeatable)",
	)

	generateCmd.Flags().StringVarP(
		&outputFile,
		"output",
		"o",
		"",
		"Invoice file name; .xlsx writes a workbook (default from invoice.file_name_format)",
	)
}

// =============================================================================
// GENERATE IMPLEMENTATION
// =============================================================================

// generateArgs are the positional arguments of generate.
type generateArgs struct {
	from    time.Time
	to      time.Time
	startID int64
}

// parseGenerateArgs checks from_date, to_date and invoice_start_id.
func parseGenerateArgs(args []string) (generateArgs, error) {
	var parsed generateArgs
	if len(args) != 3 {
		return parsed, fmt.Errorf("expected from_date, to_date and invoice_start_id, got %d arguments", len(args))
	}

	var err error
	if parsed.from, err = parseDate("from_date", args[0]); err != nil {
		return parsed, err
	}
	if parsed.to, err = parseDate("to_date", args[1]); err != nil {
		return parsed, err
	}
	if parsed.from.IsZero() || parsed.to.IsZero() {
		return parsed, fmt.Errorf("from_date and to_date are required")
	}
	if parsed.to.Before(parsed.from) {
		return parsed, fmt.Errorf("to_date %s is before from_date %s", args[1], args[0])
	}

	parsed.startID, err = strconv.ParseInt(args[2], 10, 64)
	if err != nil || parsed.startID < 1 {
		return parsed, fmt.Errorf("invoice_start_id must be a positive integer, got %q", args[2])
	}
	return parsed, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	startTime := time.Now()

	parsed, err := parseGenerateArgs(args)
	if err != nil {
		return err
	}
	from, to := parsed.from, parsed.to

	mapping, err := resolveGatewayMapping(gatewayPairs, mainConfig.Invoice.Gateways)
	if err != nil {
		return err
	}

	inv := mainConfig.Invoice
	fm := utils.NewFileManager(inv.OutputDir)
	if err := fm.EnsureDirectories(); err != nil {
		return err
	}
	name := outputFile
	if name == "" {
		name = utils.GenerateOutputFileName(inv.FileNameFormat, map[string]string{
			"store": mainConfig.Store,
			"from":  from.Format(types.DateLayout),
			"to":    to.Format(types.DateLayout),
		})
	}
	outputPath := fm.OutputPath(name)

	store, closeDB, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeDB()

	result, err := pipeline.Generate(cmd.Context(), store, pipeline.Options{
		Store:               mainConfig.Store,
		From:                from,
		To:                  to,
		StartID:             parsed.startID,
		Gateways:            mapping,
		Allowlist:           inv.Allowlist,
		PriceTolerance:      priceTolerance(inv),
		StrictInformational: inv.StrictInformational,
		OutputPath:          outputPath,
		WriteReport:         inv.ReportEnabled(),
		Logger:              logger,
	})
	if err != nil {
		return err
	}

	fmt.Println("=== Tripletex Invoices ===")
	fmt.Printf("Output file:     %s\n", result.OutputFile)
	if result.ReportFile != "" {
		fmt.Printf("Review report:   %s\n", result.ReportFile)
	}
	fmt.Printf("Invoice lines:   %d\n", result.Stats.Rows)
	fmt.Printf("Invoices:        %d\n", result.Stats.Invoices)
	fmt.Printf("Time elapsed:    %s\n", time.Since(startTime).Round(time.Millisecond))
	printVerdict(result.Report.Passed, result.Report.Failed())
	fmt.Println("\nTo upload in Tripletex, navigate to 'Faktura' > 'Fakturaimport',")
	fmt.Println("tick the box to include VAT and upload the invoices.")

	return nil
}

// resolveGatewayMapping parses the -g pairs, falling back to invoice.gateways
// when none are given.
func resolveGatewayMapping(flagPairs, configPairs []string) (pipeline.GatewayMapping, error) {
	pairs := flagPairs
	if len(pairs) == 0 {
		pairs = configPairs
	}
	return pipeline.ParseGatewayPairs(pairs)
}

// priceTolerance converts invoice.price_tolerance for the validator.
func priceTolerance(inv config.InvoiceConfig) *decimal.Decimal {
	tolerance := decimal.NewFromFloat(inv.Tolerance())
	return &tolerance
}

func printVerdict(passed bool, failed []string) {
	if passed {
		fmt.Println("Verdict:         no irregularities detected")
		return
	}
	fmt.Println("Verdict:         NEEDS MANUAL REVIEW")
	for _, name := range failed {
		fmt.Printf("  ✗ %s\n", name)
	}
}
