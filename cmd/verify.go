// =============================================================================
// shopinvoice - Verify Command
// =============================================================================
//
// This file defines the 'verify' command, which runs the invoice checks on
// an existing import file, e.g. after it has been corrected by hand.
//
// COMMAND USAGE:
//   shopinvoice verify <file> [-g old:new ...]
//
// The file is read as ';'-separated CSV, or as a workbook when it ends in
// .xlsx. Gateways are not renamed; the rename targets only form the list of
// accepted payment types.
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shopinvoice/shopinvoice/internal/csvparser"
	"github.com/shopinvoice/shopinvoice/internal/pipeline"
	"github.com/shopinvoice/shopinvoice/internal/types"
	"github.com/shopinvoice/shopinvoice/internal/xlsxparser"
)

// inputEncoding overrides invoice.input_encoding for CSV files.
var inputEncoding string

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Validate an existing Tripletex invoice file",
	Long: `The verify command reads an invoice import file and runs the same checks as
generate. Any gateway that is not the target of a -g pair is flagged:
  shopinvoice verify invoices/may.csv -g stripe:Stripe -g vipps:Vipps

Without -g pairs and without invoice.gateways in the configuration, payment
types are not checked.`,
	Args: cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerify(args[0])
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringArrayVarP(
		&gatewayPairs,
		"gateway",
		"g",
		nil,
		"Case sensitive old:new pair; the new names are the accepted payment types (repeatable)",
	)

	verifyCmd.Flags().StringVar(
		&inputEncoding,
		"encoding",
		"",
		"Character encoding of a CSV file (default from invoice.input_encoding)",
	)
}

func runVerify(path string) error {
	mapping, err := resolveGatewayMapping(gatewayPairs, mainConfig.Invoice.Gateways)
	if err != nil {
		return err
	}

	encoding := mainConfig.Invoice.InputEncoding
	if inputEncoding != "" {
		encoding = inputEncoding
	}
	table, err := readInvoiceFile(path, encoding)
	if err != nil {
		return err
	}

	inv := mainConfig.Invoice
	report := pipeline.Verify(table, pipeline.Options{
		Store:               mainConfig.Store,
		Gateways:            mapping,
		Allowlist:           inv.Allowlist,
		PriceTolerance:      priceTolerance(inv),
		StrictInformational: inv.StrictInformational,
		Logger:              logger,
	})

	fmt.Println("=== Tripletex Invoice Verification ===")
	fmt.Printf("Input file:      %s\n", path)
	fmt.Printf("Invoice lines:   %d\n", report.RowsValidated)
	printVerdict(report.Passed, report.Failed())
	return nil
}

// readInvoiceFile parses a CSV or XLSX invoice file by extension. encoding
// applies to CSV files only.
func readInvoiceFile(path, encoding string) (types.Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return xlsxparser.Parse(path)
	}

	settings := csvparser.DefaultSettings()
	if encoding != "" {
		settings.Encoding = encoding
	}
	return csvparser.Parse(path, settings)
}
