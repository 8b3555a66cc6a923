// =============================================================================
// shopinvoice - Main Entry Point
// =============================================================================
//
// shopinvoice keeps a PostgreSQL copy of a Shopify store and exports invoice
// import files for Tripletex.
//
// USAGE:
//   shopinvoice sync        - Fetch shop data into the database
//   shopinvoice generate    - Write and validate an invoice import file
//   shopinvoice verify      - Validate an existing invoice import file
//   shopinvoice version     - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Core logic (not for external import)
//   - pkg/           : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/shopinvoice/shopinvoice/cmd"
)

func main() {
	cmd.Execute()
}
