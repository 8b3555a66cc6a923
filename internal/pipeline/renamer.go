// =============================================================================
// shopinvoice - Gateway Renamer
// =============================================================================
//
// This module rewrites the PAYMENT TYPE column of an invoice table using an
// operator-supplied mapping, e.g. "shopify_payments:Shopify Payments".
//
// MATCHING:
//   - Exact and case-sensitive. "Stripe" does not match "stripe".
//   - Values without a mapping entry, and null values, pass through.
//   - Row count and row order are preserved.
//
// The renamer never writes through the caller's table. It returns a new
// table whose PAYMENT TYPE pointers are replaced where a mapping applied.
//
// =============================================================================

package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopinvoice/shopinvoice/internal/types"
)

// ErrGatewayPair is returned for a mapping entry that is not "old:new".
var ErrGatewayPair = errors.New("invalid gateway pair")

// =============================================================================
// MAPPING
// =============================================================================

// GatewayMapping maps source payment gateway names to the names used in the
// invoice export.
type GatewayMapping map[string]string

// ParseGatewayPairs parses "old:new" pairs as given on the command line.
//
// PARAMETERS:
//   - pairs: Entries of the form "old:new". Both sides are trimmed and must be
//     non-empty; an entry must contain exactly one ':'.
//
// RETURNS:
//   - The mapping. A later pair for the same old name wins.
//   - An error wrapping ErrGatewayPair for the first malformed entry.
func ParseGatewayPairs(pairs []string) (GatewayMapping, error) {
	mapping := make(GatewayMapping, len(pairs))
	for _, pair := range pairs {
		if strings.Count(pair, ":") != 1 {
			return nil, fmt.Errorf("%w: %q must have the form old:new", ErrGatewayPair, pair)
		}
		from, to, _ := strings.Cut(pair, ":")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if from == "" || to == "" {
			return nil, fmt.Errorf("%w: %q has an empty side", ErrGatewayPair, pair)
		}
		mapping[from] = to
	}
	return mapping, nil
}

// Targets returns the sorted, distinct new names of the mapping. They are the
// default payment type allowlist of the validator.
func (m GatewayMapping) Targets() []string {
	seen := make(map[string]bool, len(m))
	targets := make([]string, 0, len(m))
	for _, to := range m {
		if !seen[to] {
			seen[to] = true
			targets = append(targets, to)
		}
	}
	sort.Strings(targets)
	return targets
}

// =============================================================================
// RENAMING
// =============================================================================

// RenameGateways returns a copy of table with every PAYMENT TYPE found in
// mapping replaced by its new name.
func RenameGateways(table types.Table, mapping GatewayMapping) types.Table {
	out := table.Clone()
	if len(mapping) == 0 {
		return out
	}
	for i := range out {
		if out[i].PaymentType == nil {
			continue
		}
		if to, ok := mapping[*out[i].PaymentType]; ok {
			renamed := to
			out[i].PaymentType = &renamed
		}
	}
	return out
}
