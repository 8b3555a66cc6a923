package validation

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopinvoice/shopinvoice/internal/types"
)

// line builds a complete, consistent invoice line for order with a single
// product line of count * price.
func line(order string, invoiceNo int64, paid string, count int64, price string) types.InvoiceLine {
	day := time.Date(2021, 5, 3, 0, 0, 0, 0, time.UTC)
	return types.InvoiceLine{
		CustomerNo:      types.String("C-1"),
		CustomerName:    types.String("Kari Nordmann"),
		OrderNo:         types.String(order),
		PaidAmount:      types.Decimal(decimal.RequireFromString(paid)),
		PaymentType:     types.String("Stripe"),
		LineCount:       types.Int(count),
		ProdName:        types.String("Soap"),
		UnitPrice:       types.Decimal(decimal.RequireFromString(price)),
		DiscountPct:     types.Decimal(decimal.Zero),
		VATCode:         types.String("3"),
		ProdDescription: types.String("Soap bar"),
		ProdNo:          types.String("SOAP-1"),
		InvoiceDate:     types.Date(day),
		DeliveryDate:    types.Date(day),
		OrderDate:       types.Date(day),
		DueDate:         types.Date(day.AddDate(0, 0, 14)),
		InvoiceNo:       types.Int(invoiceNo),
	}
}

func quietValidator(opts Options) *Validator {
	opts.Logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return NewWithOptions(opts)
}

func TestValidate_CleanTablePasses(t *testing.T) {
	table := types.Table{
		line("#1001", 10, "100", 2, "50"),
		line("#1002", 11, "30", 1, "30"),
		line("#1003", 12, "45", 3, "15"),
	}

	report := quietValidator(DefaultOptions()).Validate(table)

	assert.True(t, report.Passed)
	assert.Empty(t, report.Failed())
	assert.Empty(t, report.Findings())
	assert.Len(t, report.Results, 8)
	assert.Equal(t, 3, report.OrdinaryOrders)
	assert.Equal(t, 0, report.RefundOrders)
}

func TestValidate_EmptyTablePassesVacuously(t *testing.T) {
	opts := DefaultOptions()
	opts.Gateways = []string{"Stripe"}

	report := quietValidator(opts).Validate(types.Table{})

	assert.True(t, report.Passed)
	for _, res := range report.Results {
		assert.True(t, res.Passed, res.Name)
	}
}

func TestValidate_DoesNotMutateInput(t *testing.T) {
	table := types.Table{line("#1001", 1, "100", 1, "90")}
	before := *table[0].PaidAmount

	quietValidator(DefaultOptions()).Validate(table)

	assert.True(t, before.Equal(*table[0].PaidAmount))
	assert.Len(t, table, 1)
}

func TestOrderNoContinuity(t *testing.T) {
	t.Run("no gaps", func(t *testing.T) {
		table := types.Table{
			line("#1003", 1, "10", 1, "10"),
			line("#1001", 2, "10", 1, "10"),
			line("#1002", 3, "10", 1, "10"),
			line("#1002", 3, "10", 0, "10"),
		}
		res := checkOrderNoContinuity(table)
		assert.True(t, res.Passed)
	})

	t.Run("one gap reports prefixed number", func(t *testing.T) {
		table := types.Table{
			line("#1001", 1, "10", 1, "10"),
			line("#1004", 2, "10", 1, "10"),
			line("#1002", 3, "10", 1, "10"),
		}
		res := checkOrderNoContinuity(table)
		require.False(t, res.Passed)
		require.Len(t, res.Findings, 1)
		assert.Equal(t, []string{"#1003"}, res.Findings[0].Orders)
		assert.Equal(t, int64(1), res.Findings[0].MissingCount)
		assert.Equal(t, "The following 1 orders are missing: #1003", res.Findings[0].Message)
	})

	t.Run("refund rows are ignored", func(t *testing.T) {
		table := types.Table{
			line("#1001", 1, "10", 1, "10"),
			line("#1005", 2, "-10", 1, "10"),
			line("#1002", 3, "10", 1, "10"),
		}
		assert.True(t, checkOrderNoContinuity(table).Passed)
	})

	t.Run("zero paid rows are kept", func(t *testing.T) {
		table := types.Table{
			line("#1001", 1, "10", 1, "10"),
			line("#1003", 2, "0", 1, "0"),
		}
		res := checkOrderNoContinuity(table)
		require.False(t, res.Passed)
		assert.Equal(t, []string{"#1002"}, res.Findings[0].Orders)
	})

	t.Run("mixed prefixes fail", func(t *testing.T) {
		table := types.Table{
			line("#1001", 1, "10", 1, "10"),
			line("S1002", 2, "10", 1, "10"),
		}
		res := checkOrderNoContinuity(table)
		require.False(t, res.Passed)
		assert.Contains(t, res.Findings[0].Message, "more than one prefix")
	})
}

func TestInvoiceNoContinuity(t *testing.T) {
	tests := []struct {
		name    string
		numbers []int64
		missing []int64
	}{
		{name: "empty", numbers: nil, missing: nil},
		{name: "single", numbers: []int64{7}, missing: nil},
		{name: "contiguous with repeats", numbers: []int64{5, 5, 6, 7, 7}, missing: nil},
		{name: "one gap", numbers: []int64{5, 7}, missing: []int64{6}},
		{name: "several gaps unordered", numbers: []int64{20, 15, 17}, missing: []int64{16, 18, 19}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var table types.Table
			for _, n := range tt.numbers {
				table = append(table, line("#1001", n, "10", 1, "10"))
			}
			res := checkInvoiceNoContinuity(table)
			if tt.missing == nil {
				assert.True(t, res.Passed)
				assert.Empty(t, res.Findings)
				return
			}
			require.False(t, res.Passed)
			assert.Equal(t, tt.missing, res.Findings[0].Missing)
		})
	}
}

func TestFindGaps_CapsListedNumbers(t *testing.T) {
	missing, count := findGaps([]int64{1, 5000})
	assert.Equal(t, int64(4998), count)
	assert.Len(t, missing, maxListedGaps)
	assert.Equal(t, int64(2), missing[0])
}

func TestRequiredFields(t *testing.T) {
	t.Run("no nulls", func(t *testing.T) {
		table := types.Table{line("#1001", 1, "10", 1, "10")}
		assert.True(t, checkRequiredFields(table, types.RequiredColumns()).Passed)
	})

	for _, column := range types.RequiredColumns() {
		if column == types.ColOrderNo {
			continue
		}
		t.Run("null "+column, func(t *testing.T) {
			l := line("#1002", 1, "10", 1, "10")
			nullColumn(&l, column)
			table := types.Table{line("#1001", 2, "10", 1, "10"), l}

			res := checkRequiredFields(table, types.RequiredColumns())
			require.False(t, res.Passed)
			require.Len(t, res.Findings, 1)
			assert.Equal(t, column, res.Findings[0].Field)
			assert.Equal(t, []string{"#1002"}, res.Findings[0].Orders)
		})
	}

	t.Run("fails when only an early column has nulls", func(t *testing.T) {
		l := line("#1001", 1, "10", 1, "10")
		l.CustomerNo = nil
		res := checkRequiredFields(types.Table{l}, types.RequiredColumns())
		assert.False(t, res.Passed)
	})

	t.Run("null order number labelled by row", func(t *testing.T) {
		l := line("#1001", 1, "10", 1, "10")
		l.OrderNo = nil
		res := checkRequiredFields(types.Table{line("#1000", 1, "10", 1, "10"), l}, types.RequiredColumns())
		require.False(t, res.Passed)
		assert.Equal(t, []string{"row 2"}, res.Findings[0].Orders)
	})
}

func nullColumn(l *types.InvoiceLine, column string) {
	switch column {
	case types.ColCustomerNo:
		l.CustomerNo = nil
	case types.ColPaidAmount:
		l.PaidAmount = nil
	case types.ColLineCount:
		l.LineCount = nil
	case types.ColUnitPrice:
		l.UnitPrice = nil
	case types.ColVATCode:
		l.VATCode = nil
	case types.ColPaymentType:
		l.PaymentType = nil
	case types.ColInvoiceDate:
		l.InvoiceDate = nil
	case types.ColDeliveryDate:
		l.DeliveryDate = nil
	case types.ColOrderDate:
		l.OrderDate = nil
	case types.ColDueDate:
		l.DueDate = nil
	case types.ColInvoiceNo:
		l.InvoiceNo = nil
	}
}

func TestProdNoOrDescription(t *testing.T) {
	onlyDescription := line("#1001", 1, "10", 1, "10")
	onlyDescription.ProdNo = nil
	onlyProdNo := line("#1002", 2, "10", 1, "10")
	onlyProdNo.ProdDescription = nil
	neither := line("#1003", 3, "10", 1, "10")
	neither.ProdNo = nil
	neither.ProdDescription = nil

	res := checkProdNoOrDescription(types.Table{onlyDescription, onlyProdNo})
	assert.True(t, res.Passed)

	res = checkProdNoOrDescription(types.Table{onlyDescription, onlyProdNo, neither})
	require.False(t, res.Passed)
	assert.Equal(t, []string{"#1003"}, res.Findings[0].Orders)
}

func TestPriceReconciliation(t *testing.T) {
	tests := []struct {
		name   string
		paid   string
		price  string
		passed bool
	}{
		{name: "exact", paid: "100", price: "100", passed: true},
		{name: "below one percent", paid: "100", price: "99.5", passed: true},
		{name: "exactly one percent", paid: "100", price: "99", passed: true},
		{name: "above one percent", paid: "100", price: "98.9", passed: false},
		{name: "above one percent over", paid: "100", price: "101.01", passed: false},
		{name: "negative paid uses absolute tolerance", paid: "-100", price: "-99.5", passed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := types.Table{line("#1001", 1, tt.paid, 1, tt.price)}
			res := checkPrice(table, DefaultPriceTolerance)
			assert.Equal(t, tt.passed, res.Passed)
		})
	}
}

func TestPriceReconciliation_MultiLineWithDiscount(t *testing.T) {
	first := line("#1001", 1, "150", 2, "50")
	second := line("#1001", 1, "150", 1, "100")
	second.DiscountPct = types.Decimal(decimal.NewFromInt(50))
	second.PaidAmount = types.Decimal(decimal.NewFromInt(999)) // only the first paid value counts

	res := checkPrice(types.Table{first, second}, DefaultPriceTolerance)
	assert.True(t, res.Passed)
}

func TestPriceReconciliation_ReportsSignedDeviation(t *testing.T) {
	res := checkPrice(types.Table{line("#1001", 1, "100", 1, "105")}, DefaultPriceTolerance)

	require.False(t, res.Passed)
	require.Len(t, res.Findings, 1)
	assert.True(t, decimal.NewFromInt(-5).Equal(res.Findings[0].Deviation))
	assert.Equal(t, []string{"#1001"}, res.Findings[0].Orders)
}

func TestPriceReconciliation_NullDiscountCountsAsZero(t *testing.T) {
	l := line("#1001", 1, "100", 1, "100")
	l.DiscountPct = nil
	assert.True(t, checkPrice(types.Table{l}, DefaultPriceTolerance).Passed)
}

func TestGatewayAllowlist(t *testing.T) {
	vipps := line("#1002", 2, "10", 1, "10")
	vipps.PaymentType = types.String("Vipps")
	vippsAgain := vipps
	table := types.Table{line("#1001", 1, "10", 1, "10"), vipps, vippsAgain}

	t.Run("nil allowlist passes", func(t *testing.T) {
		assert.True(t, checkGateways(table, nil).Passed)
	})

	t.Run("unknown gateway reported once per order", func(t *testing.T) {
		res := checkGateways(table, []string{"Stripe"})
		require.False(t, res.Passed)
		require.Len(t, res.Findings, 1)
		assert.Equal(t, "Vipps", res.Findings[0].Gateway)
		assert.Equal(t, []string{"#1002"}, res.Findings[0].Orders)
		assert.Equal(t, "Order #1002 has an unknown payment gateway: 'Vipps'", res.Findings[0].Message)
	})

	t.Run("empty allowlist rejects everything", func(t *testing.T) {
		res := checkGateways(table, []string{})
		require.False(t, res.Passed)
		assert.Len(t, res.Findings, 2)
		assert.Equal(t, "#1001", res.Findings[0].Orders[0])
	})
}

func TestInformationalChecks(t *testing.T) {
	refund := line("#1002", 2, "-25", 1, "-25")
	gift := line("#1001", 1, "10", 1, "10")
	gift.ProdNo = types.String(types.GiftCardProdNo)
	table := types.Table{gift, refund}

	t.Run("default policy keeps verdict", func(t *testing.T) {
		report := quietValidator(DefaultOptions()).Validate(table)

		assert.True(t, report.Passed)
		assert.Equal(t, 1, report.RefundOrders)

		refunds, ok := report.Result(CheckRefunds)
		require.True(t, ok)
		assert.True(t, refunds.Informational)
		assert.Equal(t, []string{"#1002"}, refunds.Findings[0].Orders)
		assert.Equal(t, SeverityInfo, refunds.Findings[0].Severity)

		gifts, ok := report.Result(CheckGiftCards)
		require.True(t, ok)
		assert.Equal(t, []string{"#1001"}, gifts.Findings[0].Orders)
	})

	t.Run("strict policy fails verdict", func(t *testing.T) {
		opts := DefaultOptions()
		opts.StrictInformational = true
		report := quietValidator(opts).Validate(table)

		assert.False(t, report.Passed)
		assert.ElementsMatch(t, []string{CheckRefunds, CheckGiftCards}, report.Failed())
	})
}

func TestValidate_TwoWarningCategoriesLogged(t *testing.T) {
	missingVAT := line("#1001", 1, "100", 1, "60")
	missingVAT.VATCode = nil
	second := line("#1001", 1, "100", 1, "40")
	mismatch := line("#1002", 2, "100", 1, "95")

	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Gateways = []string{"Stripe"}
	opts.Logger = slog.New(slog.NewTextHandler(&buf, nil))

	report := NewWithOptions(opts).Validate(types.Table{missingVAT, second, mismatch})

	assert.False(t, report.Passed)
	assert.ElementsMatch(t, []string{CheckRequiredFields, CheckPriceMismatch}, report.Failed())

	var warned []string
	for _, logLine := range strings.Split(buf.String(), "\n") {
		if strings.Contains(logLine, "level=WARN") && strings.Contains(logLine, "check=") {
			warned = append(warned, logLine[strings.Index(logLine, "check="):])
		}
	}
	assert.ElementsMatch(t, []string{"check=" + CheckRequiredFields, "check=" + CheckPriceMismatch}, warned)
	assert.Contains(t, buf.String(), "checked manually")
}

func TestValidate_LogsOrderCountSentence(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(&buf, nil))

	NewWithOptions(opts).Validate(types.Table{
		line("#1001", 1, "10", 1, "10"),
		line("#1002", 2, "-10", 1, "-10"),
	})

	assert.Contains(t, buf.String(),
		`msg="There are 1 ordinary orders and 1 refund-only orders" ordinary=1 refund_only=1`)
}

func TestNewWithOptions_PriceTolerance(t *testing.T) {
	table := types.Table{line("#1001", 1, "100", 1, "99.5")}

	t.Run("nil uses the default", func(t *testing.T) {
		opts := DefaultOptions()
		opts.PriceTolerance = nil
		assert.True(t, quietValidator(opts).Validate(table).Passed)
	})

	t.Run("zero requires an exact match", func(t *testing.T) {
		opts := DefaultOptions()
		zero := decimal.Zero
		opts.PriceTolerance = &zero

		report := quietValidator(opts).Validate(table)
		assert.False(t, report.Passed)
		assert.Equal(t, []string{CheckPriceMismatch}, report.Failed())

		exact := quietValidator(opts).Validate(types.Table{line("#1001", 1, "100", 1, "100")})
		assert.True(t, exact.Passed)
	})
}
