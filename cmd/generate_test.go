package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopinvoice/shopinvoice/internal/config"
	"github.com/shopinvoice/shopinvoice/internal/pipeline"
)

func TestParseGenerateArgs(t *testing.T) {
	got, err := parseGenerateArgs([]string{"2021-05-01", "2021-05-31", "10001"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC), got.from)
	assert.Equal(t, time.Date(2021, 5, 31, 0, 0, 0, 0, time.UTC), got.to)
	assert.Equal(t, int64(10001), got.startID)

	sameDay, err := parseGenerateArgs([]string{"2021-05-01", "2021-05-01", "1"})
	require.NoError(t, err)
	assert.Equal(t, sameDay.from, sameDay.to)
}

func TestParseGenerateArgs_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "to before from", args: []string{"2021-05-31", "2021-05-01", "10001"}, want: "is before from_date"},
		{name: "bad from date", args: []string{"01.05.2021", "2021-05-31", "10001"}, want: "from_date must have the format yyyy-mm-dd"},
		{name: "bad to date", args: []string{"2021-05-01", "2021-13-01", "10001"}, want: "to_date must have the format yyyy-mm-dd"},
		{name: "empty date", args: []string{"", "2021-05-31", "10001"}, want: "are required"},
		{name: "zero start id", args: []string{"2021-05-01", "2021-05-31", "0"}, want: "invoice_start_id must be a positive integer"},
		{name: "negative start id", args: []string{"2021-05-01", "2021-05-31", "-5"}, want: "invoice_start_id must be a positive integer"},
		{name: "non-numeric start id", args: []string{"2021-05-01", "2021-05-31", "abc"}, want: "invoice_start_id must be a positive integer"},
		{name: "missing argument", args: []string{"2021-05-01", "2021-05-31"}, want: "got 2 arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseGenerateArgs(tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestResolveGatewayMapping(t *testing.T) {
	configPairs := []string{"vipps:Vipps"}

	tests := []struct {
		name      string
		flagPairs []string
		want      pipeline.GatewayMapping
	}{
		{name: "flags win", flagPairs: []string{"stripe:Stripe"}, want: pipeline.GatewayMapping{"stripe": "Stripe"}},
		{name: "config fallback", flagPairs: nil, want: pipeline.GatewayMapping{"vipps": "Vipps"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveGatewayMapping(tt.flagPairs, configPairs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("nothing configured", func(t *testing.T) {
		got, err := resolveGatewayMapping(nil, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("invalid config pair", func(t *testing.T) {
		_, err := resolveGatewayMapping(nil, []string{"vipps"})
		assert.Error(t, err)
	})
}

func TestPriceTolerance(t *testing.T) {
	zero := 0.0
	assert.True(t, priceTolerance(config.InvoiceConfig{PriceTolerance: &zero}).IsZero())
	assert.Equal(t, "0.01", priceTolerance(config.InvoiceConfig{}).String())
}
