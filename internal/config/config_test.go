package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shopinvoice.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
store: lillesky
shopify:
  key: abc
  password: secret
  retry_wait: 2s
  page_limit: 50
database:
  host: db.internal
  name: shop
invoice:
  gateways:
    - "shopify_payments:Shopify Payments"
    - "vipps:Vipps"
  price_tolerance: 0.02
  write_report: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "lillesky", cfg.Store)
	assert.Equal(t, "abc", cfg.Shopify.Key)
	assert.Equal(t, 2*time.Second, cfg.Shopify.RetryWait)
	assert.Equal(t, 50, cfg.Shopify.PageLimit)
	assert.Equal(t, 10, cfg.Shopify.RetryLimit)
	assert.Equal(t, 1.5, cfg.Shopify.RetryFactor)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, []string{"shopify_payments:Shopify Payments", "vipps:Vipps"}, cfg.Invoice.Gateways)
	assert.Equal(t, 0.02, cfg.Invoice.Tolerance())
	assert.False(t, cfg.Invoice.ReportEnabled())
	assert.NoError(t, cfg.RequireShopify())
}

func TestLoad_Defaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "2021-04", cfg.Shopify.APIVersion)
	assert.Equal(t, 250, cfg.Shopify.PageLimit)
	assert.Equal(t, 4*time.Second, cfg.Shopify.RetryWait)
	assert.Equal(t, 2.0, cfg.Shopify.RequestsPerSecond)
	assert.Equal(t, 0.01, cfg.Invoice.Tolerance())
	assert.Equal(t, "./invoices", cfg.Invoice.OutputDir)
	assert.True(t, cfg.Invoice.ReportEnabled())
	assert.ErrorIs(t, cfg.RequireShopify(), ErrIncomplete)
	assert.NoError(t, cfg.RequireDatabase())
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
store: lillesky
shopify:
  key: from-file
database:
  password: from-file
`)
	t.Setenv("SHOPINVOICE_SHOPIFY_KEY", "from-env")
	t.Setenv("SHOPINVOICE_SHOPIFY_PASSWORD", "env-secret")
	t.Setenv("SHOPINVOICE_DATABASE_PASSWORD", "db-secret")
	t.Setenv("SHOPINVOICE_INVOICE_PRICE_TOLERANCE", "0.05")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Shopify.Key)
	assert.Equal(t, "env-secret", cfg.Shopify.Password)
	assert.Equal(t, "db-secret", cfg.Database.Password)
	assert.Equal(t, 0.05, cfg.Invoice.Tolerance())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "page limit", content: "shopify:\n  page_limit: 500\n", want: "shopify.page_limit must be at most 250, got 500"},
		{name: "retry limit", content: "shopify:\n  retry_limit: -1\n", want: "shopify.retry_limit must be at least 1"},
		{name: "retry wait", content: "shopify:\n  retry_wait: -2s\n", want: "shopify.retry_wait must be at least 0s"},
		{name: "retry factor", content: "shopify:\n  retry_factor: 0.5\n", want: "shopify.retry_factor must be at least 1, got 0.5"},
		{name: "requests per second", content: "shopify:\n  requests_per_second: -1\n", want: "shopify.requests_per_second must be greater than 0"},
		{name: "tolerance", content: "invoice:\n  price_tolerance: 1.5\n", want: "invoice.price_tolerance must be less than 1"},
		{name: "negative tolerance", content: "invoice:\n  price_tolerance: -0.1\n", want: "invoice.price_tolerance must be at least 0"},
		{name: "store", content: "store: \"my shop/../x\"\n", want: "is not a valid shop name"},
		{name: "yaml", content: "store: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			if tt.want != "" {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}

func TestLoad_ZeroTolerance(t *testing.T) {
	cfg, err := Load(writeConfig(t, "invoice:\n  price_tolerance: 0\n"))
	require.NoError(t, err)

	require.NotNil(t, cfg.Invoice.PriceTolerance)
	assert.Equal(t, 0.0, cfg.Invoice.Tolerance())
}

func TestInvoiceConfig_ToleranceUnset(t *testing.T) {
	assert.Equal(t, DefaultPriceTolerance, InvoiceConfig{}.Tolerance())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "localhost", Port: "5432", Name: "shop", User: "postgres",
		Password: "pw", SSLMode: "disable", Timezone: "UTC",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=pw dbname=shop sslmode=disable TimeZone=UTC",
		d.DSN())
}

func TestMainConfig_Validate(t *testing.T) {
	cfg, err := Load(writeConfig(t, "store: lillesky\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	cfg.Store = "bad store"
	assert.Error(t, cfg.Validate())

	cfg.Store = "lillesky"
	cfg.Invoice.PriceTolerance = nil
	assert.ErrorContains(t, cfg.Validate(), "invoice.price_tolerance must be set")
}
