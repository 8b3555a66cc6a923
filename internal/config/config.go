// =============================================================================
// shopinvoice - Configuration Module
// =============================================================================
//
// This module loads the application configuration. Values come from three
// layers, later layers winning:
//   1. Built-in defaults (applyMainConfigDefaults)
//   2. The YAML configuration file (default: shopinvoice.yaml)
//   3. SHOPINVOICE_* environment variables, read through viper
//
// Command-line flags are applied on top by the cmd package.
//
// SECRETS:
//   The Shopify API key and password and the database password are usually
//   supplied through the environment (SHOPINVOICE_SHOPIFY_KEY,
//   SHOPINVOICE_SHOPIFY_PASSWORD, SHOPINVOICE_DATABASE_PASSWORD) so they never
//   need to be written to the file.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when no --config flag is given. It may be absent.
const DefaultConfigFile = "shopinvoice.yaml"

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "SHOPINVOICE"

// DefaultPriceTolerance is the price check tolerance when none is configured.
const DefaultPriceTolerance = 0.01

// ErrIncomplete is returned when a command needs settings that are not set.
var ErrIncomplete = errors.New("incomplete configuration")

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// Store is the Shopify shop name, the part before .myshopify.com. It is
	// also the prefix of every log record and of export file names.
	Store string `yaml:"store" validate:"omitempty,shopname"`

	Shopify  ShopifyConfig  `yaml:"shopify"`
	Database DatabaseConfig `yaml:"database"`
	Invoice  InvoiceConfig  `yaml:"invoice"`
}

// ShopifyConfig configures the Admin REST API client.
type ShopifyConfig struct {
	// Key and Password are the private app credentials.
	Key      string `yaml:"key"`
	Password string `yaml:"password"`

	// APIVersion is the Admin API version, e.g. "2021-04".
	// Default: "2021-04"
	APIVersion string `yaml:"api_version"`

	// PageLimit is the number of records requested per page (max 250).
	// Default: 250
	PageLimit int `yaml:"page_limit" validate:"min=1,max=250"`

	// RetryLimit is the number of attempts per request.
	// Default: 10
	RetryLimit int `yaml:"retry_limit" validate:"min=1"`

	// RetryWait is the wait after the first failed attempt. Every following
	// wait is RetryFactor times longer.
	// Default: 4s, factor 1.5
	RetryWait   time.Duration `yaml:"retry_wait" validate:"gte=0s"`
	RetryFactor float64       `yaml:"retry_factor" validate:"gte=1"`

	// RequestsPerSecond throttles all API calls. Shopify allows 2 per second
	// for standard plans.
	// Default: 2
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gt=0"`

	// Timeout bounds a single HTTP request.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	Timezone string `yaml:"timezone"`

	// MaxOpenConns and MaxIdleConns size the connection pool.
	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
}

// DSN returns the connection string for the gorm postgres driver.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.Timezone)
}

// InvoiceConfig controls invoice generation and verification.
type InvoiceConfig struct {
	// OutputDir is where export files and review reports are written.
	// Default: "./invoices"
	OutputDir string `yaml:"output_dir"`

	// FileNameFormat names generated export files. Placeholders:
	//   {store}     - the store name
	//   {from}      - first order date (YYYY-MM-DD)
	//   {to}        - last order date (YYYY-MM-DD)
	//   {timestamp} - generation time (YYYYMMDD_HHMMSS)
	//   {uuid}      - a random UUID
	// The extension selects the format (.csv or .xlsx).
	// Default: "{store}_tripletex_{from}_{to}.csv"
	FileNameFormat string `yaml:"file_name_format"`

	// Gateways are "old:new" payment gateway renames applied before export.
	Gateways []string `yaml:"gateways"`

	// Allowlist is the set of accepted payment types. When unset, the targets
	// of Gateways are used; when both are empty the check is skipped.
	Allowlist []string `yaml:"allowlist"`

	// PriceTolerance is the relative deviation accepted by the price check.
	// 0 requires an exact match.
	// Default: 0.01
	PriceTolerance *float64 `yaml:"price_tolerance" validate:"required,gte=0,lt=1"`

	// StrictInformational makes refunds and gift cards fail the verdict.
	// Default: false
	StrictInformational bool `yaml:"strict_informational"`

	// InputEncoding is the character set of invoice CSVs read by verify.
	// Default: "UTF-8"
	InputEncoding string `yaml:"input_encoding"`

	// WriteReport writes a plain-text review report next to every export.
	// Default: true
	WriteReport *bool `yaml:"write_report"`
}

// Tolerance returns the configured price tolerance or the default.
func (c InvoiceConfig) Tolerance() float64 {
	if c.PriceTolerance == nil {
		return DefaultPriceTolerance
	}
	return *c.PriceTolerance
}

// ReportEnabled reports whether review reports should be written.
func (c InvoiceConfig) ReportEnabled() bool {
	return c.WriteReport == nil || *c.WriteReport
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Load reads the configuration.
//
// PARAMETERS:
//   - configPath: The YAML file to read. An empty path means DefaultConfigFile,
//     which may be missing; an explicitly named file must exist.
//
// RETURNS:
//   - The configuration with defaults and environment overrides applied.
//   - An error if the file cannot be read or parsed, or a value is invalid.
func Load(configPath string) (*MainConfig, error) {
	var config MainConfig

	explicit := configPath != ""
	if !explicit {
		configPath = DefaultConfigFile
	}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// Defaults and environment only.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyEnvOverrides(&config, newEnv())
	applyMainConfigDefaults(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// newEnv returns a viper instance bound to the SHOPINVOICE_ environment.
func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

// applyEnvOverrides copies every set environment variable over the file value.
func applyEnvOverrides(config *MainConfig, v *viper.Viper) {
	fields := map[string]*string{
		"STORE":               &config.Store,
		"SHOPIFY_KEY":         &config.Shopify.Key,
		"SHOPIFY_PASSWORD":    &config.Shopify.Password,
		"SHOPIFY_API_VERSION": &config.Shopify.APIVersion,
		"DATABASE_HOST":       &config.Database.Host,
		"DATABASE_PORT":       &config.Database.Port,
		"DATABASE_NAME":       &config.Database.Name,
		"DATABASE_USER":       &config.Database.User,
		"DATABASE_PASSWORD":   &config.Database.Password,
		"DATABASE_SSLMODE":    &config.Database.SSLMode,
		"DATABASE_TIMEZONE":   &config.Database.Timezone,
		"INVOICE_OUTPUT_DIR":  &config.Invoice.OutputDir,
	}
	for key, dst := range fields {
		if value := v.GetString(key); value != "" {
			*dst = value
		}
	}

	if v.GetString("INVOICE_PRICE_TOLERANCE") != "" {
		tolerance := v.GetFloat64("INVOICE_PRICE_TOLERANCE")
		config.Invoice.PriceTolerance = &tolerance
	}
	if v.GetString("SHOPIFY_REQUESTS_PER_SECOND") != "" {
		config.Shopify.RequestsPerSecond = v.GetFloat64("SHOPIFY_REQUESTS_PER_SECOND")
	}
}

// applyMainConfigDefaults fills every unset field with its default.
func applyMainConfigDefaults(config *MainConfig) {
	s := &config.Shopify
	if s.APIVersion == "" {
		s.APIVersion = "2021-04"
	}
	if s.PageLimit == 0 {
		s.PageLimit = 250
	}
	if s.RetryLimit == 0 {
		s.RetryLimit = 10
	}
	if s.RetryWait == 0 {
		s.RetryWait = 4 * time.Second
	}
	if s.RetryFactor == 0 {
		s.RetryFactor = 1.5
	}
	if s.RequestsPerSecond == 0 {
		s.RequestsPerSecond = 2
	}
	if s.Timeout == 0 {
		s.Timeout = 60 * time.Second
	}

	d := &config.Database
	if d.Host == "" {
		d.Host = "localhost"
	}
	if d.Port == "" {
		d.Port = "5432"
	}
	if d.Name == "" {
		d.Name = "shopify"
	}
	if d.User == "" {
		d.User = "postgres"
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.Timezone == "" {
		d.Timezone = "UTC"
	}
	if d.MaxOpenConns == 0 {
		d.MaxOpenConns = 10
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = 2
	}

	inv := &config.Invoice
	if inv.OutputDir == "" {
		inv.OutputDir = "./invoices"
	}
	if inv.FileNameFormat == "" {
		inv.FileNameFormat = "{store}_tripletex_{from}_{to}.csv"
	}
	if inv.PriceTolerance == nil {
		tolerance := DefaultPriceTolerance
		inv.PriceTolerance = &tolerance
	}
	if inv.InputEncoding == "" {
		inv.InputEncoding = "UTF-8"
	}
}

// configValidator checks the validate tags of MainConfig. Fields are named
// by their YAML keys in errors.
var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
	})
	if err := v.RegisterValidation("shopname", isShopName); err != nil {
		panic(err)
	}
	return v
}

// isShopName accepts myshopify.com subdomains: letters, digits and '-'.
func isShopName(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		if !(r == '-' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// validateMainConfig rejects values no command can work with.
func validateMainConfig(config *MainConfig) error {
	err := configValidator.Struct(config)
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		messages = append(messages, describeFieldError(fe))
	}
	return errors.New(strings.Join(messages, "; "))
}

// describeFieldError turns a failed tag into "shopify.page_limit must be at
// most 250, got 500".
func describeFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	var rule string
	switch fe.Tag() {
	case "shopname":
		return fmt.Sprintf("%s %q is not a valid shop name", field, fe.Value())
	case "required":
		return field + " must be set"
	case "min", "gte":
		rule = "be at least " + fe.Param()
	case "max", "lte":
		rule = "be at most " + fe.Param()
	case "gt":
		rule = "be greater than " + fe.Param()
	case "lt":
		rule = "be less than " + fe.Param()
	default:
		rule = "satisfy " + fe.ActualTag()
	}
	return fmt.Sprintf("%s must %s, got %v", field, rule, fe.Value())
}

// Validate re-checks the configuration after command-line overrides.
func (c *MainConfig) Validate() error {
	return validateMainConfig(c)
}

// =============================================================================
// PER-COMMAND REQUIREMENTS
// =============================================================================

// RequireShopify checks the settings needed to call the Shopify API.
func (c *MainConfig) RequireShopify() error {
	var missing []string
	if c.Store == "" {
		missing = append(missing, "store")
	}
	if c.Shopify.Key == "" {
		missing = append(missing, "shopify.key")
	}
	if c.Shopify.Password == "" {
		missing = append(missing, "shopify.password")
	}
	return missingError(missing)
}

// RequireDatabase checks the settings needed to connect to PostgreSQL.
func (c *MainConfig) RequireDatabase() error {
	var missing []string
	if c.Database.Name == "" {
		missing = append(missing, "database.name")
	}
	if c.Database.User == "" {
		missing = append(missing, "database.user")
	}
	return missingError(missing)
}

func missingError(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %v not set", ErrIncomplete, missing)
}
