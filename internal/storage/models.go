package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// The models mirror the Shopify Admin API resources the invoice view is
// built from. Primary keys are the Shopify IDs; every other column is
// nullable because the API omits fields freely.

// Customer is a shop customer.
type Customer struct {
	ID               int64            `gorm:"primaryKey;autoIncrement:false"`
	Email            *string          `gorm:"size:255"`
	Name             *string          `gorm:"size:255"`
	FirstName        *string          `gorm:"size:255"`
	LastName         *string          `gorm:"size:255"`
	Phone            *string          `gorm:"size:64"`
	Address          *string          `gorm:"size:255"`
	City             *string          `gorm:"size:128"`
	Country          *string          `gorm:"size:128"`
	Zip              *string          `gorm:"size:32"`
	Note             *string          `gorm:"type:text"`
	TotalSpent       *decimal.Decimal `gorm:"type:numeric(14,2)"`
	VerifiedEmail    *bool
	AcceptsMarketing *bool
	CreatedAt        *time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt        *time.Time `gorm:"autoUpdateTime:false"`
}

// Order is the order header.
type Order struct {
	ID                   int64            `gorm:"primaryKey;autoIncrement:false"`
	CustomerID           *int64           `gorm:"index"`
	Name                 string           `gorm:"size:64;index"`
	FulfillmentStatus    *string          `gorm:"size:64"`
	FinancialStatus      *string          `gorm:"size:64"`
	TotalPrice           *decimal.Decimal `gorm:"type:numeric(14,2)"`
	TotalLineItemsPrice  *decimal.Decimal `gorm:"type:numeric(14,2)"`
	TotalDiscountsAmount *decimal.Decimal `gorm:"type:numeric(14,2)"`
	TotalTaxAmount       *decimal.Decimal `gorm:"type:numeric(14,2)"`
	TaxesIncluded        *bool
	Currency             *string    `gorm:"size:8"`
	CreatedAt            *time.Time `gorm:"autoCreateTime:false;index"`
	ProcessedAt          *time.Time
	ClosedAt             *time.Time
}

// LineItemProduct is one product line of an order.
type LineItemProduct struct {
	ID                  int64            `gorm:"primaryKey;autoIncrement:false"`
	OrderID             int64            `gorm:"index"`
	ProductID           *int64           `gorm:"index"`
	Title               *string          `gorm:"size:255"`
	SKU                 *string          `gorm:"column:sku;size:128"`
	UnitPrice           *decimal.Decimal `gorm:"type:numeric(14,2)"`
	TotalPrice          *decimal.Decimal `gorm:"type:numeric(14,2)"`
	TotalDiscountAmount *decimal.Decimal `gorm:"type:numeric(14,2)"`
	Quantity            int64
	Vendor              *string          `gorm:"size:255"`
	VariantTitle        *string          `gorm:"size:255"`
	TaxAmount           *decimal.Decimal `gorm:"type:numeric(14,2)"`
	TaxRate             *decimal.Decimal `gorm:"type:numeric(6,4)"`
	TaxTitle            *string          `gorm:"size:64"`
	Taxable             *bool
	Currency            *string `gorm:"size:8"`
}

// TableName keeps the historical table name.
func (LineItemProduct) TableName() string { return "line_item_products" }

// Shipping is one shipping line of an order, with the billing address.
type Shipping struct {
	ID              int64            `gorm:"primaryKey;autoIncrement:false"`
	OrderID         int64            `gorm:"index"`
	Code            *string          `gorm:"size:128"`
	Price           *decimal.Decimal `gorm:"type:numeric(14,2)"`
	DiscountedPrice *decimal.Decimal `gorm:"type:numeric(14,2)"`
	Currency        *string          `gorm:"size:8"`
	Title           *string          `gorm:"size:255"`
	Source          *string          `gorm:"size:128"`
	Phone           *string          `gorm:"size:64"`
	Address         *string          `gorm:"size:255"`
	City            *string          `gorm:"size:128"`
	Zip             *string          `gorm:"size:32"`
	Country         *string          `gorm:"size:128"`
	Latitude        *float64
	Longitude       *float64
	TaxRate         *decimal.Decimal `gorm:"type:numeric(6,4)"`
	TaxAmount       *decimal.Decimal `gorm:"type:numeric(14,2)"`
}

// TableName keeps the historical table name.
func (Shipping) TableName() string { return "shipping" }

// Transaction is one payment gateway transaction of an order.
type Transaction struct {
	ID          int64            `gorm:"primaryKey;autoIncrement:false"`
	OrderID     int64            `gorm:"index"`
	Status      *string          `gorm:"size:32"`
	Amount      *decimal.Decimal `gorm:"type:numeric(14,2)"`
	Currency    *string          `gorm:"size:8"`
	ErrorCode   *string          `gorm:"size:64"`
	Gateway     *string          `gorm:"size:128"`
	Kind        *string          `gorm:"size:32"`
	CreatedAt   *time.Time       `gorm:"autoCreateTime:false"`
	ProcessedAt *time.Time
}

// Refund is a refund issued against an order.
type Refund struct {
	ID               int64  `gorm:"primaryKey;autoIncrement:false"`
	OrderID          int64  `gorm:"index"`
	TransactionID    *int64 `gorm:"index"`
	Note             *string `gorm:"type:text"`
	RefundProductCnt int
	CreatedAt        *time.Time `gorm:"autoCreateTime:false"`
	ProcessedAt      *time.Time
}

// RefundLineItem is one refunded product line.
type RefundLineItem struct {
	ID                int64            `gorm:"primaryKey;autoIncrement:false"`
	RefundID          int64            `gorm:"index"`
	LineItemProductID int64            `gorm:"index"`
	Quantity          int64
	Currency          *string          `gorm:"size:8"`
	RefundAmount      *decimal.Decimal `gorm:"type:numeric(14,2)"`
}

// TableName keeps the historical table name.
func (RefundLineItem) TableName() string { return "line_item_product_refunds" }

// Product is a catalogue product.
type Product struct {
	ID          int64      `gorm:"primaryKey;autoIncrement:false"`
	Title       *string    `gorm:"size:255"`
	Status      *string    `gorm:"size:32"`
	ProductType *string    `gorm:"size:128"`
	Vendor      *string    `gorm:"size:255"`
	CreatedAt   *time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt   *time.Time `gorm:"autoUpdateTime:false"`
}

// ProductVariant is one purchasable variant of a product.
type ProductVariant struct {
	ID        int64            `gorm:"primaryKey;autoIncrement:false"`
	ProductID int64            `gorm:"index"`
	Price     *decimal.Decimal `gorm:"type:numeric(14,2)"`
	Title     *string          `gorm:"size:255"`
	SKU       *string          `gorm:"column:sku;size:128"`
	Option1   *string          `gorm:"column:option1;size:255"`
	Option2   *string          `gorm:"column:option2;size:255"`
	Option3   *string          `gorm:"column:option3;size:255"`
	CreatedAt *time.Time       `gorm:"autoCreateTime:false"`
	UpdatedAt *time.Time       `gorm:"autoUpdateTime:false"`
}

// allModels lists every table managed by Migrate, parents first.
func allModels() []interface{} {
	return []interface{}{
		&Customer{},
		&Product{},
		&ProductVariant{},
		&Order{},
		&LineItemProduct{},
		&Shipping{},
		&Transaction{},
		&Refund{},
		&RefundLineItem{},
	}
}
