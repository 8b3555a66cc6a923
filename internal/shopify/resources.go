package shopify

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopinvoice/shopinvoice/internal/storage"
)

// Fields requested per resource. Shopify returns only what is listed.
var (
	customerFields = []string{
		"id", "accepts_marketing", "created_at", "default_address", "email",
		"first_name", "last_name", "last_order_id", "last_order_name", "name",
		"note", "phone", "total_spent", "verified_email", "updated_at",
	}
	orderFields = []string{
		"id", "line_items", "name", "billing_address", "total_price",
		"closed_at", "created_at", "processed_at", "currency",
		"current_total_discounts", "current_subtotal_price",
		"fulfillment_status", "financial_status", "customer", "landing_site",
		"shipping_lines", "taxes_included", "total_line_items_price",
		"total_discounts", "total_tax", "discount_applications",
	}
	productFields = []string{
		"id", "created_at", "product_type", "published_at", "status", "title",
		"updated_at", "variants", "vendor",
	}
	transactionFields = []string{
		"id", "location_id", "order_id", "amount", "authorization",
		"created_at", "currency", "error_code", "gateway", "kind", "message",
		"processed_at", "receipt", "status", "source_name",
	}
	refundFields = []string{
		"id", "note", "refund_line_items", "transactions", "created_at",
		"processed_at",
	}
)

// =============================================================================
// API SHAPES
// =============================================================================

type address struct {
	Address1  *string  `json:"address1"`
	City      *string  `json:"city"`
	Country   *string  `json:"country"`
	Zip       *string  `json:"zip"`
	Name      *string  `json:"name"`
	Phone     *string  `json:"phone"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type money struct {
	CurrencyCode *string `json:"currency_code"`
}

type priceSet struct {
	ShopMoney        money `json:"shop_money"`
	PresentmentMoney money `json:"presentment_money"`
}

type taxLine struct {
	Title *string          `json:"title"`
	Price *decimal.Decimal `json:"price"`
	Rate  *decimal.Decimal `json:"rate"`
}

type reference struct {
	ID int64 `json:"id"`
}

type customer struct {
	ID               int64            `json:"id"`
	Email            *string          `json:"email"`
	FirstName        *string          `json:"first_name"`
	LastName         *string          `json:"last_name"`
	Phone            *string          `json:"phone"`
	Note             *string          `json:"note"`
	TotalSpent       *decimal.Decimal `json:"total_spent"`
	VerifiedEmail    *bool            `json:"verified_email"`
	AcceptsMarketing *bool            `json:"accepts_marketing"`
	CreatedAt        *time.Time       `json:"created_at"`
	UpdatedAt        *time.Time       `json:"updated_at"`
	DefaultAddress   *address         `json:"default_address"`
}

type order struct {
	ID                  int64            `json:"id"`
	Name                string           `json:"name"`
	Customer            *reference       `json:"customer"`
	FulfillmentStatus   *string          `json:"fulfillment_status"`
	FinancialStatus     *string          `json:"financial_status"`
	TotalPrice          *decimal.Decimal `json:"total_price"`
	TotalLineItemsPrice *decimal.Decimal `json:"total_line_items_price"`
	TotalDiscounts      *decimal.Decimal `json:"total_discounts"`
	TotalTax            *decimal.Decimal `json:"total_tax"`
	TaxesIncluded       *bool            `json:"taxes_included"`
	Currency            *string          `json:"currency"`
	CreatedAt           *time.Time       `json:"created_at"`
	ProcessedAt         *time.Time       `json:"processed_at"`
	ClosedAt            *time.Time       `json:"closed_at"`
	BillingAddress      *address         `json:"billing_address"`
	LineItems           []lineItem       `json:"line_items"`
	ShippingLines       []shippingLine   `json:"shipping_lines"`
}

type lineItem struct {
	ID                  int64            `json:"id"`
	ProductID           *int64           `json:"product_id"`
	Title               *string          `json:"title"`
	SKU                 *string          `json:"sku"`
	Vendor              *string          `json:"vendor"`
	VariantTitle        *string          `json:"variant_title"`
	Price               *decimal.Decimal `json:"price"`
	Quantity            int64            `json:"quantity"`
	Taxable             *bool            `json:"taxable"`
	TaxLines            []taxLine        `json:"tax_lines"`
	PriceSet            *priceSet        `json:"price_set"`
	DiscountAllocations []struct {
		Amount decimal.Decimal `json:"amount"`
	} `json:"discount_allocations"`
}

type shippingLine struct {
	ID              int64            `json:"id"`
	Code            *string          `json:"code"`
	Title           *string          `json:"title"`
	Source          *string          `json:"source"`
	Phone           *string          `json:"phone"`
	Price           *decimal.Decimal `json:"price"`
	DiscountedPrice *decimal.Decimal `json:"discounted_price"`
	PriceSet        *priceSet        `json:"price_set"`
	TaxLines        []taxLine        `json:"tax_lines"`
}

type transaction struct {
	ID          int64            `json:"id"`
	Status      *string          `json:"status"`
	Amount      *decimal.Decimal `json:"amount"`
	Currency    *string          `json:"currency"`
	ErrorCode   *string          `json:"error_code"`
	Gateway     *string          `json:"gateway"`
	Kind        *string          `json:"kind"`
	CreatedAt   *time.Time       `json:"created_at"`
	ProcessedAt *time.Time       `json:"processed_at"`
}

type refund struct {
	ID              int64            `json:"id"`
	Note            *string          `json:"note"`
	CreatedAt       *time.Time       `json:"created_at"`
	ProcessedAt     *time.Time       `json:"processed_at"`
	Transactions    []reference      `json:"transactions"`
	RefundLineItems []refundLineItem `json:"refund_line_items"`
}

type refundLineItem struct {
	ID          int64            `json:"id"`
	Quantity    int64            `json:"quantity"`
	LineItemID  int64            `json:"line_item_id"`
	LineItem    *reference       `json:"line_item"`
	Subtotal    *decimal.Decimal `json:"subtotal"`
	SubtotalSet *priceSet        `json:"subtotal_set"`
}

type product struct {
	ID          int64      `json:"id"`
	Title       *string    `json:"title"`
	Status      *string    `json:"status"`
	ProductType *string    `json:"product_type"`
	Vendor      *string    `json:"vendor"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
	Variants    []variant  `json:"variants"`
}

type variant struct {
	ID        int64            `json:"id"`
	ProductID int64            `json:"product_id"`
	Price     *decimal.Decimal `json:"price"`
	Title     *string          `json:"title"`
	SKU       *string          `json:"sku"`
	Option1   *string          `json:"option1"`
	Option2   *string          `json:"option2"`
	Option3   *string          `json:"option3"`
	CreatedAt *time.Time       `json:"created_at"`
	UpdatedAt *time.Time       `json:"updated_at"`
}

// =============================================================================
// NORMALIZATION
// =============================================================================

// toCustomer flattens the default address into the customer row. The
// customer's own phone wins over the address phone.
func toCustomer(c customer) storage.Customer {
	row := storage.Customer{
		ID:               c.ID,
		Email:            c.Email,
		FirstName:        c.FirstName,
		LastName:         c.LastName,
		Phone:            c.Phone,
		Note:             c.Note,
		TotalSpent:       c.TotalSpent,
		VerifiedEmail:    c.VerifiedEmail,
		AcceptsMarketing: c.AcceptsMarketing,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
	if a := c.DefaultAddress; a != nil {
		row.Name = a.Name
		row.Address = a.Address1
		row.City = a.City
		row.Country = a.Country
		row.Zip = a.Zip
		if row.Phone == nil {
			row.Phone = a.Phone
		}
	}
	return row
}

func toOrder(o order) storage.Order {
	row := storage.Order{
		ID:                   o.ID,
		Name:                 o.Name,
		FulfillmentStatus:    o.FulfillmentStatus,
		FinancialStatus:      o.FinancialStatus,
		TotalPrice:           o.TotalPrice,
		TotalLineItemsPrice:  o.TotalLineItemsPrice,
		TotalDiscountsAmount: o.TotalDiscounts,
		TotalTaxAmount:       o.TotalTax,
		TaxesIncluded:        o.TaxesIncluded,
		Currency:             o.Currency,
		CreatedAt:            o.CreatedAt,
		ProcessedAt:          o.ProcessedAt,
		ClosedAt:             o.ClosedAt,
	}
	if o.Customer != nil {
		id := o.Customer.ID
		row.CustomerID = &id
	}
	return row
}

// toLineItem derives the line total from unit price and quantity and takes
// tax and discount from the first tax line and discount allocation.
func toLineItem(orderID int64, li lineItem) storage.LineItemProduct {
	zero := decimal.Zero
	row := storage.LineItemProduct{
		ID:                  li.ID,
		OrderID:             orderID,
		ProductID:           li.ProductID,
		Title:               li.Title,
		SKU:                 li.SKU,
		UnitPrice:           li.Price,
		Quantity:            li.Quantity,
		Vendor:              li.Vendor,
		VariantTitle:        li.VariantTitle,
		Taxable:             li.Taxable,
		TotalDiscountAmount: &zero,
		TaxAmount:           &zero,
		TaxRate:             &zero,
	}
	if li.Price != nil {
		total := li.Price.Mul(decimal.NewFromInt(li.Quantity))
		row.TotalPrice = &total
	}
	if len(li.DiscountAllocations) > 0 {
		amount := li.DiscountAllocations[0].Amount
		row.TotalDiscountAmount = &amount
	}
	if len(li.TaxLines) > 0 {
		tl := li.TaxLines[0]
		row.TaxAmount = tl.Price
		row.TaxRate = tl.Rate
		row.TaxTitle = tl.Title
	}
	if li.PriceSet != nil {
		row.Currency = li.PriceSet.PresentmentMoney.CurrencyCode
	}
	return row
}

func toShipping(o order, sl shippingLine) storage.Shipping {
	row := storage.Shipping{
		ID:              sl.ID,
		OrderID:         o.ID,
		Code:            sl.Code,
		Price:           sl.Price,
		DiscountedPrice: sl.DiscountedPrice,
		Title:           sl.Title,
		Source:          sl.Source,
		Phone:           sl.Phone,
	}
	if sl.PriceSet != nil {
		row.Currency = sl.PriceSet.PresentmentMoney.CurrencyCode
	}
	if len(sl.TaxLines) > 0 {
		row.TaxRate = sl.TaxLines[0].Rate
		row.TaxAmount = sl.TaxLines[0].Price
	}
	if a := o.BillingAddress; a != nil {
		row.Address = a.Address1
		row.City = a.City
		row.Zip = a.Zip
		row.Country = a.Country
		row.Latitude = a.Latitude
		row.Longitude = a.Longitude
	}
	return row
}

func toTransaction(orderID int64, t transaction) storage.Transaction {
	return storage.Transaction{
		ID:          t.ID,
		OrderID:     orderID,
		Status:      t.Status,
		Amount:      t.Amount,
		Currency:    t.Currency,
		ErrorCode:   t.ErrorCode,
		Gateway:     t.Gateway,
		Kind:        t.Kind,
		CreatedAt:   t.CreatedAt,
		ProcessedAt: t.ProcessedAt,
	}
}

// toRefund links the refund to its first transaction and flattens the
// refunded lines.
func toRefund(orderID int64, r refund) (storage.Refund, []storage.RefundLineItem) {
	row := storage.Refund{
		ID:               r.ID,
		OrderID:          orderID,
		Note:             r.Note,
		RefundProductCnt: len(r.RefundLineItems),
		CreatedAt:        r.CreatedAt,
		ProcessedAt:      r.ProcessedAt,
	}
	if len(r.Transactions) > 0 {
		id := r.Transactions[0].ID
		row.TransactionID = &id
	}

	lines := make([]storage.RefundLineItem, 0, len(r.RefundLineItems))
	for _, rli := range r.RefundLineItems {
		line := storage.RefundLineItem{
			ID:                rli.ID,
			RefundID:          r.ID,
			LineItemProductID: rli.LineItemID,
			Quantity:          rli.Quantity,
			RefundAmount:      rli.Subtotal,
		}
		if rli.LineItem != nil {
			line.LineItemProductID = rli.LineItem.ID
		}
		if rli.SubtotalSet != nil {
			line.Currency = rli.SubtotalSet.ShopMoney.CurrencyCode
		}
		lines = append(lines, line)
	}
	return row, lines
}

func toProduct(p product) (storage.Product, []storage.ProductVariant) {
	row := storage.Product{
		ID:          p.ID,
		Title:       p.Title,
		Status:      p.Status,
		ProductType: p.ProductType,
		Vendor:      p.Vendor,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	variants := make([]storage.ProductVariant, 0, len(p.Variants))
	for _, v := range p.Variants {
		productID := v.ProductID
		if productID == 0 {
			productID = p.ID
		}
		variants = append(variants, storage.ProductVariant{
			ID:        v.ID,
			ProductID: productID,
			Price:     v.Price,
			Title:     v.Title,
			SKU:       v.SKU,
			Option1:   v.Option1,
			Option2:   v.Option2,
			Option3:   v.Option3,
			CreatedAt: v.CreatedAt,
			UpdatedAt: v.UpdatedAt,
		})
	}
	return row, variants
}
