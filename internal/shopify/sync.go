package shopify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopinvoice/shopinvoice/internal/storage"
)

// flushEvery is the number of orders whose sub-resources are buffered
// before they are written.
const flushEvery = 10

// manyOrders is the order count above which per-order fetches are announced
// as slow.
const manyOrders = 100

// Sink persists normalized rows. *storage.Store implements it.
type Sink interface {
	SaveCustomers(ctx context.Context, rows []storage.Customer) error
	SaveProducts(ctx context.Context, products []storage.Product, variants []storage.ProductVariant) error
	SaveOrders(ctx context.Context, rows []storage.Order) error
	SaveLineItems(ctx context.Context, rows []storage.LineItemProduct) error
	SaveShipping(ctx context.Context, rows []storage.Shipping) error
	SaveTransactions(ctx context.Context, rows []storage.Transaction) error
	SaveRefunds(ctx context.Context, refunds []storage.Refund, lines []storage.RefundLineItem) error
	Orders(ctx context.Context, from, to time.Time) ([]storage.Order, error)
}

// SyncStats counts the rows written by a sync.
type SyncStats struct {
	Customers       int
	Products        int
	Variants        int
	Orders          int
	LineItems       int
	ShippingLines   int
	Transactions    int
	Refunds         int
	RefundLineItems int
}

// Syncer copies one shop's data into a Sink.
type Syncer struct {
	client *Client
	sink   Sink
	logger *slog.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(client *Client, sink Sink, logger *slog.Logger) *Syncer {
	return &Syncer{client: client, sink: sink, logger: logger}
}

// Sync fetches customers, products, orders, transactions and refunds created
// between from and to (zero values leave the range open) and upserts them.
//
// Transactions are fetched for every stored order in the range, refunds only
// for orders whose financial status mentions a refund.
func (s *Syncer) Sync(ctx context.Context, from, to time.Time) (*SyncStats, error) {
	stats := &SyncStats{}
	query := ListQuery{CreatedAtMin: from, CreatedAtMax: to, AnyStatus: true}

	if err := s.syncCustomers(ctx, query, stats); err != nil {
		return stats, err
	}

	productQuery := query
	productQuery.AnyStatus = false
	if err := s.syncProducts(ctx, productQuery, stats); err != nil {
		return stats, err
	}

	if err := s.syncOrders(ctx, query, stats); err != nil {
		return stats, err
	}

	orders, err := s.sink.Orders(ctx, from, to)
	if err != nil {
		return stats, err
	}

	ids := make([]int64, 0, len(orders))
	var refunded []int64
	for _, o := range orders {
		ids = append(ids, o.ID)
		if o.FinancialStatus != nil && strings.Contains(*o.FinancialStatus, "refund") {
			refunded = append(refunded, o.ID)
		}
	}

	if err := s.syncTransactions(ctx, ids, stats); err != nil {
		return stats, err
	}
	if err := s.syncRefunds(ctx, refunded, stats); err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *Syncer) syncCustomers(ctx context.Context, query ListQuery, stats *SyncStats) error {
	err := fetchAll(ctx, s.client, "customers.json", "customers", customerFields, query,
		func(page []customer) error {
			rows := make([]storage.Customer, 0, len(page))
			for _, c := range page {
				rows = append(rows, toCustomer(c))
			}
			if err := s.sink.SaveCustomers(ctx, rows); err != nil {
				return err
			}
			stats.Customers += len(rows)
			return nil
		})
	if err != nil {
		return fmt.Errorf("failed to sync customers: %w", err)
	}
	s.logger.Info(fmt.Sprintf("Updated %d customers", stats.Customers))
	return nil
}

func (s *Syncer) syncProducts(ctx context.Context, query ListQuery, stats *SyncStats) error {
	err := fetchAll(ctx, s.client, "products.json", "products", productFields, query,
		func(page []product) error {
			products := make([]storage.Product, 0, len(page))
			var variants []storage.ProductVariant
			for _, p := range page {
				row, vs := toProduct(p)
				products = append(products, row)
				variants = append(variants, vs...)
			}
			if err := s.sink.SaveProducts(ctx, products, variants); err != nil {
				return err
			}
			stats.Products += len(products)
			stats.Variants += len(variants)
			return nil
		})
	if err != nil {
		return fmt.Errorf("failed to sync products: %w", err)
	}
	s.logger.Info(fmt.Sprintf("Updated %d products and %d variants", stats.Products, stats.Variants))
	return nil
}

func (s *Syncer) syncOrders(ctx context.Context, query ListQuery, stats *SyncStats) error {
	err := fetchAll(ctx, s.client, "orders.json", "orders", orderFields, query,
		func(page []order) error {
			orders := make([]storage.Order, 0, len(page))
			var lines []storage.LineItemProduct
			var shipping []storage.Shipping
			for _, o := range page {
				orders = append(orders, toOrder(o))
				for _, li := range o.LineItems {
					lines = append(lines, toLineItem(o.ID, li))
				}
				for _, sl := range o.ShippingLines {
					shipping = append(shipping, toShipping(o, sl))
				}
			}

			if err := s.sink.SaveOrders(ctx, orders); err != nil {
				return err
			}
			if err := s.sink.SaveLineItems(ctx, lines); err != nil {
				return err
			}
			if err := s.sink.SaveShipping(ctx, shipping); err != nil {
				return err
			}
			stats.Orders += len(orders)
			stats.LineItems += len(lines)
			stats.ShippingLines += len(shipping)
			return nil
		})
	if err != nil {
		return fmt.Errorf("failed to sync orders: %w", err)
	}
	s.logger.Info(fmt.Sprintf("Updated %d orders, %d product lines and %d shipping lines",
		stats.Orders, stats.LineItems, stats.ShippingLines))
	return nil
}

func (s *Syncer) syncTransactions(ctx context.Context, orderIDs []int64, stats *SyncStats) error {
	if len(orderIDs) > manyOrders {
		s.logger.Warn(fmt.Sprintf("Fetching transactions for %d orders may take a few minutes.", len(orderIDs)))
	}

	var buffered []storage.Transaction
	flush := func() error {
		if err := s.sink.SaveTransactions(ctx, buffered); err != nil {
			return err
		}
		stats.Transactions += len(buffered)
		buffered = nil
		return nil
	}

	for i, id := range orderIDs {
		page, err := fetchOrderResource[transaction](ctx, s.client, id, "transactions", transactionFields)
		if err != nil {
			return fmt.Errorf("failed to sync transactions of order %d: %w", id, err)
		}
		for _, t := range page {
			buffered = append(buffered, toTransaction(id, t))
		}
		if (i+1)%flushEvery == 0 || i == len(orderIDs)-1 {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	s.logger.Info(fmt.Sprintf("Updated %d transactions", stats.Transactions))
	return nil
}

func (s *Syncer) syncRefunds(ctx context.Context, orderIDs []int64, stats *SyncStats) error {
	if len(orderIDs) > manyOrders {
		s.logger.Warn(fmt.Sprintf("Fetching refunds for %d orders may take a few minutes.", len(orderIDs)))
	}

	var refunds []storage.Refund
	var lines []storage.RefundLineItem
	flush := func() error {
		if err := s.sink.SaveRefunds(ctx, refunds, lines); err != nil {
			return err
		}
		stats.Refunds += len(refunds)
		stats.RefundLineItems += len(lines)
		refunds, lines = nil, nil
		return nil
	}

	for i, id := range orderIDs {
		page, err := fetchOrderResource[refund](ctx, s.client, id, "refunds", refundFields)
		if err != nil {
			return fmt.Errorf("failed to sync refunds of order %d: %w", id, err)
		}
		for _, r := range page {
			row, rls := toRefund(id, r)
			refunds = append(refunds, row)
			lines = append(lines, rls...)
		}
		if (i+1)%flushEvery == 0 || i == len(orderIDs)-1 {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	s.logger.Info(fmt.Sprintf("Updated %d refunds with %d refunded line items",
		stats.Refunds, stats.RefundLineItems))
	return nil
}
