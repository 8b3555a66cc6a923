package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shopinvoice/shopinvoice/internal/types"
)

// batchSize caps the rows sent in one INSERT statement.
const batchSize = 200

// Store reads and writes the synchronized shop data.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// upsert inserts rows, replacing every column of rows whose id already exists.
func upsert[T any](ctx context.Context, db *gorm.DB, table string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	err := upsertQuery(db.WithContext(ctx)).CreateInBatches(rows, batchSize).Error
	if err != nil {
		return fmt.Errorf("failed to upsert %d %s: %w", len(rows), table, err)
	}
	return nil
}

func upsertQuery(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	})
}

// SaveCustomers upserts customers.
func (s *Store) SaveCustomers(ctx context.Context, rows []Customer) error {
	return upsert(ctx, s.db, "customers", rows)
}

// SaveOrders upserts order headers.
func (s *Store) SaveOrders(ctx context.Context, rows []Order) error {
	return upsert(ctx, s.db, "orders", rows)
}

// SaveLineItems upserts order product lines.
func (s *Store) SaveLineItems(ctx context.Context, rows []LineItemProduct) error {
	return upsert(ctx, s.db, "line items", rows)
}

// SaveShipping upserts order shipping lines.
func (s *Store) SaveShipping(ctx context.Context, rows []Shipping) error {
	return upsert(ctx, s.db, "shipping lines", rows)
}

// SaveTransactions upserts payment transactions.
func (s *Store) SaveTransactions(ctx context.Context, rows []Transaction) error {
	return upsert(ctx, s.db, "transactions", rows)
}

// SaveRefunds upserts refunds and their refunded lines.
func (s *Store) SaveRefunds(ctx context.Context, refunds []Refund, lines []RefundLineItem) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsert(ctx, tx, "refunds", refunds); err != nil {
			return err
		}
		return upsert(ctx, tx, "refund lines", lines)
	})
}

// SaveProducts upserts products and their variants.
func (s *Store) SaveProducts(ctx context.Context, products []Product, variants []ProductVariant) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsert(ctx, tx, "products", products); err != nil {
			return err
		}
		return upsert(ctx, tx, "product variants", variants)
	})
}

// Orders returns the stored orders created between from and to, both
// inclusive by date, in creation order. A zero bound leaves that side open.
func (s *Store) Orders(ctx context.Context, from, to time.Time) ([]Order, error) {
	var orders []Order
	if err := s.ordersQuery(s.db.WithContext(ctx), from, to).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	return orders, nil
}

func (s *Store) ordersQuery(db *gorm.DB, from, to time.Time) *gorm.DB {
	query := db.Model(&Order{})
	if !from.IsZero() {
		query = query.Where("DATE(created_at) >= ?", from.Format(types.DateLayout))
	}
	if !to.IsZero() {
		query = query.Where("DATE(created_at) <= ?", to.Format(types.DateLayout))
	}
	return query.Order("created_at, id")
}
