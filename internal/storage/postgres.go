package storage

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shopinvoice/shopinvoice/internal/config"
)

// NewPostgresDB opens the PostgreSQL connection pool described by cfg.
// SQL statements are logged by gorm only at warn level and above unless
// verbose is set.
func NewPostgresDB(cfg config.DatabaseConfig, verbose bool) (*gorm.DB, error) {
	logLevel := logger.Warn
	if verbose {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true, // disables implicit prepared statement usage
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)

	return db, nil
}

// Close releases the connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates or updates every table and (re)creates the invoice view.
func Migrate(ctx context.Context, db *gorm.DB, log *slog.Logger) error {
	log.Info("Running database migrations")

	if err := db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := db.WithContext(ctx).Exec(invoiceViewSQL).Error; err != nil {
		return fmt.Errorf("failed to create invoice view: %w", err)
	}

	log.Info("Database migrations completed")
	return nil
}
