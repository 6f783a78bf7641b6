// Package dbtest opens throwaway databases for repository and engine tests.
package dbtest

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/greengrocer/storefront/pkg/db/models"
	"github.com/greengrocer/storefront/pkg/enums"
)

// EnvPostgresDSN gates tests that need real row locking.
const EnvPostgresDSN = "STOREFRONT_TEST_DB_DSN"

func gormConfig() *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	}
}

// OpenSQLite returns an isolated in-memory database with every model migrated.
func OpenSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:storefront_%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

// OpenPostgres connects to the database named by STOREFRONT_TEST_DB_DSN, skipping when unset.
func OpenPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv(EnvPostgresDSN)
	if dsn == "" {
		t.Skipf("%s is not set", EnvPostgresDSN)
	}
	conn, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate postgres: %v", err)
	}
	return conn
}

// ProductOption tweaks a product before it is inserted.
type ProductOption func(*models.Product)

// WithCategory sets the product category.
func WithCategory(c enums.ProductCategory) ProductOption {
	return func(p *models.Product) { p.Category = c }
}

// Disabled marks the product as manually unavailable.
func Disabled() ProductOption {
	return func(p *models.Product) { p.Disabled = true }
}

// MustCreateProduct inserts a product priced at price with the given stock.
func MustCreateProduct(t *testing.T, db *gorm.DB, name, price string, stock int, opts ...ProductOption) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
	for _, opt := range opts {
		opt(product)
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return product
}

// MustCreateAccount inserts an account with a throwaway password hash.
func MustCreateAccount(t *testing.T, db *gorm.DB) *models.Account {
	t.Helper()
	suffix := uuid.NewString()[:8]
	account := &models.Account{
		Email:        "shopper_" + suffix + "@example.com",
		Username:     "shopper_" + suffix,
		PasswordHash: "hash",
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

// MustReloadProduct re-reads a product from db.
func MustReloadProduct(t *testing.T, db *gorm.DB, id uuid.UUID) models.Product {
	t.Helper()
	var product models.Product
	if err := db.First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("reload product %s: %v", id, err)
	}
	return product
}
