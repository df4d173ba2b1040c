package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"funnel-service/internal/apperr"
	"funnel-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// isRetryable reports whether err is a deadlock or serialization failure
// that is safe to retry once.
func isRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

// withRetry runs fn, retrying exactly once on deadlock-class failures.
// Business errors pass through untouched.
func withRetry(ctx context.Context, fn func(context.Context) error) error {
	err := fn(ctx)
	if err != nil && isRetryable(err) {
		return fn(ctx)
	}
	return err
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("product %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// GetPriceTiers retrieves the tier table for a product
func (s *Store) GetPriceTiers(ctx context.Context, productID int64) ([]models.PriceTier, error) {
	var tiers []models.PriceTier
	err := s.db.SelectContext(ctx, &tiers,
		"SELECT * FROM price_tiers WHERE product_id = $1", productID)
	return tiers, err
}

// GetPriceTiersByProducts retrieves tier tables for several products at once
func (s *Store) GetPriceTiersByProducts(ctx context.Context, ids []int64) (map[int64][]models.PriceTier, error) {
	result := make(map[int64][]models.PriceTier, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In("SELECT * FROM price_tiers WHERE product_id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var tiers []models.PriceTier
	if err := s.db.SelectContext(ctx, &tiers, query, args...); err != nil {
		return nil, err
	}

	for _, t := range tiers {
		result[t.ProductID] = append(result[t.ProductID], t)
	}
	return result, nil
}
