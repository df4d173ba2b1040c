package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"funnel-service/internal/apperr"
	"funnel-service/internal/models"
)

// CreateCustomer inserts a customer. When ownerID is non-nil the record
// starts PRIVATE and pre-assigned, otherwise it enters the public pool.
func (s *Store) CreateCustomer(ctx context.Context, c *models.Customer) error {
	query := `
		INSERT INTO customers (company_name, industry, region, status, owner_id, lead_source)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, c, query,
		c.CompanyName, c.Industry, c.Region, c.Status, c.OwnerID, c.LeadSource)
}

// GetCustomerByID retrieves a customer by ID
func (s *Store) GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error) {
	var c models.Customer
	err := s.db.GetContext(ctx, &c, "SELECT * FROM customers WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("customer %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CountPrivateCustomers counts the customers currently owned by ownerID.
func (s *Store) CountPrivateCustomers(ctx context.Context, ownerID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM customers WHERE owner_id = $1 AND status = $2",
		ownerID, models.CustomerStatusPrivate)
	return count, err
}

// ClaimCustomerTx atomically claims a public-pool customer for ownerID,
// enforcing the capacity limit. The advisory xact lock serializes
// concurrent capacity checks for the same owner (an owner with zero
// private customers has no rows to lock, so a row lock is not enough);
// it releases on commit or rollback. The flip itself is conditional on
// the customer still being in the public pool, so a lost race surfaces
// as a clean failure instead of overwriting the winner.
func (s *Store) ClaimCustomerTx(ctx context.Context, customerID, ownerID int64, limit int) (*models.Customer, error) {
	var claimed models.Customer

	err := withRetry(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", ownerID); err != nil {
			return fmt.Errorf("failed to lock owner %d: %w", ownerID, err)
		}

		var count int
		err = tx.GetContext(ctx, &count,
			"SELECT COUNT(*) FROM customers WHERE owner_id = $1 AND status = $2",
			ownerID, models.CustomerStatusPrivate)
		if err != nil {
			return fmt.Errorf("failed to count private customers: %w", err)
		}

		if count >= limit {
			return fmt.Errorf("owner %d holds %d of %d: %w",
				ownerID, count, limit, apperr.ErrCapacityExceeded)
		}

		err = tx.GetContext(ctx, &claimed, `
			UPDATE customers
			SET owner_id = $1, status = $2, updated_at = NOW()
			WHERE id = $3 AND status = $4
			RETURNING *`,
			ownerID, models.CustomerStatusPrivate, customerID, models.CustomerStatusPublicPool)
		if err == sql.ErrNoRows {
			var exists bool
			if e := tx.GetContext(ctx, &exists,
				"SELECT EXISTS(SELECT 1 FROM customers WHERE id = $1)", customerID); e == nil && !exists {
				return apperr.NotFoundf("customer %d", customerID)
			}
			return fmt.Errorf("customer %d is no longer in the public pool: %w",
				customerID, apperr.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("failed to claim customer: %w", err)
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return &claimed, nil
}

// ReleaseCustomer returns a private customer to the public pool. The
// update asserts both the PRIVATE status and the owner the caller
// authorized against, so a release racing with a re-claim by another
// owner loses cleanly instead of stripping the new owner.
func (s *Store) ReleaseCustomer(ctx context.Context, customerID, ownerID int64) (*models.Customer, error) {
	var c models.Customer
	err := s.db.GetContext(ctx, &c, `
		UPDATE customers
		SET owner_id = NULL, status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND owner_id = $4
		RETURNING *`,
		models.CustomerStatusPublicPool, customerID, models.CustomerStatusPrivate, ownerID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("customer %d is not private with owner %d: %w",
			customerID, ownerID, apperr.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// sameOwner compares two nullable owner ids.
func sameOwner(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// CountDependents counts opportunities, quotes and orders referencing the
// customer.
func (s *Store) CountDependents(ctx context.Context, customerID int64) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT (SELECT COUNT(*) FROM opportunities WHERE customer_id = $1)
		     + (SELECT COUNT(*) FROM quotes WHERE customer_id = $1)
		     + (SELECT COUNT(*) FROM orders WHERE customer_id = $1)`,
		customerID)
	return count, err
}

// DeleteCustomerTx deletes a customer. The row is locked first and the
// owner the caller authorized against is re-checked under the lock, so
// a delete racing with a claim or release surfaces as Conflict instead
// of acting on stale authorization. With cascade false the delete is
// refused when dependents exist; with cascade true every dependent
// record goes in the same transaction, so readers never observe a
// partial cascade.
func (s *Store) DeleteCustomerTx(ctx context.Context, customerID int64, expectedOwner *int64, cascade bool) error {
	return withRetry(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var currentOwner *int64
		err = tx.GetContext(ctx, &currentOwner,
			"SELECT owner_id FROM customers WHERE id = $1 FOR UPDATE", customerID)
		if err == sql.ErrNoRows {
			return apperr.NotFoundf("customer %d", customerID)
		}
		if err != nil {
			return fmt.Errorf("failed to lock customer %d: %w", customerID, err)
		}
		if !sameOwner(currentOwner, expectedOwner) {
			return fmt.Errorf("customer %d changed owner: %w", customerID, apperr.ErrConflict)
		}

		var dependents int
		err = tx.GetContext(ctx, &dependents, `
			SELECT (SELECT COUNT(*) FROM opportunities WHERE customer_id = $1)
			     + (SELECT COUNT(*) FROM quotes WHERE customer_id = $1)
			     + (SELECT COUNT(*) FROM orders WHERE customer_id = $1)`,
			customerID)
		if err != nil {
			return fmt.Errorf("failed to count dependents: %w", err)
		}

		if dependents > 0 && !cascade {
			return fmt.Errorf("customer %d has %d dependents: %w",
				customerID, dependents, apperr.ErrHasDependents)
		}

		if cascade {
			cascadeStatements := []string{
				"DELETE FROM approval_logs WHERE quote_id IN (SELECT id FROM quotes WHERE customer_id = $1)",
				"DELETE FROM quote_items WHERE quote_id IN (SELECT id FROM quotes WHERE customer_id = $1)",
				"DELETE FROM orders WHERE customer_id = $1",
				"DELETE FROM quotes WHERE customer_id = $1",
				"DELETE FROM opportunities WHERE customer_id = $1",
				"DELETE FROM contacts WHERE customer_id = $1",
				"DELETE FROM follow_ups WHERE customer_id = $1",
			}
			for _, stmt := range cascadeStatements {
				if _, err := tx.ExecContext(ctx, stmt, customerID); err != nil {
					return fmt.Errorf("cascade delete failed: %w", err)
				}
			}
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM customers WHERE id = $1", customerID)
		if err != nil {
			return fmt.Errorf("failed to delete customer: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperr.NotFoundf("customer %d", customerID)
		}

		return tx.Commit()
	})
}

// FindInactiveCustomers returns private customers whose last contact is
// null or older than the threshold.
func (s *Store) FindInactiveCustomers(ctx context.Context, thresholdDays int) ([]models.Customer, error) {
	cutoff := time.Now().AddDate(0, 0, -thresholdDays)

	var customers []models.Customer
	err := s.db.SelectContext(ctx, &customers, `
		SELECT * FROM customers
		WHERE status = $1 AND (last_contact_at IS NULL OR last_contact_at < $2)
		ORDER BY last_contact_at NULLS FIRST`,
		models.CustomerStatusPrivate, cutoff)
	return customers, err
}

// TouchCustomerContact records a contact timestamp.
func (s *Store) TouchCustomerContact(ctx context.Context, customerID int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE customers SET last_contact_at = NOW(), updated_at = NOW() WHERE id = $1",
		customerID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperr.NotFoundf("customer %d", customerID)
	}
	return nil
}
