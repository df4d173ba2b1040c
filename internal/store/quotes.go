package store

import (
	"context"
	"database/sql"
	"fmt"

	"funnel-service/internal/apperr"
	"funnel-service/internal/models"

	"github.com/jmoiron/sqlx"
)

func insertQuoteItems(ctx context.Context, tx *sqlx.Tx, quoteID int64, items []models.QuoteItem) error {
	query := `
		INSERT INTO quote_items (quote_id, product_id, quantity, unit_price, line_total, manual_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	for i := range items {
		items[i].QuoteID = quoteID
		if err := tx.GetContext(ctx, &items[i].ID, query,
			quoteID, items[i].ProductID, items[i].Quantity,
			items[i].UnitPrice, items[i].LineTotal, items[i].ManualPrice); err != nil {
			return fmt.Errorf("failed to insert quote item: %w", err)
		}
	}
	return nil
}

// CreateQuoteTx inserts a quote and its items in one transaction so the
// total, items and escalation flag are never observed out of step.
func (s *Store) CreateQuoteTx(ctx context.Context, q *models.Quote, items []models.QuoteItem) error {
	return withRetry(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		query := `
			INSERT INTO quotes (quote_number, customer_id, opportunity_id, total_amount, status, requires_approval, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at, updated_at`

		if err := tx.GetContext(ctx, q, query,
			q.QuoteNumber, q.CustomerID, q.OpportunityID, q.TotalAmount,
			q.Status, q.RequiresApproval, q.CreatedBy); err != nil {
			return fmt.Errorf("failed to create quote: %w", err)
		}

		if err := insertQuoteItems(ctx, tx, q.ID, items); err != nil {
			return err
		}

		return tx.Commit()
	})
}

// GetQuoteByID retrieves a quote by ID
func (s *Store) GetQuoteByID(ctx context.Context, id int64) (*models.Quote, error) {
	var q models.Quote
	err := s.db.GetContext(ctx, &q, "SELECT * FROM quotes WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("quote %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// GetQuoteItems retrieves all items for a quote
func (s *Store) GetQuoteItems(ctx context.Context, quoteID int64) ([]models.QuoteItem, error) {
	var items []models.QuoteItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM quote_items WHERE quote_id = $1 ORDER BY id", quoteID)
	return items, err
}

// ReplaceQuoteItemsTx swaps the quote's items and rewrites total and
// escalation flag in one transaction. The guard on DRAFT status is part
// of the UPDATE so a quote submitted concurrently cannot be edited.
func (s *Store) ReplaceQuoteItemsTx(ctx context.Context, quoteID int64, items []models.QuoteItem, total float64, requiresApproval bool) error {
	return withRetry(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx, `
			UPDATE quotes
			SET total_amount = $1, requires_approval = $2, updated_at = NOW()
			WHERE id = $3 AND status = $4`,
			total, requiresApproval, quoteID, models.QuoteStatusDraft)
		if err != nil {
			return fmt.Errorf("failed to update quote: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("quote %d is not editable: %w", quoteID, apperr.ErrConflict)
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM quote_items WHERE quote_id = $1", quoteID); err != nil {
			return fmt.Errorf("failed to clear quote items: %w", err)
		}

		if err := insertQuoteItems(ctx, tx, quoteID, items); err != nil {
			return err
		}

		return tx.Commit()
	})
}

// TransitionQuoteStatusTx flips the quote status conditionally on the
// expected current status and, when entry is non-nil, writes the audit
// entry in the same transaction. Zero rows affected means a concurrent
// actor moved the quote first.
func (s *Store) TransitionQuoteStatusTx(ctx context.Context, quoteID int64, fromStatus, toStatus string, approverID *int64, rejectionReason *string, entry *models.ApprovalLogEntry) (*models.Quote, error) {
	var q models.Quote

	err := withRetry(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		err = tx.GetContext(ctx, &q, `
			UPDATE quotes
			SET status = $1,
			    approver_id = COALESCE($2, approver_id),
			    rejection_reason = $3,
			    updated_at = NOW()
			WHERE id = $4 AND status = $5
			RETURNING *`,
			toStatus, approverID, rejectionReason, quoteID, fromStatus)
		if err == sql.ErrNoRows {
			return fmt.Errorf("quote %d left status %s concurrently: %w",
				quoteID, fromStatus, apperr.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("failed to transition quote: %w", err)
		}

		if entry != nil {
			err = tx.GetContext(ctx, &entry.ID, `
				INSERT INTO approval_logs (quote_id, approver_id, action, comment)
				VALUES ($1, $2, $3, $4)
				RETURNING id`,
				quoteID, entry.ApproverID, entry.Action, entry.Comment)
			if err != nil {
				return fmt.Errorf("failed to write approval log: %w", err)
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ConvertQuoteToOrderTx creates the order and flips the quote to SENT in
// one transaction; both happen or neither does.
func (s *Store) ConvertQuoteToOrderTx(ctx context.Context, quoteID int64, order *models.Order) error {
	return withRetry(ctx, func(ctx context.Context) error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx, `
			UPDATE quotes SET status = $1, updated_at = NOW()
			WHERE id = $2 AND status = $3`,
			models.QuoteStatusSent, quoteID, models.QuoteStatusApproved)
		if err != nil {
			return fmt.Errorf("failed to mark quote sent: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("quote %d is not approved: %w", quoteID, apperr.ErrConflict)
		}

		query := `
			INSERT INTO orders (order_number, quote_id, customer_id, opportunity_id, total_amount, created_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at`

		if err := tx.GetContext(ctx, order, query,
			order.OrderNumber, order.QuoteID, order.CustomerID,
			order.OpportunityID, order.TotalAmount, order.CreatedBy); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		return tx.Commit()
	})
}

// GetApprovalLog retrieves the audit trail for a quote, oldest first.
func (s *Store) GetApprovalLog(ctx context.Context, quoteID int64) ([]models.ApprovalLogEntry, error) {
	var entries []models.ApprovalLogEntry
	err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM approval_logs WHERE quote_id = $1 ORDER BY created_at, id", quoteID)
	return entries, err
}
