package store

import (
	"context"
	"database/sql"
	"fmt"

	"funnel-service/internal/apperr"
	"funnel-service/internal/models"
)

// CreateOpportunity inserts a new opportunity.
func (s *Store) CreateOpportunity(ctx context.Context, o *models.Opportunity) error {
	query := `
		INSERT INTO opportunities (customer_id, name, amount, stage, probability, expected_close, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, o, query,
		o.CustomerID, o.Name, o.Amount, o.Stage, o.Probability, o.ExpectedClose, o.OwnerID)
}

// GetOpportunityByID retrieves an opportunity by ID
func (s *Store) GetOpportunityByID(ctx context.Context, id int64) (*models.Opportunity, error) {
	var o models.Opportunity
	err := s.db.GetContext(ctx, &o, "SELECT * FROM opportunities WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFoundf("opportunity %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOpportunitiesByCustomer retrieves opportunities for a customer
func (s *Store) GetOpportunitiesByCustomer(ctx context.Context, customerID int64) ([]models.Opportunity, error) {
	var opps []models.Opportunity
	err := s.db.SelectContext(ctx, &opps,
		"SELECT * FROM opportunities WHERE customer_id = $1 ORDER BY created_at DESC", customerID)
	return opps, err
}

// TransitionOpportunityStage updates stage, probability and loss reason
// in one statement, conditional on the stage still being the one the
// legality check saw. Zero rows means a concurrent transition won.
func (s *Store) TransitionOpportunityStage(ctx context.Context, id int64, fromStage, toStage string, probability int, lossReason *string) (*models.Opportunity, error) {
	var o models.Opportunity
	err := s.db.GetContext(ctx, &o, `
		UPDATE opportunities
		SET stage = $1, probability = $2, loss_reason = $3, updated_at = NOW()
		WHERE id = $4 AND stage = $5
		RETURNING *`,
		toStage, probability, lossReason, id, fromStage)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("opportunity %d left stage %s concurrently: %w",
			id, fromStage, apperr.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}
