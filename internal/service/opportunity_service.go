package service

import (
	"context"
	"strings"
	"time"

	"funnel-service/internal/apperr"
	"funnel-service/internal/broker"
	"funnel-service/internal/models"
	"funnel-service/internal/store"
	"funnel-service/internal/util"

	"go.uber.org/zap"
)

// OpportunityService runs the sales-opportunity stage machine.
type OpportunityService struct {
	store          *store.Store
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewOpportunityService creates a new opportunity service
func NewOpportunityService(store *store.Store, eventPublisher *broker.EventPublisher) *OpportunityService {
	return &OpportunityService{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// CreateOpportunityRequest represents a request to create an opportunity
type CreateOpportunityRequest struct {
	CustomerID    int64      `json:"customer_id" binding:"required"`
	Name          string     `json:"name" binding:"required"`
	Amount        float64    `json:"amount"`
	ExpectedClose *time.Time `json:"expected_close"`
}

// CreateOpportunity creates an opportunity at PROSPECTING with the
// probability derived from that stage.
func (s *OpportunityService) CreateOpportunity(ctx context.Context, req *CreateOpportunityRequest, actor models.Actor) (*models.Opportunity, error) {
	ctx, span := util.StartSpan(ctx, "OpportunityService.CreateOpportunity")
	defer span.End()

	if strings.TrimSpace(req.Name) == "" {
		return nil, apperr.Validationf("name must not be empty")
	}
	if req.Amount < 0 {
		return nil, apperr.Validationf("amount must not be negative")
	}

	if _, err := s.store.GetCustomerByID(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	opp := &models.Opportunity{
		CustomerID:    req.CustomerID,
		Name:          strings.TrimSpace(req.Name),
		Amount:        req.Amount,
		Stage:         models.StageProspecting,
		Probability:   models.StageProbability[models.StageProspecting],
		ExpectedClose: req.ExpectedClose,
		OwnerID:       actor.ID,
	}

	if err := s.store.CreateOpportunity(ctx, opp); err != nil {
		return nil, err
	}

	s.logger.Info("Opportunity created",
		zap.Int64("opportunity_id", opp.ID),
		zap.Int64("customer_id", opp.CustomerID))

	return opp, nil
}

// GetOpportunity retrieves an opportunity by ID
func (s *OpportunityService) GetOpportunity(ctx context.Context, id int64) (*models.Opportunity, error) {
	return s.store.GetOpportunityByID(ctx, id)
}

// TransitionStage moves an opportunity to targetStage. The legality
// check, loss-reason precondition and authorization all run before any
// mutation; the probability is re-derived from the target stage and
// written together with it.
func (s *OpportunityService) TransitionStage(ctx context.Context, id int64, targetStage string, lossReason string, actor models.Actor) (*models.Opportunity, error) {
	ctx, span := util.StartSpan(ctx, "OpportunityService.TransitionStage")
	defer span.End()

	if !models.IsValidStage(targetStage) {
		return nil, apperr.Validationf("unknown stage %q", targetStage)
	}

	opp, err := s.store.GetOpportunityByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !actor.IsAdmin() && opp.OwnerID != actor.ID {
		return nil, apperr.Forbiddenf("actor %d does not own opportunity %d", actor.ID, id)
	}

	if !models.CanTransition(models.StageTransitions, opp.Stage, targetStage) {
		return nil, apperr.InvalidTransitionf(opp.Stage, targetStage)
	}

	var reason *string
	if targetStage == models.StageClosedLost {
		trimmed := strings.TrimSpace(lossReason)
		if trimmed == "" {
			return nil, apperr.ErrLossReasonRequired
		}
		reason = &trimmed
	}

	probability := models.StageProbability[targetStage]

	updated, err := s.store.TransitionOpportunityStage(ctx, id, opp.Stage, targetStage, probability, reason)
	if err != nil {
		return nil, err
	}

	util.StageTransitionsTotal.WithLabelValues(targetStage).Inc()
	s.logger.Info("Opportunity stage changed",
		zap.Int64("opportunity_id", id),
		zap.String("from", opp.Stage),
		zap.String("to", targetStage))

	event := &models.StageChangedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeStageChanged),
		OpportunityID: id,
		FromStage:     opp.Stage,
		ToStage:       targetStage,
		Probability:   probability,
	}
	if err := s.eventPublisher.PublishStageChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish StageChanged event", zap.Error(err))
	}

	return updated, nil
}
