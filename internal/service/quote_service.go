package service

import (
	"context"
	"fmt"
	"strings"

	"funnel-service/internal/apperr"
	"funnel-service/internal/broker"
	"funnel-service/internal/models"
	"funnel-service/internal/pricing"
	"funnel-service/internal/store"
	"funnel-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QuoteService runs the quotation approval workflow and its coupling to
// pricing and order creation.
type QuoteService struct {
	store          *store.Store
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
}

// NewQuoteService creates a new quote service
func NewQuoteService(store *store.Store, eventPublisher *broker.EventPublisher) *QuoteService {
	return &QuoteService{
		store:          store,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// QuoteItemRequest represents one requested quote line
type QuoteItemRequest struct {
	ProductID int64   `json:"product_id" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required,min=1"`
	UnitPrice float64 `json:"unit_price"`
}

// CreateQuoteRequest represents a request to create a quote
type CreateQuoteRequest struct {
	CustomerID    int64              `json:"customer_id" binding:"required"`
	OpportunityID *int64             `json:"opportunity_id"`
	Items         []QuoteItemRequest `json:"items" binding:"required,min=1"`
}

func validateItems(items []QuoteItemRequest) error {
	if len(items) == 0 {
		return apperr.Validationf("quote needs at least one item")
	}
	for i, item := range items {
		if item.Quantity <= 0 {
			return apperr.Validationf("item %d: quantity must be positive", i)
		}
		if item.UnitPrice < 0 {
			return apperr.Validationf("item %d: unit price must not be negative", i)
		}
	}
	return nil
}

// loadCatalog fetches floor prices and tier tables for the products the
// requested lines reference.
func (s *QuoteService) loadCatalog(ctx context.Context, items []QuoteItemRequest) (map[int64]pricing.ProductPricing, error) {
	ids := make([]int64, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(products) != len(ids) {
		found := make(map[int64]bool, len(products))
		for _, p := range products {
			found[p.ID] = true
		}
		for _, id := range ids {
			if !found[id] {
				return nil, apperr.NotFoundf("product %d", id)
			}
		}
	}

	tiers, err := s.store.GetPriceTiersByProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	catalog := make(map[int64]pricing.ProductPricing, len(products))
	for _, p := range products {
		catalog[p.ID] = pricing.ProductPricing{
			FloorPrice: p.FloorPrice,
			Tiers:      tiers[p.ID],
		}
	}
	return catalog, nil
}

func (s *QuoteService) computeQuote(ctx context.Context, items []QuoteItemRequest) (pricing.Result, error) {
	catalog, err := s.loadCatalog(ctx, items)
	if err != nil {
		return pricing.Result{}, err
	}

	lines := make([]pricing.LineInput, len(items))
	for i, item := range items {
		lines[i] = pricing.LineInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	return pricing.ComputeQuote(lines, catalog), nil
}

func newQuoteNumber() string {
	return "Q-" + strings.ToUpper(uuid.New().String()[:8])
}

// CreateQuote prices the requested lines and persists quote plus items
// atomically. A floor-price breach routes the quote straight into the
// manager's approval queue.
func (s *QuoteService) CreateQuote(ctx context.Context, req *CreateQuoteRequest, actor models.Actor) (*models.Quote, []models.QuoteItem, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.CreateQuote")
	defer span.End()

	if err := validateItems(req.Items); err != nil {
		return nil, nil, err
	}

	if _, err := s.store.GetCustomerByID(ctx, req.CustomerID); err != nil {
		return nil, nil, err
	}
	if req.OpportunityID != nil {
		if _, err := s.store.GetOpportunityByID(ctx, *req.OpportunityID); err != nil {
			return nil, nil, err
		}
	}

	computed, err := s.computeQuote(ctx, req.Items)
	if err != nil {
		return nil, nil, err
	}

	status := models.QuoteStatusDraft
	if computed.RequiresApproval {
		status = models.QuoteStatusPendingManager
		util.QuoteEscalationsTotal.Inc()
	}

	quote := &models.Quote{
		QuoteNumber:      newQuoteNumber(),
		CustomerID:       req.CustomerID,
		OpportunityID:    req.OpportunityID,
		TotalAmount:      computed.TotalAmount,
		Status:           status,
		RequiresApproval: computed.RequiresApproval,
		CreatedBy:        actor.ID,
	}

	if err := s.store.CreateQuoteTx(ctx, quote, computed.Items); err != nil {
		return nil, nil, err
	}

	s.logger.Info("Quote created",
		zap.Int64("quote_id", quote.ID),
		zap.String("quote_number", quote.QuoteNumber),
		zap.String("status", quote.Status),
		zap.Bool("requires_approval", quote.RequiresApproval))

	if status == models.QuoteStatusPendingManager {
		s.publishSubmitted(ctx, quote, false)
	}

	return quote, computed.Items, nil
}

// GetQuote retrieves a quote and its items
func (s *QuoteService) GetQuote(ctx context.Context, quoteID int64) (*models.Quote, []models.QuoteItem, error) {
	quote, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.store.GetQuoteItems(ctx, quoteID)
	if err != nil {
		return nil, nil, err
	}

	return quote, items, nil
}

// ReplaceItems swaps a DRAFT quote's lines, recomputing total and
// escalation flag in the same transaction as the item writes.
func (s *QuoteService) ReplaceItems(ctx context.Context, quoteID int64, items []QuoteItemRequest, actor models.Actor) (*models.Quote, []models.QuoteItem, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.ReplaceItems")
	defer span.End()

	if err := validateItems(items); err != nil {
		return nil, nil, err
	}

	quote, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.IsAdmin() && quote.CreatedBy != actor.ID {
		return nil, nil, apperr.Forbiddenf("actor %d may not edit quote %d", actor.ID, quoteID)
	}
	if quote.Status != models.QuoteStatusDraft {
		return nil, nil, apperr.InvalidTransitionf(quote.Status, models.QuoteStatusDraft)
	}

	computed, err := s.computeQuote(ctx, items)
	if err != nil {
		return nil, nil, err
	}

	if err := s.store.ReplaceQuoteItemsTx(ctx, quoteID, computed.Items, computed.TotalAmount, computed.RequiresApproval); err != nil {
		return nil, nil, err
	}

	updated, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("Quote items replaced",
		zap.Int64("quote_id", quoteID),
		zap.Float64("total", updated.TotalAmount),
		zap.Bool("requires_approval", updated.RequiresApproval))

	return updated, computed.Items, nil
}

// Submit moves a DRAFT quote into the manager's approval queue.
func (s *QuoteService) Submit(ctx context.Context, quoteID int64, actor models.Actor) (*models.Quote, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.Submit")
	defer span.End()

	quote, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && quote.CreatedBy != actor.ID {
		return nil, apperr.Forbiddenf("actor %d may not submit quote %d", actor.ID, quoteID)
	}
	if !models.CanTransition(models.QuoteTransitions, quote.Status, models.QuoteStatusPendingManager) {
		return nil, apperr.InvalidTransitionf(quote.Status, models.QuoteStatusPendingManager)
	}

	updated, err := s.store.TransitionQuoteStatusTx(ctx, quoteID,
		quote.Status, models.QuoteStatusPendingManager, nil, nil, nil)
	if err != nil {
		return nil, err
	}

	util.QuoteSubmissionsTotal.Inc()
	s.logger.Info("Quote submitted", zap.Int64("quote_id", quoteID))
	s.publishSubmitted(ctx, updated, false)

	return updated, nil
}

func approvalRoleAllowed(status, role string) bool {
	switch status {
	case models.QuoteStatusPendingManager:
		return role == models.RoleSalesManager || role == models.RoleAdministrator
	case models.QuoteStatusPendingDirector:
		return role == models.RoleFinance || role == models.RoleAdministrator
	default:
		return false
	}
}

// Escalate moves a quote from the manager queue to the director queue,
// leaving an audit entry like any other decision.
func (s *QuoteService) Escalate(ctx context.Context, quoteID int64, actor models.Actor, comment string) (*models.Quote, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.Escalate")
	defer span.End()

	quote, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(models.QuoteTransitions, quote.Status, models.QuoteStatusPendingDirector) {
		return nil, apperr.InvalidTransitionf(quote.Status, models.QuoteStatusPendingDirector)
	}
	if !approvalRoleAllowed(quote.Status, actor.Role) {
		return nil, apperr.Forbiddenf("role %s may not escalate quote %d", actor.Role, quoteID)
	}

	entry := &models.ApprovalLogEntry{
		QuoteID:    quoteID,
		ApproverID: actor.ID,
		Action:     models.ApprovalActionEscalate,
		Comment:    optionalString(comment),
	}

	updated, err := s.store.TransitionQuoteStatusTx(ctx, quoteID,
		quote.Status, models.QuoteStatusPendingDirector, nil, nil, entry)
	if err != nil {
		return nil, err
	}

	util.ApprovalDecisionsTotal.WithLabelValues("escalate").Inc()
	s.logger.Info("Quote escalated to director",
		zap.Int64("quote_id", quoteID),
		zap.Int64("actor_id", actor.ID))
	s.publishSubmitted(ctx, updated, true)

	return updated, nil
}

// Approve records an approval decision. The legality check runs first;
// an illegal transition mutates nothing and writes no audit entry.
func (s *QuoteService) Approve(ctx context.Context, quoteID int64, actor models.Actor, comment string) (*models.Quote, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.Approve")
	defer span.End()

	quote, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(models.QuoteTransitions, quote.Status, models.QuoteStatusApproved) {
		return nil, apperr.InvalidTransitionf(quote.Status, models.QuoteStatusApproved)
	}
	if !approvalRoleAllowed(quote.Status, actor.Role) {
		return nil, apperr.Forbiddenf("role %s may not approve quote %d", actor.Role, quoteID)
	}

	entry := &models.ApprovalLogEntry{
		QuoteID:    quoteID,
		ApproverID: actor.ID,
		Action:     models.ApprovalActionApprove,
		Comment:    optionalString(comment),
	}

	updated, err := s.store.TransitionQuoteStatusTx(ctx, quoteID,
		quote.Status, models.QuoteStatusApproved, &actor.ID, nil, entry)
	if err != nil {
		return nil, err
	}

	util.ApprovalDecisionsTotal.WithLabelValues("approve").Inc()
	s.logger.Info("Quote approved",
		zap.Int64("quote_id", quoteID),
		zap.Int64("approver_id", actor.ID))
	s.publishDecision(ctx, updated, actor.ID, models.ApprovalActionApprove, "")

	return updated, nil
}

// Reject records a rejection decision with a mandatory reason.
func (s *QuoteService) Reject(ctx context.Context, quoteID int64, actor models.Actor, reason string) (*models.Quote, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.Reject")
	defer span.End()

	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return nil, apperr.Validationf("rejection reason must not be empty")
	}

	quote, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(models.QuoteTransitions, quote.Status, models.QuoteStatusRejected) {
		return nil, apperr.InvalidTransitionf(quote.Status, models.QuoteStatusRejected)
	}
	if !approvalRoleAllowed(quote.Status, actor.Role) {
		return nil, apperr.Forbiddenf("role %s may not reject quote %d", actor.Role, quoteID)
	}

	entry := &models.ApprovalLogEntry{
		QuoteID:    quoteID,
		ApproverID: actor.ID,
		Action:     models.ApprovalActionReject,
		Comment:    &trimmed,
	}

	updated, err := s.store.TransitionQuoteStatusTx(ctx, quoteID,
		quote.Status, models.QuoteStatusRejected, &actor.ID, &trimmed, entry)
	if err != nil {
		return nil, err
	}

	util.ApprovalDecisionsTotal.WithLabelValues("reject").Inc()
	s.logger.Info("Quote rejected",
		zap.Int64("quote_id", quoteID),
		zap.Int64("approver_id", actor.ID),
		zap.String("reason", trimmed))
	s.publishDecision(ctx, updated, actor.ID, models.ApprovalActionReject, trimmed)

	return updated, nil
}

// Reopen returns a REJECTED quote to DRAFT for revision. The escalation
// flag is left as-is; the next item replacement recomputes it, and
// nothing reads it while the quote sits in DRAFT.
func (s *QuoteService) Reopen(ctx context.Context, quoteID int64, actor models.Actor) (*models.Quote, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.Reopen")
	defer span.End()

	quote, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && quote.CreatedBy != actor.ID {
		return nil, apperr.Forbiddenf("actor %d may not reopen quote %d", actor.ID, quoteID)
	}
	if !models.CanTransition(models.QuoteTransitions, quote.Status, models.QuoteStatusDraft) {
		return nil, apperr.InvalidTransitionf(quote.Status, models.QuoteStatusDraft)
	}

	updated, err := s.store.TransitionQuoteStatusTx(ctx, quoteID,
		quote.Status, models.QuoteStatusDraft, nil, nil, nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Quote reopened", zap.Int64("quote_id", quoteID))
	return updated, nil
}

// ConvertToOrder turns an APPROVED quote into an order and marks the
// quote SENT; both effects share one transaction.
func (s *QuoteService) ConvertToOrder(ctx context.Context, quoteID int64, actor models.Actor) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.ConvertToOrder")
	defer span.End()

	quote, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(models.QuoteTransitions, quote.Status, models.QuoteStatusSent) {
		return nil, apperr.InvalidTransitionf(quote.Status, models.QuoteStatusSent)
	}

	order := &models.Order{
		OrderNumber:   "SO-" + strings.ToUpper(uuid.New().String()[:8]),
		QuoteID:       quote.ID,
		CustomerID:    quote.CustomerID,
		OpportunityID: quote.OpportunityID,
		TotalAmount:   quote.TotalAmount,
		CreatedBy:     actor.ID,
	}

	if err := s.store.ConvertQuoteToOrderTx(ctx, quoteID, order); err != nil {
		return nil, err
	}

	util.QuotesConvertedTotal.Inc()
	s.logger.Info("Quote converted to order",
		zap.Int64("quote_id", quoteID),
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber))

	event := &models.QuoteConvertedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeQuoteConverted),
		QuoteID:     quoteID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  quote.CustomerID,
		TotalAmount: quote.TotalAmount,
	}
	if err := s.eventPublisher.PublishQuoteConverted(ctx, event); err != nil {
		s.logger.Error("Failed to publish QuoteConverted event", zap.Error(err))
	}

	return order, nil
}

// Copy duplicates a quote's linkage and items into a brand-new DRAFT
// quote with a fresh number and an empty approval history.
func (s *QuoteService) Copy(ctx context.Context, quoteID int64, actor models.Actor) (*models.Quote, []models.QuoteItem, error) {
	ctx, span := util.StartSpan(ctx, "QuoteService.Copy")
	defer span.End()

	source, err := s.store.GetQuoteByID(ctx, quoteID)
	if err != nil {
		return nil, nil, err
	}
	sourceItems, err := s.store.GetQuoteItems(ctx, quoteID)
	if err != nil {
		return nil, nil, err
	}

	items := make([]models.QuoteItem, len(sourceItems))
	for i, item := range sourceItems {
		items[i] = models.QuoteItem{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
			ManualPrice: item.ManualPrice,
		}
	}

	copied := &models.Quote{
		QuoteNumber:      newQuoteNumber(),
		CustomerID:       source.CustomerID,
		OpportunityID:    source.OpportunityID,
		TotalAmount:      source.TotalAmount,
		Status:           models.QuoteStatusDraft,
		RequiresApproval: source.RequiresApproval,
		CreatedBy:        actor.ID,
	}

	if err := s.store.CreateQuoteTx(ctx, copied, items); err != nil {
		return nil, nil, err
	}

	s.logger.Info("Quote copied",
		zap.Int64("source_quote_id", quoteID),
		zap.Int64("quote_id", copied.ID))

	return copied, items, nil
}

// ApprovalLog returns the audit trail for a quote.
func (s *QuoteService) ApprovalLog(ctx context.Context, quoteID int64) ([]models.ApprovalLogEntry, error) {
	if _, err := s.store.GetQuoteByID(ctx, quoteID); err != nil {
		return nil, err
	}
	return s.store.GetApprovalLog(ctx, quoteID)
}

// LookupPrice returns the tier price for a product at a quantity.
func (s *QuoteService) LookupPrice(ctx context.Context, productID int64, quantity int) (float64, error) {
	if quantity <= 0 {
		return 0, apperr.Validationf("quantity must be positive, got %d", quantity)
	}

	if _, err := s.store.GetProductByID(ctx, productID); err != nil {
		return 0, err
	}

	tiers, err := s.store.GetPriceTiers(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("failed to load price tiers: %w", err)
	}

	return pricing.TierPrice(tiers, quantity), nil
}

func (s *QuoteService) publishSubmitted(ctx context.Context, quote *models.Quote, escalated bool) {
	event := &models.QuoteSubmittedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeQuoteSubmitted),
		QuoteID:     quote.ID,
		QuoteNumber: quote.QuoteNumber,
		TotalAmount: quote.TotalAmount,
		Escalated:   escalated,
	}
	if err := s.eventPublisher.PublishQuoteSubmitted(ctx, event); err != nil {
		s.logger.Error("Failed to publish QuoteSubmitted event", zap.Error(err))
	}
}

func (s *QuoteService) publishDecision(ctx context.Context, quote *models.Quote, approverID int64, action, reason string) {
	eventType := models.EventTypeQuoteApproved
	if action == models.ApprovalActionReject {
		eventType = models.EventTypeQuoteRejected
	}

	event := &models.QuoteDecisionEvent{
		BaseEvent:  newBaseEvent(eventType),
		QuoteID:    quote.ID,
		ApproverID: approverID,
		Action:     action,
		Reason:     reason,
	}
	if err := s.eventPublisher.PublishQuoteDecision(ctx, event); err != nil {
		s.logger.Error("Failed to publish quote decision event", zap.Error(err))
	}
}

func optionalString(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
