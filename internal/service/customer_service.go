package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"funnel-service/internal/apperr"
	"funnel-service/internal/broker"
	"funnel-service/internal/models"
	"funnel-service/internal/redisclient"
	"funnel-service/internal/store"
	"funnel-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	slotUsageTTL  = 5 * time.Minute
	batchClaimTTL = 24 * time.Hour
)

// CustomerService owns the public/private pool state of customers and
// the per-owner capacity ceiling.
type CustomerService struct {
	store          *store.Store
	redis          *redisclient.Client
	eventPublisher *broker.EventPublisher
	logger         *zap.Logger
	claimLimit     int
}

// NewCustomerService creates a new customer service
func NewCustomerService(
	store *store.Store,
	redis *redisclient.Client,
	eventPublisher *broker.EventPublisher,
	claimLimit int,
) *CustomerService {
	return &CustomerService{
		store:          store,
		redis:          redis,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
		claimLimit:     claimLimit,
	}
}

// ClaimLimit returns the configured per-owner capacity ceiling.
func (s *CustomerService) ClaimLimit() int {
	return s.claimLimit
}

// CreateCustomerRequest represents a request to create a customer
type CreateCustomerRequest struct {
	CompanyName     string `json:"company_name" binding:"required"`
	Industry        string `json:"industry"`
	Region          string `json:"region"`
	LeadSource      string `json:"lead_source"`
	AssignToCreator bool   `json:"assign_to_creator"`
}

// CreateCustomer creates a customer, optionally pre-assigned to the
// creating actor. Pre-assignment goes through the same capacity-checked
// claim path as a regular claim.
func (s *CustomerService) CreateCustomer(ctx context.Context, req *CreateCustomerRequest, actor models.Actor) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.CreateCustomer")
	defer span.End()

	if strings.TrimSpace(req.CompanyName) == "" {
		return nil, apperr.Validationf("company_name must not be empty")
	}

	customer := &models.Customer{
		CompanyName: strings.TrimSpace(req.CompanyName),
		Industry:    req.Industry,
		Region:      req.Region,
		Status:      models.CustomerStatusPublicPool,
		LeadSource:  req.LeadSource,
	}

	if err := s.store.CreateCustomer(ctx, customer); err != nil {
		return nil, err
	}

	s.logger.Info("Customer created",
		zap.Int64("customer_id", customer.ID),
		zap.String("company", customer.CompanyName))

	if !req.AssignToCreator {
		return customer, nil
	}

	claimed, err := s.Claim(ctx, customer.ID, actor)
	if err != nil {
		s.logger.Warn("Customer created but initial claim failed",
			zap.Int64("customer_id", customer.ID),
			zap.Error(err))
		return customer, nil
	}
	return claimed, nil
}

// GetCustomer retrieves a customer by ID
func (s *CustomerService) GetCustomer(ctx context.Context, customerID int64) (*models.Customer, error) {
	return s.store.GetCustomerByID(ctx, customerID)
}

// Claim moves a public-pool customer into the actor's private pool. The
// capacity check and the pool flip share one transaction in the store.
func (s *CustomerService) Claim(ctx context.Context, customerID int64, actor models.Actor) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.Claim")
	defer span.End()

	util.ClaimsAttemptedTotal.Inc()
	start := time.Now()
	defer func() {
		util.ClaimLatency.Observe(time.Since(start).Seconds())
	}()

	customer, err := s.store.ClaimCustomerTx(ctx, customerID, actor.ID, s.claimLimit)
	if err != nil {
		util.ClaimsFailedTotal.WithLabelValues(claimFailureReason(err)).Inc()
		return nil, err
	}

	util.ClaimsSucceededTotal.Inc()
	s.logger.Info("Customer claimed",
		zap.Int64("customer_id", customerID),
		zap.Int64("owner_id", actor.ID))

	s.invalidateSlotUsage(ctx, actor.ID)

	event := &models.CustomerClaimedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeCustomerClaimed),
		CustomerID: customerID,
		OwnerID:    actor.ID,
	}
	if err := s.eventPublisher.PublishCustomerClaimed(ctx, event); err != nil {
		s.logger.Error("Failed to publish CustomerClaimed event", zap.Error(err))
	}

	return customer, nil
}

// BatchClaimResult itemizes the outcome of a batch claim.
type BatchClaimResult struct {
	Succeeded []int64            `json:"succeeded"`
	Failed    []BatchClaimFailed `json:"failed"`
}

// BatchClaimFailed records one failed id and why it failed.
type BatchClaimFailed struct {
	CustomerID int64  `json:"customer_id"`
	Reason     string `json:"reason"`
}

// partitionClaims runs one claim attempt per id in order. Once a claim
// fails with the capacity error the remaining ids are reported as
// failed without being attempted; other failures (conflict, not found)
// only affect their own id.
func partitionClaims(customerIDs []int64, claim func(customerID int64) error) *BatchClaimResult {
	result := &BatchClaimResult{
		Succeeded: make([]int64, 0, len(customerIDs)),
		Failed:    make([]BatchClaimFailed, 0),
	}

	capacityGone := false
	for _, id := range customerIDs {
		if capacityGone {
			result.Failed = append(result.Failed, BatchClaimFailed{
				CustomerID: id,
				Reason:     apperr.ErrCapacityExceeded.Error(),
			})
			continue
		}

		if err := claim(id); err != nil {
			if errors.Is(err, apperr.ErrCapacityExceeded) {
				capacityGone = true
			}
			result.Failed = append(result.Failed, BatchClaimFailed{
				CustomerID: id,
				Reason:     err.Error(),
			})
			continue
		}

		result.Succeeded = append(result.Succeeded, id)
	}

	return result
}

// BatchClaim claims a list of customers as a sequence of independent
// atomic claims. An Idempotency-Key supplied by the caller rejects
// replays of the whole batch, since a retried batch would otherwise
// re-report already-claimed ids as conflicts.
func (s *CustomerService) BatchClaim(ctx context.Context, customerIDs []int64, actor models.Actor, idempotencyKey string) (*BatchClaimResult, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.BatchClaim")
	defer span.End()

	if len(customerIDs) == 0 {
		return nil, apperr.Validationf("customer_ids must not be empty")
	}

	if idempotencyKey != "" {
		seen, err := s.redis.CheckIdempotencyKey(ctx, idempotencyKey)
		if err != nil {
			s.logger.Warn("Idempotency check failed, proceeding without it", zap.Error(err))
		} else if seen {
			return nil, fmt.Errorf("batch claim %q already processed: %w",
				idempotencyKey, apperr.ErrConflict)
		}
	}

	result := partitionClaims(customerIDs, func(id int64) error {
		_, err := s.Claim(ctx, id, actor)
		return err
	})

	if idempotencyKey != "" {
		if err := s.redis.SetIdempotencyKey(ctx, idempotencyKey, "1", batchClaimTTL); err != nil {
			s.logger.Warn("Failed to record idempotency key", zap.Error(err))
		}
	}

	s.logger.Info("Batch claim finished",
		zap.Int64("owner_id", actor.ID),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)))

	return result, nil
}

// Release returns a private customer to the public pool. Only the
// current owner or an administrator may release.
func (s *CustomerService) Release(ctx context.Context, customerID int64, actor models.Actor) (*models.Customer, error) {
	return s.release(ctx, customerID, actor, false)
}

// AutoRelease is the reclaim path used by the inactivity worker; it runs
// with system authority and tags the event accordingly.
func (s *CustomerService) AutoRelease(ctx context.Context, customerID int64) (*models.Customer, error) {
	system := models.Actor{Role: models.RoleAdministrator}
	return s.release(ctx, customerID, system, true)
}

// canActOnCustomer reports whether the actor may release or delete a
// customer with the given owner: administrators always, everyone else
// only when they are the current owner.
func canActOnCustomer(actor models.Actor, ownerID *int64) bool {
	if actor.IsAdmin() {
		return true
	}
	return ownerID != nil && *ownerID == actor.ID
}

func (s *CustomerService) release(ctx context.Context, customerID int64, actor models.Actor, auto bool) (*models.Customer, error) {
	ctx, span := util.StartSpan(ctx, "CustomerService.Release")
	defer span.End()

	customer, err := s.store.GetCustomerByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if !canActOnCustomer(actor, customer.OwnerID) {
		return nil, apperr.Forbiddenf("actor %d does not own customer %d", actor.ID, customerID)
	}
	if customer.OwnerID == nil {
		return nil, apperr.Validationf("customer %d is already in the public pool", customerID)
	}
	previousOwner := *customer.OwnerID

	// The store asserts the owner we just authorized against, so a claim
	// landing between the read and the update loses this race cleanly.
	released, err := s.store.ReleaseCustomer(ctx, customerID, previousOwner)
	if err != nil {
		return nil, err
	}

	trigger := "manual"
	if auto {
		trigger = "auto"
	}
	util.ReleasesTotal.WithLabelValues(trigger).Inc()
	s.logger.Info("Customer released",
		zap.Int64("customer_id", customerID),
		zap.Int64("previous_owner", previousOwner),
		zap.Bool("auto", auto))

	s.invalidateSlotUsage(ctx, previousOwner)

	event := &models.CustomerReleasedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeCustomerReleased),
		CustomerID:    customerID,
		PreviousOwner: previousOwner,
		AutoReclaimed: auto,
	}
	if err := s.eventPublisher.PublishCustomerReleased(ctx, event); err != nil {
		s.logger.Error("Failed to publish CustomerReleased event", zap.Error(err))
	}

	return released, nil
}

// Delete removes a customer. Without force it is refused when dependent
// opportunities, quotes or orders exist; with force the whole dependent
// tree is deleted in one transaction.
func (s *CustomerService) Delete(ctx context.Context, customerID int64, actor models.Actor, force bool) error {
	ctx, span := util.StartSpan(ctx, "CustomerService.Delete")
	defer span.End()

	customer, err := s.store.GetCustomerByID(ctx, customerID)
	if err != nil {
		return err
	}

	if !canActOnCustomer(actor, customer.OwnerID) {
		return apperr.Forbiddenf("actor %d may not delete customer %d", actor.ID, customerID)
	}

	if err := s.store.DeleteCustomerTx(ctx, customerID, customer.OwnerID, force); err != nil {
		return err
	}

	util.CustomersDeletedTotal.WithLabelValues(boolLabel(force)).Inc()
	s.logger.Info("Customer deleted",
		zap.Int64("customer_id", customerID),
		zap.Bool("cascaded", force))

	if customer.OwnerID != nil {
		s.invalidateSlotUsage(ctx, *customer.OwnerID)
	}

	event := &models.CustomerDeletedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeCustomerDeleted),
		CustomerID:    customerID,
		PreviousOwner: customer.OwnerID,
		Cascaded:      force,
	}
	if err := s.eventPublisher.PublishCustomerDeleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish CustomerDeleted event", zap.Error(err))
	}

	return nil
}

// FindInactive returns private customers that have gone quiet for longer
// than the threshold; feeds the reclaim worker.
func (s *CustomerService) FindInactive(ctx context.Context, thresholdDays int) ([]models.Customer, error) {
	if thresholdDays <= 0 {
		return nil, apperr.Validationf("threshold_days must be positive, got %d", thresholdDays)
	}
	return s.store.FindInactiveCustomers(ctx, thresholdDays)
}

// TouchContact records that the owner contacted the customer, resetting
// the inactivity clock.
func (s *CustomerService) TouchContact(ctx context.Context, customerID int64) error {
	return s.store.TouchCustomerContact(ctx, customerID)
}

// SlotUsage returns the owner's current private-customer count,
// redis-first with a database fallback.
func (s *CustomerService) SlotUsage(ctx context.Context, ownerID int64) (int, error) {
	count, ok, err := s.redis.GetOwnerSlotUsage(ctx, ownerID)
	if err != nil {
		s.logger.Warn("Slot usage cache read failed, falling back to DB",
			zap.Int64("owner_id", ownerID), zap.Error(err))
	} else if ok {
		return count, nil
	}

	count, err = s.store.CountPrivateCustomers(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	if err := s.redis.SetOwnerSlotUsage(ctx, ownerID, count, slotUsageTTL); err != nil {
		s.logger.Warn("Failed to cache slot usage", zap.Error(err))
	}

	return count, nil
}

func (s *CustomerService) invalidateSlotUsage(ctx context.Context, ownerID int64) {
	if err := s.redis.InvalidateOwnerSlotUsage(ctx, ownerID); err != nil {
		s.logger.Warn("Failed to invalidate slot usage cache",
			zap.Int64("owner_id", ownerID), zap.Error(err))
	}
}

func claimFailureReason(err error) string {
	switch {
	case errors.Is(err, apperr.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
