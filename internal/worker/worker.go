package worker

import (
	"context"
	"log"
	"time"

	"funnel-service/internal/broker"
	"funnel-service/internal/models"
	"funnel-service/internal/redisclient"
	"funnel-service/internal/service"
	"funnel-service/internal/util"

	"go.uber.org/zap"
)

const reclaimLockKey = "reclaim-worker"

// ReclaimWorker periodically returns inactive private customers to the
// public pool via the normal release path.
type ReclaimWorker struct {
	customers     *service.CustomerService
	redis         *redisclient.Client
	interval      time.Duration
	thresholdDays int
	logger        *zap.Logger
	done          chan struct{}
}

// NewReclaimWorker creates a new reclaim worker
func NewReclaimWorker(
	customers *service.CustomerService,
	redis *redisclient.Client,
	interval time.Duration,
	thresholdDays int,
) *ReclaimWorker {
	return &ReclaimWorker{
		customers:     customers,
		redis:         redis,
		interval:      interval,
		thresholdDays: thresholdDays,
		logger:        util.GetLogger(),
		done:          make(chan struct{}),
	}
}

// Start runs the reclaim loop until the context is cancelled.
func (w *ReclaimWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting reclaim worker",
		zap.Duration("interval", w.interval),
		zap.Int("threshold_days", w.thresholdDays))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce reclaims one batch of inactive customers. The redis lock keeps
// multiple service instances from reclaiming the same batch; losing the
// lock just means another instance is already on it.
func (w *ReclaimWorker) runOnce(ctx context.Context) {
	acquired, err := w.redis.AcquireLock(ctx, reclaimLockKey, w.interval)
	if err != nil {
		w.logger.Warn("Failed to acquire reclaim lock", zap.Error(err))
		return
	}
	if !acquired {
		return
	}
	defer func() {
		if err := w.redis.ReleaseLock(ctx, reclaimLockKey); err != nil {
			w.logger.Warn("Failed to release reclaim lock", zap.Error(err))
		}
	}()

	inactive, err := w.customers.FindInactive(ctx, w.thresholdDays)
	if err != nil {
		w.logger.Error("Failed to find inactive customers", zap.Error(err))
		return
	}

	reclaimed := 0
	for _, customer := range inactive {
		if _, err := w.customers.AutoRelease(ctx, customer.ID); err != nil {
			w.logger.Warn("Failed to reclaim customer",
				zap.Int64("customer_id", customer.ID),
				zap.Error(err))
			continue
		}
		util.ReclaimedCustomersTotal.Inc()
		reclaimed++
	}

	if reclaimed > 0 {
		w.logger.Info("Reclaim pass finished",
			zap.Int("candidates", len(inactive)),
			zap.Int("reclaimed", reclaimed))
	}
}

// Stop stops the worker
func (w *ReclaimWorker) Stop() {
	close(w.done)
}

// CacheWorker consumes funnel events and drops stale slot-usage cache
// entries so readers on other instances see fresh counts.
type CacheWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewCacheWorker creates a new cache invalidation worker
func NewCacheWorker(consumer *broker.Consumer, redis *redisclient.Client) *CacheWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnCustomerClaimed(func(ctx context.Context, event *models.CustomerClaimedEvent) error {
		return redis.InvalidateOwnerSlotUsage(ctx, event.OwnerID)
	})
	eventHandler.OnCustomerReleased(func(ctx context.Context, event *models.CustomerReleasedEvent) error {
		return redis.InvalidateOwnerSlotUsage(ctx, event.PreviousOwner)
	})
	eventHandler.OnCustomerDeleted(func(ctx context.Context, event *models.CustomerDeletedEvent) error {
		if event.PreviousOwner == nil {
			return nil
		}
		return redis.InvalidateOwnerSlotUsage(ctx, *event.PreviousOwner)
	})

	return &CacheWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *CacheWorker) Start(ctx context.Context) error {
	log.Println("Starting cache worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CacheWorker) Stop() error {
	log.Println("Stopping cache worker...")
	return w.consumer.Close()
}
