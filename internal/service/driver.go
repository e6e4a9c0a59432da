package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zozs/a-wild-button-appears/internal/delivery"
	"github.com/zozs/a-wild-button-appears/internal/metrics"
	"github.com/zozs/a-wild-button-appears/internal/model"
	"github.com/zozs/a-wild-button-appears/internal/store"
)

// ScheduleDriver periodically finds tenants without a pending announce,
// computes the next one, schedules remote delivery, and persists the
// scheduled pointer.
type ScheduleDriver struct {
	store     store.TenantStore
	delivery  delivery.Delivery
	scheduler *AnnounceScheduler
	metrics   *metrics.Metrics
	interval  time.Duration
	fanout    int
	logger    *zap.Logger
}

// NewScheduleDriver creates a new schedule driver
func NewScheduleDriver(
	tenantStore store.TenantStore,
	d delivery.Delivery,
	scheduler *AnnounceScheduler,
	m *metrics.Metrics,
	interval time.Duration,
	fanout int,
	logger *zap.Logger,
) *ScheduleDriver {
	if fanout <= 0 {
		fanout = 8
	}
	return &ScheduleDriver{
		store:     tenantStore,
		delivery:  d,
		scheduler: scheduler,
		metrics:   m,
		interval:  interval,
		fanout:    fanout,
		logger:    logger,
	}
}

// Run ticks on the configured cadence until the context is cancelled.
func (d *ScheduleDriver) Run(ctx context.Context) {
	d.logger.Info("schedule driver started", zap.Duration("interval", d.interval))

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("schedule driver stopped")
			return
		case <-ticker.C:
			if err := d.RunTick(ctx, time.Now()); err != nil {
				d.logger.Error("schedule tick failed", zap.Error(err))
			}
		}
	}
}

// RunTick processes every tenant whose scheduled pointer is absent or has
// passed. Tenants are handled concurrently and independently: a tenant with
// no valid schedule window is logged and skipped, while other failures
// surface through the returned error after the remaining tenants have run.
func (d *ScheduleDriver) RunTick(ctx context.Context, now time.Time) error {
	d.metrics.TicksTotal.Inc()

	tenants, err := d.store.FindTenantsNeedingSchedule(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to find tenants needing schedule: %w", err)
	}

	if len(tenants) == 0 {
		return nil
	}

	d.logger.Debug("scheduling announces", zap.Int("tenants", len(tenants)))

	g := new(errgroup.Group)
	g.SetLimit(d.fanout)
	for _, tenant := range tenants {
		tenant := tenant
		g.Go(func() error {
			return d.scheduleTenant(ctx, tenant, now)
		})
	}

	return g.Wait()
}

// Reschedule cancels the tenant's pending announce, if any, and clears the
// scheduled pointer. The next tick recomputes and re-schedules, so no lock
// is needed between a settings change and the periodic tick.
func (d *ScheduleDriver) Reschedule(ctx context.Context, tenantID string) error {
	tenant, err := d.store.GetTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to get tenant: %w", err)
	}

	if tenant.Scheduled != nil && tenant.Scheduled.MessageID != "" {
		err := d.delivery.CancelScheduled(ctx, tenant, tenant.Scheduled.MessageID)
		if err != nil && !errors.Is(err, delivery.ErrScheduledMessageNotFound) {
			return fmt.Errorf("failed to cancel scheduled message: %w", err)
		}
		if errors.Is(err, delivery.ErrScheduledMessageNotFound) {
			// The remote side may already have fired or been
			// cleaned up.
			d.logger.Debug("scheduled message already gone",
				zap.String("tenant_id", tenantID),
				zap.String("message_id", tenant.Scheduled.MessageID))
		}
	}

	if err := d.store.SetScheduled(ctx, tenantID, nil); err != nil {
		return fmt.Errorf("failed to clear scheduled pointer: %w", err)
	}

	d.logger.Info("cleared schedule for tenant", zap.String("tenant_id", tenantID))
	return nil
}

func (d *ScheduleDriver) scheduleTenant(ctx context.Context, tenant *model.Tenant, now time.Time) error {
	next, err := d.scheduler.NextAnnounce(tenant, now)
	if errors.Is(err, ErrNoValidScheduleWindow) {
		d.metrics.ScheduleFailuresTotal.WithLabelValues(tenant.ID, "no_window").Inc()
		d.logger.Error("tenant has no valid schedule window, skipping",
			zap.String("tenant_id", tenant.ID),
			zap.Uint8("weekdays", tenant.Weekdays))
		return nil
	}
	if err != nil {
		d.metrics.ScheduleFailuresTotal.WithLabelValues(tenant.ID, "compute").Inc()
		return err
	}

	uuid := model.TimestampUUID(next)
	messageID, err := d.delivery.ScheduleMessage(ctx, tenant, next, delivery.AnnounceMessage(uuid))
	if err != nil {
		d.metrics.ScheduleFailuresTotal.WithLabelValues(tenant.ID, "delivery").Inc()
		return fmt.Errorf("failed to schedule message for tenant %s: %w", tenant.ID, err)
	}

	scheduled := &model.Scheduled{
		Timestamp: next,
		MessageID: messageID,
		Channel:   tenant.Channel,
	}
	if err := d.store.SetScheduled(ctx, tenant.ID, scheduled); err != nil {
		d.metrics.ScheduleFailuresTotal.WithLabelValues(tenant.ID, "store").Inc()
		return fmt.Errorf("failed to persist schedule for tenant %s: %w", tenant.ID, err)
	}

	d.metrics.SchedulesTotal.WithLabelValues(tenant.ID).Inc()
	d.logger.Info("scheduled announce",
		zap.String("tenant_id", tenant.ID),
		zap.Time("at", next),
		zap.String("message_id", messageID))

	return nil
}
