package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zozs/a-wild-button-appears/internal/model"
	"github.com/zozs/a-wild-button-appears/internal/store"
)

// Rescheduler clears a tenant's pending announce so the next driver tick
// recomputes it. Implemented by ScheduleDriver.
type Rescheduler interface {
	Reschedule(ctx context.Context, tenantID string) error
}

// TenantService handles tenant installation and settings changes. Every
// settings change that affects announce timing lazily clears the pending
// schedule instead of recomputing it inline.
type TenantService struct {
	store       store.TenantStore
	rescheduler Rescheduler
	logger      *zap.Logger
}

// NewTenantService creates a new tenant service
func NewTenantService(tenantStore store.TenantStore, rescheduler Rescheduler, logger *zap.Logger) *TenantService {
	return &TenantService{
		store:       tenantStore,
		rescheduler: rescheduler,
		logger:      logger,
	}
}

// Install creates a tenant record with default settings. The channel starts
// unset, so the schedule driver ignores the tenant until one is chosen.
func (s *TenantService) Install(ctx context.Context, tenantID, teamName, accessToken string) (*model.Tenant, error) {
	tenant := &model.Tenant{
		ID:            tenantID,
		TeamName:      teamName,
		AccessToken:   accessToken,
		Channel:       "",
		Weekdays:      model.WeekdaysMonFri,
		IntervalStart: 9 * 3600,
		IntervalEnd:   16 * 3600,
		Timezone:      "Europe/Copenhagen",
		Version:       1,
	}

	if err := s.store.CreateTenant(ctx, tenant); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	s.logger.Info("installed tenant",
		zap.String("tenant_id", tenantID),
		zap.String("team_name", teamName))

	return tenant, nil
}

// SetChannel updates the announce channel and clears the pending schedule.
func (s *TenantService) SetChannel(ctx context.Context, tenantID, channel string) error {
	if err := s.store.SetChannel(ctx, tenantID, channel); err != nil {
		return fmt.Errorf("failed to set channel: %w", err)
	}
	return s.reschedule(ctx, tenantID)
}

// SetWeekdays updates the weekday mask and clears the pending schedule.
func (s *TenantService) SetWeekdays(ctx context.Context, tenantID string, weekdays []int) error {
	mask := model.MaskFromWeekdays(weekdays)
	if err := s.store.SetWeekdays(ctx, tenantID, mask); err != nil {
		return fmt.Errorf("failed to set weekdays: %w", err)
	}
	return s.reschedule(ctx, tenantID)
}

// SetStartTime updates the window start and clears the pending schedule.
func (s *TenantService) SetStartTime(ctx context.Context, tenantID string, seconds int) error {
	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to get tenant: %w", err)
	}
	if err := s.store.SetInterval(ctx, tenantID, seconds, tenant.IntervalEnd); err != nil {
		return fmt.Errorf("failed to set interval start: %w", err)
	}
	return s.reschedule(ctx, tenantID)
}

// SetEndTime updates the window end and clears the pending schedule.
func (s *TenantService) SetEndTime(ctx context.Context, tenantID string, seconds int) error {
	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to get tenant: %w", err)
	}
	if err := s.store.SetInterval(ctx, tenantID, tenant.IntervalStart, seconds); err != nil {
		return fmt.Errorf("failed to set interval end: %w", err)
	}
	return s.reschedule(ctx, tenantID)
}

// SetTimezone updates the zone and clears the pending schedule.
func (s *TenantService) SetTimezone(ctx context.Context, tenantID, timezone string) error {
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	if err := s.store.SetTimezone(ctx, tenantID, timezone); err != nil {
		return fmt.Errorf("failed to set timezone: %w", err)
	}
	return s.reschedule(ctx, tenantID)
}

func (s *TenantService) reschedule(ctx context.Context, tenantID string) error {
	if err := s.rescheduler.Reschedule(ctx, tenantID); err != nil {
		return fmt.Errorf("failed to reschedule tenant %s: %w", tenantID, err)
	}
	return nil
}
