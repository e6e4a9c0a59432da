package store

import (
	"context"
	"sync"
	"time"

	"github.com/zozs/a-wild-button-appears/internal/model"
)

// InMemoryTenantStore implements TenantStore using an in-memory map. It has
// the same conditional-write semantics as the PostgreSQL store and exists for
// tests and local development.
type InMemoryTenantStore struct {
	tenants map[string]*model.Tenant
	mu      sync.RWMutex
}

// NewInMemoryTenantStore creates a new in-memory tenant store
func NewInMemoryTenantStore() *InMemoryTenantStore {
	return &InMemoryTenantStore{
		tenants: make(map[string]*model.Tenant),
	}
}

// GetTenant retrieves a tenant record
func (s *InMemoryTenantStore) GetTenant(ctx context.Context, tenantID string) (*model.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenant, exists := s.tenants[tenantID]
	if !exists {
		return nil, ErrNotFound
	}

	return tenant.Clone(), nil
}

// CreateTenant creates a new tenant
func (s *InMemoryTenantStore) CreateTenant(ctx context.Context, tenant *model.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tenants[tenant.ID] = tenant.Clone()
	return nil
}

// CompareAndSwapEvents writes the event list guarded by the observed version.
func (s *InMemoryTenantStore) CompareAndSwapEvents(ctx context.Context, tenantID string, expectedVersion int64, events []model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenant, exists := s.tenants[tenantID]
	if !exists {
		return ErrNotFound
	}

	if tenant.Version != expectedVersion {
		return ErrVersionConflict
	}

	clone := tenant.Clone()
	clone.Events = make([]model.Event, len(events))
	for i, ev := range events {
		clicks := make([]model.Click, len(ev.Clicks))
		copy(clicks, ev.Clicks)
		clone.Events[i] = model.Event{UUID: ev.UUID, Clicks: clicks}
	}
	clone.Version++
	s.tenants[tenantID] = clone

	return nil
}

// FindTenantsNeedingSchedule returns enabled tenants with a channel whose
// scheduled pointer is absent or whose scheduled timestamp has passed.
func (s *InMemoryTenantStore) FindTenantsNeedingSchedule(ctx context.Context, now time.Time) ([]*model.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.Tenant
	for _, tenant := range s.tenants {
		if tenant.Disabled || tenant.Channel == "" {
			continue
		}
		if tenant.Scheduled == nil || !tenant.Scheduled.Timestamp.After(now) {
			result = append(result, tenant.Clone())
		}
	}

	return result, nil
}

// SetScheduled stores (or clears, with nil) the tenant's scheduled pointer
func (s *InMemoryTenantStore) SetScheduled(ctx context.Context, tenantID string, scheduled *model.Scheduled) error {
	return s.update(tenantID, func(tenant *model.Tenant) {
		if scheduled == nil {
			tenant.Scheduled = nil
			return
		}
		value := *scheduled
		tenant.Scheduled = &value
	})
}

// SetChannel updates the tenant's announce channel
func (s *InMemoryTenantStore) SetChannel(ctx context.Context, tenantID, channel string) error {
	return s.update(tenantID, func(tenant *model.Tenant) { tenant.Channel = channel })
}

// SetWeekdays updates the tenant's weekday mask
func (s *InMemoryTenantStore) SetWeekdays(ctx context.Context, tenantID string, mask uint8) error {
	return s.update(tenantID, func(tenant *model.Tenant) { tenant.Weekdays = mask })
}

// SetInterval updates the tenant's daily announce window
func (s *InMemoryTenantStore) SetInterval(ctx context.Context, tenantID string, startSeconds, endSeconds int) error {
	return s.update(tenantID, func(tenant *model.Tenant) {
		tenant.IntervalStart = startSeconds
		tenant.IntervalEnd = endSeconds
	})
}

// SetTimezone updates the tenant's IANA zone name
func (s *InMemoryTenantStore) SetTimezone(ctx context.Context, tenantID, timezone string) error {
	return s.update(tenantID, func(tenant *model.Tenant) { tenant.Timezone = timezone })
}

// Ping always succeeds
func (s *InMemoryTenantStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *InMemoryTenantStore) Close() {}

func (s *InMemoryTenantStore) update(tenantID string, apply func(*model.Tenant)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenant, exists := s.tenants[tenantID]
	if !exists {
		return ErrNotFound
	}

	apply(tenant)
	return nil
}
