package store

import (
	"context"
	"errors"
	"time"

	"github.com/zozs/a-wild-button-appears/internal/model"
)

// ErrNotFound is returned when a tenant or key is not found
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned when a conditional write loses against a
// concurrent writer. Callers are expected to re-read and retry.
var ErrVersionConflict = errors.New("version conflict")

// TenantStore interface for tenant record operations
type TenantStore interface {
	// Tenant operations
	GetTenant(ctx context.Context, tenantID string) (*model.Tenant, error)
	CreateTenant(ctx context.Context, tenant *model.Tenant) error

	// CompareAndSwapEvents writes a new event list guarded by the version
	// observed at read time. On success the stored version increments by
	// one; a lost race returns ErrVersionConflict.
	CompareAndSwapEvents(ctx context.Context, tenantID string, expectedVersion int64, events []model.Event) error

	// Scheduling operations
	FindTenantsNeedingSchedule(ctx context.Context, now time.Time) ([]*model.Tenant, error)
	SetScheduled(ctx context.Context, tenantID string, scheduled *model.Scheduled) error

	// Settings operations
	SetChannel(ctx context.Context, tenantID, channel string) error
	SetWeekdays(ctx context.Context, tenantID string, mask uint8) error
	SetInterval(ctx context.Context, tenantID string, startSeconds, endSeconds int) error
	SetTimezone(ctx context.Context, tenantID, timezone string) error

	// Health check
	Ping(ctx context.Context) error
	Close()
}

// Cache interface for short-lived dedup/cache entries
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
