package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/zozs/a-wild-button-appears/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS tenants (
	tenant_id      TEXT PRIMARY KEY,
	team_name      TEXT NOT NULL DEFAULT '',
	access_token   TEXT NOT NULL DEFAULT '',
	channel        TEXT,
	disabled       BOOLEAN NOT NULL DEFAULT FALSE,
	weekdays       SMALLINT NOT NULL,
	interval_start INTEGER NOT NULL,
	interval_end   INTEGER NOT NULL,
	timezone       TEXT NOT NULL,
	scheduled      JSONB,
	events         JSONB NOT NULL DEFAULT '[]',
	version        BIGINT NOT NULL DEFAULT 1
)`

const tenantColumns = `tenant_id, team_name, access_token, channel, disabled, weekdays,
	interval_start, interval_end, timezone, scheduled, events, version`

// PostgresTenantStore implements TenantStore for PostgreSQL
type PostgresTenantStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresTenantStore creates a new PostgreSQL tenant store
func NewPostgresTenantStore(
	host string,
	port int,
	database, user, password string,
	maxConns, minConns int,
	logger *zap.Logger,
) (*PostgresTenantStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d pool_min_conns=%d",
		host, port, database, user, password, maxConns, minConns,
	)

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(context.Background(), schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &PostgresTenantStore{
		pool:   pool,
		logger: logger,
	}, nil
}

// GetTenant retrieves a tenant record including its event list
func (s *PostgresTenantStore) GetTenant(ctx context.Context, tenantID string) (*model.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE tenant_id = $1`

	tenant, err := scanTenant(s.pool.QueryRow(ctx, query, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	return tenant, nil
}

// CreateTenant creates a new tenant
func (s *PostgresTenantStore) CreateTenant(ctx context.Context, tenant *model.Tenant) error {
	events, err := json.Marshal(tenant.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	scheduled, err := marshalScheduled(tenant.Scheduled)
	if err != nil {
		return err
	}

	var channel *string
	if tenant.Channel != "" {
		channel = &tenant.Channel
	}

	query := `
		INSERT INTO tenants (` + tenantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = s.pool.Exec(ctx, query,
		tenant.ID,
		tenant.TeamName,
		tenant.AccessToken,
		channel,
		tenant.Disabled,
		int16(tenant.Weekdays),
		tenant.IntervalStart,
		tenant.IntervalEnd,
		tenant.Timezone,
		scheduled,
		events,
		tenant.Version,
	)

	return err
}

// CompareAndSwapEvents writes the event list guarded by the observed version.
func (s *PostgresTenantStore) CompareAndSwapEvents(ctx context.Context, tenantID string, expectedVersion int64, events []model.Event) error {
	data, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	query := `
		UPDATE tenants
		SET events = $2, version = version + 1
		WHERE tenant_id = $1 AND version = $3
	`

	result, err := s.pool.Exec(ctx, query, tenantID, data, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to write events: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Distinguish a missing tenant from a lost race.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM tenants WHERE tenant_id = $1)`, tenantID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check tenant existence: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	return nil
}

// FindTenantsNeedingSchedule returns enabled tenants with a channel whose
// scheduled pointer is absent or whose scheduled timestamp has passed.
func (s *PostgresTenantStore) FindTenantsNeedingSchedule(ctx context.Context, now time.Time) ([]*model.Tenant, error) {
	// Scheduled timestamps are stored as RFC 3339 UTC strings inside the
	// JSONB document, so lexicographic comparison is time comparison.
	query := `
		SELECT ` + tenantColumns + `
		FROM tenants
		WHERE NOT disabled
		  AND channel IS NOT NULL AND channel <> ''
		  AND (scheduled IS NULL OR scheduled->>'timestamp' <= $1)
		ORDER BY tenant_id
	`

	rows, err := s.pool.Query(ctx, query, now.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query tenants needing schedule: %w", err)
	}
	defer rows.Close()

	var tenants []*model.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}

	return tenants, rows.Err()
}

// SetScheduled stores (or clears, with nil) the tenant's scheduled pointer
func (s *PostgresTenantStore) SetScheduled(ctx context.Context, tenantID string, scheduled *model.Scheduled) error {
	data, err := marshalScheduled(scheduled)
	if err != nil {
		return err
	}

	return s.updateTenant(ctx, tenantID, `UPDATE tenants SET scheduled = $2 WHERE tenant_id = $1`, data)
}

// SetChannel updates the tenant's announce channel
func (s *PostgresTenantStore) SetChannel(ctx context.Context, tenantID, channel string) error {
	var value *string
	if channel != "" {
		value = &channel
	}
	return s.updateTenant(ctx, tenantID, `UPDATE tenants SET channel = $2 WHERE tenant_id = $1`, value)
}

// SetWeekdays updates the tenant's weekday mask
func (s *PostgresTenantStore) SetWeekdays(ctx context.Context, tenantID string, mask uint8) error {
	return s.updateTenant(ctx, tenantID, `UPDATE tenants SET weekdays = $2 WHERE tenant_id = $1`, int16(mask))
}

// SetInterval updates the tenant's daily announce window
func (s *PostgresTenantStore) SetInterval(ctx context.Context, tenantID string, startSeconds, endSeconds int) error {
	result, err := s.pool.Exec(ctx,
		`UPDATE tenants SET interval_start = $2, interval_end = $3 WHERE tenant_id = $1`,
		tenantID, startSeconds, endSeconds)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTimezone updates the tenant's IANA zone name
func (s *PostgresTenantStore) SetTimezone(ctx context.Context, tenantID, timezone string) error {
	return s.updateTenant(ctx, tenantID, `UPDATE tenants SET timezone = $2 WHERE tenant_id = $1`, timezone)
}

// Ping checks the database connection
func (s *PostgresTenantStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool
func (s *PostgresTenantStore) Close() {
	s.pool.Close()
}

func (s *PostgresTenantStore) updateTenant(ctx context.Context, tenantID, query string, arg interface{}) error {
	result, err := s.pool.Exec(ctx, query, tenantID, arg)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalScheduled(scheduled *model.Scheduled) ([]byte, error) {
	if scheduled == nil {
		return nil, nil
	}
	data, err := json.Marshal(scheduled)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scheduled: %w", err)
	}
	return data, nil
}

func scanTenant(row pgx.Row) (*model.Tenant, error) {
	var tenant model.Tenant
	var channel *string
	var weekdays int16
	var scheduled, events []byte

	err := row.Scan(
		&tenant.ID,
		&tenant.TeamName,
		&tenant.AccessToken,
		&channel,
		&tenant.Disabled,
		&weekdays,
		&tenant.IntervalStart,
		&tenant.IntervalEnd,
		&tenant.Timezone,
		&scheduled,
		&events,
		&tenant.Version,
	)
	if err != nil {
		return nil, err
	}

	if channel != nil {
		tenant.Channel = *channel
	}
	tenant.Weekdays = uint8(weekdays)

	if scheduled != nil {
		tenant.Scheduled = &model.Scheduled{}
		if err := json.Unmarshal(scheduled, tenant.Scheduled); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scheduled: %w", err)
		}
	}

	if err := json.Unmarshal(events, &tenant.Events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal events: %w", err)
	}

	return &tenant, nil
}
