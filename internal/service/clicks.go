package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/zozs/a-wild-button-appears/internal/metrics"
	"github.com/zozs/a-wild-button-appears/internal/model"
	"github.com/zozs/a-wild-button-appears/internal/store"
)

// ErrContentionExhausted is returned when a click could not be recorded
// within the retry bound. It indicates pathological contention or a store
// outage masquerading as conflicts, and is never swallowed.
var ErrContentionExhausted = errors.New("contention exhausted recording click")

// ClickLedger owns the per-event click lists of all tenants. Writes go
// through an optimistic read-reconcile-conditional-write loop: contention is
// a handful of humans clicking one button within a couple of seconds, so
// retry-on-conflict is cheaper and simpler than locking.
type ClickLedger struct {
	store          store.TenantStore
	metrics        *metrics.Metrics
	runnerUpWindow time.Duration
	maxAttempts    int
	logger         *zap.Logger

	// beforeWrite, when set, runs between computing the new state and
	// attempting the conditional write. Tests use it to provoke the
	// retry path deterministically.
	beforeWrite func()
}

// NewClickLedger creates a new click ledger
func NewClickLedger(tenantStore store.TenantStore, m *metrics.Metrics, runnerUpWindow time.Duration, maxAttempts int, logger *zap.Logger) *ClickLedger {
	return &ClickLedger{
		store:          tenantStore,
		metrics:        m,
		runnerUpWindow: runnerUpWindow,
		maxAttempts:    maxAttempts,
		logger:         logger,
	}
}

// RecordClick records that user reacted to the event at the given instant.
// It returns true if this call took the event's retained click list from
// empty to non-empty, as seen by the attempt that won the conditional write.
func (l *ClickLedger) RecordClick(ctx context.Context, tenantID, uuid, user string, timestamp time.Time) (bool, error) {
	start := time.Now()
	defer func() {
		l.metrics.RecordDuration.Observe(time.Since(start).Seconds())
	}()

	click := model.Click{User: user, Timestamp: timestamp.UTC()}

	for attempt := 0; attempt < l.maxAttempts; attempt++ {
		tenant, err := l.store.GetTenant(ctx, tenantID)
		if err != nil {
			return false, err
		}

		var clicks []model.Click
		if event := tenant.Event(uuid); event != nil {
			clicks = event.Clicks
		}
		wasEmpty := len(clicks) == 0

		next := make([]model.Click, 0, len(clicks)+1)
		next = append(next, clicks...)
		next = append(next, click)
		next = reconcile(next, l.runnerUpWindow)

		events := tenant.EventsWithClicks(uuid, next)

		if l.beforeWrite != nil {
			l.beforeWrite()
		}

		err = l.store.CompareAndSwapEvents(ctx, tenantID, tenant.Version, events)
		if errors.Is(err, store.ErrVersionConflict) {
			l.metrics.ClickConflictsTotal.Inc()
			l.logger.Debug("click write lost race, retrying",
				zap.String("tenant_id", tenantID),
				zap.String("uuid", uuid),
				zap.String("user", user),
				zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return false, err
		}

		l.metrics.ClicksTotal.WithLabelValues(tenantID, boolLabel(wasEmpty)).Inc()
		return wasEmpty, nil
	}

	l.metrics.ContentionExhausted.Inc()
	return false, ErrContentionExhausted
}

// GetClicks returns the reconciled, sorted click list for one event. An
// unknown uuid yields an empty list.
func (l *ClickLedger) GetClicks(ctx context.Context, tenantID, uuid string) ([]model.Click, error) {
	tenant, err := l.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	event := tenant.Event(uuid)
	if event == nil {
		return nil, nil
	}

	clicks := make([]model.Click, len(event.Clicks))
	copy(clicks, event.Clicks)
	return clicks, nil
}

// reconcile sorts clicks ascending by timestamp and keeps a click iff its
// user has not been kept yet and its timestamp is within the runner-up
// window of the first kept click. The first click in sorted order anchors
// the window and is always kept.
func reconcile(clicks []model.Click, window time.Duration) []model.Click {
	sort.SliceStable(clicks, func(i, j int) bool {
		return clicks[i].Timestamp.Before(clicks[j].Timestamp)
	})

	deadline := clicks[0].Timestamp.Add(window)
	seen := make(map[string]bool, len(clicks))
	kept := clicks[:0]
	for _, click := range clicks {
		if seen[click.User] || click.Timestamp.After(deadline) {
			continue
		}
		seen[click.User] = true
		kept = append(kept, click)
	}

	return kept
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
