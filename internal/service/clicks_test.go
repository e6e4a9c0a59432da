package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zozs/a-wild-button-appears/internal/metrics"
	"github.com/zozs/a-wild-button-appears/internal/model"
	"github.com/zozs/a-wild-button-appears/internal/store"
)

const testEventUUID = "2020-01-02T13:37:00.000Z"

func newTestLedger(t *testing.T) (*ClickLedger, *store.InMemoryTenantStore) {
	t.Helper()

	st := store.NewInMemoryTenantStore()
	err := st.CreateTenant(context.Background(), &model.Tenant{
		ID:      "T1",
		Version: 1,
	})
	require.NoError(t, err)

	m := metrics.NewMetrics(prometheus.NewRegistry())
	ledger := NewClickLedger(st, m, 2*time.Second, 100, zap.NewNop())
	return ledger, st
}

func TestRecordClickFirst(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	base := time.Date(2020, 1, 2, 13, 37, 1, 0, time.UTC)

	first, err := ledger.RecordClick(ctx, "T1", testEventUUID, "U1", base)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = ledger.RecordClick(ctx, "T1", testEventUUID, "U2", base.Add(500*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, first)

	clicks, err := ledger.GetClicks(ctx, "T1", testEventUUID)
	require.NoError(t, err)
	require.Len(t, clicks, 2)
	assert.Equal(t, "U1", clicks[0].User)
	assert.Equal(t, "U2", clicks[1].User)
}

func TestRecordClickDuplicateUserKeepsEarliest(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	base := time.Date(2020, 1, 2, 13, 37, 1, 0, time.UTC)

	_, err := ledger.RecordClick(ctx, "T1", testEventUUID, "U1", base)
	require.NoError(t, err)
	_, err = ledger.RecordClick(ctx, "T1", testEventUUID, "U1", base.Add(300*time.Millisecond))
	require.NoError(t, err)

	clicks, err := ledger.GetClicks(ctx, "T1", testEventUUID)
	require.NoError(t, err)
	require.Len(t, clicks, 1)
	assert.Equal(t, "U1", clicks[0].User)
	assert.True(t, clicks[0].Timestamp.Equal(base))
}

func TestRecordClickWindowBoundary(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	base := time.Date(2020, 1, 2, 13, 37, 1, 0, time.UTC)

	_, err := ledger.RecordClick(ctx, "T1", testEventUUID, "U1", base)
	require.NoError(t, err)

	// Exactly at the edge of the runner-up window: retained.
	_, err = ledger.RecordClick(ctx, "T1", testEventUUID, "U2", base.Add(2000*time.Millisecond))
	require.NoError(t, err)

	// One millisecond past it: dropped.
	_, err = ledger.RecordClick(ctx, "T1", testEventUUID, "U3", base.Add(2001*time.Millisecond))
	require.NoError(t, err)

	clicks, err := ledger.GetClicks(ctx, "T1", testEventUUID)
	require.NoError(t, err)
	require.Len(t, clicks, 2)
	assert.Equal(t, "U1", clicks[0].User)
	assert.Equal(t, "U2", clicks[1].User)
}

func TestRecordClickEarlierClickDisplacesWindow(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	base := time.Date(2020, 1, 2, 13, 37, 1, 0, time.UTC)

	// Clicks arrive out of order: a slow network delivers the fastest
	// click last. Reconciliation re-anchors the window on it.
	_, err := ledger.RecordClick(ctx, "T1", testEventUUID, "U1", base.Add(1900*time.Millisecond))
	require.NoError(t, err)
	_, err = ledger.RecordClick(ctx, "T1", testEventUUID, "U2", base.Add(3800*time.Millisecond))
	require.NoError(t, err)
	_, err = ledger.RecordClick(ctx, "T1", testEventUUID, "U3", base)
	require.NoError(t, err)

	clicks, err := ledger.GetClicks(ctx, "T1", testEventUUID)
	require.NoError(t, err)
	require.Len(t, clicks, 2)
	assert.Equal(t, "U3", clicks[0].User)
	assert.Equal(t, "U1", clicks[1].User)
}

func TestRecordClickConcurrentConflictRetries(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()
	base := time.Date(2020, 1, 2, 13, 37, 1, 0, time.UTC)

	var calls int
	var mu sync.Mutex
	hold := make(chan struct{})
	held := make(chan struct{})

	// The first writer pauses between reading and writing, so a second
	// writer can slip in and bump the version underneath it.
	ledger.beforeWrite = func() {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(held)
			<-hold
		}
	}

	done := make(chan struct{})
	var firstA bool
	var errA error
	go func() {
		defer close(done)
		firstA, errA = ledger.RecordClick(ctx, "T1", testEventUUID, "UA", base.Add(100*time.Millisecond))
	}()

	<-held
	firstB, err := ledger.RecordClick(ctx, "T1", testEventUUID, "UB", base)
	require.NoError(t, err)
	assert.True(t, firstB)

	close(hold)
	<-done
	require.NoError(t, errA)
	assert.False(t, firstA)

	// Three write attempts total: A's doomed one, B's, and A's retry.
	mu.Lock()
	assert.Equal(t, 3, calls)
	mu.Unlock()

	clicks, err := ledger.GetClicks(ctx, "T1", testEventUUID)
	require.NoError(t, err)
	require.Len(t, clicks, 2)
	assert.Equal(t, "UB", clicks[0].User)
	assert.Equal(t, "UA", clicks[1].User)
}

func TestRecordClickContentionExhausted(t *testing.T) {
	ledger, st := newTestLedger(t)
	ctx := context.Background()

	m := metrics.NewMetrics(prometheus.NewRegistry())
	ledger = NewClickLedger(st, m, 2*time.Second, 3, zap.NewNop())

	// Every attempt loses the race: a competing write bumps the version
	// between the read and the conditional write.
	ledger.beforeWrite = func() {
		tenant, err := st.GetTenant(ctx, "T1")
		require.NoError(t, err)
		require.NoError(t, st.CompareAndSwapEvents(ctx, "T1", tenant.Version, tenant.Events))
	}

	_, err := ledger.RecordClick(ctx, "T1", testEventUUID, "U1", time.Now())
	assert.ErrorIs(t, err, ErrContentionExhausted)
}

func TestRecordClickUnknownTenant(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.RecordClick(context.Background(), "TMISSING", testEventUUID, "U1", time.Now())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetClicksUnknownEvent(t *testing.T) {
	ledger, _ := newTestLedger(t)

	clicks, err := ledger.GetClicks(context.Background(), "T1", "2021-05-05T05:05:05.000Z")
	require.NoError(t, err)
	assert.Empty(t, clicks)
}
