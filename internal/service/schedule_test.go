package service

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zozs/a-wild-button-appears/internal/model"
)

func copenhagenTenant() *model.Tenant {
	return &model.Tenant{
		ID:            "T1",
		Weekdays:      model.WeekdaysMonFri,
		IntervalStart: 9 * 3600,
		IntervalEnd:   16 * 3600,
		Timezone:      "Europe/Copenhagen",
	}
}

func copenhagen(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Copenhagen")
	require.NoError(t, err)
	return loc
}

func assertWithinWindow(t *testing.T, got time.Time, dayStart time.Time, startSeconds, endSeconds int) {
	t.Helper()
	lower := dayStart.Add(time.Duration(startSeconds) * time.Second)
	upper := dayStart.Add(time.Duration(endSeconds) * time.Second)
	assert.False(t, got.Before(lower), "got %v, want >= %v", got, lower)
	assert.False(t, got.After(upper), "got %v, want <= %v", got, upper)
	assert.Zero(t, got.Nanosecond())
}

func TestNextAnnounceEveningRollsToNextDay(t *testing.T) {
	loc := copenhagen(t)
	scheduler := NewAnnounceScheduler(100, rand.New(rand.NewSource(1)))
	tenant := copenhagenTenant()

	// Thursday evening, past the window: Friday it is.
	now := time.Date(2020, 1, 2, 21, 0, 0, 0, loc)

	for i := 0; i < 50; i++ {
		next, err := scheduler.NextAnnounce(tenant, now)
		require.NoError(t, err)

		next = next.In(loc)
		friday := time.Date(2020, 1, 3, 0, 0, 0, 0, loc)
		assert.Equal(t, 3, next.Day())
		assertWithinWindow(t, next, friday, tenant.IntervalStart, tenant.IntervalEnd)
	}
}

func TestNextAnnounceWindowStillOpenToday(t *testing.T) {
	loc := copenhagen(t)
	scheduler := NewAnnounceScheduler(100, rand.New(rand.NewSource(1)))
	tenant := copenhagenTenant()

	now := time.Date(2020, 1, 2, 10, 0, 0, 0, loc)

	for i := 0; i < 50; i++ {
		next, err := scheduler.NextAnnounce(tenant, now)
		require.NoError(t, err)

		next = next.In(loc)
		assert.Equal(t, 2, next.Day())
		assert.False(t, next.Before(now))
		thursday := time.Date(2020, 1, 2, 0, 0, 0, 0, loc)
		assertWithinWindow(t, next, thursday, tenant.IntervalStart, tenant.IntervalEnd)
	}
}

func TestNextAnnounceSkipsWeekend(t *testing.T) {
	loc := copenhagen(t)
	scheduler := NewAnnounceScheduler(100, rand.New(rand.NewSource(1)))
	tenant := copenhagenTenant()

	// Friday evening: Saturday and Sunday are masked out.
	now := time.Date(2020, 1, 3, 21, 0, 0, 0, loc)

	next, err := scheduler.NextAnnounce(tenant, now)
	require.NoError(t, err)
	assert.Equal(t, 6, next.In(loc).Day()) // Monday January 6th
}

func TestNextAnnounceNeverTwiceSameDay(t *testing.T) {
	loc := copenhagen(t)
	scheduler := NewAnnounceScheduler(100, rand.New(rand.NewSource(1)))
	tenant := copenhagenTenant()

	// A button already appeared this morning, so even though the window
	// is still open the next one is tomorrow.
	now := time.Date(2020, 1, 2, 10, 0, 0, 0, loc)
	tenant.Events = []model.Event{
		{UUID: model.TimestampUUID(time.Date(2020, 1, 2, 9, 30, 0, 0, loc))},
	}

	next, err := scheduler.NextAnnounce(tenant, now)
	require.NoError(t, err)
	assert.Equal(t, 3, next.In(loc).Day())
}

func TestNextAnnouncePassedScheduledCountsAsAnnounce(t *testing.T) {
	loc := copenhagen(t)
	scheduler := NewAnnounceScheduler(100, rand.New(rand.NewSource(1)))
	tenant := copenhagenTenant()

	now := time.Date(2020, 1, 2, 10, 0, 0, 0, loc)
	tenant.Scheduled = &model.Scheduled{
		Timestamp: time.Date(2020, 1, 2, 9, 30, 0, 0, loc),
		MessageID: "Q1",
		Channel:   "C1",
	}

	next, err := scheduler.NextAnnounce(tenant, now)
	require.NoError(t, err)
	assert.Equal(t, 3, next.In(loc).Day())
}

func TestNextAnnounceInclusiveUpperBound(t *testing.T) {
	loc := copenhagen(t)
	scheduler := NewAnnounceScheduler(100, rand.New(rand.NewSource(1)))
	tenant := copenhagenTenant()

	// The window has shrunk to the single instant 16:00:00, which is
	// still admissible.
	now := time.Date(2020, 1, 2, 16, 0, 0, 0, loc)

	next, err := scheduler.NextAnnounce(tenant, now)
	require.NoError(t, err)
	assert.True(t, next.Equal(now))
}

func TestNextAnnounceJustPastUpperBound(t *testing.T) {
	loc := copenhagen(t)
	scheduler := NewAnnounceScheduler(100, rand.New(rand.NewSource(1)))
	tenant := copenhagenTenant()

	now := time.Date(2020, 1, 2, 16, 0, 0, 1, loc)

	next, err := scheduler.NextAnnounce(tenant, now)
	require.NoError(t, err)
	assert.Equal(t, 3, next.In(loc).Day())
}

func TestNextAnnounceEmptyWeekdayMask(t *testing.T) {
	scheduler := NewAnnounceScheduler(100, rand.New(rand.NewSource(1)))
	tenant := copenhagenTenant()
	tenant.Weekdays = 0

	_, err := scheduler.NextAnnounce(tenant, time.Now())
	assert.ErrorIs(t, err, ErrNoValidScheduleWindow)
}

func TestNextAnnounceInvalidTimezone(t *testing.T) {
	scheduler := NewAnnounceScheduler(100, rand.New(rand.NewSource(1)))
	tenant := copenhagenTenant()
	tenant.Timezone = "Not/AZone"

	_, err := scheduler.NextAnnounce(tenant, time.Now())
	assert.Error(t, err)
}
