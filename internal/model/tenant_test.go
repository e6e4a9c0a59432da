package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekdayAllowed(t *testing.T) {
	// Monday-Friday mask.
	mask := WeekdaysMonFri

	assert.True(t, WeekdayAllowed(mask, 1))  // Monday
	assert.True(t, WeekdayAllowed(mask, 5))  // Friday
	assert.False(t, WeekdayAllowed(mask, 6)) // Saturday
	assert.False(t, WeekdayAllowed(mask, 7)) // Sunday

	assert.False(t, WeekdayAllowed(0, 1))
	assert.False(t, WeekdayAllowed(0, 7))
}

func TestMaskFromWeekdays(t *testing.T) {
	assert.Equal(t, WeekdaysMonFri, MaskFromWeekdays([]int{1, 2, 3, 4, 5}))
	assert.Equal(t, uint8(0b0000001), MaskFromWeekdays([]int{7}))
	assert.Equal(t, uint8(0b1000000), MaskFromWeekdays([]int{1}))
	assert.Equal(t, uint8(0), MaskFromWeekdays(nil))
}

func TestISOWeekday(t *testing.T) {
	// 2020-01-02 is a Thursday, 2020-01-05 a Sunday.
	thursday := time.Date(2020, 1, 2, 12, 0, 0, 0, time.UTC)
	sunday := time.Date(2020, 1, 5, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 4, ISOWeekday(thursday))
	assert.Equal(t, 7, ISOWeekday(sunday))
	assert.Equal(t, 1, ISOWeekday(thursday.AddDate(0, 0, 4)))
}

func TestEventsWithClicksMaterializesNewEvent(t *testing.T) {
	tenant := &Tenant{
		Events: []Event{
			{UUID: "2020-01-01T10:00:00.000Z"},
			{UUID: "2020-03-01T10:00:00.000Z"},
		},
	}

	clicks := []Click{{User: "U1", Timestamp: time.Now().UTC()}}
	events := tenant.EventsWithClicks("2020-02-01T10:00:00.000Z", clicks)

	require.Len(t, events, 3)
	assert.Equal(t, "2020-01-01T10:00:00.000Z", events[0].UUID)
	assert.Equal(t, "2020-02-01T10:00:00.000Z", events[1].UUID)
	assert.Equal(t, "2020-03-01T10:00:00.000Z", events[2].UUID)
	assert.Equal(t, clicks, events[1].Clicks)

	// The tenant's own list is untouched.
	assert.Len(t, tenant.Events, 2)
}

func TestEventsWithClicksReplacesExisting(t *testing.T) {
	tenant := &Tenant{
		Events: []Event{
			{UUID: "2020-01-01T10:00:00.000Z", Clicks: []Click{{User: "U1"}}},
		},
	}

	clicks := []Click{{User: "U1"}, {User: "U2"}}
	events := tenant.EventsWithClicks("2020-01-01T10:00:00.000Z", clicks)

	require.Len(t, events, 1)
	assert.Equal(t, clicks, events[0].Clicks)
}

func TestLastAnnounceNeverAnnounced(t *testing.T) {
	tenant := &Tenant{}

	_, ok := tenant.LastAnnounce(time.Now())
	assert.False(t, ok)
}

func TestLastAnnounceFromEvents(t *testing.T) {
	tenant := &Tenant{
		Events: []Event{
			{UUID: "2020-01-01T10:00:00.000Z"},
			{UUID: "2020-01-02T12:34:56.000Z"},
		},
	}

	last, ok := tenant.LastAnnounce(time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, time.Date(2020, 1, 2, 12, 34, 56, 0, time.UTC), last.UTC())
}

func TestLastAnnouncePassedScheduledWins(t *testing.T) {
	now := time.Date(2020, 1, 3, 12, 0, 0, 0, time.UTC)
	tenant := &Tenant{
		Events: []Event{
			{UUID: "2020-01-02T12:34:56.000Z"},
		},
		Scheduled: &Scheduled{Timestamp: time.Date(2020, 1, 3, 9, 0, 0, 0, time.UTC)},
	}

	last, ok := tenant.LastAnnounce(now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2020, 1, 3, 9, 0, 0, 0, time.UTC), last.UTC())
}

func TestLastAnnounceFutureScheduledIgnored(t *testing.T) {
	now := time.Date(2020, 1, 3, 12, 0, 0, 0, time.UTC)
	tenant := &Tenant{
		Events: []Event{
			{UUID: "2020-01-02T12:34:56.000Z"},
		},
		Scheduled: &Scheduled{Timestamp: time.Date(2020, 1, 4, 9, 0, 0, 0, time.UTC)},
	}

	last, ok := tenant.LastAnnounce(now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2020, 1, 2, 12, 34, 56, 0, time.UTC), last.UTC())
}

func TestScheduledJSONRoundTrip(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Copenhagen")
	require.NoError(t, err)

	scheduled := Scheduled{
		Timestamp: time.Date(2020, 1, 3, 9, 12, 0, 0, loc),
		MessageID: "Q1298393284",
		Channel:   "C12345678",
	}

	data, err := json.Marshal(scheduled)
	require.NoError(t, err)

	// Stored timestamp must be UTC so lexicographic order is time order.
	assert.Contains(t, string(data), `"2020-01-03T08:12:00Z"`)

	var decoded Scheduled
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Timestamp.Equal(scheduled.Timestamp))
	assert.Equal(t, "Q1298393284", decoded.MessageID)
	assert.Equal(t, "C12345678", decoded.Channel)
}

func TestScheduledJSONDropsSubSecond(t *testing.T) {
	scheduled := Scheduled{
		Timestamp: time.Date(2020, 1, 3, 9, 12, 0, 450_000_000, time.UTC),
		MessageID: "Q1",
	}

	data, err := json.Marshal(scheduled)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"2020-01-03T09:12:00Z"`)

	var decoded Scheduled
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Timestamp.Equal(scheduled.Timestamp.Truncate(time.Second)))
}

func TestTimestampUUID(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Copenhagen")
	require.NoError(t, err)

	ts := time.Date(2020, 3, 14, 14, 37, 0, 0, loc)
	assert.Equal(t, "2020-03-14T13:37:00.000Z", TimestampUUID(ts))
}
