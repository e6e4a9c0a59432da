package model

import (
	"encoding/json"
	"sort"
	"time"
)

// EventUUIDLayout is the wire format for event identifiers. An event is keyed
// by the UTC timestamp at which its button was announced, rendered with
// millisecond precision so identifiers sort lexicographically in time order.
const EventUUIDLayout = "2006-01-02T15:04:05.000Z07:00"

// Click is a single user's reaction to an event. Timestamps are always UTC.
type Click struct {
	User      string    `json:"user"`
	Timestamp time.Time `json:"timestamp"`
}

// Event is one button occurrence. UUID doubles as the race's zero-time
// baseline. Clicks are kept sorted ascending by timestamp.
type Event struct {
	UUID   string  `json:"uuid"`
	Clicks []Click `json:"clicks"`
}

// Scheduled points at the currently pending future announce, if any.
// Timestamp carries whole-second precision only: the scheduler always picks
// whole seconds, and MarshalJSON drops any sub-second component so the
// stored form stays lexicographically comparable.
type Scheduled struct {
	Timestamp time.Time
	MessageID string
	Channel   string
}

type scheduledJSON struct {
	Timestamp string `json:"timestamp"`
	MessageID string `json:"message_id"`
	Channel   string `json:"channel"`
}

// MarshalJSON stores the timestamp as a whole-second RFC 3339 UTC string, so
// stored documents can be compared lexicographically in time order.
func (s Scheduled) MarshalJSON() ([]byte, error) {
	return json.Marshal(scheduledJSON{
		Timestamp: s.Timestamp.UTC().Format(time.RFC3339),
		MessageID: s.MessageID,
		Channel:   s.Channel,
	})
}

// UnmarshalJSON parses the stored form written by MarshalJSON.
func (s *Scheduled) UnmarshalJSON(data []byte) error {
	var raw scheduledJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339, raw.Timestamp)
	if err != nil {
		return err
	}
	s.Timestamp = ts
	s.MessageID = raw.MessageID
	s.Channel = raw.Channel
	return nil
}

// Tenant is one installed workspace. Version guards the whole record for
// optimistic concurrency: the store bumps it by one on every successful
// conditional write.
type Tenant struct {
	ID            string
	TeamName      string
	AccessToken   string
	Channel       string
	Disabled      bool
	Weekdays      uint8
	IntervalStart int
	IntervalEnd   int
	Timezone      string
	Scheduled     *Scheduled
	Events        []Event
	Version       int64
}

// Event returns the event with the given uuid, or nil.
func (t *Tenant) Event(uuid string) *Event {
	for i := range t.Events {
		if t.Events[i].UUID == uuid {
			return &t.Events[i]
		}
	}
	return nil
}

// EventsWithClicks returns a copy of the tenant's event list where the event
// identified by uuid holds the given clicks. A previously unseen uuid
// materializes a new event, keeping the list sorted ascending by uuid.
func (t *Tenant) EventsWithClicks(uuid string, clicks []Click) []Event {
	events := make([]Event, len(t.Events))
	copy(events, t.Events)

	for i := range events {
		if events[i].UUID == uuid {
			events[i].Clicks = clicks
			return events
		}
	}

	events = append(events, Event{UUID: uuid, Clicks: clicks})
	sort.Slice(events, func(i, j int) bool { return events[i].UUID < events[j].UUID })
	return events
}

// LastAnnounce returns the instant of the tenant's most recent announce: the
// later of the newest event baseline and a pending scheduled timestamp that
// has itself already passed. The second return is false if the tenant has
// never announced.
func (t *Tenant) LastAnnounce(now time.Time) (time.Time, bool) {
	var last time.Time
	var ok bool

	// Event uuids sort lexicographically in time order, so the newest
	// parseable one wins.
	for i := len(t.Events) - 1; i >= 0; i-- {
		if ts, err := time.Parse(time.RFC3339, t.Events[i].UUID); err == nil {
			last, ok = ts, true
			break
		}
	}

	if t.Scheduled != nil && !t.Scheduled.Timestamp.After(now) {
		if !ok || t.Scheduled.Timestamp.After(last) {
			last, ok = t.Scheduled.Timestamp, true
		}
	}

	return last, ok
}

// Clone returns a deep copy of the tenant.
func (t *Tenant) Clone() *Tenant {
	clone := *t
	if t.Scheduled != nil {
		s := *t.Scheduled
		clone.Scheduled = &s
	}
	clone.Events = make([]Event, len(t.Events))
	for i, ev := range t.Events {
		clicks := make([]Click, len(ev.Clicks))
		copy(clicks, ev.Clicks)
		clone.Events[i] = Event{UUID: ev.UUID, Clicks: clicks}
	}
	return &clone
}

// TimestampUUID renders an announce instant as an event identifier.
func TimestampUUID(t time.Time) string {
	return t.UTC().Format(EventUUIDLayout)
}
