package service

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/zozs/a-wild-button-appears/internal/model"
)

// ErrNoValidScheduleWindow is returned when no admissible announce time
// exists within the bounded day search, e.g. with an all-zero weekday mask.
var ErrNoValidScheduleWindow = errors.New("no valid schedule window found")

// AnnounceScheduler computes the next legal announce time for a tenant.
type AnnounceScheduler struct {
	maxSearchDays int
	rng           *rand.Rand
}

// NewAnnounceScheduler creates a new announce scheduler. rng may be nil, in
// which case a time-seeded source is used; tests inject a fixed seed.
func NewAnnounceScheduler(maxSearchDays int, rng *rand.Rand) *AnnounceScheduler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &AnnounceScheduler{
		maxSearchDays: maxSearchDays,
		rng:           rng,
	}
}

// NextAnnounce returns the next instant a new event should appear for the
// tenant, in the tenant's zone. A candidate day is rejected if it is the
// same local calendar day as the last announce, if its weekday is not in the
// tenant's mask, or if its announce window has already closed; otherwise a
// uniformly random integer second is picked from the remaining window. The
// window's upper bound is inclusive.
func (s *AnnounceScheduler) NextAnnounce(tenant *model.Tenant, now time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(tenant.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("tenant %s has invalid timezone %q: %w", tenant.ID, tenant.Timezone, err)
	}

	now = now.In(loc)
	lastAnnounce, hasAnnounced := tenant.LastAnnounce(now)

	// Start with the assumption that we can announce today at midnight.
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	for tries := 0; tries < s.maxSearchDays; tries++ {
		// There must not already have been a button this calendar day.
		if hasAnnounced && sameLocalDay(day, lastAnnounce.In(loc)) {
			day = day.AddDate(0, 0, 1)
			continue
		}

		if !model.WeekdayAllowed(tenant.Weekdays, model.ISOWeekday(day)) {
			day = day.AddDate(0, 0, 1)
			continue
		}

		// The admissible window is [max(dayStart+intervalStart, now),
		// dayStart+intervalEnd], upper bound inclusive.
		start := day.Add(time.Duration(tenant.IntervalStart) * time.Second)
		if now.After(start) {
			start = now
		}
		end := day.Add(time.Duration(tenant.IntervalEnd) * time.Second)

		startSec := ceilUnix(start)
		endSec := end.Unix()
		if startSec > endSec {
			day = day.AddDate(0, 0, 1)
			continue
		}

		pick := startSec + s.rng.Int63n(endSec-startSec+1)
		return time.Unix(pick, 0).In(loc), nil
	}

	return time.Time{}, ErrNoValidScheduleWindow
}

func sameLocalDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ceilUnix rounds up to the next whole second unless t is already whole.
func ceilUnix(t time.Time) int64 {
	sec := t.Unix()
	if t.Nanosecond() > 0 {
		sec++
	}
	return sec
}
