package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/zozs/a-wild-button-appears/internal/model"
)

// Outcome is a settled race result for one event.
type Outcome struct {
	Winner    model.Click
	RunnersUp []model.Click

	// Elapsed times formatted per FormatClickTimes, index-aligned with
	// Winner followed by RunnersUp.
	Times []string
}

// ResolveRace computes the race outcome for a reconciled, sorted click list.
// The winner is the first click; the rest are runners-up.
func ResolveRace(uuid string, clicks []model.Click) (Outcome, error) {
	if len(clicks) == 0 {
		return Outcome{}, fmt.Errorf("no clicks recorded for event %s", uuid)
	}

	times, err := FormatClickTimes(uuid, clicks)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Winner:    clicks[0],
		RunnersUp: clicks[1:],
		Times:     times,
	}, nil
}

// Elapsed returns the time between the event baseline and a click.
func Elapsed(uuid string, timestamp time.Time) (time.Duration, error) {
	baseline, err := time.Parse(time.RFC3339, uuid)
	if err != nil {
		return 0, fmt.Errorf("event uuid %q is not a timestamp: %w", uuid, err)
	}
	return timestamp.Sub(baseline), nil
}

// FormatClickTimes renders every click's elapsed seconds to two decimals.
// If any two clicks collide at two decimals, all entries are re-rendered at
// three, so two users a millisecond apart never read as a tie.
func FormatClickTimes(uuid string, clicks []model.Click) ([]string, error) {
	times := make([]string, len(clicks))
	counts := make(map[string]int, len(clicks))
	for i, click := range clicks {
		elapsed, err := Elapsed(uuid, click.Timestamp)
		if err != nil {
			return nil, err
		}
		times[i] = fmt.Sprintf("%.2f", elapsed.Seconds())
		counts[times[i]]++
	}

	collision := false
	for _, count := range counts {
		if count > 1 {
			collision = true
			break
		}
	}
	if !collision {
		return times, nil
	}

	for i, click := range clicks {
		elapsed, err := Elapsed(uuid, click.Timestamp)
		if err != nil {
			return nil, err
		}
		times[i] = fmt.Sprintf("%.3f", elapsed.Seconds())
	}

	return times, nil
}

// WinnerLine renders the winner announcement.
func (o Outcome) WinnerLine() string {
	return fmt.Sprintf(":heavy_check_mark: <@%s> won (%s s)!", o.Winner.User, o.Times[0])
}

// RunnersUpLine renders the runner-up clause, or "" when there were none.
// The verb agrees with the number of runners-up.
func (o Outcome) RunnersUpLine() string {
	if len(o.RunnersUp) == 0 {
		return ""
	}

	parts := make([]string, len(o.RunnersUp))
	for i, click := range o.RunnersUp {
		parts[i] = fmt.Sprintf("<@%s> (%s s)", click.User, o.Times[i+1])
	}

	verb := "were"
	if len(o.RunnersUp) == 1 {
		verb = "was"
	}

	return fmt.Sprintf("%s %s close!", strings.Join(parts, ", "), verb)
}
