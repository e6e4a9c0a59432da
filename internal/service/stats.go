package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zozs/a-wild-button-appears/internal/delivery"
	"github.com/zozs/a-wild-button-appears/internal/model"
)

// UserCount is a per-user tally, used for wins and streaks.
type UserCount struct {
	User  string
	Count int
}

// UserTime is a per-user winning time.
type UserTime struct {
	User    string
	Elapsed time.Duration
}

// Wins counts race wins per user, sorted by count descending.
func Wins(events []model.Event) []UserCount {
	counts := make(map[string]int)
	for _, event := range events {
		if len(event.Clicks) == 0 {
			continue
		}
		counts[event.Clicks[0].User]++
	}

	result := make([]UserCount, 0, len(counts))
	for user, count := range counts {
		result = append(result, UserCount{User: user, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].User < result[j].User
	})
	return result
}

// FastestWins returns up to n winning times, fastest first.
func FastestWins(events []model.Event, n int) []UserTime {
	times := winningTimes(events)
	sort.Slice(times, func(i, j int) bool { return times[i].Elapsed < times[j].Elapsed })
	return truncTimes(times, n)
}

// SlowestWins returns up to n winning times, slowest first.
func SlowestWins(events []model.Event, n int) []UserTime {
	times := winningTimes(events)
	sort.Slice(times, func(i, j int) bool { return times[i].Elapsed > times[j].Elapsed })
	return truncTimes(times, n)
}

// WinningStreaks returns up to n longest runs of consecutive wins, longest
// first. Events are taken in announce order.
func WinningStreaks(events []model.Event, n int) []UserCount {
	best := make(map[string]int)
	var currentUser string
	var currentStreak int

	for _, event := range events {
		if len(event.Clicks) == 0 {
			continue
		}
		winner := event.Clicks[0].User
		if winner == currentUser {
			currentStreak++
		} else {
			currentUser = winner
			currentStreak = 1
		}
		if currentStreak > best[winner] {
			best[winner] = currentStreak
		}
	}

	result := make([]UserCount, 0, len(best))
	for user, streak := range best {
		result = append(result, UserCount{User: user, Count: streak})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].User < result[j].User
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

// StatsMessage renders the tenant's statistics message.
func StatsMessage(events []model.Event) delivery.Message {
	wins := Wins(events)
	fastest := FastestWins(events, 5)
	slowest := SlowestWins(events, 5)
	streaks := WinningStreaks(events, 5)

	winLines := make([]string, len(wins))
	for i, w := range wins {
		winLines[i] = fmt.Sprintf("%d <@%s>", w.Count, w.User)
	}

	streakLines := make([]string, len(streaks))
	for i, s := range streaks {
		streakLines[i] = fmt.Sprintf("%d <@%s>", s.Count, s.User)
	}

	fastestLines := make([]string, len(fastest))
	for i, f := range fastest {
		fastestLines[i] = fmt.Sprintf("%.2f s <@%s>", f.Elapsed.Seconds(), f.User)
	}

	slowestLines := make([]string, len(slowest))
	for i, s := range slowest {
		slowestLines[i] = fmt.Sprintf("%.2f s <@%s>", s.Elapsed.Seconds(), s.User)
	}

	return delivery.Message{
		Text: "Some wild STATISTICS appears!",
		Blocks: []delivery.Block{
			{
				Type: "section",
				Text: &delivery.Text{Type: "mrkdwn", Text: "*Some wild STATISTICS appears!* :bar_chart:"},
			},
			{
				Type: "section",
				Fields: []delivery.Text{
					{Type: "mrkdwn", Text: "*Number of wins*\n" + strings.Join(winLines, "\n")},
					{Type: "mrkdwn", Text: "*Longest winning streak*\n" + strings.Join(streakLines, "\n")},
				},
			},
			{
				Type: "section",
				Fields: []delivery.Text{
					{Type: "mrkdwn", Text: "*Fastest wins*\n" + strings.Join(fastestLines, "\n")},
					{Type: "mrkdwn", Text: "*Slowest wins*\n" + strings.Join(slowestLines, "\n")},
				},
			},
		},
	}
}

func winningTimes(events []model.Event) []UserTime {
	var times []UserTime
	for _, event := range events {
		if len(event.Clicks) == 0 {
			continue
		}
		elapsed, err := Elapsed(event.UUID, event.Clicks[0].Timestamp)
		if err != nil {
			continue
		}
		times = append(times, UserTime{User: event.Clicks[0].User, Elapsed: elapsed})
	}
	return times
}

func truncTimes(times []UserTime, n int) []UserTime {
	if len(times) > n {
		times = times[:n]
	}
	return times
}
