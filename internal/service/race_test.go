package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zozs/a-wild-button-appears/internal/model"
)

func clickAfter(user string, offset time.Duration) model.Click {
	baseline := time.Date(2020, 1, 2, 13, 37, 0, 0, time.UTC)
	return model.Click{User: user, Timestamp: baseline.Add(offset)}
}

func TestResolveRaceSingleClick(t *testing.T) {
	outcome, err := ResolveRace(testEventUUID, []model.Click{
		clickAfter("U1", 61114*time.Millisecond),
	})
	require.NoError(t, err)

	assert.Equal(t, "U1", outcome.Winner.User)
	assert.Empty(t, outcome.RunnersUp)
	assert.Equal(t, ":heavy_check_mark: <@U1> won (61.11 s)!", outcome.WinnerLine())
	assert.Equal(t, "", outcome.RunnersUpLine())
}

func TestResolveRaceSingleRunnerUp(t *testing.T) {
	outcome, err := ResolveRace(testEventUUID, []model.Click{
		clickAfter("U1", 1230*time.Millisecond),
		clickAfter("U2", 2340*time.Millisecond),
	})
	require.NoError(t, err)

	assert.Equal(t, ":heavy_check_mark: <@U1> won (1.23 s)!", outcome.WinnerLine())
	assert.Equal(t, "<@U2> (2.34 s) was close!", outcome.RunnersUpLine())
}

func TestResolveRaceMultipleRunnersUp(t *testing.T) {
	outcome, err := ResolveRace(testEventUUID, []model.Click{
		clickAfter("U1", 1230*time.Millisecond),
		clickAfter("U2", 2340*time.Millisecond),
		clickAfter("U3", 2560*time.Millisecond),
	})
	require.NoError(t, err)

	assert.Equal(t, "<@U2> (2.34 s), <@U3> (2.56 s) were close!", outcome.RunnersUpLine())
}

func TestResolveRaceNoClicks(t *testing.T) {
	_, err := ResolveRace(testEventUUID, nil)
	assert.Error(t, err)
}

func TestFormatClickTimesCollision(t *testing.T) {
	// U1 and U2 collide at two decimals, so everyone is rendered at
	// three.
	times, err := FormatClickTimes(testEventUUID, []model.Click{
		clickAfter("U1", 4113*time.Millisecond),
		clickAfter("U2", 4114*time.Millisecond),
		clickAfter("U3", 4520*time.Millisecond),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"4.113", "4.114", "4.520"}, times)
}

func TestFormatClickTimesNoCollision(t *testing.T) {
	times, err := FormatClickTimes(testEventUUID, []model.Click{
		clickAfter("U1", 4113*time.Millisecond),
		clickAfter("U2", 4210*time.Millisecond),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"4.11", "4.21"}, times)
}

func TestFormatClickTimesThreeWayCollision(t *testing.T) {
	// 4.115 renders as "4.12" at two decimals and does not collide
	// itself; the collision between the first two still moves the whole
	// list to three decimals.
	times, err := FormatClickTimes(testEventUUID, []model.Click{
		clickAfter("U1", 4113*time.Millisecond),
		clickAfter("U2", 4114*time.Millisecond),
		clickAfter("U3", 4115*time.Millisecond),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"4.113", "4.114", "4.115"}, times)
}

func TestElapsedBadUUID(t *testing.T) {
	_, err := Elapsed("not-a-timestamp", time.Now())
	assert.Error(t, err)
}
