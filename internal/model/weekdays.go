package model

import "time"

// Weekday masks use bit 6 for Monday down to bit 0 for Sunday, so Monday
// through Friday is 0b1111100.
const WeekdaysMonFri = uint8(0b1111100)

// WeekdayAllowed reports whether the ISO weekday (1 = Monday .. 7 = Sunday)
// is permitted by the mask.
func WeekdayAllowed(mask uint8, isoWeekday int) bool {
	return mask&(1<<(6-(isoWeekday-1))) != 0
}

// MaskFromWeekdays builds a mask from ISO weekday numbers.
func MaskFromWeekdays(weekdays []int) uint8 {
	var mask uint8
	for _, weekday := range weekdays {
		mask |= 1 << (7 - weekday)
	}
	return mask
}

// ISOWeekday returns the ISO weekday number for t (1 = Monday .. 7 = Sunday).
func ISOWeekday(t time.Time) int {
	if wd := int(t.Weekday()); wd != 0 {
		return wd
	}
	return 7
}
