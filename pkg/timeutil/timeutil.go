// Package timeutil provides the date and minute-of-day conversions used by
// the scheduling engine. All calendar math is pinned to UTC so a given date
// string maps to the same weekday regardless of server locale.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format for date-only values.
const DateLayout = "2006-01-02"

// ToDateOnly parses a YYYY-MM-DD string into midnight UTC of that day.
func ToDateOnly(dateStr string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, dateStr, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", dateStr, err)
	}
	return t, nil
}

// ToMinutes converts an HH:MM string into minutes since midnight. The
// whole string must be the time; trailing characters are rejected.
func ToMinutes(hhmm string) (int, error) {
	hh, mm, ok := strings.Cut(hhmm, ":")
	if !ok {
		return 0, fmt.Errorf("parse time %q: want HH:MM", hhmm)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("parse time %q: %w", hhmm, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("parse time %q: %w", hhmm, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q out of range", hhmm)
	}
	return h*60 + m, nil
}

// MinutesToHHMM formats minutes since midnight as a zero-padded HH:MM string.
func MinutesToHHMM(totalMinutes int) string {
	return fmt.Sprintf("%02d:%02d", totalMinutes/60, totalMinutes%60)
}

// DayOfWeekUTC returns the UTC weekday for a date, 0 = Sunday through 6 = Saturday.
func DayOfWeekUTC(date time.Time) int {
	return int(date.UTC().Weekday())
}

// ComposeDateTime combines a date with a minutes-since-midnight offset into
// an absolute instant.
func ComposeDateTime(date time.Time, minutes int) time.Time {
	return date.Add(time.Duration(minutes) * time.Minute)
}
