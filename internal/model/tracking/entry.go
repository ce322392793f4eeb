package tracking

import (
	"errors"
	"time"
)

// DayKey layout for calendar-day keys, one entry per user per day.
const DayKey = "2006-01-02"

var (
	ErrInvalidDate = errors.New("date must be formatted YYYY-MM-DD")
	ErrInvalidMood = errors.New("mood must be between 1 and 5")
)

// MoodEntry records how the user felt on one calendar day.
type MoodEntry struct {
	Date string `json:"date"`
	Mood int    `json:"mood"`
	Note string `json:"note,omitempty"`
}

// CheckinEntry records one daily reflection.
type CheckinEntry struct {
	Date       string `json:"date"`
	Gratitude  string `json:"gratitude"`
	Reflection string `json:"reflection"`
	Goals      string `json:"goals"`
}

// Today returns the calendar-day key for the current local date.
func Today() string {
	return time.Now().Format(DayKey)
}

// ParseDay validates a calendar-day key.
func ParseDay(date string) (time.Time, error) {
	t, err := time.Parse(DayKey, date)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// ValidateMood checks the 1..5 mood scale.
func ValidateMood(mood int) error {
	if mood < 1 || mood > 5 {
		return ErrInvalidMood
	}
	return nil
}
