package profile

import "time"

// Theme names one of the UI color schemes the frontend understands.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeNight Theme = "night"
)

// RetentionUnlimited disables automatic pruning of tracking entries.
const RetentionUnlimited = -1

// Preferences holds per-user settings.
type Preferences struct {
	Theme             Theme `json:"theme"`
	Notifications     bool  `json:"notifications"`
	DataRetentionDays int   `json:"dataRetentionDays"`
}

// Stats aggregates usage counters shown on the profile page.
type Stats struct {
	TotalSessions int       `json:"totalSessions"`
	MoodEntries   int       `json:"moodEntries"`
	CheckinStreak int       `json:"checkinStreak"`
	LastActive    time.Time `json:"lastActive"`
}

// User is the single locally-stored identity. Exactly one user is
// "current" at a time; its ID namespaces every other record.
type User struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email,omitempty"`
	Avatar      string      `json:"avatar,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	Preferences Preferences `json:"preferences"`
	Stats       Stats       `json:"stats"`
}

// Patch carries a partial update; nil fields are left untouched.
type Patch struct {
	Name              *string `json:"name,omitempty"`
	Email             *string `json:"email,omitempty"`
	Avatar            *string `json:"avatar,omitempty"`
	Theme             *Theme  `json:"theme,omitempty"`
	Notifications     *bool   `json:"notifications,omitempty"`
	DataRetentionDays *int    `json:"dataRetentionDays,omitempty"`
}

// DefaultPreferences mirrors the defaults applied at first login.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:             ThemeLight,
		Notifications:     true,
		DataRetentionDays: 30,
	}
}
