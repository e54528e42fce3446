package notify

import (
	"fmt"
	"time"
)

// Frequency controls how a channel's deliveries are paced.
type Frequency string

const (
	FrequencyImmediate Frequency = "immediate"
	FrequencyDigest15m Frequency = "digest_15m"
	FrequencyHourly    Frequency = "hourly"
	FrequencyDaily     Frequency = "daily"
)

// Window returns the digest window length for the frequency. Immediate and
// unrecognized frequencies fall back to the 15-minute default, matching how
// an unexpected preference row degrades rather than erroring.
func (f Frequency) Window() time.Duration {
	switch f {
	case FrequencyDigest15m:
		return 15 * time.Minute
	case FrequencyHourly:
		return time.Hour
	case FrequencyDaily:
		return 24 * time.Hour
	default:
		return 15 * time.Minute
	}
}

// TimeOfDay is a wall-clock moment without a date, used for quiet hours.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Minutes returns the offset from midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Default quiet-hours window, 22:00–08:00 local time.
var (
	DefaultQuietStart = TimeOfDay{Hour: 22}
	DefaultQuietEnd   = TimeOfDay{Hour: 8}
)

// DefaultTimezone is assumed when a preference row carries no timezone.
const DefaultTimezone = "Asia/Tashkent"

// DefaultDigestHour is the local hour daily digests are anchored to.
const DefaultDigestHour = 9

// Preference is the per (user, category, channel) delivery setting. Rows are
// created lazily with defaults the first time a channel is routed.
type Preference struct {
	UserID          string     `json:"user_id"`
	Category        Category   `json:"category"`
	Channel         Channel    `json:"channel"`
	Enabled         bool       `json:"enabled"`
	Frequency       Frequency  `json:"frequency"`
	Language        string     `json:"language"`
	Timezone        string     `json:"timezone"`
	QuietHoursStart *TimeOfDay `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd   *TimeOfDay `json:"quiet_hours_end,omitempty"`
	DailyDigestHour int        `json:"daily_digest_hour"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// DefaultPreference returns the row created when a (user, category, channel)
// tuple is routed for the first time: enabled, immediate, default locale.
func DefaultPreference(userID string, category Category, channel Channel) Preference {
	return Preference{
		UserID:          userID,
		Category:        category,
		Channel:         channel,
		Enabled:         true,
		Frequency:       FrequencyImmediate,
		Language:        "ru",
		Timezone:        DefaultTimezone,
		DailyDigestHour: DefaultDigestHour,
	}
}

// Location resolves the preference timezone, falling back to the default
// when the name is unknown.
func (p Preference) Location() *time.Location {
	name := p.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc, err = time.LoadLocation(DefaultTimezone)
		if err != nil {
			return time.FixedZone("UTC+5", 5*60*60)
		}
	}
	return loc
}
