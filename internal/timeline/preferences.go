package timeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/muaviaUsmani/studyplan/internal/interval"
)

// ErrInvalidPreferences is returned when scheduling preferences or policy cannot be used.
// Check with errors.Is.
var ErrInvalidPreferences = errors.New("timeline: invalid preferences")

// ClockTime is a local time of day stored as minutes after midnight
type ClockTime int

// Clock returns the ClockTime for hour:minute
func Clock(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ParseClockTime parses "HH:MM" (24-hour clock)
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock(hour, minute), nil
}

// Hour returns the hour component
func (c ClockTime) Hour() int { return int(c) / 60 }

// Minute returns the minute component
func (c ClockTime) Minute() int { return int(c) % 60 }

// String formats the time as HH:MM
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// On returns this time of day on the calendar date of day, in day's location
func (c ClockTime) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, day.Location())
}

// MarshalText implements encoding.TextMarshaler
func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *ClockTime) UnmarshalText(text []byte) error {
	parsed, err := ParseClockTime(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Preferences are the per-run scheduling knobs
type Preferences struct {
	// MaxHoursPerDay caps the study hours placed on any calendar day
	MaxHoursPerDay float64 `json:"max_hours_per_day" yaml:"max_hours_per_day"`
	// PreferredStart and PreferredEnd bound the daily working window
	PreferredStart ClockTime `json:"preferred_start_time" yaml:"preferred_start_time"`
	PreferredEnd   ClockTime `json:"preferred_end_time" yaml:"preferred_end_time"`
	// MinStudyBlockMinutes is the shortest session worth placing
	MinStudyBlockMinutes int `json:"min_study_block_minutes" yaml:"min_study_block_minutes"`
	// BreakDurationMinutes is kept free after every placed session
	BreakDurationMinutes int `json:"break_duration_minutes" yaml:"break_duration_minutes"`
}

// DefaultPreferences returns 6h/day between 09:00 and 22:00, 30 minute blocks and 15 minute breaks
func DefaultPreferences() Preferences {
	return Preferences{
		MaxHoursPerDay:       6,
		PreferredStart:       Clock(9, 0),
		PreferredEnd:         Clock(22, 0),
		MinStudyBlockMinutes: 30,
		BreakDurationMinutes: 15,
	}
}

// Validate rejects combinations the engine cannot schedule with
func (p Preferences) Validate() error {
	if p.MaxHoursPerDay <= 0 || p.MaxHoursPerDay > 24 {
		return fmt.Errorf("%w: max hours per day must be in (0, 24], got %v", ErrInvalidPreferences, p.MaxHoursPerDay)
	}
	if p.PreferredEnd <= p.PreferredStart {
		return fmt.Errorf("%w: preferred end %s must be after preferred start %s", ErrInvalidPreferences, p.PreferredEnd, p.PreferredStart)
	}
	if p.MinStudyBlockMinutes <= 0 {
		return fmt.Errorf("%w: minimum study block must be positive, got %d", ErrInvalidPreferences, p.MinStudyBlockMinutes)
	}
	if p.BreakDurationMinutes < 0 {
		return fmt.Errorf("%w: break duration cannot be negative, got %d", ErrInvalidPreferences, p.BreakDurationMinutes)
	}
	if window := int(p.PreferredEnd - p.PreferredStart); p.MinStudyBlockMinutes > window {
		return fmt.Errorf("%w: minimum study block (%d min) does not fit in the %d minute window", ErrInvalidPreferences, p.MinStudyBlockMinutes, window)
	}
	return nil
}

// MinBlock returns the minimum study block as a duration
func (p Preferences) MinBlock() time.Duration {
	return time.Duration(p.MinStudyBlockMinutes) * time.Minute
}

// Break returns the break duration
func (p Preferences) Break() time.Duration {
	return time.Duration(p.BreakDurationMinutes) * time.Minute
}

// Window returns the working window on day's calendar date
func (p Preferences) Window(day time.Time) interval.Interval {
	return interval.New(p.PreferredStart.On(day), p.PreferredEnd.On(day))
}

// DecodePreferences overlays a JSON document on the defaults and validates the result.
// An empty document yields the defaults.
func DecodePreferences(raw json.RawMessage, defaults Preferences) (Preferences, error) {
	prefs := defaults
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &prefs); err != nil {
			return Preferences{}, fmt.Errorf("%w: %v", ErrInvalidPreferences, err)
		}
	}
	if err := prefs.Validate(); err != nil {
		return Preferences{}, err
	}
	return prefs, nil
}
