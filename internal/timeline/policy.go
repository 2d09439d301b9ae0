package timeline

import (
	"fmt"
	"math"
)

// Policy holds the heuristic constants of the session planner.
// Zero values produce the defaults noted on each field.
type Policy struct {
	TargetSessions       int     `json:"target_sessions" yaml:"target_sessions"`               // zero → 3
	MinSessionHours      float64 `json:"min_session_hours" yaml:"min_session_hours"`           // zero → 1
	MaxSessionHours      float64 `json:"max_session_hours" yaml:"max_session_hours"`           // zero → 3
	BufferDivisor        int     `json:"buffer_divisor" yaml:"buffer_divisor"`                 // zero → 4
	MinBufferDays        int     `json:"min_buffer_days" yaml:"min_buffer_days"`               // zero → 1
	MaxBufferDays        int     `json:"max_buffer_days" yaml:"max_buffer_days"`               // zero → 2
	CompletionSlackHours float64 `json:"completion_slack_hours" yaml:"completion_slack_hours"` // zero → 0.5
	// DisableBackfill skips the catch-up pass that fills leftover capacity
	// (buffer days last) when the spaced pass leaves a task partial.
	DisableBackfill bool `json:"disable_backfill" yaml:"disable_backfill"`
}

// DefaultPolicy returns the policy with every default filled in
func DefaultPolicy() Policy {
	return Policy{}.withDefaults()
}

func (p Policy) withDefaults() Policy {
	if p.TargetSessions == 0 {
		p.TargetSessions = 3
	}
	if p.MinSessionHours == 0 {
		p.MinSessionHours = 1
	}
	if p.MaxSessionHours == 0 {
		p.MaxSessionHours = 3
	}
	if p.BufferDivisor == 0 {
		p.BufferDivisor = 4
	}
	if p.MinBufferDays == 0 {
		p.MinBufferDays = 1
	}
	if p.MaxBufferDays == 0 {
		p.MaxBufferDays = 2
	}
	if p.CompletionSlackHours == 0 {
		p.CompletionSlackHours = 0.5
	}
	return p
}

// Validate checks a policy after defaults are applied
func (p Policy) Validate() error {
	if p.TargetSessions < 1 {
		return fmt.Errorf("%w: target sessions must be at least 1", ErrInvalidPreferences)
	}
	if p.MinSessionHours <= 0 || p.MaxSessionHours < p.MinSessionHours {
		return fmt.Errorf("%w: session hours must satisfy 0 < min (%v) <= max (%v)", ErrInvalidPreferences, p.MinSessionHours, p.MaxSessionHours)
	}
	if p.BufferDivisor < 1 {
		return fmt.Errorf("%w: buffer divisor must be at least 1", ErrInvalidPreferences)
	}
	if p.MinBufferDays < 0 || p.MaxBufferDays < p.MinBufferDays {
		return fmt.Errorf("%w: buffer days must satisfy 0 <= min (%d) <= max (%d)", ErrInvalidPreferences, p.MinBufferDays, p.MaxBufferDays)
	}
	if p.CompletionSlackHours < 0 {
		return fmt.Errorf("%w: completion slack cannot be negative", ErrInvalidPreferences)
	}
	return nil
}

// OptimalSessionHours targets TargetSessions equal sessions, clamped to [MinSessionHours, MaxSessionHours]
func (p Policy) OptimalSessionHours(effortHours float64) float64 {
	return clampFloat(effortHours/float64(p.TargetSessions), p.MinSessionHours, p.MaxSessionHours)
}

// NumSessions is the number of optimal-length sessions needed to cover effortHours
func (p Policy) NumSessions(effortHours, optimal float64) int {
	n := int(math.Ceil(effortHours/optimal - 1e-9))
	if n < 1 {
		n = 1
	}
	return n
}

// BufferDays is the slack reserved before the deadline
func (p Policy) BufferDays(daysUntilDue int) int {
	return clampInt(daysUntilDue/p.BufferDivisor, p.MinBufferDays, p.MaxBufferDays)
}

// DistributionDays is the number of days sessions are spread over
func (p Policy) DistributionDays(daysUntilDue int) int {
	return maxInt(daysUntilDue-p.BufferDays(daysUntilDue), 1)
}

// SessionSpacing is the number of days between successive session start-days
func (p Policy) SessionSpacing(daysUntilDue, numSessions int) int {
	if numSessions <= 1 {
		return 1
	}
	return maxInt(p.DistributionDays(daysUntilDue)/numSessions, 1)
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
