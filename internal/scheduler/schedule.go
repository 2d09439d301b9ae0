package scheduler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Schedule re-plans one user's timeline on a cron expression
type Schedule struct {
	// ID is a unique identifier for the schedule
	ID string `yaml:"id"`

	// UserID is the user whose latest plan is regenerated
	UserID string `yaml:"user_id"`

	// Cron expression (standard 5-field: minute hour day month weekday)
	// Examples:
	//   "0 6 * * *"    - Every day at 06:00
	//   "0 */4 * * *"  - Every 4 hours
	//   "30 7 * * 1-5" - Weekdays at 07:30
	Cron string `yaml:"cron"`

	// Timezone for cron evaluation (default: UTC)
	Timezone string `yaml:"timezone"`

	// Enabled flag (allows disabling without removing)
	Enabled bool `yaml:"enabled"`

	Description string `yaml:"description"`
}

// ScheduleState is the runtime state of a schedule, shared by all scheduler instances through Redis
type ScheduleState struct {
	ID          string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	LastError   string
	LastSuccess time.Time
}

var scheduleFields = map[string]bool{
	"id": true, "user_id": true, "cron": true, "timezone": true, "enabled": true, "description": true,
}

// UnmarshalYAML decodes a schedule, treating a missing enabled key as true.
// Unknown keys are rejected here since node.Decode does not inherit the outer decoder's KnownFields.
func (s *Schedule) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if !scheduleFields[key.Value] {
				return fmt.Errorf("line %d: unknown schedule field %q", key.Line, key.Value)
			}
		}
	}
	type plain Schedule
	decoded := plain{Enabled: true}
	if err := node.Decode(&decoded); err != nil {
		return err
	}
	*s = Schedule(decoded)
	return nil
}

// LoadSchedules reads schedules from a YAML file of the form
//
//	schedules:
//	  - id: alice-morning
//	    user_id: alice
//	    cron: "0 6 * * *"
//	    timezone: Europe/Berlin
func LoadSchedules(path string) ([]*Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedules file: %w", err)
	}

	var doc struct {
		Schedules []*Schedule `yaml:"schedules"`
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse schedules file %s: %w", path, err)
	}
	for i, s := range doc.Schedules {
		if s == nil {
			return nil, fmt.Errorf("schedules file %s: entry %d is empty", path, i)
		}
	}
	return doc.Schedules, nil
}
