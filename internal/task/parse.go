package task

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// dateLayouts are tried in order when parsing due dates
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDueDate parses an ISO-8601 due date. Date-only and zone-less values are interpreted in loc.
func ParseDueDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("due date is empty")
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range dateLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339Nano {
			t, err = time.Parse(layout, value)
		} else {
			t, err = time.ParseInLocation(layout, value, loc)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid due date %q: expected YYYY-MM-DD or RFC 3339", value)
}

// Input is the document accepted by the CLI and the HTTP API
type Input struct {
	UserID        string          `json:"user_id"`
	Tasks         []Task          `json:"tasks"`
	BusyIntervals []BusyInterval  `json:"busy_intervals"`
	Preferences   json.RawMessage `json:"preferences,omitempty"`
}

// DecodeInput reads an Input document from r. Tasks without an ID receive a generated one.
func DecodeInput(r io.Reader) (*Input, error) {
	var in Input
	dec := json.NewDecoder(r)
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}
	in.AssignIDs()
	return &in, nil
}

// AssignIDs fills in missing task IDs
func (in *Input) AssignIDs() {
	for i := range in.Tasks {
		if in.Tasks[i].ID == "" {
			in.Tasks[i].ID = uuid.New().String()
		}
	}
}
