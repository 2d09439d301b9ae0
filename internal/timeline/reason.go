package timeline

import (
	"fmt"
	"strings"

	"github.com/muaviaUsmani/studyplan/internal/task"
)

const reasonSeparator = " • "

// significantWeight is the grade share from which the weight is mentioned in a rationale
const significantWeight = 20.0

// buildReason explains a placed session. daysLeft counts calendar days from the session day to the due day.
func buildReason(t *task.Task, daysLeft, session, total int, catchUp bool) string {
	var parts []string

	switch {
	case daysLeft <= 0:
		parts = append(parts, "Due today")
	case daysLeft == 1:
		parts = append(parts, "Due tomorrow")
	case daysLeft <= 3:
		parts = append(parts, fmt.Sprintf("Due in %d days", daysLeft))
	}

	if t.Weight != nil && *t.Weight >= significantWeight {
		parts = append(parts, fmt.Sprintf("%g%% of grade", *t.Weight))
	}

	if catchUp {
		parts = append(parts, "Catch-up session")
		return strings.Join(parts, reasonSeparator)
	}

	if total > 1 {
		parts = append(parts, fmt.Sprintf("Session %d/%d", session, total))
		if session == total {
			parts = append(parts, "Final review")
		}
	} else {
		parts = append(parts, "Single session")
	}
	return strings.Join(parts, reasonSeparator)
}
