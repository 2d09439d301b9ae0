package timeline

import (
	"math"
	"sort"
	"time"

	"github.com/muaviaUsmani/studyplan/internal/task"
)

// Priority weights
const (
	urgencyWeight = 0.6
	weightWeight  = 0.3
	effortWeight  = 0.1
)

// RankedTask is a task with its parsed due date and priority score
type RankedTask struct {
	Task  *task.Task
	Due   time.Time
	Score float64
	// DueErr is set when the due date could not be parsed. Such tasks score 0.
	DueErr error
}

// PriorityScore combines urgency, grade weight and effort into one score.
// Higher is more urgent. Days until due are whole days from now, floored, and never negative.
func PriorityScore(t *task.Task, due, now time.Time) float64 {
	days := math.Floor(due.Sub(now).Hours() / 24)
	if days < 0 {
		days = 0
	}
	urgency := 100 / (days + 1)
	weightScore := t.EffectiveWeight() * 3
	effortScore := t.EffortHours * 0.5

	return urgency*urgencyWeight + weightScore*weightWeight + effortScore*effortWeight
}

// Prioritize parses due dates in now's location, scores each task and returns them
// highest score first. Ties keep input order.
func Prioritize(tasks []task.Task, now time.Time) []RankedTask {
	ranked := make([]RankedTask, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		due, err := task.ParseDueDate(t.DueDate, now.Location())
		r := RankedTask{Task: t, Due: due, DueErr: err}
		if err == nil {
			r.Score = PriorityScore(t, due, now)
		}
		ranked[i] = r
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Score > ranked[b].Score
	})
	return ranked
}
