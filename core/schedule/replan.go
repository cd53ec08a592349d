package schedule

import (
	"fmt"
	"sort"
	"time"
)

// tally summarizes the existing plan relative to today.
type tally struct {
	completed map[string]float64         // topic id -> completed hours on any date
	missed    map[string]float64         // topic id -> hours of past items that were not completed
	kept      map[time.Time][]PlanItem   // completed items on or after today
	keptHours map[time.Time]float64
	lastKept  time.Time
}

func (t tally) missedTotal() float64 {
	var total float64
	for _, h := range t.missed {
		total += h
	}
	return total
}

func tallyExisting(in Input) tally {
	today := DateOf(in.Today)
	done := make(map[string]bool, len(in.Topics))
	for _, tp := range in.Topics {
		if tp.IsDone() {
			done[tp.ID] = true
		}
	}

	t := tally{
		completed: make(map[string]float64),
		missed:    make(map[string]float64),
		kept:      make(map[time.Time][]PlanItem),
		keptHours: make(map[time.Time]float64),
	}
	for _, day := range in.Existing {
		date := DateOf(day.Date)
		for _, it := range day.Items {
			switch {
			case it.IsCompleted:
				if it.TopicID != "" {
					t.completed[it.TopicID] += it.Hours
				}
				if !date.Before(today) {
					t.kept[date] = append(t.kept[date], it)
					t.keptHours[date] += it.Hours
					if date.After(t.lastKept) {
						t.lastKept = date
					}
				}
			case date.Before(today) && it.TopicID != "" && !done[it.TopicID]:
				t.missed[it.TopicID] += it.Hours
			}
		}
	}
	// A missed item stays on its past day after its hours are carried over, so the
	// carried copy can be missed again. Missed work never exceeds what is left of a topic.
	for _, tp := range in.Topics {
		m, ok := t.missed[tp.ID]
		if !ok {
			continue
		}
		if left := tp.EstimatedHours - t.completed[tp.ID]; m > left {
			m = left
		}
		if m > epsilon {
			t.missed[tp.ID] = m
		} else {
			delete(t.missed, tp.ID)
		}
	}
	for date := range t.kept {
		items := t.kept[date]
		sort.SliceStable(items, func(i, j int) bool { return items[i].OrderIndex < items[j].OrderIndex })
	}
	return t
}

// Replan rebuilds the plan from today on. Hours of past items that were not completed
// become carryover units that rank above fresh work; completed items keep their day
// and their id. Past days are never touched.
//
// When missed hours cannot be placed before their exam, the result carries an
// UNRECOVERABLE_MISSED_HOURS warning instead of an error.
func Replan(in Input, opts Options) (*Result, error) {
	t := tallyExisting(in)
	return plan(in, t, true, opts)
}

// unrecoverable is the result of a replan with missed work but no horizon left to place it in.
func unrecoverable(t tally, warnings []Warning, topics []Topic) *Result {
	byID := make(map[string]Topic, len(topics))
	for _, tp := range topics {
		byID[tp.ID] = tp
	}
	ids := make([]string, 0, len(t.missed))
	for id := range t.missed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	m := PlanMetrics{
		TotalRequiredHours: roundHours(t.missedTotal()),
		WorkloadIntensity:  WorkloadOverloaded,
		Warnings:           append([]Warning(nil), warnings...),
		Unscheduled:        []Unscheduled{},
	}
	for _, id := range ids {
		tp := byID[id]
		h := roundHours(t.missed[id])
		m.TopicsTotal++
		m.Warnings = append(m.Warnings, Warning{
			Code:     WarnUnrecoverable,
			Message:  fmt.Sprintf("%.2fh missed on %q cannot be rescheduled", h, tp.Title),
			TopicID:  id,
			CourseID: tp.CourseID,
		})
		m.Unscheduled = append(m.Unscheduled, Unscheduled{TopicID: id, CourseID: tp.CourseID, Hours: h, Reason: CauseMissedCarryover})
	}
	m.Warnings = append(m.Warnings, Warning{Code: WarnNoStudyDays, Message: "no study time is left before the exams"})
	return &Result{Days: []PlanDay{}, Metrics: m}
}
