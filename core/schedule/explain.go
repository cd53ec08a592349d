package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Placement describes how the allocator placed one item.
type Placement struct {
	Carryover    bool
	Continuation bool      // the item continues a topic that was split over several days
	ReadyDate    time.Time // first day the item could have been placed on, zero when unknown
	Score        float64
	PriorityMode bool
}

// AllocationContext is the run-wide state explanations are derived from.
type AllocationContext struct {
	Today          time.Time
	Courses        map[string]Course
	Prereqs        map[string][]string // topic id -> prerequisite ids that gated it
	CompletedHours map[string]float64  // topic id -> hours completed at planning time
	Options        Options
}

// Explain derives the explanation of an item. It has no side effects.
func Explain(item PlanItem, topic Topic, day PlanDay, pl Placement, actx AllocationContext) Explanation {
	opts := actx.Options.withDefaults()
	ex := Explanation{
		PrereqTopicIDs:  []string{},
		YieldWeight:     roundHours(pl.Score),
		MasterySnapshot: mastery(topic, actx.CompletedHours[topic.ID]),
	}
	var parts []string

	if pl.Carryover {
		ex.ReasonCodes = append(ex.ReasonCodes, ReasonMissedCarryover)
		parts = append(parts, "catches up on hours missed earlier")
	}
	if ids := actx.Prereqs[topic.ID]; len(ids) > 0 {
		ex.PrereqTopicIDs = append(ex.PrereqTopicIDs, ids...)
		ex.ReasonCodes = append(ex.ReasonCodes, ReasonPrereqSatisfied)
		parts = append(parts, fmt.Sprintf("its %d prerequisite(s) are covered on earlier days", len(ids)))
	}
	if BaseWeight(topic) >= opts.HighWeightThreshold || topic.ExamImportance >= 5 {
		ex.ReasonCodes = append(ex.ReasonCodes, ReasonHighExamWeight)
		parts = append(parts, fmt.Sprintf("it weighs heavily on the exam (difficulty %d, importance %d)", topic.DifficultyWeight, topic.ExamImportance))
	}
	if course, ok := actx.Courses[item.CourseID]; ok && course.HasExam() {
		days := DaysBetween(day.Date, course.ExamDate)
		ex.ExamProximityDays = &days
		if days <= opts.ProximityAlertDays {
			ex.ReasonCodes = append(ex.ReasonCodes, ReasonExamProximity)
			parts = append(parts, fmt.Sprintf("the exam is %d day(s) away", days))
		}
	}
	if !pl.Continuation && !pl.ReadyDate.IsZero() && DateOf(day.Date).After(DateOf(pl.ReadyDate)) {
		shift := DaysBetween(pl.ReadyDate, day.Date)
		ex.ReasonCodes = append(ex.ReasonCodes, ReasonLoadBalanced)
		ex.LoadBalanceNote = fmt.Sprintf("could start on %s, moved %d day(s) later because higher priority topics filled the earlier days",
			DateOf(pl.ReadyDate).Format("2006-01-02"), shift)
		parts = append(parts, "it was moved later to keep daily load within capacity")
	}
	if pl.Continuation {
		ex.ReasonCodes = append(ex.ReasonCodes, ReasonSplitContinuation)
		parts = append(parts, "it continues a session from a previous day")
	}
	if pl.PriorityMode {
		ex.ReasonCodes = append(ex.ReasonCodes, ReasonPriorityMode)
		parts = append(parts, "only high priority topics fit before the exams")
	}

	title := topic.Title
	if title == "" {
		title = topic.ID
	}
	ex.Summary = fmt.Sprintf("%s of %q", formatHours(item.Hours), title)
	if len(parts) > 0 {
		ex.Summary += ": " + strings.Join(parts, "; ")
	}
	if ex.ReasonCodes == nil {
		ex.ReasonCodes = []ReasonCode{}
	}
	return ex
}

func mastery(t Topic, completed float64) float64 {
	if t.EstimatedHours <= 0 {
		return 0
	}
	m := completed / t.EstimatedHours
	if m > 1 {
		m = 1
	}
	return roundHours(m)
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64) + "h"
}
