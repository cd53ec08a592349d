package schedule

import (
	"fmt"
	"time"
)

// offDayOrder is the order in which weekdays become rest days when only
// a number of study days per week is known.
var offDayOrder = []time.Weekday{
	time.Sunday, time.Saturday, time.Friday, time.Thursday, time.Wednesday, time.Tuesday, time.Monday,
}

// Horizon is the scheduling window of a run: [Start, End).
type Horizon struct {
	Start     time.Time
	End       time.Time
	Deadlines map[string]time.Time // course id -> first date the course can no longer be studied for
	Warnings  []Warning
}

// DaysLeft returns the number of days between the horizon start and the course deadline.
func (h Horizon) DaysLeft(courseID string) int {
	deadline, ok := h.Deadlines[courseID]
	if !ok {
		return 0
	}
	return DaysBetween(h.Start, deadline)
}

// BuildHorizon derives the scheduling window from the active courses. A course without an
// exam date is planned over DefaultWindowDays; every window is capped at MaxHorizonDays.
// Courses whose exam is not after today are excluded with a warning.
func BuildHorizon(today time.Time, courses []Course, opts Options) (Horizon, error) {
	opts = opts.withDefaults()
	today = DateOf(today)
	limit := today.AddDate(0, 0, opts.MaxHorizonDays)

	h := Horizon{Start: today, Deadlines: make(map[string]time.Time, len(courses))}
	var active int
	for _, c := range courses {
		if !c.IsActive() {
			continue
		}
		active++
		deadline := today.AddDate(0, 0, opts.DefaultWindowDays)
		if c.HasExam() {
			deadline = DateOf(c.ExamDate)
			if !deadline.After(today) {
				h.Warnings = append(h.Warnings, Warning{
					Code:     WarnExamPassed,
					Message:  fmt.Sprintf("the exam of %q is on %s; its topics are not planned", c.Title, deadline.Format("2006-01-02")),
					CourseID: c.ID,
				})
				continue
			}
		}
		if deadline.After(limit) {
			deadline = limit
		}
		h.Deadlines[c.ID] = deadline
		if deadline.After(h.End) {
			h.End = deadline
		}
	}

	if active == 0 {
		return h, &NoHorizonError{Reason: "no active courses"}
	}
	if len(h.Deadlines) == 0 {
		return h, &NoHorizonError{Reason: "every exam has already passed"}
	}
	return h, nil
}

// BuildCalendar expands [start, end) into day slots. Study days get the daily study hours,
// rest days and blackout dates get no capacity. The start day is never prorated.
func BuildCalendar(start, end time.Time, prefs Preferences) []CalendarDay {
	start, end = DateOf(start), DateOf(end)
	offDays := restDays(prefs)
	blackout := make(map[time.Time]bool, len(prefs.BlackoutDates))
	for _, d := range prefs.BlackoutDates {
		blackout[DateOf(d)] = true
	}

	var days []CalendarDay
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		off := offDays[d.Weekday()] || blackout[d]
		day := CalendarDay{Date: d, IsDayOff: off}
		if !off && prefs.DailyStudyHours > 0 {
			day.CapacityHours = prefs.DailyStudyHours
		}
		days = append(days, day)
	}
	return days
}

func restDays(prefs Preferences) map[time.Weekday]bool {
	off := make(map[time.Weekday]bool, 7)
	if len(prefs.DaysOff) > 0 {
		for _, wd := range prefs.DaysOff {
			off[wd] = true
		}
		return off
	}
	if n := prefs.StudyDaysPerWeek; n > 0 && n < 7 {
		for _, wd := range offDayOrder[:7-n] {
			off[wd] = true
		}
	}
	return off
}

// TotalCapacity sums the capacity of the given days.
func TotalCapacity(days []CalendarDay) float64 {
	var total float64
	for _, d := range days {
		total += d.CapacityHours
	}
	return total
}
