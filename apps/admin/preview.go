package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core"
	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core/plan"
	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core/schedule"
)

// preview runs the planner on a fixture and prints the plan. Nothing is stored.
func (cli *commandLine) preview(path, today string, asJSON bool) error {
	fx, err := loadFixture(path)
	if err != nil {
		return err
	}

	day := fx.Today
	if today != "" {
		if day, err = time.Parse(core.DateLayout, today); err != nil {
			return core.NewValidationError(errors.Errorf("today must be formatted as YYYY-MM-DD (got %q)", today))
		}
	}
	if day.IsZero() {
		day = plan.NowFunc()
	}

	prefs := fx.Preferences
	if prefs.DailyStudyHours == 0 && len(prefs.DaysOff) == 0 && prefs.StudyDaysPerWeek == 0 {
		prefs = plan.DefaultPreferences
	}

	res, err := schedule.Generate(schedule.Input{
		Today:       schedule.DateOf(day),
		Courses:     fx.courses(),
		Topics:      fx.topics(),
		Preferences: prefs,
	}, plan.OptionsFromConfig(cli.conf))
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cli.out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printDays(cli.out, res.Days)
	printMetrics(cli.out, res.Metrics)
	return nil
}

func printOutcome(w io.Writer, out *plan.Outcome) {
	fmt.Fprintf(w, "plan version %d\n", out.PlanVersion)
	printDays(w, out.Days)
	printMetrics(w, out.Metrics)
}

func printDays(w io.Writer, days []schedule.PlanDay) {
	for _, d := range days {
		if d.IsDayOff {
			fmt.Fprintf(w, "%s  day off\n", d.Date.Format(core.DateLayout))
			continue
		}
		fmt.Fprintf(w, "%s  %gh / %gh\n", d.Date.Format(core.DateLayout), d.TotalHours, d.CapacityHours)
		for _, it := range d.Items {
			mark := " "
			if it.IsCompleted {
				mark = "x"
			}
			codes := make([]string, 0, len(it.ReasonCodes))
			for _, c := range it.ReasonCodes {
				codes = append(codes, string(c))
			}
			fmt.Fprintf(w, "  [%s] %s/%s %gh %s\n", mark, it.CourseID, it.TopicID, it.Hours, strings.Join(codes, ","))
		}
	}
}

func printMetrics(w io.Writer, m schedule.PlanMetrics) {
	fmt.Fprintf(w, "coverage %.2f (%gh required, %gh available), workload %s",
		m.CoverageRatio, m.TotalRequiredHours, m.TotalAvailableHours, m.WorkloadIntensity)
	if m.IsPriorityMode {
		fmt.Fprint(w, ", priority mode")
	}
	fmt.Fprintf(w, "\ntopics scheduled %d/%d\n", m.TopicsScheduled, m.TopicsTotal)
	for _, warn := range m.Warnings {
		fmt.Fprintf(w, "warning %s: %s\n", warn.Code, warn.Message)
	}
	for _, u := range m.Unscheduled {
		fmt.Fprintf(w, "unscheduled %s/%s %gh (%s)\n", u.CourseID, u.TopicID, u.Hours, u.Reason)
	}
}
