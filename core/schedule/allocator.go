package schedule

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Input is everything a run needs. Today is explicit, the engine never reads the clock.
type Input struct {
	Today       time.Time
	Courses     []Course
	Topics      []Topic
	Preferences Preferences
	Existing    []PlanDay // the live plan; its history and completed items are preserved
}

// unit is an allocatable amount of hours of one topic. A topic has at most one
// fresh unit and one carryover unit (missed hours of a replan).
type unit struct {
	topic     Topic
	node      int // graph index
	carryover bool
	hours     float64
	remaining float64
	score     float64
	rank      float64 // score raised to the highest score depending on the topic
	deadline  int // index of the first day the unit can no longer be placed on
	dropped   bool
	readyDay  int
	firstDay  int
}

type placement struct {
	unit  *unit
	hours float64
	cont  bool
}

// allocator holds the state of one run.
type allocator struct {
	opts     Options
	today    time.Time
	horizon  Horizon
	days     []CalendarDay
	capLeft  []float64
	graph    *Graph
	units    []*unit // ranked
	pending  []float64
	lastDay  []int
	placed   [][]placement
	priority bool
	warnings []Warning
}

// Generate builds a fresh plan for [today, horizon end). Past days of the existing plan are
// left alone, completed items are kept, and hours of missed items go back into the
// fresh pool of their topic.
func Generate(in Input, opts Options) (*Result, error) {
	t := tallyExisting(in)
	return plan(in, t, false, opts)
}

func plan(in Input, t tally, carry bool, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	today := DateOf(in.Today)

	horizon, err := BuildHorizon(today, in.Courses, opts)
	if err != nil {
		if carry && t.missedTotal() > epsilon {
			return unrecoverable(t, horizon.Warnings, in.Topics), nil
		}
		return nil, err
	}

	a := &allocator{opts: opts, today: today, horizon: horizon}
	a.warnings = append(a.warnings, horizon.Warnings...)

	end := horizon.End
	if t.lastKept.After(end) || t.lastKept.Equal(end) {
		end = t.lastKept.AddDate(0, 0, 1)
	}
	a.days = BuildCalendar(today, end, in.Preferences)
	a.capLeft = make([]float64, len(a.days))
	for i, d := range a.days {
		a.capLeft[i] = math.Max(0, d.CapacityHours-t.keptHours[d.Date])
	}

	invalid, err := a.buildUnits(in, t, carry)
	if err != nil {
		return nil, err
	}
	if len(a.units) == 0 {
		return nil, &NoHorizonError{Reason: "no pending study hours"}
	}

	required, available := a.totals()
	coverage := available / required
	if coverage < 1 {
		a.enterPriorityMode()
	}
	a.checkFeasibility()
	a.allocate()

	res := &Result{Days: a.planDays(in, t)}
	res.Metrics = a.metrics(required, available, coverage, invalid)
	return res, nil
}

// buildUnits validates topics, builds the prerequisite graph and ranks the allocatable units.
// It returns the number of topics excluded as invalid.
func (a *allocator) buildUnits(in Input, t tally, carry bool) (int, error) {
	satisfied := make(map[string]bool)
	var pending []Topic
	fresh := make(map[string]float64)
	missed := make(map[string]float64)
	var invalid int

	for _, tp := range in.Topics {
		if tp.IsDone() {
			satisfied[tp.ID] = true
			continue
		}
		if _, ok := a.horizon.Deadlines[tp.CourseID]; !ok {
			if carry && t.missed[tp.ID] > epsilon && !courseIsArchived(in.Courses, tp.CourseID) {
				a.warnings = append(a.warnings, Warning{
					Code:     WarnUnrecoverable,
					Message:  fmt.Sprintf("%.2fh missed on %q cannot be rescheduled before the exam", t.missed[tp.ID], tp.Title),
					TopicID:  tp.ID,
					CourseID: tp.CourseID,
				})
			}
			continue
		}
		if vErr := validateTopic(tp); vErr != nil {
			invalid++
			a.warnings = append(a.warnings, warningFromValidation(vErr, tp.CourseID))
			continue
		}

		left := tp.EstimatedHours - t.completed[tp.ID]
		if carry {
			left -= t.missed[tp.ID]
			if m := t.missed[tp.ID]; m > epsilon {
				missed[tp.ID] = roundHours(m)
			}
		}
		if left > epsilon {
			fresh[tp.ID] = roundHours(left)
		}
		if fresh[tp.ID] <= epsilon && missed[tp.ID] <= epsilon {
			satisfied[tp.ID] = true
			continue
		}
		pending = append(pending, tp)
	}

	g, err := BuildGraph(pending, satisfied)
	if err != nil {
		return invalid, err
	}
	a.graph = g
	a.warnings = append(a.warnings, g.Warnings...)

	a.pending = make([]float64, g.Len())
	a.lastDay = make([]int, g.Len())
	for i := 0; i < g.Len(); i++ {
		tp := g.Topic(i)
		a.lastDay[i] = -1
		daysLeft := a.horizon.DaysLeft(tp.CourseID)
		deadline := DaysBetween(a.today, a.horizon.Deadlines[tp.CourseID])
		if h := missed[tp.ID]; h > 0 {
			a.units = append(a.units, &unit{
				topic: tp, node: i, carryover: true, hours: h, remaining: h,
				score: carryoverScore(tp, daysLeft, a.opts), deadline: deadline, readyDay: -1, firstDay: -1,
			})
			a.pending[i] += h
		}
		if h := fresh[tp.ID]; h > 0 {
			a.units = append(a.units, &unit{
				topic: tp, node: i, hours: h, remaining: h,
				score: Score(tp, daysLeft, a.opts), deadline: deadline, readyDay: -1, firstDay: -1,
			})
			a.pending[i] += h
		}
	}
	a.inheritRanks()
	sort.SliceStable(a.units, func(i, j int) bool { return ranksBefore(a.units[i], a.units[j]) })
	return invalid, nil
}

// inheritRanks lifts every prerequisite to the rank of its most urgent dependent,
// so a high priority topic is not starved by its own low priority prerequisites.
func (a *allocator) inheritRanks() {
	rank := make([]float64, a.graph.Len())
	for _, u := range a.units {
		if u.score > rank[u.node] {
			rank[u.node] = u.score
		}
	}
	order := a.graph.Order()
	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]
		for _, p := range a.graph.Prerequisites(node) {
			if rank[node] > rank[p] {
				rank[p] = rank[node]
			}
		}
	}
	for _, u := range a.units {
		u.rank = math.Max(u.score, rank[u.node])
	}
}

func validateTopic(tp Topic) *ValidationError {
	if err := validate.Struct(tp); err != nil {
		vErr := &ValidationError{TopicID: tp.ID}
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				vErr.Fields = append(vErr.Fields, fe.Field())
			}
		} else {
			vErr.Reason = err.Error()
		}
		return vErr
	}
	return nil
}

func courseIsArchived(courses []Course, id string) bool {
	for _, c := range courses {
		if c.ID == id {
			return !c.IsActive()
		}
	}
	return false
}

func (a *allocator) totals() (required, available float64) {
	for _, u := range a.units {
		required += u.hours
	}
	last := DaysBetween(a.today, a.horizon.End)
	for d, c := range a.capLeft {
		if d < last {
			available += c
		}
	}
	return roundHours(required), roundHours(available)
}

// enterPriorityMode drops the topics whose fresh score falls below the configured
// percentile. Missed work and prerequisites of kept topics are never dropped.
func (a *allocator) enterPriorityMode() {
	a.priority = true

	protected := make(map[int]bool)
	var scores []float64
	freshScore := make(map[int]float64)
	for _, u := range a.units {
		if u.carryover {
			protected[u.node] = true
			continue
		}
		freshScore[u.node] = u.score
		scores = append(scores, u.score)
	}
	sort.Float64s(scores)
	k := int(math.Floor(float64(len(scores)) * a.opts.PriorityDropPercentile))
	if k == 0 {
		return
	}
	threshold := scores[k]

	drop := make(map[int]bool)
	var kept []int
	for node := 0; node < a.graph.Len(); node++ {
		if s, ok := freshScore[node]; ok && s < threshold && !protected[node] {
			drop[node] = true
			continue
		}
		kept = append(kept, node)
	}
	for node := range a.graph.Closure(kept) {
		delete(drop, node)
	}
	for _, u := range a.units {
		if drop[u.node] {
			u.dropped = true
		}
	}
}

// checkFeasibility reports topics whose prerequisite chain needs more study days
// than remain before their course deadline.
func (a *allocator) checkFeasibility() {
	for _, node := range a.graph.Order() {
		depth := a.graph.Depth(node)
		if depth == 0 {
			continue
		}
		tp := a.graph.Topic(node)
		deadline := DaysBetween(a.today, a.horizon.Deadlines[tp.CourseID])
		var studyDays int
		for d := 0; d < deadline && d < len(a.days); d++ {
			if a.capLeft[d] > epsilon {
				studyDays++
			}
		}
		if depth >= studyDays {
			a.warnings = append(a.warnings, Warning{
				Code:     WarnPrereqChainTooLong,
				Message:  fmt.Sprintf("%q needs %d earlier study days for its prerequisites but only %d remain", tp.Title, depth, studyDays),
				TopicID:  tp.ID,
				CourseID: tp.CourseID,
			})
		}
	}
}

// ready reports whether every gating prerequisite of node is fully placed before day d.
func (a *allocator) ready(node, d int) bool {
	for _, p := range a.graph.Prerequisites(node) {
		if a.pending[p] > epsilon || a.lastDay[p] >= d {
			return false
		}
	}
	return true
}

func (a *allocator) eligible(u *unit, d int) bool {
	return !u.dropped && u.remaining > epsilon && d < u.deadline && a.ready(u.node, d)
}

func (a *allocator) allocate() {
	a.placed = make([][]placement, len(a.days))
	for d := range a.days {
		capLeft := a.capLeft[d]
		if capLeft <= epsilon {
			continue
		}
		for _, u := range a.units {
			if u.readyDay < 0 && a.eligible(u, d) {
				u.readyDay = d
			}
		}

		deferred := make(map[*unit]bool)
		for capLeft > epsilon {
			u := a.pick(d, deferred)
			if u == nil {
				break
			}
			hours := a.slice(u, capLeft)
			if hours <= 0 {
				deferred[u] = true
				continue
			}
			split := hours < u.remaining-epsilon
			a.place(u, d, hours)
			capLeft = roundHours(capLeft - hours)
			if split {
				deferred[u] = true
			}
		}
		a.capLeft[d] = capLeft
	}
}

func (a *allocator) pick(d int, deferred map[*unit]bool) *unit {
	for _, u := range a.units {
		if !deferred[u] && a.eligible(u, d) {
			return u
		}
	}
	return nil
}

// slice returns how many hours of u fit into capLeft. Splits never produce slices,
// or leave remainders, smaller than MinSliceHours; 0 defers the unit to the next day.
func (a *allocator) slice(u *unit, capLeft float64) float64 {
	hours := math.Min(capLeft, u.remaining)
	if hours >= u.remaining-epsilon {
		return u.remaining
	}
	minSlice := a.opts.MinSliceHours
	if hours < minSlice-epsilon {
		return 0
	}
	if u.remaining-hours < minSlice-epsilon {
		hours = u.remaining - minSlice
		if hours < minSlice-epsilon {
			return 0
		}
	}
	return roundHours(hours)
}

func (a *allocator) place(u *unit, d int, hours float64) {
	cont := u.firstDay >= 0
	if !cont {
		u.firstDay = d
	}
	u.remaining = roundHours(u.remaining - hours)
	a.pending[u.node] = roundHours(a.pending[u.node] - hours)
	a.lastDay[u.node] = d
	a.placed[d] = append(a.placed[d], placement{unit: u, hours: hours, cont: cont})
}

func (a *allocator) planDays(in Input, t tally) []PlanDay {
	actx := AllocationContext{
		Today:          a.today,
		Courses:        make(map[string]Course, len(in.Courses)),
		Prereqs:        make(map[string][]string, a.graph.Len()),
		CompletedHours: t.completed,
		Options:        a.opts,
	}
	for _, c := range in.Courses {
		actx.Courses[c.ID] = c
	}
	for i := 0; i < a.graph.Len(); i++ {
		actx.Prereqs[a.graph.Topic(i).ID] = a.graph.PrerequisiteIDs(i)
	}

	days := make([]PlanDay, 0, len(a.days))
	for d, cd := range a.days {
		day := PlanDay{Date: cd.Date, IsDayOff: cd.IsDayOff, CapacityHours: cd.CapacityHours}
		day.Items = append(day.Items, t.kept[cd.Date]...)
		for _, p := range a.placed[d] {
			pl := Placement{
				Carryover:    p.unit.carryover,
				Continuation: p.cont,
				Score:        p.unit.score,
				PriorityMode: a.priority,
			}
			if p.unit.readyDay >= 0 && !p.cont {
				pl.ReadyDate = a.days[p.unit.readyDay].Date
			}
			item := PlanItem{CourseID: p.unit.topic.CourseID, TopicID: p.unit.topic.ID, Hours: p.hours}
			item.Explanation = Explain(item, p.unit.topic, day, pl, actx)
			day.Items = append(day.Items, item)
		}
		for i := range day.Items {
			day.Items[i].OrderIndex = i
		}
		day.RecomputeTotal()
		days = append(days, day)
	}
	return days
}

func (a *allocator) metrics(required, available, coverage float64, invalid int) PlanMetrics {
	m := PlanMetrics{
		CoverageRatio:       coverage,
		TotalRequiredHours:  required,
		TotalAvailableHours: available,
		WorkloadIntensity:   intensity(coverage),
		IsPriorityMode:      a.priority,
		TopicsTotal:         a.graph.Len() + invalid,
		Warnings:            append([]Warning{}, a.warnings...),
		Unscheduled:         []Unscheduled{},
	}

	scheduled := make(map[int]bool)
	var dropped, carriedLeft int
	var partial bool
	for _, u := range a.units {
		if u.firstDay >= 0 {
			scheduled[u.node] = true
		}
		if u.remaining <= epsilon {
			continue
		}
		partial = true
		un := Unscheduled{TopicID: u.topic.ID, CourseID: u.topic.CourseID, Hours: u.remaining}
		switch {
		case u.dropped:
			un.Reason = CauseDroppedByPriority
			dropped++
		case u.carryover:
			un.Reason = CauseMissedCarryover
			carriedLeft++
			m.Warnings = append(m.Warnings, Warning{
				Code:     WarnUnrecoverable,
				Message:  fmt.Sprintf("%.2fh missed on %q do not fit before the exam", u.remaining, u.topic.Title),
				TopicID:  u.topic.ID,
				CourseID: u.topic.CourseID,
			})
		case u.readyDay < 0 && len(a.graph.Prerequisites(u.node)) > 0:
			un.Reason = CauseBlocked
		default:
			un.Reason = CauseNoCapacity
		}
		m.Unscheduled = append(m.Unscheduled, un)
	}
	m.TopicsScheduled = len(scheduled)

	if available <= epsilon {
		m.Warnings = append(m.Warnings, Warning{Code: WarnNoStudyDays, Message: "no study time is available before the exams"})
	}
	if a.priority {
		m.Warnings = append(m.Warnings,
			Warning{Code: WarnOverloaded, Message: fmt.Sprintf("%.1fh of study needed but only %.1fh available", required, available)},
			Warning{Code: WarnPriorityMode, Message: "only the highest priority topics are planned"},
		)
	}
	if dropped > 0 {
		m.Warnings = append(m.Warnings, Warning{
			Code:    WarnTopicsDropped,
			Message: fmt.Sprintf("%d lower priority topics were left out of the plan", dropped),
		})
	}
	if partial {
		m.Warnings = append(m.Warnings, Warning{
			Code:    WarnPartialCoverage,
			Message: fmt.Sprintf("%d of %d topics are planned", m.TopicsScheduled, m.TopicsTotal),
		})
	}
	return m
}

func intensity(coverage float64) WorkloadIntensity {
	switch {
	case coverage >= 1.5:
		return WorkloadLight
	case coverage >= 1.15:
		return WorkloadBalanced
	case coverage >= 1:
		return WorkloadHeavy
	default:
		return WorkloadOverloaded
	}
}
