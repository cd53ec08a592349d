package schedule

import (
	"time"
)

type TopicStatus string

const (
	TopicNotStarted TopicStatus = "not_started"
	TopicInProgress TopicStatus = "in_progress"
	TopicDone       TopicStatus = "done"
)

type CourseStatus string

const (
	CourseActive   CourseStatus = "active"
	CourseArchived CourseStatus = "archived"
)

// Topic is a gradeable unit of course content with an effort estimate and a prerequisite set.
type Topic struct {
	ID               string      `json:"id" yaml:"id" validate:"required"`
	CourseID         string      `json:"course_id" yaml:"course_id" validate:"required"`
	Title            string      `json:"title" yaml:"title"`
	EstimatedHours   float64     `json:"estimated_hours" yaml:"estimated_hours" validate:"gt=0"`
	DifficultyWeight int         `json:"difficulty_weight" yaml:"difficulty_weight" validate:"min=1,max=5"`
	ExamImportance   int         `json:"exam_importance" yaml:"exam_importance" validate:"min=1,max=5"`
	PrerequisiteIDs  []string    `json:"prerequisite_ids" yaml:"prerequisite_ids"`
	Status           TopicStatus `json:"status" yaml:"status" validate:"omitempty,oneof=not_started in_progress done"`
	OrderIndex       int         `json:"order_index" yaml:"order_index"`
}

func (t Topic) IsDone() bool { return t.Status == TopicDone }

type Course struct {
	ID       string       `json:"id" yaml:"id"`
	Title    string       `json:"title" yaml:"title"`
	ExamDate time.Time    `json:"exam_date" yaml:"exam_date"` // zero when the course has no exam date
	Status   CourseStatus `json:"status" yaml:"status"`
}

func (c Course) HasExam() bool  { return !c.ExamDate.IsZero() }
func (c Course) IsActive() bool { return c.Status == "" || c.Status == CourseActive }

// Preferences is the user's study-preference record.
type Preferences struct {
	DailyStudyHours  float64        `json:"daily_study_hours" yaml:"daily_study_hours" validate:"gte=0,lte=24"`
	DaysOff          []time.Weekday `json:"days_off" yaml:"days_off" validate:"dive,min=0,max=6"`
	StudyDaysPerWeek int            `json:"study_days_per_week" yaml:"study_days_per_week" validate:"min=0,max=7"`
	BlackoutDates    []time.Time    `json:"blackout_dates" yaml:"blackout_dates"`
}

type CalendarDay struct {
	Date          time.Time `json:"date"`
	IsDayOff      bool      `json:"is_day_off"`
	CapacityHours float64   `json:"capacity_hours"`
}

type PlanDay struct {
	ID            string     `json:"id,omitempty"`
	UserID        string     `json:"user_id,omitempty"`
	Date          time.Time  `json:"date"`
	IsDayOff      bool       `json:"is_day_off"`
	CapacityHours float64    `json:"capacity_hours"`
	TotalHours    float64    `json:"total_hours"`
	PlanVersion   int        `json:"plan_version"`
	Items         []PlanItem `json:"items"`
}

// RecomputeTotal sets TotalHours to the sum of the day's item hours.
func (d *PlanDay) RecomputeTotal() {
	var total float64
	for _, it := range d.Items {
		total += it.Hours
	}
	d.TotalHours = roundHours(total)
}

type PlanItem struct {
	ID          string     `json:"id,omitempty"`
	PlanDayID   string     `json:"plan_day_id,omitempty"`
	CourseID    string     `json:"course_id"`
	TopicID     string     `json:"topic_id,omitempty"` // empty for generic review time
	Hours       float64    `json:"hours"`
	OrderIndex  int        `json:"order_index"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Explanation
}

// Explanation is the persisted justification of a placed item.
type Explanation struct {
	ReasonCodes       []ReasonCode `json:"reason_codes"`
	ExamProximityDays *int         `json:"exam_proximity_days,omitempty"`
	LoadBalanceNote   string       `json:"load_balance_note,omitempty"`
	PrereqTopicIDs    []string     `json:"prereq_topic_ids"`
	YieldWeight       float64      `json:"yield_weight"`
	MasterySnapshot   float64      `json:"mastery_snapshot"`
	Summary           string       `json:"summary,omitempty"`
}

type WorkloadIntensity string

const (
	WorkloadLight      WorkloadIntensity = "light"
	WorkloadBalanced   WorkloadIntensity = "balanced"
	WorkloadHeavy      WorkloadIntensity = "heavy"
	WorkloadOverloaded WorkloadIntensity = "overloaded"
)

type PlanMetrics struct {
	CoverageRatio       float64           `json:"coverage_ratio"`
	TotalRequiredHours  float64           `json:"total_required_hours"`
	TotalAvailableHours float64           `json:"total_available_hours"`
	WorkloadIntensity   WorkloadIntensity `json:"workload_intensity"`
	IsPriorityMode      bool              `json:"is_priority_mode"`
	TopicsScheduled     int               `json:"topics_scheduled"`
	TopicsTotal         int               `json:"topics_total"`
	Warnings            []Warning         `json:"warnings"`
	Unscheduled         []Unscheduled     `json:"unscheduled"`
}

// Unscheduled reports pending hours of a topic that did not make it into the plan.
type Unscheduled struct {
	TopicID  string           `json:"topic_id"`
	CourseID string           `json:"course_id"`
	Hours    float64          `json:"hours"`
	Reason   UnscheduledCause `json:"reason"`
}

type UnscheduledCause string

const (
	CauseDroppedByPriority UnscheduledCause = "dropped_by_priority"
	CauseNoCapacity        UnscheduledCause = "no_capacity"
	CauseBlocked           UnscheduledCause = "blocked_by_prerequisites"
	CauseMissedCarryover   UnscheduledCause = "missed_carryover"
)

// Result is the outcome of a generation or replan run.
type Result struct {
	Days    []PlanDay   `json:"plan_days"`
	Metrics PlanMetrics `json:"metrics"`
}

// Items returns all plan items of the result in day order.
func (r *Result) Items() []PlanItem {
	var items []PlanItem
	for _, d := range r.Days {
		items = append(items, d.Items...)
	}
	return items
}
