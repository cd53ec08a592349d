package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExplain(t *testing.T) {
	actx := AllocationContext{
		Today:          monday,
		Courses:        map[string]Course{"c1": {ID: "c1", ExamDate: day(10)}, "c2": {ID: "c2"}},
		Prereqs:        map[string][]string{"b": {"a"}},
		CompletedHours: map[string]float64{"b": 1},
		Options:        DefaultOptions(),
	}
	heavy := Topic{ID: "h", CourseID: "c1", Title: "Heavy", EstimatedHours: 4, DifficultyWeight: 5, ExamImportance: 4}
	withPrereq := Topic{ID: "b", CourseID: "c1", Title: "Bridges", EstimatedHours: 4, DifficultyWeight: 2, ExamImportance: 2}
	noExam := Topic{ID: "n", CourseID: "c2", Title: "Notes", EstimatedHours: 2, DifficultyWeight: 1, ExamImportance: 1}

	tests := []struct {
		name      string
		topic     Topic
		day       int
		pl        Placement
		wantCodes []ReasonCode
		wantDays  *int
	}{
		{
			name:      "high weight, far from the exam",
			topic:     heavy,
			day:       0,
			pl:        Placement{Score: 20},
			wantCodes: []ReasonCode{ReasonHighExamWeight},
			wantDays:  intPtr(10),
		},
		{
			name:      "prerequisites covered, close to the exam",
			topic:     withPrereq,
			day:       4,
			pl:        Placement{Score: 4},
			wantCodes: []ReasonCode{ReasonPrereqSatisfied, ReasonExamProximity},
			wantDays:  intPtr(6),
		},
		{
			name:      "moved later",
			topic:     noExam,
			day:       3,
			pl:        Placement{Score: 1, ReadyDate: day(1)},
			wantCodes: []ReasonCode{ReasonLoadBalanced},
		},
		{
			name:      "continuation in priority mode",
			topic:     noExam,
			day:       3,
			pl:        Placement{Score: 1, Continuation: true, ReadyDate: day(1), PriorityMode: true},
			wantCodes: []ReasonCode{ReasonSplitContinuation, ReasonPriorityMode},
		},
		{
			name:      "carryover",
			topic:     noExam,
			day:       0,
			pl:        Placement{Score: 1.5, Carryover: true},
			wantCodes: []ReasonCode{ReasonMissedCarryover},
		},
		{
			name:      "nothing notable",
			topic:     noExam,
			day:       0,
			pl:        Placement{Score: 1},
			wantCodes: []ReasonCode{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := PlanItem{CourseID: tt.topic.CourseID, TopicID: tt.topic.ID, Hours: 1.5}
			ex := Explain(item, tt.topic, PlanDay{Date: day(tt.day)}, tt.pl, actx)

			assert.Equal(t, tt.wantCodes, ex.ReasonCodes)
			assert.Equal(t, tt.wantDays, ex.ExamProximityDays)
			assert.Equal(t, tt.pl.Score, ex.YieldWeight)
			assert.Contains(t, ex.Summary, "1.5h of \""+tt.topic.Title+"\"")
			if hasCode(ex.ReasonCodes, ReasonLoadBalanced) {
				assert.Contains(t, ex.LoadBalanceNote, day(1).Format("2006-01-02"))
			} else {
				assert.Empty(t, ex.LoadBalanceNote)
			}
		})
	}
}

func TestExplain_MasterySnapshot(t *testing.T) {
	tp := Topic{ID: "b", CourseID: "c1", EstimatedHours: 4, DifficultyWeight: 2, ExamImportance: 2}
	tests := []struct {
		name      string
		completed float64
		want      float64
	}{
		{name: "fresh", completed: 0, want: 0},
		{name: "partial", completed: 1, want: 0.25},
		{name: "over-completed", completed: 6, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actx := AllocationContext{CompletedHours: map[string]float64{"b": tt.completed}}
			ex := Explain(PlanItem{CourseID: "c1", TopicID: "b", Hours: 1}, tp, PlanDay{Date: monday}, Placement{}, actx)
			assert.Equal(t, tt.want, ex.MasterySnapshot)
			assert.Equal(t, []string{}, ex.PrereqTopicIDs)
		})
	}
}

func intPtr(n int) *int { return &n }

func hasCode(codes []ReasonCode, code ReasonCode) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
