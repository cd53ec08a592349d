package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// monday is the fixed "today" of the engine tests.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return monday.AddDate(0, 0, n) }

func TestBuildHorizon(t *testing.T) {
	tests := []struct {
		name         string
		courses      []Course
		wantEnd      time.Time
		wantDaysLeft map[string]int
		wantWarnings []WarningCode
		wantNoHoriz  bool
	}{
		{
			name:         "exam bounds the window, exam day excluded",
			courses:      []Course{{ID: "c1", ExamDate: day(5)}},
			wantEnd:      day(5),
			wantDaysLeft: map[string]int{"c1": 5},
		},
		{
			name:         "no exam date uses the default window",
			courses:      []Course{{ID: "c1"}},
			wantEnd:      day(30),
			wantDaysLeft: map[string]int{"c1": 30},
		},
		{
			name:         "window capped",
			courses:      []Course{{ID: "c1", ExamDate: day(200)}},
			wantEnd:      day(90),
			wantDaysLeft: map[string]int{"c1": 90},
		},
		{
			name:         "latest deadline wins",
			courses:      []Course{{ID: "c1", ExamDate: day(3)}, {ID: "c2", ExamDate: day(12)}},
			wantEnd:      day(12),
			wantDaysLeft: map[string]int{"c1": 3, "c2": 12},
		},
		{
			name:         "passed exam excluded",
			courses:      []Course{{ID: "c1", ExamDate: day(0)}, {ID: "c2", ExamDate: day(4)}},
			wantEnd:      day(4),
			wantDaysLeft: map[string]int{"c2": 4},
			wantWarnings: []WarningCode{WarnExamPassed},
		},
		{
			name:         "every exam passed",
			courses:      []Course{{ID: "c1", ExamDate: day(-1)}},
			wantWarnings: []WarningCode{WarnExamPassed},
			wantNoHoriz:  true,
		},
		{
			name:        "only archived courses",
			courses:     []Course{{ID: "c1", ExamDate: day(4), Status: CourseArchived}},
			wantNoHoriz: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := BuildHorizon(monday.Add(15*time.Hour), tt.courses, DefaultOptions())
			assert.Equal(t, append([]WarningCode{}, tt.wantWarnings...), warningCodes(h.Warnings))
			if tt.wantNoHoriz {
				assert.True(t, IsNoHorizon(err), "err = %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, monday, h.Start)
			assert.Equal(t, tt.wantEnd, h.End)
			assert.Len(t, h.Deadlines, len(tt.wantDaysLeft))
			for id, want := range tt.wantDaysLeft {
				assert.Equal(t, want, h.DaysLeft(id), id)
			}
		})
	}
}

func TestBuildCalendar(t *testing.T) {
	tests := []struct {
		name      string
		prefs     Preferences
		wantOff   []int // day offsets from monday that are off
		wantTotal float64
	}{
		{
			name:      "every day",
			prefs:     Preferences{DailyStudyHours: 2},
			wantTotal: 14,
		},
		{
			name:      "weekend off",
			prefs:     Preferences{DailyStudyHours: 2, DaysOff: []time.Weekday{time.Saturday, time.Sunday}},
			wantOff:   []int{5, 6},
			wantTotal: 10,
		},
		{
			name:      "study days per week",
			prefs:     Preferences{DailyStudyHours: 3, StudyDaysPerWeek: 5},
			wantOff:   []int{5, 6},
			wantTotal: 15,
		},
		{
			name:      "explicit days off win over study days per week",
			prefs:     Preferences{DailyStudyHours: 1, StudyDaysPerWeek: 3, DaysOff: []time.Weekday{time.Wednesday}},
			wantOff:   []int{2},
			wantTotal: 6,
		},
		{
			name:      "blackout date",
			prefs:     Preferences{DailyStudyHours: 2, BlackoutDates: []time.Time{day(1).Add(9 * time.Hour)}},
			wantOff:   []int{1},
			wantTotal: 12,
		},
		{
			name:      "no study hours",
			prefs:     Preferences{},
			wantTotal: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days := BuildCalendar(monday, day(7), tt.prefs)
			require.Len(t, days, 7)

			off := make(map[int]bool)
			for _, n := range tt.wantOff {
				off[n] = true
			}
			for i, d := range days {
				assert.Equal(t, day(i), d.Date)
				assert.Equal(t, off[i], d.IsDayOff, "day %d", i)
				if off[i] {
					assert.Zero(t, d.CapacityHours)
				}
			}
			assert.Equal(t, tt.wantTotal, TotalCapacity(days))
		})
	}
}

func TestBuildCalendar_EmptyRange(t *testing.T) {
	assert.Empty(t, BuildCalendar(day(3), day(3), Preferences{DailyStudyHours: 2}))
}
