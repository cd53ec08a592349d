package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	opts := DefaultOptions()
	tp := Topic{DifficultyWeight: 3, ExamImportance: 4}

	tests := []struct {
		name     string
		daysLeft int
		boost    float64
		want     float64
	}{
		{name: "far exam", daysLeft: 70, boost: 7, want: 12 * 1.1},
		{name: "close exam", daysLeft: 7, boost: 7, want: 24},
		{name: "deadline clamped to one day", daysLeft: 0, boost: 7, want: 96},
		{name: "boost disabled", daysLeft: 3, boost: 0, want: 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts.ProximityBoost = tt.boost
			assert.InDelta(t, tt.want, Score(tp, tt.daysLeft, opts), 1e-9)
		})
	}
}

func TestScore_CloserExamOutranksEqualTopic(t *testing.T) {
	opts := DefaultOptions()
	tp := Topic{DifficultyWeight: 2, ExamImportance: 2}
	assert.Greater(t, Score(tp, 5, opts), Score(tp, 40, opts))
	assert.Greater(t, carryoverScore(tp, 40, opts), Score(tp, 40, opts))
}

func TestRanksBefore(t *testing.T) {
	a := &unit{topic: Topic{ID: "a", OrderIndex: 2}, rank: 10}
	b := &unit{topic: Topic{ID: "b", OrderIndex: 1}, rank: 10}
	c := &unit{topic: Topic{ID: "c", OrderIndex: 1}, rank: 10}
	carry := &unit{topic: Topic{ID: "z", OrderIndex: 9}, rank: 10, carryover: true}
	high := &unit{topic: Topic{ID: "y", OrderIndex: 9}, rank: 11}

	assert.True(t, ranksBefore(high, carry), "rank first")
	assert.True(t, ranksBefore(carry, b), "carryover before fresh")
	assert.True(t, ranksBefore(b, a), "order index")
	assert.True(t, ranksBefore(b, c), "topic id")
	assert.False(t, ranksBefore(c, b))
}
