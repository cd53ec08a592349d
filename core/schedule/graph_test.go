package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func topic(id string, order int, prereqs ...string) Topic {
	return Topic{
		ID:               id,
		CourseID:         "c1",
		Title:            id,
		EstimatedHours:   2,
		DifficultyWeight: 3,
		ExamImportance:   3,
		PrerequisiteIDs:  prereqs,
		OrderIndex:       order,
	}
}

func warningCodes(ws []Warning) []WarningCode {
	codes := make([]WarningCode, 0, len(ws))
	for _, w := range ws {
		codes = append(codes, w.Code)
	}
	return codes
}

func TestBuildGraph(t *testing.T) {
	tests := []struct {
		name         string
		pending      []Topic
		satisfied    map[string]bool
		wantOrder    []string
		wantPrereqs  map[string][]string
		wantWarnings []WarningCode
	}{
		{
			name:        "chain",
			pending:     []Topic{topic("c", 2, "b"), topic("a", 0), topic("b", 1, "a")},
			wantOrder:   []string{"a", "b", "c"},
			wantPrereqs: map[string][]string{"a": {}, "b": {"a"}, "c": {"b"}},
		},
		{
			name:        "ready topics in table order",
			pending:     []Topic{topic("y", 3), topic("b", 2, "a"), topic("x", 1), topic("a", 0)},
			wantOrder:   []string{"a", "x", "b", "y"},
			wantPrereqs: map[string][]string{"b": {"a"}},
		},
		{
			name:        "satisfied prerequisite dropped silently",
			pending:     []Topic{topic("b", 1, "a")},
			satisfied:   map[string]bool{"a": true},
			wantOrder:   []string{"b"},
			wantPrereqs: map[string][]string{"b": {}},
		},
		{
			name:         "unknown prerequisite",
			pending:      []Topic{topic("b", 1, "ghost")},
			wantOrder:    []string{"b"},
			wantPrereqs:  map[string][]string{"b": {}},
			wantWarnings: []WarningCode{WarnUnknownPrereq},
		},
		{
			name:        "duplicate prerequisite",
			pending:     []Topic{topic("a", 0), topic("b", 1, "a", "a")},
			wantOrder:   []string{"a", "b"},
			wantPrereqs: map[string][]string{"a": {}, "b": {"a"}},
		},
		{
			name:         "cycle broken at the closing topic",
			pending:      []Topic{topic("a", 0, "b"), topic("b", 1, "a")},
			wantOrder:    []string{"b", "a"},
			wantPrereqs:  map[string][]string{"a": {"b"}, "b": {}},
			wantWarnings: []WarningCode{WarnCycleDetected},
		},
		{
			name:         "self reference",
			pending:      []Topic{topic("a", 0, "a")},
			wantOrder:    []string{"a"},
			wantPrereqs:  map[string][]string{"a": {}},
			wantWarnings: []WarningCode{WarnCycleDetected},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := BuildGraph(tt.pending, tt.satisfied)
			require.NoError(t, err)

			var order []string
			for _, i := range g.Order() {
				order = append(order, g.Topic(i).ID)
			}
			assert.Equal(t, tt.wantOrder, order)

			for id, want := range tt.wantPrereqs {
				i, ok := g.Index(id)
				require.True(t, ok, id)
				assert.Equal(t, want, g.PrerequisiteIDs(i), id)
			}
			assert.Equal(t, append([]WarningCode{}, tt.wantWarnings...), warningCodes(g.Warnings))
		})
	}
}

func TestGraph_DepthAndClosure(t *testing.T) {
	g, err := BuildGraph([]Topic{
		topic("a", 0),
		topic("b", 1, "a"),
		topic("c", 2, "b"),
		topic("d", 3),
	}, nil)
	require.NoError(t, err)

	idx := func(id string) int {
		i, _ := g.Index(id)
		return i
	}
	assert.Equal(t, 0, g.Depth(idx("a")))
	assert.Equal(t, 1, g.Depth(idx("b")))
	assert.Equal(t, 2, g.Depth(idx("c")))
	assert.Equal(t, 0, g.Depth(idx("d")))

	closure := g.Closure([]int{idx("c")})
	assert.Len(t, closure, 3)
	assert.True(t, closure[idx("a")])
	assert.False(t, closure[idx("d")])
}
