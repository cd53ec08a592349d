package schedule

// BaseWeight is difficulty times exam importance (1..25).
func BaseWeight(t Topic) int {
	return t.DifficultyWeight * t.ExamImportance
}

// Score is the scheduling weight of a topic whose course deadline is daysLeft days away.
// Courses closer to their exam get a larger boost so they are interleaved with, and not
// starved by, courses whose exam is far away. The score is only a sort key.
func Score(t Topic, daysLeft int, opts Options) float64 {
	if daysLeft < 1 {
		daysLeft = 1
	}
	return float64(BaseWeight(t)) * (1 + opts.ProximityBoost/float64(daysLeft))
}

// carryoverScore ranks missed work above fresh work of the same priority.
func carryoverScore(t Topic, daysLeft int, opts Options) float64 {
	return Score(t, daysLeft, opts) * opts.CarryoverBoost
}

// ranksBefore reports whether unit a is picked before unit b when both are ready.
// Units are ordered by rank; ties are broken by carryover first, then order index, then topic id.
func ranksBefore(a, b *unit) bool {
	if a.rank != b.rank {
		return a.rank > b.rank
	}
	if a.carryover != b.carryover {
		return a.carryover
	}
	if a.topic.OrderIndex != b.topic.OrderIndex {
		return a.topic.OrderIndex < b.topic.OrderIndex
	}
	return a.topic.ID < b.topic.ID
}
