package schedule

import (
	"math"
	"time"
)

const epsilon = 1e-9

// Options tunes the engine. Unset fields fall back to DefaultOptions,
// except ProximityBoost where zero disables the proximity boost.
type Options struct {
	MaxHorizonDays         int
	DefaultWindowDays      int
	MinSliceHours          float64
	PriorityDropPercentile float64
	ProximityBoost         float64
	CarryoverBoost         float64
	HighWeightThreshold    int // base weight from which HIGH_EXAM_WEIGHT is reported
	ProximityAlertDays     int // EXAM_PROXIMITY is reported within this many days of the exam
}

func DefaultOptions() Options {
	return Options{
		MaxHorizonDays:         90,
		DefaultWindowDays:      30,
		MinSliceHours:          0.25,
		PriorityDropPercentile: 0.2,
		ProximityBoost:         7,
		CarryoverBoost:         1.5,
		HighWeightThreshold:    16,
		ProximityAlertDays:     7,
	}
}

// withDefaults fills unset fields so a partially filled Options stays usable.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxHorizonDays <= 0 {
		o.MaxHorizonDays = def.MaxHorizonDays
	}
	if o.DefaultWindowDays <= 0 {
		o.DefaultWindowDays = def.DefaultWindowDays
	}
	if o.MinSliceHours <= 0 {
		o.MinSliceHours = def.MinSliceHours
	}
	if o.PriorityDropPercentile <= 0 || o.PriorityDropPercentile >= 1 {
		o.PriorityDropPercentile = def.PriorityDropPercentile
	}
	if o.ProximityBoost < 0 {
		o.ProximityBoost = def.ProximityBoost
	}
	if o.CarryoverBoost <= 1 {
		o.CarryoverBoost = def.CarryoverBoost
	}
	if o.HighWeightThreshold <= 0 {
		o.HighWeightThreshold = def.HighWeightThreshold
	}
	if o.ProximityAlertDays <= 0 {
		o.ProximityAlertDays = def.ProximityAlertDays
	}
	return o
}

// DateOf truncates t to its calendar date (UTC midnight).
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(math.Round(DateOf(b).Sub(DateOf(a)).Hours() / 24))
}

func roundHours(h float64) float64 {
	return math.Round(h*1e6) / 1e6
}
