package plan

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core"
	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core/schedule"
)

var (
	ErrNotFound = errors.New("plan item not found")
	// ErrStalePlan is returned by ReplacePlan when completed items changed after the plan was computed.
	ErrStalePlan = errors.New("plan changed while it was being written")

	NowFunc = time.Now // mockable

	// DefaultPreferences apply to users who never saved study preferences.
	DefaultPreferences = schedule.Preferences{DailyStudyHours: 2}
)

// PersistenceError means a computed plan could not be written. The previous plan is unchanged.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "saving plan: " + e.Err.Error()
}

func (e *PersistenceError) Cause() error  { return e.Err }
func (e *PersistenceError) Unwrap() error { return e.Err }

func IsPersistenceError(err error) bool {
	var perr *PersistenceError
	return errors.As(err, &perr)
}

type (
	// Snapshot is everything a plan run reads for one user.
	Snapshot struct {
		Courses     []schedule.Course
		Topics      []schedule.Topic
		Preferences schedule.Preferences
		Days        []schedule.PlanDay // live plan days with their items
		Version     int                // highest plan version ever written, 0 when none
	}

	Repository interface {
		// RunInTx runs fn against a repository bound to one transaction; fn's error rolls it back.
		RunInTx(ctx context.Context, fn func(tx Repository) error) error
		// LockUser holds a transaction-scoped lock on the user's plan.
		LockUser(ctx context.Context, userID string) error

		LoadSnapshot(ctx context.Context, userID string) (Snapshot, error)
		// ReplacePlan supersedes the live days on or after from and stores days in their place.
		// Completed items move to the new day of their date. It returns days with their ids set.
		ReplacePlan(ctx context.Context, userID string, from time.Time, days []schedule.PlanDay) ([]schedule.PlanDay, error)
		QueryPlanDays(ctx context.Context, userID string, from time.Time) ([]schedule.PlanDay, error)

		// GetItem returns a live item of the user or ErrNotFound.
		GetItem(ctx context.Context, userID, itemID string) (schedule.PlanItem, error)
		SetItemCompletion(ctx context.Context, itemID string, completed bool, at *time.Time) error
		CompletedHours(ctx context.Context, userID, topicID string) (float64, error)
		GetTopic(ctx context.Context, userID, topicID string) (schedule.Topic, error)
		UpdateTopicStatus(ctx context.Context, topicID string, status schedule.TopicStatus) error

		SaveCourse(ctx context.Context, userID string, c schedule.Course) error
		SaveTopic(ctx context.Context, userID string, t schedule.Topic) error
		SavePreferences(ctx context.Context, userID string, p schedule.Preferences) error
	}

	// Outcome is a persisted plan run.
	Outcome struct {
		PlanVersion int                  `json:"plan_version"`
		Days        []schedule.PlanDay   `json:"plan_days"`
		Metrics     schedule.PlanMetrics `json:"metrics"`
	}

	ServiceInterface interface {
		Generate(ctx context.Context, userID string) (*Outcome, error)
		Recreate(ctx context.Context, userID string) (*Outcome, error)
		ToggleItemCompletion(ctx context.Context, userID, itemID string, completed bool) (schedule.PlanItem, error)
		Query(ctx context.Context, userID string, from time.Time) ([]schedule.PlanDay, error)
	}

	Service struct {
		repo   Repository
		locker core.Locker
		logger core.Logger
		opts   schedule.Options
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, locker core.Locker, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		logger: logger,
		opts:   OptionsFromConfig(conf),
	}
}

func OptionsFromConfig(conf *core.Config) schedule.Options {
	opts := schedule.DefaultOptions()
	if conf == nil {
		return opts
	}
	p := conf.Planner
	opts.MaxHorizonDays = p.MaxHorizonDays
	opts.DefaultWindowDays = p.DefaultWindowDays
	opts.MinSliceHours = p.MinSliceHours
	opts.PriorityDropPercentile = p.PriorityDropPercentile
	opts.ProximityBoost = p.ProximityBoost
	opts.CarryoverBoost = p.CarryoverBoost
	return opts
}

type runFunc func(in schedule.Input, opts schedule.Options) (*schedule.Result, error)

// Generate builds a new plan from today on.
func (svc *Service) Generate(ctx context.Context, userID string) (*Outcome, error) {
	return svc.run(ctx, userID, "generate", schedule.Generate)
}

// Recreate replans from today on, carrying missed work over with priority.
func (svc *Service) Recreate(ctx context.Context, userID string) (*Outcome, error) {
	return svc.run(ctx, userID, "recreate", schedule.Replan)
}

func (svc *Service) run(ctx context.Context, userID, op string, fn runFunc) (*Outcome, error) {
	release, err := svc.locker.Acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	today := schedule.DateOf(NowFunc().UTC())
	snap, err := svc.repo.LoadSnapshot(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "loading plan inputs")
	}
	d, err := svc.draft(fn, today, snap)
	if err != nil {
		return nil, err
	}

	var engineErr error
	var written bool
	err = svc.repo.RunInTx(ctx, func(tx Repository) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		current, err := tx.LoadSnapshot(ctx, userID)
		if err != nil {
			return err
		}
		if !sameCompletions(snap, current) {
			// an item was toggled after the snapshot was read
			svc.logger.Debug(fmt.Sprintf("%s plan: completions changed, replanning", op), core.Person{ID: userID})
			if d, engineErr = svc.draft(fn, today, current); engineErr != nil {
				return engineErr
			}
		}
		if !d.changes(current, today) {
			d.version = current.Version
			if d.res != nil {
				d.days = d.res.Days
			}
			return nil
		}

		d.version = current.Version + 1
		for i := range d.days {
			d.days[i].UserID = userID
			d.days[i].PlanVersion = d.version
		}
		days, err := tx.ReplacePlan(ctx, userID, today, d.days)
		if err != nil {
			return err
		}
		d.days, written = days, true
		return nil
	})
	if engineErr != nil {
		return nil, engineErr
	}
	if err != nil {
		svc.logger.Error(fmt.Sprintf("%s plan: %v", op, err), err, core.Person{ID: userID})
		return nil, &PersistenceError{Err: err}
	}
	if d.err != nil {
		if written {
			svc.logger.Info(fmt.Sprintf("%s plan: nothing to plan, stale days discarded", op), core.Person{ID: userID})
		}
		return nil, d.err
	}

	out := &Outcome{PlanVersion: d.version, Days: d.days, Metrics: d.res.Metrics}
	svc.logger.Info(
		fmt.Sprintf("%s plan: version %d, %d days, coverage %.2f", op, out.PlanVersion, len(out.Days), out.Metrics.CoverageRatio),
		map[string]interface{}{"warnings": len(out.Metrics.Warnings), "priority_mode": out.Metrics.IsPriorityMode, "written": written},
		core.Person{ID: userID},
	)
	return out, nil
}

// draft is a computed run waiting to be written.
type draft struct {
	res     *schedule.Result
	err     error              // *schedule.NoHorizonError, returned once stale days are discarded
	days    []schedule.PlanDay // replaces the live days from today on
	version int
}

func (svc *Service) draft(fn runFunc, today time.Time, snap Snapshot) (*draft, error) {
	res, err := fn(schedule.Input{
		Today:       today,
		Courses:     snap.Courses,
		Topics:      snap.Topics,
		Preferences: snap.Preferences,
		Existing:    snap.Days,
	}, svc.opts)
	switch {
	case schedule.IsNoHorizon(err):
		return &draft{err: err, days: completedDays(snap.Days, today)}, nil
	case err != nil:
		return nil, err
	}
	d := &draft{res: res, days: res.Days}
	if len(d.days) == 0 {
		d.days = completedDays(snap.Days, today)
	}
	return d, nil
}

// changes reports whether writing d alters the live plan. A run without new days only
// discards live days from today on that still hold work which is not completed.
func (d *draft) changes(live Snapshot, today time.Time) bool {
	if d.res != nil && len(d.res.Days) > 0 {
		return true
	}
	for _, day := range live.Days {
		if day.Date.Before(today) {
			continue
		}
		if len(day.Items) == 0 {
			return true
		}
		for _, it := range day.Items {
			if !it.IsCompleted {
				return true
			}
		}
	}
	return false
}

// completedDays keeps the completed items of the live days from today on.
func completedDays(live []schedule.PlanDay, today time.Time) []schedule.PlanDay {
	days := []schedule.PlanDay{}
	for _, d := range live {
		if d.Date.Before(today) {
			continue
		}
		kept := schedule.PlanDay{Date: d.Date, IsDayOff: d.IsDayOff, CapacityHours: d.CapacityHours}
		for _, it := range d.Items {
			if it.IsCompleted {
				it.OrderIndex = len(kept.Items)
				kept.Items = append(kept.Items, it)
			}
		}
		if len(kept.Items) > 0 {
			kept.RecomputeTotal()
			days = append(days, kept)
		}
	}
	return days
}

// sameCompletions reports whether no item completion or topic status differs between two snapshots.
func sameCompletions(a, b Snapshot) bool {
	if a.Version != b.Version {
		return false
	}
	ca, cb := completions(a), completions(b)
	if len(ca) != len(cb) {
		return false
	}
	for k, v := range ca {
		if w, ok := cb[k]; !ok || v != w {
			return false
		}
	}
	return true
}

func completions(s Snapshot) map[string]string {
	state := make(map[string]string)
	for _, d := range s.Days {
		for _, it := range d.Items {
			state["item:"+it.ID] = strconv.FormatBool(it.IsCompleted)
		}
	}
	for _, t := range s.Topics {
		state["topic:"+t.ID] = string(t.Status)
	}
	return state
}

// ToggleItemCompletion marks an item (not) completed and recomputes the status of its topic.
// It waits for a plan write of the same user to commit, not for a whole run.
func (svc *Service) ToggleItemCompletion(ctx context.Context, userID, itemID string, completed bool) (schedule.PlanItem, error) {
	var item schedule.PlanItem
	err := svc.repo.RunInTx(ctx, func(tx Repository) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		it, err := tx.GetItem(ctx, userID, itemID)
		if err != nil {
			return err
		}

		changed := it.IsCompleted != completed
		if changed {
			var at *time.Time
			if completed {
				now := NowFunc().UTC()
				at = &now
			}
			if err = tx.SetItemCompletion(ctx, itemID, completed, at); err != nil {
				return err
			}
			it.IsCompleted, it.CompletedAt = completed, at
		}
		item = it

		if it.TopicID == "" {
			return nil
		}
		topic, err := tx.GetTopic(ctx, userID, it.TopicID)
		if err != nil {
			return err
		}
		hours, err := tx.CompletedHours(ctx, userID, it.TopicID)
		if err != nil {
			return err
		}
		before := hours
		switch {
		case changed && completed:
			before -= it.Hours
		case changed:
			before += it.Hours
		}
		if status := TopicStatusFor(topic.Status, topic.EstimatedHours, before, hours); status != topic.Status {
			return tx.UpdateTopicStatus(ctx, topic.ID, status)
		}
		return nil
	})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return schedule.PlanItem{}, ErrNotFound
		}
		return schedule.PlanItem{}, &PersistenceError{Err: err}
	}
	return item, nil
}

// TopicStatusFor derives a topic status once its completed hours go from before to after.
// A topic marked done by hand, which its completions never covered, stays done.
func TopicStatusFor(current schedule.TopicStatus, estimated, before, after float64) schedule.TopicStatus {
	covered := func(h float64) bool { return h > 0 && h >= estimated-1e-9 }
	switch {
	case current == schedule.TopicDone && !covered(before):
		return schedule.TopicDone
	case covered(after):
		return schedule.TopicDone
	case after > 0:
		return schedule.TopicInProgress
	default:
		return schedule.TopicNotStarted
	}
}

// Query returns the live plan days from the given date on.
func (svc *Service) Query(ctx context.Context, userID string, from time.Time) ([]schedule.PlanDay, error) {
	days, err := svc.repo.QueryPlanDays(ctx, userID, schedule.DateOf(from))
	if err != nil {
		return nil, errors.Wrap(err, "querying plan")
	}
	return days, nil
}
