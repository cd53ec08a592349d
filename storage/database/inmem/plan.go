package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core/plan"
	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core/schedule"
)

var errTopicNotFound = errors.New("topic not found")

type planRepository struct {
	db *DB
	tx *planTables // set inside RunInTx
}

var _ plan.Repository = (*planRepository)(nil) // interface compliance check

func NewPlanRepository(db *DB) plan.Repository {
	return &planRepository{db: db}
}

// with runs fn on the tables of the current transaction, or on the live tables under the DB lock.
func (repo *planRepository) with(fn func(t *planTables) error) error {
	if repo.tx != nil {
		return fn(repo.tx)
	}
	repo.db.Lock()
	defer repo.db.Unlock()
	return fn(repo.db.plan)
}

func (repo *planRepository) RunInTx(ctx context.Context, fn func(tx plan.Repository) error) error {
	if repo.tx != nil {
		return fn(repo)
	}
	repo.db.Lock()
	defer repo.db.Unlock()

	tables := repo.db.plan.clone()
	if err := fn(&planRepository{db: repo.db, tx: tables}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	repo.db.plan = tables
	return nil
}

// LockUser is a no-op: transactions are already serialized by the DB lock.
func (repo *planRepository) LockUser(context.Context, string) error { return nil }

func (t *planTables) liveDays(userID string, from time.Time) []schedule.PlanDay {
	var days []schedule.PlanDay
	for _, d := range t.days {
		if d.UserID == userID && d.supersededAt == nil && !d.Date.Before(from) {
			days = append(days, d.PlanDay)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })

	index := make(map[string]int, len(days))
	for i := range days {
		days[i].Items = []schedule.PlanItem{}
		index[days[i].ID] = i
	}
	for _, it := range t.items {
		if i, ok := index[it.PlanDayID]; ok {
			days[i].Items = append(days[i].Items, it)
		}
	}
	for i := range days {
		items := days[i].Items
		sort.Slice(items, func(a, b int) bool { return items[a].OrderIndex < items[b].OrderIndex })
	}
	return days
}

func (repo *planRepository) LoadSnapshot(ctx context.Context, userID string) (plan.Snapshot, error) {
	var snap plan.Snapshot
	err := repo.with(func(t *planTables) error {
		for _, c := range t.courses {
			if c.userID == userID {
				snap.Courses = append(snap.Courses, c.Course)
			}
		}
		sort.Slice(snap.Courses, func(i, j int) bool { return snap.Courses[i].ID < snap.Courses[j].ID })

		for _, tp := range t.topics {
			if tp.userID == userID {
				snap.Topics = append(snap.Topics, tp.Topic)
			}
		}
		sort.Slice(snap.Topics, func(i, j int) bool {
			if snap.Topics[i].OrderIndex != snap.Topics[j].OrderIndex {
				return snap.Topics[i].OrderIndex < snap.Topics[j].OrderIndex
			}
			return snap.Topics[i].ID < snap.Topics[j].ID
		})

		snap.Preferences = plan.DefaultPreferences
		if p, ok := t.prefs[userID]; ok {
			snap.Preferences = p
		}

		snap.Days = t.liveDays(userID, time.Time{})
		for _, d := range t.days {
			if d.UserID == userID && d.PlanVersion > snap.Version {
				snap.Version = d.PlanVersion
			}
		}
		return nil
	})
	return snap, err
}

func (repo *planRepository) ReplacePlan(ctx context.Context, userID string, from time.Time, days []schedule.PlanDay) ([]schedule.PlanDay, error) {
	out := make([]schedule.PlanDay, 0, len(days))
	err := repo.with(func(t *planTables) error {
		now := plan.NowFunc().UTC()

		superseded := make(map[string]bool)
		for id, d := range t.days {
			if d.UserID == userID && d.supersededAt == nil && !d.Date.Before(from) {
				d.supersededAt = &now
				t.days[id] = d
				superseded[id] = true
			}
		}
		for id, it := range t.items {
			if superseded[it.PlanDayID] && !it.IsCompleted {
				delete(t.items, id)
			}
		}

		for _, d := range days {
			day := d
			day.ID = uuid.New().String()
			day.UserID = userID
			day.Items = make([]schedule.PlanItem, 0, len(d.Items))
			t.days[day.ID] = dayRow{PlanDay: schedule.PlanDay{
				ID:            day.ID,
				UserID:        userID,
				Date:          day.Date,
				IsDayOff:      day.IsDayOff,
				CapacityHours: day.CapacityHours,
				TotalHours:    day.TotalHours,
				PlanVersion:   day.PlanVersion,
			}}

			for _, it := range d.Items {
				if it.ID != "" && it.IsCompleted {
					cur, ok := t.items[it.ID]
					if !ok || !cur.IsCompleted || !superseded[cur.PlanDayID] {
						return errors.Wrapf(plan.ErrStalePlan, "completed item %s", it.ID)
					}
					cur.OrderIndex = it.OrderIndex
					it = cur
				} else {
					it.ID = uuid.New().String()
				}
				it.PlanDayID = day.ID
				t.items[it.ID] = it
				day.Items = append(day.Items, it)
			}
			out = append(out, day)
		}

		for _, it := range t.items {
			if superseded[it.PlanDayID] {
				return errors.Wrapf(plan.ErrStalePlan, "completed item %s left out", it.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (repo *planRepository) QueryPlanDays(ctx context.Context, userID string, from time.Time) ([]schedule.PlanDay, error) {
	var days []schedule.PlanDay
	err := repo.with(func(t *planTables) error {
		days = t.liveDays(userID, from)
		return nil
	})
	if days == nil {
		days = []schedule.PlanDay{}
	}
	return days, err
}

func (repo *planRepository) GetItem(ctx context.Context, userID, itemID string) (schedule.PlanItem, error) {
	var item schedule.PlanItem
	err := repo.with(func(t *planTables) error {
		it, ok := t.items[itemID]
		if !ok {
			return plan.ErrNotFound
		}
		d, ok := t.days[it.PlanDayID]
		if !ok || d.UserID != userID || d.supersededAt != nil {
			return plan.ErrNotFound
		}
		item = it
		return nil
	})
	return item, err
}

func (repo *planRepository) SetItemCompletion(ctx context.Context, itemID string, completed bool, at *time.Time) error {
	return repo.with(func(t *planTables) error {
		it, ok := t.items[itemID]
		if !ok {
			return plan.ErrNotFound
		}
		it.IsCompleted, it.CompletedAt = completed, at
		t.items[itemID] = it
		return nil
	})
}

func (repo *planRepository) CompletedHours(ctx context.Context, userID, topicID string) (float64, error) {
	var hours float64
	err := repo.with(func(t *planTables) error {
		for _, it := range t.items {
			if it.TopicID != topicID || !it.IsCompleted {
				continue
			}
			if d, ok := t.days[it.PlanDayID]; ok && d.UserID == userID {
				hours += it.Hours
			}
		}
		return nil
	})
	return hours, err
}

func (repo *planRepository) GetTopic(ctx context.Context, userID, topicID string) (schedule.Topic, error) {
	var topic schedule.Topic
	err := repo.with(func(t *planTables) error {
		row, ok := t.topics[topicID]
		if !ok || row.userID != userID {
			return errTopicNotFound
		}
		topic = row.Topic
		return nil
	})
	return topic, err
}

func (repo *planRepository) UpdateTopicStatus(ctx context.Context, topicID string, status schedule.TopicStatus) error {
	return repo.with(func(t *planTables) error {
		row, ok := t.topics[topicID]
		if !ok {
			return errTopicNotFound
		}
		row.Status = status
		t.topics[topicID] = row
		return nil
	})
}

func (repo *planRepository) SaveCourse(ctx context.Context, userID string, c schedule.Course) error {
	if c.Status == "" {
		c.Status = schedule.CourseActive
	}
	return repo.with(func(t *planTables) error {
		t.courses[c.ID] = courseRow{userID: userID, Course: c}
		return nil
	})
}

func (repo *planRepository) SaveTopic(ctx context.Context, userID string, tp schedule.Topic) error {
	if tp.Status == "" {
		tp.Status = schedule.TopicNotStarted
	}
	return repo.with(func(t *planTables) error {
		tp.PrerequisiteIDs = append([]string(nil), tp.PrerequisiteIDs...)
		t.topics[tp.ID] = topicRow{userID: userID, Topic: tp}
		return nil
	})
}

func (repo *planRepository) SavePreferences(ctx context.Context, userID string, p schedule.Preferences) error {
	return repo.with(func(t *planTables) error {
		t.prefs[userID] = p
		return nil
	})
}
