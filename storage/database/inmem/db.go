package inmemdb

import (
	"sync"
	"time"

	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core/schedule"
)

type (
	// DB is a process-local store. Transactions run one at a time on a copy of the tables
	// which replaces the live tables on commit.
	DB struct {
		sync.Mutex
		plan *planTables
	}

	planTables struct {
		courses map[string]courseRow
		topics  map[string]topicRow
		prefs   map[string]schedule.Preferences // user id -> preferences
		days    map[string]dayRow
		items   map[string]schedule.PlanItem
	}

	courseRow struct {
		userID string
		schedule.Course
	}

	topicRow struct {
		userID string
		schedule.Topic
	}

	dayRow struct {
		schedule.PlanDay // Items unused, items reference their day through PlanDayID
		supersededAt     *time.Time
	}
)

func Open() (*DB, error) {
	db := &DB{
		plan: &planTables{
			courses: make(map[string]courseRow),
			topics:  make(map[string]topicRow),
			prefs:   make(map[string]schedule.Preferences),
			days:    make(map[string]dayRow),
			items:   make(map[string]schedule.PlanItem),
		},
	}
	return db, nil
}

func (t *planTables) clone() *planTables {
	c := &planTables{
		courses: make(map[string]courseRow, len(t.courses)),
		topics:  make(map[string]topicRow, len(t.topics)),
		prefs:   make(map[string]schedule.Preferences, len(t.prefs)),
		days:    make(map[string]dayRow, len(t.days)),
		items:   make(map[string]schedule.PlanItem, len(t.items)),
	}
	for k, v := range t.courses {
		c.courses[k] = v
	}
	for k, v := range t.topics {
		v.PrerequisiteIDs = append([]string(nil), v.PrerequisiteIDs...)
		c.topics[k] = v
	}
	for k, v := range t.prefs {
		c.prefs[k] = v
	}
	for k, v := range t.days {
		c.days[k] = v
	}
	for k, v := range t.items {
		c.items[k] = v
	}
	return c
}
