package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core"
	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core/plan"
	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core/schedule"
)

const lockNamespace = "plan"

var errTopicNotFound = errors.New("topic not found")

type (
	courseRow struct {
		ID       string    `db:"id"`
		Title    string    `db:"title"`
		ExamDate null.Time `db:"exam_date"`
		Status   string    `db:"status"`
	}

	topicRow struct {
		ID               string         `db:"id"`
		CourseID         string         `db:"course_id"`
		Title            string         `db:"title"`
		EstimatedHours   float64        `db:"estimated_hours"`
		DifficultyWeight int            `db:"difficulty_weight"`
		ExamImportance   int            `db:"exam_importance"`
		PrerequisiteIDs  pq.StringArray `db:"prerequisite_ids"`
		Status           string         `db:"status"`
		OrderIndex       int            `db:"order_index"`
	}

	prefsRow struct {
		DailyStudyHours  float64        `db:"daily_study_hours"`
		DaysOff          pq.Int64Array  `db:"days_off"`
		StudyDaysPerWeek int            `db:"study_days_per_week"`
		BlackoutDates    pq.StringArray `db:"blackout_dates"`
	}

	dayRow struct {
		ID            string    `db:"id"`
		UserID        string    `db:"user_id"`
		Date          time.Time `db:"date"`
		IsDayOff      bool      `db:"is_day_off"`
		CapacityHours float64   `db:"capacity_hours"`
		TotalHours    float64   `db:"total_hours"`
		PlanVersion   int       `db:"plan_version"`
	}

	itemRow struct {
		ID          string         `db:"id"`
		PlanDayID   string         `db:"plan_day_id"`
		UserID      string         `db:"user_id"`
		CourseID    string         `db:"course_id"`
		TopicID     null.String    `db:"topic_id"`
		Hours       float64        `db:"hours"`
		OrderIndex  int            `db:"order_index"`
		IsCompleted bool           `db:"is_completed"`
		CompletedAt null.Time      `db:"completed_at"`
		Explanation types.JSONText `db:"explanation"`
	}
)

func (r courseRow) course() schedule.Course {
	c := schedule.Course{ID: r.ID, Title: r.Title, Status: schedule.CourseStatus(r.Status)}
	if r.ExamDate.Valid {
		c.ExamDate = schedule.DateOf(r.ExamDate.Time)
	}
	return c
}

func (r topicRow) topic() schedule.Topic {
	return schedule.Topic{
		ID:               r.ID,
		CourseID:         r.CourseID,
		Title:            r.Title,
		EstimatedHours:   r.EstimatedHours,
		DifficultyWeight: r.DifficultyWeight,
		ExamImportance:   r.ExamImportance,
		PrerequisiteIDs:  []string(r.PrerequisiteIDs),
		Status:           schedule.TopicStatus(r.Status),
		OrderIndex:       r.OrderIndex,
	}
}

func (r prefsRow) preferences() schedule.Preferences {
	p := schedule.Preferences{DailyStudyHours: r.DailyStudyHours, StudyDaysPerWeek: r.StudyDaysPerWeek}
	for _, wd := range r.DaysOff {
		p.DaysOff = append(p.DaysOff, time.Weekday(wd))
	}
	for _, s := range r.BlackoutDates {
		if d, err := time.Parse(core.DateLayout, s); err == nil {
			p.BlackoutDates = append(p.BlackoutDates, d)
		}
	}
	return p
}

func (r dayRow) day() schedule.PlanDay {
	return schedule.PlanDay{
		ID:            r.ID,
		UserID:        r.UserID,
		Date:          schedule.DateOf(r.Date),
		IsDayOff:      r.IsDayOff,
		CapacityHours: r.CapacityHours,
		TotalHours:    r.TotalHours,
		PlanVersion:   r.PlanVersion,
		Items:         []schedule.PlanItem{},
	}
}

func (r itemRow) item() (schedule.PlanItem, error) {
	it := schedule.PlanItem{
		ID:          r.ID,
		PlanDayID:   r.PlanDayID,
		CourseID:    r.CourseID,
		TopicID:     r.TopicID.String,
		Hours:       r.Hours,
		OrderIndex:  r.OrderIndex,
		IsCompleted: r.IsCompleted,
		CompletedAt: r.CompletedAt.Ptr(),
	}
	if len(r.Explanation) > 0 {
		if err := r.Explanation.Unmarshal(&it.Explanation); err != nil {
			return it, errors.Wrap(err, "decoding item explanation")
		}
	}
	return it, nil
}

func newItemRow(userID, dayID string, it schedule.PlanItem) (itemRow, error) {
	ex, err := json.Marshal(it.Explanation)
	if err != nil {
		return itemRow{}, errors.Wrap(err, "encoding item explanation")
	}
	return itemRow{
		ID:          it.ID,
		PlanDayID:   dayID,
		UserID:      userID,
		CourseID:    it.CourseID,
		TopicID:     null.NewString(it.TopicID, it.TopicID != ""),
		Hours:       it.Hours,
		OrderIndex:  it.OrderIndex,
		IsCompleted: it.IsCompleted,
		CompletedAt: null.TimeFromPtr(it.CompletedAt),
		Explanation: types.JSONText(ex),
	}, nil
}

type planRepository struct {
	db   core.DB // nil inside a transaction
	exec core.DBExecutor
}

var _ plan.Repository = (*planRepository)(nil) // interface compliance check

func NewPlanRepository(db core.DB) plan.Repository {
	return &planRepository{db: db, exec: db}
}

func (repo *planRepository) RunInTx(ctx context.Context, fn func(tx plan.Repository) error) (err error) {
	if repo.db == nil {
		return fn(repo)
	}
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&planRepository{exec: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

// dbError wraps err. Postgres internal errors (class XX, data or index corruption)
// become shutdown errors.
func dbError(err error, msg string) error {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code.Class() == "XX" {
		return core.NewShutdownError(fmt.Sprintf("%s: %s (%s)", msg, pqErr.Message, pqErr.Code.Name()))
	}
	return errors.Wrap(err, msg)
}

// advisoryKey64 maps a namespaced id onto the bigint key space of postgres advisory locks.
func advisoryKey64(namespace, id string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(namespace))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(id))
	return int64(h.Sum64())
}

func (repo *planRepository) LockUser(ctx context.Context, userID string) error {
	if _, err := repo.exec.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryKey64(lockNamespace, userID)); err != nil {
		return errors.Wrap(err, "locking user plan")
	}
	return nil
}

func (repo *planRepository) LoadSnapshot(ctx context.Context, userID string) (plan.Snapshot, error) {
	var snap plan.Snapshot

	var courses []courseRow
	if err := repo.exec.SelectContext(ctx, &courses,
		`SELECT id, title, exam_date, status FROM courses WHERE user_id = $1 ORDER BY id`, userID); err != nil {
		return snap, errors.Wrap(err, "selecting courses")
	}
	for _, c := range courses {
		snap.Courses = append(snap.Courses, c.course())
	}

	var topics []topicRow
	if err := repo.exec.SelectContext(ctx, &topics,
		`SELECT id, course_id, title, estimated_hours, difficulty_weight, exam_importance, prerequisite_ids, status, order_index
		FROM topics WHERE user_id = $1 ORDER BY order_index, id`, userID); err != nil {
		return snap, errors.Wrap(err, "selecting topics")
	}
	for _, t := range topics {
		snap.Topics = append(snap.Topics, t.topic())
	}

	var prefs prefsRow
	err := repo.exec.GetContext(ctx, &prefs,
		`SELECT daily_study_hours, days_off, study_days_per_week, blackout_dates FROM study_preferences WHERE user_id = $1`, userID)
	switch {
	case err == sql.ErrNoRows:
		snap.Preferences = plan.DefaultPreferences
	case err != nil:
		return snap, errors.Wrap(err, "selecting study preferences")
	default:
		snap.Preferences = prefs.preferences()
	}

	if snap.Days, err = repo.liveDays(ctx, userID, time.Time{}); err != nil {
		return snap, err
	}

	if err = repo.exec.GetContext(ctx, &snap.Version,
		`SELECT COALESCE(MAX(plan_version), 0) FROM plan_days WHERE user_id = $1`, userID); err != nil {
		return snap, errors.Wrap(err, "selecting plan version")
	}
	return snap, nil
}

func (repo *planRepository) liveDays(ctx context.Context, userID string, from time.Time) ([]schedule.PlanDay, error) {
	var dayRows []dayRow
	if err := repo.exec.SelectContext(ctx, &dayRows,
		`SELECT id, user_id, date, is_day_off, capacity_hours, total_hours, plan_version
		FROM plan_days WHERE user_id = $1 AND date >= $2 AND superseded_at IS NULL ORDER BY date`, userID, from); err != nil {
		return nil, errors.Wrap(err, "selecting plan days")
	}

	var itemRows []itemRow
	if err := repo.exec.SelectContext(ctx, &itemRows,
		`SELECT i.id, i.plan_day_id, i.user_id, i.course_id, i.topic_id, i.hours, i.order_index, i.is_completed, i.completed_at, i.explanation
		FROM plan_items i JOIN plan_days d ON d.id = i.plan_day_id
		WHERE d.user_id = $1 AND d.date >= $2 AND d.superseded_at IS NULL
		ORDER BY d.date, i.order_index`, userID, from); err != nil {
		return nil, errors.Wrap(err, "selecting plan items")
	}

	days := make([]schedule.PlanDay, 0, len(dayRows))
	index := make(map[string]int, len(dayRows))
	for i, r := range dayRows {
		days = append(days, r.day())
		index[r.ID] = i
	}
	for _, r := range itemRows {
		it, err := r.item()
		if err != nil {
			return nil, err
		}
		if i, ok := index[r.PlanDayID]; ok {
			days[i].Items = append(days[i].Items, it)
		}
	}
	return days, nil
}

const (
	insertDaySQL = `INSERT INTO plan_days (id, user_id, date, is_day_off, capacity_hours, total_hours, plan_version)
		VALUES (:id, :user_id, :date, :is_day_off, :capacity_hours, :total_hours, :plan_version)`
	insertItemSQL = `INSERT INTO plan_items (id, plan_day_id, user_id, course_id, topic_id, hours, order_index, is_completed, completed_at, explanation)
		VALUES (:id, :plan_day_id, :user_id, :course_id, :topic_id, :hours, :order_index, :is_completed, :completed_at, :explanation)`
)

func (repo *planRepository) ReplacePlan(ctx context.Context, userID string, from time.Time, days []schedule.PlanDay) ([]schedule.PlanDay, error) {
	now := plan.NowFunc().UTC()

	var superseded []string
	if err := repo.exec.SelectContext(ctx, &superseded,
		`UPDATE plan_days SET superseded_at = $3
		WHERE user_id = $1 AND date >= $2 AND superseded_at IS NULL RETURNING id`, userID, from, now); err != nil {
		return nil, dbError(err, "superseding plan days")
	}
	if len(superseded) > 0 {
		if _, err := repo.exec.ExecContext(ctx,
			`DELETE FROM plan_items WHERE plan_day_id = ANY($1) AND NOT is_completed`, pq.Array(superseded)); err != nil {
			return nil, dbError(err, "deleting superseded plan items")
		}
	}

	out := make([]schedule.PlanDay, 0, len(days))
	for _, d := range days {
		day := d
		day.ID = uuid.New().String()
		day.UserID = userID
		day.Items = make([]schedule.PlanItem, 0, len(d.Items))

		if _, err := sqlx.NamedExecContext(ctx, repo.exec, insertDaySQL, dayRow{
			ID:            day.ID,
			UserID:        userID,
			Date:          day.Date,
			IsDayOff:      day.IsDayOff,
			CapacityHours: day.CapacityHours,
			TotalHours:    day.TotalHours,
			PlanVersion:   day.PlanVersion,
		}); err != nil {
			return nil, dbError(err, "inserting plan day "+day.Date.Format(core.DateLayout))
		}

		for _, it := range d.Items {
			if it.ID != "" && it.IsCompleted {
				if err := repo.moveCompletedItem(ctx, userID, day.ID, superseded, it); err != nil {
					return nil, err
				}
			} else {
				it.ID = uuid.New().String()
				row, err := newItemRow(userID, day.ID, it)
				if err != nil {
					return nil, err
				}
				if _, err = sqlx.NamedExecContext(ctx, repo.exec, insertItemSQL, row); err != nil {
					return nil, dbError(err, "inserting plan item")
				}
			}
			it.PlanDayID = day.ID
			day.Items = append(day.Items, it)
		}
		out = append(out, day)
	}

	if len(superseded) > 0 {
		var left int
		if err := repo.exec.GetContext(ctx, &left,
			`SELECT count(*) FROM plan_items WHERE plan_day_id = ANY($1)`, pq.Array(superseded)); err != nil {
			return nil, errors.Wrap(err, "counting superseded plan items")
		}
		if left > 0 {
			return nil, errors.Wrapf(plan.ErrStalePlan, "%d completed items left out", left)
		}
	}
	return out, nil
}

// moveCompletedItem attaches a completed item of a superseded day to its new day.
func (repo *planRepository) moveCompletedItem(ctx context.Context, userID, dayID string, superseded []string, it schedule.PlanItem) error {
	res, err := repo.exec.ExecContext(ctx,
		`UPDATE plan_items SET plan_day_id = $1, order_index = $2
		WHERE id = $3 AND user_id = $4 AND is_completed AND plan_day_id = ANY($5)`,
		dayID, it.OrderIndex, it.ID, userID, pq.Array(superseded))
	if err != nil {
		return dbError(err, "moving completed plan item")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "moving completed plan item")
	}
	if n == 0 {
		return errors.Wrapf(plan.ErrStalePlan, "completed item %s", it.ID)
	}
	return nil
}

func (repo *planRepository) QueryPlanDays(ctx context.Context, userID string, from time.Time) ([]schedule.PlanDay, error) {
	return repo.liveDays(ctx, userID, from)
}

func (repo *planRepository) GetItem(ctx context.Context, userID, itemID string) (schedule.PlanItem, error) {
	if _, err := uuid.Parse(itemID); err != nil {
		return schedule.PlanItem{}, plan.ErrNotFound
	}
	var row itemRow
	err := repo.exec.GetContext(ctx, &row,
		`SELECT i.id, i.plan_day_id, i.user_id, i.course_id, i.topic_id, i.hours, i.order_index, i.is_completed, i.completed_at, i.explanation
		FROM plan_items i JOIN plan_days d ON d.id = i.plan_day_id
		WHERE i.id = $1 AND d.user_id = $2 AND d.superseded_at IS NULL`, itemID, userID)
	if err == sql.ErrNoRows {
		return schedule.PlanItem{}, plan.ErrNotFound
	}
	if err != nil {
		return schedule.PlanItem{}, errors.Wrap(err, "selecting plan item")
	}
	return row.item()
}

func (repo *planRepository) SetItemCompletion(ctx context.Context, itemID string, completed bool, at *time.Time) error {
	if _, err := repo.exec.ExecContext(ctx,
		`UPDATE plan_items SET is_completed = $2, completed_at = $3 WHERE id = $1`,
		itemID, completed, null.TimeFromPtr(at)); err != nil {
		return dbError(err, "updating plan item")
	}
	return nil
}

func (repo *planRepository) CompletedHours(ctx context.Context, userID, topicID string) (float64, error) {
	var hours float64
	if err := repo.exec.GetContext(ctx, &hours,
		`SELECT COALESCE(SUM(hours), 0) FROM plan_items WHERE user_id = $1 AND topic_id = $2 AND is_completed`,
		userID, topicID); err != nil {
		return 0, errors.Wrap(err, "summing completed hours")
	}
	return hours, nil
}

func (repo *planRepository) GetTopic(ctx context.Context, userID, topicID string) (schedule.Topic, error) {
	var row topicRow
	err := repo.exec.GetContext(ctx, &row,
		`SELECT id, course_id, title, estimated_hours, difficulty_weight, exam_importance, prerequisite_ids, status, order_index
		FROM topics WHERE id = $1 AND user_id = $2`, topicID, userID)
	if err == sql.ErrNoRows {
		return schedule.Topic{}, errTopicNotFound
	}
	if err != nil {
		return schedule.Topic{}, errors.Wrap(err, "selecting topic")
	}
	return row.topic(), nil
}

func (repo *planRepository) UpdateTopicStatus(ctx context.Context, topicID string, status schedule.TopicStatus) error {
	if _, err := repo.exec.ExecContext(ctx,
		`UPDATE topics SET status = $2, updated_at = now() WHERE id = $1`, topicID, string(status)); err != nil {
		return dbError(err, "updating topic status")
	}
	return nil
}

func (repo *planRepository) SaveCourse(ctx context.Context, userID string, c schedule.Course) error {
	status := string(c.Status)
	if status == "" {
		status = string(schedule.CourseActive)
	}
	var examDate null.Time
	if c.HasExam() {
		examDate = null.TimeFrom(schedule.DateOf(c.ExamDate))
	}
	if _, err := repo.exec.ExecContext(ctx,
		`INSERT INTO courses (id, user_id, title, exam_date, status) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, exam_date = EXCLUDED.exam_date,
			status = EXCLUDED.status, updated_at = now()`,
		c.ID, userID, c.Title, examDate, status); err != nil {
		return errors.Wrap(err, "saving course")
	}
	return nil
}

func (repo *planRepository) SaveTopic(ctx context.Context, userID string, t schedule.Topic) error {
	status := string(t.Status)
	if status == "" {
		status = string(schedule.TopicNotStarted)
	}
	prereqs := t.PrerequisiteIDs
	if prereqs == nil {
		prereqs = []string{}
	}
	if _, err := repo.exec.ExecContext(ctx,
		`INSERT INTO topics (id, user_id, course_id, title, estimated_hours, difficulty_weight, exam_importance, prerequisite_ids, status, order_index)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET course_id = EXCLUDED.course_id, title = EXCLUDED.title,
			estimated_hours = EXCLUDED.estimated_hours, difficulty_weight = EXCLUDED.difficulty_weight,
			exam_importance = EXCLUDED.exam_importance, prerequisite_ids = EXCLUDED.prerequisite_ids,
			status = EXCLUDED.status, order_index = EXCLUDED.order_index, updated_at = now()`,
		t.ID, userID, t.CourseID, t.Title, t.EstimatedHours, t.DifficultyWeight, t.ExamImportance,
		pq.Array(prereqs), status, t.OrderIndex); err != nil {
		return errors.Wrap(err, "saving topic")
	}
	return nil
}

func (repo *planRepository) SavePreferences(ctx context.Context, userID string, p schedule.Preferences) error {
	daysOff := make(pq.Int64Array, 0, len(p.DaysOff))
	for _, wd := range p.DaysOff {
		daysOff = append(daysOff, int64(wd))
	}
	blackout := make(pq.StringArray, 0, len(p.BlackoutDates))
	for _, d := range p.BlackoutDates {
		blackout = append(blackout, d.Format(core.DateLayout))
	}
	if _, err := repo.exec.ExecContext(ctx,
		`INSERT INTO study_preferences (user_id, daily_study_hours, days_off, study_days_per_week, blackout_dates)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET daily_study_hours = EXCLUDED.daily_study_hours, days_off = EXCLUDED.days_off,
			study_days_per_week = EXCLUDED.study_days_per_week, blackout_dates = EXCLUDED.blackout_dates, updated_at = now()`,
		userID, p.DailyStudyHours, daysOff, p.StudyDaysPerWeek, blackout); err != nil {
		return errors.Wrap(err, "saving study preferences")
	}
	return nil
}
