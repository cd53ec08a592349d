package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core/plan"
	"github.com/mohamed-arabi16/studybuddy-bright-sub000/core/schedule"
	"github.com/mohamed-arabi16/studybuddy-bright-sub000/storage/database"
)

// PrepareDB connects to the database named by TEST_DATABASE_URL, migrates it and empties the plan tables.
// The test is skipped when the variable is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if _, err = db.Exec("TRUNCATE plan_items, plan_days, topics, courses, study_preferences"); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

// Date returns midnight UTC of the given calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CreateCourse stores an active course and its topics for the user.
func CreateCourse(t *testing.T, repo plan.Repository, userID string, course schedule.Course, topics ...schedule.Topic) {
	t.Helper()
	ctx := context.Background()
	if err := repo.SaveCourse(ctx, userID, course); err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	for _, tp := range topics {
		tp.CourseID = course.ID
		if err := repo.SaveTopic(ctx, userID, tp); err != nil {
			t.Fatalf("CreateCourse() failed: %v", err)
		}
	}
}

// SetPreferences stores the user's study preferences.
func SetPreferences(t *testing.T, repo plan.Repository, userID string, prefs schedule.Preferences) {
	t.Helper()
	if err := repo.SavePreferences(context.Background(), userID, prefs); err != nil {
		t.Fatalf("SetPreferences() failed: %v", err)
	}
}
