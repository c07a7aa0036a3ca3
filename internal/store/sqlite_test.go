package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"robohub/internal/domain"
	"robohub/internal/robot"
	"robohub/internal/schedule"
	"robohub/internal/workflow"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, EnsureSchema(db))
	return New(db)
}

func seedUser(t *testing.T, s *SQLite) domain.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), domain.User{
		Email:    "bob@example.com",
		Password: "hash",
	})
	require.NoError(t, err)
	return u
}

func seedRobot(t *testing.T, s *SQLite, userID int64) robot.Robot {
	t.Helper()
	r, err := s.CreateRobot(context.Background(), robot.Robot{
		UserID: userID,
		Meta:   workflow.RobotMeta{Name: "price watcher", PairCount: 2},
		Recording: workflow.Recording{Pairs: []workflow.Pair{
			{What: []workflow.Action{{Kind: "extract", Args: []workflow.Arg{workflow.ParamsArg(workflow.Params{"limit": float64(10)})}}}},
			{What: []workflow.Action{{Kind: "goto", Args: []workflow.Arg{workflow.StringArg("https://old.example.com")}}}},
		}},
	})
	require.NoError(t, err)
	return r
}

func TestRobotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	u := seedUser(t, s)
	created := seedRobot(t, s, u.ID)

	got, err := s.GetRobot(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, u.ID, got.UserID)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "price watcher", got.Meta.Name)

	url, ok := got.Recording.TargetURL()
	require.True(t, ok)
	assert.Equal(t, "https://old.example.com", url)
	limit, ok := got.Recording.ExtractionLimit()
	require.True(t, ok)
	assert.Equal(t, 10, limit)
	assert.Nil(t, got.Schedule)
}

func TestGetRobotNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRobot(context.Background(), "rob_missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveRobotBumpsVersion(t *testing.T) {
	s := newTestStore(t)
	u := seedUser(t, s)
	r := seedRobot(t, s, u.ID)

	r.Meta.Name = "renamed"
	saved, err := s.SaveRobot(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)

	got, err := s.GetRobot(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Meta.Name)
	assert.Equal(t, int64(2), got.Version)
}

func TestSaveRobotConflict(t *testing.T) {
	s := newTestStore(t)
	u := seedUser(t, s)
	r := seedRobot(t, s, u.ID)

	// First editor saves under the loaded version.
	first := r
	first.Meta.Name = "first edit"
	_, err := s.SaveRobot(context.Background(), first)
	require.NoError(t, err)

	// Second editor still holds the stale version and must lose.
	second := r
	second.Meta.Name = "second edit"
	_, err = s.SaveRobot(context.Background(), second)
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := s.GetRobot(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, "first edit", got.Meta.Name)
}

func TestSaveRobotMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SaveRobot(context.Background(), robot.Robot{ID: "rob_missing", Version: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListDueRobots(t *testing.T) {
	s := newTestStore(t)
	u := seedUser(t, s)
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	due := seedRobot(t, s, u.ID)
	due.Schedule = &schedule.Config{
		RunEvery: 1, RunEveryUnit: schedule.Days, StartFrom: "MONDAY", Timezone: "UTC",
		NextRunAt: &past,
	}
	_, err := s.SaveRobot(context.Background(), due)
	require.NoError(t, err)

	notDue := seedRobot(t, s, u.ID)
	notDue.Schedule = &schedule.Config{
		RunEvery: 1, RunEveryUnit: schedule.Days, StartFrom: "MONDAY", Timezone: "UTC",
		NextRunAt: &future,
	}
	_, err = s.SaveRobot(context.Background(), notDue)
	require.NoError(t, err)

	seedRobot(t, s, u.ID) // no schedule at all

	got, err := s.ListDueRobots(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.ID, got[0].ID)
	require.NotNil(t, got[0].Schedule)
	assert.True(t, got[0].Schedule.NextRunAt.Equal(past))
}

func TestUpdateRobotRunTimes(t *testing.T) {
	s := newTestStore(t)
	u := seedUser(t, s)
	r := seedRobot(t, s, u.ID)
	next := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	r.Schedule = &schedule.Config{
		RunEvery: 1, RunEveryUnit: schedule.Days, StartFrom: "MONDAY", Timezone: "UTC",
		NextRunAt: &next,
	}
	_, err := s.SaveRobot(context.Background(), r)
	require.NoError(t, err)

	lastRun := time.Date(2024, 1, 2, 0, 0, 5, 0, time.UTC)
	nextRun := time.Date(2024, 1, 3, 0, 0, 5, 0, time.UTC)
	require.NoError(t, s.UpdateRobotRunTimes(context.Background(), r.ID, lastRun, nextRun))

	got, err := s.GetRobot(context.Background(), r.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Schedule)
	require.NotNil(t, got.Schedule.LastRunAt)
	require.NotNil(t, got.Schedule.NextRunAt)
	assert.True(t, got.Schedule.LastRunAt.Equal(lastRun))
	assert.True(t, got.Schedule.NextRunAt.Equal(nextRun))

	// Structured cadence fields survive the run-time update untouched.
	assert.Equal(t, 1, got.Schedule.RunEvery)
	assert.Equal(t, schedule.Days, got.Schedule.RunEveryUnit)
}

func TestUpdateRobotRunTimesSkipKeepsLastRun(t *testing.T) {
	s := newTestStore(t)
	u := seedUser(t, s)
	r := seedRobot(t, s, u.ID)
	last := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	next := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	r.Schedule = &schedule.Config{
		RunEvery: 1, RunEveryUnit: schedule.Days, StartFrom: "MONDAY", Timezone: "UTC",
		LastRunAt: &last, NextRunAt: &next,
	}
	_, err := s.SaveRobot(context.Background(), r)
	require.NoError(t, err)

	// Zero lastRun means "occurrence skipped": only nextRunAt moves.
	newNext := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpdateRobotRunTimes(context.Background(), r.ID, time.Time{}, newNext))

	got, err := s.GetRobot(context.Background(), r.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Schedule.LastRunAt)
	assert.True(t, got.Schedule.LastRunAt.Equal(last))
	assert.True(t, got.Schedule.NextRunAt.Equal(newNext))
}

func TestUserCRUDAndInvariants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s)

	got, err := s.GetUserByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.GetUser(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Proxy username without password is rejected at write time.
	err = s.UpdateUserProxy(ctx, u.ID, "http://proxy:8000", "bob", "")
	assert.True(t, domain.IsValidation(err))

	require.NoError(t, s.UpdateUserProxy(ctx, u.ID, "http://proxy:8000", "bob", "s3cret"))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.ProxyUsername)
	assert.Equal(t, "s3cret", got.ProxyPassword)

	// Invalid user records never reach the database.
	_, err = s.CreateUser(ctx, domain.User{Email: "not-an-email"})
	assert.True(t, domain.IsValidation(err))
}

func TestUpdateUserAPIKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	u := seedUser(t, s)

	require.NoError(t, s.UpdateUserAPIKey(ctx, u.ID, "Robohub API Key", "secret123"))
	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "secret123", got.APIKey)

	require.NoError(t, s.UpdateUserAPIKey(ctx, u.ID, "", ""))
	got, err = s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.APIKey)

	assert.ErrorIs(t, s.UpdateUserAPIKey(ctx, 9999, "n", "k"), domain.ErrNotFound)
}
