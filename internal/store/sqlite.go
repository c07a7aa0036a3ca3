package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"robohub/internal/domain"
	"robohub/internal/robot"
	"robohub/internal/schedule"
)

// EnsureSchema creates tables if they don't exist.
func EnsureSchema(db *sql.DB) error {
	schema := `
PRAGMA journal_mode=WAL;
CREATE TABLE IF NOT EXISTS robots (
  id TEXT PRIMARY KEY,
  user_id INTEGER NOT NULL,
  recording_meta TEXT NOT NULL,
  recording TEXT NOT NULL,
  schedule TEXT,
  schedule_next_run DATETIME,
  google_sheet_email TEXT,
  google_sheet_name TEXT,
  google_sheet_id TEXT,
  google_access_token TEXT,
  google_refresh_token TEXT,
  version INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(user_id) REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_robots_next_run ON robots(schedule_next_run) WHERE schedule_next_run IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_robots_user ON robots(user_id);
CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  email TEXT NOT NULL UNIQUE,
  password TEXT NOT NULL,
  api_key_name TEXT,
  api_key TEXT,
  proxy_url TEXT,
  proxy_username TEXT,
  proxy_password TEXT,
  google_sheets_email TEXT,
  google_sheet_id TEXT,
  google_access_token TEXT,
  google_refresh_token TEXT
);
`
	_, err := db.Exec(schema)
	return err
}

// SQLite persists robots and users. Robot saves are optimistic: the
// UPDATE is guarded by the loaded version, and a zero-row update on an
// existing robot means a concurrent edit won the race.
type SQLite struct{ db *sql.DB }

func New(db *sql.DB) *SQLite { return &SQLite{db: db} }

const robotCols = `id,user_id,recording_meta,recording,schedule,google_sheet_email,google_sheet_name,google_sheet_id,google_access_token,google_refresh_token,version,created_at,updated_at`

func (s *SQLite) GetRobot(ctx context.Context, id string) (robot.Robot, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+robotCols+` FROM robots WHERE id=?`, id)
	r, err := scanRobot(row)
	if err == sql.ErrNoRows {
		return robot.Robot{}, fmt.Errorf("robot %s: %w", id, domain.ErrNotFound)
	}
	return r, err
}

func (s *SQLite) ListRobots(ctx context.Context, userID int64) ([]robot.Robot, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+robotCols+` FROM robots WHERE user_id=? ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var robots []robot.Robot
	for rows.Next() {
		r, err := scanRobot(rows)
		if err != nil {
			return nil, err
		}
		robots = append(robots, r)
	}
	return robots, rows.Err()
}

// CreateRobot inserts a new robot, assigning an id when absent.
func (s *SQLite) CreateRobot(ctx context.Context, r robot.Robot) (robot.Robot, error) {
	if r.ID == "" {
		r.ID = "rob_" + uuid.NewString()
		r.Meta.ID = r.ID
	}
	r.Version = 1
	meta, rec, sched, nextRun, err := encodeRobot(r)
	if err != nil {
		return robot.Robot{}, err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO robots (id,user_id,recording_meta,recording,schedule,schedule_next_run,google_sheet_email,google_sheet_name,google_sheet_id,google_access_token,google_refresh_token,version,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,1,CURRENT_TIMESTAMP,CURRENT_TIMESTAMP)
`, r.ID, r.UserID, meta, rec, sched, nextRun,
		nullStr(r.GoogleSheetEmail), nullStr(r.GoogleSheetName), nullStr(r.GoogleSheetID),
		nullStr(r.GoogleAccessToken), nullStr(r.GoogleRefreshToken))
	return r, err
}

func (s *SQLite) SaveRobot(ctx context.Context, r robot.Robot) (robot.Robot, error) {
	meta, rec, sched, nextRun, err := encodeRobot(r)
	if err != nil {
		return robot.Robot{}, err
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE robots
SET recording_meta=?, recording=?, schedule=?, schedule_next_run=?,
    google_sheet_email=?, google_sheet_name=?, google_sheet_id=?,
    google_access_token=?, google_refresh_token=?,
    version=version+1, updated_at=CURRENT_TIMESTAMP
WHERE id=? AND version=?`,
		meta, rec, sched, nextRun,
		nullStr(r.GoogleSheetEmail), nullStr(r.GoogleSheetName), nullStr(r.GoogleSheetID),
		nullStr(r.GoogleAccessToken), nullStr(r.GoogleRefreshToken),
		r.ID, r.Version)
	if err != nil {
		return robot.Robot{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return robot.Robot{}, err
	}
	if n == 0 {
		// Distinguish a missing robot from a lost version race.
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM robots WHERE id=?`, r.ID).Scan(&exists); err == sql.ErrNoRows {
			return robot.Robot{}, fmt.Errorf("robot %s: %w", r.ID, domain.ErrNotFound)
		}
		return robot.Robot{}, domain.ErrConflict
	}
	r.Version++
	return r, nil
}

func (s *SQLite) ListDueRobots(ctx context.Context, now time.Time) ([]robot.Robot, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+robotCols+` FROM robots
WHERE schedule_next_run IS NOT NULL AND schedule_next_run <= ?
ORDER BY schedule_next_run`, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var robots []robot.Robot
	for rows.Next() {
		r, err := scanRobot(rows)
		if err != nil {
			return nil, err
		}
		robots = append(robots, r)
	}
	return robots, rows.Err()
}

// UpdateRobotRunTimes advances the stored schedule's run markers. A
// zero lastRun leaves the stored lastRunAt untouched (the occurrence
// was skipped, not run).
func (s *SQLite) UpdateRobotRunTimes(ctx context.Context, id string, lastRun, nextRun time.Time) error {
	query := `
UPDATE robots
SET schedule=json_set(schedule, '$.lastRunAt', ?, '$.nextRunAt', ?),
    schedule_next_run=?, updated_at=CURRENT_TIMESTAMP
WHERE id=? AND schedule IS NOT NULL`
	args := []any{lastRun.UTC().Format(time.RFC3339), nextRun.UTC().Format(time.RFC3339), nextRun.UTC(), id}
	if lastRun.IsZero() {
		query = `
UPDATE robots
SET schedule=json_set(schedule, '$.nextRunAt', ?),
    schedule_next_run=?, updated_at=CURRENT_TIMESTAMP
WHERE id=? AND schedule IS NOT NULL`
		args = []any{nextRun.UTC().Format(time.RFC3339), nextRun.UTC(), id}
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("robot %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanRobot(row rowScanner) (robot.Robot, error) {
	var (
		r          robot.Robot
		metaJSON   string
		recJSON    string
		schedJSON  sql.NullString
		sheetEmail sql.NullString
		sheetName  sql.NullString
		sheetID    sql.NullString
		accessTok  sql.NullString
		refreshTok sql.NullString
	)
	err := row.Scan(&r.ID, &r.UserID, &metaJSON, &recJSON, &schedJSON,
		&sheetEmail, &sheetName, &sheetID, &accessTok, &refreshTok,
		&r.Version, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return robot.Robot{}, err
	}
	if err := json.Unmarshal([]byte(metaJSON), &r.Meta); err != nil {
		return robot.Robot{}, fmt.Errorf("decode recording_meta for %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(recJSON), &r.Recording); err != nil {
		return robot.Robot{}, fmt.Errorf("decode recording for %s: %w", r.ID, err)
	}
	if schedJSON.Valid {
		var cfg schedule.Config
		if err := json.Unmarshal([]byte(schedJSON.String), &cfg); err != nil {
			return robot.Robot{}, fmt.Errorf("decode schedule for %s: %w", r.ID, err)
		}
		r.Schedule = &cfg
	}
	r.GoogleSheetEmail = sheetEmail.String
	r.GoogleSheetName = sheetName.String
	r.GoogleSheetID = sheetID.String
	r.GoogleAccessToken = accessTok.String
	r.GoogleRefreshToken = refreshTok.String
	return r, nil
}

func encodeRobot(r robot.Robot) (meta, rec string, sched any, nextRun any, err error) {
	m, err := json.Marshal(r.Meta)
	if err != nil {
		return "", "", nil, nil, err
	}
	w, err := json.Marshal(r.Recording)
	if err != nil {
		return "", "", nil, nil, err
	}
	if r.Schedule != nil {
		s, err := json.Marshal(r.Schedule)
		if err != nil {
			return "", "", nil, nil, err
		}
		sched = string(s)
		if r.Schedule.NextRunAt != nil {
			nextRun = r.Schedule.NextRunAt.UTC()
		}
	}
	return string(m), string(w), sched, nextRun, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ robot.Store = (*SQLite)(nil)
