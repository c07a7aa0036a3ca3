// Package robot is the external-facing facade: it composes the
// workflow editor, the schedule engine, and the execution trigger over
// the persistence layer.
package robot

import (
	"context"
	"time"

	"robohub/internal/schedule"
	"robohub/internal/workflow"
)

// Robot is the persisted robot record. Version increments on every
// save and backs optimistic concurrency: a save with a stale version
// fails with domain.ErrConflict instead of overwriting a concurrent
// edit. A nil Schedule means the robot is run-on-demand only.
type Robot struct {
	ID        string
	UserID    int64
	Meta      workflow.RobotMeta
	Recording workflow.Recording
	Schedule  *schedule.Config

	GoogleSheetEmail   string
	GoogleSheetName    string
	GoogleSheetID      string
	GoogleAccessToken  string
	GoogleRefreshToken string

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is the persistence surface the facade needs. The SQLite
// implementation lives in internal/store.
type Store interface {
	GetRobot(ctx context.Context, id string) (Robot, error)
	ListRobots(ctx context.Context, userID int64) ([]Robot, error)
	// SaveRobot persists r if the stored version still equals
	// r.Version, then bumps it; otherwise domain.ErrConflict.
	SaveRobot(ctx context.Context, r Robot) (Robot, error)
	ListDueRobots(ctx context.Context, now time.Time) ([]Robot, error)
	UpdateRobotRunTimes(ctx context.Context, id string, lastRun, nextRun time.Time) error
}

// Executor triggers one execution of a recording through the external
// browser interpreter. Implementations must keep "recording not found"
// (domain.ErrNotFound, not retryable) distinguishable from transport
// failures (retryable).
type Executor interface {
	Trigger(ctx context.Context, recordingID string) error
}
