package robot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"robohub/internal/schedule"
	"robohub/internal/workflow"
)

// Edit is one requested change to a robot. Nil fields are untouched.
// Setting Schedule replaces the recurrence and recomputes NextRunAt;
// ClearSchedule detaches it, making the robot run-on-demand only.
type Edit struct {
	Name          *string
	TargetURL     *string
	Limit         *int
	Schedule      *schedule.Config
	ClearSchedule bool
}

type Service struct {
	store Store
	exec  Executor
	now   func() time.Time
}

func NewService(store Store, exec Executor) *Service {
	return &Service{store: store, exec: exec, now: time.Now}
}

// ApplyEdit loads the robot, applies the requested changes through the
// workflow editor, recomputes the next run when the schedule changed,
// and persists the result under the loaded version. Editor, engine,
// and store errors propagate unchanged, so a concurrent save surfaces
// as domain.ErrConflict and a missing robot as domain.ErrNotFound.
func (s *Service) ApplyEdit(ctx context.Context, robotID string, edit Edit) (workflow.RobotMeta, error) {
	r, err := s.store.GetRobot(ctx, robotID)
	if err != nil {
		return workflow.RobotMeta{}, fmt.Errorf("load robot %s: %w", robotID, err)
	}

	if edit.Name != nil {
		meta, err := workflow.RenameRobot(r.Meta, *edit.Name)
		if err != nil {
			return workflow.RobotMeta{}, err
		}
		r.Meta = meta
	}
	if edit.TargetURL != nil {
		rec, err := workflow.SetTargetURL(r.Recording, *edit.TargetURL)
		if err != nil {
			return workflow.RobotMeta{}, err
		}
		r.Recording = rec
	}
	if edit.Limit != nil {
		rec, err := workflow.SetExtractionLimit(r.Recording, *edit.Limit)
		if err != nil {
			return workflow.RobotMeta{}, err
		}
		r.Recording = rec
	}
	switch {
	case edit.ClearSchedule:
		r.Schedule = nil
	case edit.Schedule != nil:
		cfg := *edit.Schedule
		next, err := schedule.ComputeNextRun(cfg, s.now())
		if err != nil {
			return workflow.RobotMeta{}, err
		}
		if r.Schedule != nil {
			cfg.LastRunAt = r.Schedule.LastRunAt
		}
		cfg.NextRunAt = &next
		r.Schedule = &cfg
	}

	r.Meta.PairCount = len(r.Recording.Pairs)
	r.Meta.UpdatedAt = s.now()
	saved, err := s.store.SaveRobot(ctx, r)
	if err != nil {
		return workflow.RobotMeta{}, fmt.Errorf("save robot %s: %w", robotID, err)
	}
	return saved.Meta, nil
}

// RunNow triggers one immediate execution and, when the robot carries a
// schedule, records the run so the cadence continues from the actual
// run time.
func (s *Service) RunNow(ctx context.Context, robotID string) error {
	r, err := s.store.GetRobot(ctx, robotID)
	if err != nil {
		return fmt.Errorf("load robot %s: %w", robotID, err)
	}
	if err := s.exec.Trigger(ctx, r.ID); err != nil {
		return err
	}
	if r.Schedule == nil {
		return nil
	}
	ranAt := s.now()
	cfg, err := schedule.RecordRun(*r.Schedule, ranAt)
	if err != nil {
		return err
	}
	if err := s.store.UpdateRobotRunTimes(ctx, r.ID, *cfg.LastRunAt, *cfg.NextRunAt); err != nil {
		return err
	}
	log.Info().
		Str("robot_id", r.ID).
		Time("next_run", *cfg.NextRunAt).
		Msg("manual run recorded")
	return nil
}

// Get exposes a single robot through the facade.
func (s *Service) Get(ctx context.Context, robotID string) (Robot, error) {
	return s.store.GetRobot(ctx, robotID)
}

// List exposes all robots for a user through the facade.
func (s *Service) List(ctx context.Context, userID int64) ([]Robot, error) {
	return s.store.ListRobots(ctx, userID)
}
