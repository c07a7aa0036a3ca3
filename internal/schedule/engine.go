package schedule

import (
	"time"

	"robohub/internal/domain"
)

// maxCandidates bounds the structured-cadence search. The tightest
// cadence is one minute, so crossing a day boundary to reach a clock
// window needs at most ~1440 steps; anything past this bound is a
// configuration that can never fire.
const maxCandidates = 10000

// ComputeNextRun returns the first eligible run time strictly after
// from. A non-empty cron expression supersedes the structured cadence.
// The result is always after from: forward progress is guaranteed, so
// a dispatcher can never re-fire the same instant twice.
func ComputeNextRun(cfg Config, from time.Time) (time.Time, error) {
	if err := cfg.Validate(); err != nil {
		return time.Time{}, err
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return time.Time{}, domain.Invalid("timezone", err.Error())
	}
	from = from.In(loc)

	if cfg.CronExpression != "" {
		sched, err := cronParser.Parse(cfg.CronExpression)
		if err != nil {
			return time.Time{}, domain.Invalid("cronExpression", err.Error())
		}
		return sched.Next(from), nil
	}

	for k := 1; k <= maxCandidates; k++ {
		cand := candidateAt(cfg, from, loc, k)
		if cfg.AtTimeStart != "" {
			cand = clampToWindow(cfg, cand, loc)
		}
		if cand.After(from) {
			return cand, nil
		}
	}
	return time.Time{}, domain.Invalid("schedule", "no future occurrence found")
}

// candidateAt is the k-th natural occurrence of the cadence after from,
// before window clamping. Minute/hour/day cadences tick from the
// reference instant; weekly cadences run at midnight on the StartFrom
// weekday; monthly cadences keep the reference's day-of-month, clamped
// to the target month's length.
func candidateAt(cfg Config, from time.Time, loc *time.Location, k int) time.Time {
	n := cfg.RunEvery * k
	switch cfg.RunEveryUnit {
	case Minutes:
		return from.Add(time.Duration(n) * time.Minute)
	case Hours:
		return from.Add(time.Duration(n) * time.Hour)
	case Days:
		return from.AddDate(0, 0, n)
	case Weeks:
		anchor := weekAnchor(from, weekdays[cfg.StartFrom], loc)
		return anchor.AddDate(0, 0, 7*cfg.RunEvery*(k-1))
	case Months:
		return addMonthsClamped(from, n, loc)
	default:
		// Validate rejects unknown units before we get here.
		return from
	}
}

// weekAnchor is midnight of the first occurrence of target on or after
// from's date, in loc. It may still be before from (same-day anchor);
// the candidate loop advances past it.
func weekAnchor(from time.Time, target time.Weekday, loc *time.Location) time.Time {
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	delta := (int(target) - int(day.Weekday()) + 7) % 7
	return day.AddDate(0, 0, delta)
}

// addMonthsClamped adds n months keeping from's day-of-month, clamped
// to the last valid day of the target month. Plain AddDate would roll
// Jan 31 + 1 month into March via a nonexistent Feb 31.
func addMonthsClamped(from time.Time, n int, loc *time.Location) time.Time {
	year, month := from.Year(), int(from.Month())+n
	year += (month - 1) / 12
	month = (month-1)%12 + 1
	day := from.Day()
	if last := daysIn(year, time.Month(month)); day > last {
		day = last
	}
	return time.Date(year, time.Month(month), day,
		from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), loc)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// clampToWindow moves a candidate that falls outside the configured
// clock window to the window start on the same computed date. The
// caller rejects clamped candidates that land at or before the
// reference time and advances to the next occurrence instead.
func clampToWindow(cfg Config, cand time.Time, loc *time.Location) time.Time {
	start, _ := parseClock(cfg.AtTimeStart)
	end, _ := parseClock(cfg.AtTimeEnd)
	winStart := time.Date(cand.Year(), cand.Month(), cand.Day(), start/60, start%60, 0, 0, loc)
	winEnd := time.Date(cand.Year(), cand.Month(), cand.Day(), end/60, end%60, 0, 0, loc)
	if cand.Before(winStart) || cand.After(winEnd) {
		return winStart
	}
	return cand
}

// IsDue reports whether the robot should run at now. Robots without a
// computed next run are never due.
func IsDue(cfg Config, now time.Time) bool {
	return cfg.NextRunAt != nil && !now.Before(*cfg.NextRunAt)
}

// RecordRun marks one completed run: it sets LastRunAt to the actual
// run time and recomputes NextRunAt from it. The input config is not
// modified.
func RecordRun(cfg Config, ranAt time.Time) (Config, error) {
	next, err := ComputeNextRun(cfg, ranAt)
	if err != nil {
		return cfg, err
	}
	ran := ranAt
	cfg.LastRunAt = &ran
	cfg.NextRunAt = &next
	return cfg, nil
}

// FastForward advances NextRunAt until it is strictly after now,
// skipping occurrences the dispatcher missed while it was down. This
// is the "skip to latest" catch-up policy; callers wanting run-all
// semantics call RecordRun once per detected miss instead.
func FastForward(cfg Config, now time.Time) (Config, error) {
	next := now
	if cfg.NextRunAt != nil {
		next = *cfg.NextRunAt
	}
	for !next.After(now) {
		n, err := ComputeNextRun(cfg, next)
		if err != nil {
			return cfg, err
		}
		next = n
	}
	cfg.NextRunAt = &next
	return cfg, nil
}
