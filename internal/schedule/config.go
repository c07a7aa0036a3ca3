// Package schedule turns a human-facing recurrence description into
// concrete next-run timestamps. All weekday and clock-window arithmetic
// happens in the config's IANA timezone, never the evaluator's local
// zone.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"robohub/internal/domain"
)

// Unit is the cadence interval unit.
type Unit string

const (
	Minutes Unit = "MINUTES"
	Hours   Unit = "HOURS"
	Days    Unit = "DAYS"
	Weeks   Unit = "WEEKS"
	Months  Unit = "MONTHS"
)

var validUnits = map[Unit]bool{
	Minutes: true, Hours: true, Days: true, Weeks: true, Months: true,
}

// cronParser accepts both five-field standard expressions and
// six-field expressions with a leading seconds column.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

var weekdays = map[string]time.Weekday{
	"SUNDAY":    time.Sunday,
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
}

// Config is a robot's recurrence descriptor. When CronExpression is
// non-empty it supersedes the structured fields for next-run
// computation; the structured fields stay stored so editing round-trips.
// LastRunAt and NextRunAt are maintained by the engine and the robot
// service only.
type Config struct {
	RunEvery       int        `json:"runEvery"`
	RunEveryUnit   Unit       `json:"runEveryUnit"`
	StartFrom      string     `json:"startFrom"`
	AtTimeStart    string     `json:"atTimeStart,omitempty"`
	AtTimeEnd      string     `json:"atTimeEnd,omitempty"`
	Timezone       string     `json:"timezone"`
	LastRunAt      *time.Time `json:"lastRunAt,omitempty"`
	NextRunAt      *time.Time `json:"nextRunAt,omitempty"`
	CronExpression string     `json:"cronExpression,omitempty"`
}

// Validate checks every stored field; callers must validate before
// scheduling so ComputeNextRun can treat a bad config as a caller bug
// rather than silently defaulting.
func (c Config) Validate() error {
	if c.RunEvery <= 0 {
		return domain.Invalid("runEvery", "must be a positive integer")
	}
	if !validUnits[c.RunEveryUnit] {
		return domain.Invalid("runEveryUnit", fmt.Sprintf("unknown unit %q", c.RunEveryUnit))
	}
	if _, ok := weekdays[c.StartFrom]; !ok {
		return domain.Invalid("startFrom", fmt.Sprintf("unknown weekday %q", c.StartFrom))
	}
	if (c.AtTimeStart == "") != (c.AtTimeEnd == "") {
		return domain.Invalid("atTimeStart", "atTimeStart and atTimeEnd must be set together")
	}
	if c.AtTimeStart != "" {
		start, err := parseClock(c.AtTimeStart)
		if err != nil {
			return domain.Invalid("atTimeStart", err.Error())
		}
		end, err := parseClock(c.AtTimeEnd)
		if err != nil {
			return domain.Invalid("atTimeEnd", err.Error())
		}
		if end < start {
			return domain.Invalid("atTimeEnd", "must not be earlier than atTimeStart")
		}
	}
	if c.Timezone == "" {
		return domain.Invalid("timezone", "must not be empty")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return domain.Invalid("timezone", fmt.Sprintf("unknown zone %q", c.Timezone))
	}
	if c.CronExpression != "" {
		if _, err := cronParser.Parse(c.CronExpression); err != nil {
			return domain.Invalid("cronExpression", err.Error())
		}
	}
	return nil
}

// parseClock parses strict "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%q is not in HH:MM form", s)
	}
	for _, i := range [...]int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("%q is not in HH:MM form", s)
		}
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("%q is out of range", s)
	}
	return h*60 + m, nil
}
