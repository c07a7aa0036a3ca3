package workflow

import (
	"fmt"
	"strings"
	"time"

	"robohub/internal/domain"
)

// Editor errors wrap domain.ErrNotFound: the recording simply has no
// slot for the requested edit. Callers choose whether that is a no-op
// or a user-facing failure.
var (
	ErrNavigationNotFound = fmt.Errorf("navigation step %w", domain.ErrNotFound)
	ErrLimitSlotNotFound  = fmt.Errorf("extraction limit slot %w", domain.ErrNotFound)
)

// RobotMeta is the user-visible identity of a recording, owned 1:1 by
// it. ID is immutable once assigned; Name is free text.
type RobotMeta struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	PairCount int       `json:"pairs"`
	Params    []string  `json:"params"`
}

// SetTargetURL returns a copy of rec with the target action's first
// argument replaced by newURL. The mutated path (pair list, action
// list, argument list) is copied up to the root; untouched pairs and
// actions are shared with the original. When the last pair has no goto
// action with an argument slot, rec is returned unchanged alongside
// ErrNavigationNotFound; this package never guesses where a navigation
// step should be inserted.
func SetTargetURL(rec Recording, newURL string) (Recording, error) {
	if strings.TrimSpace(newURL) == "" {
		return rec, domain.Invalid("targetUrl", "must not be empty")
	}
	if len(rec.Pairs) == 0 {
		return rec, ErrNavigationNotFound
	}
	last := len(rec.Pairs) - 1
	actionIdx := -1
	for i, a := range rec.Pairs[last].What {
		if a.Kind == ActionGoto {
			actionIdx = i
			break
		}
	}
	if actionIdx < 0 || len(rec.Pairs[last].What[actionIdx].Args) == 0 {
		return rec, ErrNavigationNotFound
	}

	pairs := append([]Pair(nil), rec.Pairs...)
	what := append([]Action(nil), pairs[last].What...)
	args := append([]Arg(nil), what[actionIdx].Args...)
	args[0] = StringArg(newURL)
	what[actionIdx].Args = args
	pairs[last].What = what
	return Recording{Pairs: pairs}, nil
}

// SetExtractionLimit returns a copy of rec with the limit slot set to
// newLimit. The slot is first pair -> first action -> first argument,
// which must already be a parameter object: missing nesting levels are
// reported as ErrLimitSlotNotFound and never fabricated, since the
// interpreter cannot parse a recording with invented structure.
func SetExtractionLimit(rec Recording, newLimit int) (Recording, error) {
	if newLimit < 0 {
		return rec, domain.Invalid("limit", "must not be negative")
	}
	if len(rec.Pairs) == 0 || len(rec.Pairs[0].What) == 0 || len(rec.Pairs[0].What[0].Args) == 0 {
		return rec, ErrLimitSlotNotFound
	}
	if rec.Pairs[0].What[0].Args[0].Kind != ArgParams {
		return rec, ErrLimitSlotNotFound
	}

	pairs := append([]Pair(nil), rec.Pairs...)
	what := append([]Action(nil), pairs[0].What...)
	args := append([]Arg(nil), what[0].Args...)
	params := make(Params, len(args[0].Params)+1)
	for k, v := range args[0].Params {
		params[k] = v
	}
	params["limit"] = newLimit
	args[0] = ParamsArg(params)
	what[0].Args = args
	pairs[0].What = what
	return Recording{Pairs: pairs}, nil
}

// RenameRobot returns meta with the new name. Empty and whitespace-only
// names are rejected.
func RenameRobot(meta RobotMeta, newName string) (RobotMeta, error) {
	if strings.TrimSpace(newName) == "" {
		return meta, domain.Invalid("name", "must not be empty")
	}
	meta.Name = newName
	return meta, nil
}
