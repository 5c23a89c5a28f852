package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleToken is returned when an action carries a token from an
	// earlier step.
	ErrStaleToken = errors.New("stale action token")
	// ErrNoDataset is returned when acting on a session before upload.
	ErrNoDataset = errors.New("no dataset loaded")
	// ErrMissingValuesBlock is wrapped when leftover missing values stop
	// the duplicate stage from rendering.
	ErrMissingValuesBlock = errors.New("visualisations cannot be displayed due to missing values")
)

// InvalidStageTransitionError reports an action the current stage does not
// offer. Session state is unchanged.
type InvalidStageTransitionError struct {
	From   string
	Action ActionKind
	Reason string
}

func (e *InvalidStageTransitionError) Error() string {
	msg := fmt.Sprintf("action %q is not available in stage %s", e.Action, e.From)
	if e.Action == 0 {
		msg = "not available in stage " + e.From
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// BlockingError reports a failed transition that the user must resolve
// before continuing. Session state is unchanged apart from the log entry.
type BlockingError struct {
	Stage   string
	Message string
	Err     error
}

func (e *BlockingError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s blocked: %v", e.Stage, e.Err)
}

func (e *BlockingError) Unwrap() error { return e.Err }
