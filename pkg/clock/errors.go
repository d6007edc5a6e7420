package clock

import (
	"errors"
	"fmt"
)

// ErrRejected matches every rejected command through errors.Is
var ErrRejected = errors.New("command rejected")

// Reason explains why a command was rejected
type Reason string

// Rejection reasons
const (
	ReasonAlreadyActive   Reason = "ALREADY_ACTIVE"
	ReasonNoPriorPlayer   Reason = "NO_PRIOR_PLAYER"
	ReasonGameAlreadyOver Reason = "GAME_ALREADY_OVER"
	ReasonInvalidPreset   Reason = "INVALID_PRESET"
	ReasonNotRunning      Reason = "NOT_RUNNING"
	ReasonPaused          Reason = "PAUSED"
	ReasonInvalidPlayer   Reason = "INVALID_PLAYER"
	ReasonGameInProgress  Reason = "GAME_IN_PROGRESS"
)

// RejectedError is returned by a command that left the engine untouched
type RejectedError struct {
	Command string
	Reason  Reason
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Command, e.Reason)
}

// Is makes errors.Is(err, ErrRejected) hold for every rejection
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// ReasonOf extracts the rejection reason from err, if it carries one.
func ReasonOf(err error) (Reason, bool) {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.Reason, true
	}
	return "", false
}

func reject(command string, reason Reason) error {
	return &RejectedError{Command: command, Reason: reason}
}
