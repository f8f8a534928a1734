package store

import (
	"errors"
	"fmt"

	"github.com/chemaudit/chemaudit/internal/store/model"
)

var (
	ErrRecordNotFound    = errors.New("record not found")
	ErrInvalidTransition = errors.New("invalid job state transition")
)

// TransitionError reports a rejected state change together with the state the job was in.
type TransitionError struct {
	From model.JobStatus
	To   model.JobStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
