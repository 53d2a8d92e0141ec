package jobs

import (
	"errors"
	"fmt"
)

// Sentinel errors for job operations.
// These can be checked with errors.Is().
var (
	ErrJobNotFound   = errors.New("job not found")
	ErrJobNotRunning = errors.New("job is not running")
	ErrJobNotPending = errors.New("job is not pending")
	ErrJobFinished   = errors.New("job already finished")
)

func jobNotFoundError(id string) error {
	return fmt.Errorf("%w: %s", ErrJobNotFound, id)
}

func jobNotRunningError(id string, status Status) error {
	return fmt.Errorf("%w (status: %s): %s", ErrJobNotRunning, status, id)
}

func jobNotPendingError(id string, status Status) error {
	return fmt.Errorf("%w (status: %s): %s", ErrJobNotPending, status, id)
}

func jobFinishedError(id string, status Status) error {
	return fmt.Errorf("%w (status: %s): %s", ErrJobFinished, status, id)
}
