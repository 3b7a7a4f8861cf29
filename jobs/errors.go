package jobs

import (
	"errors"
	"fmt"
	"time"
)

// ErrJobNotFound is returned for ids the scheduler does not track.
var ErrJobNotFound = errors.New("job not found")

// TimeoutError reports a worker that was killed for outliving its timeout.
type TimeoutError struct {
	JobID   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s timed out after %s", e.JobID, e.Timeout)
}

// WorkerError reports a worker that exited with an error payload, or
// without leaving any result behind.
type WorkerError struct {
	JobID     string
	Message   string
	Traceback string
	ExitCode  int
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("job %s failed (exit %d): %s", e.JobID, e.ExitCode, e.Message)
}
