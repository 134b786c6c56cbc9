package research

import (
	"errors"
	"fmt"
)

// ErrEmptyQuery is returned by ResearchEngine.Run when the query is blank.
var ErrEmptyQuery = errors.New("research query is empty")

// PlanningError reports a failed planning call. It ends the search loop
// early; synthesis still runs.
type PlanningError struct {
	Iteration int
	Err       error
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("planning failed at iteration %d: %v", e.Iteration, e.Err)
}

func (e *PlanningError) Unwrap() error { return e.Err }

// SearchError reports a failed search tool call or executor model call.
// It never aborts a session.
type SearchError struct {
	Query string
	Err   error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search %q failed: %v", e.Query, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// SynthesisError reports a failed report generation and is returned to the
// caller of Engine.Run.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis failed: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }
