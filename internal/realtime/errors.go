package realtime

import (
	"errors"
	"net/http"

	"retroboard/internal/retro"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation rejected")
	ErrPersistence = errors.New("persistence failure")
)

// eventError carries a human-readable reason next to its kind.
type eventError struct {
	kind error
	msg  string
	err  error
}

func (e *eventError) Error() string { return e.msg }

func (e *eventError) Unwrap() []error {
	if e.err == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.err}
}

func notFound(msg string) error { return &eventError{kind: ErrNotFound, msg: msg} }

func rejected(msg string) error { return &eventError{kind: ErrValidation, msg: msg} }

// storeErr classifies a gateway error: absence stays NotFound, anything
// else is a PersistenceFailure.
func storeErr(err error, missing string) error {
	if errors.Is(err, retro.ErrNotFound) {
		return &eventError{kind: ErrNotFound, msg: missing, err: err}
	}
	return &eventError{kind: ErrPersistence, msg: "Storage unavailable, try again", err: err}
}

var (
	errRetroNotFound      = notFound("Retro not found")
	errIdeaNotFound       = notFound("Idea not found")
	errGroupNotFound      = notFound("Group not found")
	errActionItemNotFound = notFound("Action item not found")
	errVoteNotFound       = notFound("Vote not found")
)

func statusOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "rejected"
	default:
		return "failed"
	}
}
