package workflow

import (
	"greenpath/internal/api"

	"github.com/cockroachdb/errors"
)

// Errors surfaced by the controller. Transport failures come straight from
// the api package and still match api.ErrTransport / api.ErrAuthExpired.
var (
	// ErrMissingProject means no project id could be resolved. No request is
	// made; the user has to pick or create a project first.
	ErrMissingProject = errors.New("no project selected")

	// ErrEmptySelection rejects an apply with nothing selected.
	ErrEmptySelection = errors.New("select at least one intervention")

	// ErrNothingApplied is the server accepting an apply that changed nothing.
	ErrNothingApplied = errors.New("no interventions were applied")

	// ErrBusy rejects a transition while a request is outstanding.
	ErrBusy = errors.New("a request is already in progress")

	// ErrNotReady rejects a transition that the current state does not allow.
	ErrNotReady = errors.New("no recommendations are loaded")

	// ErrFinished rejects any transition after Finish, terminal or Close.
	ErrFinished = errors.New("workflow has finished")

	// ErrUnknownIntervention rejects selecting an id outside the round.
	ErrUnknownIntervention = errors.New("intervention is not in the current round")

	ErrTransport   = api.ErrTransport
	ErrAuthExpired = api.ErrAuthExpired
)

// ErrorKind names an error's place in the taxonomy for display.
type ErrorKind string

const (
	KindNone           ErrorKind = ""
	KindMissingProject ErrorKind = "MissingProject"
	KindTransport      ErrorKind = "TransportError"
	KindEmptySelection ErrorKind = "EmptySelection"
	KindNothingApplied ErrorKind = "NothingApplied"
	KindAuthExpired    ErrorKind = "AuthExpired"
	KindBusy           ErrorKind = "Busy"
	KindOther          ErrorKind = "Other"
)

// Kind maps err to its taxonomy kind.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrMissingProject):
		return KindMissingProject
	case errors.Is(err, ErrEmptySelection):
		return KindEmptySelection
	case errors.Is(err, ErrNothingApplied):
		return KindNothingApplied
	case errors.Is(err, ErrAuthExpired):
		return KindAuthExpired
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrBusy):
		return KindBusy
	default:
		return KindOther
	}
}
