package workflow

import (
	"context"
	"encoding/json"

	"greenpath/internal/api"
	"greenpath/internal/recommend"
)

// OpKind says which request an Op performs.
type OpKind int

const (
	OpFetch OpKind = iota
	OpApply
)

func (k OpKind) String() string {
	if k == OpApply {
		return "apply"
	}
	return "fetch"
}

// Op is one pending request. It captures everything it needs by value and
// never touches controller state, so it may run on any goroutine.
type Op struct {
	Kind       OpKind
	Generation uint64
	ProjectID  string
	IDs        []recommend.InterventionID
	AfterApply bool

	backend Backend
}

// Result is the outcome of running an Op.
type Result struct {
	Kind       OpKind
	Generation uint64
	AfterApply bool
	Payload    json.RawMessage
	Apply      *api.ApplyResult
	Err        error
}

func newFetchOp(b Backend, gen uint64, projectID string, afterApply bool) *Op {
	return &Op{Kind: OpFetch, Generation: gen, ProjectID: projectID, AfterApply: afterApply, backend: b}
}

func newApplyOp(b Backend, gen uint64, projectID string, ids []recommend.InterventionID) *Op {
	own := make([]recommend.InterventionID, len(ids))
	copy(own, ids)
	return &Op{Kind: OpApply, Generation: gen, ProjectID: projectID, IDs: own, backend: b}
}

// Run performs the request. It makes exactly one backend call and never
// retries.
func (o *Op) Run(ctx context.Context) Result {
	res := Result{Kind: o.Kind, Generation: o.Generation, AfterApply: o.AfterApply}
	switch o.Kind {
	case OpFetch:
		res.Payload, res.Err = o.backend.Recommendations(ctx, o.ProjectID)
	case OpApply:
		res.Apply, res.Err = o.backend.Apply(ctx, o.ProjectID, o.IDs)
	}
	return res
}

// Event describes the controller after a transition.
type Event struct {
	State   State
	Message string
	Err     error

	// Report is true exactly once per controller: on the transition into
	// Terminal that should open the report.
	Report bool

	// Next is a follow-up Op the caller must run, set when an apply
	// response did not carry the next round.
	Next *Op

	// Stale marks a dropped result; nothing changed.
	Stale bool
}

// Drive runs op and any follow-up ops to completion, returning the last
// Event. A nil op returns the current state.
func Drive(ctx context.Context, c *Controller, op *Op) Event {
	if op == nil {
		return c.Event()
	}
	var ev Event
	for op != nil {
		ev = c.Complete(op.Run(ctx))
		op = ev.Next
	}
	return ev
}
