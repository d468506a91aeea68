// Package workflow drives the recommendation loop of a project: fetch a
// ranked round, let the user select, apply the selection, and repeat with the
// re-ranked round until nothing is left, then hand over to the report.
//
// The Controller is a pure state machine. Transitions that need the network
// return an *Op; the caller runs it (inline or as a bubbletea command) and
// feeds the Result back through Complete. Every Op carries the generation it
// was issued under, and Complete drops results whose generation is no longer
// current, so a superseded fetch or a result arriving after Finish or Close
// never reaches the state.
package workflow

import (
	"context"
	"fmt"
	"sync"

	"greenpath/internal/api"
	"greenpath/internal/logging"
	"greenpath/internal/recommend"
	"greenpath/internal/store"

	"github.com/cockroachdb/errors"
	"github.com/guregu/null/v5"
	"go.uber.org/zap"
)

// State is the controller's position in the loop.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateApplying
	StateTerminal
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateApplying:
		return "applying"
	case StateTerminal:
		return "terminal"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status messages shown to the user.
const (
	MessageTerminal          = "All interventions applied! Opening the report…"
	MessageFinished          = "Opening the report…"
	MessageNoRecommendations = "No recommendations available for this project."
)

// Recorder receives one journal entry per completed apply.
type Recorder interface {
	RecordApply(ctx context.Context, rec store.ApplyRecord) (store.ApplyRecord, error)
}

// Options configures a Controller.
type Options struct {
	ProjectID string
	Mode      recommend.SelectionMode
	Fields    recommend.ScoreFields
	Recorder  Recorder
}

// Controller is the iteration state machine for one project. It is safe for
// concurrent use, but is designed to be driven from a single event loop.
type Controller struct {
	mu sync.Mutex

	backend   Backend
	projectID string
	fields    recommend.ScoreFields
	recorder  Recorder
	log       *zap.Logger

	state     State
	round     recommend.Round
	selection *recommend.Selection
	roundNo   int
	message   string
	err       error

	generation uint64
	pending    []recommend.InterventionID
	reported   bool
	closed     bool
}

// New creates an idle controller.
func New(backend Backend, opts Options) *Controller {
	fields := opts.Fields
	if len(fields) == 0 {
		fields = recommend.DefaultScoreFields
	}
	return &Controller{
		backend:   backend,
		projectID: opts.ProjectID,
		fields:    fields,
		recorder:  opts.Recorder,
		log:       logging.Get(logging.CategoryWorkflow).With(zap.String("project_id", opts.ProjectID)),
		selection: recommend.NewSelection(opts.Mode),
	}
}

// Reload starts a fetch. Without a project id the controller goes straight to
// Errored with ErrMissingProject and no Op is returned. A reload while a fetch
// is outstanding supersedes it.
func (c *Controller) Reload() (*Op, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reloadLocked()
}

func (c *Controller) reloadLocked() (*Op, error) {
	if c.finished() {
		return nil, ErrFinished
	}
	if c.state == StateApplying {
		return nil, ErrBusy
	}
	if c.projectID == "" {
		c.setError(ErrMissingProject, ErrMissingProject.Error()+". Create or open a project first.")
		return nil, ErrMissingProject
	}
	return c.beginFetch(false), nil
}

// Retry re-enters Loading from Errored.
func (c *Controller) Retry() (*Op, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateErrored {
		return nil, ErrNotReady
	}
	return c.reloadLocked()
}

// beginFetch moves to Loading under a new generation. Callers hold mu.
func (c *Controller) beginFetch(afterApply bool) *Op {
	c.generation++
	c.state = StateLoading
	c.round = nil
	c.selection.Clear()
	c.err = nil
	c.message = ""
	c.log.Debug("fetching recommendations", zap.Uint64("generation", c.generation), zap.Bool("after_apply", afterApply))
	return newFetchOp(c.backend, c.generation, c.projectID, afterApply)
}

// Toggle flips id in the selection. Only allowed in Ready.
func (c *Controller) Toggle(id recommend.InterventionID) error {
	return c.mutateSelection(id, (*recommend.Selection).Toggle)
}

// Select makes id selected (replacing the selection in single mode).
func (c *Controller) Select(id recommend.InterventionID) error {
	return c.mutateSelection(id, (*recommend.Selection).Select)
}

func (c *Controller) mutateSelection(id recommend.InterventionID, fn func(*recommend.Selection, recommend.InterventionID)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.readyLocked(); err != nil {
		return err
	}
	if !c.round.Contains(id) {
		return errors.Wrapf(ErrUnknownIntervention, "intervention %s", id)
	}
	fn(c.selection, id)
	if errors.Is(c.err, ErrEmptySelection) {
		c.err = nil
		c.message = ""
	}
	return nil
}

// Apply submits the selection. An empty selection is rejected without a
// request and the controller stays Ready.
func (c *Controller) Apply() (*Op, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.readyLocked(); err != nil {
		return nil, err
	}
	if c.selection.Empty() {
		c.err = ErrEmptySelection
		c.message = ErrEmptySelection.Error() + "."
		return nil, ErrEmptySelection
	}

	c.generation++
	c.state = StateApplying
	c.pending = c.selection.IDs()
	c.err = nil
	c.message = ""
	c.log.Info("applying interventions",
		zap.Uint64("generation", c.generation),
		zap.Int("round", c.roundNo),
		zap.Int("count", len(c.pending)))
	return newApplyOp(c.backend, c.generation, c.projectID, c.pending), nil
}

func (c *Controller) readyLocked() error {
	if c.closed {
		return ErrFinished
	}
	switch c.state {
	case StateReady:
		return nil
	case StateLoading, StateApplying:
		return ErrBusy
	case StateTerminal:
		return ErrFinished
	default:
		return ErrNotReady
	}
}

// Finish leaves the loop for the report regardless of what is left. Any
// in-flight result is suppressed. The report is signalled at most once over
// the controller's life.
func (c *Controller) Finish() Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.finished() {
		return c.eventLocked()
	}
	c.generation++
	c.state = StateTerminal
	c.pending = nil
	c.err = nil
	c.message = MessageFinished
	c.log.Info("workflow finished by user", zap.Int("round", c.roundNo))
	ev := c.eventLocked()
	ev.Report = c.signalReport()
	return ev
}

// Close detaches the controller. Results completed afterwards are ignored
// and no state changes.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.generation++
}

func (c *Controller) finished() bool {
	return c.closed || c.state == StateTerminal
}

func (c *Controller) signalReport() bool {
	if c.reported {
		return false
	}
	c.reported = true
	return true
}

func (c *Controller) setError(err error, msg string) {
	c.state = StateErrored
	c.err = err
	c.message = msg
}

// Complete applies the result of an Op. Stale results come back as an Event
// with Stale set and change nothing.
func (c *Controller) Complete(res Result) Event {
	c.mu.Lock()

	if c.closed || res.Generation != c.generation {
		c.log.Debug("dropping stale result",
			zap.Stringer("kind", res.Kind),
			zap.Uint64("generation", res.Generation),
			zap.Uint64("current", c.generation),
			zap.Bool("closed", c.closed))
		ev := c.eventLocked()
		c.mu.Unlock()
		ev.Stale = true
		return ev
	}

	var (
		ev  Event
		rec *store.ApplyRecord
	)
	switch res.Kind {
	case OpFetch:
		ev = c.completeFetch(res)
	case OpApply:
		ev, rec = c.completeApply(res)
	}
	recorder := c.recorder
	c.mu.Unlock()

	if rec != nil && recorder != nil {
		if _, err := recorder.RecordApply(context.Background(), *rec); err != nil {
			c.log.Warn("failed to journal apply", zap.Error(err))
		}
	}
	return ev
}

func (c *Controller) completeFetch(res Result) Event {
	if res.Err != nil {
		c.round = nil
		c.selection.Clear()
		c.setError(res.Err, res.Err.Error())
		c.log.Warn("fetch failed", zap.Error(res.Err))
		return c.eventLocked()
	}

	c.installRound(recommend.Normalize(res.Payload, c.fields))
	if c.round.Empty() {
		if res.AfterApply {
			return c.terminateLocked()
		}
		c.message = MessageNoRecommendations
	}
	return c.eventLocked()
}

func (c *Controller) completeApply(res Result) (Event, *store.ApplyRecord) {
	rec := &store.ApplyRecord{
		ProjectID:       c.projectID,
		Round:           c.roundNo,
		InterventionIDs: idStrings(c.pending),
	}
	c.pending = nil

	if res.Err != nil {
		c.setError(res.Err, "Failed to apply interventions: "+res.Err.Error())
		c.log.Warn("apply failed", zap.Error(res.Err))
		rec.Outcome = store.OutcomeFailed
		rec.Message = null.StringFrom(res.Err.Error())
		return c.eventLocked(), rec
	}

	out := res.Apply
	if out == nil {
		out = &api.ApplyResult{}
	}
	rec.AppliedCount = out.AppliedCount

	if out.AppliedCount.Valid && out.AppliedCount.Int64 == 0 {
		c.state = StateReady
		c.err = ErrNothingApplied
		c.message = ErrNothingApplied.Error() + "; the selection is unchanged."
		rec.Outcome = store.OutcomeNothingApplied
		c.log.Info("server applied nothing", zap.Int("round", c.roundNo))
		return c.eventLocked(), rec
	}

	if out.Next == nil {
		rec.Outcome = store.OutcomeRefetch
		op := c.beginFetch(true)
		ev := c.eventLocked()
		ev.Next = op
		return ev, rec
	}

	if !recommend.IsRoundPayload(out.Next) {
		err := errors.Mark(errors.New("invalid next round in apply response"), ErrTransport)
		c.setError(err, "Failed to apply interventions: "+err.Error())
		c.log.Warn("apply response unusable", zap.Int("round", c.roundNo))
		rec.Outcome = store.OutcomeFailed
		rec.Message = null.StringFrom(err.Error())
		return c.eventLocked(), rec
	}

	c.installRound(recommend.Normalize(out.Next, c.fields))
	if c.round.Empty() {
		rec.Outcome = store.OutcomeTerminal
		c.log.Info("no recommendations left", zap.Bool("has_more", out.HasMore.Bool))
		return c.terminateLocked(), rec
	}

	rec.Outcome = store.OutcomeAdvanced
	if n := out.AppliedCount.Int64; out.AppliedCount.Valid && n > 0 {
		c.message = appliedMessage(n)
	}
	return c.eventLocked(), rec
}

// installRound replaces the round wholesale and resets the selection.
func (c *Controller) installRound(round recommend.Round) {
	c.round = round
	c.roundNo++
	c.selection.Reset(round)
	c.state = StateReady
	c.err = nil
	c.message = ""
}

func (c *Controller) terminateLocked() Event {
	c.state = StateTerminal
	c.err = nil
	c.message = MessageTerminal
	ev := c.eventLocked()
	ev.Report = c.signalReport()
	return ev
}

func appliedMessage(n int64) string {
	if n == 1 {
		return "Successfully applied 1 intervention!"
	}
	return fmt.Sprintf("Successfully applied %d interventions!", n)
}

func idStrings(ids []recommend.InterventionID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
