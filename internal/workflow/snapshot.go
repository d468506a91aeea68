package workflow

import "greenpath/internal/recommend"

// Snapshot is a read-only copy of the controller for rendering.
type Snapshot struct {
	State     State
	ProjectID string
	Round     recommend.Round
	RoundNo   int
	Selected  []recommend.InterventionID
	Mode      recommend.SelectionMode
	Message   string
	Err       error
}

// IsSelected reports whether id is in the snapshot's selection.
func (s Snapshot) IsSelected(id recommend.InterventionID) bool {
	for _, sel := range s.Selected {
		if sel == id {
			return true
		}
	}
	return false
}

// Snapshot copies the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	round := make(recommend.Round, len(c.round))
	copy(round, c.round)
	return Snapshot{
		State:     c.state,
		ProjectID: c.projectID,
		Round:     round,
		RoundNo:   c.roundNo,
		Selected:  c.selection.IDs(),
		Mode:      c.selection.Mode(),
		Message:   c.message,
		Err:       c.err,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Event returns the current state as an Event with nothing signalled.
func (c *Controller) Event() Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eventLocked()
}

func (c *Controller) eventLocked() Event {
	return Event{State: c.state, Message: c.message, Err: c.err}
}
