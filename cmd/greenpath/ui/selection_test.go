package ui

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"greenpath/internal/api"
	"greenpath/internal/recommend"
	"greenpath/internal/workflow"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
	"github.com/guregu/null/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	mu       sync.Mutex
	rounds   []string
	fetchErr error
	apply    *api.ApplyResult
	applied  [][]recommend.InterventionID
}

func (b *stubBackend) Recommendations(context.Context, string) (json.RawMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fetchErr != nil {
		return nil, b.fetchErr
	}
	if len(b.rounds) == 0 {
		return json.RawMessage(`[]`), nil
	}
	next := b.rounds[0]
	b.rounds = b.rounds[1:]
	return json.RawMessage(next), nil
}

func (b *stubBackend) Apply(_ context.Context, _ string, ids []recommend.InterventionID) (*api.ApplyResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.applied = append(b.applied, ids)
	return b.apply, nil
}

// drive runs cmd and feeds every workflow message it yields back into m.
// Spinner ticks and quit messages are not fed back.
func drive(t *testing.T, m SelectionModel, cmd tea.Cmd) (SelectionModel, bool) {
	t.Helper()
	quit := false
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case tea.QuitMsg:
			quit = true
		case opDoneMsg, openReportMsg:
			next, nc := m.Update(msg)
			m = next.(SelectionModel)
			queue = append(queue, nc)
		}
	}
	return m, quit
}

func press(t *testing.T, m SelectionModel, keys ...string) (SelectionModel, bool) {
	t.Helper()
	quit := false
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, cmd := m.Update(msg)
		var q bool
		m, q = drive(t, next.(SelectionModel), cmd)
		quit = quit || q
	}
	return m, quit
}

func newModel(b workflow.Backend, mode recommend.SelectionMode) (SelectionModel, *workflow.Controller) {
	ctrl := workflow.New(b, workflow.Options{ProjectID: "42", Mode: mode})
	return NewSelectionModel(context.Background(), ctrl, NewStyles(LightTheme()), 0), ctrl
}

const roundOne = `{"recommendations":[
	{"intervention_id":1,"name":"Solar panels","score":0.9},
	{"intervention_id":2,"name":"Green roof","score":0.7},
	{"intervention_id":3,"name":"Rainwater tanks","score":0.4}]}`

func TestSelectionModel_LoadsFirstRound(t *testing.T) {
	b := &stubBackend{rounds: []string{roundOne}}
	m, ctrl := newModel(b, recommend.MultiSelect)

	m, _ = drive(t, m, m.Init())

	assert.Equal(t, workflow.StateReady, ctrl.State())
	view := m.View()
	assert.Contains(t, view, "Solar panels")
	assert.Contains(t, view, "Rainwater tanks")
	assert.Contains(t, view, "0.90")
	assert.Contains(t, view, "Round 1")
}

func TestSelectionModel_ToggleAndApplyAdvances(t *testing.T) {
	b := &stubBackend{
		rounds: []string{roundOne},
		apply: &api.ApplyResult{
			AppliedCount: null.IntFrom(2),
			Next:         json.RawMessage(`[{"intervention_id":4,"name":"Heat pumps","score":0.8}]`),
		},
	}
	m, ctrl := newModel(b, recommend.MultiSelect)
	m, _ = drive(t, m, m.Init())

	m, _ = press(t, m, "x", "down", "x")
	assert.ElementsMatch(t, []recommend.InterventionID{"1", "2"}, ctrl.Snapshot().Selected)
	assert.Contains(t, m.View(), "[x] Solar panels")

	m, quit := press(t, m, "enter")
	assert.False(t, quit)
	require.Len(t, b.applied, 1)
	assert.ElementsMatch(t, []recommend.InterventionID{"1", "2"}, b.applied[0])

	snap := ctrl.Snapshot()
	assert.Equal(t, workflow.StateReady, snap.State)
	assert.Equal(t, 2, snap.RoundNo)
	assert.Empty(t, snap.Selected)
	view := m.View()
	assert.Contains(t, view, "Heat pumps")
	assert.Contains(t, view, "Successfully applied 2 interventions!")
	assert.NotContains(t, view, "Solar panels")
}

func TestSelectionModel_EmptyApplyWarnsWithoutRequest(t *testing.T) {
	b := &stubBackend{rounds: []string{roundOne}}
	m, ctrl := newModel(b, recommend.MultiSelect)
	m, _ = drive(t, m, m.Init())

	m, _ = press(t, m, "enter")

	assert.Empty(t, b.applied)
	assert.Equal(t, workflow.StateReady, ctrl.State())
	assert.Contains(t, m.View(), workflow.ErrEmptySelection.Error())
}

func TestSelectionModel_TerminalOpensReport(t *testing.T) {
	b := &stubBackend{
		rounds: []string{roundOne},
		apply:  &api.ApplyResult{AppliedCount: null.IntFrom(1), Next: json.RawMessage(`[]`)},
	}
	m, ctrl := newModel(b, recommend.SingleSelect)
	m, _ = drive(t, m, m.Init())

	m, quit := press(t, m, "x", "enter")

	assert.True(t, quit)
	assert.True(t, m.OpenReport)
	assert.Equal(t, workflow.StateTerminal, ctrl.State())
}

func TestSelectionModel_FinishOpensReport(t *testing.T) {
	b := &stubBackend{rounds: []string{roundOne}}
	m, _ := newModel(b, recommend.MultiSelect)
	m, _ = drive(t, m, m.Init())

	m, quit := press(t, m, "s")

	assert.True(t, quit)
	assert.True(t, m.OpenReport)
	assert.Empty(t, b.applied)
}

func TestSelectionModel_ErrorThenRetry(t *testing.T) {
	b := &stubBackend{fetchErr: errors.Mark(errors.New("Service Unavailable"), api.ErrTransport)}
	m, ctrl := newModel(b, recommend.MultiSelect)
	m, _ = drive(t, m, m.Init())

	assert.Equal(t, workflow.StateErrored, ctrl.State())
	assert.Contains(t, m.View(), "Service Unavailable")
	assert.Contains(t, m.View(), "r to retry")

	b.mu.Lock()
	b.fetchErr = nil
	b.rounds = []string{roundOne}
	b.mu.Unlock()

	m, _ = press(t, m, "r")
	assert.Equal(t, workflow.StateReady, ctrl.State())
	assert.Contains(t, m.View(), "Green roof")
}

func TestSelectionModel_ReloadRefreshesReadyRound(t *testing.T) {
	b := &stubBackend{}
	m, ctrl := newModel(b, recommend.MultiSelect)
	m, _ = drive(t, m, m.Init())

	assert.Equal(t, workflow.StateReady, ctrl.State())
	assert.Contains(t, m.View(), workflow.MessageNoRecommendations)

	b.mu.Lock()
	b.rounds = []string{roundOne}
	b.mu.Unlock()

	m, _ = press(t, m, "r")
	assert.Equal(t, workflow.StateReady, ctrl.State())
	assert.Contains(t, m.View(), "Solar panels")
	assert.Equal(t, 2, ctrl.Snapshot().RoundNo)

	m, _ = press(t, m, "x", "r")
	assert.Empty(t, ctrl.Snapshot().Selected)
	assert.Contains(t, m.View(), workflow.MessageNoRecommendations)
	assert.Empty(t, b.applied)
}

func TestSelectionModel_QuitClosesController(t *testing.T) {
	b := &stubBackend{rounds: []string{roundOne}}
	m, ctrl := newModel(b, recommend.MultiSelect)
	initCmd := m.Init()

	m, quit := press(t, m, "q")
	assert.True(t, quit)
	assert.False(t, m.OpenReport)

	// the fetch finishing after quit is dropped
	m, _ = drive(t, m, initCmd)
	assert.Equal(t, workflow.StateLoading, ctrl.State())
	assert.False(t, strings.Contains(m.View(), "Solar panels"))
}

func TestSelectionModel_CursorStaysInRound(t *testing.T) {
	b := &stubBackend{rounds: []string{roundOne}}
	m, ctrl := newModel(b, recommend.SingleSelect)
	m, _ = drive(t, m, m.Init())

	m, _ = press(t, m, "down", "down", "down", "down", "x")
	assert.Equal(t, []recommend.InterventionID{"3"}, ctrl.Snapshot().Selected)

	_, _ = press(t, m, "up", "x")
	assert.Equal(t, []recommend.InterventionID{"2"}, ctrl.Snapshot().Selected)
}
