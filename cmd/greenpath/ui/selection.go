package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"greenpath/internal/logging"
	"greenpath/internal/recommend"
	"greenpath/internal/workflow"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// opDoneMsg carries the result of a workflow op back into the loop.
type opDoneMsg struct{ res workflow.Result }

// openReportMsg fires once the terminal message has been shown.
type openReportMsg struct{}

// SelectionModel is the intervention-selection page. Every network call runs
// as a tea.Cmd and its result is handed back to the controller, which drops
// anything stale.
type SelectionModel struct {
	ctx     context.Context
	ctrl    *workflow.Controller
	styles  Styles
	keys    SelectionKeys
	help    help.Model
	spinner spinner.Model
	delay   time.Duration
	log     *zap.Logger

	cursor int

	// OpenReport is set when the page quit to hand over to the report.
	OpenReport bool
}

// NewSelectionModel wraps ctrl. delay is how long the terminal message
// stays up before the report opens.
func NewSelectionModel(ctx context.Context, ctrl *workflow.Controller, styles Styles, delay time.Duration) SelectionModel {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = styles.Spinner
	return SelectionModel{
		ctx:     ctx,
		ctrl:    ctrl,
		styles:  styles,
		keys:    DefaultSelectionKeys(),
		help:    help.New(),
		spinner: sp,
		delay:   delay,
		log:     logging.Get(logging.CategoryUI),
	}
}

// Init starts the first fetch.
func (m SelectionModel) Init() tea.Cmd {
	op, err := m.ctrl.Reload()
	if err != nil {
		m.log.Debug("initial reload rejected", zap.Error(err))
	}
	return tea.Batch(m.spinner.Tick, m.run(op))
}

func (m SelectionModel) run(op *workflow.Op) tea.Cmd {
	if op == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{res: op.Run(ctx)}
	}
}

func (m SelectionModel) openReportAfter(d time.Duration) tea.Cmd {
	if d <= 0 {
		return func() tea.Msg { return openReportMsg{} }
	}
	return tea.Tick(d, func(time.Time) tea.Msg { return openReportMsg{} })
}

// Update handles messages.
func (m SelectionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case opDoneMsg:
		ev := m.ctrl.Complete(msg.res)
		if ev.Stale {
			return m, nil
		}
		m.clampCursor()
		var cmds []tea.Cmd
		if ev.Next != nil {
			cmds = append(cmds, m.run(ev.Next))
		}
		if ev.Report {
			cmds = append(cmds, m.openReportAfter(m.delay))
		}
		return m, tea.Batch(cmds...)

	case openReportMsg:
		m.OpenReport = true
		m.ctrl.Close()
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m SelectionModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := m.ctrl.Snapshot()
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.ctrl.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < snap.Round.Len()-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Toggle):
		if m.cursor < snap.Round.Len() {
			if err := m.ctrl.Toggle(snap.Round[m.cursor].InterventionID); err != nil {
				m.log.Debug("toggle rejected", zap.Error(err))
			}
		}

	case key.Matches(msg, m.keys.Apply):
		op, err := m.ctrl.Apply()
		if err != nil {
			m.log.Debug("apply rejected", zap.Error(err))
			return m, nil
		}
		return m, m.run(op)

	case key.Matches(msg, m.keys.Reload):
		// also refreshes a Ready round; rejected while applying
		op, err := m.ctrl.Reload()
		if err != nil {
			m.log.Debug("reload rejected", zap.Error(err))
			return m, nil
		}
		return m, m.run(op)

	case key.Matches(msg, m.keys.Finish):
		if ev := m.ctrl.Finish(); ev.Report {
			return m, m.openReportAfter(0)
		}
	}
	return m, nil
}

func (m *SelectionModel) clampCursor() {
	n := m.ctrl.Snapshot().Round.Len()
	if m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
}

// View renders the page.
func (m SelectionModel) View() string {
	snap := m.ctrl.Snapshot()
	var sb strings.Builder

	title := "Select interventions"
	if snap.ProjectID != "" {
		title = fmt.Sprintf("Select interventions · project %s", snap.ProjectID)
	}
	sb.WriteString(m.styles.Header.Render(title))
	sb.WriteString("\n")
	if snap.RoundNo > 0 {
		mode := "choose any number"
		if snap.Mode == recommend.SingleSelect {
			mode = "choose one"
		}
		sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("Round %d · %s", snap.RoundNo, mode)))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	switch snap.State {
	case workflow.StateLoading:
		sb.WriteString(m.spinner.View() + " Loading recommendations…\n")
	case workflow.StateApplying:
		sb.WriteString(m.spinner.View() + fmt.Sprintf(" Applying %d intervention(s)…\n", len(snap.Selected)))
	}

	for i, rec := range snap.Round {
		sb.WriteString(m.renderRow(i, rec, snap))
		sb.WriteString("\n")
	}

	if status := m.renderStatus(snap); status != "" {
		sb.WriteString("\n")
		sb.WriteString(status)
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(m.styles.Footer.Render(m.help.View(m.keys)))
	return sb.String()
}

func (m SelectionModel) renderRow(i int, rec recommend.Recommendation, snap workflow.Snapshot) string {
	pointer := "  "
	if i == m.cursor && snap.State == workflow.StateReady {
		pointer = m.styles.Cursor.Render("› ")
	}

	box := "[ ]"
	if snap.Mode == recommend.SingleSelect {
		box = "( )"
	}
	selected := snap.IsSelected(rec.InterventionID)
	if selected {
		box = "[x]"
		if snap.Mode == recommend.SingleSelect {
			box = "(•)"
		}
	}

	label := fmt.Sprintf("%s %s", box, rec.Label())
	if selected {
		label = m.styles.Selected.Render(label)
	} else {
		label = m.styles.Body.Render(label)
	}
	return pointer + label + "  " + m.styles.Muted.Render(recommend.FormatScore(rec.Score))
}

func (m SelectionModel) renderStatus(snap workflow.Snapshot) string {
	if snap.Message == "" {
		return ""
	}
	switch {
	case snap.State == workflow.StateTerminal:
		return m.styles.Success.Render(snap.Message)
	case snap.Err == nil:
		return m.styles.Info.Render(snap.Message)
	case errors.Is(snap.Err, workflow.ErrEmptySelection), errors.Is(snap.Err, workflow.ErrNothingApplied):
		return m.styles.Warning.Render(snap.Message)
	default:
		hint := ""
		if snap.State == workflow.StateErrored {
			hint = m.styles.Muted.Render("  (r to retry)")
		}
		return m.styles.Error.Render(snap.Message) + hint
	}
}
