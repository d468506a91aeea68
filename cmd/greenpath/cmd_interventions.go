package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"greenpath/cmd/greenpath/ui"
	"greenpath/internal/nav"
	"greenpath/internal/recommend"
	"greenpath/internal/store"
	"greenpath/internal/workflow"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var finishAfterApply bool

// interventionsCmd groups the intervention-selection page
var interventionsCmd = &cobra.Command{
	Use:   "interventions",
	Short: "Work through the ranked intervention recommendations",
}

var interventionsSelectCmd = &cobra.Command{
	Use:   "select",
	Short: "Select and apply interventions interactively",
	Long: `Open the selection page for the current project.

Each round lists the recommended interventions, best first. Select one or
more (space), apply them (enter) and the next, re-ranked round is shown.
When nothing is left, or when you stop early (s), the results page opens.`,
	RunE: runInterventionsSelect,
}

var interventionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the current round of recommendations",
	RunE:  runInterventionsList,
}

var interventionsApplyCmd = &cobra.Command{
	Use:   "apply <id>...",
	Short: "Apply interventions from the current round",
	Long: `Apply one or more interventions of the current round without the
interactive page, then show the next round.

In single selection mode exactly one id is accepted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInterventionsApply,
}

var interventionsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the local journal of applied rounds",
	RunE:  runInterventionsHistory,
}

func init() {
	interventionsApplyCmd.Flags().BoolVar(&finishAfterApply, "finish", false, "Open the results after applying")

	interventionsCmd.AddCommand(interventionsSelectCmd)
	interventionsCmd.AddCommand(interventionsListCmd)
	interventionsCmd.AddCommand(interventionsApplyCmd)
	interventionsCmd.AddCommand(interventionsHistoryCmd)
}

func newController(projectID string) *workflow.Controller {
	opts := workflow.Options{
		ProjectID: projectID,
		Mode:      cfg.Workflow.Selection(),
		Fields:    cfg.Workflow.Fields(),
	}
	if db != nil {
		opts.Recorder = db
	}
	backend := workflow.APIBackend{Client: client, Single: cfg.Workflow.SingleApply()}
	return workflow.New(backend, opts)
}

// currentProjectOrEmpty resolves the project but leaves a missing one for
// the controller to report.
func currentProjectOrEmpty() (string, error) {
	id, _, err := sess.ResolveProject(projectFlag, "")
	return id, err
}

func runInterventionsSelect(cmd *cobra.Command, args []string) error {
	projectID, err := currentProjectOrEmpty()
	if err != nil {
		return err
	}
	ctrl := newController(projectID)
	defer ctrl.Close()

	styles := ui.NewStyles(ui.ThemeFor(cfg.UI.Theme))
	model := ui.NewSelectionModel(cmd.Context(), ctrl, styles, cfg.GetTerminalDelay())
	final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	if err != nil {
		return fmt.Errorf("selection page failed: %w", err)
	}
	if m, ok := final.(ui.SelectionModel); ok && m.OpenReport {
		return showResults(cmd, projectID, true)
	}
	return nil
}

// loadRound starts a controller and waits for the first round.
func loadRound(cmd *cobra.Command) (*workflow.Controller, error) {
	projectID, err := requireProject("")
	if err != nil {
		return nil, err
	}
	ctrl := newController(projectID)
	op, err := ctrl.Reload()
	if err != nil {
		return nil, err
	}
	if ev := workflow.Drive(cmd.Context(), ctrl, op); ev.Err != nil {
		ctrl.Close()
		return nil, fmt.Errorf("failed to load recommendations: %w", ev.Err)
	}
	return ctrl, nil
}

func runInterventionsList(cmd *cobra.Command, args []string) error {
	ctrl, err := loadRound(cmd)
	if err != nil {
		return err
	}
	defer ctrl.Close()
	printRound(cmd.OutOrStdout(), ctrl.Snapshot())
	return nil
}

func runInterventionsApply(cmd *cobra.Command, args []string) error {
	if cfg.Workflow.Selection() == recommend.SingleSelect && len(args) > 1 {
		return fmt.Errorf("single selection mode applies one intervention at a time, got %d", len(args))
	}
	ctrl, err := loadRound(cmd)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	for _, arg := range args {
		if err := ctrl.Select(recommend.InterventionID(strings.TrimSpace(arg))); err != nil {
			return fmt.Errorf("cannot select %s: %w", arg, err)
		}
	}
	op, err := ctrl.Apply()
	if err != nil {
		return err
	}
	ev := workflow.Drive(cmd.Context(), ctrl, op)
	logger.Info("apply finished",
		zap.Stringer("state", ev.State),
		zap.Bool("report", ev.Report),
		zap.Int("requested", len(args)))

	out := cmd.OutOrStdout()
	switch {
	case ev.Err != nil && ev.State == workflow.StateErrored:
		return fmt.Errorf("%s: %w", ev.Message, ev.Err)
	case ev.Report:
		fmt.Fprintln(out, ev.Message)
		return showResults(cmd, ctrl.Snapshot().ProjectID, false)
	}

	if ev.Message != "" {
		fmt.Fprintln(out, ev.Message)
	}
	if finishAfterApply {
		if fin := ctrl.Finish(); fin.Report {
			fmt.Fprintln(out, fin.Message)
			return showResults(cmd, ctrl.Snapshot().ProjectID, false)
		}
		return nil
	}
	printRound(out, ctrl.Snapshot())
	return nil
}

func printRound(out io.Writer, snap workflow.Snapshot) {
	styles := ui.NewStyles(ui.ThemeFor(cfg.UI.Theme))
	table := ui.NewTable(fmt.Sprintf("Round %d for project %s", snap.RoundNo, snap.ProjectID),
		"#", "ID", "Intervention", "Score")
	table.Empty = workflow.MessageNoRecommendations
	for i, rec := range snap.Round {
		table.AddRow(strconv.Itoa(i+1), string(rec.InterventionID), rec.Label(), recommend.FormatScore(rec.Score))
	}
	fmt.Fprint(out, table.View(styles))
	if !snap.Round.Empty() {
		fmt.Fprintf(out, "\nApply with `greenpath interventions apply <id>` or stop with `greenpath go %s`\n", nav.Results.Path)
	}
}

func runInterventionsHistory(cmd *cobra.Command, args []string) error {
	projectID, err := requireProject("")
	if err != nil {
		return err
	}
	records, err := db.ListApplies(cmd.Context(), projectID)
	if err != nil {
		return fmt.Errorf("failed to read apply journal: %w", err)
	}

	table := ui.NewTable("Applied rounds for project "+projectID, "When", "Round", "Interventions", "Applied", "Outcome")
	table.Empty = "Nothing applied from this machine yet."
	for _, rec := range records {
		table.AddRow(
			rec.CreatedAt.Local().Format(time.DateTime),
			strconv.Itoa(rec.Round),
			strings.Join(rec.InterventionIDs, ", "),
			appliedCell(rec),
			outcomeCell(rec),
		)
	}
	fmt.Fprint(cmd.OutOrStdout(), table.View(ui.NewStyles(ui.ThemeFor(cfg.UI.Theme))))
	return nil
}

func appliedCell(rec store.ApplyRecord) string {
	if !rec.AppliedCount.Valid {
		return "-"
	}
	return strconv.FormatInt(rec.AppliedCount.Int64, 10)
}

func outcomeCell(rec store.ApplyRecord) string {
	if rec.Message.Valid && rec.Message.String != "" {
		return fmt.Sprintf("%s (%s)", rec.Outcome, rec.Message.String)
	}
	return string(rec.Outcome)
}
