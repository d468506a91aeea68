package main

import (
	"fmt"
	"math"
	"strconv"

	"greenpath/cmd/greenpath/ui"
	"greenpath/internal/api"
	"greenpath/internal/nav"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// defaultThemeWeight is the slider position of a theme never rated before.
const defaultThemeWeight = 50

var (
	themeWeights []string
	themesDryRun bool

	metricValues []string
	metricsDry   bool
)

// themesCmd groups the theme-rating page
var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "Sustainability themes and their weights",
}

var themesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List themes with the current project's weights",
	RunE:  runThemesList,
}

var themesRateCmd = &cobra.Command{
	Use:   "rate",
	Short: "Rate how much each theme matters to the project",
	Long: `Save a weight between 0 and 100 for every theme of the current project.

Themes keep their stored weight (rounded) unless overridden with --set;
themes never rated start at 50.

Example:
  greenpath themes rate --set 1=80 --set 4=20`,
	RunE: runThemesRate,
}

// metricsCmd sends building metrics outside of project creation
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Send building metrics for the current project",
	Long: `Send building metrics for scoring.

Metrics: levels, external_wall_area, footprint_area, opening_pct,
wall_to_floor_ratio, footprint_gifa, gifa_total, external_openings_area,
avg_height_per_level`,
	RunE: runMetrics,
}

func init() {
	themesRateCmd.Flags().StringArrayVar(&themeWeights, "set", nil, "Theme weight as themeId=0..100 (repeatable)")
	themesRateCmd.Flags().BoolVar(&themesDryRun, "dry-run", false, "Validate on the server without saving")

	metricsCmd.Flags().StringArrayVar(&metricValues, "metric", nil, "Building metric as name=value (repeatable)")
	metricsCmd.Flags().BoolVar(&metricsDry, "dry-run", false, "Validate on the server without saving")

	themesCmd.AddCommand(themesListCmd)
	themesCmd.AddCommand(themesRateCmd)
}

// themeRow is one theme with the weight the page would show for it.
type themeRow struct {
	Theme  api.Theme
	Weight int
	Stored bool
}

// loadThemeRows joins the theme list with the stored weights of projectID.
func loadThemeRows(cmd *cobra.Command, projectID string) ([]themeRow, error) {
	ctx := cmd.Context()
	themes, err := client.ListThemes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load themes: %w", err)
	}
	scores, err := client.GetThemeScores(ctx, projectID)
	if errors.Is(err, api.ErrAuthExpired) {
		return nil, err
	}
	if err != nil {
		// a project that was never rated has no scores yet
		logger.Debug("no stored theme weights", zap.String("project_id", projectID), zap.Error(err))
		scores = nil
	}
	return mergeThemeWeights(themes, scores), nil
}

// mergeThemeWeights presets each theme with its stored weight, rounded, or
// the default.
func mergeThemeWeights(themes []api.Theme, scores []api.ThemeWeight) []themeRow {
	stored := make(map[string]float64, len(scores))
	for _, s := range scores {
		if s.RawWeight.Valid {
			stored[s.ThemeID] = s.RawWeight.Float64
		}
	}
	rows := make([]themeRow, len(themes))
	for i, t := range themes {
		rows[i] = themeRow{Theme: t, Weight: defaultThemeWeight}
		if w, ok := stored[t.ID]; ok {
			rows[i].Weight = int(math.Round(w))
			rows[i].Stored = true
		}
	}
	return rows
}

func runThemesList(cmd *cobra.Command, args []string) error {
	projectID, err := requireProject("")
	if err != nil {
		return err
	}
	rows, err := loadThemeRows(cmd, projectID)
	if err != nil {
		return err
	}

	table := ui.NewTable("Themes for project "+projectID, "ID", "Theme", "Weight")
	table.Empty = "The backend returned no themes."
	for _, r := range rows {
		weight := strconv.Itoa(r.Weight)
		if !r.Stored {
			weight += " (default)"
		}
		table.AddRow(r.Theme.ID, orDefault(r.Theme.Name, "Theme "+r.Theme.ID), weight)
	}
	fmt.Fprint(cmd.OutOrStdout(), table.View(ui.NewStyles(ui.ThemeFor(cfg.UI.Theme))))
	return nil
}

func runThemesRate(cmd *cobra.Command, args []string) error {
	overrides, err := parseWeights(themeWeights)
	if err != nil {
		return err
	}
	projectID, err := requireProject("")
	if err != nil {
		return err
	}
	rows, err := loadThemeRows(cmd, projectID)
	if err != nil {
		return err
	}

	weights := make(map[string]int, len(rows))
	for _, r := range rows {
		weights[r.Theme.ID] = r.Weight
	}
	for id, w := range overrides {
		if _, ok := weights[id]; !ok {
			return fmt.Errorf("unknown theme %q", id)
		}
		weights[id] = w
	}

	if err := client.SaveThemes(cmd.Context(), projectID, weights, themesDryRun); err != nil {
		return fmt.Errorf("failed to save theme weights: %w", err)
	}
	logger.Info("theme weights saved",
		zap.String("project_id", projectID),
		zap.Int("themes", len(weights)),
		zap.Bool("dry_run", themesDryRun))

	out := cmd.OutOrStdout()
	if themesDryRun {
		fmt.Fprintf(out, "Dry run: %d theme weight(s) accepted, nothing saved\n", len(weights))
		return nil
	}
	fmt.Fprintf(out, "Saved %d theme weight(s) for project %s\n", len(weights), projectID)
	fmt.Fprintf(out, "Next: greenpath go %s\n", nav.Interventions.Path)
	return nil
}

func runMetrics(cmd *cobra.Command, args []string) error {
	metrics, err := parseMetrics(metricValues)
	if err != nil {
		return err
	}
	if len(metrics) == 0 {
		return fmt.Errorf("no metrics given: pass at least one --metric name=value")
	}
	projectID, err := requireProject("")
	if err != nil {
		return err
	}
	if err := client.SendMetrics(cmd.Context(), projectID, metrics, metricsDry); err != nil {
		return fmt.Errorf("failed to send metrics: %w", err)
	}

	out := cmd.OutOrStdout()
	if metricsDry {
		fmt.Fprintf(out, "Dry run: %d metric(s) accepted, nothing saved\n", len(metrics))
		return nil
	}
	fmt.Fprintf(out, "Sent %d metric(s) for project %s\n", len(metrics), projectID)
	return nil
}
