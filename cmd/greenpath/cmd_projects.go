package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"greenpath/cmd/greenpath/ui"
	"greenpath/internal/api"
	"greenpath/internal/nav"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Project list sort keys.
const (
	sortByUpdated  = "updated_at"
	sortByName     = "name"
	sortByLocation = "location"
)

var (
	listFilter string
	listSort   string
	listLimit  int
	listJSON   bool

	newProject    api.NewProject
	projectMetric []string
	patchFields   []string
)

// projectsCmd groups the dashboard pages
var projectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"project"},
	Short:   "List, create and manage building projects",
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your projects",
	Long: `List the projects of the logged-in user.

Projects can be filtered on name or location and sorted by recent update
(default), name or location. Only the first --limit entries are shown.`,
	RunE: runProjectsList,
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project with its building metrics",
	Long: `Create a project, send its building metrics for scoring and make it the
current project.

Metrics: ` + strings.Join(api.MetricFields, ", ") + `

Example:
  greenpath projects create --name "Tower A" --building-type Office \
    --metric levels=12 --metric gifa_total=18000`,
	RunE: runProjectsCreate,
}

var projectsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a project",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProjectsShow,
}

var projectsPatchCmd = &cobra.Command{
	Use:   "patch [id]",
	Short: "Update fields of a project",
	Long: `Update fields of a project with repeated --set key=value flags.
Numbers and booleans keep their type and "null" clears a field.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProjectsPatch,
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsDelete,
}

var projectsUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Make a project the current project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsUse,
}

func init() {
	projectsListCmd.Flags().StringVar(&listFilter, "filter", "", "Case-insensitive match on name or location")
	projectsListCmd.Flags().StringVar(&listSort, "sort", sortByUpdated, "Sort by updated_at, name or location")
	projectsListCmd.Flags().IntVar(&listLimit, "limit", 6, "Maximum projects shown (0 for all)")
	projectsListCmd.Flags().BoolVar(&listJSON, "json", false, "Print raw JSON")

	projectsCreateCmd.Flags().StringVar(&newProject.Name, "name", "", "Project name (required)")
	projectsCreateCmd.Flags().StringVar(&newProject.ProjectType, "type", "", "Project type")
	projectsCreateCmd.Flags().StringVar(&newProject.Location, "location", "", "Location (default "+api.DefaultLocation+")")
	projectsCreateCmd.Flags().StringVar(&newProject.BuildingType, "building-type", "", "Building type, e.g. Office")
	projectsCreateCmd.Flags().StringArrayVar(&projectMetric, "metric", nil, "Building metric as name=value (repeatable)")
	projectsCreateCmd.MarkFlagRequired("name")

	projectsPatchCmd.Flags().StringArrayVar(&patchFields, "set", nil, "Field as key=value (repeatable)")
	projectsShowCmd.Flags().BoolVar(&listJSON, "json", false, "Print raw JSON")

	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsCreateCmd)
	projectsCmd.AddCommand(projectsShowCmd)
	projectsCmd.AddCommand(projectsPatchCmd)
	projectsCmd.AddCommand(projectsDeleteCmd)
	projectsCmd.AddCommand(projectsUseCmd)
}

func runProjectsList(cmd *cobra.Command, args []string) error {
	userID := sess.UserID()
	if userID == "" {
		return fmt.Errorf("not logged in: run `greenpath auth login` first")
	}
	switch listSort {
	case sortByUpdated, sortByName, sortByLocation:
	default:
		return fmt.Errorf("invalid --sort %q (valid: updated_at, name, location)", listSort)
	}

	projects, err := client.ListProjectsByUser(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("failed to load projects: %w", err)
	}
	visible := selectProjects(projects, listFilter, listSort, listLimit)

	out := cmd.OutOrStdout()
	if listJSON {
		return writeJSON(out, visible)
	}

	table := ui.NewTable(fmt.Sprintf("Projects (%d of %d)", len(visible), len(projects)),
		"ID", "Name", "Location", "Building type", "Updated")
	table.Empty = "No projects yet. Create one with `greenpath projects create`."
	current := sess.ProjectID()
	for _, p := range visible {
		id := p.ID
		if id == current {
			id += " *"
		}
		table.AddRow(id, orDefault(p.Name, "Untitled"), orDefault(p.Location, "-"), orDefault(p.BuildingType, "-"), p.UpdatedAt)
	}
	fmt.Fprint(out, table.View(ui.NewStyles(ui.ThemeFor(cfg.UI.Theme))))
	return nil
}

// selectProjects filters, sorts and truncates the dashboard list.
func selectProjects(projects []api.Project, filter, sortKey string, limit int) []api.Project {
	q := strings.ToLower(strings.TrimSpace(filter))
	out := make([]api.Project, 0, len(projects))
	for _, p := range projects {
		if q == "" ||
			strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Location), q) {
			out = append(out, p)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch sortKey {
		case sortByName:
			return strings.ToLower(orDefault(a.Name, "Untitled")) < strings.ToLower(orDefault(b.Name, "Untitled"))
		case sortByLocation:
			return strings.ToLower(a.Location) < strings.ToLower(b.Location)
		}
		at, bt := parseUpdated(a.UpdatedAt), parseUpdated(b.UpdatedAt)
		if !at.Equal(bt) {
			return at.After(bt)
		}
		return idAfter(a.ID, b.ID)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

var updatedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	time.RFC1123,
	"2006-01-02",
}

// parseUpdated reads the backend timestamp. Unparseable values sort last.
func parseUpdated(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range updatedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// idAfter orders ids descending, numerically when both are numbers.
func idAfter(a, b string) bool {
	an, aerr := strconv.ParseInt(a, 10, 64)
	bn, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		return an > bn
	}
	return a > b
}

func runProjectsCreate(cmd *cobra.Command, args []string) error {
	metrics, err := parseMetrics(projectMetric)
	if err != nil {
		return err
	}
	form := newProject
	form.Metrics = metrics

	ctx := cmd.Context()
	project, err := client.CreateProject(ctx, form)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	if err := client.SendMetrics(ctx, project.ID, metrics, false); err != nil {
		return fmt.Errorf("project %s was created but its metrics were not saved (retry with `greenpath metrics -p %s`): %w",
			project.ID, project.ID, err)
	}
	if err := sess.SetProject(project.ID); err != nil {
		return fmt.Errorf("failed to store current project: %w", err)
	}
	logger.Info("project created", zap.String("project_id", project.ID), zap.Int("metrics", len(metrics)))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created project %s (%s)\n", project.Name, project.ID)
	fmt.Fprintf(out, "Next: greenpath go %s\n", nav.ThemeRating.Path)
	return nil
}

func runProjectsShow(cmd *cobra.Command, args []string) error {
	id, err := projectArg(args)
	if err != nil {
		return err
	}
	project, err := client.GetProject(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to load project %s: %w", id, err)
	}
	if project == nil {
		return fmt.Errorf("project %s not found", id)
	}

	out := cmd.OutOrStdout()
	if listJSON {
		return writeJSON(out, project)
	}
	fmt.Fprintf(out, "ID:            %s\n", project.ID)
	fmt.Fprintf(out, "Name:          %s\n", orDefault(project.Name, "Untitled"))
	fmt.Fprintf(out, "Location:      %s\n", orDefault(project.Location, "-"))
	fmt.Fprintf(out, "Building type: %s\n", orDefault(project.BuildingType, "-"))
	fmt.Fprintf(out, "Project type:  %s\n", orDefault(project.ProjectType, "-"))
	fmt.Fprintf(out, "Updated:       %s\n", orDefault(project.UpdatedAt, "-"))
	return nil
}

func runProjectsPatch(cmd *cobra.Command, args []string) error {
	id, err := projectArg(args)
	if err != nil {
		return err
	}
	body, err := parsePatch(patchFields)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return fmt.Errorf("nothing to update: pass at least one --set key=value")
	}
	if _, err := client.PatchProject(cmd.Context(), id, body); err != nil {
		return fmt.Errorf("failed to update project %s: %w", id, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated project %s (%d field(s))\n", id, len(body))
	return nil
}

func runProjectsDelete(cmd *cobra.Command, args []string) error {
	id := strings.TrimSpace(args[0])
	if err := client.DeleteProject(cmd.Context(), id); err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	if sess.ProjectID() == id {
		if err := sess.SetProject(""); err != nil {
			return fmt.Errorf("failed to clear current project: %w", err)
		}
	}
	logger.Info("project deleted", zap.String("project_id", id))
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", id)
	return nil
}

func runProjectsUse(cmd *cobra.Command, args []string) error {
	id := strings.TrimSpace(args[0])
	if id == "" {
		return fmt.Errorf("project id is required")
	}
	if err := sess.SetProject(id); err != nil {
		return fmt.Errorf("failed to store current project: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Current project: %s\n", id)
	return nil
}

// projectArg takes the project from the first argument, else resolves it.
func projectArg(args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	return requireProject("")
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
