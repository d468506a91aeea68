package main

import (
	"fmt"

	"greenpath/cmd/greenpath/ui"
	"greenpath/internal/api"
	"greenpath/internal/logging"
	"greenpath/internal/recommend"
	"greenpath/internal/report"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	reportOutDir string
	reportView   bool
	reportRaw    bool
	reportWidth  int
)

// reportCmd is the results page
var reportCmd = &cobra.Command{
	Use:     "report",
	Aliases: []string{"results"},
	Short:   "Show implemented interventions and the project report",
	Long: `Show the interventions implemented for the current project, ordered
by score, and the report the backend generated for it.

The graph, HTML and PDF report files are downloaded concurrently; pass
--out to keep them on disk.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVarP(&reportOutDir, "out", "o", "", "Directory to save graph.svg, report.html and report.pdf")
	reportCmd.Flags().BoolVar(&reportView, "view", false, "Open the results in a scrollable viewer")
	reportCmd.Flags().BoolVar(&reportRaw, "raw", false, "Print markdown without terminal rendering")
	reportCmd.Flags().IntVar(&reportWidth, "width", 100, "Wrap width of the rendered output")
}

func runReport(cmd *cobra.Command, args []string) error {
	projectID, err := requireProject("")
	if err != nil {
		return err
	}
	return showResults(cmd, projectID, reportView)
}

// results is everything the results page shows.
type results struct {
	ProjectID   string
	Implemented []recommend.Implemented
	Files       []report.File
	Markdown    string
}

func loadResults(cmd *cobra.Command, projectID string) (*results, error) {
	timer := logging.StartTimer(logging.CategoryReport, "loadResults")
	defer timer.Stop()

	ctx := cmd.Context()
	raw, err := client.GetImplemented(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load implemented interventions: %w", err)
	}
	res := &results{ProjectID: projectID, Implemented: recommend.NormalizeImplemented(raw)}

	res.Files, err = report.Download(ctx, client, projectID, reportOutDir, api.Artifacts)
	if err != nil {
		return nil, err
	}

	body := ""
	if html, ok := report.Find(res.Files, api.ArtifactHTML); ok && html.Err == nil {
		body, err = report.HTMLToMarkdown(string(html.Body))
		if err != nil {
			logger.Warn("report html unreadable", zap.Error(err))
			body = ""
		}
	}
	res.Markdown = report.Markdown(projectID, res.Implemented, body)
	return res, nil
}

func showResults(cmd *cobra.Command, projectID string, interactive bool) error {
	res, err := loadResults(cmd, projectID)
	if err != nil {
		return err
	}

	styles := ui.NewStyles(ui.ThemeFor(cfg.UI.Theme))
	if interactive {
		model := ui.NewResultsModel("Results · project "+projectID, res.Markdown, styles)
		if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run(); err != nil {
			return fmt.Errorf("results viewer failed: %w", err)
		}
	} else if reportRaw {
		fmt.Fprint(cmd.OutOrStdout(), res.Markdown)
	} else {
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderMarkdown(res.Markdown, reportWidth, styles.Theme))
	}

	printArtifacts(cmd, res.Files)
	return nil
}

func printArtifacts(cmd *cobra.Command, files []report.File) {
	table := ui.NewTable("Report files", "File", "Status")
	for _, f := range files {
		status := fmt.Sprintf("%d bytes", f.Size)
		switch {
		case f.Err != nil:
			status = "unavailable: " + f.Err.Error()
		case f.Path != "":
			status = "saved to " + f.Path
		}
		table.AddRow(string(f.Artifact), status)
	}
	fmt.Fprint(cmd.OutOrStdout(), table.View(ui.NewStyles(ui.ThemeFor(cfg.UI.Theme))))
}
