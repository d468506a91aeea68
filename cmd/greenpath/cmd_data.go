package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"greenpath/internal/api"

	"github.com/spf13/cobra"
)

var dataOut string

// dataCmd is the data-ingestion page
var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Project data templates",
}

var dataTemplateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write a CSV template for project data",
	Long: `Write a CSV header with the project fields and every building metric.
Fill one project per row and check it with "greenpath data check".`,
	RunE: runDataTemplate,
}

var dataCheckCmd = &cobra.Command{
	Use:   "check <file.csv>",
	Short: "Validate a filled project data template",
	Args:  cobra.ExactArgs(1),
	RunE:  runDataCheck,
}

func init() {
	dataTemplateCmd.Flags().StringVarP(&dataOut, "out", "o", "", "Write to file instead of stdout")

	dataCmd.AddCommand(dataTemplateCmd)
	dataCmd.AddCommand(dataCheckCmd)
}

var templateBaseColumns = []string{"name", "project_type", "location", "building_type"}

func templateColumns() []string {
	return append(append([]string{}, templateBaseColumns...), api.MetricFields...)
}

func runDataTemplate(cmd *cobra.Command, args []string) error {
	var out io.Writer = cmd.OutOrStdout()
	if dataOut != "" {
		f, err := os.Create(dataOut)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", dataOut, err)
		}
		defer f.Close()
		out = f
	}

	w := csv.NewWriter(out)
	if err := w.Write(templateColumns()); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	if dataOut != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Template written to %s\n", dataOut)
	}
	return nil
}

// rowProblem is one invalid row of a data file.
type rowProblem struct {
	Line int
	Err  error
}

// checkProjectRows validates rows against the template header. Blank metric
// cells are allowed.
func checkProjectRows(r io.Reader) (rows int, problems []rowProblem, err error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	if _, ok := index["name"]; !ok {
		return 0, nil, fmt.Errorf("header has no name column")
	}
	known := templateColumns()
	for col := range index {
		if !slices.Contains(known, col) {
			return 0, nil, fmt.Errorf("unknown column %q", col)
		}
	}

	reader.FieldsPerRecord = len(header)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		rows++
		if err != nil {
			problems = append(problems, rowProblem{Line: line, Err: err})
			continue
		}
		if strings.TrimSpace(record[index["name"]]) == "" {
			problems = append(problems, rowProblem{Line: line, Err: fmt.Errorf("name is required")})
			continue
		}
		var pairs []string
		for _, metric := range api.MetricFields {
			if i, ok := index[metric]; ok {
				pairs = append(pairs, metric+"="+record[i])
			}
		}
		if _, err := parseMetrics(pairs); err != nil {
			problems = append(problems, rowProblem{Line: line, Err: err})
		}
	}
	return rows, problems, nil
}

func runDataCheck(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	rows, problems, err := checkProjectRows(f)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, p := range problems {
		fmt.Fprintf(out, "line %d: %v\n", p.Line, p.Err)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d of %d row(s) invalid", len(problems), rows)
	}
	fmt.Fprintf(out, "%d row(s) OK\n", rows)
	return nil
}
