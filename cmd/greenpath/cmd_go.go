package main

import (
	"fmt"
	"strings"

	"greenpath/internal/nav"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// goCmd opens a page by its path
var goCmd = &cobra.Command{
	Use:   "go [path]",
	Short: "Open a page by path, e.g. /theme-rating?project_id=7",
	Long: `Open a page by its path. Paths are matched case-insensitively and
anything unknown opens the default page (nav.default_route).

A "project_id" query parameter makes that project current first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGo,
}

var goListRoutes bool

func init() {
	goCmd.Flags().BoolVar(&goListRoutes, "list", false, "List the known pages")
}

func runGo(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if goListRoutes {
		for _, r := range nav.All() {
			fmt.Fprintf(out, "%-26s %-22s greenpath %s\n", r.Path, r.Title, strings.Join(r.Command, " "))
		}
		return nil
	}

	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	route, query := nav.Resolve(path, cfg.Nav.DefaultRoute)
	if hasProjectQuery(query) {
		if _, _, err := sess.ResolveProject("", query); err != nil {
			return fmt.Errorf("failed to switch project: %w", err)
		}
	}

	target, rest, err := rootCmd.Find(route.Command)
	if err != nil || target == rootCmd || target.RunE == nil {
		return fmt.Errorf("page %s has no command", route.Path)
	}
	logger.Debug("navigating", zap.String("path", route.Path), zap.Strings("command", route.Command))

	fmt.Fprintf(out, "» %s (%s)\n", route.Title, route.Path)
	target.SetContext(cmd.Context())
	target.SetOut(out)
	return target.RunE(target, rest)
}

func hasProjectQuery(query string) bool {
	return strings.Contains(query, "project_id=")
}
