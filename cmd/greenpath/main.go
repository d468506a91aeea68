package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"greenpath/internal/api"
	"greenpath/internal/config"
	"greenpath/internal/logging"
	"greenpath/internal/session"
	"greenpath/internal/store"
	"greenpath/internal/workflow"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose     bool
	configPath  string
	apiBase     string
	projectFlag string

	cfg    *config.Config
	logger *zap.Logger
	db     *store.Store
	sess   *session.Session
	client *api.Client
)

var rootCmd = &cobra.Command{
	Use:   "greenpath",
	Short: "greenpath - sustainability interventions for building projects",
	Long: `greenpath is the terminal client of the sustainability-scoring service.

Create a project with its building metrics, rate the sustainability themes
that matter to it, then work through the ranked intervention
recommendations round by round until nothing is left to apply. The results
page lists what was implemented and renders the generated report.

Run "greenpath go /dashboard" (or any other page path) to jump to a page.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bootstrap(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdown()
	},
}

// bootstrap loads config, logging, the local store, the session and the API
// client, in that order.
func bootstrap(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	loaded, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if apiBase != "" {
		loaded.API.BaseURL = apiBase
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}

	opts := loaded.Logging.Options()
	if verbose {
		opts.DebugMode = true
		opts.Level = "debug"
	}
	if err := logging.Initialize(opts); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = logging.Get(logging.CategoryBoot)

	st, err := store.Open(loaded.Store.Path, loaded.Store.Driver)
	if err != nil {
		return fmt.Errorf("failed to open local store: %w", err)
	}
	s := session.New(st)
	if err := s.Init(ctx); err != nil {
		st.Close()
		return fmt.Errorf("failed to restore session: %w", err)
	}

	cfg, db, sess = loaded, st, s
	client = api.New(loaded.API.BaseURL, loaded.GetAPITimeout(), s)
	logger.Debug("bootstrapped",
		zap.String("config", path),
		zap.String("api", client.BaseURL()),
		zap.String("store", st.Path()))
	return nil
}

func shutdown() {
	if db != nil {
		if err := db.Close(); err != nil && logger != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
		db = nil
	}
	logging.Sync()
}

// requireProject resolves the project a command works on: --project, then a
// "project_id=" query, then the current project.
func requireProject(query string) (string, error) {
	id, ok, err := sess.ResolveProject(projectFlag, query)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.WithHint(workflow.ErrMissingProject,
			"create one with `greenpath projects create` or pick one with `greenpath projects use <id>`")
	}
	return id, nil
}

// friendly turns client errors into the messages the pages show.
func friendly(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, api.ErrAuthExpired):
		return fmt.Errorf("%w: log in again with `greenpath auth login`", err)
	case errors.Is(err, api.ErrEmailExists):
		return api.ErrEmailExists
	case errors.Is(err, workflow.ErrMissingProject):
		if hints := errors.GetAllHints(err); len(hints) > 0 {
			return fmt.Errorf("%w: %s", err, hints[0])
		}
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVar(&apiBase, "api-base", "", "Backend API root (or set GREENPATH_API_BASE)")
	rootCmd.PersistentFlags().StringVarP(&projectFlag, "project", "p", "", "Project id (default: current project)")

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(adminCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(themesCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(interventionsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(dataCmd)
	rootCmd.AddCommand(goCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, friendly(err))
		stop()
		os.Exit(1)
	}
}
