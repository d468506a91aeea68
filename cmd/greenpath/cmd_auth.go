package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"greenpath/internal/nav"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	loginEmail    string
	loginPassword string
)

// authCmd manages the signed-in session
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Log in, log out and show the session",
	Long: `Manage the session stored in the local database.

Available subcommands:
  login  - Exchange email and password for an access token
  logout - Forget the token, the user and the current project
  status - Show who is logged in and the current project`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the backend",
	Long: `Log in with email and password. The password can also come from the
GREENPATH_PASSWORD environment variable.`,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session",
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	RunE:  runAuthStatus,
}

func init() {
	authLoginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email (required)")
	authLoginCmd.Flags().StringVar(&loginPassword, "password", "", "Account password (or set GREENPATH_PASSWORD)")
	authLoginCmd.MarkFlagRequired("email")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	password := loginPassword
	if password == "" {
		password = os.Getenv("GREENPATH_PASSWORD")
	}
	if strings.TrimSpace(loginEmail) == "" || password == "" {
		return fmt.Errorf("email and password are required")
	}

	res, err := client.Login(cmd.Context(), loginEmail, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if res.AccessToken == "" {
		return fmt.Errorf("login failed: no access token in response")
	}

	user := json.RawMessage(res.User.Raw)
	if len(user) == 0 {
		user = json.RawMessage("null")
	}
	auth, err := json.Marshal(struct {
		AccessToken string          `json:"access_token"`
		User        json.RawMessage `json:"user"`
	}{res.AccessToken, user})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := sess.SetAuth(auth); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	logger.Info("logged in", zap.String("user_id", res.User.ID))

	out := cmd.OutOrStdout()
	name := res.User.Name
	if name == "" {
		name = res.User.Email
	}
	fmt.Fprintf(out, "Logged in as %s\n", name)
	fmt.Fprintf(out, "Next: greenpath go %s\n", nav.Dashboard.Path)
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	if err := sess.Clear(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "API:      %s\n", client.BaseURL())
	if sess.Token() == "" {
		fmt.Fprintln(out, "Session:  not logged in")
	} else {
		user := sess.UserName()
		if id := sess.UserID(); id != "" {
			user = fmt.Sprintf("%s (id %s)", user, id)
		}
		fmt.Fprintf(out, "Session:  logged in as %s\n", user)
	}
	project := sess.ProjectID()
	if project == "" {
		project = "none"
	}
	fmt.Fprintf(out, "Project:  %s\n", project)
	return nil
}
