// Package nav is the client route table. Routes are matched
// case-insensitively and anything unknown lands on the default route.
package nav

import (
	"sort"
	"strings"
)

// Route is one page of the client and the command that renders it.
type Route struct {
	Path    string
	Title   string
	Command []string // cobra command path under the root command
}

// Known routes.
var (
	Login         = Route{Path: "/login", Title: "Log in", Command: []string{"auth", "login"}}
	Admin         = Route{Path: "/admin", Title: "Create user", Command: []string{"admin", "create-user"}}
	Dashboard     = Route{Path: "/dashboard", Title: "Dashboard", Command: []string{"projects", "list"}}
	CreateProject = Route{Path: "/create-project", Title: "Create project", Command: []string{"projects", "create"}}
	ThemeRating   = Route{Path: "/theme-rating", Title: "Rate themes", Command: []string{"themes", "rate"}}
	Interventions = Route{Path: "/intervention-selection", Title: "Select interventions", Command: []string{"interventions", "select"}}
	Results       = Route{Path: "/results", Title: "Results", Command: []string{"report"}}
	DataIngestion = Route{Path: "/data-ingestion", Title: "Data ingestion", Command: []string{"data", "template"}}
	ViewExisting  = Route{Path: "/view-existing", Title: "Existing projects", Command: []string{"projects", "list"}}
)

var routes = map[string]Route{}

func init() {
	for _, r := range []Route{Login, Admin, Dashboard, CreateProject, ThemeRating, Interventions, Results, DataIngestion, ViewExisting} {
		routes[r.Path] = r
	}
}

// DefaultPath is the fallback for unknown paths.
const DefaultPath = "/admin"

// Canonical lower-cases path, adds a leading slash and drops any trailing
// slash and query string.
func Canonical(path string) string {
	path, _ = split(path)
	return path
}

func split(raw string) (path, query string) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw, query = raw[:i], raw[i+1:]
	}
	path = strings.ToLower(raw)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path, query
}

// Lookup returns the route for path, if known.
func Lookup(path string) (Route, bool) {
	r, ok := routes[Canonical(path)]
	return r, ok
}

// Resolve maps path to a known route, falling back to defaultPath and then
// to DefaultPath. The query string of path is returned alongside.
func Resolve(path, defaultPath string) (Route, string) {
	p, query := split(path)
	if r, ok := routes[p]; ok {
		return r, query
	}
	if r, ok := routes[Canonical(defaultPath)]; ok {
		return r, query
	}
	return routes[DefaultPath], query
}

// All returns every route sorted by path.
func All() []Route {
	out := make([]Route, 0, len(routes))
	for _, r := range routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
