package api

import (
	"encoding/json"
	"strings"

	"github.com/guregu/null/v5"
	"github.com/tidwall/gjson"
)

// User is an account as returned by /auth/login and /admin/users.
type User struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Email              string          `json:"email"`
	Role               string          `json:"role"`
	DefaultAccessLevel string          `json:"default_access_level"`
	Raw                json.RawMessage `json:"-"`
}

// LoginResult is the /auth/login response.
type LoginResult struct {
	AccessToken string
	User        User
}

// NewUser is the admin create-user form.
type NewUser struct {
	Name               string `json:"name" validate:"required"`
	Email              string `json:"email" validate:"required,useremail"`
	Password           string `json:"password" validate:"required,min=6"`
	Role               string `json:"role" validate:"required,oneof=Admin Employee Client Consultant"`
	DefaultAccessLevel string `json:"default_access_level" validate:"required,oneof=view edit"`
}

// Project is a building project.
type Project struct {
	ID           string
	Name         string
	Location     string
	BuildingType string
	ProjectType  string
	UpdatedAt    string
	Raw          json.RawMessage
}

// DefaultLocation is used when a project is created without a location.
const DefaultLocation = "Brisbane"

// MetricFields are the numeric building metrics a project can carry.
var MetricFields = []string{
	"levels",
	"external_wall_area",
	"footprint_area",
	"opening_pct",
	"wall_to_floor_ratio",
	"footprint_gifa",
	"gifa_total",
	"external_openings_area",
	"avg_height_per_level",
}

// NewProject is the create-project form. Metrics only carries fields the
// user filled in.
type NewProject struct {
	Name         string             `validate:"required"`
	ProjectType  string             `validate:"omitempty"`
	Location     string             `validate:"omitempty"`
	BuildingType string             `validate:"omitempty"`
	Metrics      map[string]float64 `validate:"dive,keys,oneof=levels external_wall_area footprint_area opening_pct wall_to_floor_ratio footprint_gifa gifa_total external_openings_area avg_height_per_level,endkeys,gte=0"`
}

// payload flattens the form into the POST /projects body.
func (p NewProject) payload() map[string]any {
	body := map[string]any{
		"name":          strings.TrimSpace(p.Name),
		"project_type":  nullable(p.ProjectType),
		"location":      p.Location,
		"building_type": nullable(p.BuildingType),
	}
	if strings.TrimSpace(p.Location) == "" {
		body["location"] = DefaultLocation
	}
	for k, v := range p.Metrics {
		body[k] = v
	}
	return body
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// Theme is a sustainability category.
type Theme struct {
	ID   string
	Name string
}

// ThemeWeight is a stored user rating for one theme.
type ThemeWeight struct {
	ThemeID   string
	RawWeight null.Float
}

// ApplyResult is the server's answer to an apply call. AppliedCount is
// invalid when the server did not report it. Next is nil when the server did
// not include the next round.
type ApplyResult struct {
	AppliedCount null.Int
	HasMore      null.Bool
	Next         json.RawMessage
}

// Artifact is one of the static report files served per project.
type Artifact string

const (
	ArtifactGraph Artifact = "graph.svg"
	ArtifactHTML  Artifact = "report.html"
	ArtifactPDF   Artifact = "report.pdf"
)

// Artifacts lists every report artifact.
var Artifacts = []Artifact{ArtifactGraph, ArtifactHTML, ArtifactPDF}

// idString reads an id that may be a JSON number or string.
func idString(v gjson.Result) string {
	switch v.Type {
	case gjson.Number:
		return v.Raw
	case gjson.String:
		return strings.TrimSpace(v.Str)
	default:
		return ""
	}
}

func parseUser(v gjson.Result) User {
	return User{
		ID:                 idString(v.Get("id")),
		Name:               v.Get("name").String(),
		Email:              v.Get("email").String(),
		Role:               v.Get("role").String(),
		DefaultAccessLevel: v.Get("default_access_level").String(),
		Raw:                json.RawMessage(v.Raw),
	}
}

func parseProject(v gjson.Result) Project {
	buildingType := v.Get("buildingType")
	if !buildingType.Exists() || buildingType.Type == gjson.Null {
		buildingType = v.Get("building_type")
	}
	return Project{
		ID:           idString(v.Get("id")),
		Name:         v.Get("name").String(),
		Location:     v.Get("location").String(),
		BuildingType: buildingType.String(),
		ProjectType:  v.Get("project_type").String(),
		UpdatedAt:    v.Get("updated_at").String(),
		Raw:          json.RawMessage(v.Raw),
	}
}
