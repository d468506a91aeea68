package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

// CreateProject creates a project and returns it. The backend must hand back
// an id, otherwise the call is treated as failed.
func (c *Client) CreateProject(ctx context.Context, p NewProject) (*Project, error) {
	if err := c.check(p); err != nil {
		return nil, err
	}

	body, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/projects",
		body:   p.payload(),
	})
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, newDecodeError("create project")
	}

	project := parseProject(gjson.GetBytes(body, "project"))
	if project.ID == "" {
		return nil, errors.Mark(errors.New("project create failed: no id returned"), ErrTransport)
	}
	return &project, nil
}

// GetProject fetches one project. Both {project:{...}} and a bare object are
// accepted.
func (c *Client) GetProject(ctx context.Context, projectID string) (*Project, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, path: projectPath(projectID, "")})
	if err != nil {
		return nil, err
	}
	return decodeProject(body)
}

// PatchProject applies a partial update.
func (c *Client) PatchProject(ctx context.Context, projectID string, partial map[string]any) (*Project, error) {
	body, err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   projectPath(projectID, ""),
		body:   partial,
	})
	if err != nil {
		return nil, err
	}
	return decodeProject(body)
}

// DeleteProject removes a project.
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	_, err := c.do(ctx, request{method: http.MethodDelete, path: projectPath(projectID, "")})
	return err
}

// ListProjectsByUser returns the projects owned by userID.
func (c *Client) ListProjectsByUser(ctx context.Context, userID string) ([]Project, error) {
	if userID == "" {
		return nil, errors.Mark(errors.New("no_user"), ErrInvalidPayload)
	}
	body, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/users/" + url.PathEscape(userID) + "/projects",
	})
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, newDecodeError("projects")
	}

	var out []Project
	gjson.GetBytes(body, "projects").ForEach(func(_, v gjson.Result) bool {
		if v.IsObject() {
			out = append(out, parseProject(v))
		}
		return true
	})
	return out, nil
}

func decodeProject(body []byte) (*Project, error) {
	if len(body) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, newDecodeError("project")
	}
	res := gjson.ParseBytes(body)
	if wrapped := res.Get("project"); wrapped.IsObject() {
		res = wrapped
	}
	project := parseProject(res)
	return &project, nil
}

// MarshalJSON renders the raw project payload when available.
func (p Project) MarshalJSON() ([]byte, error) {
	if len(p.Raw) > 0 {
		return p.Raw, nil
	}
	return json.Marshal(map[string]string{
		"id":            p.ID,
		"name":          p.Name,
		"location":      p.Location,
		"building_type": p.BuildingType,
		"project_type":  p.ProjectType,
		"updated_at":    p.UpdatedAt,
	})
}
