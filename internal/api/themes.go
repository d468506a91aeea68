package api

import (
	"context"
	"net/http"

	"github.com/guregu/null/v5"
	"github.com/tidwall/gjson"
)

// ListThemes returns every sustainability theme.
func (c *Client) ListThemes(ctx context.Context) ([]Theme, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, path: "/themes"})
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, newDecodeError("themes")
	}

	var themes []Theme
	gjson.GetBytes(body, "themes").ForEach(func(_, v gjson.Result) bool {
		id := idString(v.Get("id"))
		if id == "" {
			return true
		}
		themes = append(themes, Theme{ID: id, Name: v.Get("name").String()})
		return true
	})
	return themes, nil
}

// GetThemeScores returns the weights already stored for a project. The
// backend has used both raw_weight and weight_raw for the same value.
func (c *Client) GetThemeScores(ctx context.Context, projectID string) ([]ThemeWeight, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, path: projectPath(projectID, "theme-scores")})
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, newDecodeError("theme scores")
	}

	var weights []ThemeWeight
	gjson.GetBytes(body, "themes").ForEach(func(_, v gjson.Result) bool {
		id := idString(v.Get("id"))
		if id == "" {
			return true
		}
		w := ThemeWeight{ThemeID: id}
		for _, field := range []string{"raw_weight", "weight_raw"} {
			if f := v.Get(field); f.Type == gjson.Number {
				w.RawWeight = null.FloatFrom(f.Float())
				break
			}
		}
		weights = append(weights, w)
		return true
	})
	return weights, nil
}

// SaveThemes stores theme weights (0..100) keyed by theme id.
func (c *Client) SaveThemes(ctx context.Context, projectID string, weights map[string]int, dryRun bool) error {
	_, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   projectPath(projectID, "themes"),
		query:  dryRunQuery(dryRun),
		body:   map[string]any{"weights": weights},
	})
	return err
}

// SendMetrics stores the building metrics of a project.
func (c *Client) SendMetrics(ctx context.Context, projectID string, metrics map[string]float64, dryRun bool) error {
	_, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   projectPath(projectID, "metrics"),
		query:  dryRunQuery(dryRun),
		body:   map[string]any{"metrics": metrics},
	})
	return err
}
