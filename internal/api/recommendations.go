package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"

	"greenpath/internal/recommend"

	"github.com/guregu/null/v5"
	"github.com/tidwall/gjson"
)

// GetRecommendations returns the raw recommendation payload of a project.
// Shape handling is left to recommend.Normalize.
func (c *Client) GetRecommendations(ctx context.Context, projectID string) (json.RawMessage, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, path: projectPath(projectID, "recommendations")})
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, newDecodeError("recommendations")
	}
	return json.RawMessage(body), nil
}

// Apply marks a single intervention as applied.
func (c *Client) Apply(ctx context.Context, projectID string, id recommend.InterventionID) (*ApplyResult, error) {
	body, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   projectPath(projectID, "apply"),
		body:   map[string]any{"intervention_id": id},
	})
	if err != nil {
		return nil, err
	}
	return parseApplyResult(body)
}

// ApplyBatch marks every id as applied, in order, and returns the next round
// when the server includes it.
func (c *Client) ApplyBatch(ctx context.Context, projectID string, ids []recommend.InterventionID) (*ApplyResult, error) {
	if ids == nil {
		ids = []recommend.InterventionID{}
	}
	body, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   projectPath(projectID, "apply-batch"),
		body:   map[string]any{"intervention_ids": ids},
	})
	if err != nil {
		return nil, err
	}
	return parseApplyResult(body)
}

// GetImplemented returns the raw implemented-with-scores payload.
func (c *Client) GetImplemented(ctx context.Context, projectID string) (json.RawMessage, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, path: projectPath(projectID, "implemented-with-scores")})
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, newDecodeError("implemented interventions")
	}
	return json.RawMessage(body), nil
}

// parseApplyResult reads an apply response. The body must be a JSON object.
// A null or missing next_recommendations leaves Next nil; any other value
// must be a round payload.
func parseApplyResult(body []byte) (*ApplyResult, error) {
	if len(bytes.TrimSpace(body)) == 0 || !gjson.ValidBytes(body) {
		return nil, newDecodeError("apply")
	}
	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return nil, newDecodeError("apply")
	}

	out := &ApplyResult{}
	if n := recommend.CoerceScore(res.Get("applied_count")); n.Valid {
		out.AppliedCount = null.IntFrom(int64(math.Round(n.Float64)))
	}
	if v := res.Get("has_more"); v.IsBool() {
		out.HasMore = null.BoolFrom(v.Bool())
	}
	if v := res.Get("next_recommendations"); v.Exists() && v.Type != gjson.Null {
		if !recommend.IsRoundPayload([]byte(v.Raw)) {
			return nil, newDecodeError("apply")
		}
		out.Next = json.RawMessage(v.Raw)
	}
	return out, nil
}
