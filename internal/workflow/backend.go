package workflow

import (
	"context"
	"encoding/json"

	"greenpath/internal/api"
	"greenpath/internal/recommend"

	"github.com/cockroachdb/errors"
	"github.com/guregu/null/v5"
)

// Backend is the part of the REST API the controller drives.
type Backend interface {
	Recommendations(ctx context.Context, projectID string) (json.RawMessage, error)
	Apply(ctx context.Context, projectID string, ids []recommend.InterventionID) (*api.ApplyResult, error)
}

// APIBackend adapts api.Client. With Single set every id goes through the
// single-intervention endpoint, one call each, and the counts are summed.
type APIBackend struct {
	Client *api.Client
	Single bool
}

// Recommendations fetches the raw round payload.
func (b APIBackend) Recommendations(ctx context.Context, projectID string) (json.RawMessage, error) {
	return b.Client.GetRecommendations(ctx, projectID)
}

// Apply submits ids in order.
func (b APIBackend) Apply(ctx context.Context, projectID string, ids []recommend.InterventionID) (*api.ApplyResult, error) {
	if !b.Single {
		return b.Client.ApplyBatch(ctx, projectID, ids)
	}

	total := &api.ApplyResult{}
	var applied int64
	counted := false
	for _, id := range ids {
		res, err := b.Client.Apply(ctx, projectID, id)
		if err != nil {
			return nil, errors.Wrapf(err, "apply %s", id)
		}
		if res.AppliedCount.Valid {
			applied += res.AppliedCount.Int64
			counted = true
		}
		total.HasMore = res.HasMore
		total.Next = res.Next
	}
	if counted {
		total.AppliedCount = null.IntFrom(applied)
	}
	return total, nil
}
