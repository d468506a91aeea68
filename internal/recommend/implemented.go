package recommend

import (
	"github.com/guregu/null/v5"
	"github.com/tidwall/gjson"
)

// Implemented is an intervention already applied to a project, with the
// score it carried when it was applied.
type Implemented struct {
	InterventionID InterventionID
	Name           string
	Score          null.Float
}

// Label returns the display name, synthesized from the id when absent.
func (i Implemented) Label() string {
	return Recommendation{InterventionID: i.InterventionID, Name: i.Name}.Label()
}

// NormalizeImplemented reads the implemented-with-scores payload. The list
// may be bare or wrapped in "implemented_interventions" or "interventions".
// The result is ordered by descending score, unscored last.
func NormalizeImplemented(raw []byte) []Implemented {
	if !gjson.ValidBytes(raw) {
		return nil
	}
	res := gjson.ParseBytes(raw)
	list := res
	if res.IsObject() {
		list = res.Get("implemented_interventions")
		if !list.IsArray() {
			list = res.Get("interventions")
		}
	}
	if !list.IsArray() {
		return nil
	}

	round := NormalizeResult(list, ScoreFields{"score", "theme_weighted_effectiveness", "adjusted_base_effectiveness"})
	out := make([]Implemented, len(round))
	for i, rec := range round {
		out[i] = Implemented{
			InterventionID: rec.InterventionID,
			Name:           rec.Name,
			Score:          rec.Score,
		}
	}
	return out
}
