// Package recommend holds the client-side model of one recommendation round:
// normalization of the backend's polymorphic payloads, defensive score
// coercion, the ranking order, and the user's selection within the round.
package recommend

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/guregu/null/v5"
	"github.com/tidwall/gjson"
)

// InterventionID is the opaque identifier of an intervention. The backend
// sends numbers or strings; the canonical text form is kept here.
type InterventionID string

// MarshalJSON sends integral ids back as JSON numbers and everything else as
// strings, mirroring what the backend handed out.
func (id InterventionID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// ScoreFields is the ordered list of payload fields consulted for a score.
// The first field that is present and not null decides.
type ScoreFields []string

// DefaultScoreFields lists the score field names seen across backend versions.
var DefaultScoreFields = ScoreFields{
	"theme_weighted_effectiveness",
	"adjusted_base_effectiveness",
	"score",
}

// Recommendation is one candidate intervention in a round.
type Recommendation struct {
	InterventionID InterventionID
	Name           string
	Score          null.Float
	Raw            json.RawMessage
}

// Label returns the display name, synthesized from the id when absent.
func (r Recommendation) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return "Intervention #" + string(r.InterventionID)
}

// Round is an ordered, ranked batch of recommendations. A round is replaced
// wholesale and never edited in place.
type Round []Recommendation

// Len returns the number of candidates.
func (r Round) Len() int { return len(r) }

// Empty reports whether the round has no candidates.
func (r Round) Empty() bool { return len(r) == 0 }

// IDs returns the intervention ids in ranking order.
func (r Round) IDs() []InterventionID {
	ids := make([]InterventionID, len(r))
	for i, rec := range r {
		ids[i] = rec.InterventionID
	}
	return ids
}

// Contains reports whether id belongs to the round.
func (r Round) Contains(id InterventionID) bool {
	_, ok := r.Find(id)
	return ok
}

// Find returns the recommendation with the given id.
func (r Round) Find(id InterventionID) (Recommendation, bool) {
	for _, rec := range r {
		if rec.InterventionID == id {
			return rec, true
		}
	}
	return Recommendation{}, false
}

// Top returns the top-ranked recommendation.
func (r Round) Top() (Recommendation, bool) {
	if len(r) == 0 {
		return Recommendation{}, false
	}
	return r[0], true
}

// Normalize turns a raw recommendations payload into a sorted Round. Both a
// bare array and an object carrying a "recommendations" array are accepted;
// any other shape yields an empty Round.
func Normalize(raw []byte, fields ScoreFields) Round {
	if !gjson.ValidBytes(raw) {
		return Round{}
	}
	return NormalizeResult(gjson.ParseBytes(raw), fields)
}

// IsRoundPayload reports whether raw has a shape Normalize reads: an array,
// or an object carrying a "recommendations" array.
func IsRoundPayload(raw []byte) bool {
	if !gjson.ValidBytes(raw) {
		return false
	}
	res := gjson.ParseBytes(raw)
	if res.IsObject() {
		res = res.Get("recommendations")
	}
	return res.IsArray()
}

// NormalizeResult is Normalize for an already parsed payload.
func NormalizeResult(res gjson.Result, fields ScoreFields) Round {
	list := res
	if res.IsObject() {
		list = res.Get("recommendations")
	}
	if !list.IsArray() {
		return Round{}
	}
	if len(fields) == 0 {
		fields = DefaultScoreFields
	}

	round := Round{}
	seen := make(map[InterventionID]struct{})
	list.ForEach(func(_, item gjson.Result) bool {
		rec, ok := parseRecommendation(item, fields)
		if !ok {
			return true
		}
		if _, dup := seen[rec.InterventionID]; dup {
			return true
		}
		seen[rec.InterventionID] = struct{}{}
		round = append(round, rec)
		return true
	})
	return SortDescendingByScore(round)
}

func parseRecommendation(item gjson.Result, fields ScoreFields) (Recommendation, bool) {
	if !item.IsObject() {
		return Recommendation{}, false
	}
	id, ok := ParseID(item.Get("intervention_id"))
	if !ok {
		return Recommendation{}, false
	}
	rec := Recommendation{
		InterventionID: id,
		Raw:            json.RawMessage(item.Raw),
	}
	if name := item.Get("name"); name.Type == gjson.String {
		rec.Name = strings.TrimSpace(name.Str)
	}
	for _, field := range fields {
		v := item.Get(field)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		rec.Score = CoerceScore(v)
		break
	}
	return rec, true
}

// ParseID reads an intervention id from a JSON number or non-empty string.
func ParseID(v gjson.Result) (InterventionID, bool) {
	switch v.Type {
	case gjson.Number:
		return InterventionID(v.Raw), true
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return "", false
		}
		return InterventionID(s), true
	default:
		return "", false
	}
}

// CoerceScore converts an untrusted JSON value into a score. Numbers and
// numeric strings are scored; anything else, including NaN and infinities,
// is unscored.
func CoerceScore(v gjson.Result) null.Float {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Num
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return null.Float{}
		}
		f = parsed
	default:
		return null.Float{}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return null.Float{}
	}
	return null.FloatFrom(f)
}

// SortDescendingByScore returns a copy of round ordered by descending score.
// Unscored entries follow every scored entry, and ties keep input order.
func SortDescendingByScore(round Round) Round {
	out := make(Round, len(round))
	copy(out, round)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Score, out[j].Score
		switch {
		case a.Valid && b.Valid:
			return a.Float64 > b.Float64
		case a.Valid:
			return true
		default:
			return false
		}
	})
	return out
}

// FormatScore renders a score with two decimals, or "-" when unscored.
func FormatScore(score null.Float) string {
	if !score.Valid {
		return "-"
	}
	return strconv.FormatFloat(score.Float64, 'f', 2, 64)
}
