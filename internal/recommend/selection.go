package recommend

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-set/v2"
)

// SelectionMode decides how many interventions can be chosen per round.
type SelectionMode string

const (
	SingleSelect SelectionMode = "single"
	MultiSelect  SelectionMode = "multi"
)

// ParseSelectionMode accepts "single" or "multi" in any case.
func ParseSelectionMode(s string) (SelectionMode, error) {
	switch SelectionMode(strings.ToLower(strings.TrimSpace(s))) {
	case SingleSelect:
		return SingleSelect, nil
	case MultiSelect, "":
		return MultiSelect, nil
	default:
		return "", fmt.Errorf("unknown selection mode %q (want single or multi)", s)
	}
}

// Selection tracks the interventions chosen in the active round and not yet
// applied. Members come out in the order they were chosen.
type Selection struct {
	mode    SelectionMode
	members *set.Set[InterventionID]
	order   []InterventionID
}

// NewSelection returns an empty selection for the given mode.
func NewSelection(mode SelectionMode) *Selection {
	if mode != SingleSelect {
		mode = MultiSelect
	}
	return &Selection{
		mode:    mode,
		members: set.New[InterventionID](0),
	}
}

// Mode returns the selection cardinality.
func (s *Selection) Mode() SelectionMode { return s.mode }

// Toggle flips membership of id. In single mode it selects id, or clears the
// selection when id is already the selected one.
func (s *Selection) Toggle(id InterventionID) {
	if s.members.Contains(id) {
		s.remove(id)
		return
	}
	if s.mode == SingleSelect {
		s.Clear()
	}
	s.add(id)
}

// Select makes id the selection. In multi mode it adds id.
func (s *Selection) Select(id InterventionID) {
	if s.mode == SingleSelect {
		s.Clear()
	}
	s.add(id)
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.members = set.New[InterventionID](0)
	s.order = nil
}

// Reset applies the per-mode default for a freshly loaded round: empty in
// multi mode, the top-ranked candidate in single mode.
func (s *Selection) Reset(round Round) {
	s.Clear()
	if s.mode != SingleSelect {
		return
	}
	if top, ok := round.Top(); ok {
		s.add(top.InterventionID)
	}
}

// Has reports whether id is selected.
func (s *Selection) Has(id InterventionID) bool { return s.members.Contains(id) }

// Len returns the number of selected interventions.
func (s *Selection) Len() int { return s.members.Size() }

// Empty reports whether nothing is selected.
func (s *Selection) Empty() bool { return s.members.Size() == 0 }

// IDs returns the selected ids in selection order.
func (s *Selection) IDs() []InterventionID {
	out := make([]InterventionID, len(s.order))
	copy(out, s.order)
	return out
}

// SubsetOf reports whether every selected id belongs to round.
func (s *Selection) SubsetOf(round Round) bool {
	universe := set.From(round.IDs())
	for _, id := range s.order {
		if !universe.Contains(id) {
			return false
		}
	}
	return true
}

func (s *Selection) add(id InterventionID) {
	if s.members.Insert(id) {
		s.order = append(s.order, id)
	}
}

func (s *Selection) remove(id InterventionID) {
	if !s.members.Remove(id) {
		return
	}
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}
