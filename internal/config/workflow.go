package config

import (
	"github.com/cockroachdb/errors"

	"greenpath/internal/recommend"
)

// Apply modes.
const (
	ApplyModeBatch  = "batch"
	ApplyModeSingle = "single"
)

// WorkflowConfig configures the intervention-selection loop.
type WorkflowConfig struct {
	SelectionMode string   `yaml:"selection_mode"` // single or multi
	ScoreFields   []string `yaml:"score_fields"`   // fallback order
	ApplyMode     string   `yaml:"apply_mode"`     // batch or single
	TerminalDelay string   `yaml:"terminal_delay"`
}

// Selection returns the parsed selection mode, defaulting to multi.
func (w WorkflowConfig) Selection() recommend.SelectionMode {
	mode, err := recommend.ParseSelectionMode(w.SelectionMode)
	if err != nil {
		return recommend.MultiSelect
	}
	return mode
}

// Fields returns the configured score field order, or the default one.
func (w WorkflowConfig) Fields() recommend.ScoreFields {
	if len(w.ScoreFields) == 0 {
		return recommend.DefaultScoreFields
	}
	return recommend.ScoreFields(w.ScoreFields)
}

// SingleApply reports whether applies go one intervention at a time.
func (w WorkflowConfig) SingleApply() bool {
	return w.ApplyMode == ApplyModeSingle
}

func (w WorkflowConfig) validate() error {
	mode, err := recommend.ParseSelectionMode(w.SelectionMode)
	if err != nil {
		return errors.Wrap(err, "workflow.selection_mode")
	}
	switch w.ApplyMode {
	case "", ApplyModeBatch:
	case ApplyModeSingle:
		if mode != recommend.SingleSelect {
			return errors.New("workflow.apply_mode single requires workflow.selection_mode single")
		}
	default:
		return errors.Newf("invalid workflow.apply_mode: %s (valid: batch, single)", w.ApplyMode)
	}
	return nil
}
