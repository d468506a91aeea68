package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/guregu/null/v5"
	"go.uber.org/zap"
)

// Outcome is how an apply attempt ended.
type Outcome string

const (
	OutcomeAdvanced       Outcome = "advanced"        // next round presented
	OutcomeTerminal       Outcome = "terminal"        // nothing left to recommend
	OutcomeNothingApplied Outcome = "nothing_applied" // server applied zero
	OutcomeRefetch        Outcome = "refetch"         // applied, next round fetched separately
	OutcomeFailed         Outcome = "failed"
)

// ApplyRecord is one journal row.
type ApplyRecord struct {
	ID              uuid.UUID
	ProjectID       string
	Round           int
	InterventionIDs []string
	AppliedCount    null.Int
	Outcome         Outcome
	Message         null.String
	CreatedAt       time.Time
}

// RecordApply appends rec to the journal. ID and CreatedAt are assigned when
// zero.
func (s *Store) RecordApply(ctx context.Context, rec ApplyRecord) (ApplyRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.InterventionIDs == nil {
		rec.InterventionIDs = []string{}
	}
	ids, err := json.Marshal(rec.InterventionIDs)
	if err != nil {
		return rec, errors.Wrap(err, "failed to encode intervention ids")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO apply_journal
		 (id, project_id, round, intervention_ids, applied_count, outcome, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.ProjectID, rec.Round, string(ids),
		rec.AppliedCount, string(rec.Outcome), rec.Message, rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		s.log.Error("journal insert failed", zap.String("project_id", rec.ProjectID), zap.Error(err))
		return rec, errors.Wrap(err, "failed to record apply")
	}
	return rec, nil
}

// ListApplies returns the journal of a project, oldest first.
func (s *Store) ListApplies(ctx context.Context, projectID string) ([]ApplyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, round, intervention_ids, applied_count, outcome, message, created_at
		 FROM apply_journal
		 WHERE project_id = ?
		 ORDER BY created_at ASC, rowid ASC`,
		projectID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query apply journal")
	}
	defer rows.Close()

	var out []ApplyRecord
	for rows.Next() {
		var (
			rec       ApplyRecord
			id        string
			ids       string
			outcome   string
			createdAt int64
		)
		if err := rows.Scan(&id, &rec.ProjectID, &rec.Round, &ids, &rec.AppliedCount, &outcome, &rec.Message, &createdAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan apply journal")
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, errors.Wrapf(err, "corrupt journal id %q", id)
		}
		rec.ID = parsed
		if err := json.Unmarshal([]byte(ids), &rec.InterventionIDs); err != nil {
			return nil, errors.Wrap(err, "corrupt journal intervention ids")
		}
		rec.Outcome = Outcome(outcome)
		rec.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
