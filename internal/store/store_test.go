package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/guregu/null/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// StoreSuite runs the same checks against each SQLite driver.
type StoreSuite struct {
	suite.Suite
	driver string
	store  *Store
}

func (s *StoreSuite) SetupTest() {
	path := filepath.Join(s.T().TempDir(), "greenpath.db")
	st, err := Open(path, s.driver)
	if err != nil && strings.Contains(err.Error(), "CGO_ENABLED") {
		s.T().Skip("cgo sqlite driver unavailable in this build")
	}
	s.Require().NoError(err)
	s.store = st
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		s.NoError(s.store.Close())
		s.store = nil
	}
}

func (s *StoreSuite) TestKVRoundTrip() {
	ctx := context.Background()

	_, err := s.store.Get(ctx, "token")
	s.True(errors.Is(err, ErrNotFound))

	s.Require().NoError(s.store.Put(ctx, "token", "abc"))
	v, err := s.store.Get(ctx, "token")
	s.Require().NoError(err)
	s.Equal("abc", v)

	s.Require().NoError(s.store.Put(ctx, "token", "def"))
	v, err = s.store.Get(ctx, "token")
	s.Require().NoError(err)
	s.Equal("def", v)

	s.Require().NoError(s.store.Delete(ctx, "token", "missing"))
	_, err = s.store.Get(ctx, "token")
	s.True(errors.Is(err, ErrNotFound))
}

func (s *StoreSuite) TestJournal() {
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	first, err := s.store.RecordApply(ctx, ApplyRecord{
		ProjectID:       "p1",
		Round:           1,
		InterventionIDs: []string{"3", "7"},
		AppliedCount:    null.IntFrom(2),
		Outcome:         OutcomeAdvanced,
		CreatedAt:       base,
	})
	s.Require().NoError(err)
	s.NotEqual(uuid.Nil, first.ID)

	_, err = s.store.RecordApply(ctx, ApplyRecord{
		ProjectID: "p1",
		Round:     2,
		Outcome:   OutcomeFailed,
		Message:   null.StringFrom("network error"),
		CreatedAt: base.Add(time.Second),
	})
	s.Require().NoError(err)

	_, err = s.store.RecordApply(ctx, ApplyRecord{ProjectID: "other", Round: 1, Outcome: OutcomeTerminal})
	s.Require().NoError(err)

	records, err := s.store.ListApplies(ctx, "p1")
	s.Require().NoError(err)
	s.Require().Len(records, 2)

	s.Equal(first.ID, records[0].ID)
	s.Equal([]string{"3", "7"}, records[0].InterventionIDs)
	s.Equal(int64(2), records[0].AppliedCount.Int64)
	s.False(records[0].Message.Valid)
	s.True(records[0].CreatedAt.Equal(base))

	s.Equal(OutcomeFailed, records[1].Outcome)
	s.False(records[1].AppliedCount.Valid)
	s.Equal("network error", records[1].Message.String)
	s.Empty(records[1].InterventionIDs)
}

func TestStoreModernc(t *testing.T) {
	suite.Run(t, &StoreSuite{driver: DriverModernc})
}

func TestStoreCGO(t *testing.T) {
	suite.Run(t, &StoreSuite{driver: DriverCGO})
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "x.db"), "postgres")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "greenpath.db")
	st, err := Open(path, "")
	require.NoError(t, err)
	defer st.Close()
	assert.Equal(t, path, st.Path())
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "greenpath.db")

	st, err := Open(path, DriverModernc)
	require.NoError(t, err)
	require.NoError(t, st.Put(ctx, "project_id", "p9"))
	require.NoError(t, st.Close())

	st, err = Open(path, DriverModernc)
	require.NoError(t, err)
	defer st.Close()
	v, err := st.Get(ctx, "project_id")
	require.NoError(t, err)
	assert.Equal(t, "p9", v)
}
