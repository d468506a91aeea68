package workflow

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"greenpath/internal/api"
	"greenpath/internal/recommend"
	"greenpath/internal/store"

	"github.com/cockroachdb/errors"
	"github.com/guregu/null/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeBackend returns queued responses in order and counts calls.
type fakeBackend struct {
	mu         sync.Mutex
	fetches    []fetchReply
	applies    []applyReply
	fetchCalls int
	applyCalls int
	appliedIDs [][]recommend.InterventionID
}

type fetchReply struct {
	body string
	err  error
}

type applyReply struct {
	res *api.ApplyResult
	err error
}

func (f *fakeBackend) Recommendations(_ context.Context, _ string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if len(f.fetches) == 0 {
		return json.RawMessage(`[]`), nil
	}
	r := f.fetches[0]
	f.fetches = f.fetches[1:]
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(r.body), nil
}

func (f *fakeBackend) Apply(_ context.Context, _ string, ids []recommend.InterventionID) (*api.ApplyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyCalls++
	f.appliedIDs = append(f.appliedIDs, ids)
	if len(f.applies) == 0 {
		return &api.ApplyResult{}, nil
	}
	r := f.applies[0]
	f.applies = f.applies[1:]
	return r.res, r.err
}

type memRecorder struct {
	records []store.ApplyRecord
}

func (m *memRecorder) RecordApply(_ context.Context, rec store.ApplyRecord) (store.ApplyRecord, error) {
	m.records = append(m.records, rec)
	return rec, nil
}

const twoRecs = `[
	{"intervention_id":1,"name":"A","theme_weighted_effectiveness":"0.80"},
	{"intervention_id":2,"name":"B","theme_weighted_effectiveness":null}
]`

func ready(t *testing.T, c *Controller) Event {
	t.Helper()
	op, err := c.Reload()
	require.NoError(t, err)
	ev := Drive(context.Background(), c, op)
	require.Equal(t, StateReady, ev.State)
	return ev
}

func TestMissingProjectMakesNoCall(t *testing.T) {
	b := &fakeBackend{}
	c := New(b, Options{})

	op, err := c.Reload()
	assert.Nil(t, op)
	assert.True(t, errors.Is(err, ErrMissingProject))
	assert.Equal(t, StateErrored, c.State())
	assert.Equal(t, KindMissingProject, Kind(c.Snapshot().Err))
	assert.Zero(t, b.fetchCalls)
}

func TestScenarioSingleSelectDefault(t *testing.T) {
	b := &fakeBackend{fetches: []fetchReply{{body: twoRecs}}}
	c := New(b, Options{ProjectID: "p1", Mode: recommend.SingleSelect})
	ready(t, c)

	snap := c.Snapshot()
	require.Len(t, snap.Round, 2)
	assert.Equal(t, "A", snap.Round[0].Name)
	assert.Equal(t, 0.80, snap.Round[0].Score.Float64)
	assert.Equal(t, "B", snap.Round[1].Name)
	assert.False(t, snap.Round[1].Score.Valid)
	assert.Equal(t, []recommend.InterventionID{"1"}, snap.Selected)
	assert.Equal(t, 1, snap.RoundNo)
}

func TestFetchFailureIsErroredAndRetryable(t *testing.T) {
	b := &fakeBackend{fetches: []fetchReply{
		{err: &api.Error{Status: 500, Message: "boom"}},
		{body: twoRecs},
	}}
	b.fetches[0].err = errors.Mark(b.fetches[0].err, api.ErrTransport)
	c := New(b, Options{ProjectID: "p1"})

	op, err := c.Reload()
	require.NoError(t, err)
	ev := Drive(context.Background(), c, op)
	assert.Equal(t, StateErrored, ev.State)
	assert.Equal(t, KindTransport, Kind(ev.Err))
	assert.Contains(t, ev.Message, "boom")
	assert.Empty(t, c.Snapshot().Round)
	assert.Equal(t, 1, b.fetchCalls, "no automatic retry")

	op, err = c.Retry()
	require.NoError(t, err)
	ev = Drive(context.Background(), c, op)
	assert.Equal(t, StateReady, ev.State)
	assert.Equal(t, 2, b.fetchCalls)
}

func TestRetryOnlyFromErrored(t *testing.T) {
	c := New(&fakeBackend{fetches: []fetchReply{{body: twoRecs}}}, Options{ProjectID: "p1"})
	ready(t, c)
	_, err := c.Retry()
	assert.True(t, errors.Is(err, ErrNotReady))
}

func TestEmptyFetchDoesNotTerminate(t *testing.T) {
	c := New(&fakeBackend{fetches: []fetchReply{{body: `{"recommendations":[]}`}}}, Options{ProjectID: "p1"})
	ev := ready(t, c)
	assert.False(t, ev.Report)
	assert.Equal(t, MessageNoRecommendations, ev.Message)

	fin := c.Finish()
	assert.Equal(t, StateTerminal, fin.State)
	assert.True(t, fin.Report)
}

func TestTogglesMakeNoNetworkCalls(t *testing.T) {
	b := &fakeBackend{fetches: []fetchReply{{body: twoRecs}}}
	c := New(b, Options{ProjectID: "p1", Mode: recommend.MultiSelect})
	ready(t, c)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Toggle("1"))
		require.NoError(t, c.Toggle("2"))
	}
	require.NoError(t, c.Toggle("2"))
	assert.Equal(t, []recommend.InterventionID{"2"}, c.Snapshot().Selected)
	assert.Equal(t, 1, b.fetchCalls)
	assert.Zero(t, b.applyCalls)

	err := c.Toggle("99")
	assert.True(t, errors.Is(err, ErrUnknownIntervention))
}

func TestApplyWithEmptySelectionNeverCallsBackend(t *testing.T) {
	b := &fakeBackend{fetches: []fetchReply{{body: twoRecs}}}
	c := New(b, Options{ProjectID: "p1", Mode: recommend.MultiSelect})
	ready(t, c)

	op, err := c.Apply()
	assert.Nil(t, op)
	assert.True(t, errors.Is(err, ErrEmptySelection))
	assert.Equal(t, StateReady, c.State())
	assert.Equal(t, KindEmptySelection, Kind(c.Snapshot().Err))
	assert.Zero(t, b.applyCalls)

	require.NoError(t, c.Toggle("1"))
	assert.NoError(t, c.Snapshot().Err, "selecting clears the validation message")
}

func TestApplyToEmptyNextRoundTerminatesOnce(t *testing.T) {
	b := &fakeBackend{
		fetches: []fetchReply{{body: twoRecs}},
		applies: []applyReply{{res: &api.ApplyResult{
			AppliedCount: null.IntFrom(2),
			Next:         json.RawMessage(`[]`),
		}}},
	}
	rec := &memRecorder{}
	c := New(b, Options{ProjectID: "p1", Mode: recommend.MultiSelect, Recorder: rec})
	ready(t, c)
	require.NoError(t, c.Toggle("2"))
	require.NoError(t, c.Toggle("1"))

	op, err := c.Apply()
	require.NoError(t, err)
	assert.Equal(t, StateApplying, c.State())
	assert.Equal(t, []recommend.InterventionID{"2", "1"}, op.IDs)

	ev := Drive(context.Background(), c, op)
	assert.Equal(t, StateTerminal, ev.State)
	assert.True(t, ev.Report)
	assert.Equal(t, MessageTerminal, ev.Message)

	// Nothing afterwards signals the report again.
	assert.False(t, c.Finish().Report)
	_, err = c.Reload()
	assert.True(t, errors.Is(err, ErrFinished))
	assert.False(t, c.Event().Report)

	require.Len(t, rec.records, 1)
	assert.Equal(t, store.OutcomeTerminal, rec.records[0].Outcome)
	assert.Equal(t, []string{"2", "1"}, rec.records[0].InterventionIDs)
	assert.Equal(t, 1, b.fetchCalls)
}

func TestNothingAppliedKeepsRoundAndSelection(t *testing.T) {
	b := &fakeBackend{
		fetches: []fetchReply{{body: twoRecs}},
		applies: []applyReply{{res: &api.ApplyResult{
			AppliedCount: null.IntFrom(0),
			Next:         json.RawMessage(`[{"intervention_id":9}]`),
		}}},
	}
	rec := &memRecorder{}
	c := New(b, Options{ProjectID: "p1", Mode: recommend.MultiSelect, Recorder: rec})
	ready(t, c)
	require.NoError(t, c.Toggle("1"))
	before := c.Snapshot()

	op, err := c.Apply()
	require.NoError(t, err)
	ev := Drive(context.Background(), c, op)

	assert.Equal(t, StateReady, ev.State)
	assert.False(t, ev.Report)
	assert.Equal(t, KindNothingApplied, Kind(ev.Err))
	assert.NotEmpty(t, ev.Message)

	after := c.Snapshot()
	assert.Equal(t, before.Round, after.Round)
	assert.Equal(t, before.Selected, after.Selected)
	assert.Equal(t, before.RoundNo, after.RoundNo)
	require.Len(t, rec.records, 1)
	assert.Equal(t, store.OutcomeNothingApplied, rec.records[0].Outcome)
}

func TestApplyAdvancesToNextRound(t *testing.T) {
	b := &fakeBackend{
		fetches: []fetchReply{{body: twoRecs}},
		applies: []applyReply{{res: &api.ApplyResult{
			AppliedCount: null.IntFrom(1),
			HasMore:      null.BoolFrom(true),
			Next:         json.RawMessage(`{"recommendations":[{"intervention_id":"x","score":0.1},{"intervention_id":"y","score":0.9}]}`),
		}}},
	}
	c := New(b, Options{ProjectID: "p1", Mode: recommend.SingleSelect})
	ready(t, c)

	op, err := c.Apply()
	require.NoError(t, err)
	ev := Drive(context.Background(), c, op)
	assert.Equal(t, StateReady, ev.State)
	assert.False(t, ev.Report)
	assert.Contains(t, ev.Message, "1 intervention")

	snap := c.Snapshot()
	assert.Equal(t, recommend.InterventionID("y"), snap.Round[0].InterventionID)
	assert.Equal(t, []recommend.InterventionID{"y"}, snap.Selected)
	assert.True(t, snap.Round.Contains(snap.Selected[0]))
	assert.Equal(t, 2, snap.RoundNo)
	assert.Equal(t, 1, b.fetchCalls)
}

func TestApplyWithoutNextFallsBackToFetch(t *testing.T) {
	b := &fakeBackend{
		fetches: []fetchReply{
			{body: twoRecs},
			{body: `[{"intervention_id":3,"score":1}]`},
		},
		applies: []applyReply{{res: &api.ApplyResult{AppliedCount: null.IntFrom(1)}}},
	}
	rec := &memRecorder{}
	c := New(b, Options{ProjectID: "p1", Mode: recommend.SingleSelect, Recorder: rec})
	ready(t, c)

	op, err := c.Apply()
	require.NoError(t, err)

	ev := c.Complete(op.Run(context.Background()))
	assert.Equal(t, StateLoading, ev.State)
	require.NotNil(t, ev.Next)
	assert.True(t, ev.Next.AfterApply)

	ev = c.Complete(ev.Next.Run(context.Background()))
	assert.Equal(t, StateReady, ev.State)
	assert.Equal(t, []recommend.InterventionID{"3"}, c.Snapshot().Selected)
	assert.Equal(t, 2, b.fetchCalls)
	require.Len(t, rec.records, 1)
	assert.Equal(t, store.OutcomeRefetch, rec.records[0].Outcome)
}

func TestFallbackFetchEmptyTerminates(t *testing.T) {
	b := &fakeBackend{
		fetches: []fetchReply{{body: twoRecs}, {body: `[]`}},
		applies: []applyReply{{res: &api.ApplyResult{}}},
	}
	c := New(b, Options{ProjectID: "p1", Mode: recommend.SingleSelect})
	ready(t, c)

	op, err := c.Apply()
	require.NoError(t, err)
	ev := Drive(context.Background(), c, op)
	assert.Equal(t, StateTerminal, ev.State)
	assert.True(t, ev.Report)
}

func TestApplyFailureDoesNotAdvance(t *testing.T) {
	b := &fakeBackend{
		fetches: []fetchReply{{body: twoRecs}},
		applies: []applyReply{{err: errors.Mark(errors.New("invalid apply response body"), api.ErrTransport)}},
	}
	rec := &memRecorder{}
	c := New(b, Options{ProjectID: "p1", Mode: recommend.SingleSelect, Recorder: rec})
	ready(t, c)
	before := c.Snapshot()

	op, err := c.Apply()
	require.NoError(t, err)
	ev := Drive(context.Background(), c, op)
	assert.Equal(t, StateErrored, ev.State)
	assert.Equal(t, KindTransport, Kind(ev.Err))
	assert.Contains(t, ev.Message, "Failed to apply interventions")
	assert.Equal(t, before.RoundNo, c.Snapshot().RoundNo)
	require.Len(t, rec.records, 1)
	assert.Equal(t, store.OutcomeFailed, rec.records[0].Outcome)
}

func TestUnusableNextRoundIsErrored(t *testing.T) {
	for _, next := range []string{`"oops"`, `{}`, `{"recommendations":{"intervention_id":1}}`} {
		t.Run(next, func(t *testing.T) {
			b := &fakeBackend{
				fetches: []fetchReply{{body: twoRecs}},
				applies: []applyReply{{res: &api.ApplyResult{
					AppliedCount: null.IntFrom(1),
					Next:         json.RawMessage(next),
				}}},
			}
			rec := &memRecorder{}
			c := New(b, Options{ProjectID: "p1", Mode: recommend.SingleSelect, Recorder: rec})
			ready(t, c)
			before := c.Snapshot()

			op, err := c.Apply()
			require.NoError(t, err)
			ev := Drive(context.Background(), c, op)
			assert.Equal(t, StateErrored, ev.State)
			assert.False(t, ev.Report)
			assert.Equal(t, KindTransport, Kind(ev.Err))

			after := c.Snapshot()
			assert.Equal(t, before.RoundNo, after.RoundNo)
			assert.Equal(t, before.Round, after.Round)
			assert.Equal(t, 1, b.fetchCalls)
			require.Len(t, rec.records, 1)
			assert.Equal(t, store.OutcomeFailed, rec.records[0].Outcome)

			// Retry refetches instead of opening the report.
			op, err = c.Retry()
			require.NoError(t, err)
			ev = Drive(context.Background(), c, op)
			assert.Equal(t, StateReady, ev.State)
			assert.False(t, ev.Report)
		})
	}
}

func TestAuthExpiredKind(t *testing.T) {
	b := &fakeBackend{fetches: []fetchReply{{err: &api.Error{Status: 401, Message: "expired"}}}}
	b.fetches[0].err = errors.Mark(b.fetches[0].err, api.ErrAuthExpired)
	c := New(b, Options{ProjectID: "p1"})
	op, err := c.Reload()
	require.NoError(t, err)
	ev := Drive(context.Background(), c, op)
	assert.Equal(t, KindAuthExpired, Kind(ev.Err))
}

func TestBusyWhileApplying(t *testing.T) {
	b := &fakeBackend{fetches: []fetchReply{{body: twoRecs}}}
	c := New(b, Options{ProjectID: "p1", Mode: recommend.SingleSelect})
	ready(t, c)

	op, err := c.Apply()
	require.NoError(t, err)
	require.NotNil(t, op)

	_, err = c.Apply()
	assert.True(t, errors.Is(err, ErrBusy))
	_, err = c.Reload()
	assert.True(t, errors.Is(err, ErrBusy))
	assert.True(t, errors.Is(c.Toggle("1"), ErrBusy))
	assert.Zero(t, b.applyCalls)
}

func TestSupersededFetchIsIgnored(t *testing.T) {
	b := &fakeBackend{fetches: []fetchReply{
		{body: `[{"intervention_id":"old","score":1}]`},
		{body: `[{"intervention_id":"new","score":1}]`},
	}}
	c := New(b, Options{ProjectID: "p1", Mode: recommend.SingleSelect})

	first, err := c.Reload()
	require.NoError(t, err)
	second, err := c.Reload()
	require.NoError(t, err)

	// Run both concurrently; the first completes last.
	var wg sync.WaitGroup
	results := make([]Result, 2)
	wg.Add(2)
	go func() { defer wg.Done(); results[0] = first.Run(context.Background()) }()
	go func() { defer wg.Done(); results[1] = second.Run(context.Background()) }()
	wg.Wait()

	// The fake may serve either body to either op; only the second op's
	// result may land.
	ev := c.Complete(results[1])
	assert.False(t, ev.Stale)
	stale := c.Complete(results[0])
	assert.True(t, stale.Stale)

	snap := c.Snapshot()
	require.Len(t, snap.Round, 1)
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, snap.Round[0].InterventionID, snap.Selected[0])
	assert.Equal(t, 1, snap.RoundNo)
}

func TestSupersededFetchOrdered(t *testing.T) {
	b := &fakeBackend{fetches: []fetchReply{
		{body: `[{"intervention_id":"old","score":1}]`},
		{body: `[{"intervention_id":"new","score":1}]`},
	}}
	c := New(b, Options{ProjectID: "p1", Mode: recommend.SingleSelect})

	first, _ := c.Reload()
	r1 := first.Run(context.Background())
	second, _ := c.Reload()
	r2 := second.Run(context.Background())

	assert.False(t, c.Complete(r2).Stale)
	assert.True(t, c.Complete(r1).Stale)
	assert.Equal(t, []recommend.InterventionID{"new"}, c.Snapshot().Selected)
}

func TestFinishSuppressesInFlight(t *testing.T) {
	b := &fakeBackend{fetches: []fetchReply{{body: twoRecs}}}
	c := New(b, Options{ProjectID: "p1"})

	op, err := c.Reload()
	require.NoError(t, err)
	fin := c.Finish()
	assert.True(t, fin.Report)

	ev := c.Complete(op.Run(context.Background()))
	assert.True(t, ev.Stale)
	assert.Equal(t, StateTerminal, c.State())
	assert.Empty(t, c.Snapshot().Round)
}

func TestCloseSuppressesLaterCompletions(t *testing.T) {
	b := &fakeBackend{
		fetches: []fetchReply{{body: twoRecs}},
		applies: []applyReply{{res: &api.ApplyResult{Next: json.RawMessage(`[]`)}}},
	}
	rec := &memRecorder{}
	c := New(b, Options{ProjectID: "p1", Mode: recommend.SingleSelect, Recorder: rec})
	ready(t, c)

	op, err := c.Apply()
	require.NoError(t, err)
	c.Close()

	ev := c.Complete(op.Run(context.Background()))
	assert.True(t, ev.Stale)
	assert.False(t, ev.Report)
	assert.Equal(t, StateApplying, c.State(), "no state writes after close")
	assert.Empty(t, rec.records)

	_, err = c.Reload()
	assert.True(t, errors.Is(err, ErrFinished))
	assert.True(t, errors.Is(c.Toggle("1"), ErrFinished))
}

func TestSelectionNeverHoldsStaleIDs(t *testing.T) {
	rounds := []string{
		`[{"intervention_id":1,"score":3},{"intervention_id":2,"score":2}]`,
		`[{"intervention_id":5,"score":1}]`,
		`[{"intervention_id":"a"},{"intervention_id":"b","score":"7"}]`,
	}
	for _, mode := range []recommend.SelectionMode{recommend.SingleSelect, recommend.MultiSelect} {
		t.Run(string(mode), func(t *testing.T) {
			b := &fakeBackend{}
			for _, r := range rounds {
				b.fetches = append(b.fetches, fetchReply{body: r})
			}
			c := New(b, Options{ProjectID: "p1", Mode: mode})
			for range rounds {
				ready(t, c)
				snap := c.Snapshot()
				for _, id := range snap.Selected {
					assert.True(t, snap.Round.Contains(id), "stale id %s", id)
				}
				if mode == recommend.SingleSelect {
					assert.Len(t, snap.Selected, 1)
					assert.Equal(t, snap.Round[0].InterventionID, snap.Selected[0])
				} else {
					assert.Empty(t, snap.Selected)
				}
				// Select everything so the next round has something to clear.
				for _, r := range snap.Round {
					require.NoError(t, c.Select(r.InterventionID))
				}
			}
		})
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, KindNone, Kind(nil))
	assert.Equal(t, KindBusy, Kind(ErrBusy))
	assert.Equal(t, KindOther, Kind(errors.New("x")))
	assert.Equal(t, KindTransport, Kind(errors.Wrap(api.ErrTransport, "ctx")))
	assert.Equal(t, KindAuthExpired, Kind(errors.Wrap(api.ErrAuthExpired, "ctx")))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "applying", StateApplying.String())
	assert.Equal(t, "state(42)", State(42).String())
}
