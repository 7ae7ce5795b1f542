package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pable/go-showdown-tracker/internal/model"
	"github.com/pable/go-showdown-tracker/internal/storage"
)

// battleLog returns a minimal finished log between user and opponent.
func battleLog(user, opponent, winner string) string {
	return strings.Join([]string{
		"|player|p1|" + user + "|1|",
		"|player|p2|" + opponent + "|2|",
		"|tier|[Gen 9] VGC 2024 Reg G",
		"|poke|p1|Incineroar, L50, M|",
		"|poke|p2|Rillaboom, L50, M|",
		"|switch|p1a: Incineroar|Incineroar, L50, M|100/100",
		"|switch|p2a: Rillaboom|Rillaboom, L50, M|100/100",
		"|win|" + winner,
	}, "\n") + "\n"
}

// funcFetcher adapts a function to Fetcher.
type funcFetcher func(ctx context.Context, ref string) (*Replay, error)

func (f funcFetcher) Fetch(ctx context.Context, ref string) (*Replay, error) { return f(ctx, ref) }

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, ref string) (*Replay, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Replay), args.Error(1)
}

// recorder collects observer events. Observer calls are serialised, so the
// slice needs no lock.
type recorder struct {
	events []Event
}

func (r *recorder) observe(ev Event) { r.events = append(r.events, ev) }

func (r *recorder) states(ref string) []model.ReplayState {
	var out []model.ReplayState
	for _, ev := range r.events {
		if ev.Ref == ref {
			out = append(out, ev.State)
		}
	}
	return out
}

func TestStart_PersistsPlaceholdersBeforeFetching(t *testing.T) {
	store := storage.NewMemory()
	release := make(chan struct{})
	f := funcFetcher(func(ctx context.Context, ref string) (*Replay, error) {
		<-release
		return &Replay{ID: ref, Log: battleLog("Ash", "Gary", "Ash")}, nil
	})

	o := New(f, store, Config{KnownNames: []string{"Ash"}, TeamID: "t1"}, nil)
	b, err := o.Start(context.Background(), []string{"a", "b", "a", " "})
	require.NoError(t, err)

	for _, ref := range []string{"a", "b"} {
		e, ok, err := storage.LoadReplay(store, ref)
		require.NoError(t, err)
		require.True(t, ok, "placeholder for %s", ref)
		assert.Equal(t, "t1", e.TeamID)
	}
	refs, err := storage.TeamReplayRefs(store, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, refs)

	close(release)
	last := b.Wait()
	assert.Len(t, last, 2)
	for _, ref := range []string{"a", "b"} {
		assert.Equal(t, model.StateParsed, last[ref].State)
	}
}

func TestStart_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	f := funcFetcher(func(ctx context.Context, ref string) (*Replay, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(15 * time.Millisecond)
		inFlight.Add(-1)
		return &Replay{ID: ref, Log: battleLog("Ash", "Gary", "Ash")}, nil
	})

	var fetching, maxFetching int
	observe := func(ev Event) {
		switch ev.State {
		case model.StateFetching:
			fetching++
			maxFetching = max(maxFetching, fetching)
		case model.StateParsed, model.StateFailed:
			fetching--
		}
	}

	refs := make([]string, 10)
	for i := range refs {
		refs[i] = fmt.Sprintf("gen9vgc-%d", i)
	}
	o := New(f, storage.NewMemory(), Config{Concurrency: 3, KnownNames: []string{"Ash"}}, observe)
	b, err := o.Start(context.Background(), refs)
	require.NoError(t, err)
	last := b.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, int32(3), peak.Load(), "pool should fill up")
	assert.LessOrEqual(t, maxFetching, 3)
	for _, ref := range refs {
		assert.Equal(t, model.StateParsed, last[ref].State, ref)
	}
}

func TestStart_EventOrderAndClassification(t *testing.T) {
	rec := &recorder{}
	f := funcFetcher(func(ctx context.Context, ref string) (*Replay, error) {
		return &Replay{ID: ref, Log: battleLog("Ash", "Gary", "Gary")}, nil
	})
	store := storage.NewMemory()
	o := New(f, store, Config{KnownNames: []string{"ash"}}, rec.observe)
	b, err := o.Start(context.Background(), []string{"r1"})
	require.NoError(t, err)
	b.Wait()

	assert.Equal(t, []model.ReplayState{model.StateRegistered, model.StateFetching, model.StateParsed}, rec.states("r1"))

	e, ok, err := storage.LoadReplay(store, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, e.Record)
	assert.Equal(t, model.Side1, e.Record.UserSide)
	assert.Equal(t, "Gary", e.Record.OpponentLabel)
	assert.Equal(t, model.ResultLoss, e.Record.Result)
}

func TestStart_FailureIsolation(t *testing.T) {
	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, "good").Return(&Replay{ID: "good", Log: battleLog("Ash", "Gary", "Ash")}, nil)
	f.On("Fetch", mock.Anything, "missing").Return(nil, &StatusError{URL: "x/missing.json", StatusCode: 404})
	f.On("Fetch", mock.Anything, "empty").Return(&Replay{ID: "empty", Log: "|j|nobody\n"}, nil)

	store := storage.NewMemory()
	o := New(f, store, Config{KnownNames: []string{"Ash"}}, nil)
	b, err := o.Start(context.Background(), []string{"good", "missing", "empty"})
	require.NoError(t, err)
	last := b.Wait()

	assert.Equal(t, model.StateParsed, last["good"].State)

	assert.Equal(t, model.StateFailed, last["missing"].State)
	var se *StatusError
	require.ErrorAs(t, last["missing"].Err, &se)
	assert.Equal(t, 404, se.StatusCode)

	assert.Equal(t, model.StateFailed, last["empty"].State)
	e, _, err := storage.LoadReplay(store, "empty")
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, e.State)
	assert.Contains(t, e.Error, "both participants")

	f.AssertNumberOfCalls(t, "Fetch", 3)
}

func TestRetry_OverwritesRecord(t *testing.T) {
	var calls atomic.Int32
	f := funcFetcher(func(ctx context.Context, ref string) (*Replay, error) {
		switch calls.Add(1) {
		case 1:
			return nil, errors.New("connection reset")
		case 2:
			return &Replay{ID: ref, Log: battleLog("Ash", "Gary", "Gary")}, nil
		default:
			return &Replay{ID: ref, Log: battleLog("Ash", "Gary", "Ash")}, nil
		}
	})
	store := storage.NewMemory()
	o := New(f, store, Config{KnownNames: []string{"Ash"}}, nil)
	ctx := context.Background()

	b, err := o.Start(ctx, []string{"r1"})
	require.NoError(t, err)
	assert.Equal(t, model.StateFailed, b.Wait()["r1"].State)
	e, _, _ := storage.LoadReplay(store, "r1")
	assert.Contains(t, e.Error, "connection reset")

	b, err = o.Retry(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.StateParsed, b.Wait()["r1"].State)
	e, _, _ = storage.LoadReplay(store, "r1")
	require.NotNil(t, e.Record)
	assert.Empty(t, e.Error)
	assert.Equal(t, model.ResultLoss, e.Record.Result)

	b, err = o.Retry(ctx, "r1")
	require.NoError(t, err)
	b.Wait()
	e, _, _ = storage.LoadReplay(store, "r1")
	assert.Equal(t, model.ResultWin, e.Record.Result)

	refs, _ := storage.TeamReplayRefs(store, "")
	assert.Empty(t, refs)
}

func TestWithdraw_PendingAndInFlight(t *testing.T) {
	started := make(chan string, 4)
	release := make(chan struct{})
	var fetched sync.Map
	f := funcFetcher(func(ctx context.Context, ref string) (*Replay, error) {
		fetched.Store(ref, true)
		started <- ref
		<-release
		return &Replay{ID: ref, Log: battleLog("Ash", "Gary", "Ash")}, nil
	})
	rec := &recorder{}
	store := storage.NewMemory()
	o := New(f, store, Config{Concurrency: 1, KnownNames: []string{"Ash"}}, rec.observe)
	b, err := o.Start(context.Background(), []string{"first", "second", "third"})
	require.NoError(t, err)

	require.Equal(t, "first", <-started)
	assert.True(t, b.Withdraw("second"), "pending ref")
	assert.True(t, b.Withdraw("first"), "in-flight ref")
	assert.False(t, b.Withdraw("unknown"))
	close(release)
	last := b.Wait()

	_, secondFetched := fetched.Load("second")
	assert.False(t, secondFetched)
	assert.Equal(t, model.StateParsed, last["third"].State)

	// The in-flight result was discarded and the pending one never started.
	assert.Equal(t, []model.ReplayState{model.StateRegistered, model.StateFetching}, rec.states("first"))
	assert.Equal(t, []model.ReplayState{model.StateRegistered}, rec.states("second"))
	e, _, _ := storage.LoadReplay(store, "first")
	assert.Equal(t, model.StateFetching, e.State)
	assert.Nil(t, e.Record)
}

func TestStart_TimeoutFails(t *testing.T) {
	f := funcFetcher(func(ctx context.Context, ref string) (*Replay, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	o := New(f, storage.NewMemory(), Config{Timeout: 10 * time.Millisecond}, nil)
	b, err := o.Start(context.Background(), []string{"slow"})
	require.NoError(t, err)
	ev := b.Wait()["slow"]
	assert.Equal(t, model.StateFailed, ev.State)
	assert.ErrorIs(t, ev.Err, context.DeadlineExceeded)
}

func TestStart_PacesRequestStarts(t *testing.T) {
	var mu sync.Mutex
	var starts []time.Time
	f := funcFetcher(func(ctx context.Context, ref string) (*Replay, error) {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		return &Replay{ID: ref, Log: battleLog("Ash", "Gary", "Ash")}, nil
	})
	const pacing = 25 * time.Millisecond
	o := New(f, storage.NewMemory(), Config{Concurrency: 4, Pacing: pacing}, nil)
	b, err := o.Start(context.Background(), []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	b.Wait()

	require.Len(t, starts, 4)
	first, lastStart := starts[0], starts[0]
	for _, s := range starts {
		if s.Before(first) {
			first = s
		}
		if s.After(lastStart) {
			lastStart = s
		}
	}
	// Four starts at burst 1 need at least three pacing intervals.
	assert.GreaterOrEqual(t, lastStart.Sub(first), 3*pacing-5*time.Millisecond)
}

func TestStart_UsesUploadTimeWhenLogHasNone(t *testing.T) {
	uploaded := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f := funcFetcher(func(ctx context.Context, ref string) (*Replay, error) {
		return &Replay{ID: "gen9vgc-77", Format: "gen9vgc2024regg", Log: battleLog("Ash", "Gary", "Ash"), UploadedAt: uploaded}, nil
	})
	o := New(f, storage.NewMemory(), Config{KnownNames: []string{"Ash"}}, nil)
	b, err := o.Start(context.Background(), []string{"https://replay.pokemonshowdown.com/gen9vgc-77"})
	require.NoError(t, err)
	ev := b.Wait()["https://replay.pokemonshowdown.com/gen9vgc-77"]
	require.Equal(t, model.StateParsed, ev.State)
	assert.Equal(t, "gen9vgc-77", ev.Entry.Record.ID)
	assert.True(t, ev.Entry.Record.PlayedAt.Equal(uploaded))
	assert.Equal(t, "[Gen 9] VGC 2024 Reg G", ev.Entry.Record.Format)
}
