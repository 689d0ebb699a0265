package syncengine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/octowatt/core/failure"
	"github.com/kilianp07/octowatt/core/model"
	"github.com/kilianp07/octowatt/core/series"
)

var t0 = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

func slot(i int) time.Time { return t0.Add(time.Duration(i) * model.SlotDuration) }

// fakeRemote serves a fixed record set newest-first, the way the consumption
// endpoint does when no ordering is requested.
type fakeRemote struct {
	mu      sync.Mutex
	records []model.Sample
	calls   int
	windows []Window
	shuffle bool

	// failAt is the 1-based call number that fails.
	failAt int
	// shorten overrides the page size per call.
	shorten func(call, pageSize int) int
	// extra is appended to every page.
	extra func(w Window) []model.Sample
}

func newRemote(n int) *fakeRemote {
	r := &fakeRemote{}
	for i := 0; i < n; i++ {
		r.records = append(r.records, model.Sample{Timestamp: slot(i), Value: float64(i)})
	}
	return r
}

func (r *fakeRemote) FetchPage(_ context.Context, w Window, pageSize int) ([]model.Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.windows = append(r.windows, w)
	if r.failAt > 0 && r.calls == r.failAt {
		return nil, failure.Transport("fetch page", errors.New("503 Service Unavailable"))
	}
	if r.shorten != nil {
		pageSize = r.shorten(r.calls, pageSize)
	}
	var out []model.Sample
	for i := len(r.records) - 1; i >= 0 && len(out) < pageSize; i-- {
		k := r.records[i].Timestamp
		if !w.From.IsZero() && k.Before(w.From) {
			continue
		}
		if !w.To.IsZero() && !k.Before(w.To) {
			continue
		}
		out = append(out, r.records[i])
	}
	if r.extra != nil {
		out = append(out, r.extra(w)...)
	}
	if r.shuffle {
		sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	}
	return out, nil
}

func (r *fakeRemote) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func sameValues(a, b model.Sample) bool { return a.Value == b.Value }

func TestSyncConvergesAndFetchesEveryRecordOnce(t *testing.T) {
	remote := newRemote(100)
	eng := New[model.Sample]("electric", remote, Config{PageSize: 7, MaxPageSize: 10}, nil)

	res, err := eng.Sync(context.Background(), nil, slot(0), slot(200))
	require.NoError(t, err)
	require.Len(t, res.Series, 100)
	assert.True(t, series.Canonical(res.Series))
	for i, s := range res.Series {
		assert.Equal(t, slot(i), s.Timestamp)
		assert.Equal(t, float64(i), s.Value)
	}
	assert.True(t, res.Stats.Seeded)
	assert.Equal(t, 100, res.Stats.Added)
	assert.Equal(t, remote.callCount(), res.Stats.Pages)
	// 90 older records at 7 per page; the last page reaches the join date and
	// collapses the window, so no empty probe follows.
	assert.Equal(t, 13, res.Stats.BackwardPages)
	assert.Equal(t, 1, res.Stats.ForwardPages)
}

func TestSyncIsIdempotent(t *testing.T) {
	remote := newRemote(40)
	eng := New[model.Sample]("gas", remote, Config{PageSize: 6, MaxPageSize: 8}, nil)
	join, now := slot(0), slot(45)

	first, err := eng.Sync(context.Background(), nil, join, now)
	require.NoError(t, err)
	second, err := eng.Sync(context.Background(), first.Series, join, now)
	require.NoError(t, err)

	assert.True(t, series.Equal(first.Series, second.Series, sameValues))
	assert.Equal(t, 0, second.Stats.Added)
	assert.False(t, second.Stats.Seeded)
	// Backward window [slot0, slot0) is already collapsed.
	assert.Equal(t, 0, second.Stats.BackwardPages)
	assert.Equal(t, 1, second.Stats.ForwardPages)
}

func TestSyncCoveredSeriesProbesForwardOnce(t *testing.T) {
	remote := newRemote(10)
	existing := append([]model.Sample(nil), remote.records...)
	eng := New[model.Sample]("electric", remote, Config{PageSize: 5, MaxPageSize: 5}, nil)

	res, err := eng.Sync(context.Background(), existing, slot(0), slot(10))
	require.NoError(t, err)
	assert.Equal(t, 1, remote.callCount())
	assert.Equal(t, 0, res.Stats.Added)
	assert.True(t, series.Equal(existing, res.Series, sameValues))
	assert.Equal(t, Window{From: slot(9), To: slot(10)}, remote.windows[0])
}

func TestSyncExtendsBothDirections(t *testing.T) {
	remote := newRemote(60)
	existing := []model.Sample{{Timestamp: slot(20), Value: 20}, {Timestamp: slot(30), Value: 30}}
	eng := New[model.Sample]("electric", remote, Config{PageSize: 4, MaxPageSize: 4}, nil)

	res, err := eng.Sync(context.Background(), existing, slot(5), slot(60))
	require.NoError(t, err)
	assert.False(t, res.Stats.Seeded)
	// [5,20) older, the two existing, and (30,60) newer; 21..29 are inside the
	// already held range and are not refetched.
	require.Len(t, res.Series, 15+2+29)
	assert.Equal(t, slot(5), res.Series[0].Timestamp)
	assert.Equal(t, slot(59), res.Series[len(res.Series)-1].Timestamp)
	assert.True(t, series.Canonical(res.Series))
	assert.Equal(t, 44, res.Stats.Added)
}

func TestSyncToleratesShortAndShuffledPages(t *testing.T) {
	remote := newRemote(50)
	remote.shuffle = true
	remote.shorten = func(call, size int) int { return 1 + call%3 }
	eng := New[model.Sample]("electric", remote, Config{PageSize: 10, MaxPageSize: 10}, nil)

	res, err := eng.Sync(context.Background(), nil, slot(0), slot(50))
	require.NoError(t, err)
	require.Len(t, res.Series, 50)
	assert.True(t, series.Canonical(res.Series))
}

func TestSyncToleratesOverlappingPages(t *testing.T) {
	remote := newRemote(30)
	// Every page also repeats the record sitting on the window's upper bound,
	// with a different value.
	remote.extra = func(w Window) []model.Sample {
		if w.To.IsZero() || !w.To.Before(slot(30)) {
			return nil
		}
		return []model.Sample{{Timestamp: w.To, Value: -1}}
	}
	eng := New[model.Sample]("electric", remote, Config{PageSize: 4, MaxPageSize: 4}, nil)

	res, err := eng.Sync(context.Background(), nil, slot(0), slot(30))
	require.NoError(t, err)
	require.Len(t, res.Series, 30)
	for _, s := range res.Series {
		assert.NotEqual(t, -1.0, s.Value, "earlier records must win at %s", s.Timestamp)
	}
}

func TestSyncFailureDiscardsEverything(t *testing.T) {
	remote := newRemote(50)
	remote.failAt = 4
	existing := []model.Sample{{Timestamp: slot(40), Value: 40}}
	eng := New[model.Sample]("electric", remote, Config{PageSize: 3, MaxPageSize: 3}, nil)

	res, err := eng.Sync(context.Background(), existing, slot(0), slot(60))
	require.Error(t, err)
	assert.Nil(t, res.Series)
	assert.True(t, failure.Is(err, failure.KindTransport))
	assert.True(t, failure.Retryable(err))
	require.Len(t, existing, 1)
	assert.Equal(t, 40.0, existing[0].Value)
}

func TestSyncSeedFailure(t *testing.T) {
	remote := newRemote(5)
	remote.failAt = 1
	eng := New[model.Sample]("gas", remote, Config{}, nil)
	_, err := eng.Sync(context.Background(), nil, slot(0), slot(5))
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.KindTransport))
}

func TestSyncJoinAfterNow(t *testing.T) {
	remote := newRemote(5)
	eng := New[model.Sample]("electric", remote, Config{}, nil)

	res, err := eng.Sync(context.Background(), nil, slot(10), slot(5))
	require.NoError(t, err)
	assert.Empty(t, res.Series)
	assert.Equal(t, 0, remote.callCount())
}

func TestSyncEmptyRemote(t *testing.T) {
	remote := newRemote(0)
	eng := New[model.Sample]("gas", remote, Config{PageSize: 5, MaxPageSize: 5}, nil)

	res, err := eng.Sync(context.Background(), nil, slot(0), slot(10))
	require.NoError(t, err)
	assert.Empty(t, res.Series)
	// Seed plus one forward probe over [join, now).
	assert.Equal(t, 2, remote.callCount())
	assert.Equal(t, Window{From: slot(0), To: slot(10)}, remote.windows[1])
}

func TestSyncExistingValueWinsOverRemote(t *testing.T) {
	remote := newRemote(10)
	existing := []model.Sample{{Timestamp: slot(9), Value: 1000}}
	eng := New[model.Sample]("electric", remote, Config{PageSize: 20, MaxPageSize: 20}, nil)

	for i := 0; i < 3; i++ {
		res, err := eng.Sync(context.Background(), existing, slot(0), slot(10))
		require.NoError(t, err)
		require.Len(t, res.Series, 10)
		assert.Equal(t, 1000.0, res.Series[9].Value)
	}
}

func TestSyncPageLimit(t *testing.T) {
	remote := newRemote(100)
	eng := New[model.Sample]("electric", remote, Config{PageSize: 2, MaxPageSize: 2, MaxPages: 3}, nil)

	_, err := eng.Sync(context.Background(), nil, slot(0), slot(100))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPageLimit)
}

func TestSyncHonoursCancellation(t *testing.T) {
	remote := newRemote(10)
	eng := New[model.Sample]("electric", remote, Config{PageSize: 2, MaxPageSize: 2}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Sync(ctx, []model.Sample{{Timestamp: slot(5)}}, slot(0), slot(10))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSyncTariffSeries(t *testing.T) {
	var rates []model.TariffRate
	for i := 0; i < 12; i++ {
		rates = append(rates, model.TariffRate{ValidFrom: slot(i), ValidTo: slot(i + 1), UnitPrice: float64(i)})
	}
	src := SourceFunc[model.TariffRate](func(_ context.Context, w Window, size int) ([]model.TariffRate, error) {
		var out []model.TariffRate
		for i := len(rates) - 1; i >= 0 && len(out) < size; i-- {
			k := rates[i].ValidFrom
			if (!w.From.IsZero() && k.Before(w.From)) || (!w.To.IsZero() && !k.Before(w.To)) {
				continue
			}
			out = append(out, rates[i])
		}
		return out, nil
	})
	eng := New[model.TariffRate]("agile", src, Config{PageSize: 5, MaxPageSize: 5}, nil)

	res, err := eng.Sync(context.Background(), nil, slot(0), slot(24))
	require.NoError(t, err)
	require.Len(t, res.Series, 12)
	assert.True(t, series.Canonical(res.Series))
}

func TestWindowEmpty(t *testing.T) {
	assert.False(t, Window{}.Empty())
	assert.True(t, Window{From: slot(1), To: slot(1)}.Empty())
	assert.False(t, Window{From: slot(1), To: slot(2)}.Empty())
}

func TestConfigValidate(t *testing.T) {
	var c Config
	c.SetDefaults()
	assert.NoError(t, c.Validate())
	assert.Equal(t, 1500, c.PageSize)
	assert.Equal(t, 25000, c.MaxPageSize)
	assert.Error(t, Config{PageSize: 10, MaxPageSize: 5}.Validate())
	assert.Error(t, Config{PageSize: 10, MaxPageSize: 10, MaxPages: -1}.Validate())
}
