package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trogers1052/options-monitor/internal/cache"
	"github.com/trogers1052/options-monitor/internal/csvparse"
	"github.com/trogers1052/options-monitor/internal/models"
	"github.com/trogers1052/options-monitor/internal/pipeline"
)

const quotesCSV = `timestamp,ibit_price,option_type,strike_price,expiration_date,time_to_expiration,market_price,purchase_cost,total_return,return_percentage,delta,gamma,theta,vega,implied_volatility
2025-08-01 16:00:00,65.00,call,85,2027-12-17,2.38,15.50,1520.00,30.00,1.97,0.55,0.01,-0.01,0.30,0.52
2025-08-01 16:00:00,65.00,call,90,2027-12-17,2.38,14.00,1575.00,-175.00,-11.11,0.50,0.01,-0.01,0.29,0.51
2025-08-01 16:00:00,65.00,call,70,2025-12-19,0.38,3.00,250.00,50.00,20.00,0.40,0.03,-0.03,0.10,0.60
`

type testServer struct {
	*httptest.Server
	hits   atomic.Int32
	status atomic.Int32
	body   atomic.Value
	delay  atomic.Int64
}

func newTestServer(t *testing.T, body string) *testServer {
	t.Helper()
	ts := &testServer{}
	ts.status.Store(http.StatusOK)
	ts.body.Store(body)
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.hits.Add(1)
		time.Sleep(time.Duration(ts.delay.Load()))
		if r.URL.Path != "/projects/IBIT_Call_Monitor/data/ibit_calls.csv" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(int(ts.status.Load()))
		_, _ = w.Write([]byte(ts.body.Load().(string)))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestLoader(baseURL string, c cache.Cache, policy csvparse.Policy) *Loader {
	src := NewCSVSource(NewHTTPFetcher(nil, baseURL), policy)
	return New(Config{
		Sources: map[string]RowSource{models.SourceCSV: src},
		Cache:   c,
		TTL:     15 * time.Minute,
		Options: pipeline.DefaultOptions(),
	}, zerolog.Nop())
}

func TestLoadProject(t *testing.T) {
	ctx := context.Background()

	t.Run("builds snapshot from fetched csv", func(t *testing.T) {
		ts := newTestServer(t, quotesCSV)
		l := newTestLoader(ts.URL, cache.NewMemory(), csvparse.DefaultPolicy())

		snap, err := l.LoadProject(ctx, "IBIT_Call_Monitor")
		require.NoError(t, err)

		assert.Equal(t, "IBIT Call Monitor", snap.Title)
		assert.Len(t, snap.RawData, 2, "short dated row should be filtered")
		assert.Len(t, snap.Positions, 2)
		assert.Equal(t, 2, snap.Summary.PositionCount)
		assert.Equal(t, "-145", snap.Summary.TotalReturn.String())
		assert.Equal(t, 65.0, snap.Summary.UnderlyingPrice)
	})

	t.Run("second load is served from cache", func(t *testing.T) {
		ts := newTestServer(t, quotesCSV)
		l := newTestLoader(ts.URL, cache.NewMemory(), csvparse.DefaultPolicy())

		first, err := l.LoadProject(ctx, "IBIT_Call_Monitor")
		require.NoError(t, err)
		second, err := l.LoadProject(ctx, "IBIT_Call_Monitor")
		require.NoError(t, err)

		assert.Equal(t, int32(1), ts.hits.Load())
		assert.Equal(t, first.Summary, second.Summary)
		assert.Equal(t, first.RawData, second.RawData)
	})

	t.Run("expired cache entry triggers refetch", func(t *testing.T) {
		ts := newTestServer(t, quotesCSV)
		c := cache.NewMemory()
		l := newTestLoader(ts.URL, c, csvparse.DefaultPolicy())

		_, err := l.LoadProject(ctx, "IBIT_Call_Monitor")
		require.NoError(t, err)

		// Overwrite the entry with one that has already expired
		key := ts.URL + "/projects/IBIT_Call_Monitor/data/ibit_calls.csv"
		require.NoError(t, c.Set(ctx, key, []byte("[]"), -time.Minute))

		_, err = l.LoadProject(ctx, "IBIT_Call_Monitor")
		require.NoError(t, err)
		assert.Equal(t, int32(2), ts.hits.Load())
	})

	t.Run("server error yields no data and is not cached", func(t *testing.T) {
		ts := newTestServer(t, quotesCSV)
		ts.status.Store(http.StatusInternalServerError)
		c := cache.NewMemory()
		l := newTestLoader(ts.URL, c, csvparse.DefaultPolicy())

		_, err := l.LoadProject(ctx, "IBIT_Call_Monitor")
		assert.ErrorIs(t, err, pipeline.ErrNoData)
		assert.Zero(t, c.Len())
	})

	t.Run("only short dated rows yields no data", func(t *testing.T) {
		ts := newTestServer(t, `timestamp,strike_price,expiration_date,time_to_expiration
2025-08-01 16:00:00,70,2025-12-19,0.38
`)
		l := newTestLoader(ts.URL, cache.NewMemory(), csvparse.DefaultPolicy())

		_, err := l.LoadProject(ctx, "IBIT_Call_Monitor")
		assert.ErrorIs(t, err, pipeline.ErrNoData)
	})

	t.Run("unknown project", func(t *testing.T) {
		ts := newTestServer(t, quotesCSV)
		l := newTestLoader(ts.URL, cache.NewMemory(), csvparse.DefaultPolicy())

		_, err := l.LoadProject(ctx, "SPY_Put_Monitor")
		assert.ErrorIs(t, err, ErrUnknownProject)
		assert.Zero(t, ts.hits.Load())
	})

	t.Run("strict policy surfaces malformed rows", func(t *testing.T) {
		ts := newTestServer(t, quotesCSV+"2025-08-02 16:00:00,66.00\n")
		policy := csvparse.Policy{OnRowMismatch: csvparse.RowMismatchFail, OnUnparsableNumber: csvparse.UnparsableKeepAsString}
		l := newTestLoader(ts.URL, cache.NewMemory(), policy)

		_, err := l.LoadProject(ctx, "IBIT_Call_Monitor")
		assert.ErrorIs(t, err, csvparse.ErrRowMismatch)
	})

	t.Run("concurrent loads fetch once", func(t *testing.T) {
		ts := newTestServer(t, quotesCSV)
		l := newTestLoader(ts.URL, cache.NewMemory(), csvparse.DefaultPolicy())

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := l.LoadProject(ctx, "IBIT_Call_Monitor")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), ts.hits.Load())
	})

	t.Run("cancelled caller does not fail the shared load", func(t *testing.T) {
		ts := newTestServer(t, quotesCSV)
		ts.delay.Store(int64(200 * time.Millisecond))
		l := newTestLoader(ts.URL, cache.NewMemory(), csvparse.DefaultPolicy())

		impatient, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		firstErr := make(chan error, 1)
		go func() {
			_, err := l.LoadProject(impatient, "IBIT_Call_Monitor")
			firstErr <- err
		}()
		require.Eventually(t, func() bool { return ts.hits.Load() == 1 }, time.Second, 5*time.Millisecond)

		snap, err := l.LoadProject(ctx, "IBIT_Call_Monitor")
		require.NoError(t, err)
		assert.Equal(t, 2, snap.Summary.PositionCount)

		assert.ErrorIs(t, <-firstErr, context.DeadlineExceeded)
		assert.Equal(t, int32(1), ts.hits.Load())

		// the completed load was cached for later callers
		_, err = l.LoadProject(ctx, "IBIT_Call_Monitor")
		require.NoError(t, err)
		assert.Equal(t, int32(1), ts.hits.Load())
	})
}

func TestLoadProject_ThresholdPassedThrough(t *testing.T) {
	ts := newTestServer(t, quotesCSV)
	src := NewCSVSource(NewHTTPFetcher(nil, ts.URL), csvparse.DefaultPolicy())
	l := New(Config{
		Sources: map[string]RowSource{models.SourceCSV: src},
		Options: pipeline.Options{MinTimeToExpiration: 0},
	}, zerolog.Nop())

	snap, err := l.LoadProject(context.Background(), "IBIT_Call_Monitor")
	require.NoError(t, err)
	assert.Len(t, snap.RawData, 3, "a zero threshold keeps the short dated row")
	assert.Len(t, snap.Positions, 3)
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	ts := newTestServer(t, quotesCSV)
	l := newTestLoader(ts.URL, cache.NewMemory(), csvparse.DefaultPolicy())

	_, err := l.LoadProject(ctx, "IBIT_Call_Monitor")
	require.NoError(t, err)

	ts.body.Store(`timestamp,ibit_price,strike_price,expiration_date,time_to_expiration,market_price,purchase_cost,total_return
2025-08-02 16:00:00,70.00,85,2027-12-17,2.37,17.00,1520.00,180.00
`)

	snap, err := l.Refresh(ctx, "IBIT_Call_Monitor")
	require.NoError(t, err)
	assert.Equal(t, int32(2), ts.hits.Load())
	assert.Equal(t, 70.0, snap.Summary.UnderlyingPrice)

	// Refreshed rows replace the cached ones
	cached, err := l.LoadProject(ctx, "IBIT_Call_Monitor")
	require.NoError(t, err)
	assert.Equal(t, int32(2), ts.hits.Load())
	assert.Equal(t, snap.Summary, cached.Summary)
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	p := DefaultProjects()[0]
	path := filepath.Join(dir, "projects", p.Name, "data", p.DataFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(quotesCSV), 0o644))

	src := NewCSVSource(NewFileFetcher(dir), csvparse.DefaultPolicy())
	assert.Equal(t, path, src.Key(p))

	rows, err := src.Rows(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, 85.0, rows[0].StrikePrice)

	_, err = NewCSVSource(NewFileFetcher(t.TempDir()), csvparse.DefaultPolicy()).Rows(context.Background(), p)
	assert.Error(t, err)
}

func TestProjects(t *testing.T) {
	l := New(Config{}, zerolog.Nop())

	projects := l.Projects()
	require.Len(t, projects, 1)
	assert.Equal(t, "IBIT_Call_Monitor", projects[0].Name)

	p, err := l.Project("IBIT_Call_Monitor")
	require.NoError(t, err)
	assert.Equal(t, "ibit_calls.csv", p.DataFile)

	_, err = l.LoadProject(context.Background(), "IBIT_Call_Monitor")
	assert.Error(t, err, "no source configured")
}
