package browse

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mrlokans/readstack/internal/openlibrary"
	"github.com/mrlokans/readstack/internal/remote"
)

type fakeCatalog struct {
	mu sync.Mutex

	search   func(ctx context.Context, query string, limit int) (*openlibrary.SearchResponse, error)
	work     func(ctx context.Context, key string) (*openlibrary.WorkDetail, error)
	subjects map[string][]openlibrary.Work
	failing  map[string]bool
	inFlight atomic.Int32
	peak     atomic.Int32
	onCall   func()
	block    chan struct{}
}

func (f *fakeCatalog) Search(ctx context.Context, query string, limit int) (*openlibrary.SearchResponse, error) {
	return f.search(ctx, query, limit)
}

func (f *fakeCatalog) WorkDetails(ctx context.Context, key string) (*openlibrary.WorkDetail, error) {
	return f.work(ctx, key)
}

func (f *fakeCatalog) Subject(ctx context.Context, subject string, limit, offset int) (*openlibrary.SubjectResponse, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if f.onCall != nil {
		f.onCall()
	}
	time.Sleep(5 * time.Millisecond)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[subject] {
		return nil, &openlibrary.StatusError{Code: 500, Status: "Internal Server Error"}
	}
	return &openlibrary.SubjectResponse{Name: subject, Works: f.subjects[subject]}, nil
}

func works(keys ...string) []openlibrary.Work {
	out := make([]openlibrary.Work, 0, len(keys))
	for _, k := range keys {
		out = append(out, openlibrary.Work{Key: k, Title: k})
	}
	return out
}

func TestGenreFetcher_IsolatesFailuresAndOmitsEmpty(t *testing.T) {
	catalog := &fakeCatalog{
		subjects: map[string][]openlibrary.Work{
			"fiction":         works("/works/OL1W"),
			"science fiction": works("/works/OL2W", "/works/OL3W"),
			"history":         works("/works/OL4W"),
		},
		failing: map[string]bool{"history": true},
	}
	fetcher := NewGenreFetcher(catalog, zap.NewNop())

	var sawLoading atomic.Bool
	catalog.onCall = func() {
		if fetcher.Loading() {
			sawLoading.Store(true)
		}
	}

	assert.False(t, fetcher.Loading())
	got := fetcher.Fetch(context.Background())

	assert.Len(t, got, 2)
	assert.Len(t, got["fiction"], 1)
	assert.Len(t, got["science fiction"], 2)
	assert.NotContains(t, got, "history")
	assert.NotContains(t, got, "poetry")

	assert.True(t, sawLoading.Load())
	assert.False(t, fetcher.Loading())
	assert.Equal(t, got, fetcher.Books())
	assert.Greater(t, catalog.peak.Load(), int32(1), "genres should be fetched concurrently")
}

func TestGenreFetcher_PublishesOnlyAfterAllBranches(t *testing.T) {
	catalog := &fakeCatalog{
		subjects: map[string][]openlibrary.Work{"fiction": works("/works/OL1W")},
		block:    make(chan struct{}),
	}
	fetcher := NewGenreFetcher(catalog, zap.NewNop())

	var published atomic.Bool
	catalog.onCall = func() {
		if len(fetcher.Books()) > 0 {
			published.Store(true)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loading := fetcher.WatchLoading(ctx)

	var seen []bool
	seen = append(seen, next(t, loading))

	done := make(chan struct{})
	go func() {
		defer close(done)
		fetcher.Fetch(context.Background())
	}()

	seen = append(seen, next(t, loading))
	close(catalog.block)
	<-done
	seen = append(seen, next(t, loading))

	select {
	case v := <-loading:
		t.Fatalf("unexpected loading value %v", v)
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, []bool{false, true, false}, seen)
	assert.False(t, published.Load())
	assert.Len(t, fetcher.Books(), 1)
}

func TestGenreFetcher_CallerLeavingKeepsSharedFetch(t *testing.T) {
	catalog := &fakeCatalog{subjects: map[string][]openlibrary.Work{
		"fiction": works("/works/OL1W"),
		"poetry":  works("/works/OL2W"),
	}}
	fetcher := NewGenreFetcher(catalog, zap.NewNop())

	warm := fetcher.Fetch(context.Background())
	require.Len(t, warm, 2)

	catalog.mu.Lock()
	catalog.subjects["fiction"] = works("/works/OL1W", "/works/OL3W")
	catalog.mu.Unlock()
	catalog.block = make(chan struct{})

	leaving, leave := context.WithCancel(context.Background())
	leftWith := make(chan GenreMap, 1)
	go func() { leftWith <- fetcher.Fetch(leaving) }()
	require.Eventually(t, func() bool { return catalog.inFlight.Load() > 0 }, time.Second, time.Millisecond)

	stayedWith := make(chan GenreMap, 1)
	go func() { stayedWith <- fetcher.Fetch(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	leave()
	select {
	case got := <-leftWith:
		assert.Equal(t, warm, got)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}
	assert.Equal(t, warm, fetcher.Books())

	close(catalog.block)
	select {
	case got := <-stayedWith:
		assert.Len(t, got, 2)
		assert.Len(t, got["fiction"], 2)
	case <-time.After(2 * time.Second):
		t.Fatal("shared fetch did not finish")
	}
	assert.Len(t, fetcher.Books()["fiction"], 2)
	assert.False(t, fetcher.Loading())
}

func TestGenreFetcher_AllFailuresYieldEmptyMap(t *testing.T) {
	failing := map[string]bool{}
	for _, g := range Genres {
		failing[g] = true
	}
	fetcher := NewGenreFetcher(&fakeCatalog{failing: failing}, zap.NewNop())

	assert.Empty(t, fetcher.Fetch(context.Background()))
	assert.False(t, fetcher.Loading())
}

func TestGenres_FixedList(t *testing.T) {
	assert.Len(t, Genres, 23)
	assert.Contains(t, Genres, "self help")
}

func TestService_DetailsCombinesAuthorNames(t *testing.T) {
	catalog := &fakeCatalog{
		work: func(ctx context.Context, key string) (*openlibrary.WorkDetail, error) {
			assert.Equal(t, "/works/OL5W", key)
			return &openlibrary.WorkDetail{
				Key:         "/works/OL5W",
				Title:       "Emma",
				Covers:      []int{12},
				Description: openlibrary.Description{Kind: openlibrary.DescriptionPlain, Value: "Matchmaking."},
			}, nil
		},
		search: func(ctx context.Context, query string, limit int) (*openlibrary.SearchResponse, error) {
			assert.Equal(t, "OL5W", query)
			assert.Equal(t, 1, limit)
			return &openlibrary.SearchResponse{Docs: []openlibrary.SearchDoc{{AuthorName: []string{"Jane Austen"}}}}, nil
		},
	}
	svc := NewService(catalog, zap.NewNop())

	resp := svc.Details(context.Background(), "OL5W")
	require.True(t, resp.OK(), resp.Message)
	assert.Equal(t, "Emma", resp.Data.Title)
	assert.Equal(t, []string{"Jane Austen"}, resp.Data.AuthorNames)
	assert.Equal(t, "Matchmaking.", resp.Data.Description.Text())
	assert.Equal(t, "https://covers.openlibrary.org/b/id/12-L.jpg", resp.Data.CoverURL)
	assert.Equal(t, resp, svc.DetailsState().Current())
}

func TestService_DetailsFailure(t *testing.T) {
	catalog := &fakeCatalog{
		work: func(ctx context.Context, key string) (*openlibrary.WorkDetail, error) {
			return nil, openlibrary.ErrTimeout
		},
		search: func(ctx context.Context, query string, limit int) (*openlibrary.SearchResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	svc := NewService(catalog, zap.NewNop())

	resp := svc.Details(context.Background(), "OL5W")
	assert.Equal(t, remote.StatusError, resp.Status)
	assert.Equal(t, "Request timed out", resp.Message)
}

func TestService_SearchSupersedesStaleResults(t *testing.T) {
	slowStarted := make(chan struct{})
	catalog := &fakeCatalog{
		search: func(ctx context.Context, query string, limit int) (*openlibrary.SearchResponse, error) {
			assert.Equal(t, SearchLimit, limit)
			if query == "slow" {
				close(slowStarted)
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return &openlibrary.SearchResponse{Query: query}, nil
		},
	}
	svc := NewService(catalog, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Search(context.Background(), "slow")
	}()
	<-slowStarted

	resp := svc.Search(context.Background(), "fast")
	require.True(t, resp.OK())
	<-done

	current := svc.SearchState().Current()
	require.True(t, current.OK())
	assert.Equal(t, "fast", current.Data.Query)
}

func TestService_SubjectBooks(t *testing.T) {
	catalog := &fakeCatalog{subjects: map[string][]openlibrary.Work{"poetry": works("/works/OL9W")}}
	svc := NewService(catalog, zap.NewNop())

	resp := svc.SubjectBooks(context.Background(), "poetry")
	require.True(t, resp.OK())
	assert.Len(t, resp.Data.Works, 1)

	catalog.failing = map[string]bool{"drama": true}
	resp = svc.SubjectBooks(context.Background(), "drama")
	assert.Equal(t, remote.StatusError, resp.Status)
	assert.Equal(t, "HTTP 500: Internal Server Error", resp.Message)
}

func next[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "stream closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}
