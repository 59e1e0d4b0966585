package browse

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mrlokans/readstack/internal/live"
	"github.com/mrlokans/readstack/internal/openlibrary"
)

const (
	// GenreLimit is the number of works requested per genre.
	GenreLimit = 10
	// GenreFetchTimeout bounds one shared fan-out.
	GenreFetchTimeout = 2 * time.Minute
)

// Genres is the fixed list of subjects shown on the browse overview.
var Genres = []string{
	"fiction",
	"fantasy",
	"science",
	"romance",
	"history",
	"mystery",
	"horror",
	"thriller",
	"adventure",
	"biography",
	"science fiction",
	"poetry",
	"drama",
	"philosophy",
	"self help",
	"psychology",
	"health",
	"humor",
	"music",
	"sports",
	"technology",
	"education",
	"politics",
}

// SubjectLister fetches a subject listing.
type SubjectLister interface {
	Subject(ctx context.Context, subject string, limit, offset int) (*openlibrary.SubjectResponse, error)
}

// GenreMap maps a genre to its works. Genres without works are absent.
type GenreMap map[string][]openlibrary.Work

// GenreFetcher builds the genre overview with one concurrent request per
// genre. A failed genre is logged and left out; it never fails the whole
// fetch.
type GenreFetcher struct {
	client SubjectLister
	genres []string
	limit   int
	timeout time.Duration
	logger  *zap.Logger

	books   *live.State[GenreMap]
	loading *live.State[bool]
	flight  singleflight.Group
}

func NewGenreFetcher(client SubjectLister, logger *zap.Logger) *GenreFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenreFetcher{
		client:  client,
		genres:  Genres,
		limit:   GenreLimit,
		timeout: GenreFetchTimeout,
		logger:  logger,
		books:   live.NewState(GenreMap{}),
		loading: live.NewState(false),
	}
}

// Fetch requests every genre and publishes the merged map once all requests
// have finished. Concurrent callers share one fetch, which does not stop when
// a caller leaves. A caller whose ctx ends first gets the last published map.
func (f *GenreFetcher) Fetch(ctx context.Context) GenreMap {
	ch := f.flight.DoChan("genres", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
		defer cancel()
		return f.fetch(fetchCtx), nil
	})
	select {
	case res := <-ch:
		return res.Val.(GenreMap)
	case <-ctx.Done():
		return f.books.Get()
	}
}

func (f *GenreFetcher) fetch(ctx context.Context) GenreMap {
	f.loading.Set(true)
	defer f.loading.Set(false)

	start := time.Now()
	results := make([][]openlibrary.Work, len(f.genres))

	var g errgroup.Group
	for i, genre := range f.genres {
		g.Go(func() error {
			resp, err := f.client.Subject(ctx, genre, f.limit, 0)
			if err != nil {
				f.logger.Warn("failed to fetch genre", zap.String("genre", genre), zap.Error(err))
				return nil
			}
			results[i] = resp.Works
			return nil
		})
	}
	_ = g.Wait()

	out := make(GenreMap, len(f.genres))
	for i, genre := range f.genres {
		if len(results[i]) > 0 {
			out[genre] = results[i]
		}
	}

	f.logger.Info("genre overview fetched",
		zap.Int("genres", len(out)),
		zap.Int("requested", len(f.genres)),
		zap.Duration("duration", time.Since(start)))

	f.books.Set(out)
	return out
}

// Books returns the last published genre map.
func (f *GenreFetcher) Books() GenreMap {
	return f.books.Get()
}

// Loading reports whether a fetch is in progress.
func (f *GenreFetcher) Loading() bool {
	return f.loading.Get()
}

func (f *GenreFetcher) WatchBooks(ctx context.Context) <-chan GenreMap {
	return f.books.Subscribe(ctx)
}

func (f *GenreFetcher) WatchLoading(ctx context.Context) <-chan bool {
	return f.loading.Subscribe(ctx)
}
