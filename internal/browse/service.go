// Package browse serves catalog browsing: search, combined work details,
// subject listings and the genre overview.
package browse

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mrlokans/readstack/internal/openlibrary"
	"github.com/mrlokans/readstack/internal/remote"
)

const (
	SearchLimit  = 30
	SubjectLimit = 20
)

// Catalog is the subset of the catalog client used for browsing.
type Catalog interface {
	Search(ctx context.Context, query string, limit int) (*openlibrary.SearchResponse, error)
	WorkDetails(ctx context.Context, workKey string) (*openlibrary.WorkDetail, error)
	Subject(ctx context.Context, subject string, limit, offset int) (*openlibrary.SubjectResponse, error)
}

// BookDetails merges a work record with the author names only the search
// index carries.
type BookDetails struct {
	Key              string                  `json:"key"`
	Title            string                  `json:"title"`
	Description      openlibrary.Description `json:"description"`
	Covers           []int                   `json:"covers,omitempty"`
	CoverURL         string                  `json:"cover_url,omitempty"`
	Subjects         []string                `json:"subjects,omitempty"`
	SubjectPlaces    []string                `json:"subject_places,omitempty"`
	SubjectPeople    []string                `json:"subject_people,omitempty"`
	SubjectTimes     []string                `json:"subject_times,omitempty"`
	FirstPublishDate string                  `json:"first_publish_date,omitempty"`
	Excerpts         []openlibrary.Excerpt   `json:"excerpts,omitempty"`
	AuthorNames      []string                `json:"author_names"`
	AuthorKeys       []string                `json:"author_keys,omitempty"`
}

type Service struct {
	catalog Catalog
	logger  *zap.Logger

	search  *remote.Tracker[*openlibrary.SearchResponse]
	details *remote.Tracker[*BookDetails]
	subject *remote.Tracker[*openlibrary.SubjectResponse]
	genres  *GenreFetcher
}

func NewService(catalog Catalog, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		catalog: catalog,
		logger:  logger,
		search:  remote.NewTracker[*openlibrary.SearchResponse](openlibrary.UserMessage),
		details: remote.NewTracker[*BookDetails](openlibrary.UserMessage),
		subject: remote.NewTracker[*openlibrary.SubjectResponse](openlibrary.UserMessage),
		genres:  NewGenreFetcher(catalog, logger),
	}
}

// Search runs a catalog search, superseding any search in flight.
func (s *Service) Search(ctx context.Context, query string) remote.Response[*openlibrary.SearchResponse] {
	resp, _ := s.search.Run(ctx, func(ctx context.Context) (*openlibrary.SearchResponse, error) {
		return s.catalog.Search(ctx, query, SearchLimit)
	})
	return resp
}

// Details fetches a work and its author names concurrently.
func (s *Service) Details(ctx context.Context, workKey string) remote.Response[*BookDetails] {
	resp, _ := s.details.Run(ctx, func(ctx context.Context) (*BookDetails, error) {
		return s.fetchDetails(ctx, workKey)
	})
	return resp
}

func (s *Service) fetchDetails(ctx context.Context, workKey string) (*BookDetails, error) {
	key := openlibrary.NormalizeWorkKey(workKey)
	if key == "" {
		return nil, fmt.Errorf("work key is required")
	}

	var (
		detail *openlibrary.WorkDetail
		found  *openlibrary.SearchResponse
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		detail, err = s.catalog.WorkDetails(gctx, key)
		return err
	})
	g.Go(func() error {
		var err error
		found, err = s.catalog.Search(gctx, openlibrary.WorkID(key), 1)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("failed to fetch book details", zap.String("work_key", key), zap.Error(err))
		return nil, err
	}

	details := &BookDetails{
		Key:              detail.Key,
		Title:            detail.Title,
		Description:      detail.Description,
		Covers:           detail.Covers,
		CoverURL:         openlibrary.CoverURL(detail.CoverID(), openlibrary.CoverLarge),
		Subjects:         detail.Subjects,
		SubjectPlaces:    detail.SubjectPlaces,
		SubjectPeople:    detail.SubjectPeople,
		SubjectTimes:     detail.SubjectTimes,
		FirstPublishDate: detail.FirstPublishDate,
		Excerpts:         detail.Excerpts,
		AuthorNames:      []string{},
		AuthorKeys:       detail.AuthorKeys(),
	}
	if found != nil && len(found.Docs) > 0 && found.Docs[0].AuthorName != nil {
		details.AuthorNames = found.Docs[0].AuthorName
	}
	return details, nil
}

// SubjectBooks lists works for a subject.
func (s *Service) SubjectBooks(ctx context.Context, subject string) remote.Response[*openlibrary.SubjectResponse] {
	resp, _ := s.subject.Run(ctx, func(ctx context.Context) (*openlibrary.SubjectResponse, error) {
		return s.catalog.Subject(ctx, subject, SubjectLimit, 0)
	})
	return resp
}

func (s *Service) SearchState() *remote.Tracker[*openlibrary.SearchResponse] {
	return s.search
}

func (s *Service) DetailsState() *remote.Tracker[*BookDetails] {
	return s.details
}

func (s *Service) SubjectState() *remote.Tracker[*openlibrary.SubjectResponse] {
	return s.subject
}

func (s *Service) Genres() *GenreFetcher {
	return s.genres
}
