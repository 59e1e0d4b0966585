// Package shelving coordinates saving catalog works onto shelves and the
// state transitions of saved books.
package shelving

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/readstack/internal/database"
	"github.com/mrlokans/readstack/internal/database/books"
	"github.com/mrlokans/readstack/internal/entities"
	"github.com/mrlokans/readstack/internal/live"
	"github.com/mrlokans/readstack/internal/openlibrary"
)

const (
	unknownTitle       = "Unknown Title"
	DefaultGracePeriod = 5 * time.Second
)

// ErrInvalidProgress is returned for negative page counts.
var ErrInvalidProgress = errors.New("page counts must not be negative")

// Catalog fetches work details.
type Catalog interface {
	WorkDetails(ctx context.Context, workKey string) (*openlibrary.WorkDetail, error)
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result reports the outcome of a coordinator operation with a message meant
// for the user.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

func success(msg string) Result {
	return Result{Status: StatusSuccess, Message: msg}
}

func failure(msg string) Result {
	return Result{Status: StatusError, Message: msg}
}

type Service struct {
	catalog Catalog
	books   *books.Repository
	logger  *zap.Logger
	now     func() time.Time
	grace   time.Duration

	last *live.State[Result]

	shelves   map[entities.Shelf]*live.Shared[[]entities.Book]
	favorites *live.Shared[[]entities.Book]
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithGracePeriod sets how long shelf streams keep running after their last
// observer leaves.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Service) {
		s.grace = d
	}
}

func NewService(catalog Catalog, repo *books.Repository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		catalog: catalog,
		books:   repo,
		logger:  logger,
		now:     time.Now,
		grace:   DefaultGracePeriod,
		last:    live.NewState(Result{Status: StatusSuccess}),
		shelves: make(map[entities.Shelf]*live.Shared[[]entities.Book]),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, shelf := range entities.Shelves {
		s.shelves[shelf] = live.NewShared([]entities.Book{}, s.grace, func(ctx context.Context) <-chan []entities.Book {
			return repo.WatchShelf(ctx, shelf)
		})
	}
	s.favorites = live.NewShared([]entities.Book{}, s.grace, repo.WatchFavorites)
	return s
}

func (s *Service) report(r Result) Result {
	s.last.Set(r)
	return r
}

// LastResult returns the outcome of the most recent operation.
func (s *Service) LastResult() Result {
	return s.last.Get()
}

// Results streams operation outcomes.
func (s *Service) Results(ctx context.Context) <-chan Result {
	return s.last.Subscribe(ctx)
}

// SaveFromCatalog fetches a work and stores it on the given shelf, replacing
// any earlier copy of the same work.
func (s *Service) SaveFromCatalog(ctx context.Context, workKey string, shelf entities.Shelf) Result {
	if err := entities.ValidateShelf(shelf); err != nil {
		return s.report(failure("Failed to save book: " + err.Error()))
	}
	key := openlibrary.NormalizeWorkKey(workKey)
	if key == "" {
		return s.report(failure("Failed to save book: work key is required"))
	}

	detail, err := s.catalog.WorkDetails(ctx, key)
	if err != nil {
		s.logger.Warn("failed to fetch work details", zap.String("work_key", key), zap.Error(err))
		msg, known := openlibrary.Describe(err)
		if !known {
			msg = "Failed to save book: " + msg
		}
		return s.report(failure(msg))
	}

	book := BookFromWork(key, detail, s.now())
	book.Shelf = shelf
	if err := s.books.Upsert(ctx, book); err != nil {
		s.logger.Error("failed to store book", zap.String("book_id", book.ID), zap.Error(err))
		return s.report(failure("Failed to save book: " + err.Error()))
	}

	s.logger.Info("book saved", zap.String("book_id", book.ID), zap.String("shelf", string(shelf)))
	return s.report(success("Book saved successfully"))
}

// BookFromWork maps a catalog work onto a fresh, unshelved book.
func BookFromWork(key string, detail *openlibrary.WorkDetail, now time.Time) *entities.Book {
	book := &entities.Book{ID: key, Title: unknownTitle}
	if id := openlibrary.NormalizeWorkKey(detail.Key); id != "" {
		book.ID = id
	}
	if detail.Title != "" {
		book.Title = detail.Title
	}
	if cover := openlibrary.CoverURL(detail.CoverID(), openlibrary.CoverLarge); cover != "" {
		book.CoverURL = &cover
	}
	book.Touch(now)
	return book
}

// ChangeShelf moves a saved book to another shelf.
func (s *Service) ChangeShelf(ctx context.Context, id string, shelf entities.Shelf) Result {
	if err := entities.ValidateShelf(shelf); err != nil {
		return s.report(failure("Failed to update shelf: " + err.Error()))
	}

	_, err := s.books.Modify(ctx, id, func(b *entities.Book) error {
		b.Shelf = shelf
		b.Touch(s.now())
		return nil
	})
	if err != nil {
		return s.report(failure("Failed to update shelf: " + describeStoreError(id, err)))
	}
	return s.report(success("Shelf updated successfully"))
}

// UpdateProgress sets the total page count and/or pages read. A nil argument
// leaves that value unchanged. Pages read never exceeds a known total.
func (s *Service) UpdateProgress(ctx context.Context, id string, totalPages, pagesRead *int) Result {
	if (totalPages != nil && *totalPages < 0) || (pagesRead != nil && *pagesRead < 0) {
		return s.report(failure("Failed to update progress: " + ErrInvalidProgress.Error()))
	}

	_, err := s.books.Modify(ctx, id, func(b *entities.Book) error {
		if totalPages != nil {
			total := *totalPages
			b.TotalPages = &total
		}
		if pagesRead != nil {
			b.CurrentPage = *pagesRead
		}
		if b.TotalPages != nil && b.CurrentPage > *b.TotalPages {
			b.CurrentPage = *b.TotalPages
		}
		b.Touch(s.now())
		return nil
	})
	if err != nil {
		return s.report(failure("Failed to update progress: " + describeStoreError(id, err)))
	}
	return s.report(success("Progress updated"))
}

// SetFavorite marks or unmarks a saved book as favorite.
func (s *Service) SetFavorite(ctx context.Context, id string, favorite bool) Result {
	if err := s.books.SetFavorite(ctx, id, favorite); err != nil {
		return s.report(failure("Failed to update favorite: " + describeStoreError(id, err)))
	}
	if favorite {
		return s.report(success("Added to favorites"))
	}
	return s.report(success("Removed from favorites"))
}

// DeleteBook removes a saved book. Deleting an unknown id succeeds.
func (s *Service) DeleteBook(ctx context.Context, id string) Result {
	if err := s.books.DeleteByID(ctx, id); err != nil {
		return s.report(failure("Failed to delete book: " + err.Error()))
	}
	return s.report(success("Book deleted successfully"))
}

// Book returns a saved book, or nil.
func (s *Service) Book(ctx context.Context, id string) (*entities.Book, error) {
	return s.books.Get(ctx, id)
}

// WatchBook streams a saved book; nil while it does not exist.
func (s *Service) WatchBook(ctx context.Context, id string) <-chan *entities.Book {
	return s.books.WatchBook(ctx, id)
}

// ShelfBooks reads the books on a shelf directly from the store.
func (s *Service) ShelfBooks(ctx context.Context, shelf entities.Shelf) ([]entities.Book, error) {
	if err := entities.ValidateShelf(shelf); err != nil {
		return nil, err
	}
	return s.books.ListByShelf(ctx, shelf)
}

func (s *Service) FavoriteBooks(ctx context.Context) ([]entities.Book, error) {
	return s.books.ListFavorites(ctx)
}

// Shelf returns the shared collection for a shelf, or nil for an unknown
// shelf.
func (s *Service) Shelf(shelf entities.Shelf) *live.Shared[[]entities.Book] {
	return s.shelves[shelf]
}

func (s *Service) CurrentlyReading() *live.Shared[[]entities.Book] {
	return s.shelves[entities.ShelfCurrentlyReading]
}

func (s *Service) WantToRead() *live.Shared[[]entities.Book] {
	return s.shelves[entities.ShelfWantToRead]
}

func (s *Service) Finished() *live.Shared[[]entities.Book] {
	return s.shelves[entities.ShelfFinished]
}

func (s *Service) Favorites() *live.Shared[[]entities.Book] {
	return s.favorites
}

func describeStoreError(id string, err error) string {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Sprintf("Book with id %s not found", id)
	}
	return err.Error()
}
