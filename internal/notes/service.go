// Package notes manages quotes and notes saved from books.
package notes

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mrlokans/readstack/internal/database/quotes"
	"github.com/mrlokans/readstack/internal/entities"
)

// DefaultRandomCount is the number of quotes Random returns when asked for
// none.
const DefaultRandomCount = 4

var ErrEmptyQuote = errors.New("quote text is required")

type Service struct {
	quotes  *quotes.Repository
	logger  *zap.Logger
	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo *quotes.Repository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		quotes:  repo,
		logger:  logger,
		now:     time.Now,
		shuffle: rand.Shuffle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create saves a new quote stamped with the current time.
func (s *Service) Create(ctx context.Context, bookID, text string, note *string, tags []string) (*entities.Quote, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuote
	}
	if note != nil && strings.TrimSpace(*note) == "" {
		note = nil
	}

	quote := &entities.Quote{
		BookID:    bookID,
		Text:      text,
		Note:      note,
		Tags:      tags,
		Timestamp: s.now().UnixMilli(),
	}
	if err := s.quotes.Insert(ctx, quote); err != nil {
		return nil, err
	}
	s.logger.Debug("quote created", zap.String("book_id", bookID), zap.Uint("quote_id", quote.ID))
	return quote, nil
}

// Update rewrites an existing quote. The creation time is kept when the
// caller leaves it unset.
func (s *Service) Update(ctx context.Context, quote *entities.Quote) error {
	if strings.TrimSpace(quote.Text) == "" {
		return ErrEmptyQuote
	}
	if quote.Timestamp == 0 {
		existing, err := s.quotes.Get(ctx, quote.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			quote.Timestamp = existing.Timestamp
		}
	}
	return s.quotes.Update(ctx, quote)
}

func (s *Service) Get(ctx context.Context, id uint) (*entities.Quote, error) {
	return s.quotes.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.quotes.Delete(ctx, id)
}

func (s *Service) DeleteAllForBook(ctx context.Context, bookID string) (int64, error) {
	deleted, err := s.quotes.DeleteAllForBook(ctx, bookID)
	if err != nil {
		s.logger.Error("failed to delete quotes for book", zap.String("book_id", bookID), zap.Error(err))
		return 0, err
	}
	return deleted, nil
}

// ForBook returns the quotes of a book, most recent first.
func (s *Service) ForBook(ctx context.Context, bookID string) ([]entities.Quote, error) {
	return s.quotes.ListByBook(ctx, bookID)
}

func (s *Service) All(ctx context.Context) ([]entities.Quote, error) {
	return s.quotes.ListAll(ctx)
}

// ByTag returns quotes whose tags contain tag as a substring.
func (s *Service) ByTag(ctx context.Context, tag string) ([]entities.Quote, error) {
	return s.quotes.ListByTag(ctx, tag)
}

// ThisMonth returns quotes saved in the current calendar month.
func (s *Service) ThisMonth(ctx context.Context) ([]entities.Quote, error) {
	return s.quotes.ListThisMonth(ctx)
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.quotes.Count(ctx)
}

func (s *Service) WatchForBook(ctx context.Context, bookID string) <-chan []entities.Quote {
	return s.quotes.WatchByBook(ctx, bookID)
}

func (s *Service) WatchAll(ctx context.Context) <-chan []entities.Quote {
	return s.quotes.WatchAll(ctx)
}

// WatchByTag streams quotes whose tags contain tag as a substring.
func (s *Service) WatchByTag(ctx context.Context, tag string) <-chan []entities.Quote {
	return s.quotes.WatchByTag(ctx, tag)
}

// Random returns up to n quotes in random order.
func (s *Service) Random(ctx context.Context, n int) ([]entities.Quote, error) {
	if n <= 0 {
		n = DefaultRandomCount
	}
	all, err := s.quotes.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	s.shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}
