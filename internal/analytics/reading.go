// Package analytics derives reading statistics from the local store.
package analytics

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/mrlokans/readstack/internal/database"
	"github.com/mrlokans/readstack/internal/database/books"
	"github.com/mrlokans/readstack/internal/database/quotes"
	"github.com/mrlokans/readstack/internal/database/sessions"
	"github.com/mrlokans/readstack/internal/entities"
)

// Summary is a snapshot of every reading statistic. "This month" is the
// calendar month of the store clock, not a rolling window.
type Summary struct {
	PagesReadThisMonth     int64           `json:"pages_read_this_month"`
	TotalPagesRead         int64           `json:"total_pages_read"`
	TotalBooksFinished     int64           `json:"total_books_finished"`
	BooksFinishedThisMonth []entities.Book `json:"books_finished_this_month"`
	FinishedPagesTotal     int64           `json:"finished_pages_total"`
	FinishedPagesThisMonth int64           `json:"finished_pages_this_month"`
	QuotesCount            int64           `json:"quotes_count"`
	SessionPagesThisMonth  int64           `json:"session_pages_this_month"`
	BooksInSessionsMonth   []string        `json:"books_in_sessions_this_month"`
}

type Service struct {
	db       *database.Database
	books    *books.Repository
	quotes   *quotes.Repository
	sessions *sessions.Repository
}

func NewService(db *database.Database, bookRepo *books.Repository, quoteRepo *quotes.Repository, sessionRepo *sessions.Repository) *Service {
	return &Service{
		db:       db,
		books:    bookRepo,
		quotes:   quoteRepo,
		sessions: sessionRepo,
	}
}

func orZero(v sql.NullInt64, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	if !v.Valid {
		return 0, nil
	}
	return v.Int64, nil
}

func (s *Service) PagesReadThisMonth(ctx context.Context) (int64, error) {
	return orZero(s.books.PagesReadThisMonth(ctx))
}

func (s *Service) TotalPagesRead(ctx context.Context) (int64, error) {
	return orZero(s.books.TotalPagesRead(ctx))
}

func (s *Service) TotalBooksFinished(ctx context.Context) (int64, error) {
	return s.books.CountFinished(ctx)
}

func (s *Service) BooksFinishedThisMonth(ctx context.Context) ([]entities.Book, error) {
	return s.books.FinishedThisMonth(ctx)
}

func (s *Service) FinishedPagesTotal(ctx context.Context) (int64, error) {
	return orZero(s.books.TotalFinishedPages(ctx))
}

func (s *Service) FinishedPagesThisMonth(ctx context.Context) (int64, error) {
	return orZero(s.books.FinishedPagesThisMonth(ctx))
}

func (s *Service) QuotesCount(ctx context.Context) (int64, error) {
	return s.quotes.Count(ctx)
}

// Summary computes every statistic. Nothing is cached.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	var (
		sum Summary
		err error
	)

	if sum.PagesReadThisMonth, err = s.PagesReadThisMonth(ctx); err != nil {
		return Summary{}, fmt.Errorf("pages read this month: %w", err)
	}
	if sum.TotalPagesRead, err = s.TotalPagesRead(ctx); err != nil {
		return Summary{}, fmt.Errorf("total pages read: %w", err)
	}
	if sum.TotalBooksFinished, err = s.TotalBooksFinished(ctx); err != nil {
		return Summary{}, fmt.Errorf("books finished: %w", err)
	}
	if sum.BooksFinishedThisMonth, err = s.BooksFinishedThisMonth(ctx); err != nil {
		return Summary{}, fmt.Errorf("books finished this month: %w", err)
	}
	if sum.FinishedPagesTotal, err = s.FinishedPagesTotal(ctx); err != nil {
		return Summary{}, fmt.Errorf("finished pages: %w", err)
	}
	if sum.FinishedPagesThisMonth, err = s.FinishedPagesThisMonth(ctx); err != nil {
		return Summary{}, fmt.Errorf("finished pages this month: %w", err)
	}
	if sum.QuotesCount, err = s.QuotesCount(ctx); err != nil {
		return Summary{}, fmt.Errorf("quotes count: %w", err)
	}
	if sum.SessionPagesThisMonth, err = orZero(s.sessions.TotalPagesReadThisMonth(ctx)); err != nil {
		return Summary{}, fmt.Errorf("session pages this month: %w", err)
	}
	if sum.BooksInSessionsMonth, err = s.sessions.BooksReadThisMonth(ctx); err != nil {
		return Summary{}, fmt.Errorf("session books this month: %w", err)
	}
	return sum, nil
}

// Watch streams the summary, recomputing it after every committed write to
// books, quotes or reading sessions.
func (s *Service) Watch(ctx context.Context) <-chan Summary {
	return database.Watch(ctx, s.db, func(ctx context.Context, _ *gorm.DB) (Summary, error) {
		return s.Summary(ctx)
	}, database.TableBooks, database.TableQuotes, database.TableSessions)
}
