// Package sessions stores individual reading sittings.
package sessions

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/readstack/internal/database"
	"github.com/mrlokans/readstack/internal/entities"
)

const monthExpr = "strftime('%Y-%m', timestamp / 1000, 'unixepoch')"

type Repository struct {
	db  *database.Database
	now func() time.Time
}

type Option func(*Repository)

// WithClock overrides the clock used for month-windowed queries.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

func NewRepository(db *database.Database, opts ...Option) *Repository {
	r := &Repository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) currentMonth() string {
	return r.now().UTC().Format("2006-01")
}

// Insert appends a session. A zero Timestamp is stamped with the current time.
func (r *Repository) Insert(ctx context.Context, session *entities.ReadingSession) error {
	if session.Timestamp == 0 {
		session.Timestamp = r.now().UnixMilli()
	}
	return r.db.Write(ctx, func(tx *gorm.DB) error {
		return tx.Create(session).Error
	}, database.TableSessions)
}

// ListByBook returns the sessions of a book, most recent first.
func (r *Repository) ListByBook(ctx context.Context, bookID string) ([]entities.ReadingSession, error) {
	sessions := []entities.ReadingSession{}
	err := r.db.DB.WithContext(ctx).
		Where("book_id = ?", bookID).
		Order("timestamp DESC, id DESC").
		Find(&sessions).Error
	return sessions, err
}

// PagesReadThisMonth sums pages read in sessions of one book this month.
func (r *Repository) PagesReadThisMonth(ctx context.Context, bookID string) (sql.NullInt64, error) {
	var total sql.NullInt64
	err := r.db.DB.WithContext(ctx).Model(&entities.ReadingSession{}).
		Select("SUM(pages_read)").
		Where("book_id = ? AND "+monthExpr+" = ?", bookID, r.currentMonth()).
		Row().Scan(&total)
	return total, err
}

// TotalPagesReadThisMonth sums pages read across all sessions this month.
func (r *Repository) TotalPagesReadThisMonth(ctx context.Context) (sql.NullInt64, error) {
	var total sql.NullInt64
	err := r.db.DB.WithContext(ctx).Model(&entities.ReadingSession{}).
		Select("SUM(pages_read)").
		Where(monthExpr+" = ?", r.currentMonth()).
		Row().Scan(&total)
	return total, err
}

// BooksReadThisMonth returns the distinct ids of books with a session this
// month.
func (r *Repository) BooksReadThisMonth(ctx context.Context) ([]string, error) {
	ids := []string{}
	err := r.db.DB.WithContext(ctx).Model(&entities.ReadingSession{}).
		Distinct("book_id").
		Where(monthExpr+" = ?", r.currentMonth()).
		Order("book_id").
		Pluck("book_id", &ids).Error
	return ids, err
}
