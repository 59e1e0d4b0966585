// Package quotes provides storage for quotes and notes attached to books.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/readstack/internal/database"
	"github.com/mrlokans/readstack/internal/entities"
)

const (
	newestFirst = "timestamp DESC, id DESC"
	monthExpr   = "strftime('%Y-%m', timestamp / 1000, 'unixepoch')"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Repository handles all quote database operations.
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

// NewRepository creates a new quotes repository.
func NewRepository(db *database.Database, opts ...Option) *Repository {
	r := &Repository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) write(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Write(ctx, fn, database.TableQuotes)
}

// Insert stores a new quote, assigning its ID. A quote carrying an existing
// ID replaces that row.
func (r *Repository) Insert(ctx context.Context, quote *entities.Quote) error {
	return r.write(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(quote).Error
	})
}

// Update replaces every column of an existing quote.
func (r *Repository) Update(ctx context.Context, quote *entities.Quote) error {
	return r.write(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&entities.Quote{}).Where("id = ?", quote.ID).Select("*").Updates(quote)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("quote %d: %w", quote.ID, database.ErrNotFound)
		}
		return nil
	})
}

// Delete removes a quote by ID.
func (r *Repository) Delete(ctx context.Context, id uint) error {
	return r.write(ctx, func(tx *gorm.DB) error {
		return tx.Delete(&entities.Quote{}, id).Error
	})
}

// DeleteAllForBook removes every quote of a book and returns how many were
// deleted.
func (r *Repository) DeleteAllForBook(ctx context.Context, bookID string) (int64, error) {
	var deleted int64
	err := r.write(ctx, func(tx *gorm.DB) error {
		res := tx.Where("book_id = ?", bookID).Delete(&entities.Quote{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}

// Get returns a quote by ID, or nil when there is none.
func (r *Repository) Get(ctx context.Context, id uint) (*entities.Quote, error) {
	var quote entities.Quote
	err := r.db.DB.WithContext(ctx).First(&quote, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// ListByBook returns the quotes of a book, most recent first.
func (r *Repository) ListByBook(ctx context.Context, bookID string) ([]entities.Quote, error) {
	return quotesForBook(r.db.DB.WithContext(ctx), bookID)
}

func quotesForBook(db *gorm.DB, bookID string) ([]entities.Quote, error) {
	quotes := []entities.Quote{}
	err := db.Where("book_id = ?", bookID).Order(newestFirst).Find(&quotes).Error
	return quotes, err
}

// ListAll returns every quote, most recent first.
func (r *Repository) ListAll(ctx context.Context) ([]entities.Quote, error) {
	return allQuotes(r.db.DB.WithContext(ctx))
}

func allQuotes(db *gorm.DB) ([]entities.Quote, error) {
	quotes := []entities.Quote{}
	err := db.Order(newestFirst).Find(&quotes).Error
	return quotes, err
}

// Count returns the total number of quotes.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.DB.WithContext(ctx).Model(&entities.Quote{}).Count(&count).Error
	return count, err
}

// WatchByBook streams the quotes of a book.
func (r *Repository) WatchByBook(ctx context.Context, bookID string) <-chan []entities.Quote {
	return database.Watch(ctx, r.db, func(ctx context.Context, db *gorm.DB) ([]entities.Quote, error) {
		return quotesForBook(db, bookID)
	}, database.TableQuotes)
}

// WatchAll streams every quote.
func (r *Repository) WatchAll(ctx context.Context) <-chan []entities.Quote {
	return database.Watch(ctx, r.db, func(ctx context.Context, db *gorm.DB) ([]entities.Quote, error) {
		return allQuotes(db)
	}, database.TableQuotes)
}

// ListByTag returns quotes whose tag list contains tag as a substring.
func (r *Repository) ListByTag(ctx context.Context, tag string) ([]entities.Quote, error) {
	return quotesTagged(r.db.DB.WithContext(ctx), tag)
}

func quotesTagged(db *gorm.DB, tag string) ([]entities.Quote, error) {
	quotes := []entities.Quote{}
	err := db.Where(`tags LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(tag)+"%").
		Order(newestFirst).Find(&quotes).Error
	return quotes, err
}

// ListThisMonth returns quotes saved in the current calendar month (UTC),
// most recent first.
func (r *Repository) ListThisMonth(ctx context.Context) ([]entities.Quote, error) {
	quotes := []entities.Quote{}
	err := r.db.DB.WithContext(ctx).
		Where(monthExpr+" = ?", r.now().UTC().Format("2006-01")).
		Order(newestFirst).
		Find(&quotes).Error
	return quotes, err
}

// WatchByTag streams quotes whose tag list contains tag as a substring.
func (r *Repository) WatchByTag(ctx context.Context, tag string) <-chan []entities.Quote {
	return database.Watch(ctx, r.db, func(ctx context.Context, db *gorm.DB) ([]entities.Quote, error) {
		return quotesTagged(db, tag)
	}, database.TableQuotes)
}
