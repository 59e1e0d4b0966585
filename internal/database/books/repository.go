// Package books provides storage for shelved books: point lookups, shelf
// watches, read-modify-write updates and the aggregate queries behind the
// reading statistics.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	book, err := repo.Get(ctx, "/works/OL123W")
//	for snapshot := range repo.WatchShelf(ctx, entities.ShelfFinished) { ... }
package books

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/readstack/internal/database"
	"github.com/mrlokans/readstack/internal/entities"
)

// monthExpr extracts YYYY-MM (UTC) from the epoch-millisecond updated_at column.
const monthExpr = "strftime('%Y-%m', updated_at / 1000, 'unixepoch')"

// Repository handles all book database operations.
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

// NewRepository creates a new books repository.
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

func (r *Repository) write(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Write(ctx, fn, database.TableBooks)
}

// Upsert inserts the book or replaces every column of an existing row with
// the same id.
func (r *Repository) Upsert(ctx context.Context, book *entities.Book) error {
	return r.write(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(book).Error
	})
}

// Update replaces every column of an existing book. Returns
// database.ErrNotFound when no row has the book's id.
func (r *Repository) Update(ctx context.Context, book *entities.Book) error {
	return r.write(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&entities.Book{}).Where("id = ?", book.ID).Select("*").Updates(book)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("book %s: %w", book.ID, database.ErrNotFound)
		}
		return nil
	})
}

// Modify loads the book, applies fn and writes the result back as one
// serialized transaction. Returns database.ErrNotFound when the book does
// not exist; nothing is written in that case or when fn fails.
func (r *Repository) Modify(ctx context.Context, id string, fn func(book *entities.Book) error) (*entities.Book, error) {
	var updated entities.Book
	err := r.write(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&updated).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("book %s: %w", id, database.ErrNotFound)
			}
			return err
		}
		if err := fn(&updated); err != nil {
			return err
		}
		// fn must not re-key the row.
		updated.ID = id
		return tx.Model(&entities.Book{}).Where("id = ?", id).Select("*").Updates(&updated).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Get returns the book with the given id, or nil when there is none.
func (r *Repository) Get(ctx context.Context, id string) (*entities.Book, error) {
	return findBook(r.db.DB.WithContext(ctx), id)
}

func findBook(db *gorm.DB, id string) (*entities.Book, error) {
	var book entities.Book
	err := db.Where("id = ?", id).First(&book).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// List returns every saved book, most recently updated first.
func (r *Repository) List(ctx context.Context) ([]entities.Book, error) {
	books := []entities.Book{}
	err := r.db.DB.WithContext(ctx).Order("updated_at DESC").Find(&books).Error
	return books, err
}

// ListByShelf returns the books on a shelf, most recently updated first.
func (r *Repository) ListByShelf(ctx context.Context, shelf entities.Shelf) ([]entities.Book, error) {
	return booksOnShelf(r.db.DB.WithContext(ctx), shelf)
}

func booksOnShelf(db *gorm.DB, shelf entities.Shelf) ([]entities.Book, error) {
	books := []entities.Book{}
	err := db.Where("shelf = ?", shelf).Order("updated_at DESC, id ASC").Find(&books).Error
	return books, err
}

// Delete removes the given book.
func (r *Repository) Delete(ctx context.Context, book *entities.Book) error {
	return r.DeleteByID(ctx, book.ID)
}

// DeleteByID removes the book with the given id. Deleting a missing id is
// not an error.
func (r *Repository) DeleteByID(ctx context.Context, id string) error {
	return r.write(ctx, func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).Delete(&entities.Book{}).Error
	})
}

// SetFavorite updates only the favorite flag. Returns database.ErrNotFound
// when the book does not exist.
func (r *Repository) SetFavorite(ctx context.Context, id string, favorite bool) error {
	return r.write(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&entities.Book{}).Where("id = ?", id).Update("is_favorite", favorite)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("book %s: %w", id, database.ErrNotFound)
		}
		return nil
	})
}

// WatchShelf streams the books on a shelf, re-emitting after each change.
func (r *Repository) WatchShelf(ctx context.Context, shelf entities.Shelf) <-chan []entities.Book {
	return database.Watch(ctx, r.db, func(ctx context.Context, db *gorm.DB) ([]entities.Book, error) {
		return booksOnShelf(db, shelf)
	}, database.TableBooks)
}

// ListFavorites returns every favorite book, most recently updated first.
func (r *Repository) ListFavorites(ctx context.Context) ([]entities.Book, error) {
	return favoriteBooks(r.db.DB.WithContext(ctx))
}

func favoriteBooks(db *gorm.DB) ([]entities.Book, error) {
	books := []entities.Book{}
	err := db.Where("is_favorite = ?", true).Order("updated_at DESC, id ASC").Find(&books).Error
	return books, err
}

// WatchFavorites streams all favorite books.
func (r *Repository) WatchFavorites(ctx context.Context) <-chan []entities.Book {
	return database.Watch(ctx, r.db, func(ctx context.Context, db *gorm.DB) ([]entities.Book, error) {
		return favoriteBooks(db)
	}, database.TableBooks)
}

// WatchBook streams a single book; nil is emitted while it does not exist.
func (r *Repository) WatchBook(ctx context.Context, id string) <-chan *entities.Book {
	return database.Watch(ctx, r.db, func(ctx context.Context, db *gorm.DB) (*entities.Book, error) {
		return findBook(db, id)
	}, database.TableBooks)
}

// --- Aggregates ---
//
// Sums are returned as sql.NullInt64: Valid is false when no row qualifies.

func (r *Repository) sum(ctx context.Context, where string, args ...any) (sql.NullInt64, error) {
	var total sql.NullInt64
	err := r.db.DB.WithContext(ctx).Model(&entities.Book{}).
		Select("SUM(current_page)").
		Where(where, args...).
		Row().Scan(&total)
	return total, err
}

// TotalPagesRead sums current pages across all books with progress.
func (r *Repository) TotalPagesRead(ctx context.Context) (sql.NullInt64, error) {
	return r.sum(ctx, "current_page > 0")
}

// PagesReadThisMonth sums current pages of books updated this calendar month.
func (r *Repository) PagesReadThisMonth(ctx context.Context) (sql.NullInt64, error) {
	return r.sum(ctx, "current_page > 0 AND "+monthExpr+" = ?", r.currentMonth())
}

// TotalFinishedPages sums current pages across finished books.
func (r *Repository) TotalFinishedPages(ctx context.Context) (sql.NullInt64, error) {
	return r.sum(ctx, "shelf = ? AND current_page > 0", entities.ShelfFinished)
}

// FinishedPagesThisMonth sums current pages of finished books updated this
// calendar month.
func (r *Repository) FinishedPagesThisMonth(ctx context.Context) (sql.NullInt64, error) {
	return r.sum(ctx, "shelf = ? AND current_page > 0 AND "+monthExpr+" = ?",
		entities.ShelfFinished, r.currentMonth())
}

// CountFinished returns the number of books on the finished shelf.
func (r *Repository) CountFinished(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.DB.WithContext(ctx).Model(&entities.Book{}).
		Where("shelf = ?", entities.ShelfFinished).
		Count(&count).Error
	return count, err
}

// FinishedThisMonth returns finished books updated this calendar month.
func (r *Repository) FinishedThisMonth(ctx context.Context) ([]entities.Book, error) {
	books := []entities.Book{}
	err := r.db.DB.WithContext(ctx).
		Where("shelf = ? AND "+monthExpr+" = ?", entities.ShelfFinished, r.currentMonth()).
		Order("updated_at DESC").
		Find(&books).Error
	return books, err
}
