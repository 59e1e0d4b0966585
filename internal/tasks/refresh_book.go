package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"

	"github.com/mrlokans/readstack/internal/database"
	"github.com/mrlokans/readstack/internal/database/books"
	"github.com/mrlokans/readstack/internal/entities"
	"github.com/mrlokans/readstack/internal/openlibrary"
)

// Queue names.
const (
	QueueRefreshBook     = "refresh_book"
	QueueRefreshAllBooks = "refresh_all_books"
)

// WorkFetcher fetches catalog work details.
type WorkFetcher interface {
	WorkDetails(ctx context.Context, workKey string) (*openlibrary.WorkDetail, error)
}

// RefreshBookTask re-reads a saved book's title and cover from the catalog.
type RefreshBookTask struct {
	BookID string `json:"book_id"`
}

// Config returns the queue configuration for book refresh tasks.
func (t RefreshBookTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        QueueRefreshBook,
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// RefreshBookProcessor updates title and cover in place. Shelf, progress,
// favorite flag and the updated timestamp are left alone so statistics do
// not shift.
func RefreshBookProcessor(catalog WorkFetcher, repo *books.Repository, logger *zap.Logger) backlite.QueueProcessor[RefreshBookTask] {
	return func(ctx context.Context, task RefreshBookTask) error {
		detail, err := catalog.WorkDetails(ctx, task.BookID)
		if err != nil {
			return fmt.Errorf("refresh book %s: %w", task.BookID, err)
		}

		_, err = repo.Modify(ctx, task.BookID, func(b *entities.Book) error {
			if detail.Title != "" {
				b.Title = detail.Title
			}
			if cover := openlibrary.CoverURL(detail.CoverID(), openlibrary.CoverLarge); cover != "" {
				b.CoverURL = &cover
			}
			return nil
		})
		if errors.Is(err, database.ErrNotFound) {
			logger.Info("book removed before refresh", zap.String("book_id", task.BookID))
			return nil
		}
		if err != nil {
			return fmt.Errorf("refresh book %s: %w", task.BookID, err)
		}

		logger.Debug("book refreshed", zap.String("book_id", task.BookID))
		return nil
	}
}

// NewRefreshBookQueue creates a backlite queue for book refresh tasks.
func NewRefreshBookQueue(catalog WorkFetcher, repo *books.Repository, logger *zap.Logger) backlite.Queue {
	return backlite.NewQueue(RefreshBookProcessor(catalog, repo, logger))
}
