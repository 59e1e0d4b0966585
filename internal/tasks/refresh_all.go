package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"

	"github.com/mrlokans/readstack/internal/database/books"
)

// Enqueuer saves tasks to the queue.
type Enqueuer interface {
	Enqueue(tasks ...backlite.Task) ([]string, error)
}

// RefreshAllBooksTask fans out one RefreshBookTask per saved book.
type RefreshAllBooksTask struct{}

// Config returns the queue configuration for bulk refresh tasks.
func (t RefreshAllBooksTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        QueueRefreshAllBooks,
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     10 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// RefreshAllBooksProcessor creates a processor function for RefreshAllBooksTask.
func RefreshAllBooksProcessor(queue Enqueuer, repo *books.Repository, logger *zap.Logger) backlite.QueueProcessor[RefreshAllBooksTask] {
	return func(ctx context.Context, task RefreshAllBooksTask) error {
		all, err := repo.List(ctx)
		if err != nil {
			return fmt.Errorf("list books: %w", err)
		}
		if len(all) == 0 {
			return nil
		}

		batch := make([]backlite.Task, 0, len(all))
		for _, b := range all {
			batch = append(batch, RefreshBookTask{BookID: b.ID})
		}
		if _, err := queue.Enqueue(batch...); err != nil {
			return fmt.Errorf("enqueue book refreshes: %w", err)
		}

		logger.Info("book refreshes enqueued", zap.Int("books", len(batch)))
		return nil
	}
}

// NewRefreshAllBooksQueue creates a backlite queue for bulk refresh tasks.
func NewRefreshAllBooksQueue(queue Enqueuer, repo *books.Repository, logger *zap.Logger) backlite.Queue {
	return backlite.NewQueue(RefreshAllBooksProcessor(queue, repo, logger))
}
