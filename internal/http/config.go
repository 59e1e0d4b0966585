package http

import (
	"context"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"

	"github.com/mrlokans/readstack/internal/analytics"
	"github.com/mrlokans/readstack/internal/browse"
	"github.com/mrlokans/readstack/internal/database"
	"github.com/mrlokans/readstack/internal/notes"
	"github.com/mrlokans/readstack/internal/shelving"
)

// TaskQueue enqueues background tasks and reports their status.
type TaskQueue interface {
	Enqueue(tasks ...backlite.Task) ([]string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// RouterConfig contains all dependencies needed to create the HTTP router.
type RouterConfig struct {
	Database  *database.Database
	Shelving  *shelving.Service
	Browse    *browse.Service
	Notes     *notes.Service
	Analytics *analytics.Service

	// TaskQueue is nil when background tasks are disabled.
	TaskQueue TaskQueue

	Logger  *zap.Logger
	Version string
}
