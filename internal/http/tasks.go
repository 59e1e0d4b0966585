package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/readstack/internal/openlibrary"
	"github.com/mrlokans/readstack/internal/tasks"
)

// TasksController handles task queue endpoints.
type TasksController struct {
	queue TaskQueue
}

func NewTasksController(queue TaskQueue) *TasksController {
	return &TasksController{queue: queue}
}

// RefreshRequest is the optional body of a refresh request. Without a
// book_id every saved book is refreshed.
type RefreshRequest struct {
	BookID string `json:"book_id,omitempty"`
}

// Refresh handles POST /api/tasks/refresh
func (tc *TasksController) Refresh(c *gin.Context) {
	var req RefreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}

	var (
		task     backlite.Task
		taskType string
	)
	if req.BookID != "" {
		id := openlibrary.NormalizeWorkKey(req.BookID)
		if id == "" {
			respondBadRequest(c, "invalid book_id")
			return
		}
		task = tasks.RefreshBookTask{BookID: id}
		taskType = tasks.QueueRefreshBook
	} else {
		task = tasks.RefreshAllBooksTask{}
		taskType = tasks.QueueRefreshAllBooks
	}

	ids, err := tc.queue.Enqueue(task)
	if err != nil {
		respondInternalError(c, err, "enqueue refresh")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task_id": ids[0],
		"type":    taskType,
		"message": "task enqueued",
	})
}

// GetTaskStatus handles GET /api/tasks/:id
func (tc *TasksController) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := tc.queue.Status(ctx, taskID)
	if err != nil {
		respondInternalError(c, err, "task status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":     taskID,
		"status": tasks.StatusName(status),
	})
}
