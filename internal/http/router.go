package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Route groups whose service is not configured are left out.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware(logger.Named("http")))
	router.Use(AccessLogMiddleware())

	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	api := router.Group("/api")

	if cfg.Browse != nil {
		catalog := NewCatalogController(cfg.Browse)
		api.GET("/catalog/search", catalog.Search)
		api.GET("/catalog/works/:id", catalog.Work)
		api.GET("/catalog/subjects/:subject", catalog.Subject)
		api.GET("/catalog/genres", catalog.Genres)
	}

	if cfg.Shelving != nil {
		books := NewBooksController(cfg.Shelving, cfg.Notes)
		api.GET("/shelves/:shelf", books.GetShelf)
		api.GET("/shelves/:shelf/stream", books.StreamShelf)
		api.GET("/favorites", books.GetFavorites)
		api.POST("/books", books.SaveBook)
		api.GET("/books/:id", books.GetBook)
		api.PUT("/books/:id/shelf", books.ChangeShelf)
		api.PUT("/books/:id/progress", books.UpdateProgress)
		api.POST("/books/:id/favorite", books.AddFavorite)
		api.DELETE("/books/:id/favorite", books.RemoveFavorite)
		api.DELETE("/books/:id", books.DeleteBook)

		if cfg.Notes != nil {
			quotes := NewQuotesController(cfg.Notes, cfg.Shelving)
			api.GET("/books/:id/quotes", quotes.ListForBook)
			api.POST("/books/:id/quotes", quotes.Create)
			api.GET("/quotes", quotes.List)
			api.GET("/quotes/random", quotes.Random)
			api.PUT("/quotes/:id", quotes.Update)
			api.DELETE("/quotes/:id", quotes.Delete)
		}
	}

	if cfg.Analytics != nil {
		stats := NewStatsController(cfg.Analytics)
		api.GET("/stats", stats.Summary)
		api.GET("/stats/stream", stats.Stream)
	}

	if cfg.TaskQueue != nil {
		tasksController := NewTasksController(cfg.TaskQueue)
		api.POST("/tasks/refresh", tasksController.Refresh)
		api.GET("/tasks/:id", tasksController.GetTaskStatus)
	}

	return router
}
