package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/readstack/internal/entities"
	"github.com/mrlokans/readstack/internal/notes"
	"github.com/mrlokans/readstack/internal/shelving"
)

// BooksController handles saved books and shelves.
type BooksController struct {
	shelving *shelving.Service
	notes    *notes.Service
}

func NewBooksController(shelvingSvc *shelving.Service, notesSvc *notes.Service) *BooksController {
	return &BooksController{shelving: shelvingSvc, notes: notesSvc}
}

type SaveBookRequest struct {
	WorkKey string         `json:"work_key" binding:"required"`
	Shelf   entities.Shelf `json:"shelf" binding:"required"`
}

type ChangeShelfRequest struct {
	Shelf entities.Shelf `json:"shelf" binding:"required"`
}

// UpdateProgressRequest carries a partial progress update; absent fields
// are left unchanged.
type UpdateProgressRequest struct {
	TotalPages *int `json:"total_pages"`
	PagesRead  *int `json:"pages_read"`
}

// BooksResponse wraps a list of books.
type BooksResponse struct {
	Books []entities.Book `json:"books"`
	Count int             `json:"count"`
}

func parseShelf(c *gin.Context) (entities.Shelf, bool) {
	shelf := entities.Shelf(c.Param("shelf"))
	if err := entities.ValidateShelf(shelf); err != nil {
		respondBadRequest(c, err.Error())
		return "", false
	}
	return shelf, true
}

// GetShelf handles GET /api/shelves/:shelf
func (bc *BooksController) GetShelf(c *gin.Context) {
	shelf, ok := parseShelf(c)
	if !ok {
		return
	}
	books, err := bc.shelving.ShelfBooks(c.Request.Context(), shelf)
	if err != nil {
		respondInternalError(c, err, "list shelf")
		return
	}
	c.JSON(http.StatusOK, BooksResponse{Books: books, Count: len(books)})
}

// StreamShelf handles GET /api/shelves/:shelf/stream, sending the shelf
// contents whenever they change.
func (bc *BooksController) StreamShelf(c *gin.Context) {
	shelf, ok := parseShelf(c)
	if !ok {
		return
	}
	streamEvents(c, "shelf", bc.shelving.Shelf(shelf).Subscribe(c.Request.Context()))
}

// GetFavorites handles GET /api/favorites
func (bc *BooksController) GetFavorites(c *gin.Context) {
	books, err := bc.shelving.FavoriteBooks(c.Request.Context())
	if err != nil {
		respondInternalError(c, err, "list favorites")
		return
	}
	c.JSON(http.StatusOK, BooksResponse{Books: books, Count: len(books)})
}

// SaveBook handles POST /api/books, fetching the work from the catalog and
// saving it on the requested shelf.
func (bc *BooksController) SaveBook(c *gin.Context) {
	var req SaveBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "work_key and shelf are required")
		return
	}
	respondResult(c, http.StatusCreated, bc.shelving.SaveFromCatalog(c.Request.Context(), req.WorkKey, req.Shelf))
}

// loadBook resolves the :id parameter to a saved book, responding 404 when
// there is none.
func (bc *BooksController) loadBook(c *gin.Context) (*entities.Book, bool) {
	id, ok := parseBookID(c)
	if !ok {
		return nil, false
	}
	book, err := bc.shelving.Book(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err, "get book")
		return nil, false
	}
	if book == nil {
		respondNotFound(c, "book")
		return nil, false
	}
	return book, true
}

// GetBook handles GET /api/books/:id
func (bc *BooksController) GetBook(c *gin.Context) {
	book, ok := bc.loadBook(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, book)
}

// ChangeShelf handles PUT /api/books/:id/shelf
func (bc *BooksController) ChangeShelf(c *gin.Context) {
	book, ok := bc.loadBook(c)
	if !ok {
		return
	}
	var req ChangeShelfRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "shelf is required")
		return
	}
	respondResult(c, http.StatusOK, bc.shelving.ChangeShelf(c.Request.Context(), book.ID, req.Shelf))
}

// UpdateProgress handles PUT /api/books/:id/progress
func (bc *BooksController) UpdateProgress(c *gin.Context) {
	book, ok := bc.loadBook(c)
	if !ok {
		return
	}
	var req UpdateProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid progress payload")
		return
	}
	respondResult(c, http.StatusOK, bc.shelving.UpdateProgress(c.Request.Context(), book.ID, req.TotalPages, req.PagesRead))
}

// AddFavorite handles POST /api/books/:id/favorite
func (bc *BooksController) AddFavorite(c *gin.Context) {
	bc.setFavorite(c, true)
}

// RemoveFavorite handles DELETE /api/books/:id/favorite
func (bc *BooksController) RemoveFavorite(c *gin.Context) {
	bc.setFavorite(c, false)
}

func (bc *BooksController) setFavorite(c *gin.Context, favorite bool) {
	book, ok := bc.loadBook(c)
	if !ok {
		return
	}
	respondResult(c, http.StatusOK, bc.shelving.SetFavorite(c.Request.Context(), book.ID, favorite))
}

// DeleteBook handles DELETE /api/books/:id. The book's quotes go with it.
func (bc *BooksController) DeleteBook(c *gin.Context) {
	book, ok := bc.loadBook(c)
	if !ok {
		return
	}
	result := bc.shelving.DeleteBook(c.Request.Context(), book.ID)
	if result.OK() {
		bc.cleanupDeleted(c, book.ID)
	}
	respondResult(c, http.StatusOK, result)
}

func (bc *BooksController) cleanupDeleted(c *gin.Context, bookID string) {
	if bc.notes == nil {
		return
	}
	if _, err := bc.notes.DeleteAllForBook(c.Request.Context(), bookID); err != nil {
		requestLogger(c).Warn("failed to delete quotes of deleted book",
			zap.String("book_id", bookID), zap.Error(err))
	}
}
