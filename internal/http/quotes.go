package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/readstack/internal/database"
	"github.com/mrlokans/readstack/internal/entities"
	"github.com/mrlokans/readstack/internal/notes"
	"github.com/mrlokans/readstack/internal/shelving"
)

// QuotesController handles quotes saved from books.
type QuotesController struct {
	notes    *notes.Service
	shelving *shelving.Service
}

func NewQuotesController(notesSvc *notes.Service, shelvingSvc *shelving.Service) *QuotesController {
	return &QuotesController{notes: notesSvc, shelving: shelvingSvc}
}

type QuoteRequest struct {
	Text string   `json:"text" binding:"required"`
	Note *string  `json:"note"`
	Tags []string `json:"tags"`
}

type QuotesResponse struct {
	Quotes []entities.Quote `json:"quotes"`
	Count  int              `json:"count"`
}

func quotesResponse(quotes []entities.Quote) QuotesResponse {
	return QuotesResponse{Quotes: quotes, Count: len(quotes)}
}

// ListForBook handles GET /api/books/:id/quotes
func (qc *QuotesController) ListForBook(c *gin.Context) {
	bookID, ok := parseBookID(c)
	if !ok {
		return
	}
	quotes, err := qc.notes.ForBook(c.Request.Context(), bookID)
	if err != nil {
		respondInternalError(c, err, "list quotes for book")
		return
	}
	c.JSON(http.StatusOK, quotesResponse(quotes))
}

// Create handles POST /api/books/:id/quotes
func (qc *QuotesController) Create(c *gin.Context) {
	bookID, ok := parseBookID(c)
	if !ok {
		return
	}
	book, err := qc.shelving.Book(c.Request.Context(), bookID)
	if err != nil {
		respondInternalError(c, err, "get book")
		return
	}
	if book == nil {
		respondNotFound(c, "book")
		return
	}

	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "text is required")
		return
	}

	quote, err := qc.notes.Create(c.Request.Context(), bookID, req.Text, req.Note, req.Tags)
	if errors.Is(err, notes.ErrEmptyQuote) {
		respondBadRequest(c, err.Error())
		return
	}
	if err != nil {
		respondInternalError(c, err, "create quote")
		return
	}
	c.JSON(http.StatusCreated, quote)
}

// Update handles PUT /api/quotes/:id
func (qc *QuotesController) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	existing, err := qc.notes.Get(c.Request.Context(), id)
	if err != nil {
		respondInternalError(c, err, "get quote")
		return
	}
	if existing == nil {
		respondNotFound(c, "quote")
		return
	}

	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "text is required")
		return
	}

	existing.Text = strings.TrimSpace(req.Text)
	existing.Note = req.Note
	existing.Tags = req.Tags
	err = qc.notes.Update(c.Request.Context(), existing)
	switch {
	case errors.Is(err, notes.ErrEmptyQuote):
		respondBadRequest(c, err.Error())
	case errors.Is(err, database.ErrNotFound):
		respondNotFound(c, "quote")
	case err != nil:
		respondInternalError(c, err, "update quote")
	default:
		c.JSON(http.StatusOK, existing)
	}
}

// Delete handles DELETE /api/quotes/:id
func (qc *QuotesController) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := qc.notes.Delete(c.Request.Context(), id); err != nil {
		respondInternalError(c, err, "delete quote")
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Quote deleted"})
}

// List handles GET /api/quotes?tag=&period=month
func (qc *QuotesController) List(c *gin.Context) {
	var (
		quotes []entities.Quote
		err    error
	)
	period := c.Query("period")
	if period != "" && period != "month" {
		respondBadRequest(c, "period must be \"month\"")
		return
	}
	if tag := strings.TrimSpace(c.Query("tag")); tag != "" {
		quotes, err = qc.notes.ByTag(c.Request.Context(), tag)
	} else if period == "month" {
		quotes, err = qc.notes.ThisMonth(c.Request.Context())
	} else {
		quotes, err = qc.notes.All(c.Request.Context())
	}
	if err != nil {
		respondInternalError(c, err, "list quotes")
		return
	}
	c.JSON(http.StatusOK, quotesResponse(quotes))
}

// Random handles GET /api/quotes/random?count=
func (qc *QuotesController) Random(c *gin.Context) {
	count, ok := parseQueryInt(c, "count", notes.DefaultRandomCount)
	if !ok {
		return
	}
	quotes, err := qc.notes.Random(c.Request.Context(), count)
	if err != nil {
		respondInternalError(c, err, "random quotes")
		return
	}
	c.JSON(http.StatusOK, quotesResponse(quotes))
}
